package gpu

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"slices"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/viewfinder/internal/profile"
	"github.com/gogpu/viewfinder/internal/shader"
)

// Errors reported while building or using the pipeline.
var (
	// ErrCompile is returned when a shader stage fails to compile.
	ErrCompile = shader.ErrCompile
	// ErrLink is returned when the stages cannot be linked into a render
	// pipeline, or their interfaces do not match the profile.
	ErrLink = errors.New("gpu: shader link failed")
	// ErrBind is returned when the sampler or uniform buffer cannot be
	// created.
	ErrBind = errors.New("gpu: resource binding failed")
	// ErrNoProfile is returned by Ensure before SetProfile was called.
	ErrNoProfile = errors.New("gpu: no profile selected")
	// ErrNotBound is returned when drawing with an incomplete pipeline.
	ErrNotBound = errors.New("gpu: pipeline not bound")
)

// Vertex input names shared by the vertex shaders.
const (
	InputVertex  = "vertexIn"
	InputTexture = "textureIn"
)

// Uniform member names of the Params block.
const (
	UniformTexStep      = "tex_step"
	UniformTexSize      = "tex_size"
	UniformFirstRed     = "tex_bayer_first_red"
	UniformStrideFactor = "stride_factor"
)

var uniformMembers = []string{UniformTexStep, UniformTexSize, UniformFirstRed, UniformStrideFactor}

// PipelineState is the build stage of a ShaderPipeline. States only move
// forward one step at a time; a profile change moves them back.
type PipelineState int

const (
	// StateUninitialized has no compiled stage.
	StateUninitialized PipelineState = iota
	// StateVertexReady has the vertex stage compiled.
	StateVertexReady
	// StateLinked has both stages and the render pipeline.
	StateLinked
	// StateBound has the sampler and uniform buffer; draws are possible.
	StateBound
)

func (s PipelineState) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateVertexReady:
		return "vertex-ready"
	case StateLinked:
		return "linked"
	case StateBound:
		return "bound"
	default:
		return fmt.Sprintf("PipelineState(%d)", int(s))
	}
}

// uniformLayout is the merged uniform block of both stages.
type uniformLayout struct {
	binding uint32
	size    uint32
	offsets map[string]uint32
}

// ShaderPipeline builds and owns the render pipeline for the current
// profile. It is rebuilt lazily: SetProfile only invalidates, Ensure
// creates whatever is missing.
//
// ShaderPipeline is not safe for concurrent use.
type ShaderPipeline struct {
	device  hal.Device
	shaders fs.FS
	target  gputypes.TextureFormat
	spirv   bool

	profile    profile.Profile
	hasProfile bool
	state      PipelineState
	builds     int

	vertex   *shader.Module
	fragment *shader.Module

	vertexModule   hal.ShaderModule
	fragmentModule hal.ShaderModule
	bindLayout     hal.BindGroupLayout
	pipeLayout     hal.PipelineLayout
	pipeline       hal.RenderPipeline

	uniforms      uniformLayout
	samplerBind   uint32
	hasSampler    bool
	textureBind   [profile.MaxSlots]uint32
	sampler       hal.Sampler
	uniformBuffer hal.Buffer

	bindGroup    hal.BindGroup
	bindGroupGen uint64
}

// NewShaderPipeline creates an empty pipeline that renders into targets of
// the given format, loading shader sources from shaders.
func NewShaderPipeline(device hal.Device, shaders fs.FS, target gputypes.TextureFormat) *ShaderPipeline {
	return &ShaderPipeline{
		device:  device,
		shaders: shaders,
		target:  target,
	}
}

// UseSPIRV makes the pipeline hand SPIR-V generated by naga to the device
// instead of WGSL source. It takes effect for stages compiled afterwards.
func (p *ShaderPipeline) UseSPIRV(on bool) { p.spirv = on }

// createModule creates the device shader module for m.
func (p *ShaderPipeline) createModule(m *shader.Module) (hal.ShaderModule, error) {
	return createShaderModule(p.device, m, p.spirv)
}

// createShaderModule hands m to device as WGSL, or as SPIR-V generated by
// naga when spirv is set.
func createShaderModule(device hal.Device, m *shader.Module, spirv bool) (hal.ShaderModule, error) {
	src := hal.ShaderSource{WGSL: m.Source}
	if spirv {
		words, err := m.SPIRV()
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrCompile, err)
		}
		src = hal.ShaderSource{SPIRV: words}
	}
	mod, err := device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  m.Name,
		Source: src,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCompile, m.Name, err)
	}
	return mod, nil
}

// State returns the current build state.
func (p *ShaderPipeline) State() PipelineState { return p.state }

// Builds returns how many times a fragment stage has been compiled.
func (p *ShaderPipeline) Builds() int { return p.builds }

// Profile returns the active profile and whether one is set.
func (p *ShaderPipeline) Profile() (profile.Profile, bool) { return p.profile, p.hasProfile }

// SetProfile selects the profile to render with. Objects that depend on
// the previous program are released; a profile compiling to the same
// program keeps everything.
func (p *ShaderPipeline) SetProfile(pr profile.Profile) {
	if p.hasProfile && p.profile.SameProgram(pr) {
		p.profile = pr
		return
	}
	vertexChanged := !p.hasProfile || p.profile.VertexShader != pr.VertexShader
	p.profile = pr
	p.hasProfile = true

	p.destroyProgram()
	if vertexChanged {
		p.destroyVertex()
	}
	if p.vertexModule != nil {
		p.state = StateVertexReady
	} else {
		p.state = StateUninitialized
	}
	slogger().Debug("pipeline: profile set",
		"format", pr.Format.String(),
		"category", pr.Category.String(),
		"state", p.state.String())
}

// Ensure advances the pipeline to StateBound. On failure the pipeline
// stays in the state it reached, and the next call retries from there.
func (p *ShaderPipeline) Ensure() error {
	if !p.hasProfile {
		return ErrNoProfile
	}
	if p.state == StateUninitialized {
		if err := p.compileVertex(); err != nil {
			return err
		}
		p.state = StateVertexReady
	}
	if p.state == StateVertexReady {
		if err := p.link(); err != nil {
			return err
		}
		p.state = StateLinked
	}
	if p.state == StateLinked {
		if err := p.bind(); err != nil {
			return err
		}
		p.state = StateBound
	}
	return nil
}

func (p *ShaderPipeline) compileVertex() error {
	m, err := shader.Compile(p.shaders, p.profile.VertexShader, shader.StageVertex, nil)
	if err != nil {
		return err
	}
	mod, err := p.createModule(m)
	if err != nil {
		return err
	}
	p.vertex = m
	p.vertexModule = mod
	slogger().Debug("pipeline: vertex stage compiled", "shader", m.Name)
	return nil
}

func (p *ShaderPipeline) link() error {
	m, err := shader.Compile(p.shaders, p.profile.FragmentShader, shader.StageFragment, p.profile.Defines)
	if err != nil {
		return err
	}
	fragModule, err := p.createModule(m)
	if err != nil {
		return err
	}
	p.builds++
	p.fragment = m
	p.fragmentModule = fragModule

	if err := p.createPipeline(); err != nil {
		p.destroyProgram()
		return err
	}
	slogger().Debug("pipeline: linked",
		"vertex", p.vertex.Name,
		"fragment", m.Name,
		"slots", p.profile.SlotCount())
	return nil
}

// resolveInterface checks that the two stages agree with each other and
// with the profile, and records the binding indices.
func (p *ShaderPipeline) resolveInterface() (locations [2]uint32, err error) {
	vi, err := p.vertex.Reflect()
	if err != nil {
		return locations, fmt.Errorf("%w: %w", ErrLink, err)
	}
	fi, err := p.fragment.Reflect()
	if err != nil {
		return locations, fmt.Errorf("%w: %w", ErrLink, err)
	}

	for i, name := range []string{InputVertex, InputTexture} {
		loc, ok := vi.Inputs[name]
		if !ok {
			return locations, fmt.Errorf("%w: %s: missing vertex input %q", ErrLink, p.vertex.Name, name)
		}
		locations[i] = loc
	}

	if len(fi.Textures) != p.profile.SlotCount() {
		return locations, fmt.Errorf("%w: %s: declares %d textures, profile has %d planes",
			ErrLink, p.fragment.Name, len(fi.Textures), p.profile.SlotCount())
	}
	for _, pl := range p.profile.Planes {
		name := profile.SlotNames[pl.Slot]
		b, ok := fi.Textures[name]
		if !ok {
			return locations, fmt.Errorf("%w: %s: missing texture %q", ErrLink, p.fragment.Name, name)
		}
		p.textureBind[pl.Slot] = b
	}

	p.hasSampler = false
	for _, iface := range []shader.Interface{vi, fi} {
		for _, b := range iface.Samplers {
			if p.hasSampler && b != p.samplerBind {
				return locations, fmt.Errorf("%w: sampler bound at %d and %d", ErrLink, p.samplerBind, b)
			}
			p.samplerBind, p.hasSampler = b, true
		}
	}

	u, err := mergeUniforms(vi.Uniform, fi.Uniform)
	if err != nil {
		return locations, err
	}
	p.uniforms = u
	return locations, nil
}

func mergeUniforms(blocks ...*shader.UniformBlock) (uniformLayout, error) {
	var (
		u     uniformLayout
		found bool
	)
	for _, b := range blocks {
		if b == nil {
			continue
		}
		if !found {
			u = uniformLayout{binding: b.Binding, size: b.Size, offsets: maps.Clone(b.Offsets)}
			found = true
			continue
		}
		if b.Binding != u.binding {
			return u, fmt.Errorf("%w: uniform block bound at %d and %d", ErrLink, u.binding, b.Binding)
		}
		for name, off := range b.Offsets {
			if prev, ok := u.offsets[name]; ok && prev != off {
				return u, fmt.Errorf("%w: uniform %q at offsets %d and %d", ErrLink, name, prev, off)
			}
			u.offsets[name] = off
		}
		u.size = max(u.size, b.Size)
	}
	if !found {
		return u, fmt.Errorf("%w: no uniform block", ErrLink)
	}
	for _, name := range uniformMembers {
		if _, ok := u.offsets[name]; !ok {
			return u, fmt.Errorf("%w: uniform %q not declared", ErrLink, name)
		}
	}
	return u, nil
}

func (p *ShaderPipeline) createPipeline() error {
	locations, err := p.resolveInterface()
	if err != nil {
		return err
	}

	entries := []gputypes.BindGroupLayoutEntry{{
		Binding:    p.uniforms.binding,
		Visibility: gputypes.ShaderStageVertex | gputypes.ShaderStageFragment,
		Buffer: &gputypes.BufferBindingLayout{
			Type: gputypes.BufferBindingTypeUniform,
		},
	}}
	for _, pl := range p.profile.Planes {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    p.textureBind[pl.Slot],
			Visibility: gputypes.ShaderStageFragment,
			Texture: &gputypes.TextureBindingLayout{
				SampleType:    gputypes.TextureSampleTypeFloat,
				ViewDimension: gputypes.TextureViewDimension2D,
			},
		})
	}
	if p.hasSampler {
		entries = append(entries, gputypes.BindGroupLayoutEntry{
			Binding:    p.samplerBind,
			Visibility: gputypes.ShaderStageFragment,
			Sampler: &gputypes.SamplerBindingLayout{
				Type: gputypes.SamplerBindingTypeFiltering,
			},
		})
	}

	p.bindLayout, err = p.device.CreateBindGroupLayout(&hal.BindGroupLayoutDescriptor{
		Label:   "viewfinder_bind_layout",
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("%w: create bind group layout: %w", ErrLink, err)
	}

	p.pipeLayout, err = p.device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{
		Label:            "viewfinder_pipe_layout",
		BindGroupLayouts: []hal.BindGroupLayout{p.bindLayout},
	})
	if err != nil {
		return fmt.Errorf("%w: create pipeline layout: %w", ErrLink, err)
	}

	p.pipeline, err = p.device.CreateRenderPipeline(&hal.RenderPipelineDescriptor{
		Label:  "viewfinder_pipeline_" + p.profile.Format.String(),
		Layout: p.pipeLayout,
		Vertex: hal.VertexState{
			Module:     p.vertexModule,
			EntryPoint: p.vertex.Entry,
			Buffers:    quadVertexLayouts(locations[0], locations[1]),
		},
		Fragment: &hal.FragmentState{
			Module:     p.fragmentModule,
			EntryPoint: p.fragment.Entry,
			Targets: []gputypes.ColorTargetState{{
				Format:    p.target,
				WriteMask: gputypes.ColorWriteMaskAll,
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: gputypes.PrimitiveTopologyTriangleStrip,
			CullMode: gputypes.CullModeNone,
		},
		Multisample: gputypes.MultisampleState{
			Count: 1,
			Mask:  0xFFFFFFFF,
		},
	})
	if err != nil {
		return fmt.Errorf("%w: create render pipeline: %w", ErrLink, err)
	}
	return nil
}

func (p *ShaderPipeline) bind() error {
	if p.hasSampler {
		s, err := p.device.CreateSampler(&hal.SamplerDescriptor{
			Label:        "viewfinder_sampler",
			AddressModeU: gputypes.AddressModeClampToEdge,
			AddressModeV: gputypes.AddressModeClampToEdge,
			AddressModeW: gputypes.AddressModeClampToEdge,
			MagFilter:    p.profile.Filter,
			MinFilter:    p.profile.Filter,
			MipmapFilter: gputypes.FilterModeNearest,
		})
		if err != nil {
			return fmt.Errorf("%w: create sampler: %w", ErrBind, err)
		}
		p.sampler = s
	}

	buf, err := p.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "viewfinder_uniforms",
		Size:  uint64(p.uniforms.size),
		Usage: gputypes.BufferUsageUniform | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		p.destroyBindings()
		return fmt.Errorf("%w: create uniform buffer: %w", ErrBind, err)
	}
	p.uniformBuffer = buf
	return nil
}

// Prepare writes the frame uniforms and makes sure the bind group refers
// to the uploader's current textures.
func (p *ShaderPipeline) Prepare(queue hal.Queue, tex *TextureUploader, u profile.Uniforms) error {
	if p.state != StateBound {
		return ErrNotBound
	}
	if err := queue.WriteBuffer(p.uniformBuffer, 0, encodeUniforms(p.uniforms, u)); err != nil {
		return fmt.Errorf("gpu: write uniforms: %w", err)
	}
	if p.bindGroup != nil && p.bindGroupGen == tex.Generation() {
		return nil
	}
	p.destroyBindGroup()

	entries := []gputypes.BindGroupEntry{{
		Binding: p.uniforms.binding,
		Resource: gputypes.BufferBinding{
			Buffer: p.uniformBuffer.NativeHandle(),
			Offset: 0,
			Size:   uint64(p.uniforms.size),
		},
	}}
	for _, pl := range p.profile.Planes {
		view := tex.View(pl.Slot)
		if view == nil {
			return fmt.Errorf("%w: texture slot %d is empty", ErrBind, pl.Slot)
		}
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  p.textureBind[pl.Slot],
			Resource: gputypes.TextureViewBinding{TextureView: view.NativeHandle()},
		})
	}
	if p.sampler != nil {
		entries = append(entries, gputypes.BindGroupEntry{
			Binding:  p.samplerBind,
			Resource: gputypes.SamplerBinding{Sampler: p.sampler.NativeHandle()},
		})
	}

	bg, err := p.device.CreateBindGroup(&hal.BindGroupDescriptor{
		Label:   "viewfinder_bind_group",
		Layout:  p.bindLayout,
		Entries: entries,
	})
	if err != nil {
		return fmt.Errorf("%w: create bind group: %w", ErrBind, err)
	}
	p.bindGroup = bg
	p.bindGroupGen = tex.Generation()
	return nil
}

// Record records the quad draw into pass. Prepare must have succeeded.
func (p *ShaderPipeline) Record(pass hal.RenderPassEncoder, quad hal.Buffer) {
	pass.SetPipeline(p.pipeline)
	pass.SetBindGroup(0, p.bindGroup, nil)
	pass.SetVertexBuffer(0, quad, quadPositionOffset)
	pass.SetVertexBuffer(1, quad, quadTexCoordOffset)
	pass.Draw(quadVertexCount, 1, 0, 0)
}

// Destroy releases every GPU object and resets the pipeline to
// StateUninitialized. The profile is kept.
func (p *ShaderPipeline) Destroy() {
	p.destroyProgram()
	p.destroyVertex()
	p.state = StateUninitialized
}

// destroyProgram releases objects that depend on the fragment stage, in
// reverse creation order.
func (p *ShaderPipeline) destroyProgram() {
	p.destroyBindings()
	if p.pipeline != nil {
		p.device.DestroyRenderPipeline(p.pipeline)
		p.pipeline = nil
	}
	if p.pipeLayout != nil {
		p.device.DestroyPipelineLayout(p.pipeLayout)
		p.pipeLayout = nil
	}
	if p.bindLayout != nil {
		p.device.DestroyBindGroupLayout(p.bindLayout)
		p.bindLayout = nil
	}
	if p.fragmentModule != nil {
		p.device.DestroyShaderModule(p.fragmentModule)
		p.fragmentModule = nil
	}
	p.fragment = nil
}

func (p *ShaderPipeline) destroyBindings() {
	p.destroyBindGroup()
	if p.uniformBuffer != nil {
		p.device.DestroyBuffer(p.uniformBuffer)
		p.uniformBuffer = nil
	}
	if p.sampler != nil {
		p.device.DestroySampler(p.sampler)
		p.sampler = nil
	}
}

func (p *ShaderPipeline) destroyBindGroup() {
	if p.bindGroup != nil {
		p.device.DestroyBindGroup(p.bindGroup)
		p.bindGroup = nil
	}
}

func (p *ShaderPipeline) destroyVertex() {
	if p.vertexModule != nil {
		p.device.DestroyShaderModule(p.vertexModule)
		p.vertexModule = nil
	}
	p.vertex = nil
}

// UniformMembers returns the names of the resolved Params members,
// sorted. It is empty before the pipeline is linked.
func (p *ShaderPipeline) UniformMembers() []string {
	if p.state < StateLinked {
		return nil
	}
	names := slices.Collect(maps.Keys(p.uniforms.offsets))
	slices.Sort(names)
	return names
}
