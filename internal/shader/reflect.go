package shader

import (
	"fmt"

	"github.com/gogpu/naga/ir"
)

// Interface is the externally visible interface of a compiled module:
// resources in bind group 0 and, for vertex modules, the vertex inputs.
type Interface struct {
	// Textures maps texture variable names to binding indices.
	Textures map[string]uint32
	// Samplers maps sampler variable names to binding indices.
	Samplers map[string]uint32
	// Uniform is the uniform block, nil when the module declares none.
	Uniform *UniformBlock
	// Inputs maps vertex input names to their locations.
	Inputs map[string]uint32
}

// UniformBlock describes a uniform buffer binding.
type UniformBlock struct {
	Name    string
	Binding uint32
	// Size is the byte span of the block type.
	Size uint32
	// Offsets maps member names to byte offsets.
	Offsets map[string]uint32
}

// Reflect extracts the module interface from the IR.
func (m *Module) Reflect() (Interface, error) {
	iface := Interface{
		Textures: make(map[string]uint32),
		Samplers: make(map[string]uint32),
		Inputs:   make(map[string]uint32),
	}
	mod := m.IR

	for _, gv := range mod.GlobalVariables {
		if gv.Binding == nil {
			continue
		}
		if gv.Binding.Group != 0 {
			return iface, fmt.Errorf("%w: %s: %s uses group %d", ErrInterface, m.Name, gv.Name, gv.Binding.Group)
		}
		if int(gv.Type) >= len(mod.Types) {
			return iface, fmt.Errorf("%w: %s: %s has no type", ErrInterface, m.Name, gv.Name)
		}
		switch inner := mod.Types[gv.Type].Inner.(type) {
		case ir.ImageType:
			iface.Textures[gv.Name] = gv.Binding.Binding
		case ir.SamplerType:
			iface.Samplers[gv.Name] = gv.Binding.Binding
		case ir.StructType:
			if gv.Space != ir.SpaceUniform {
				continue
			}
			if iface.Uniform != nil {
				return iface, fmt.Errorf("%w: %s: more than one uniform block", ErrInterface, m.Name)
			}
			block := &UniformBlock{
				Name:    gv.Name,
				Binding: gv.Binding.Binding,
				Size:    inner.Span,
				Offsets: make(map[string]uint32, len(inner.Members)),
			}
			for _, member := range inner.Members {
				block.Offsets[member.Name] = member.Offset
			}
			iface.Uniform = block
		}
	}

	if m.Stage != StageVertex {
		return iface, nil
	}
	for i := range mod.EntryPoints {
		ep := &mod.EntryPoints[i]
		if ep.Stage != ir.StageVertex || ep.Name != m.Entry {
			continue
		}
		for _, arg := range ep.Function.Arguments {
			if loc, ok := location(arg.Binding); ok {
				iface.Inputs[arg.Name] = loc
				continue
			}
			if int(arg.Type) >= len(mod.Types) {
				continue
			}
			if st, ok := mod.Types[arg.Type].Inner.(ir.StructType); ok {
				for _, member := range st.Members {
					if loc, ok := location(member.Binding); ok {
						iface.Inputs[member.Name] = loc
					}
				}
			}
		}
	}
	return iface, nil
}

func location(b *ir.Binding) (uint32, bool) {
	if b == nil || *b == nil {
		return 0, false
	}
	switch v := (*b).(type) {
	case ir.LocationBinding:
		return v.Location, true
	case *ir.LocationBinding:
		return v.Location, true
	}
	return 0, false
}
