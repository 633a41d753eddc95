// Package shader loads the embedded WGSL assets of the viewfinder, expands
// their preprocessor directives and compiles them with naga. Compiled
// modules expose the resource bindings, uniform layout and vertex inputs
// the GPU pipeline links against.
package shader

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/gogpu/naga"
	"github.com/gogpu/naga/ir"
	"github.com/gogpu/naga/spirv"
)

//go:embed shaders/*.wgsl
var assets embed.FS

// Ext is the file extension of shader assets.
const Ext = ".wgsl"

// Overlay is the asset name of the overlay line shader.
const Overlay = "overlay"

// Errors returned by Compile and Reflect.
var (
	ErrCompile   = errors.New("shader: compile failed")
	ErrInterface = errors.New("shader: interface mismatch")
)

// Assets returns the built-in shader sources. Files are named
// "<asset>.wgsl".
func Assets() fs.FS {
	sub, err := fs.Sub(assets, "shaders")
	if err != nil {
		panic(err) // embedded directory always exists
	}
	return sub
}

// Stage is a programmable pipeline stage.
type Stage int

const (
	StageVertex Stage = iota
	StageFragment
)

func (s Stage) String() string {
	if s == StageVertex {
		return "vertex"
	}
	return "fragment"
}

func (s Stage) irStage() ir.ShaderStage {
	if s == StageVertex {
		return ir.StageVertex
	}
	return ir.StageFragment
}

// Module is a compiled shader stage.
type Module struct {
	Name  string
	Stage Stage
	// Entry is the name of the entry point for Stage.
	Entry string
	// Source is the expanded WGSL handed to the device.
	Source string
	IR     *ir.Module
}

// Expand reads the asset name from fsys and runs the preprocessor with
// defines. Includes are resolved from fsys.
func Expand(fsys fs.FS, name string, defines []string) (string, error) {
	src, err := fs.ReadFile(fsys, name+Ext)
	if err != nil {
		return "", err
	}
	return Preprocess(string(src), defines, func(file string) (string, error) {
		b, err := fs.ReadFile(fsys, file)
		return string(b), err
	})
}

// Compile expands, parses, lowers and validates the asset name.
// All failures wrap ErrCompile.
func Compile(fsys fs.FS, name string, stage Stage, defines []string) (*Module, error) {
	src, err := Expand(fsys, name, defines)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCompile, name, err)
	}
	ast, err := naga.Parse(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCompile, name, err)
	}
	mod, err := naga.LowerWithSource(ast, src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCompile, name, err)
	}
	verrs, err := naga.Validate(mod)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrCompile, name, err)
	}
	if len(verrs) > 0 {
		return nil, fmt.Errorf("%w: %s: %w", ErrCompile, name, &verrs[0])
	}

	m := &Module{Name: name, Stage: stage, Source: src, IR: mod}
	for i := range mod.EntryPoints {
		if mod.EntryPoints[i].Stage == stage.irStage() {
			m.Entry = mod.EntryPoints[i].Name
			break
		}
	}
	if m.Entry == "" {
		return nil, fmt.Errorf("%w: %s: no %s entry point", ErrCompile, name, stage)
	}
	return m, nil
}

// SPIRV generates SPIR-V words for the module.
func (m *Module) SPIRV() ([]uint32, error) {
	b, err := naga.GenerateSPIRV(m.IR, spirv.Options{Version: spirv.Version1_3})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", m.Name, err)
	}
	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(b)/4)
	for i := range words {
		words[i] = uint32(b[i*4]) |
			uint32(b[i*4+1])<<8 |
			uint32(b[i*4+2])<<16 |
			uint32(b[i*4+3])<<24
	}
	return words, nil
}
