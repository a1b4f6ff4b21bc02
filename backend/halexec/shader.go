// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: MIT

package halexec

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/naga"
	"github.com/gogpu/wgpu/hal"

	"github.com/gogpu/drawq/internal/cache"
)

// builtinWGSL holds the fixed-function shaders: a vertex stage reading
// float32x2 positions, one generating the fallback triangle from the vertex
// index, a white fragment stage and an empty compute kernel.
const builtinWGSL = `
@vertex
fn vs_main(@location(0) position: vec2<f32>) -> @builtin(position) vec4<f32> {
    return vec4<f32>(position, 0.0, 1.0);
}

@vertex
fn vs_builtin(@builtin(vertex_index) index: u32) -> @builtin(position) vec4<f32> {
    let x = select(select(0.5, -0.5, index == 1u), 0.0, index == 0u);
    let y = select(-0.5, 0.5, index == 0u);
    return vec4<f32>(x, y, 0.0, 1.0);
}

@fragment
fn fs_main() -> @location(0) vec4<f32> {
    return vec4<f32>(1.0, 1.0, 1.0, 1.0);
}

@compute @workgroup_size(1)
fn cs_main() {
}
`

// compileSPIRV compiles WGSL source to SPIR-V words.
func compileSPIRV(source string) ([]uint32, error) {
	spirv, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("halexec: compile shader: %w", err)
	}
	if len(spirv)%4 != 0 {
		return nil, fmt.Errorf("halexec: compile shader: SPIR-V length %d is not word aligned", len(spirv))
	}

	// SPIR-V is little-endian 32-bit words.
	words := make([]uint32, len(spirv)/4)
	for i := range words {
		words[i] = uint32(spirv[i*4]) |
			uint32(spirv[i*4+1])<<8 |
			uint32(spirv[i*4+2])<<16 |
			uint32(spirv[i*4+3])<<24
	}
	return words, nil
}

// pipelineKey selects a built-in render pipeline variant.
type pipelineKey struct {
	vertexBuffer bool
	topology     gputypes.PrimitiveTopology
	format       gputypes.TextureFormat
	blend        gputypes.BlendState
	blended      bool
}

// maxBuiltinPipelines bounds the built-in pipeline cache.
const maxBuiltinPipelines = 32

// shaders owns the built-in shader module, layouts and pipelines.
type shaders struct {
	device    hal.Device
	module    hal.ShaderModule
	layout    hal.PipelineLayout
	kernel    hal.ComputePipeline
	pipelines *cache.Cache[pipelineKey, hal.RenderPipeline]

	// retired holds evicted pipelines that submitted work may still use.
	retired []hal.RenderPipeline
}

func newShaders(device hal.Device) (*shaders, error) {
	words, err := compileSPIRV(builtinWGSL)
	if err != nil {
		return nil, err
	}
	s := &shaders{device: device}
	s.pipelines = cache.New(maxBuiltinPipelines, func(_ pipelineKey, p hal.RenderPipeline) {
		s.retired = append(s.retired, p)
	})

	s.module, err = device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  "drawq builtin",
		Source: hal.ShaderSource{SPIRV: words},
	})
	if err != nil {
		return nil, fmt.Errorf("halexec: create shader module: %w", err)
	}
	s.layout, err = device.CreatePipelineLayout(&hal.PipelineLayoutDescriptor{Label: "drawq builtin"})
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("halexec: create pipeline layout: %w", err)
	}
	s.kernel, err = device.CreateComputePipeline(&hal.ComputePipelineDescriptor{
		Label:  "drawq kernel",
		Layout: s.layout,
		Compute: hal.ComputeState{
			Module:     s.module,
			EntryPoint: "cs_main",
		},
	})
	if err != nil {
		s.destroy()
		return nil, fmt.Errorf("halexec: create compute pipeline: %w", err)
	}
	return s, nil
}

// renderPipeline returns the built-in pipeline for key, creating it on
// first use.
func (s *shaders) renderPipeline(key pipelineKey) (hal.RenderPipeline, error) {
	return s.pipelines.GetOrCreate(key, func() (hal.RenderPipeline, error) {
		desc := pipelineDescriptor("drawq builtin", s, key.topology, []gputypes.TextureFormat{key.format},
			gputypes.TextureFormatUndefined, nil, 0)
		if !key.vertexBuffer {
			desc.Vertex.EntryPoint = "vs_builtin"
			desc.Vertex.Buffers = nil
		}
		if key.blended {
			blend := key.blend
			desc.Fragment.Targets[0].Blend = &blend
		}
		p, err := s.device.CreateRenderPipeline(desc)
		if err != nil {
			return nil, fmt.Errorf("halexec: create render pipeline: %w", err)
		}
		return p, nil
	})
}

// collect destroys evicted pipelines. The device must be idle.
func (s *shaders) collect() {
	for _, p := range s.retired {
		s.device.DestroyRenderPipeline(p)
	}
	s.retired = nil
}

// pipelineDescriptor builds a render pipeline on the built-in shaders.
func pipelineDescriptor(
	label string,
	s *shaders,
	topology gputypes.PrimitiveTopology,
	colors []gputypes.TextureFormat,
	depth gputypes.TextureFormat,
	blend *gputypes.BlendState,
	stride uint32,
) *hal.RenderPipelineDescriptor {
	if stride == 0 {
		stride = 8
	}
	targets := make([]gputypes.ColorTargetState, len(colors))
	for i, f := range colors {
		targets[i] = gputypes.ColorTargetState{Format: f, Blend: blend, WriteMask: gputypes.ColorWriteMaskAll}
	}

	desc := &hal.RenderPipelineDescriptor{
		Label:  label,
		Layout: s.layout,
		Vertex: hal.VertexState{
			Module:     s.module,
			EntryPoint: "vs_main",
			Buffers: []gputypes.VertexBufferLayout{{
				ArrayStride: uint64(stride),
				StepMode:    gputypes.VertexStepModeVertex,
				Attributes: []gputypes.VertexAttribute{{
					Format:         gputypes.VertexFormatFloat32x2,
					Offset:         0,
					ShaderLocation: 0,
				}},
			}},
		},
		Primitive: gputypes.PrimitiveState{
			Topology: topology,
		},
		Multisample: gputypes.DefaultMultisampleState(),
		Fragment: &hal.FragmentState{
			Module:     s.module,
			EntryPoint: "fs_main",
			Targets:    targets,
		},
	}
	if depth != gputypes.TextureFormatUndefined {
		desc.DepthStencil = &hal.DepthStencilState{
			Format:            depth,
			DepthWriteEnabled: true,
			DepthCompare:      gputypes.CompareFunctionLess,
		}
	}
	return desc
}

func (s *shaders) destroy() {
	s.pipelines.Clear()
	s.collect()
	if s.kernel != nil {
		s.device.DestroyComputePipeline(s.kernel)
		s.kernel = nil
	}
	if s.layout != nil {
		s.device.DestroyPipelineLayout(s.layout)
		s.layout = nil
	}
	if s.module != nil {
		s.device.DestroyShaderModule(s.module)
		s.module = nil
	}
}
