// Package gfxpipe is the small pipeline/shader-loading toolkit every
// pass package builds on: compute and graphics pipeline creation
// against the one bindless descriptor-table pipeline layout, SPIR-V
// module loading by dotted shader name, and push-constant packing.
// Grounded on the teacher's shader.go LoadShaderModule (ReadFile +
// vk.CreateShaderModule) and original_source's
// lib/graph/src/util/pipeline.rs Device::compute_pipeline/
// graphics_pipeline helpers.
package gfxpipe

import (
	"fmt"
	"os"
	"strings"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/internal/rgerr"
)

// Shaders loads compiled SPIR-V modules by the dotted name convention
// original_source's ShaderInfo{shader: "passes.mesh.hzb.main"} uses —
// "." becomes a path separator under Root, with a ".spv" suffix.
type Shaders struct {
	Root string
}

func (s Shaders) path(name string) string {
	return s.Root + "/" + strings.ReplaceAll(name, ".", "/") + ".spv"
}

// Load reads and creates the shader module named name.
func (s Shaders) Load(device vk.Device, name string) (vk.ShaderModule, error) {
	data, err := os.ReadFile(s.path(name))
	if err != nil {
		return nil, fmt.Errorf("gfxpipe: loading shader %q: %w", name, err)
	}
	if len(data)%4 != 0 {
		return nil, fmt.Errorf("gfxpipe: shader %q is not a whole number of 32-bit words", name)
	}
	code := unsafe.Slice((*uint32)(unsafe.Pointer(&data[0])), len(data)/4)

	var module vk.ShaderModule
	ret := vk.CreateShaderModule(device, &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(data)),
		PCode:    code,
	}, nil, &module)
	if err := rgerr.FromResult(ret); err != nil {
		return nil, err
	}
	return module, nil
}

// Compute creates a single compute pipeline against layout from the
// entry point in module, and destroys module afterward — the pipeline
// keeps its own copy of the compiled code.
func Compute(device vk.Device, layout vk.PipelineLayout, module vk.ShaderModule) (vk.Pipeline, error) {
	defer vk.DestroyShaderModule(device, module, nil)
	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateComputePipelines(device, nil, 1, []vk.ComputePipelineCreateInfo{{
		SType:  vk.StructureTypeComputePipelineCreateInfo,
		Layout: layout,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageComputeBit,
			Module: module,
			PName:  safeString("main"),
		},
	}}, nil, pipelines)
	if err := rgerr.FromResult(ret); err != nil {
		return nil, err
	}
	return pipelines[0], nil
}

func safeString(s string) string {
	return s + "\x00"
}

// MeshGraphicsDesc describes the mesh-shader graphics pipeline the
// hardware rasterization path builds: task (optional) + mesh +
// fragment stages, no vertex input state (mesh shaders generate their
// own primitives), no color or depth attachments — the fragment stage
// writes the visibility image through a bindless storage-image atomic
// rather than attachment blending or a depth test, per the render
// graph's dynamic-rendering-only pipeline shape
// (lib/graph/src/util/pipeline.rs's GraphicsPipelineDesc, stripped of
// the color_attachments/depth_attachment/blend fields this pipeline
// doesn't use).
type MeshGraphicsDesc struct {
	Task     vk.ShaderModule // nil skips the task stage (one task invocation per meshlet either way)
	Mesh     vk.ShaderModule
	Fragment vk.ShaderModule
}

// MeshGraphics creates a single mesh-shader graphics pipeline against
// layout, consuming (and destroying) the shader modules in desc.
func MeshGraphics(device vk.Device, layout vk.PipelineLayout, desc MeshGraphicsDesc) (vk.Pipeline, error) {
	var stages []vk.PipelineShaderStageCreateInfo
	if desc.Task != nil {
		stages = append(stages, vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageTaskBitExt,
			Module: desc.Task,
			PName:  safeString("main"),
		})
	}
	stages = append(stages,
		vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageMeshBitExt,
			Module: desc.Mesh,
			PName:  safeString("main"),
		},
		vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: desc.Fragment,
			PName:  safeString("main"),
		},
	)
	defer func() {
		if desc.Task != nil {
			vk.DestroyShaderModule(device, desc.Task, nil)
		}
		vk.DestroyShaderModule(device, desc.Mesh, nil)
		vk.DestroyShaderModule(device, desc.Fragment, nil)
	}()

	rendering := vk.PipelineRenderingCreateInfo{
		SType: vk.StructureTypePipelineRenderingCreateInfo,
	}
	raster := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(vk.CullModeBackBit),
		FrontFace:   vk.FrontFaceClockwise,
		LineWidth:   1,
	}
	depth := vk.PipelineDepthStencilStateCreateInfo{
		SType:           vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthCompareOp:  vk.CompareOpLessOrEqual,
		MinDepthBounds:  0,
		MaxDepthBounds:  1,
	}
	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
	}
	blend := vk.PipelineColorBlendStateCreateInfo{
		SType: vk.StructureTypePipelineColorBlendStateCreateInfo,
	}
	viewport := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}
	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	pipelines := make([]vk.Pipeline, 1)
	ret := vk.CreateGraphicsPipelines(device, nil, 1, []vk.GraphicsPipelineCreateInfo{{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		PNext:                unsafe.Pointer(&rendering),
		StageCount:           uint32(len(stages)),
		PStages:              stages,
		PViewportState:       &viewport,
		PRasterizationState:  &raster,
		PDepthStencilState:   &depth,
		PMultisampleState:    &multisample,
		PColorBlendState:     &blend,
		PDynamicState:        &dynamic,
		Layout:               layout,
	}}, nil, pipelines)
	if err := rgerr.FromResult(ret); err != nil {
		return nil, err
	}
	return pipelines[0], nil
}

// PushConstants copies sizeof(*v) bytes from v into the command
// buffer's push-constant range — the Go equivalent of bytemuck's
// bytes_of for a plain struct of value fields.
func PushConstants[T any](buf vk.CommandBuffer, layout vk.PipelineLayout, stage vk.ShaderStageFlagBits, v *T) {
	size := uint32(unsafe.Sizeof(*v))
	vk.CmdPushConstants(buf, layout, vk.ShaderStageFlags(stage), 0, size, unsafe.Pointer(v))
}
