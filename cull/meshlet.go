package cull

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/descriptor"
	"github.com/dieselvk/radgraph/graph"
	"github.com/dieselvk/radgraph/internal/gfxpipe"
	"github.com/dieselvk/radgraph/queue"
)

// meshletPushConstants is this port's design for MeshletCull's wire
// layout (no original_source/meshlet.rs survives to ground it
// against) — a GpuPtr to the instance and camera buffers, the
// bindless HZB pair, the meshlet queue BvhCull produced, and the two
// output render lists this phase partitions survivors into.
type meshletPushConstants struct {
	Instances  uint64
	Camera     uint64
	Meshlets   uint64
	HW         uint64
	SW         uint64
	Hzb        descriptor.ImageId
	HzbSampler descriptor.SamplerId
	Frame      uint64
	ResX       uint32
	ResY       uint32
}

// MeshletCull runs the final, finest-grained test over every meshlet
// BvhCull's leaves produced: frustum, backface (cluster-cone) and
// pixel-contribution rejection, then an HZB occlusion test, matching
// the test sequence the mesh visibility pipeline section describes.
// Survivors are partitioned by estimated screen footprint into the
// hardware render list (mesh-shader indirect draw) for clusters large
// enough to amortize mesh-shader overhead, and the software list
// (compute rasterization) for the small ones where a full mesh-shader
// invocation would be wasted.
type MeshletCull struct {
	device   vk.Device
	table    *descriptor.Table
	layout   vk.PipelineLayout
	pipeline vk.Pipeline
}

// NewMeshletCull loads the meshlet-cull compute shader and builds its
// pipeline against table's single pipeline layout.
func NewMeshletCull(device vk.Device, table *descriptor.Table, loader gfxpipe.Shaders) (*MeshletCull, error) {
	mod, err := loader.Load(device, "passes.mesh.meshlet.main")
	if err != nil {
		return nil, err
	}
	pipeline, err := gfxpipe.Compute(device, table.PipelineLayout(), mod)
	if err != nil {
		return nil, err
	}
	return &MeshletCull{device: device, table: table, layout: table.PipelineLayout(), pipeline: pipeline}, nil
}

// MeshletIO names the buffers and image one MeshletCull dispatch reads
// and writes.
type MeshletIO struct {
	Instances  graph.ResBuffer
	Camera     graph.ResBuffer
	Hzb        graph.ResImage
	HzbSampler descriptor.SamplerId
	Meshlets   graph.ResBuffer // input: BvhCull's leaf output queue
	HW         graph.ResBuffer // output: mesh-shader indirect draw list
	SW         graph.ResBuffer // output: compute-rasterization indirect dispatch list
	Frame      uint64
	Width      uint32
	Height     uint32
}

// Run declares the meshlet-cull pass, dispatched indirectly from the
// meshlet queue's own header since its count is only known on the GPU.
func (c *MeshletCull) Run(f *graph.Frame, io MeshletIO) {
	b := f.Pass("meshlet cull", queue.Compute)
	b.ReferenceBuffer(io.Instances, vk.PipelineStage2ComputeShaderBit, vk.Access2ShaderStorageReadBit, false)
	b.ReferenceBuffer(io.Camera, vk.PipelineStage2ComputeShaderBit, vk.Access2ShaderStorageReadBit, false)
	b.ReferenceImage(io.Hzb, vk.PipelineStage2ComputeShaderBit, vk.Access2ShaderSampledReadBit, vk.ImageLayoutShaderReadOnlyOptimal, false)
	b.ReferenceBuffer(io.Meshlets, vk.PipelineStage2ComputeShaderBit, indirectAndStorageRead(), false)
	b.ReferenceBuffer(io.HW, vk.PipelineStage2ComputeShaderBit, vk.Access2ShaderStorageWriteBit, true)
	b.ReferenceBuffer(io.SW, vk.PipelineStage2ComputeShaderBit, vk.Access2ShaderStorageWriteBit, true)
	b.Build(func(ctx *graph.PassContext) { c.execute(ctx, io) })
}

func (c *MeshletCull) execute(ctx *graph.PassContext, io MeshletIO) {
	buf := ctx.Buf
	hzbView := hzbSampledView(ctx, c.table, io.Hzb)

	instances := ctx.GetBuffer(io.Instances)
	camera := ctx.GetBuffer(io.Camera)
	meshlets := ctx.GetBuffer(io.Meshlets)
	hw := ctx.GetBuffer(io.HW)
	sw := ctx.GetBuffer(io.SW)

	bindCompute(buf, c.layout, c.table, c.pipeline)

	pc := meshletPushConstants{
		Instances: instances.Ptr(), Camera: camera.Ptr(),
		Meshlets: meshlets.Ptr(), HW: hw.Ptr(), SW: sw.Ptr(),
		Hzb: hzbView.Handle().SampledID, HzbSampler: io.HzbSampler,
		Frame: io.Frame, ResX: io.Width, ResY: io.Height,
	}
	gfxpipe.PushConstants(buf, c.layout, vk.ShaderStageComputeBit, &pc)

	vk.CmdDispatchIndirect(buf, meshlets.Buffer, queueDispatchArgsOffset)
}

func (c *MeshletCull) Destroy() {
	vk.DestroyPipeline(c.device, c.pipeline, nil)
}
