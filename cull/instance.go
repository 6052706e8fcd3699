package cull

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/descriptor"
	"github.com/dieselvk/radgraph/graph"
	"github.com/dieselvk/radgraph/internal/gfxpipe"
	"github.com/dieselvk/radgraph/queue"
)

// instancePushConstants is this port's design for InstanceCull's wire
// layout (no original_source/instance.rs survives to ground it
// against) — a GpuPtr to the instance array and camera, the bindless
// HZB sampled-image/sampler pair, the BVH root queue this dispatch
// seeds, the deferred-instance queue it reads from or writes to
// depending on phase, and the scalars the frustum/HZB test needs.
type instancePushConstants struct {
	Instances  uint64
	Camera     uint64
	Queue      uint64
	Late       uint64
	Hzb        descriptor.ImageId
	HzbSampler descriptor.SamplerId
	Frame      uint64
	ResX       uint32
	ResY       uint32
	Count      uint32
	Early      uint32
}

// InstanceCull tests every scene instance's bounds against the camera
// frustum and, conservatively, the HZB, seeding the BVH root queue
// with the instances that survive. The early phase runs over the full
// instance list and defers occlusion-failed instances into the late
// queue for a second chance once the phase's HZB has been refreshed
// with this frame's own geometry; the late phase drains exactly that
// deferred queue instead of the full list, so its dispatch is indirect
// rather than a CPU-known workgroup count.
type InstanceCull struct {
	device   vk.Device
	table    *descriptor.Table
	layout   vk.PipelineLayout
	pipeline vk.Pipeline
	early    bool
}

// NewInstanceCull loads the instance-cull compute shader and builds
// its pipeline against table's single pipeline layout.
func NewInstanceCull(device vk.Device, table *descriptor.Table, loader gfxpipe.Shaders, early bool) (*InstanceCull, error) {
	mod, err := loader.Load(device, "passes.mesh.instance.main")
	if err != nil {
		return nil, err
	}
	pipeline, err := gfxpipe.Compute(device, table.PipelineLayout(), mod)
	if err != nil {
		return nil, err
	}
	return &InstanceCull{device: device, table: table, layout: table.PipelineLayout(), pipeline: pipeline, early: early}, nil
}

// InstanceIO names the buffers and image one InstanceCull dispatch
// reads and writes.
type InstanceIO struct {
	Instances  graph.ResBuffer
	Camera     graph.ResBuffer
	Hzb        graph.ResImage
	HzbSampler descriptor.SamplerId
	Queue      graph.ResBuffer // BVH root queue this dispatch seeds
	Late       graph.ResBuffer // early: written with deferred instances; late: read as the drain source
	Count      uint32          // scene instance count, used only by the early (direct-dispatch) phase
	Frame      uint64
	Width      uint32
	Height     uint32
}

// Run declares the instance-cull pass.
func (c *InstanceCull) Run(f *graph.Frame, io InstanceIO) {
	b := f.Pass("instance cull", queue.Compute)
	b.ReferenceBuffer(io.Instances, vk.PipelineStage2ComputeShaderBit, vk.Access2ShaderStorageReadBit, false)
	b.ReferenceBuffer(io.Camera, vk.PipelineStage2ComputeShaderBit, vk.Access2ShaderStorageReadBit, false)
	b.ReferenceImage(io.Hzb, vk.PipelineStage2ComputeShaderBit, vk.Access2ShaderSampledReadBit, vk.ImageLayoutShaderReadOnlyOptimal, false)
	b.ReferenceBuffer(io.Queue, vk.PipelineStage2ComputeShaderBit, vk.Access2ShaderStorageWriteBit, true)
	if c.early {
		b.ReferenceBuffer(io.Late, vk.PipelineStage2ComputeShaderBit, vk.Access2ShaderStorageWriteBit, true)
	} else {
		b.ReferenceBuffer(io.Late, vk.PipelineStage2ComputeShaderBit, indirectAndStorageRead(), false)
	}
	b.Build(func(ctx *graph.PassContext) { c.execute(ctx, io) })
}

func (c *InstanceCull) execute(ctx *graph.PassContext, io InstanceIO) {
	buf := ctx.Buf
	hzbView := hzbSampledView(ctx, c.table, io.Hzb)

	instances := ctx.GetBuffer(io.Instances)
	camera := ctx.GetBuffer(io.Camera)
	out := ctx.GetBuffer(io.Queue)
	late := ctx.GetBuffer(io.Late)

	bindCompute(buf, c.layout, c.table, c.pipeline)

	var early uint32
	if c.early {
		early = 1
	}
	pc := instancePushConstants{
		Instances: instances.Ptr(), Camera: camera.Ptr(),
		Queue: out.Ptr(), Late: late.Ptr(),
		Hzb: hzbView.Handle().SampledID, HzbSampler: io.HzbSampler,
		Frame: io.Frame, ResX: io.Width, ResY: io.Height,
		Count: io.Count, Early: early,
	}
	gfxpipe.PushConstants(buf, c.layout, vk.ShaderStageComputeBit, &pc)

	if c.early {
		workgroups := (io.Count + 63) / 64
		vk.CmdDispatch(buf, workgroups, 1, 1)
	} else {
		vk.CmdDispatchIndirect(buf, late.Buffer, queueDispatchArgsOffset)
	}
}

func (c *InstanceCull) Destroy() {
	vk.DestroyPipeline(c.device, c.pipeline, nil)
}
