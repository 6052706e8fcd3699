package cull

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/descriptor"
	"github.com/dieselvk/radgraph/graph"
	"github.com/dieselvk/radgraph/internal/gfxpipe"
	"github.com/dieselvk/radgraph/queue"
)

// bvhPushConstants mirrors original_source/mesh/bvh.rs's PushConstants
// field-for-field in spirit: GpuPtrs to the instance and camera
// buffers, the bindless HZB sampled-image/sampler pair, the queue this
// iteration reads its nodes from and the one it writes surviving
// children into, the deferred-node queue (early phase only), the
// leaf-meshlet output queue, and the scalars the node test needs.
type bvhPushConstants struct {
	Instances  uint64
	Camera     uint64
	Read       uint64
	Write      uint64
	Late       uint64
	Meshlets   uint64
	Hzb        descriptor.ImageId
	HzbSampler descriptor.SamplerId
	Frame      uint64
	ResX       uint32
	ResY       uint32
	Ping       uint32
	_pad       uint32
}

// BvhCull walks one level of the meshlet BVH per dispatch: for every
// node in the level it reads, it tests the node's bounds against the
// frustum and HZB, then either appends surviving interior children to
// the next level's queue or, for a surviving leaf, appends its
// meshlets to the meshlet queue. original_source's mod.rs declares a
// fresh "bvh cull" pass per depth level rather than looping inside one
// dispatch, since each level's node count is only known on the GPU
// (the previous level's dispatch wrote it) — Run reproduces that by
// declaring MaxDepth passes, each one dispatched indirectly from the
// level it reads.
type BvhCull struct {
	device   vk.Device
	table    *descriptor.Table
	layout   vk.PipelineLayout
	pipeline vk.Pipeline
	early    bool
}

// NewBvhCull loads the BVH-cull compute shader and builds its
// pipeline against table's single pipeline layout.
func NewBvhCull(device vk.Device, table *descriptor.Table, loader gfxpipe.Shaders, early bool) (*BvhCull, error) {
	mod, err := loader.Load(device, "passes.mesh.bvh.main")
	if err != nil {
		return nil, err
	}
	pipeline, err := gfxpipe.Compute(device, table.PipelineLayout(), mod)
	if err != nil {
		return nil, err
	}
	return &BvhCull{device: device, table: table, layout: table.PipelineLayout(), pipeline: pipeline, early: early}, nil
}

// Levels is the pair of buffers the per-depth traversal ping-pongs
// between: one dispatch reads A and writes B, the next reads B and
// writes A.
type Levels struct {
	A, B graph.ResBuffer
}

// BvhIO names the buffers and image a BvhCull traversal reads and
// writes across all of its MaxDepth dispatches.
type BvhIO struct {
	Instances  graph.ResBuffer
	Camera     graph.ResBuffer
	Hzb        graph.ResImage
	HzbSampler descriptor.SamplerId
	Levels     Levels
	Late       graph.ResBuffer // early phase only: deferred nodes re-tested next phase
	Meshlets   graph.ResBuffer // output: leaves that survived every test
	MaxDepth   uint32
	Frame      uint64
	Width      uint32
	Height     uint32
}

// Run declares one "bvh cull" pass per BVH level, alternating which of
// Levels.A/B is read and which is written.
func (c *BvhCull) Run(f *graph.Frame, io BvhIO) {
	for level := uint32(0); level < io.MaxDepth; level++ {
		read, write := pickLevel(level, io.Levels.A, io.Levels.B)

		b := f.Pass("bvh cull", queue.Compute)
		b.ReferenceBuffer(io.Instances, vk.PipelineStage2ComputeShaderBit, vk.Access2ShaderStorageReadBit, false)
		b.ReferenceBuffer(io.Camera, vk.PipelineStage2ComputeShaderBit, vk.Access2ShaderStorageReadBit, false)
		b.ReferenceImage(io.Hzb, vk.PipelineStage2ComputeShaderBit, vk.Access2ShaderSampledReadBit, vk.ImageLayoutShaderReadOnlyOptimal, false)
		b.ReferenceBuffer(read, vk.PipelineStage2ComputeShaderBit, indirectAndStorageRead(), false)
		b.ReferenceBuffer(write, vk.PipelineStage2ComputeShaderBit, storageReadWrite(), true)
		if c.early {
			b.ReferenceBuffer(io.Late, vk.PipelineStage2ComputeShaderBit, vk.Access2ShaderStorageWriteBit, true)
		}
		b.ReferenceBuffer(io.Meshlets, vk.PipelineStage2ComputeShaderBit, storageReadWrite(), true)

		ping := level % 2
		b.Build(func(ctx *graph.PassContext) { c.execute(ctx, io, read, write, ping) })
	}
}

func (c *BvhCull) execute(ctx *graph.PassContext, io BvhIO, read, write graph.ResBuffer, ping uint32) {
	buf := ctx.Buf
	hzbView := hzbSampledView(ctx, c.table, io.Hzb)

	instances := ctx.GetBuffer(io.Instances)
	camera := ctx.GetBuffer(io.Camera)
	readBuf := ctx.GetBuffer(read)
	writeBuf := ctx.GetBuffer(write)
	meshlets := ctx.GetBuffer(io.Meshlets)

	var lateAddr uint64
	if c.early {
		lateAddr = ctx.GetBuffer(io.Late).Ptr()
	}

	bindCompute(buf, c.layout, c.table, c.pipeline)

	pc := bvhPushConstants{
		Instances: instances.Ptr(), Camera: camera.Ptr(),
		Read: readBuf.Ptr(), Write: writeBuf.Ptr(),
		Late: lateAddr, Meshlets: meshlets.Ptr(),
		Hzb: hzbView.Handle().SampledID, HzbSampler: io.HzbSampler,
		Frame: io.Frame, ResX: io.Width, ResY: io.Height, Ping: ping,
	}
	gfxpipe.PushConstants(buf, c.layout, vk.ShaderStageComputeBit, &pc)

	vk.CmdDispatchIndirect(buf, readBuf.Buffer, queueDispatchArgsOffset)
}

func (c *BvhCull) Destroy() {
	vk.DestroyPipeline(c.device, c.pipeline, nil)
}

// pickLevel picks which of a/b the current depth level reads from and
// which it writes into: even levels read a and write b, odd levels
// the reverse, so consecutive dispatches never read a buffer the
// previous one is still writing.
func pickLevel[T any](level uint32, a, b T) (read, write T) {
	if level%2 == 1 {
		return b, a
	}
	return a, b
}
