package visbuffer

import (
	"math/bits"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/cull"
	"github.com/dieselvk/radgraph/graph"
	"github.com/dieselvk/radgraph/queue"
	"github.com/dieselvk/radgraph/raster"
	"github.com/dieselvk/radgraph/resource"
)

// Config sizes the transient GPU work queues one frame's setup pass
// allocates. Capacities are entry counts, not byte sizes — setup
// converts each to a buffer size using that queue's header plus
// per-entry stride.
type Config struct {
	BvhQueueCapacity         uint32
	MeshletQueueCapacity     uint32
	RenderListCapacity       uint32
	DeferredInstanceCapacity uint32
}

// DefaultConfig matches setup.rs's own queue sizing order of
// magnitude (its bvh/meshlet queues are sized for roughly 12 million
// entries); this port picks a flat 1<<20-entry cap for the bvh, meshlet
// and render-list queues and 1<<16 entries for deferred instances rather than the original's shared single constant, since this
// port's queues are no longer the same buffer at different offsets.
var DefaultConfig = Config{
	BvhQueueCapacity:         1 << 20,
	MeshletQueueCapacity:     1 << 20,
	RenderListCapacity:       1 << 20,
	DeferredInstanceCapacity: 1 << 16,
}

// Entry strides: every queue this pipeline drains holds, after its
// header, a flat array of (instance index, payload index) pairs — two
// u32s — regardless of whether the payload is a BVH node, a meshlet,
// or a render-list draw entry. No original_source/{bvh,meshlet}.rs
// survived retrieval to ground the exact entry shape against (see
// cull/cull.go's package doc), so this is this port's own, consistent
// choice across every queue kind.
const entryStride = 8

func queueSize(header uint64, capacity uint32) uint64 {
	return header + uint64(capacity)*entryStride
}

// phaseResources is the buffer set one cull phase (early or late)
// drains and produces.
type phaseResources struct {
	bvhA, bvhB graph.ResBuffer
	meshlets   graph.ResBuffer
	hw, sw     graph.ResBuffer
}

// resources is everything one frame's setup pass allocates and
// zeroes: the persistent HZB, the per-frame camera UBO, the
// visibility image, the early/late phase buffer sets, and the two
// hand-off queues between them (deferred instances, deferred BVH
// nodes merged with late's freshly-surfaced instance roots).
//
// Unlike original_source/passes/src/mesh/mod.rs, which reuses one
// buffer set across both phases and re-zeroes its two count words in
// a dedicated "zero render queue" pass between early rasterize and
// late cull, this port gives early and late their own disjoint buffer
// sets, zeroed once here. That sidesteps a same-buffer WAW hazard the
// original's scheme must otherwise rely on an implicit ordering
// guarantee to avoid, at the cost of roughly double the transient
// queue memory per frame — a deliberate simplification given that the
// original's exact per-queue byte layout (bvh.rs, meshlet.rs) did not
// survive retrieval, so reproducing its reuse scheme byte-for-byte
// would be guesswork. It also matches spec.md's step 1 ("Setup pass:
// zero queues") more literally: every queue this frame touches is
// zeroed once, up front, rather than twice at different points in the
// frame.
type resources struct {
	hzb       graph.ResImage
	hzbUninit bool

	camera    graph.ResBuffer
	visbuffer graph.ResImage

	deferredInstances graph.ResBuffer
	lateRoot          graph.ResBuffer

	early, late phaseResources
}

func ceilLog2(n uint32) uint32 {
	if n <= 1 {
		return 0
	}
	return uint32(bits.Len32(n - 1))
}

func floorPow2(n uint32) uint32 {
	if n == 0 {
		return 1
	}
	return uint32(1) << uint32(bits.Len32(n)-1)
}

// hzbExtent computes the persistent HZB's size per spec.md's §2
// glossary entry: power-of-two-floor of half the viewport, in each
// dimension independently.
func hzbExtent(width, height uint32) (w, h uint32) {
	return floorPow2(width / 2), floorPow2(height / 2)
}

func (v *VisBuffer) setup(f *graph.Frame, info RenderInfo) *resources {
	b := f.Pass("visbuffer setup", queue.Compute)

	hzbW, hzbH := hzbExtent(info.Width, info.Height)
	hzbMips := ceilLog2(maxu32(hzbW, hzbH))
	if hzbMips == 0 {
		hzbMips = 1
	}
	hzbDesc := resource.ImageDesc{
		Name:    "persistent hzb",
		Extent:  [3]uint32{hzbW, hzbH, 1},
		Format:  vk.FormatR32Sfloat,
		Usage:   vk.ImageUsageFlagBits(uint32(vk.ImageUsageSampledBit) | uint32(vk.ImageUsageStorageBit) | uint32(vk.ImageUsageTransferDstBit)),
		Mips:    hzbMips,
		Layers:  1,
		Samples: vk.SampleCount1Bit,
	}
	hzbImg := b.PersistentImage(v.hzbToken, "hzb", hzbDesc,
		vk.PipelineStage2TransferBit, vk.Access2TransferWriteBit, vk.ImageLayoutGeneral, true)

	camera := b.Buffer("camera", resource.BufferDesc{
		Size: uint64(cameraDataSize) * 2, Loc: resource.LocUpload,
		Usage: vk.BufferUsageFlagBits(vk.BufferUsageStorageBufferBit),
	}, vk.PipelineStage2TransferBit, vk.Access2TransferWriteBit, true)

	visDesc := resource.ImageDesc{
		Name:    "visbuffer",
		Extent:  [3]uint32{info.Width, info.Height, 1},
		Format:  vk.FormatR64Uint,
		Usage:   vk.ImageUsageFlagBits(uint32(vk.ImageUsageStorageBit) | uint32(vk.ImageUsageTransferDstBit)),
		Mips:    1,
		Layers:  1,
		Samples: vk.SampleCount1Bit,
	}
	vis := b.Image("visbuffer", visDesc, vk.PipelineStage2TransferBit, vk.Access2TransferWriteBit, vk.ImageLayoutGeneral, true)

	cfg := v.cfg
	bvhSize := queueSize(uint64(cull.QueueHeaderBytes), cfg.BvhQueueCapacity)
	meshletSize := queueSize(uint64(cull.QueueHeaderBytes), cfg.MeshletQueueCapacity)
	renderSize := queueSize(uint64(raster.ListHeaderBytes), cfg.RenderListCapacity)
	deferredSize := queueSize(uint64(cull.QueueHeaderBytes), cfg.DeferredInstanceCapacity)

	mkQueue := func(name string, size uint64) graph.ResBuffer {
		return b.Buffer(name, resource.BufferDesc{
			Size: size, Loc: resource.LocGPU,
			Usage: vk.BufferUsageFlagBits(uint32(vk.BufferUsageStorageBufferBit) | uint32(vk.BufferUsageIndirectBufferBit) | uint32(vk.BufferUsageTransferDstBit)),
		}, vk.PipelineStage2TransferBit, vk.Access2TransferWriteBit, true)
	}

	res := &resources{
		hzb:       hzbImg,
		camera:    camera,
		visbuffer: vis,

		deferredInstances: mkQueue("deferred instances", deferredSize),
		lateRoot:          mkQueue("late bvh root", bvhSize),

		early: phaseResources{
			bvhA: mkQueue("early bvh a", bvhSize), bvhB: mkQueue("early bvh b", bvhSize),
			meshlets: mkQueue("early meshlets", meshletSize),
			hw:       mkQueue("early hw", renderSize), sw: mkQueue("early sw", renderSize),
		},
		late: phaseResources{
			bvhB: mkQueue("late bvh b", bvhSize),
			meshlets: mkQueue("late meshlets", meshletSize),
			hw:       mkQueue("late hw", renderSize), sw: mkQueue("late sw", renderSize),
		},
	}

	cd := newCameraData(float32(info.Width)/float32(info.Height), info.Camera)
	prevCd := newCameraData(float32(info.Width)/float32(info.Height), v.prevCamera)
	v.prevCamera = info.Camera

	// Paired with each queue is the header size its producer/consumer
	// pair agrees on — cull's bvh/meshlet/deferred-instance queues share
	// one header shape, the hardware/software render lists share
	// raster's own (see cull/cull.go's and raster.go's header docs).
	headeredQueues := []struct {
		buf    graph.ResBuffer
		header uint64
	}{
		{res.deferredInstances, uint64(cull.QueueHeaderBytes)},
		{res.lateRoot, uint64(cull.QueueHeaderBytes)},
		{res.early.bvhA, uint64(cull.QueueHeaderBytes)},
		{res.early.bvhB, uint64(cull.QueueHeaderBytes)},
		{res.early.meshlets, uint64(cull.QueueHeaderBytes)},
		{res.early.hw, uint64(raster.ListHeaderBytes)},
		{res.early.sw, uint64(raster.ListHeaderBytes)},
		{res.late.bvhB, uint64(cull.QueueHeaderBytes)},
		{res.late.meshlets, uint64(cull.QueueHeaderBytes)},
		{res.late.hw, uint64(raster.ListHeaderBytes)},
		{res.late.sw, uint64(raster.ListHeaderBytes)},
	}

	b.Build(func(ctx *graph.PassContext) {
		res.hzbUninit = ctx.IsUninitImage(res.hzb)

		camBuf := ctx.GetBuffer(res.camera)
		writePOD(camBuf.Mapped[:cameraDataSize], cd)
		writePOD(camBuf.Mapped[cameraDataSize:2*cameraDataSize], prevCd)

		// A fresh HZB starts zeroed: a min-reduced depth of 0 means "no
		// occluder recorded yet", so the first frame's early cull treats
		// everything as potentially visible rather than wrongly culling
		// against stale or garbage data. The zero value of ClearColorValue
		// is all-zero regardless of which of its union members a given
		// binding exposes, so a bare zero literal is safe here without
		// assuming a particular field name.
		if res.hzbUninit {
			hzb := ctx.GetImage(res.hzb)
			zero := vk.ClearColorValue{}
			vk.CmdClearColorImage(ctx.Buf, hzb.Image, vk.ImageLayoutGeneral,
				&zero, 1, []vk.ImageSubresourceRange{fullRange(vk.ImageAspectColorBit)})
		}

		// The visibility image clears to all-ones: an atomic min over
		// (depth, meshlet, triangle) packed into the high bits makes
		// 0xFFFFFFFFFFFFFFFF the "nothing drawn here" sentinel, sorting
		// after every real fragment's packed value.
		visImg := ctx.GetImage(res.visbuffer)
		allOnes := maxColorValue()
		vk.CmdClearColorImage(ctx.Buf, visImg.Image, vk.ImageLayoutGeneral,
			&allOnes, 1, []vk.ImageSubresourceRange{fullRange(vk.ImageAspectColorBit)})

		// Every queue's header starts zeroed: a live count of 0 and a
		// dispatch/draw command of (0,0,0), which Vulkan defines as a
		// valid no-op indirect command — so a queue nothing writes to
		// this frame drains harmlessly rather than needing an explicit
		// (x,1,1) placeholder the way setup.rs's CPU-side zeroing used.
		for _, q := range headeredQueues {
			buf := ctx.GetBuffer(q.buf)
			vk.CmdFillBuffer(ctx.Buf, buf.Buffer, 0, q.header, 0)
		}
	})

	return res
}

func fullRange(aspect vk.ImageAspectFlagBits) vk.ImageSubresourceRange {
	return vk.ImageSubresourceRange{
		AspectMask:     vk.ImageAspectFlags(aspect),
		BaseMipLevel:   0,
		LevelCount:     vk.RemainingMipLevels,
		BaseArrayLayer: 0,
		LayerCount:     vk.RemainingArrayLayers,
	}
}

// maxColorValue reinterprets an all-0xFF 16-byte pattern as a
// ClearColorValue. VkClearColorValue is a 16-byte union whatever shape
// a given binding declares for it (raw bytes, or named float32/int32/
// uint32 array fields over the same storage), so writing through a
// same-sized byte array and reinterpreting is safe without depending
// on which field name this binding happens to expose — unlike a
// struct-literal with a named field, which would only compile against
// one specific declared shape.
func maxColorValue() vk.ClearColorValue {
	var raw [16]byte
	for i := range raw {
		raw[i] = 0xFF
	}
	var out vk.ClearColorValue
	if unsafe.Sizeof(out) == unsafe.Sizeof(raw) {
		out = *(*vk.ClearColorValue)(unsafe.Pointer(&raw))
	}
	return out
}

func maxu32(a, b uint32) uint32 {
	if a > b {
		return a
	}
	return b
}
