package graph

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/arena"
	"github.com/dieselvk/radgraph/cache"
	"github.com/dieselvk/radgraph/descriptor"
	"github.com/dieselvk/radgraph/internal/rgerr"
	"github.com/dieselvk/radgraph/queue"
	"github.com/dieselvk/radgraph/resource"
)

// FramesInFlight re-exports cache.FramesInFlight under the name every
// caller of this package actually reaches for.
const FramesInFlight = cache.FramesInFlight

// Caches bundles every resource-reuse tier the compiler materializes
// virtual resources through, mirroring the teacher's Caches struct one
// field at a time: per-frame upload scratch, transient buffers and
// images shared within a single frame, persistent buffers and images
// that outlive it, and a unique cache for image views (a view's
// identity is fully determined by its source image + subresource
// range, so there's exactly one live view per shape).
type Caches struct {
	UploadBuffers   [FramesInFlight]*cache.ResourceCache[resource.UnnamedBufferDesc, resource.BufferHandle, *resource.Buffer]
	Buffers         *cache.ResourceCache[resource.UnnamedBufferDesc, resource.BufferHandle, *resource.Buffer]
	PersistentBufs  *cache.PersistentCache[resource.UnnamedBufferDesc, resource.BufferHandle, *resource.Buffer]
	ReadbackBufs    [FramesInFlight]*cache.PersistentCache[resource.UnnamedBufferDesc, resource.BufferHandle, *resource.Buffer]
	Images          *cache.ResourceCache[resource.UnnamedImageDesc, resource.ImageHandle, *resource.Image]
	PersistentImgs  *cache.PersistentCache[resource.UnnamedImageDesc, resource.ImageHandle, *resource.Image]
	ImageViews      *cache.UniqueCache[resource.UnnamedImageViewDesc, resource.ImageViewHandle, *resource.ImageView]
}

func newCaches() Caches {
	return Caches{
		UploadBuffers: [FramesInFlight]*cache.ResourceCache[resource.UnnamedBufferDesc, resource.BufferHandle, *resource.Buffer]{
			cache.NewResourceCache[resource.UnnamedBufferDesc, resource.BufferHandle, *resource.Buffer](),
			cache.NewResourceCache[resource.UnnamedBufferDesc, resource.BufferHandle, *resource.Buffer](),
		},
		Buffers:        cache.NewResourceCache[resource.UnnamedBufferDesc, resource.BufferHandle, *resource.Buffer](),
		PersistentBufs: cache.NewPersistentCache[resource.UnnamedBufferDesc, resource.BufferHandle, *resource.Buffer](),
		ReadbackBufs: [FramesInFlight]*cache.PersistentCache[resource.UnnamedBufferDesc, resource.BufferHandle, *resource.Buffer]{
			cache.NewPersistentCache[resource.UnnamedBufferDesc, resource.BufferHandle, *resource.Buffer](),
			cache.NewPersistentCache[resource.UnnamedBufferDesc, resource.BufferHandle, *resource.Buffer](),
		},
		Images:         cache.NewResourceCache[resource.UnnamedImageDesc, resource.ImageHandle, *resource.Image](),
		PersistentImgs: cache.NewPersistentCache[resource.UnnamedImageDesc, resource.ImageHandle, *resource.Image](),
		ImageViews:     cache.NewUniqueCache[resource.UnnamedImageViewDesc, resource.ImageViewHandle, *resource.ImageView](),
	}
}

func (c *Caches) reset() {
	for i := range c.UploadBuffers {
		c.UploadBuffers[i].Reset()
	}
	c.Buffers.Reset()
	c.PersistentBufs.Reset()
	for i := range c.ReadbackBufs {
		c.ReadbackBufs[i].Reset()
	}
	c.Images.Reset()
	c.PersistentImgs.Reset()
	c.ImageViews.Reset()
}

func (c *Caches) destroy() {
	for i := range c.UploadBuffers {
		c.UploadBuffers[i].Destroy()
	}
	c.Buffers.Destroy()
	c.PersistentBufs.Destroy()
	for i := range c.ReadbackBufs {
		c.ReadbackBufs[i].Destroy()
	}
	c.ImageViews.Destroy()
	c.Images.Destroy()
	c.PersistentImgs.Destroy()
}

// frameData is the per-in-flight-frame GPU state: the timeline point
// the previous use of this slot's command pool finished at, and the
// command pool itself.
type frameData struct {
	sync queue.SyncPoint
	pool *commandPool
}

func newFrameData(device vk.Device, family uint32) (*frameData, error) {
	pool, err := newCommandPool(device, family)
	if err != nil {
		return nil, err
	}
	return &frameData{pool: pool}, nil
}

// reset waits for the GPU to finish this slot's previous frame before
// handing its command pool back out for reuse.
func (f *frameData) reset(device vk.Device, sem vk.Semaphore) error {
	if err := f.sync.Wait(device, sem); err != nil {
		return err
	}
	return f.pool.reset(device)
}

func (f *frameData) destroy(device vk.Device) {
	f.pool.destroy(device)
}

// commandPool is a thin, single-queue command buffer allocator: Next
// hands out a fresh primary buffer from a pool that's cheaply reset
// in bulk once a frame's work has retired.
type commandPool struct {
	handle vk.CommandPool
	bufs   []vk.CommandBuffer
	cursor int
}

func newCommandPool(device vk.Device, family uint32) (*commandPool, error) {
	var handle vk.CommandPool
	ret := vk.CreateCommandPool(device, &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
		QueueFamilyIndex: family,
	}, nil, &handle)
	if err := rgerr.FromResult(ret); err != nil {
		return nil, err
	}
	return &commandPool{handle: handle}, nil
}

func (p *commandPool) next(device vk.Device) (vk.CommandBuffer, error) {
	if p.cursor < len(p.bufs) {
		b := p.bufs[p.cursor]
		p.cursor++
		return b, nil
	}
	bufs := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(device, &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        p.handle,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, bufs)
	if err := rgerr.FromResult(ret); err != nil {
		return nil, err
	}
	p.bufs = append(p.bufs, bufs[0])
	p.cursor++
	return bufs[0], nil
}

func (p *commandPool) reset(device vk.Device) error {
	ret := vk.ResetCommandPool(device, p.handle, 0)
	p.cursor = 0
	return rgerr.FromResult(ret)
}

func (p *commandPool) destroy(device vk.Device) {
	vk.DestroyCommandPool(device, p.handle, nil)
}

// RenderGraph owns everything that survives across frames: the
// double-buffered command pools, the deferred-destruction ring, the
// resource caches, and the graphics, compute and transfer queues
// command buffers are submitted to. One RenderGraph serves the whole application's
// lifetime; Frame() is called once per frame drawn.
type RenderGraph struct {
	device   vk.Device
	physical vk.PhysicalDevice
	table    *descriptor.Table

	queues queue.Queues[*queue.Data]
	// one frameData ring per queue kind, since each queue's command
	// pool and last-submitted SyncPoint are independent.
	frames [FramesInFlight]queue.Queues[*frameData]

	deleter      *Deleter
	caches       Caches
	currFrame    int
	resourceBase int
}

// Families names the queue family index backing each queue Kind. A
// renderer that only exposes one queue (the common case on most
// hardware for compute/transfer) passes the same family for all three
// and New still keeps graphics/compute/transfer logically distinct at
// the graph level — they just end up time-sliced on one hardware
// queue instead of running concurrently.
type Families struct {
	Graphics, Compute, Transfer uint32
}

func New(device vk.Device, physical vk.PhysicalDevice, table *descriptor.Table, families Families) (*RenderGraph, error) {
	gfx, err := queue.New(device, queue.Graphics, families.Graphics)
	if err != nil {
		return nil, err
	}
	comp, err := queue.New(device, queue.Compute, families.Compute)
	if err != nil {
		return nil, err
	}
	xfer, err := queue.New(device, queue.Transfer, families.Transfer)
	if err != nil {
		return nil, err
	}

	var frames [FramesInFlight]queue.Queues[*frameData]
	for i := range frames {
		gfxFd, err := newFrameData(device, families.Graphics)
		if err != nil {
			return nil, err
		}
		compFd, err := newFrameData(device, families.Compute)
		if err != nil {
			return nil, err
		}
		xferFd, err := newFrameData(device, families.Transfer)
		if err != nil {
			return nil, err
		}
		frames[i] = queue.Queues[*frameData]{Graphics: gfxFd, Compute: compFd, Transfer: xferFd}
	}

	return &RenderGraph{
		device:   device,
		physical: physical,
		table:    table,
		queues:   queue.Queues[*queue.Data]{Graphics: gfx, Compute: comp, Transfer: xfer},
		frames:   frames,
		deleter:  NewDeleter(),
		caches:   newCaches(),
	}, nil
}

// Frame begins recording a new frame's passes against a fresh arena.
// The arena backs the frame's pass list and virtual resource list and
// must outlive the call to Run.
func (g *RenderGraph) Frame(a *arena.Arena) *Frame {
	return &Frame{
		graph: g,
		arena: a,
	}
}

func (g *RenderGraph) nextFrame(resourceCount int) {
	g.currFrame ^= 1
	g.resourceBase += resourceCount
}

func (g *RenderGraph) Destroy() {
	vk.DeviceWaitIdle(g.device)
	g.deleter.Destroy()
	for _, fs := range g.frames {
		fs.Graphics.destroy(g.device)
		fs.Compute.destroy(g.device)
		fs.Transfer.destroy(g.device)
	}
	g.queues.Graphics.Destroy(g.device)
	g.queues.Compute.Destroy(g.device)
	g.queues.Transfer.Destroy(g.device)
	g.caches.destroy()
}
