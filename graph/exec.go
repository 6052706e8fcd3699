package graph

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/descriptor"
	"github.com/dieselvk/radgraph/internal/rgerr"
	"github.com/dieselvk/radgraph/queue"
	"github.com/dieselvk/radgraph/resource"
)

// PassContext is handed to every pass callback: the command buffer
// it records into, accessors for the resources it declared, and the
// escape hatches (Delete, Caches) a pass needs for anything the
// declarative Buffer/Image API doesn't cover.
type PassContext struct {
	Device  vk.Device
	Buf     vk.CommandBuffer
	Table   *descriptor.Table
	base    int
	resources []virtualResource
	caches  *Caches
	deleter *Deleter
}

func (c *PassContext) resolve(id int) *virtualResource {
	return &c.resources[id-c.base]
}

// GetBuffer returns the physical handle a declared buffer materialized to.
func (c *PassContext) GetBuffer(id ResBuffer) resource.BufferHandle {
	return c.resolve(id.id).physBuffer
}

// GetImage returns the physical handle a declared image materialized to.
func (c *PassContext) GetImage(id ResImage) resource.ImageHandle {
	return c.resolve(id.id).physImage
}

// IsUninitBuffer reports whether a buffer's contents must be treated
// as garbage — true the first time it's requested, and any time a
// persistent buffer's descriptor changed shape since last frame.
func (c *PassContext) IsUninitBuffer(id ResBuffer) bool { return c.resolve(id.id).uninit }

func (c *PassContext) IsUninitImage(id ResImage) bool { return c.resolve(id.id).uninit }

func (c *PassContext) Delete(res Deletable) { c.deleter.Push(res) }

func (c *PassContext) Caches() *Caches { return c.caches }

// GetData reads and clears a transient CPU-side value set by an
// earlier pass this frame via SetData.
func GetData[T any](c *PassContext, id GetId[T]) T {
	r := c.resolve(id.id)
	if !r.dataInit {
		panic("graph: transient data has not been initialized")
	}
	v := r.data.(T)
	r.data = nil
	r.dataInit = false
	return v
}

// RefData reads a transient CPU-side value without clearing it, for
// passes that only need to borrow it.
func RefData[T any](c *PassContext, id RefId[T]) T {
	r := c.resolve(id.id)
	if !r.dataInit {
		panic("graph: transient data has not been initialized")
	}
	return r.data.(T)
}

// SetData fills a transient CPU-side slot for a later pass to read.
func SetData[T any](c *PassContext, id SetId[T], v T) {
	r := c.resolve(id.id)
	r.data = v
	r.dataInit = true
}

// Run compiles and executes the frame: materializes every declared
// resource, plans same-queue barriers and cross-queue submission
// order, records each pass's commands into its queue's command
// buffer, and submits every queue used this frame.
func (f *Frame) Run() error {
	g := f.graph
	device := g.device

	kinds := [3]queue.Kind{queue.Graphics, queue.Compute, queue.Transfer}
	frames := [3]*frameData{g.frames[g.currFrame].Graphics, g.frames[g.currFrame].Compute, g.frames[g.currFrame].Transfer}
	for i, fs := range frames {
		sem := g.queues.Get(kinds[i]).Semaphore()
		if err := fs.reset(device, sem); err != nil {
			return err
		}
	}
	g.deleter.Next()
	g.caches.reset()

	cf, err := g.compile(f)
	if err != nil {
		return err
	}

	bufs := queue.Queues[vk.CommandBuffer]{}
	started := map[queue.Kind]bool{}
	ensureStarted := func(k queue.Kind) (vk.CommandBuffer, error) {
		if started[k] {
			return *bufs.Get(k), nil
		}
		fd := g.frames[g.currFrame].Get(k)
		buf, err := (*fd).pool.next(device)
		if err != nil {
			return nil, err
		}
		ret := vk.BeginCommandBuffer(buf, &vk.CommandBufferBeginInfo{
			SType: vk.StructureTypeCommandBufferBeginInfo,
			Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
		})
		if err := rgerr.FromResult(ret); err != nil {
			return nil, err
		}
		*bufs.Get(k) = buf
		started[k] = true
		return buf, nil
	}

	for i, ev := range f.events {
		if ev.kind != eventPass {
			continue
		}
		buf, err := ensureStarted(ev.pass.queueKind)
		if err != nil {
			return err
		}
		for _, b := range cf.barriersBefore[i] {
			emitBarrier(device, buf, b)
		}
		ev.pass.callback(&PassContext{
			Device:    device,
			Buf:       buf,
			Table:     g.table,
			base:      g.resourceBase,
			resources: f.resources,
			caches:    &g.caches,
			deleter:   g.deleter,
		})
	}

	var zeroBuf vk.CommandBuffer
	points := queue.Queues[queue.SyncPoint]{}
	for _, k := range cf.submitOrder {
		buf := *bufs.Get(k)
		if buf == zeroBuf {
			continue
		}
		if err := rgerr.FromResult(vk.EndCommandBuffer(buf)); err != nil {
			return err
		}

		var wait queue.QueueWait
		if cf.crossQueueWait[k] {
			for _, other := range cf.submitOrder {
				if other == k {
					continue
				}
				p := points.Get(other)
				if p.Value == 0 {
					continue
				}
				stage := &queue.SyncStage{Point: *p, Stage: vk.PipelineStage2AllCommandsBit}
				switch other {
				case queue.Graphics:
					wait.Graphics = stage
				case queue.Compute:
					wait.Compute = stage
				case queue.Transfer:
					wait.Transfer = stage
				}
			}
		}

		var noFence vk.Fence
		qd := g.queues.Get(k)
		point, err := (*qd).Submit(&g.queues, wait, []vk.CommandBuffer{buf}, nil, noFence)
		if err != nil {
			return fmt.Errorf("graph: submitting %s queue: %w", k, err)
		}
		*points.Get(k) = point
		if k == queue.Graphics {
			g.frames[g.currFrame].Graphics.sync = point
		} else if k == queue.Compute {
			g.frames[g.currFrame].Compute.sync = point
		} else {
			g.frames[g.currFrame].Transfer.sync = point
		}
	}

	g.nextFrame(len(f.resources))
	return nil
}

func emitBarrier(device vk.Device, buf vk.CommandBuffer, b barrier) {
	if b.isImage {
		img := vk.ImageMemoryBarrier2{
			SType:               vk.StructureTypeImageMemoryBarrier2,
			SrcStageMask:        vk.PipelineStageFlags2(b.srcStage),
			SrcAccessMask:       vk.AccessFlags2(b.srcAccess),
			DstStageMask:        vk.PipelineStageFlags2(b.dstStage),
			DstAccessMask:       vk.AccessFlags2(b.dstAccess),
			OldLayout:           b.oldLayout,
			NewLayout:           b.newLayout,
			SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
			DstQueueFamilyIndex: vk.QueueFamilyIgnored,
			Image:               b.image,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(b.aspect),
				LevelCount: vk.RemainingMipLevels,
				LayerCount: vk.RemainingArrayLayers,
			},
		}
		vk.CmdPipelineBarrier2(buf, &vk.DependencyInfo{
			SType:                   vk.StructureTypeDependencyInfo,
			ImageMemoryBarrierCount: 1,
			PImageMemoryBarriers:    []vk.ImageMemoryBarrier2{img},
		})
		return
	}
	mem := vk.MemoryBarrier2{
		SType:         vk.StructureTypeMemoryBarrier2,
		SrcStageMask:  vk.PipelineStageFlags2(b.srcStage),
		SrcAccessMask: vk.AccessFlags2(b.srcAccess),
		DstStageMask:  vk.PipelineStageFlags2(b.dstStage),
		DstAccessMask: vk.AccessFlags2(b.dstAccess),
	}
	vk.CmdPipelineBarrier2(buf, &vk.DependencyInfo{
		SType:              vk.StructureTypeDependencyInfo,
		MemoryBarrierCount: 1,
		PMemoryBarriers:    []vk.MemoryBarrier2{mem},
	})
}
