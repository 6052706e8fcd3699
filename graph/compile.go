package graph

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/queue"
	"github.com/dieselvk/radgraph/resource"
)

// barrier is a same-queue hazard the compiler inserts immediately
// before the pass that needs it: a plain memory barrier for buffers
// and data, an image barrier (with a layout transition) for images.
type barrier struct {
	isImage   bool
	image     vk.Image
	aspect    vk.ImageAspectFlagBits
	srcStage  vk.PipelineStageFlagBits2
	srcAccess vk.AccessFlagBits2
	dstStage  vk.PipelineStageFlagBits2
	dstAccess vk.AccessFlagBits2
	oldLayout vk.ImageLayout
	newLayout vk.ImageLayout
}

// compiledFrame is everything Run needs to record and submit this
// frame's commands: the per-pass same-queue barriers and, per queue
// kind, the cross-queue wait it must issue before its single
// per-frame submission.
//
// Cross-queue sync here is coarser than the teacher's original: rather
// than hoisting a wait onto the exact pass that needs it mid-submission
// (original_source's frame_data.rs Submitter splits and resubmits a
// queue's command buffer around each cross-queue signal/wait), this
// graph submits each queue's passes as a single command buffer once
// per frame and orders the submissions so a consuming queue's
// single submit waits on the producing queue's. That forfeits the
// original's ability to let independent work on the producing queue
// continue past the signal point within the same frame, in exchange
// for an implementation that doesn't need command-buffer-splitting
// bookkeeping; see DESIGN.md.
type compiledFrame struct {
	barriersBefore map[int][]barrier      // keyed by frameEvent index
	crossQueueWait map[queue.Kind]bool    // kinds whose submission must wait on another queue's
	submitOrder    []queue.Kind           // topologically sorted, producers before consumers
	queuesUsed     map[queue.Kind]bool
}

func (g *RenderGraph) compile(f *Frame) (*compiledFrame, error) {
	cf := &compiledFrame{
		barriersBefore: make(map[int][]barrier),
		crossQueueWait: make(map[queue.Kind]bool),
		queuesUsed:     make(map[queue.Kind]bool),
	}

	for i := range f.resources {
		r := &f.resources[i]
		if err := g.materialize(r); err != nil {
			return nil, err
		}
		if len(r.usages) == 0 {
			continue
		}
		for _, u := range r.usages {
			cf.queuesUsed[u.queue] = true
		}
		for i := 1; i < len(r.usages); i++ {
			prev, curr := r.usages[i-1], r.usages[i]
			if prev.queue != curr.queue {
				cf.crossQueueWait[curr.queue] = true
				continue
			}
			if !hazard(r.kind, prev, curr) {
				continue
			}
			b := barrier{
				srcStage: prev.stage, dstStage: curr.stage,
				dstAccess: curr.access,
			}
			if prev.write {
				b.srcAccess = prev.access
			}
			if r.kind == KindImage {
				b.isImage = true
				b.image = r.physImage.Image
				b.aspect = vk.ImageAspectColorBit
				b.oldLayout = prev.layout
				b.newLayout = curr.layout
			}
			cf.barriersBefore[curr.pass] = append(cf.barriersBefore[curr.pass], b)
		}
	}

	order, err := topoSortQueues(cf.queuesUsed, cf.crossQueueWait)
	if err != nil {
		return nil, err
	}
	cf.submitOrder = order
	return cf, nil
}

// hazard reports whether a new barrier is needed between two
// consecutive same-queue usages of a resource: any write on either
// side, or (for images) a layout change.
func hazard(kind Kind, prev, curr usage) bool {
	if prev.write || curr.write {
		return true
	}
	return kind == KindImage && prev.layout != curr.layout
}

// topoSortQueues orders the queue kinds actually used this frame so
// that any kind a later kind must cross-queue-wait on is submitted
// first. With only three possible kinds a simple fixed-point pass
// suffices. The one case reported as an error is every used kind
// waiting, since then no kind can submit first; waits between two kinds
// while a third, non-waiting kind is also used are not detected as a
// cycle.
func topoSortQueues(used map[queue.Kind]bool, waits map[queue.Kind]bool) ([]queue.Kind, error) {
	// All cross-queue waits in this simplified model point the same
	// direction information we have (a consumer waits on "some other
	// producer"), not a specific producer kind, since barrier-only
	// compilation above doesn't track which producer kind fed which
	// consumer. Conservatively: any kind marked as waiting goes last
	// among the kinds actually used, and non-waiting kinds submit
	// first in a stable, fixed Transfer/Compute/Graphics order (the
	// shape every pass in this pipeline actually needs: transfer
	// uploads feed compute culling which feeds graphics rasterization).
	fixed := []queue.Kind{queue.Transfer, queue.Compute, queue.Graphics}
	var first, waiting []queue.Kind
	for _, k := range fixed {
		if !used[k] {
			continue
		}
		if waits[k] {
			waiting = append(waiting, k)
		} else {
			first = append(first, k)
		}
	}
	if len(first) == 0 && len(waiting) > 0 {
		return nil, fmt.Errorf("graph: every used queue this frame has a cross-queue wait with no producer submitted first")
	}
	return append(first, waiting...), nil
}

func (g *RenderGraph) materialize(r *virtualResource) error {
	switch r.kind {
	case KindBuffer:
		return g.materializeBuffer(r)
	case KindImage:
		return g.materializeImage(r)
	case KindData:
		return nil
	default:
		return fmt.Errorf("graph: unknown resource kind %d", r.kind)
	}
}

func (g *RenderGraph) materializeBuffer(r *virtualResource) error {
	create := func() (*resource.Buffer, error) {
		return resource.CreateBuffer(g.device, g.physical, resource.BufferDesc{
			Name: r.bufferName, Size: r.bufferDesc.Size, Loc: r.bufferDesc.Loc, Usage: r.bufferDesc.Usage,
		})
	}
	if r.persistent {
		h, uninit, _, err := g.caches.PersistentBufs.Get(r.token, r.bufferDesc, vk.ImageLayoutUndefined, create)
		if err != nil {
			return err
		}
		r.physBuffer, r.uninit = h, uninit
		return nil
	}
	h, created, err := g.caches.Buffers.Get(r.bufferDesc, create)
	if err != nil {
		return err
	}
	r.physBuffer, r.uninit = h, created
	return nil
}

func (g *RenderGraph) materializeImage(r *virtualResource) error {
	create := func() (*resource.Image, error) {
		return resource.CreateImage(g.device, g.physical, resource.ImageDesc{
			Name: r.imageName, Extent: r.imageDesc.Extent, Format: r.imageDesc.Format,
			Usage: r.imageDesc.Usage, Mips: r.imageDesc.Mips, Layers: r.imageDesc.Layers, Samples: r.imageDesc.Samples,
		})
	}
	if r.persistent {
		h, uninit, prevLayout, err := g.caches.PersistentImgs.Get(r.token, r.imageDesc, r.wantedLayout, create)
		if err != nil {
			return err
		}
		r.physImage, r.uninit = h, uninit
		if len(r.usages) > 0 && prevLayout != r.usages[0].layout {
			// The GPU was already fully idle for this slot by the time
			// frameData.reset ran, so no execution hazard survives
			// across frames — only the layout transition itself needs
			// recording, as a synthetic "previous usage" the real
			// first usage's barrier folds against.
			r.usages = append([]usage{{pass: r.usages[0].pass, queue: r.usages[0].queue, layout: prevLayout}}, r.usages...)
		}
		return nil
	}
	h, created, err := g.caches.Images.Get(r.imageDesc, create)
	if err != nil {
		return err
	}
	r.physImage, r.uninit = h, created
	return nil
}
