package graph

import "github.com/dieselvk/radgraph/cache"

// Deletable is anything a pass can hand to Frame.delete/PassContext.delete
// once it stops needing it — the actual vkDestroy* call is deferred
// until the GPU is guaranteed to be done with it.
type Deletable interface {
	Destroy()
}

// Deleter defers destruction of resources a pass retires mid-frame by
// FramesInFlight generations, so a command buffer still in flight on
// the GPU never has a resource pulled out from under it. A ring of
// FramesInFlight buckets stands in for the teacher's per-frame arena
// bump-and-wrap list.
type Deleter struct {
	buckets [cache.FramesInFlight][]Deletable
	cursor  int
}

func NewDeleter() *Deleter {
	return &Deleter{}
}

// Push queues res for destruction once the current frame's slot comes
// back around the ring.
func (d *Deleter) Push(res Deletable) {
	d.buckets[d.cursor] = append(d.buckets[d.cursor], res)
}

// Next advances the ring, destroying whatever was queued
// FramesInFlight generations ago (now guaranteed complete on every
// queue) before handing the slot back out for this frame's deletions.
func (d *Deleter) Next() {
	d.cursor = (d.cursor + 1) % cache.FramesInFlight
	for _, res := range d.buckets[d.cursor] {
		res.Destroy()
	}
	d.buckets[d.cursor] = d.buckets[d.cursor][:0]
}

// Destroy drains every bucket unconditionally; called only once the
// device is idle, at shutdown.
func (d *Deleter) Destroy() {
	for i := range d.buckets {
		for _, res := range d.buckets[i] {
			res.Destroy()
		}
		d.buckets[i] = nil
	}
}
