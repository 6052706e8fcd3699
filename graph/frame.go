package graph

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/arena"
	"github.com/dieselvk/radgraph/cache"
	"github.com/dieselvk/radgraph/queue"
	"github.com/dieselvk/radgraph/resource"
)

type eventKind int

const (
	eventRegionStart eventKind = iota
	eventRegionEnd
	eventPass
)

type frameEvent struct {
	kind eventKind
	name string
	pass *pass
}

type pass struct {
	queueKind queue.Kind
	callback  func(*PassContext)
}

// Frame is a single frame's worth of declared passes and the virtual
// resources they reference, built up by repeated calls to Pass and run
// once with Run. A Frame is only ever used from the thread that
// obtained it from RenderGraph.Frame.
type Frame struct {
	graph     *RenderGraph
	arena     *arena.Arena
	events    []frameEvent
	resources []virtualResource
}

func (f *Frame) Arena() *arena.Arena { return f.arena }

// Pass begins declaring a new pass named name, running on queue kind
// qk. Callers fill in its resource declarations via the returned
// PassBuilder and finish with PassBuilder.Build.
func (f *Frame) Pass(name string, qk queue.Kind) *PassBuilder {
	f.events = append(f.events, frameEvent{kind: eventRegionStart, name: name})
	return &PassBuilder{frame: f, queueKind: qk}
}

// Delete queues res for destruction once every in-flight frame that
// might still reference it has retired.
func (f *Frame) Delete(res Deletable) {
	f.graph.deleter.Push(res)
}

// PassBuilder accumulates one pass's resource declarations before it
// is committed to the frame with Build.
type PassBuilder struct {
	frame     *Frame
	queueKind queue.Kind
}

func (b *PassBuilder) resolve(idx int) *virtualResource {
	return &b.frame.resources[idx-b.frame.graph.resourceBase]
}

// Buffer declares a new transient buffer this pass produces.
func (b *PassBuilder) Buffer(name string, desc resource.BufferDesc, stage vk.PipelineStageFlagBits2, access vk.AccessFlagBits2, write bool) ResBuffer {
	pidx := len(b.frame.events)
	realID := len(b.frame.resources)
	b.frame.resources = append(b.frame.resources, virtualResource{
		kind:       KindBuffer,
		lifetime:   singular(pidx),
		bufferDesc: desc.Unnamed(),
		bufferName: name,
		usages:     []usage{{pass: pidx, queue: b.queueKind, stage: stage, access: access, write: write}},
	})
	return ResBuffer{id: realID + b.frame.graph.resourceBase}
}

// Image declares a new transient image this pass produces.
func (b *PassBuilder) Image(name string, desc resource.ImageDesc, stage vk.PipelineStageFlagBits2, access vk.AccessFlagBits2, layout vk.ImageLayout, write bool) ResImage {
	pidx := len(b.frame.events)
	realID := len(b.frame.resources)
	b.frame.resources = append(b.frame.resources, virtualResource{
		kind:      KindImage,
		lifetime:  singular(pidx),
		imageDesc: desc.Unnamed(),
		imageName: name,
		usages:    []usage{{pass: pidx, queue: b.queueKind, stage: stage, access: access, layout: layout, write: write}},
	})
	return ResImage{id: realID + b.frame.graph.resourceBase}
}

// PersistentBuffer declares a buffer that survives across frames under
// token, recreated only if desc no longer matches what was last
// requested for it.
func (b *PassBuilder) PersistentBuffer(token cache.Token, name string, desc resource.BufferDesc, stage vk.PipelineStageFlagBits2, access vk.AccessFlagBits2, write bool) ResBuffer {
	pidx := len(b.frame.events)
	realID := len(b.frame.resources)
	b.frame.resources = append(b.frame.resources, virtualResource{
		kind:       KindBuffer,
		lifetime:   singular(pidx),
		bufferDesc: desc.Unnamed(),
		bufferName: name,
		persistent: true,
		token:      token,
		usages:     []usage{{pass: pidx, queue: b.queueKind, stage: stage, access: access, write: write}},
	})
	return ResBuffer{id: realID + b.frame.graph.resourceBase}
}

// PersistentImage declares an image that survives across frames under
// token — the HZB pyramid and any accumulation buffer use this.
func (b *PassBuilder) PersistentImage(token cache.Token, name string, desc resource.ImageDesc, stage vk.PipelineStageFlagBits2, access vk.AccessFlagBits2, layout vk.ImageLayout, write bool) ResImage {
	pidx := len(b.frame.events)
	realID := len(b.frame.resources)
	b.frame.resources = append(b.frame.resources, virtualResource{
		kind:         KindImage,
		lifetime:     singular(pidx),
		imageDesc:    desc.Unnamed(),
		imageName:    name,
		persistent:   true,
		token:        token,
		wantedLayout: layout,
		usages:       []usage{{pass: pidx, queue: b.queueKind, stage: stage, access: access, layout: layout, write: write}},
	})
	return ResImage{id: realID + b.frame.graph.resourceBase}
}

// ReferenceBuffer records that this pass also reads/writes a buffer
// produced by an earlier pass, extending its lifetime to cover this
// pass and adding its access to the usage chain the compiler plans
// barriers from.
func (b *PassBuilder) ReferenceBuffer(id ResBuffer, stage vk.PipelineStageFlagBits2, access vk.AccessFlagBits2, write bool) {
	pidx := len(b.frame.events)
	r := b.resolve(id.id)
	r.lifetime.End = pidx
	r.usages = append(r.usages, usage{pass: pidx, queue: b.queueKind, stage: stage, access: access, write: write})
}

// ReferenceImage records that this pass also reads/writes an image
// produced by an earlier pass (see ReferenceBuffer).
func (b *PassBuilder) ReferenceImage(id ResImage, stage vk.PipelineStageFlagBits2, access vk.AccessFlagBits2, layout vk.ImageLayout, write bool) {
	pidx := len(b.frame.events)
	r := b.resolve(id.id)
	r.lifetime.End = pidx
	r.usages = append(r.usages, usage{pass: pidx, queue: b.queueKind, stage: stage, access: access, layout: layout, write: write})
}

// DataOutput reserves a slot this pass will fill with a CPU-side value
// via PassContext.SetData, for a later pass to read with GetData.
func DataOutput[T any](b *PassBuilder) (SetId[T], GetId[T]) {
	pidx := len(b.frame.events)
	realID := len(b.frame.resources)
	b.frame.resources = append(b.frame.resources, virtualResource{
		kind:     KindData,
		lifetime: singular(pidx),
	})
	id := realID + b.frame.graph.resourceBase
	return SetId[T]{id: id}, GetId[T]{id: id}
}

// BufferDesc returns the descriptor a previously-declared buffer will
// materialize with, letting later logic in the same pass branch on
// its shape (e.g. picking a workgroup count from its size).
func (b *PassBuilder) BufferDesc(id ResBuffer) resource.UnnamedBufferDesc {
	return b.resolve(id.id).bufferDesc
}

func (b *PassBuilder) ImageDesc(id ResImage) resource.UnnamedImageDesc {
	return b.resolve(id.id).imageDesc
}

// PersistentImageDesc looks up the descriptor a persistent image was
// last created with, without declaring a dependency on it — passes
// use this to decide ahead of time whether a resize is about to
// happen.
func (b *PassBuilder) PersistentImageDesc(c *Caches, token cache.Token) (resource.UnnamedImageDesc, bool) {
	return c.PersistentImgs.GetDesc(token)
}

// Build commits the pass with the given callback, to run once the
// frame executes.
func (b *PassBuilder) Build(callback func(*PassContext)) {
	b.frame.events = append(b.frame.events, frameEvent{
		kind: eventPass,
		pass: &pass{queueKind: b.queueKind, callback: callback},
	})
	b.frame.events = append(b.frame.events, frameEvent{kind: eventRegionEnd})
}
