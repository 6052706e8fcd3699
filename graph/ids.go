// Package graph implements the per-frame render graph: passes declare
// the virtual resources they read and write, the graph compiles those
// declarations into physical resources (materialized through the
// three cache.* tiers), a cross-queue sync plan, and finally executes
// the frame's command buffers. Grounded on
// original_source/crates/rad-graph/src/graph/mod.rs's RenderGraph,
// Frame, PassBuilder, PassContext and the Res/SetId/GetId/RefId ID
// types, with original_source's lib/graph/src/graph/frame_data.rs
// Submitter grounding the per-pass barrier/semaphore emission in
// exec.go.
package graph

// ResBuffer and ResImage identify a GPU virtual resource produced by
// some pass earlier in the frame. The teacher's Rust original has a
// single generic Res<T: VirtualResource> whose T statically picks
// which resource kind it names; Go generics can't dispatch a method's
// behavior per type argument the way a Rust trait can; with only two
// GPU resource kinds in this graph (buffers and images — image views
// are always requested fresh from a Res[Image], never passed between
// passes on their own), two concrete ID types are clearer than a
// phantom-typed generic that can't actually specialize anything.
type ResBuffer struct{ id int }
type ResImage struct{ id int }

func (r ResBuffer) raw() int { return r.id }
func (r ResImage) raw() int  { return r.id }

// SetId identifies a slot this pass can write CPU-side transient data
// into; GetId identifies the matching slot for whichever pass reads it
// back. Splitting write/read into distinct types keeps a pass from
// reading data it never declared an edge for. These stay generic,
// unlike ResBuffer/ResImage, because T here is genuinely just a
// payload type with no per-kind behavior to dispatch.
type SetId[T any] struct{ id int }

type GetId[T any] struct{ id int }

// RefId is a GetId that has been downgraded to a read-only reference —
// used by passes that only need to borrow transient data without
// taking ownership of (and clearing) the slot.
type RefId[T any] struct{ id int }

func (g GetId[T]) ToRef() RefId[T] { return RefId[T]{id: g.id} }
