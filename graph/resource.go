package graph

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/cache"
	"github.com/dieselvk/radgraph/queue"
	"github.com/dieselvk/radgraph/resource"
)

// Kind distinguishes the handful of virtual resource shapes a pass can
// declare. Go generics can't dispatch a method per instantiation of
// Res[T] the way the teacher's VirtualResource trait does, so every
// virtualResource carries its Kind explicitly and the ID accessors in
// frame.go assert it matches what the caller asked for.
type Kind int

const (
	KindBuffer Kind = iota
	KindImage
	KindData
)

// Lifetime is the inclusive pass-index range [Start, End] a virtual
// resource is alive for: Start is the declaring pass and each later
// reference moves End to its own pass. compile does not consult it.
type Lifetime struct {
	Start, End int
}

func singular(pass int) Lifetime { return Lifetime{Start: pass, End: pass} }

// usage records one pass's access to a resource, feeding both layout
// transitions (for images) and barrier/sync planning.
type usage struct {
	pass   int
	queue  queue.Kind
	stage  vk.PipelineStageFlagBits2
	access vk.AccessFlagBits2
	layout vk.ImageLayout // only meaningful for KindImage
	write  bool
}

// virtualResource is the single concrete representation behind every
// Res[T]/SetId[T]/GetId[T] — the teacher's Rust original splits this
// by an enum of resource structs (VirtualResourceType); here the
// fields that don't apply to a given Kind simply stay zero.
type virtualResource struct {
	kind     Kind
	lifetime Lifetime

	// KindBuffer
	bufferDesc resource.UnnamedBufferDesc
	bufferName string

	// KindImage
	imageDesc resource.UnnamedImageDesc
	imageName string

	// Persistent resources carry a token minted by the caller; a zero
	// Token (persistent == false) means transient-for-this-frame.
	persistent   bool
	token        cache.Token
	wantedLayout vk.ImageLayout

	// Filled in by compile(): the physical resource this virtual
	// resource materialized to, and whether its contents must be
	// treated as garbage by the first pass that touches it.
	physBuffer resource.BufferHandle
	physImage  resource.ImageHandle
	uninit     bool

	usages []usage

	// KindData
	data     any
	dataInit bool
}
