// Package raster dispatches the two rasterization paths the meshlet
// cull stage partitions survivors into: a hardware mesh-shader path
// for clusters large enough on screen to amortize task/mesh shader
// overhead, and a software compute path for the small ones where that
// overhead would dominate. Both paths write the same 64-bit visibility
// image with an atomic min, so whichever path a meshlet was routed
// through, the result is indistinguishable at the image.
//
// Grounded on cull's render-list shape (meshlet.go partitions into HW
// and SW lists with a queue-style count header) and
// original_source/crates/lib/graph/src/util/pipeline.rs's
// GraphicsPipelineDesc for the mesh-shader pipeline's fixed state; no
// original_source/mesh/raster.rs survives in the retrieved corpus, so
// the push-constant and render-list layouts are this port's own design
// built from the dispatch shape cull.MeshletCull already establishes.
package raster

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/descriptor"
)

// Config exposes the tuning the hardware/software rasterizer partition
// depends on as ordinary fields rather than a hardcoded constant.
// NewHardware and NewSoftware keep the Config they are given, but
// nothing passes it on: no pipeline is specialized with it, the meshlet
// cull stage that sorts meshlets into the hardware and software render
// lists takes no threshold, and neither rasterizer checks which Config
// a render list was produced under.
type Config struct {
	// PixelAreaThreshold is the projected meshlet pixel area, in
	// pixels, below which mesh-shader setup cost is judged to exceed
	// the rasterization work it would do — meshlets under this are
	// expected in the software list, at or above it in the hardware
	// list.
	PixelAreaThreshold float32
}

// DefaultConfig matches the "roughly a few pixels per triangle"
// guidance the rasterization stage's own description gives.
var DefaultConfig = Config{PixelAreaThreshold: 4}

// Render lists reuse the offsets of cull's own GPU work-queue header: a
// live count at offset 0, an indirect-command triplet (x, y, z) at
// offset 4, without the trailing pad word cull's header carries (16
// bytes rather than cull.QueueHeaderBytes' 20). original_source/mesh/mod.rs instead keeps one combined
// queue buffer and reads the hardware path's draw command and the
// software path's dispatch command from two different fixed offsets
// within it (8 and 24); this port has no combined buffer to split
// that way since cull.MeshletCull already commits to two separate
// graph.ResBuffers (IO.HW, IO.SW) — so each gets its own header at the
// same offset cull's other queues use, rather than carrying the
// original's offset split forward into a single-buffer layout this
// port doesn't have.
const (
	listCountOffset = 0
	listArgsOffset  = 4
)

// ListHeaderBytes exposes the render list's header size to callers
// outside the package (visbuffer sizes every render list buffer it
// allocates against it): the count word plus the 3xu32 indirect
// command that follows it.
const ListHeaderBytes = listArgsOffset + 12

// visibilityAccess is the access pattern every rasterizer pass takes
// on the shared 64-bit visibility image: read-modify-write via atomic
// min, never a plain store, so both the early and late passes of the
// same frame can safely interleave without a barrier between them.
func visibilityAccess() vk.AccessFlagBits2 {
	return vk.AccessFlagBits2(uint64(vk.Access2ShaderStorageReadBit) | uint64(vk.Access2ShaderStorageWriteBit))
}

// pushConstants is shared by both rasterization paths: GpuPtrs to the
// instance/camera buffers and the render list this dispatch drains,
// the bindless visibility-image storage ID, and the resolution the
// shader needs to convert clip-space to the image's pixel grid.
type pushConstants struct {
	Instances  uint64
	Camera     uint64
	RenderList uint64
	Visibility descriptor.StorageImageId
	ResX       uint32
	ResY       uint32
	Frame      uint64
}
