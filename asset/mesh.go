// Package asset holds the scene-side data model: the CPU-resident
// Mesh/Meshlet/BvhNode shapes the asset pipeline builds offline and the
// GPU-driven cull/raster passes read at runtime, plus the Scene/Instance
// bookkeeping the render graph drives one frame at a time.
package asset

import (
	"github.com/go-gl/mathgl/mgl32"
)

// BvhInner marks a BvhNode child slot as an interior node rather than a
// meshlet-range leaf, mirroring import/mesh/bvh.rs's child_counts[i] ==
// u8::MAX sentinel.
const BvhInner = 0xFF

// Vertex is the GPU-resident per-vertex attribute layout: position,
// normal and a single UV set, 32 bytes and naturally 4-byte aligned so
// it can be read directly out of an mmap'd asset file with no padding
// or endian conversion on a little-endian host.
type Vertex struct {
	Position mgl32.Vec3
	Normal   mgl32.Vec3
	UV       mgl32.Vec2
}

// Meshlet is one cluster of at most 64 vertices and 124 triangles, the
// unit both the hardware (mesh-shader) and software (compute) rasterizer
// paths draw. VertexOffset/IndexOffset are byte offsets into the owning
// Mesh's Vertices/Indices slices; Indices are meshlet-local (0..63).
type Meshlet struct {
	AABBMin, AABBMax mgl32.Vec3
	LODCenter        mgl32.Vec3
	LODRadius        float32
	LODError         float32 // this meshlet's own simplification error, in world units
	MaxEdgeLength    float32
	VertexOffset     uint32
	IndexOffset      uint32
	VertexCount      uint8
	TriangleCount    uint8
}

// BvhNode is one level of the 8-way meshlet BVH: eight child slots, each
// either an interior node (ChildOffset indexes another BvhNode) or a
// meshlet-range leaf (ChildOffset is the first meshlet, ChildCount the
// run length) depending on whether ChildCount[i] == BvhInner.
//
// Invariant: ChildParentError[i] is strictly greater than every error
// value reachable beneath child i — the LOD graph is monotonic, so a
// coarse-to-fine traversal can stop descending as soon as a node's
// bound projects to an acceptable screen error.
type BvhNode struct {
	ChildAABBMin   [8]mgl32.Vec3
	ChildAABBMax   [8]mgl32.Vec3
	ChildLODCenter [8]mgl32.Vec3
	ChildLODRadius [8]float32
	ChildParentError [8]float32
	ChildOffset    [8]uint32
	ChildCount     [8]uint8
}

// IsInner reports whether child slot i of the node holds another
// BvhNode index rather than a meshlet range.
func (n *BvhNode) IsInner(i int) bool { return n.ChildCount[i] == BvhInner }

// IsLeaf reports whether child slot i holds a meshlet range:
// ChildOffset[i] is the first meshlet index, ChildCount[i] the count.
func (n *BvhNode) IsLeaf(i int) bool { return n.ChildCount[i] != BvhInner && n.ChildCount[i] > 0 }

// Mesh is one imported asset: its 8-way BVH, the meshlets the BVH's
// leaves range over, and the vertex/index data every meshlet indexes
// into. ID is stable across a process's lifetime so instances and
// caches can key off it without holding a live pointer; it is not
// stored in the on-disk format, so every load mints a fresh one.
type Mesh struct {
	ID       MeshID
	Nodes    []BvhNode
	Meshlets []Meshlet
	Vertices []Vertex
	Indices  []uint8 // meshlet-local indices, u8 per spec.md's on-disk format
	AABBMin  mgl32.Vec3
	AABBMax  mgl32.Vec3
	BvhDepth uint32
}

// ValidateBvh checks the LOD-monotonicity invariant: every child's
// parent-error bound must exceed that child's own LOD error (for leaf
// ranges, the worst LODError among the meshlets in range). It's run by
// the meshformat loader after reading a mesh off disk and by asset
// construction tests; it never runs on the hot path.
func (m *Mesh) ValidateBvh() error {
	for ni := range m.Nodes {
		node := &m.Nodes[ni]
		for i := 0; i < 8; i++ {
			switch {
			case node.IsInner(i):
				child := &m.Nodes[node.ChildOffset[i]]
				if worst := worstChildError(child); worst >= node.ChildParentError[i] {
					return errInvariant("bvh node", ni, i, worst, node.ChildParentError[i])
				}
			case node.IsLeaf(i):
				start, count := node.ChildOffset[i], uint32(node.ChildCount[i])
				for mi := start; mi < start+count; mi++ {
					if err := m.Meshlets[mi].LODError; err >= node.ChildParentError[i] {
						return errInvariant("meshlet", ni, int(mi), err, node.ChildParentError[i])
					}
				}
			}
		}
	}
	return nil
}

func worstChildError(n *BvhNode) float32 {
	var worst float32
	for i := 0; i < 8; i++ {
		if n.ChildCount[i] == 0 {
			continue
		}
		if e := n.ChildParentError[i]; e > worst {
			worst = e
		}
	}
	return worst
}
