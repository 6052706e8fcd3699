// Package meshformat reads and writes the persistent, mmap-ready mesh
// blob: a little-endian, fixed-size header followed by the BVH nodes,
// meshlets, vertices and indices in the same byte layout the GPU struct
// uses, so a loaded file needs no further transformation before upload.
package meshformat

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"
	"os"

	"github.com/go-gl/mathgl/mgl32"
	"golang.org/x/sync/errgroup"

	"github.com/dieselvk/radgraph/asset"
)

// header is the fixed-size record at the start of every mesh file.
// Field order and widths are part of the on-disk contract: changing
// them breaks every file written by an older version of this package.
type header struct {
	MeshletCount   uint32
	BvhNodeCount   uint32
	VertexCount    uint32
	IndexByteCount uint32
	BvhDepth       uint32
	AABBMin        [3]float32
	AABBMax        [3]float32
}

const headerSize = 4*5 + 3*4*2 // five u32 + two vec3

// Load reads one mesh file into an *asset.Mesh, validating the LOD
// monotonicity invariant before returning.
func Load(path string) (*asset.Mesh, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("meshformat: open %s: %w", path, err)
	}
	defer f.Close()
	m, err := Read(bufio.NewReader(f))
	if err != nil {
		return nil, fmt.Errorf("meshformat: %s: %w", path, err)
	}
	return m, nil
}

// Read decodes one mesh from r using the on-disk layout described in
// the package doc.
func Read(r io.Reader) (*asset.Mesh, error) {
	var h header
	if err := binary.Read(r, binary.LittleEndian, &h); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	mesh := &asset.Mesh{
		ID:       asset.NewMeshID(),
		AABBMin:  mgl32.Vec3{h.AABBMin[0], h.AABBMin[1], h.AABBMin[2]},
		AABBMax:  mgl32.Vec3{h.AABBMax[0], h.AABBMax[1], h.AABBMax[2]},
		BvhDepth: h.BvhDepth,
		Nodes:    make([]asset.BvhNode, h.BvhNodeCount),
		Meshlets: make([]asset.Meshlet, h.MeshletCount),
		Vertices: make([]asset.Vertex, h.VertexCount),
		Indices:  make([]uint8, h.IndexByteCount),
	}

	for i := range mesh.Nodes {
		if err := readBvhNode(r, &mesh.Nodes[i]); err != nil {
			return nil, fmt.Errorf("bvh node %d: %w", i, err)
		}
	}
	for i := range mesh.Meshlets {
		if err := readMeshlet(r, &mesh.Meshlets[i]); err != nil {
			return nil, fmt.Errorf("meshlet %d: %w", i, err)
		}
	}
	for i := range mesh.Vertices {
		if err := readVertex(r, &mesh.Vertices[i]); err != nil {
			return nil, fmt.Errorf("vertex %d: %w", i, err)
		}
	}
	if _, err := io.ReadFull(r, mesh.Indices); err != nil {
		return nil, fmt.Errorf("indices: %w", err)
	}

	if err := mesh.ValidateBvh(); err != nil {
		return nil, err
	}
	return mesh, nil
}

func readVec3(r io.Reader, out *mgl32.Vec3) error {
	var v [3]float32
	if err := binary.Read(r, binary.LittleEndian, &v); err != nil {
		return err
	}
	*out = mgl32.Vec3{v[0], v[1], v[2]}
	return nil
}

func readVertex(r io.Reader, v *asset.Vertex) error {
	if err := readVec3(r, &v.Position); err != nil {
		return err
	}
	if err := readVec3(r, &v.Normal); err != nil {
		return err
	}
	var uv [2]float32
	if err := binary.Read(r, binary.LittleEndian, &uv); err != nil {
		return err
	}
	v.UV = mgl32.Vec2{uv[0], uv[1]}
	return nil
}

func readMeshlet(r io.Reader, m *asset.Meshlet) error {
	if err := readVec3(r, &m.AABBMin); err != nil {
		return err
	}
	if err := readVec3(r, &m.AABBMax); err != nil {
		return err
	}
	if err := readVec3(r, &m.LODCenter); err != nil {
		return err
	}
	var scalars [3]float32
	if err := binary.Read(r, binary.LittleEndian, &scalars); err != nil {
		return err
	}
	m.LODRadius, m.LODError, m.MaxEdgeLength = scalars[0], scalars[1], scalars[2]
	var offsets [2]uint32
	if err := binary.Read(r, binary.LittleEndian, &offsets); err != nil {
		return err
	}
	m.VertexOffset, m.IndexOffset = offsets[0], offsets[1]
	var counts [2]uint8
	if err := binary.Read(r, binary.LittleEndian, &counts); err != nil {
		return err
	}
	m.VertexCount, m.TriangleCount = counts[0], counts[1]
	return nil
}

func readBvhNode(r io.Reader, n *asset.BvhNode) error {
	for i := 0; i < 8; i++ {
		if err := readVec3(r, &n.ChildAABBMin[i]); err != nil {
			return err
		}
	}
	for i := 0; i < 8; i++ {
		if err := readVec3(r, &n.ChildAABBMax[i]); err != nil {
			return err
		}
	}
	for i := 0; i < 8; i++ {
		if err := readVec3(r, &n.ChildLODCenter[i]); err != nil {
			return err
		}
	}
	if err := binary.Read(r, binary.LittleEndian, &n.ChildLODRadius); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &n.ChildParentError); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &n.ChildOffset); err != nil {
		return err
	}
	if err := binary.Read(r, binary.LittleEndian, &n.ChildCount); err != nil {
		return err
	}
	return nil
}

// LoadAll loads every path concurrently via errgroup, returning meshes
// in the same order as paths. One bad file fails the whole batch:
// errgroup's first error is returned with no meshes, though the other
// loads still run to completion since nothing cancels them.
func LoadAll(paths []string) ([]*asset.Mesh, error) {
	meshes := make([]*asset.Mesh, len(paths))
	var g errgroup.Group
	for i, p := range paths {
		i, p := i, p
		g.Go(func() error {
			m, err := Load(p)
			if err != nil {
				return err
			}
			meshes[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return meshes, nil
}

// Save writes mesh to path in the layout Read expects.
func Save(path string, mesh *asset.Mesh) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("meshformat: create %s: %w", path, err)
	}
	defer f.Close()
	w := bufio.NewWriter(f)
	if err := Write(w, mesh); err != nil {
		return fmt.Errorf("meshformat: %s: %w", path, err)
	}
	return w.Flush()
}

// Write encodes mesh to w using the on-disk layout Read expects.
func Write(w io.Writer, mesh *asset.Mesh) error {
	h := header{
		MeshletCount:   uint32(len(mesh.Meshlets)),
		BvhNodeCount:   uint32(len(mesh.Nodes)),
		VertexCount:    uint32(len(mesh.Vertices)),
		IndexByteCount: uint32(len(mesh.Indices)),
		BvhDepth:       mesh.BvhDepth,
		AABBMin:        [3]float32{mesh.AABBMin.X(), mesh.AABBMin.Y(), mesh.AABBMin.Z()},
		AABBMax:        [3]float32{mesh.AABBMax.X(), mesh.AABBMax.Y(), mesh.AABBMax.Z()},
	}
	if err := binary.Write(w, binary.LittleEndian, &h); err != nil {
		return fmt.Errorf("header: %w", err)
	}
	for i := range mesh.Nodes {
		if err := writeBvhNode(w, &mesh.Nodes[i]); err != nil {
			return fmt.Errorf("bvh node %d: %w", i, err)
		}
	}
	for i := range mesh.Meshlets {
		if err := writeMeshlet(w, &mesh.Meshlets[i]); err != nil {
			return fmt.Errorf("meshlet %d: %w", i, err)
		}
	}
	for i := range mesh.Vertices {
		if err := writeVertex(w, &mesh.Vertices[i]); err != nil {
			return fmt.Errorf("vertex %d: %w", i, err)
		}
	}
	if _, err := w.Write(mesh.Indices); err != nil {
		return fmt.Errorf("indices: %w", err)
	}
	return nil
}

func writeVec3(w io.Writer, v mgl32.Vec3) error {
	arr := [3]float32{v.X(), v.Y(), v.Z()}
	return binary.Write(w, binary.LittleEndian, &arr)
}

func writeVertex(w io.Writer, v *asset.Vertex) error {
	if err := writeVec3(w, v.Position); err != nil {
		return err
	}
	if err := writeVec3(w, v.Normal); err != nil {
		return err
	}
	uv := [2]float32{v.UV.X(), v.UV.Y()}
	return binary.Write(w, binary.LittleEndian, &uv)
}

func writeMeshlet(w io.Writer, m *asset.Meshlet) error {
	if err := writeVec3(w, m.AABBMin); err != nil {
		return err
	}
	if err := writeVec3(w, m.AABBMax); err != nil {
		return err
	}
	if err := writeVec3(w, m.LODCenter); err != nil {
		return err
	}
	scalars := [3]float32{m.LODRadius, m.LODError, m.MaxEdgeLength}
	if err := binary.Write(w, binary.LittleEndian, &scalars); err != nil {
		return err
	}
	offsets := [2]uint32{m.VertexOffset, m.IndexOffset}
	if err := binary.Write(w, binary.LittleEndian, &offsets); err != nil {
		return err
	}
	counts := [2]uint8{m.VertexCount, m.TriangleCount}
	return binary.Write(w, binary.LittleEndian, &counts)
}

func writeBvhNode(w io.Writer, n *asset.BvhNode) error {
	for i := 0; i < 8; i++ {
		if err := writeVec3(w, n.ChildAABBMin[i]); err != nil {
			return err
		}
	}
	for i := 0; i < 8; i++ {
		if err := writeVec3(w, n.ChildAABBMax[i]); err != nil {
			return err
		}
	}
	for i := 0; i < 8; i++ {
		if err := writeVec3(w, n.ChildLODCenter[i]); err != nil {
			return err
		}
	}
	if err := binary.Write(w, binary.LittleEndian, &n.ChildLODRadius); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, &n.ChildParentError); err != nil {
		return err
	}
	if err := binary.Write(w, binary.LittleEndian, &n.ChildOffset); err != nil {
		return err
	}
	return binary.Write(w, binary.LittleEndian, &n.ChildCount)
}
