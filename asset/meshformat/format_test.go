package meshformat

import (
	"bytes"
	"testing"

	"github.com/go-gl/mathgl/mgl32"

	"github.com/dieselvk/radgraph/asset"
)

func sampleMesh() *asset.Mesh {
	return &asset.Mesh{
		AABBMin:  mgl32.Vec3{-1, -2, -3},
		AABBMax:  mgl32.Vec3{1, 2, 3},
		BvhDepth: 1,
		Nodes: []asset.BvhNode{{
			ChildCount:       [8]uint8{2, 0, 0, 0, 0, 0, 0, 0},
			ChildParentError: [8]float32{10, 0, 0, 0, 0, 0, 0, 0},
		}},
		Meshlets: []asset.Meshlet{
			{VertexOffset: 0, IndexOffset: 0, VertexCount: 3, TriangleCount: 1, LODError: 1},
			{VertexOffset: 3, IndexOffset: 3, VertexCount: 3, TriangleCount: 1, LODError: 2},
		},
		Vertices: []asset.Vertex{
			{Position: mgl32.Vec3{0, 0, 0}, Normal: mgl32.Vec3{0, 1, 0}, UV: mgl32.Vec2{0, 0}},
			{Position: mgl32.Vec3{1, 0, 0}, Normal: mgl32.Vec3{0, 1, 0}, UV: mgl32.Vec2{1, 0}},
			{Position: mgl32.Vec3{0, 1, 0}, Normal: mgl32.Vec3{0, 1, 0}, UV: mgl32.Vec2{0, 1}},
		},
		Indices: []uint8{0, 1, 2},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	mesh := sampleMesh()
	var buf bytes.Buffer
	if err := Write(&buf, mesh); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, err := Read(&buf)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	if got.AABBMin != mesh.AABBMin || got.AABBMax != mesh.AABBMax {
		t.Fatalf("AABB mismatch: got [%v %v], want [%v %v]", got.AABBMin, got.AABBMax, mesh.AABBMin, mesh.AABBMax)
	}
	if got.BvhDepth != mesh.BvhDepth {
		t.Fatalf("BvhDepth = %d, want %d", got.BvhDepth, mesh.BvhDepth)
	}
	if len(got.Nodes) != len(mesh.Nodes) || len(got.Meshlets) != len(mesh.Meshlets) ||
		len(got.Vertices) != len(mesh.Vertices) || len(got.Indices) != len(mesh.Indices) {
		t.Fatalf("decoded slice lengths mismatch: got %d/%d/%d/%d, want %d/%d/%d/%d",
			len(got.Nodes), len(got.Meshlets), len(got.Vertices), len(got.Indices),
			len(mesh.Nodes), len(mesh.Meshlets), len(mesh.Vertices), len(mesh.Indices))
	}
	if got.Meshlets[1].LODError != mesh.Meshlets[1].LODError {
		t.Fatalf("meshlet[1].LODError = %v, want %v", got.Meshlets[1].LODError, mesh.Meshlets[1].LODError)
	}
	if got.Vertices[1].Position != mesh.Vertices[1].Position {
		t.Fatalf("vertex[1].Position = %v, want %v", got.Vertices[1].Position, mesh.Vertices[1].Position)
	}
	if !bytes.Equal(got.Indices, mesh.Indices) {
		t.Fatalf("Indices = %v, want %v", got.Indices, mesh.Indices)
	}

	// A file this package writes must itself satisfy the invariant Read
	// checks on the way back in.
	if err := got.ValidateBvh(); err != nil {
		t.Fatalf("round-tripped mesh failed ValidateBvh: %v", err)
	}
}

func TestReadRejectsLodMonotonicityViolation(t *testing.T) {
	mesh := sampleMesh()
	mesh.Meshlets[1].LODError = 99 // now exceeds the node's parent bound of 10
	var buf bytes.Buffer
	if err := Write(&buf, mesh); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if _, err := Read(&buf); err == nil {
		t.Fatalf("Read() = nil error, want a LOD monotonicity violation")
	}
}

func TestReadRejectsTruncatedHeader(t *testing.T) {
	if _, err := Read(bytes.NewReader([]byte{1, 2, 3})); err == nil {
		t.Fatalf("Read() = nil error, want an error for a truncated header")
	}
}

func TestLoadAllPreservesOrder(t *testing.T) {
	dir := t.TempDir()
	paths := make([]string, 3)
	for i := range paths {
		mesh := sampleMesh()
		mesh.BvhDepth = uint32(i + 1)
		p := dir + "/mesh" + string(rune('a'+i)) + ".bin"
		if err := Save(p, mesh); err != nil {
			t.Fatalf("Save(%d): %v", i, err)
		}
		paths[i] = p
	}

	meshes, err := LoadAll(paths)
	if err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	for i, m := range meshes {
		if m.BvhDepth != uint32(i+1) {
			t.Fatalf("meshes[%d].BvhDepth = %d, want %d", i, m.BvhDepth, i+1)
		}
	}
}

func TestLoadAllReturnsErrorOnMissingFile(t *testing.T) {
	if _, err := LoadAll([]string{"/nonexistent/path/to/a/mesh.bin"}); err == nil {
		t.Fatalf("LoadAll() = nil error, want an error for a missing file")
	}
}
