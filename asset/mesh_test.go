package asset

import "testing"

func oneLeafMesh() *Mesh {
	return &Mesh{
		Nodes: []BvhNode{{
			ChildCount:       [8]uint8{2, 0, 0, 0, 0, 0, 0, 0},
			ChildOffset:      [8]uint32{0, 0, 0, 0, 0, 0, 0, 0},
			ChildParentError: [8]float32{1.0, 0, 0, 0, 0, 0, 0, 0},
		}},
		Meshlets: []Meshlet{{LODError: 0.2}, {LODError: 0.5}},
	}
}

func TestValidateBvhAcceptsMonotonicLeaf(t *testing.T) {
	if err := oneLeafMesh().ValidateBvh(); err != nil {
		t.Fatalf("ValidateBvh() = %v, want nil", err)
	}
}

func TestValidateBvhRejectsLeafViolation(t *testing.T) {
	m := oneLeafMesh()
	m.Meshlets[1].LODError = 1.5 // exceeds the node's parent-error bound of 1.0
	if err := m.ValidateBvh(); err == nil {
		t.Fatalf("ValidateBvh() = nil, want an error for a leaf exceeding its parent bound")
	}
}

func TestValidateBvhAcceptsMonotonicInnerChain(t *testing.T) {
	m := &Mesh{
		Nodes: []BvhNode{
			{
				ChildCount:       [8]uint8{BvhInner, 0, 0, 0, 0, 0, 0, 0},
				ChildOffset:      [8]uint32{1, 0, 0, 0, 0, 0, 0, 0},
				ChildParentError: [8]float32{2.0, 0, 0, 0, 0, 0, 0, 0},
			},
			{
				ChildCount:       [8]uint8{1, 0, 0, 0, 0, 0, 0, 0},
				ChildOffset:      [8]uint32{0, 0, 0, 0, 0, 0, 0, 0},
				ChildParentError: [8]float32{1.0, 0, 0, 0, 0, 0, 0, 0},
			},
		},
		Meshlets: []Meshlet{{LODError: 0.1}},
	}
	if err := m.ValidateBvh(); err != nil {
		t.Fatalf("ValidateBvh() = %v, want nil", err)
	}
}

func TestValidateBvhRejectsInnerViolation(t *testing.T) {
	m := &Mesh{
		Nodes: []BvhNode{
			{
				ChildCount:       [8]uint8{BvhInner, 0, 0, 0, 0, 0, 0, 0},
				ChildOffset:      [8]uint32{1, 0, 0, 0, 0, 0, 0, 0},
				ChildParentError: [8]float32{0.5, 0, 0, 0, 0, 0, 0, 0}, // looser than the child it points at
			},
			{
				ChildCount:       [8]uint8{1, 0, 0, 0, 0, 0, 0, 0},
				ChildOffset:      [8]uint32{0, 0, 0, 0, 0, 0, 0, 0},
				ChildParentError: [8]float32{1.0, 0, 0, 0, 0, 0, 0, 0},
			},
		},
		Meshlets: []Meshlet{{LODError: 0.1}},
	}
	if err := m.ValidateBvh(); err == nil {
		t.Fatalf("ValidateBvh() = nil, want an error: parent bound 0.5 is not > child bound 1.0")
	}
}

func TestBvhNodeIsInnerAndIsLeaf(t *testing.T) {
	n := BvhNode{ChildCount: [8]uint8{BvhInner, 3, 0, 0, 0, 0, 0, 0}}
	if !n.IsInner(0) || n.IsLeaf(0) {
		t.Fatalf("slot 0 should be inner only")
	}
	if n.IsInner(1) || !n.IsLeaf(1) {
		t.Fatalf("slot 1 should be leaf only")
	}
	if n.IsInner(2) || n.IsLeaf(2) {
		t.Fatalf("slot 2 is empty (count 0), should be neither inner nor leaf")
	}
}
