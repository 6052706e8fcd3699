package asset

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
)

func TestSetTransformStampsUpdatedFrameEveryCall(t *testing.T) {
	inst := &Instance{Current: mgl32.Ident4(), Previous: mgl32.Ident4()}
	inst.SetTransform(5, mgl32.Ident4())
	if inst.UpdatedFrame != 5 {
		t.Fatalf("UpdatedFrame = %d, want 5", inst.UpdatedFrame)
	}
	if inst.TransformChangedFrame != 0 {
		t.Fatalf("TransformChangedFrame = %d, want 0 (transform did not change)", inst.TransformChangedFrame)
	}
}

func TestSetTransformAdvancesChangedFrameOnlyWhenTransformMoves(t *testing.T) {
	inst := &Instance{Current: mgl32.Ident4(), Previous: mgl32.Ident4()}
	moved := mgl32.Translate3D(1, 0, 0)
	inst.SetTransform(1, moved)
	if inst.TransformChangedFrame != 1 {
		t.Fatalf("TransformChangedFrame = %d, want 1 after a real move", inst.TransformChangedFrame)
	}
	if inst.Previous != mgl32.Ident4() {
		t.Fatalf("Previous should hold the transform before this call")
	}

	inst.SetTransform(2, moved)
	if inst.TransformChangedFrame != 1 {
		t.Fatalf("TransformChangedFrame = %d, want unchanged 1 when the transform repeats", inst.TransformChangedFrame)
	}
	if inst.UpdatedFrame != 2 {
		t.Fatalf("UpdatedFrame = %d, want 2 (it ticks every call)", inst.UpdatedFrame)
	}
}

func TestSetTransformRecomputesWorldAABB(t *testing.T) {
	mesh := &Mesh{AABBMin: mgl32.Vec3{-1, -1, -1}, AABBMax: mgl32.Vec3{1, 1, 1}}
	inst := &Instance{Mesh: mesh, Current: mgl32.Ident4(), Previous: mgl32.Ident4()}
	inst.SetTransform(1, mgl32.Translate3D(5, 0, 0))
	if inst.AABBMin != (mgl32.Vec3{4, -1, -1}) || inst.AABBMax != (mgl32.Vec3{6, 1, 1}) {
		t.Fatalf("AABB = [%v, %v], want [{4 -1 -1} {6 1 1}]", inst.AABBMin, inst.AABBMax)
	}
}

func TestSceneSpawnAndRemove(t *testing.T) {
	var s Scene
	mesh := &Mesh{AABBMin: mgl32.Vec3{0, 0, 0}, AABBMax: mgl32.Vec3{1, 1, 1}}
	inst := s.Spawn(mesh, 0, mgl32.Ident4())
	if len(s.Instances) != 1 {
		t.Fatalf("len(Instances) = %d, want 1 after Spawn", len(s.Instances))
	}
	if inst.Current != inst.Previous {
		t.Fatalf("a freshly spawned instance should report no motion: Current != Previous")
	}

	s.Remove(inst.ID)
	if len(s.Instances) != 0 {
		t.Fatalf("len(Instances) = %d, want 0 after Remove", len(s.Instances))
	}
}

func TestSceneRemoveMissingIDIsNoop(t *testing.T) {
	var s Scene
	s.Spawn(&Mesh{}, 0, mgl32.Ident4())
	s.Remove(NewInstanceID())
	if len(s.Instances) != 1 {
		t.Fatalf("len(Instances) = %d, want unchanged 1 for an unknown ID", len(s.Instances))
	}
}
