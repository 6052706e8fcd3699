package asset

import (
	"github.com/go-gl/mathgl/mgl32"
)

// Instance is one placement of a Mesh in the scene. Current/Previous
// hold the transform this frame and last frame respectively, so the
// GPU cull/raster passes can reconstruct motion vectors and reproject
// the previous frame's HZB without the CPU keeping a separate history
// buffer. UpdatedFrame is the frame counter value the last SetTransform
// call stamped; TransformChangedFrame only advances when the transform
// actually moved, so a static instance's occlusion result can be
// trusted across many frames even while UpdatedFrame ticks every frame.
type Instance struct {
	ID   InstanceID
	Mesh *Mesh

	Current  mgl32.Mat4
	Previous mgl32.Mat4

	AABBMin, AABBMax mgl32.Vec3 // world-space, derived from Mesh's local bounds and Current

	UpdatedFrame          uint64
	TransformChangedFrame uint64
}

// SetTransform advances Previous to the instance's current transform,
// installs m as the new current transform, and recomputes the
// world-space AABB from the mesh's local bounds. TransformChangedFrame
// only advances when m differs from the instance's prior transform.
func (inst *Instance) SetTransform(frame uint64, m mgl32.Mat4) {
	inst.Previous = inst.Current
	if m != inst.Current {
		inst.TransformChangedFrame = frame
	}
	inst.Current = m
	inst.UpdatedFrame = frame
	if inst.Mesh != nil {
		inst.AABBMin, inst.AABBMax = transformAABB(m, inst.Mesh.AABBMin, inst.Mesh.AABBMax)
	}
}

// transformAABB re-derives a world-space AABB from a local-space one by
// transforming all eight corners — conservative but simple, matching
// how most GPU-driven renderers keep instance bounds in sync without a
// tighter (and costlier) OBB-to-AABB reduction.
func transformAABB(m mgl32.Mat4, min, max mgl32.Vec3) (mgl32.Vec3, mgl32.Vec3) {
	corners := [8]mgl32.Vec3{
		{min.X(), min.Y(), min.Z()}, {max.X(), min.Y(), min.Z()},
		{min.X(), max.Y(), min.Z()}, {max.X(), max.Y(), min.Z()},
		{min.X(), min.Y(), max.Z()}, {max.X(), min.Y(), max.Z()},
		{min.X(), max.Y(), max.Z()}, {max.X(), max.Y(), max.Z()},
	}
	first := transformPoint(m, corners[0])
	outMin, outMax := first, first
	for _, c := range corners[1:] {
		p := transformPoint(m, c)
		outMin = componentMin(outMin, p)
		outMax = componentMax(outMax, p)
	}
	return outMin, outMax
}

// transformPoint applies m to the point v, dropping the homogeneous
// coordinate back down to Vec3 by hand rather than trusting a
// truncating conversion method to exist on the Vec4 result.
func transformPoint(m mgl32.Mat4, v mgl32.Vec3) mgl32.Vec3 {
	r := m.Mul4x1(v.Vec4(1))
	return mgl32.Vec3{r[0], r[1], r[2]}
}

func componentMin(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{min32(a.X(), b.X()), min32(a.Y(), b.Y()), min32(a.Z(), b.Z())}
}

func componentMax(a, b mgl32.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{max32(a.X(), b.X()), max32(a.Y(), b.Y()), max32(a.Z(), b.Z())}
}

func min32(a, b float32) float32 {
	if a < b {
		return a
	}
	return b
}

func max32(a, b float32) float32 {
	if a > b {
		return a
	}
	return b
}

// Scene is the CPU-side instance list the asset-upload pass packs into
// the GPU instance buffer every frame. It owns no GPU resources itself
// — graph/cull/raster read it through whatever upload step copies its
// Instances slice into a mapped buffer.
type Scene struct {
	Instances []*Instance
}

// Spawn adds a new instance of mesh to the scene at the given initial
// transform, stamping both Current and Previous to the same value so
// its first frame doesn't report spurious motion.
func (s *Scene) Spawn(mesh *Mesh, frame uint64, transform mgl32.Mat4) *Instance {
	inst := &Instance{ID: NewInstanceID(), Mesh: mesh, Current: transform, Previous: transform, UpdatedFrame: frame}
	if mesh != nil {
		inst.AABBMin, inst.AABBMax = transformAABB(transform, mesh.AABBMin, mesh.AABBMax)
	}
	s.Instances = append(s.Instances, inst)
	return inst
}

// Remove drops the instance with the given ID from the scene, if present.
func (s *Scene) Remove(id InstanceID) {
	for i, inst := range s.Instances {
		if inst.ID == id {
			s.Instances = append(s.Instances[:i], s.Instances[i+1:]...)
			return
		}
	}
}
