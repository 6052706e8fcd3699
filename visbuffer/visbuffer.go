// Package visbuffer orchestrates the two-phase GPU-driven
// visibility-buffer mesh pipeline: a setup pass that allocates and
// zeroes this frame's transient work queues, an early phase that culls
// against last frame's HZB and rasterizes what survives, a freshly
// rebuilt HZB, and a late phase that re-tests exactly what the early
// phase deferred (occlusion failures and newly exposed geometry)
// against that refreshed pyramid before a final HZB rebuild feeds next
// frame's early phase.
//
// Grounded on original_source/crates/passes/src/mesh/mod.rs's
// VisBuffer::run, which wires together the same instance/BVH/meshlet
// cull stages, the same pair of rasterization paths, and the same HZB
// generator this port's cull, raster and hzb packages already
// implement — this file is this port's equivalent of that file's
// orchestration method, not a new algorithm.
package visbuffer

import (
	"math"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"

	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/cache"
	"github.com/dieselvk/radgraph/cull"
	"github.com/dieselvk/radgraph/descriptor"
	"github.com/dieselvk/radgraph/graph"
	"github.com/dieselvk/radgraph/hzb"
	"github.com/dieselvk/radgraph/internal/gfxpipe"
	"github.com/dieselvk/radgraph/raster"
)

// Camera is the minimal projection-relevant camera state the mesh
// pipeline needs: vertical field of view in radians, the near plane
// distance, and the world-to-view transform. Grounded on
// original_source/passes/src/mesh/mod.rs's own Camera::projection,
// reproduced below with Go's row-of-floats Mat4 construction standing
// in for the original's Mat4::new column arguments.
type Camera struct {
	Fov  float32
	Near float32
	View mgl32.Mat4
}

// Projection builds an infinite-far-plane reversed-style projection
// matching original_source's Camera::projection exactly: a
// right-handed projection with the far plane pushed to infinity and
// depth increasing toward the near plane, which is what lets the HZB's
// min-reduction treat "closer" and "more occluding" as the same
// direction. mgl32.Mat4 lays its 16 floats out column-major, so the
// indices below are the transpose of how the original's Mat4::new
// lists its sixteen row-major arguments.
func (c Camera) Projection(aspect float32) mgl32.Mat4 {
	h := float32(1 / math.Tan(float64(c.Fov/2)))
	w := h / aspect
	near := c.Near

	var m mgl32.Mat4
	m[0] = w
	m[5] = h
	m[11] = 1
	m[14] = near
	return m
}

// cameraData is the GPU-resident form of a Camera, matching
// original_source's CameraData: the view matrix, the combined
// view-projection matrix, the projection's [1][1] entry (needed by the
// HZB occlusion test to reconstruct a bounding sphere's screen-space
// radius), and the near plane distance.
type cameraData struct {
	View     mgl32.Mat4
	ViewProj mgl32.Mat4
	H        float32
	Near     float32
	_pad     [2]float32
}

var cameraDataSize = unsafe.Sizeof(cameraData{})

func newCameraData(aspect float32, cam Camera) cameraData {
	proj := cam.Projection(aspect)
	viewProj := proj.Mul4(cam.View)
	return cameraData{View: cam.View, ViewProj: viewProj, H: proj[5], Near: cam.Near}
}

// writePOD copies v's raw bytes into dst, which must be at least
// unsafe.Sizeof(v) long — the same raw-bytes-into-a-mapped-upload-
// buffer idiom every per-frame uniform write in this pipeline uses,
// since push constants and upload buffers are both just GPU memory
// laid out to match a Go struct's field order.
func writePOD[T any](dst []byte, v T) {
	size := int(unsafe.Sizeof(v))
	src := unsafe.Slice((*byte)(unsafe.Pointer(&v)), size)
	copy(dst[:size], src)
}

// RenderInfo is everything one frame's Run needs from its caller: the
// scene's GPU-resident instance array and count, the camera to render
// from, the target resolution, and how deep the meshlet BVH the
// instances reference can be (bounding the number of bvh-cull passes
// Run declares).
type RenderInfo struct {
	Instances     graph.ResBuffer
	InstanceCount uint32
	Camera        Camera
	Width         uint32
	Height        uint32
	MaxBvhDepth   uint32
	Frame         uint64
}

// RenderOutput is what downstream passes (a compositing or debug-view
// pass) need to read this frame's result: the visibility image, the
// camera buffer it was rendered with, and the refreshed HZB, matching
// original_source's RenderOutput/VisBufferReader shape.
type RenderOutput struct {
	Visibility graph.ResImage
	Camera     graph.ResBuffer
	Hzb        graph.ResImage
	HzbSampler descriptor.SamplerId
}

// VisBuffer owns every GPU pipeline the mesh visibility stage needs
// and the persistent HZB's cache token. Early and late phases get
// their own InstanceCull/BvhCull/MeshletCull and raster.Hardware/
// raster.Software instances since InstanceCull and BvhCull's behavior
// differs by phase (see cull's own package doc), while MeshletCull and
// the two rasterizers are phase-agnostic and are still duplicated here
// 1:1 so Run can declare both phases' passes independently without
// sharing mutable pipeline state across them.
type VisBuffer struct {
	cfg Config

	hzbToken cache.Token

	earlyInstance *cull.InstanceCull
	lateInstance  *cull.InstanceCull
	earlyBvh      *cull.BvhCull
	lateBvh       *cull.BvhCull
	earlyMeshlet  *cull.MeshletCull
	lateMeshlet   *cull.MeshletCull

	earlyHW *raster.Hardware
	earlySW *raster.Software
	lateHW  *raster.Hardware
	lateSW  *raster.Software

	hzbGen *hzb.Generator

	prevCamera Camera
}

// New builds every pipeline the mesh visibility stage dispatches, in
// the same order original_source's VisBuffer::new constructs its own
// passes: setup-adjacent state first, then early, then late, then the
// shared HZB generator.
func New(device vk.Device, table *descriptor.Table, loader gfxpipe.Shaders, cfg Config) (*VisBuffer, error) {
	v := &VisBuffer{cfg: cfg, hzbToken: cache.NewToken()}

	var err error
	if v.earlyInstance, err = cull.NewInstanceCull(device, table, loader, true); err != nil {
		return nil, err
	}
	if v.lateInstance, err = cull.NewInstanceCull(device, table, loader, false); err != nil {
		v.Destroy()
		return nil, err
	}
	if v.earlyBvh, err = cull.NewBvhCull(device, table, loader, true); err != nil {
		v.Destroy()
		return nil, err
	}
	if v.lateBvh, err = cull.NewBvhCull(device, table, loader, false); err != nil {
		v.Destroy()
		return nil, err
	}
	if v.earlyMeshlet, err = cull.NewMeshletCull(device, table, loader); err != nil {
		v.Destroy()
		return nil, err
	}
	if v.lateMeshlet, err = cull.NewMeshletCull(device, table, loader); err != nil {
		v.Destroy()
		return nil, err
	}
	if v.earlyHW, err = raster.NewHardware(device, table, loader, raster.DefaultConfig); err != nil {
		v.Destroy()
		return nil, err
	}
	if v.earlySW, err = raster.NewSoftware(device, table, loader, raster.DefaultConfig); err != nil {
		v.Destroy()
		return nil, err
	}
	if v.lateHW, err = raster.NewHardware(device, table, loader, raster.DefaultConfig); err != nil {
		v.Destroy()
		return nil, err
	}
	if v.lateSW, err = raster.NewSoftware(device, table, loader, raster.DefaultConfig); err != nil {
		v.Destroy()
		return nil, err
	}
	if v.hzbGen, err = hzb.New(device, table, loader); err != nil {
		v.Destroy()
		return nil, err
	}
	return v, nil
}

// Destroy releases every pipeline and sampler Run depends on. Safe to
// call on a partially-constructed VisBuffer — New calls it on its own
// construction failure path, before every field is populated.
func (v *VisBuffer) Destroy() {
	if v.earlyInstance != nil {
		v.earlyInstance.Destroy()
	}
	if v.lateInstance != nil {
		v.lateInstance.Destroy()
	}
	if v.earlyBvh != nil {
		v.earlyBvh.Destroy()
	}
	if v.lateBvh != nil {
		v.lateBvh.Destroy()
	}
	if v.earlyMeshlet != nil {
		v.earlyMeshlet.Destroy()
	}
	if v.lateMeshlet != nil {
		v.lateMeshlet.Destroy()
	}
	if v.earlyHW != nil {
		v.earlyHW.Destroy()
	}
	if v.earlySW != nil {
		v.earlySW.Destroy()
	}
	if v.lateHW != nil {
		v.lateHW.Destroy()
	}
	if v.lateSW != nil {
		v.lateSW.Destroy()
	}
	if v.hzbGen != nil {
		v.hzbGen.Destroy()
	}
}

// Run declares the full seven-step mesh visibility pipeline for one
// frame: setup, early cull (instance, bvh, meshlet), early
// rasterization (hardware and software), an HZB rebuild from what the
// early phase drew, late cull seeded from exactly what the early phase
// deferred, late rasterization, and a final HZB rebuild so next
// frame's early phase has a pyramid reflecting this frame's complete
// result.
func (v *VisBuffer) Run(f *graph.Frame, info RenderInfo) RenderOutput {
	res := v.setup(f, info)

	v.earlyInstance.Run(f, cull.InstanceIO{
		Instances: info.Instances, Camera: res.camera,
		Hzb: res.hzb, HzbSampler: v.hzbGen.Sampler(),
		Queue: res.early.bvhA, Late: res.deferredInstances,
		Count: info.InstanceCount, Frame: info.Frame,
		Width: info.Width, Height: info.Height,
	})
	v.earlyBvh.Run(f, cull.BvhIO{
		Instances: info.Instances, Camera: res.camera,
		Hzb: res.hzb, HzbSampler: v.hzbGen.Sampler(),
		Levels:   cull.Levels{A: res.early.bvhA, B: res.early.bvhB},
		Late:     res.lateRoot,
		Meshlets: res.early.meshlets,
		MaxDepth: info.MaxBvhDepth, Frame: info.Frame,
		Width: info.Width, Height: info.Height,
	})
	v.earlyMeshlet.Run(f, cull.MeshletIO{
		Instances: info.Instances, Camera: res.camera,
		Hzb: res.hzb, HzbSampler: v.hzbGen.Sampler(),
		Meshlets: res.early.meshlets,
		HW:       res.early.hw, SW: res.early.sw,
		Frame: info.Frame, Width: info.Width, Height: info.Height,
	})

	earlyIO := raster.IO{
		Instances: info.Instances, Camera: res.camera,
		Visibility: res.visbuffer, Frame: info.Frame,
		Width: info.Width, Height: info.Height,
	}
	earlyHW, earlySW := earlyIO, earlyIO
	earlyHW.RenderList = res.early.hw
	earlySW.RenderList = res.early.sw
	v.earlyHW.Run(f, earlyHW)
	v.earlySW.Run(f, earlySW)

	v.hzbGen.Run(f, res.visbuffer, res.hzb)

	v.lateInstance.Run(f, cull.InstanceIO{
		Instances: info.Instances, Camera: res.camera,
		Hzb: res.hzb, HzbSampler: v.hzbGen.Sampler(),
		Queue: res.lateRoot, Late: res.deferredInstances,
		Frame: info.Frame, Width: info.Width, Height: info.Height,
	})
	v.lateBvh.Run(f, cull.BvhIO{
		Instances: info.Instances, Camera: res.camera,
		Hzb: res.hzb, HzbSampler: v.hzbGen.Sampler(),
		Levels:   cull.Levels{A: res.lateRoot, B: res.late.bvhB},
		Meshlets: res.late.meshlets,
		MaxDepth: info.MaxBvhDepth, Frame: info.Frame,
		Width: info.Width, Height: info.Height,
	})
	v.lateMeshlet.Run(f, cull.MeshletIO{
		Instances: info.Instances, Camera: res.camera,
		Hzb: res.hzb, HzbSampler: v.hzbGen.Sampler(),
		Meshlets: res.late.meshlets,
		HW:       res.late.hw, SW: res.late.sw,
		Frame: info.Frame, Width: info.Width, Height: info.Height,
	})

	lateIO := earlyIO
	lateHW, lateSW := lateIO, lateIO
	lateHW.RenderList = res.late.hw
	lateSW.RenderList = res.late.sw
	v.lateHW.Run(f, lateHW)
	v.lateSW.Run(f, lateSW)

	v.hzbGen.Run(f, res.visbuffer, res.hzb)

	return RenderOutput{
		Visibility: res.visbuffer,
		Camera:     res.camera,
		Hzb:        res.hzb,
		HzbSampler: v.hzbGen.Sampler(),
	}
}
