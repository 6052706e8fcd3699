package visbuffer

import (
	"testing"
	"unsafe"

	"github.com/go-gl/mathgl/mgl32"
)

func TestFloorPow2(t *testing.T) {
	cases := map[uint32]uint32{0: 1, 1: 1, 2: 2, 3: 2, 1023: 512, 1024: 1024, 1025: 1024}
	for n, want := range cases {
		if got := floorPow2(n); got != want {
			t.Fatalf("floorPow2(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestCeilLog2(t *testing.T) {
	cases := map[uint32]uint32{0: 0, 1: 0, 2: 1, 3: 2, 4: 2, 5: 3, 1024: 10, 1025: 11}
	for n, want := range cases {
		if got := ceilLog2(n); got != want {
			t.Fatalf("ceilLog2(%d) = %d, want %d", n, got, want)
		}
	}
}

func TestHzbExtentIsPowerOfTwoAndHalved(t *testing.T) {
	w, h := hzbExtent(1920, 1080)
	if w != 512 || h != 512 {
		t.Fatalf("hzbExtent(1920,1080) = (%d,%d), want (512,512)", w, h)
	}
}

func TestQueueSizeAccountsForHeaderAndEntries(t *testing.T) {
	got := queueSize(20, 100)
	want := uint64(20 + 100*entryStride)
	if got != want {
		t.Fatalf("queueSize(20,100) = %d, want %d", got, want)
	}
}

func TestDefaultConfigIsNonZero(t *testing.T) {
	if DefaultConfig.BvhQueueCapacity == 0 || DefaultConfig.MeshletQueueCapacity == 0 ||
		DefaultConfig.RenderListCapacity == 0 || DefaultConfig.DeferredInstanceCapacity == 0 {
		t.Fatalf("DefaultConfig has a zero-capacity queue: %+v", DefaultConfig)
	}
}

func TestProjectionIsWellFormedForSquareAspect(t *testing.T) {
	cam := Camera{Fov: 1.0, Near: 0.1, View: mgl32.Ident4()}
	proj := cam.Projection(1.0)
	if proj[0] != proj[5] {
		t.Fatalf("square-aspect projection should scale x and y equally, got w=%v h=%v", proj[0], proj[5])
	}
	if proj[11] != 1 {
		t.Fatalf("projection[11] = %v, want 1 (w-from-z row)", proj[11])
	}
	if proj[14] != cam.Near {
		t.Fatalf("projection[14] = %v, want near plane %v", proj[14], cam.Near)
	}
}

func TestProjectionScalesWithAspect(t *testing.T) {
	cam := Camera{Fov: 1.0, Near: 0.1, View: mgl32.Ident4()}
	wide := cam.Projection(2.0)
	square := cam.Projection(1.0)
	if wide[0] >= square[0] {
		t.Fatalf("a wider aspect ratio should shrink the x scale: wide=%v square=%v", wide[0], square[0])
	}
	if wide[5] != square[5] {
		t.Fatalf("aspect ratio should not affect the y scale: wide=%v square=%v", wide[5], square[5])
	}
}

func TestNewCameraDataCarriesProjectionHAndNear(t *testing.T) {
	cam := Camera{Fov: 1.0, Near: 0.1, View: mgl32.Ident4()}
	cd := newCameraData(1.0, cam)
	if cd.Near != cam.Near {
		t.Fatalf("cameraData.Near = %v, want %v", cd.Near, cam.Near)
	}
	proj := cam.Projection(1.0)
	if cd.H != proj[5] {
		t.Fatalf("cameraData.H = %v, want projection[5] = %v", cd.H, proj[5])
	}
}

func TestWritePODRoundTripsThroughBytes(t *testing.T) {
	type sample struct {
		A uint32
		B float32
	}
	in := sample{A: 7, B: 3.5}
	buf := make([]byte, unsafe.Sizeof(in))
	writePOD(buf, in)

	out := *(*sample)(unsafe.Pointer(&buf[0]))
	if out != in {
		t.Fatalf("writePOD round-trip = %+v, want %+v", out, in)
	}
}
