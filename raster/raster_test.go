package raster

import (
	"testing"
	"unsafe"
)

func TestPushConstantsFitInRange(t *testing.T) {
	const pushConstantSize = 128
	if size := unsafe.Sizeof(pushConstants{}); size > pushConstantSize {
		t.Fatalf("pushConstants is %d bytes, exceeds the %d-byte push-constant range", size, pushConstantSize)
	}
}

func TestRenderListLayoutIsSelfConsistent(t *testing.T) {
	if listArgsOffset <= listCountOffset {
		t.Fatalf("indirect args must follow the count word, got offsets %d and %d", listCountOffset, listArgsOffset)
	}
	// Both VkDrawMeshTasksIndirectCommandEXT and VkDispatchIndirectCommand
	// are three consecutive u32s (x, y, z) starting at listArgsOffset —
	// the hardware and software paths read the same command shape out of
	// their own render list, just via different Cmd*Indirect entry points.
	if listArgsOffset%4 != 0 {
		t.Fatalf("listArgsOffset %d must be 4-byte aligned for a 3xu32 indirect command", listArgsOffset)
	}
}

func TestDefaultConfigThresholdIsPositive(t *testing.T) {
	if DefaultConfig.PixelAreaThreshold <= 0 {
		t.Fatalf("DefaultConfig.PixelAreaThreshold = %v, want > 0", DefaultConfig.PixelAreaThreshold)
	}
}
