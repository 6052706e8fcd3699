package cull

import (
	"testing"
	"unsafe"
)

func TestPushConstantsFitInRange(t *testing.T) {
	const pushConstantSize = 128
	for name, size := range map[string]uintptr{
		"instancePushConstants": unsafe.Sizeof(instancePushConstants{}),
		"bvhPushConstants":      unsafe.Sizeof(bvhPushConstants{}),
		"meshletPushConstants":  unsafe.Sizeof(meshletPushConstants{}),
	} {
		if size > pushConstantSize {
			t.Fatalf("%s is %d bytes, exceeds the %d-byte push-constant range", name, size, pushConstantSize)
		}
	}
}

func TestPickLevelAlternatesByParity(t *testing.T) {
	for level := uint32(0); level < 4; level++ {
		read, write := pickLevel(level, "A", "B")
		wantRead, wantWrite := "A", "B"
		if level%2 == 1 {
			wantRead, wantWrite = "B", "A"
		}
		if read != wantRead || write != wantWrite {
			t.Fatalf("level %d: read/write = %s/%s, want %s/%s", level, read, write, wantRead, wantWrite)
		}
	}
}

func TestQueueHeaderLayoutIsSelfConsistent(t *testing.T) {
	if queueDispatchArgsOffset <= queueCountOffset {
		t.Fatalf("dispatch args must follow the count word, got offsets %d and %d", queueCountOffset, queueDispatchArgsOffset)
	}
	if queueHeaderBytes < queueDispatchArgsOffset+3*4 {
		t.Fatalf("queueHeaderBytes %d too small to hold a VkDispatchIndirectCommand starting at %d", queueHeaderBytes, queueDispatchArgsOffset)
	}
}
