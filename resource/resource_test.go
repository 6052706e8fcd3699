package resource

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

func TestUnnamedBufferDescIgnoresName(t *testing.T) {
	a := BufferDesc{Name: "scratch-a", Size: 256, Loc: LocGPU, Usage: vk.BufferUsageStorageBufferBit}
	b := BufferDesc{Name: "scratch-b", Size: 256, Loc: LocGPU, Usage: vk.BufferUsageStorageBufferBit}
	if a.Unnamed() != b.Unnamed() {
		t.Fatalf("expected differently named buffer descs with identical shape to compare equal, got %+v != %+v", a.Unnamed(), b.Unnamed())
	}
}

func TestUnnamedBufferDescDistinguishesLocation(t *testing.T) {
	a := BufferDesc{Name: "x", Size: 256, Loc: LocUpload, Usage: vk.BufferUsageStorageBufferBit}
	b := BufferDesc{Name: "x", Size: 256, Loc: LocGPU, Usage: vk.BufferUsageStorageBufferBit}
	if a.Unnamed() == b.Unnamed() {
		t.Fatalf("expected upload and GPU-local buffer descs to compare unequal")
	}
}

func TestUnnamedImageDescIgnoresName(t *testing.T) {
	a := ImageDesc{Name: "hzb-a", Extent: [3]uint32{1920, 1080, 1}, Format: vk.FormatR32Sfloat, Mips: 11}
	b := ImageDesc{Name: "hzb-b", Extent: [3]uint32{1920, 1080, 1}, Format: vk.FormatR32Sfloat, Mips: 11}
	if a.Unnamed() != b.Unnamed() {
		t.Fatalf("expected differently named image descs with identical shape to compare equal")
	}
}
