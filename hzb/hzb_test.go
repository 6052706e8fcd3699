package hzb

import (
	"unsafe"
	"testing"

	"github.com/dieselvk/radgraph/descriptor"
)

func TestPushConstantsFitInRange(t *testing.T) {
	const pushConstantSize = 128
	if s := unsafe.Sizeof(pushConstants{}); s > pushConstantSize {
		t.Fatalf("pushConstants is %d bytes, exceeds the %d-byte push-constant range", s, pushConstantSize)
	}
	if s := unsafe.Sizeof(pushConstants2{}); s > pushConstantSize {
		t.Fatalf("pushConstants2 is %d bytes, exceeds the %d-byte push-constant range", s, pushConstantSize)
	}
}

func TestOutsSplitAcrossDispatches(t *testing.T) {
	var outs [maxMips]descriptor.StorageImageId
	for i := range outs {
		outs[i] = descriptor.StorageImageId(i + 1)
	}

	var pc pushConstants
	copy(pc.Outs[:], outs[:firstDispatchMips])
	for i, id := range pc.Outs {
		if id != descriptor.StorageImageId(i+1) {
			t.Fatalf("first dispatch out[%d] = %d, want %d", i, id, i+1)
		}
	}

	var pc2 pushConstants2
	pc2.Mip5 = outs[firstDispatchMips-1]
	copy(pc2.Outs[:], outs[firstDispatchMips:])
	if pc2.Mip5 != descriptor.StorageImageId(firstDispatchMips) {
		t.Fatalf("second dispatch base mip = %d, want %d", pc2.Mip5, firstDispatchMips)
	}
	for i, id := range pc2.Outs {
		want := descriptor.StorageImageId(firstDispatchMips + 1 + i)
		if id != want {
			t.Fatalf("second dispatch out[%d] = %d, want %d", i, id, want)
		}
	}
}
