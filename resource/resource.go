// Package resource implements the typed wrappers over raw GPU objects
// that own their memory allocation and (where applicable) descriptor
// slot: Buffer, Image, ImageView, AS and Event. Grounded on the
// teacher's buffers.go/image.go Texture/Depth structs, generalized per
// original_source's resource.rs into the Create/Destroy/Handle shape
// every cache tier in package cache expects.
package resource

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/internal/rgerr"
)

// Location selects which memory heap a Buffer is allocated from.
type Location int

const (
	// LocUpload is host-visible, written by the CPU each frame.
	LocUpload Location = iota
	// LocReadback is host-visible, read by the CPU the following frame.
	LocReadback
	// LocGPU is device-local, inaccessible from the host.
	LocGPU
)

// BufferDesc describes a buffer to create.
type BufferDesc struct {
	Name  string
	Size  uint64
	Loc   Location
	Usage vk.BufferUsageFlagBits
}

// UnnamedBufferDesc is the part of BufferDesc used for cache lookups;
// Name does not participate in equality so that differently-named
// requests for the same size/location/usage share a transient slot.
type UnnamedBufferDesc struct {
	Size  uint64
	Loc   Location
	Usage vk.BufferUsageFlagBits
}

func (d BufferDesc) Unnamed() UnnamedBufferDesc {
	return UnnamedBufferDesc{Size: d.Size, Loc: d.Loc, Usage: d.Usage}
}

// Buffer owns a vk.Buffer, its memory allocation, an optional bindless
// descriptor slot (only used when a shader needs the legacy
// descriptor-indexed storage-buffer path instead of a raw device
// address — most passes use the device address directly, see
// DESIGN.md), its 64-bit device address, and an optional CPU-mapped
// slice when created in an upload/readback location.
type Buffer struct {
	device  vk.Device
	handle  vk.Buffer
	memory  vk.DeviceMemory
	size    uint64
	address uint64
	mapped  []byte

	hasDescID bool
	descID    uint32
}

// Handle is the lightweight, cheaply-copyable reference other code
// passes around after a Buffer is created.
type BufferHandle struct {
	Buffer  vk.Buffer
	Size    uint64
	Address uint64
	Mapped  []byte
}

func (b *Buffer) Handle() BufferHandle {
	return BufferHandle{Buffer: b.handle, Size: b.size, Address: b.address, Mapped: b.mapped}
}

// Ptr returns the GPU device address of the buffer, for embedding
// directly into push constants as a GpuPtr-equivalent.
func (h BufferHandle) Ptr() uint64 { return h.Address }

// CreateBuffer allocates a new Buffer against device/physical device memory.
func CreateBuffer(device vk.Device, physical vk.PhysicalDevice, desc BufferDesc) (*Buffer, error) {
	usage := vk.BufferUsageFlags(desc.Usage) | vk.BufferUsageFlags(vk.BufferUsageShaderDeviceAddressBit)
	var handle vk.Buffer
	ret := vk.CreateBuffer(device, &vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        vk.DeviceSize(desc.Size),
		Usage:       usage,
		SharingMode: vk.SharingModeExclusive,
	}, nil, &handle)
	if err := rgerr.FromResult(ret); err != nil {
		return nil, err
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(device, handle, &req)
	req.Deref()

	props := vk.MemoryPropertyDeviceLocalBit
	if desc.Loc != LocGPU {
		props = vk.MemoryPropertyHostVisibleBit | vk.MemoryPropertyHostCoherentBit
	}
	memIndex, err := findMemoryType(physical, req.MemoryTypeBits, vk.MemoryPropertyFlagBits(props))
	if err != nil {
		vk.DestroyBuffer(device, handle, nil)
		return nil, err
	}

	var memory vk.DeviceMemory
	allocFlags := vk.MemoryAllocateFlagsInfo{
		SType: vk.StructureTypeMemoryAllocateFlagsInfo,
		Flags: vk.MemoryAllocateFlags(vk.MemoryAllocateDeviceAddressBit),
	}
	ret = vk.AllocateMemory(device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		PNext:           unsafe.Pointer(&allocFlags),
		AllocationSize:  req.Size,
		MemoryTypeIndex: memIndex,
	}, nil, &memory)
	if err := rgerr.FromResult(ret); err != nil {
		vk.DestroyBuffer(device, handle, nil)
		return nil, err
	}
	if ret := vk.BindBufferMemory(device, handle, memory, 0); rgerr.IsError(ret) {
		vk.FreeMemory(device, memory, nil)
		vk.DestroyBuffer(device, handle, nil)
		return nil, rgerr.FromResult(ret)
	}

	address := vk.GetBufferDeviceAddress(device, &vk.BufferDeviceAddressInfo{
		SType:  vk.StructureTypeBufferDeviceAddressInfo,
		Buffer: handle,
	})

	var mapped []byte
	if desc.Loc != LocGPU {
		var ptr unsafe.Pointer
		ret = vk.MapMemory(device, memory, 0, vk.DeviceSize(desc.Size), 0, &ptr)
		if err := rgerr.FromResult(ret); err != nil {
			vk.FreeMemory(device, memory, nil)
			vk.DestroyBuffer(device, handle, nil)
			return nil, err
		}
		mapped = unsafe.Slice((*byte)(ptr), int(desc.Size))
	}

	return &Buffer{
		device:  device,
		handle:  handle,
		memory:  memory,
		size:    desc.Size,
		address: address,
		mapped:  mapped,
	}, nil
}

// BindDescriptor records a bindless storage-buffer slot index for
// bookkeeping; see the comment on Buffer for when this legacy path is
// exercised. No pass in this repo currently calls it, so it does not
// own a free-list slot the way ImageView's sampled/storage IDs do —
// a future caller is responsible for its own index allocation and
// release.
func (b *Buffer) BindDescriptor(id uint32) {
	b.hasDescID = true
	b.descID = id
}

// Destroy releases the buffer's memory. Taking no arguments lets
// *Buffer satisfy cache.Resource directly.
func (b *Buffer) Destroy() {
	if b.mapped != nil {
		vk.UnmapMemory(b.device, b.memory)
	}
	vk.DestroyBuffer(b.device, b.handle, nil)
	vk.FreeMemory(b.device, b.memory, nil)
}

func findMemoryType(physical vk.PhysicalDevice, typeBits uint32, props vk.MemoryPropertyFlagBits) (uint32, error) {
	var memProps vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(physical, &memProps)
	memProps.Deref()
	for i := uint32(0); i < memProps.MemoryTypeCount; i++ {
		t := memProps.MemoryTypes[i]
		t.Deref()
		if typeBits&(1<<i) != 0 && vk.MemoryPropertyFlagBits(t.PropertyFlags)&props == props {
			return i, nil
		}
	}
	return 0, rgerr.Alloc("no suitable memory type for mask 0x%x props 0x%x", typeBits, props)
}
