package resource

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/descriptor"
	"github.com/dieselvk/radgraph/internal/rgerr"
)

// ImageDesc describes an image to create. Render graph passes request
// images by this value; the unique/transient cache tiers compare the
// Unnamed() projection so differently-named requests for an
// identically shaped image can share a physical allocation.
type ImageDesc struct {
	Name    string
	Extent  [3]uint32
	Format  vk.Format
	Usage   vk.ImageUsageFlagBits
	Mips    uint32
	Layers  uint32
	Samples vk.SampleCountFlagBits
}

type UnnamedImageDesc struct {
	Extent  [3]uint32
	Format  vk.Format
	Usage   vk.ImageUsageFlagBits
	Mips    uint32
	Layers  uint32
	Samples vk.SampleCountFlagBits
}

func (d ImageDesc) Unnamed() UnnamedImageDesc {
	return UnnamedImageDesc{Extent: d.Extent, Format: d.Format, Usage: d.Usage, Mips: d.Mips, Layers: d.Layers, Samples: d.Samples}
}

// Image owns a vk.Image plus its memory. Unlike a buffer it never
// gets a descriptor slot on its own — shaders address a specific
// view (via ImageView) into it.
type Image struct {
	device vk.Device
	handle vk.Image
	memory vk.DeviceMemory
	desc   ImageDesc

	// layout is whatever the last SetLayout call recorded, and
	// ImageLayoutUndefined until then. Nothing in this module calls
	// SetLayout: the graph compiler takes a persistent image's previous
	// layout from cache.PersistentCache instead.
	layout vk.ImageLayout
}

type ImageHandle struct {
	Image  vk.Image
	Desc   ImageDesc
	Layout vk.ImageLayout
}

func (i *Image) Handle() ImageHandle {
	return ImageHandle{Image: i.handle, Desc: i.desc, Layout: i.layout}
}

func (i *Image) SetLayout(l vk.ImageLayout) { i.layout = l }
func (i *Image) Layout() vk.ImageLayout     { return i.layout }

func CreateImage(device vk.Device, physical vk.PhysicalDevice, desc ImageDesc) (*Image, error) {
	imgType := vk.ImageType2d
	if desc.Extent[2] > 1 {
		imgType = vk.ImageType3d
	}
	var handle vk.Image
	ret := vk.CreateImage(device, &vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: imgType,
		Format:    desc.Format,
		Extent: vk.Extent3D{
			Width:  desc.Extent[0],
			Height: desc.Extent[1],
			Depth:  desc.Extent[2],
		},
		MipLevels:     desc.Mips,
		ArrayLayers:   desc.Layers,
		Samples:       desc.Samples,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(desc.Usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}, nil, &handle)
	if err := rgerr.FromResult(ret); err != nil {
		return nil, err
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(device, handle, &req)
	req.Deref()

	memIndex, err := findMemoryType(physical, req.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vk.DestroyImage(device, handle, nil)
		return nil, err
	}

	var memory vk.DeviceMemory
	ret = vk.AllocateMemory(device, &vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: memIndex,
	}, nil, &memory)
	if err := rgerr.FromResult(ret); err != nil {
		vk.DestroyImage(device, handle, nil)
		return nil, err
	}
	if ret := vk.BindImageMemory(device, handle, memory, 0); rgerr.IsError(ret) {
		vk.FreeMemory(device, memory, nil)
		vk.DestroyImage(device, handle, nil)
		return nil, rgerr.FromResult(ret)
	}

	return &Image{
		device: device,
		handle: handle,
		memory: memory,
		desc:   desc,
		layout: vk.ImageLayoutUndefined,
	}, nil
}

func (i *Image) Destroy() {
	vk.DestroyImage(i.device, i.handle, nil)
	vk.FreeMemory(i.device, i.memory, nil)
}

// ImageViewDesc describes a view over a subresource range of an Image.
type ImageViewDesc struct {
	Name        string
	Aspect      vk.ImageAspectFlagBits
	BaseMip     uint32
	MipCount    uint32
	BaseLayer   uint32
	LayerCount  uint32
	ViewType    vk.ImageViewType
	Sampled     bool
	StorageView bool
}

// UnnamedImageViewDesc is the comparable cache key for an ImageView:
// the source image it was created over plus every field of
// ImageViewDesc except Name.
type UnnamedImageViewDesc struct {
	Image       vk.Image
	Aspect      vk.ImageAspectFlagBits
	BaseMip     uint32
	MipCount    uint32
	BaseLayer   uint32
	LayerCount  uint32
	ViewType    vk.ImageViewType
	Sampled     bool
	StorageView bool
}

func (d ImageViewDesc) Unnamed(src vk.Image) UnnamedImageViewDesc {
	return UnnamedImageViewDesc{
		Image:       src,
		Aspect:      d.Aspect,
		BaseMip:     d.BaseMip,
		MipCount:    d.MipCount,
		BaseLayer:   d.BaseLayer,
		LayerCount:  d.LayerCount,
		ViewType:    d.ViewType,
		Sampled:     d.Sampled,
		StorageView: d.StorageView,
	}
}

// ImageView is a view into an Image, optionally registered in the
// bindless descriptor table as a sampled and/or storage image. It is
// created from an ImageHandle rather than an *Image so that pass
// packages, which only ever see the handle a graph pass resolved,
// can request fresh views without reaching back into the cache that
// owns the source Image.
type ImageView struct {
	device vk.Device
	handle vk.ImageView
	image  ImageHandle
	desc   ImageViewDesc

	table        *descriptor.Table
	sampledID    descriptor.ImageId
	storageID    descriptor.StorageImageId
	hasSampled   bool
	hasStorageID bool
}

type ImageViewHandle struct {
	View      vk.ImageView
	Image     ImageHandle
	SampledID descriptor.ImageId
	StorageID descriptor.StorageImageId
	HasSample bool
	HasStore  bool
}

func (v *ImageView) Handle() ImageViewHandle {
	return ImageViewHandle{
		View:      v.handle,
		Image:     v.image,
		SampledID: v.sampledID,
		StorageID: v.storageID,
		HasSample: v.hasSampled,
		HasStore:  v.hasStorageID,
	}
}

func CreateImageView(table *descriptor.Table, device vk.Device, src ImageHandle, desc ImageViewDesc) (*ImageView, error) {
	var handle vk.ImageView
	ret := vk.CreateImageView(device, &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    src.Image,
		ViewType: desc.ViewType,
		Format:   src.Desc.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     vk.ImageAspectFlags(desc.Aspect),
			BaseMipLevel:   desc.BaseMip,
			LevelCount:     desc.MipCount,
			BaseArrayLayer: desc.BaseLayer,
			LayerCount:     desc.LayerCount,
		},
	}, nil, &handle)
	if err := rgerr.FromResult(ret); err != nil {
		return nil, err
	}

	v := &ImageView{device: device, handle: handle, image: src, desc: desc, table: table}
	if desc.Sampled {
		v.sampledID = table.GetImage(handle)
		v.hasSampled = true
	}
	if desc.StorageView {
		v.storageID = table.GetStorageImage(handle)
		v.hasStorageID = true
	}
	return v, nil
}

func (v *ImageView) Destroy() {
	if v.hasSampled {
		v.table.ReturnImage(v.sampledID)
	}
	if v.hasStorageID {
		v.table.ReturnStorageImage(v.storageID)
	}
	vk.DestroyImageView(v.device, v.handle, nil)
}

// AS wraps an acceleration structure: the backing buffer it lives in
// plus an optional descriptor slot, used only by the handful of passes
// outside the core mesh visibility pipeline (see SPEC_FULL.md's
// Supplemented Features on raytracing scope).
type AS struct {
	device vk.Device
	handle vk.AccelerationStructureNV
	buf    *Buffer

	table  *descriptor.Table
	id     descriptor.ASId
	hasID  bool
}

func CreateAS(table *descriptor.Table, device vk.Device, handle vk.AccelerationStructureNV, buf *Buffer, bind bool) *AS {
	a := &AS{device: device, handle: handle, buf: buf, table: table}
	if bind {
		a.id = table.GetAS(handle)
		a.hasID = true
	}
	return a
}

func (a *AS) Destroy() {
	if a.hasID {
		a.table.ReturnAS(a.id)
	}
	vk.DestroyAccelerationStructureNV(a.device, a.handle, nil)
	a.buf.Destroy()
}

// Event wraps a VkEvent, a GPU-side fine-grained sync primitive.
// Grounded on the cross-queue sync planning described in
// original_source's graph/mod.rs compile step. The graph compiler in
// this module does not create or use events: its sync plan is pipeline
// barriers within a queue and timeline-semaphore waits between queues.
type Event struct {
	device vk.Device
	handle vk.Event
}

func CreateEvent(device vk.Device) (*Event, error) {
	var handle vk.Event
	ret := vk.CreateEvent(device, &vk.EventCreateInfo{SType: vk.StructureTypeEventCreateInfo}, nil, &handle)
	if err := rgerr.FromResult(ret); err != nil {
		return nil, err
	}
	return &Event{device: device, handle: handle}, nil
}

func (e *Event) Handle() vk.Event { return e.handle }

func (e *Event) Destroy() {
	vk.DestroyEvent(e.device, e.handle, nil)
}
