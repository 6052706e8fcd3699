package platform

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/internal/rgerr"
	"github.com/dieselvk/radgraph/internal/rlog"
	"github.com/dieselvk/radgraph/queue"
)

// Swapchain owns the presentable images and the pair of binary
// semaphores (image-acquired, ready-to-present) that bound every
// frame — generalizing swapchain.go's CoreSwapchain, which also held
// its own depth buffer and framebuffers for a fixed render pass. This
// module's graph owns the depth/visibility targets itself, so Swapchain
// only needs the present-chain images and views.
type Swapchain struct {
	device  vk.Device
	surface vk.Surface

	handle vk.Swapchain
	format vk.SurfaceFormat
	extent vk.Extent2D

	images     []vk.Image
	views      []vk.ImageView
	acquireSem []vk.Semaphore
	presentSem []vk.Semaphore
}

// CreateSwapchain picks the surface's first format (falling back to
// BGRA8 UNORM on an undefined entry, matching swapchain.go's own
// fallback), clamps the requested image count to what the surface
// supports, and creates the swapchain plus one acquire/present
// semaphore pair per image.
func CreateSwapchain(d *Device, surface vk.Surface, desiredImages uint32, old vk.Swapchain) (*Swapchain, error) {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(d.Gpu, surface, &caps)
	if err := rgerr.FromResult(ret); err != nil {
		return nil, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()

	var formatCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(d.Gpu, surface, &formatCount, nil)
	if formatCount == 0 {
		return nil, rgerr.IO("surface exposes no color formats")
	}
	formats := make([]vk.SurfaceFormat, formatCount)
	vk.GetPhysicalDeviceSurfaceFormats(d.Gpu, surface, &formatCount, formats)
	formats[0].Deref()
	format := formats[0]
	if format.Format == vk.FormatUndefined {
		format.Format = vk.FormatB8g8r8a8Unorm
	}

	extent := caps.CurrentExtent
	count := desiredImages
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	if count < caps.MinImageCount {
		count = caps.MinImageCount
	}

	var handle vk.Swapchain
	ret = vk.CreateSwapchain(d.Handle, &vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    count,
		ImageFormat:      format.Format,
		ImageColorSpace:  format.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferDstBit),
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      vk.PresentModeFifo,
		Clipped:          vk.True,
		ImageSharingMode: vk.SharingModeExclusive,
		OldSwapchain:     old,
	}, nil, &handle)
	if err := rgerr.FromResult(ret); err != nil {
		return nil, err
	}
	if old != vk.NullSwapchain {
		vk.DestroySwapchain(d.Handle, old, nil)
	}

	var imageCount uint32
	vk.GetSwapchainImages(d.Handle, handle, &imageCount, nil)
	images := make([]vk.Image, imageCount)
	vk.GetSwapchainImages(d.Handle, handle, &imageCount, images)

	views := make([]vk.ImageView, imageCount)
	for i, img := range images {
		var view vk.ImageView
		ret := vk.CreateImageView(d.Handle, &vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    img,
			ViewType: vk.ImageViewType2d,
			Format:   format.Format,
			Components: vk.ComponentMapping{
				R: vk.ComponentSwizzleR, G: vk.ComponentSwizzleG,
				B: vk.ComponentSwizzleB, A: vk.ComponentSwizzleA,
			},
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}, nil, &view)
		if err := rgerr.FromResult(ret); err != nil {
			return nil, err
		}
		views[i] = view
	}

	acquireSem := make([]vk.Semaphore, imageCount)
	presentSem := make([]vk.Semaphore, imageCount)
	for i := range acquireSem {
		vk.CreateSemaphore(d.Handle, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &acquireSem[i])
		vk.CreateSemaphore(d.Handle, &vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}, nil, &presentSem[i])
	}

	rlog.Global().Info.Printf("platform: swapchain ready (%dx%d, %d images, format=%d)", extent.Width, extent.Height, imageCount, format.Format)

	return &Swapchain{
		device: d.Handle, surface: surface,
		handle: handle, format: format, extent: extent,
		images: images, views: views,
		acquireSem: acquireSem, presentSem: presentSem,
	}, nil
}

func (s *Swapchain) Extent() (uint32, uint32) { return s.extent.Width, s.extent.Height }
func (s *Swapchain) Format() vk.Format         { return s.format.Format }
func (s *Swapchain) Handle() vk.Swapchain      { return s.handle }

// Acquire blocks until the next presentable image is available,
// returning its index, the vk.Image/vk.ImageView to blit into, and the
// binary semaphore the graphics queue submission must wait on before
// touching that image.
func (s *Swapchain) Acquire(slot uint32) (index uint32, image vk.Image, view vk.ImageView, wait queue.BinarySignal, err error) {
	ret := vk.AcquireNextImage(s.device, s.handle, vk.MaxUint64, s.acquireSem[slot], nil, &index)
	if e := rgerr.FromResult(ret); e != nil {
		return 0, nil, nil, queue.BinarySignal{}, e
	}
	wait = queue.BinarySignal{Semaphore: s.acquireSem[slot], Stage: vk.PipelineStage2ColorAttachmentOutputBit}
	return index, s.images[index], s.views[index], wait, nil
}

// PresentSignal is the binary semaphore Present will wait on before
// queuing the present request — the render pass that blits into the
// swapchain image must signal it.
func (s *Swapchain) PresentSignal(slot uint32) queue.BinarySignal {
	return queue.BinarySignal{Semaphore: s.presentSem[slot], Stage: vk.PipelineStage2ColorAttachmentOutputBit}
}

// Present queues the present request for imageIndex on presentQueue,
// waiting on the render pass's completion semaphore.
func (s *Swapchain) Present(presentQueue vk.Queue, imageIndex, slot uint32) error {
	swapchains := []vk.Swapchain{s.handle}
	indices := []uint32{imageIndex}
	waits := []vk.Semaphore{s.presentSem[slot]}
	ret := vk.QueuePresent(presentQueue, &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waits)),
		PWaitSemaphores:    waits,
		SwapchainCount:     uint32(len(swapchains)),
		PSwapchains:        swapchains,
		PImageIndices:      indices,
	})
	return rgerr.FromResult(ret)
}

func (s *Swapchain) Destroy() {
	for _, sem := range s.acquireSem {
		vk.DestroySemaphore(s.device, sem, nil)
	}
	for _, sem := range s.presentSem {
		vk.DestroySemaphore(s.device, sem, nil)
	}
	for _, v := range s.views {
		vk.DestroyImageView(s.device, v, nil)
	}
	vk.DestroySwapchain(s.device, s.handle, nil)
}
