// Package hzb builds the hierarchical depth (visibility) pyramid the
// occlusion-culling passes sample against: one compute dispatch
// min-reduces the previous phase's visibility buffer down through up
// to 12 mip levels, six at a time via workgroup shared memory, falling
// back to a second dispatch for mips 6-11 when the pyramid is taller
// than that. Grounded on
// original_source/crates/passes/src/mesh/hzb.rs's HzbGen.
package hzb

import (
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/descriptor"
	"github.com/dieselvk/radgraph/graph"
	"github.com/dieselvk/radgraph/internal/gfxpipe"
	"github.com/dieselvk/radgraph/internal/rgerr"
	"github.com/dieselvk/radgraph/queue"
	"github.com/dieselvk/radgraph/resource"
)

// maxMips is the largest pyramid the two-dispatch shared-memory
// reduction scheme supports: six levels per dispatch, two dispatches.
const maxMips = 12

// firstDispatchMips is how many levels the first dispatch can reduce
// directly from the source image before it must hand off the rest to
// a second dispatch reading its own mip 5 as a new base.
const firstDispatchMips = 6

type pushConstants struct {
	Visbuffer descriptor.StorageImageId
	Outs      [6]descriptor.StorageImageId
	Mips      uint32
}

type pushConstants2 struct {
	Mip5 descriptor.StorageImageId
	Outs [6]descriptor.StorageImageId
	Mips uint32
}

// Generator owns the two reduction pipelines and the min-reduction
// sampler later occlusion-test passes borrow via Sampler.
type Generator struct {
	device vk.Device
	table  *descriptor.Table

	layout    vk.PipelineLayout
	pipeline  vk.Pipeline
	pipeline2 vk.Pipeline

	sampler   vk.Sampler
	samplerID descriptor.SamplerId
}

// New builds the HZB generator's pipelines and sampler against table's
// single pipeline layout, loading its two compute shaders through
// loader.
func New(device vk.Device, table *descriptor.Table, loader gfxpipe.Shaders) (*Generator, error) {
	layout := table.PipelineLayout()

	mod1, err := loader.Load(device, "passes.mesh.hzb.main")
	if err != nil {
		return nil, err
	}
	pipeline, err := gfxpipe.Compute(device, layout, mod1)
	if err != nil {
		return nil, err
	}
	mod2, err := loader.Load(device, "passes.mesh.hzb2.main")
	if err != nil {
		vk.DestroyPipeline(device, pipeline, nil)
		return nil, err
	}
	pipeline2, err := gfxpipe.Compute(device, layout, mod2)
	if err != nil {
		vk.DestroyPipeline(device, pipeline, nil)
		return nil, err
	}

	// LINEAR min-reduction, CLAMP_TO_EDGE: a sample outside the pyramid's
	// edge must read the edge's own (fully conservative) depth, never a
	// wrapped or bordered value, or occlusion tests at the screen edge
	// would wrongly cull or wrongly accept.
	var sampler vk.Sampler
	reduction := vk.SamplerReductionModeCreateInfo{
		SType:         vk.StructureTypeSamplerReductionModeCreateInfo,
		ReductionMode: vk.SamplerReductionModeMin,
	}
	ret := vk.CreateSampler(device, &vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		PNext:        unsafePtr(&reduction),
		MinFilter:    vk.FilterLinear,
		MagFilter:    vk.FilterLinear,
		MipmapMode:   vk.SamplerMipmapModeNearest,
		AddressModeU: vk.SamplerAddressModeClampToEdge,
		AddressModeV: vk.SamplerAddressModeClampToEdge,
		AddressModeW: vk.SamplerAddressModeClampToEdge,
		MaxLod:       vk.LodClampNone,
	}, nil, &sampler)
	if err := rgerr.FromResult(ret); err != nil {
		vk.DestroyPipeline(device, pipeline, nil)
		vk.DestroyPipeline(device, pipeline2, nil)
		return nil, err
	}
	samplerID := table.GetSampler(sampler)

	return &Generator{
		device: device, table: table,
		layout: layout, pipeline: pipeline, pipeline2: pipeline2,
		sampler: sampler, samplerID: samplerID,
	}, nil
}

// Sampler returns the bindless ID of the min-reduction sampler every
// HZB-testing pass must use to read this pyramid conservatively.
func (g *Generator) Sampler() descriptor.SamplerId { return g.samplerID }

type passIO struct {
	visbuffer graph.ResImage
	out       graph.ResImage
	width     uint32
	height    uint32
	levels    uint32
}

// Run declares the HZB-generation pass: reads visbuffer (the
// visibility image written by this phase's raster pass) and
// min-reduces it into out, a persistent R32_SFLOAT mip chain.
func (g *Generator) Run(f *graph.Frame, visbuffer, out graph.ResImage) {
	b := f.Pass("generate hzb", queue.Compute)
	b.ReferenceImage(visbuffer, vk.PipelineStage2ComputeShaderBit, vk.Access2ShaderStorageReadBit, vk.ImageLayoutGeneral, false)
	b.ReferenceImage(out, vk.PipelineStage2ComputeShaderBit,
		vk.AccessFlagBits2(uint64(vk.Access2ShaderStorageReadBit)|uint64(vk.Access2ShaderStorageWriteBit)),
		vk.ImageLayoutGeneral, true)

	desc := b.ImageDesc(out)
	b.Build(func(ctx *graph.PassContext) {
		g.execute(ctx, passIO{
			visbuffer: visbuffer, out: out,
			width: desc.Extent[0], height: desc.Extent[1], levels: desc.Mips,
		})
	})
}

func (g *Generator) execute(ctx *graph.PassContext, io passIO) {
	device, buf := ctx.Device, ctx.Buf
	visImg := ctx.GetImage(io.visbuffer)
	outImg := ctx.GetImage(io.out)

	visDesc := resource.ImageViewDesc{
		Aspect: vk.ImageAspectColorBit, MipCount: 1, LayerCount: 1,
		ViewType: vk.ImageViewType2d, StorageView: true,
	}
	visView, _, err := ctx.Caches().ImageViews.Get(visDesc.Unnamed(visImg.Image), func() (*resource.ImageView, error) {
		return resource.CreateImageView(g.table, device, visImg, visDesc)
	})
	rgerr.OrPanic(err)

	var outs [maxMips]descriptor.StorageImageId
	for i := uint32(0); i < io.levels && i < maxMips; i++ {
		outDesc := resource.ImageViewDesc{
			Aspect: vk.ImageAspectColorBit, BaseMip: i, MipCount: 1, LayerCount: 1,
			ViewType: vk.ImageViewType2d, StorageView: true,
		}
		view, _, err := ctx.Caches().ImageViews.Get(outDesc.Unnamed(outImg.Image), func() (*resource.ImageView, error) {
			return resource.CreateImageView(g.table, device, outImg, outDesc)
		})
		rgerr.OrPanic(err)
		outs[i] = view.StorageID
	}

	vk.CmdBindDescriptorSets(buf, vk.PipelineBindPointCompute, g.layout, 0, 1, []vk.DescriptorSet{g.table.Set()}, 0, nil)

	pc := pushConstants{Visbuffer: visView.StorageID, Mips: io.levels}
	copy(pc.Outs[:], outs[:firstDispatchMips])
	gfxpipe.PushConstants(buf, g.layout, vk.ShaderStageComputeBit, &pc)
	vk.CmdBindPipeline(buf, vk.PipelineBindPointCompute, g.pipeline)

	x := (io.width + 63) >> 6
	y := (io.height + 63) >> 6
	vk.CmdDispatch(buf, x, y, 1)

	if io.levels <= firstDispatchMips {
		return
	}

	vk.CmdPipelineBarrier2(buf, &vk.DependencyInfo{
		SType:              vk.StructureTypeDependencyInfo,
		MemoryBarrierCount: 1,
		PMemoryBarriers: []vk.MemoryBarrier2{{
			SType:         vk.StructureTypeMemoryBarrier2,
			SrcStageMask:  vk.PipelineStageFlags2(vk.PipelineStage2ComputeShaderBit),
			SrcAccessMask: vk.AccessFlags2(vk.Access2ShaderStorageWriteBit),
			DstStageMask:  vk.PipelineStageFlags2(vk.PipelineStage2ComputeShaderBit),
			DstAccessMask: vk.AccessFlags2(uint64(vk.Access2ShaderStorageReadBit) | uint64(vk.Access2ShaderStorageWriteBit)),
		}},
	})

	pc2 := pushConstants2{Mip5: outs[firstDispatchMips-1], Mips: io.levels}
	copy(pc2.Outs[:], outs[firstDispatchMips:])
	gfxpipe.PushConstants(buf, g.layout, vk.ShaderStageComputeBit, &pc2)
	vk.CmdBindPipeline(buf, vk.PipelineBindPointCompute, g.pipeline2)
	vk.CmdDispatch(buf, 1, 1, 1)
}

func (g *Generator) Destroy() {
	vk.DestroyPipeline(g.device, g.pipeline, nil)
	vk.DestroyPipeline(g.device, g.pipeline2, nil)
	g.table.ReturnSampler(g.samplerID)
	vk.DestroySampler(g.device, g.sampler, nil)
}

func unsafePtr(p *vk.SamplerReductionModeCreateInfo) unsafe.Pointer { return unsafe.Pointer(p) }
