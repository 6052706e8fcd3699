package raster

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/descriptor"
	"github.com/dieselvk/radgraph/graph"
	"github.com/dieselvk/radgraph/internal/gfxpipe"
	"github.com/dieselvk/radgraph/queue"
	"github.com/dieselvk/radgraph/resource"
)

// Software rasterizes the meshlet cull stage's software render list —
// the meshlets too small on screen to amortize mesh-shader setup —
// with a compute shader doing edge-function rasterization per
// triangle, atomic-min-packing into the same visibility image the
// hardware path writes. Dispatched indirectly from the render list's
// own count, mirroring cull's queue-drain dispatch shape exactly.
type Software struct {
	device   vk.Device
	table    *descriptor.Table
	layout   vk.PipelineLayout
	pipeline vk.Pipeline
	cfg      Config
}

// NewSoftware loads the software rasterization compute shader and
// builds its pipeline against table's single pipeline layout.
func NewSoftware(device vk.Device, table *descriptor.Table, loader gfxpipe.Shaders, cfg Config) (*Software, error) {
	mod, err := loader.Load(device, "passes.mesh.raster.sw")
	if err != nil {
		return nil, err
	}
	pipeline, err := gfxpipe.Compute(device, table.PipelineLayout(), mod)
	if err != nil {
		return nil, err
	}
	return &Software{device: device, table: table, layout: table.PipelineLayout(), pipeline: pipeline, cfg: cfg}, nil
}

// Run declares the software rasterization pass.
func (s *Software) Run(f *graph.Frame, io IO) {
	b := f.Pass("raster sw", queue.Compute)
	b.ReferenceBuffer(io.Instances, vk.PipelineStage2ComputeShaderBit, vk.Access2ShaderStorageReadBit, false)
	b.ReferenceBuffer(io.Camera, vk.PipelineStage2ComputeShaderBit, vk.Access2ShaderStorageReadBit, false)
	b.ReferenceBuffer(io.RenderList, vk.PipelineStage2ComputeShaderBit, indirectAndStorageRead(), false)
	b.ReferenceImage(io.Visibility, vk.PipelineStage2ComputeShaderBit, visibilityAccess(), vk.ImageLayoutGeneral, true)
	b.Build(func(ctx *graph.PassContext) { s.execute(ctx, io) })
}

// indirectAndStorageRead mirrors cull's own helper of the same name —
// the render list is both the indirect dispatch source and plain
// shader-storage data the compute shader reads per-entry.
func indirectAndStorageRead() vk.AccessFlagBits2 {
	return vk.AccessFlagBits2(uint64(vk.Access2IndirectCommandReadBit) | uint64(vk.Access2ShaderStorageReadBit))
}

func (s *Software) execute(ctx *graph.PassContext, io IO) {
	buf := ctx.Buf
	device := ctx.Device

	instances := ctx.GetBuffer(io.Instances)
	camera := ctx.GetBuffer(io.Camera)
	list := ctx.GetBuffer(io.RenderList)
	visImg := ctx.GetImage(io.Visibility)

	visDesc := resource.ImageViewDesc{
		Aspect: vk.ImageAspectColorBit, MipCount: 1, LayerCount: 1,
		ViewType: vk.ImageViewType2d, StorageView: true,
	}
	visView, _, err := ctx.Caches().ImageViews.Get(visDesc.Unnamed(visImg.Image), func() (*resource.ImageView, error) {
		return resource.CreateImageView(s.table, device, visImg, visDesc)
	})
	if err != nil {
		panic(err)
	}

	vk.CmdBindDescriptorSets(buf, vk.PipelineBindPointCompute, s.layout, 0, 1, []vk.DescriptorSet{s.table.Set()}, 0, nil)
	vk.CmdBindPipeline(buf, vk.PipelineBindPointCompute, s.pipeline)

	pc := pushConstants{
		Instances: instances.Ptr(), Camera: camera.Ptr(), RenderList: list.Ptr(),
		Visibility: visView.Handle().StorageID, ResX: io.Width, ResY: io.Height, Frame: io.Frame,
	}
	gfxpipe.PushConstants(buf, s.layout, vk.ShaderStageComputeBit, &pc)

	vk.CmdDispatchIndirect(buf, list.Buffer, listArgsOffset)
}

func (s *Software) Destroy() {
	vk.DestroyPipeline(s.device, s.pipeline, nil)
}
