package raster

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/descriptor"
	"github.com/dieselvk/radgraph/graph"
	"github.com/dieselvk/radgraph/internal/gfxpipe"
	"github.com/dieselvk/radgraph/queue"
	"github.com/dieselvk/radgraph/resource"
)

// Hardware rasterizes the meshlet cull stage's hardware render list
// with one mesh-shader workgroup per meshlet (the pipeline has no task
// stage), each emitting up to 124 triangles; the fragment stage
// atomic-min-packs (depth, meshlet_id, triangle_id) into the visibility
// image. The meshlet count is unknown on the host, so the draw is a
// single indirect mesh-tasks draw whose arguments cull.MeshletCull
// wrote into the header of the render-list buffer.
type Hardware struct {
	device   vk.Device
	table    *descriptor.Table
	layout   vk.PipelineLayout
	pipeline vk.Pipeline
	cfg      Config
}

// NewHardware loads the task/mesh/fragment shader trio and builds the
// mesh-shader pipeline against table's single pipeline layout.
func NewHardware(device vk.Device, table *descriptor.Table, loader gfxpipe.Shaders, cfg Config) (*Hardware, error) {
	mesh, err := loader.Load(device, "passes.mesh.raster.hw_mesh")
	if err != nil {
		return nil, err
	}
	frag, err := loader.Load(device, "passes.mesh.raster.hw_frag")
	if err != nil {
		vk.DestroyShaderModule(device, mesh, nil)
		return nil, err
	}
	pipeline, err := gfxpipe.MeshGraphics(device, table.PipelineLayout(), gfxpipe.MeshGraphicsDesc{
		Mesh: mesh, Fragment: frag,
	})
	if err != nil {
		return nil, err
	}
	return &Hardware{device: device, table: table, layout: table.PipelineLayout(), pipeline: pipeline, cfg: cfg}, nil
}

// IO names the buffers and image one rasterization dispatch reads and
// writes. Both Hardware.Run and Software.Run take the same shape —
// only the render list differs between paths.
type IO struct {
	Instances  graph.ResBuffer
	Camera     graph.ResBuffer
	RenderList graph.ResBuffer
	Visibility graph.ResImage
	Frame      uint64
	Width      uint32
	Height     uint32
}

// Run declares the hardware rasterization pass.
func (h *Hardware) Run(f *graph.Frame, io IO) {
	b := f.Pass("raster hw", queue.Graphics)
	b.ReferenceBuffer(io.Instances, vk.PipelineStage2MeshShaderBitExt, vk.Access2ShaderStorageReadBit, false)
	b.ReferenceBuffer(io.Camera, vk.PipelineStage2MeshShaderBitExt, vk.Access2ShaderStorageReadBit, false)
	b.ReferenceBuffer(io.RenderList, vk.PipelineStage2DrawIndirectBit, vk.Access2IndirectCommandReadBit, false)
	b.ReferenceImage(io.Visibility, vk.PipelineStage2FragmentShaderBit, visibilityAccess(), vk.ImageLayoutGeneral, true)
	b.Build(func(ctx *graph.PassContext) { h.execute(ctx, io) })
}

func (h *Hardware) execute(ctx *graph.PassContext, io IO) {
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
		return resource.CreateImageView(h.table, device, visImg, visDesc)
	})
	if err != nil {
		panic(err)
	}

	vk.CmdBindDescriptorSets(buf, vk.PipelineBindPointGraphics, h.layout, 0, 1, []vk.DescriptorSet{h.table.Set()}, 0, nil)
	vk.CmdBindPipeline(buf, vk.PipelineBindPointGraphics, h.pipeline)

	viewport := vk.Viewport{Width: float32(io.Width), Height: float32(io.Height), MinDepth: 0, MaxDepth: 1}
	scissor := vk.Rect2D{Extent: vk.Extent2D{Width: io.Width, Height: io.Height}}
	vk.CmdSetViewport(buf, 0, 1, []vk.Viewport{viewport})
	vk.CmdSetScissor(buf, 0, 1, []vk.Rect2D{scissor})

	rendering := vk.RenderingInfo{
		SType:      vk.StructureTypeRenderingInfo,
		RenderArea: scissor,
		LayerCount: 1,
	}
	vk.CmdBeginRendering(buf, &rendering)

	pc := pushConstants{
		Instances: instances.Ptr(), Camera: camera.Ptr(), RenderList: list.Ptr(),
		Visibility: visView.Handle().StorageID, ResX: io.Width, ResY: io.Height, Frame: io.Frame,
	}
	gfxpipe.PushConstants(buf, h.layout, vk.ShaderStageAll, &pc)

	// One indirect draw command, written by cull.MeshletCull at the
	// queue's usual dispatch-args offset: its groupCountX carries the
	// meshlet count the GPU-side cull pass actually produced, so each
	// mesh-shader workgroup can index the render list itself instead of the host
	// needing the count back.
	vk.CmdDrawMeshTasksIndirectEXT(buf, list.Buffer, uint64(listArgsOffset), 1, 12)

	vk.CmdEndRendering(buf)
}

func (h *Hardware) Destroy() {
	vk.DestroyPipeline(h.device, h.pipeline, nil)
}
