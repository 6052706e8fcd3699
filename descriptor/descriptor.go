// Package descriptor implements the global bindless descriptor table:
// one pool, one set, one pipeline layout with a single 128-byte
// push-constant range used by every pipeline in the graph. It is
// grounded on original_source's device/descriptor.rs, translated from
// ash builder calls into the teacher's raw vulkan-go struct-literal
// style (context.go, pipeline.go).
package descriptor

import (
	"fmt"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/internal/rgerr"
)

func unsafePtr(p *vk.DescriptorSetLayoutBindingFlagsCreateInfo) unsafe.Pointer {
	return unsafe.Pointer(p)
}

// PushConstantSize is the single push-constant range every pipeline layout
// created against this descriptor table uses.
const PushConstantSize = 128

// Binding indices within the one descriptor set, matching the four
// opaque ID kinds the core exposes to shaders.
const (
	BindingSampledImage = 0
	BindingStorageImage = 1
	BindingSampler      = 2
	BindingAS           = 3
)

// Capacity controls how many slots each bindless array gets. Real
// devices advertise far larger limits; callers may lower these for
// testing.
type Capacity struct {
	SampledImages uint32
	StorageImages uint32
	Samplers      uint32
	AS            uint32
}

// DefaultCapacity mirrors the "hundreds of thousands" scale the spec calls for.
var DefaultCapacity = Capacity{
	SampledImages: 512 * 1024,
	StorageImages: 512 * 1024,
	Samplers:      512,
	AS:            512 * 1024,
}

// ImageId, StorageImageId, SamplerId and ASId are opaque non-zero
// indices into their respective bindless array.
type ImageId uint32
type StorageImageId uint32
type SamplerId uint32
type ASId uint32

// freeList is a LIFO free list over [1, max) plus a high-water counter,
// implementing the "get_*"/"return_*" contract from §4.2.
type freeList struct {
	max         uint32
	highWater   uint32
	returned    []uint32
}

func newFreeList(max uint32) *freeList {
	return &freeList{max: max, highWater: 1}
}

func (f *freeList) get() uint32 {
	if n := len(f.returned); n > 0 {
		idx := f.returned[n-1]
		f.returned = f.returned[:n-1]
		return idx
	}
	v := f.highWater
	if v >= f.max {
		panic(fmt.Sprintf("too many descriptor indices allocated (max %d)", f.max))
	}
	f.highWater++
	return v
}

func (f *freeList) put(idx uint32) {
	f.returned = append(f.returned, idx)
}

// Table owns the one descriptor pool, set and pipeline layout.
type Table struct {
	device vk.Device
	pool   vk.DescriptorPool
	layout vk.DescriptorSetLayout
	set    vk.DescriptorSet

	pipelineLayout vk.PipelineLayout

	sampledImages *freeList
	storageImages *freeList
	samplers      *freeList
	ases          *freeList
}

// New creates the descriptor table against device with the given capacity.
func New(device vk.Device, cap Capacity) (*Table, error) {
	bindingFlags := vk.DescriptorBindingFlags(
		vk.DescriptorBindingUpdateAfterBindBit |
			vk.DescriptorBindingPartiallyBoundBit |
			vk.DescriptorBindingUpdateUnusedWhilePendingBit,
	)
	flags := []vk.DescriptorBindingFlags{bindingFlags, bindingFlags, bindingFlags, bindingFlags}

	bindingFlagsInfo := vk.DescriptorSetLayoutBindingFlagsCreateInfo{
		SType:         vk.StructureTypeDescriptorSetLayoutBindingFlagsCreateInfo,
		BindingCount:  uint32(len(flags)),
		PBindingFlags: flags,
	}

	bindings := []vk.DescriptorSetLayoutBinding{
		{Binding: BindingSampledImage, DescriptorType: vk.DescriptorTypeSampledImage, DescriptorCount: cap.SampledImages, StageFlags: vk.ShaderStageFlags(vk.ShaderStageAll)},
		{Binding: BindingStorageImage, DescriptorType: vk.DescriptorTypeStorageImage, DescriptorCount: cap.StorageImages, StageFlags: vk.ShaderStageFlags(vk.ShaderStageAll)},
		{Binding: BindingSampler, DescriptorType: vk.DescriptorTypeSampler, DescriptorCount: cap.Samplers, StageFlags: vk.ShaderStageFlags(vk.ShaderStageAll)},
		{Binding: BindingAS, DescriptorType: vk.DescriptorTypeAccelerationStructureNv, DescriptorCount: cap.AS, StageFlags: vk.ShaderStageFlags(vk.ShaderStageAll)},
	}

	var layout vk.DescriptorSetLayout
	ret := vk.CreateDescriptorSetLayout(device, &vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		PNext:        unsafePtr(&bindingFlagsInfo),
		Flags:        vk.DescriptorSetLayoutCreateFlags(vk.DescriptorSetLayoutCreateUpdateAfterBindPoolBitExt),
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}, nil, &layout)
	if err := rgerr.FromResult(ret); err != nil {
		return nil, err
	}

	poolSizes := []vk.DescriptorPoolSize{
		{Type: vk.DescriptorTypeSampledImage, DescriptorCount: cap.SampledImages},
		{Type: vk.DescriptorTypeStorageImage, DescriptorCount: cap.StorageImages},
		{Type: vk.DescriptorTypeSampler, DescriptorCount: cap.Samplers},
		{Type: vk.DescriptorTypeAccelerationStructureNv, DescriptorCount: cap.AS},
	}

	var pool vk.DescriptorPool
	ret = vk.CreateDescriptorPool(device, &vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateUpdateAfterBindBitExt),
		MaxSets:       1,
		PoolSizeCount: uint32(len(poolSizes)),
		PPoolSizes:    poolSizes,
	}, nil, &pool)
	if err := rgerr.FromResult(ret); err != nil {
		vk.DestroyDescriptorSetLayout(device, layout, nil)
		return nil, err
	}

	sets := make([]vk.DescriptorSet, 1)
	ret = vk.AllocateDescriptorSets(device, &vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     pool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{layout},
	}, sets)
	if err := rgerr.FromResult(ret); err != nil {
		vk.DestroyDescriptorPool(device, pool, nil)
		vk.DestroyDescriptorSetLayout(device, layout, nil)
		return nil, err
	}

	var pipelineLayout vk.PipelineLayout
	ret = vk.CreatePipelineLayout(device, &vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{layout},
		PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageAll),
			Offset:     0,
			Size:       PushConstantSize,
		}},
	}, nil, &pipelineLayout)
	if err := rgerr.FromResult(ret); err != nil {
		vk.DestroyDescriptorPool(device, pool, nil)
		vk.DestroyDescriptorSetLayout(device, layout, nil)
		return nil, err
	}

	return &Table{
		device:         device,
		pool:           pool,
		layout:         layout,
		set:            sets[0],
		pipelineLayout: pipelineLayout,
		sampledImages:  newFreeList(cap.SampledImages),
		storageImages:  newFreeList(cap.StorageImages),
		samplers:       newFreeList(cap.Samplers),
		ases:           newFreeList(cap.AS),
	}, nil
}

// Set returns the one bound descriptor set.
func (t *Table) Set() vk.DescriptorSet { return t.set }

// Layout returns the descriptor set layout, for pipeline creation.
func (t *Table) Layout() vk.DescriptorSetLayout { return t.layout }

// PipelineLayout returns the single pipeline layout every pipeline uses.
func (t *Table) PipelineLayout() vk.PipelineLayout { return t.pipelineLayout }

// GetImage binds view as a sampled image and returns its descriptor ID.
func (t *Table) GetImage(view vk.ImageView) ImageId {
	idx := t.sampledImages.get()
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          t.set,
		DstBinding:      BindingSampledImage,
		DstArrayElement: idx,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeSampledImage,
		PImageInfo: []vk.DescriptorImageInfo{{
			ImageView:   view,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}},
	}
	vk.UpdateDescriptorSets(t.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return ImageId(idx)
}

// GetStorageImage binds view as a storage image and returns its descriptor ID.
func (t *Table) GetStorageImage(view vk.ImageView) StorageImageId {
	idx := t.storageImages.get()
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          t.set,
		DstBinding:      BindingStorageImage,
		DstArrayElement: idx,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeStorageImage,
		PImageInfo: []vk.DescriptorImageInfo{{
			ImageView:   view,
			ImageLayout: vk.ImageLayoutGeneral,
		}},
	}
	vk.UpdateDescriptorSets(t.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return StorageImageId(idx)
}

// GetSampler binds sampler and returns its descriptor ID.
func (t *Table) GetSampler(sampler vk.Sampler) SamplerId {
	idx := t.samplers.get()
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          t.set,
		DstBinding:      BindingSampler,
		DstArrayElement: idx,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler: sampler,
		}},
	}
	vk.UpdateDescriptorSets(t.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return SamplerId(idx)
}

// GetAS binds as_ and returns its descriptor ID.
func (t *Table) GetAS(as_ vk.AccelerationStructureNV) ASId {
	idx := t.ases.get()
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          t.set,
		DstBinding:      BindingAS,
		DstArrayElement: idx,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeAccelerationStructureNv,
	}
	vk.UpdateDescriptorSets(t.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return ASId(idx)
}

// ReturnImage, ReturnStorageImage, ReturnSampler and ReturnAS push a
// slot back onto its free list for future reuse.
func (t *Table) ReturnImage(id ImageId)               { t.sampledImages.put(uint32(id)) }
func (t *Table) ReturnStorageImage(id StorageImageId)  { t.storageImages.put(uint32(id)) }
func (t *Table) ReturnSampler(id SamplerId)            { t.samplers.put(uint32(id)) }
func (t *Table) ReturnAS(id ASId)                      { t.ases.put(uint32(id)) }

// Destroy releases the pool, set layout and pipeline layout.
func (t *Table) Destroy() {
	vk.DestroyPipelineLayout(t.device, t.pipelineLayout, nil)
	vk.DestroyDescriptorPool(t.device, t.pool, nil)
	vk.DestroyDescriptorSetLayout(t.device, t.layout, nil)
}
