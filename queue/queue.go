// Package queue implements the timeline-semaphore submission layer the
// render graph schedules work onto: one queue per Kind (graphics,
// compute, transfer), each advancing its own monotonic counter so a
// SyncPoint can be compared and waited on without a CPU-side fence per
// submission. Grounded on
// original_source/crates/lib/graph/src/device/queue.rs, whose
// Graphics/Compute/Transfer phantom-typed SyncPoint<T> has no direct
// Go equivalent (Go generics can't specialize behavior per type
// parameter) — here Kind is a runtime enum instead, and SyncPoint
// carries it alongside the timeline value so misuse across kinds is
// still an explicit runtime check rather than silently allowed.
package queue

import (
	"fmt"
	"sync"
	"sync/atomic"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"github.com/dieselvk/radgraph/internal/rgerr"
)

// Kind names one of the three queue families the graph can submit to.
type Kind int

const (
	Graphics Kind = iota
	Compute
	Transfer
	numKinds
)

func (k Kind) String() string {
	switch k {
	case Graphics:
		return "graphics"
	case Compute:
		return "compute"
	case Transfer:
		return "transfer"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Queues bundles one T per queue kind, mirroring the teacher's
// Queues<T> generic-queue-type struct.
type Queues[T any] struct {
	Graphics T
	Compute  T
	Transfer T
}

func (q *Queues[T]) Get(k Kind) *T {
	switch k {
	case Graphics:
		return &q.Graphics
	case Compute:
		return &q.Compute
	case Transfer:
		return &q.Transfer
	default:
		panic(fmt.Sprintf("queue: invalid Kind %d", int(k)))
	}
}

// Map applies f to every queue slot, producing a Queues of a new type —
// the Go equivalent of the teacher's Queues::map.
func Map[T, U any](q Queues[T], f func(T) U) Queues[U] {
	return Queues[U]{Graphics: f(q.Graphics), Compute: f(q.Compute), Transfer: f(q.Transfer)}
}

// SyncPoint identifies a position on one queue's timeline semaphore:
// "everything submitted up to and including submission number Value."
type SyncPoint struct {
	Kind  Kind
	Value uint64
}

// Later returns whichever of the two points is further along the
// timeline. Both must share a Kind.
func (s SyncPoint) Later(other SyncPoint) SyncPoint {
	if s.Value == 0 {
		return other
	}
	if other.Value == 0 {
		return s
	}
	if s.Kind != other.Kind {
		panic(fmt.Sprintf("queue: Later() called across kinds %s and %s", s.Kind, other.Kind))
	}
	if other.Value > s.Value {
		return other
	}
	return s
}

// Wait blocks the calling CPU thread until the queue's timeline
// semaphore reaches this point.
func (s SyncPoint) Wait(device vk.Device, sem vk.Semaphore) error {
	if s.Value == 0 {
		return nil
	}
	values := []uint64{s.Value}
	sems := []vk.Semaphore{sem}
	ret := vk.WaitSemaphores(device, &vk.SemaphoreWaitInfo{
		SType:          vk.StructureTypeSemaphoreWaitInfo,
		SemaphoreCount: 1,
		PSemaphores:    sems,
		PValues:        values,
	}, ^uint64(0))
	return rgerr.FromResult(ret)
}

// IsComplete reports whether the queue's timeline semaphore has
// already reached this point, without blocking.
func (s SyncPoint) IsComplete(device vk.Device, sem vk.Semaphore) (bool, error) {
	if s.Value == 0 {
		return true, nil
	}
	var v uint64
	ret := vk.GetSemaphoreCounterValue(device, sem, &v)
	if err := rgerr.FromResult(ret); err != nil {
		return false, err
	}
	return v >= s.Value, nil
}

// SyncStage pairs a SyncPoint with the pipeline stages that must
// complete before it, for use as a wait or signal in a submission.
type SyncStage struct {
	Point SyncPoint
	Stage vk.PipelineStageFlagBits2
}

// Merge folds other into s: the later of the two points, the union of
// the two stage masks.
func (s *SyncStage) Merge(other SyncStage) {
	s.Point = s.Point.Later(other.Point)
	s.Stage |= other.Stage
}

// BinarySignal is a plain (non-timeline) semaphore wait/signal, used
// only at the swapchain acquire/present boundary.
type BinarySignal struct {
	Semaphore vk.Semaphore
	Stage     vk.PipelineStageFlagBits2
}

// QueueWait is the heterogeneous wait set a submission can depend on:
// up to one SyncStage per timeline queue kind, plus any number of
// binary semaphores.
type QueueWait struct {
	Graphics *SyncStage
	Compute  *SyncStage
	Transfer *SyncStage
	Binary   []BinarySignal
}

// IsEmpty reports whether the wait set has nothing to wait on.
func (w QueueWait) IsEmpty() bool {
	return w.Graphics == nil && w.Compute == nil && w.Transfer == nil && len(w.Binary) == 0
}

// Merge folds other into w, combining same-kind waits with SyncStage.Merge.
func (w *QueueWait) Merge(other QueueWait) {
	mergeStage(&w.Graphics, other.Graphics)
	mergeStage(&w.Compute, other.Compute)
	mergeStage(&w.Transfer, other.Transfer)
	w.Binary = append(w.Binary, other.Binary...)
}

func mergeStage(dst **SyncStage, src *SyncStage) {
	if src == nil {
		return
	}
	if *dst == nil {
		cp := *src
		*dst = &cp
		return
	}
	(*dst).Merge(*src)
}

// Data owns one queue family's vk.Queue, its timeline semaphore and
// the atomic counter tracking the last value submitted.
type Data struct {
	kind   Kind
	mu     sync.Mutex
	handle vk.Queue
	family uint32
	sem    vk.Semaphore
	value  atomic.Uint64
}

// New creates the timeline semaphore for a queue family and wraps its
// vk.Queue handle.
func New(device vk.Device, kind Kind, family uint32) (*Data, error) {
	handle := fetchQueue(device, family)

	typeInfo := vk.SemaphoreTypeCreateInfo{
		SType:         vk.StructureTypeSemaphoreTypeCreateInfo,
		SemaphoreType: vk.SemaphoreTypeTimeline,
		InitialValue:  0,
	}
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(device, &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
		PNext: unsafe.Pointer(&typeInfo),
	}, nil, &sem)
	if err := rgerr.FromResult(ret); err != nil {
		return nil, err
	}

	return &Data{kind: kind, handle: handle, family: family, sem: sem}, nil
}

func fetchQueue(device vk.Device, family uint32) vk.Queue {
	var q vk.Queue
	vk.GetDeviceQueue(device, family, 0, &q)
	return q
}

func (d *Data) Family() uint32        { return d.family }
func (d *Data) Semaphore() vk.Semaphore { return d.sem }

// Current reads the last value this queue's Submit handed out,
// without querying the device.
func (d *Data) Current() SyncPoint {
	return SyncPoint{Kind: d.kind, Value: d.value.Load()}
}

// Submit records the wait set and signal set into a vkQueueSubmit2 and
// returns the SyncPoint the caller can later wait or branch on.
func (d *Data) Submit(qs *Queues[*Data], wait QueueWait, bufs []vk.CommandBuffer, signal []BinarySignal, fence vk.Fence) (SyncPoint, error) {
	var waitInfos []vk.SemaphoreSubmitInfo
	appendWait := func(s *SyncStage, sem vk.Semaphore) {
		if s == nil {
			return
		}
		waitInfos = append(waitInfos, vk.SemaphoreSubmitInfo{
			SType:     vk.StructureTypeSemaphoreSubmitInfo,
			Semaphore: sem,
			Value:     s.Point.Value,
			StageMask: vk.PipelineStageFlags2(s.Stage),
		})
	}
	appendWait(wait.Graphics, qs.Graphics.sem)
	appendWait(wait.Compute, qs.Compute.sem)
	appendWait(wait.Transfer, qs.Transfer.sem)
	for _, b := range wait.Binary {
		waitInfos = append(waitInfos, vk.SemaphoreSubmitInfo{
			SType:     vk.StructureTypeSemaphoreSubmitInfo,
			Semaphore: b.Semaphore,
			StageMask: vk.PipelineStageFlags2(b.Stage),
		})
	}

	cmdInfos := make([]vk.CommandBufferSubmitInfo, len(bufs))
	for i, b := range bufs {
		cmdInfos[i] = vk.CommandBufferSubmitInfo{
			SType:         vk.StructureTypeCommandBufferSubmitInfo,
			CommandBuffer: b,
		}
	}

	next := d.value.Add(1)
	signalInfos := make([]vk.SemaphoreSubmitInfo, 0, 1+len(signal))
	signalInfos = append(signalInfos, vk.SemaphoreSubmitInfo{
		SType:     vk.StructureTypeSemaphoreSubmitInfo,
		Semaphore: d.sem,
		Value:     next,
		StageMask: vk.PipelineStageFlags2(vk.PipelineStage2AllCommandsBit),
	})
	for _, s := range signal {
		signalInfos = append(signalInfos, vk.SemaphoreSubmitInfo{
			SType:     vk.StructureTypeSemaphoreSubmitInfo,
			Semaphore: s.Semaphore,
			StageMask: vk.PipelineStageFlags2(s.Stage),
		})
	}

	d.mu.Lock()
	ret := vk.QueueSubmit2(d.handle, 1, []vk.SubmitInfo2{{
		SType:                    vk.StructureTypeSubmitInfo2,
		WaitSemaphoreInfoCount:   uint32(len(waitInfos)),
		PWaitSemaphoreInfos:      waitInfos,
		CommandBufferInfoCount:   uint32(len(cmdInfos)),
		PCommandBufferInfos:      cmdInfos,
		SignalSemaphoreInfoCount: uint32(len(signalInfos)),
		PSignalSemaphoreInfos:    signalInfos,
	}}, fence)
	d.mu.Unlock()

	if err := rgerr.FromResult(ret); err != nil {
		return SyncPoint{}, err
	}
	return SyncPoint{Kind: d.kind, Value: next}, nil
}

func (d *Data) Destroy(device vk.Device) {
	vk.DestroySemaphore(device, d.sem, nil)
}
