package graph

import (
	"testing"

	"github.com/dieselvk/radgraph/arena"
	"github.com/dieselvk/radgraph/queue"
	"github.com/dieselvk/radgraph/resource"
)

func newTestFrame() *Frame {
	return &Frame{graph: &RenderGraph{}, arena: arena.New()}
}

func bufferDescFixture() resource.BufferDesc {
	return resource.BufferDesc{Name: "scratch", Size: 256, Loc: resource.LocGPU}
}

// runPasses executes every declared pass's callback in order, without
// the real Run's compile/submit machinery — enough to exercise the
// transient-data plumbing and lifetime bookkeeping in isolation.
func runPasses(f *Frame) {
	ctx := &PassContext{resources: f.resources}
	for _, ev := range f.events {
		if ev.kind == eventPass {
			ev.pass.callback(ctx)
		}
	}
}

func TestDataOutputRoundTrips(t *testing.T) {
	f := newTestFrame()

	b := f.Pass("producer", queue.Graphics)
	setID, getID := DataOutput[int](b)
	b.Build(func(ctx *PassContext) {
		SetData(ctx, setID, 42)
	})

	b2 := f.Pass("consumer", queue.Graphics)
	b2.Build(func(ctx *PassContext) {
		if v := GetData(ctx, getID); v != 42 {
			t.Fatalf("expected consumer to read 42, got %d", v)
		}
	})

	runPasses(f)
}

func TestGetDataPanicsIfUnset(t *testing.T) {
	f := newTestFrame()
	b := f.Pass("only", queue.Graphics)
	_, getID := DataOutput[string](b)
	b.Build(func(ctx *PassContext) {
		defer func() {
			if recover() == nil {
				t.Fatalf("expected GetData on an unset slot to panic")
			}
		}()
		GetData(ctx, getID)
	})
	runPasses(f)
}

func TestRefDataDoesNotClearSlot(t *testing.T) {
	f := newTestFrame()
	b := f.Pass("producer", queue.Graphics)
	setID, getID := DataOutput[int](b)
	b.Build(func(ctx *PassContext) { SetData(ctx, setID, 7) })

	ref := getID.ToRef()
	b2 := f.Pass("reader-a", queue.Graphics)
	b2.Build(func(ctx *PassContext) {
		if RefData(ctx, ref) != 7 {
			t.Fatalf("expected 7")
		}
	})
	b3 := f.Pass("reader-b", queue.Graphics)
	b3.Build(func(ctx *PassContext) {
		if RefData(ctx, ref) != 7 {
			t.Fatalf("expected RefData to still read 7 after a prior RefData call")
		}
	})

	runPasses(f)
}

func TestReferenceBufferExtendsLifetime(t *testing.T) {
	f := newTestFrame()

	var id ResBuffer
	b := f.Pass("producer", queue.Graphics)
	id = b.Buffer("scratch", bufferDescFixture(), 0, 0, true)
	b.Build(func(*PassContext) {})

	before := f.resources[0].lifetime.End

	b2 := f.Pass("consumer", queue.Graphics)
	b2.ReferenceBuffer(id, 0, 0, false)
	b2.Build(func(*PassContext) {})

	after := f.resources[0].lifetime.End
	if after <= before {
		t.Fatalf("expected ReferenceBuffer to extend the resource's lifetime end, got before=%d after=%d", before, after)
	}
}

func TestHazardDetection(t *testing.T) {
	if !hazard(KindBuffer, usage{write: true}, usage{write: false}) {
		t.Fatalf("expected a write followed by a read to be a hazard")
	}
	if hazard(KindBuffer, usage{write: false}, usage{write: false}) {
		t.Fatalf("expected read-after-read on a buffer to not be a hazard")
	}
	if !hazard(KindImage, usage{layout: 1}, usage{layout: 2}) {
		t.Fatalf("expected a layout change to be a hazard even without a write")
	}
}

func TestTopoSortQueuesOrdersProducersBeforeConsumers(t *testing.T) {
	used := map[queue.Kind]bool{queue.Transfer: true, queue.Compute: true, queue.Graphics: true}
	waits := map[queue.Kind]bool{queue.Graphics: true}
	order, err := topoSortQueues(used, waits)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if order[len(order)-1] != queue.Graphics {
		t.Fatalf("expected the waiting queue to submit last, got order %v", order)
	}
}

func TestTopoSortQueuesRejectsAllWaiting(t *testing.T) {
	used := map[queue.Kind]bool{queue.Graphics: true}
	waits := map[queue.Kind]bool{queue.Graphics: true}
	if _, err := topoSortQueues(used, waits); err == nil {
		t.Fatalf("expected an error when every used queue is waiting with nothing submitted first")
	}
}
