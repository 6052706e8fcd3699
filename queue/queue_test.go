package queue

import "testing"

func TestSyncPointLaterPicksGreaterValue(t *testing.T) {
	a := SyncPoint{Kind: Graphics, Value: 5}
	b := SyncPoint{Kind: Graphics, Value: 9}
	if got := a.Later(b); got.Value != 9 {
		t.Fatalf("expected Later to pick value 9, got %d", got.Value)
	}
	if got := b.Later(a); got.Value != 9 {
		t.Fatalf("expected Later to be symmetric, got %d", got.Value)
	}
}

func TestSyncPointLaterZeroIsIdentity(t *testing.T) {
	zero := SyncPoint{}
	b := SyncPoint{Kind: Compute, Value: 3}
	if got := zero.Later(b); got != b {
		t.Fatalf("expected the zero SyncPoint to be the identity for Later, got %+v", got)
	}
}

func TestSyncPointLaterPanicsAcrossKinds(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected Later to panic when kinds differ")
		}
	}()
	a := SyncPoint{Kind: Graphics, Value: 1}
	b := SyncPoint{Kind: Transfer, Value: 2}
	a.Later(b)
}

func TestQueueWaitMergeCombinesBinarySemaphores(t *testing.T) {
	var w QueueWait
	w.Merge(QueueWait{Binary: []BinarySignal{{Semaphore: 1}}})
	w.Merge(QueueWait{Binary: []BinarySignal{{Semaphore: 2}}})
	if len(w.Binary) != 2 {
		t.Fatalf("expected 2 binary semaphores after merging, got %d", len(w.Binary))
	}
}

func TestQueueWaitMergeCombinesSameKindStages(t *testing.T) {
	var w QueueWait
	w.Merge(QueueWait{Graphics: &SyncStage{Point: SyncPoint{Kind: Graphics, Value: 1}, Stage: 0x1}})
	w.Merge(QueueWait{Graphics: &SyncStage{Point: SyncPoint{Kind: Graphics, Value: 4}, Stage: 0x2}})
	if w.Graphics.Point.Value != 4 {
		t.Fatalf("expected merged graphics wait to take the later value 4, got %d", w.Graphics.Point.Value)
	}
	if w.Graphics.Stage != 0x3 {
		t.Fatalf("expected merged graphics wait to union stage masks, got %x", w.Graphics.Stage)
	}
}

func TestQueuesGetAndMap(t *testing.T) {
	q := Queues[int]{Graphics: 1, Compute: 2, Transfer: 3}
	if *q.Get(Compute) != 2 {
		t.Fatalf("expected Get(Compute) to return 2, got %d", *q.Get(Compute))
	}
	doubled := Map(q, func(v int) int { return v * 2 })
	if doubled.Graphics != 2 || doubled.Compute != 4 || doubled.Transfer != 6 {
		t.Fatalf("unexpected Map result: %+v", doubled)
	}
}
