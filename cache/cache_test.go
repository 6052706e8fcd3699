package cache

import (
	"testing"

	vk "github.com/vulkan-go/vulkan"
)

type fakeHandle struct{ id int }

type fakeResource struct {
	id       int
	destroyed *bool
}

func (f fakeResource) Handle() fakeHandle { return fakeHandle{id: f.id} }
func (f fakeResource) Destroy() {
	if f.destroyed != nil {
		*f.destroyed = true
	}
}

func newFakeFactory() (func() (fakeResource, error), *int) {
	n := 0
	return func() (fakeResource, error) {
		n++
		return fakeResource{id: n}, nil
	}, &n
}

func TestResourceCacheGrowsWithinGenerationThenReuses(t *testing.T) {
	c := NewResourceCache[string, fakeHandle, fakeResource]()
	create, n := newFakeFactory()

	h1, created1, _ := c.Get("scratch", create)
	h2, created2, _ := c.Get("scratch", create)
	if !created1 || !created2 {
		t.Fatalf("expected both concurrent requests within a generation to create distinct resources")
	}
	if h1 == h2 {
		t.Fatalf("expected distinct handles for concurrent same-shape requests, got %v twice", h1)
	}
	if *n != 2 {
		t.Fatalf("expected 2 resources created, got %d", *n)
	}

	c.Reset()
	h3, created3, _ := c.Get("scratch", create)
	if created3 {
		t.Fatalf("expected the first request next generation to reuse an existing resource")
	}
	if h3 != h1 {
		t.Fatalf("expected cursor to hand back the first resource after reset, got %v want %v", h3, h1)
	}
}

func TestResourceCacheReclaimsAfterDestroyLag(t *testing.T) {
	c := NewResourceCache[string, fakeHandle, fakeResource]()
	destroyed := false
	create := func() (fakeResource, error) { return fakeResource{id: 1, destroyed: &destroyed}, nil }

	c.Get("x", create)
	c.Reset() // finalizes the generation the resource was created and used in
	if destroyed {
		t.Fatalf("resource destroyed too early")
	}
	c.Reset() // first fully unused generation: unused == 1, below DestroyLag
	if destroyed {
		t.Fatalf("resource destroyed before reaching DestroyLag")
	}
	c.Reset() // second fully unused generation: unused == DestroyLag
	if !destroyed {
		t.Fatalf("expected resource unused for DestroyLag generations to be destroyed")
	}
}

func TestUniqueCacheSingleSlot(t *testing.T) {
	c := NewUniqueCache[string, fakeHandle, fakeResource]()
	create, n := newFakeFactory()

	h1, created1, _ := c.Get("a", create)
	h2, created2, _ := c.Get("a", create)
	if !created1 || created2 {
		t.Fatalf("expected the second request for the same descriptor to reuse the resource")
	}
	if h1 != h2 {
		t.Fatalf("expected the same handle from repeated requests, got %v and %v", h1, h2)
	}
	if *n != 1 {
		t.Fatalf("expected exactly 1 resource created, got %d", *n)
	}
}

func TestPersistentCacheUninitOnFirstGetAndDescChange(t *testing.T) {
	c := NewPersistentCache[int, fakeHandle, fakeResource]()
	create, _ := newFakeFactory()
	tok := NewToken()

	_, uninit1, layout1, _ := c.Get(tok, 10, vk.ImageLayoutGeneral, create)
	if !uninit1 {
		t.Fatalf("expected the first Get for a token to report uninit")
	}
	if layout1 != vk.ImageLayoutUndefined {
		t.Fatalf("expected undefined previous layout on first Get")
	}

	_, uninit2, layout2, _ := c.Get(tok, 10, vk.ImageLayoutGeneral, create)
	if uninit2 {
		t.Fatalf("expected a same-shape repeat Get to not report uninit")
	}
	if layout2 != vk.ImageLayoutGeneral {
		t.Fatalf("expected the previous layout to be returned, got %v", layout2)
	}

	_, uninit3, layout3, _ := c.Get(tok, 20, vk.ImageLayoutGeneral, create)
	if !uninit3 {
		t.Fatalf("expected a descriptor shape change to retire and recreate, reporting uninit")
	}
	if layout3 != vk.ImageLayoutUndefined {
		t.Fatalf("expected undefined previous layout after a shape-change recreate")
	}
}

func TestPersistentCacheGetDescReportsStoredDescriptor(t *testing.T) {
	c := NewPersistentCache[int, fakeHandle, fakeResource]()
	create, _ := newFakeFactory()
	tok := NewToken()
	c.Get(tok, 7, vk.ImageLayoutGeneral, create)

	desc, ok := c.GetDesc(tok)
	if !ok || desc != 7 {
		t.Fatalf("expected GetDesc to report the stored descriptor, got %v ok=%v", desc, ok)
	}
}
