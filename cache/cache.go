// Package cache implements the three tiers of resource reuse the
// render graph materializes virtual resources against each frame: a
// transient list per unnamed descriptor (many same-shaped resources
// live concurrently within one frame), a unique cache (one resource
// per unnamed descriptor, reused frame to frame), and a persistent
// cache keyed by a caller-held token so a resource can outlive its
// frame entirely (the HZB pyramid, accumulation buffers). Grounded on
// original_source/crates/rad-graph/src/graph/cache.rs's ResourceList,
// ResourceCache, UniqueCache and PersistentCache.
package cache

import (
	"sync/atomic"

	vk "github.com/vulkan-go/vulkan"

	"github.com/google/uuid"
)

// FramesInFlight bounds how many frames' worth of command buffers the
// device may be processing concurrently, and therefore how long a
// cache must keep an unused resource alive before it is safe to
// destroy (the GPU could still be reading it).
const FramesInFlight = 2

// DestroyLag is the number of consecutive unused generations a
// resource tolerates before a cache tier reclaims it.
const DestroyLag uint8 = FramesInFlight

// Resource is anything a cache tier can own: created once, handed out
// as a cheap Handle many times, destroyed once reclaimed.
type Resource[H any] interface {
	Handle() H
	Destroy()
}

type tracked[T any] struct {
	inner  T
	unused uint8
}

// List holds every resource ever created for one unnamed descriptor,
// most-recently-reset-first. Within a frame, each call to GetOrCreate
// advances a cursor through the list, creating a new resource only
// once every existing one has been claimed this generation — so N
// concurrent requests for the same shape get N distinct resources,
// and requesting fewer than last time leaves the remainder idle
// rather than destroying and recreating them.
type List[H any, T Resource[H]] struct {
	cursor    int
	resources []tracked[T]
}

func NewList[H any, T Resource[H]]() *List[H, T] {
	return &List[H, T]{}
}

// GetOrCreate returns the handle at the current cursor position,
// creating a new resource via create if the list has none left, and
// reports whether a new resource was created.
func (l *List[H, T]) GetOrCreate(create func() (T, error)) (H, bool, error) {
	if l.cursor < len(l.resources) {
		l.resources[l.cursor].unused = 0
		h := l.resources[l.cursor].inner.Handle()
		l.cursor++
		return h, false, nil
	}
	r, err := create()
	if err != nil {
		var zero H
		return zero, false, err
	}
	l.resources = append(l.resources, tracked[T]{inner: r})
	l.cursor++
	return r.Handle(), true, nil
}

// Reset ends the current generation: everything claimed this
// generation survives untouched, everything unclaimed ages by one
// generation and is destroyed once it has gone DestroyLag generations
// unused. Every handle returned since the last Reset is invalid after
// this call.
func (l *List[H, T]) Reset() {
	firstDestroyable := l.cursor
	for i := l.cursor; i < len(l.resources); i++ {
		l.resources[i].unused++
		if l.resources[i].unused >= DestroyLag {
			break
		}
		firstDestroyable++
	}
	for i := firstDestroyable; i < len(l.resources); i++ {
		l.resources[i].inner.Destroy()
	}
	l.resources = l.resources[:firstDestroyable]
	l.cursor = 0
}

func (l *List[H, T]) Destroy() {
	for _, r := range l.resources {
		r.inner.Destroy()
	}
	l.resources = nil
}

// ResourceCache is the transient tier: one List per unnamed
// descriptor, for resources whose identity resets every frame.
type ResourceCache[D comparable, H any, T Resource[H]] struct {
	lists map[D]*List[H, T]
}

func NewResourceCache[D comparable, H any, T Resource[H]]() *ResourceCache[D, H, T] {
	return &ResourceCache[D, H, T]{lists: make(map[D]*List[H, T])}
}

func (c *ResourceCache[D, H, T]) Get(desc D, create func() (T, error)) (H, bool, error) {
	list, ok := c.lists[desc]
	if !ok {
		list = NewList[H, T]()
		c.lists[desc] = list
	}
	return list.GetOrCreate(create)
}

// Reset ends the generation for every descriptor bucket. Call once
// per frame after every pass this frame has run.
func (c *ResourceCache[D, H, T]) Reset() {
	for _, l := range c.lists {
		l.Reset()
	}
}

func (c *ResourceCache[D, H, T]) Destroy() {
	for _, l := range c.lists {
		l.Destroy()
	}
}

// UniqueCache is the single-slot-per-descriptor tier: at most one live
// resource per unnamed descriptor, reused across frames as long as it
// keeps being requested.
type UniqueCache[D comparable, H any, T Resource[H]] struct {
	resources map[D]*tracked[T]
}

func NewUniqueCache[D comparable, H any, T Resource[H]]() *UniqueCache[D, H, T] {
	return &UniqueCache[D, H, T]{resources: make(map[D]*tracked[T])}
}

func (c *UniqueCache[D, H, T]) Get(desc D, create func() (T, error)) (H, bool, error) {
	if r, ok := c.resources[desc]; ok {
		r.unused = 0
		return r.inner.Handle(), false, nil
	}
	r, err := create()
	if err != nil {
		var zero H
		return zero, false, err
	}
	c.resources[desc] = &tracked[T]{inner: r}
	return r.Handle(), true, nil
}

// Reset ages every resource by one generation (a Get since the
// previous Reset has already put its count back to zero), destroying
// any whose count reaches DestroyLag, i.e. any not requested through
// DestroyLag consecutive Resets.
func (c *UniqueCache[D, H, T]) Reset() {
	for desc, r := range c.resources {
		r.unused++
		if r.unused >= DestroyLag {
			r.inner.Destroy()
			delete(c.resources, desc)
		}
	}
}

func (c *UniqueCache[D, H, T]) Destroy() {
	for _, r := range c.resources {
		r.inner.Destroy()
	}
	c.resources = nil
}

// Token is a stable identity a caller holds across frames to retrieve
// the same persistent resource — the Go analogue of the teacher's
// Persist<T>. Unlike the original's atomic counter, this uses
// google/uuid so tokens minted by independent subsystems (asset
// loading, the HZB pass, a user-level render feature) never collide
// without a shared counter to coordinate through.
type Token struct {
	id uuid.UUID
}

func NewToken() Token {
	return Token{id: uuid.New()}
}

func (t Token) String() string { return t.id.String() }

var tokenCount atomic.Int64 // diagnostic only; not part of token identity

type persistentEntry[D any, T any] struct {
	inner  T
	unused uint8
	desc   D
	age    uint64
	layout vk.ImageLayout
}

// PersistentCache is the third tier: a resource keyed by an explicit
// Token survives across frames as long as its descriptor stays the
// same shape; a shape change retires the old resource and recreates
// it, same as a first-ever Get.
type PersistentCache[D comparable, H any, T Resource[H]] struct {
	resources map[Token]*persistentEntry[D, T]
}

func NewPersistentCache[D comparable, H any, T Resource[H]]() *PersistentCache[D, H, T] {
	return &PersistentCache[D, H, T]{resources: make(map[Token]*persistentEntry[D, T])}
}

// GetDesc peeks at the descriptor last used to create the resource
// behind token, without affecting its generation — passes use this to
// decide whether a recreate is about to happen before committing to
// other work that assumes the old layout.
func (c *PersistentCache[D, H, T]) GetDesc(token Token) (D, bool) {
	if e, ok := c.resources[token]; ok {
		return e.desc, true
	}
	var zero D
	return zero, false
}

// Get returns the resource behind token, creating or recreating it as
// needed, and reports (handle, isUninit, previousLayout). isUninit is
// true on the very first Get for a token and any time the descriptor
// changed shape, signalling that the resource's contents (not just its
// handle) must be treated as garbage by the caller. previousLayout is
// vk.ImageLayoutUndefined in that same case, otherwise the layout the
// caller left the resource in after its last use.
func (c *PersistentCache[D, H, T]) Get(token Token, desc D, nextLayout vk.ImageLayout, create func() (T, error)) (H, bool, vk.ImageLayout, error) {
	e, ok := c.resources[token]
	if !ok {
		r, err := create()
		if err != nil {
			var zero H
			return zero, false, vk.ImageLayoutUndefined, err
		}
		tokenCount.Add(1)
		c.resources[token] = &persistentEntry[D, T]{inner: r, desc: desc, layout: nextLayout}
		return r.Handle(), true, vk.ImageLayoutUndefined, nil
	}

	if e.desc == desc {
		e.unused = 0
		old := e.layout
		e.layout = nextLayout
		e.age++
		return e.inner.Handle(), e.age < 1, old, nil
	}

	r, err := create()
	if err != nil {
		var zero H
		return zero, false, vk.ImageLayoutUndefined, err
	}
	e.inner.Destroy()
	e.inner = r
	e.unused = 0
	e.age = 0
	e.desc = desc
	e.layout = nextLayout
	return r.Handle(), true, vk.ImageLayoutUndefined, nil
}

// Reset ages every persistent resource by one generation (a Get since
// the previous Reset has already put its count back to zero),
// destroying any whose count reaches DestroyLag, i.e. any not requested
// through DestroyLag consecutive Resets — a persistent resource a
// caller stops requesting is eventually
// reclaimed rather than leaking forever.
func (c *PersistentCache[D, H, T]) Reset() {
	for token, e := range c.resources {
		e.unused++
		if e.unused >= DestroyLag {
			e.inner.Destroy()
			delete(c.resources, token)
		}
	}
}

func (c *PersistentCache[D, H, T]) Destroy() {
	for _, e := range c.resources {
		e.inner.Destroy()
	}
	c.resources = nil
}
