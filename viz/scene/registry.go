// Package scene tracks what is currently in the viewer's 3D scene.
package scene

import (
	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Object is anything that can be placed in the scene.
type Object interface {
	Name() string
}

// Handle identifies one registration. Names are not unique; handles are.
type Handle uuid.UUID

func (h Handle) String() string {
	return uuid.UUID(h).String()
}

type entry struct {
	handle Handle
	object Object
}

// Registry is the ordered set of objects in the scene. It is not safe for concurrent use; the
// viewer serializes access.
type Registry struct {
	entries []entry
	version uint64
}

// NewRegistry returns an empty scene.
func NewRegistry() *Registry {
	return &Registry{}
}

// Add places obj in the scene under obj.Name().
func (r *Registry) Add(obj Object) Handle {
	h := Handle(uuid.New())
	r.entries = append(r.entries, entry{handle: h, object: obj})
	r.version++
	return h
}

// Remove takes obj out of the scene. It reports whether obj was present.
func (r *Registry) Remove(obj Object) bool {
	before := len(r.entries)
	r.entries = lo.Reject(r.entries, func(e entry, _ int) bool {
		return e.object == obj
	})
	if len(r.entries) == before {
		return false
	}
	r.version++
	return true
}

// RemoveHandle takes a single registration out of the scene.
func (r *Registry) RemoveHandle(h Handle) bool {
	_, idx, found := lo.FindIndexOf(r.entries, func(e entry) bool {
		return e.handle == h
	})
	if !found {
		return false
	}
	r.entries = append(r.entries[:idx], r.entries[idx+1:]...)
	r.version++
	return true
}

// Contains reports whether obj is in the scene.
func (r *Registry) Contains(obj Object) bool {
	return lo.ContainsBy(r.entries, func(e entry) bool {
		return e.object == obj
	})
}

// GetByName returns the most recently added object with the given name.
func (r *Registry) GetByName(name string) (Object, bool) {
	h, ok := r.HandleByName(name)
	if !ok {
		return nil, false
	}
	return r.Get(h)
}

// HandleByName returns the handle of the most recently added object with the given name.
func (r *Registry) HandleByName(name string) (Handle, bool) {
	e, _, found := lo.FindLastIndexOf(r.entries, func(e entry) bool {
		return e.object.Name() == name
	})
	return e.handle, found
}

// Get resolves a handle.
func (r *Registry) Get(h Handle) (Object, bool) {
	e, found := lo.Find(r.entries, func(e entry) bool {
		return e.handle == h
	})
	return e.object, found
}

// Objects lists the scene in insertion order.
func (r *Registry) Objects() []Object {
	return lo.Map(r.entries, func(e entry, _ int) Object {
		return e.object
	})
}

// Names lists object names in insertion order, duplicates included.
func (r *Registry) Names() []string {
	return lo.Map(r.entries, func(e entry, _ int) string {
		return e.object.Name()
	})
}

// Len is the number of registrations.
func (r *Registry) Len() int {
	return len(r.entries)
}

// Version increases on every change, letting renderers cache per-scene work.
func (r *Registry) Version() uint64 {
	return r.version
}
