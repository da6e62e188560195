package tags

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"
)

// Registry is the canonical store for all plant tags. It is the only shared
// mutable structure in the engine: the tick driver commits its batch here,
// external writers land through the gate here, and every reader snapshots
// from here. A batch commit holds the write lock for the whole batch so
// concurrent snapshots never observe a half-applied tick.
type Registry struct {
	mu    sync.RWMutex
	tags  map[string]*entry
	names []string
}

type entry struct {
	meta      Tag
	value     Value
	updatedAt time.Time
}

// NewRegistry builds a registry from the tag catalog, seeding every tag with
// its declared default.
func NewRegistry(catalog []Tag, now time.Time) (*Registry, error) {
	if len(catalog) == 0 {
		return nil, errors.New("tags: empty catalog")
	}
	registry := &Registry{
		tags:  make(map[string]*entry, len(catalog)),
		names: make([]string, 0, len(catalog)),
	}
	for _, tag := range catalog {
		if tag.Name == "" {
			return nil, errors.New("tags: catalog tag with empty name")
		}
		if !tag.Type.Valid() {
			return nil, fmt.Errorf("tags: %s: invalid type", tag.Name)
		}
		if tag.Default.Kind() != tag.Type {
			return nil, fmt.Errorf("tags: %s: default is %s, declared %s", tag.Name, tag.Default.Kind(), tag.Type)
		}
		if _, exists := registry.tags[tag.Name]; exists {
			return nil, fmt.Errorf("tags: duplicate tag %s", tag.Name)
		}
		registry.tags[tag.Name] = &entry{meta: tag, value: tag.Default, updatedAt: now}
		registry.names = append(registry.names, tag.Name)
	}
	sort.Strings(registry.names)
	return registry, nil
}

// Get returns the current value of one tag.
func (r *Registry) Get(name string) (Value, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tag, ok := r.tags[name]
	if !ok {
		return Value{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return tag.value, nil
}

// Meta returns the immutable declaration of one tag.
func (r *Registry) Meta(name string) (Tag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	tag, ok := r.tags[name]
	if !ok {
		return Tag{}, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return tag.meta, nil
}

// Values reads several tags under one lock, so the result is a consistent
// view of a single commit. Unknown names are omitted.
func (r *Registry) Values(names []string) map[string]Value {
	out := make(map[string]Value, len(names))
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, name := range names {
		if tag, ok := r.tags[name]; ok {
			out[name] = tag.value
		}
	}
	return out
}

// Set writes a single tag, type-checked against its declaration.
func (r *Registry) Set(name string, value Value, now time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.setLocked(name, value, now)
}

// Apply commits a batch of updates under one write lock. Entries are applied
// in order, so a later update to the same tag wins. Invalid entries are
// skipped and reported; the rest of the batch still lands.
func (r *Registry) Apply(updates []Update, now time.Time) []UpdateError {
	var failed []UpdateError
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, update := range updates {
		if err := r.setLocked(update.Name, update.Value, now); err != nil {
			failed = append(failed, UpdateError{Name: update.Name, Err: err})
		}
	}
	return failed
}

func (r *Registry) setLocked(name string, value Value, now time.Time) error {
	tag, ok := r.tags[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if value.Kind() != tag.meta.Type {
		return fmt.Errorf("%w: %s is %s, got %s", ErrTypeMismatch, name, tag.meta.Type, value.Kind())
	}
	tag.value = value
	tag.updatedAt = now
	return nil
}

// Snapshot returns every tag with metadata, ordered by name.
func (r *Registry) Snapshot() []State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]State, 0, len(r.names))
	for _, name := range r.names {
		tag := r.tags[name]
		out = append(out, State{
			Name:        name,
			Value:       tag.value,
			Type:        tag.meta.Type,
			Unit:        tag.meta.Unit,
			Description: tag.meta.Description,
			UpdatedAt:   tag.updatedAt,
		})
	}
	return out
}

// ResetDefaults restores every tag to its declared default in one commit.
func (r *Registry) ResetDefaults(now time.Time) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, tag := range r.tags {
		tag.value = tag.meta.Default
		tag.updatedAt = now
	}
}

// Names returns all tag names in snapshot order.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Len returns the number of declared tags.
func (r *Registry) Len() int {
	return len(r.names)
}
