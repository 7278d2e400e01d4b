// Package registry maps capability interfaces to factories with a
// lifetime. It is built explicitly at startup and is read-only afterwards.
package registry

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"github.com/goliatone/go-errors"
)

type Lifetime int

const (
	// Transient builds a new instance on every resolution.
	Transient Lifetime = iota
	// Singleton builds the instance once, on first resolution.
	Singleton
)

func (l Lifetime) String() string {
	switch l {
	case Transient:
		return "transient"
	case Singleton:
		return "singleton"
	default:
		return fmt.Sprintf("lifetime(%d)", int(l))
	}
}

func (l Lifetime) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

const TextCodeServiceNotRegistered = "registry_service_not_registered"

// ErrServiceNotRegistered is returned when a capability has no registration.
var ErrServiceNotRegistered = errors.New("service not registered", errors.CategoryNotFound).
	WithTextCode(TextCodeServiceNotRegistered).
	WithCode(errors.CodeNotFound)

// Registration describes one registered capability.
type Registration struct {
	Key      string   `json:"key"`
	Lifetime Lifetime `json:"lifetime"`
}

type entry struct {
	lifetime Lifetime
	factory  func() (any, error)

	once     sync.Once
	instance any
	err      error
}

func (e *entry) resolve() (any, error) {
	if e.lifetime == Transient {
		return e.factory()
	}
	e.once.Do(func() {
		e.instance, e.err = e.factory()
	})
	return e.instance, e.err
}

type Registry struct {
	mu      sync.RWMutex
	entries map[string]*entry
}

func New() *Registry {
	return &Registry{entries: make(map[string]*entry)}
}

// Key returns the registry key of the capability T.
func Key[T any]() string {
	return reflect.TypeOf((*T)(nil)).Elem().String()
}

// Register binds factory to the capability T. A second registration for
// the same capability replaces the first.
func Register[T any](r *Registry, lifetime Lifetime, factory func() (T, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries[Key[T]()] = &entry{
		lifetime: lifetime,
		factory: func() (any, error) {
			return factory()
		},
	}
}

// Resolve builds or returns the instance registered for T.
func Resolve[T any](r *Registry) (T, error) {
	var zero T
	key := Key[T]()

	r.mu.RLock()
	e, ok := r.entries[key]
	r.mu.RUnlock()
	if !ok {
		return zero, errors.Wrap(ErrServiceNotRegistered, errors.CategoryNotFound, "service not registered").
			WithMetadata(map[string]any{"service": key})
	}

	v, err := e.resolve()
	if err != nil {
		return zero, errors.Wrap(err, errors.CategoryInternal, "failed to build service").
			WithMetadata(map[string]any{"service": key})
	}
	out, ok := v.(T)
	if !ok {
		return zero, fmt.Errorf("registry: %s resolved to %T", key, v)
	}
	return out, nil
}

// MustResolve is Resolve that panics on error.
func MustResolve[T any](r *Registry) T {
	v, err := Resolve[T](r)
	if err != nil {
		panic(err)
	}
	return v
}

// Clone returns a registry with the same registrations. Singletons are
// built independently by each registry.
func (r *Registry) Clone() *Registry {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := &Registry{entries: make(map[string]*entry, len(r.entries))}
	for k, e := range r.entries {
		out.entries[k] = &entry{lifetime: e.lifetime, factory: e.factory}
	}
	return out
}

// Describe lists the registrations sorted by key.
func (r *Registry) Describe() []Registration {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Registration, 0, len(r.entries))
	for k, e := range r.entries {
		out = append(out, Registration{Key: k, Lifetime: e.lifetime})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// Lookup reports the lifetime registered for T.
func Lookup[T any](r *Registry) (Lifetime, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[Key[T]()]
	if !ok {
		return 0, false
	}
	return e.lifetime, true
}
