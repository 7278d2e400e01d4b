package registry_test

import (
	stderrors "errors"
	"testing"

	"github.com/goliatone/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/goliatone/go-auth-bootstrap/registry"
)

type greeter interface {
	Greet() string
}

type english struct{ n int }

func (e *english) Greet() string { return "hello" }

func TestRegistry_Transient(t *testing.T) {
	r := registry.New()
	built := 0
	registry.Register[greeter](r, registry.Transient, func() (greeter, error) {
		built++
		return &english{n: built}, nil
	})

	a, err := registry.Resolve[greeter](r)
	require.NoError(t, err)
	b, err := registry.Resolve[greeter](r)
	require.NoError(t, err)

	assert.Equal(t, "hello", a.Greet())
	assert.NotSame(t, a, b)
	assert.Equal(t, 2, built)
}

func TestRegistry_Singleton(t *testing.T) {
	r := registry.New()
	built := 0
	registry.Register[greeter](r, registry.Singleton, func() (greeter, error) {
		built++
		return &english{}, nil
	})

	a := registry.MustResolve[greeter](r)
	b := registry.MustResolve[greeter](r)
	assert.Same(t, a, b)
	assert.Equal(t, 1, built)
}

func TestRegistry_ReplaceAndDescribe(t *testing.T) {
	r := registry.New()
	registry.Register[greeter](r, registry.Singleton, func() (greeter, error) { return &english{n: 1}, nil })
	registry.Register[greeter](r, registry.Transient, func() (greeter, error) { return &english{n: 2}, nil })

	g, err := registry.Resolve[greeter](r)
	require.NoError(t, err)
	assert.Equal(t, 2, g.(*english).n)

	desc := r.Describe()
	require.Len(t, desc, 1)
	assert.Equal(t, registry.Key[greeter](), desc[0].Key)
	assert.Equal(t, registry.Transient, desc[0].Lifetime)

	lt, ok := registry.Lookup[greeter](r)
	assert.True(t, ok)
	assert.Equal(t, "transient", lt.String())
}

func TestRegistry_Errors(t *testing.T) {
	r := registry.New()

	_, err := registry.Resolve[greeter](r)
	require.Error(t, err)
	var richErr *errors.Error
	require.True(t, errors.As(err, &richErr))
	assert.Equal(t, registry.TextCodeServiceNotRegistered, richErr.TextCode)
	assert.Equal(t, registry.Key[greeter](), richErr.Metadata["service"])

	registry.Register[greeter](r, registry.Transient, func() (greeter, error) {
		return nil, stderrors.New("boom")
	})
	_, err = registry.Resolve[greeter](r)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")

	assert.Panics(t, func() { registry.MustResolve[*english](r) })
}

func TestRegistry_Clone(t *testing.T) {
	r := registry.New()
	registry.Register[greeter](r, registry.Singleton, func() (greeter, error) {
		return &english{}, nil
	})

	clone := r.Clone()
	registry.Register[*english](r, registry.Transient, func() (*english, error) {
		return &english{}, nil
	})

	assert.Len(t, r.Describe(), 2)
	require.Len(t, clone.Describe(), 1)
	assert.Equal(t, registry.Singleton, clone.Describe()[0].Lifetime)

	_, err := registry.Resolve[*english](clone)
	assert.Error(t, err)
	assert.NotSame(t, registry.MustResolve[greeter](r), registry.MustResolve[greeter](clone))
}
