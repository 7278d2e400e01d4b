// Package mediator dispatches request messages to their registered handler.
// Handlers are registered explicitly, one per message type, on a go-command
// mux owned by the Mediator instance.
package mediator

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/goliatone/go-command"
	"github.com/goliatone/go-command/router"
	"github.com/goliatone/go-command/runner"
	"github.com/goliatone/go-errors"

	"github.com/goliatone/go-auth-bootstrap/logging"
)

// DefaultTimeout bounds a single handler execution.
const DefaultTimeout = 10 * time.Second

const TextCodeNoHandler = "mediator_no_handler"

// ErrNoHandler is returned when a message type has no handler.
var ErrNoHandler = errors.New("no handler registered for message", errors.CategoryNotFound).
	WithTextCode(TextCodeNoHandler).
	WithCode(errors.CodeNotFound)

// binding is stored as the mux handler. It is a pointer so the mux can
// compare entries when a registration is replaced.
type binding struct {
	call func(ctx context.Context, msg command.Message) error
}

// Mediator routes messages by their Type.
type Mediator struct {
	mux    *router.Mux
	runner *runner.Handler

	mu      sync.Mutex
	entries map[string]*router.Entry
}

type Option func(*options)

type options struct {
	timeout time.Duration
	logger  logging.Logger
}

// WithTimeout bounds every handler execution. Zero disables the bound.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

func WithLogger(l logging.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

func New(opts ...Option) *Mediator {
	o := options{timeout: DefaultTimeout, logger: logging.Nop()}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	return &Mediator{
		mux: router.NewMux(),
		runner: runner.NewHandler(
			runner.WithTimeout(o.timeout),
			runner.WithLogger(o.logger),
			// failures are returned to the dispatcher
			runner.WithErrorHandler(nil),
			runner.WithDoneHandler(nil),
		),
		entries: make(map[string]*router.Entry),
	}
}

// Register binds a handler to the message type T. Registering the same
// type again replaces the handler.
func Register[T command.Message](m *Mediator, h command.Commander[T]) {
	var zero T
	key := zero.Type()

	b := &binding{
		call: func(ctx context.Context, msg command.Message) error {
			typed, ok := msg.(T)
			if !ok {
				return noHandler(msg.Type())
			}
			return runner.RunCommand(ctx, m.runner, h, typed)
		},
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if prev, ok := m.entries[key]; ok {
		prev.Unsubscribe()
	}
	m.entries[key] = m.mux.Add(key, b)
}

// Dispatch validates msg and runs the handler registered for its type.
func (m *Mediator) Dispatch(ctx context.Context, msg command.Message) error {
	if msg == nil || command.IsNilMessage(msg) {
		return ErrNoHandler
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	entries := m.mux.Get(msg.Type())
	if len(entries) == 0 {
		return noHandler(msg.Type())
	}
	b, ok := entries[len(entries)-1].Handler.(*binding)
	if !ok {
		return noHandler(msg.Type())
	}
	return b.call(ctx, msg)
}

// Types returns the registered message types in sorted order.
func (m *Mediator) Types() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.entries))
	for k := range m.entries {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Has reports whether a handler is registered for the message type.
func (m *Mediator) Has(messageType string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.entries[messageType]
	return ok
}

func noHandler(messageType string) error {
	return errors.Wrap(ErrNoHandler, errors.CategoryNotFound, "no handler registered for message").
		WithTextCode(TextCodeNoHandler).
		WithMetadata(map[string]any{"type": messageType})
}
