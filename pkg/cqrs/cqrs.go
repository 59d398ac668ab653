// Package cqrs implements a small command/query bus. Commands mutate state
// and return only an error; queries return a result and never mutate.
// Handlers are registered per message name and dispatch is type-safe via
// generics.
package cqrs

import (
	"context"
	"errors"
	"fmt"
	"sync"
)

// ErrShuttingDown is returned when a message is dispatched to a bus that is
// shutting down.
var ErrShuttingDown = errors.New("bus is shutting down")

// Command represents an operation that changes the state of the system.
// Commands are named with verbs in imperative form (e.g. "CreateTenant").
type Command interface {
	// Name returns the unique name of the command.
	Name() string
}

// CommandHandler executes a single command type.
type CommandHandler[C Command] interface {
	Handle(cmd C) error
}

// Query represents a read-only request for information.
type Query interface {
	// Name returns the unique name of the query.
	Name() string
}

// QueryHandler answers a single query type.
type QueryHandler[Q Query] interface {
	Handle(q Q) (any, error)
}

// Bus routes commands and queries to their registered handlers. A Bus is
// safe for concurrent use. After Shutdown new messages are rejected while
// in-flight ones run to completion.
type Bus struct {
	mu           sync.RWMutex
	commands     map[string]func(Command) error
	queries      map[string]func(Query) (any, error)
	shuttingDown bool
	active       sync.WaitGroup
}

// NewBus creates an empty Bus. If ctx is non-nil the bus shuts down when
// the context is cancelled.
func NewBus(ctx context.Context) *Bus {
	b := &Bus{
		commands: make(map[string]func(Command) error),
		queries:  make(map[string]func(Query) (any, error)),
	}
	if ctx != nil {
		go func() {
			<-ctx.Done()
			b.Shutdown()
		}()
	}
	return b
}

// RegisterCommand registers a handler for the command type C. Registering a
// second handler for the same command name is an error.
func RegisterCommand[C Command](b *Bus, handler CommandHandler[C]) error {
	var zero C
	name := zero.Name()

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.commands[name]; exists {
		return fmt.Errorf("handler for command %s already registered", name)
	}
	b.commands[name] = func(cmd Command) error {
		typed, ok := cmd.(C)
		if !ok {
			return fmt.Errorf("command %s has unexpected type %T", name, cmd)
		}
		return handler.Handle(typed)
	}
	return nil
}

// RegisterQuery registers a handler for the query type Q.
func RegisterQuery[Q Query](b *Bus, handler QueryHandler[Q]) error {
	var zero Q
	name := zero.Name()

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.queries[name]; exists {
		return fmt.Errorf("handler for query %s already registered", name)
	}
	b.queries[name] = func(q Query) (any, error) {
		typed, ok := q.(Q)
		if !ok {
			return nil, fmt.Errorf("query %s has unexpected type %T", name, q)
		}
		return handler.Handle(typed)
	}
	return nil
}

// Dispatch sends a command to its handler and waits for the result.
func (b *Bus) Dispatch(cmd Command) error {
	b.mu.RLock()
	if b.shuttingDown {
		b.mu.RUnlock()
		return ErrShuttingDown
	}
	handle, exists := b.commands[cmd.Name()]
	if exists {
		b.active.Add(1)
	}
	b.mu.RUnlock()

	if !exists {
		return fmt.Errorf("no handler registered for command %s", cmd.Name())
	}
	defer b.active.Done()
	return handle(cmd)
}

// Ask sends a query to its handler and returns the answer.
func (b *Bus) Ask(q Query) (any, error) {
	b.mu.RLock()
	if b.shuttingDown {
		b.mu.RUnlock()
		return nil, ErrShuttingDown
	}
	handle, exists := b.queries[q.Name()]
	if exists {
		b.active.Add(1)
	}
	b.mu.RUnlock()

	if !exists {
		return nil, fmt.Errorf("no handler registered for query %s", q.Name())
	}
	defer b.active.Done()
	return handle(q)
}

// Shutdown stops the bus from accepting new messages. In-flight handlers
// keep running; use WaitForCompletion to wait for them.
func (b *Bus) Shutdown() {
	b.mu.Lock()
	b.shuttingDown = true
	b.mu.Unlock()
}

// WaitForCompletion blocks until every in-flight message has finished.
func (b *Bus) WaitForCompletion() {
	b.active.Wait()
}
