// Package callback holds the name-keyed handler registries used to route
// inbound payload and event messages.
package callback

import (
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/Lysander66/gamecontroller/pkg/message"
)

var ErrHandlerPanic = errors.New("callback: handler panicked")

// Handler receives the decoded payload, or nil for a None shape.
type Handler func(payload any)

// FromHandler also receives the name of the player that sent the message.
type FromHandler func(sender string, payload any)

// Shape describes what a handler expects the payload document to decode to.
// The zero value is None.
type Shape struct {
	name   string
	decode func(raw string) (any, error)
}

// None marks a handler that takes no payload.
var None = Shape{}

// Of decodes the payload document as JSON into a T.
func Of[T any]() Shape {
	var zero T
	return Shape{
		name: fmt.Sprintf("%T", zero),
		decode: func(raw string) (any, error) {
			var v T
			if err := json.Unmarshal([]byte(raw), &v); err != nil {
				return nil, err
			}
			return v, nil
		},
	}
}

// Func uses a caller supplied decoder.
func Func(name string, decode func(raw string) (any, error)) Shape {
	return Shape{name: name, decode: decode}
}

func (s Shape) IsNone() bool {
	return s.decode == nil
}

func (s Shape) String() string {
	if s.IsNone() {
		return "none"
	}
	return s.name
}

// Decode turns raw into the handler argument.
func (s Shape) Decode(raw string) (any, error) {
	if s.IsNone() {
		return nil, nil
	}
	v, err := s.decode(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", message.ErrPayloadDecode, s, err)
	}
	return v, nil
}

// Entry holds either Handler or From.
type Entry struct {
	Shape   Shape
	Handler Handler
	From    FromHandler
}

func (e Entry) call(sender string, payload any) {
	if e.From != nil {
		e.From(sender, payload)
		return
	}
	e.Handler(payload)
}

// Registry maps a routing key to exactly one Entry.
type Registry struct {
	name    string
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewRegistry(name string) *Registry {
	return &Registry{
		name:    name,
		entries: make(map[string]Entry),
	}
}

func (r *Registry) Name() string {
	return r.name
}

// Register binds key to handler, replacing any earlier entry.
func (r *Registry) Register(key string, shape Shape, handler Handler) {
	r.mu.Lock()
	r.entries[key] = Entry{Shape: shape, Handler: handler}
	r.mu.Unlock()
}

// RegisterFrom is Register for a sender-aware handler.
func (r *Registry) RegisterFrom(key string, shape Shape, handler FromHandler) {
	r.mu.Lock()
	r.entries[key] = Entry{Shape: shape, From: handler}
	r.mu.Unlock()
}

func (r *Registry) Lookup(key string) (Entry, bool) {
	r.mu.RLock()
	entry, ok := r.entries[key]
	r.mu.RUnlock()
	return entry, ok
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

// Dispatch runs the handler registered for key with raw decoded to its shape.
// It reports whether a handler was found. A miss is not an error.
func (r *Registry) Dispatch(key, raw string) (bool, error) {
	return r.DispatchFrom("", key, raw)
}

// DispatchFrom is Dispatch with the sending player's name.
func (r *Registry) DispatchFrom(sender, key, raw string) (bool, error) {
	entry, ok := r.Lookup(key)
	if !ok || (entry.Handler == nil && entry.From == nil) {
		return false, nil
	}

	payload, err := entry.Shape.Decode(raw)
	if err != nil {
		return true, fmt.Errorf("%s %q: %w", r.name, key, err)
	}
	if err = invoke(entry, sender, payload); err != nil {
		return true, fmt.Errorf("%s %q: %w", r.name, key, err)
	}
	return true, nil
}

func invoke(entry Entry, sender string, payload any) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, p)
		}
	}()
	entry.call(sender, payload)
	return nil
}
