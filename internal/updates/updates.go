// Package updates carries the discrete state changes produced by batch
// operations to whoever applies them.
package updates

import (
	"context"
	"sync"
)

// Effect is one atomic state change. Key scopes it, usually to a collection id.
type Effect interface {
	Kind() string
	Key() string
}

type Sink interface {
	Apply(ctx context.Context, e Effect) error
}

type SinkFunc func(ctx context.Context, e Effect) error

func (f SinkFunc) Apply(ctx context.Context, e Effect) error { return f(ctx, e) }

const KindAddError = "add_error"

// Error is a titled, user-facing failure scoped to one collection.
type Error struct {
	Title        string `json:"title"`
	Message      string `json:"message"`
	CollectionID string `json:"collectionId,omitempty"`
}

func (Error) Kind() string { return KindAddError }
func (e Error) Key() string { return e.CollectionID }
func (e Error) Error() string { return e.Title + ": " + e.Message }

type Nop struct{}

func (Nop) Apply(context.Context, Effect) error { return nil }

// Recorder keeps every applied effect in order. Safe for concurrent use.
type Recorder struct {
	mu      sync.Mutex
	effects []Effect
}

func (r *Recorder) Apply(_ context.Context, e Effect) error {
	r.mu.Lock()
	r.effects = append(r.effects, e)
	r.mu.Unlock()
	return nil
}

func (r *Recorder) Effects() []Effect {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Effect, len(r.effects))
	copy(out, r.effects)
	return out
}

func (r *Recorder) Errors() []Error {
	var out []Error
	for _, e := range r.Effects() {
		if ee, ok := e.(Error); ok {
			out = append(out, ee)
		}
	}
	return out
}

// Fanout applies each effect to every sink and returns the first error.
type Fanout []Sink

func (f Fanout) Apply(ctx context.Context, e Effect) error {
	var first error
	for _, s := range f {
		if s == nil {
			continue
		}
		if err := s.Apply(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
