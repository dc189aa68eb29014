// Package subscriber holds the in-process listeners of the feed and fans
// decoded events out to them.
package subscriber

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"runtime"
	"sync"

	"github.com/rickgao/livefeed/internal/decode"
)

// Errors
var (
	ErrNilListener          = errors.New("nil listener")
	ErrUncomparableListener = errors.New("listener type cannot be used as an identity key")
)

// Listener receives every successfully decoded event.
type Listener interface {
	HandleEvent(ev decode.Event)
}

// ListenerFunc adapts a function to Listener. Function values are not
// comparable, so register them through Func to be able to remove them later.
type ListenerFunc func(ev decode.Event)

// HandleEvent calls f(ev).
func (f ListenerFunc) HandleEvent(ev decode.Event) { f(ev) }

// funcListener gives a function a stable pointer identity.
type funcListener struct {
	fn ListenerFunc
}

func (l *funcListener) HandleEvent(ev decode.Event) { l.fn(ev) }

// Func wraps fn in a Listener with pointer identity. Keep the returned value
// to Unsubscribe.
func Func(fn func(ev decode.Event)) Listener {
	return &funcListener{fn: fn}
}

// ListenerError reports a listener that panicked during delivery.
type ListenerError struct {
	Listener Listener
	Value    any    // Recovered panic value
	Stack    []byte // Stack of the panicking goroutine
}

func (e *ListenerError) Error() string {
	return fmt.Sprintf("listener %T panicked: %v", e.Listener, e.Value)
}

// entry is one registration; removed is set under the registry lock.
type entry struct {
	listener Listener
	removed  bool
}

// Registry is an identity-keyed set of listeners. It is safe for concurrent
// use and may be mutated from inside a listener during Broadcast.
type Registry struct {
	logger *slog.Logger

	mu      sync.Mutex
	byID    map[Listener]*entry
	ordered []*entry // Registration order
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		logger: logger,
		byID:   make(map[Listener]*entry),
	}
}

// Subscribe adds l. Adding a listener that is already present is a no-op.
func (r *Registry) Subscribe(l Listener) error {
	if l == nil {
		return ErrNilListener
	}
	if !hashable(l) {
		return fmt.Errorf("%w: %T", ErrUncomparableListener, l)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.byID[l]; ok {
		return nil
	}
	e := &entry{listener: l}
	r.byID[l] = e
	r.ordered = append(r.ordered, e)
	return nil
}

// Unsubscribe removes l if present.
func (r *Registry) Unsubscribe(l Listener) {
	if l == nil || !hashable(l) {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.byID[l]
	if !ok {
		return
	}
	e.removed = true
	delete(r.byID, l)
	for i, o := range r.ordered {
		if o == e {
			r.ordered = append(r.ordered[:i:i], r.ordered[i+1:]...)
			break
		}
	}
}

// hashable reports whether l can be a map key. A comparable type may still
// hold an uncomparable value in an interface field, which only fails when
// the value is hashed.
func hashable(l Listener) (ok bool) {
	if !reflect.TypeOf(l).Comparable() {
		return false
	}
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	key := make(map[Listener]struct{}, 1)
	key[l] = struct{}{}
	return true
}

// Len returns the number of registered listeners.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Broadcast delivers ev to every registered listener synchronously and
// returns the number of listeners that handled it without panicking.
//
// Listeners added during the broadcast first see the next event. Listeners
// removed during the broadcast are not invoked if they have not run yet.
func (r *Registry) Broadcast(ev decode.Event) int {
	r.mu.Lock()
	snapshot := make([]*entry, len(r.ordered))
	copy(snapshot, r.ordered)
	r.mu.Unlock()

	delivered := 0
	for _, e := range snapshot {
		r.mu.Lock()
		removed := e.removed
		r.mu.Unlock()
		if removed {
			continue
		}

		if err := deliver(e.listener, ev); err != nil {
			r.logger.Error("listener failed",
				"event_id", ev.ID,
				"error", err,
				"stack", string(err.Stack),
			)
			continue
		}
		delivered++
	}
	return delivered
}

// deliver invokes one listener, converting a panic into a *ListenerError.
func deliver(l Listener, ev decode.Event) (err *ListenerError) {
	defer func() {
		if v := recover(); v != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			err = &ListenerError{Listener: l, Value: v, Stack: buf[:n]}
		}
	}()
	l.HandleEvent(ev)
	return nil
}
