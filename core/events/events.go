// Package events implements the hook registry the engine fires around
// pipeline-stage execution. Extensions subscribe observers to named events;
// the engine fires them synchronously.
package events

import (
	"sync"

	"go.uber.org/zap"

	"github.com/goshell/gosh/core/spec"
)

// Documented hook names fired by the process launcher.
const (
	PreSpecRun  = "on_pre_spec_run"
	PostSpecRun = "on_post_spec_run"
)

// PreSpecRunFor returns the per-command pre-run hook name, e.g.
// "on_pre_spec_run_ls".
func PreSpecRunFor(name string) string {
	return PreSpecRun + "_" + name
}

// PostSpecRunFor returns the per-command post-run hook name.
func PostSpecRunFor(name string) string {
	return PostSpecRun + "_" + name
}

// Kind selects an event's firing semantics.
type Kind int

const (
	// Normal events fire every time.
	Normal Kind = iota
	// LoadOnce events fire at most once; observers subscribed after the
	// event has fired are called immediately with the recorded payload.
	LoadOnce
)

// Payload is the structured value every observer receives. Extra is reserved
// for forward compatibility: the engine may attach fields observers don't
// know about, and observers must ignore keys they don't recognize.
type Payload struct {
	// Name of the event being fired.
	Name string
	// Spec is the command spec of the stage, when the event concerns one.
	// It is mutable during pre-run events and frozen afterwards.
	Spec *spec.CommandSpec
	// Pgid is the process group of the stage's pipeline. Zero during
	// pre-run events: the process does not exist yet.
	Pgid int

	Extra map[string]any
}

// Observer is a hook callback.
type Observer func(Payload)

type hook struct {
	kind      Kind
	doc       string
	observers []entry
	nextID    int

	fired bool
	last  Payload
}

type entry struct {
	id int
	fn Observer
}

// Bus is the process-wide registry mapping event names to ordered observer
// lists. Observers fire in insertion order, but external code must not depend
// on that order being stable across subscribe/unsubscribe cycles.
//
// Firing is reentrant: an observer may fire events or subscribe new
// observers without deadlocking.
type Bus struct {
	mu    sync.RWMutex
	log   *zap.Logger
	hooks map[string]*hook
}

// NewBus creates an empty bus. A nil logger is replaced with a no-op one.
func NewBus(log *zap.Logger) *Bus {
	if log == nil {
		log = zap.NewNop()
	}
	return &Bus{
		log:   log,
		hooks: make(map[string]*hook),
	}
}

// Declare registers an event name with explicit semantics and documentation.
// Events fired or subscribed without declaration default to Normal.
func (b *Bus) Declare(name string, kind Kind, doc string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	h := b.hook(name)
	h.kind = kind
	h.doc = doc
}

// Doc returns the documentation string for a declared event.
func (b *Bus) Doc(name string) string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if h, ok := b.hooks[name]; ok {
		return h.doc
	}
	return ""
}

// must be called with b.mu held for writing.
func (b *Bus) hook(name string) *hook {
	h, ok := b.hooks[name]
	if !ok {
		h = &hook{}
		b.hooks[name] = h
	}
	return h
}

// On subscribes fn to the named event and returns a function that removes
// the subscription. Subscribing the same function twice registers it twice.
func (b *Bus) On(name string, fn Observer) (off func()) {
	b.mu.Lock()
	h := b.hook(name)
	h.nextID++
	id := h.nextID
	h.observers = append(h.observers, entry{id: id, fn: fn})
	replay := h.kind == LoadOnce && h.fired
	last := h.last
	b.mu.Unlock()

	// Late subscribers to load-once events observe the recorded firing.
	if replay {
		b.call(name, fn, last)
	}

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, e := range h.observers {
			if e.id == id {
				h.observers = append(h.observers[:i:i], h.observers[i+1:]...)
				return
			}
		}
	}
}

// Fire invokes every observer of the named event, in insertion order, with
// the given payload. Observer panics are contained: they are logged as
// warnings and remaining observers still fire. Firing an unknown event is a
// no-op. Load-once events ignore every firing after the first.
func (b *Bus) Fire(name string, p Payload) {
	p.Name = name

	b.mu.Lock()
	h, ok := b.hooks[name]
	if !ok {
		b.mu.Unlock()
		return
	}
	if h.kind == LoadOnce {
		if h.fired {
			b.mu.Unlock()
			return
		}
		h.fired = true
		h.last = p
	}
	// Snapshot so observers may subscribe/unsubscribe while we iterate.
	observers := make([]entry, len(h.observers))
	copy(observers, h.observers)
	b.mu.Unlock()

	for _, e := range observers {
		b.call(name, e.fn, p)
	}
}

// call runs one observer, converting a panic into a warning report.
func (b *Bus) call(name string, fn Observer, p Payload) {
	defer func() {
		if r := recover(); r != nil {
			b.log.Warn("event observer failed",
				zap.String("event", name),
				zap.Any("panic", r))
		}
	}()
	fn(p)
}
