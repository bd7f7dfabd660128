package registry

import (
	"sync"

	"github.com/wippyai/xll-runtime/callback"
	"github.com/wippyai/xll-runtime/errors"
	"go.uber.org/multierr"
)

// Handle refers to a registration held by a Table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// EventType identifies a registration lifecycle notification.
type EventType uint8

const (
	EventRegistered EventType = iota
	EventReplaced
	EventUnregistered
)

func (t EventType) String() string {
	switch t {
	case EventRegistered:
		return "registered"
	case EventReplaced:
		return "replaced"
	case EventUnregistered:
		return "unregistered"
	}
	return "unknown"
}

// Event is delivered to observers after the table changes.
type Event struct {
	Registration *Registration
	Handle       Handle
	Type         EventType
}

// Observer receives registration lifecycle events.
type Observer interface {
	OnRegistrationEvent(Event)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(Event)

func (f ObserverFunc) OnRegistrationEvent(e Event) { f(e) }

type slot struct {
	reg   *Registration
	valid bool
}

// Table tracks the procedures an add-in has registered, so that they can be
// found by name and withdrawn together when the add-in closes.
type Table struct {
	slots       []slot
	freeList    []Handle
	byProcedure map[string]Handle
	mu          sync.RWMutex

	observers []Observer
	obsMu     sync.RWMutex
}

// NewTable creates an empty table.
func NewTable() *Table {
	return &Table{
		slots:       make([]slot, 0, 16),
		byProcedure: make(map[string]Handle),
	}
}

// Register registers fn with the host and records the result. Registering a
// procedure that is already present replaces its entry under the same handle.
func (t *Table) Register(b *callback.Boundary, module string, fn any, f Function) (Handle, error) {
	r, err := Register(b, module, fn, f)
	if err != nil {
		return 0, err
	}
	return t.Add(r), nil
}

// Add records a registration made elsewhere.
func (t *Table) Add(r *Registration) Handle {
	t.mu.Lock()
	typ := EventRegistered
	h, ok := t.byProcedure[r.Function.Procedure]
	switch {
	case ok:
		typ = EventReplaced
		t.slots[h-1].reg = r
	case len(t.freeList) > 0:
		h = t.freeList[len(t.freeList)-1]
		t.freeList = t.freeList[:len(t.freeList)-1]
		t.slots[h-1] = slot{reg: r, valid: true}
	default:
		t.slots = append(t.slots, slot{reg: r, valid: true})
		h = Handle(len(t.slots))
	}
	t.byProcedure[r.Function.Procedure] = h
	t.mu.Unlock()

	t.notify(Event{Type: typ, Handle: h, Registration: r})
	return h
}

// Get retrieves a registration by handle.
func (t *Table) Get(h Handle) (*Registration, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.get(h)
}

func (t *Table) get(h Handle) (*Registration, bool) {
	if h == 0 || int(h) > len(t.slots) {
		return nil, false
	}
	s := t.slots[h-1]
	return s.reg, s.valid
}

// Lookup finds a registration by procedure name.
func (t *Table) Lookup(procedure string) (Handle, *Registration, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	h, ok := t.byProcedure[procedure]
	if !ok {
		return 0, nil, false
	}
	r, ok := t.get(h)
	return h, r, ok
}

// Len returns the number of live registrations.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byProcedure)
}

// Each calls fn for every live registration in handle order until fn
// returns false.
func (t *Table) Each(fn func(Handle, *Registration) bool) {
	t.mu.RLock()
	snapshot := make([]slot, len(t.slots))
	copy(snapshot, t.slots)
	t.mu.RUnlock()

	for i, s := range snapshot {
		if s.valid && !fn(Handle(i+1), s.reg) {
			return
		}
	}
}

// Remove forgets a registration without telling the host.
func (t *Table) Remove(h Handle) (*Registration, bool) {
	t.mu.Lock()
	r, ok := t.get(h)
	if !ok {
		t.mu.Unlock()
		return nil, false
	}
	t.slots[h-1] = slot{}
	t.freeList = append(t.freeList, h)
	delete(t.byProcedure, r.Function.Procedure)
	t.mu.Unlock()

	t.notify(Event{Type: EventUnregistered, Handle: h, Registration: r})
	return r, true
}

// Unregister withdraws one registration from the host and the table. The
// entry is dropped even when the host no longer knows it.
func (t *Table) Unregister(b *callback.Boundary, h Handle) error {
	r, ok := t.Get(h)
	if !ok {
		return errors.New(errors.PhaseRegister, errors.KindNotFound).
			Value(h).
			Detail("no registration with handle %d", h).
			Build()
	}
	err := r.Unregister(b)
	t.Remove(h)
	return err
}

// UnregisterAll withdraws every registration and reports each failure.
func (t *Table) UnregisterAll(b *callback.Boundary) error {
	var handles []Handle
	t.Each(func(h Handle, _ *Registration) bool {
		handles = append(handles, h)
		return true
	})
	var err error
	for _, h := range handles {
		err = multierr.Append(err, t.Unregister(b, h))
	}
	if err != nil {
		Logger().Warn("unregister incomplete")
	}
	return err
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer. Observers must be comparable.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnRegistrationEvent(e)
	}
}
