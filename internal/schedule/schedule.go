// Package schedule implements time-triggered server actions: an event
// scheduled for a future instant fires exactly once, executing a `play`
// or `set-global` action under the identity that scheduled it (spec
// §4.I). The set is kept in a container/heap min-heap ordered by
// trigger time, with a single timer armed for the head, generalizing
// the teacher's ticker-driven playlist.Scheduler from periodic polling
// to a precise one-shot-per-event model.
package schedule

import (
	"container/heap"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Action names an event's effect (spec §4.I: "action ∈ {play, set-global}").
type Action string

const (
	ActionPlay      Action = "play"
	ActionSetGlobal Action = "set-global"
)

// Priority controls startup handling: a junk event whose trigger time
// has already passed is dropped rather than fired late.
type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityJunk   Priority = "junk"
)

var (
	ErrNoSuchEvent    = errors.New("schedule: no such event")
	ErrUnknownAction  = errors.New("schedule: unknown action")
	ErrUnknownPriority = errors.New("schedule: unknown priority")
)

// Event is one scheduled action (spec §4.I: "(id, when, priority, who,
// action, args…)").
type Event struct {
	ID       string
	When     time.Time
	Priority Priority
	Who      string
	Action   Action
	Args     []string
}

// Executor performs the effect of a fired action under the identity
// that scheduled it, with rights checked at fire time rather than
// schedule time (spec §4.I). Implementations live in the package that
// owns the mutation (the dispatch layer), keeping schedule itself free
// of a dependency on the command table.
type Executor interface {
	// Execute runs action with args as who, returning an error if who
	// lacks the rights to perform it now or the action otherwise fails.
	Execute(ctx context.Context, who string, action Action, args []string) error
}

// eventHeap is a container/heap.Interface over *Event ordered by When,
// grounded on harperreed-resonate-go's pkg/sendspin BufferQueue/heap use.
type eventHeap []*Event

func (h eventHeap) Len() int            { return len(h) }
func (h eventHeap) Less(i, j int) bool  { return h[i].When.Before(h[j].When) }
func (h eventHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *eventHeap) Push(x interface{}) { *h = append(*h, x.(*Event)) }
func (h *eventHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return item
}

// Scheduler owns the set of pending scheduled events and fires them as
// their trigger time elapses. One Scheduler instance runs for the
// lifetime of the server.
type Scheduler struct {
	exec Executor
	log  *slog.Logger

	mu     sync.Mutex
	byID   map[string]*Event
	h      eventHeap
	timer  *time.Timer
	wake   chan struct{}
	stopCh chan struct{}
}

// New constructs an empty Scheduler.
func New(exec Executor, log *slog.Logger) *Scheduler {
	return &Scheduler{
		exec:   exec,
		log:    log,
		byID:   make(map[string]*Event),
		wake:   make(chan struct{}, 1),
		stopCh: make(chan struct{}),
	}
}

func newEventID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("schedule: generating id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// Add schedules a new event, returning its assigned id (spec
// `schedule-add`).
func (s *Scheduler) Add(when time.Time, priority Priority, who string, action Action, args []string) (string, error) {
	if action != ActionPlay && action != ActionSetGlobal {
		return "", fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	if priority != PriorityNormal && priority != PriorityJunk {
		return "", fmt.Errorf("%w: %q", ErrUnknownPriority, priority)
	}
	id, err := newEventID()
	if err != nil {
		return "", err
	}
	ev := &Event{ID: id, When: when, Priority: priority, Who: who, Action: action, Args: args}

	s.mu.Lock()
	s.insertUnsafe(ev)
	s.mu.Unlock()

	s.wakeLoop()
	return id, nil
}

func (s *Scheduler) insertUnsafe(ev *Event) {
	s.byID[ev.ID] = ev
	heap.Push(&s.h, ev)
}

// Del removes a scheduled event (spec `schedule-del`).
func (s *Scheduler) Del(id string) error {
	s.mu.Lock()
	ev, ok := s.byID[id]
	if !ok {
		s.mu.Unlock()
		return ErrNoSuchEvent
	}
	delete(s.byID, id)
	for i, e := range s.h {
		if e == ev {
			heap.Remove(&s.h, i)
			break
		}
	}
	s.mu.Unlock()

	s.wakeLoop()
	return nil
}

// Get returns one scheduled event by id (spec `schedule-get`).
func (s *Scheduler) Get(id string) (Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.byID[id]
	if !ok {
		return Event{}, ErrNoSuchEvent
	}
	return *ev, nil
}

// List returns every scheduled event, in no particular order (spec
// `schedule-list`).
func (s *Scheduler) List() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, 0, len(s.byID))
	for _, ev := range s.byID {
		out = append(out, *ev)
	}
	return out
}

// dropPastJunkUnsafe removes junk-priority events whose trigger time has
// already passed, per spec §4.I's startup contract.
func (s *Scheduler) dropPastJunkUnsafe(now time.Time) {
	var kept eventHeap
	for _, ev := range s.h {
		if ev.Priority == PriorityJunk && ev.When.Before(now) {
			delete(s.byID, ev.ID)
			continue
		}
		kept = append(kept, ev)
	}
	s.h = kept
	heap.Init(&s.h)
}

// Run drives the fire loop until ctx is cancelled: it arms a timer for
// the heap's head and, on each wake (timer elapsed, or Add/Del changed
// the head), re-evaluates what should fire next.
func (s *Scheduler) Run(ctx context.Context) {
	s.mu.Lock()
	s.dropPastJunkUnsafe(time.Now())
	s.mu.Unlock()

	for {
		d, has := s.nextDelay()
		var timerC <-chan time.Time
		if has {
			t := time.NewTimer(d)
			defer t.Stop()
			timerC = t.C
		}

		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-s.wake:
			continue
		case <-timerC:
			s.fireDue(ctx)
		}
	}
}

// Stop halts Run.
func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) wakeLoop() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

// nextDelay returns the duration until the head event's trigger time,
// clamped to zero, and whether any event is pending at all.
func (s *Scheduler) nextDelay() (time.Duration, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.h) == 0 {
		return 0, false
	}
	d := time.Until(s.h[0].When)
	if d < 0 {
		d = 0
	}
	return d, true
}

// fireDue pops and executes every event whose trigger time has now
// elapsed (normally just the head, but a coalesced wake can expose more
// than one).
func (s *Scheduler) fireDue(ctx context.Context) {
	now := time.Now()
	for {
		s.mu.Lock()
		if len(s.h) == 0 || s.h[0].When.After(now) {
			s.mu.Unlock()
			return
		}
		ev := heap.Pop(&s.h).(*Event)
		delete(s.byID, ev.ID)
		s.mu.Unlock()

		if err := s.exec.Execute(ctx, ev.Who, ev.Action, ev.Args); err != nil {
			s.log.Warn("schedule: event execution failed", "id", ev.ID, "who", ev.Who, "action", ev.Action, "error", err)
		}
	}
}
