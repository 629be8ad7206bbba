// Package queue implements the play queue and history: ordered pending
// entries, the bounded recently-played FIFO, the per-entry state machine,
// and named/owned playlists, all persisted atomically to disk.
package queue

import (
	"fmt"
	"time"
)

// State is a queue entry's position in its lifecycle (spec §3 "Queue
// state machine").
type State string

const (
	StateUnplayed  State = "unplayed"
	StateRandom    State = "random"
	StateStarted   State = "started"
	StatePaused    State = "paused"
	StateScratched State = "scratched"
	StateFailed    State = "failed"
	StateNoPlayer  State = "no_player"
	StateOK        State = "ok"
	StateQuitting  State = "quitting"
	StateIsScratch State = "isscratch"
)

// Terminal reports whether s is an archival (history-bound) state: no
// further transition is possible once an entry reaches it.
func (s State) Terminal() bool {
	switch s {
	case StateOK, StateFailed, StateScratched, StateQuitting:
		return true
	default:
		return false
	}
}

// Origin records how an entry came to be in the queue.
type Origin string

const (
	OriginPicked    Origin = "picked"
	OriginScheduled Origin = "scheduled"
	OriginRandom    Origin = "random"
	OriginAdopted   Origin = "adopted"
)

// Type is the decoder plugin's capability bitmask for an entry, e.g.
// whether it supports being natively paused rather than gap-paused.
type Type uint32

const (
	TypePause Type = 1 << iota
)

// Entry is a single queue or history record.
type Entry struct {
	ID          string
	Track       string // resolved real path
	Submitter   string // empty for random picks
	When        time.Time
	Played      time.Time // zero until first StateStarted transition
	State       State
	ScratchedBy string
	WStat       int  // decoder exit status, valid once Terminal()
	HasWStat    bool
	Sofar       int // seconds of audio delivered so far
	Expected    time.Time
	Origin      Origin
	Type        Type

	// UpToPause and LastResumed let a paused-then-resumed entry's elapsed
	// play time be reconstructed on demand: UpToPause holds the seconds
	// played up to the most recent pause, and LastResumed is when it was
	// last resumed (zero while still paused).
	UpToPause   int
	LastResumed time.Time
}

// SofarNow returns the entry's elapsed play time as of now: UpToPause
// plus time elapsed since LastResumed if it has been resumed since last
// paused, otherwise UpToPause alone.
func (e *Entry) SofarNow() int {
	if e.LastResumed.IsZero() {
		return e.UpToPause
	}
	return e.UpToPause + int(time.Since(e.LastResumed).Seconds())
}

// IsPlaying reports whether the entry is the current "now playing" slot.
func (e *Entry) IsPlaying() bool {
	return e.State == StateStarted || e.State == StatePaused
}

// Owner classifies e's submitter relationship for rights checks: a
// user-submitted track (OwnerSelf when submitter == actor), a random
// pick with no submitter (OwnerRandom), or someone else's pick
// (OwnerOther).
func (e *Entry) Owner(actor string) OwnerKind {
	if e.Submitter == "" {
		return OwnerRandom
	}
	if e.Submitter == actor {
		return OwnerSelf
	}
	return OwnerOther
}

// OwnerKind classifies an entry's submitter relationship to an acting
// user, mirroring auth.Owner's three-way split so the dispatch layer can
// feed it straight into a Rights.CanMove/CanScratch/CanRemove check
// without queue importing auth for a single enum.
type OwnerKind int

const (
	OwnerSelf OwnerKind = iota
	OwnerRandom
	OwnerOther
)

// transitions enumerates the legal (from, event) -> to moves of the state
// machine (spec §3), keyed for validation.
var transitions = map[State]map[string]State{
	StateUnplayed: {"start": StateStarted, "remove": ""},
	StateRandom:   {"start": StateStarted, "remove": ""},
	StateStarted:  {"pause": StatePaused, "eof_ok": StateOK, "eof_fail": StateFailed, "scratch": StateScratched},
	StatePaused:   {"resume": StateStarted, "scratch": StateScratched},
}

// Transition validates and applies an event to the entry's state,
// returning an error if the move is not legal from the current state.
func (e *Entry) Transition(event string) error {
	moves, ok := transitions[e.State]
	if !ok {
		return fmt.Errorf("queue: entry %s: no transitions defined from state %q", e.ID, e.State)
	}
	to, ok := moves[event]
	if !ok {
		return fmt.Errorf("queue: entry %s: event %q not valid from state %q", e.ID, event, e.State)
	}
	now := time.Now()
	if to == StateStarted && e.Played.IsZero() {
		e.Played = now
	}
	switch event {
	case "start", "resume":
		e.LastResumed = now
	case "pause":
		e.UpToPause = e.SofarNow()
		e.LastResumed = time.Time{}
	case "eof_ok", "eof_fail", "scratch":
		e.Sofar = e.SofarNow()
		e.LastResumed = time.Time{}
	}
	e.State = to
	return nil
}
