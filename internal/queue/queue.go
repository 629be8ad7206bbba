package queue

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"
)

var (
	ErrNoSuchEntry    = errors.New("queue: no such entry")
	ErrNotPlaying     = errors.New("queue: nothing is playing")
	ErrAlreadyPlaying = errors.New("queue: an entry is already playing")
	ErrFromHistory    = errors.New("queue: cannot remove a history entry")
)

// DefaultHistoryLength is the default bound on the recently-played FIFO
// (spec §3 "history of length history, default 60").
const DefaultHistoryLength = 60

// Queue holds the ordered pending entries and the bounded recently-played
// history, and is the sole owner of queue-entry identity allocation.
type Queue struct {
	mu            sync.Mutex
	pending       []*Entry // ordered; head plays next
	history       []*Entry // oldest first; bounded to historyLen
	historyLen    int
	playingID     string // id of the entry in pending currently started/paused, "" if none
	ids           map[string]struct{}
}

// New creates an empty Queue with the given history bound.
func New(historyLen int) *Queue {
	if historyLen <= 0 {
		historyLen = DefaultHistoryLength
	}
	return &Queue{
		historyLen: historyLen,
		ids:        make(map[string]struct{}),
	}
}

func newID() (string, error) {
	b := make([]byte, 8)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("queue: generating id: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// List returns a snapshot of the ordered pending queue.
func (q *Queue) List() []*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Entry, len(q.pending))
	copy(out, q.pending)
	return out
}

// Recent returns a snapshot of history, oldest first.
func (q *Queue) Recent() []*Entry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]*Entry, len(q.history))
	copy(out, q.history)
	return out
}

// Playing returns the currently started/paused entry, if any.
func (q *Queue) Playing() (*Entry, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.playingID == "" {
		return nil, false
	}
	for _, e := range q.pending {
		if e.ID == q.playingID {
			return e, true
		}
	}
	return nil, false
}

// tailRandomRunStartUnsafe returns the index of the first entry in the
// trailing run of random-origin entries, or len(pending) if there is no
// such run. Caller must hold q.mu.
func (q *Queue) tailRandomRunStartUnsafe() int {
	i := len(q.pending)
	for i > 0 && q.pending[i-1].Origin == OriginRandom {
		i--
	}
	return i
}

// Play appends a user-submitted track, inserted at the tail but before
// any trailing run of random-origin fill-in entries (spec §4.D), so user
// picks are served ahead of random fill-in.
func (q *Queue) Play(track, submitter string) (*Entry, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	e := &Entry{
		ID:        id,
		Track:     track,
		Submitter: submitter,
		When:      time.Now(),
		State:     StateUnplayed,
		Origin:    OriginPicked,
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	at := q.tailRandomRunStartUnsafe()
	q.insertAtUnsafe(e, at)
	return e, nil
}

// PlayRandom inserts a scheduler-selected random pick at the tail.
func (q *Queue) PlayRandom(track string) (*Entry, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	e := &Entry{
		ID:     id,
		Track:  track,
		When:   time.Now(),
		State:  StateRandom,
		Origin: OriginRandom,
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, e)
	q.ids[id] = struct{}{}
	return e, nil
}

// PlayScheduled inserts a scheduled-action track at the tail.
func (q *Queue) PlayScheduled(track, who string) (*Entry, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	e := &Entry{
		ID:        id,
		Track:     track,
		Submitter: who,
		When:      time.Now(),
		State:     StateUnplayed,
		Origin:    OriginScheduled,
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending = append(q.pending, e)
	q.ids[id] = struct{}{}
	return e, nil
}

// PlayAfter splices a new entry immediately after the entry with id
// target, or at the head if target is "".
func (q *Queue) PlayAfter(target, track, submitter string) (*Entry, error) {
	id, err := newID()
	if err != nil {
		return nil, err
	}
	e := &Entry{
		ID:        id,
		Track:     track,
		Submitter: submitter,
		When:      time.Now(),
		State:     StateUnplayed,
		Origin:    OriginPicked,
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if target == "" {
		q.insertAtUnsafe(e, 0)
		return e, nil
	}
	idx, err := q.indexOfUnsafe(target)
	if err != nil {
		return nil, err
	}
	q.insertAtUnsafe(e, idx+1)
	return e, nil
}

func (q *Queue) insertAtUnsafe(e *Entry, at int) {
	if at < 0 || at > len(q.pending) {
		at = len(q.pending)
	}
	q.pending = append(q.pending, nil)
	copy(q.pending[at+1:], q.pending[at:])
	q.pending[at] = e
	q.ids[e.ID] = struct{}{}
}

func (q *Queue) indexOfUnsafe(id string) (int, error) {
	for i, e := range q.pending {
		if e.ID == id {
			return i, nil
		}
	}
	return -1, ErrNoSuchEntry
}

// Remove deletes a pending (not currently playing, not historical) entry.
func (q *Queue) Remove(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if _, ok := q.ids[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNoSuchEntry, id)
	}
	idx, err := q.indexOfUnsafe(id)
	if err != nil {
		return ErrFromHistory
	}
	if q.pending[idx].IsPlaying() {
		return fmt.Errorf("queue: cannot remove the playing entry; use scratch")
	}
	q.pending = append(q.pending[:idx], q.pending[idx+1:]...)
	delete(q.ids, id)
	return nil
}

// Move shifts the entry id by delta positions toward the head (positive)
// or tail (negative), clamped at the ends, returning the actual
// displacement applied.
func (q *Queue) Move(id string, delta int) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx, err := q.indexOfUnsafe(id)
	if err != nil {
		return 0, err
	}
	target := idx - delta
	if target < 0 {
		target = 0
	}
	if target > len(q.pending)-1 {
		target = len(q.pending) - 1
	}
	if target == idx {
		return 0, nil
	}

	e := q.pending[idx]
	q.pending = append(q.pending[:idx], q.pending[idx+1:]...)
	q.pending = append(q.pending, nil)
	copy(q.pending[target+1:], q.pending[target:])
	q.pending[target] = e

	return idx - target, nil
}

// MoveAfter reorders the entries named in ids so that, preserving their
// relative order, they immediately follow the entry named target (or the
// head if target is ""). If target is itself among ids it is first
// removed from the moving set (spec §4.D).
func (q *Queue) MoveAfter(target string, ids []string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	moving := make(map[string]struct{}, len(ids))
	var order []string
	for _, id := range ids {
		if id == target {
			continue
		}
		if _, dup := moving[id]; dup {
			continue
		}
		if _, ok := q.ids[id]; !ok {
			return fmt.Errorf("%w: %s", ErrNoSuchEntry, id)
		}
		moving[id] = struct{}{}
		order = append(order, id)
	}

	byID := make(map[string]*Entry, len(q.pending))
	var rest []*Entry
	for _, e := range q.pending {
		byID[e.ID] = e
		if _, ok := moving[e.ID]; !ok {
			rest = append(rest, e)
		}
	}

	moved := make([]*Entry, 0, len(order))
	for _, id := range order {
		moved = append(moved, byID[id])
	}

	if target == "" {
		q.pending = append(append([]*Entry{}, moved...), rest...)
		return nil
	}

	insertAt := -1
	for i, e := range rest {
		if e.ID == target {
			insertAt = i + 1
			break
		}
	}
	if insertAt < 0 {
		return fmt.Errorf("%w: %s", ErrNoSuchEntry, target)
	}

	out := make([]*Entry, 0, len(rest)+len(moved))
	out = append(out, rest[:insertAt]...)
	out = append(out, moved...)
	out = append(out, rest[insertAt:]...)
	q.pending = out
	return nil
}

// Start transitions the pending entry id into the playing slot. Fails if
// some other entry is already playing.
func (q *Queue) Start(id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.playingID != "" {
		return ErrAlreadyPlaying
	}
	idx, err := q.indexOfUnsafe(id)
	if err != nil {
		return err
	}
	if err := q.pending[idx].Transition("start"); err != nil {
		return err
	}
	q.playingID = id
	return nil
}

// Pause pauses the currently playing entry.
func (q *Queue) Pause() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, err := q.playingEntryUnsafe()
	if err != nil {
		return err
	}
	return e.Transition("pause")
}

// Resume resumes the currently paused entry.
func (q *Queue) Resume() error {
	q.mu.Lock()
	defer q.mu.Unlock()
	e, err := q.playingEntryUnsafe()
	if err != nil {
		return err
	}
	return e.Transition("resume")
}

func (q *Queue) playingEntryUnsafe() (*Entry, error) {
	if q.playingID == "" {
		return nil, ErrNotPlaying
	}
	idx, err := q.indexOfUnsafe(q.playingID)
	if err != nil {
		return nil, err
	}
	return q.pending[idx], nil
}

// Scratch targets id (or, if empty, the currently playing entry),
// transitioning it to scratched and archiving it to history. An empty id
// with nothing playing returns ErrNotPlaying.
func (q *Queue) Scratch(id, by string) (*Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if id == "" {
		id = q.playingID
	}
	if id == "" {
		return nil, ErrNotPlaying
	}
	idx, err := q.indexOfUnsafe(id)
	if err != nil {
		return nil, err
	}
	e := q.pending[idx]
	if err := e.Transition("scratch"); err != nil {
		return nil, err
	}
	e.ScratchedBy = by
	q.archiveUnsafe(idx)
	return e, nil
}

// Finish records a decoder's terminal exit status for the playing entry
// and archives it to history.
func (q *Queue) Finish(wstat int, ok bool) (*Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, err := q.playingEntryUnsafe()
	if err != nil {
		return nil, err
	}
	e.WStat = wstat
	e.HasWStat = true
	event := "eof_fail"
	if ok {
		event = "eof_ok"
	}
	if err := e.Transition(event); err != nil {
		return nil, err
	}
	idx, _ := q.indexOfUnsafe(e.ID)
	q.archiveUnsafe(idx)
	return e, nil
}

// archiveUnsafe removes the pending entry at idx and appends it to
// history, evicting the oldest entry if the history bound is exceeded.
// Caller must hold q.mu.
func (q *Queue) archiveUnsafe(idx int) {
	e := q.pending[idx]
	q.pending = append(q.pending[:idx], q.pending[idx+1:]...)
	delete(q.ids, e.ID)
	if e.ID == q.playingID {
		q.playingID = ""
	}
	q.history = append(q.history, e)
	if len(q.history) > q.historyLen {
		q.history = q.history[len(q.history)-q.historyLen:]
	}
}

// Adopt converts a random-origin entry to a user pick, assigning
// submitter as its owner.
func (q *Queue) Adopt(id, submitter string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	idx, err := q.indexOfUnsafe(id)
	if err != nil {
		return err
	}
	e := q.pending[idx]
	if e.Origin != OriginRandom {
		return fmt.Errorf("queue: entry %s is not a random pick", id)
	}
	e.Origin = OriginAdopted
	e.Submitter = submitter
	return nil
}

// Get returns the pending entry with the given id.
func (q *Queue) Get(id string) (*Entry, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	idx, err := q.indexOfUnsafe(id)
	if err != nil {
		return nil, err
	}
	return q.pending[idx], nil
}

// ResetNonTerminal resets every pending entry that was left started or
// paused at shutdown back to unplayed (spec §4.D persistence: "entries
// whose state was non-terminal at shutdown are reset to unplayed").
func (q *Queue) ResetNonTerminal() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.playingID = ""
	for _, e := range q.pending {
		if e.State == StateStarted || e.State == StatePaused {
			e.State = StateUnplayed
		}
	}
}
