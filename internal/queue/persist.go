package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// persistedEntry is the on-disk representation of a queue/history Entry.
type persistedEntry struct {
	ID          string    `json:"id"`
	Track       string    `json:"track"`
	Submitter   string    `json:"submitter,omitempty"`
	When        time.Time `json:"when"`
	Played      time.Time `json:"played,omitempty"`
	State       State     `json:"state"`
	ScratchedBy string    `json:"scratched_by,omitempty"`
	WStat       int       `json:"wstat,omitempty"`
	HasWStat    bool      `json:"has_wstat,omitempty"`
	Sofar       int       `json:"sofar,omitempty"`
	Origin      Origin    `json:"origin"`
	Type        Type      `json:"type,omitempty"`
}

// persistedQueue is the full on-disk snapshot of a Queue.
type persistedQueue struct {
	Version int              `json:"version"`
	Pending []persistedEntry `json:"pending"`
	History []persistedEntry `json:"history"`
}

const persistVersion = 1

func toPersisted(e *Entry) persistedEntry {
	return persistedEntry{
		ID: e.ID, Track: e.Track, Submitter: e.Submitter, When: e.When,
		Played: e.Played, State: e.State, ScratchedBy: e.ScratchedBy,
		WStat: e.WStat, HasWStat: e.HasWStat, Sofar: e.Sofar,
		Origin: e.Origin, Type: e.Type,
	}
}

func fromPersisted(p persistedEntry) *Entry {
	return &Entry{
		ID: p.ID, Track: p.Track, Submitter: p.Submitter, When: p.When,
		Played: p.Played, State: p.State, ScratchedBy: p.ScratchedBy,
		WStat: p.WStat, HasWStat: p.HasWStat, Sofar: p.Sofar,
		Origin: p.Origin, Type: p.Type,
	}
}

// Save writes the queue and history to path atomically: the snapshot is
// written to a temp file in the same directory, then renamed over path,
// so a crash mid-write never leaves a truncated file (spec §4.D
// "Persistence ... written atomically (write-to-tmp + rename) on every
// change").
func (q *Queue) Save(path string) error {
	q.mu.Lock()
	snap := persistedQueue{Version: persistVersion}
	for _, e := range q.pending {
		snap.Pending = append(snap.Pending, toPersisted(e))
	}
	for _, e := range q.history {
		snap.History = append(snap.History, toPersisted(e))
	}
	q.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("queue: marshalling snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "queue-*.json.tmp")
	if err != nil {
		return fmt.Errorf("queue: creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("queue: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("queue: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("queue: renaming temp file to %q: %w", path, err)
	}
	return nil
}

// Load reads a snapshot written by Save, replacing the queue's contents.
// Non-terminal entries (started/paused at the moment of the previous
// save) are reset to unplayed, since no decoder is actually running for
// them in the new process (spec §4.D).
func Load(path string, historyLen int) (*Queue, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return New(historyLen), nil
		}
		return nil, fmt.Errorf("queue: reading %q: %w", path, err)
	}

	var snap persistedQueue
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("queue: parsing %q: %w", path, err)
	}

	q := New(historyLen)
	for _, pe := range snap.Pending {
		e := fromPersisted(pe)
		q.pending = append(q.pending, e)
		q.ids[e.ID] = struct{}{}
		if e.State == StateStarted || e.State == StatePaused {
			q.playingID = e.ID
		}
	}
	for _, pe := range snap.History {
		q.history = append(q.history, fromPersisted(pe))
	}
	if len(q.history) > q.historyLen {
		q.history = q.history[len(q.history)-q.historyLen:]
	}
	q.ResetNonTerminal()
	return q, nil
}
