package schedule

import (
	"container/heap"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"
)

type persistedEvent struct {
	ID       string   `json:"id"`
	When     time.Time `json:"when"`
	Priority Priority `json:"priority"`
	Who      string   `json:"who"`
	Action   Action   `json:"action"`
	Args     []string `json:"args,omitempty"`
}

type persistedSchedule struct {
	Version int              `json:"version"`
	Events  []persistedEvent `json:"events"`
}

const persistVersion = 1

// Save writes every scheduled event to path atomically (write-to-tmp +
// rename), matching the convention already used by queue.Save and
// chooser's last-played store.
func (s *Scheduler) Save(path string) error {
	s.mu.Lock()
	snap := persistedSchedule{Version: persistVersion}
	for _, ev := range s.byID {
		snap.Events = append(snap.Events, persistedEvent{
			ID: ev.ID, When: ev.When, Priority: ev.Priority,
			Who: ev.Who, Action: ev.Action, Args: ev.Args,
		})
	}
	s.mu.Unlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("schedule: marshalling snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "schedule-*.json.tmp")
	if err != nil {
		return fmt.Errorf("schedule: creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("schedule: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("schedule: closing temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("schedule: renaming temp file to %q: %w", path, err)
	}
	return nil
}

// Load reads a snapshot written by Save, replacing the scheduler's
// contents. Junk-priority events whose trigger time has already passed
// are dropped immediately rather than fired late (spec §4.I).
func Load(path string, exec Executor, log *slog.Logger) (*Scheduler, error) {
	s := New(exec, log)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("schedule: reading %q: %w", path, err)
	}

	var snap persistedSchedule
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("schedule: parsing %q: %w", path, err)
	}

	now := time.Now()
	for _, pe := range snap.Events {
		if pe.Priority == PriorityJunk && pe.When.Before(now) {
			continue
		}
		ev := &Event{ID: pe.ID, When: pe.When, Priority: pe.Priority, Who: pe.Who, Action: pe.Action, Args: pe.Args}
		s.byID[ev.ID] = ev
		heap.Push(&s.h, ev)
	}
	return s, nil
}
