package scheduler

import (
	"fmt"
	"path/filepath"
)

// PlayerEntry is one row of the configured `player` table: tracks whose
// path matches Glob are decoded by invoking Command with the track path
// appended as its final argument (spec §6 `player "*.ogg" execraw
// disorder-decode`).
type PlayerEntry struct {
	Glob    string
	Command string
	Args    []string
}

// PlayerTable resolves a track path to the decoder command that plays
// it, trying entries in configured order and using the first glob match.
type PlayerTable struct {
	entries []PlayerEntry
}

// NewPlayerTable builds a PlayerTable from configured entries, preserving
// their order (earlier entries take priority, matching the directive
// file's first-match semantics).
func NewPlayerTable(entries []PlayerEntry) *PlayerTable {
	return &PlayerTable{entries: append([]PlayerEntry(nil), entries...)}
}

// ErrNoPlayer is returned when no configured glob matches a track path.
type ErrNoPlayer struct {
	Path string
}

func (e *ErrNoPlayer) Error() string {
	return fmt.Sprintf("scheduler: no player configured for %q", e.Path)
}

// Resolve returns the decoder command and full argument list (command
// args followed by the track path) for path.
func (t *PlayerTable) Resolve(path string) (command string, args []string, err error) {
	base := filepath.Base(path)
	for _, e := range t.entries {
		matched, matchErr := filepath.Match(e.Glob, base)
		if matchErr != nil {
			continue
		}
		if matched {
			full := append(append([]string(nil), e.Args...), path)
			return e.Command, full, nil
		}
	}
	return "", nil, &ErrNoPlayer{Path: path}
}
