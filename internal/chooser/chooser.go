// Package chooser implements the weighted random track selection used to
// fill the queue when nothing is pending: exclude recently-played tracks,
// weight the rest (new tracks get a temporary bias), and draw one with a
// cryptographic-quality RNG.
package chooser

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"time"
)

// ErrNoEligibleTracks is returned when no candidate satisfies
// pick_at_random and the replay_min exclusion.
var ErrNoEligibleTracks = errors.New("chooser: no eligible tracks to pick from")

const (
	// DefaultReplayMin is how long, in seconds, a track is excluded from
	// the draw after last being played.
	DefaultReplayMin = 8 * 60 * 60
	// DefaultWeight is a track's draw weight absent an explicit
	// preference override.
	DefaultWeight = 90000
	// DefaultNewBias replaces a recently-added track's weight, biasing
	// fresh additions toward being heard sooner.
	DefaultNewBias = 4_500_000
	// DefaultNewBiasAge bounds how long, in seconds, a track counts as
	// "recently added" for new-bias purposes.
	DefaultNewBiasAge = 60 * 60 * 24
)

// Candidate is one track eligible for the random draw, along with the
// preference-derived inputs the weighting formula needs.
type Candidate struct {
	Path          string
	PickAtRandom  bool
	Weight        int
	AddedAt       time.Time
	LastPlayed    time.Time // zero if never played
	HasLastPlayed bool
}

// Library is the minimal view of the track/preference store the chooser
// needs; internal/store.Database satisfies it.
type Library interface {
	AllPaths() []string
	PickAtRandom(path string) bool
	Weight(path string) int
}

// History is the minimal view of recency the chooser needs to apply
// replay_min exclusion; a dedicated last-played file or the queue's
// history FIFO can both implement it.
type History interface {
	LastPlayed(path string) (time.Time, bool)
}

// AddedTimes supplies a track's discovery time for new_bias_age
// calculations; a nil AddedTimes disables the new-bias weighting.
type AddedTimes interface {
	AddedAt(path string) (time.Time, bool)
}

// Options configures the draw; a zero value uses spec defaults.
type Options struct {
	ReplayMin   time.Duration
	NewBias     int
	NewBiasAge  time.Duration
	DefaultWt   int
}

func (o Options) withDefaults() Options {
	if o.ReplayMin <= 0 {
		o.ReplayMin = DefaultReplayMin * time.Second
	}
	if o.NewBias <= 0 {
		o.NewBias = DefaultNewBias
	}
	if o.NewBiasAge <= 0 {
		o.NewBiasAge = DefaultNewBiasAge * time.Second
	}
	if o.DefaultWt <= 0 {
		o.DefaultWt = DefaultWeight
	}
	return o
}

// Chooser draws random tracks from a Library, honouring pick_at_random,
// replay_min recency exclusion, and weight/new_bias weighting.
type Chooser struct {
	lib     Library
	hist    History
	added   AddedTimes
	opts    Options
	nowFunc func() time.Time
}

// New constructs a Chooser. added may be nil to disable new-bias
// weighting (every track then draws at its configured weight).
func New(lib Library, hist History, added AddedTimes, opts Options) *Chooser {
	return &Chooser{
		lib:     lib,
		hist:    hist,
		added:   added,
		opts:    opts.withDefaults(),
		nowFunc: time.Now,
	}
}

// eligible enumerates candidate paths passing pick_at_random and
// replay_min, each carrying the weight the draw should use.
func (c *Chooser) eligible() []Candidate {
	now := c.nowFunc()
	var out []Candidate
	for _, path := range c.lib.AllPaths() {
		if !c.lib.PickAtRandom(path) {
			continue
		}
		if last, ok := c.hist.LastPlayed(path); ok {
			if now.Sub(last) < c.opts.ReplayMin {
				continue
			}
		}
		weight := c.lib.Weight(path)
		if weight <= 0 {
			weight = c.opts.DefaultWt
		}
		if c.added != nil {
			if addedAt, ok := c.added.AddedAt(path); ok && now.Sub(addedAt) < c.opts.NewBiasAge {
				weight = c.opts.NewBias
			}
		}
		out = append(out, Candidate{Path: path, Weight: weight})
	}
	return out
}

// Pick performs a single weighted cryptographic draw over the eligible
// set. If the chosen path is rejected by isStillValid (e.g. it vanished
// from the library between enumeration and draw), Pick retries against
// the remaining candidates.
func (c *Chooser) Pick(isStillValid func(path string) bool) (string, error) {
	candidates := c.eligible()
	for len(candidates) > 0 {
		total := 0
		for _, cand := range candidates {
			total += cand.Weight
		}
		if total <= 0 {
			return "", ErrNoEligibleTracks
		}

		draw, err := cryptoIntn(total)
		if err != nil {
			return "", fmt.Errorf("chooser: drawing random number: %w", err)
		}

		idx := 0
		acc := 0
		for i, cand := range candidates {
			acc += cand.Weight
			if draw < acc {
				idx = i
				break
			}
		}
		chosen := candidates[idx]
		if isStillValid == nil || isStillValid(chosen.Path) {
			return chosen.Path, nil
		}
		candidates = append(candidates[:idx], candidates[idx+1:]...)
	}
	return "", ErrNoEligibleTracks
}

// cryptoIntn draws a uniform integer in [0, n) using crypto/rand, the
// cryptographic-quality source the weighted draw requires.
func cryptoIntn(n int) (int, error) {
	if n <= 0 {
		return 0, fmt.Errorf("chooser: non-positive draw range %d", n)
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		return 0, err
	}
	return int(v.Int64()), nil
}
