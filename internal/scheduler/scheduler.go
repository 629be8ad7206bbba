// Package scheduler implements the single logical actor that owns the
// "currently playing" slot: it pulls entries from the queue (or the
// random chooser when the queue is empty), launches decoder subprocesses,
// forwards PCM through the mixer to the configured sink, and drives every
// queue-entry state transition (spec §4.F).
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/dgnsrekt/disorder/internal/chooser"
	"github.com/dgnsrekt/disorder/internal/eventbus"
	"github.com/dgnsrekt/disorder/internal/queue"
	"github.com/dgnsrekt/disorder/internal/sink"
)

// PauseMode selects how a track without native pause support is paused
// (spec §4.F: "either substitute silence or suspend the subprocess").
type PauseMode string

const (
	PauseModeSilence PauseMode = "silence"
	PauseModeSuspend PauseMode = "suspend"
)

// Options configures a Scheduler; a zero value uses spec defaults.
type Options struct {
	Gap           time.Duration // silence between tracks, default 2s
	ScratchSignal syscall.Signal
	PauseMode     PauseMode
	PCMChunkBytes int
}

func (o Options) withDefaults() Options {
	if o.Gap <= 0 {
		o.Gap = 2 * time.Second
	}
	if o.ScratchSignal == 0 {
		o.ScratchSignal = syscall.SIGKILL
	}
	if o.PauseMode == "" {
		o.PauseMode = PauseModeSilence
	}
	if o.PCMChunkBytes <= 0 {
		o.PCMChunkBytes = 4096
	}
	return o
}

// Scheduler is the sole mutator of "what is currently playing". One
// Scheduler instance owns one Queue, one Sink, and one Mixer.
type Scheduler struct {
	queue   *queue.Queue
	chooser *chooser.Chooser
	players *PlayerTable
	sink    sink.Sink
	bus     *eventbus.Bus
	mixer   *Mixer
	opts    Options
	log     *slog.Logger

	playingEnabled atomic.Bool
	randomEnabled  atomic.Bool

	mu      sync.Mutex
	current *decoderProcess
	paused  bool

	pauseRequest  chan struct{}
	resumeRequest chan struct{}
	scratchRequest chan string
}

// New constructs a Scheduler with the global `playing`/`random-play`
// toggles (spec §4.F step 1) both enabled.
func New(q *queue.Queue, ch *chooser.Chooser, players *PlayerTable, snk sink.Sink, bus *eventbus.Bus, opts Options, log *slog.Logger) *Scheduler {
	s := &Scheduler{
		queue:          q,
		chooser:        ch,
		players:        players,
		sink:           snk,
		bus:            bus,
		mixer:          NewMixer(),
		opts:           opts.withDefaults(),
		log:            log,
		pauseRequest:   make(chan struct{}, 1),
		resumeRequest:  make(chan struct{}, 1),
		scratchRequest: make(chan string, 1),
	}
	s.playingEnabled.Store(true)
	s.randomEnabled.Store(true)
	return s
}

// Mixer exposes the scheduler's volume control.
func (s *Scheduler) Mixer() *Mixer { return s.mixer }

// SetPlaying toggles the global `playing` state (spec `enable`/
// `disable`), raising the corresponding state event.
func (s *Scheduler) SetPlaying(enabled bool) {
	s.playingEnabled.Store(enabled)
	name := eventbus.StateDisablePlay
	if enabled {
		name = eventbus.StateEnablePlay
	}
	s.bus.Publish(eventbus.Event{Kind: eventbus.KindState, Args: []string{name}})
}

// SetRandomEnabled toggles global random-fill (spec `random-disable`/
// `random-enable`).
func (s *Scheduler) SetRandomEnabled(enabled bool) {
	s.randomEnabled.Store(enabled)
	name := eventbus.StateDisableRandom
	if enabled {
		name = eventbus.StateEnableRandom
	}
	s.bus.Publish(eventbus.Event{Kind: eventbus.KindState, Args: []string{name}})
}

// Run drives the scheduler loop until ctx is cancelled, grounded on the
// teacher's Broadcaster.Start continuous-loop-with-per-track-context
// shape, generalized from "always advance" to "go idle with no queue and
// no random fill".
func (s *Scheduler) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		if !s.playingEnabled.Load() {
			if !sleepOrDone(ctx, s.opts.Gap) {
				return
			}
			continue
		}

		entry, err := s.nextEntry()
		if err != nil {
			s.log.Warn("scheduler: no track available", "error", err)
			if !sleepOrDone(ctx, s.opts.Gap) {
				return
			}
			continue
		}

		s.playEntry(ctx, entry)

		if !sleepOrDone(ctx, s.opts.Gap) {
			return
		}
	}
}

func sleepOrDone(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}

// nextEntry resolves the head of the pending queue, falling back to a
// random chooser pick when empty and random fill is enabled (spec §4.F
// step 1).
func (s *Scheduler) nextEntry() (*queue.Entry, error) {
	list := s.queue.List()
	if len(list) > 0 {
		return list[0], nil
	}
	if !s.randomEnabled.Load() || s.chooser == nil {
		return nil, fmt.Errorf("scheduler: queue empty and random fill disabled")
	}
	path, err := s.chooser.Pick(nil)
	if err != nil {
		return nil, err
	}
	return s.queue.PlayRandom(path)
}

// playEntry runs one track end to end: launch decoder, stream PCM,
// record the terminal state, archive to history.
func (s *Scheduler) playEntry(ctx context.Context, entry *queue.Entry) {
	command, args, err := s.players.Resolve(entry.Track)
	if err != nil {
		s.log.Warn("scheduler: no player for track", "track", entry.Track, "error", err)
		if startErr := s.queue.Start(entry.ID); startErr == nil {
			s.finish(entry, 0, false)
		}
		return
	}

	trackCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	dec, err := startDecoder(trackCtx, command, args, s.log)
	if err != nil {
		s.log.Error("scheduler: decoder failed to start", "track", entry.Track, "error", err)
		if startErr := s.queue.Start(entry.ID); startErr == nil {
			s.finish(entry, 0, false)
		}
		return
	}

	if err := s.queue.Start(entry.ID); err != nil {
		_ = dec.signal(syscall.SIGKILL)
		dec.wait()
		return
	}

	s.mu.Lock()
	s.current = dec
	s.paused = false
	s.mu.Unlock()

	s.bus.Publish(eventbus.Event{Kind: eventbus.KindPlaying, Args: []string{entry.ID, entry.Track}})

	s.streamLoop(trackCtx, entry, dec)

	wstat, ok := dec.wait()

	s.mu.Lock()
	s.current = nil
	s.mu.Unlock()

	if p, playing := s.queue.Playing(); !playing || p.ID != entry.ID {
		// The entry no longer holds the playing slot: a scratch already
		// archived it in streamLoop.
		return
	}
	s.finish(entry, wstat, ok)
}

// pcmChunk is one Read result handed from the decoder-reading goroutine
// to streamLoop's select, so a blocking Read can never delay servicing a
// pause or scratch request.
type pcmChunk struct {
	data []byte
	err  error
}

// streamLoop copies PCM from the decoder to the sink, applying volume
// and honouring pause/resume/scratch requests, until EOF or scratch.
func (s *Scheduler) streamLoop(ctx context.Context, entry *queue.Entry, dec *decoderProcess) {
	chunks := make(chan pcmChunk, 1)
	go func() {
		buf := make([]byte, s.opts.PCMChunkBytes)
		for {
			n, err := dec.stdout.Read(buf)
			var data []byte
			if n > 0 {
				data = append([]byte(nil), buf[:n]...)
			}
			select {
			case chunks <- pcmChunk{data: data, err: err}:
			case <-ctx.Done():
				return
			}
			if err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return
		case by := <-s.scratchRequest:
			s.doScratch(entry, dec, by)
			return
		case <-s.pauseRequest:
			s.doPause(entry, dec, ctx)
		case c := <-chunks:
			if len(c.data) > 0 {
				s.mixer.Apply(c.data, maxInt(dec.format.Channels, 1))
				if _, werr := s.sink.Write(c.data); werr != nil {
					s.log.Error("scheduler: sink write failed", "error", werr)
					return
				}
			}
			if c.err != nil {
				return
			}
		}
	}
}

// doPause blocks the stream loop until a resume (or scratch/shutdown)
// arrives, writing silence to the sink if configured, or suspending the
// decoder subprocess otherwise (spec §4.F step 5).
func (s *Scheduler) doPause(entry *queue.Entry, dec *decoderProcess, ctx context.Context) {
	s.mu.Lock()
	s.paused = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.paused = false
		s.mu.Unlock()
	}()

	if s.opts.PauseMode == PauseModeSuspend {
		_ = dec.signal(syscall.SIGSTOP)
		defer dec.signal(syscall.SIGCONT)
	}

	s.bus.Publish(eventbus.Event{Kind: eventbus.KindState, Args: []string{eventbus.StatePause}})

	silence := make([]byte, s.opts.PCMChunkBytes)
	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.resumeRequest:
			s.bus.Publish(eventbus.Event{Kind: eventbus.KindState, Args: []string{eventbus.StateResume}})
			return
		case <-ticker.C:
			if s.opts.PauseMode == PauseModeSilence {
				_, _ = s.sink.Write(silence)
			}
		}
	}
}

func (s *Scheduler) doScratch(entry *queue.Entry, dec *decoderProcess, by string) {
	_ = dec.signal(s.opts.ScratchSignal)
	dec.wait()
	if _, err := s.queue.Scratch(entry.ID, by); err != nil {
		s.log.Warn("scheduler: scratch failed", "entry", entry.ID, "error", err)
		return
	}
	s.bus.Publish(eventbus.Event{Kind: eventbus.KindScratched, Args: []string{entry.ID, by}})
}

func (s *Scheduler) finish(entry *queue.Entry, wstat int, ok bool) {
	if _, err := s.queue.Finish(wstat, ok); err != nil {
		s.log.Warn("scheduler: finish failed", "entry", entry.ID, "error", err)
		return
	}
	kind := eventbus.KindCompleted
	if !ok {
		kind = eventbus.KindFailed
	}
	s.bus.Publish(eventbus.Event{Kind: kind, Args: []string{entry.ID, entry.Track}})
}

// Pause requests the currently playing entry be paused.
func (s *Scheduler) Pause() {
	select {
	case s.pauseRequest <- struct{}{}:
	default:
	}
}

// Resume requests the currently paused entry resume.
func (s *Scheduler) Resume() {
	select {
	case s.resumeRequest <- struct{}{}:
	default:
	}
}

// Scratch requests the currently playing entry be scratched, attributed
// to by.
func (s *Scheduler) Scratch(by string) {
	select {
	case s.scratchRequest <- by:
	default:
	}
}

// IsPaused reports whether playback is currently paused.
func (s *Scheduler) IsPaused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
