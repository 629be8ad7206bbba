// Package server implements the connection dispatcher: the TCP/unix-socket
// accept loop, the per-connection command dispatch loop (spec §4.H), and
// the full command table wiring auth, queue, store, chooser, scheduler,
// schedule and playlist state together. It is grounded on the accept-loop
// and per-connection-goroutine shape of an MPD-style line server, since the
// teacher repo itself is HTTP-only and has no raw line-protocol analogue.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/disorder/internal/auth"
	"github.com/dgnsrekt/disorder/internal/chooser"
	"github.com/dgnsrekt/disorder/internal/eventbus"
	"github.com/dgnsrekt/disorder/internal/queue"
	"github.com/dgnsrekt/disorder/internal/schedule"
	"github.com/dgnsrekt/disorder/internal/scheduler"
	"github.com/dgnsrekt/disorder/internal/store"
)

// Options configures a Server; a zero value uses spec defaults.
type Options struct {
	PlaylistLockTimeout time.Duration
	Banner              string // server identity string sent in the greeting
}

func (o Options) withDefaults() Options {
	if o.PlaylistLockTimeout <= 0 {
		o.PlaylistLockTimeout = 5 * time.Minute
	}
	if o.Banner == "" {
		o.Banner = "disorder"
	}
	return o
}

// Server owns every piece of shared mutable state a connection's command
// handlers touch, plus the listener(s) accepting new connections.
type Server struct {
	opts Options
	log  *slog.Logger

	queue     *queue.Queue
	playlists *queue.Playlists
	db        *store.Database
	authEngine *auth.Engine
	chooser   *chooser.Chooser
	bus       *eventbus.Bus
	sched     *scheduler.Scheduler
	schedSvc  *schedule.Scheduler

	mu       sync.Mutex
	conns    map[string]*conn
	listener net.Listener
}

// Deps bundles the collaborators a Server dispatches into; every field is
// required except Chooser, which may be nil to disable random fill (`queue`
// and `recent` remain functional).
type Deps struct {
	Queue      *queue.Queue
	Playlists  *queue.Playlists
	Database   *store.Database
	AuthEngine *auth.Engine
	Chooser    *chooser.Chooser
	Bus        *eventbus.Bus
	Scheduler  *scheduler.Scheduler
	Schedule   *schedule.Scheduler
}

// New constructs a Server ready to Serve connections.
func New(d Deps, opts Options, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	return &Server{
		opts:       opts.withDefaults(),
		log:        log,
		queue:      d.Queue,
		playlists:  d.Playlists,
		db:         d.Database,
		authEngine: d.AuthEngine,
		chooser:    d.Chooser,
		bus:        d.Bus,
		sched:      d.Scheduler,
		schedSvc:   d.Schedule,
		conns:      make(map[string]*conn),
	}
}

// SetScheduler attaches the scheduled-action timer once constructed.
// schedule.New/Load need a Server as their Executor, so callers outside
// this package must build a Server with Deps.Schedule left nil and wire
// the two together afterwards; this is that second step.
func (s *Server) SetScheduler(sched *schedule.Scheduler) {
	s.schedSvc = sched
}

// Serve listens on network/addr (e.g. "tcp", ":9696" or "unix",
// "/run/disorder.socket") and accepts connections until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, network, addr string) error {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return fmt.Errorf("server: listen %s %s: %w", network, addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		<-ctx.Done()
		ln.Close()
	}()

	s.log.Info("server: listening", "network", network, "addr", addr)
	for {
		nc, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("server: accept: %w", err)
		}
		go s.handleConn(ctx, nc)
	}
}

// Executor implements schedule.Executor: scheduled events fire under the
// identity that created them, with rights resolved at fire time rather
// than at schedule time (spec §4.I).
func (s *Server) Execute(ctx context.Context, who string, action schedule.Action, args []string) error {
	u, err := s.authEngine.Users.Get(who)
	if err != nil {
		return fmt.Errorf("server: scheduled action: %w", err)
	}
	switch action {
	case schedule.ActionPlay:
		if len(args) != 1 {
			return fmt.Errorf("server: scheduled play: expected one track argument")
		}
		if !u.Rights.Has(auth.RightPlay) {
			return fmt.Errorf("server: scheduled play: %s lacks play right", who)
		}
		if !s.db.Exists(args[0]) {
			return fmt.Errorf("server: scheduled play: no such track %q", args[0])
		}
		_, err := s.queue.PlayScheduled(args[0], who)
		return err
	case schedule.ActionSetGlobal:
		if len(args) != 2 {
			return fmt.Errorf("server: scheduled set-global: expected key and value arguments")
		}
		if !u.Rights.Has(auth.RightGlobalPrefs) {
			return fmt.Errorf("server: scheduled set-global: %s lacks global prefs right", who)
		}
		s.db.SetGlobal(args[0], args[1])
		return nil
	default:
		return fmt.Errorf("server: unknown scheduled action %q", action)
	}
}

// QueueLength implements admin.StatusSource.
func (s *Server) QueueLength() int { return len(s.queue.List()) }

// ConnectedClients implements admin.StatusSource.
func (s *Server) ConnectedClients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Playing implements admin.StatusSource.
func (s *Server) Playing() bool {
	_, ok := s.queue.Playing()
	return ok
}

func (s *Server) register(c *conn) {
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
}

func (s *Server) unregister(c *conn) {
	s.mu.Lock()
	delete(s.conns, c.id)
	s.mu.Unlock()
	s.playlists.ReleaseConnection(c.id)
}

func newConnID() string {
	return uuid.NewString()
}
