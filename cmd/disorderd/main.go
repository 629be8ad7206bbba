// Command disorderd is the DisOrder jukebox daemon: it loads
// configuration, wires the track store, queue, auth engine, chooser,
// scheduler and scheduled-action timer together, and serves the
// line-oriented client protocol (and an HTTP admin surface) until
// signalled to stop.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/dgnsrekt/disorder/internal/admin"
	"github.com/dgnsrekt/disorder/internal/auth"
	"github.com/dgnsrekt/disorder/internal/chooser"
	"github.com/dgnsrekt/disorder/internal/config"
	"github.com/dgnsrekt/disorder/internal/eventbus"
	"github.com/dgnsrekt/disorder/internal/queue"
	"github.com/dgnsrekt/disorder/internal/schedule"
	"github.com/dgnsrekt/disorder/internal/scheduler"
	"github.com/dgnsrekt/disorder/internal/server"
	"github.com/dgnsrekt/disorder/internal/sink"
	"github.com/dgnsrekt/disorder/internal/store"
)

// defaultConfirmedRights are granted to a `register`ed account once
// `confirm` is called, matching the capability set a typical non-admin
// jukebox user expects (spec.md §4.B: "confirm ... promotes to full
// configured default rights").
const defaultConfirmedRights = auth.RightRead | auth.RightPlay | auth.RightPause |
	auth.RightVolume | auth.RightMoveOwn | auth.RightScratchOwn |
	auth.RightRemoveOwn | auth.RightPrefs | auth.RightRegister

// recentHistory adapts queue.Queue's recently-played FIFO to the
// chooser.History interface, which only needs the most recent play time
// per track. The daemon's replay_min check therefore only sees plays that
// are still in the bounded history; chooser.LastPlayedStore is not used.
type recentHistory struct{ q *queue.Queue }

func (r recentHistory) LastPlayed(path string) (time.Time, bool) {
	recent := r.q.Recent()
	for i := len(recent) - 1; i >= 0; i-- {
		if recent[i].Track == path {
			return recent[i].Played, true
		}
	}
	return time.Time{}, false
}

func main() {
	var (
		configPath = pflag.StringP("config", "c", "", "path to the disorder directive file (env DISORDER_CONFIG)")
		listenAddr = pflag.String("listen", "", "override: tcp listen address, host:port")
		debug      = pflag.Bool("debug", false, "enable debug logging")
		version    = pflag.Bool("version", false, "print version and exit")
	)
	pflag.Parse()

	if *version {
		fmt.Println("disorderd (dgnsrekt/disorder)")
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "disorderd: loading configuration:", err)
		os.Exit(1)
	}
	if *debug {
		cfg.Debug = true
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	if err := run(cfg, *listenAddr, logger); err != nil {
		logger.Error("disorderd: fatal", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, listenOverride string, logger *slog.Logger) error {
	for _, dir := range []string{filepath.Dir(cfg.QueueFile), filepath.Dir(cfg.ScheduleFile), filepath.Dir(cfg.PasswordFile)} {
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return fmt.Errorf("creating state directory %q: %w", dir, err)
			}
		}
	}

	users, err := auth.LoadStore(cfg.PasswordFile, defaultConfirmedRights)
	if err != nil {
		return fmt.Errorf("loading user database: %w", err)
	}
	authEngine, err := auth.NewEngine(users, logger)
	if err != nil {
		return fmt.Errorf("starting auth engine: %w", err)
	}

	db := store.NewDatabase(cfg.Nameparts, cfg.Stopwords)
	for _, coll := range cfg.Collections {
		added, removed, err := store.ScanInto(coll.Root, db)
		if err != nil {
			logger.Warn("disorderd: collection scan failed", "root", coll.Root, "error", err)
			continue
		}
		logger.Info("disorderd: collection scanned", "root", coll.Root, "added", added, "removed", removed)
	}

	q, err := queue.Load(cfg.QueueFile, cfg.HistoryLength)
	if err != nil {
		return fmt.Errorf("loading queue: %w", err)
	}
	playlists := queue.NewPlaylists(cfg.PlaylistMax)
	bus := eventbus.New()

	ch := chooser.New(db, recentHistory{q}, db, chooser.Options{
		ReplayMin:  cfg.ReplayMin,
		NewBias:    cfg.NewBias,
		NewBiasAge: cfg.NewBiasAge,
	})

	players := scheduler.NewPlayerTable(cfg.Players)
	outSink, err := openSink(cfg, logger)
	if err != nil {
		return fmt.Errorf("opening audio sink: %w", err)
	}

	sched := scheduler.New(q, ch, players, outSink, bus, scheduler.Options{Gap: cfg.Gap}, logger)

	srv := server.New(server.Deps{
		Queue:      q,
		Playlists:  playlists,
		Database:   db,
		AuthEngine: authEngine,
		Chooser:    ch,
		Bus:        bus,
		Scheduler:  sched,
	}, server.Options{PlaylistLockTimeout: cfg.PlaylistLockTTL, Banner: cfg.Banner}, logger)

	schedSvc, err := schedule.Load(cfg.ScheduleFile, srv, logger)
	if err != nil {
		return fmt.Errorf("loading scheduled events: %w", err)
	}
	srv.SetScheduler(schedSvc)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
		<-sig
		logger.Info("disorderd: shutdown signal received")
		cancel()
	}()

	go sched.Run(ctx)
	go schedSvc.Run(ctx)

	network, addr := "tcp", listenOverride
	if addr == "" && len(cfg.Listen) > 0 {
		network, addr = cfg.Listen[0].Network, cfg.Listen[0].Address
	}
	if addr == "" {
		addr = ":9696"
	}

	errCh := make(chan error, 2)
	go func() {
		errCh <- srv.Serve(ctx, network, addr)
	}()
	go func() {
		errCh <- runAdmin(ctx, srv, cfg, logger)
	}()

	var serveErr error
	select {
	case serveErr = <-errCh:
	case <-ctx.Done():
		serveErr = <-errCh
	}

	logger.Info("disorderd: shutting down")
	if err := q.Save(cfg.QueueFile); err != nil {
		logger.Error("disorderd: saving queue", "error", err)
	}
	if err := schedSvc.Save(cfg.ScheduleFile); err != nil {
		logger.Error("disorderd: saving schedule", "error", err)
	}
	if err := users.Save(cfg.PasswordFile); err != nil {
		logger.Error("disorderd: saving user database", "error", err)
	}
	return serveErr
}

func openSink(cfg *config.Config, logger *slog.Logger) (sink.Sink, error) {
	if cfg.Broadcast != nil {
		dest, err := net.ResolveUDPAddr("udp", cfg.Broadcast.Address)
		if err != nil {
			return nil, fmt.Errorf("resolving broadcast address: %w", err)
		}
		var from *net.UDPAddr
		if cfg.Broadcast.From != "" {
			from, err = net.ResolveUDPAddr("udp", cfg.Broadcast.From)
			if err != nil {
				return nil, fmt.Errorf("resolving broadcast_from address: %w", err)
			}
		}
		return sink.NewRTPSink(sink.DefaultFormat, sink.RTPOptions{
			Broadcast:         dest,
			From:              from,
			MulticastTTL:      cfg.Broadcast.MulticastTTL,
			MulticastLoopback: cfg.Broadcast.MulticastLoopback,
		})
	}
	return sink.NewCommandSink(context.Background(), cfg.OutputCommand, sink.DefaultFormat, logger)
}

func runAdmin(ctx context.Context, status admin.StatusSource, cfg *config.Config, logger *slog.Logger) error {
	adminSrv := admin.NewServer(status, func() error { return nil }, nil)
	httpSrv := &http.Server{Addr: ":9697", Handler: adminSrv.Handler()}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = httpSrv.Shutdown(shutdownCtx)
	}()

	if err := httpSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logger.Error("disorderd: admin server error", "error", err)
		return err
	}
	return nil
}
