package eventbus

import (
	"fmt"
	"sync"
	"time"

	"github.com/dgnsrekt/disorder/internal/wire"
)

// KeepaliveInterval is how often the log stream writes a keepalive byte
// during idleness, so clients can detect a dead connection (spec §4.G:
// "one keepalive byte per LOG_PROD_INTERVAL (10 s) of idleness").
const KeepaliveInterval = 10 * time.Second

// keepaliveByte is sent alone on the wire; clients are required to
// ignore it (spec §4.G).
const keepaliveByte = '\n'

// LogStream subscribes a single connection to every event kind and
// renders each as a line: a hex microsecond timestamp, the kind, and its
// quoted-string arguments, matching the `log` command's wire encoding.
// A background goroutine emits a keepalive byte whenever no event has
// been written for KeepaliveInterval.
type LogStream struct {
	bus     *Bus
	handles []Handle

	mu       sync.Mutex
	lastSent time.Time
	closed   bool
	stopCh   chan struct{}

	write func(line string) error
	ping  func() error
}

var allKinds = []Kind{
	KindQueue, KindRecentAdded, KindRecentRemove, KindRemoved, KindMoved,
	KindPlaying, KindCompleted, KindFailed, KindScratched, KindState,
	KindVolume, KindRescanned, KindUserAdd, KindUserDelete, KindUserEdit,
	KindUserConfirm,
}

// NewLogStream subscribes to bus and starts the keepalive goroutine.
// write is called with each fully-encoded event line (no trailing
// CRLF — the caller's wire.Writer owns framing); ping is called to emit
// a bare keepalive byte.
func NewLogStream(bus *Bus, write func(line string) error, ping func() error) *LogStream {
	ls := &LogStream{
		bus:      bus,
		lastSent: time.Now(),
		stopCh:   make(chan struct{}),
		write:    write,
		ping:     ping,
	}
	for _, kind := range allKinds {
		k := kind
		ls.handles = append(ls.handles, bus.Subscribe(k, ls.deliver))
	}
	go ls.keepaliveLoop()
	return ls
}

func (ls *LogStream) deliver(e Event) {
	line := fmt.Sprintf("%s %s %s", hexMicros(time.Now()), e.Kind, wire.QuoteArgs(e.Args))
	ls.mu.Lock()
	ls.lastSent = time.Now()
	ls.mu.Unlock()
	_ = ls.write(line)
}

func (ls *LogStream) keepaliveLoop() {
	ticker := time.NewTicker(KeepaliveInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ls.stopCh:
			return
		case <-ticker.C:
			ls.mu.Lock()
			idle := time.Since(ls.lastSent) >= KeepaliveInterval
			if idle {
				ls.lastSent = time.Now()
			}
			ls.mu.Unlock()
			if idle {
				_ = ls.ping()
			}
		}
	}
}

// Close cancels every subscription and stops the keepalive goroutine.
// Safe to call more than once.
func (ls *LogStream) Close() {
	ls.mu.Lock()
	if ls.closed {
		ls.mu.Unlock()
		return
	}
	ls.closed = true
	ls.mu.Unlock()

	close(ls.stopCh)
	for _, h := range ls.handles {
		ls.bus.Cancel(h)
	}
}

// hexMicros renders t as a lowercase hex count of microseconds since the
// Unix epoch, the timestamp format the `log` stream prefixes each event
// line with.
func hexMicros(t time.Time) string {
	return fmt.Sprintf("%x", t.UnixMicro())
}
