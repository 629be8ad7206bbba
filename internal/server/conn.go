package server

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/disorder/internal/auth"
	"github.com/dgnsrekt/disorder/internal/eventbus"
	"github.com/dgnsrekt/disorder/internal/queue"
	"github.com/dgnsrekt/disorder/internal/wire"
)

// conn is a single client connection's dispatch state. Commands on one
// conn execute strictly in order (spec §5): there is no per-connection
// concurrency beyond the `log` stream's event-forwarding loop, which
// takes over a connection permanently once entered.
type conn struct {
	id      string
	nc      net.Conn
	reader  *wire.Reader
	writer  *wire.Writer
	session *auth.Session
	srv     *Server

	closeRequested bool
}

func (s *Server) handleConn(ctx context.Context, nc net.Conn) {
	defer nc.Close()

	c := &conn{
		id:     newConnID(),
		nc:     nc,
		reader: wire.NewReader(nc),
		writer: wire.NewWriter(nc),
		srv:    s,
	}

	sess, err := s.authEngine.NewSession(nc.RemoteAddr().String())
	if err != nil {
		s.log.Error("server: issuing challenge failed", "error", err)
		return
	}
	c.session = sess

	s.register(c)
	defer s.unregister(c)

	ch := sess.Challenge()
	if err := c.writer.WriteLine(wire.StatusGreeting.LineArgs(s.opts.Banner, ch.Algorithm, ch.Hex())); err != nil {
		return
	}

	c.dispatchLoop(ctx)
}

// dispatchLoop implements spec §4.H's loop: read a line, tokenize it, look
// the command up, read a dot-stuffed body if the command needs one, check
// the argument count, authentication and rights, then invoke the handler.
func (c *conn) dispatchLoop(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		line, err := c.reader.ReadLine()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				c.srv.log.Debug("server: connection read error", "conn", c.id, "error", err)
			}
			return
		}
		if strings.TrimSpace(line) == "" {
			continue
		}

		args, err := wire.Tokenize(line)
		if err != nil {
			c.respond(wire.StatusSyntaxError, "malformed request: "+err.Error())
			continue
		}
		if len(args) == 0 {
			continue
		}

		name := strings.ToLower(args[0])
		rest := args[1:]

		cmd, ok := commandTable[name]
		if !ok {
			c.respond(wire.StatusSyntaxError, "unknown command "+wire.Quote(name))
			continue
		}

		var body []string
		if cmd.hasBody {
			body, err = c.reader.ReadBody()
			if err != nil {
				return
			}
		}

		if len(rest) < cmd.minArgs || (cmd.maxArgs >= 0 && len(rest) > cmd.maxArgs) {
			c.respond(wire.StatusSyntaxError, "wrong number of arguments for "+name)
			continue
		}

		if cmd.authRequired && !c.session.Authenticated {
			c.respond(wire.StatusAuthRequired, "authentication required")
			continue
		}
		if cmd.rights != 0 && !c.session.Rights.Has(cmd.rights) {
			c.respond(wire.StatusPermissionDenied, "permission denied")
			continue
		}

		cmd.handler(ctx, c, rest, body)

		if (name == "user" || name == "cookie") && !c.session.Authenticated &&
			c.session.Failures() >= auth.MaxConsecutiveFailures {
			c.srv.log.Warn("server: closing connection after repeated login failures", "conn", c.id)
			return
		}
		if c.closeRequested {
			return
		}
	}
}

// respond writes a single-line, no-body response (x0-shaped).
func (c *conn) respond(status wire.Status, message string) {
	_ = c.writer.WriteLine(status.Line(message))
}

// respondArgs writes a single-line response whose message is a
// quoted-argument list (x0/x5-shaped).
func (c *conn) respondArgs(status wire.Status, args ...string) {
	_ = c.writer.WriteLine(status.LineArgs(args...))
}

// respondBody writes an x3-shaped response: a status line followed by a
// dot-stuffed body.
func (c *conn) respondBody(status wire.Status, message string, lines []string) {
	_ = c.writer.WriteLine(status.Line(message))
	_ = c.writer.WriteBody(lines)
}

// notFound and permissionDenied cover the two most common error shapes
// handlers need, keeping call sites terse.
func (c *conn) notFound(what string)  { c.respond(wire.StatusNotFound, what) }
func (c *conn) permissionDenied()     { c.respond(wire.StatusPermissionDenied, "permission denied") }
func (c *conn) ok(message string)     { c.respond(wire.StatusOK, message) }

// toOwner translates queue's entry-ownership classification into auth's
// Owner enum so a handler can feed it straight into a CanMove/CanScratch/
// CanRemove check; the two enums are kept in separate packages (spec
// §7, avoiding a queue->auth layering inversion) but share the same
// three-way split by construction.
func toOwner(k queue.OwnerKind) auth.Owner {
	switch k {
	case queue.OwnerSelf:
		return auth.OwnerSelf
	case queue.OwnerRandom:
		return auth.OwnerRandom
	default:
		return auth.OwnerOther
	}
}

// logEventKinds lists every eventbus.Kind the `log` command forwards; kept
// here rather than in eventbus itself so that package stays free of any
// notion of "the full set" and just deals in individual Kind values.
var logEventKinds = []eventbus.Kind{
	eventbus.KindQueue,
	eventbus.KindRecentAdded,
	eventbus.KindRecentRemove,
	eventbus.KindRemoved,
	eventbus.KindMoved,
	eventbus.KindPlaying,
	eventbus.KindCompleted,
	eventbus.KindFailed,
	eventbus.KindScratched,
	eventbus.KindState,
	eventbus.KindVolume,
	eventbus.KindRescanned,
	eventbus.KindUserAdd,
	eventbus.KindUserDelete,
	eventbus.KindUserEdit,
	eventbus.KindUserConfirm,
}

// subscribeLog enters the connection into indefinite log-stream mode
// (spec §4.H: status 241, "an indefinite event stream, log only"):
// everything published on the bus from this point on is forwarded as a
// line until the connection closes. No further commands are read on this
// connection once in this mode, matching the protocol's use of `log` as a
// terminal, monitor-only state for the connection's remaining lifetime.
func (c *conn) subscribeLog(ctx context.Context) {
	c.respond(wire.StatusOKStream, "event log follows")

	done := make(chan struct{})
	var closeOnce sync.Once
	forward := func(e eventbus.Event) {
		line := fmt.Sprintf("%x %s %s", time.Now().UnixMicro(), e.Kind, wire.QuoteArgs(e.Args))
		if err := c.writer.WriteLine(line); err != nil {
			closeOnce.Do(func() { close(done) })
		}
	}

	handles := make([]eventbus.Handle, 0, len(logEventKinds))
	for _, kind := range logEventKinds {
		handles = append(handles, c.srv.bus.Subscribe(kind, forward))
	}
	defer func() {
		for _, h := range handles {
			c.srv.bus.Cancel(h)
		}
	}()

	select {
	case <-ctx.Done():
	case <-done:
	}
	c.closeRequested = true
}
