package server

import (
	"context"
	"strconv"

	"github.com/dgnsrekt/disorder/internal/auth"
	"github.com/dgnsrekt/disorder/internal/eventbus"
	"github.com/dgnsrekt/disorder/internal/queue"
	"github.com/dgnsrekt/disorder/internal/wire"
)

// formatEntry renders a queue entry as one line of a queue/recent body:
// id, track, submitter, origin, state, and seconds played so far, each
// quoted per the wire grammar.
func formatEntry(e *queue.Entry) string {
	return wire.QuoteArgs([]string{
		e.ID,
		e.Track,
		e.Submitter,
		string(e.Origin),
		string(e.State),
		strconv.Itoa(e.SofarNow()),
	})
}

func handlePlay(ctx context.Context, c *conn, args []string, body []string) {
	track := args[0]
	if !c.srv.db.Exists(track) {
		c.notFound("no such track")
		return
	}
	e, err := c.srv.queue.Play(track, c.session.User)
	if err != nil {
		c.notFound(err.Error())
		return
	}
	c.srv.bus.Publish(eventbus.Event{Kind: eventbus.KindQueue, Args: []string{e.ID}})
	c.respondArgs(wire.StatusOK, e.ID)
}

func handlePlayAfter(ctx context.Context, c *conn, args []string, body []string) {
	target, track := args[0], args[1]
	if !c.srv.db.Exists(track) {
		c.notFound("no such track")
		return
	}
	e, err := c.srv.queue.PlayAfter(target, track, c.session.User)
	if err != nil {
		c.notFound(err.Error())
		return
	}
	c.srv.bus.Publish(eventbus.Event{Kind: eventbus.KindQueue, Args: []string{e.ID}})
	c.respondArgs(wire.StatusOK, e.ID)
}

func handleRemove(ctx context.Context, c *conn, args []string, body []string) {
	id := args[0]
	e, err := c.srv.queue.Get(id)
	if err != nil {
		c.notFound(err.Error())
		return
	}
	if !c.session.Rights.CanRemove(toOwner(e.Owner(c.session.User))) {
		c.permissionDenied()
		return
	}
	if err := c.srv.queue.Remove(id); err != nil {
		c.notFound(err.Error())
		return
	}
	c.srv.bus.Publish(eventbus.Event{Kind: eventbus.KindRemoved, Args: []string{id}})
	c.ok("removed")
}

func handleMove(ctx context.Context, c *conn, args []string, body []string) {
	id := args[0]
	delta, err := strconv.Atoi(args[1])
	if err != nil {
		c.respond(wire.StatusSyntaxError, "delta must be an integer")
		return
	}
	e, err := c.srv.queue.Get(id)
	if err != nil {
		c.notFound(err.Error())
		return
	}
	if !c.session.Rights.CanMove(toOwner(e.Owner(c.session.User))) {
		c.permissionDenied()
		return
	}
	moved, err := c.srv.queue.Move(id, delta)
	if err != nil {
		c.notFound(err.Error())
		return
	}
	c.srv.bus.Publish(eventbus.Event{Kind: eventbus.KindMoved, Args: []string{id}})
	c.respondArgs(wire.StatusOK, strconv.Itoa(moved))
}

func handleMoveAfter(ctx context.Context, c *conn, args []string, body []string) {
	target := args[0]
	ids := args[1:]
	for _, id := range ids {
		e, err := c.srv.queue.Get(id)
		if err != nil {
			c.notFound(err.Error())
			return
		}
		if !c.session.Rights.CanMove(toOwner(e.Owner(c.session.User))) {
			c.permissionDenied()
			return
		}
	}
	if err := c.srv.queue.MoveAfter(target, ids); err != nil {
		c.notFound(err.Error())
		return
	}
	c.srv.bus.Publish(eventbus.Event{Kind: eventbus.KindMoved, Args: ids})
	c.ok("moved")
}

func handleScratch(ctx context.Context, c *conn, args []string, body []string) {
	id := ""
	if len(args) == 1 {
		id = args[0]
	}
	target := id
	if target == "" {
		if playing, ok := c.srv.queue.Playing(); ok {
			target = playing.ID
		}
	}
	if target != "" {
		e, err := c.srv.queue.Get(target)
		if err != nil {
			c.notFound(err.Error())
			return
		}
		if !c.session.Rights.CanScratch(toOwner(e.Owner(c.session.User))) {
			c.permissionDenied()
			return
		}
	}
	c.srv.sched.Scratch(c.session.User)
	c.ok("scratched")
}

func handleAdopt(ctx context.Context, c *conn, args []string, body []string) {
	if err := c.srv.queue.Adopt(args[0], c.session.User); err != nil {
		c.notFound(err.Error())
		return
	}
	c.ok("adopted")
}

func handleQueue(ctx context.Context, c *conn, args []string, body []string) {
	entries := c.srv.queue.List()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = formatEntry(e)
	}
	c.respondBody(wire.StatusOKBody, "queue follows", lines)
}

func handleRecent(ctx context.Context, c *conn, args []string, body []string) {
	entries := c.srv.queue.Recent()
	lines := make([]string, len(entries))
	for i, e := range entries {
		lines[i] = formatEntry(e)
	}
	c.respondBody(wire.StatusOKBody, "recently played follows", lines)
}

func handlePlaying(ctx context.Context, c *conn, args []string, body []string) {
	e, ok := c.srv.queue.Playing()
	if !ok {
		c.respond(wire.StatusNothingPlaying, "nothing playing")
		return
	}
	c.respond(wire.StatusPlaying, formatEntry(e))
}

func handlePause(ctx context.Context, c *conn, args []string, body []string) {
	c.srv.sched.Pause()
	c.ok("paused")
}

func handleResume(ctx context.Context, c *conn, args []string, body []string) {
	c.srv.sched.Resume()
	c.ok("resumed")
}

func handleEnable(ctx context.Context, c *conn, args []string, body []string) {
	c.srv.sched.SetPlaying(true)
	c.ok("enabled")
}

func handleDisable(ctx context.Context, c *conn, args []string, body []string) {
	c.srv.sched.SetPlaying(false)
	c.ok("disabled")
}

func handleRandomEnable(ctx context.Context, c *conn, args []string, body []string) {
	c.srv.sched.SetRandomEnabled(true)
	c.ok("random play enabled")
}

func handleRandomDisable(ctx context.Context, c *conn, args []string, body []string) {
	c.srv.sched.SetRandomEnabled(false)
	c.ok("random play disabled")
}

func handleVolume(ctx context.Context, c *conn, args []string, body []string) {
	mixer := c.srv.sched.Mixer()
	if len(args) == 0 {
		left, right := mixer.Volume()
		c.respondArgs(wire.StatusOK, strconv.Itoa(left), strconv.Itoa(right))
		return
	}
	if !c.session.Rights.Has(auth.RightVolume) {
		c.permissionDenied()
		return
	}
	left, err := strconv.Atoi(args[0])
	if err != nil {
		c.respond(wire.StatusSyntaxError, "volume must be an integer")
		return
	}
	right := left
	if len(args) == 2 {
		right, err = strconv.Atoi(args[1])
		if err != nil {
			c.respond(wire.StatusSyntaxError, "volume must be an integer")
			return
		}
	}
	mixer.SetVolume(left, right)
	c.srv.bus.Publish(eventbus.Event{Kind: eventbus.KindVolume, Args: []string{strconv.Itoa(left), strconv.Itoa(right)}})
	c.ok("volume set")
}

func handleLog(ctx context.Context, c *conn, args []string, body []string) {
	c.subscribeLog(ctx)
}
