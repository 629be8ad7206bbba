package server

import (
	"context"
	"strconv"
	"time"

	"github.com/dgnsrekt/disorder/internal/schedule"
	"github.com/dgnsrekt/disorder/internal/wire"
)

func formatScheduleEvent(ev schedule.Event) string {
	fields := []string{
		ev.ID,
		strconv.FormatInt(ev.When.Unix(), 10),
		string(ev.Priority),
		ev.Who,
		string(ev.Action),
	}
	fields = append(fields, ev.Args...)
	return wire.QuoteArgs(fields)
}

func handleScheduleAdd(ctx context.Context, c *conn, args []string, body []string) {
	whenUnix, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		c.respond(wire.StatusSyntaxError, "when must be a unix timestamp")
		return
	}
	priority := schedule.Priority(args[1])
	action := schedule.Action(args[2])
	rest := args[3:]

	id, err := c.srv.schedSvc.Add(time.Unix(whenUnix, 0), priority, c.session.User, action, rest)
	if err != nil {
		c.respond(wire.StatusSyntaxError, err.Error())
		return
	}
	c.respondArgs(wire.StatusOK, id)
}

func handleScheduleDel(ctx context.Context, c *conn, args []string, body []string) {
	if err := c.srv.schedSvc.Del(args[0]); err != nil {
		c.notFound(err.Error())
		return
	}
	c.ok("deleted")
}

func handleScheduleList(ctx context.Context, c *conn, args []string, body []string) {
	events := c.srv.schedSvc.List()
	lines := make([]string, len(events))
	for i, ev := range events {
		lines[i] = ev.ID
	}
	c.respondBody(wire.StatusOKBody, "scheduled events follow", lines)
}

func handleScheduleGet(ctx context.Context, c *conn, args []string, body []string) {
	ev, err := c.srv.schedSvc.Get(args[0])
	if err != nil {
		c.notFound(err.Error())
		return
	}
	c.respond(wire.StatusOK, formatScheduleEvent(ev))
}
