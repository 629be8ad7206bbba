package server

import (
	"context"

	"github.com/dgnsrekt/disorder/internal/auth"
	"github.com/dgnsrekt/disorder/internal/store"
	"github.com/dgnsrekt/disorder/internal/wire"
)

func handleGet(ctx context.Context, c *conn, args []string, body []string) {
	track, key := args[0], args[1]
	if track == "" {
		v, ok := c.srv.db.GetGlobal(key)
		if !ok {
			c.notFound("no such global preference")
			return
		}
		c.respondArgs(wire.StatusOK, v)
		return
	}
	v, ok := c.srv.db.Get(track, key)
	if !ok {
		c.notFound("no such preference")
		return
	}
	c.respondArgs(wire.StatusOK, v)
}

func handleSet(ctx context.Context, c *conn, args []string, body []string) {
	track, key, value := args[0], args[1], args[2]
	if track == "" {
		if !c.session.Rights.Has(auth.RightGlobalPrefs) {
			c.permissionDenied()
			return
		}
		c.srv.db.SetGlobal(key, value)
		c.ok("set")
		return
	}
	if !c.session.Rights.Has(auth.RightPrefs) {
		c.permissionDenied()
		return
	}
	if err := c.srv.db.Set(track, key, value); err != nil {
		c.notFound(err.Error())
		return
	}
	c.ok("set")
}

func handleUnset(ctx context.Context, c *conn, args []string, body []string) {
	track, key := args[0], args[1]
	if track == "" {
		if !c.session.Rights.Has(auth.RightGlobalPrefs) {
			c.permissionDenied()
			return
		}
		c.srv.db.UnsetGlobal(key)
		c.ok("unset")
		return
	}
	if !c.session.Rights.Has(auth.RightPrefs) {
		c.permissionDenied()
		return
	}
	if err := c.srv.db.Unset(track, key); err != nil {
		c.notFound(err.Error())
		return
	}
	c.ok("unset")
}

func handlePrefs(ctx context.Context, c *conn, args []string, body []string) {
	kvs, err := c.srv.db.Prefs(args[0])
	if err != nil {
		c.notFound(err.Error())
		return
	}
	lines := make([]string, len(kvs))
	for i, kv := range kvs {
		lines[i] = wire.QuoteArgs([]string{kv.Key, kv.Value})
	}
	c.respondBody(wire.StatusOKBody, "preferences follow", lines)
}

func handleTags(ctx context.Context, c *conn, args []string, body []string) {
	tags := c.srv.db.AllTags()
	c.respondBody(wire.StatusOKBody, "tags follow", tags)
}

func handleSearch(ctx context.Context, c *conn, args []string, body []string) {
	matches := c.srv.db.Search(args)
	c.respondBody(wire.StatusOKBody, "search results follow", matches)
}

func handleResolve(ctx context.Context, c *conn, args []string, body []string) {
	path, err := c.srv.db.Resolve(args[0])
	if err != nil {
		if err == store.ErrNoSuchTrack {
			c.notFound("no such track")
			return
		}
		c.notFound(err.Error())
		return
	}
	c.respondArgs(wire.StatusOK, path)
}
