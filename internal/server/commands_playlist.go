package server

import (
	"context"
	"errors"

	"github.com/dgnsrekt/disorder/internal/queue"
	"github.com/dgnsrekt/disorder/internal/wire"
)

func handlePlaylistLock(ctx context.Context, c *conn, args []string, body []string) {
	name := args[0]
	if _, err := c.srv.playlists.Get(name); errors.Is(err, queue.ErrNoSuchPlaylist) {
		if _, err := c.srv.playlists.Create(name); err != nil {
			c.notFound(err.Error())
			return
		}
	}
	if err := c.srv.playlists.Lock(c.id, name, c.srv.opts.PlaylistLockTimeout); err != nil {
		c.notFound(err.Error())
		return
	}
	c.ok("locked")
}

func handlePlaylistUnlock(ctx context.Context, c *conn, args []string, body []string) {
	c.srv.playlists.Unlock(c.id)
	c.ok("unlocked")
}

func handlePlaylistSet(ctx context.Context, c *conn, args []string, body []string) {
	name := args[0]
	if err := c.srv.playlists.Set(c.id, name, body); err != nil {
		c.notFound(err.Error())
		return
	}
	c.ok("set")
}

func handlePlaylistGet(ctx context.Context, c *conn, args []string, body []string) {
	pl, err := c.srv.playlists.Get(args[0])
	if err != nil {
		c.notFound(err.Error())
		return
	}
	c.respondBody(wire.StatusOKBody, "playlist follows", pl.TrackList())
}

func handlePlaylistDelete(ctx context.Context, c *conn, args []string, body []string) {
	if err := c.srv.playlists.Delete(args[0]); err != nil {
		c.notFound(err.Error())
		return
	}
	c.ok("deleted")
}

func handlePlaylistList(ctx context.Context, c *conn, args []string, body []string) {
	c.respondBody(wire.StatusOKBody, "playlists follow", c.srv.playlists.List())
}
