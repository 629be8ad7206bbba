package server

import (
	"context"
	"errors"

	"github.com/dgnsrekt/disorder/internal/auth"
	"github.com/dgnsrekt/disorder/internal/eventbus"
	"github.com/dgnsrekt/disorder/internal/wire"
)

func handleUser(ctx context.Context, c *conn, args []string, body []string) {
	username, response := args[0], args[1]
	if err := c.session.Login(username, response); err != nil {
		if errors.Is(err, auth.ErrRateLimited) {
			c.respond(wire.StatusAuthRequired, "rate limited, retry later")
			return
		}
		c.respond(wire.StatusAuthRequired, "authentication failed")
		return
	}
	c.respondArgs(wire.StatusAuthOK, c.session.User, c.session.Rights.String())
}

func handleCookie(ctx context.Context, c *conn, args []string, body []string) {
	if err := c.session.LoginCookie(args[0]); err != nil {
		c.respond(wire.StatusAuthRequired, "authentication failed")
		return
	}
	c.respondArgs(wire.StatusAuthOK, c.session.User, c.session.Rights.String())
}

func handleRegister(ctx context.Context, c *conn, args []string, body []string) {
	username, password, email := args[0], args[1], args[2]
	nonce, err := c.srv.authEngine.Users.Register(username, password, email)
	if err != nil {
		c.notFound(err.Error())
		return
	}
	c.respondArgs(wire.StatusOK, nonce)
}

func handleConfirm(ctx context.Context, c *conn, args []string, body []string) {
	username, nonce := args[0], args[1]
	if err := c.srv.authEngine.Users.Confirm(username, nonce); err != nil {
		c.notFound(err.Error())
		return
	}
	c.srv.bus.Publish(eventbus.Event{Kind: eventbus.KindUserConfirm, Args: []string{username}})
	c.ok("confirmed")
}

func handleAddUser(ctx context.Context, c *conn, args []string, body []string) {
	name, password, email := args[0], args[1], args[2]
	rights := auth.DefaultGuestRights
	if len(args) == 4 {
		r, err := auth.ParseRights(args[3])
		if err != nil {
			c.respond(wire.StatusSyntaxError, err.Error())
			return
		}
		rights = r
	}
	if err := c.srv.authEngine.Users.AddUser(name, password, email, rights); err != nil {
		c.notFound(err.Error())
		return
	}
	c.srv.bus.Publish(eventbus.Event{Kind: eventbus.KindUserAdd, Args: []string{name}})
	c.ok("added")
}

func handleDelUser(ctx context.Context, c *conn, args []string, body []string) {
	if err := c.srv.authEngine.Users.DelUser(args[0]); err != nil {
		c.notFound(err.Error())
		return
	}
	c.srv.bus.Publish(eventbus.Event{Kind: eventbus.KindUserDelete, Args: []string{args[0]}})
	c.ok("deleted")
}

func handleEditUser(ctx context.Context, c *conn, args []string, body []string) {
	name := args[0]
	var password, email string
	var rights auth.Rights
	var changeRights bool
	if len(args) > 1 {
		password = args[1]
	}
	if len(args) > 2 {
		email = args[2]
	}
	if len(args) > 3 {
		r, err := auth.ParseRights(args[3])
		if err != nil {
			c.respond(wire.StatusSyntaxError, err.Error())
			return
		}
		rights = r
		changeRights = true
	}
	if err := c.srv.authEngine.Users.EditUser(name, password, email, rights, changeRights); err != nil {
		c.notFound(err.Error())
		return
	}
	c.srv.bus.Publish(eventbus.Event{Kind: eventbus.KindUserEdit, Args: []string{name}})
	c.ok("edited")
}

func handleRights(ctx context.Context, c *conn, args []string, body []string) {
	c.respondArgs(wire.StatusOK, c.session.Rights.String())
}
