package server

import (
	"context"

	"github.com/dgnsrekt/disorder/internal/auth"
)

// handlerFunc is a command's implementation: args excludes the command
// name itself, body is non-nil only for commands with hasBody set.
type handlerFunc func(ctx context.Context, c *conn, args []string, body []string)

// command is one row of the descriptor table spec §4.H calls for:
// {name, min_args, max_args, required_rights, has_body, handler}.
// maxArgs of -1 means unbounded.
type command struct {
	minArgs, maxArgs int
	authRequired     bool
	rights           auth.Rights
	hasBody          bool
	handler          handlerFunc
}

var commandTable map[string]command

func init() {
	commandTable = map[string]command{
		"nop":      {0, 0, false, 0, false, handleNop},
		"user":     {2, 2, false, 0, false, handleUser},
		"cookie":   {1, 1, false, 0, false, handleCookie},
		"register": {3, 3, false, 0, false, handleRegister},
		"confirm":  {2, 2, false, 0, false, handleConfirm},
		"adduser":  {3, 4, true, auth.RightAdmin, false, handleAddUser},
		"deluser":  {1, 1, true, auth.RightAdmin, false, handleDelUser},
		"edituser": {1, 4, true, auth.RightAdmin, false, handleEditUser},
		"rights":   {0, 0, true, 0, false, handleRights},

		"play":       {1, 1, true, auth.RightPlay, false, handlePlay},
		"playafter":  {2, 2, true, auth.RightPlay, false, handlePlayAfter},
		"remove":     {1, 1, true, 0, false, handleRemove},
		"move":       {2, 2, true, 0, false, handleMove},
		"moveafter":  {1, -1, true, 0, false, handleMoveAfter},
		"scratch":    {0, 1, true, 0, false, handleScratch},
		"adopt":      {1, 1, true, auth.RightPlay, false, handleAdopt},
		"queue":      {0, 0, true, auth.RightRead, false, handleQueue},
		"recent":     {0, 0, true, auth.RightRead, false, handleRecent},
		"playing":    {0, 0, true, auth.RightRead, false, handlePlaying},
		"pause":      {0, 0, true, auth.RightPause, false, handlePause},
		"resume":     {0, 0, true, auth.RightPause, false, handleResume},
		"enable":     {0, 0, true, auth.RightAdmin, false, handleEnable},
		"disable":    {0, 0, true, auth.RightAdmin, false, handleDisable},
		"random-enable":  {0, 0, true, auth.RightAdmin, false, handleRandomEnable},
		"random-disable": {0, 0, true, auth.RightAdmin, false, handleRandomDisable},
		"volume":     {0, 2, true, 0, false, handleVolume},
		"log":        {0, 0, true, auth.RightRead, false, handleLog},

		"get":    {2, 2, true, auth.RightRead, false, handleGet},
		"set":    {3, 3, true, 0, false, handleSet},
		"unset":  {2, 2, true, 0, false, handleUnset},
		"prefs":  {1, 1, true, auth.RightRead, false, handlePrefs},
		"tags":   {0, 0, true, auth.RightRead, false, handleTags},
		"search": {1, -1, true, auth.RightRead, false, handleSearch},
		"resolve": {1, 1, true, auth.RightRead, false, handleResolve},

		"schedule-add":  {3, -1, true, auth.RightAdmin, false, handleScheduleAdd},
		"schedule-del":  {1, 1, true, auth.RightAdmin, false, handleScheduleDel},
		"schedule-list": {0, 0, true, auth.RightRead, false, handleScheduleList},
		"schedule-get":  {1, 1, true, auth.RightRead, false, handleScheduleGet},

		"playlist-lock":   {1, 1, true, auth.RightPlay, false, handlePlaylistLock},
		"playlist-unlock": {0, 0, true, auth.RightPlay, false, handlePlaylistUnlock},
		"playlist-set":    {1, 1, true, auth.RightPlay, true, handlePlaylistSet},
		"playlist-get":    {1, 1, true, auth.RightRead, false, handlePlaylistGet},
		"playlist-delete": {1, 1, true, auth.RightPlay, false, handlePlaylistDelete},
		"playlist-list":   {0, 0, true, auth.RightRead, false, handlePlaylistList},
	}
}

func handleNop(ctx context.Context, c *conn, args []string, body []string) {
	c.ok("ok")
}
