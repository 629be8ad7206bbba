package server

import (
	"bufio"
	"context"
	"crypto/sha256"
	"log/slog"
	"net"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dgnsrekt/disorder/internal/auth"
	"github.com/dgnsrekt/disorder/internal/chooser"
	"github.com/dgnsrekt/disorder/internal/eventbus"
	"github.com/dgnsrekt/disorder/internal/queue"
	"github.com/dgnsrekt/disorder/internal/schedule"
	"github.com/dgnsrekt/disorder/internal/scheduler"
	"github.com/dgnsrekt/disorder/internal/sink"
	"github.com/dgnsrekt/disorder/internal/store"
	"github.com/dgnsrekt/disorder/internal/wire"
)

type fakeSink struct{}

func (fakeSink) Write(p []byte) (int, error) { return len(p), nil }
func (fakeSink) Format() sink.Format          { return sink.DefaultFormat }
func (fakeSink) Close() error                 { return nil }

// testHarness wires a full Server against an in-memory pipe, with one
// fully-privileged user already confirmed.
type testHarness struct {
	srv      *Server
	users    *auth.Store
	client   net.Conn
	br       *bufio.Reader
	bw       *wire.Writer
}

func newHarness(t *testing.T) *testHarness {
	t.Helper()

	users := auth.NewStore(auth.RightRead | auth.RightRegister)
	allRights := auth.Rights(0)
	for _, r := range []auth.Rights{
		auth.RightRead, auth.RightPlay, auth.RightMoveOwn, auth.RightMoveRandom, auth.RightMoveAny,
		auth.RightScratchOwn, auth.RightScratchRandom, auth.RightScratchAny,
		auth.RightRemoveOwn, auth.RightRemoveRandom, auth.RightRemoveAny,
		auth.RightPause, auth.RightVolume, auth.RightPrefs, auth.RightGlobalPrefs,
		auth.RightAdmin, auth.RightRegister, auth.RightUserInfo,
	} {
		allRights |= r
	}
	require.NoError(t, users.AddUser("alice", "secret", "alice@example.com", allRights))

	engine, err := auth.NewEngine(users, nil)
	require.NoError(t, err)

	q := queue.New(10)
	db := store.NewDatabase(nil, nil)
	db.Add(&store.Track{Path: "/music/song.ogg", Title: "Song", Artist: "Artist", Album: "Album"})
	playlists := queue.NewPlaylists(100)
	bus := eventbus.New()

	sched := scheduler.New(q, (*chooser.Chooser)(nil), scheduler.NewPlayerTable(nil), fakeSink{}, bus, scheduler.Options{}, nil)

	srv := New(Deps{
		Queue:      q,
		Playlists:  playlists,
		Database:   db,
		AuthEngine: engine,
		Chooser:    nil,
		Bus:        bus,
		Scheduler:  sched,
		Schedule:   nil,
	}, Options{}, nil)
	srv.schedSvc = schedule.New(srv, slog.Default())

	clientConn, serverConn := net.Pipe()
	go srv.handleConn(context.Background(), serverConn)

	h := &testHarness{
		srv:    srv,
		users:  users,
		client: clientConn,
		br:     bufio.NewReader(clientConn),
		bw:     wire.NewWriter(clientConn),
	}
	return h
}

func (h *testHarness) readLine(t *testing.T) string {
	t.Helper()
	line, err := h.br.ReadString('\n')
	require.NoError(t, err)
	return strings.TrimRight(line, "\r\n")
}

func (h *testHarness) send(t *testing.T, line string) {
	t.Helper()
	require.NoError(t, h.bw.WriteLine(line))
}

func (h *testHarness) login(t *testing.T) {
	t.Helper()
	greeting := h.readLine(t)
	args, err := wire.Tokenize(greeting[4:])
	require.NoError(t, err)
	require.Len(t, args, 3)
	algo, challengeHex := args[1], args[2]

	ch := &struct {
		Algorithm string
		Nonce     []byte
	}{Algorithm: algo}
	nonce, err := wire.HexDecode(challengeHex)
	require.NoError(t, err)
	ch.Nonce = nonce

	resp := computeResponse(t, algo, nonce, "secret")
	h.send(t, "user "+wire.Quote("alice")+" "+wire.Quote(resp))
	line := h.readLine(t)
	require.True(t, strings.HasPrefix(line, "230 "), "expected auth ok, got %q", line)
}

func computeResponse(t *testing.T, algo string, nonce []byte, password string) string {
	t.Helper()
	// Mirrors auth.Challenge.Response without importing its unexported
	// hash-selection helper: HASH(nonce || password) hex-encoded.
	switch algo {
	case auth.AlgoSHA256:
		sum := sha256.Sum256(append(append([]byte(nil), nonce...), []byte(password)...))
		return wire.HexEncode(sum[:])
	default:
		t.Fatalf("unsupported test algorithm %q", algo)
		return ""
	}
}

func TestGreetingAndNop(t *testing.T) {
	h := newHarness(t)
	greeting := h.readLine(t)
	assert.True(t, strings.HasPrefix(greeting, "231 "))

	h.send(t, "nop")
	line := h.readLine(t)
	assert.Equal(t, "200 ok", line)
}

func TestUserLoginSucceeds(t *testing.T) {
	h := newHarness(t)
	h.login(t)
}

func TestLoginThenPlayAndQueue(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.send(t, "play "+wire.Quote("/music/song.ogg"))
	resp := h.readLine(t)
	require.True(t, strings.HasPrefix(resp, "200 "))

	h.send(t, "queue")
	status := h.readLine(t)
	require.Equal(t, "231 queue follows", status)
	entryLine := h.readLine(t)
	assert.Contains(t, entryLine, "/music/song.ogg")
	terminator := h.readLine(t)
	assert.Equal(t, ".", terminator)
}

func TestPlayUnknownTrackNotFound(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.send(t, "play "+wire.Quote("/music/missing.ogg"))
	resp := h.readLine(t)
	assert.True(t, strings.HasPrefix(resp, "550 "))
}

func TestUnauthenticatedCommandRejected(t *testing.T) {
	h := newHarness(t)
	_ = h.readLine(t) // greeting

	h.send(t, "queue")
	resp := h.readLine(t)
	assert.True(t, strings.HasPrefix(resp, "530 "))
}

func TestUnknownCommandIsSyntaxError(t *testing.T) {
	h := newHarness(t)
	_ = h.readLine(t)

	h.send(t, "bogus-command")
	resp := h.readLine(t)
	assert.True(t, strings.HasPrefix(resp, "500 "))
}

func TestPauseResumeAndVolume(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.send(t, "volume")
	resp := h.readLine(t)
	assert.Equal(t, "200 100 100", resp)

	h.send(t, "volume 50")
	resp = h.readLine(t)
	assert.True(t, strings.HasPrefix(resp, "200 "))

	h.send(t, "pause")
	resp = h.readLine(t)
	assert.Equal(t, "200 paused", resp)

	h.send(t, "resume")
	resp = h.readLine(t)
	assert.Equal(t, "200 resumed", resp)
}

func TestScheduleAddListGet(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	when := time.Now().Add(time.Hour).Unix()
	h.send(t, "schedule-add "+wire.Quote(strconv.FormatInt(when, 10))+" normal play "+wire.Quote("/music/song.ogg"))
	resp := h.readLine(t)
	require.True(t, strings.HasPrefix(resp, "200 "))

	h.send(t, "schedule-list")
	status := h.readLine(t)
	require.Equal(t, "231 scheduled events follow", status)
	_ = h.readLine(t) // the one event id
	terminator := h.readLine(t)
	assert.Equal(t, ".", terminator)
}

func TestPlaylistLockSetGet(t *testing.T) {
	h := newHarness(t)
	h.login(t)

	h.send(t, "playlist-lock "+wire.Quote("shared"))
	resp := h.readLine(t)
	assert.Equal(t, "200 locked", resp)

	h.send(t, "playlist-set "+wire.Quote("shared"))
	h.send(t, "/music/song.ogg")
	h.send(t, ".")
	resp = h.readLine(t)
	assert.Equal(t, "200 set", resp)

	h.send(t, "playlist-get "+wire.Quote("shared"))
	status := h.readLine(t)
	require.Equal(t, "231 playlist follows", status)
	track := h.readLine(t)
	assert.Equal(t, "/music/song.ogg", track)
	terminator := h.readLine(t)
	assert.Equal(t, ".", terminator)
}
