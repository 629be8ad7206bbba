package auth

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRightsRoundTrip(t *testing.T) {
	r, err := ParseRights("read,play,move any,scratch any")
	require.NoError(t, err)
	assert.True(t, r.Has(RightRead))
	assert.True(t, r.Has(RightPlay))
	assert.True(t, r.Has(RightMoveAny))
	assert.True(t, r.Has(RightScratchAny))
	assert.False(t, r.Has(RightAdmin))
}

func TestParseRightsUnknown(t *testing.T) {
	_, err := ParseRights("read,frobnicate")
	assert.Error(t, err)
}

func TestParseRightsEmpty(t *testing.T) {
	r, err := ParseRights("")
	require.NoError(t, err)
	assert.Equal(t, Rights(0), r)
}

func TestCanMoveVariants(t *testing.T) {
	any := RightMoveAny
	own := RightMoveOwn
	random := RightMoveRandom

	assert.True(t, any.CanMove(OwnerOther))
	assert.True(t, own.CanMove(OwnerSelf))
	assert.False(t, own.CanMove(OwnerOther))
	assert.True(t, random.CanMove(OwnerRandom))
	assert.False(t, random.CanMove(OwnerOther))
}

func TestChallengeResponseRoundTrip(t *testing.T) {
	ch, err := NewChallenge(AlgoSHA256)
	require.NoError(t, err)

	resp, err := ch.Response("hunter2")
	require.NoError(t, err)

	assert.NoError(t, ch.Verify("hunter2", resp))
	assert.ErrorIs(t, ch.Verify("wrongpass", resp), ErrBadResponse)
}

func TestChallengeUnknownAlgorithm(t *testing.T) {
	_, err := NewChallenge("md5")
	assert.ErrorIs(t, err, ErrUnknownAlgorithm)
}

func TestChallengeAllAlgorithms(t *testing.T) {
	for _, algo := range []string{AlgoSHA1, AlgoSHA256, AlgoSHA384, AlgoSHA512} {
		ch, err := NewChallenge(algo)
		require.NoError(t, err)
		resp, err := ch.Response("password")
		require.NoError(t, err)
		assert.NoError(t, ch.Verify("password", resp))
	}
}

func TestKeyStoreIssueVerify(t *testing.T) {
	ks, err := NewKeyStore()
	require.NoError(t, err)

	cookie, err := ks.Issue("alice", time.Now().Add(time.Hour))
	require.NoError(t, err)

	c, err := ks.Verify(cookie)
	require.NoError(t, err)
	assert.Equal(t, "alice", c.User)
}

func TestKeyStoreExpired(t *testing.T) {
	ks, err := NewKeyStore()
	require.NoError(t, err)

	cookie, err := ks.Issue("alice", time.Now().Add(-time.Minute))
	require.NoError(t, err)

	_, err = ks.Verify(cookie)
	assert.ErrorIs(t, err, ErrCookieExpired)
}

func TestKeyStoreTampered(t *testing.T) {
	ks, err := NewKeyStore()
	require.NoError(t, err)

	cookie, err := ks.Issue("alice", time.Now().Add(time.Hour))
	require.NoError(t, err)

	last := "0"
	if cookie[len(cookie)-1] == '0' {
		last = "1"
	}
	tampered := cookie[:len(cookie)-1] + last
	_, err = ks.Verify(tampered)
	assert.Error(t, err)
}

func TestKeyStoreRotationAcceptsPreviousKey(t *testing.T) {
	ks, err := NewKeyStore()
	require.NoError(t, err)

	cookie, err := ks.Issue("alice", time.Now().Add(time.Hour))
	require.NoError(t, err)

	require.NoError(t, ks.Rotate())

	c, err := ks.Verify(cookie)
	require.NoError(t, err)
	assert.Equal(t, "alice", c.User)

	require.NoError(t, ks.Rotate())
	_, err = ks.Verify(cookie)
	assert.Error(t, err)
}

func TestKeyStoreRevoke(t *testing.T) {
	ks, err := NewKeyStore()
	require.NoError(t, err)

	cookie, err := ks.Issue("alice", time.Now().Add(time.Hour))
	require.NoError(t, err)

	ks.Revoke(cookie)
	_, err = ks.Verify(cookie)
	assert.ErrorIs(t, err, ErrCookieRevoked)
}

func TestRateLimiterLocksOutAfterMaxFails(t *testing.T) {
	rl := NewRateLimiter(3, time.Minute)
	assert.True(t, rl.Allowed("1.2.3.4"))

	rl.RecordFailure("1.2.3.4")
	rl.RecordFailure("1.2.3.4")
	assert.True(t, rl.Allowed("1.2.3.4"))

	rl.RecordFailure("1.2.3.4")
	assert.False(t, rl.Allowed("1.2.3.4"))
}

func TestRateLimiterRecordSuccessClears(t *testing.T) {
	rl := NewRateLimiter(1, time.Minute)
	rl.RecordFailure("1.2.3.4")
	assert.False(t, rl.Allowed("1.2.3.4"))

	rl.RecordSuccess("1.2.3.4")
	assert.True(t, rl.Allowed("1.2.3.4"))
}

func TestStoreRegisterConfirm(t *testing.T) {
	store := NewStore(RightRead | RightPlay)

	nonce, err := store.Register("bob", "secret", "bob@example.com")
	require.NoError(t, err)

	u, err := store.Get("bob")
	require.NoError(t, err)
	assert.False(t, u.Confirmed())
	assert.Equal(t, DefaultGuestRights, u.Rights)

	require.NoError(t, store.Confirm("bob", nonce))
	assert.True(t, u.Confirmed())
	assert.Equal(t, RightRead|RightPlay, u.Rights)
}

func TestStoreConfirmBadNonce(t *testing.T) {
	store := NewStore(RightRead)
	_, err := store.Register("bob", "secret", "bob@example.com")
	require.NoError(t, err)

	err = store.Confirm("bob", "wrong-nonce")
	assert.ErrorIs(t, err, ErrBadNonce)
}

func TestStoreDuplicateRegister(t *testing.T) {
	store := NewStore(RightRead)
	_, err := store.Register("bob", "secret", "bob@example.com")
	require.NoError(t, err)

	_, err = store.Register("bob", "other", "bob2@example.com")
	assert.ErrorIs(t, err, ErrUserExists)
}

func TestStoreAddDelEditUser(t *testing.T) {
	store := NewStore(RightRead)
	require.NoError(t, store.AddUser("carol", "pw", "carol@example.com", RightAdmin))

	u, err := store.Get("carol")
	require.NoError(t, err)
	assert.True(t, u.CheckPassword("pw"))
	assert.False(t, u.CheckPassword("wrong"))

	require.NoError(t, store.EditUser("carol", "pw2", "", 0, false))
	u, _ = store.Get("carol")
	assert.True(t, u.CheckPassword("pw2"))

	require.NoError(t, store.DelUser("carol"))
	_, err = store.Get("carol")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestSessionLoginSuccess(t *testing.T) {
	store := NewStore(RightRead | RightPlay)
	require.NoError(t, store.AddUser("dave", "pw", "", RightRead|RightPlay))

	engine, err := NewEngine(store, nil)
	require.NoError(t, err)

	sess, err := engine.NewSession("10.0.0.1:5555")
	require.NoError(t, err)

	u, err := store.Get("dave")
	require.NoError(t, err)
	resp, err := sess.Challenge().Response("pw")
	require.NoError(t, err)
	_ = u

	require.NoError(t, sess.Login("dave", resp))
	assert.True(t, sess.Authenticated)
	assert.Equal(t, RightRead|RightPlay, sess.Rights)
}

func TestSessionLoginBadResponseLocksOutAfterThree(t *testing.T) {
	store := NewStore(RightRead)
	require.NoError(t, store.AddUser("dave", "pw", "", RightRead))

	engine, err := NewEngine(store, nil)
	require.NoError(t, err)
	sess, err := engine.NewSession("10.0.0.1:5555")
	require.NoError(t, err)

	for i := 0; i < MaxConsecutiveFailures; i++ {
		err := sess.Login("dave", "deadbeef")
		assert.Error(t, err)
	}

	err = sess.Login("dave", "deadbeef")
	assert.True(t, errors.Is(err, ErrTooManyFailures))
}

func TestSessionCookieRoundTrip(t *testing.T) {
	store := NewStore(RightRead)
	require.NoError(t, store.AddUser("eve", "pw", "", RightRead|RightAdmin))

	engine, err := NewEngine(store, nil)
	require.NoError(t, err)

	sess1, err := engine.NewSession("10.0.0.2:1")
	require.NoError(t, err)
	resp, err := sess1.Challenge().Response("pw")
	require.NoError(t, err)
	require.NoError(t, sess1.Login("eve", resp))

	cookie, err := sess1.MakeCookie()
	require.NoError(t, err)

	sess2, err := engine.NewSession("10.0.0.3:2")
	require.NoError(t, err)
	require.NoError(t, sess2.LoginCookie(cookie))
	assert.Equal(t, "eve", sess2.User)

	require.NoError(t, sess2.Revoke())

	sess3, err := engine.NewSession("10.0.0.4:3")
	require.NoError(t, err)
	err = sess3.LoginCookie(cookie)
	assert.ErrorIs(t, err, ErrCookieRevoked)
}
