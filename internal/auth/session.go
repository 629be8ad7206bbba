package auth

import (
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrTooManyFailures is returned once a connection has exhausted its
// consecutive login attempts (spec §4.B: "Three consecutive failures
// close the connection").
var ErrTooManyFailures = errors.New("auth: too many consecutive login failures")

// MaxConsecutiveFailures is the number of failed `user`/`cookie` attempts a
// single connection may make before it must be closed.
const MaxConsecutiveFailures = 3

// Engine ties together challenge/response login, cookie issuance and
// verification, rate limiting, and the user store, presenting the
// operations the connection dispatcher needs.
type Engine struct {
	Users          *Store
	Keys           *KeyStore
	Limiter        *RateLimiter
	CookieLifetime time.Duration
	DefaultAlgo    string
	log            *slog.Logger
}

// NewEngine constructs an Engine with sensible defaults for the cookie
// lifetime and rate limiting, matching the teacher's rate-limiter
// defaults of a handful of attempts per short window.
func NewEngine(users *Store, logger *slog.Logger) (*Engine, error) {
	keys, err := NewKeyStore()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		Users:          users,
		Keys:           keys,
		Limiter:        NewRateLimiter(MaxConsecutiveFailures, 5*time.Minute),
		CookieLifetime: 7 * 24 * time.Hour,
		DefaultAlgo:    AlgoSHA256,
		log:            logger,
	}, nil
}

// Session tracks the authentication state of a single connection.
type Session struct {
	engine    *Engine
	challenge *Challenge
	remote    string
	failures  int

	Authenticated bool
	User          string
	Rights        Rights
	usedCookie    string // the cookie string that authenticated this session, if any
}

// NewSession issues a fresh challenge for a new connection identified by
// remote (used as the rate-limiting key).
func (e *Engine) NewSession(remote string) (*Session, error) {
	ch, err := NewChallenge(e.DefaultAlgo)
	if err != nil {
		return nil, err
	}
	return &Session{engine: e, challenge: ch, remote: remote}, nil
}

// Challenge returns the session's greeting challenge.
func (s *Session) Challenge() *Challenge {
	return s.challenge
}

// Login authenticates via username and challenge/response hash.
func (s *Session) Login(username, responseHex string) error {
	if s.failures >= MaxConsecutiveFailures {
		return ErrTooManyFailures
	}
	if !s.engine.Limiter.Allowed(s.remote) {
		return fmt.Errorf("auth: %s: %w", s.remote, ErrRateLimited)
	}

	u, err := s.engine.Users.Get(username)
	if err != nil {
		s.recordFailure()
		return ErrBadResponse
	}
	if !u.Confirmed() {
		s.recordFailure()
		return ErrUserUnconfirmed
	}

	if err := u.verifyResponse(s.challenge, responseHex); err != nil {
		s.recordFailure()
		return err
	}

	s.engine.Limiter.RecordSuccess(s.remote)
	s.Authenticated = true
	s.User = username
	s.Rights = u.Rights
	s.failures = 0
	return nil
}

// LoginCookie authenticates via a previously issued session cookie.
func (s *Session) LoginCookie(cookie string) error {
	if s.failures >= MaxConsecutiveFailures {
		return ErrTooManyFailures
	}
	c, err := s.engine.Keys.Verify(cookie)
	if err != nil {
		s.recordFailure()
		return err
	}
	u, err := s.engine.Users.Get(c.User)
	if err != nil {
		s.recordFailure()
		return err
	}
	s.Authenticated = true
	s.User = c.User
	s.Rights = u.Rights
	s.usedCookie = cookie
	s.failures = 0
	return nil
}

// MakeCookie issues a new cookie bound to the authenticated user.
func (s *Session) MakeCookie() (string, error) {
	if !s.Authenticated {
		return "", ErrAuthRequired
	}
	return s.engine.Keys.Issue(s.User, time.Now().Add(s.engine.CookieLifetime))
}

// Revoke invalidates the cookie that authenticated this session, if any.
func (s *Session) Revoke() error {
	if s.usedCookie == "" {
		return fmt.Errorf("auth: no cookie was used to authenticate this session")
	}
	s.engine.Keys.Revoke(s.usedCookie)
	return nil
}

// Failures returns the session's current consecutive login-failure count,
// so the dispatch layer can close the connection once it reaches
// MaxConsecutiveFailures (spec §4.B: "three consecutive failures close
// the connection") without waiting for a further attempt to hit
// ErrTooManyFailures itself.
func (s *Session) Failures() int {
	return s.failures
}

func (s *Session) recordFailure() {
	s.failures++
	s.engine.Limiter.RecordFailure(s.remote)
}

// ErrAuthRequired is returned when a privileged operation is attempted on
// an unauthenticated session.
var ErrAuthRequired = errors.New("auth: not authenticated")

// ErrRateLimited is returned when a connection's remote address has
// exceeded the login failure rate.
var ErrRateLimited = errors.New("auth: rate limited, retry later")
