package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dgnsrekt/disorder/internal/wire"
)

var (
	ErrCookieMalformed = errors.New("auth: malformed cookie")
	ErrCookieTampered  = errors.New("auth: cookie signature does not match")
	ErrCookieExpired   = errors.New("auth: cookie has expired")
	ErrCookieRevoked   = errors.New("auth: cookie has been revoked")
)

// cookieNonceSize is the width in bytes of the random component mixed into
// every issued cookie, so that two cookies for the same user and expiry
// never collide.
const cookieNonceSize = 16

// Cookie is the decoded, verified payload of a session cookie: the user it
// authenticates and the time after which it is no longer valid.
type Cookie struct {
	User    string
	Expires time.Time
}

// KeyStore signs and verifies cookies against a process-wide signing key
// with scheduled rotation: a cookie is accepted if its signature matches
// either the current or the immediately previous key, so a rotation never
// invalidates cookies issued moments before. It also tracks a revocation
// set of specific cookie strings, pruned lazily as entries' natural
// expiry passes.
type KeyStore struct {
	mu       sync.Mutex
	current  []byte
	previous []byte
	revoked  map[string]time.Time
}

// NewKeyStore creates a KeyStore with a freshly generated signing key.
func NewKeyStore() (*KeyStore, error) {
	key, err := randomKey()
	if err != nil {
		return nil, err
	}
	return &KeyStore{current: key, revoked: make(map[string]time.Time)}, nil
}

func randomKey() ([]byte, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("auth: generating signing key: %w", err)
	}
	return key, nil
}

// Rotate replaces the current signing key, demoting the old current key to
// previous. Cookies signed under the key that was previous before this
// call stop verifying.
func (ks *KeyStore) Rotate() error {
	key, err := randomKey()
	if err != nil {
		return err
	}
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.previous = ks.current
	ks.current = key
	return nil
}

// Issue mints a new signed cookie for user, valid until expires.
func (ks *KeyStore) Issue(user string, expires time.Time) (string, error) {
	nonce := make([]byte, cookieNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("auth: generating cookie nonce: %w", err)
	}
	payload := cookiePayload(user, expires, nonce)

	ks.mu.Lock()
	key := ks.current
	ks.mu.Unlock()

	sig := sign(key, payload)
	return payload + "." + wire.HexEncode(sig), nil
}

// Verify decodes and checks a cookie string, returning the user and
// expiry it was issued with. Expired, tampered, or revoked cookies are
// rejected.
func (ks *KeyStore) Verify(cookie string) (*Cookie, error) {
	idx := strings.LastIndex(cookie, ".")
	if idx < 0 {
		return nil, ErrCookieMalformed
	}
	payload, sigHex := cookie[:idx], cookie[idx+1:]
	sig, err := wire.HexDecode(sigHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCookieMalformed, err)
	}

	ks.mu.Lock()
	current, previous := ks.current, ks.previous
	_, isRevoked := ks.revoked[cookie]
	ks.mu.Unlock()

	if isRevoked {
		return nil, ErrCookieRevoked
	}

	if !hmac.Equal(sig, sign(current, payload)) &&
		(previous == nil || !hmac.Equal(sig, sign(previous, payload))) {
		return nil, ErrCookieTampered
	}

	user, expires, err := parseCookiePayload(payload)
	if err != nil {
		return nil, err
	}
	if time.Now().After(expires) {
		return nil, ErrCookieExpired
	}
	return &Cookie{User: user, Expires: expires}, nil
}

// Revoke adds cookie to the revocation set, kept until the cookie's own
// expiry passes. A revoked cookie fails Verify immediately even though its
// signature and expiry are otherwise still valid.
func (ks *KeyStore) Revoke(cookie string) {
	expires := time.Now().Add(24 * time.Hour)
	if _, e, err := parseCookiePayload(cookie[:max(0, strings.LastIndex(cookie, "."))]); err == nil {
		expires = e
	}
	ks.mu.Lock()
	defer ks.mu.Unlock()
	ks.revoked[cookie] = expires
	ks.pruneRevokedUnsafe()
}

// pruneRevokedUnsafe discards revocation entries whose natural expiry has
// passed. Caller must hold ks.mu.
func (ks *KeyStore) pruneRevokedUnsafe() {
	now := time.Now()
	for c, exp := range ks.revoked {
		if now.After(exp) {
			delete(ks.revoked, c)
		}
	}
}

func cookiePayload(user string, expires time.Time, nonce []byte) string {
	return fmt.Sprintf("%s:%d:%s", user, expires.Unix(), wire.HexEncode(nonce))
}

func parseCookiePayload(payload string) (string, time.Time, error) {
	parts := strings.SplitN(payload, ":", 3)
	if len(parts) != 3 {
		return "", time.Time{}, ErrCookieMalformed
	}
	unixSecs, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%w: bad expiry", ErrCookieMalformed)
	}
	return parts[0], time.Unix(unixSecs, 0), nil
}

func sign(key []byte, payload string) []byte {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(payload))
	return mac.Sum(nil)
}
