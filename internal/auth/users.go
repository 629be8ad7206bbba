package auth

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
)

var (
	ErrUserExists       = errors.New("auth: user already exists")
	ErrUserNotFound     = errors.New("auth: no such user")
	ErrUserUnconfirmed  = errors.New("auth: user is not confirmed")
	ErrAlreadyConfirmed = errors.New("auth: user is already confirmed")
	ErrBadNonce         = errors.New("auth: confirmation nonce does not match")
)

// DefaultGuestRights are granted to a freshly registered, unconfirmed user
// (spec: register creates a user with default rights read,register).
const DefaultGuestRights = RightRead | RightRegister

// User is an account record: credentials, rights, and registration state.
//
// Challenge/response authentication (spec §4.B: RESPONSE is
// HASH(challenge||password)) requires the server to recompute that digest
// for an arbitrary freshly issued challenge, which rules out a one-way
// password hash such as bcrypt — the server must hold the password itself.
// This mirrors the original daemon, which keeps user passwords in its own
// database rather than a irreversible hash for exactly this reason; here
// the responsibility for encrypting that database at rest belongs to
// whatever Store persistence wrapper the deployment configures, not to
// this in-memory record.
type User struct {
	Name             string
	Email            string
	password         string
	Rights           Rights
	ConfirmationCode string // non-empty while the account is unconfirmed
}

// Confirmed reports whether the account has completed email confirmation.
func (u *User) Confirmed() bool {
	return u.ConfirmationCode == ""
}

// CheckPassword verifies password against the stored secret in constant
// time.
func (u *User) CheckPassword(password string) bool {
	return subtle.ConstantTimeCompare([]byte(u.password), []byte(password)) == 1
}

// verifyResponse checks a hex-encoded challenge response against this
// user's stored password.
func (u *User) verifyResponse(ch *Challenge, responseHex string) error {
	return ch.Verify(u.password, responseHex)
}

// Store holds user accounts in memory, guarded by a mutex; Save and
// LoadStore (persist.go) write and read it as an on-disk snapshot.
type Store struct {
	mu            sync.RWMutex
	users         map[string]*User
	defaultRights Rights
}

// NewStore creates an empty user store. defaultRights are granted on
// confirm (spec §4.B: "confirm NONCE consumes the nonce and promotes to
// full configured default rights").
func NewStore(defaultRights Rights) *Store {
	return &Store{
		users:         make(map[string]*User),
		defaultRights: defaultRights,
	}
}

// Get returns the named user, or ErrUserNotFound.
func (s *Store) Get(name string) (*User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[name]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// AddUser creates a fully confirmed account directly, bypassing the
// register/confirm flow. Requires admin rights at the caller's layer;
// Store itself does not check rights.
func (s *Store) AddUser(name, password, email string, rights Rights) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[name]; exists {
		return ErrUserExists
	}
	s.users[name] = &User{
		Name:     name,
		Email:    email,
		password: password,
		Rights:   rights,
	}
	return nil
}

// Register creates an unconfirmed account with DefaultGuestRights and a
// random confirmation nonce, returning the nonce for the mailer
// collaborator to deliver.
func (s *Store) Register(name, password, email string) (string, error) {
	nonce, err := randomNonce()
	if err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[name]; exists {
		return "", ErrUserExists
	}
	s.users[name] = &User{
		Name:             name,
		Email:            email,
		password:         password,
		Rights:           DefaultGuestRights,
		ConfirmationCode: nonce,
	}
	return nonce, nil
}

// Confirm consumes a registration nonce, promoting the account to the
// store's configured default rights.
func (s *Store) Confirm(name, nonce string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[name]
	if !ok {
		return ErrUserNotFound
	}
	if u.Confirmed() {
		return ErrAlreadyConfirmed
	}
	if u.ConfirmationCode != nonce {
		return ErrBadNonce
	}
	u.ConfirmationCode = ""
	u.Rights = s.defaultRights
	return nil
}

// DelUser removes an account.
func (s *Store) DelUser(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[name]; !ok {
		return ErrUserNotFound
	}
	delete(s.users, name)
	return nil
}

// EditUser updates the email, password, and/or rights of an existing
// account. A zero value for password or email leaves that field
// unchanged; rights are always overwritten with the passed value when
// changeRights is true.
func (s *Store) EditUser(name string, password, email string, rights Rights, changeRights bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[name]
	if !ok {
		return ErrUserNotFound
	}
	if password != "" {
		u.password = password
	}
	if email != "" {
		u.Email = email
	}
	if changeRights {
		u.Rights = rights
	}
	return nil
}

func randomNonce() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("auth: generating nonce: %w", err)
	}
	return hex.EncodeToString(b), nil
}
