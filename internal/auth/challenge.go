package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/sha512"
	"errors"
	"fmt"
	"hash"

	"github.com/dgnsrekt/disorder/internal/wire"
)

// ErrBadResponse is returned when a challenge/response does not match.
var ErrBadResponse = errors.New("auth: response does not match challenge")

// ErrUnknownAlgorithm is returned for an algorithm name outside the
// supported set.
var ErrUnknownAlgorithm = errors.New("auth: unknown algorithm")

// challengeSize is the length in bytes of a freshly generated challenge
// nonce, before hex encoding for the wire.
const challengeSize = 16

// Algorithms supported for challenge/response hashing.
const (
	AlgoSHA1   = "sha1"
	AlgoSHA256 = "sha256"
	AlgoSHA384 = "sha384"
	AlgoSHA512 = "sha512"
)

func newHash(algo string) (func() hash.Hash, error) {
	switch algo {
	case AlgoSHA1:
		return sha1.New, nil
	case AlgoSHA256:
		return sha256.New, nil
	case AlgoSHA384:
		return sha512.New384, nil
	case AlgoSHA512:
		return sha512.New, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownAlgorithm, algo)
	}
}

// Challenge is a per-connection nonce issued in the greeting banner, bound
// to the algorithm the server will use to verify the client's response.
type Challenge struct {
	Algorithm string
	Nonce     []byte
}

// NewChallenge generates a fresh random challenge for the given algorithm.
func NewChallenge(algo string) (*Challenge, error) {
	if _, err := newHash(algo); err != nil {
		return nil, err
	}
	nonce := make([]byte, challengeSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("auth: generating challenge: %w", err)
	}
	return &Challenge{Algorithm: algo, Nonce: nonce}, nil
}

// Hex renders the challenge nonce for the greeting banner.
func (c *Challenge) Hex() string {
	return wire.HexEncode(c.Nonce)
}

// Response computes HASH(challenge || password) in hex, as the client is
// expected to.
func (c *Challenge) Response(password string) (string, error) {
	newH, err := newHash(c.Algorithm)
	if err != nil {
		return "", err
	}
	h := newH()
	h.Write(c.Nonce)
	h.Write([]byte(password))
	return wire.HexEncode(h.Sum(nil)), nil
}

// Verify checks a hex-encoded response against the expected value for the
// given password, in constant time.
func (c *Challenge) Verify(password, responseHex string) error {
	want, err := c.Response(password)
	if err != nil {
		return err
	}
	if !hmac.Equal([]byte(want), []byte(responseHex)) {
		return ErrBadResponse
	}
	return nil
}
