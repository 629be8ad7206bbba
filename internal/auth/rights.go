// Package auth implements the authentication engine: rights bitmasks,
// challenge/response login, signed session cookies, and user account
// lifecycle (register/confirm/adduser/deluser/edituser).
package auth

import (
	"fmt"
	"strings"
)

// Rights is a bitmask over the privileged operations a user may perform.
// "own/random/any" variants of move/scratch/remove are separate bits:
// holding the "any" bit implies permission regardless of submitter, "own"
// only for entries submitted by the caller, "random" only for entries with
// no submitter (random picks).
type Rights uint32

const (
	RightRead Rights = 1 << iota
	RightPlay
	RightMoveOwn
	RightMoveRandom
	RightMoveAny
	RightScratchOwn
	RightScratchRandom
	RightScratchAny
	RightRemoveOwn
	RightRemoveRandom
	RightRemoveAny
	RightPause
	RightVolume
	RightPrefs
	RightGlobalPrefs
	RightAdmin
	RightRegister
	RightUserInfo
)

var rightNames = []struct {
	name  string
	right Rights
}{
	{"read", RightRead},
	{"play", RightPlay},
	{"move own", RightMoveOwn},
	{"move random", RightMoveRandom},
	{"move any", RightMoveAny},
	{"scratch own", RightScratchOwn},
	{"scratch random", RightScratchRandom},
	{"scratch any", RightScratchAny},
	{"remove own", RightRemoveOwn},
	{"remove random", RightRemoveRandom},
	{"remove any", RightRemoveAny},
	{"pause", RightPause},
	{"volume", RightVolume},
	{"prefs", RightPrefs},
	{"global prefs", RightGlobalPrefs},
	{"admin", RightAdmin},
	{"register", RightRegister},
	{"user info", RightUserInfo},
}

// ParseRights parses a comma-separated rights string, e.g.
// "read,play,move any,scratch any".
func ParseRights(s string) (Rights, error) {
	var r Rights
	if strings.TrimSpace(s) == "" {
		return 0, nil
	}
	for _, tok := range strings.Split(s, ",") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			continue
		}
		found := false
		for _, rn := range rightNames {
			if rn.name == tok {
				r |= rn.right
				found = true
				break
			}
		}
		if !found {
			return 0, fmt.Errorf("auth: unknown right %q", tok)
		}
	}
	return r, nil
}

// String renders a rights mask back to its comma-separated form, in the
// canonical bit order.
func (r Rights) String() string {
	var parts []string
	for _, rn := range rightNames {
		if r&rn.right != 0 {
			parts = append(parts, rn.name)
		}
	}
	return strings.Join(parts, ",")
}

// Has reports whether r contains every bit set in want.
func (r Rights) Has(want Rights) bool {
	return r&want == want
}

// HasAny reports whether r contains at least one bit set in want.
func (r Rights) HasAny(want Rights) bool {
	return r&want != 0
}

// Owner distinguishes the relationship between the authenticated user and a
// queue entry's submitter, used to resolve own/random/any rights checks at
// dispatch time.
type Owner int

const (
	// OwnerSelf: the entry's submitter is the acting user.
	OwnerSelf Owner = iota
	// OwnerRandom: the entry has no submitter (a random pick).
	OwnerRandom
	// OwnerOther: the entry's submitter is some other user.
	OwnerOther
)

// CanMove reports whether rights permit moving an entry with the given
// owner relationship.
func (r Rights) CanMove(o Owner) bool {
	return r.checkVariant(o, RightMoveOwn, RightMoveRandom, RightMoveAny)
}

// CanScratch reports whether rights permit scratching an entry with the
// given owner relationship.
func (r Rights) CanScratch(o Owner) bool {
	return r.checkVariant(o, RightScratchOwn, RightScratchRandom, RightScratchAny)
}

// CanRemove reports whether rights permit removing an entry with the given
// owner relationship.
func (r Rights) CanRemove(o Owner) bool {
	return r.checkVariant(o, RightRemoveOwn, RightRemoveRandom, RightRemoveAny)
}

func (r Rights) checkVariant(o Owner, own, random, any Rights) bool {
	if r&any != 0 {
		return true
	}
	switch o {
	case OwnerSelf:
		return r&own != 0
	case OwnerRandom:
		return r&random != 0
	default:
		return false
	}
}
