// Package session models the portal's per-session summaries and the rules for
// turning a user-supplied identifier into the user hashes sessions are keyed
// by.
package session

import (
	"fmt"
	"hash/fnv"
	"strconv"
	"strings"

	"github.com/networknext/portal/pkg/errors"
)

// ID is a 64-bit session id or user hash. It is rendered as 16 lowercase hex
// digits in JSON, logs and pages.
type ID uint64

func (id ID) String() string {
	return fmt.Sprintf("%016x", uint64(id))
}

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) {
	return []byte(id.String()), nil
}

// UnmarshalText accepts the hex form produced by MarshalText.
func (id *ID) UnmarshalText(b []byte) error {
	v, err := strconv.ParseUint(strings.TrimPrefix(string(b), "0x"), 16, 64)
	if err != nil {
		return fmt.Errorf("session: invalid id %q: %w", string(b), err)
	}
	*id = ID(v)
	return nil
}

// HashUserID hashes a raw user id the way the SDK does before it reaches the
// backend: 64-bit FNV-1a over the bytes of the string.
func HashUserID(userID string) ID {
	h := fnv.New64a()
	_, _ = h.Write([]byte(userID))
	return ID(h.Sum64())
}

// UserHashCandidates returns the user hashes a lookup for input should cover.
// The FNV-1a hash of the trimmed input is always first. When the input is
// itself a 64-bit hex value (optionally 0x-prefixed) it may already be a user
// hash copied from another page, so that value is included too. An empty
// input yields nil.
func UserHashCandidates(input string) []ID {
	input = strings.TrimSpace(input)
	if input == "" {
		return nil
	}
	candidates := []ID{HashUserID(input)}
	hexPart := strings.TrimPrefix(strings.ToLower(input), "0x")
	if len(hexPart) > 0 && len(hexPart) <= 16 {
		if v, err := strconv.ParseUint(hexPart, 16, 64); err == nil && ID(v) != candidates[0] {
			candidates = append(candidates, ID(v))
		}
	}
	return candidates
}

// ParseSessionID parses a session id from a URL segment. Hex is tried first,
// then decimal, matching the session links the portal has always produced.
func ParseSessionID(s string) (ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, errors.New(errors.ErrCodeSessionIDInvalid, "session id must not be empty")
	}
	if v, err := strconv.ParseUint(strings.TrimPrefix(strings.ToLower(s), "0x"), 16, 64); err == nil {
		return ID(v), nil
	}
	if v, err := strconv.ParseUint(s, 10, 64); err == nil {
		return ID(v), nil
	}
	return 0, errors.New(errors.ErrCodeSessionIDInvalid, "session id must be a hex or decimal 64-bit value").
		WithDetail("session_id=" + s)
}
