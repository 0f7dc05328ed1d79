package relation

import (
	"fmt"
	"strings"
	"time"
)

// Privacy controls whether follow requests resolve immediately
type Privacy string

// Privacy values
const (
	PrivacyPublic  Privacy = "public"
	PrivacyPrivate Privacy = "private"
)

// ParsePrivacy parses a privacy flag, case-insensitively
func ParsePrivacy(s string) (Privacy, error) {
	switch Privacy(strings.ToLower(strings.TrimSpace(s))) {
	case PrivacyPublic:
		return PrivacyPublic, nil
	case PrivacyPrivate:
		return PrivacyPrivate, nil
	}
	return "", fmt.Errorf("%w: unknown privacy %q", ErrInvalidArgument, s)
}

// Valid reports whether p is a known value
func (p Privacy) Valid() bool {
	return p == PrivacyPublic || p == PrivacyPrivate
}

// Opposite returns the other privacy value
func (p Privacy) Opposite() Privacy {
	if p == PrivacyPrivate {
		return PrivacyPublic
	}
	return PrivacyPrivate
}

// Counters holds the denormalized cardinalities of an account's sets
type Counters struct {
	Followers       int64 `json:"follower_count"`
	Following       int64 `json:"following_count"`
	PendingOutgoing int64 `json:"pending_outgoing_count"`
	PendingIncoming int64 `json:"pending_incoming_count"`
}

// Add returns c+d field by field
func (c Counters) Add(d Counters) Counters {
	return Counters{
		Followers:       c.Followers + d.Followers,
		Following:       c.Following + d.Following,
		PendingOutgoing: c.PendingOutgoing + d.PendingOutgoing,
		PendingIncoming: c.PendingIncoming + d.PendingIncoming,
	}
}

// Get returns the counter matching kind
func (c Counters) Get(kind SetKind) int64 {
	switch kind {
	case Followers:
		return c.Followers
	case Following:
		return c.Following
	case PendingOutgoing:
		return c.PendingOutgoing
	case PendingIncoming:
		return c.PendingIncoming
	}
	return 0
}

// IsZero reports whether every counter is zero
func (c Counters) IsZero() bool {
	return c == Counters{}
}

// Account is the record of one user identity as seen by the relationship
// subsystem. Membership lists are not carried; they are paged from the
// store on demand
type Account struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	DisplayName string    `json:"display_name,omitempty"`
	Privacy     Privacy   `json:"privacy"`
	Counts      Counters  `json:"counts"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Record is an account together with its full relationship sets. It is the
// in-memory model the invariant checker runs against
type Record struct {
	Account Account
	Sets    Sets
}

// Clone returns a deep copy of r
func (r *Record) Clone() *Record {
	return &Record{Account: r.Account, Sets: r.Sets.Clone()}
}
