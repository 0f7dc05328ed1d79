package relation

import (
	"fmt"
	"strings"
)

// SetKind names one of the four relationship sets of an account
type SetKind uint8

// Relationship sets
const (
	Followers SetKind = iota
	Following
	PendingOutgoing
	PendingIncoming
)

var setKindNames = [...]string{"followers", "following", "pending_outgoing", "pending_incoming"}

func (k SetKind) String() string {
	if int(k) < len(setKindNames) {
		return setKindNames[k]
	}
	return fmt.Sprintf("set(%d)", k)
}

// Op is a set operation, signed so it doubles as the counter delta
type Op int8

// Set operations
const (
	OpRemove Op = -1
	OpAdd    Op = 1
)

// Change is a single membership change of the mutation's peer
type Change struct {
	Set SetKind
	Op  Op
}

// Mutation is the change one account undergoes in a pair transition: the
// peer is added to or removed from some of its sets
type Mutation struct {
	Peer    string
	Changes []Change
}

// Delta returns the counter delta implied by the mutation
func (m Mutation) Delta() Counters {
	var d Counters
	for _, c := range m.Changes {
		n := int64(c.Op)
		switch c.Set {
		case Followers:
			d.Followers += n
		case Following:
			d.Following += n
		case PendingOutgoing:
			d.PendingOutgoing += n
		case PendingIncoming:
			d.PendingIncoming += n
		}
	}
	return d
}

// IsZero reports whether the mutation changes nothing
func (m Mutation) IsZero() bool { return len(m.Changes) == 0 }

func (m Mutation) String() string {
	parts := make([]string, 0, len(m.Changes))
	for _, c := range m.Changes {
		sign := "+"
		if c.Op == OpRemove {
			sign = "-"
		}
		parts = append(parts, sign+c.Set.String())
	}
	return fmt.Sprintf("%s[%s]", m.Peer, strings.Join(parts, ","))
}

// Sets holds the four relationship sets of an account
type Sets struct {
	Followers       IDSet
	Following       IDSet
	PendingOutgoing IDSet
	PendingIncoming IDSet
}

// NewSets returns empty, initialized sets
func NewSets() Sets {
	return Sets{
		Followers:       NewIDSet(),
		Following:       NewIDSet(),
		PendingOutgoing: NewIDSet(),
		PendingIncoming: NewIDSet(),
	}
}

// Of returns the set matching kind
func (s Sets) Of(kind SetKind) IDSet {
	switch kind {
	case Followers:
		return s.Followers
	case Following:
		return s.Following
	case PendingOutgoing:
		return s.PendingOutgoing
	case PendingIncoming:
		return s.PendingIncoming
	}
	return nil
}

// Counters derives the counters from set cardinalities
func (s Sets) Counters() Counters {
	return Counters{
		Followers:       int64(s.Followers.Len()),
		Following:       int64(s.Following.Len()),
		PendingOutgoing: int64(s.PendingOutgoing.Len()),
		PendingIncoming: int64(s.PendingIncoming.Len()),
	}
}

// Clone returns a deep copy
func (s Sets) Clone() Sets {
	return Sets{
		Followers:       s.Followers.Clone(),
		Following:       s.Following.Clone(),
		PendingOutgoing: s.PendingOutgoing.Clone(),
		PendingIncoming: s.PendingIncoming.Clone(),
	}
}

// Apply applies m to the sets. Every add must target an absent member and
// every remove a present one; otherwise nothing changes and the error wraps
// ErrInvalidTransition
func (s Sets) Apply(m Mutation) error {
	next := s.Clone()
	for _, c := range m.Changes {
		set := next.Of(c.Set)
		if set == nil {
			return fmt.Errorf("%w: unknown set %d", ErrInvalidTransition, c.Set)
		}
		switch c.Op {
		case OpAdd:
			if !set.Add(m.Peer) {
				return fmt.Errorf("%w: %s already in %s", ErrInvalidTransition, m.Peer, c.Set)
			}
		case OpRemove:
			if !set.Remove(m.Peer) {
				return fmt.Errorf("%w: %s not in %s", ErrInvalidTransition, m.Peer, c.Set)
			}
		default:
			return fmt.Errorf("%w: unknown op %d", ErrInvalidTransition, c.Op)
		}
	}
	for _, kind := range []SetKind{Followers, Following, PendingOutgoing, PendingIncoming} {
		dst, src := s.Of(kind), next.Of(kind)
		for id := range dst {
			if !src.Has(id) {
				delete(dst, id)
			}
		}
		for id := range src {
			dst[id] = struct{}{}
		}
	}
	return nil
}
