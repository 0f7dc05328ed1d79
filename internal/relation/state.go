package relation

import "fmt"

// Status is the state of one directed edge between two accounts
type Status uint8

// Edge states
const (
	StatusNone Status = iota
	StatusPending
	StatusFollowing
)

func (s Status) String() string {
	switch s {
	case StatusNone:
		return "none"
	case StatusPending:
		return "pending"
	case StatusFollowing:
		return "following"
	}
	return fmt.Sprintf("status(%d)", s)
}

// MarshalText encodes the status by name
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// PairState is the relationship between a viewer and a target seen from the
// viewer: Outgoing is the viewer->target edge, Incoming the target->viewer
// edge
type PairState struct {
	Outgoing Status `json:"outgoing"`
	Incoming Status `json:"incoming"`
}

// Reverse returns the same relationship seen from the other side
func (p PairState) Reverse() PairState {
	return PairState{Outgoing: p.Incoming, Incoming: p.Outgoing}
}

// State is the named relationship state of an ordered pair (V, T)
type State uint8

// Named states
const (
	Unrelated State = iota
	PendingFromViewer
	PendingFromTarget
	FollowingTarget
)

func (s State) String() string {
	switch s {
	case Unrelated:
		return "unrelated"
	case PendingFromViewer:
		return "pending_from_viewer"
	case PendingFromTarget:
		return "pending_from_target"
	case FollowingTarget:
		return "following"
	}
	return fmt.Sprintf("state(%d)", s)
}

// Named classifies the pair, viewer-side edges first
func (p PairState) Named() State {
	switch {
	case p.Outgoing == StatusFollowing:
		return FollowingTarget
	case p.Outgoing == StatusPending:
		return PendingFromViewer
	case p.Incoming == StatusPending:
		return PendingFromTarget
	}
	return Unrelated
}

// StateOf reads the pair state of (owner, peer) from the owner's sets
func StateOf(owner Sets, peer string) PairState {
	var p PairState
	switch {
	case owner.Following.Has(peer):
		p.Outgoing = StatusFollowing
	case owner.PendingOutgoing.Has(peer):
		p.Outgoing = StatusPending
	}
	switch {
	case owner.Followers.Has(peer):
		p.Incoming = StatusFollowing
	case owner.PendingIncoming.Has(peer):
		p.Incoming = StatusPending
	}
	return p
}

// Apply returns the pair state after the owner of this state undergoes m.
// It fails when m does not match the current edges
func (p PairState) Apply(m Mutation) (PairState, error) {
	next := p
	for _, c := range m.Changes {
		edge, want := &next.Outgoing, StatusFollowing
		switch c.Set {
		case Following:
		case PendingOutgoing:
			want = StatusPending
		case Followers:
			edge = &next.Incoming
		case PendingIncoming:
			edge, want = &next.Incoming, StatusPending
		default:
			return p, fmt.Errorf("%w: unknown set %d", ErrInvalidTransition, c.Set)
		}
		switch c.Op {
		case OpAdd:
			if *edge != StatusNone {
				return p, fmt.Errorf("%w: cannot add %s over %s edge", ErrInvalidTransition, c.Set, *edge)
			}
			*edge = want
		case OpRemove:
			if *edge != want {
				return p, fmt.Errorf("%w: cannot remove %s from %s edge", ErrInvalidTransition, c.Set, *edge)
			}
			*edge = StatusNone
		default:
			return p, fmt.Errorf("%w: unknown op %d", ErrInvalidTransition, c.Op)
		}
	}
	return next, nil
}

// PairView is what a pair transaction observes under its atomic scope: both
// accounts and their relationship from A's side
type PairView struct {
	A     Account
	B     Account
	State PairState
}

// PairMutator decides the mutations of A and B from a locked view. A store
// applies both mutations or neither; a returned error aborts the
// transaction unchanged
type PairMutator func(view PairView) (Mutation, Mutation, error)
