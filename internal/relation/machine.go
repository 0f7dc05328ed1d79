package relation

import "fmt"

// Action is a relationship operation requested by the viewer V against
// the target T
type Action uint8

// Actions
const (
	ActionRequestFollow Action = iota + 1
	ActionCancelRequest
	ActionAccept
	ActionDecline
	ActionUnfollow
	ActionRemoveFollower
)

func (a Action) String() string {
	switch a {
	case ActionRequestFollow:
		return "request_follow"
	case ActionCancelRequest:
		return "cancel_request"
	case ActionAccept:
		return "accept"
	case ActionDecline:
		return "decline"
	case ActionUnfollow:
		return "unfollow"
	case ActionRemoveFollower:
		return "remove_follower"
	}
	return fmt.Sprintf("action(%d)", a)
}

// Transition is a planned legal move of the pair (Actor, Target)
type Transition struct {
	Action         Action
	Actor          string
	Target         string
	From           PairState
	To             PairState
	ActorMutation  Mutation
	TargetMutation Mutation
}

// Plan decides whether action is legal for the pair in state current (seen
// from actor) and returns the mutations both accounts undergo.
// targetPrivacy only matters for ActionRequestFollow
func Plan(action Action, actor, target string, targetPrivacy Privacy, current PairState) (Transition, error) {
	if actor == target {
		return Transition{}, fmt.Errorf("%w: %s on own account", ErrSelfReference, action)
	}

	// Every action moves exactly one directed edge
	outgoing := true
	var want, next Status
	switch action {
	case ActionRequestFollow:
		if current.Outgoing != StatusNone {
			return Transition{}, fmt.Errorf("%w: %s while %s", ErrAlreadyExists, action, current.Named())
		}
		want, next = StatusNone, StatusPending
		if targetPrivacy == PrivacyPublic {
			next = StatusFollowing
		}
	case ActionCancelRequest:
		want, next = StatusPending, StatusNone
	case ActionAccept:
		outgoing, want, next = false, StatusPending, StatusFollowing
	case ActionDecline:
		outgoing, want, next = false, StatusPending, StatusNone
	case ActionUnfollow:
		want, next = StatusFollowing, StatusNone
	case ActionRemoveFollower:
		outgoing, want, next = false, StatusFollowing, StatusNone
	default:
		return Transition{}, fmt.Errorf("%w: unknown action %d", ErrInvalidTransition, action)
	}

	cur := current.Incoming
	if outgoing {
		cur = current.Outgoing
	}
	if cur != want {
		return Transition{}, fmt.Errorf("%w: %s while %s", ErrInvalidTransition, action, current.Named())
	}

	t := Transition{Action: action, Actor: actor, Target: target, From: current, To: current}
	if outgoing {
		t.To.Outgoing = next
		t.ActorMutation, t.TargetMutation = edgeMutations(actor, target, cur, next)
	} else {
		t.To.Incoming = next
		t.TargetMutation, t.ActorMutation = edgeMutations(target, actor, cur, next)
	}
	return t, nil
}

// edgeMutations returns the mutations of the follower side and the
// followee side when the edge follower->followee moves from old to next
func edgeMutations(follower, followee string, old, next Status) (Mutation, Mutation) {
	src := Mutation{Peer: followee}
	dst := Mutation{Peer: follower}
	switch old {
	case StatusPending:
		src.Changes = append(src.Changes, Change{PendingOutgoing, OpRemove})
		dst.Changes = append(dst.Changes, Change{PendingIncoming, OpRemove})
	case StatusFollowing:
		src.Changes = append(src.Changes, Change{Following, OpRemove})
		dst.Changes = append(dst.Changes, Change{Followers, OpRemove})
	}
	switch next {
	case StatusPending:
		src.Changes = append(src.Changes, Change{PendingOutgoing, OpAdd})
		dst.Changes = append(dst.Changes, Change{PendingIncoming, OpAdd})
	case StatusFollowing:
		src.Changes = append(src.Changes, Change{Following, OpAdd})
		dst.Changes = append(dst.Changes, Change{Followers, OpAdd})
	}
	return src, dst
}
