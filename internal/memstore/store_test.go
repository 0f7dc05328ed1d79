package memstore

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/fitsocial/followgraph/internal/relation"
)

func seed(t *testing.T, s *Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		if _, err := s.CreateAccount(context.Background(), relation.Account{ID: id, Username: "user-" + id, Privacy: relation.PrivacyPublic}); err != nil {
			t.Fatalf("CreateAccount(%s): %v", id, err)
		}
	}
}

func follow(view relation.PairView) (relation.Mutation, relation.Mutation, error) {
	tr, err := relation.Plan(relation.ActionRequestFollow, view.A.ID, view.B.ID, view.B.Privacy, view.State)
	if err != nil {
		return relation.Mutation{}, relation.Mutation{}, err
	}
	return tr.ActorMutation, tr.TargetMutation, nil
}

func TestStore_CreateAndLoad(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "a")

	if _, err := s.CreateAccount(ctx, relation.Account{ID: "a", Username: "other"}); !errors.Is(err, relation.ErrAlreadyExists) {
		t.Errorf("duplicate id error = %v", err)
	}
	if _, err := s.CreateAccount(ctx, relation.Account{ID: "b", Username: "user-a"}); !errors.Is(err, relation.ErrAlreadyExists) {
		t.Errorf("duplicate username error = %v", err)
	}
	if _, err := s.LoadAccount(ctx, "missing"); !errors.Is(err, relation.ErrNotFound) {
		t.Errorf("LoadAccount(missing) error = %v", err)
	}
	acct, err := s.LoadAccount(ctx, "a")
	if err != nil || acct.Username != "user-a" || !acct.Counts.IsZero() {
		t.Errorf("LoadAccount(a) = %+v, %v", acct, err)
	}
}

func TestStore_UpdateProfile(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "a", "b")

	acct, err := s.UpdateProfile(ctx, "a", "", "Alice")
	if err != nil || acct.Username != "user-a" || acct.DisplayName != "Alice" {
		t.Errorf("UpdateProfile(display name) = %+v, %v", acct, err)
	}
	acct, err = s.UpdateProfile(ctx, "a", "alice", "")
	if err != nil || acct.Username != "alice" || acct.DisplayName != "Alice" {
		t.Errorf("UpdateProfile(username) = %+v, %v", acct, err)
	}
	if _, err := s.UpdateProfile(ctx, "a", "user-b", ""); !errors.Is(err, relation.ErrAlreadyExists) {
		t.Errorf("taken username error = %v", err)
	}
	if _, err := s.UpdateProfile(ctx, "missing", "someone", ""); !errors.Is(err, relation.ErrNotFound) {
		t.Errorf("UpdateProfile(missing) error = %v", err)
	}
	if _, err := s.CreateAccount(ctx, relation.Account{ID: "c", Username: "user-a"}); err != nil {
		t.Errorf("released username should be free: %v", err)
	}
}

func TestStore_ApplyPairTransaction(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "a", "b")

	a, b, err := s.ApplyPairTransaction(ctx, "a", "b", follow)
	if err != nil {
		t.Fatalf("ApplyPairTransaction() error = %v", err)
	}
	if a.Counts.Following != 1 || b.Counts.Followers != 1 {
		t.Errorf("counts = %+v / %+v", a.Counts, b.Counts)
	}
	st, _ := s.QueryRelationshipState(ctx, "b", "a")
	if st != (relation.PairState{Incoming: relation.StatusFollowing}) {
		t.Errorf("QueryRelationshipState(b, a) = %+v", st)
	}

	if _, _, err := s.ApplyPairTransaction(ctx, "a", "b", follow); !errors.Is(err, relation.ErrAlreadyExists) {
		t.Errorf("second follow error = %v", err)
	}
	if _, _, err := s.ApplyPairTransaction(ctx, "a", "nobody", follow); !errors.Is(err, relation.ErrNotFound) {
		t.Errorf("follow missing error = %v", err)
	}
	if v := relation.CheckInvariants(s.Snapshot()); len(v) > 0 {
		t.Errorf("invariants: %v", v)
	}
}

func TestStore_ApplyPairTransactionAllOrNothing(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "a", "b")

	// The second mutation removes something absent, so the first must not
	// land either
	bad := func(relation.PairView) (relation.Mutation, relation.Mutation, error) {
		return relation.Mutation{Peer: "b", Changes: []relation.Change{{Set: relation.Following, Op: relation.OpAdd}}},
			relation.Mutation{Peer: "a", Changes: []relation.Change{{Set: relation.Followers, Op: relation.OpRemove}}},
			nil
	}
	if _, _, err := s.ApplyPairTransaction(ctx, "a", "b", bad); !errors.Is(err, relation.ErrInvalidTransition) {
		t.Fatalf("error = %v, want ErrInvalidTransition", err)
	}
	a, _ := s.LoadAccount(ctx, "a")
	if !a.Counts.IsZero() {
		t.Errorf("a changed after failed transaction: %+v", a.Counts)
	}
	if st, _ := s.QueryRelationshipState(ctx, "a", "b"); st != (relation.PairState{}) {
		t.Errorf("edge written after failed transaction: %+v", st)
	}
}

func TestStore_ListMembers(t *testing.T) {
	s := New()
	ctx := context.Background()
	seed(t, s, "t", "a", "b", "c")
	for _, id := range []string{"c", "a", "b"} {
		if _, _, err := s.ApplyPairTransaction(ctx, id, "t", follow); err != nil {
			t.Fatal(err)
		}
	}

	tests := []struct {
		name          string
		offset, limit int
		want          []string
	}{
		{"all", 0, 0, []string{"a", "b", "c"}},
		{"first page", 0, 2, []string{"a", "b"}},
		{"second page", 2, 2, []string{"c"}},
		{"past the end", 5, 2, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := s.ListMembers(ctx, "t", relation.Followers, tt.offset, tt.limit)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ListMembers() = %v, want %v", got, tt.want)
			}
		})
	}
}
