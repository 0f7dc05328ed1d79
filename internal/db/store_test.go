package db

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/fitsocial/followgraph/internal/models"
	"github.com/fitsocial/followgraph/internal/relation"
	"github.com/fitsocial/followgraph/pkg/config"
)

func TestPairState(t *testing.T) {
	tests := []struct {
		name  string
		edges []models.FollowEdge
		want  relation.PairState
	}{
		{"no edges", nil, relation.PairState{}},
		{
			"outgoing pending",
			[]models.FollowEdge{{FollowerID: "a", FolloweeID: "b", Status: models.FollowStatusPending}},
			relation.PairState{Outgoing: relation.StatusPending},
		},
		{
			"mutual",
			[]models.FollowEdge{
				{FollowerID: "a", FolloweeID: "b", Status: models.FollowStatusFollowing},
				{FollowerID: "b", FolloweeID: "a", Status: models.FollowStatusFollowing},
			},
			relation.PairState{Outgoing: relation.StatusFollowing, Incoming: relation.StatusFollowing},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := pairState("a", tt.edges); got != tt.want {
				t.Errorf("pairState() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestStatusCodeRoundTrip(t *testing.T) {
	for _, s := range []relation.Status{relation.StatusNone, relation.StatusPending, relation.StatusFollowing} {
		if got := statusOf(statusCode(s)); got != s {
			t.Errorf("statusOf(statusCode(%v)) = %v", s, got)
		}
	}
}

func TestStoreError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"business passes", relation.ErrAlreadyExists, relation.ErrAlreadyExists},
		{"canceled passes", context.Canceled, context.Canceled},
		{"driver failure is transient", errors.New("connection reset"), relation.ErrStore},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := storeError(tt.err); !errors.Is(got, tt.want) {
				t.Errorf("storeError(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
	if storeError(nil) != nil {
		t.Error("storeError(nil) != nil")
	}
}

// openTestStore connects to FOLLOWGRAPH_TEST_DATABASE_URL or skips
func openTestStore(t *testing.T) *AccountStore {
	t.Helper()
	url := os.Getenv("FOLLOWGRAPH_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("FOLLOWGRAPH_TEST_DATABASE_URL not set")
	}
	database, err := New(&config.DatabaseConfig{URL: url, MaxIdleConns: 2, MaxOpenConns: 16}, "ERROR")
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { database.Close() })
	ctx := context.Background()
	if err := database.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := database.WithContext(ctx).Exec("TRUNCATE follow_edges, accounts").Error; err != nil {
		t.Fatalf("truncate: %v", err)
	}
	return NewAccountStore(database)
}

func plan(action relation.Action) relation.PairMutator {
	return func(v relation.PairView) (relation.Mutation, relation.Mutation, error) {
		tr, err := relation.Plan(action, v.A.ID, v.B.ID, v.B.Privacy, v.State)
		if err != nil {
			return relation.Mutation{}, relation.Mutation{}, err
		}
		return tr.ActorMutation, tr.TargetMutation, nil
	}
}

func TestAccountStore_PendingThenAccept(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, a := range []relation.Account{
		{ID: "alice", Username: "alice", Privacy: relation.PrivacyPrivate},
		{ID: "bob", Username: "bob", Privacy: relation.PrivacyPublic},
	} {
		if _, err := s.CreateAccount(ctx, a); err != nil {
			t.Fatalf("CreateAccount(%s): %v", a.ID, err)
		}
	}

	bob, alice, err := s.ApplyPairTransaction(ctx, "bob", "alice", plan(relation.ActionRequestFollow))
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if alice.Counts.PendingIncoming != 1 || bob.Counts.PendingOutgoing != 1 {
		t.Fatalf("after request alice=%+v bob=%+v", alice.Counts, bob.Counts)
	}

	alice, bob, err = s.ApplyPairTransaction(ctx, "alice", "bob", plan(relation.ActionAccept))
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if alice.Counts != (relation.Counters{Followers: 1}) || bob.Counts != (relation.Counters{Following: 1}) {
		t.Errorf("after accept alice=%+v bob=%+v", alice.Counts, bob.Counts)
	}

	followers, err := s.ListMembers(ctx, "alice", relation.Followers, 0, 10)
	if err != nil || len(followers) != 1 || followers[0] != "bob" {
		t.Errorf("ListMembers() = %v, %v", followers, err)
	}

	drifts, err := s.Recount(ctx, false)
	if err != nil || len(drifts) != 0 {
		t.Errorf("Recount() = %v, %v", drifts, err)
	}
}

func TestAccountStore_CancelRacesAccept(t *testing.T) {
	s := openTestStore(t)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for i := 0; i < 20; i++ {
		requester, owner := fmt.Sprintf("r%d", i), fmt.Sprintf("o%d", i)
		if _, err := s.CreateAccount(ctx, relation.Account{ID: requester, Username: requester, Privacy: relation.PrivacyPublic}); err != nil {
			t.Fatal(err)
		}
		if _, err := s.CreateAccount(ctx, relation.Account{ID: owner, Username: owner, Privacy: relation.PrivacyPrivate}); err != nil {
			t.Fatal(err)
		}
		if _, _, err := s.ApplyPairTransaction(ctx, requester, owner, plan(relation.ActionRequestFollow)); err != nil {
			t.Fatal(err)
		}

		var wg sync.WaitGroup
		errs := make([]error, 2)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _, errs[0] = s.ApplyPairTransaction(ctx, requester, owner, plan(relation.ActionCancelRequest))
		}()
		go func() {
			defer wg.Done()
			_, _, errs[1] = s.ApplyPairTransaction(ctx, owner, requester, plan(relation.ActionAccept))
		}()
		wg.Wait()

		if (errs[0] == nil) == (errs[1] == nil) {
			t.Fatalf("round %d: cancel=%v accept=%v, want exactly one success", i, errs[0], errs[1])
		}
	}

	drifts, err := s.Recount(ctx, false)
	if err != nil || len(drifts) != 0 {
		t.Errorf("Recount() = %v, %v", drifts, err)
	}
}

func TestAccountStore_UpdateProfile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	for _, id := range []string{"a", "b"} {
		if _, err := s.CreateAccount(ctx, relation.Account{ID: id, Username: "user-" + id, Privacy: relation.PrivacyPublic}); err != nil {
			t.Fatal(err)
		}
	}

	acct, err := s.UpdateProfile(ctx, "a", "alice", "Alice")
	if err != nil || acct.Username != "alice" || acct.DisplayName != "Alice" {
		t.Fatalf("UpdateProfile() = %+v, %v", acct, err)
	}
	acct, err = s.UpdateProfile(ctx, "a", "", "Alice W")
	if err != nil || acct.Username != "alice" || acct.DisplayName != "Alice W" {
		t.Errorf("UpdateProfile(display name) = %+v, %v", acct, err)
	}
	if _, err := s.UpdateProfile(ctx, "a", "user-b", ""); !errors.Is(err, relation.ErrAlreadyExists) {
		t.Errorf("taken username error = %v", err)
	}
	if _, err := s.UpdateProfile(ctx, "ghost", "ghostly", ""); !errors.Is(err, relation.ErrNotFound) {
		t.Errorf("UpdateProfile(ghost) error = %v", err)
	}
}
