package relation

import (
	"math/rand"
	"testing"
)

func newRecord(id string, p Privacy) *Record {
	return &Record{Account: Account{ID: id, Privacy: p}, Sets: NewSets()}
}

// step applies a planned transition to the model the way a store would
func step(records map[string]*Record, a Action, actor, target string) error {
	v, t := records[actor], records[target]
	tr, err := Plan(a, actor, target, t.Account.Privacy, StateOf(v.Sets, target))
	if err != nil {
		return err
	}
	if err := v.Sets.Apply(tr.ActorMutation); err != nil {
		return err
	}
	if err := t.Sets.Apply(tr.TargetMutation); err != nil {
		return err
	}
	v.Account.Counts = v.Account.Counts.Add(tr.ActorMutation.Delta())
	t.Account.Counts = t.Account.Counts.Add(tr.TargetMutation.Delta())
	return nil
}

func TestCheckInvariants_RandomSequence(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	ids := []string{"a", "b", "c", "d", "e"}
	records := map[string]*Record{}
	for i, id := range ids {
		p := PrivacyPublic
		if i%2 == 1 {
			p = PrivacyPrivate
		}
		records[id] = newRecord(id, p)
	}
	actions := []Action{
		ActionRequestFollow, ActionCancelRequest, ActionAccept,
		ActionDecline, ActionUnfollow, ActionRemoveFollower,
	}

	applied := 0
	for i := 0; i < 2000; i++ {
		actor := ids[rng.Intn(len(ids))]
		target := ids[rng.Intn(len(ids))]
		before := StateOf(records[actor].Sets, target)
		if err := step(records, actions[rng.Intn(len(actions))], actor, target); err != nil {
			if after := StateOf(records[actor].Sets, target); after != before {
				t.Fatalf("rejected step changed state %+v -> %+v", before, after)
			}
			continue
		}
		applied++
		if v := CheckInvariants(records); len(v) > 0 {
			t.Fatalf("step %d broke invariants: %v", i, v)
		}
	}
	if applied == 0 {
		t.Fatal("no step applied")
	}
}

func TestCheckInvariants_DetectsCorruption(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(map[string]*Record)
		rule    string
	}{
		{"counter drift", func(r map[string]*Record) { r["a"].Account.Counts.Followers = 3 }, "counters"},
		{"half edge", func(r map[string]*Record) {
			r["a"].Sets.Following.Add("b")
			r["a"].Account.Counts.Following = 1
		}, "symmetry"},
		{"self follow", func(r map[string]*Record) {
			r["a"].Sets.Following.Add("a")
			r["a"].Sets.Followers.Add("a")
			r["a"].Account.Counts = r["a"].Sets.Counters()
		}, "self"},
		{"public with requests", func(r map[string]*Record) {
			r["a"].Sets.PendingIncoming.Add("b")
			r["b"].Sets.PendingOutgoing.Add("a")
			r["a"].Account.Counts = r["a"].Sets.Counters()
			r["b"].Account.Counts = r["b"].Sets.Counters()
		}, "public-pending"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			records := map[string]*Record{
				"a": newRecord("a", PrivacyPublic),
				"b": newRecord("b", PrivacyPrivate),
			}
			tt.corrupt(records)
			found := false
			for _, v := range CheckInvariants(records) {
				if v.Rule == tt.rule {
					found = true
				}
			}
			if !found {
				t.Errorf("CheckInvariants() missed rule %q", tt.rule)
			}
		})
	}
}
