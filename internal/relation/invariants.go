package relation

import (
	"fmt"
	"sort"
)

// Violation describes one broken invariant
type Violation struct {
	Account string
	Rule    string
	Detail  string
}

func (v Violation) String() string {
	return fmt.Sprintf("%s: %s: %s", v.Account, v.Rule, v.Detail)
}

// CheckInvariants verifies the relationship invariants over a complete set
// of records: counters equal set sizes, follow and pending sets are
// symmetric, no pair is both following and pending in one direction, no
// account relates to itself, and public accounts have no incoming requests
func CheckInvariants(records map[string]*Record) []Violation {
	ids := make([]string, 0, len(records))
	for id := range records {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []Violation
	add := func(id, rule, format string, args ...interface{}) {
		out = append(out, Violation{Account: id, Rule: rule, Detail: fmt.Sprintf(format, args...)})
	}

	for _, id := range ids {
		r := records[id]
		if got, want := r.Account.Counts, r.Sets.Counters(); got != want {
			add(id, "counters", "stored %+v, derived %+v", got, want)
		}
		for _, kind := range []SetKind{Followers, Following, PendingOutgoing, PendingIncoming} {
			if r.Sets.Of(kind).Has(id) {
				add(id, "self", "own id in %s", kind)
			}
		}
		for peer := range r.Sets.Following {
			if r.Sets.PendingOutgoing.Has(peer) {
				add(id, "exclusive", "following and pending towards %s", peer)
			}
		}
		if r.Account.Privacy == PrivacyPublic && r.Sets.PendingIncoming.Len() > 0 {
			add(id, "public-pending", "%d incoming requests while public", r.Sets.PendingIncoming.Len())
		}

		mirror := func(kind, peerKind SetKind) {
			for _, peer := range r.Sets.Of(kind).Sorted() {
				p, ok := records[peer]
				if !ok {
					add(id, "dangling", "%s references unknown %s", kind, peer)
					continue
				}
				if !p.Sets.Of(peerKind).Has(id) {
					add(id, "symmetry", "%s has %s but %s.%s lacks %s", kind, peer, peer, peerKind, id)
				}
			}
		}
		mirror(Following, Followers)
		mirror(Followers, Following)
		mirror(PendingOutgoing, PendingIncoming)
		mirror(PendingIncoming, PendingOutgoing)
	}
	return out
}
