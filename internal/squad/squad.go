// Package squad groups soldiers by key. A squad never owns soldiers; it holds
// keys into an extent and resolves them on demand through a Resolver.
package squad

import (
	"fmt"
	"slices"

	"roster/pkg/domain"

	json "github.com/goccy/go-json"
)

// Resolver looks soldiers up by key. *core.Extent satisfies it.
type Resolver interface {
	Get(domain.Key) (domain.Soldier, bool)
}

// Squad has exactly one leader and an insertion-ordered member list.
// AddMember does not deduplicate; callers that care should check Contains
// first. SetLeader never leaves the new leader listed as a member.
type Squad struct {
	name    string
	leader  domain.Key
	members []domain.Key
}

// New returns a squad led by leader with no members.
func New(name string, leader domain.Key) *Squad {
	return &Squad{name: name, leader: leader}
}

// Name returns the squad name.
func (s *Squad) Name() string { return s.name }

// Leader returns the leader key.
func (s *Squad) Leader() domain.Key { return s.leader }

// Members returns a copy of the member keys in insertion order.
func (s *Squad) Members() []domain.Key { return slices.Clone(s.members) }

// AddMember appends k.
func (s *Squad) AddMember(k domain.Key) { s.members = append(s.members, k) }

// RemoveMember removes every occurrence of k and reports how many were removed.
func (s *Squad) RemoveMember(k domain.Key) int {
	before := len(s.members)
	s.members = slices.DeleteFunc(s.members, func(m domain.Key) bool { return m == k })
	return before - len(s.members)
}

// SetLeader makes k the leader. The previous leader joins the members and
// every copy of k is removed from them, including when k already leads.
func (s *Squad) SetLeader(k domain.Key) {
	members := make([]domain.Key, 0, len(s.members)+1)
	for _, m := range s.members {
		if m != k {
			members = append(members, m)
		}
	}
	if s.leader != k {
		members = append(members, s.leader)
	}
	s.members = members
	s.leader = k
}

// SoldierCount returns len(members)+1. Keys are not checked for liveness.
func (s *Squad) SoldierCount() int { return len(s.members) + 1 }

// Contains reports whether k is the leader or a member.
func (s *Squad) Contains(k domain.Key) bool {
	return k == s.leader || slices.Contains(s.members, k)
}

// Resolution is the outcome of resolving a squad against a roster.
type Resolution struct {
	Leader   domain.Soldier
	LeaderOK bool
	Members  []domain.Soldier
	// Missing lists keys, leader included, that no longer resolve.
	Missing []domain.Key
}

// Resolve looks up the leader and members. Keys that no longer resolve are
// reported in Missing rather than treated as errors.
func (s *Squad) Resolve(r Resolver) Resolution {
	var res Resolution
	res.Leader, res.LeaderOK = r.Get(s.leader)
	if !res.LeaderOK {
		res.Missing = append(res.Missing, s.leader)
	}
	res.Members = make([]domain.Soldier, 0, len(s.members))
	for _, k := range s.members {
		if sol, ok := r.Get(k); ok {
			res.Members = append(res.Members, sol)
		} else {
			res.Missing = append(res.Missing, k)
		}
	}
	return res
}

// Prune drops members that no longer resolve and returns them. The leader is
// kept even when stale.
func (s *Squad) Prune(r Resolver) []domain.Key {
	var dropped []domain.Key
	kept := s.members[:0]
	for _, k := range s.members {
		if _, ok := r.Get(k); ok {
			kept = append(kept, k)
		} else {
			dropped = append(dropped, k)
		}
	}
	clear(s.members[len(kept):])
	s.members = kept
	return dropped
}

func (s *Squad) String() string {
	return fmt.Sprintf("Squad %q (leader %s, %d members)", s.name, s.leader, len(s.members))
}

type squadJSON struct {
	Name    string       `json:"name"`
	Leader  domain.Key   `json:"leader"`
	Members []domain.Key `json:"members"`
}

// MarshalJSON encodes keys in their "<index>v<generation>" form.
func (s *Squad) MarshalJSON() ([]byte, error) {
	members := s.members
	if members == nil {
		members = []domain.Key{}
	}
	return json.Marshal(squadJSON{Name: s.name, Leader: s.leader, Members: members})
}

// UnmarshalJSON decodes the MarshalJSON form.
func (s *Squad) UnmarshalJSON(data []byte) error {
	var raw squadJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return domain.WrapError(domain.CodeDeserialization, err, "decode squad")
	}
	if raw.Leader.IsZero() {
		return domain.NewError(domain.CodeDeserialization, "squad %q has no leader", raw.Name)
	}
	s.name = raw.Name
	s.leader = raw.Leader
	s.members = raw.Members
	return nil
}
