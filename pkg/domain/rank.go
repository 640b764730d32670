package domain

// Rank is a soldier's grade, ordered by seniority.
type Rank uint8

// Ranks in ascending seniority.
const (
	RankPrivate Rank = iota
	RankCorporal
	RankSergeant
	RankLieutenant
	RankCaptain
	RankMajor
	RankColonel
	RankGeneral
)

var rankNames = [...]string{
	RankPrivate:    "Private",
	RankCorporal:   "Corporal",
	RankSergeant:   "Sergeant",
	RankLieutenant: "Lieutenant",
	RankCaptain:    "Captain",
	RankMajor:      "Major",
	RankColonel:    "Colonel",
	RankGeneral:    "General",
}

// Ranks returns every rank from Private to General.
func Ranks() []Rank {
	out := make([]Rank, 0, len(rankNames))
	for r := RankPrivate; r <= RankGeneral; r++ {
		out = append(out, r)
	}
	return out
}

// ParseRank resolves one of the canonical rank names. Matching is exact.
func ParseRank(s string) (Rank, error) {
	for i, name := range rankNames {
		if name == s {
			return Rank(i), nil
		}
	}
	return 0, NewError(CodeParse, "unknown rank %q", s)
}

// Valid reports whether r is one of the defined ranks.
func (r Rank) Valid() bool {
	return r <= RankGeneral
}

func (r Rank) String() string {
	if !r.Valid() {
		return "Rank(?)"
	}
	return rankNames[r]
}

// Promote moves one grade up; General stays General.
func (r Rank) Promote() Rank {
	if r >= RankGeneral {
		return RankGeneral
	}
	return r + 1
}

// Demote moves one grade down; Private stays Private.
func (r Rank) Demote() Rank {
	if r == RankPrivate || !r.Valid() {
		return RankPrivate
	}
	return r - 1
}

// Reset always returns Private.
func (r Rank) Reset() Rank {
	return RankPrivate
}

// MarshalText encodes the canonical rank name.
func (r Rank) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, NewError(CodeSerialization, "rank %d out of range", uint8(r))
	}
	return []byte(rankNames[r]), nil
}

// UnmarshalText decodes a canonical rank name.
func (r *Rank) UnmarshalText(text []byte) error {
	parsed, err := ParseRank(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
