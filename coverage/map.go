package coverage

import (
	"encoding/json"
	"sort"
)

// IDSet is a set of statement or branch identifiers. It marshals as a sorted
// JSON array so persisted maps are stable.
type IDSet map[int]struct{}

func (s IDSet) Add(id int) {
	s[id] = struct{}{}
}

func (s IDSet) Has(id int) bool {
	_, ok := s[id]

	return ok
}

func (s IDSet) Remove(id int) {
	delete(s, id)
}

func (s IDSet) MarshalJSON() ([]byte, error) {
	ids := make([]int, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}

	sort.Ints(ids)

	return json.Marshal(ids)
}

func (s *IDSet) UnmarshalJSON(data []byte) error {
	var ids []int
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}

	*s = make(IDSet, len(ids))
	for _, id := range ids {
		(*s)[id] = struct{}{}
	}

	return nil
}

// Counts holds the three per-source-file hit sets
type Counts struct {
	Statements    IDSet `json:"statements"`
	FalseBranches IDSet `json:"falseBranches"`
	TrueBranches  IDSet `json:"trueBranches"`
}

func newCounts() *Counts {
	return &Counts{
		Statements:    make(IDSet),
		FalseBranches: make(IDSet),
		TrueBranches:  make(IDSet),
	}
}

// Map is the coverage collected from one transaction: contract name to
// source-path id to hit sets
type Map map[string]map[string]*Counts

func NewMap() Map {
	return make(Map)
}

// Ensure registers a contract in the map, so contracts that executed without
// touching mapped statements still show up with empty coverage
func (m Map) Ensure(contract string) {
	if _, ok := m[contract]; !ok {
		m[contract] = make(map[string]*Counts)
	}
}

func (m Map) counts(contract, path string) *Counts {
	m.Ensure(contract)

	c, ok := m[contract][path]
	if !ok {
		c = newCounts()
		m[contract][path] = c
	}

	return c
}

// AddStatement marks a statement id as executed
func (m Map) AddStatement(contract, path string, id int) {
	m.counts(contract, path).Statements.Add(id)
}

// AddBranch marks a branch id as taken in the given direction
func (m Map) AddBranch(contract, path string, id int, taken bool) {
	if taken {
		m.counts(contract, path).TrueBranches.Add(id)
	} else {
		m.counts(contract, path).FalseBranches.Add(id)
	}
}

// Compact drops contracts with no recorded coverage
func (m Map) Compact() Map {
	out := NewMap()

	for contract, paths := range m {
		if len(paths) > 0 {
			out[contract] = paths
		}
	}

	return out
}

// Merge folds other into m
func (m Map) Merge(other Map) {
	for contract, paths := range other {
		for path, counts := range paths {
			dst := m.counts(contract, path)
			for id := range counts.Statements {
				dst.Statements.Add(id)
			}

			for id := range counts.FalseBranches {
				dst.FalseBranches.Add(id)
			}

			for id := range counts.TrueBranches {
				dst.TrueBranches.Add(id)
			}
		}
	}
}
