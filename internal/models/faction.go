package models

import (
	"encoding/json"
	"fmt"
	"math/bits"
)

// Faction identifies the power a player controls within a room.
type Faction string

// The seven playable factions.
const (
	Austria Faction = "austria"
	England Faction = "england"
	France  Faction = "france"
	Germany Faction = "germany"
	Italy   Faction = "italy"
	Russia  Faction = "russia"
	Turkey  Faction = "turkey"
)

// Factions lists every valid faction in sorted order. The bit position of
// a faction in a FactionSet is its index here, so iterating a set in bit
// order yields sorted names.
var Factions = [...]Faction{Austria, England, France, Germany, Italy, Russia, Turkey}

// ParseFaction validates s as a faction name.
func ParseFaction(s string) (Faction, error) {
	f := Faction(s)
	if !f.Valid() {
		return "", fmt.Errorf("%w: unknown faction %q", ErrInvalidInput, s)
	}
	return f, nil
}

// Valid reports whether f is one of the seven factions.
func (f Faction) Valid() bool {
	return f.index() >= 0
}

func (f Faction) index() int {
	for i, v := range Factions {
		if v == f {
			return i
		}
	}
	return -1
}

// FactionSet is an unordered set of factions. Two sets holding the same
// members compare equal with ==, whatever order they were built in.
type FactionSet uint8

// NewFactionSet builds a set from fs, rejecting unknown names and duplicates.
func NewFactionSet(fs ...Faction) (FactionSet, error) {
	var s FactionSet
	for _, f := range fs {
		i := f.index()
		if i < 0 {
			return 0, fmt.Errorf("%w: unknown faction %q", ErrInvalidInput, f)
		}
		if s&(1<<i) != 0 {
			return 0, fmt.Errorf("%w: duplicate faction %q", ErrInvalidInput, f)
		}
		s |= 1 << i
	}
	return s, nil
}

// Add returns s with f included. Unknown factions are ignored.
func (s FactionSet) Add(f Faction) FactionSet {
	if i := f.index(); i >= 0 {
		s |= 1 << i
	}
	return s
}

// Contains reports whether f is a member of s.
func (s FactionSet) Contains(f Faction) bool {
	i := f.index()
	return i >= 0 && s&(1<<i) != 0
}

// Overlaps reports whether s and o share a member.
func (s FactionSet) Overlaps(o FactionSet) bool {
	return s&o != 0
}

// Len returns the number of members.
func (s FactionSet) Len() int {
	return bits.OnesCount8(uint8(s))
}

// Sorted returns the members in lexicographic order.
func (s FactionSet) Sorted() []Faction {
	out := make([]Faction, 0, s.Len())
	for i, f := range Factions {
		if s&(1<<i) != 0 {
			out = append(out, f)
		}
	}
	return out
}

// Strings returns the sorted members as plain strings.
func (s FactionSet) Strings() []string {
	sorted := s.Sorted()
	out := make([]string, len(sorted))
	for i, f := range sorted {
		out[i] = string(f)
	}
	return out
}

// MarshalJSON encodes the set as a sorted array of names.
func (s FactionSet) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.Strings())
}

// UnmarshalJSON decodes an array of names. Duplicates are tolerated on
// read since stored records are always written sorted and unique.
func (s *FactionSet) UnmarshalJSON(data []byte) error {
	var names []string
	if err := json.Unmarshal(data, &names); err != nil {
		return err
	}
	var set FactionSet
	for _, n := range names {
		f, err := ParseFaction(n)
		if err != nil {
			return err
		}
		set = set.Add(f)
	}
	*s = set
	return nil
}
