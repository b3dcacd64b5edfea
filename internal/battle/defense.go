package battle

import (
	"fmt"
	"sort"
	"strings"
)

// PhaseWall is the external damage reduction that always takes precedence
// over every other reduction, regardless of its position in the table.
const PhaseWall = "Phase Wall"

// externalPart marks a capability entry with no backing defender part.
const externalPart = -1

// Avoidance holds the accuracy penalty a part imposes on attackers. Legs is
// used when the defender walks, Other for every other movement type.
type Avoidance struct {
	Legs  int
	Other int
}

// Reduction is one damage reduction effect. Multiplier scales every incoming
// damage chunk.
type Reduction struct {
	Name       string
	Multiplier float64
}

// Shielding absorbs Percent of damage aimed at Slot.
type Shielding struct {
	Slot    Slot
	Percent float64
}

// CapabilityTable maps part names to defensive capabilities. It is loaded from
// the item catalog so the engine carries no item names of its own.
type CapabilityTable struct {
	Avoidance        map[string]Avoidance
	CorruptionIgnore map[string]int
	// DamageReduction is ordered by precedence: earlier entries apply first.
	DamageReduction     []Reduction
	RangedAvoidance     map[string]int
	SelfDamageReduction map[string]float64
	Shielding           map[string]Shielding
}

func (t *CapabilityTable) reduction(name string) (Reduction, int, bool) {
	if t == nil {
		return Reduction{}, 0, false
	}
	for rank, r := range t.DamageReduction {
		if r.Name == name {
			return r, rank, true
		}
	}
	return Reduction{}, 0, false
}

// AvoidanceEntry is an avoidance capability bound to a part.
type AvoidanceEntry struct {
	Part int
	Avoidance
}

// ChanceEntry is a percent capability bound to a part.
type ChanceEntry struct {
	Part   int
	Chance int
}

// ReductionEntry is a damage reduction bound to a part, or to no part for an
// external effect.
type ReductionEntry struct {
	Part int
	Reduction
	rank int
}

// External reports whether the reduction comes from outside the defender.
func (e ReductionEntry) External() bool {
	return e.Part == externalPart
}

// BonusEntry is a flat capability bound to a part.
type BonusEntry struct {
	Part  int
	Value int
}

// ShieldEntry is a slot shielding capability bound to a part.
type ShieldEntry struct {
	Part    int
	Percent float64
}

type partRef interface {
	AvoidanceEntry | ChanceEntry | ReductionEntry | BonusEntry | ShieldEntry
}

func refPart[E partRef](entry E) int {
	switch e := any(entry).(type) {
	case AvoidanceEntry:
		return e.Part
	case ChanceEntry:
		return e.Part
	case ReductionEntry:
		return e.Part
	case BonusEntry:
		return e.Part
	case ShieldEntry:
		return e.Part
	}
	return externalPart
}

// DefensiveState groups a defender's parts by capability. Entries reference
// parts by their stable index in the defender's part list; integrity is never
// stored here.
type DefensiveState struct {
	Avoidance        []AvoidanceEntry
	CorruptionIgnore []ChanceEntry
	DamageReduction  []ReductionEntry
	RangedAvoidance  []BonusEntry
	Shielding        [slotCount][]ShieldEntry
	// SelfDamageReduction scales the damage of hits that strike the part
	// itself. It is keyed by part index and never mutated after resolution,
	// so clones share it.
	SelfDamageReduction map[int]float64
}

// ResolveDefense classifies parts into capability buckets. It is a pure
// function of its inputs.
func ResolveDefense(parts []PartTemplate, table *CapabilityTable, external string) (DefensiveState, error) {
	var state DefensiveState
	if table == nil {
		table = &CapabilityTable{}
	}
	for id, part := range parts {
		name := part.Name
		if avoid, ok := table.Avoidance[name]; ok {
			state.Avoidance = append(state.Avoidance, AvoidanceEntry{Part: id, Avoidance: avoid})
		}
		if chance, ok := table.CorruptionIgnore[name]; ok {
			state.CorruptionIgnore = append(state.CorruptionIgnore, ChanceEntry{Part: id, Chance: chance})
		}
		if reduction, rank, ok := table.reduction(name); ok {
			state.DamageReduction = append(state.DamageReduction, ReductionEntry{Part: id, Reduction: reduction, rank: rank})
		}
		if value, ok := table.RangedAvoidance[name]; ok {
			state.RangedAvoidance = append(state.RangedAvoidance, BonusEntry{Part: id, Value: value})
		}
		if multiplier, ok := table.SelfDamageReduction[name]; ok {
			if state.SelfDamageReduction == nil {
				state.SelfDamageReduction = map[int]float64{}
			}
			state.SelfDamageReduction[id] = multiplier
		}
		if shield, ok := table.Shielding[name]; ok {
			state.Shielding[shield.Slot] = append(state.Shielding[shield.Slot], ShieldEntry{Part: id, Percent: shield.Percent})
		}
	}
	sort.SliceStable(state.DamageReduction, func(i, j int) bool {
		return state.DamageReduction[i].rank < state.DamageReduction[j].rank
	})

	external = strings.TrimSpace(external)
	if external == "" {
		return state, nil
	}
	reduction, rank, ok := table.reduction(external)
	if !ok {
		return DefensiveState{}, fmt.Errorf("%w: %q", ErrUnknownExternalReduction, external)
	}
	entry := ReductionEntry{Part: externalPart, Reduction: reduction, rank: rank}
	at := 0
	if external != PhaseWall {
		at = sort.Search(len(state.DamageReduction), func(i int) bool {
			return state.DamageReduction[i].rank > rank
		})
	}
	state.DamageReduction = append(state.DamageReduction, ReductionEntry{})
	copy(state.DamageReduction[at+1:], state.DamageReduction[at:])
	state.DamageReduction[at] = entry
	return state, nil
}

// cloneInto copies the capability lists into dst, reusing its backing arrays.
func (d *DefensiveState) cloneInto(dst *DefensiveState) {
	dst.Avoidance = append(dst.Avoidance[:0], d.Avoidance...)
	dst.CorruptionIgnore = append(dst.CorruptionIgnore[:0], d.CorruptionIgnore...)
	dst.DamageReduction = append(dst.DamageReduction[:0], d.DamageReduction...)
	dst.RangedAvoidance = append(dst.RangedAvoidance[:0], d.RangedAvoidance...)
	for slot := range d.Shielding {
		dst.Shielding[slot] = append(dst.Shielding[slot][:0], d.Shielding[slot]...)
	}
	dst.SelfDamageReduction = d.SelfDamageReduction
}

// Clone returns an independent copy of the capability lists.
func (d DefensiveState) Clone() DefensiveState {
	var out DefensiveState
	d.cloneInto(&out)
	return out
}

// firstAvailable returns the first entry whose part is still intact, dropping
// destroyed entries from the front of the list as it goes.
func firstAvailable[E partRef](list *[]E, parts []PartState) (E, bool) {
	for len(*list) > 0 {
		entry := (*list)[0]
		id := refPart(entry)
		if id == externalPart || parts[id].Integrity > 0 {
			return entry, true
		}
		*list = (*list)[1:]
	}
	var zero E
	return zero, false
}
