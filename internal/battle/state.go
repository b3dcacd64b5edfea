package battle

import (
	"fmt"
	"strings"
)

// DefenderSpec is the resolved definition of a defender.
type DefenderSpec struct {
	Name          string
	CoreIntegrity int
	CoreCoverage  int
	Movement      Movement
	// Regen is core integrity restored per 100 TU.
	Regen int
	// Resistances maps damage types to a percent reduction. Negative values
	// amplify damage.
	Resistances       map[DamageType]int
	Immunities        Immunities
	Parts             []PartTemplate
	ExternalReduction string
}

// DefenderTemplate is the immutable starting point every trial clones.
type DefenderTemplate struct {
	Name          string
	CoreIntegrity int
	CoreCoverage  int
	Movement      Movement
	Regen         int
	Resistances   map[DamageType]int
	Immunities    Immunities
	Parts         []PartTemplate
	Defense       DefensiveState

	parts            []PartState
	partCoverage     int
	analyzedCoverage int
}

// NewDefender validates spec and resolves its defensive capabilities.
func NewDefender(spec DefenderSpec, table *CapabilityTable) (*DefenderTemplate, error) {
	name := strings.TrimSpace(spec.Name)
	if spec.CoreIntegrity <= 0 {
		return nil, fmt.Errorf("%w: %q core integrity must be positive", ErrInvalidDefender, name)
	}
	// The core stays targetable after every part is destroyed.
	if spec.CoreCoverage <= 0 {
		return nil, fmt.Errorf("%w: %q core coverage must be positive", ErrInvalidDefender, name)
	}
	defense, err := ResolveDefense(spec.Parts, table, spec.ExternalReduction)
	if err != nil {
		return nil, err
	}
	tmpl := &DefenderTemplate{
		Name:          name,
		CoreIntegrity: spec.CoreIntegrity,
		CoreCoverage:  spec.CoreCoverage,
		Movement:      spec.Movement,
		Regen:         spec.Regen,
		Resistances:   spec.Resistances,
		Immunities:    spec.Immunities,
		Parts:         append([]PartTemplate(nil), spec.Parts...),
		Defense:       defense,
		parts:         make([]PartState, len(spec.Parts)),
	}
	for id, part := range spec.Parts {
		if part.Integrity <= 0 {
			return nil, fmt.Errorf("%w: part %q integrity must be positive", ErrInvalidDefender, part.Name)
		}
		if part.Coverage < 0 {
			return nil, fmt.Errorf("%w: part %q coverage must not be negative", ErrInvalidDefender, part.Name)
		}
		analyzed := part.Coverage
		if part.Protection {
			analyzed = 0
		}
		tmpl.parts[id] = PartState{
			Integrity:        part.Integrity,
			Coverage:         part.Coverage,
			AnalyzedCoverage: analyzed,
			Slot:             part.Slot,
			Protection:       part.Protection,
		}
		tmpl.partCoverage += part.Coverage
		tmpl.analyzedCoverage += analyzed
	}
	return tmpl, nil
}

// PartState is the mutable per-trial state of one part.
type PartState struct {
	Integrity int
	Coverage  int
	// AnalyzedCoverage is the coverage used when armor analysis bypasses
	// protection parts.
	AnalyzedCoverage int
	Slot             Slot
	Protection       bool
}

// DefenderBattleState is the mutable subject of one trial.
type DefenderBattleState struct {
	Name                 string
	CoreIntegrity        int
	InitialCoreIntegrity int
	CoreCoverage         int
	// PartCoverage and AnalyzedPartCoverage are running totals over live parts.
	PartCoverage         int
	AnalyzedPartCoverage int
	Corruption           int
	Regen                int
	Movement             Movement
	Resistances          map[DamageType]int
	Immunities           Immunities
	Defense              DefensiveState

	parts []PartState
	live  []int
}

// NewBattleState clones the template into a fresh trial state.
func (t *DefenderTemplate) NewBattleState() *DefenderBattleState {
	state := &DefenderBattleState{}
	t.resetInto(state)
	return state
}

// resetInto overwrites dst with the template's starting state, reusing dst's
// slices. Resistances and immunities are shared because trials never mutate them.
func (t *DefenderTemplate) resetInto(dst *DefenderBattleState) {
	dst.Name = t.Name
	dst.CoreIntegrity = t.CoreIntegrity
	dst.InitialCoreIntegrity = t.CoreIntegrity
	dst.CoreCoverage = t.CoreCoverage
	dst.PartCoverage = t.partCoverage
	dst.AnalyzedPartCoverage = t.analyzedCoverage
	dst.Corruption = 0
	dst.Regen = t.Regen
	dst.Movement = t.Movement
	dst.Resistances = t.Resistances
	dst.Immunities = t.Immunities
	dst.parts = append(dst.parts[:0], t.parts...)
	dst.live = dst.live[:0]
	for id := range t.parts {
		dst.live = append(dst.live, id)
	}
	t.Defense.cloneInto(&dst.Defense)
}

// Part returns the state of the part with the given stable index.
func (s *DefenderBattleState) Part(id int) PartState {
	return s.parts[id]
}

// LiveParts returns the stable indexes of parts that have not been destroyed,
// in template order. The returned slice must not be modified.
func (s *DefenderBattleState) LiveParts() []int {
	return s.live
}

// Dead reports whether the defender has reached a terminal condition.
func (s *DefenderBattleState) Dead() bool {
	return s.CoreIntegrity <= 0 || s.Corruption >= 100
}

func (s *DefenderBattleState) killReason() KillReason {
	if s.CoreIntegrity <= 0 {
		return KillCore
	}
	return KillCorruption
}

// resist applies the defender's resistance for typ to amount.
func (s *DefenderBattleState) resist(typ DamageType, amount int) int {
	percent := s.Resistances[typ]
	if percent == 0 {
		return amount
	}
	if percent >= 100 {
		return 0
	}
	return amount * (100 - percent) / 100
}

func (s *DefenderBattleState) addCorruption(amount int) {
	if amount <= 0 {
		return
	}
	s.Corruption += amount
	if s.Corruption > 100 {
		s.Corruption = 100
	}
}

// destroyPart removes a part from the live list and the coverage totals.
func (s *DefenderBattleState) destroyPart(id int) {
	part := &s.parts[id]
	part.Integrity = 0
	for i, liveID := range s.live {
		if liveID == id {
			s.live = append(s.live[:i], s.live[i+1:]...)
			s.PartCoverage -= part.Coverage
			s.AnalyzedPartCoverage -= part.AnalyzedCoverage
			return
		}
	}
}
