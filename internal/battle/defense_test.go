package battle

import (
	"errors"
	"testing"
)

func reductionTable() *CapabilityTable {
	return &CapabilityTable{
		DamageReduction: []Reduction{
			{Name: "Remote Force Field", Multiplier: 0.5},
			{Name: "Force Field", Multiplier: 0.6},
			{Name: "Remote Shield", Multiplier: 0.75},
			{Name: "Shield Generator", Multiplier: 0.8},
			{Name: PhaseWall, Multiplier: 0.9},
		},
		Avoidance:        map[string]Avoidance{"Reaction Control": {Legs: 5, Other: 10}},
		CorruptionIgnore: map[string]int{"EM Shield": 33},
		RangedAvoidance:  map[string]int{"Phase Shifter": 8},
		Shielding: map[string]Shielding{
			"Core Shield":  {Slot: SlotCore, Percent: 0.5},
			"Power Shield": {Slot: SlotPower, Percent: 0.25},
		},
	}
}

func reductionNames(state DefensiveState) []string {
	names := make([]string, 0, len(state.DamageReduction))
	for _, entry := range state.DamageReduction {
		names = append(names, entry.Name)
	}
	return names
}

func TestResolveDefense_ReductionPrecedence(t *testing.T) {
	parts := []PartTemplate{
		{Name: "Shield Generator", Slot: SlotUtility, Coverage: 10, Integrity: 50},
		{Name: "Force Field", Slot: SlotUtility, Coverage: 10, Integrity: 50},
	}

	tests := []struct {
		name     string
		external string
		want     []string
	}{
		{name: "parts only", want: []string{"Force Field", "Shield Generator"}},
		{name: "external by rank", external: "Remote Shield", want: []string{"Force Field", "Remote Shield", "Shield Generator"}},
		{name: "external first", external: "Remote Force Field", want: []string{"Remote Force Field", "Force Field", "Shield Generator"}},
		{name: "phase wall always first", external: PhaseWall, want: []string{PhaseWall, "Force Field", "Shield Generator"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state, err := ResolveDefense(parts, reductionTable(), tt.external)
			if err != nil {
				t.Fatalf("ResolveDefense: %v", err)
			}
			got := reductionNames(state)
			if len(got) != len(tt.want) {
				t.Fatalf("reductions = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("reductions = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestResolveDefense_ExternalHasNoPart(t *testing.T) {
	state, err := ResolveDefense(nil, reductionTable(), "Remote Shield")
	if err != nil {
		t.Fatalf("ResolveDefense: %v", err)
	}
	if len(state.DamageReduction) != 1 || !state.DamageReduction[0].External() {
		t.Fatalf("reductions = %+v, want one external entry", state.DamageReduction)
	}
}

func TestResolveDefense_UnknownExternal(t *testing.T) {
	_, err := ResolveDefense(nil, reductionTable(), "Mystery Field")
	if !errors.Is(err, ErrUnknownExternalReduction) {
		t.Fatalf("err = %v, want ErrUnknownExternalReduction", err)
	}
}

func TestResolveDefense_Buckets(t *testing.T) {
	parts := []PartTemplate{
		{Name: "Reaction Control", Slot: SlotUtility, Coverage: 10, Integrity: 20},
		{Name: "EM Shield", Slot: SlotUtility, Coverage: 10, Integrity: 20},
		{Name: "Phase Shifter", Slot: SlotUtility, Coverage: 10, Integrity: 20},
		{Name: "Core Shield", Slot: SlotUtility, Coverage: 10, Integrity: 20},
		{Name: "Power Shield", Slot: SlotUtility, Coverage: 10, Integrity: 20},
		{Name: "Armor Plate", Slot: SlotUtility, Coverage: 10, Integrity: 20},
	}
	state, err := ResolveDefense(parts, reductionTable(), "")
	if err != nil {
		t.Fatalf("ResolveDefense: %v", err)
	}
	if len(state.Avoidance) != 1 || state.Avoidance[0].Part != 0 || state.Avoidance[0].Other != 10 {
		t.Fatalf("avoidance = %+v", state.Avoidance)
	}
	if len(state.CorruptionIgnore) != 1 || state.CorruptionIgnore[0].Part != 1 || state.CorruptionIgnore[0].Chance != 33 {
		t.Fatalf("corruption ignore = %+v", state.CorruptionIgnore)
	}
	if len(state.RangedAvoidance) != 1 || state.RangedAvoidance[0].Value != 8 {
		t.Fatalf("ranged avoidance = %+v", state.RangedAvoidance)
	}
	if got := state.Shielding[SlotCore]; len(got) != 1 || got[0].Part != 3 || got[0].Percent != 0.5 {
		t.Fatalf("core shielding = %+v", got)
	}
	if got := state.Shielding[SlotPower]; len(got) != 1 || got[0].Part != 4 {
		t.Fatalf("power shielding = %+v", got)
	}
	if len(state.DamageReduction) != 0 {
		t.Fatalf("damage reduction = %+v, want none", state.DamageReduction)
	}
}

func TestFirstAvailable_EvictsDestroyedParts(t *testing.T) {
	parts := []PartState{{Integrity: 0}, {Integrity: 0}, {Integrity: 5}}
	list := []ChanceEntry{{Part: 0, Chance: 10}, {Part: 1, Chance: 20}, {Part: 2, Chance: 30}}

	entry, ok := firstAvailable(&list, parts)
	if !ok || entry.Chance != 30 {
		t.Fatalf("firstAvailable = %+v, %v; want chance 30", entry, ok)
	}
	if len(list) != 1 {
		t.Fatalf("list length = %d, want 1", len(list))
	}

	parts[2].Integrity = 0
	if _, ok := firstAvailable(&list, parts); ok {
		t.Fatal("expected no available entry")
	}
	if len(list) != 0 {
		t.Fatalf("list length = %d, want 0", len(list))
	}
}

func TestFirstAvailable_ExternalNeverEvicted(t *testing.T) {
	list := []ReductionEntry{{Part: externalPart, Reduction: Reduction{Name: "Remote Shield", Multiplier: 0.75}}}
	entry, ok := firstAvailable(&list, nil)
	if !ok || !entry.External() {
		t.Fatalf("firstAvailable = %+v, %v", entry, ok)
	}
}

func TestDefensiveStateClone_Independent(t *testing.T) {
	parts := []PartTemplate{
		{Name: "Force Field", Slot: SlotUtility, Coverage: 10, Integrity: 50},
		{Name: "Core Shield", Slot: SlotUtility, Coverage: 10, Integrity: 50},
	}
	state, err := ResolveDefense(parts, reductionTable(), "")
	if err != nil {
		t.Fatalf("ResolveDefense: %v", err)
	}
	clone := state.Clone()
	clone.DamageReduction = clone.DamageReduction[1:]
	clone.Shielding[SlotCore][0].Percent = 1

	if len(state.DamageReduction) != 1 {
		t.Fatalf("original reductions changed: %+v", state.DamageReduction)
	}
	if state.Shielding[SlotCore][0].Percent != 0.5 {
		t.Fatalf("original shielding changed: %+v", state.Shielding[SlotCore])
	}
}

func TestNewDefender_Validation(t *testing.T) {
	tests := []struct {
		name string
		spec DefenderSpec
	}{
		{name: "zero core", spec: DefenderSpec{Name: "x", CoreCoverage: 100}},
		{name: "negative coverage", spec: DefenderSpec{Name: "x", CoreIntegrity: 10, CoreCoverage: -1}},
		{name: "no coverage", spec: DefenderSpec{Name: "x", CoreIntegrity: 10}},
		{name: "zero core coverage with parts", spec: DefenderSpec{Name: "x", CoreIntegrity: 10, Parts: []PartTemplate{{Name: "Arm", Coverage: 5, Integrity: 5}}}},
		{name: "dead part", spec: DefenderSpec{Name: "x", CoreIntegrity: 10, CoreCoverage: 10, Parts: []PartTemplate{{Name: "Arm", Coverage: 5}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewDefender(tt.spec, nil); !errors.Is(err, ErrInvalidDefender) {
				t.Fatalf("err = %v, want ErrInvalidDefender", err)
			}
		})
	}
}

func TestNewDefender_ProtectionAnalyzedCoverage(t *testing.T) {
	spec := onePart()
	spec.Parts = append(spec.Parts, PartTemplate{Name: "Plating", Slot: SlotUtility, Coverage: 30, Integrity: 100, Protection: true})
	state := mustDefender(t, spec, nil).NewBattleState()
	if state.PartCoverage != 80 {
		t.Fatalf("part coverage = %d, want 80", state.PartCoverage)
	}
	if state.AnalyzedPartCoverage != 50 {
		t.Fatalf("analyzed coverage = %d, want 50", state.AnalyzedPartCoverage)
	}
}
