package battle

import (
	"context"
	"reflect"
	"testing"

	"pgregory.net/rapid"
)

var allDamageTypes = []DamageType{
	DamageElectromagnetic, DamageEntropic, DamageExplosive, DamageImpact, DamageKinetic,
	DamagePhasic, DamagePiercing, DamageSlashing, DamageThermal,
}

func drawDefender(t *rapid.T) DefenderSpec {
	spec := DefenderSpec{
		Name:          "Drawn",
		CoreIntegrity: rapid.IntRange(1, 2000).Draw(t, "core"),
		CoreCoverage:  rapid.IntRange(1, 300).Draw(t, "coreCoverage"),
		Movement:      rapid.SampledFrom([]Movement{MovementCore, MovementLegs, MovementWheels, MovementTreads, MovementHover, MovementFlight}).Draw(t, "movement"),
	}
	parts := rapid.IntRange(0, 6).Draw(t, "parts")
	for i := 0; i < parts; i++ {
		spec.Parts = append(spec.Parts, PartTemplate{
			Name:       "Part",
			Slot:       rapid.SampledFrom([]Slot{SlotPower, SlotPropulsion, SlotUtility, SlotWeapon}).Draw(t, "slot"),
			Coverage:   rapid.IntRange(0, 200).Draw(t, "coverage"),
			Integrity:  rapid.IntRange(1, 400).Draw(t, "integrity"),
			Protection: rapid.Bool().Draw(t, "protection"),
		})
	}
	return spec
}

func TestProperty_AccuracyBounds(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tmpl, err := NewDefender(drawDefender(t), nil)
		if err != nil {
			t.Fatalf("NewDefender: %v", err)
		}
		combat := rapid.SampledFrom([]CombatType{Ranged, Melee}).Draw(t, "combat")
		count := rapid.IntRange(1, 4).Draw(t, "weapons")
		off := &OffensiveState{
			CombatType:      combat,
			FollowUpChances: make([]int, count),
			MeleeAnalysis:   rapid.IntRange(-50, 50).Draw(t, "meleeAnalysis"),
			RangedAccuracy:  rapid.IntRange(-50, 80).Draw(t, "rangedAccuracy"),
			DistanceBonus:   rapid.IntRange(0, 15).Draw(t, "distance"),
		}
		for i := 0; i < count; i++ {
			off.Weapons = append(off.Weapons, WeaponInstance{
				Name:      "W",
				DamageMin: 1,
				DamageMax: 1,
				Accuracy:  rapid.IntRange(-100, 100).Draw(t, "accuracy"),
				Delay:     rapid.IntRange(-50, 200).Draw(t, "delay"),
				Guided:    rapid.Bool().Draw(t, "guided"),
			})
		}

		var tr trial
		tr.reset(NewSeededSource(0, 0), tmpl, off)
		tr.siegeActive = rapid.Bool().Draw(t, "siege")
		tr.off.Siege.Bonus = 30
		tr.updateAccuracy()

		ceiling := maxRangedAccuracy
		if combat == Melee {
			ceiling = maxMeleeAccuracy
		}
		for i, w := range off.Weapons {
			got := tr.accuracy[i]
			if w.Guided {
				if got != guidedAccuracy {
					t.Fatalf("guided accuracy = %d, want %d", got, guidedAccuracy)
				}
				continue
			}
			if got < minAccuracy || got > ceiling {
				t.Fatalf("accuracy = %d, want within [%d, %d]", got, minAccuracy, ceiling)
			}
		}
	})
}

func TestProperty_ApplyDamageInvariants(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		spec := drawDefender(t)
		spec.CoreIntegrity = 1 << 30
		tmpl, err := NewDefender(spec, nil)
		if err != nil {
			t.Fatalf("NewDefender: %v", err)
		}
		state := tmpl.NewBattleState()
		rng := NewSeededSource(rapid.Int64().Draw(t, "seed"), 0)

		hits := rapid.IntRange(1, 30).Draw(t, "hits")
		for i := 0; i < hits && !state.Dead(); i++ {
			core, coverage := state.CoreIntegrity, state.PartCoverage
			state.ApplyDamage(rng, Damage{
				Amount:        rapid.IntRange(0, 300).Draw(t, "amount"),
				Type:          rapid.SampledFrom(allDamageTypes).Draw(t, "type"),
				Critical:      rapid.Bool().Draw(t, "critical"),
				ArmorAnalyzed: rapid.Bool().Draw(t, "armor"),
				CoreAnalyzed:  rapid.Bool().Draw(t, "coreAnalyzed"),
				Overflow:      rapid.Bool().Draw(t, "overflow"),
			})
			if state.CoreIntegrity > core {
				t.Fatalf("core rose from %d to %d", core, state.CoreIntegrity)
			}
			if state.PartCoverage > coverage {
				t.Fatalf("coverage rose from %d to %d", coverage, state.PartCoverage)
			}
			if state.Corruption < 0 || state.Corruption > 100 {
				t.Fatalf("corruption = %d", state.Corruption)
			}
			sum := 0
			for _, id := range state.LiveParts() {
				part := state.Part(id)
				if part.Integrity <= 0 {
					t.Fatalf("live part %d has integrity %d", id, part.Integrity)
				}
				sum += part.Coverage
			}
			if sum != state.PartCoverage {
				t.Fatalf("live coverage %d != tracked %d", sum, state.PartCoverage)
			}
		}
	})
}

func TestProperty_SeededTrialsAreDeterministic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		spec := drawDefender(t)
		tmpl, err := NewDefender(spec, nil)
		if err != nil {
			t.Fatalf("NewDefender: %v", err)
		}
		lo := rapid.IntRange(10, 50).Draw(t, "min")
		off := &OffensiveState{
			CombatType: Ranged,
			VolleyTime: rapid.IntRange(100, 400).Draw(t, "volleyTime"),
			Weapons: []WeaponInstance{{
				Name:       "W",
				DamageMin:  lo,
				DamageMax:  lo + rapid.IntRange(0, 50).Draw(t, "spread"),
				DamageType: rapid.SampledFrom(allDamageTypes).Draw(t, "type"),
				Critical:   rapid.IntRange(0, 50).Draw(t, "critical"),
			}},
		}
		seed := rapid.Int64().Draw(t, "seed")
		trials := rapid.IntRange(1, 20).Draw(t, "trials")

		first, err := RunBatch(context.Background(), BatchRequest{Defender: tmpl, Offense: off, Trials: trials, Workers: 1, Seed: &seed})
		if err != nil {
			t.Fatalf("RunBatch: %v", err)
		}
		second, err := RunBatch(context.Background(), BatchRequest{Defender: tmpl, Offense: off, Trials: trials, Workers: 3, Seed: &seed})
		if err != nil {
			t.Fatalf("RunBatch: %v", err)
		}
		if first.Trials+first.NotRun() != trials {
			t.Fatalf("trials %d + not run %d != %d", first.Trials, first.NotRun(), trials)
		}
		if !reflect.DeepEqual(first.KillTUs.Counts(), second.KillTUs.Counts()) {
			t.Fatalf("TU histograms differ: %v vs %v", first.KillTUs.Counts(), second.KillTUs.Counts())
		}
		if first.KillVolleys.Total() != first.Trials || first.KillTUs.Total() != first.Trials {
			t.Fatalf("histogram totals %d/%d != trials %d", first.KillVolleys.Total(), first.KillTUs.Total(), first.Trials)
		}
	})
}

func TestProperty_HitTargetsAreLive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		tmpl, err := NewDefender(drawDefender(t), nil)
		if err != nil {
			t.Fatalf("NewDefender: %v", err)
		}
		state := tmpl.NewBattleState()
		for _, id := range state.LiveParts() {
			if rapid.Bool().Draw(t, "destroy") {
				state.destroyPart(id)
				break
			}
		}
		rng := NewSeededSource(rapid.Int64().Draw(t, "seed"), 0)
		for i := 0; i < 50; i++ {
			target := state.ResolveHit(rng, HitRequest{
				Type:          rapid.SampledFrom(allDamageTypes).Draw(t, "type"),
				Overflow:      rapid.Bool().Draw(t, "overflow"),
				ArmorAnalyzed: rapid.Bool().Draw(t, "armor"),
			})
			if target.Core {
				continue
			}
			if state.Part(target.Part).Integrity <= 0 {
				t.Fatalf("hit destroyed part %d", target.Part)
			}
		}
	})
}
