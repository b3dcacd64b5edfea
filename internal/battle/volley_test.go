package battle

import (
	"errors"
	"testing"
)

func rangedOffense(weapons ...WeaponInstance) *OffensiveState {
	return &OffensiveState{CombatType: Ranged, Weapons: weapons, VolleyTime: 200}
}

func meleeOffense(weapons ...WeaponInstance) *OffensiveState {
	return &OffensiveState{
		CombatType:      Melee,
		Weapons:         weapons,
		FollowUpChances: make([]int, len(weapons)),
		VolleyTime:      100,
	}
}

func meleeWeapon(name string, damage, delay int) WeaponInstance {
	return WeaponInstance{Name: name, DamageMin: damage, DamageMax: damage, DamageType: DamageImpact, Delay: delay}
}

func TestRunSingleTrial_Ranged(t *testing.T) {
	tmpl := mustDefender(t, coreOnly(120), nil)
	rng := script(t, 0, 0, 0, 0)

	got, err := RunSingleTrial(rng, tmpl, rangedOffense(flatGun(60)))
	if err != nil {
		t.Fatalf("RunSingleTrial: %v", err)
	}
	rng.assertDrained()
	if got.Volleys != 2 || got.TUs != 400 || got.Reason != KillCore {
		t.Fatalf("outcome = %+v, want 2 volleys, 400 TU, core kill", got)
	}
}

func TestRunSingleTrial_Regeneration(t *testing.T) {
	spec := coreOnly(120)
	spec.Regen = 10
	tmpl := mustDefender(t, spec, nil)
	rng := script(t, 0, 0, 0, 0, 0, 0)

	// 120 -> 60 +20 -> 20 +20 -> dead on the third volley.
	got, err := RunSingleTrial(rng, tmpl, rangedOffense(flatGun(60)))
	if err != nil {
		t.Fatalf("RunSingleTrial: %v", err)
	}
	rng.assertDrained()
	if got.Volleys != 3 || got.TUs != 600 {
		t.Fatalf("outcome = %+v, want 3 volleys at 600 TU", got)
	}
}

func TestRunSingleTrial_RegenerationCapped(t *testing.T) {
	spec := coreOnly(100)
	spec.Regen = 1000
	tmpl := mustDefender(t, spec, nil)
	var tr trial
	tr.reset(script(t), tmpl, rangedOffense(flatGun(60)))
	tr.def.CoreIntegrity = 40
	tr.clock = 250
	tr.regenerate()
	if tr.def.CoreIntegrity != 100 {
		t.Fatalf("core = %d, want 100", tr.def.CoreIntegrity)
	}
	if tr.turns != 2 {
		t.Fatalf("turns = %d, want 2", tr.turns)
	}
}

func TestRunSingleTrial_RangedStopsFiringOnKill(t *testing.T) {
	tmpl := mustDefender(t, coreOnly(60), nil)
	// The second gun never rolls because the first one kills.
	rng := script(t, 0, 0)
	got, err := RunSingleTrial(rng, tmpl, rangedOffense(flatGun(60), flatGun(60)))
	if err != nil {
		t.Fatalf("RunSingleTrial: %v", err)
	}
	rng.assertDrained()
	if got.Volleys != 1 {
		t.Fatalf("volleys = %d, want 1", got.Volleys)
	}
}

func TestRunSingleTrial_SneakFirstOnly(t *testing.T) {
	tmpl := mustDefender(t, coreOnly(150), nil)
	off := meleeOffense(meleeWeapon("Mace", 50, 0))
	off.Weapons[0].DamageType = DamageKinetic
	off.SneakAttackStrategy = SneakFirstOnly
	// Volley 1: guaranteed hit for 100, only the target draw.
	// Volley 2: hit roll, target draw, 50 damage.
	rng := script(t, 0, 0, 0)

	got, err := RunSingleTrial(rng, tmpl, off)
	if err != nil {
		t.Fatalf("RunSingleTrial: %v", err)
	}
	rng.assertDrained()
	if got.Volleys != 2 || got.TUs != 200 {
		t.Fatalf("outcome = %+v, want 2 volleys at 200 TU", got)
	}
}

func TestRunSingleTrial_MaxVolleys(t *testing.T) {
	spec := coreOnly(1000)
	spec.Regen = 1000
	tmpl := mustDefender(t, spec, nil)
	off := rangedOffense(WeaponInstance{Name: "Pea Shooter", DamageMin: 1, DamageMax: 1, DamageType: DamageKinetic})
	off.VolleyTime = 100

	_, err := RunSingleTrial(NewSeededSource(1, 0), tmpl, off)
	if !errors.Is(err, ErrMaxVolleysExceeded) {
		t.Fatalf("err = %v, want ErrMaxVolleysExceeded", err)
	}
}

func TestRunSingleTrial_ValidatesOffense(t *testing.T) {
	tmpl := mustDefender(t, coreOnly(10), nil)
	if _, err := RunSingleTrial(script(t), tmpl, &OffensiveState{}); !errors.Is(err, ErrNoWeapons) {
		t.Fatalf("err = %v, want ErrNoWeapons", err)
	}
	off := meleeOffense(meleeWeapon("Mace", 5, 0))
	off.FollowUpChances = nil
	if _, err := RunSingleTrial(script(t), tmpl, off); err == nil {
		t.Fatal("expected follow-up length error")
	}
}

func TestMeleeVolley_FollowUps(t *testing.T) {
	tmpl := mustDefender(t, coreOnly(1000), nil)
	off := meleeOffense(meleeWeapon("Mace", 10, 0), meleeWeapon("Sword", 10, 20))
	off.Weapons[0].DamageType = DamageKinetic
	off.Weapons[1].DamageType = DamageKinetic
	off.FollowUpChances[1] = 50

	tests := []struct {
		name     string
		modifier int
		draws    []int
		cost     int
		core     int
	}{
		{name: "follow-up fires", draws: []int{0, 0, 10, 0, 0}, cost: 110, core: 980},
		{name: "follow-up skipped", draws: []int{0, 0, 50}, cost: 100, core: 990},
		{name: "actuators", modifier: 50, draws: []int{0, 0, 10, 0, 0}, cost: 55, core: 980},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := *off
			o.VolleyTimeModifier = tt.modifier
			rng := script(t, tt.draws...)
			var tr trial
			tr.reset(rng, tmpl, &o)
			tr.volleys = 1
			tr.updateAccuracy()
			if tr.accuracy[1] != 68 {
				t.Fatalf("follow-up accuracy = %d, want 68", tr.accuracy[1])
			}
			if cost := tr.meleeVolley(); cost != tt.cost {
				t.Fatalf("cost = %d, want %d", cost, tt.cost)
			}
			rng.assertDrained()
			if tr.def.CoreIntegrity != tt.core {
				t.Fatalf("core = %d, want %d", tr.def.CoreIntegrity, tt.core)
			}
		})
	}
}

func TestMeleeVolley_Momentum(t *testing.T) {
	tmpl := mustDefender(t, coreOnly(1000), nil)
	off := meleeOffense(meleeWeapon("Mace", 50, 0))
	off.Weapons[0].DamageType = DamageKinetic
	off.Momentum = Momentum{Initial: 2, Bonus: 1}

	rng := script(t, 0, 0, 0, 0)
	var tr trial
	tr.reset(rng, tmpl, off)
	tr.volleys = 1
	tr.updateAccuracy()
	tr.meleeVolley()
	if tr.def.CoreIntegrity != 940 {
		t.Fatalf("core after first volley = %d, want 940", tr.def.CoreIntegrity)
	}
	if tr.momentum != 1 {
		t.Fatalf("momentum = %d, want 1", tr.momentum)
	}
	tr.volleys = 2
	tr.meleeVolley()
	if tr.def.CoreIntegrity != 885 {
		t.Fatalf("core after second volley = %d, want 885", tr.def.CoreIntegrity)
	}
}

func TestUpdateAccuracy(t *testing.T) {
	table := &CapabilityTable{
		Avoidance:       map[string]Avoidance{"Reaction Control": {Legs: 4, Other: 8}},
		RangedAvoidance: map[string]int{"Phase Shifter": 6},
	}
	withParts := func(movement Movement, names ...string) DefenderSpec {
		spec := coreOnly(100)
		spec.Movement = movement
		for _, name := range names {
			spec.Parts = append(spec.Parts, PartTemplate{Name: name, Slot: SlotUtility, Coverage: 10, Integrity: 10})
		}
		return spec
	}
	gun := WeaponInstance{Name: "Gun", DamageMin: 1, DamageMax: 1, DamageType: DamageKinetic}

	tests := []struct {
		name  string
		spec  DefenderSpec
		off   *OffensiveState
		siege bool
		want  int
	}{
		{name: "ranged base", spec: withParts(MovementTreads), off: rangedOffense(gun), want: 60},
		{name: "hover", spec: withParts(MovementHover), off: rangedOffense(gun), want: 55},
		{name: "flight", spec: withParts(MovementFlight), off: rangedOffense(gun), want: 50},
		{name: "avoidance on legs", spec: withParts(MovementLegs, "Reaction Control"), off: rangedOffense(gun), want: 56},
		{name: "avoidance otherwise", spec: withParts(MovementWheels, "Reaction Control"), off: rangedOffense(gun), want: 52},
		{name: "ranged avoidance", spec: withParts(MovementTreads, "Phase Shifter"), off: rangedOffense(gun), want: 54},
		{
			name: "targeting and distance",
			spec: withParts(MovementTreads),
			off: func() *OffensiveState {
				o := rangedOffense(gun)
				o.RangedAccuracy = 10
				o.DistanceBonus = 9
				return o
			}(),
			want: 79,
		},
		{
			name: "siege active",
			spec: withParts(MovementTreads),
			off: func() *OffensiveState {
				o := rangedOffense(gun)
				o.Siege = Siege{Bonus: 20, ActivationTU: 500}
				return o
			}(),
			siege: true,
			want:  80,
		},
		{
			name: "ranged ceiling",
			spec: withParts(MovementTreads),
			off: func() *OffensiveState {
				o := rangedOffense(gun)
				o.RangedAccuracy = 80
				return o
			}(),
			want: 95,
		},
		{
			name: "floor",
			spec: withParts(MovementFlight),
			off: func() *OffensiveState {
				o := rangedOffense(gun)
				o.Weapons = []WeaponInstance{{Name: "Junk", DamageMin: 1, DamageMax: 1, Accuracy: -90}}
				return o
			}(),
			want: 10,
		},
		{
			name: "guided ignores everything",
			spec: withParts(MovementFlight, "Phase Shifter"),
			off:  rangedOffense(flatGun(5)),
			want: 100,
		},
		{
			name: "melee ceiling",
			spec: withParts(MovementTreads),
			off: func() *OffensiveState {
				o := meleeOffense(meleeWeapon("Mace", 5, 0))
				o.MeleeAnalysis = 40
				return o
			}(),
			want: 100,
		},
		{
			name: "melee ignores ranged avoidance",
			spec: withParts(MovementTreads, "Phase Shifter"),
			off:  meleeOffense(meleeWeapon("Mace", 5, 0)),
			want: 70,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpl := mustDefender(t, tt.spec, table)
			var tr trial
			tr.reset(script(t), tmpl, tt.off)
			tr.siegeActive = tt.siege
			tr.updateAccuracy()
			if tr.accuracy[0] != tt.want {
				t.Fatalf("accuracy = %d, want %d", tr.accuracy[0], tt.want)
			}
		})
	}
}

func TestRun_SiegeActivationRaisesAccuracy(t *testing.T) {
	tmpl := mustDefender(t, coreOnly(1000), nil)
	off := rangedOffense(WeaponInstance{Name: "Gun", DamageMin: 1, DamageMax: 1, DamageType: DamageKinetic})
	off.VolleyTime = 300
	off.Siege = Siege{Bonus: 20, ActivationTU: 500}

	var tr trial
	tr.reset(script(t, 0, 0, 0, 0), tmpl, off)
	for i := 0; i < 2; i++ {
		tr.volleys++
		tr.updateAccuracy()
		tr.clock += tr.rangedVolley()
		if !tr.siegeActive && tr.clock >= off.Siege.ActivationTU {
			tr.siegeActive = true
		}
	}
	tr.updateAccuracy()
	if tr.accuracy[0] != 80 {
		t.Fatalf("accuracy = %d, want 80", tr.accuracy[0])
	}
}

func TestDirectDamage_Modifiers(t *testing.T) {
	spec := coreOnly(1000)
	spec.Resistances = map[DamageType]int{DamageThermal: 50}
	tmpl := mustDefender(t, spec, nil)

	w := WeaponInstance{Name: "Beam", DamageMin: 10, DamageMax: 20, DamageType: DamageThermal, Critical: 5, Accelerated: true}
	off := rangedOffense(w)
	off.Kinecellerator = 50
	off.Charger = 10
	off.TargetAnalyzerCritical = 5
	off.ArmorAnalyzerChance = 20
	off.CoreAnalyzerChance = 30

	// Minimum raised to 15: draw 5 -> 20, charger -> 22, resistance -> 11.
	// Crit 10%: 9 passes. Armor 20%: 20 fails. Core 30%: 0 passes.
	rng := script(t, 5, 9, 20, 0)
	var tr trial
	tr.reset(rng, tmpl, off)
	d := tr.directDamage(&off.Weapons[0])
	rng.assertDrained()
	if d.Amount != 11 {
		t.Fatalf("amount = %d, want 11", d.Amount)
	}
	if !d.Critical || d.ArmorAnalyzed || !d.CoreAnalyzed {
		t.Fatalf("damage flags = %+v", d)
	}
	if rng.bound[0] != 6 {
		t.Fatalf("range bound = %d, want 6", rng.bound[0])
	}
}

func TestExplosionDamage_DefaultsToExplosive(t *testing.T) {
	tmpl := mustDefender(t, coreOnly(1000), nil)
	w := WeaponInstance{Name: "Grenade", ExplosionMin: 30, ExplosionMax: 30}
	var tr trial
	tr.reset(script(t), tmpl, rangedOffense(w))
	d := tr.explosionDamage(&w)
	if d.Type != DamageExplosive || !d.Explosion || d.Amount != 30 {
		t.Fatalf("explosion = %+v", d)
	}
}

// The example defender: 1000 core at coverage 100 and one 200-integrity part at
// coverage 50, shot by a guided gun dealing a flat 60 per volley.
func TestRunSingleTrial_ExampleScenarioGolden(t *testing.T) {
	tests := []struct {
		name          string
		seed          int64
		partIntegrity int
		volleys       int
		tus           int
		core          int
		part          int
	}{
		{name: "seed 42", seed: 42, partIntegrity: 200, volleys: 21, tus: 4200, core: -20, part: 0},
		{name: "seed 7", seed: 7, partIntegrity: 200, volleys: 21, tus: 4200, core: -20, part: 0},
		// A sturdier part survives, so the part hit count shows the draw order.
		{name: "seed 42 sturdy part", seed: 42, partIntegrity: 1000, volleys: 22, tus: 4400, core: -20, part: 700},
		{name: "seed 7 sturdy part", seed: 7, partIntegrity: 1000, volleys: 25, tus: 5000, core: -20, part: 520},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spec := onePart()
			spec.Parts[0].Integrity = tt.partIntegrity
			tmpl := mustDefender(t, spec, nil)
			off := rangedOffense(flatGun(60))

			got, err := RunSingleTrial(NewSeededSource(tt.seed, 0), tmpl, off)
			if err != nil {
				t.Fatalf("RunSingleTrial: %v", err)
			}
			if got.Volleys != tt.volleys || got.TUs != tt.tus || got.Reason != KillCore {
				t.Fatalf("outcome = %+v, want %d volleys, %d TU, core kill", got, tt.volleys, tt.tus)
			}

			var tr trial
			tr.reset(NewSeededSource(tt.seed, 0), tmpl, off)
			if _, err := tr.run(); err != nil {
				t.Fatalf("run: %v", err)
			}
			if tr.def.CoreIntegrity != tt.core {
				t.Fatalf("core = %d, want %d", tr.def.CoreIntegrity, tt.core)
			}
			if got := tr.def.Part(0).Integrity; got != tt.part {
				t.Fatalf("part = %d, want %d", got, tt.part)
			}
		})
	}
}
