package battle

const momentumDamagePercent = 10

// trial is the private state of one run. A worker reuses one trial value for
// all of its trials so slices are allocated once.
type trial struct {
	rng Source
	off *OffensiveState
	def DefenderBattleState

	accuracy    []int
	sneak       bool
	momentum    int
	volleys     int
	clock       int
	turns       int
	siegeActive bool
}

func (t *trial) reset(rng Source, tmpl *DefenderTemplate, off *OffensiveState) {
	t.rng = rng
	t.off = off
	tmpl.resetInto(&t.def)
	if cap(t.accuracy) < len(off.Weapons) {
		t.accuracy = make([]int, len(off.Weapons))
	}
	t.accuracy = t.accuracy[:len(off.Weapons)]
	t.sneak = off.CombatType == Melee && off.SneakAttackStrategy != SneakNone
	t.momentum = off.Momentum.Initial
	t.volleys = 0
	t.clock = 0
	t.turns = 0
	t.siegeActive = off.CombatType == Ranged && off.Siege.Bonus != 0 && off.Siege.ActivationTU <= 0
}

// RunSingleTrial runs one trial against a fresh clone of tmpl. It returns
// ErrMaxVolleysExceeded when the defender survives MaxVolleys volleys.
func RunSingleTrial(rng Source, tmpl *DefenderTemplate, off *OffensiveState) (TrialOutcome, error) {
	if err := off.Validate(); err != nil {
		return TrialOutcome{}, err
	}
	var t trial
	t.reset(rng, tmpl, off)
	return t.run()
}

func (t *trial) run() (TrialOutcome, error) {
	for t.volleys < MaxVolleys {
		t.volleys++
		t.updateAccuracy()

		var cost int
		if t.off.CombatType == Melee {
			cost = t.meleeVolley()
		} else {
			cost = t.rangedVolley()
		}
		t.clock += cost

		if t.def.Dead() {
			return TrialOutcome{Volleys: t.volleys, TUs: t.clock, Reason: t.def.killReason()}, nil
		}

		if t.off.CombatType == Ranged && !t.siegeActive && t.off.Siege.Bonus != 0 && t.clock >= t.off.Siege.ActivationTU {
			t.siegeActive = true
			t.updateAccuracy()
		}
		t.regenerate()
	}
	return TrialOutcome{}, ErrMaxVolleysExceeded
}

func (t *trial) rangedVolley() int {
	for i := range t.off.Weapons {
		if t.def.Dead() {
			break
		}
		t.fire(i)
	}
	return t.off.VolleyTime
}

func (t *trial) meleeVolley() int {
	weapons := t.off.Weapons
	t.fire(0)
	cost := t.off.VolleyTime + weapons[0].Delay
	for i := 1; i < len(weapons) && !t.def.Dead(); i++ {
		if percentChance(t.rng, t.off.FollowUpChances[i]) {
			t.fire(i)
			cost += weapons[i].Delay / 2
		}
	}
	// Actuators apply to the total because the follow-up count is only known now.
	if mod := t.off.VolleyTimeModifier; mod != 0 {
		cost = cost * (100 - mod) / 100
	}
	if cost < 0 {
		cost = 0
	}

	if t.volleys == 1 {
		if t.off.SneakAttackStrategy == SneakFirstOnly {
			t.sneak = false
		}
		t.momentum = t.off.Momentum.Bonus
	}
	return cost
}

// regenerate restores core integrity for every 100 TU turn completed since the
// last call.
func (t *trial) regenerate() {
	turns := t.clock / TurnTU
	elapsed := turns - t.turns
	if elapsed <= 0 {
		return
	}
	t.turns = turns
	if t.def.Regen <= 0 {
		return
	}
	t.def.CoreIntegrity += t.def.Regen * elapsed
	if t.def.CoreIntegrity > t.def.InitialCoreIntegrity {
		t.def.CoreIntegrity = t.def.InitialCoreIntegrity
	}
}

// fire resolves every projectile of weapon i.
func (t *trial) fire(i int) {
	w := &t.off.Weapons[i]
	guaranteed := t.sneak && t.off.CombatType == Melee
	for p := 0; p < w.projectiles(); p++ {
		if t.def.Dead() {
			return
		}
		if !guaranteed && !percentChance(t.rng, t.accuracy[i]) {
			continue
		}
		if w.DamageMax > 0 {
			t.def.ApplyDamage(t.rng, t.directDamage(w))
		}
		if w.ExplosionMax > 0 && !t.def.Dead() {
			t.def.ApplyDamage(t.rng, t.explosionDamage(w))
		}
	}
}

func (t *trial) directDamage(w *WeaponInstance) Damage {
	off := t.off
	lo, hi := w.DamageMin, w.DamageMax
	if w.Accelerated && off.Kinecellerator > 0 {
		lo = lo * (100 + off.Kinecellerator) / 100
		if lo > hi {
			lo = hi
		}
	}
	amount := randRange(t.rng, lo, hi)
	if off.Charger > 0 {
		amount = amount * (100 + off.Charger) / 100
	}
	if off.CombatType == Melee {
		if t.momentum > 0 {
			amount = amount * (100 + t.momentum*momentumDamagePercent) / 100
		}
		if t.sneak {
			amount *= 2
		}
	}
	amount = t.def.resist(w.DamageType, amount)

	d := Damage{Amount: amount, Type: w.DamageType, Overflow: w.Overflow}
	if w.DamageType != DamageExplosive {
		d.Critical = percentChance(t.rng, w.Critical+off.TargetAnalyzerCritical)
	}
	d.ArmorAnalyzed = percentChance(t.rng, off.ArmorAnalyzerChance)
	if w.DamageType != DamageExplosive {
		d.CoreAnalyzed = percentChance(t.rng, off.CoreAnalyzerChance)
	}
	return d
}

func (t *trial) explosionDamage(w *WeaponInstance) Damage {
	typ := w.ExplosionType
	if typ == DamageNone {
		typ = DamageExplosive
	}
	amount := randRange(t.rng, w.ExplosionMin, w.ExplosionMax)
	return Damage{Amount: t.def.resist(typ, amount), Type: typ, Explosion: true}
}
