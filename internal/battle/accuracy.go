package battle

const (
	rangedBaseAccuracy = 60
	meleeBaseAccuracy  = 70
	minAccuracy        = 10
	maxRangedAccuracy  = 95
	maxMeleeAccuracy   = 100
	guidedAccuracy     = 100

	hoverPenalty  = 5
	flightPenalty = 10
)

// movementPenalty is the accuracy lost against evasive propulsion.
func movementPenalty(m Movement) int {
	switch m {
	case MovementFlight:
		return flightPenalty
	case MovementHover:
		return hoverPenalty
	default:
		return 0
	}
}

// followUpAccuracy is the accuracy modifier for a non-primary melee weapon:
// faster (negative delay) weapons gain accuracy, slower ones lose it.
func followUpAccuracy(delay int) int {
	return -delay / 10
}

// updateAccuracy recomputes every weapon's hit chance from the current
// defender and clock state.
func (t *trial) updateAccuracy() {
	off := t.off
	melee := off.CombatType == Melee
	base, ceiling := rangedBaseAccuracy, maxRangedAccuracy
	if melee {
		base, ceiling = meleeBaseAccuracy, maxMeleeAccuracy
	}
	bonus := t.perWeaponBonus()

	for i, w := range off.Weapons {
		if w.Guided {
			t.accuracy[i] = guidedAccuracy
			continue
		}
		accuracy := base + w.Accuracy + bonus
		if melee && i > 0 {
			accuracy += followUpAccuracy(w.Delay)
		}
		if accuracy < minAccuracy {
			accuracy = minAccuracy
		}
		if accuracy > ceiling {
			accuracy = ceiling
		}
		t.accuracy[i] = accuracy
	}
}

func (t *trial) perWeaponBonus() int {
	def := &t.def
	bonus := -movementPenalty(def.Movement)
	if avoid, ok := firstAvailable(&def.Defense.Avoidance, def.parts); ok {
		if def.Movement == MovementLegs {
			bonus -= avoid.Legs
		} else {
			bonus -= avoid.Other
		}
	}

	if t.off.CombatType == Melee {
		return bonus + t.off.MeleeAnalysis
	}
	bonus += t.off.RangedAccuracy + t.off.DistanceBonus
	if t.siegeActive {
		bonus += t.off.Siege.Bonus
	}
	if avoid, ok := firstAvailable(&def.Defense.RangedAvoidance, def.parts); ok {
		bonus -= avoid.Value
	}
	return bonus
}
