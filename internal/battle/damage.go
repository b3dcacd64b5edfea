package battle

const (
	// protectionCriticalPercent replaces a critical hit on a protection part.
	protectionCriticalPercent = 120
	maxExplosionChunks        = 3
)

// Damage is one damage event produced by a weapon hit.
type Damage struct {
	Amount int
	Type   DamageType
	// Explosion splits the damage into chunks like Explosive damage does.
	Explosion     bool
	Critical      bool
	ArmorAnalyzed bool
	// CoreAnalyzed is the pre-rolled core analyzer proc.
	CoreAnalyzed bool
	// Overflow allows excess damage from destroyed parts to carry on.
	Overflow bool
}

type chunk struct {
	amount        int
	typ           DamageType
	critical      bool
	armorAnalyzed bool
	forceCore     bool
	overflowed    bool
	canOverflow   bool
}

// ApplyDamage splits d into chunks, applies the best available damage
// reduction and resolves every chunk against the defender.
func (s *DefenderBattleState) ApplyDamage(rng Source, d Damage) {
	if d.Amount <= 0 {
		return
	}

	var buf [maxExplosionChunks]chunk
	chunks := buf[:0]
	switch {
	case d.Type == DamageExplosive || d.Explosion:
		count := 1 + rng.IntN(maxExplosionChunks)
		per := d.Amount / count
		for i := 0; i < count; i++ {
			chunks = append(chunks, chunk{amount: per, typ: d.Type})
		}
	case d.CoreAnalyzed && !s.Immunities.blocksCriticals():
		half := d.Amount / 2
		chunks = append(chunks,
			chunk{amount: half, typ: d.Type, critical: d.Critical, armorAnalyzed: d.ArmorAnalyzed, canOverflow: d.Overflow},
			chunk{amount: half, typ: d.Type, forceCore: true, canOverflow: d.Overflow},
		)
	default:
		chunks = append(chunks, chunk{
			amount:        d.Amount,
			typ:           d.Type,
			critical:      d.Critical,
			armorAnalyzed: d.ArmorAnalyzed,
			canOverflow:   d.Overflow,
		})
	}

	reduction, reduced := firstAvailable(&s.Defense.DamageReduction, s.parts)
	for _, c := range chunks {
		if reduced {
			c.amount = int(float64(c.amount) * reduction.Multiplier)
		}
		s.applyChunk(rng, c)
		if s.Dead() {
			return
		}
	}
}

func (s *DefenderBattleState) applyChunk(rng Source, c chunk) {
	if c.amount <= 0 {
		return
	}
	original := c.amount
	target := s.ResolveHit(rng, HitRequest{
		Type:          c.typ,
		Overflow:      c.overflowed,
		ForceCore:     c.forceCore,
		ArmorAnalyzed: c.armorAnalyzed,
	})
	if target.Core {
		s.damageCore(c)
	} else {
		s.damagePart(rng, target.Part, c)
	}
	if c.typ == DamageElectromagnetic {
		s.corruptFromElectromagnetic(rng, original)
	}
}

func (s *DefenderBattleState) damageCore(c chunk) {
	critical := c.critical && !s.Immunities.blocksCriticals()
	damage := c.amount
	if shield, ok := firstAvailable(&s.Defense.Shielding[SlotCore], s.parts); ok {
		critical = false
		damage -= s.absorb(shield, damage)
	}
	if critical {
		s.CoreIntegrity = 0
		return
	}
	s.CoreIntegrity -= damage
}

func (s *DefenderBattleState) damagePart(rng Source, id int, c chunk) {
	part := &s.parts[id]
	critical := c.critical && !s.Immunities.blocksCriticals()
	shield, shielded := firstAvailable(&s.Defense.Shielding[part.Slot], s.parts)
	if shielded {
		critical = false
	}

	damage := c.amount
	if part.Protection && critical {
		critical = false
		damage = damage * protectionCriticalPercent / 100
	}
	if multiplier, ok := s.Defense.SelfDamageReduction[id]; ok {
		damage = int(float64(damage) * multiplier)
	}
	// A part shielding its own slot would absorb onto itself, so it takes the
	// whole hit.
	if shielded && shield.Part != id {
		damage -= s.absorb(shield, damage)
	}

	destroyed := critical || part.Integrity <= damage
	if !destroyed && c.typ == DamageSlashing && !s.Immunities.Has(ImmuneDismemberment) {
		destroyed = percentChance(rng, damage/3)
	}
	if !destroyed {
		part.Integrity -= damage
		return
	}

	excess := damage - part.Integrity
	s.destroyPart(id)
	if c.typ == DamageImpact {
		s.addCorruption(s.resist(DamageElectromagnetic, randRange(rng, 25, 150)))
	}
	if excess > 0 && !part.Protection && !critical && c.canOverflow {
		s.applyChunk(rng, chunk{
			amount:      excess,
			typ:         c.typ,
			overflowed:  true,
			canOverflow: true,
		})
	}
}

// absorb moves the shield's share of damage onto the shielding part and
// returns the absorbed amount.
func (s *DefenderBattleState) absorb(shield ShieldEntry, damage int) int {
	absorbed := int(float64(damage) * shield.Percent)
	if absorbed <= 0 {
		return 0
	}
	part := &s.parts[shield.Part]
	part.Integrity -= absorbed
	if part.Integrity <= 0 {
		s.destroyPart(shield.Part)
	}
	return absorbed
}

func (s *DefenderBattleState) corruptFromElectromagnetic(rng Source, damage int) {
	if ignore, ok := firstAvailable(&s.Defense.CorruptionIgnore, s.parts); ok && percentChance(rng, ignore.Chance) {
		return
	}
	s.addCorruption(damage * randRange(rng, 50, 150) / 100)
}
