package battle

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrMaxVolleysExceeded reports a trial that never reached a kill.
	ErrMaxVolleysExceeded = errors.New("maximum volley count exceeded")
	// ErrNoWeapons reports an offensive state without weapons.
	ErrNoWeapons = errors.New("at least one weapon is required")
	// ErrInvalidTrials reports a non-positive trial count.
	ErrInvalidTrials = errors.New("trial count must be greater than zero")
	// ErrInvalidDefender reports a defender that cannot be simulated.
	ErrInvalidDefender = errors.New("invalid defender")
	// ErrUnknownExternalReduction reports an external damage reduction name missing from the table.
	ErrUnknownExternalReduction = errors.New("unknown external damage reduction")
	// ErrUnknownDamageType reports a damage type name that cannot be parsed.
	ErrUnknownDamageType = errors.New("unknown damage type")
)

// MaxVolleys caps a single trial. A loadout that needs more volleys than this
// is treated as unable to win.
const MaxVolleys = 100000

// TurnTU is the number of time units in one regeneration turn.
const TurnTU = 100

// DamageType identifies how damage interacts with targeting and side effects.
type DamageType int

const (
	DamageNone DamageType = iota
	DamageElectromagnetic
	DamageEntropic
	DamageExplosive
	DamageImpact
	DamageKinetic
	DamagePhasic
	DamagePiercing
	DamageSlashing
	DamageThermal
)

var damageTypeNames = [...]string{
	DamageNone:            "None",
	DamageElectromagnetic: "Electromagnetic",
	DamageEntropic:        "Entropic",
	DamageExplosive:       "Explosive",
	DamageImpact:          "Impact",
	DamageKinetic:         "Kinetic",
	DamagePhasic:          "Phasic",
	DamagePiercing:        "Piercing",
	DamageSlashing:        "Slashing",
	DamageThermal:         "Thermal",
}

// String returns the display name of the damage type.
func (d DamageType) String() string {
	if d < 0 || int(d) >= len(damageTypeNames) {
		return fmt.Sprintf("DamageType(%d)", int(d))
	}
	return damageTypeNames[d]
}

// ParseDamageType parses a damage type name. Matching is case-insensitive and
// accepts the common "EM" abbreviation.
func ParseDamageType(value string) (DamageType, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return DamageNone, nil
	}
	if normalized == "em" {
		return DamageElectromagnetic, nil
	}
	for i, name := range damageTypeNames {
		if strings.ToLower(name) == normalized {
			return DamageType(i), nil
		}
	}
	return DamageNone, fmt.Errorf("%w: %q", ErrUnknownDamageType, value)
}

// CombatType selects between ranged volleys and melee attack chains.
type CombatType int

const (
	Ranged CombatType = iota
	Melee
)

// String returns the lowercase combat type name.
func (c CombatType) String() string {
	if c == Melee {
		return "melee"
	}
	return "ranged"
}

// Slot is the equipment slot a part occupies.
type Slot int

const (
	SlotCore Slot = iota
	SlotPower
	SlotPropulsion
	SlotUtility
	SlotWeapon

	slotCount
)

var slotNames = [...]string{
	SlotCore:       "core",
	SlotPower:      "power",
	SlotPropulsion: "propulsion",
	SlotUtility:    "utility",
	SlotWeapon:     "weapon",
}

// String returns the lowercase slot name.
func (s Slot) String() string {
	if s < 0 || s >= slotCount {
		return fmt.Sprintf("Slot(%d)", int(s))
	}
	return slotNames[s]
}

// ParseSlot parses a slot name.
func ParseSlot(value string) (Slot, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	for i, name := range slotNames {
		if name == normalized {
			return Slot(i), nil
		}
	}
	return 0, fmt.Errorf("unknown slot %q", value)
}

// Movement is the defender's propulsion class.
type Movement int

const (
	MovementCore Movement = iota
	MovementLegs
	MovementWheels
	MovementTreads
	MovementHover
	MovementFlight
)

var movementNames = [...]string{
	MovementCore:   "core",
	MovementLegs:   "legs",
	MovementWheels: "wheels",
	MovementTreads: "treads",
	MovementHover:  "hover",
	MovementFlight: "flight",
}

// String returns the lowercase movement name.
func (m Movement) String() string {
	if m < 0 || int(m) >= len(movementNames) {
		return fmt.Sprintf("Movement(%d)", int(m))
	}
	return movementNames[m]
}

// ParseMovement parses a movement name. An empty value means core movement.
func ParseMovement(value string) (Movement, error) {
	normalized := strings.ToLower(strings.TrimSpace(value))
	if normalized == "" {
		return MovementCore, nil
	}
	for i, name := range movementNames {
		if name == normalized {
			return Movement(i), nil
		}
	}
	return 0, fmt.Errorf("unknown movement %q", value)
}

// Immunities is a set of defender immunities.
type Immunities uint8

const (
	ImmuneCriticals Immunities = 1 << iota
	ImmuneCoring
	ImmuneDismemberment
)

// Has reports whether every immunity in other is present.
func (i Immunities) Has(other Immunities) bool {
	return i&other == other
}

// blocksCriticals reports whether critical hits and core analysis are ignored.
func (i Immunities) blocksCriticals() bool {
	return i&(ImmuneCriticals|ImmuneCoring) != 0
}

// ParseImmunity parses a single immunity name.
func ParseImmunity(value string) (Immunities, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "criticals":
		return ImmuneCriticals, nil
	case "coring":
		return ImmuneCoring, nil
	case "dismemberment":
		return ImmuneDismemberment, nil
	default:
		return 0, fmt.Errorf("unknown immunity %q", value)
	}
}

// WeaponInstance is the resolved firing profile of one equipped weapon.
type WeaponInstance struct {
	Name          string
	DamageMin     int
	DamageMax     int
	DamageType    DamageType
	ExplosionMin  int
	ExplosionMax  int
	ExplosionType DamageType
	Critical      int
	Projectiles   int
	Energy        int
	Heat          int
	// Accuracy is the weapon's intrinsic targeting modifier.
	Accuracy int
	Delay    int

	Accelerated bool
	Overflow    bool
	Guided      bool
}

func (w WeaponInstance) projectiles() int {
	if w.Projectiles < 1 {
		return 1
	}
	return w.Projectiles
}

// PartTemplate describes one defender part before a trial starts.
type PartTemplate struct {
	Name       string
	Slot       Slot
	Coverage   int
	Integrity  int
	Protection bool
}

// SneakAttackStrategy controls when melee sneak attacks apply.
type SneakAttackStrategy int

const (
	SneakNone SneakAttackStrategy = iota
	SneakFirstOnly
	SneakAll
)

// Momentum is melee momentum: Initial applies to the first volley of a trial
// and Bonus to every later one.
type Momentum struct {
	Bonus   int
	Initial int
}

// Siege describes a ranged siege stance that adds Bonus accuracy once the
// trial clock reaches ActivationTU.
type Siege struct {
	Bonus        int
	ActivationTU int
}

// OffensiveState is the attacker configuration shared by every trial of a batch.
type OffensiveState struct {
	CombatType CombatType
	Weapons    []WeaponInstance
	Momentum   Momentum
	// FollowUpChances holds the melee follow-up percent per weapon index.
	// Index 0 is the primary weapon and is ignored.
	FollowUpChances []int
	Siege           Siege
	// VolleyTime is the ranged volley cost, or the melee base attack cost.
	VolleyTime int
	// VolleyTimeModifier is the percent of melee volley time removed by actuators.
	VolleyTimeModifier  int
	SneakAttackStrategy SneakAttackStrategy

	MeleeAnalysis          int
	RangedAccuracy         int
	DistanceBonus          int
	Charger                int
	Kinecellerator         int
	ArmorAnalyzerChance    int
	CoreAnalyzerChance     int
	TargetAnalyzerCritical int
}

// Validate checks the offensive state for values the trial loop relies on.
func (o *OffensiveState) Validate() error {
	if o == nil || len(o.Weapons) == 0 {
		return ErrNoWeapons
	}
	if o.CombatType == Melee && len(o.FollowUpChances) != len(o.Weapons) {
		return fmt.Errorf("follow-up chances: got %d, want %d", len(o.FollowUpChances), len(o.Weapons))
	}
	for _, w := range o.Weapons {
		if w.DamageMax < w.DamageMin || w.ExplosionMax < w.ExplosionMin {
			return fmt.Errorf("weapon %q has an inverted damage range", w.Name)
		}
		if w.DamageMax <= 0 && w.ExplosionMax <= 0 {
			return fmt.Errorf("weapon %q deals no damage", w.Name)
		}
	}
	return nil
}

// VolleyCost sums the energy and heat of firing every weapon once.
func (o *OffensiveState) VolleyCost() (energy, heat int) {
	for _, w := range o.Weapons {
		energy += w.Energy
		heat += w.Heat
	}
	return energy, heat
}

// KillReason identifies which terminal condition ended a trial.
type KillReason int

const (
	KillCore KillReason = iota
	KillCorruption
)

// String returns the kill reason name.
func (k KillReason) String() string {
	if k == KillCorruption {
		return "corruption"
	}
	return "core"
}

// TrialOutcome is the result of one completed trial.
type TrialOutcome struct {
	Volleys int
	TUs     int
	Reason  KillReason
}
