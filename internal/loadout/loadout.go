// Package loadout turns a user configuration into the attacker and defender
// values the battle engine runs.
package loadout

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/louisbranch/combatsim/internal/battle"
	"github.com/louisbranch/combatsim/internal/catalog"
	apperrors "github.com/louisbranch/combatsim/internal/platform/errors"
)

// DefaultTrials is used when a configuration leaves the trial count unset.
const DefaultTrials = 100000

const (
	meleeVolleyTime = 100
	// maxVolleyTime is the base ranged volley time for six or more weapons.
	maxVolleyTime = 400

	followUpBaseChance = 20

	siegeActivationTU  = 500
	standardSiegeBonus = 20
	highSiegeBonus     = 30

	maxDistanceBonusRange = 6
	distanceBonusPerTile  = 3
)

// rangedVolleyTimes is the base ranged volley time by weapon count.
var rangedVolleyTimes = [...]int{0, 200, 300, 325, 350, 375}

// Siege modes.
const (
	SiegeNone     = "none"
	SiegeStandard = "standard"
	SiegeHigh     = "high"
)

// Sneak attack strategies.
const (
	SneakNone  = "none"
	SneakFirst = "first"
	SneakAll   = "all"
)

// Config is a user supplied battle setup.
type Config struct {
	Name              string   `yaml:"name,omitempty" json:"name,omitempty"`
	Defender          string   `yaml:"defender" json:"defender"`
	ExternalReduction string   `yaml:"external_reduction,omitempty" json:"external_reduction,omitempty"`
	Weapons           []string `yaml:"weapons" json:"weapons"`
	Bonuses           Bonuses  `yaml:"bonuses,omitempty" json:"bonuses,omitempty"`
	// Distance is the tile distance to the defender for ranged attacks.
	Distance    int      `yaml:"distance,omitempty" json:"distance,omitempty"`
	Siege       string   `yaml:"siege,omitempty" json:"siege,omitempty"`
	SneakAttack string   `yaml:"sneak_attack,omitempty" json:"sneak_attack,omitempty"`
	Momentum    Momentum `yaml:"momentum,omitempty" json:"momentum,omitempty"`
	Trials      int      `yaml:"trials,omitempty" json:"trials,omitempty"`
	Seed        *int64   `yaml:"seed,omitempty" json:"seed,omitempty"`
}

// Bonuses are the attacker's utility bonuses, all in percent.
type Bonuses struct {
	Targeting      int `yaml:"targeting,omitempty" json:"targeting,omitempty"`
	MeleeAnalysis  int `yaml:"melee_analysis,omitempty" json:"melee_analysis,omitempty"`
	Charger        int `yaml:"charger,omitempty" json:"charger,omitempty"`
	Kinecellerator int `yaml:"kinecellerator,omitempty" json:"kinecellerator,omitempty"`
	ArmorAnalyzer  int `yaml:"armor_analyzer,omitempty" json:"armor_analyzer,omitempty"`
	CoreAnalyzer   int `yaml:"core_analyzer,omitempty" json:"core_analyzer,omitempty"`
	TargetAnalyzer int `yaml:"target_analyzer,omitempty" json:"target_analyzer,omitempty"`
	Actuators      int `yaml:"actuators,omitempty" json:"actuators,omitempty"`
	Cyclers        int `yaml:"cyclers,omitempty" json:"cyclers,omitempty"`
}

// Momentum is the melee momentum at the first volley and afterwards.
type Momentum struct {
	Initial int `yaml:"initial,omitempty" json:"initial,omitempty"`
	Bonus   int `yaml:"bonus,omitempty" json:"bonus,omitempty"`
}

// Plan is a built configuration ready to run.
type Plan struct {
	Name     string
	Defender *battle.DefenderTemplate
	Offense  *battle.OffensiveState
	Trials   int
	Seed     *int64
}

// Parse decodes a YAML configuration. Unknown fields are rejected.
func Parse(data []byte) (Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, apperrors.Wrap(apperrors.CodeLoadoutInvalidOption, fmt.Sprintf("decode loadout: %v", err), err)
	}
	return cfg, nil
}

// Load reads a YAML configuration file.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read loadout: %w", err)
	}
	return Parse(data)
}

// Build resolves cfg against cat.
func Build(cat *catalog.Catalog, cfg Config) (Plan, error) {
	trials := cfg.Trials
	if trials == 0 {
		trials = DefaultTrials
	}
	if trials < 0 {
		return Plan{}, apperrors.Wrap(apperrors.CodeLoadoutInvalidTrials, fmt.Sprintf("trials %d must be positive", cfg.Trials), battle.ErrInvalidTrials)
	}

	off, err := buildOffense(cat, cfg)
	if err != nil {
		return Plan{}, err
	}

	bot, err := cat.Bot(cfg.Defender)
	if err != nil {
		return Plan{}, err
	}
	spec := bot.Spec
	spec.ExternalReduction = strings.TrimSpace(cfg.ExternalReduction)
	defender, err := battle.NewDefender(spec, cat.Capabilities())
	if err != nil {
		return Plan{}, apperrors.Wrap(apperrors.CodeLoadoutInvalidDefender, err.Error(), err)
	}

	name := strings.TrimSpace(cfg.Name)
	if name == "" {
		name = defaultName(defender.Name, off)
	}
	return Plan{Name: name, Defender: defender, Offense: off, Trials: trials, Seed: cfg.Seed}, nil
}

func defaultName(defender string, off *battle.OffensiveState) string {
	names := make([]string, len(off.Weapons))
	for i, w := range off.Weapons {
		names[i] = w.Name
	}
	return strings.Join(names, " + ") + " vs " + defender
}

func buildOffense(cat *catalog.Catalog, cfg Config) (*battle.OffensiveState, error) {
	if len(cfg.Weapons) == 0 {
		return nil, apperrors.Wrap(apperrors.CodeLoadoutNoWeapons, battle.ErrNoWeapons.Error(), battle.ErrNoWeapons)
	}
	off := &battle.OffensiveState{}
	for i, name := range cfg.Weapons {
		w, err := cat.Weapon(name)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			off.CombatType = w.Combat
		} else if w.Combat != off.CombatType {
			return nil, apperrors.WithMetadata(apperrors.CodeLoadoutMixedCombat,
				fmt.Sprintf("%s weapon %q cannot be combined with %s weapons", w.Combat, w.Name, off.CombatType),
				map[string]string{"Weapon": w.Name})
		}
		off.Weapons = append(off.Weapons, w.Instance)
	}

	b := cfg.Bonuses
	for _, v := range []struct {
		name  string
		value int
	}{
		{"charger", b.Charger},
		{"kinecellerator", b.Kinecellerator},
		{"armor_analyzer", b.ArmorAnalyzer},
		{"core_analyzer", b.CoreAnalyzer},
		{"target_analyzer", b.TargetAnalyzer},
		{"actuators", b.Actuators},
		{"cyclers", b.Cyclers},
		{"distance", cfg.Distance},
		{"momentum.initial", cfg.Momentum.Initial},
		{"momentum.bonus", cfg.Momentum.Bonus},
	} {
		if v.value < 0 {
			return nil, invalidOption(v.name, fmt.Sprintf("%s must not be negative", v.name))
		}
	}
	if b.Actuators >= 100 || b.Cyclers >= 100 {
		return nil, invalidOption("bonuses", "actuators and cyclers must be below 100%")
	}

	off.Charger = b.Charger
	off.Kinecellerator = b.Kinecellerator
	off.ArmorAnalyzerChance = b.ArmorAnalyzer
	off.CoreAnalyzerChance = b.CoreAnalyzer
	off.TargetAnalyzerCritical = b.TargetAnalyzer

	if off.CombatType == battle.Melee {
		if err := configureMelee(off, cfg); err != nil {
			return nil, err
		}
	} else {
		if err := configureRanged(off, cfg); err != nil {
			return nil, err
		}
	}
	return off, nil
}

func configureRanged(off *battle.OffensiveState, cfg Config) error {
	b := cfg.Bonuses
	if b.MeleeAnalysis != 0 || b.Actuators != 0 {
		return invalidOption("bonuses", "melee bonuses require melee weapons")
	}
	if s := normalize(cfg.SneakAttack); s != "" && s != SneakNone {
		return invalidOption("sneak_attack", "sneak attacks require melee weapons")
	}
	if cfg.Momentum != (Momentum{}) {
		return invalidOption("momentum", "momentum requires melee weapons")
	}

	off.RangedAccuracy = b.Targeting
	off.DistanceBonus = DistanceBonus(cfg.Distance)
	off.VolleyTime = RangedVolleyTime(off.Weapons, b.Cyclers)

	switch normalize(cfg.Siege) {
	case "", SiegeNone:
	case SiegeStandard:
		off.Siege = battle.Siege{Bonus: standardSiegeBonus, ActivationTU: siegeActivationTU}
	case SiegeHigh:
		off.Siege = battle.Siege{Bonus: highSiegeBonus, ActivationTU: siegeActivationTU}
	default:
		return invalidOption("siege", fmt.Sprintf("unknown siege mode %q", cfg.Siege))
	}
	return nil
}

func configureMelee(off *battle.OffensiveState, cfg Config) error {
	b := cfg.Bonuses
	if b.Targeting != 0 || b.Cyclers != 0 || cfg.Distance != 0 {
		return invalidOption("bonuses", "ranged bonuses require ranged weapons")
	}
	if s := normalize(cfg.Siege); s != "" && s != SiegeNone {
		return invalidOption("siege", "siege mode requires ranged weapons")
	}

	off.MeleeAnalysis = b.MeleeAnalysis
	off.VolleyTime = meleeVolleyTime
	off.VolleyTimeModifier = b.Actuators
	off.FollowUpChances = FollowUpChances(off.Weapons)
	off.Momentum = battle.Momentum{Initial: cfg.Momentum.Initial, Bonus: cfg.Momentum.Bonus}

	switch normalize(cfg.SneakAttack) {
	case "", SneakNone:
		off.SneakAttackStrategy = battle.SneakNone
	case SneakFirst:
		off.SneakAttackStrategy = battle.SneakFirstOnly
	case SneakAll:
		off.SneakAttackStrategy = battle.SneakAll
	default:
		return invalidOption("sneak_attack", fmt.Sprintf("unknown sneak attack strategy %q", cfg.SneakAttack))
	}
	return nil
}

// RangedVolleyTime is the TU cost of one ranged volley: a base time by weapon
// count plus the average weapon delay, reduced by cyclers percent.
func RangedVolleyTime(weapons []battle.WeaponInstance, cyclers int) int {
	if len(weapons) == 0 {
		return 0
	}
	base := maxVolleyTime
	if len(weapons) < len(rangedVolleyTimes) {
		base = rangedVolleyTimes[len(weapons)]
	}
	delay := 0
	for _, w := range weapons {
		delay += w.Delay
	}
	total := base + delay/len(weapons)
	total = total * (100 - cyclers) / 100
	if total < 0 {
		return 0
	}
	return total
}

// FollowUpChances returns the follow-up percent for each melee weapon. Index
// zero is the primary weapon and always zero.
func FollowUpChances(weapons []battle.WeaponInstance) []int {
	chances := make([]int, len(weapons))
	if len(weapons) == 0 {
		return chances
	}
	primary := weapons[0].Delay
	for i := 1; i < len(weapons); i++ {
		chance := followUpBaseChance + (primary-weapons[i].Delay)/10
		chances[i] = min(max(chance, 0), 100)
	}
	return chances
}

// DistanceBonus is the ranged accuracy bonus for firing at close range.
func DistanceBonus(distance int) int {
	if distance <= 0 || distance >= maxDistanceBonusRange {
		return 0
	}
	return distanceBonusPerTile * (maxDistanceBonusRange - distance)
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func invalidOption(field, message string) error {
	return apperrors.WithMetadata(apperrors.CodeLoadoutInvalidOption, message, map[string]string{"Field": field})
}
