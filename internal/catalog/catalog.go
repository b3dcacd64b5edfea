// Package catalog loads weapon, part and bot definitions together with the
// defensive capability tables the battle engine resolves parts against.
//
// Catalogs are YAML documents. Default returns the embedded catalog; Load and
// Parse read user catalogs, which Merge overlays onto another catalog by name.
package catalog

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/louisbranch/combatsim/internal/battle"
	apperrors "github.com/louisbranch/combatsim/internal/platform/errors"
)

//go:embed default.yaml
var defaultData []byte

var (
	// ErrUnknownItem reports a weapon or part name missing from the catalog.
	ErrUnknownItem = errors.New("unknown item")
	// ErrUnknownBot reports a bot name missing from the catalog.
	ErrUnknownBot = errors.New("unknown bot")
)

// Weapon is a catalog weapon with its resolved firing profile.
type Weapon struct {
	Name     string
	Combat   battle.CombatType
	Instance battle.WeaponInstance
}

// Bot is a catalog defender definition.
type Bot struct {
	Name  string
	Class string
	Spec  battle.DefenderSpec
}

// Catalog is an immutable set of definitions keyed by case-insensitive name.
type Catalog struct {
	weapons      map[string]Weapon
	parts        map[string]battle.PartTemplate
	bots         map[string]fileBot
	capabilities battle.CapabilityTable
}

var loadDefault = sync.OnceValues(func() (*Catalog, error) {
	return Parse(defaultData)
})

// Default returns the embedded catalog.
func Default() (*Catalog, error) {
	cat, err := loadDefault()
	if err != nil {
		return nil, fmt.Errorf("default catalog: %w", err)
	}
	return cat, nil
}

// Load reads a catalog file from path.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	cat, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	return cat, nil
}

// Parse decodes a YAML catalog.
func Parse(data []byte) (*Catalog, error) {
	var file fileCatalog
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, apperrors.Wrap(apperrors.CodeCatalogInvalid, fmt.Sprintf("decode catalog: %v", err), err)
	}
	cat := &Catalog{
		weapons: map[string]Weapon{},
		parts:   map[string]battle.PartTemplate{},
		bots:    map[string]fileBot{},
	}
	if err := cat.addCapabilities(file.Capabilities); err != nil {
		return nil, invalid(err)
	}
	for _, w := range file.Weapons {
		weapon, err := parseWeapon(w)
		if err != nil {
			return nil, invalid(err)
		}
		cat.weapons[key(weapon.Name)] = weapon
	}
	for _, p := range file.Parts {
		part, err := parsePart(p)
		if err != nil {
			return nil, invalid(err)
		}
		cat.parts[key(part.Name)] = part
	}
	for _, b := range file.Bots {
		if strings.TrimSpace(b.Name) == "" {
			return nil, invalid(errors.New("bot name is required"))
		}
		cat.bots[key(b.Name)] = b
	}
	// Bots may reference parts defined in another catalog, so they are only
	// resolved on lookup.
	return cat, nil
}

func invalid(err error) error {
	return apperrors.Wrap(apperrors.CodeCatalogInvalid, err.Error(), err)
}

func key(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (c *Catalog) addCapabilities(file fileCapabilities) error {
	table := &c.capabilities
	if len(file.Avoidance) > 0 {
		table.Avoidance = make(map[string]battle.Avoidance, len(file.Avoidance))
	}
	for name, avoid := range file.Avoidance {
		legs, err := ParsePercent(avoid.Legs)
		if err != nil {
			return fmt.Errorf("avoidance %q: %w", name, err)
		}
		other, err := ParsePercent(avoid.Other)
		if err != nil {
			return fmt.Errorf("avoidance %q: %w", name, err)
		}
		table.Avoidance[name] = battle.Avoidance{Legs: legs, Other: other}
	}

	var err error
	if table.CorruptionIgnore, err = percentMap(file.CorruptionIgnore); err != nil {
		return fmt.Errorf("corruption ignore: %w", err)
	}
	if table.RangedAvoidance, err = percentMap(file.RangedAvoidance); err != nil {
		return fmt.Errorf("ranged avoidance: %w", err)
	}

	for _, r := range file.DamageReduction {
		if strings.TrimSpace(r.Name) == "" {
			return errors.New("damage reduction name is required")
		}
		if r.Multiplier < 0 || r.Multiplier > 1 {
			return fmt.Errorf("damage reduction %q multiplier %v out of range", r.Name, r.Multiplier)
		}
		table.DamageReduction = append(table.DamageReduction, battle.Reduction{Name: r.Name, Multiplier: r.Multiplier})
	}

	if len(file.SelfDamageReduction) > 0 {
		table.SelfDamageReduction = make(map[string]float64, len(file.SelfDamageReduction))
	}
	for name, multiplier := range file.SelfDamageReduction {
		if multiplier < 0 {
			return fmt.Errorf("self damage reduction %q must not be negative", name)
		}
		table.SelfDamageReduction[name] = multiplier
	}

	if len(file.Shielding) > 0 {
		table.Shielding = make(map[string]battle.Shielding, len(file.Shielding))
	}
	for name, shield := range file.Shielding {
		slot, err := battle.ParseSlot(shield.Slot)
		if err != nil {
			return fmt.Errorf("shielding %q: %w", name, err)
		}
		percent, err := parseFraction(shield.Percent)
		if err != nil {
			return fmt.Errorf("shielding %q: %w", name, err)
		}
		table.Shielding[name] = battle.Shielding{Slot: slot, Percent: percent}
	}
	return nil
}

func percentMap(values map[string]string) (map[string]int, error) {
	if len(values) == 0 {
		return nil, nil
	}
	out := make(map[string]int, len(values))
	for name, value := range values {
		n, err := ParsePercent(value)
		if err != nil {
			return nil, fmt.Errorf("%q: %w", name, err)
		}
		out[name] = n
	}
	return out, nil
}

func parseWeapon(w fileWeapon) (Weapon, error) {
	name := strings.TrimSpace(w.Name)
	if name == "" {
		return Weapon{}, errors.New("weapon name is required")
	}
	fail := func(err error) (Weapon, error) {
		return Weapon{}, fmt.Errorf("weapon %q: %w", name, err)
	}

	combat := battle.Ranged
	switch strings.ToLower(strings.TrimSpace(w.Combat)) {
	case "", "ranged":
	case "melee":
		combat = battle.Melee
	default:
		return fail(fmt.Errorf("unknown combat type %q", w.Combat))
	}

	inst := battle.WeaponInstance{
		Name:        name,
		Projectiles: w.Projectiles,
		Energy:      w.Energy,
		Heat:        w.Heat,
		Delay:       w.Delay,
		Accelerated: w.Accelerated,
		Overflow:    w.Overflow,
		Guided:      w.Guided,
	}
	var err error
	if inst.DamageMin, inst.DamageMax, err = ParseRange(w.Damage); err != nil {
		return fail(err)
	}
	if inst.DamageType, err = battle.ParseDamageType(w.Type); err != nil {
		return fail(err)
	}
	if inst.ExplosionMin, inst.ExplosionMax, err = ParseRange(w.Explosion); err != nil {
		return fail(err)
	}
	if inst.ExplosionType, err = battle.ParseDamageType(w.ExplosionType); err != nil {
		return fail(err)
	}
	if inst.Critical, err = ParsePercent(w.Critical); err != nil {
		return fail(err)
	}
	if inst.Accuracy, err = ParsePercent(w.Targeting); err != nil {
		return fail(err)
	}
	if inst.DamageMax == 0 && inst.ExplosionMax == 0 {
		return fail(errors.New("no damage"))
	}
	if inst.DamageMax > 0 && inst.DamageType == battle.DamageNone {
		return fail(errors.New("damage type is required"))
	}
	if inst.ExplosionMax > 0 && inst.ExplosionType == battle.DamageNone {
		inst.ExplosionType = battle.DamageExplosive
	}
	return Weapon{Name: name, Combat: combat, Instance: inst}, nil
}

func parsePart(p filePart) (battle.PartTemplate, error) {
	name := strings.TrimSpace(p.Name)
	if name == "" {
		return battle.PartTemplate{}, errors.New("part name is required")
	}
	slot, err := battle.ParseSlot(p.Slot)
	if err != nil {
		return battle.PartTemplate{}, fmt.Errorf("part %q: %w", name, err)
	}
	if p.Integrity <= 0 {
		return battle.PartTemplate{}, fmt.Errorf("part %q: integrity must be positive", name)
	}
	if p.Coverage < 0 {
		return battle.PartTemplate{}, fmt.Errorf("part %q: coverage must not be negative", name)
	}
	return battle.PartTemplate{
		Name:       name,
		Slot:       slot,
		Coverage:   p.Coverage,
		Integrity:  p.Integrity,
		Protection: p.Protection,
	}, nil
}

// Merge returns a catalog holding c's definitions overlaid by other's. Damage
// reductions named in both keep c's precedence position with other's value;
// new ones are appended.
func (c *Catalog) Merge(other *Catalog) *Catalog {
	out := &Catalog{
		weapons: make(map[string]Weapon, len(c.weapons)+len(other.weapons)),
		parts:   make(map[string]battle.PartTemplate, len(c.parts)+len(other.parts)),
		bots:    make(map[string]fileBot, len(c.bots)+len(other.bots)),
	}
	for _, src := range []*Catalog{c, other} {
		for k, v := range src.weapons {
			out.weapons[k] = v
		}
		for k, v := range src.parts {
			out.parts[k] = v
		}
		for k, v := range src.bots {
			out.bots[k] = v
		}
	}

	table := &out.capabilities
	table.Avoidance = mergeMap(c.capabilities.Avoidance, other.capabilities.Avoidance)
	table.CorruptionIgnore = mergeMap(c.capabilities.CorruptionIgnore, other.capabilities.CorruptionIgnore)
	table.RangedAvoidance = mergeMap(c.capabilities.RangedAvoidance, other.capabilities.RangedAvoidance)
	table.SelfDamageReduction = mergeMap(c.capabilities.SelfDamageReduction, other.capabilities.SelfDamageReduction)
	table.Shielding = mergeMap(c.capabilities.Shielding, other.capabilities.Shielding)

	table.DamageReduction = append([]battle.Reduction(nil), c.capabilities.DamageReduction...)
	for _, r := range other.capabilities.DamageReduction {
		replaced := false
		for i := range table.DamageReduction {
			if table.DamageReduction[i].Name == r.Name {
				table.DamageReduction[i] = r
				replaced = true
				break
			}
		}
		if !replaced {
			table.DamageReduction = append(table.DamageReduction, r)
		}
	}
	return out
}

func mergeMap[V any](base, overlay map[string]V) map[string]V {
	if len(base) == 0 && len(overlay) == 0 {
		return nil
	}
	out := make(map[string]V, len(base)+len(overlay))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range overlay {
		out[k] = v
	}
	return out
}

// Capabilities returns the capability table. Callers must not modify it.
func (c *Catalog) Capabilities() *battle.CapabilityTable {
	return &c.capabilities
}

// Weapon looks up a weapon by name.
func (c *Catalog) Weapon(name string) (Weapon, error) {
	w, ok := c.weapons[key(name)]
	if !ok {
		return Weapon{}, unknownItem(name)
	}
	return w, nil
}

// Part looks up a defender part by name.
func (c *Catalog) Part(name string) (battle.PartTemplate, error) {
	p, ok := c.parts[key(name)]
	if !ok {
		return battle.PartTemplate{}, unknownItem(name)
	}
	return p, nil
}

func unknownItem(name string) error {
	err := apperrors.WithMetadata(apperrors.CodeCatalogUnknownItem, fmt.Sprintf("%v %q", ErrUnknownItem, name), map[string]string{"Name": name})
	err.Cause = ErrUnknownItem
	return err
}

// Bot resolves a bot definition and its parts.
func (c *Catalog) Bot(name string) (Bot, error) {
	b, ok := c.bots[key(name)]
	if !ok {
		err := apperrors.WithMetadata(apperrors.CodeCatalogUnknownBot, fmt.Sprintf("%v %q", ErrUnknownBot, name), map[string]string{"Name": name})
		err.Cause = ErrUnknownBot
		return Bot{}, err
	}

	spec := battle.DefenderSpec{
		Name:          strings.TrimSpace(b.Name),
		CoreIntegrity: b.CoreIntegrity,
		CoreCoverage:  b.CoreCoverage,
		Regen:         b.Regen,
	}
	fail := func(err error) (Bot, error) {
		return Bot{}, apperrors.Wrap(apperrors.CodeCatalogInvalid, fmt.Sprintf("bot %q: %v", spec.Name, err), err)
	}

	if spec.CoreCoverage <= 0 {
		return fail(fmt.Errorf("%w: core coverage must be positive", battle.ErrInvalidDefender))
	}
	var err error
	if spec.Movement, err = battle.ParseMovement(b.Movement); err != nil {
		return fail(err)
	}
	if len(b.Resistances) > 0 {
		spec.Resistances = make(map[battle.DamageType]int, len(b.Resistances))
	}
	for typeName, value := range b.Resistances {
		typ, err := battle.ParseDamageType(typeName)
		if err != nil {
			return fail(err)
		}
		percent, err := ParsePercent(value)
		if err != nil {
			return fail(err)
		}
		spec.Resistances[typ] = percent
	}
	for _, name := range b.Immunities {
		immunity, err := battle.ParseImmunity(name)
		if err != nil {
			return fail(err)
		}
		spec.Immunities |= immunity
	}
	for _, name := range b.Parts {
		part, err := c.Part(name)
		if err != nil {
			return fail(err)
		}
		spec.Parts = append(spec.Parts, part)
	}
	return Bot{Name: spec.Name, Class: b.Class, Spec: spec}, nil
}

// BotNames returns every bot name in alphabetical order.
func (c *Catalog) BotNames() []string {
	names := make([]string, 0, len(c.bots))
	for _, b := range c.bots {
		names = append(names, strings.TrimSpace(b.Name))
	}
	sort.Strings(names)
	return names
}

// WeaponNames returns every weapon name in alphabetical order.
func (c *Catalog) WeaponNames() []string {
	names := make([]string, 0, len(c.weapons))
	for _, w := range c.weapons {
		names = append(names, w.Name)
	}
	sort.Strings(names)
	return names
}
