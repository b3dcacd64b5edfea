package catalog

// The types below mirror the YAML catalog layout.

type fileCatalog struct {
	Capabilities fileCapabilities `yaml:"capabilities"`
	Weapons      []fileWeapon     `yaml:"weapons"`
	Parts        []filePart       `yaml:"parts"`
	Bots         []fileBot        `yaml:"bots"`
}

type fileCapabilities struct {
	Avoidance           map[string]fileAvoidance `yaml:"avoidance"`
	CorruptionIgnore    map[string]string        `yaml:"corruption_ignore"`
	DamageReduction     []fileReduction          `yaml:"damage_reduction"`
	RangedAvoidance     map[string]string        `yaml:"ranged_avoidance"`
	SelfDamageReduction map[string]float64       `yaml:"self_damage_reduction"`
	Shielding           map[string]fileShielding `yaml:"shielding"`
}

type fileAvoidance struct {
	Legs  string `yaml:"legs"`
	Other string `yaml:"other"`
}

type fileReduction struct {
	Name       string  `yaml:"name"`
	Multiplier float64 `yaml:"multiplier"`
}

type fileShielding struct {
	Slot    string `yaml:"slot"`
	Percent string `yaml:"percent"`
}

type fileWeapon struct {
	Name          string `yaml:"name"`
	Combat        string `yaml:"combat"`
	Damage        string `yaml:"damage"`
	Type          string `yaml:"type"`
	Explosion     string `yaml:"explosion"`
	ExplosionType string `yaml:"explosion_type"`
	Critical      string `yaml:"critical"`
	Projectiles   int    `yaml:"projectiles"`
	Energy        int    `yaml:"energy"`
	Heat          int    `yaml:"heat"`
	Targeting     string `yaml:"targeting"`
	Delay         int    `yaml:"delay"`
	Accelerated   bool   `yaml:"accelerated"`
	Overflow      bool   `yaml:"overflow"`
	Guided        bool   `yaml:"guided"`
}

type filePart struct {
	Name       string `yaml:"name"`
	Slot       string `yaml:"slot"`
	Coverage   int    `yaml:"coverage"`
	Integrity  int    `yaml:"integrity"`
	Protection bool   `yaml:"protection"`
}

type fileBot struct {
	Name          string            `yaml:"name"`
	Class         string            `yaml:"class"`
	CoreIntegrity int               `yaml:"core_integrity"`
	CoreCoverage  int               `yaml:"core_coverage"`
	Movement      string            `yaml:"movement"`
	Regen         int               `yaml:"regen"`
	Resistances   map[string]string `yaml:"resistances"`
	Immunities    []string          `yaml:"immunities"`
	Parts         []string          `yaml:"parts"`
}
