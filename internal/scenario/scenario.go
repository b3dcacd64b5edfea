// Package scenario evaluates Lua battle scenarios into loadout configurations.
//
// A scenario script returns a Scenario built with Scenario.new:
//
//	local s = Scenario.new("Sniping a sentry")
//	s:defender("Y-45 Defender")
//	s:weapon("Sniper Rifle", 2)
//	s:bonus("targeting", 10)
//	s:siege("high")
//	return s
package scenario

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/Shopify/go-lua"

	"github.com/louisbranch/combatsim/internal/loadout"
	apperrors "github.com/louisbranch/combatsim/internal/platform/errors"
)

const scenarioTypeName = "scenario"

// Scenario is the value a script builds.
type Scenario struct {
	Name   string
	Config loadout.Config
}

// LoadFile runs the script at path. A scenario without a name is named after
// the file.
func LoadFile(path string) (*Scenario, error) {
	state := newState()
	if err := lua.LoadFile(state, path, ""); err != nil {
		return nil, invalid(fmt.Errorf("load lua: %w", err))
	}
	s, err := run(state)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(s.Name) == "" {
		s.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		s.Config.Name = s.Name
	}
	return s, nil
}

// LoadString runs a script held in memory.
func LoadString(source string) (*Scenario, error) {
	state := newState()
	if err := lua.LoadString(state, source); err != nil {
		return nil, invalid(fmt.Errorf("load lua: %w", err))
	}
	return run(state)
}

func newState() *lua.State {
	state := lua.NewState()
	lua.OpenLibraries(state)
	registerScenarioType(state)
	registerScenarioConstructor(state)
	return state
}

func run(state *lua.State) (*Scenario, error) {
	if err := state.ProtectedCall(0, 1, 0); err != nil {
		return nil, invalid(fmt.Errorf("run lua: %w", err))
	}
	if state.TypeOf(-1) != lua.TypeUserData {
		state.Pop(1)
		return nil, invalid(fmt.Errorf("scenario script must return Scenario"))
	}
	ud := state.ToUserData(-1)
	state.Pop(1)
	s, ok := ud.(*Scenario)
	if !ok || s == nil {
		return nil, invalid(fmt.Errorf("scenario script returned invalid Scenario"))
	}
	return s, nil
}

func invalid(err error) error {
	return apperrors.Wrap(apperrors.CodeScenarioInvalid, err.Error(), err)
}

func registerScenarioType(state *lua.State) {
	lua.NewMetaTable(state, scenarioTypeName)
	state.NewTable()
	lua.SetFunctions(state, scenarioMethods, 0)
	state.SetField(-2, "__index")
	state.Pop(1)
}

func registerScenarioConstructor(state *lua.State) {
	state.NewTable()
	lua.SetFunctions(state, []lua.RegistryFunction{{Name: "new", Function: scenarioNew}}, 0)
	state.SetGlobal("Scenario")
}

func scenarioNew(state *lua.State) int {
	name := lua.OptString(state, 1, "")
	s := &Scenario{Name: name, Config: loadout.Config{Name: name}}
	state.PushUserData(s)
	lua.SetMetaTableNamed(state, scenarioTypeName)
	return 1
}

var scenarioMethods = []lua.RegistryFunction{
	{Name: "defender", Function: scenarioDefender},
	{Name: "weapon", Function: scenarioWeapon},
	{Name: "bonus", Function: scenarioBonus},
	{Name: "distance", Function: scenarioDistance},
	{Name: "siege", Function: scenarioSiege},
	{Name: "sneak_attack", Function: scenarioSneakAttack},
	{Name: "momentum", Function: scenarioMomentum},
	{Name: "external_reduction", Function: scenarioExternalReduction},
	{Name: "trials", Function: scenarioTrials},
	{Name: "seed", Function: scenarioSeed},
}

// Methods return the scenario so calls can be chained.

func scenarioDefender(state *lua.State) int {
	s := checkScenario(state)
	s.Config.Defender = lua.CheckString(state, 2)
	state.SetTop(1)
	return 1
}

func scenarioWeapon(state *lua.State) int {
	s := checkScenario(state)
	name := lua.CheckString(state, 2)
	count := lua.OptInteger(state, 3, 1)
	if count < 1 {
		lua.ArgumentError(state, 3, "count must be positive")
	}
	for range count {
		s.Config.Weapons = append(s.Config.Weapons, name)
	}
	state.SetTop(1)
	return 1
}

func scenarioBonus(state *lua.State) int {
	s := checkScenario(state)
	name := lua.CheckString(state, 2)
	value := lua.CheckInteger(state, 3)
	field := bonusField(&s.Config.Bonuses, name)
	if field == nil {
		lua.ArgumentError(state, 2, fmt.Sprintf("unknown bonus %q", name))
	}
	*field = value
	state.SetTop(1)
	return 1
}

func bonusField(b *loadout.Bonuses, name string) *int {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "targeting":
		return &b.Targeting
	case "melee_analysis":
		return &b.MeleeAnalysis
	case "charger":
		return &b.Charger
	case "kinecellerator":
		return &b.Kinecellerator
	case "armor_analyzer":
		return &b.ArmorAnalyzer
	case "core_analyzer":
		return &b.CoreAnalyzer
	case "target_analyzer":
		return &b.TargetAnalyzer
	case "actuators":
		return &b.Actuators
	case "cyclers":
		return &b.Cyclers
	default:
		return nil
	}
}

func scenarioDistance(state *lua.State) int {
	s := checkScenario(state)
	s.Config.Distance = lua.CheckInteger(state, 2)
	state.SetTop(1)
	return 1
}

func scenarioSiege(state *lua.State) int {
	s := checkScenario(state)
	s.Config.Siege = lua.CheckString(state, 2)
	state.SetTop(1)
	return 1
}

func scenarioSneakAttack(state *lua.State) int {
	s := checkScenario(state)
	s.Config.SneakAttack = lua.CheckString(state, 2)
	state.SetTop(1)
	return 1
}

func scenarioMomentum(state *lua.State) int {
	s := checkScenario(state)
	initial := lua.CheckInteger(state, 2)
	s.Config.Momentum = loadout.Momentum{Initial: initial, Bonus: lua.OptInteger(state, 3, initial)}
	state.SetTop(1)
	return 1
}

func scenarioExternalReduction(state *lua.State) int {
	s := checkScenario(state)
	s.Config.ExternalReduction = lua.CheckString(state, 2)
	state.SetTop(1)
	return 1
}

func scenarioTrials(state *lua.State) int {
	s := checkScenario(state)
	s.Config.Trials = lua.CheckInteger(state, 2)
	state.SetTop(1)
	return 1
}

func scenarioSeed(state *lua.State) int {
	s := checkScenario(state)
	seed := int64(lua.CheckInteger(state, 2))
	s.Config.Seed = &seed
	state.SetTop(1)
	return 1
}

func checkScenario(state *lua.State) *Scenario {
	ud := lua.CheckUserData(state, 1, scenarioTypeName)
	if s, ok := ud.(*Scenario); ok && s != nil {
		return s
	}
	lua.ArgumentError(state, 1, "scenario expected")
	return nil
}
