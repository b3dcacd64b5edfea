package battle

import "testing"

// scriptedSource replays fixed draws and fails the test on any unexpected one.
type scriptedSource struct {
	t     testing.TB
	draws []int
	bound []int
}

func script(t testing.TB, draws ...int) *scriptedSource {
	return &scriptedSource{t: t, draws: draws}
}

func (s *scriptedSource) IntN(n int) int {
	s.t.Helper()
	if len(s.draws) == 0 {
		s.t.Fatalf("unexpected draw IntN(%d)", n)
	}
	v := s.draws[0]
	s.draws = s.draws[1:]
	if v < 0 || v >= n {
		s.t.Fatalf("scripted draw %d outside [0, %d)", v, n)
	}
	s.bound = append(s.bound, n)
	return v
}

func (s *scriptedSource) assertDrained() {
	s.t.Helper()
	if len(s.draws) != 0 {
		s.t.Fatalf("%d scripted draws left unused: %v", len(s.draws), s.draws)
	}
}

func mustDefender(t testing.TB, spec DefenderSpec, table *CapabilityTable) *DefenderTemplate {
	t.Helper()
	tmpl, err := NewDefender(spec, table)
	if err != nil {
		t.Fatalf("NewDefender: %v", err)
	}
	return tmpl
}

// coreOnly is a defender with no parts.
func coreOnly(integrity int) DefenderSpec {
	return DefenderSpec{Name: "Target", CoreIntegrity: integrity, CoreCoverage: 100}
}

// onePart is the 1000 core / 200 part defender used across golden tests.
func onePart() DefenderSpec {
	return DefenderSpec{
		Name:          "Grunt",
		CoreIntegrity: 1000,
		CoreCoverage:  100,
		Parts: []PartTemplate{
			{Name: "Arm", Slot: SlotWeapon, Coverage: 50, Integrity: 200},
		},
	}
}

func flatGun(damage int) WeaponInstance {
	return WeaponInstance{Name: "Gun", DamageMin: damage, DamageMax: damage, DamageType: DamageKinetic, Guided: true}
}
