// Package battle estimates how long one attacker loadout takes to destroy one
// defender by running many independent randomized trials.
//
// # Model
//
// A DefenderTemplate is built once per configuration from part templates and a
// CapabilityTable. Every trial clones it into a DefenderBattleState, fires the
// OffensiveState's weapons volley by volley, and stops when the core is
// destroyed, corruption reaches 100, or MaxVolleys is exceeded.
//
// # Arithmetic
//
// All damage, coverage and time values are integers. Every multiplication or
// division truncates toward zero at the step where it happens; changing the
// order of those steps changes the resulting distributions.
//
// # Randomness
//
// Every random draw goes through a Source. Trials never share a Source, so a
// batch can be distributed across workers without locking. When a seed is
// supplied, trial i always draws from the same stream regardless of which
// worker runs it.
package battle
