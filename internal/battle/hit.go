package battle

import "fmt"

// HitRequest describes one damage chunk for target selection.
type HitRequest struct {
	Type DamageType
	// Overflow marks excess damage from a destroyed part.
	Overflow bool
	// ForceCore sends the chunk to the core unconditionally.
	ForceCore     bool
	ArmorAnalyzed bool
}

// Target is the location struck by a damage chunk.
type Target struct {
	Core bool
	// Part is the stable part index when Core is false.
	Part int
}

var coreTarget = Target{Core: true, Part: externalPart}

// ResolveHit selects the location struck by a damage chunk.
//
// Impact damage picks uniformly among live parts and the core. Overflow damage
// prefers protection parts by coverage. Everything else is a coverage-weighted
// draw over live parts followed by the core, with Piercing doubling the
// core's weight. It panics when the total weight is zero.
func (s *DefenderBattleState) ResolveHit(rng Source, req HitRequest) Target {
	if req.ForceCore {
		return coreTarget
	}

	if req.Type == DamageImpact {
		pick := rng.IntN(len(s.live) + 1)
		if pick == len(s.live) {
			return coreTarget
		}
		return Target{Part: s.live[pick]}
	}

	if req.Overflow {
		total := 0
		for _, id := range s.live {
			if part := s.parts[id]; part.Protection && part.Coverage > 0 {
				total += part.Coverage
			}
		}
		if total > 0 {
			roll := rng.IntN(total)
			for _, id := range s.live {
				part := s.parts[id]
				if !part.Protection || part.Coverage <= 0 {
					continue
				}
				roll -= part.Coverage
				if roll < 0 {
					return Target{Part: id}
				}
			}
		}
	}

	coreWeight := s.CoreCoverage
	if req.Type == DamagePiercing {
		coreWeight += s.CoreCoverage
	}
	partWeight := s.PartCoverage
	if req.ArmorAnalyzed {
		partWeight = s.AnalyzedPartCoverage
	}
	total := partWeight + coreWeight
	if total <= 0 {
		panic(fmt.Sprintf("battle: defender %q has no coverage to target", s.Name))
	}

	roll := rng.IntN(total)
	for _, id := range s.live {
		weight := s.parts[id].Coverage
		if req.ArmorAnalyzed {
			weight = s.parts[id].AnalyzedCoverage
		}
		roll -= weight
		if roll < 0 {
			return Target{Part: id}
		}
	}
	return coreTarget
}
