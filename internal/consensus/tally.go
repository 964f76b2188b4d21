package consensus

import (
	"crypto/rand"
)

// phase1Tally implements the phase-1 tally. It is pure and
// side-effect-free: counts ownX plus every msgs entry that is 0 or 1,
// compares against the simple majority, and never counts Unknown
// (Unknown is a phase-2-only message value).
//
// This mirrors the functional-core style of dedis/tlc's Best.merge and
// mergeQSC: state is folded from values passed in, not mutated in place.
func phase1Tally(ownX Value, msgs []Value, n int) Value {
	var c0, c1 int
	tick := func(v Value) {
		switch v {
		case Zero:
			c0++
		case One:
			c1++
		}
	}
	tick(ownX)
	for _, v := range msgs {
		tick(v)
	}

	majority := n/2 + 1
	switch {
	case c0 >= majority:
		return Zero
	case c1 >= majority:
		return One
	default:
		return Unknown
	}
}

// phase2Tally implements the phase-2 decision rule, evaluated in strict
// order: decide only when the count reaches the decision threshold AND
// the node's own value matches; otherwise adopt at the lower adoption
// threshold; otherwise flip coin().
//
// decided reports whether rule (a) or (b) fired. The returned Value is
// always the node's next x: the decided value, the adopted value, or the
// coin flip.
func phase2Tally(ownX Value, msgs []Value, n, f int, coin func() Value) (Value, bool) {
	nn := n - f
	decisionThreshold := nn/2 + 1
	adoptionThreshold := nn/3 + 1

	var c0, c1, cq int
	tick := func(v Value) {
		switch v {
		case Zero:
			c0++
		case One:
			c1++
		case Unknown:
			cq++
		}
	}
	tick(ownX)
	for _, v := range msgs {
		tick(v)
	}
	_ = cq // counted for completeness/observability; the rule never tests it directly

	switch {
	case c0 >= decisionThreshold && ownX == Zero:
		return Zero, true
	case c1 >= decisionThreshold && ownX == One:
		return One, true
	case c0 >= adoptionThreshold:
		return Zero, false
	case c1 >= adoptionThreshold:
		return One, false
	default:
		return coin(), false
	}
}

// defaultCoin draws a fresh, uniformly distributed bit from a
// cryptographically strong source, continuing the choice dedis/tlc's
// dist.Node.Rand default makes (reading crypto/rand directly) rather than
// a seeded math/rand generator.
func defaultCoin() Value {
	var b [1]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failing indicates a broken host entropy source;
		// dedis/tlc's own Rand default panics on the same condition.
		panic(err)
	}
	if b[0]&1 == 0 {
		return Zero
	}
	return One
}
