// Package metrics holds the small set of process counters a node's
// control surface exposes over its /debug/counters endpoint. A full
// registry (prometheus/client_golang, as unicitynetwork-unicity-core's
// partition/node.go uses for its lifecycle counters) was considered and
// dropped — see DESIGN.md — since nothing in this repo scrapes metrics;
// four atomic counters read by one JSON endpoint don't need an
// exposition format.
package metrics

import "sync/atomic"

// Counters tracks round/decision activity across a node's lifetime. The
// zero value is ready to use.
type Counters struct {
	roundsStarted  atomic.Int64
	phase1Timeouts atomic.Int64
	phase2Timeouts atomic.Int64
	decisions      atomic.Int64
}

// New returns a ready-to-use Counters; &Counters{} works equally well.
func New() *Counters { return &Counters{} }

func (c *Counters) IncRoundsStarted()  { c.roundsStarted.Add(1) }
func (c *Counters) IncPhase1Timeouts() { c.phase1Timeouts.Add(1) }
func (c *Counters) IncPhase2Timeouts() { c.phase2Timeouts.Add(1) }
func (c *Counters) IncDecisions()      { c.decisions.Add(1) }

// Snapshot is the wire shape for /debug/counters.
type Snapshot struct {
	RoundsStarted  int64 `json:"rounds_started"`
	Phase1Timeouts int64 `json:"phase1_timeouts"`
	Phase2Timeouts int64 `json:"phase2_timeouts"`
	Decisions      int64 `json:"decisions"`
}

func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		RoundsStarted:  c.roundsStarted.Load(),
		Phase1Timeouts: c.phase1Timeouts.Load(),
		Phase2Timeouts: c.phase2Timeouts.Load(),
		Decisions:      c.decisions.Load(),
	}
}
