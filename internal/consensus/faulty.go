package consensus

import "context"

// FaultyNode models a participant that neither sends nor processes
// protocol messages: an omission/crash fault. Rather than threading
// isFaulty checks throughout the Driver, faultiness is a distinct
// Participant implementation, mirroring how dedis/tlc keeps its failstop
// and byzantine fault models in separate packages rather than branching a
// single node type.
//
// Every operation on a FaultyNode either reports the fixed faulty status
// or rejects with ErrFaulty; its x, decided, and k are always reported as
// unset (nil on the wire).
type FaultyNode struct{}

// NewFaultyNode returns a Participant that answers status/state endpoints
// with fixed values and rejects everything else.
func NewFaultyNode() *FaultyNode {
	return &FaultyNode{}
}

func (f *FaultyNode) Alive() bool { return false }

func (f *FaultyNode) State() StateSnapshot {
	return StateSnapshot{Killed: false, X: nil, Decided: nil, K: nil}
}

func (f *FaultyNode) Start(ctx context.Context) error { return ErrFaulty }

func (f *FaultyNode) Stop() {}

func (f *FaultyNode) Deliver(msg Message) error { return ErrFaulty }
