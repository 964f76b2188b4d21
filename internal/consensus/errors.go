package consensus

import "errors"

// Sentinel errors surfaced across the Control Surface. Callers should
// compare with errors.Is rather than equality, since wrapped variants may
// be introduced at the transport boundary.
var (
	// ErrKilled is returned when an operation targets a node that has
	// already been stopped. stop is permanent; this is never cleared.
	ErrKilled = errors.New("consensus: node is killed")

	// ErrFaulty is returned by every operation on a faulty node, which
	// never sends or processes protocol messages.
	ErrFaulty = errors.New("consensus: node is faulty")

	// ErrMalformed is returned when a message or request fails basic
	// structural validation (unknown phase, out-of-range value, etc).
	ErrMalformed = errors.New("consensus: malformed message")
)
