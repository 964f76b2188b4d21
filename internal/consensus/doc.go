// Package consensus implements the per-node state machine for a binary
// Ben-Or randomized Byzantine agreement protocol.
//
// A Driver runs two message-exchange phases per round against its peers,
// tallies the (phase, round) bucket of an Inbox after a bounded wait, and
// either adopts a new proposal, decides, or falls back to a random coin
// flip, per the rules in phase1Tally and phase2Tally.
//
// This package handles only the core consensus logic. Wire-format framing,
// HTTP transport, and process bootstrap live in sibling packages
// (internal/transport, internal/api, cmd/benor-node); this package is
// oblivious to how a Message reaches the Inbox or how a Broadcast reaches
// a peer, in the same spirit as dedis/tlc's model and dist packages.
package consensus
