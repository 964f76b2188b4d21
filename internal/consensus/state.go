package consensus

import "sync"

// StateSnapshot is the wire shape for GET /getState. For a faulty node, X,
// Decided, and K are nil, which encoding/json renders as JSON null;
// Killed is always a concrete boolean.
type StateSnapshot struct {
	Killed  bool   `json:"killed"`
	X       *Value `json:"x"`
	Decided *bool  `json:"decided"`
	K       *int   `json:"k"`
}

// State is the mutable per-node record: killed and decided only ever flip
// false->true, k only ever increases, and x is a concrete Value at the
// start of every round. The Driver is the only writer of x, decided, and
// k; killed may additionally be set by Stop from another goroutine. A
// single mutex guards all four fields so that a concurrent Snapshot (from
// the status endpoint) never observes a torn read.
type State struct {
	mu      sync.RWMutex
	killed  bool
	x       Value
	decided bool
	k       int
}

// NewState returns a State initialized with the given starting proposal.
func NewState(initial Value) *State {
	return &State{x: initial}
}

func (s *State) Snapshot() StateSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	x := s.x
	d := s.decided
	k := s.k
	return StateSnapshot{Killed: s.killed, X: &x, Decided: &d, K: &k}
}

func (s *State) X() Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.x
}

func (s *State) SetX(v Value) {
	s.mu.Lock()
	s.x = v
	s.mu.Unlock()
}

func (s *State) K() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.k
}

func (s *State) SetK(k int) {
	s.mu.Lock()
	s.k = k
	s.mu.Unlock()
}

func (s *State) Killed() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.killed
}

// SetKilled flips killed to true. It is idempotent and safe to call more
// than once; killed never flips back.
func (s *State) SetKilled() {
	s.mu.Lock()
	s.killed = true
	s.mu.Unlock()
}

func (s *State) Decided() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.decided
}

// Decide fixes x to v and flips decided to true. Once decided, x is never
// mutated again; callers must not call SetX after Decide.
func (s *State) Decide(v Value) {
	s.mu.Lock()
	s.x = v
	s.decided = true
	s.mu.Unlock()
}
