package consensus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Default timings: a 200ms bounded wait per phase and a short inter-round
// pause to avoid busy-looping and give late messages a chance to arrive.
const (
	DefaultPhaseWait   = 200 * time.Millisecond
	DefaultInterRound  = 10 * time.Millisecond
)

// runState is the Driver's own state machine, kept separate from State's
// (killed, x, decided, k) because it additionally distinguishes IDLE from
// RUNNING, which the wire-visible State does not.
type runState int32

const (
	stateIdle runState = iota
	stateRunning
	stateDecided
	stateDead
)

// Counters is the minimal subset of internal/metrics.Counters the Driver
// needs; declared locally so this package does not import internal/metrics,
// and a narrow interface here keeps the Driver decoupled from the concrete
// counter type.
type Counters interface {
	IncRoundsStarted()
	IncPhase1Timeouts()
	IncPhase2Timeouts()
	IncDecisions()
}

type noopCounters struct{}

func (noopCounters) IncRoundsStarted()  {}
func (noopCounters) IncPhase1Timeouts() {}
func (noopCounters) IncPhase2Timeouts() {}
func (noopCounters) IncDecisions()      {}

// Config bundles a Driver's construction-time parameters.
type Config struct {
	ID           int
	N            int
	F            int
	Initial      Value
	Transport    Broadcaster
	Log          logrus.FieldLogger
	Metrics      Counters
	PhaseWait    time.Duration // defaults to DefaultPhaseWait
	InterRound   time.Duration // defaults to DefaultInterRound
	Coin         func() Value  // defaults to defaultCoin
}

// Driver sequences rounds until the node decides or is killed. It
// implements Participant.
//
// The round procedure generalizes dedis/tlc's advanceTLC/receiveTLC
// structure (template message, reset per-step counters, broadcast, wait
// for a threshold) into two explicit bounded waits per round instead of
// TLC's single witness threshold, one for each message-exchange phase.
type Driver struct {
	id int
	n  int
	f  int

	state     *State
	inbox     *Inbox
	transport Broadcaster
	log       logrus.FieldLogger
	metrics   Counters
	coin      func() Value

	phaseWait  time.Duration
	interRound time.Duration
	quorum     int

	rs     atomic.Int32
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewDriver constructs a Driver from cfg. N=1 single-node groups are
// handled entirely in Start (the single-node shortcut); all other groups
// run the full round loop once Start is called.
func NewDriver(cfg Config) *Driver {
	if cfg.PhaseWait <= 0 {
		cfg.PhaseWait = DefaultPhaseWait
	}
	if cfg.InterRound <= 0 {
		cfg.InterRound = DefaultInterRound
	}
	if cfg.Coin == nil {
		cfg.Coin = defaultCoin
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopCounters{}
	}
	if cfg.Log == nil {
		cfg.Log = logrus.StandardLogger()
	}

	quorum := cfg.N - cfg.F - 1
	if quorum < 0 {
		quorum = 0
	}

	return &Driver{
		id:         cfg.ID,
		n:          cfg.N,
		f:          cfg.F,
		state:      NewState(cfg.Initial),
		inbox:      NewInbox(),
		transport:  cfg.Transport,
		log:        cfg.Log.WithField("node_id", cfg.ID),
		metrics:    cfg.Metrics,
		coin:       cfg.Coin,
		phaseWait:  cfg.PhaseWait,
		interRound: cfg.InterRound,
		quorum:     quorum,
	}
}

func (d *Driver) Alive() bool { return true }

func (d *Driver) State() StateSnapshot { return d.state.Snapshot() }

// Deliver hands an inbound message to the Inbox, rejecting when the node
// is killed. Deliver never rejects on round number: messages ahead of the
// current round are accepted so they can be tallied once the Driver
// catches up.
func (d *Driver) Deliver(msg Message) error {
	if d.state.Killed() {
		return ErrKilled
	}
	d.inbox.Deliver(msg.Phase, msg.Round, msg.Value, msg.From)
	return nil
}

// Start launches the round loop. A second Start while RUNNING or DECIDED
// is a no-op; Start on a DEAD node fails.
func (d *Driver) Start(ctx context.Context) error {
	for {
		cur := runState(d.rs.Load())
		switch cur {
		case stateDead:
			return ErrKilled
		case stateRunning, stateDecided:
			return nil
		case stateIdle:
			if d.rs.CompareAndSwap(int32(stateIdle), int32(stateRunning)) {
				return d.launch(ctx)
			}
			// lost the race to another Start call; retry the load.
		}
	}
}

func (d *Driver) launch(ctx context.Context) error {
	d.log.WithFields(logrus.Fields{"n": d.n, "f": d.f, "quorum": d.quorum}).Info("node starting")

	if d.n == 1 {
		// Single-node shortcut: decide immediately, run no rounds.
		d.state.Decide(d.state.X())
		d.rs.Store(int32(stateDecided))
		d.metrics.IncDecisions()
		d.log.Info("single-node group, decided immediately")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	d.cancel = cancel
	d.wg.Add(1)
	go d.run(runCtx)
	return nil
}

// Stop is permanent: it marks the node killed, cancels any in-flight
// round, and lets the round loop exit at its next checkpoint. The
// cancelled context is the one in-flight broadcasts run under, so a
// context-aware Broadcaster abandons its outstanding sends; their failures
// are swallowed like any other.
func (d *Driver) Stop() {
	prev := runState(d.rs.Swap(int32(stateDead)))
	d.state.SetKilled()
	if d.cancel != nil {
		d.cancel()
	}
	if prev == stateRunning {
		d.wg.Wait()
	}
}

func (d *Driver) running() bool {
	return runState(d.rs.Load()) == stateRunning
}

// run is the round loop: phase 1 broadcast+wait+tally, phase 2
// broadcast+wait+tally, then advance k (or stop, if decided or killed).
// It runs on its own goroutine; the Driver holds no lock across any of
// its suspension points (broadcast, bounded wait, inter-round sleep).
func (d *Driver) run(ctx context.Context) {
	defer d.wg.Done()

	for d.running() {
		round := d.state.K()
		x := d.state.X()

		log := d.log.WithField("round", round)

		// Phase 1: propose, wait for a quorum of phase-1 messages (or
		// the bounded wait to elapse), then tally.
		d.transport.Broadcast(ctx, Phase1, x, round)
		d.metrics.IncRoundsStarted()
		vals1, timedOut1 := d.inbox.WaitForCount(ctx, Phase1, round, d.quorum, d.phaseWait)
		if !d.running() {
			return
		}
		if timedOut1 {
			d.metrics.IncPhase1Timeouts()
			log.Debug("phase 1 bounded wait timed out")
		}
		afterPhase1 := phase1Tally(x, vals1, d.n)
		d.state.SetX(afterPhase1)
		log.WithField("phase", 1).Debugf("proposal after phase 1: %s", afterPhase1)

		// Phase 2: broadcast the phase-1 result, wait, then apply the
		// decision/adoption/coin-flip rule.
		d.transport.Broadcast(ctx, Phase2, afterPhase1, round)
		vals2, timedOut2 := d.inbox.WaitForCount(ctx, Phase2, round, d.quorum, d.phaseWait)
		if !d.running() {
			return
		}
		if timedOut2 {
			d.metrics.IncPhase2Timeouts()
			log.Debug("phase 2 bounded wait timed out")
		}
		next, decided := phase2Tally(afterPhase1, vals2, d.n, d.f, d.coin)
		if decided {
			d.state.Decide(next)
			d.rs.CompareAndSwap(int32(stateRunning), int32(stateDecided))
			d.metrics.IncDecisions()
			log.WithField("x", next).Info("decided")
			return
		}
		d.state.SetX(next)
		log.WithField("phase", 2).Debugf("proposal after phase 2: %s", next)

		d.inbox.Prune(round)

		if !d.running() {
			return
		}
		d.state.SetK(round + 1)

		select {
		case <-time.After(d.interRound):
		case <-ctx.Done():
			return
		}
	}
}
