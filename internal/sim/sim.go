// Package sim provides an in-process harness for running a group of
// consensus.Driver instances against each other without any network I/O,
// generalizing the goroutine/channel harness go/model/model_test.go builds
// ad hoc inside a single _test.go file into a reusable, importable type.
package sim

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/asyncconsensus/benor/internal/consensus"
	"github.com/asyncconsensus/benor/internal/metrics"
	"github.com/asyncconsensus/benor/internal/readiness"
)

// localBus delivers messages directly into in-process participants,
// playing the role of a transport adapter without any HTTP hop. Each
// non-faulty Cluster member gets its own localBus as its Broadcaster.
type localBus struct {
	mu      sync.RWMutex
	members []consensus.Participant
	self    int
	log     logrus.FieldLogger
}

func (b *localBus) Broadcast(ctx context.Context, phase consensus.Phase, value consensus.Value, round int) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	msg := consensus.Message{Phase: phase, Value: value, Round: round, From: b.self}
	for i, m := range b.members {
		if i == b.self || m == nil {
			continue
		}
		if err := m.Deliver(msg); err != nil {
			b.log.WithError(err).WithField("to", i).Debug("sim: delivery rejected")
		}
	}
}

// Cluster wires N in-process drivers (and, optionally, faulty stand-ins)
// together over a shared localBus, letting tests and cmd/benor-node's
// "sim" subcommand exercise end-to-end agreement scenarios — unanimous
// input, mixed input, a crashed minority — without starting any HTTP
// servers.
type Cluster struct {
	N       int
	F       int
	drivers []*consensus.Driver
	members []consensus.Participant
	metrics []*metrics.Counters
	log     logrus.FieldLogger
}

// MemberConfig describes how to build one Cluster member: its initial value,
// and whether it should be built as a FaultyNode instead of a real Driver.
type MemberConfig struct {
	Initial consensus.Value
	Faulty  bool
}

// NewCluster builds a Cluster of len(members) nodes tolerating f faults,
// one localBus per node so each sees itself as "self" when broadcasting.
func NewCluster(members []MemberConfig, f int, log logrus.FieldLogger) (*Cluster, error) {
	n := len(members)
	if n == 0 {
		return nil, fmt.Errorf("sim: cluster must have at least one member")
	}
	if log == nil {
		log = logrus.StandardLogger()
	}

	c := &Cluster{
		N:       n,
		F:       f,
		drivers: make([]*consensus.Driver, n),
		members: make([]consensus.Participant, n),
		metrics: make([]*metrics.Counters, n),
		log:     log,
	}

	buses := make([]*localBus, n)
	for i, mc := range members {
		if mc.Faulty {
			c.members[i] = consensus.NewFaultyNode()
			continue
		}
		buses[i] = &localBus{members: c.members, self: i, log: log.WithField("node", i)}
		cnt := metrics.New()
		c.metrics[i] = cnt
		d := consensus.NewDriver(consensus.Config{
			ID:        i,
			N:         n,
			F:         f,
			Initial:   mc.Initial,
			Transport: buses[i],
			Log:       log.WithField("node", i),
			Metrics:   cnt,
		})
		c.drivers[i] = d
		c.members[i] = d
	}
	for _, b := range buses {
		if b != nil {
			b.members = c.members
		}
	}
	return c, nil
}

// Start launches every member concurrently, gated by a readiness.Barrier:
// each member signals ready and then blocks until every other member has
// too, so no node's Driver begins broadcasting before its peers are ready
// to receive. This is the in-process analogue of what cmd/benor-node's
// integration test does over real HTTP.
func (c *Cluster) Start(ctx context.Context) error {
	barrier := readiness.New(c.N)
	errs := make([]error, c.N)

	var wg sync.WaitGroup
	for i, m := range c.members {
		wg.Add(1)
		go func(i int, m consensus.Participant) {
			defer wg.Done()
			barrier.SetReady(i)
			if err := barrier.Wait(ctx); err != nil {
				errs[i] = err
				return
			}
			if !m.Alive() {
				return // faulty stand-in: nothing to start
			}
			errs[i] = m.Start(ctx)
		}(i, m)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			return fmt.Errorf("sim: starting node %d: %w", i, err)
		}
	}
	return nil
}

// Stop halts every member.
func (c *Cluster) Stop() {
	for _, m := range c.members {
		m.Stop()
	}
}

// States returns the current StateSnapshot of every member, in id order.
func (c *Cluster) States() []consensus.StateSnapshot {
	out := make([]consensus.StateSnapshot, c.N)
	for i, m := range c.members {
		out[i] = m.State()
	}
	return out
}

// Decided reports whether every non-faulty member has reached a decision,
// and whether the decided values agree.
func (c *Cluster) Decided() (done bool, agreed bool) {
	var first *consensus.Value
	done = true
	agreed = true
	for _, m := range c.members {
		if !m.Alive() {
			continue // faulty stand-in: never decides
		}
		snap := m.State()
		if snap.Decided == nil || !*snap.Decided {
			done = false
			continue
		}
		if first == nil {
			first = snap.X
		} else if snap.X == nil || *snap.X != *first {
			agreed = false
		}
	}
	return done, agreed
}

// Member exposes the Participant for node id, for tests that want to
// drive or kill a single member directly (e.g. the crash-fault scenario).
func (c *Cluster) Member(id int) consensus.Participant {
	return c.members[id]
}

// Metrics exposes the counters for node id, or nil for faulty members.
func (c *Cluster) Metrics(id int) *metrics.Counters {
	return c.metrics[id]
}
