// Package transport implements a node's transport adapter: a best-effort
// HTTP fan-out from one node to all its peers, and the client-side half
// of wire framing for POST /message.
//
// This generalizes dedis/tlc's dist.Node.Broadcast default (a loop of
// Peer.Send calls) into concurrent HTTP dispatch coordinated by
// golang.org/x/sync/errgroup, the same fan-out mechanism
// unicitynetwork-unicity-core's partition/node.go uses to dispatch work to
// a set of peers/subsystems without letting one slow member block the
// rest.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/asyncconsensus/benor/internal/consensus"
)

// Peer identifies one member of the consensus group as an HTTP endpoint.
type Peer struct {
	ID      int
	BaseURL string // e.g. "http://127.0.0.1:9001"
}

// Adapter is the HTTP-backed Broadcaster every non-faulty Driver is
// constructed with. It implements consensus.Broadcaster.
type Adapter struct {
	self   int
	peers  []Peer
	client *http.Client
	log    logrus.FieldLogger
}

// New returns an Adapter for node self among the given peers (which must
// include an entry for self; Broadcast skips it). client may be nil, in
// which case a client with a conservative per-request timeout is used —
// the bounded wait on the receiving side is the protocol-level timeout;
// this is purely a defense against a peer that never responds at all.
func New(self int, peers []Peer, client *http.Client, log logrus.FieldLogger) *Adapter {
	if client == nil {
		client = &http.Client{Timeout: 2 * time.Second}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Adapter{self: self, peers: peers, client: client, log: log.WithField("node_id", self)}
}

// Broadcast dispatches one message to each peer except self, concurrently,
// swallowing every per-peer failure. It returns once every dispatch has
// settled.
func (a *Adapter) Broadcast(ctx context.Context, phase consensus.Phase, value consensus.Value, round int) {
	g, gctx := errgroup.WithContext(ctx)
	for _, p := range a.peers {
		if p.ID == a.self {
			continue
		}
		p := p
		g.Go(func() error {
			if err := a.send(gctx, p, phase, value, round); err != nil {
				a.log.WithFields(logrus.Fields{
					"peer": p.ID, "phase": phase, "round": round,
				}).WithError(err).Debug("broadcast to peer failed, swallowing")
			}
			// Never propagate: one peer's failure must not cancel or
			// fail the fan-out for the others.
			return nil
		})
	}
	_ = g.Wait()
}

func (a *Adapter) send(ctx context.Context, p Peer, phase consensus.Phase, value consensus.Value, round int) error {
	msg := consensus.Message{Phase: phase, Value: value, Round: round, From: a.self}
	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.BaseURL+"/message", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send to peer %d: %w", p.ID, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("peer %d rejected message: %s", p.ID, resp.Status)
	}
	return nil
}
