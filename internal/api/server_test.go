package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/asyncconsensus/benor/internal/consensus"
	"github.com/asyncconsensus/benor/internal/metrics"
)

// fakeParticipant is a scriptable consensus.Participant for exercising
// the HTTP layer in isolation from the real Driver.
type fakeParticipant struct {
	alive     bool
	state     consensus.StateSnapshot
	startErr  error
	delivered []consensus.Message
	deliverErr error
}

func (f *fakeParticipant) Alive() bool                  { return f.alive }
func (f *fakeParticipant) State() consensus.StateSnapshot { return f.state }
func (f *fakeParticipant) Start(ctx context.Context) error { return f.startErr }
func (f *fakeParticipant) Stop()                         {}
func (f *fakeParticipant) Deliver(msg consensus.Message) error {
	if f.deliverErr != nil {
		return f.deliverErr
	}
	f.delivered = append(f.delivered, msg)
	return nil
}

func TestHandleStatusLiveAndFaulty(t *testing.T) {
	live := &fakeParticipant{alive: true}
	srv := httptest.NewServer(New(live, 3, metrics.New(), nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	faulty := &fakeParticipant{alive: false}
	srv2 := httptest.NewServer(New(faulty, 3, metrics.New(), nil))
	defer srv2.Close()

	resp2, err := http.Get(srv2.URL + "/status")
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp2.StatusCode)
}

func TestHandleGetStateEncodesNullsForFaultyFields(t *testing.T) {
	p := &fakeParticipant{state: consensus.StateSnapshot{Killed: false}}
	srv := httptest.NewServer(New(p, 3, metrics.New(), nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/getState")
	require.NoError(t, err)
	defer resp.Body.Close()

	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.Equal(t, false, body["killed"])
	require.Nil(t, body["x"])
	require.Nil(t, body["decided"])
	require.Nil(t, body["k"])
}

func TestHandleStartSuccessAndFailure(t *testing.T) {
	ok := &fakeParticipant{}
	srv := httptest.NewServer(New(ok, 3, metrics.New(), nil))
	defer srv.Close()
	resp, err := http.Get(srv.URL + "/start")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	failing := &fakeParticipant{startErr: consensus.ErrFaulty}
	srv2 := httptest.NewServer(New(failing, 3, metrics.New(), nil))
	defer srv2.Close()
	resp2, err := http.Get(srv2.URL + "/start")
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp2.StatusCode)
}

func TestHandleMessageRejectsMalformedBody(t *testing.T) {
	p := &fakeParticipant{}
	srv := httptest.NewServer(New(p, 3, metrics.New(), nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/message", "application/json", bytes.NewReader([]byte("{not json")))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHandleMessageRejectsOutOfRangeSender(t *testing.T) {
	p := &fakeParticipant{}
	srv := httptest.NewServer(New(p, 3, metrics.New(), nil))
	defer srv.Close()

	body, _ := json.Marshal(map[string]interface{}{"phase": 1, "value": 0, "k": 0, "from": 99})
	resp, err := http.Post(srv.URL+"/message", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.Empty(t, p.delivered)
}

func TestHandleMessageDeliversValidMessage(t *testing.T) {
	p := &fakeParticipant{}
	srv := httptest.NewServer(New(p, 3, metrics.New(), nil))
	defer srv.Close()

	body, _ := json.Marshal(map[string]interface{}{"phase": 2, "value": "?", "k": 1, "from": 1})
	resp, err := http.Post(srv.URL+"/message", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Len(t, p.delivered, 1)
	require.Equal(t, consensus.Unknown, p.delivered[0].Value)
}

func TestHandleMessageRejectsKilledNode(t *testing.T) {
	p := &fakeParticipant{deliverErr: consensus.ErrKilled}
	srv := httptest.NewServer(New(p, 3, metrics.New(), nil))
	defer srv.Close()

	body, _ := json.Marshal(map[string]interface{}{"phase": 1, "value": 0, "k": 0, "from": 1})
	resp, err := http.Post(srv.URL+"/message", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	require.Equal(t, http.StatusInternalServerError, resp.StatusCode)
}

func TestHandleCounters(t *testing.T) {
	m := metrics.New()
	m.IncDecisions()
	p := &fakeParticipant{}
	srv := httptest.NewServer(New(p, 3, m, nil))
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/debug/counters")
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var snap metrics.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	require.Equal(t, int64(1), snap.Decisions)
}
