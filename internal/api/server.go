// Package api implements the HTTP wire surface of a node's control
// surface: five protocol JSON endpoints plus /debug/counters over a
// gorilla/mux router, the same router
// moby-moby vendors for its own daemon API server.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/asyncconsensus/benor/internal/consensus"
	"github.com/asyncconsensus/benor/internal/metrics"
)

// Server wires a consensus.Participant (the Driver or the faulty-node
// variant) to its HTTP endpoints.
type Server struct {
	router  *mux.Router
	node    consensus.Participant
	n       int
	metrics *metrics.Counters
	log     logrus.FieldLogger
}

// New builds a Server for node, which is assumed to belong to a group of
// n members. metrics may be nil, in which case /debug/counters reports an
// all-zero snapshot.
func New(node consensus.Participant, n int, m *metrics.Counters, log logrus.FieldLogger) *Server {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if m == nil {
		m = metrics.New()
	}
	s := &Server{node: node, n: n, metrics: m, log: log}
	s.router = mux.NewRouter()
	s.router.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/getState", s.handleGetState).Methods(http.MethodGet)
	s.router.HandleFunc("/start", s.handleStart).Methods(http.MethodGet)
	s.router.HandleFunc("/stop", s.handleStop).Methods(http.MethodGet)
	s.router.HandleFunc("/message", s.handleMessage).Methods(http.MethodPost)
	s.router.HandleFunc("/debug/counters", s.handleCounters).Methods(http.MethodGet)
	return s
}

// ServeHTTP makes Server usable directly with http.ListenAndServe.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if s.node.Alive() {
		writeJSON(w, http.StatusOK, "live")
		return
	}
	writeJSON(w, http.StatusInternalServerError, "faulty")
}

func (s *Server) handleGetState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.node.State())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	// The round loop outlives this request, so it must not inherit the
	// request context, which is cancelled as soon as the handler returns.
	if err := s.node.Start(context.Background()); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.node.Stop()
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

func (s *Server) handleMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.log.WithError(err).Debug("rejected malformed /message body")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "malformed request body"})
		return
	}
	msg := req.toMessage()
	if err := msg.Validate(s.n); err != nil {
		s.log.WithError(err).Debug("rejected invalid /message")
		writeJSON(w, http.StatusBadRequest, errorBody{Error: err.Error()})
		return
	}
	if err := s.node.Deliver(msg); err != nil {
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, successBody{Success: true})
}

func (s *Server) handleCounters(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.metrics.Snapshot())
}

// _ ensures Server satisfies http.Handler at compile time.
var _ http.Handler = (*Server)(nil)
