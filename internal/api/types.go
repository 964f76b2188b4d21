package api

import "github.com/asyncconsensus/benor/internal/consensus"

// messageRequest mirrors the POST /message body: {phase, value, k, from}.
type messageRequest struct {
	Phase consensus.Phase `json:"phase"`
	Value consensus.Value `json:"value"`
	K     int             `json:"k"`
	From  int             `json:"from"`
}

func (r messageRequest) toMessage() consensus.Message {
	return consensus.Message{Phase: r.Phase, Value: r.Value, Round: r.K, From: r.From}
}

type successBody struct {
	Success bool `json:"success"`
}

type errorBody struct {
	Error string `json:"error"`
}
