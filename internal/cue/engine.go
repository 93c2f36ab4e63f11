// Package cue implements the request/response lifecycle: a PENDING cue
// request receives exactly one terminal answer (COMPLETED or CANCELLED),
// after which further submissions are silently ignored.
package cue

import (
	"encoding/json"
	"fmt"

	"github.com/cuedeck/cuedeck/internal/store"
)

// ResponsePayload is the JSON body persisted in cue_responses.response_json
// and read back by the MCP server process.
type ResponsePayload struct {
	Text     string             `json:"text"`
	Images   []store.Attachment `json:"images,omitempty"`
	Mentions []string           `json:"mentions,omitempty"`
}

type Engine struct {
	store *store.Store
}

func NewEngine(s *store.Store) *Engine {
	return &Engine{store: s}
}

func encodePayload(text string, images []store.Attachment, mentions []string) (string, error) {
	b, err := json.Marshal(ResponsePayload{Text: text, Images: images, Mentions: mentions})
	if err != nil {
		return "", fmt.Errorf("encode response: %w", err)
	}
	return string(b), nil
}

// SubmitResponse answers a pending request. The response insert is
// first-write-wins; the status flip is unconditional, so re-submitting an
// already-answered request succeeds without changing the stored answer.
func (e *Engine) SubmitResponse(requestID, text string, images []store.Attachment, mentions []string) error {
	payload, err := encodePayload(text, images, mentions)
	if err != nil {
		return err
	}
	if _, err := e.store.InsertResponse(requestID, payload, false); err != nil {
		return err
	}
	return e.store.SetRequestStatus(requestID, store.StatusCompleted)
}

// CancelRequest records a cancellation for a request. Same idempotency
// rules as SubmitResponse.
func (e *Engine) CancelRequest(requestID string) error {
	payload, err := encodePayload("", nil, nil)
	if err != nil {
		return err
	}
	if _, err := e.store.InsertResponse(requestID, payload, true); err != nil {
		return err
	}
	return e.store.SetRequestStatus(requestID, store.StatusCancelled)
}

// BatchRespond answers every listed request with the same payload inside a
// single transaction.
func (e *Engine) BatchRespond(requestIDs []string, text string, images []store.Attachment, mentions []string) error {
	if len(requestIDs) == 0 {
		return nil
	}
	payload, err := encodePayload(text, images, mentions)
	if err != nil {
		return err
	}
	return e.store.RespondAll(requestIDs, payload, false, store.StatusCompleted)
}

// BatchCancel cancels every listed request inside a single transaction.
func (e *Engine) BatchCancel(requestIDs []string) error {
	if len(requestIDs) == 0 {
		return nil
	}
	payload, err := encodePayload("", nil, nil)
	if err != nil {
		return err
	}
	return e.store.RespondAll(requestIDs, payload, true, store.StatusCancelled)
}

// Pending returns the pending requests, optionally scoped to one agent.
func (e *Engine) Pending(agentID string) ([]store.CueRequest, error) {
	return e.store.ListRequests(store.RequestFilter{AgentID: agentID, Status: store.StatusPending})
}

// DecodeResponse parses a stored response_json back into its payload.
// Malformed bodies decode to a payload with the raw text preserved.
func DecodeResponse(responseJSON string) ResponsePayload {
	var p ResponsePayload
	if err := json.Unmarshal([]byte(responseJSON), &p); err != nil {
		return ResponsePayload{Text: responseJSON}
	}
	return p
}
