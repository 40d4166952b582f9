package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/dennisdiepolder/callboard/internal/cache"
	"github.com/dennisdiepolder/callboard/internal/counter"
	"github.com/dennisdiepolder/callboard/internal/types"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1 << 20

// CounterHandler accepts manual counter writes against the matrix worksheet
type CounterHandler struct {
	writer *counter.Writer
	cache  *cache.Cache
	now    func() time.Time
	logger zerolog.Logger
}

// NewCounterHandler creates a new CounterHandler
func NewCounterHandler(writer *counter.Writer, c *cache.Cache, logger zerolog.Logger) *CounterHandler {
	return &CounterHandler{
		writer: writer,
		cache:  c,
		now:    time.Now,
		logger: logger.With().Str("component", "counter_handler").Logger(),
	}
}

type counterRequest struct {
	AgentID   string `json:"agentId"`
	SlotKey   string `json:"slotKey"`
	Increment *int   `json:"increment"`
	Value     *int   `json:"value"`
}

func decodeBody(r *http.Request, v interface{}) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("%w: failed to read body", types.ErrInvalidRequest)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return fmt.Errorf("%w: request body is required", types.ErrInvalidRequest)
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("%w: invalid JSON: %v", types.ErrInvalidRequest, err)
	}
	return nil
}

func (h *CounterHandler) decodeCounter(r *http.Request, needSlot bool) (counterRequest, error) {
	var req counterRequest
	if err := decodeBody(r, &req); err != nil {
		return req, err
	}
	req.AgentID = strings.TrimSpace(req.AgentID)
	req.SlotKey = strings.TrimSpace(req.SlotKey)

	if req.AgentID == "" {
		return req, fmt.Errorf("%w: agentId is required", types.ErrInvalidRequest)
	}
	if needSlot && req.SlotKey == "" {
		return req, fmt.Errorf("%w: slotKey is required", types.ErrInvalidRequest)
	}
	return req, nil
}

// invalidate drops cached matrices after a successful write
func (h *CounterHandler) invalidate(ctx context.Context) {
	if _, err := h.cache.InvalidatePrefix(ctx, MatrixCachePrefix); err != nil {
		h.logger.Warn().Err(err).Msg("failed to invalidate call matrix cache")
	}
}

func (h *CounterHandler) writeResult(w http.ResponseWriter, r *http.Request, res types.CounterResult, err error) {
	if err != nil {
		h.logger.Debug().Err(err).Str("agent", res.AgentID).Str("slot", res.SlotKey).Msg("counter write failed")
		writeJSON(w, statusFor(err), res)
		return
	}
	h.invalidate(r.Context())
	writeJSON(w, http.StatusOK, res)
}

// LogCall increments the current time slot for an agent
// POST /api/call-matrix/log {"agentId": "101"}
func (h *CounterHandler) LogCall(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeCounter(r, false)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	res, err := h.writer.LogCall(r.Context(), req.AgentID, h.now())
	h.writeResult(w, r, res, err)
}

// Increment adds to an (agent, slot) cell
// POST /api/call-matrix/increment {"agentId": "101", "slotKey": "9-10", "increment": 1}
func (h *CounterHandler) Increment(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeCounter(r, true)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	delta := 1
	if req.Increment != nil {
		delta = *req.Increment
	}

	res, err := h.writer.Increment(r.Context(), req.AgentID, req.SlotKey, delta)
	h.writeResult(w, r, res, err)
}

// Set overwrites an (agent, slot) cell
// POST /api/call-matrix/set {"agentId": "101", "slotKey": "9-10", "value": 4}
func (h *CounterHandler) Set(w http.ResponseWriter, r *http.Request) {
	req, err := h.decodeCounter(r, true)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if req.Value == nil {
		writeError(w, h.logger, fmt.Errorf("%w: value is required", types.ErrInvalidRequest))
		return
	}

	res, err := h.writer.Set(r.Context(), req.AgentID, req.SlotKey, *req.Value)
	h.writeResult(w, r, res, err)
}

// Batch sets many cells in one write. The body is an array of updates or
// an object with an "updates" array.
// POST /api/call-matrix/batch [{"agentId": "101", "slotKey": "9-10", "value": 4}]
func (h *CounterHandler) Batch(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := decodeBody(r, &raw); err != nil {
		writeError(w, h.logger, err)
		return
	}

	var updates []types.BatchUpdate
	if err := json.Unmarshal(raw, &updates); err != nil {
		var wrapped struct {
			Updates []types.BatchUpdate `json:"updates"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil {
			writeError(w, h.logger, fmt.Errorf("%w: expected an array of {agentId, slotKey, value}", types.ErrInvalidRequest))
			return
		}
		updates = wrapped.Updates
	}

	res, err := h.writer.Batch(r.Context(), updates)
	if err != nil {
		writeJSON(w, statusFor(err), res)
		return
	}
	if res.UpdatedCount > 0 {
		h.invalidate(r.Context())
	}
	writeJSON(w, http.StatusOK, res)
}
