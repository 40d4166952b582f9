package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/dennisdiepolder/callboard/internal/aggregator"
	"github.com/dennisdiepolder/callboard/internal/cache"
	"github.com/dennisdiepolder/callboard/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
)

// MatrixCachePrefix namespaces every cached call-matrix response
const MatrixCachePrefix = "call-matrix:"

// CallMatrixHandler serves the agent x time-slot call matrix
type CallMatrixHandler struct {
	svc      *aggregator.Service
	cache    *cache.Cache
	defaults aggregator.Params
	loc      *time.Location
	now      func() time.Time
	logger   zerolog.Logger
}

// NewCallMatrixHandler creates a new CallMatrixHandler. defaults supplies the
// agent allow-list, minimum duration and rule; TargetDate is ignored.
func NewCallMatrixHandler(svc *aggregator.Service, c *cache.Cache, defaults aggregator.Params, loc *time.Location, logger zerolog.Logger) *CallMatrixHandler {
	if loc == nil {
		loc = time.UTC
	}
	return &CallMatrixHandler{
		svc:      svc,
		cache:    c,
		defaults: defaults,
		loc:      loc,
		now:      time.Now,
		logger:   logger.With().Str("component", "call_matrix_handler").Logger(),
	}
}

type diagnostics struct {
	RecordsRead int              `json:"records_read"`
	Skipped     types.SkipCounts `json:"skipped"`
}

type matrixResponse struct {
	Success        bool                      `json:"success"`
	Date           string                    `json:"date"`
	TimeSlots      []string                  `json:"timeSlots"`
	SlotLabels     map[string]string         `json:"slotLabels"`
	SlotCounts     map[string]map[string]int `json:"slotCounts"`
	Totals         map[string]int            `json:"totals"`
	TotalCalls     int                       `json:"totalCalls"`
	FilterCriteria types.FilterCriteria      `json:"filter_criteria"`
	MatrixData     map[string]map[string]int `json:"matrix_data"`
	TotalsBySlot   map[string]int            `json:"totals_by_slot"`
	GrandTotal     int                       `json:"grand_total"`
	ProcessedCalls int                       `json:"processed_calls"`
	SheetName      string                    `json:"sheet_name"`
	LastUpdated    string                    `json:"last_updated"`
	Diagnostics    diagnostics               `json:"diagnostics"`
	Cached         bool                      `json:"cached"`
}

func (h *CallMatrixHandler) newMatrixResponse(m *types.CallMatrix) matrixResponse {
	labels := make(map[string]string, len(m.Slots))
	for _, s := range m.Slots {
		labels[s.Key] = s.Label
	}

	return matrixResponse{
		Success:        true,
		Date:           m.Date,
		TimeSlots:      m.SlotKeys(),
		SlotLabels:     labels,
		SlotCounts:     m.SlotCounts(),
		Totals:         m.TotalsByAgent,
		TotalCalls:     m.GrandTotal,
		FilterCriteria: m.Criteria,
		MatrixData:     m.Matrix,
		TotalsBySlot:   m.TotalsBySlot,
		GrandTotal:     m.GrandTotal,
		ProcessedCalls: m.ProcessedCount,
		SheetName:      m.Source,
		LastUpdated:    h.now().In(h.loc).Format("2006-01-02 15:04:05"),
		Diagnostics:    diagnostics{RecordsRead: m.RecordsRead, Skipped: m.Skipped},
	}
}

// params resolves query overrides on top of the configured defaults
func (h *CallMatrixHandler) params(r *http.Request) (aggregator.Params, error) {
	q := r.URL.Query()
	p := h.defaults

	p.TargetDate = q.Get("date")
	if p.TargetDate == "" {
		p.TargetDate = h.now().In(h.loc).Format("2006-01-02")
	}

	if v := q.Get("min_duration"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return p, fmt.Errorf("%w: min_duration must be an integer", types.ErrInvalidRequest)
		}
		p.MinDurationSeconds = n
	}

	if v := q.Get("rule"); v != "" {
		rule, err := aggregator.ParseDurationRule(v)
		if err != nil {
			return p, err
		}
		p.Rule = rule
	}

	return p, p.Validate()
}

func cacheKey(kind string, p aggregator.Params, extra string) string {
	return fmt.Sprintf("%s%s:%s:%d:%s:%s", MatrixCachePrefix, kind, p.TargetDate, p.MinDurationSeconds, p.Rule, extra)
}

// serveCached answers from the cache or runs load once for concurrent callers.
// Loads detach from the request so a dropped client does not fail the others.
func (h *CallMatrixHandler) serveCached(w http.ResponseWriter, r *http.Request, key string, load func(ctx context.Context) (interface{}, error)) {
	data, cached, err := h.cache.GetOrLoad(context.WithoutCancel(r.Context()), key, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeRaw(w, http.StatusOK, withCachedFlag(data, cached))
}

// GetMatrix returns the call matrix for a date
// GET /api/call-matrix?date=YYYY-MM-DD&min_duration=30&rule=gte
func (h *CallMatrixHandler) GetMatrix(w http.ResponseWriter, r *http.Request) {
	p, err := h.params(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.serveCached(w, r, cacheKey("matrix", p, ""), func(ctx context.Context) (interface{}, error) {
		m, err := h.svc.Build(ctx, p)
		if err != nil {
			return nil, err
		}
		return h.newMatrixResponse(m), nil
	})
}

type agentSummaryResponse struct {
	Success bool `json:"success"`
	*types.AgentSummary
}

// GetAgentSummary returns one agent's calls by slot
// GET /api/call-matrix/agents/{agentId}?date=YYYY-MM-DD
func (h *CallMatrixHandler) GetAgentSummary(w http.ResponseWriter, r *http.Request) {
	agentID := chi.URLParam(r, "agentId")
	p, err := h.params(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.serveCached(w, r, cacheKey("agent", p, agentID), func(ctx context.Context) (interface{}, error) {
		s, err := h.svc.AgentSummary(ctx, p, agentID)
		if err != nil {
			return nil, err
		}
		return agentSummaryResponse{Success: true, AgentSummary: s}, nil
	})
}

type slotSummaryResponse struct {
	Success bool `json:"success"`
	*types.SlotSummary
}

// GetSlotSummary returns one slot's calls by agent
// GET /api/call-matrix/slots/{slotKey}?date=YYYY-MM-DD
func (h *CallMatrixHandler) GetSlotSummary(w http.ResponseWriter, r *http.Request) {
	slotKey := chi.URLParam(r, "slotKey")
	p, err := h.params(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	h.serveCached(w, r, cacheKey("slot", p, slotKey), func(ctx context.Context) (interface{}, error) {
		s, err := h.svc.SlotSummary(ctx, p, slotKey)
		if err != nil {
			return nil, err
		}
		return slotSummaryResponse{Success: true, SlotSummary: s}, nil
	})
}

// Refresh rebuilds today's default matrix and replaces the cached copy so
// the next GET is served warm.
func (h *CallMatrixHandler) Refresh(ctx context.Context) error {
	p := h.defaults
	p.TargetDate = h.now().In(h.loc).Format("2006-01-02")

	m, err := h.svc.Build(ctx, p)
	if err != nil {
		return err
	}
	data, err := json.Marshal(h.newMatrixResponse(m))
	if err != nil {
		return err
	}
	return h.cache.Set(ctx, cacheKey("matrix", p, ""), data, 0)
}
