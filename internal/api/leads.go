package api

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/dennisdiepolder/callboard/internal/leads"
	"github.com/dennisdiepolder/callboard/internal/types"
	"github.com/rs/zerolog"
)

// LeadLister reads CRM leads
type LeadLister interface {
	List(ctx context.Context, limit int) ([]map[string]interface{}, error)
}

// LeadsHandler serves the leads passthrough
type LeadsHandler struct {
	repo   LeadLister
	logger zerolog.Logger
}

// NewLeadsHandler creates a new LeadsHandler; repo may be nil when no database is configured
func NewLeadsHandler(repo LeadLister, logger zerolog.Logger) *LeadsHandler {
	return &LeadsHandler{
		repo:   repo,
		logger: logger.With().Str("component", "leads_handler").Logger(),
	}
}

// GetLeads returns up to ?limit= rows
// GET /api/leads?limit=10
func (h *LeadsHandler) GetLeads(w http.ResponseWriter, r *http.Request) {
	if h.repo == nil {
		writeError(w, h.logger, fmt.Errorf("%w: DATABASE_URL is not set", types.ErrConfigurationMissing))
		return
	}

	limit := leads.DefaultLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, h.logger, fmt.Errorf("%w: limit must be an integer", types.ErrInvalidRequest))
			return
		}
		limit = leads.ClampLimit(n)
	}

	rows, err := h.repo.List(r.Context(), limit)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"data":    rows,
		"count":   len(rows),
		"limit":   limit,
	})
}
