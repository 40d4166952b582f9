package api

import (
	"net/http"

	"github.com/dennisdiepolder/callboard/internal/cache"
	"github.com/rs/zerolog"
)

// CacheHandler exposes manual cache control
type CacheHandler struct {
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewCacheHandler creates a new CacheHandler
func NewCacheHandler(c *cache.Cache, logger zerolog.Logger) *CacheHandler {
	return &CacheHandler{
		cache:  c,
		logger: logger.With().Str("component", "cache_handler").Logger(),
	}
}

// ClearCache drops every cached response
// POST /api/clear-cache
func (h *CacheHandler) ClearCache(w http.ResponseWriter, r *http.Request) {
	n, err := h.cache.Clear(r.Context())
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"message": "Cache cleared",
		"removed": n,
	})
}
