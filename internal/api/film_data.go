package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dennisdiepolder/callboard/internal/cache"
	"github.com/dennisdiepolder/callboard/internal/calllog"
	"github.com/dennisdiepolder/callboard/internal/sheets"
	"github.com/rs/zerolog"
)

const filmDataCacheKey = "film-data"

// normalised film-data fields and the worksheet headers they come from
var filmDataFields = []struct{ field, header string }{
	{"contact_person", "ผู้ติดต่อ"},
	{"date_surgery_scheduled", "วันที่ได้นัดผ่าตัด"},
	{"date_consult_scheduled", "วันที่ได้นัด consult"},
	{"surgery_date", "วันที่ผ่าตัด"},
}

// FilmDataHandler serves the surgery schedule worksheet
type FilmDataHandler struct {
	wb     sheets.Workbook
	sheet  string
	cache  *cache.Cache
	logger zerolog.Logger
}

// NewFilmDataHandler creates a new FilmDataHandler
func NewFilmDataHandler(wb sheets.Workbook, sheet string, c *cache.Cache, logger zerolog.Logger) *FilmDataHandler {
	return &FilmDataHandler{
		wb:     wb,
		sheet:  sheet,
		cache:  c,
		logger: logger.With().Str("component", "film_data_handler").Logger(),
	}
}

// FilmRecords zips worksheet rows into records with a row id and normalised fields
func FilmRecords(rows [][]string) []map[string]string {
	records := calllog.ZipRows(rows)
	for i, rec := range records {
		rec["id"] = fmt.Sprintf("film-%d", i+2) // worksheet row number
		for _, f := range filmDataFields {
			rec[f.field] = strings.TrimSpace(rec[f.header])
		}
	}
	return records
}

type filmDataResponse struct {
	Success   bool                `json:"success"`
	Data      []map[string]string `json:"data"`
	Total     int                 `json:"total"`
	Timestamp string              `json:"timestamp"`
	Source    string              `json:"source"`
	Cached    bool                `json:"cached"`
	CacheInfo struct {
		Duration int `json:"duration"`
	} `json:"cache_info"`
}

// GetFilmData returns the film-data worksheet as records
// GET /api/film-data
func (h *FilmDataHandler) GetFilmData(w http.ResponseWriter, r *http.Request) {
	data, cached, err := h.cache.GetOrLoad(context.WithoutCancel(r.Context()), filmDataCacheKey, func(ctx context.Context) ([]byte, error) {
		set, err := sheets.Sheet(ctx, h.wb, h.sheet)
		if err != nil {
			return nil, err
		}

		resp := filmDataResponse{
			Success:   true,
			Data:      FilmRecords(set.Rows),
			Timestamp: time.Now().Format(time.RFC3339),
			Source:    set.Origin,
		}
		resp.Total = len(resp.Data)
		resp.CacheInfo.Duration = int(h.cache.TTL().Seconds())

		h.logger.Info().Int("records", resp.Total).Msg("Film data fetched")
		return json.Marshal(resp)
	})
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeRaw(w, http.StatusOK, withCachedFlag(data, cached))
}
