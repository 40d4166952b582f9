package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dennisdiepolder/callboard/internal/aggregator"
	"github.com/dennisdiepolder/callboard/internal/cache"
	"github.com/dennisdiepolder/callboard/internal/calllog"
	"github.com/dennisdiepolder/callboard/internal/counter"
	"github.com/dennisdiepolder/callboard/internal/sheets"
	"github.com/dennisdiepolder/callboard/internal/timeslot"
	"github.com/dennisdiepolder/callboard/internal/types"
	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	callLogAliases = []string{"สรุป call_AI", "สรุป call_AI_summary", "call_AI_summary"}
	counterAliases = []string{"Call Matrix", "สรุป call_AI", "สรุป call_AI_summary", "call_AI_summary"}
	bangkok        = time.FixedZone("ICT", 7*3600)
	// 10:42 in Bangkok on 2025-11-18
	fixedNow = time.Date(2025, 11, 18, 3, 42, 0, 0, time.UTC)
)

type fakeLeads struct{ rows []map[string]interface{} }

func (f fakeLeads) List(ctx context.Context, limit int) ([]map[string]interface{}, error) {
	if limit < len(f.rows) {
		return f.rows[:limit], nil
	}
	return f.rows, nil
}

type testServer struct {
	router http.Handler
	wb     *sheets.MemoryWorkbook
	cache  *cache.Cache
	matrix *CallMatrixHandler
}

func newTestServer(t *testing.T, leadsRepo LeadLister) *testServer {
	t.Helper()

	wb := sheets.NewMemoryWorkbook()
	wb.Put("สรุป call_AI", [][]string{
		{"start", "ผู้โทร", "สรุปเวลา"},
		{"2025-11-18 9:14:57", "101", "0:00:45"},
		{"18/11/2025, 9:40:00", "102", "0:02:00"},
		{"2025-11-18 13:10:00", "101", "0:00:30"},
		{"2025-11-18 9:20:00", "109", "0:01:00"},
		{"2025-11-17 10:00:00", "101", "0:05:00"},
		{"not-a-date", "103", "0:05:00"},
	})

	header := append([]string{"agent"}, timeslot.Default().Keys()...)
	matrix := [][]string{header}
	for _, a := range []string{"101", "102", "103"} {
		row := []string{a}
		for range timeslot.Default().Keys() {
			row = append(row, "0")
		}
		matrix = append(matrix, row)
	}
	wb.Put("Call Matrix", matrix)

	wb.Put("Film data", [][]string{
		{"ผู้ติดต่อ", "วันที่ผ่าตัด", "note"},
		{" Khun A ", "2025-11-20", "x"},
		{"Khun B"},
	})

	logger := zerolog.Nop()
	table := timeslot.Default()
	c := cache.New(cache.NewMemoryStore(), "memory", 30*time.Second, logger)

	svc := aggregator.NewService(sheets.NewSource(wb, callLogAliases), calllog.DefaultColumns, table, logger)
	matrixHandler := NewCallMatrixHandler(svc, c, aggregator.Params{
		Agents:             []string{"101", "102", "103", "104", "105", "106", "107", "108"},
		MinDurationSeconds: 30,
		Rule:               aggregator.RuleAtLeast,
	}, bangkok, logger)
	matrixHandler.now = func() time.Time { return fixedNow }

	counterHandler := NewCounterHandler(counter.NewWriter(wb, counterAliases, table, bangkok, logger), c, logger)
	counterHandler.now = func() time.Time { return fixedNow }

	r := chi.NewRouter()
	Handlers{
		Matrix:   matrixHandler,
		Counter:  counterHandler,
		FilmData: NewFilmDataHandler(wb, "Film data", c, logger),
		Leads:    NewLeadsHandler(leadsRepo, logger),
		Cache:    NewCacheHandler(c, logger),
	}.Routes(r)

	return &testServer{router: r, wb: wb, cache: c, matrix: matrixHandler}
}

func (s *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	rec := httptest.NewRecorder()
	s.router.ServeHTTP(rec, req)

	var out map[string]interface{}
	if rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	}
	return rec, out
}

func TestGetMatrix(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, http.MethodGet, "/api/call-matrix?date=2025-11-18", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	assert.Equal(t, true, body["success"])
	assert.Equal(t, "2025-11-18", body["date"])
	assert.Len(t, body["timeSlots"], 11)
	assert.Equal(t, float64(3), body["totalCalls"])
	assert.Equal(t, float64(3), body["grand_total"])
	assert.Equal(t, "สรุป call_AI", body["sheet_name"])
	assert.Equal(t, false, body["cached"])

	slotCounts := body["slotCounts"].(map[string]interface{})
	assert.Equal(t, float64(1), slotCounts["9-10"].(map[string]interface{})["101"])
	assert.Equal(t, float64(1), slotCounts["9-10"].(map[string]interface{})["102"])

	totals := body["totals"].(map[string]interface{})
	assert.Equal(t, float64(2), totals["101"])
	assert.NotContains(t, totals, "109")

	criteria := body["filter_criteria"].(map[string]interface{})
	assert.Equal(t, float64(30), criteria["min_duration_seconds"])
	assert.Equal(t, "gte", criteria["duration_rule"])

	skipped := body["diagnostics"].(map[string]interface{})["skipped"].(map[string]interface{})
	assert.Equal(t, float64(1), skipped["wrong_agent"])
	assert.Equal(t, float64(1), skipped["wrong_date"])
	assert.Equal(t, float64(1), skipped["no_datetime"])

	_, again := s.do(t, http.MethodGet, "/api/call-matrix?date=2025-11-18", "")
	assert.Equal(t, true, again["cached"])
}

func TestGetMatrixDefaultsToToday(t *testing.T) {
	s := newTestServer(t, nil)

	_, body := s.do(t, http.MethodGet, "/api/call-matrix", "")
	assert.Equal(t, "2025-11-18", body["date"])
}

func TestGetMatrixQueryOverrides(t *testing.T) {
	s := newTestServer(t, nil)

	// the 30 s call at 13:10 drops out under a strict rule
	_, body := s.do(t, http.MethodGet, "/api/call-matrix?date=2025-11-18&rule=gt", "")
	assert.Equal(t, float64(2), body["totalCalls"])

	_, body = s.do(t, http.MethodGet, "/api/call-matrix?date=2025-11-18&min_duration=60", "")
	assert.Equal(t, float64(1), body["totalCalls"])
}

func TestGetMatrixErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		setup      func(*testServer)
		wantStatus int
		wantType   types.ErrorType
	}{
		{"bad rule", "/api/call-matrix?rule=lt", nil, http.StatusBadRequest, types.ErrorTypeInvalidRequest},
		{"bad min duration", "/api/call-matrix?min_duration=abc", nil, http.StatusBadRequest, types.ErrorTypeInvalidRequest},
		{"bad date", "/api/call-matrix?date=18-11-2025", nil, http.StatusBadRequest, types.ErrorTypeInvalidRequest},
		{
			"upstream down", "/api/call-matrix?date=2025-11-19",
			func(s *testServer) { s.wb.FailWith(types.ErrUpstreamUnavailable) },
			http.StatusBadGateway, types.ErrorTypeUpstreamUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			if tt.setup != nil {
				tt.setup(s)
			}

			rec, body := s.do(t, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantType != "" {
				assert.Equal(t, false, body["success"])
				assert.Equal(t, string(tt.wantType), body["error_type"])
				assert.NotEmpty(t, body["error"])
			}
		})
	}
}

func TestGetMatrixSheetNotFound(t *testing.T) {
	s := newTestServer(t, nil)

	// no alias resolves against this workbook
	empty := sheets.NewMemoryWorkbook()
	empty.Put("Sheet1", nil)
	svc := aggregator.NewService(sheets.NewSource(empty, callLogAliases), calllog.DefaultColumns, timeslot.Default(), zerolog.Nop())
	h := NewCallMatrixHandler(svc, s.cache, aggregator.Params{Agents: []string{"101"}, Rule: aggregator.RuleAtLeast}, bangkok, zerolog.Nop())

	rec := httptest.NewRecorder()
	h.GetMatrix(rec, httptest.NewRequest(http.MethodGet, "/api/call-matrix?date=2025-11-18", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "sheet_not_found", body["error_type"])
}

func TestSummaries(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, http.MethodGet, "/api/call-matrix/agents/101?date=2025-11-18", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "101", body["agent_id"])
	assert.Equal(t, float64(2), body["total_calls"])

	rec, body = s.do(t, http.MethodGet, "/api/call-matrix/slots/9-10?date=2025-11-18", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "09:00-10:00", body["label"])
	assert.Equal(t, float64(2), body["total_calls"])

	rec, body = s.do(t, http.MethodGet, "/api/call-matrix/agents/999?date=2025-11-18", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "not_found", body["error_type"])

	rec, _ = s.do(t, http.MethodGet, "/api/call-matrix/slots/8-9?date=2025-11-18", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIncrementInvalidatesMatrixCache(t *testing.T) {
	s := newTestServer(t, nil)

	s.do(t, http.MethodGet, "/api/call-matrix?date=2025-11-18", "")
	_, body := s.do(t, http.MethodGet, "/api/call-matrix?date=2025-11-18", "")
	require.Equal(t, true, body["cached"])

	rec, body := s.do(t, http.MethodPost, "/api/call-matrix/increment", `{"agentId":"101","slotKey":"9-10"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, true, body["success"])
	assert.Equal(t, float64(0), body["oldValue"])
	assert.Equal(t, float64(1), body["newValue"])
	assert.Equal(t, "1", s.wb.Cell("Call Matrix", 2, 2))

	_, body = s.do(t, http.MethodGet, "/api/call-matrix?date=2025-11-18", "")
	assert.Equal(t, false, body["cached"])
}

func TestCounterWrites(t *testing.T) {
	s := newTestServer(t, nil)

	tests := []struct {
		name       string
		path       string
		body       string
		wantStatus int
		check      func(t *testing.T, body map[string]interface{})
	}{
		{
			name: "increment by delta", path: "/api/call-matrix/increment",
			body: `{"agentId":"102","slotKey":"11-12","increment":3}`, wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, float64(3), body["newValue"])
			},
		},
		{
			name: "increment unknown agent", path: "/api/call-matrix/increment",
			body: `{"agentId":"999","slotKey":"9-10"}`, wantStatus: http.StatusNotFound,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, false, body["success"])
				assert.Equal(t, "not_found", body["error_type"])
				assert.NotEmpty(t, body["error"])
			},
		},
		{
			name: "increment missing slot", path: "/api/call-matrix/increment",
			body: `{"agentId":"101"}`, wantStatus: http.StatusBadRequest,
		},
		{
			name: "set", path: "/api/call-matrix/set",
			body: `{"agentId":"103","slotKey":"19-20","value":7}`, wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, float64(0), body["oldValue"])
				assert.Equal(t, float64(7), body["newValue"])
			},
		},
		{
			name: "set without value", path: "/api/call-matrix/set",
			body: `{"agentId":"103","slotKey":"19-20"}`, wantStatus: http.StatusBadRequest,
		},
		{
			name: "log call in current slot", path: "/api/call-matrix/log",
			body: `{"agentId":"101"}`, wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, "10-11", body["slotKey"])
				assert.Equal(t, float64(1), body["newValue"])
			},
		},
		{
			name: "batch with one unresolvable entry", path: "/api/call-matrix/batch",
			body:       `[{"agentId":"101","slotKey":"12-13","value":4},{"agentId":"999","slotKey":"12-13","value":1}]`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, true, body["success"])
				assert.Equal(t, float64(1), body["updatedCount"])
				assert.Len(t, body["skipped"], 1)
			},
		},
		{
			name: "batch wrapped in object", path: "/api/call-matrix/batch",
			body:       `{"updates":[{"agentId":"102","slotKey":"12-13","value":2}]}`,
			wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, float64(1), body["updatedCount"])
			},
		},
		{
			name: "batch empty", path: "/api/call-matrix/batch",
			body: `[]`, wantStatus: http.StatusOK,
			check: func(t *testing.T, body map[string]interface{}) {
				assert.Equal(t, true, body["success"])
				assert.Equal(t, float64(0), body["updatedCount"])
			},
		},
		{
			name: "batch malformed", path: "/api/call-matrix/batch",
			body: `"nope"`, wantStatus: http.StatusBadRequest,
		},
		{
			name: "empty body", path: "/api/call-matrix/increment",
			body: ` `, wantStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := s.do(t, http.MethodPost, tt.path, tt.body)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.check != nil {
				tt.check(t, body)
			}
		})
	}

	assert.Equal(t, "4", s.wb.Cell("Call Matrix", 2, 5))
	assert.Equal(t, "2", s.wb.Cell("Call Matrix", 3, 5))
}

func TestLogCallOutsideHours(t *testing.T) {
	s := newTestServer(t, nil)
	h := NewCounterHandler(counter.NewWriter(s.wb, counterAliases, timeslot.Default(), bangkok, zerolog.Nop()), s.cache, zerolog.Nop())
	h.now = func() time.Time { return time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC) } // 21:00 in Bangkok

	rec := httptest.NewRecorder()
	h.LogCall(rec, httptest.NewRequest(http.MethodPost, "/api/call-matrix/log", bytes.NewBufferString(`{"agentId":"101"}`)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "Not in working hours (9:00-20:00)")
}

func TestFilmData(t *testing.T) {
	s := newTestServer(t, nil)

	rec, body := s.do(t, http.MethodGet, "/api/film-data", "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, false, body["cached"])

	data := body["data"].([]interface{})
	first := data[0].(map[string]interface{})
	assert.Equal(t, "film-2", first["id"])
	assert.Equal(t, "Khun A", first["contact_person"])
	assert.Equal(t, "2025-11-20", first["surgery_date"])
	assert.Equal(t, "", first["date_consult_scheduled"])
	assert.Equal(t, "film-3", data[1].(map[string]interface{})["id"])

	_, body = s.do(t, http.MethodGet, "/api/film-data", "")
	assert.Equal(t, true, body["cached"])
}

func TestLeads(t *testing.T) {
	s := newTestServer(t, nil)
	rec, body := s.do(t, http.MethodGet, "/api/leads", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "configuration_missing", body["error_type"])

	s = newTestServer(t, fakeLeads{rows: []map[string]interface{}{{"id": 1}, {"id": 2}, {"id": 3}}})
	rec, body = s.do(t, http.MethodGet, "/api/leads?limit=2", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), body["count"])

	rec, _ = s.do(t, http.MethodGet, "/api/leads?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestClearCache(t *testing.T) {
	s := newTestServer(t, nil)
	s.do(t, http.MethodGet, "/api/film-data", "")

	rec, body := s.do(t, http.MethodPost, "/api/clear-cache", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), body["removed"])

	_, body = s.do(t, http.MethodGet, "/api/film-data", "")
	assert.Equal(t, false, body["cached"])
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{types.ErrNotFound, http.StatusNotFound},
		{&sheets.NotFoundError{}, http.StatusNotFound},
		{types.ErrConfigurationMissing, http.StatusBadRequest},
		{types.ErrInvalidRequest, http.StatusBadRequest},
		{types.ErrUpstreamUnavailable, http.StatusBadGateway},
		{context.DeadlineExceeded, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		if got := statusFor(tt.err); got != tt.want {
			t.Errorf("statusFor(%v) = %d, want %d", tt.err, got, tt.want)
		}
	}
}

func TestRefreshWarmsTodaysMatrix(t *testing.T) {
	s := newTestServer(t, nil)

	require.NoError(t, s.matrix.Refresh(context.Background()))

	// today in Bangkok is 2025-11-18, so the default GET is a cache hit
	rec, body := s.do(t, http.MethodGet, "/api/call-matrix", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, true, body["cached"])
	assert.Equal(t, "2025-11-18", body["date"])

	s.wb.FailWith(types.ErrUpstreamUnavailable)
	assert.Error(t, s.matrix.Refresh(context.Background()))
}
