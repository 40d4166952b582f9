package api

import (
	"encoding/json"
	"net/http"

	"github.com/dennisdiepolder/callboard/internal/types"
	"github.com/rs/zerolog"
)

type errorResponse struct {
	Success   bool            `json:"success"`
	Error     string          `json:"error"`
	ErrorType types.ErrorType `json:"error_type"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeRaw(w http.ResponseWriter, status int, data []byte) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

// statusFor maps an error to its HTTP status
func statusFor(err error) int {
	switch types.ErrorTypeOf(err) {
	case types.ErrorTypeNotFound, types.ErrorTypeSheetNotFound:
		return http.StatusNotFound
	case types.ErrorTypeConfigurationMissing, types.ErrorTypeInvalidRequest:
		return http.StatusBadRequest
	case types.ErrorTypeUpstreamUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, logger zerolog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error().Err(err).Msg("request failed")
	} else {
		logger.Debug().Err(err).Int("status", status).Msg("request rejected")
	}

	writeJSON(w, status, errorResponse{
		Success:   false,
		Error:     err.Error(),
		ErrorType: types.ErrorTypeOf(err),
	})
}

// withCachedFlag sets the top-level "cached" field of a JSON object
func withCachedFlag(data []byte, cached bool) []byte {
	var body map[string]json.RawMessage
	if err := json.Unmarshal(data, &body); err != nil {
		return data
	}
	body["cached"] = json.RawMessage("false")
	if cached {
		body["cached"] = json.RawMessage("true")
	}
	out, err := json.Marshal(body)
	if err != nil {
		return data
	}
	return out
}
