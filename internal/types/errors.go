package types

import "errors"

// ErrorType classifies failures in JSON results
type ErrorType string

const (
	ErrorTypeMalformedInput       ErrorType = "malformed_input"
	ErrorTypeNotFound             ErrorType = "not_found"
	ErrorTypeSheetNotFound        ErrorType = "sheet_not_found"
	ErrorTypeUpstreamUnavailable  ErrorType = "upstream_unavailable"
	ErrorTypeConfigurationMissing ErrorType = "configuration_missing"
	ErrorTypeInvalidRequest       ErrorType = "invalid_request"
	ErrorTypeUnknown              ErrorType = "unknown"
)

var (
	ErrMalformedInput       = errors.New("malformed input")
	ErrNotFound             = errors.New("not found")
	ErrUpstreamUnavailable  = errors.New("upstream unavailable")
	ErrConfigurationMissing = errors.New("configuration missing")
	ErrInvalidRequest       = errors.New("invalid request")
)

// SheetNotFound is implemented by errors reporting an unresolvable worksheet
type SheetNotFound interface {
	error
	SheetNotFound() bool
}

// ErrorTypeOf classifies a (possibly wrapped) error
func ErrorTypeOf(err error) ErrorType {
	if err == nil {
		return ""
	}

	var snf SheetNotFound
	switch {
	case errors.As(err, &snf) && snf.SheetNotFound():
		return ErrorTypeSheetNotFound
	case errors.Is(err, ErrNotFound):
		return ErrorTypeNotFound
	case errors.Is(err, ErrConfigurationMissing):
		return ErrorTypeConfigurationMissing
	case errors.Is(err, ErrUpstreamUnavailable):
		return ErrorTypeUpstreamUnavailable
	case errors.Is(err, ErrInvalidRequest):
		return ErrorTypeInvalidRequest
	case errors.Is(err, ErrMalformedInput):
		return ErrorTypeMalformedInput
	default:
		return ErrorTypeUnknown
	}
}
