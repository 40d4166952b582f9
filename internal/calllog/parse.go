package calllog

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/dennisdiepolder/callboard/internal/types"
)

// ParseTimestamp parses a call-log start time into a normalized date and hour.
//
// Two upstream formats are accepted:
//
//	D/M/YYYY, H:MM:SS   (day first, comma separated)
//	YYYY-MM-DD H:MM:SS  (ISO date, space separated, hour may be unpadded)
//
// Date and time split at the first space or comma, so fractional seconds
// written with a comma stay in the time part. The date delimiter decides the
// component order. Anything else reports false.
func ParseTimestamp(raw string) (types.ParsedTimestamp, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return types.ParsedTimestamp{}, false
	}

	i := strings.IndexAny(s, " ,")
	if i < 0 {
		return types.ParsedTimestamp{}, false
	}
	datePart := strings.TrimSpace(s[:i])
	timePart := strings.TrimLeft(s[i+1:], " ,")
	if datePart == "" || timePart == "" {
		return types.ParsedTimestamp{}, false
	}

	var year, month, day int
	var err error
	switch {
	case strings.Contains(datePart, "/"):
		day, month, year, err = splitDate(datePart, "/")
	case strings.Contains(datePart, "-"):
		year, month, day, err = splitDate(datePart, "-")
	default:
		return types.ParsedTimestamp{}, false
	}
	if err != nil {
		return types.ParsedTimestamp{}, false
	}
	if month < 1 || month > 12 || day < 1 || day > 31 || year < 0 {
		return types.ParsedTimestamp{}, false
	}

	hourText, _, _ := strings.Cut(timePart, ":")
	hour, err := strconv.Atoi(strings.TrimSpace(hourText))
	if err != nil || hour < 0 || hour > 23 {
		return types.ParsedTimestamp{}, false
	}

	return types.ParsedTimestamp{
		Date: fmt.Sprintf("%04d-%02d-%02d", year, month, day),
		Hour: hour,
		Time: timePart,
		Raw:  raw,
	}, true
}

// splitDate returns the three integer components of a date in input order
func splitDate(s, sep string) (int, int, int, error) {
	parts := strings.Split(s, sep)
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("expected 3 date parts, got %d", len(parts))
	}

	var out [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return 0, 0, 0, err
		}
		out[i] = n
	}
	return out[0], out[1], out[2], nil
}

// ParseDuration converts H:MM:SS or MM:SS to seconds. Any other shape,
// including negative parts, yields 0.
func ParseDuration(raw string) int {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0
	}

	parts := strings.Split(s, ":")
	if len(parts) != 2 && len(parts) != 3 {
		return 0
	}

	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || n < 0 {
			return 0
		}
		nums[i] = n
	}

	if len(nums) == 3 {
		return nums[0]*3600 + nums[1]*60 + nums[2]
	}
	return nums[0]*60 + nums[1]
}
