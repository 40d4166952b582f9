package calllog

import (
	"fmt"
	"strings"

	"github.com/dennisdiepolder/callboard/internal/types"
)

// Columns names the call-log header cells the aggregator reads
type Columns struct {
	Start    string
	Caller   string
	Duration string
}

// DefaultColumns matches the headers of the call-log worksheet
var DefaultColumns = Columns{
	Start:    "start",
	Caller:   "ผู้โทร",
	Duration: "สรุปเวลา",
}

// MissingColumnsError reports a header without the required columns
type MissingColumnsError struct {
	Missing   []string
	Available []string
}

func (e *MissingColumnsError) Error() string {
	return fmt.Sprintf("missing required columns %v (available: %v)", e.Missing, e.Available)
}

func (e *MissingColumnsError) Unwrap() error { return types.ErrConfigurationMissing }

// MapRows zips the header row onto every data row and extracts the typed
// call-record fields. Short rows are padded with empty strings.
func MapRows(rows [][]string, cols Columns) ([]types.CallRecord, error) {
	if len(rows) == 0 {
		return nil, nil
	}

	header := rows[0]
	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.TrimSpace(h)
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}

	var missing []string
	for _, name := range []string{cols.Start, cols.Caller, cols.Duration} {
		if _, ok := index[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingColumnsError{Missing: missing, Available: header}
	}

	records := make([]types.CallRecord, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := types.CallRecord{
			Caller:        strings.TrimSpace(cell(row, index[cols.Caller])),
			StartDateTime: strings.TrimSpace(cell(row, index[cols.Start])),
			DurationText:  strings.TrimSpace(cell(row, index[cols.Duration])),
		}
		for i, h := range header {
			h = strings.TrimSpace(h)
			if h == "" || h == cols.Start || h == cols.Caller || h == cols.Duration {
				continue
			}
			if v := cell(row, i); v != "" {
				if rec.Extra == nil {
					rec.Extra = make(map[string]string)
				}
				rec.Extra[h] = v
			}
		}
		records = append(records, rec)
	}
	return records, nil
}

// ZipRows turns a header+rows table into generic column -> value records
func ZipRows(rows [][]string) []map[string]string {
	if len(rows) < 2 {
		return []map[string]string{}
	}

	header := rows[0]
	out := make([]map[string]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make(map[string]string, len(header))
		for i, h := range header {
			rec[h] = cell(row, i)
		}
		out = append(out, rec)
	}
	return out
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
