package sheets

import (
	"context"

	"github.com/dennisdiepolder/callboard/internal/types"
)

// Source reads the call log from the first worksheet alias that exists
type Source struct {
	wb      Workbook
	aliases []string
}

// NewSource creates a call-log source over wb
func NewSource(wb Workbook, aliases []string) *Source {
	return &Source{wb: wb, aliases: aliases}
}

// Rows returns the whole worksheet; the date hint is ignored
func (s *Source) Rows(ctx context.Context, date string) (types.RowSet, error) {
	title, err := Resolve(ctx, s.wb, s.aliases)
	if err != nil {
		return types.RowSet{}, err
	}

	rows, err := s.wb.Values(ctx, title)
	if err != nil {
		return types.RowSet{}, err
	}
	return types.RowSet{Origin: title, Rows: rows}, nil
}

// Sheet returns the rows of a single named worksheet
func Sheet(ctx context.Context, wb Workbook, title string) (types.RowSet, error) {
	title, err := Resolve(ctx, wb, []string{title})
	if err != nil {
		return types.RowSet{}, err
	}

	rows, err := wb.Values(ctx, title)
	if err != nil {
		return types.RowSet{}, err
	}
	return types.RowSet{Origin: title, Rows: rows}, nil
}
