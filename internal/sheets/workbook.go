// Package sheets reads and writes the spreadsheet backing the call board.
package sheets

import (
	"context"
	"fmt"
	"strings"
)

// Workbook is the subset of a spreadsheet the call board needs
type Workbook interface {
	// SheetTitles lists worksheet titles in workbook order
	SheetTitles(ctx context.Context) ([]string, error)
	// Values returns every populated row of a worksheet as display strings
	Values(ctx context.Context, title string) ([][]string, error)
	// UpdateCells writes all cells in one request
	UpdateCells(ctx context.Context, cells []CellUpdate) error
}

// CellUpdate addresses one cell. Row and Col are 1-based.
type CellUpdate struct {
	Sheet string
	Row   int
	Col   int
	Value string
}

// NotFoundError is returned when none of the candidate worksheet names exist
type NotFoundError struct {
	Tried     []string
	Available []string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("worksheet not found: tried %s, available %s",
		strings.Join(e.Tried, ", "), strings.Join(e.Available, ", "))
}

// SheetNotFound marks the error for types.ErrorTypeOf
func (e *NotFoundError) SheetNotFound() bool { return true }

// Resolve returns the first candidate title that exists in the workbook.
// Candidates are tried in order; later aliases are never consulted once one matches.
func Resolve(ctx context.Context, wb Workbook, candidates []string) (string, error) {
	titles, err := wb.SheetTitles(ctx)
	if err != nil {
		return "", err
	}

	exists := make(map[string]bool, len(titles))
	for _, t := range titles {
		exists[t] = true
	}

	for _, c := range candidates {
		if exists[c] {
			return c, nil
		}
	}

	return "", &NotFoundError{Tried: candidates, Available: titles}
}

// A1 renders a single-cell A1 reference, quoting the sheet title
func A1(sheet string, row, col int) string {
	return fmt.Sprintf("%s!%s%d", quoteTitle(sheet), columnName(col), row)
}

func quoteTitle(title string) string {
	return "'" + strings.ReplaceAll(title, "'", "''") + "'"
}

// columnName converts a 1-based column index to letters (1 -> A, 27 -> AA)
func columnName(col int) string {
	var b []byte
	for col > 0 {
		col--
		b = append([]byte{byte('A' + col%26)}, b...)
		col /= 26
	}
	return string(b)
}
