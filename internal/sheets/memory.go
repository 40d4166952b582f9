package sheets

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
)

// MemoryWorkbook is an in-process Workbook for tests and local development
type MemoryWorkbook struct {
	mu     sync.RWMutex
	order  []string
	sheets map[string][][]string
	failed error
}

// NewMemoryWorkbook creates an empty workbook
func NewMemoryWorkbook() *MemoryWorkbook {
	return &MemoryWorkbook{sheets: make(map[string][][]string)}
}

// LoadDir builds a workbook from every *.csv file in dir; the file name
// without extension becomes the worksheet title.
func LoadDir(dir string) (*MemoryWorkbook, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.csv"))
	if err != nil {
		return nil, fmt.Errorf("failed to list fixtures: %w", err)
	}
	sort.Strings(paths)

	wb := NewMemoryWorkbook()
	for _, p := range paths {
		rows, err := readCSV(p)
		if err != nil {
			return nil, err
		}
		wb.Put(strings.TrimSuffix(filepath.Base(p), filepath.Ext(p)), rows)
	}
	return wb, nil
}

func readCSV(path string) ([][]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open fixture: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to read fixture %s: %w", path, err)
	}
	return rows, nil
}

// Put replaces (or adds) a worksheet
func (w *MemoryWorkbook) Put(title string, rows [][]string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if _, ok := w.sheets[title]; !ok {
		w.order = append(w.order, title)
	}
	w.sheets[title] = copyRows(rows)
}

// FailWith makes every subsequent call return err (nil restores normal behaviour)
func (w *MemoryWorkbook) FailWith(err error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.failed = err
}

// Cell returns the value at 1-based (row, col), or "" if unset
func (w *MemoryWorkbook) Cell(title string, row, col int) string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	rows := w.sheets[title]
	if row < 1 || row > len(rows) || col < 1 || col > len(rows[row-1]) {
		return ""
	}
	return rows[row-1][col-1]
}

// SaveDir writes each worksheet back to dir as CSV
func (w *MemoryWorkbook) SaveDir(dir string) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create fixture dir: %w", err)
	}
	for _, title := range w.order {
		f, err := os.Create(filepath.Join(dir, title+".csv"))
		if err != nil {
			return fmt.Errorf("failed to create fixture: %w", err)
		}
		cw := csv.NewWriter(f)
		err = cw.WriteAll(w.sheets[title])
		f.Close()
		if err != nil {
			return fmt.Errorf("failed to write fixture %s: %w", title, err)
		}
	}
	return nil
}

func (w *MemoryWorkbook) SheetTitles(ctx context.Context) ([]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.failed != nil {
		return nil, w.failed
	}
	return append([]string(nil), w.order...), nil
}

func (w *MemoryWorkbook) Values(ctx context.Context, title string) ([][]string, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()

	if w.failed != nil {
		return nil, w.failed
	}
	rows, ok := w.sheets[title]
	if !ok {
		return nil, &NotFoundError{Tried: []string{title}, Available: append([]string(nil), w.order...)}
	}
	return copyRows(rows), nil
}

func (w *MemoryWorkbook) UpdateCells(ctx context.Context, cells []CellUpdate) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.failed != nil {
		return w.failed
	}
	for _, c := range cells {
		if _, ok := w.sheets[c.Sheet]; !ok {
			return &NotFoundError{Tried: []string{c.Sheet}, Available: append([]string(nil), w.order...)}
		}
		if c.Row < 1 || c.Col < 1 {
			return fmt.Errorf("invalid cell %d,%d", c.Row, c.Col)
		}
	}

	for _, c := range cells {
		rows := w.sheets[c.Sheet]
		for len(rows) < c.Row {
			rows = append(rows, nil)
		}
		for len(rows[c.Row-1]) < c.Col {
			rows[c.Row-1] = append(rows[c.Row-1], "")
		}
		rows[c.Row-1][c.Col-1] = c.Value
		w.sheets[c.Sheet] = rows
	}
	return nil
}

func copyRows(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, r := range rows {
		out[i] = append([]string(nil), r...)
	}
	return out
}
