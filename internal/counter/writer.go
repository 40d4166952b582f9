// Package counter writes manual call counts back to the call-matrix worksheet.
//
// The worksheet is laid out with slot keys in the header row and agent ids
// in the first column:
//
//	agent | 9-10 | 10-11 | ...
//	101   | 3    | 0     | ...
package counter

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dennisdiepolder/callboard/internal/metrics"
	"github.com/dennisdiepolder/callboard/internal/sheets"
	"github.com/dennisdiepolder/callboard/internal/timeslot"
	"github.com/dennisdiepolder/callboard/internal/types"
	"github.com/rs/zerolog"
)

// ErrOutsideWorkingHours is returned by LogCall outside the slot table
var ErrOutsideWorkingHours = fmt.Errorf("%w: Not in working hours (%d:00-%d:00)", types.ErrInvalidRequest, timeslot.DayStart, timeslot.DayEnd)

// Writer applies counter updates to the first existing alias worksheet
type Writer struct {
	wb      sheets.Workbook
	aliases []string
	table   *timeslot.Table
	loc     *time.Location
	logger  zerolog.Logger

	// serialises read-modify-write cycles issued by this process
	mu sync.Mutex
}

// NewWriter creates a counter writer
func NewWriter(wb sheets.Workbook, aliases []string, table *timeslot.Table, loc *time.Location, logger zerolog.Logger) *Writer {
	if loc == nil {
		loc = time.UTC
	}
	return &Writer{
		wb:      wb,
		aliases: aliases,
		table:   table,
		loc:     loc,
		logger:  logger.With().Str("component", "counter").Logger(),
	}
}

// grid is a loaded counter worksheet with its lookup indexes
type grid struct {
	sheet string
	rows  [][]string
	cols  map[string]int // slot key -> 0-based column
	agent map[string]int // agent id -> 0-based row
}

func (w *Writer) load(ctx context.Context) (*grid, error) {
	sheet, err := sheets.Resolve(ctx, w.wb, w.aliases)
	if err != nil {
		return nil, err
	}
	rows, err := w.wb.Values(ctx, sheet)
	if err != nil {
		return nil, err
	}

	g := &grid{sheet: sheet, rows: rows, cols: map[string]int{}, agent: map[string]int{}}
	if len(rows) > 0 {
		for c, h := range rows[0] {
			if h = strings.TrimSpace(h); h != "" {
				if _, dup := g.cols[h]; !dup {
					g.cols[h] = c
				}
			}
		}
	}
	for r := 1; r < len(rows); r++ {
		if len(rows[r]) == 0 {
			continue
		}
		if id := strings.TrimSpace(rows[r][0]); id != "" {
			if _, dup := g.agent[id]; !dup {
				g.agent[id] = r
			}
		}
	}
	return g, nil
}

// locate maps (agent, slot) to 0-based (row, col)
func (g *grid) locate(agentID, slotKey string) (int, int, error) {
	col, ok := g.cols[strings.TrimSpace(slotKey)]
	if !ok {
		return 0, 0, fmt.Errorf("%w: time slot %s not found in %s", types.ErrNotFound, slotKey, g.sheet)
	}
	row, ok := g.agent[strings.TrimSpace(agentID)]
	if !ok {
		return 0, 0, fmt.Errorf("%w: agent %s not found in %s", types.ErrNotFound, agentID, g.sheet)
	}
	return row, col, nil
}

// value reads an integer cell; blank counts as zero
func (g *grid) value(row, col int) (int, error) {
	raw := ""
	if col < len(g.rows[row]) {
		raw = strings.TrimSpace(g.rows[row][col])
	}
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: cell %s holds %q, not an integer", types.ErrMalformedInput, sheets.A1(g.sheet, row+1, col+1), raw)
	}
	return n, nil
}

func failed(res types.CounterResult, err error) (types.CounterResult, error) {
	res.Success = false
	res.Error = err.Error()
	res.ErrorType = types.ErrorTypeOf(err)
	return res, err
}

// Increment adds delta to the (agent, slot) cell
func (w *Writer) Increment(ctx context.Context, agentID, slotKey string, delta int) (types.CounterResult, error) {
	res, err := w.write(ctx, agentID, slotKey, func(old int) int { return old + delta })
	res.Increment = delta
	metrics.RecordCounterWrite("increment", err == nil)
	return res, err
}

// Set overwrites the (agent, slot) cell
func (w *Writer) Set(ctx context.Context, agentID, slotKey string, value int) (types.CounterResult, error) {
	if value < 0 {
		res := types.CounterResult{AgentID: agentID, SlotKey: slotKey}
		metrics.RecordCounterWrite("set", false)
		return failed(res, fmt.Errorf("%w: value must not be negative", types.ErrInvalidRequest))
	}
	res, err := w.write(ctx, agentID, slotKey, func(int) int { return value })
	metrics.RecordCounterWrite("set", err == nil)
	return res, err
}

// LogCall increments the slot containing now for the agent
func (w *Writer) LogCall(ctx context.Context, agentID string, now time.Time) (types.CounterResult, error) {
	slot, ok := w.table.Current(now, w.loc)
	if !ok {
		metrics.RecordCounterWrite("log", false)
		return failed(types.CounterResult{AgentID: agentID}, ErrOutsideWorkingHours)
	}

	res, err := w.write(ctx, agentID, slot.Key, func(old int) int { return old + 1 })
	res.Increment = 1
	metrics.RecordCounterWrite("log", err == nil)
	if err == nil {
		w.logger.Info().Str("agent", agentID).Str("slot", slot.Key).Int("count", res.NewValue).Msg("Call logged")
	}
	return res, err
}

func (w *Writer) write(ctx context.Context, agentID, slotKey string, next func(old int) int) (types.CounterResult, error) {
	res := types.CounterResult{AgentID: agentID, SlotKey: slotKey}

	w.mu.Lock()
	defer w.mu.Unlock()

	g, err := w.load(ctx)
	if err != nil {
		return failed(res, err)
	}
	res.Sheet = g.sheet

	row, col, err := g.locate(agentID, slotKey)
	if err != nil {
		return failed(res, err)
	}

	old, err := g.value(row, col)
	if err != nil {
		return failed(res, err)
	}
	res.OldValue = old
	res.NewValue = next(old)

	err = w.wb.UpdateCells(ctx, []sheets.CellUpdate{{
		Sheet: g.sheet,
		Row:   row + 1,
		Col:   col + 1,
		Value: strconv.Itoa(res.NewValue),
	}})
	if err != nil {
		return failed(res, err)
	}

	res.Success = true
	return res, nil
}

// Batch sets every resolvable (agent, slot) cell in a single write.
// Entries that cannot be resolved are reported in Skipped and do not fail the batch.
func (w *Writer) Batch(ctx context.Context, updates []types.BatchUpdate) (types.BatchResult, error) {
	var res types.BatchResult

	fail := func(err error) (types.BatchResult, error) {
		metrics.RecordCounterWrite("batch", false)
		res.Success = false
		res.Error = err.Error()
		res.ErrorType = types.ErrorTypeOf(err)
		return res, err
	}

	if len(updates) == 0 {
		res.Success = true
		metrics.RecordCounterWrite("batch", true)
		return res, nil
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	g, err := w.load(ctx)
	if err != nil {
		return fail(err)
	}
	res.Sheet = g.sheet

	cells := make([]sheets.CellUpdate, 0, len(updates))
	for _, u := range updates {
		if u.Value < 0 {
			res.Skipped = append(res.Skipped, types.BatchSkip{AgentID: u.AgentID, SlotKey: u.SlotKey, Reason: "value must not be negative"})
			continue
		}
		row, col, err := g.locate(u.AgentID, u.SlotKey)
		if err != nil {
			res.Skipped = append(res.Skipped, types.BatchSkip{AgentID: u.AgentID, SlotKey: u.SlotKey, Reason: err.Error()})
			continue
		}
		cells = append(cells, sheets.CellUpdate{
			Sheet: g.sheet,
			Row:   row + 1,
			Col:   col + 1,
			Value: strconv.Itoa(u.Value),
		})
	}

	if len(cells) > 0 {
		if err := w.wb.UpdateCells(ctx, cells); err != nil {
			return fail(err)
		}
	}

	res.Success = true
	res.UpdatedCount = len(cells)
	metrics.RecordCounterWrite("batch", true)
	metrics.BatchCellsWrittenTotal.Add(float64(len(cells)))

	if len(res.Skipped) > 0 {
		w.logger.Warn().Int("updated", res.UpdatedCount).Int("skipped", len(res.Skipped)).Msg("Batch update skipped unresolved entries")
	}
	return res, nil
}
