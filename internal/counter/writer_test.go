package counter

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dennisdiepolder/callboard/internal/sheets"
	"github.com/dennisdiepolder/callboard/internal/timeslot"
	"github.com/dennisdiepolder/callboard/internal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var counterAliases = []string{"Call Matrix", "สรุป call_AI", "สรุป call_AI_summary", "call_AI_summary"}

func newWorkbook() *sheets.MemoryWorkbook {
	wb := sheets.NewMemoryWorkbook()
	wb.Put("Call Matrix", [][]string{
		{"agent", "9-10", "10-11", "11-12"},
		{"101", "2", "", "7"},
		{"102", "0", "1"},
	})
	return wb
}

func newWriter(wb sheets.Workbook) *Writer {
	return NewWriter(wb, counterAliases, timeslot.Default(), time.UTC, zerolog.Nop())
}

func TestIncrement(t *testing.T) {
	wb := newWorkbook()
	w := newWriter(wb)

	res, err := w.Increment(context.Background(), "101", "9-10", 1)
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 2, res.OldValue)
	assert.Equal(t, 3, res.NewValue)
	assert.Equal(t, "Call Matrix", res.Sheet)
	assert.Equal(t, "3", wb.Cell("Call Matrix", 2, 2))

	// blank and missing trailing cells count as zero
	res, err = w.Increment(context.Background(), "101", "10-11", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, res.OldValue)
	assert.Equal(t, 5, res.NewValue)

	res, err = w.Increment(context.Background(), "102", "11-12", 1)
	require.NoError(t, err)
	assert.Equal(t, 1, res.NewValue)
	assert.Equal(t, "1", wb.Cell("Call Matrix", 3, 4))
}

func TestIncrementNotFound(t *testing.T) {
	wb := newWorkbook()
	w := newWriter(wb)

	tests := []struct {
		name  string
		agent string
		slot  string
	}{
		{"unknown agent", "109", "9-10"},
		{"unknown slot", "101", "20-21"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := w.Increment(context.Background(), tt.agent, tt.slot, 1)
			require.Error(t, err)
			assert.False(t, res.Success)
			assert.Equal(t, types.ErrorTypeNotFound, res.ErrorType)
			assert.NotEmpty(t, res.Error)
		})
	}

	assert.Equal(t, "2", wb.Cell("Call Matrix", 2, 2))
}

func TestIncrementSheetMissing(t *testing.T) {
	wb := sheets.NewMemoryWorkbook()
	wb.Put("Sheet1", nil)

	res, err := newWriter(wb).Increment(context.Background(), "101", "9-10", 1)
	require.Error(t, err)
	assert.Equal(t, types.ErrorTypeSheetNotFound, res.ErrorType)

	var nf *sheets.NotFoundError
	require.True(t, errors.As(err, &nf))
	assert.Equal(t, counterAliases, nf.Tried)
}

func TestIncrementNonIntegerCell(t *testing.T) {
	wb := newWorkbook()
	wb.Put("Call Matrix", [][]string{{"agent", "9-10"}, {"101", "n/a"}})

	res, err := newWriter(wb).Increment(context.Background(), "101", "9-10", 1)
	require.Error(t, err)
	assert.Equal(t, types.ErrorTypeMalformedInput, res.ErrorType)
}

func TestSet(t *testing.T) {
	wb := newWorkbook()
	w := newWriter(wb)

	res, err := w.Set(context.Background(), "101", "11-12", 4)
	require.NoError(t, err)
	assert.Equal(t, 7, res.OldValue)
	assert.Equal(t, 4, res.NewValue)
	assert.Equal(t, "4", wb.Cell("Call Matrix", 2, 4))

	res, err = w.Set(context.Background(), "101", "11-12", -1)
	require.Error(t, err)
	assert.Equal(t, types.ErrorTypeInvalidRequest, res.ErrorType)
}

func TestBatchPartial(t *testing.T) {
	wb := newWorkbook()
	w := newWriter(wb)

	res, err := w.Batch(context.Background(), []types.BatchUpdate{
		{AgentID: "101", SlotKey: "9-10", Value: 5},
		{AgentID: "999", SlotKey: "9-10", Value: 1},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, res.UpdatedCount)
	require.Len(t, res.Skipped, 1)
	assert.Equal(t, "999", res.Skipped[0].AgentID)
	assert.Equal(t, "5", wb.Cell("Call Matrix", 2, 2))
}

func TestBatchNothingResolvable(t *testing.T) {
	res, err := newWriter(newWorkbook()).Batch(context.Background(), []types.BatchUpdate{
		{AgentID: "101", SlotKey: "8-9", Value: 1},
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 0, res.UpdatedCount)
}

func TestBatchEmptySucceeds(t *testing.T) {
	wb := newWorkbook()
	wb.FailWith(types.ErrUpstreamUnavailable)

	for _, updates := range [][]types.BatchUpdate{nil, {}} {
		res, err := newWriter(wb).Batch(context.Background(), updates)
		require.NoError(t, err)
		assert.True(t, res.Success)
		assert.Equal(t, 0, res.UpdatedCount)
		assert.Empty(t, res.Skipped)
	}
}

func TestBatchErrors(t *testing.T) {
	wb := newWorkbook()
	wb.FailWith(types.ErrUpstreamUnavailable)
	res, err := newWriter(wb).Batch(context.Background(), []types.BatchUpdate{{AgentID: "101", SlotKey: "9-10", Value: 1}})
	require.Error(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, types.ErrorTypeUpstreamUnavailable, res.ErrorType)
}

func TestLogCall(t *testing.T) {
	wb := newWorkbook()
	w := newWriter(wb)

	res, err := w.LogCall(context.Background(), "102", time.Date(2025, 11, 18, 10, 42, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "10-11", res.SlotKey)
	assert.Equal(t, 2, res.NewValue)

	res, err = w.LogCall(context.Background(), "102", time.Date(2025, 11, 18, 20, 5, 0, 0, time.UTC))
	require.ErrorIs(t, err, ErrOutsideWorkingHours)
	assert.Contains(t, res.Error, "Not in working hours (9:00-20:00)")
	assert.Equal(t, types.ErrorTypeInvalidRequest, res.ErrorType)
}

func TestLogCallUsesLocation(t *testing.T) {
	bangkok := time.FixedZone("ICT", 7*3600)
	wb := newWorkbook()
	w := NewWriter(wb, counterAliases, timeslot.Default(), bangkok, zerolog.Nop())

	// 02:30 UTC is 09:30 in Bangkok
	res, err := w.LogCall(context.Background(), "101", time.Date(2025, 11, 18, 2, 30, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Equal(t, "9-10", res.SlotKey)
}
