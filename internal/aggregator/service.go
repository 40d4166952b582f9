package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/dennisdiepolder/callboard/internal/calllog"
	"github.com/dennisdiepolder/callboard/internal/metrics"
	"github.com/dennisdiepolder/callboard/internal/timeslot"
	"github.com/dennisdiepolder/callboard/internal/types"
	"github.com/rs/zerolog"
)

// RowSource supplies the raw call-log table. Rows[0] is the header.
// Sources that can filter by date may use the hint; others return everything.
type RowSource interface {
	Rows(ctx context.Context, date string) (types.RowSet, error)
}

// Service reads the call log and builds call matrices
type Service struct {
	source  RowSource
	columns calllog.Columns
	table   *timeslot.Table
	logger  zerolog.Logger
}

// NewService creates a new aggregation service
func NewService(source RowSource, columns calllog.Columns, table *timeslot.Table, logger zerolog.Logger) *Service {
	return &Service{
		source:  source,
		columns: columns,
		table:   table,
		logger:  logger.With().Str("component", "aggregator").Logger(),
	}
}

// Table returns the time slot table the service buckets into
func (s *Service) Table() *timeslot.Table {
	return s.table
}

// Build reads the call log and aggregates it for p.TargetDate
func (s *Service) Build(ctx context.Context, p Params) (*types.CallMatrix, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	set, err := s.source.Rows(ctx, p.TargetDate)
	if err != nil {
		metrics.AggregationErrorsTotal.Inc()
		return nil, err
	}

	records, err := calllog.MapRows(set.Rows, s.columns)
	if err != nil {
		metrics.AggregationErrorsTotal.Inc()
		return nil, fmt.Errorf("call log %q: %w", set.Origin, err)
	}

	m, err := Aggregate(records, s.table, p, s.logger)
	if err != nil {
		metrics.AggregationErrorsTotal.Inc()
		return nil, err
	}
	m.Source = set.Origin

	metrics.RecordMatrix(m, time.Since(start))

	s.logger.Debug().
		Str("date", p.TargetDate).
		Str("source", set.Origin).
		Int("records", m.RecordsRead).
		Int("counted", m.ProcessedCount).
		Int("skipped", m.Skipped.Total()).
		Dur("took", time.Since(start)).
		Msg("call matrix built")

	return m, nil
}

// AgentSummary returns one agent's calls by slot for p.TargetDate
func (s *Service) AgentSummary(ctx context.Context, p Params, agentID string) (*types.AgentSummary, error) {
	m, err := s.Build(ctx, p)
	if err != nil {
		return nil, err
	}

	row, ok := m.Matrix[agentID]
	if !ok {
		return nil, fmt.Errorf("%w: agent %s", types.ErrNotFound, agentID)
	}

	return &types.AgentSummary{
		AgentID:     agentID,
		Date:        m.Date,
		CallsBySlot: row,
		TotalCalls:  m.TotalsByAgent[agentID],
	}, nil
}

// SlotSummary returns one slot's calls by agent for p.TargetDate
func (s *Service) SlotSummary(ctx context.Context, p Params, slotKey string) (*types.SlotSummary, error) {
	slot, ok := s.table.Lookup(slotKey)
	if !ok {
		return nil, fmt.Errorf("%w: time slot %s", types.ErrNotFound, slotKey)
	}

	m, err := s.Build(ctx, p)
	if err != nil {
		return nil, err
	}

	byAgent := make(map[string]int, len(m.Matrix))
	for agent, row := range m.Matrix {
		byAgent[agent] = row[slotKey]
	}

	return &types.SlotSummary{
		SlotKey:      slotKey,
		Label:        slot.Label,
		Date:         m.Date,
		CallsByAgent: byAgent,
		TotalCalls:   m.TotalsBySlot[slotKey],
	}, nil
}
