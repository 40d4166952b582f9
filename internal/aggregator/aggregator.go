package aggregator

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/dennisdiepolder/callboard/internal/calllog"
	"github.com/dennisdiepolder/callboard/internal/timeslot"
	"github.com/dennisdiepolder/callboard/internal/types"
	"github.com/rs/zerolog"
)

// DurationRule decides how a call duration compares against the minimum
type DurationRule string

const (
	// RuleAtLeast counts calls with duration >= minimum
	RuleAtLeast DurationRule = "gte"
	// RuleGreaterThan counts calls with duration > minimum
	RuleGreaterThan DurationRule = "gt"
)

// ParseDurationRule accepts "gte"/">=" and "gt"/">"
func ParseDurationRule(s string) (DurationRule, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "gte", ">=", "":
		return RuleAtLeast, nil
	case "gt", ">":
		return RuleGreaterThan, nil
	default:
		return "", fmt.Errorf("%w: unknown duration rule %q (want gte or gt)", types.ErrInvalidRequest, s)
	}
}

// Counts reports whether a call of the given length passes the rule
func (r DurationRule) Counts(seconds, minimum int) bool {
	if r == RuleGreaterThan {
		return seconds > minimum
	}
	return seconds >= minimum
}

// Params configures one aggregation
type Params struct {
	TargetDate         string // YYYY-MM-DD
	Agents             []string
	MinDurationSeconds int
	Rule               DurationRule
}

// Validate fails fast on parameters that would yield a misleading empty matrix
func (p Params) Validate() error {
	if p.TargetDate == "" {
		return fmt.Errorf("%w: no target date", types.ErrConfigurationMissing)
	}
	if _, err := time.Parse("2006-01-02", p.TargetDate); err != nil {
		return fmt.Errorf("%w: target date %q is not YYYY-MM-DD", types.ErrInvalidRequest, p.TargetDate)
	}
	if len(p.agents()) == 0 {
		return fmt.Errorf("%w: agent allow-list is empty", types.ErrConfigurationMissing)
	}
	if p.MinDurationSeconds < 0 {
		return fmt.Errorf("%w: minimum duration must not be negative", types.ErrInvalidRequest)
	}
	if p.Rule != RuleAtLeast && p.Rule != RuleGreaterThan {
		return fmt.Errorf("%w: unknown duration rule %q", types.ErrInvalidRequest, p.Rule)
	}
	return nil
}

// Aggregate folds call records into an agent x slot matrix for one date.
// Records are never an error: each one is counted or skipped with a reason.
func Aggregate(records []types.CallRecord, table *timeslot.Table, p Params, logger zerolog.Logger) (*types.CallMatrix, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := table.Validate(); err != nil {
		return nil, fmt.Errorf("time slot table misconfigured: %w", err)
	}

	agents := p.agents()
	m := newMatrix(table, p, agents)

	allowed := make(map[string]bool, len(agents))
	for _, a := range agents {
		allowed[a] = true
	}

	for _, rec := range records {
		caller := strings.TrimSpace(rec.Caller)
		if !allowed[caller] {
			m.Skipped.WrongAgent++
			continue
		}

		ts, ok := calllog.ParseTimestamp(rec.StartDateTime)
		if !ok {
			m.Skipped.NoDateTime++
			logger.Debug().Str("caller", caller).Str("start", rec.StartDateTime).Msg("unparsable start time")
			continue
		}

		seconds := calllog.ParseDuration(rec.DurationText)
		if !p.Rule.Counts(seconds, p.MinDurationSeconds) {
			m.Skipped.ShortDuration++
			continue
		}

		if ts.Date != p.TargetDate {
			m.Skipped.WrongDate++
			continue
		}

		slot, ok := table.SlotFor(ts.Hour)
		if !ok {
			m.Skipped.OutsideHours++
			continue
		}

		m.Matrix[caller][slot.Key]++
		m.TotalsByAgent[caller]++
		m.TotalsBySlot[slot.Key]++
		m.GrandTotal++
		m.ProcessedCount++
	}

	m.RecordsRead = len(records)
	return m, nil
}

// agents returns the allow-list trimmed, without blanks or duplicates, sorted
func (p Params) agents() []string {
	agents := make([]string, 0, len(p.Agents))
	seen := make(map[string]bool, len(p.Agents))
	for _, a := range p.Agents {
		a = strings.TrimSpace(a)
		if a == "" || seen[a] {
			continue
		}
		seen[a] = true
		agents = append(agents, a)
	}
	sort.Strings(agents)
	return agents
}

// newMatrix builds a zero-filled matrix for every allowed agent and slot
func newMatrix(table *timeslot.Table, p Params, agents []string) *types.CallMatrix {
	slots := table.Slots()
	m := &types.CallMatrix{
		Date:          p.TargetDate,
		Slots:         slots,
		Matrix:        make(map[string]map[string]int, len(agents)),
		TotalsByAgent: make(map[string]int, len(agents)),
		TotalsBySlot:  make(map[string]int, len(slots)),
		Criteria: types.FilterCriteria{
			Date:               p.TargetDate,
			MinDurationSeconds: p.MinDurationSeconds,
			DurationRule:       string(p.Rule),
			TargetAgents:       agents,
		},
	}

	for _, a := range agents {
		row := make(map[string]int, len(slots))
		for _, s := range slots {
			row[s.Key] = 0
		}
		m.Matrix[a] = row
		m.TotalsByAgent[a] = 0
	}
	for _, s := range slots {
		m.TotalsBySlot[s.Key] = 0
	}
	return m
}
