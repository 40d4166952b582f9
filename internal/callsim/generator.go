package callsim

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/dennisdiepolder/callboard/internal/types"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// AgentWeight pairs a caller id with a relative weight for distribution.
type AgentWeight struct {
	ID     string
	Weight float64
}

// Config controls the shape of a generated call log.
type Config struct {
	Agents       []AgentWeight
	StrayCallers []string // callers outside the allow-list
	StrayRatio   float64  // share of calls placed by stray callers
	CallsPerHour float64
	PeakHours    map[int]float64 // hour -> rate multiplier
	FirstHour    int
	LastHour     int     // inclusive; hours outside 9..19 exercise the out-of-window path
	ShortRatio   float64 // share of calls below MinDuration
	MinDuration  int     // seconds
	Seed         int64
}

// DefaultConfig mirrors a normal weekday for agents 101..108.
func DefaultConfig() Config {
	agents := make([]AgentWeight, 0, 8)
	for i := 101; i <= 108; i++ {
		agents = append(agents, AgentWeight{ID: fmt.Sprint(i), Weight: 1})
	}
	agents[0].Weight, agents[1].Weight = 3, 2

	return Config{
		Agents:       agents,
		StrayCallers: []string{"109", "Reception"},
		StrayRatio:   0.05,
		CallsPerHour: 12,
		PeakHours:    map[int]float64{10: 1.5, 11: 1.5, 14: 1.3},
		FirstHour:    8,
		LastHour:     20,
		ShortRatio:   0.2,
		MinDuration:  30,
		Seed:         time.Now().UnixNano(),
	}
}

// Generator produces synthetic call-log entries.
type Generator struct {
	mu  sync.Mutex
	cfg Config
	rng *rand.Rand
}

// NewGenerator creates a Generator from cfg.
func NewGenerator(cfg Config) *Generator {
	return &Generator{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// Day generates every call for date, ordered by start time. Start
// timestamps alternate between the ISO and the d/m/y, H:MM:SS notations
// found in real call logs.
func (g *Generator) Day(date time.Time) []types.DynamoCallLog {
	g.mu.Lock()
	defer g.mu.Unlock()

	day := time.Date(date.Year(), date.Month(), date.Day(), 0, 0, 0, 0, time.UTC)
	var out []types.DynamoCallLog

	for hour := g.cfg.FirstHour; hour <= g.cfg.LastHour; hour++ {
		rate := g.cfg.CallsPerHour
		if f, ok := g.cfg.PeakHours[hour]; ok {
			rate *= f
		}
		// +/-25% jitter per hour
		n := int(rate + rate*(g.rng.Float64()*0.5-0.25))

		offsets := make([]int, n)
		for i := range offsets {
			offsets[i] = g.rng.Intn(3600)
		}
		sort.Ints(offsets)

		for _, off := range offsets {
			start := day.Add(time.Duration(hour)*time.Hour + time.Duration(off)*time.Second)
			out = append(out, g.entry(start, len(out)%2 == 1))
		}
	}
	return out
}

// Run emits one call at a time, stamped with the current time, until ctx
// is cancelled.
func (g *Generator) Run(ctx context.Context, loc *time.Location, emit func(context.Context, types.DynamoCallLog) error, logger zerolog.Logger) {
	for {
		g.mu.Lock()
		rate := g.cfg.CallsPerHour
		if f, ok := g.cfg.PeakHours[time.Now().In(loc).Hour()]; ok {
			rate *= f
		}
		var sleep time.Duration
		if rate > 0 {
			base := time.Duration(float64(time.Hour) / rate)
			sleep = base + time.Duration(float64(base)*(g.rng.Float64()*0.5-0.25)) // +/-25%
		}
		g.mu.Unlock()

		if sleep <= 0 {
			// No calls configured; sleep and re-check.
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
				continue
			}
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleep):
		}

		g.mu.Lock()
		e := g.entry(time.Now().In(loc), false)
		g.mu.Unlock()

		if err := emit(ctx, e); err != nil {
			logger.Error().Err(err).Str("caller", e.Caller).Msg("failed to emit call")
			continue
		}
		logger.Debug().
			Str("caller", e.Caller).
			Str("start", e.Start).
			Str("duration", e.Duration).
			Msg("emitted call")
	}
}

// entry builds one call; the caller must hold g.mu.
func (g *Generator) entry(start time.Time, slashed bool) types.DynamoCallLog {
	caller := pickAgent(g.rng, g.cfg.Agents)
	if len(g.cfg.StrayCallers) > 0 && g.rng.Float64() < g.cfg.StrayRatio {
		caller = g.cfg.StrayCallers[g.rng.Intn(len(g.cfg.StrayCallers))]
	}

	var secs int
	if g.cfg.MinDuration > 0 && g.rng.Float64() < g.cfg.ShortRatio {
		secs = g.rng.Intn(g.cfg.MinDuration)
	} else {
		secs = g.cfg.MinDuration + g.rng.Intn(600)
	}

	return types.DynamoCallLog{
		DateKey:  start.Format("2006-01-02"),
		CallID:   uuid.NewString(),
		Caller:   caller,
		Start:    FormatStart(start, slashed),
		Duration: FormatDuration(secs),
	}
}

// FormatStart renders a timestamp as the call log writes it: either
// "2006-01-02 15:04:05" or "02/01/2006, 15:04:05", hour without padding.
func FormatStart(t time.Time, slashed bool) string {
	clock := fmt.Sprintf("%d:%02d:%02d", t.Hour(), t.Minute(), t.Second())
	if slashed {
		return fmt.Sprintf("%02d/%02d/%04d, %s", t.Day(), int(t.Month()), t.Year(), clock)
	}
	return fmt.Sprintf("%04d-%02d-%02d %s", t.Year(), int(t.Month()), t.Day(), clock)
}

// FormatDuration renders seconds as H:MM:SS.
func FormatDuration(secs int) string {
	return fmt.Sprintf("%d:%02d:%02d", secs/3600, secs/60%60, secs%60)
}

// pickAgent selects an agent based on the configured weights.
func pickAgent(rng *rand.Rand, agents []AgentWeight) string {
	if len(agents) == 0 {
		return ""
	}

	var total float64
	for _, a := range agents {
		total += a.Weight
	}

	r := rng.Float64() * total
	for _, a := range agents {
		r -= a.Weight
		if r <= 0 {
			return a.ID
		}
	}
	return agents[len(agents)-1].ID
}
