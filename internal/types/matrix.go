package types

// TimeSlot is one hour-wide bucket of the working day
type TimeSlot struct {
	Label     string `json:"label"` // e.g. "09:00-10:00"
	Key       string `json:"key"`   // e.g. "9-10"
	HourStart int    `json:"hourStart"`
	HourEnd   int    `json:"hourEnd"` // exclusive
}

// SkipCounts reports why records were left out of a matrix
type SkipCounts struct {
	WrongAgent    int `json:"wrong_agent"`
	NoDateTime    int `json:"no_datetime"`
	ShortDuration int `json:"short_duration"`
	WrongDate     int `json:"wrong_date"`
	OutsideHours  int `json:"outside_hours"`
}

// Total returns the number of skipped records
func (s SkipCounts) Total() int {
	return s.WrongAgent + s.NoDateTime + s.ShortDuration + s.WrongDate + s.OutsideHours
}

// FilterCriteria echoes the parameters an aggregation ran with
type FilterCriteria struct {
	Date               string   `json:"date"`
	MinDurationSeconds int      `json:"min_duration_seconds"`
	DurationRule       string   `json:"duration_rule"`
	TargetAgents       []string `json:"target_agents"`
}

// CallMatrix is the agent x time-slot count table for one date.
// Every allowed agent and every slot is present, zero-filled.
type CallMatrix struct {
	Date           string                    `json:"date"`
	Source         string                    `json:"source"` // worksheet or table the records came from
	Slots          []TimeSlot                `json:"-"`
	Matrix         map[string]map[string]int `json:"matrix"` // agent -> slot key -> count
	TotalsByAgent  map[string]int            `json:"totalsByAgent"`
	TotalsBySlot   map[string]int            `json:"totalsBySlot"`
	GrandTotal     int                       `json:"grandTotal"`
	ProcessedCount int                       `json:"processedCount"`
	RecordsRead    int                       `json:"recordsRead"`
	Skipped        SkipCounts                `json:"skipped"`
	Criteria       FilterCriteria            `json:"filterCriteria"`
}

// SlotKeys returns the slot keys in table order
func (m *CallMatrix) SlotKeys() []string {
	keys := make([]string, len(m.Slots))
	for i, s := range m.Slots {
		keys[i] = s.Key
	}
	return keys
}

// SlotCounts pivots the matrix to slot key -> agent -> count
func (m *CallMatrix) SlotCounts() map[string]map[string]int {
	out := make(map[string]map[string]int, len(m.Slots))
	for _, s := range m.Slots {
		out[s.Key] = make(map[string]int, len(m.Matrix))
	}
	for agent, row := range m.Matrix {
		for key, count := range row {
			if _, ok := out[key]; !ok {
				out[key] = make(map[string]int)
			}
			out[key][agent] = count
		}
	}
	return out
}

// AgentSummary is one agent's row of a matrix
type AgentSummary struct {
	AgentID     string         `json:"agent_id"`
	Date        string         `json:"date"`
	CallsBySlot map[string]int `json:"calls_by_slot"`
	TotalCalls  int            `json:"total_calls"`
}

// SlotSummary is one time slot's column of a matrix
type SlotSummary struct {
	SlotKey      string         `json:"time_slot"`
	Label        string         `json:"label"`
	Date         string         `json:"date"`
	CallsByAgent map[string]int `json:"calls_by_agent"`
	TotalCalls   int            `json:"total_calls"`
}
