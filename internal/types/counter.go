package types

// CounterResult is the outcome of a single-cell counter write
type CounterResult struct {
	Success   bool      `json:"success"`
	AgentID   string    `json:"agentId,omitempty"`
	SlotKey   string    `json:"slotKey,omitempty"`
	OldValue  int       `json:"oldValue"`
	NewValue  int       `json:"newValue"`
	Increment int       `json:"increment,omitempty"`
	Sheet     string    `json:"sheet,omitempty"`
	Error     string    `json:"error,omitempty"`
	ErrorType ErrorType `json:"error_type,omitempty"`
}

// BatchUpdate sets one (agent, slot) cell to Value
type BatchUpdate struct {
	AgentID string `json:"agentId"`
	SlotKey string `json:"slotKey"`
	Value   int    `json:"value"`
}

// BatchSkip names a batch entry that could not be resolved
type BatchSkip struct {
	AgentID string `json:"agentId"`
	SlotKey string `json:"slotKey"`
	Reason  string `json:"reason"`
}

// BatchResult is the outcome of a batch counter write
type BatchResult struct {
	Success      bool        `json:"success"`
	UpdatedCount int         `json:"updatedCount"`
	Skipped      []BatchSkip `json:"skipped,omitempty"`
	Sheet        string      `json:"sheet,omitempty"`
	Error        string      `json:"error,omitempty"`
	ErrorType    ErrorType   `json:"error_type,omitempty"`
}
