package timeslot

import (
	"fmt"
	"time"

	"github.com/dennisdiepolder/callboard/internal/types"
)

const (
	// DayStart is the first tracked working hour
	DayStart = 9
	// DayEnd is the exclusive end of the tracked working day
	DayEnd = 20
)

// Table is an ordered, contiguous partition of the working day
type Table struct {
	slots []types.TimeSlot
}

// Default returns the eleven one-hour slots from 09:00 to 20:00
func Default() *Table {
	slots := make([]types.TimeSlot, 0, DayEnd-DayStart)
	for h := DayStart; h < DayEnd; h++ {
		slots = append(slots, types.TimeSlot{
			Label:     fmt.Sprintf("%02d:00-%02d:00", h, h+1),
			Key:       fmt.Sprintf("%d-%d", h, h+1),
			HourStart: h,
			HourEnd:   h + 1,
		})
	}
	return &Table{slots: slots}
}

// New builds a table from explicit slots and validates it
func New(slots []types.TimeSlot) (*Table, error) {
	t := &Table{slots: append([]types.TimeSlot(nil), slots...)}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate checks that slots are non-empty, ordered, contiguous and uniquely keyed
func (t *Table) Validate() error {
	if len(t.slots) == 0 {
		return fmt.Errorf("time slot table is empty")
	}

	seen := make(map[string]bool, len(t.slots))
	for i, s := range t.slots {
		if s.HourStart >= s.HourEnd {
			return fmt.Errorf("slot %q: hourStart %d must be before hourEnd %d", s.Key, s.HourStart, s.HourEnd)
		}
		if s.HourStart < 0 || s.HourEnd > 24 {
			return fmt.Errorf("slot %q: hours must be within 0-24", s.Key)
		}
		if seen[s.Key] {
			return fmt.Errorf("duplicate slot key %q", s.Key)
		}
		seen[s.Key] = true
		if i > 0 && t.slots[i-1].HourEnd != s.HourStart {
			return fmt.Errorf("slot %q does not start where %q ends", s.Key, t.slots[i-1].Key)
		}
	}
	return nil
}

// Slots returns a copy of the slots in order
func (t *Table) Slots() []types.TimeSlot {
	return append([]types.TimeSlot(nil), t.slots...)
}

// Keys returns the slot keys in order
func (t *Table) Keys() []string {
	keys := make([]string, len(t.slots))
	for i, s := range t.slots {
		keys[i] = s.Key
	}
	return keys
}

// SlotFor returns the slot with HourStart <= hour < HourEnd
func (t *Table) SlotFor(hour int) (types.TimeSlot, bool) {
	for _, s := range t.slots {
		if s.HourStart <= hour && hour < s.HourEnd {
			return s, true
		}
	}
	return types.TimeSlot{}, false
}

// Lookup returns the slot with the given key
func (t *Table) Lookup(key string) (types.TimeSlot, bool) {
	for _, s := range t.slots {
		if s.Key == key {
			return s, true
		}
	}
	return types.TimeSlot{}, false
}

// Current returns the slot containing now's wall-clock hour in loc
func (t *Table) Current(now time.Time, loc *time.Location) (types.TimeSlot, bool) {
	if loc != nil {
		now = now.In(loc)
	}
	return t.SlotFor(now.Hour())
}
