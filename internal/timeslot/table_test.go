package timeslot

import (
	"testing"
	"time"

	"github.com/dennisdiepolder/callboard/internal/types"
)

func TestDefaultTable(t *testing.T) {
	table := Default()

	if err := table.Validate(); err != nil {
		t.Fatalf("default table invalid: %v", err)
	}

	keys := table.Keys()
	want := []string{"9-10", "10-11", "11-12", "12-13", "13-14", "14-15", "15-16", "16-17", "17-18", "18-19", "19-20"}
	if len(keys) != len(want) {
		t.Fatalf("expected %d slots, got %d", len(want), len(keys))
	}
	for i := range want {
		if keys[i] != want[i] {
			t.Errorf("slot %d: expected %s, got %s", i, want[i], keys[i])
		}
	}

	first := table.Slots()[0]
	if first.Label != "09:00-10:00" {
		t.Errorf("expected label 09:00-10:00, got %s", first.Label)
	}
}

func TestSlotFor(t *testing.T) {
	table := Default()

	for hour := 0; hour < 24; hour++ {
		slot, ok := table.SlotFor(hour)
		inDay := hour >= 9 && hour < 20
		if ok != inDay {
			t.Errorf("hour %d: expected found=%v, got %v", hour, inDay, ok)
			continue
		}
		if !ok {
			continue
		}
		if slot.HourStart > hour || hour >= slot.HourEnd {
			t.Errorf("hour %d: slot %s does not contain it", hour, slot.Key)
		}

		matches := 0
		for _, s := range table.Slots() {
			if s.HourStart <= hour && hour < s.HourEnd {
				matches++
			}
		}
		if matches != 1 {
			t.Errorf("hour %d: expected exactly one matching slot, got %d", hour, matches)
		}
	}
}

func TestLookup(t *testing.T) {
	table := Default()

	slot, ok := table.Lookup("14-15")
	if !ok || slot.HourStart != 14 {
		t.Errorf("expected slot 14-15, got %+v (found=%v)", slot, ok)
	}
	if _, ok := table.Lookup("20-21"); ok {
		t.Error("expected 20-21 to be unknown")
	}
}

func TestCurrent(t *testing.T) {
	table := Default()
	bangkok := time.FixedZone("ICT", 7*3600)

	// 03:30 UTC is 10:30 in Bangkok
	now := time.Date(2025, 11, 18, 3, 30, 0, 0, time.UTC)
	slot, ok := table.Current(now, bangkok)
	if !ok || slot.Key != "10-11" {
		t.Errorf("expected 10-11, got %+v (found=%v)", slot, ok)
	}

	// 14:00 UTC is 21:00 in Bangkok
	late := time.Date(2025, 11, 18, 14, 0, 0, 0, time.UTC)
	if _, ok := table.Current(late, bangkok); ok {
		t.Error("expected no slot outside working hours")
	}
}

func TestNewValidates(t *testing.T) {
	tests := []struct {
		name    string
		slots   []types.TimeSlot
		wantErr bool
	}{
		{
			name:  "contiguous",
			slots: []types.TimeSlot{{Key: "a", HourStart: 8, HourEnd: 12}, {Key: "b", HourStart: 12, HourEnd: 17}},
		},
		{name: "empty", wantErr: true},
		{
			name:    "inverted",
			slots:   []types.TimeSlot{{Key: "a", HourStart: 12, HourEnd: 12}},
			wantErr: true,
		},
		{
			name:    "gap",
			slots:   []types.TimeSlot{{Key: "a", HourStart: 8, HourEnd: 10}, {Key: "b", HourStart: 11, HourEnd: 12}},
			wantErr: true,
		},
		{
			name:    "overlap",
			slots:   []types.TimeSlot{{Key: "a", HourStart: 8, HourEnd: 11}, {Key: "b", HourStart: 10, HourEnd: 12}},
			wantErr: true,
		},
		{
			name:    "duplicate key",
			slots:   []types.TimeSlot{{Key: "a", HourStart: 8, HourEnd: 9}, {Key: "a", HourStart: 9, HourEnd: 10}},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.slots)
			if tt.wantErr && err == nil {
				t.Error("expected error, got nil")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}
