package callsim

import (
	"github.com/dennisdiepolder/callboard/internal/calllog"
	"github.com/dennisdiepolder/callboard/internal/sheets"
	"github.com/dennisdiepolder/callboard/internal/storage"
	"github.com/dennisdiepolder/callboard/internal/timeslot"
	"github.com/dennisdiepolder/callboard/internal/types"
)

// Layout names the worksheets a fixture workbook carries.
type Layout struct {
	CallLogSheet string
	CounterSheet string
	FilmSheet    string
	Columns      calllog.Columns
	Agents       []string // counter grid rows
}

// Workbook builds an in-memory workbook holding entries as the call log,
// a zeroed counter grid and a small film-data sheet.
func Workbook(entries []types.DynamoCallLog, layout Layout, table *timeslot.Table) *sheets.MemoryWorkbook {
	wb := sheets.NewMemoryWorkbook()
	wb.Put(layout.CallLogSheet, storage.RenderRows(layout.CallLogSheet, layout.Columns, entries).Rows)

	keys := table.Keys()
	grid := [][]string{append([]string{"agent"}, keys...)}
	for _, a := range layout.Agents {
		row := []string{a}
		for range keys {
			row = append(row, "0")
		}
		grid = append(grid, row)
	}
	wb.Put(layout.CounterSheet, grid)

	if layout.FilmSheet != "" {
		wb.Put(layout.FilmSheet, [][]string{
			{"ผู้ติดต่อ", "วันที่ได้นัดผ่าตัด", "วันที่ได้นัด consult", "วันที่ผ่าตัด"},
			{"Khun Somchai", "2025-11-10", "2025-11-03", "2025-11-24"},
			{"Khun Malee", "", "2025-11-12", ""},
		})
	}
	return wb
}
