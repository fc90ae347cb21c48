package service

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/lib/pq"
	"github.com/samber/lo"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

var dayLabels = [timetable.DaysPerWeek]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

// timetableMeta is stored in the meta column of every generated timetable.
type timetableMeta struct {
	Algorithm  string               `json:"algorithm"`
	Slots      int                  `json:"slots"`
	SlotLabels []string             `json:"slotLabels"`
	Sections   []string             `json:"sections"`
	Attempts   []dto.AttemptSummary `json:"attempts"`
	DurationMs int64                `json:"durationMs"`
	CreatedBy  string               `json:"createdBy,omitempty"`
}

func decodeMeta(raw []byte) timetableMeta {
	var meta timetableMeta
	if len(raw) > 0 {
		_ = json.Unmarshal(raw, &meta)
	}
	return meta
}

// buildSemesterInput groups subject rows by section and attaches locked slots to
// every record of the locked code. A non-empty filter restricts the sections.
func buildSemesterInput(semester string, subjects []models.SectionSubject, locks []models.LockedSlot, filter []string) (timetable.SemesterInput, error) {
	grouped := lo.GroupBy(subjects, func(s models.SectionSubject) string { return s.Section })
	names := lo.Keys(grouped)
	sort.Strings(names)

	if len(filter) > 0 {
		if unknown := lo.Without(lo.Uniq(filter), names...); len(unknown) > 0 {
			return timetable.SemesterInput{}, fmt.Errorf("unknown sections: %s", strings.Join(unknown, ", "))
		}
		names = lo.Filter(names, func(name string, _ int) bool { return lo.Contains(filter, name) })
	}

	input := timetable.SemesterInput{Semester: semester}
	for _, name := range names {
		rows := grouped[name]
		reqs := make([]timetable.Requirement, 0, len(rows))
		for _, row := range rows {
			fixed := lo.FilterMap(locks, func(l models.LockedSlot, _ int) (timetable.FixedSlot, bool) {
				return timetable.FixedSlot{Day: l.DayOfWeek, Slot: l.SlotIndex, Duration: l.Duration},
					l.Section == name && timetable.CodeKey(l.Code) == timetable.CodeKey(row.Code)
			})
			reqs = append(reqs, timetable.Requirement{
				Code:            row.Code,
				Name:            row.Name,
				Type:            row.Type,
				WeeklyPeriods:   row.WeeklyPeriods,
				SaturdayPeriods: row.SaturdayPeriods,
				Faculty:         cleanFaculty(row.Faculty),
				FixedSlots:      fixed,
			})
		}
		input.Sections = append(input.Sections, timetable.SectionPlan{
			Section:      timetable.Section{ID: name, Index: timetable.SectionIndex(name)},
			Requirements: reqs,
		})
	}
	return input, nil
}

func cleanFaculty(names pq.StringArray) []string {
	trimmed := lo.Map([]string(names), func(n string, _ int) string { return strings.TrimSpace(n) })
	return lo.Compact(trimmed)
}

// buildHistory rebuilds the grids of published timetables of other semesters.
func buildHistory(published []models.Timetable, rows []models.TimetableSlot, defaultSlots int) []timetable.HistoricalGrid {
	byTimetable := lo.GroupBy(rows, func(r models.TimetableSlot) string { return r.TimetableID })
	var history []timetable.HistoricalGrid
	for _, tt := range published {
		slots := decodeMeta(tt.Meta).Slots
		if slots <= 0 {
			slots = defaultSlots
		}
		grids := slotsToGrids(byTimetable[tt.ID], slots)
		for _, section := range sortedSections(grids) {
			history = append(history, timetable.HistoricalGrid{Semester: tt.Semester, Section: section, Grid: grids[section]})
		}
	}
	return history
}

func sortedSections(grids map[string]*timetable.Grid) []string {
	names := lo.Keys(grids)
	sort.Strings(names)
	return names
}

// gridToSlots flattens a grid into one row per entry per occupied cell.
func gridToSlots(timetableID, section string, g *timetable.Grid) []models.TimetableSlot {
	var rows []models.TimetableSlot
	for day := 0; day < g.Days; day++ {
		for slot := 0; slot < g.Slots; slot++ {
			p := g.At(day, slot)
			if p == nil {
				continue
			}
			for order, entry := range p.Entries {
				rows = append(rows, models.TimetableSlot{
					TimetableID:  timetableID,
					Section:      section,
					DayOfWeek:    day,
					SlotIndex:    slot,
					EntryOrder:   order,
					Code:         entry.Code,
					Name:         entry.Name,
					Kind:         string(p.Kind),
					Faculty:      pq.StringArray(append([]string(nil), entry.Faculty...)),
					StartSlot:    p.StartSlot,
					Duration:     p.Duration,
					IsBlockStart: p.IsBlockStart,
					IsFixed:      p.IsFixed,
				})
			}
		}
	}
	return rows
}

// slotsToGrids is the inverse of gridToSlots. Rows outside the grid are dropped.
func slotsToGrids(rows []models.TimetableSlot, slots int) map[string]*timetable.Grid {
	sorted := append([]models.TimetableSlot(nil), rows...)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if a.Section != b.Section {
			return a.Section < b.Section
		}
		if a.DayOfWeek != b.DayOfWeek {
			return a.DayOfWeek < b.DayOfWeek
		}
		if a.SlotIndex != b.SlotIndex {
			return a.SlotIndex < b.SlotIndex
		}
		return a.EntryOrder < b.EntryOrder
	})

	grids := make(map[string]*timetable.Grid)
	for _, row := range sorted {
		g, ok := grids[row.Section]
		if !ok {
			g = timetable.NewGrid(slots)
			grids[row.Section] = g
		}
		if row.DayOfWeek < 0 || row.DayOfWeek >= g.Days || row.SlotIndex < 0 || row.SlotIndex >= g.Slots {
			continue
		}
		p := g.Cells[row.DayOfWeek][row.SlotIndex]
		if p == nil {
			p = &timetable.Placement{
				Kind:         timetable.Kind(row.Kind),
				Day:          row.DayOfWeek,
				StartSlot:    row.StartSlot,
				Duration:     row.Duration,
				IsBlockStart: row.IsBlockStart,
				IsFixed:      row.IsFixed,
			}
			g.Cells[row.DayOfWeek][row.SlotIndex] = p
		}
		p.Entries = append(p.Entries, timetable.Assignment{Code: row.Code, Name: row.Name, Faculty: append([]string(nil), row.Faculty...)})
	}
	return grids
}

func sectionViews(grids map[string]*timetable.Grid) []dto.SectionGrid {
	views := make([]dto.SectionGrid, 0, len(grids))
	for _, section := range sortedSections(grids) {
		views = append(views, sectionView(section, grids[section]))
	}
	return views
}

func sectionView(section string, g *timetable.Grid) dto.SectionGrid {
	view := dto.SectionGrid{Section: section, Days: make([]dto.DayRow, 0, g.Days)}
	for day := 0; day < g.Days; day++ {
		row := dto.DayRow{Day: day, Label: dayLabels[day], Cells: make([]*dto.CellView, g.Slots)}
		for slot := 0; slot < g.Slots; slot++ {
			p := g.At(day, slot)
			if p == nil {
				continue
			}
			cell := &dto.CellView{
				Codes:        p.Codes(),
				Kind:         string(p.Kind),
				StartSlot:    p.StartSlot,
				Duration:     p.Duration,
				IsBlockStart: p.IsBlockStart,
				IsFixed:      p.IsFixed,
			}
			for _, entry := range p.Entries {
				cell.Entries = append(cell.Entries, dto.CellEntry{Code: entry.Code, Name: entry.Name, Faculty: entry.Faculty})
			}
			row.Cells[slot] = cell
		}
		view.Days = append(view.Days, row)
	}
	return view
}

func attemptSummaries(attempts []timetable.Attempt) []dto.AttemptSummary {
	return lo.Map(attempts, func(a timetable.Attempt, _ int) dto.AttemptSummary {
		summary := dto.AttemptSummary{Index: a.Index, Seed: a.Seed, Relaxed: a.Relaxed, Phase: a.Phase, Section: a.Section}
		if a.Err != nil {
			summary.Error = a.Err.Error()
		}
		return summary
	})
}

// slotLabels returns the configured labels, padded with P1..Pn when the bell
// schedule is shorter than the grid.
func slotLabels(labels []string, slots int) []string {
	out := make([]string, slots)
	for i := range out {
		if i < len(labels) && strings.TrimSpace(labels[i]) != "" {
			out[i] = labels[i]
			continue
		}
		out[i] = fmt.Sprintf("P%d", i+1)
	}
	return out
}

// exportDataset renders a section grid as day rows. A cell shows its codes and,
// on a second line, the faculty.
func exportDataset(title string, grid dto.SectionGrid, labels []string) export.Dataset {
	data := export.Dataset{Title: title, Headers: append([]string{"Day"}, labels...)}
	for _, day := range grid.Days {
		row := []string{day.Label}
		for _, cell := range day.Cells {
			row = append(row, cellText(cell))
		}
		data.Rows = append(data.Rows, row)
	}
	return data
}

func cellText(cell *dto.CellView) string {
	if cell == nil {
		return ""
	}
	var faculty []string
	for _, entry := range cell.Entries {
		faculty = append(faculty, entry.Faculty...)
	}
	faculty = lo.Uniq(faculty)
	if len(faculty) == 0 {
		return cell.Codes
	}
	return cell.Codes + "\n" + strings.Join(faculty, ", ")
}
