package timetable

import "strings"

// Assignment is one subject/faculty pair inside a cell.
type Assignment struct {
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Faculty []string `json:"faculty"`
}

func (a Assignment) same(other Assignment) bool {
	return a.Code == other.Code && a.Name == other.Name
}

// Placement occupies one cell. Cells of a multi-period block carry the same
// StartSlot and Duration; only the first has IsBlockStart set.
type Placement struct {
	Entries      []Assignment `json:"entries"`
	Kind         Kind         `json:"kind"`
	Day          int          `json:"day"`
	StartSlot    int          `json:"startSlot"`
	Duration     int          `json:"duration"`
	IsBlockStart bool         `json:"isBlockStart"`
	IsFixed      bool         `json:"isFixed"`
}

// IsBlock reports whether the cell belongs to a multi-period block or a locked
// lab slot. Single theory periods of a lab subject are not blocks.
func (p *Placement) IsBlock() bool {
	return p != nil && (p.Duration > 1 || (p.IsFixed && p.Kind.IsBlock()))
}

// Codes renders the merged subject codes for display, e.g. "CS301/CS302".
func (p *Placement) Codes() string {
	if p == nil {
		return ""
	}
	codes := make([]string, 0, len(p.Entries))
	for _, entry := range p.Entries {
		if !containsString(codes, entry.Code) {
			codes = append(codes, entry.Code)
		}
	}
	return strings.Join(codes, "/")
}

// Names renders the merged subject names for display.
func (p *Placement) Names() string {
	if p == nil {
		return ""
	}
	names := make([]string, 0, len(p.Entries))
	for _, entry := range p.Entries {
		names = append(names, entry.Name)
	}
	return strings.Join(names, "/")
}

// Faculty returns every faculty name of the cell in entry order.
func (p *Placement) Faculty() []string {
	if p == nil {
		return nil
	}
	var names []string
	for _, entry := range p.Entries {
		names = append(names, entry.Faculty...)
	}
	return names
}

func (p *Placement) has(a Assignment) bool {
	for _, entry := range p.Entries {
		if entry.same(a) {
			return true
		}
	}
	return false
}

func (p *Placement) hasCode(code string) bool {
	for _, entry := range p.Entries {
		if entry.Code == code {
			return true
		}
	}
	return false
}

func (p *Placement) clone() *Placement {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Entries = make([]Assignment, len(p.Entries))
	for i, entry := range p.Entries {
		cp.Entries[i] = Assignment{Code: entry.Code, Name: entry.Name, Faculty: append([]string(nil), entry.Faculty...)}
	}
	return &cp
}

// Grid is the weekly timetable of one section: DaysPerWeek rows of Slots cells.
type Grid struct {
	Days  int            `json:"days"`
	Slots int            `json:"slots"`
	Cells [][]*Placement `json:"cells"`
}

// NewGrid returns an empty grid with the given number of teaching slots per day.
func NewGrid(slots int) *Grid {
	cells := make([][]*Placement, DaysPerWeek)
	for day := range cells {
		cells[day] = make([]*Placement, slots)
	}
	return &Grid{Days: DaysPerWeek, Slots: slots, Cells: cells}
}

// At returns the placement at (day, slot), nil when empty or out of range.
func (g *Grid) At(day, slot int) *Placement {
	if !g.inRange(day, slot) {
		return nil
	}
	return g.Cells[day][slot]
}

func (g *Grid) inRange(day, slot int) bool {
	return day >= 0 && day < g.Days && slot >= 0 && slot < g.Slots
}

func (g *Grid) set(day, slot int, p *Placement) {
	g.Cells[day][slot] = p
}

func (g *Grid) clear(day, slot int) {
	g.Cells[day][slot] = nil
}

// Count returns how many cells hold the given assignment, restricted to the
// weekday rows or the Saturday row.
func (g *Grid) Count(a Assignment, saturday bool) int {
	count := 0
	for day := 0; day < g.Days; day++ {
		if (day == Saturday) != saturday {
			continue
		}
		for slot := 0; slot < g.Slots; slot++ {
			if p := g.Cells[day][slot]; p != nil && p.has(a) {
				count++
			}
		}
	}
	return count
}

// CodeSlotsOnDay lists the slots of a day whose cell holds the code.
func (g *Grid) CodeSlotsOnDay(code string, day int) []int {
	var slots []int
	for slot := 0; slot < g.Slots; slot++ {
		if p := g.Cells[day][slot]; p != nil && p.hasCode(code) {
			slots = append(slots, slot)
		}
	}
	return slots
}

// Blocks returns the first cell of every block placement in day/slot order.
func (g *Grid) Blocks() []*Placement {
	var blocks []*Placement
	for day := 0; day < g.Days; day++ {
		for slot := 0; slot < g.Slots; slot++ {
			if p := g.Cells[day][slot]; p != nil && p.IsBlock() && p.IsBlockStart {
				blocks = append(blocks, p)
			}
		}
	}
	return blocks
}

// Clone deep-copies the grid.
func (g *Grid) Clone() *Grid {
	if g == nil {
		return nil
	}
	cp := NewGrid(g.Slots)
	for day := 0; day < g.Days; day++ {
		for slot := 0; slot < g.Slots; slot++ {
			cp.Cells[day][slot] = g.Cells[day][slot].clone()
		}
	}
	return cp
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
