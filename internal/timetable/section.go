package timetable

import (
	"fmt"
	"math/rand"
)

// Mode selects how far the section generator runs.
type Mode int

const (
	// ModeFull places fixed slots, electives, blocks and theory.
	ModeFull Mode = iota
	// ModeBlocksOnly stops once blocks are placed.
	ModeBlocksOnly
)

// Stage is a step of the section generator.
type Stage string

const (
	StageEmpty           Stage = "EMPTY"
	StageFixedApplied    Stage = "FIXED_APPLIED"
	StageElectivesSynced Stage = "ELECTIVES_SYNCED"
	StageBlocksPlaced    Stage = "BLOCKS_PLACED"
	StageTheoryPlaced    Stage = "THEORY_PLACED"
	StageFailed          Stage = "FAILED"
)

// Cell addresses one (day, slot) of a grid.
type Cell struct {
	Day  int `json:"day"`
	Slot int `json:"slot"`
}

// SectionInput is everything the generator needs for one section.
type SectionInput struct {
	Section      Section
	Requirements []Requirement
	// LabSlots are cells used by labs anywhere in the semester.
	LabSlots []Cell
	Relaxed  bool
	Mode     Mode
}

// unit is the scheduling identity of one code: records sharing a code are placed
// together in merged cells.
type unit struct {
	code    string
	kind    Kind
	members []int
}

type sectionState struct {
	opts    Options
	section Section
	relaxed bool
	rng     *rand.Rand
	reg     *Registry

	reqs     []Requirement
	units    []*unit
	byCode   map[string]*unit
	byEntry  map[string]int
	counter  *Counter
	grid     *Grid
	labSlots map[slotKey]bool

	groupSlots map[string][]slotKey
	stage      Stage
}

// GenerateSection builds the grid of one section. reg is borrowed for the duration
// of the call: every accepted placement is reserved in it. On failure the returned
// error wraps ErrSectionInfeasible and no grid is returned.
func GenerateSection(in SectionInput, reg *Registry, rng *rand.Rand, opts Options) (*Grid, error) {
	s := newSectionState(in, reg, rng, opts.withDefaults())

	s.applyFixed()
	s.stage = StageFixedApplied

	s.syncElectives()
	s.stage = StageElectivesSynced

	if err := s.placeBlocks(); err != nil {
		s.stage = StageFailed
		return nil, fmt.Errorf("%w: section %s: %w", ErrSectionInfeasible, in.Section.ID, err)
	}
	s.stage = StageBlocksPlaced
	if in.Mode == ModeBlocksOnly {
		return s.grid, nil
	}

	if err := s.placeTheory(); err != nil {
		s.stage = StageFailed
		return nil, fmt.Errorf("%w: section %s: %w", ErrSectionInfeasible, in.Section.ID, err)
	}
	s.stage = StageTheoryPlaced
	return s.grid, nil
}

func newSectionState(in SectionInput, reg *Registry, rng *rand.Rand, opts Options) *sectionState {
	if reg == nil {
		reg = NewRegistry()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(opts.Seed))
	}
	s := &sectionState{
		opts:       opts,
		section:    in.Section,
		relaxed:    in.Relaxed,
		rng:        rng,
		reg:        reg,
		byCode:     make(map[string]*unit),
		byEntry:    make(map[string]int),
		grid:       NewGrid(opts.TeachingSlots),
		labSlots:   make(map[slotKey]bool, len(in.LabSlots)),
		groupSlots: make(map[string][]slotKey),
		stage:      StageEmpty,
	}
	for _, req := range in.Requirements {
		s.reqs = append(s.reqs, req.normalize())
	}
	for i, req := range s.reqs {
		if _, ok := s.byEntry[entryKey(req.assignment())]; !ok {
			s.byEntry[entryKey(req.assignment())] = i
		}
		u, ok := s.byCode[req.Code]
		if !ok {
			u = &unit{code: req.Code, kind: req.Kind}
			s.byCode[req.Code] = u
			s.units = append(s.units, u)
		}
		if req.Kind.IsBlock() && !u.kind.IsBlock() {
			u.kind = req.Kind
		}
		u.members = append(u.members, i)
	}
	s.counter = NewCounter(s.reqs)
	for _, cell := range in.LabSlots {
		s.labSlots[slotKey{cell.Day, cell.Slot}] = true
	}
	return s
}

func entryKey(a Assignment) string {
	return a.Code + "\x00" + a.Name
}

// remaining is the largest outstanding count among the unit's records for the
// pool of the given day.
func (s *sectionState) remaining(u *unit, day int) int {
	max := 0
	for _, m := range u.members {
		if r := s.counter.Remaining(m, day); r > max {
			max = r
		}
	}
	return max
}

// active lists the records of u that still need periods in the day's pool.
func (s *sectionState) active(u *unit, day int) []int {
	var out []int
	for _, m := range u.members {
		if s.counter.Remaining(m, day) > 0 {
			out = append(out, m)
		}
	}
	return out
}

func (s *sectionState) faculty(members []int) []string {
	var names []string
	for _, m := range members {
		names = append(names, s.reqs[m].Faculty...)
	}
	return names
}

func (s *sectionState) entries(members []int) []Assignment {
	out := make([]Assignment, 0, len(members))
	for _, m := range members {
		out = append(out, s.reqs[m].assignment())
	}
	return out
}

func (s *sectionState) weeklyPeriods(u *unit) int {
	max := 0
	for _, m := range u.members {
		if w := s.reqs[m].WeeklyPeriods; w > max {
			max = w
		}
	}
	return max
}

// placeSingle puts one period of u at (day, slot) for every record still
// needing it. Callers have already checked the cell and faculty.
func (s *sectionState) placeSingle(u *unit, day, slot int) bool {
	members := s.active(u, day)
	if len(members) == 0 {
		return false
	}
	p := &Placement{
		Entries:      s.entries(members),
		Kind:         u.kind,
		Day:          day,
		StartSlot:    slot,
		Duration:     1,
		IsBlockStart: true,
	}
	s.grid.set(day, slot, p)
	s.reg.Faculty.Reserve(day, slot, p.Faculty()...)
	for _, m := range members {
		s.counter.Consume(m, day, 1)
	}
	return true
}

func (s *sectionState) straddlesLunch(start, duration int) bool {
	lunch := s.opts.LunchSlot
	return start < lunch && start+duration > lunch
}
