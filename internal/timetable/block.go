package timetable

import (
	"fmt"
	"sort"
)

const (
	normalPasses  = 2
	relaxedPasses = 4
	// displacementPass is the first pass allowed to evict single theory periods.
	displacementPass = 3
)

// placeBlocks places the contiguous lab/integrated blocks of every block unit.
// Labs go before integrated subjects, larger requirements first.
func (s *sectionState) placeBlocks() error {
	units := make([]*unit, 0, len(s.units))
	for _, u := range s.units {
		if u.kind.IsBlock() {
			units = append(units, u)
		}
	}
	sort.SliceStable(units, func(i, j int) bool {
		if units[i].kind != units[j].kind {
			return units[i].kind == KindLab
		}
		return s.unitPortion(units[i]) > s.unitPortion(units[j])
	})

	days := s.dayOrder()
	for _, u := range units {
		if err := s.placeUnitBlocks(u, days); err != nil {
			return err
		}
	}
	return nil
}

// blockPortion is how many of record m's weekly periods are taught as blocks.
func (s *sectionState) blockPortion(u *unit, m int) int {
	weekly := s.reqs[m].WeeklyPeriods
	if weekly < 2 {
		return 0
	}
	if u.kind == KindLab {
		return weekly
	}
	size := 2
	if weekly >= 5 {
		size = 3
	}
	if override, ok := s.durationOverride(u); ok {
		size = override
	}
	if size > weekly {
		size = weekly
	}
	return size
}

func (s *sectionState) durationOverride(u *unit) (int, bool) {
	override, ok := s.opts.BlockDurations[CodeKey(u.code)]
	return override, ok && override >= 2
}

// memberNeed is what record m still has to place as blocks; the rest of its
// weekly periods are theory.
func (s *sectionState) memberNeed(u *unit, m int) int {
	theory := s.reqs[m].WeeklyPeriods - s.blockPortion(u, m)
	return nonNegative(s.counter.Weekly(m) - theory)
}

// blockNeed is the largest outstanding block need among the unit's records.
func (s *sectionState) blockNeed(u *unit) int {
	need := 0
	for _, m := range u.members {
		if n := s.memberNeed(u, m); n > need {
			need = n
		}
	}
	return need
}

// unitPortion orders units by their largest block portion.
func (s *sectionState) unitPortion(u *unit) int {
	portion := 0
	for _, m := range u.members {
		if p := s.blockPortion(u, m); p > portion {
			portion = p
		}
	}
	return portion
}

// blockMembers lists the records that take a block of the given duration. A
// record joins only when it still needs at least that many block periods.
func (s *sectionState) blockMembers(u *unit, duration int) []int {
	var out []int
	for _, m := range u.members {
		if s.memberNeed(u, m) >= duration {
			out = append(out, m)
		}
	}
	return out
}

// integratedNeed is the smallest block need among integrated records that still
// need a block; the one weekly block is sized to it.
func (s *sectionState) integratedNeed(u *unit) int {
	need := 0
	for _, m := range u.members {
		if n := s.memberNeed(u, m); n >= 2 && (need == 0 || n < need) {
			need = n
		}
	}
	return need
}

func (s *sectionState) placeUnitBlocks(u *unit, days []int) error {
	if u.kind == KindIntegrated && s.hasBlock(u) {
		return nil
	}
	probes := 0
	for {
		need := s.blockNeed(u)
		if u.kind == KindIntegrated {
			need = s.integratedNeed(u)
		}
		if need < 2 || probes >= s.opts.BlockBudget {
			break
		}
		if !s.searchBlock(u, days, need, &probes) {
			break
		}
		if u.kind == KindIntegrated {
			break
		}
	}
	if need := s.blockNeed(u); need >= 2 {
		return fmt.Errorf("%w: %s still needs %d block periods", ErrBlockUnplaceable, u.code, need)
	}
	return nil
}

func (s *sectionState) searchBlock(u *unit, days []int, need int, probes *int) bool {
	passes := normalPasses
	if s.relaxed {
		passes = relaxedPasses
	}
	for pass := 1; pass <= passes; pass++ {
		for _, duration := range s.durations(u, need) {
			for _, day := range days {
				for _, start := range s.startSlots(pass, duration) {
					*probes++
					if *probes > s.opts.BlockBudget {
						return false
					}
					if s.canPlaceBlock(u, day, start, duration, pass >= displacementPass) {
						s.commitBlock(u, day, start, duration)
						return true
					}
				}
			}
		}
	}
	return false
}

// durations orders candidate block lengths. Labs prefer the longest block but
// avoid leaving a single stray period; integrated subjects take one block.
func (s *sectionState) durations(u *unit, need int) []int {
	if override, ok := s.durationOverride(u); ok {
		if override > need {
			override = need
		}
		return []int{override}
	}
	if u.kind == KindIntegrated {
		return []int{need}
	}
	longest := need
	if longest > 4 {
		longest = 4
	}
	var clean, stray []int
	for d := longest; d >= 2; d-- {
		if need-d == 1 {
			stray = append(stray, d)
			continue
		}
		clean = append(clean, d)
	}
	return append(clean, stray...)
}

// startSlots lists candidate starts for a pass. Four-period blocks always start
// at slot 1; other blocks never straddle lunch.
func (s *sectionState) startSlots(pass, duration int) []int {
	lunch := s.opts.LunchSlot
	var base []int
	switch {
	case duration >= 4:
		base = []int{1}
	case pass == 1:
		base = []int{1, lunch}
	case pass < relaxedPasses:
		base = []int{1, 2, lunch, lunch + 1}
	default:
		for slot := 0; slot < s.grid.Slots; slot++ {
			base = append(base, slot)
		}
	}
	out := make([]int, 0, len(base))
	for _, start := range base {
		if start < 0 || start+duration > s.grid.Slots {
			continue
		}
		if duration < 4 && s.straddlesLunch(start, duration) {
			continue
		}
		out = append(out, start)
	}
	s.rng.Shuffle(len(out), func(i, j int) { out[i], out[j] = out[j], out[i] })
	return out
}

// dayOrder shuffles the weekdays and moves the section's preferred free day to
// the end, so sections fill their days in different orders.
func (s *sectionState) dayOrder() []int {
	free := s.section.Index % Weekdays
	if free < 0 {
		free = -free
	}
	days := make([]int, 0, Weekdays)
	for day := 0; day < Weekdays; day++ {
		if day != free {
			days = append(days, day)
		}
	}
	s.rng.Shuffle(len(days), func(i, j int) { days[i], days[j] = days[j], days[i] })
	return append(days, free)
}

func (s *sectionState) canPlaceBlock(u *unit, day, start, duration int, displace bool) bool {
	if s.reg.Labs.Used(day, u.code) {
		return false
	}
	names := s.faculty(s.blockMembers(u, duration))
	for slot := start; slot < start+duration; slot++ {
		var held []string
		if cell := s.grid.At(day, slot); cell != nil {
			if !displace || !s.displaceable(cell) || cell.hasCode(u.code) {
				return false
			}
			held = cell.Faculty()
		}
		if s.reg.Faculty.BusyExcept(day, slot, names, held) {
			return false
		}
	}
	return true
}

// displaceable reports whether a block may evict the cell: only single-period
// theory cells, locked or not. Lab locks and multi-period locks stay.
func (s *sectionState) displaceable(cell *Placement) bool {
	return !cell.IsBlock()
}

func (s *sectionState) commitBlock(u *unit, day, start, duration int) {
	var displaced []int
	for slot := start; slot < start+duration; slot++ {
		cell := s.grid.At(day, slot)
		if cell == nil {
			continue
		}
		s.reg.Faculty.Release(day, slot, cell.Faculty()...)
		s.grid.clear(day, slot)
		for _, entry := range cell.Entries {
			if i, ok := s.byEntry[entryKey(entry)]; ok {
				displaced = append(displaced, i)
			}
		}
	}

	members := s.blockMembers(u, duration)
	for slot := start; slot < start+duration; slot++ {
		p := &Placement{
			Entries:      s.entries(members),
			Kind:         u.kind,
			Day:          day,
			StartSlot:    start,
			Duration:     duration,
			IsBlockStart: slot == start,
		}
		s.grid.set(day, slot, p)
		s.reg.Faculty.Reserve(day, slot, p.Faculty()...)
	}
	s.reg.Labs.Mark(day, u.code)
	for _, m := range members {
		s.counter.Consume(m, day, duration)
	}
	for _, i := range displaced {
		s.counter.Recount(i, s.grid)
	}
}

func (s *sectionState) hasBlock(u *unit) bool {
	for _, p := range s.grid.Blocks() {
		if p.hasCode(u.code) {
			return true
		}
	}
	return false
}
