package timetable

import "fmt"

// dailyCapThreshold: subjects needing at most this many periods a week appear at
// most once a day; heavier ones may appear twice, once on each side of lunch.
const dailyCapThreshold = 6

// placeTheory fills the remaining single periods.
func (s *sectionState) placeTheory() error {
	weekly := s.pool(func(u *unit) int { return s.remaining(u, 0) })
	saturday := s.pool(func(u *unit) int { return s.remaining(u, Saturday) })

	weekly = s.fillLabSlots(weekly)
	if err := s.placeWeekly(weekly); err != nil {
		return err
	}
	return s.placeSaturday(saturday)
}

// pool expands each unit into one item per outstanding period. Non-electives
// come first so electives take whatever is left.
func (s *sectionState) pool(count func(*unit) int) []*unit {
	var core, electives []*unit
	for _, u := range s.units {
		for n := count(u); n > 0; n-- {
			if u.kind == KindElective {
				electives = append(electives, u)
				continue
			}
			core = append(core, u)
		}
	}
	s.rng.Shuffle(len(core), func(i, j int) { core[i], core[j] = core[j], core[i] })
	s.rng.Shuffle(len(electives), func(i, j int) { electives[i], electives[j] = electives[j], electives[i] })
	return append(core, electives...)
}

// fillLabSlots first uses the cells that labs occupy in other sections, where
// this section would otherwise leave gaps.
func (s *sectionState) fillLabSlots(pool []*unit) []*unit {
	for day := 0; day < Weekdays; day++ {
		for slot := 0; slot < s.grid.Slots; slot++ {
			if !s.labSlots[slotKey{day, slot}] || s.grid.At(day, slot) != nil {
				continue
			}
			for i, u := range pool {
				if u.kind == KindElective || len(s.grid.CodeSlotsOnDay(u.code, day)) > 0 {
					continue
				}
				if s.reg.Faculty.Busy(day, slot, s.faculty(s.active(u, day))...) {
					continue
				}
				if s.placeSingle(u, day, slot) {
					pool = append(pool[:i], pool[i+1:]...)
					break
				}
			}
		}
	}
	return pool
}

func (s *sectionState) placeWeekly(pool []*unit) error {
	pending := pool
	for round := 0; round < s.opts.TheoryRounds && len(pending) > 0; round++ {
		var deferred []*unit
		for _, u := range pending {
			if !s.tryWeekly(u) {
				deferred = append(deferred, u)
			}
		}
		if len(deferred) == len(pending) {
			break
		}
		pending = deferred
	}
	for _, u := range pending {
		if !s.forceWeekly(u) {
			return fmt.Errorf("no free cell for %s without a faculty clash", u.code)
		}
	}
	return nil
}

func (s *sectionState) tryWeekly(u *unit) bool {
	if s.remaining(u, 0) == 0 {
		return true
	}
	for _, day := range s.rng.Perm(Weekdays) {
		names := s.faculty(s.active(u, day))
		for _, slot := range s.rng.Perm(s.grid.Slots) {
			if s.grid.At(day, slot) != nil || !s.dailyCapAllows(u, day, slot) {
				continue
			}
			if u.kind == KindElective && s.labSlots[slotKey{day, slot}] {
				continue
			}
			if s.reg.Faculty.Busy(day, slot, names...) {
				continue
			}
			return s.placeSingle(u, day, slot)
		}
	}
	return false
}

// forceWeekly ignores the daily cap and the elective lab-slot rule but never a
// faculty clash.
func (s *sectionState) forceWeekly(u *unit) bool {
	if s.remaining(u, 0) == 0 {
		return true
	}
	for day := 0; day < Weekdays; day++ {
		names := s.faculty(s.active(u, day))
		for slot := 0; slot < s.grid.Slots; slot++ {
			if s.grid.At(day, slot) == nil && !s.reg.Faculty.Busy(day, slot, names...) {
				return s.placeSingle(u, day, slot)
			}
		}
	}
	return false
}

func (s *sectionState) dailyCapAllows(u *unit, day, slot int) bool {
	existing := s.grid.CodeSlotsOnDay(u.code, day)
	if len(existing) == 0 {
		return true
	}
	if s.counter.TotalByCode(u.code) <= dailyCapThreshold || len(existing) > 1 {
		return false
	}
	lunch := s.opts.LunchSlot
	return (existing[0] < lunch) != (slot < lunch)
}

func (s *sectionState) placeSaturday(pool []*unit) error {
	for _, u := range pool {
		if s.remaining(u, Saturday) == 0 {
			continue
		}
		if !s.trySaturday(u, true) && !s.trySaturday(u, false) {
			return fmt.Errorf("no free Saturday cell for %s", u.code)
		}
	}
	return nil
}

func (s *sectionState) trySaturday(u *unit, distinct bool) bool {
	if distinct && len(s.grid.CodeSlotsOnDay(u.code, Saturday)) > 0 {
		return false
	}
	names := s.faculty(s.active(u, Saturday))
	for _, slot := range s.rng.Perm(s.grid.Slots) {
		if s.grid.At(Saturday, slot) == nil && !s.reg.Faculty.Busy(Saturday, slot, names...) {
			return s.placeSingle(u, Saturday, slot)
		}
	}
	return false
}
