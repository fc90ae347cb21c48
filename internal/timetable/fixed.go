package timetable

// applyFixed places every externally locked slot before any search runs. No
// faculty checks are made; the only guard is that a lab lock never shares a cell
// with a non-lab lock. Locks of the same kind merge into one cell.
func (s *sectionState) applyFixed() {
	for i := range s.reqs {
		for _, fs := range s.reqs[i].FixedSlots {
			s.applyFixedSlot(i, fs)
		}
	}
}

func (s *sectionState) applyFixedSlot(i int, fs FixedSlot) {
	req := s.reqs[i]
	duration := fs.Duration
	if duration < 1 {
		duration = 1
	}
	if !s.grid.inRange(fs.Day, fs.Slot) || fs.Slot+duration > s.grid.Slots {
		return
	}
	lab := req.Kind.IsBlock()
	for slot := fs.Slot; slot < fs.Slot+duration; slot++ {
		if cell := s.grid.At(fs.Day, slot); cell != nil && cell.Kind.IsBlock() != lab {
			return
		}
	}

	a := req.assignment()
	placed := 0
	for slot := fs.Slot; slot < fs.Slot+duration; slot++ {
		cell := s.grid.At(fs.Day, slot)
		switch {
		case cell == nil:
			s.grid.set(fs.Day, slot, &Placement{
				Entries:      []Assignment{a},
				Kind:         req.Kind,
				Day:          fs.Day,
				StartSlot:    fs.Slot,
				Duration:     duration,
				IsBlockStart: slot == fs.Slot,
				IsFixed:      true,
			})
		case cell.has(a):
			continue
		default:
			cell.Entries = append(cell.Entries, a)
		}
		s.reg.Faculty.Reserve(fs.Day, slot, req.Faculty...)
		placed++
		if req.Kind == KindElective {
			s.groupSlots[req.Code] = append(s.groupSlots[req.Code], slotKey{fs.Day, slot})
		}
	}
	if lab && placed > 0 {
		s.reg.Labs.Mark(fs.Day, req.Code)
	}
	s.counter.Consume(i, fs.Day, placed)
}

// syncElectives copies every locked elective cell to the other records of the
// same elective group, so all variants of an elective share their periods. Like
// the locks themselves, synced entries skip faculty checks.
func (s *sectionState) syncElectives() {
	for _, u := range s.units {
		if u.kind != KindElective {
			continue
		}
		for _, key := range s.groupSlots[u.code] {
			cell := s.grid.At(key.day, key.slot)
			if cell == nil {
				continue
			}
			for _, m := range u.members {
				req := s.reqs[m]
				a := req.assignment()
				if cell.has(a) || s.counter.Remaining(m, key.day) == 0 {
					continue
				}
				cell.Entries = append(cell.Entries, a)
				s.reg.Faculty.Reserve(key.day, key.slot, req.Faculty...)
				s.counter.Consume(m, key.day, 1)
			}
		}
	}
}
