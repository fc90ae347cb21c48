package timetable

type slotKey struct {
	day  int
	slot int
}

type labKey struct {
	day  int
	code string
}

// FacultyReservations records which faculty are busy at each (day, slot). Entries
// are reference counted so releasing one placement never frees a reservation
// made by another.
type FacultyReservations struct {
	busy map[slotKey]map[string]int
}

// NewFacultyReservations returns an empty reservation map.
func NewFacultyReservations() *FacultyReservations {
	return &FacultyReservations{busy: make(map[slotKey]map[string]int)}
}

// Reserve marks every named faculty busy at (day, slot).
func (f *FacultyReservations) Reserve(day, slot int, names ...string) {
	key := slotKey{day, slot}
	for _, name := range names {
		n := NormalizeFaculty(name)
		if n == "" {
			continue
		}
		if f.busy[key] == nil {
			f.busy[key] = make(map[string]int)
		}
		f.busy[key][n]++
	}
}

// Release frees the named faculty at (day, slot).
func (f *FacultyReservations) Release(day, slot int, names ...string) {
	set := f.busy[slotKey{day, slot}]
	for _, name := range names {
		n := NormalizeFaculty(name)
		if set[n] <= 1 {
			delete(set, n)
			continue
		}
		set[n]--
	}
}

// Count returns how many placements reserved the faculty at (day, slot).
func (f *FacultyReservations) Count(day, slot int, name string) int {
	return f.busy[slotKey{day, slot}][NormalizeFaculty(name)]
}

// Busy reports whether any of the names is reserved at (day, slot).
func (f *FacultyReservations) Busy(day, slot int, names ...string) bool {
	set := f.busy[slotKey{day, slot}]
	if len(set) == 0 {
		return false
	}
	for _, name := range names {
		if _, ok := set[NormalizeFaculty(name)]; ok {
			return true
		}
	}
	return false
}

// BusyExcept is Busy discounting the reservations held by except, used when the
// holder of the slot is about to be displaced.
func (f *FacultyReservations) BusyExcept(day, slot int, names, except []string) bool {
	set := f.busy[slotKey{day, slot}]
	if len(set) == 0 {
		return false
	}
	held := make(map[string]int, len(except))
	for _, name := range except {
		held[NormalizeFaculty(name)]++
	}
	for _, name := range names {
		n := NormalizeFaculty(name)
		if set[n]-held[n] > 0 {
			return true
		}
	}
	return false
}

// Clone returns an independent copy.
func (f *FacultyReservations) Clone() *FacultyReservations {
	cp := NewFacultyReservations()
	for key, set := range f.busy {
		inner := make(map[string]int, len(set))
		for name, count := range set {
			inner[name] = count
		}
		cp.busy[key] = inner
	}
	return cp
}

// LabUsage records which lab subjects already run on a given day anywhere.
type LabUsage struct {
	used map[labKey]bool
}

// NewLabUsage returns an empty lab usage map.
func NewLabUsage() *LabUsage {
	return &LabUsage{used: make(map[labKey]bool)}
}

// Mark records the code as running on day.
func (l *LabUsage) Mark(day int, code string) {
	l.used[labKey{day, code}] = true
}

// Used reports whether the code already runs on day.
func (l *LabUsage) Used(day int, code string) bool {
	return l.used[labKey{day, code}]
}

// Clone returns an independent copy.
func (l *LabUsage) Clone() *LabUsage {
	cp := NewLabUsage()
	for key, v := range l.used {
		cp.used[key] = v
	}
	return cp
}

// Registry bundles the shared conflict state of one generation attempt.
type Registry struct {
	Faculty *FacultyReservations
	Labs    *LabUsage
}

// NewRegistry returns empty registries.
func NewRegistry() *Registry {
	return &Registry{Faculty: NewFacultyReservations(), Labs: NewLabUsage()}
}

// Clone deep-copies both maps so an attempt can mutate them freely.
func (r *Registry) Clone() *Registry {
	return &Registry{Faculty: r.Faculty.Clone(), Labs: r.Labs.Clone()}
}

// ReserveGrid reserves the faculty of every cell of g.
func (r *Registry) ReserveGrid(g *Grid) {
	for day := 0; day < g.Days && day < len(g.Cells); day++ {
		for slot := 0; slot < len(g.Cells[day]); slot++ {
			if p := g.Cells[day][slot]; p != nil {
				r.Faculty.Reserve(day, slot, p.Faculty()...)
			}
		}
	}
}
