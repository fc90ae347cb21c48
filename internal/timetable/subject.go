package timetable

import "strings"

const (
	// DaysPerWeek covers Monday through Saturday.
	DaysPerWeek = 6
	// Weekdays are the days available to weekly periods and blocks.
	Weekdays = 5
	// Saturday is the only day used by Saturday periods.
	Saturday = 5
)

// FixedSlot is an externally locked placement for one subject in one section.
type FixedSlot struct {
	Day      int `json:"day"`
	Slot     int `json:"slot"`
	Duration int `json:"duration"`
}

// Requirement is one subject record of a section.
type Requirement struct {
	Code            string      `json:"code"`
	Name            string      `json:"name"`
	Type            string      `json:"type"`
	Kind            Kind        `json:"kind"`
	WeeklyPeriods   int         `json:"weeklyPeriods"`
	SaturdayPeriods int         `json:"saturdayPeriods"`
	Faculty         []string    `json:"faculty"`
	FixedSlots      []FixedSlot `json:"fixedSlots,omitempty"`
}

// TotalRequired is the number of cells the record must occupy per week.
func (r Requirement) TotalRequired() int {
	return nonNegative(r.WeeklyPeriods) + nonNegative(r.SaturdayPeriods)
}

func (r Requirement) assignment() Assignment {
	return Assignment{Code: r.Code, Name: r.Name, Faculty: append([]string(nil), r.Faculty...)}
}

// normalize fills Kind and clamps counts so the solvers never see negative input.
func (r Requirement) normalize() Requirement {
	if r.Kind == "" {
		r.Kind = Classify(r.Type, r.Name)
	}
	r.Code = strings.TrimSpace(r.Code)
	r.WeeklyPeriods = nonNegative(r.WeeklyPeriods)
	r.SaturdayPeriods = nonNegative(r.SaturdayPeriods)
	return r
}

// Section identifies one class group of a semester.
type Section struct {
	ID string `json:"id"`
	// Index spreads sections over different preferred free days.
	Index int `json:"index"`
}

// SectionIndex derives a stable index from the trailing letter of a section name
// ("CSE-A" is 0, "CSE-B" is 1). Names without a trailing letter map to 0.
func SectionIndex(name string) int {
	name = strings.TrimSpace(name)
	for i := len(name) - 1; i >= 0; i-- {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z':
			return int(c - 'a')
		case c >= 'A' && c <= 'Z':
			return int(c - 'A')
		case c >= '0' && c <= '9':
			continue
		default:
			return 0
		}
	}
	return 0
}

// NormalizeFaculty is the key used for faculty conflict checks.
func NormalizeFaculty(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// CodeKey is the key used to match subject codes coming from different sources.
func CodeKey(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func nonNegative(v int) int {
	if v < 0 {
		return 0
	}
	return v
}
