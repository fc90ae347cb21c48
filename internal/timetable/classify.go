package timetable

import "strings"

// Kind is the scheduling class of a subject.
type Kind string

const (
	KindLecture    Kind = "LECTURE"
	KindLab        Kind = "LAB"
	KindIntegrated Kind = "INTEGRATED"
	KindElective   Kind = "ELECTIVE"
)

// IsBlock reports whether the kind is placed as contiguous multi-period blocks.
func (k Kind) IsBlock() bool {
	return k == KindLab || k == KindIntegrated
}

var labMarkers = []string{"lab", "labs", "laboratory", "practical", "practicals", "project", "workshop"}

// Classify derives a Kind from the free-text type and name found on imported records.
//
// Rules, in order:
//   - "integrated" in the type or name is Integrated;
//   - a type mentioning lab, practical, project or workshop is Lab;
//   - a type mentioning elective is Elective;
//   - a lecture/theory (or empty) type whose name mentions a lab marker is Lab;
//   - anything else is Lecture.
func Classify(typ, name string) Kind {
	t := strings.ToLower(strings.TrimSpace(typ))
	n := strings.ToLower(strings.TrimSpace(name))

	if strings.Contains(t, "integrated") || strings.Contains(n, "integrated") {
		return KindIntegrated
	}
	if containsAny(t, labMarkers) {
		return KindLab
	}
	if strings.Contains(t, "elective") {
		return KindElective
	}
	if isLectureType(t) && containsAny(n, labMarkers) {
		return KindLab
	}
	return KindLecture
}

func isLectureType(t string) bool {
	return t == "" || strings.Contains(t, "lecture") || strings.Contains(t, "theory")
}

// containsAny matches whole words so that e.g. "syllabus" is not read as a lab.
func containsAny(s string, words []string) bool {
	tokens := strings.FieldsFunc(s, func(r rune) bool {
		return (r < 'a' || r > 'z') && (r < '0' || r > '9')
	})
	for _, token := range tokens {
		for _, word := range words {
			if token == word {
				return true
			}
		}
	}
	return false
}
