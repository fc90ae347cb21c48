package timetable

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestState(t *testing.T, opts Options, reqs ...Requirement) *sectionState {
	t.Helper()
	return newSectionState(SectionInput{Section: Section{ID: "CSE-A"}, Requirements: reqs}, NewRegistry(), rand.New(rand.NewSource(1)), opts.withDefaults())
}

func TestBlockPortionAndDurations(t *testing.T) {
	s := newTestState(t, Options{BlockDurations: map[string]int{"EC202": 2}},
		Requirement{Code: "CS291", Type: "Lab", WeeklyPeriods: 5},
		Requirement{Code: "EC201", Type: "Integrated", WeeklyPeriods: 4},
		Requirement{Code: "EC203", Type: "Integrated", WeeklyPeriods: 6},
		Requirement{Code: "EC202", Type: "Integrated", WeeklyPeriods: 6},
		Requirement{Code: "CS292", Type: "Lab", WeeklyPeriods: 1},
	)
	lab, integrated, big, override, single := s.byCode["CS291"], s.byCode["EC201"], s.byCode["EC203"], s.byCode["EC202"], s.byCode["CS292"]

	portion := func(u *unit) int { return s.blockPortion(u, u.members[0]) }
	assert.Equal(t, 5, portion(lab))
	assert.Equal(t, 2, portion(integrated))
	assert.Equal(t, 3, portion(big))
	assert.Equal(t, 2, portion(override))
	assert.Equal(t, 0, portion(single))
	assert.Equal(t, 2, s.blockNeed(integrated))

	assert.Equal(t, []int{3, 2, 4}, s.durations(lab, 5), "a four period block would strand one period")
	assert.Equal(t, []int{4, 2, 3}, s.durations(lab, 4))
	assert.Equal(t, []int{2}, s.durations(lab, 2))
	assert.Equal(t, []int{3}, s.durations(big, 3))
	assert.Equal(t, []int{2}, s.durations(override, 2))
}

func TestStartSlotsRespectLunch(t *testing.T) {
	s := newTestState(t, Options{})

	assert.Equal(t, []int{1}, s.startSlots(1, 4))
	assert.Equal(t, []int{1}, s.startSlots(4, 4))
	assert.ElementsMatch(t, []int{1, 4}, s.startSlots(1, 2))
	assert.ElementsMatch(t, []int{1, 2, 4, 5}, s.startSlots(2, 2))
	assert.ElementsMatch(t, []int{1, 4}, s.startSlots(3, 3))
	assert.ElementsMatch(t, []int{0, 1, 4}, s.startSlots(4, 3))
	assert.ElementsMatch(t, []int{0, 1, 2, 4, 5}, s.startSlots(4, 2))
}

func TestDayOrderPutsPreferredFreeDayLast(t *testing.T) {
	for index := 0; index < 8; index++ {
		s := newSectionState(SectionInput{Section: Section{ID: "S", Index: index}}, nil, rand.New(rand.NewSource(int64(index))), Options{}.withDefaults())
		days := s.dayOrder()
		require.Len(t, days, Weekdays)
		assert.Equal(t, index%Weekdays, days[Weekdays-1])
		assert.ElementsMatch(t, []int{0, 1, 2, 3, 4}, days)
	}
}

func TestCommitBlockDisplacesTheory(t *testing.T) {
	s := newTestState(t, Options{},
		Requirement{Code: "MA101", Name: "Calculus", Type: "Lecture", WeeklyPeriods: 3, Faculty: []string{"Alice"}},
		Requirement{Code: "PH191", Name: "Physics Lab", Type: "Lab", WeeklyPeriods: 2, Faculty: []string{"Bob"}},
	)
	math, lab := s.byCode["MA101"], s.byCode["PH191"]

	require.True(t, s.placeSingle(math, 0, 1))
	assert.Equal(t, 2, s.counter.Weekly(0))

	assert.False(t, s.canPlaceBlock(lab, 0, 1, 2, false))
	require.True(t, s.canPlaceBlock(lab, 0, 1, 2, true))
	s.commitBlock(lab, 0, 1, 2)

	assert.Equal(t, 3, s.counter.Weekly(0), "displaced period is owed again")
	assert.Equal(t, 0, s.counter.Weekly(1))
	assert.False(t, s.reg.Faculty.Busy(0, 1, "alice"))
	assert.True(t, s.reg.Faculty.Busy(0, 1, "bob"))
	assert.True(t, s.reg.Faculty.Busy(0, 2, "bob"))
	assert.True(t, s.reg.Labs.Used(0, "PH191"))
	assert.True(t, s.grid.At(0, 1).hasCode("PH191"))
	assert.True(t, s.hasBlock(lab))
}

func TestCanPlaceBlockDisplacesOnlySinglePeriodTheory(t *testing.T) {
	s := newTestState(t, Options{},
		Requirement{Code: "MA101", Name: "Calculus", WeeklyPeriods: 3, Faculty: []string{"Alice"},
			FixedSlots: []FixedSlot{{Day: 0, Slot: 2, Duration: 1}, {Day: 2, Slot: 1, Duration: 2}}},
		Requirement{Code: "CS291", Name: "OS Lab", Type: "Lab", WeeklyPeriods: 2, Faculty: []string{"Eve"},
			FixedSlots: []FixedSlot{{Day: 4, Slot: 1, Duration: 2}}},
		Requirement{Code: "PH191", Name: "Physics Lab", Type: "Lab", WeeklyPeriods: 2, Faculty: []string{"Bob"}},
	)
	s.applyFixed()
	lab := s.byCode["PH191"]

	assert.False(t, s.canPlaceBlock(lab, 0, 1, 2, false))
	assert.True(t, s.canPlaceBlock(lab, 0, 1, 2, true), "single locked theory period")
	assert.False(t, s.canPlaceBlock(lab, 2, 1, 2, true), "multi-period lock")
	assert.False(t, s.canPlaceBlock(lab, 4, 1, 2, true), "lab lock")
	assert.True(t, s.canPlaceBlock(lab, 0, 4, 2, true))

	s.reg.Faculty.Reserve(1, 4, "BOB")
	assert.False(t, s.canPlaceBlock(lab, 1, 4, 2, true))

	s.reg.Labs.Mark(3, "PH191")
	assert.False(t, s.canPlaceBlock(lab, 3, 1, 2, false))
}

func TestCommitBlockOnlyTakesRecordsNeedingTheWholeBlock(t *testing.T) {
	s := newTestState(t, Options{},
		Requirement{Code: "CS291", Name: "OS Lab A", Type: "Lab", WeeklyPeriods: 4, Faculty: []string{"Bob"}},
		Requirement{Code: "CS291", Name: "OS Lab B", Type: "Lab", WeeklyPeriods: 2, Faculty: []string{"Eve"}},
	)
	lab := s.byCode["CS291"]
	require.Len(t, lab.members, 2)

	assert.Equal(t, 4, s.blockNeed(lab))
	assert.Equal(t, []int{0}, s.blockMembers(lab, 4))
	assert.Equal(t, []int{0, 1}, s.blockMembers(lab, 2))

	s.reg.Faculty.Reserve(0, 1, "eve")
	assert.True(t, s.canPlaceBlock(lab, 0, 1, 4, false), "Eve is not part of a four period block")
	s.commitBlock(lab, 0, 1, 4)

	assert.Equal(t, 0, s.counter.Weekly(0))
	assert.Equal(t, 2, s.counter.Weekly(1))
	assert.Len(t, s.grid.At(0, 1).Entries, 1)
	assert.Equal(t, 1, s.reg.Faculty.Count(0, 1, "eve"))
	assert.Equal(t, 2, s.blockNeed(lab))
}

func TestPlaceBlocksKeepsUnevenRecordsConserved(t *testing.T) {
	for seed := int64(0); seed < 20; seed++ {
		reqs := []Requirement{
			{Code: "CS291", Name: "OS Lab A", Type: "Lab", WeeklyPeriods: 4, Faculty: []string{"Bob"}},
			{Code: "CS291", Name: "OS Lab B", Type: "Lab", WeeklyPeriods: 2, Faculty: []string{"Eve"}},
			{Code: "MA101", Name: "Calculus", Type: "Lecture", WeeklyPeriods: 3, Faculty: []string{"Alice"}},
		}
		grid := generate(t, NewRegistry(), seed, Section{ID: "CSE-A"}, reqs...)
		assertConserved(t, grid, reqs)
		assertBlocksValid(t, grid, DefaultLunchSlot)
	}
}

func TestBlockDurationOverrideMatchesNormalizedCode(t *testing.T) {
	s := newTestState(t, Options{BlockDurations: map[string]int{" ec202 ": 2}},
		Requirement{Code: "EC202", Type: "Integrated", WeeklyPeriods: 6},
	)
	u := s.byCode["EC202"]

	assert.Equal(t, 2, s.blockPortion(u, u.members[0]))
	assert.Equal(t, []int{2}, s.durations(u, 3))
}

func TestDailyCapAllows(t *testing.T) {
	s := newTestState(t, Options{},
		Requirement{Code: "MA101", Name: "Calculus", WeeklyPeriods: 5, Faculty: []string{"Alice"}},
		Requirement{Code: "CS203", Name: "Operating Systems", WeeklyPeriods: 8, Faculty: []string{"Bob"}},
	)
	light, heavy := s.byCode["MA101"], s.byCode["CS203"]

	require.True(t, s.placeSingle(light, 0, 1))
	assert.False(t, s.dailyCapAllows(light, 0, 5))
	assert.True(t, s.dailyCapAllows(light, 1, 5))

	require.True(t, s.placeSingle(heavy, 0, 2))
	assert.False(t, s.dailyCapAllows(heavy, 0, 3), "both before lunch")
	assert.True(t, s.dailyCapAllows(heavy, 0, 5))
	require.True(t, s.placeSingle(heavy, 0, 5))
	assert.False(t, s.dailyCapAllows(heavy, 0, 6), "third period on one day")
}
