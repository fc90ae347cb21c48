package timetable

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFacultyReservationsRefCounted(t *testing.T) {
	f := NewFacultyReservations()
	f.Reserve(0, 1, "Alice ", "bob")
	f.Reserve(0, 1, "alice")

	assert.Equal(t, 2, f.Count(0, 1, "ALICE"))
	assert.True(t, f.Busy(0, 1, "Bob"))
	assert.False(t, f.Busy(0, 2, "alice"))

	f.Release(0, 1, "alice")
	assert.True(t, f.Busy(0, 1, "alice"), "second reservation must survive")
	f.Release(0, 1, "alice", "bob")
	assert.False(t, f.Busy(0, 1, "alice", "bob"))
}

func TestFacultyReservationsBusyExcept(t *testing.T) {
	f := NewFacultyReservations()
	f.Reserve(2, 3, "alice")

	assert.False(t, f.BusyExcept(2, 3, []string{"Alice"}, []string{"alice"}))
	assert.True(t, f.BusyExcept(2, 3, []string{"Alice"}, nil))

	f.Reserve(2, 3, "alice")
	assert.True(t, f.BusyExcept(2, 3, []string{"Alice"}, []string{"alice"}))
}

func TestRegistryCloneIsIndependent(t *testing.T) {
	reg := NewRegistry()
	reg.Faculty.Reserve(1, 1, "alice")
	reg.Labs.Mark(1, "PHY")

	cp := reg.Clone()
	cp.Faculty.Reserve(1, 2, "alice")
	cp.Labs.Mark(2, "PHY")
	cp.Faculty.Release(1, 1, "alice")

	assert.True(t, reg.Faculty.Busy(1, 1, "alice"))
	assert.False(t, reg.Faculty.Busy(1, 2, "alice"))
	assert.False(t, reg.Labs.Used(2, "PHY"))
	assert.True(t, cp.Labs.Used(1, "PHY"))
}

func TestRegistryReserveGrid(t *testing.T) {
	g := NewGrid(7)
	g.set(3, 2, &Placement{Entries: []Assignment{{Code: "CS1", Faculty: []string{"Alice"}}, {Code: "CS1", Faculty: []string{"Bob"}}}, Day: 3, StartSlot: 2, Duration: 1})

	reg := NewRegistry()
	reg.ReserveGrid(g)
	assert.True(t, reg.Faculty.Busy(3, 2, "alice"))
	assert.True(t, reg.Faculty.Busy(3, 2, "bob"))
	assert.False(t, reg.Faculty.Busy(3, 3, "alice"))
}

func TestCounter(t *testing.T) {
	reqs := []Requirement{
		{Code: "EL3", Name: "Cloud", WeeklyPeriods: 3},
		{Code: "EL3", Name: "Mining", WeeklyPeriods: 3},
		{Code: "ENG", Name: "English", WeeklyPeriods: 2, SaturdayPeriods: 1},
	}
	c := NewCounter(reqs)
	assert.Equal(t, 6, c.TotalByCode("EL3"))
	assert.Equal(t, 3, c.TotalByCode("ENG"))

	c.Consume(2, Saturday, 1)
	assert.Equal(t, 0, c.Saturday(2))
	assert.Equal(t, 2, c.Weekly(2))

	c.Consume(2, 0, 5)
	assert.Equal(t, 0, c.Remaining(2, 0), "counter never goes negative")

	g := NewGrid(7)
	g.set(0, 0, &Placement{Entries: []Assignment{reqs[2].assignment()}, Duration: 1})
	c.Recount(2, g)
	assert.Equal(t, 1, c.Weekly(2))
	assert.Equal(t, 1, c.Saturday(2))
}

func TestGridHelpers(t *testing.T) {
	g := NewGrid(7)
	require.Equal(t, DaysPerWeek, g.Days)
	assert.Nil(t, g.At(6, 0))
	assert.Nil(t, g.At(0, 7))

	merged := &Placement{
		Entries: []Assignment{{Code: "CS301", Name: "Cloud"}, {Code: "CS302", Name: "Mining"}, {Code: "CS301", Name: "Cloud B"}},
		Kind:    KindLab, Day: 1, StartSlot: 1, Duration: 2, IsBlockStart: true,
	}
	g.set(1, 1, merged)
	tail := merged.clone()
	tail.IsBlockStart = false
	g.set(1, 2, tail)

	assert.Equal(t, "CS301/CS302", merged.Codes())
	assert.Equal(t, "Cloud/Mining/Cloud B", merged.Names())
	assert.Equal(t, []int{1, 2}, g.CodeSlotsOnDay("CS302", 1))
	require.Len(t, g.Blocks(), 1)
	assert.Equal(t, 1, g.Blocks()[0].StartSlot)

	cp := g.Clone()
	cp.Cells[1][1].Entries[0].Code = "X"
	assert.Equal(t, "CS301", g.Cells[1][1].Entries[0].Code)
}
