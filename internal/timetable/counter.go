package timetable

// Counter tracks the periods each requirement record still needs.
type Counter struct {
	reqs        []Requirement
	weekly      []int
	saturday    []int
	totalByCode map[string]int
}

// NewCounter initialises remaining counts from the configured periods.
func NewCounter(reqs []Requirement) *Counter {
	c := &Counter{
		reqs:        reqs,
		weekly:      make([]int, len(reqs)),
		saturday:    make([]int, len(reqs)),
		totalByCode: make(map[string]int),
	}
	for i, req := range reqs {
		c.weekly[i] = nonNegative(req.WeeklyPeriods)
		c.saturday[i] = nonNegative(req.SaturdayPeriods)
		c.totalByCode[req.Code] += req.TotalRequired()
	}
	return c
}

// Weekly returns the remaining weekday periods of record i.
func (c *Counter) Weekly(i int) int { return c.weekly[i] }

// Saturday returns the remaining Saturday periods of record i.
func (c *Counter) Saturday(i int) int { return c.saturday[i] }

// Remaining returns the pool matching the day: Saturday for day 5, weekly otherwise.
func (c *Counter) Remaining(i, day int) int {
	if day == Saturday {
		return c.saturday[i]
	}
	return c.weekly[i]
}

// Consume decrements the pool matching the day by n, never below zero.
func (c *Counter) Consume(i, day, n int) {
	if day == Saturday {
		c.saturday[i] = nonNegative(c.saturday[i] - n)
		return
	}
	c.weekly[i] = nonNegative(c.weekly[i] - n)
}

// TotalByCode sums TotalRequired over every record sharing the code.
func (c *Counter) TotalByCode(code string) int {
	return c.totalByCode[code]
}

// Recount resets record i's remaining periods from what the grid actually holds.
// Used after displacement, where incremental bookkeeping can double count.
func (c *Counter) Recount(i int, g *Grid) {
	a := c.reqs[i].assignment()
	c.weekly[i] = nonNegative(c.reqs[i].WeeklyPeriods - g.Count(a, false))
	c.saturday[i] = nonNegative(c.reqs[i].SaturdayPeriods - g.Count(a, true))
}
