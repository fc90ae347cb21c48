package timetable

// Options tunes the search. Zero values fall back to the defaults below.
type Options struct {
	// TeachingSlots is the number of teaching periods per day (K).
	TeachingSlots int
	// LunchSlot is the first afternoon slot; blocks may not straddle it.
	LunchSlot int
	// MaxAttempts bounds the orchestrator's restarts per semester.
	MaxAttempts int
	// RelaxAfter is the number of attempts run before phase 2 switches to relaxed mode.
	RelaxAfter int
	// BlockBudget bounds candidate probes per block subject.
	BlockBudget int
	// TheoryRounds bounds the deferred-retry rounds of the theory solver.
	TheoryRounds int
	// Seed is the base seed; attempt i uses Seed+i.
	Seed int64
	// BlockDurations forces the block length for specific subject codes. Keys are
	// matched through CodeKey.
	BlockDurations map[string]int
}

const (
	DefaultTeachingSlots = 7
	DefaultLunchSlot     = 4
	DefaultMaxAttempts   = 50
	DefaultRelaxAfter    = 10
	DefaultBlockBudget   = 800
	DefaultTheoryRounds  = 500
)

func (o Options) withDefaults() Options {
	if o.TeachingSlots <= 0 {
		o.TeachingSlots = DefaultTeachingSlots
	}
	if o.LunchSlot <= 0 || o.LunchSlot >= o.TeachingSlots {
		o.LunchSlot = DefaultLunchSlot
		if o.LunchSlot >= o.TeachingSlots {
			o.LunchSlot = o.TeachingSlots / 2
		}
	}
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = DefaultMaxAttempts
	}
	if o.RelaxAfter <= 0 {
		o.RelaxAfter = DefaultRelaxAfter
	}
	if o.BlockBudget <= 0 {
		o.BlockBudget = DefaultBlockBudget
	}
	if o.TheoryRounds <= 0 {
		o.TheoryRounds = DefaultTheoryRounds
	}
	if len(o.BlockDurations) > 0 {
		durations := make(map[string]int, len(o.BlockDurations))
		for code, d := range o.BlockDurations {
			durations[CodeKey(code)] = d
		}
		o.BlockDurations = durations
	}
	return o
}
