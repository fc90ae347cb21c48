package timetable

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/samber/lo"
	"go.uber.org/zap"
)

// SectionPlan is one section of the semester being generated.
type SectionPlan struct {
	Section      Section       `json:"section"`
	Requirements []Requirement `json:"requirements"`
}

// HistoricalGrid is a previously generated grid, read only.
type HistoricalGrid struct {
	Semester string `json:"semester"`
	Section  string `json:"section"`
	Grid     *Grid  `json:"grid"`
}

// SemesterInput is the orchestrator input for one semester.
type SemesterInput struct {
	Semester string           `json:"semester"`
	Sections []SectionPlan    `json:"sections"`
	History  []HistoricalGrid `json:"history,omitempty"`
}

// Attempt is the outcome of one restart.
// Phase and Section locate a failure and are zero on success.
type Attempt struct {
	Index   int              `json:"index"`
	Seed    int64            `json:"seed"`
	Relaxed bool             `json:"relaxed"`
	Phase   int              `json:"phase,omitempty"`
	Section string           `json:"section,omitempty"`
	Err     error            `json:"-"`
	Grids   map[string]*Grid `json:"-"`
}

// Failed reports whether the attempt did not produce a schedule.
func (a Attempt) Failed() bool { return a.Err != nil }

// Result is the accepted schedule of a semester together with the attempt log.
type Result struct {
	Semester string           `json:"semester"`
	Grids    map[string]*Grid `json:"grids"`
	Seed     int64            `json:"seed"`
	Attempts []Attempt        `json:"attempts"`
}

// Orchestrator runs the two-phase, multi-attempt generation of a semester.
type Orchestrator struct {
	opts   Options
	logger *zap.Logger
}

// NewOrchestrator builds an orchestrator; a nil logger disables logging.
func NewOrchestrator(opts Options, logger *zap.Logger) *Orchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Orchestrator{opts: opts.withDefaults(), logger: logger}
}

// Options returns the effective options.
func (o *Orchestrator) Options() Options { return o.opts }

// Generate runs attempts until one succeeds, the budget is exhausted or ctx is
// cancelled. The attempt log is returned even when generation fails.
func (o *Orchestrator) Generate(ctx context.Context, in SemesterInput) (*Result, error) {
	result := &Result{Semester: in.Semester}
	it := o.Attempts(in)
	var last Attempt
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		attempt, ok := it.Next()
		if !ok {
			break
		}
		last = attempt
		result.Attempts = append(result.Attempts, attempt)
		if !attempt.Failed() {
			result.Grids = attempt.Grids
			result.Seed = attempt.Seed
			o.logger.Info("timetable generated",
				zap.String("semester", in.Semester),
				zap.Int("attempts", len(result.Attempts)),
				zap.Int64("seed", attempt.Seed),
				zap.Int("sections", len(attempt.Grids)),
			)
			return result, nil
		}
	}
	o.logger.Info("timetable generation exhausted attempts",
		zap.String("semester", in.Semester),
		zap.Int("attempts", len(result.Attempts)),
		zap.Error(last.Err),
	)
	return result, fmt.Errorf("%w: semester %s after %d attempts: %w", ErrSemesterInfeasible, in.Semester, len(result.Attempts), last.Err)
}

// AttemptIterator yields one attempt per call to Next.
type AttemptIterator struct {
	o    *Orchestrator
	in   SemesterInput
	base *Registry
	next int
	done bool
}

// Attempts returns an iterator over the attempts of a semester. The base
// registry is seeded once from the grids of every other semester.
func (o *Orchestrator) Attempts(in SemesterInput) *AttemptIterator {
	base := NewRegistry()
	for _, h := range in.History {
		if h.Grid == nil || h.Semester == in.Semester {
			continue
		}
		base.ReserveGrid(h.Grid)
	}
	return &AttemptIterator{o: o, in: in, base: base}
}

// Next runs the next attempt. It returns false once an attempt succeeded or the
// attempt budget is spent.
func (it *AttemptIterator) Next() (Attempt, bool) {
	if it.done || it.next >= it.o.opts.MaxAttempts {
		return Attempt{}, false
	}
	attempt := it.o.run(it.in, it.base, it.next)
	it.next++
	if !attempt.Failed() {
		it.done = true
	} else {
		it.o.logger.Debug("timetable attempt failed",
			zap.String("semester", it.in.Semester),
			zap.Int("attempt", attempt.Index),
			zap.Int64("seed", attempt.Seed),
			zap.Int("phase", attempt.Phase),
			zap.String("section", attempt.Section),
			zap.Error(attempt.Err),
		)
	}
	return attempt, true
}

func (o *Orchestrator) run(in SemesterInput, base *Registry, index int) Attempt {
	seed := o.opts.Seed + int64(index)
	attempt := Attempt{Index: index, Seed: seed, Relaxed: index >= o.opts.RelaxAfter}
	rng := rand.New(rand.NewSource(seed))
	order := rng.Perm(len(in.Sections))

	// Phase 1: blocks only, sharing one registry across sections.
	reg := base.Clone()
	blocks := make(map[string]*Grid, len(in.Sections))
	for _, idx := range order {
		plan := in.Sections[idx]
		grid, err := GenerateSection(SectionInput{
			Section:      plan.Section,
			Requirements: blockRequirements(plan.Requirements),
			Mode:         ModeBlocksOnly,
		}, reg, rng, o.opts)
		if err != nil {
			attempt.Phase, attempt.Section, attempt.Err = 1, plan.Section.ID, err
			return attempt
		}
		blocks[plan.Section.ID] = grid
	}

	// Phase 2: everything, with phase 1 blocks locked in place.
	reg = base.Clone()
	labSlots := seedFromBlocks(reg, blocks)
	grids := make(map[string]*Grid, len(in.Sections))
	for _, idx := range order {
		plan := in.Sections[idx]
		grid, err := GenerateSection(SectionInput{
			Section:      plan.Section,
			Requirements: lockBlocks(plan.Requirements, blocks[plan.Section.ID]),
			LabSlots:     labSlots,
			Relaxed:      attempt.Relaxed,
			Mode:         ModeFull,
		}, reg, rng, o.opts)
		if err != nil {
			attempt.Phase, attempt.Section, attempt.Err = 2, plan.Section.ID, err
			return attempt
		}
		grids[plan.Section.ID] = grid
	}
	attempt.Grids = grids
	return attempt
}

// blockRequirements keeps the block subjects that have at least one faculty.
func blockRequirements(reqs []Requirement) []Requirement {
	return lo.Filter(reqs, func(req Requirement, _ int) bool {
		req = req.normalize()
		return req.Kind.IsBlock() && lo.SomeBy(req.Faculty, func(name string) bool {
			return strings.TrimSpace(name) != ""
		})
	})
}

// seedFromBlocks reserves every phase 1 block in reg and returns the cells used
// by labs anywhere in the semester, in day/slot order.
func seedFromBlocks(reg *Registry, blocks map[string]*Grid) []Cell {
	used := make(map[slotKey]bool)
	for _, grid := range blocks {
		reg.ReserveGrid(grid)
		for _, p := range grid.Blocks() {
			for _, entry := range p.Entries {
				reg.Labs.Mark(p.Day, entry.Code)
			}
			for slot := p.StartSlot; slot < p.StartSlot+p.Duration; slot++ {
				used[slotKey{p.Day, slot}] = true
			}
		}
	}
	cells := make([]Cell, 0, len(used))
	for key := range used {
		cells = append(cells, Cell{Day: key.day, Slot: key.slot})
	}
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Day != cells[j].Day {
			return cells[i].Day < cells[j].Day
		}
		return cells[i].Slot < cells[j].Slot
	})
	return cells
}

// lockBlocks copies reqs, replacing the locked slots of every subject that took
// part in phase 1 with the blocks it received there.
func lockBlocks(reqs []Requirement, blocks *Grid) []Requirement {
	out := make([]Requirement, len(reqs))
	copy(out, reqs)
	if blocks == nil {
		return out
	}
	placed := blocks.Blocks()
	scheduled := lo.Uniq(lo.FlatMap(placed, func(p *Placement, _ int) []string {
		return lo.Map(p.Entries, func(a Assignment, _ int) string { return entryKey(a) })
	}))
	for i := range out {
		key := entryKey(out[i].assignment())
		if !lo.Contains(scheduled, key) {
			continue
		}
		var fixed []FixedSlot
		for _, p := range placed {
			if p.has(out[i].assignment()) {
				fixed = append(fixed, FixedSlot{Day: p.Day, Slot: p.StartSlot, Duration: p.Duration})
			}
		}
		out[i].FixedSlots = fixed
	}
	return out
}
