package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/timetable"
)

var dayLabels = []string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat"}

type run struct {
	Result   *timetable.Result
	Err      error
	Rendered string
	Duration time.Duration
}

func main() {
	var (
		fixturePath string
		seed        int64
		attempts    int
		relaxAfter  int
		slots       int
		lunch       int
		repeat      int
		asJSON      bool
		verbose     bool
	)

	flag.StringVar(&fixturePath, "fixture", filepath.Join("scripts", "replay", "testdata", "semester.json"), "Path to JSON semester fixture")
	flag.Int64Var(&seed, "seed", 1, "Base seed; attempt i uses seed+i")
	flag.IntVar(&attempts, "attempts", timetable.DefaultMaxAttempts, "Maximum attempts")
	flag.IntVar(&relaxAfter, "relax-after", timetable.DefaultRelaxAfter, "Attempts before relaxed mode")
	flag.IntVar(&slots, "slots", timetable.DefaultTeachingSlots, "Teaching slots per day")
	flag.IntVar(&lunch, "lunch", timetable.DefaultLunchSlot, "First afternoon slot")
	flag.IntVar(&repeat, "repeat", 1, "Run the fixture this many times and require identical grids")
	flag.BoolVar(&asJSON, "json", false, "Print the result as JSON")
	flag.BoolVar(&verbose, "v", false, "Log generator progress")
	flag.Parse()

	in, err := loadFixture(fixturePath)
	if err != nil {
		log.Fatalf("failed to load fixture: %v", err)
	}

	logr := zap.NewNop()
	if verbose {
		if logr, err = zap.NewDevelopment(); err != nil {
			log.Fatalf("failed to init logger: %v", err)
		}
		defer logr.Sync() //nolint:errcheck
	}

	opts := timetable.Options{
		TeachingSlots: slots,
		LunchSlot:     lunch,
		MaxAttempts:   attempts,
		RelaxAfter:    relaxAfter,
		Seed:          seed,
	}
	if repeat < 1 {
		repeat = 1
	}

	runs := make([]run, 0, repeat)
	for i := 0; i < repeat; i++ {
		runs = append(runs, replay(in, opts, logr))
	}

	first := runs[0]
	if asJSON {
		if err := json.NewEncoder(os.Stdout).Encode(first.Result); err != nil {
			log.Fatalf("failed to encode result: %v", err)
		}
	} else {
		printReport(os.Stdout, in.Semester, first)
	}

	diverged := 0
	for i, r := range runs[1:] {
		if r.Rendered != first.Rendered {
			diverged++
			fmt.Fprintf(os.Stderr, "run %d diverged from run 1\n", i+2)
		}
	}
	if repeat > 1 {
		fmt.Fprintf(os.Stderr, "Runs: %d, diverged: %d\n", repeat, diverged)
	}
	if first.Err != nil || diverged > 0 {
		os.Exit(1)
	}
}

func loadFixture(path string) (timetable.SemesterInput, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return timetable.SemesterInput{}, err
	}
	var in timetable.SemesterInput
	if err := json.Unmarshal(data, &in); err != nil {
		return timetable.SemesterInput{}, err
	}
	if len(in.Sections) == 0 {
		return timetable.SemesterInput{}, fmt.Errorf("no sections defined in %s", path)
	}
	for i := range in.Sections {
		section := &in.Sections[i].Section
		if section.Index == 0 {
			section.Index = timetable.SectionIndex(section.ID)
		}
	}
	return in, nil
}

func replay(in timetable.SemesterInput, opts timetable.Options, logr *zap.Logger) run {
	start := time.Now()
	result, err := timetable.NewOrchestrator(opts, logr).Generate(context.Background(), in)
	r := run{Result: result, Err: err, Duration: time.Since(start)}
	if result != nil {
		r.Rendered = renderGrids(result.Grids)
	}
	return r
}

func renderGrids(grids map[string]*timetable.Grid) string {
	sections := make([]string, 0, len(grids))
	for section := range grids {
		sections = append(sections, section)
	}
	sort.Strings(sections)

	var b strings.Builder
	for _, section := range sections {
		g := grids[section]
		fmt.Fprintf(&b, "%s\n", section)
		for day := 0; day < g.Days; day++ {
			cells := make([]string, g.Slots)
			for slot := 0; slot < g.Slots; slot++ {
				cells[slot] = cellLabel(g.At(day, slot))
			}
			fmt.Fprintf(&b, "  %s | %s\n", dayLabels[day], strings.Join(cells, " | "))
		}
	}
	return b.String()
}

func cellLabel(p *timetable.Placement) string {
	if p == nil {
		return "-"
	}
	label := p.Codes()
	if p.IsBlock() {
		label += fmt.Sprintf("[%d]", p.Duration)
	}
	if p.IsFixed {
		label += "*"
	}
	return label
}

func printReport(w io.Writer, semester string, r run) {
	fmt.Fprintln(w, "Timetable Replay Report")
	fmt.Fprintln(w, "=======================")
	fmt.Fprintf(w, "Semester: %s\n", semester)
	if r.Result != nil {
		for _, a := range r.Result.Attempts {
			status := "OK"
			if a.Failed() {
				status = fmt.Sprintf("FAIL phase %d %s: %v", a.Phase, a.Section, a.Err)
			}
			fmt.Fprintf(w, "  attempt %d seed %d relaxed %t: %s\n", a.Index, a.Seed, a.Relaxed, status)
		}
	}
	if r.Err != nil {
		fmt.Fprintf(w, "Error: %v (%s)\n", r.Err, r.Duration)
		return
	}
	fmt.Fprintf(w, "Accepted seed %d after %d attempts (%s)\n\n", r.Result.Seed, len(r.Result.Attempts), r.Duration)
	fmt.Fprint(w, r.Rendered)
}
