package timetable

import "errors"

// Failure kinds returned by the engine. Callers inspect them with errors.Is; the
// orchestrator treats the first two as retryable.
var (
	ErrBlockUnplaceable   = errors.New("block subject cannot meet its block requirement")
	ErrSectionInfeasible  = errors.New("section cannot be generated")
	ErrSemesterInfeasible = errors.New("no schedule produced; relax constraints (fewer fixed slots, more faculty availability) and retry")
)
