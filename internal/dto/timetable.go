package dto

import (
	"time"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// GenerateTimetableRequest starts a generation for one semester.
type GenerateTimetableRequest struct {
	Semester    string `json:"semester" validate:"required,max=64"`
	Seed        *int64 `json:"seed"`
	MaxAttempts int    `json:"maxAttempts" validate:"omitempty,min=1,max=500"`
	RelaxAfter  int    `json:"relaxAfter" validate:"omitempty,min=1,max=500"`
	// Sections restricts generation to a subset; empty means every section.
	Sections  []string `json:"sections" validate:"omitempty,dive,required"`
	CreatedBy string   `json:"-"`
}

// AttemptSummary reports one restart of the generator.
type AttemptSummary struct {
	Index   int    `json:"index"`
	Seed    int64  `json:"seed"`
	Relaxed bool   `json:"relaxed"`
	Phase   int    `json:"phase,omitempty"`
	Section string `json:"section,omitempty"`
	Error   string `json:"error,omitempty"`
}

// CellEntry is one subject inside a cell.
type CellEntry struct {
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Faculty []string `json:"faculty"`
}

// CellView renders one occupied cell. Empty cells are null.
type CellView struct {
	Codes        string      `json:"codes"`
	Kind         string      `json:"kind"`
	StartSlot    int         `json:"startSlot"`
	Duration     int         `json:"duration"`
	IsBlockStart bool        `json:"isBlockStart"`
	IsFixed      bool        `json:"isFixed"`
	Entries      []CellEntry `json:"entries"`
}

// DayRow is one day of a section grid.
type DayRow struct {
	Day   int         `json:"day"`
	Label string      `json:"label"`
	Cells []*CellView `json:"cells"`
}

// SectionGrid is the weekly grid of one section.
type SectionGrid struct {
	Section string   `json:"section"`
	Days    []DayRow `json:"days"`
}

// GenerateTimetableResponse returns a persisted draft and how it was found.
type GenerateTimetableResponse struct {
	TimetableID string           `json:"timetableId"`
	Semester    string           `json:"semester"`
	Version     int              `json:"version"`
	Status      string           `json:"status"`
	Seed        int64            `json:"seed"`
	SlotLabels  []string         `json:"slotLabels"`
	Sections    []SectionGrid    `json:"sections"`
	Attempts    []AttemptSummary `json:"attempts"`
	DurationMs  int64            `json:"durationMs"`
}

// SemesterTimetableResponse is the latest stored version of a semester.
type SemesterTimetableResponse struct {
	Timetable  models.Timetable `json:"timetable"`
	SlotLabels []string         `json:"slotLabels"`
	Sections   []SectionGrid    `json:"sections"`
	CachedAt   time.Time        `json:"cachedAt"`
}

// ExportQuery selects the export format.
type ExportQuery struct {
	Format string `form:"format" json:"format" validate:"omitempty,oneof=csv pdf"`
}

// ExportFile is a rendered export ready to be served.
type ExportFile struct {
	Filename    string
	ContentType string
	Body        []byte
}
