package models

import (
	"time"

	"github.com/jmoiron/sqlx/types"
	"github.com/lib/pq"
)

// SectionSubject is one normalized subject record of a section. Records sharing a
// code inside a section are merged or co-taught.
type SectionSubject struct {
	ID              string         `db:"id" json:"id"`
	Semester        string         `db:"semester" json:"semester"`
	Section         string         `db:"section" json:"section"`
	Code            string         `db:"code" json:"code"`
	Name            string         `db:"name" json:"name"`
	Type            string         `db:"type" json:"type"`
	WeeklyPeriods   int            `db:"weekly_periods" json:"weekly_periods"`
	SaturdayPeriods int            `db:"saturday_periods" json:"saturday_periods"`
	Faculty         pq.StringArray `db:"faculty" json:"faculty"`
	CreatedAt       time.Time      `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time      `db:"updated_at" json:"updated_at"`
}

// LockedSlot pins a subject of a section to a cell before generation.
type LockedSlot struct {
	ID        string    `db:"id" json:"id"`
	Semester  string    `db:"semester" json:"semester"`
	Section   string    `db:"section" json:"section"`
	Code      string    `db:"code" json:"code"`
	DayOfWeek int       `db:"day_of_week" json:"day_of_week"`
	SlotIndex int       `db:"slot_index" json:"slot_index"`
	Duration  int       `db:"duration" json:"duration"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// TimeSlotKind separates teaching periods from breaks.
type TimeSlotKind string

const (
	TimeSlotKindTeaching TimeSlotKind = "TEACHING"
	TimeSlotKindBreak    TimeSlotKind = "BREAK"
)

// TimeSlot is one row of the daily bell schedule.
type TimeSlot struct {
	ID        string       `db:"id" json:"id"`
	Position  int          `db:"position" json:"position"`
	Label     string       `db:"label" json:"label"`
	StartTime string       `db:"start_time" json:"start_time"`
	EndTime   string       `db:"end_time" json:"end_time"`
	Kind      TimeSlotKind `db:"kind" json:"kind"`
}

// TimetableStatus represents lifecycle phases for generated timetables.
type TimetableStatus string

const (
	TimetableStatusDraft     TimetableStatus = "DRAFT"
	TimetableStatusPublished TimetableStatus = "PUBLISHED"
	TimetableStatusArchived  TimetableStatus = "ARCHIVED"
)

// Timetable is a versioned generation result for a whole semester.
type Timetable struct {
	ID        string          `db:"id" json:"id"`
	Semester  string          `db:"semester" json:"semester"`
	Version   int             `db:"version" json:"version"`
	Status    TimetableStatus `db:"status" json:"status"`
	Seed      int64           `db:"seed" json:"seed"`
	Attempts  int             `db:"attempts" json:"attempts"`
	Meta      types.JSONText  `db:"meta" json:"meta"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt time.Time       `db:"updated_at" json:"updated_at"`
}

// TimetableSlot stores one entry of one cell. Merged cells have several rows
// sharing section, day and slot, ordered by EntryOrder.
type TimetableSlot struct {
	ID           string         `db:"id" json:"id"`
	TimetableID  string         `db:"timetable_id" json:"timetable_id"`
	Section      string         `db:"section" json:"section"`
	DayOfWeek    int            `db:"day_of_week" json:"day_of_week"`
	SlotIndex    int            `db:"slot_index" json:"slot_index"`
	EntryOrder   int            `db:"entry_order" json:"entry_order"`
	Code         string         `db:"code" json:"code"`
	Name         string         `db:"name" json:"name"`
	Kind         string         `db:"kind" json:"kind"`
	Faculty      pq.StringArray `db:"faculty" json:"faculty"`
	StartSlot    int            `db:"start_slot" json:"start_slot"`
	Duration     int            `db:"duration" json:"duration"`
	IsBlockStart bool           `db:"is_block_start" json:"is_block_start"`
	IsFixed      bool           `db:"is_fixed" json:"is_fixed"`
	CreatedAt    time.Time      `db:"created_at" json:"created_at"`
}

// GenerationJobStatus captures background generation lifecycle states.
type GenerationJobStatus string

const (
	GenerationJobQueued    GenerationJobStatus = "QUEUED"
	GenerationJobRunning   GenerationJobStatus = "RUNNING"
	GenerationJobSucceeded GenerationJobStatus = "SUCCEEDED"
	GenerationJobFailed    GenerationJobStatus = "FAILED"
	GenerationJobCancelled GenerationJobStatus = "CANCELLED"
)

// Terminal reports whether the job will not change state anymore.
func (s GenerationJobStatus) Terminal() bool {
	switch s {
	case GenerationJobSucceeded, GenerationJobFailed, GenerationJobCancelled:
		return true
	}
	return false
}

// GenerationJob tracks a background semester generation. Jobs live in memory and
// in redis, never in postgres.
type GenerationJob struct {
	ID           string              `json:"id"`
	Semester     string              `json:"semester"`
	Status       GenerationJobStatus `json:"status"`
	Seed         *int64              `json:"seed,omitempty"`
	Attempts     int                 `json:"attempts"`
	TimetableID  *string             `json:"timetable_id,omitempty"`
	ErrorCode    *string             `json:"error_code,omitempty"`
	ErrorMessage *string             `json:"error_message,omitempty"`
	CreatedBy    string              `json:"created_by,omitempty"`
	CreatedAt    time.Time           `json:"created_at"`
	StartedAt    *time.Time          `json:"started_at,omitempty"`
	FinishedAt   *time.Time          `json:"finished_at,omitempty"`
}
