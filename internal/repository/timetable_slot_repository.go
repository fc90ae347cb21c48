package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

const timetableSlotColumns = `id, timetable_id, section, day_of_week, slot_index, entry_order, code, name, kind, faculty, start_slot, duration, is_block_start, is_fixed, created_at`

// TimetableSlotRepository manages the cell rows of timetables.
type TimetableSlotRepository struct {
	db *sqlx.DB
}

// NewTimetableSlotRepository builds repository.
func NewTimetableSlotRepository(db *sqlx.DB) *TimetableSlotRepository {
	return &TimetableSlotRepository{db: db}
}

func (r *TimetableSlotRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// InsertBatch stores the rows of a freshly generated timetable.
func (r *TimetableSlotRepository) InsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.TimetableSlot) error {
	if len(slots) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO timetable_slots (id, timetable_id, section, day_of_week, slot_index, entry_order, code, name, kind, faculty, start_slot, duration, is_block_start, is_fixed, created_at)
VALUES (:id, :timetable_id, :section, :day_of_week, :slot_index, :entry_order, :code, :name, :kind, :faculty, :start_slot, :duration, :is_block_start, :is_fixed, :created_at)`

	for i := range slots {
		slot := &slots[i]
		if slot.ID == "" {
			slot.ID = uuid.NewString()
		}
		if slot.CreatedAt.IsZero() {
			slot.CreatedAt = now
		}
		if slot.Faculty == nil {
			slot.Faculty = pq.StringArray{}
		}
		if _, err := sqlx.NamedExecContext(ctx, target, query, slot); err != nil {
			return fmt.Errorf("insert timetable slot: %w", err)
		}
	}
	return nil
}

// ListByTimetable returns the rows of one timetable in grid order.
func (r *TimetableSlotRepository) ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableSlot, error) {
	query := `SELECT ` + timetableSlotColumns + ` FROM timetable_slots WHERE timetable_id = $1
ORDER BY section ASC, day_of_week ASC, slot_index ASC, entry_order ASC`
	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query, timetableID); err != nil {
		return nil, fmt.Errorf("list timetable slots: %w", err)
	}
	return slots, nil
}

// ListByTimetables returns the rows of several timetables.
func (r *TimetableSlotRepository) ListByTimetables(ctx context.Context, timetableIDs []string) ([]models.TimetableSlot, error) {
	if len(timetableIDs) == 0 {
		return nil, nil
	}
	query := `SELECT ` + timetableSlotColumns + ` FROM timetable_slots WHERE timetable_id = ANY($1)
ORDER BY timetable_id ASC, section ASC, day_of_week ASC, slot_index ASC, entry_order ASC`
	var slots []models.TimetableSlot
	if err := r.db.SelectContext(ctx, &slots, query, pq.Array(timetableIDs)); err != nil {
		return nil, fmt.Errorf("list timetable slots by timetables: %w", err)
	}
	return slots, nil
}
