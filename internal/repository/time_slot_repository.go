package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TimeSlotRepository reads the daily bell schedule.
type TimeSlotRepository struct {
	db *sqlx.DB
}

// NewTimeSlotRepository constructs the repository.
func NewTimeSlotRepository(db *sqlx.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

// ListTeaching returns teaching periods in order; break rows are skipped.
func (r *TimeSlotRepository) ListTeaching(ctx context.Context) ([]models.TimeSlot, error) {
	const query = `SELECT id, position, label, start_time, end_time, kind FROM time_slots WHERE kind = $1 ORDER BY position ASC`
	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query, models.TimeSlotKindTeaching); err != nil {
		return nil, fmt.Errorf("list teaching time slots: %w", err)
	}
	return slots, nil
}
