package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// LockedSlotRepository reads cells locked before generation.
type LockedSlotRepository struct {
	db *sqlx.DB
}

// NewLockedSlotRepository constructs the repository.
func NewLockedSlotRepository(db *sqlx.DB) *LockedSlotRepository {
	return &LockedSlotRepository{db: db}
}

// ListBySemester returns locked slots of a semester in section/day/slot order.
func (r *LockedSlotRepository) ListBySemester(ctx context.Context, semester string) ([]models.LockedSlot, error) {
	const query = `SELECT id, semester, section, code, day_of_week, slot_index, duration, created_at
FROM locked_slots WHERE semester = $1 ORDER BY section ASC, day_of_week ASC, slot_index ASC`
	var slots []models.LockedSlot
	if err := r.db.SelectContext(ctx, &slots, query, semester); err != nil {
		return nil, fmt.Errorf("list locked slots: %w", err)
	}
	return slots, nil
}
