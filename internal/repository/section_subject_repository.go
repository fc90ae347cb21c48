package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// SectionSubjectRepository reads normalized subject records written by the importer.
type SectionSubjectRepository struct {
	db *sqlx.DB
}

// NewSectionSubjectRepository constructs the repository.
func NewSectionSubjectRepository(db *sqlx.DB) *SectionSubjectRepository {
	return &SectionSubjectRepository{db: db}
}

// ListBySemester returns every record of a semester grouped by section.
func (r *SectionSubjectRepository) ListBySemester(ctx context.Context, semester string) ([]models.SectionSubject, error) {
	const query = `SELECT id, semester, section, code, name, type, weekly_periods, saturday_periods, faculty, created_at, updated_at
FROM section_subjects WHERE semester = $1 ORDER BY section ASC, code ASC, id ASC`
	var subjects []models.SectionSubject
	if err := r.db.SelectContext(ctx, &subjects, query, semester); err != nil {
		return nil, fmt.Errorf("list section subjects: %w", err)
	}
	return subjects, nil
}

// ListSemesters returns every semester that has subject records.
func (r *SectionSubjectRepository) ListSemesters(ctx context.Context) ([]string, error) {
	const query = `SELECT DISTINCT semester FROM section_subjects ORDER BY semester ASC`
	var semesters []string
	if err := r.db.SelectContext(ctx, &semesters, query); err != nil {
		return nil, fmt.Errorf("list semesters: %w", err)
	}
	return semesters, nil
}
