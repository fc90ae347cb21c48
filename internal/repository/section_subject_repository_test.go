package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

func TestSectionSubjectRepositoryListBySemester(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionSubjectRepository(db)

	rows := sqlmock.NewRows([]string{"id", "semester", "section", "code", "name", "type", "weekly_periods", "saturday_periods", "faculty", "created_at", "updated_at"}).
		AddRow("sub-1", "S3", "CSE-A", "CS291", "Data Structures Lab", "LAB", 4, 0, "{\"Dr. Rao\",\"Ms. Pillai\"}", time.Now(), time.Now()).
		AddRow("sub-2", "S3", "CSE-A", "MA201", "Maths", "LECTURE", 4, 1, "{}", time.Now(), time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM section_subjects WHERE semester = $1 ORDER BY section ASC, code ASC, id ASC")).
		WithArgs("S3").
		WillReturnRows(rows)

	subjects, err := repo.ListBySemester(context.Background(), "S3")
	require.NoError(t, err)
	require.Len(t, subjects, 2)
	assert.Equal(t, pq.StringArray{"Dr. Rao", "Ms. Pillai"}, subjects[0].Faculty)
	assert.Equal(t, 1, subjects[1].SaturdayPeriods)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSectionSubjectRepositoryListSemesters(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewSectionSubjectRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT DISTINCT semester FROM section_subjects ORDER BY semester ASC")).
		WillReturnRows(sqlmock.NewRows([]string{"semester"}).AddRow("S1").AddRow("S3"))

	semesters, err := repo.ListSemesters(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"S1", "S3"}, semesters)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLockedSlotRepositoryListBySemester(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewLockedSlotRepository(db)

	rows := sqlmock.NewRows([]string{"id", "semester", "section", "code", "day_of_week", "slot_index", "duration", "created_at"}).
		AddRow("lock-1", "S3", "CSE-A", "CS291", 2, 1, 3, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM locked_slots WHERE semester = $1 ORDER BY section ASC, day_of_week ASC, slot_index ASC")).
		WithArgs("S3").
		WillReturnRows(rows)

	slots, err := repo.ListBySemester(context.Background(), "S3")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, 3, slots[0].Duration)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimeSlotRepositoryListTeaching(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimeSlotRepository(db)

	rows := sqlmock.NewRows([]string{"id", "position", "label", "start_time", "end_time", "kind"}).
		AddRow("ts-1", 1, "P1", "08:30", "09:20", "TEACHING").
		AddRow("ts-2", 2, "P2", "09:20", "10:10", "TEACHING")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, position, label, start_time, end_time, kind FROM time_slots WHERE kind = $1 ORDER BY position ASC")).
		WithArgs(string(models.TimeSlotKindTeaching)).
		WillReturnRows(rows)

	slots, err := repo.ListTeaching(context.Background())
	require.NoError(t, err)
	assert.Len(t, slots, 2)
	assert.Equal(t, models.TimeSlotKindTeaching, slots[0].Kind)
	assert.NoError(t, mock.ExpectationsWereMet())
}
