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

var timetableSlotRowColumns = []string{"id", "timetable_id", "section", "day_of_week", "slot_index", "entry_order", "code", "name", "kind", "faculty", "start_slot", "duration", "is_block_start", "is_fixed", "created_at"}

func TestTimetableSlotRepositoryInsertBatch(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_slots")).
		WithArgs(sqlmock.AnyArg(), "tt-1", "CSE-A", 0, 1, 0, "CS291", "Data Lab", "LAB", sqlmock.AnyArg(), 1, 3, true, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO timetable_slots")).
		WithArgs(sqlmock.AnyArg(), "tt-1", "CSE-A", 0, 2, 0, "CS291", "Data Lab", "LAB", sqlmock.AnyArg(), 1, 3, false, false, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))

	slots := []models.TimetableSlot{
		{TimetableID: "tt-1", Section: "CSE-A", DayOfWeek: 0, SlotIndex: 1, Code: "CS291", Name: "Data Lab", Kind: "LAB", Faculty: pq.StringArray{"Dr. Rao"}, StartSlot: 1, Duration: 3, IsBlockStart: true},
		{TimetableID: "tt-1", Section: "CSE-A", DayOfWeek: 0, SlotIndex: 2, Code: "CS291", Name: "Data Lab", Kind: "LAB", StartSlot: 1, Duration: 3},
	}
	require.NoError(t, repo.InsertBatch(context.Background(), nil, slots))
	assert.NotEmpty(t, slots[0].ID)
	assert.NotNil(t, slots[1].Faculty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryInsertBatchEmpty(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	require.NoError(t, repo.InsertBatch(context.Background(), nil, nil))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryListByTimetable(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	rows := sqlmock.NewRows(timetableSlotRowColumns).
		AddRow("s-1", "tt-1", "CSE-A", 0, 0, 0, "MA201", "Maths", "LECTURE", "{\"Dr. Iyer\"}", 0, 1, false, false, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_slots WHERE timetable_id = $1")).
		WithArgs("tt-1").
		WillReturnRows(rows)

	slots, err := repo.ListByTimetable(context.Background(), "tt-1")
	require.NoError(t, err)
	require.Len(t, slots, 1)
	assert.Equal(t, pq.StringArray{"Dr. Iyer"}, slots[0].Faculty)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableSlotRepositoryListByTimetables(t *testing.T) {
	db, mock, cleanup := newRepoMock(t)
	defer cleanup()
	repo := NewTimetableSlotRepository(db)

	empty, err := repo.ListByTimetables(context.Background(), nil)
	require.NoError(t, err)
	assert.Nil(t, empty)

	rows := sqlmock.NewRows(timetableSlotRowColumns).
		AddRow("s-1", "tt-1", "CSE-A", 1, 2, 0, "MA201", "Maths", "LECTURE", "{}", 2, 1, false, false, time.Now()).
		AddRow("s-2", "tt-2", "CSE-B", 1, 2, 0, "PH101", "Physics", "LECTURE", "{\"Dr. Sen\"}", 2, 1, false, false, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM timetable_slots WHERE timetable_id = ANY($1)")).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(rows)

	slots, err := repo.ListByTimetables(context.Background(), []string{"tt-1", "tt-2"})
	require.NoError(t, err)
	assert.Len(t, slots, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}
