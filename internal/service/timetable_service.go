package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/repository"
	"github.com/noah-isme/sma-timetable-api/internal/timetable"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

const generationAlgorithm = "two_phase_restart_v1"

type sectionSubjectReader interface {
	ListBySemester(ctx context.Context, semester string) ([]models.SectionSubject, error)
	ListSemesters(ctx context.Context) ([]string, error)
}

type lockedSlotReader interface {
	ListBySemester(ctx context.Context, semester string) ([]models.LockedSlot, error)
}

type timeSlotReader interface {
	ListTeaching(ctx context.Context) ([]models.TimeSlot, error)
}

type timetableRepository interface {
	CreateVersioned(ctx context.Context, exec sqlx.ExtContext, timetable *models.Timetable) error
	FindByID(ctx context.Context, id string) (*models.Timetable, error)
	LatestBySemester(ctx context.Context, semester string) (*models.Timetable, error)
	ListPublishedExcept(ctx context.Context, semester string) ([]models.Timetable, error)
	UpdateStatus(ctx context.Context, exec sqlx.ExtContext, id string, status models.TimetableStatus, meta types.JSONText) error
	ArchivePublished(ctx context.Context, exec sqlx.ExtContext, semester, keepID string) (int64, error)
}

type timetableSlotRepository interface {
	InsertBatch(ctx context.Context, exec sqlx.ExtContext, slots []models.TimetableSlot) error
	ListByTimetable(ctx context.Context, timetableID string) ([]models.TimetableSlot, error)
	ListByTimetables(ctx context.Context, timetableIDs []string) ([]models.TimetableSlot, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type timetableCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type generationMetrics interface {
	ObserveGeneration(outcome string, attempts int, duration time.Duration)
}

// semesterGuard serialises generations of one semester.
type semesterGuard interface {
	Acquire(semester, owner string) bool
	Release(semester, owner string)
}

// TimetableServiceConfig governs generation behaviour.
type TimetableServiceConfig struct {
	Options  timetable.Options
	CacheTTL time.Duration
}

// TimetableService loads semester inputs, runs the generator and stores versions.
type TimetableService struct {
	subjects   sectionSubjectReader
	locks      lockedSlotReader
	timeSlots  timeSlotReader
	timetables timetableRepository
	slots      timetableSlotRepository
	tx         txProvider
	cache      timetableCache
	metrics    generationMetrics
	guard      semesterGuard
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        TimetableServiceConfig
	csv        *export.CSVExporter
	pdf        *export.PDFExporter
	now        func() time.Time
}

// NewTimetableService wires timetable dependencies.
func NewTimetableService(
	subjects sectionSubjectReader,
	locks lockedSlotReader,
	timeSlots timeSlotReader,
	timetables timetableRepository,
	slots timetableSlotRepository,
	tx txProvider,
	cache timetableCache,
	metrics generationMetrics,
	guard semesterGuard,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 10 * time.Minute
	}
	return &TimetableService{
		subjects:   subjects,
		locks:      locks,
		timeSlots:  timeSlots,
		timetables: timetables,
		slots:      slots,
		tx:         tx,
		cache:      cache,
		metrics:    metrics,
		guard:      guard,
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		now:        time.Now,
	}
}

// Validate checks a generation request.
func (s *TimetableService) Validate(req dto.GenerateTimetableRequest) error {
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable generation payload")
	}
	return nil
}

// Generate runs a generation synchronously and stores the result as a draft.
func (s *TimetableService) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	if err := s.Validate(req); err != nil {
		return nil, err
	}
	if s.guard != nil {
		owner := "sync:" + req.Semester
		if !s.guard.Acquire(req.Semester, owner) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a generation for this semester is already running")
		}
		defer s.guard.Release(req.Semester, owner)
	}
	return s.Run(ctx, req)
}

// Run generates without taking the semester guard; callers hold it.
func (s *TimetableService) Run(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error) {
	labels, err := s.loadSlotLabels(ctx)
	if err != nil {
		return nil, err
	}
	input, err := s.loadInput(ctx, req, len(labels))
	if err != nil {
		return nil, err
	}

	opts := s.cfg.Options
	opts.TeachingSlots = len(labels)
	if req.MaxAttempts > 0 {
		opts.MaxAttempts = req.MaxAttempts
	}
	if req.RelaxAfter > 0 {
		opts.RelaxAfter = req.RelaxAfter
	}
	switch {
	case req.Seed != nil:
		opts.Seed = *req.Seed
	case opts.Seed == 0:
		opts.Seed = s.now().UnixNano()
	}

	start := s.now()
	result, genErr := timetable.NewOrchestrator(opts, s.logger).Generate(ctx, input)
	elapsed := s.now().Sub(start)
	attempts := 0
	if result != nil {
		attempts = len(result.Attempts)
	}

	if genErr != nil {
		switch {
		case errors.Is(genErr, context.Canceled), errors.Is(genErr, context.DeadlineExceeded):
			s.observe("cancelled", attempts, elapsed)
			return nil, genErr
		case errors.Is(genErr, timetable.ErrSemesterInfeasible):
			s.observe("infeasible", attempts, elapsed)
			s.logger.Warn("timetable infeasible",
				zap.String("semester", req.Semester),
				zap.Int("attempts", attempts),
				zap.Int64("base_seed", opts.Seed),
				zap.Error(genErr),
			)
			return nil, appErrors.Wrap(genErr, appErrors.ErrScheduleInfeasible.Code, appErrors.ErrScheduleInfeasible.Status, appErrors.ErrScheduleInfeasible.Message)
		default:
			s.observe("error", attempts, elapsed)
			return nil, appErrors.Wrap(genErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "timetable generation failed")
		}
	}
	s.observe("success", attempts, elapsed)

	summaries := attemptSummaries(result.Attempts)
	record, err := s.persist(ctx, req, result, timetableMeta{
		Algorithm:  generationAlgorithm,
		Slots:      len(labels),
		SlotLabels: labels,
		Sections:   sortedSections(result.Grids),
		Attempts:   summaries,
		DurationMs: elapsed.Milliseconds(),
		CreatedBy:  req.CreatedBy,
	})
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, req.Semester)

	return &dto.GenerateTimetableResponse{
		TimetableID: record.ID,
		Semester:    record.Semester,
		Version:     record.Version,
		Status:      string(record.Status),
		Seed:        result.Seed,
		SlotLabels:  labels,
		Sections:    sectionViews(result.Grids),
		Attempts:    summaries,
		DurationMs:  elapsed.Milliseconds(),
	}, nil
}

func (s *TimetableService) observe(outcome string, attempts int, elapsed time.Duration) {
	if s.metrics != nil {
		s.metrics.ObserveGeneration(outcome, attempts, elapsed)
	}
}

func (s *TimetableService) loadSlotLabels(ctx context.Context) ([]string, error) {
	rows, err := s.timeSlots.ListTeaching(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slots")
	}
	count := len(rows)
	if count == 0 {
		count = s.cfg.Options.TeachingSlots
		if count <= 0 {
			count = timetable.DefaultTeachingSlots
		}
	}
	labels := make([]string, 0, len(rows))
	for _, row := range rows {
		labels = append(labels, row.Label)
	}
	return slotLabels(labels, count), nil
}

func (s *TimetableService) loadInput(ctx context.Context, req dto.GenerateTimetableRequest, slots int) (timetable.SemesterInput, error) {
	subjects, err := s.subjects.ListBySemester(ctx, req.Semester)
	if err != nil {
		return timetable.SemesterInput{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load section subjects")
	}
	if len(subjects) == 0 {
		return timetable.SemesterInput{}, appErrors.Clone(appErrors.ErrNotFound, "no subject records for semester "+req.Semester)
	}
	locks, err := s.locks.ListBySemester(ctx, req.Semester)
	if err != nil {
		return timetable.SemesterInput{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load locked slots")
	}
	input, err := buildSemesterInput(req.Semester, subjects, locks, req.Sections)
	if err != nil {
		return timetable.SemesterInput{}, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, err.Error())
	}

	published, err := s.timetables.ListPublishedExcept(ctx, req.Semester)
	if err != nil {
		return timetable.SemesterInput{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load published timetables")
	}
	if len(published) > 0 {
		ids := make([]string, 0, len(published))
		for _, tt := range published {
			ids = append(ids, tt.ID)
		}
		rows, err := s.slots.ListByTimetables(ctx, ids)
		if err != nil {
			return timetable.SemesterInput{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load historical slots")
		}
		input.History = buildHistory(published, rows, slots)
	}
	return input, nil
}

func (s *TimetableService) persist(ctx context.Context, req dto.GenerateTimetableRequest, result *timetable.Result, meta timetableMeta) (record *models.Timetable, err error) {
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}
	metaBytes, marshalErr := json.Marshal(meta)
	if marshalErr != nil {
		return nil, appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode timetable metadata")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	record = &models.Timetable{
		Semester: req.Semester,
		Status:   models.TimetableStatusDraft,
		Seed:     result.Seed,
		Attempts: len(result.Attempts),
		Meta:     types.JSONText(metaBytes),
	}
	if err = s.timetables.CreateVersioned(ctx, tx, record); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create timetable")
		return nil, err
	}

	var rows []models.TimetableSlot
	for _, section := range meta.Sections {
		rows = append(rows, gridToSlots(record.ID, section, result.Grids[section])...)
	}
	if err = s.slots.InsertBatch(ctx, tx, rows); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable slots")
		return nil, err
	}

	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
		return nil, err
	}
	return record, nil
}

// Semesters lists every semester that has subject records.
func (s *TimetableService) Semesters(ctx context.Context) ([]string, error) {
	semesters, err := s.subjects.ListSemesters(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list semesters")
	}
	if semesters == nil {
		semesters = []string{}
	}
	return semesters, nil
}

// GetSemester returns the latest non-archived version of a semester.
func (s *TimetableService) GetSemester(ctx context.Context, semester string) (*dto.SemesterTimetableResponse, error) {
	semester = strings.TrimSpace(semester)
	if semester == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "semester is required")
	}
	key := repository.SemesterCacheKey(semester)
	if s.cache != nil {
		var cached dto.SemesterTimetableResponse
		if hit, _ := s.cache.Get(ctx, key, &cached); hit {
			return &cached, nil
		}
	}

	record, err := s.timetables.LatestBySemester(ctx, semester)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "no timetable generated for semester "+semester)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	resp, err := s.view(ctx, record)
	if err != nil {
		return nil, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, resp, s.cfg.CacheTTL)
	}
	return resp, nil
}

func (s *TimetableService) view(ctx context.Context, record *models.Timetable) (*dto.SemesterTimetableResponse, error) {
	rows, err := s.slots.ListByTimetable(ctx, record.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable slots")
	}
	meta := decodeMeta(record.Meta)
	slots := meta.Slots
	if slots <= 0 {
		slots = len(meta.SlotLabels)
	}
	for _, row := range rows {
		if row.SlotIndex >= slots {
			slots = row.SlotIndex + 1
		}
	}
	return &dto.SemesterTimetableResponse{
		Timetable:  *record,
		SlotLabels: slotLabels(meta.SlotLabels, slots),
		Sections:   sectionViews(slotsToGrids(rows, slots)),
		CachedAt:   s.now().UTC(),
	}, nil
}

// Publish promotes a draft version. Other published versions of the semester are
// archived so later semesters are seeded from exactly one version.
func (s *TimetableService) Publish(ctx context.Context, id string) (result *models.Timetable, err error) {
	record, err := s.timetables.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}
	switch record.Status {
	case models.TimetableStatusPublished:
		return record, nil
	case models.TimetableStatusArchived:
		return nil, appErrors.Clone(appErrors.ErrConflict, "archived timetables cannot be published")
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	archived, err := s.timetables.ArchivePublished(ctx, tx, record.Semester, record.ID)
	if err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to archive previous timetable")
		return nil, err
	}
	if err = s.timetables.UpdateStatus(ctx, tx, record.ID, models.TimetableStatusPublished, nil); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to publish timetable")
		return nil, err
	}
	if err = tx.Commit(); err != nil {
		err = appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit publish transaction")
		return nil, err
	}

	s.invalidate(ctx, record.Semester)
	s.logger.Info("timetable published",
		zap.String("timetable_id", record.ID),
		zap.String("semester", record.Semester),
		zap.Int("version", record.Version),
		zap.Int64("archived", archived),
	)
	record.Status = models.TimetableStatusPublished
	return record, nil
}

// Export renders one section of the latest version of a semester.
func (s *TimetableService) Export(ctx context.Context, semester, section string, query dto.ExportQuery) (*dto.ExportFile, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export format")
	}
	view, err := s.GetSemester(ctx, semester)
	if err != nil {
		return nil, err
	}
	var grid *dto.SectionGrid
	for i := range view.Sections {
		if view.Sections[i].Section == section {
			grid = &view.Sections[i]
			break
		}
	}
	if grid == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "section not found in timetable")
	}

	title := fmt.Sprintf("%s %s v%d", view.Timetable.Semester, section, view.Timetable.Version)
	data := exportDataset(title, *grid, view.SlotLabels)
	base := fmt.Sprintf("timetable-%s-%s", view.Timetable.Semester, section)

	switch query.Format {
	case "pdf":
		body, err := s.pdf.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &dto.ExportFile{Filename: base + ".pdf", ContentType: "application/pdf", Body: body}, nil
	default:
		body, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &dto.ExportFile{Filename: base + ".csv", ContentType: "text/csv", Body: body}, nil
	}
}

func (s *TimetableService) invalidate(ctx context.Context, semester string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, repository.SemesterCacheKey(semester)); err != nil {
		s.logger.Warn("failed to invalidate timetable cache", zap.String("semester", semester), zap.Error(err))
	}
}
