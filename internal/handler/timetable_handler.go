package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.GenerateTimetableResponse, error)
	Semesters(ctx context.Context) ([]string, error)
	GetSemester(ctx context.Context, semester string) (*dto.SemesterTimetableResponse, error)
	Publish(ctx context.Context, id string) (*models.Timetable, error)
	Export(ctx context.Context, semester, section string, query dto.ExportQuery) (*dto.ExportFile, error)
}

type generationJobs interface {
	Enqueue(ctx context.Context, req dto.GenerateTimetableRequest) (*models.GenerationJob, error)
	Status(ctx context.Context, id string) (*models.GenerationJob, error)
	Cancel(ctx context.Context, id string) (*models.GenerationJob, error)
}

// TimetableHandler exposes timetable generation endpoints.
type TimetableHandler struct {
	timetables timetableGenerator
	jobs       generationJobs
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(timetables timetableGenerator, jobs generationJobs) *TimetableHandler {
	return &TimetableHandler{timetables: timetables, jobs: jobs}
}

// Generate godoc
// @Summary Generate a semester timetable synchronously
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 201 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	req, ok := bindGenerateRequest(c)
	if !ok {
		return
	}
	result, err := h.timetables.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// EnqueueJob godoc
// @Summary Queue a background semester generation
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation payload"
// @Success 202 {object} response.Envelope
// @Router /timetables/jobs [post]
func (h *TimetableHandler) EnqueueJob(c *gin.Context) {
	req, ok := bindGenerateRequest(c)
	if !ok {
		return
	}
	job, err := h.jobs.Enqueue(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Accepted(c, job)
}

// JobStatus godoc
// @Summary Get a generation job
// @Tags Timetables
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/jobs/{id} [get]
func (h *TimetableHandler) JobStatus(c *gin.Context) {
	job, err := h.jobs.Status(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}

// CancelJob godoc
// @Summary Cancel a queued or running generation job
// @Tags Timetables
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/jobs/{id} [delete]
func (h *TimetableHandler) CancelJob(c *gin.Context) {
	job, err := h.jobs.Cancel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}

// Semesters godoc
// @Summary List semesters with subject records
// @Tags Timetables
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /timetables/semesters [get]
func (h *TimetableHandler) Semesters(c *gin.Context) {
	result, err := h.timetables.Semesters(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Semester godoc
// @Summary Get the latest timetable of a semester
// @Tags Timetables
// @Produce json
// @Param semester path string true "Semester"
// @Success 200 {object} response.Envelope
// @Router /timetables/semesters/{semester} [get]
func (h *TimetableHandler) Semester(c *gin.Context) {
	result, err := h.timetables.GetSemester(c.Request.Context(), c.Param("semester"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Publish godoc
// @Summary Publish a draft timetable
// @Tags Timetables
// @Produce json
// @Param id path string true "Timetable ID"
// @Success 200 {object} response.Envelope
// @Router /timetables/{id}/publish [post]
func (h *TimetableHandler) Publish(c *gin.Context) {
	result, err := h.timetables.Publish(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// Export godoc
// @Summary Download one section grid as CSV or PDF
// @Tags Timetables
// @Produce text/csv
// @Produce application/pdf
// @Param semester path string true "Semester"
// @Param section path string true "Section"
// @Param format query string false "csv or pdf"
// @Success 200 {file} file
// @Router /timetables/semesters/{semester}/sections/{section}/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.timetables.Export(c.Request.Context(), c.Param("semester"), c.Param("section"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

func bindGenerateRequest(c *gin.Context) (dto.GenerateTimetableRequest, bool) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid generate payload"))
		return req, false
	}
	if claims := claimsFromContext(c); claims != nil {
		req.CreatedBy = claims.UserID
	}
	return req, true
}
