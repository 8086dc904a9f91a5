package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableGenerator interface {
	Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableResponse, bool, error)
	Export(ctx context.Context, req dto.GenerateTimetableRequest, format string) (*service.ExportFile, error)
}

type timetableJobs interface {
	Submit(ctx context.Context, req dto.GenerateTimetableRequest, createdBy string) (*dto.TimetableJobResponse, error)
	Get(ctx context.Context, id string) (*dto.TimetableJobResponse, error)
}

// TimetableHandler exposes timetable generation endpoints.
type TimetableHandler struct {
	timetables timetableGenerator
	jobs       timetableJobs
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(timetables *service.TimetableService, jobs *service.TimetableJobService) *TimetableHandler {
	return &TimetableHandler{timetables: timetables, jobs: jobs}
}

// Generate godoc
// @Summary Generate a weekly timetable
// @Description Builds a periods x days grid for the given subjects, teacher pools and constraints. Unfillable slots are returned as null with a PARTIAL_ASSIGNMENT warning.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation request"
// @Success 200 {object} response.Envelope{data=dto.TimetableResponse}
// @Failure 400 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /api/v1/timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}

	resp, cached, err := h.timetables.Generate(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, resp, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Generate and download a timetable
// @Tags Timetables
// @Accept json
// @Produce text/csv
// @Produce application/pdf
// @Param format query string false "csv (default) or pdf"
// @Param payload body dto.GenerateTimetableRequest true "Generation request"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /api/v1/timetables/export [post]
func (h *TimetableHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	req, ok := bindRequest(c)
	if !ok {
		return
	}

	file, err := h.timetables.Export(c.Request.Context(), req, query.Format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, file.Filename, file.ContentType, file.Body)
}

// SubmitJob godoc
// @Summary Queue a timetable generation
// @Description Validates the request synchronously and runs the generation on the background worker pool.
// @Tags Timetables
// @Accept json
// @Produce json
// @Param payload body dto.GenerateTimetableRequest true "Generation request"
// @Success 202 {object} response.Envelope{data=dto.TimetableJobResponse}
// @Failure 400 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /api/v1/timetables/jobs [post]
func (h *TimetableHandler) SubmitJob(c *gin.Context) {
	req, ok := bindRequest(c)
	if !ok {
		return
	}

	job, err := h.jobs.Submit(c.Request.Context(), req, requesterID(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Location", c.FullPath()+"/"+job.JobID)
	response.Accepted(c, job)
}

// GetJob godoc
// @Summary Get a queued timetable generation
// @Tags Timetables
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope{data=dto.TimetableJobResponse}
// @Failure 404 {object} response.Envelope
// @Router /api/v1/timetables/jobs/{id} [get]
func (h *TimetableHandler) GetJob(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, job)
}

func bindRequest(c *gin.Context) (dto.GenerateTimetableRequest, bool) {
	var req dto.GenerateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable payload"))
		return req, false
	}
	return req, true
}
