package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	internalmiddleware "github.com/noah-isme/sma-timetable-api/internal/middleware"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/internal/service"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableGeneratorMock struct {
	captured dto.GenerateTimetableRequest
	format   string
	cached   bool
	err      error
}

func (m *timetableGeneratorMock) Generate(ctx context.Context, req dto.GenerateTimetableRequest) (*dto.TimetableResponse, bool, error) {
	m.captured = req
	if m.err != nil {
		return nil, false, m.err
	}
	lunch := "Lunch"
	return &dto.TimetableResponse{
		Days:     []string{"Monday"},
		Periods:  []string{"Lunch"},
		Schedule: [][]*string{{&lunch}},
	}, m.cached, nil
}

func (m *timetableGeneratorMock) Export(ctx context.Context, req dto.GenerateTimetableRequest, format string) (*service.ExportFile, error) {
	m.captured = req
	m.format = format
	if m.err != nil {
		return nil, m.err
	}
	return &service.ExportFile{Filename: "timetable.csv", ContentType: "text/csv", Body: []byte("Period,Monday\n")}, nil
}

type timetableJobsMock struct {
	createdBy string
	jobs      map[string]*dto.TimetableJobResponse
}

func (m *timetableJobsMock) Submit(ctx context.Context, req dto.GenerateTimetableRequest, createdBy string) (*dto.TimetableJobResponse, error) {
	m.createdBy = createdBy
	job := &dto.TimetableJobResponse{JobID: "2f1c7a8e-3f43-4a55-9d0f-1d2b7c9e0a11", Status: string(models.JobStatusQueued), CreatedAt: time.Now()}
	m.jobs = map[string]*dto.TimetableJobResponse{job.JobID: job}
	return job, nil
}

func (m *timetableJobsMock) Get(ctx context.Context, id string) (*dto.TimetableJobResponse, error) {
	if job, ok := m.jobs[id]; ok {
		return job, nil
	}
	return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable job not found")
}

const validTimetablePayload = `{"workingDays":5,"classesPerDay":4,"subjects":["Math","Art"],"teachersPerSubject":[2,1],
"constraints":[{"type":"FIXED_BREAK","period":2,"label":"Lunch"},{"type":"PREFERRED_SLOT","subject":"Math","teacher":1,"day":0,"period":0}]}`

func newTimetableRouter(gen *timetableGeneratorMock, jobs *timetableJobsMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := &TimetableHandler{timetables: gen, jobs: jobs}
	r := gin.New()
	r.Use(internalmiddleware.WithResponseMeta())
	group := r.Group("/api/v1/timetables")
	group.POST("/generate", h.Generate)
	group.POST("/export", h.Export)
	group.POST("/jobs", h.SubmitJob)
	group.GET("/jobs/:id", h.GetJob)
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestTimetableGenerateSuccess(t *testing.T) {
	gen := &timetableGeneratorMock{cached: true}
	w := postJSON(newTimetableRouter(gen, &timetableJobsMock{}), "/api/v1/timetables/generate", validTimetablePayload)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Equal(t, []string{"Math", "Art"}, gen.captured.Subjects)
	require.Len(t, gen.captured.Constraints, 2)
	require.NotNil(t, gen.captured.Constraints[1].Teacher)
	assert.Equal(t, 1, *gen.captured.Constraints[1].Teacher)

	var body struct {
		Data dto.TimetableResponse `json:"data"`
		Meta map[string]interface{} `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"Monday"}, body.Data.Days)
	assert.Equal(t, true, body.Meta["cached"])
}

func TestTimetableGenerateMalformedPayload(t *testing.T) {
	w := postJSON(newTimetableRouter(&timetableGeneratorMock{}, &timetableJobsMock{}), "/api/v1/timetables/generate", `{"workingDays":`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "VALIDATION_ERROR")
}

func TestTimetableGenerateMapsEngineErrors(t *testing.T) {
	tests := []struct {
		err    error
		status int
		code   string
	}{
		{err: appErrors.Clone(appErrors.ErrConfig, "workingDays must be between 1 and 7, got 0"), status: http.StatusBadRequest, code: "CONFIG_ERROR"},
		{err: appErrors.Clone(appErrors.ErrConstraintConflict, "row 2 is claimed twice"), status: http.StatusUnprocessableEntity, code: "CONSTRAINT_CONFLICT"},
		{err: appErrors.Clone(appErrors.ErrSolver, "nothing fits"), status: http.StatusUnprocessableEntity, code: "SOLVER_ERROR"},
		{err: appErrors.Clone(appErrors.ErrCancelled, "deadline"), status: http.StatusServiceUnavailable, code: "CANCELLED"},
		{err: errors.New("boom"), status: http.StatusInternalServerError, code: "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			gen := &timetableGeneratorMock{err: tt.err}
			w := postJSON(newTimetableRouter(gen, &timetableJobsMock{}), "/api/v1/timetables/generate", validTimetablePayload)
			assert.Equal(t, tt.status, w.Code)

			var body response.Envelope
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
			require.NotNil(t, body.Error)
			assert.Equal(t, tt.code, body.Error.Code)
		})
	}
}

func TestTimetableExport(t *testing.T) {
	gen := &timetableGeneratorMock{}
	w := postJSON(newTimetableRouter(gen, &timetableJobsMock{}), "/api/v1/timetables/export?format=csv", validTimetablePayload)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "csv", gen.format)
	assert.Equal(t, "text/csv", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Header().Get("Content-Disposition"), "timetable.csv")
	assert.Equal(t, "Period,Monday\n", w.Body.String())
}

func TestTimetableJobsFlow(t *testing.T) {
	jobs := &timetableJobsMock{}
	r := newTimetableRouter(&timetableGeneratorMock{}, jobs)

	w := postJSON(r, "/api/v1/timetables/jobs", validTimetablePayload)
	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, anonymousUser, jobs.createdBy)

	var body struct {
		Data dto.TimetableJobResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "QUEUED", body.Data.Status)
	assert.Equal(t, "/api/v1/timetables/jobs/"+body.Data.JobID, w.Header().Get("Location"))

	req := httptest.NewRequest(http.MethodGet, "/api/v1/timetables/jobs/"+body.Data.JobID, nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/v1/timetables/jobs/unknown", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestTimetableJobsRecordsRequester(t *testing.T) {
	gin.SetMode(gin.TestMode)
	jobs := &timetableJobsMock{}
	h := &TimetableHandler{timetables: &timetableGeneratorMock{}, jobs: jobs}
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodPost, "/api/v1/timetables/jobs", bytes.NewReader([]byte(validTimetablePayload)))
	c.Request.Header.Set("Content-Type", "application/json")
	c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "teacher-7", Role: models.RoleTeacher})

	h.SubmitJob(c)

	require.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "teacher-7", jobs.createdBy)
}

func TestTimetableRoutesRequireRole(t *testing.T) {
	gin.SetMode(gin.TestMode)
	h := &TimetableHandler{timetables: &timetableGeneratorMock{}, jobs: &timetableJobsMock{}}
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(internalmiddleware.ContextUserKey, &models.JWTClaims{UserID: "student-1", Role: "STUDENT"})
		c.Next()
	})
	r.POST("/timetables/generate", internalmiddleware.RequireRoles(models.RoleAdmin, models.RoleSuperAdmin, models.RoleTeacher), h.Generate)

	w := postJSON(r, "/timetables/generate", validTimetablePayload)
	assert.Equal(t, http.StatusForbidden, w.Code)
}
