package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cuongbtq/pickup-be/internal/api/auth"
	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/cuongbtq/pickup-be/internal/api/model"
	"github.com/cuongbtq/pickup-be/internal/api/service"
	"github.com/cuongbtq/pickup-be/internal/api/storage"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var (
	admin     = domain.Identity{UserID: 1, Role: domain.RoleAdmin}
	volunteer = domain.Identity{UserID: 7, Role: domain.RoleVolunteer}
)

type stubJobs struct {
	job       *model.Job
	view      *model.JobView
	views     []model.JobView
	jobs      []model.Job
	events    []model.JobEvent
	err       error
	gotID     int64
	gotActor  domain.Identity
	gotCreate service.CreateJobInput
	gotFilter storage.JobFilter
	gotPatch  service.JobPatch
}

func (s *stubJobs) record(actor domain.Identity, id int64) {
	s.gotActor = actor
	s.gotID = id
}

func (s *stubJobs) Reserve(_ context.Context, a domain.Identity, id int64) (*model.Job, error) {
	s.record(a, id)
	return s.job, s.err
}

func (s *stubJobs) Advance(_ context.Context, a domain.Identity, id int64) (*model.Job, error) {
	s.record(a, id)
	return s.job, s.err
}

func (s *stubJobs) Cancel(_ context.Context, a domain.Identity, id int64) (*model.Job, error) {
	s.record(a, id)
	return s.job, s.err
}

func (s *stubJobs) Get(_ context.Context, a domain.Identity, id int64) (*model.JobView, error) {
	s.record(a, id)
	return s.view, s.err
}

func (s *stubJobs) History(_ context.Context, a domain.Identity, id int64) ([]model.JobEvent, error) {
	s.record(a, id)
	return s.events, s.err
}

func (s *stubJobs) Available(_ context.Context, a domain.Identity) ([]model.JobView, error) {
	s.gotActor = a
	return s.views, s.err
}

func (s *stubJobs) Ongoing(_ context.Context, a domain.Identity) ([]model.JobView, error) {
	s.gotActor = a
	return s.views, s.err
}

func (s *stubJobs) Completed(_ context.Context, a domain.Identity) ([]model.JobView, error) {
	s.gotActor = a
	return s.views, s.err
}

func (s *stubJobs) Create(_ context.Context, a domain.Identity, in service.CreateJobInput) (*model.Job, error) {
	s.gotActor = a
	s.gotCreate = in
	return s.job, s.err
}

func (s *stubJobs) List(_ context.Context, a domain.Identity, f storage.JobFilter) ([]model.Job, error) {
	s.gotActor = a
	s.gotFilter = f
	return s.jobs, s.err
}

func (s *stubJobs) Update(_ context.Context, a domain.Identity, id int64, p service.JobPatch) (*model.Job, error) {
	s.record(a, id)
	s.gotPatch = p
	return s.job, s.err
}

func (s *stubJobs) Delete(_ context.Context, a domain.Identity, id int64) error {
	s.record(a, id)
	return s.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// as installs a fixed identity in place of the bearer-token middleware
func as(id *domain.Identity) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id != nil {
			auth.SetIdentity(c, *id)
		}
		c.Next()
	}
}

func jobRouter(jobs *stubJobs, id *domain.Identity) *gin.Engine {
	h := NewJobHandler(&Dependencies{Logger: testLogger(), Jobs: jobs})
	r := gin.New()
	g := r.Group("/jobs", as(id))
	g.GET("/available", h.ListAvailable)
	g.GET("/ongoing", h.ListOngoing)
	g.GET("/completed", h.ListCompleted)
	g.GET("", h.ListJobs)
	g.POST("", h.CreateJob)
	g.GET("/:id", h.GetJob)
	g.GET("/:id/events", h.GetJobEvents)
	g.PATCH("/:id", h.UpdateJob)
	g.DELETE("/:id", h.DeleteJob)
	g.POST("/:id/reserve", h.ReserveJob)
	g.POST("/:id/advance", h.AdvanceJob)
	g.POST("/:id/cancel", h.CancelJob)
	return r
}

func do(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	var rd io.Reader
	if body != "" {
		rd = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestRespondError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"not found", domain.ErrJobNotFound, http.StatusNotFound, "job not found"},
		{"stale", domain.ErrStaleState, http.StatusConflict, "job state changed, reload and retry"},
		{"forbidden", domain.ErrNotAssignee, http.StatusForbidden, "job is not assigned to you"},
		{"validation", domain.Validation("bad %s", "input"), http.StatusBadRequest, "bad input"},
		{"wrapped", errors.Join(errors.New("ctx"), domain.ErrAdminOnly), http.StatusForbidden, "admin role required"},
		{"internal", errors.New("pq: connection refused"), http.StatusInternalServerError, "internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			c, _ := gin.CreateTestContext(w)
			c.Request = httptest.NewRequest(http.MethodGet, "/x", nil)

			respondError(testLogger(), c, tt.err)

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantMsg, decode(t, w)["error"])
		})
	}
}

func TestJobHandler_Transitions(t *testing.T) {
	assignee := volunteer.UserID
	done := &model.Job{
		ID:             42,
		OrganisationID: 3,
		AssignedTo:     &assignee,
		ProgressStage:  domain.StageReserved,
		IntakePriority: domain.PriorityHigh,
		Name:           "Sofa",
	}

	for _, path := range []string{"/jobs/42/reserve", "/jobs/42/advance", "/jobs/42/cancel"} {
		t.Run(path, func(t *testing.T) {
			jobs := &stubJobs{job: done}
			w := do(jobRouter(jobs, &volunteer), http.MethodPost, path, "")

			require.Equal(t, http.StatusOK, w.Code)
			assert.Equal(t, int64(42), jobs.gotID)
			assert.Equal(t, volunteer, jobs.gotActor)
			body := decode(t, w)
			assert.Equal(t, "reserved", body["progress_stage"])
			assert.Equal(t, float64(7), body["assigned_to"])
		})
	}
}

func TestJobHandler_TransitionErrors(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		identity   *domain.Identity
		err        error
		wantStatus int
	}{
		{"lost race", "/jobs/5/reserve", &volunteer, domain.ErrNoLongerAvailable, http.StatusConflict},
		{"not assignee", "/jobs/5/advance", &volunteer, domain.ErrNotAssignee, http.StatusForbidden},
		{"missing job", "/jobs/5/cancel", &volunteer, domain.ErrJobNotFound, http.StatusNotFound},
		{"bad id", "/jobs/abc/reserve", &volunteer, nil, http.StatusBadRequest},
		{"zero id", "/jobs/0/reserve", &volunteer, nil, http.StatusBadRequest},
		{"no identity", "/jobs/5/reserve", nil, nil, http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			jobs := &stubJobs{err: tt.err}
			w := do(jobRouter(jobs, tt.identity), http.MethodPost, tt.path, "")
			assert.Equal(t, tt.wantStatus, w.Code)
			assert.NotEmpty(t, decode(t, w)["error"])
		})
	}
}

func TestJobHandler_ViewsHideAssigneeFromVolunteers(t *testing.T) {
	uid := int64(9)
	name, email := "Vera", "vera@example.org"
	views := []model.JobView{{
		Job:              model.Job{ID: 1, AssignedTo: &uid, ProgressStage: domain.StageInDelivery},
		OrganisationName: "Food Bank",
		AssigneeName:     &name,
		AssigneeEmail:    &email,
	}}

	w := do(jobRouter(&stubJobs{views: views}, &admin), http.MethodGet, "/jobs/ongoing", "")
	require.Equal(t, http.StatusOK, w.Code)
	job := decode(t, w)["jobs"].([]any)[0].(map[string]any)
	assert.Equal(t, "Food Bank", job["organisation_name"])
	assert.Equal(t, "vera@example.org", job["assignee"].(map[string]any)["email"])

	w = do(jobRouter(&stubJobs{views: views}, &volunteer), http.MethodGet, "/jobs/ongoing", "")
	require.Equal(t, http.StatusOK, w.Code)
	job = decode(t, w)["jobs"].([]any)[0].(map[string]any)
	_, hasAssignee := job["assignee"]
	assert.False(t, hasAssignee)
}

func TestJobHandler_CreateJob(t *testing.T) {
	t.Run("parses deadline and priority", func(t *testing.T) {
		jobs := &stubJobs{job: &model.Job{ID: 11, ProgressStage: domain.StageAvailable}}
		body := `{"organisation_id": 3, "name": "Fridge", "intake_priority": "high", "deadline_date": "2026-11-02", "weight": 40}`
		w := do(jobRouter(jobs, &admin), http.MethodPost, "/jobs", body)

		require.Equal(t, http.StatusCreated, w.Code)
		assert.Equal(t, int64(3), jobs.gotCreate.OrganisationID)
		assert.Equal(t, domain.PriorityHigh, jobs.gotCreate.IntakePriority)
		require.NotNil(t, jobs.gotCreate.DeadlineDate)
		assert.Equal(t, time.Date(2026, 11, 2, 0, 0, 0, 0, time.UTC), *jobs.gotCreate.DeadlineDate)
		assert.Equal(t, 40.0, *jobs.gotCreate.Weight)
	})

	t.Run("rejects bad deadline", func(t *testing.T) {
		w := do(jobRouter(&stubJobs{}, &admin), http.MethodPost, "/jobs", `{"organisation_id": 3, "name": "Fridge", "deadline_date": "02/11/2026"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("rejects missing name", func(t *testing.T) {
		w := do(jobRouter(&stubJobs{}, &admin), http.MethodPost, "/jobs", `{"organisation_id": 3}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Invalid request body", decode(t, w)["error"])
	})

	t.Run("rejects unknown priority", func(t *testing.T) {
		w := do(jobRouter(&stubJobs{}, &admin), http.MethodPost, "/jobs", `{"organisation_id": 3, "name": "x", "intake_priority": "urgent"}`)
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestJobHandler_UpdateJob(t *testing.T) {
	jobs := &stubJobs{job: &model.Job{ID: 4, ProgressStage: domain.StageAvailable}}
	body := `{"name": "Desk", "deadline_date": "", "progress_stage": "available", "unassign": true, "follow_up": false}`
	w := do(jobRouter(jobs, &admin), http.MethodPatch, "/jobs/4", body)

	require.Equal(t, http.StatusOK, w.Code)
	p := jobs.gotPatch
	assert.Equal(t, "Desk", *p.Fields.Name)
	assert.True(t, p.Fields.ClearDeadline)
	assert.Nil(t, p.Fields.DeadlineDate)
	assert.Equal(t, domain.StageAvailable, *p.Stage)
	assert.True(t, p.Unassign)
	assert.False(t, *p.Fields.FollowUp)
	assert.Nil(t, p.AssignedTo)
}

func TestJobHandler_DeleteJob(t *testing.T) {
	jobs := &stubJobs{}
	w := do(jobRouter(jobs, &admin), http.MethodDelete, "/jobs/8", "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, int64(8), jobs.gotID)
}

func TestJobHandler_ListJobs(t *testing.T) {
	base := time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC)
	page := []model.Job{
		{ID: 3, CreatedAt: base.Add(3 * time.Minute)},
		{ID: 2, CreatedAt: base.Add(2 * time.Minute)},
		{ID: 1, CreatedAt: base.Add(time.Minute)},
	}

	t.Run("trims the lookahead row into a cursor", func(t *testing.T) {
		jobs := &stubJobs{jobs: page}
		w := do(jobRouter(jobs, &admin), http.MethodGet, "/jobs?page_size=2&stage=reserved&organisation_id=5&follow_up=true", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, 2, jobs.gotFilter.PageSize)
		assert.Equal(t, domain.StageReserved, jobs.gotFilter.Stage)
		assert.Equal(t, int64(5), *jobs.gotFilter.OrganisationID)
		assert.Nil(t, jobs.gotFilter.AssignedTo)
		assert.True(t, *jobs.gotFilter.FollowUp)

		body := decode(t, w)
		assert.Len(t, body["jobs"], 2)
		cursor, err := DecodeJobCursor(body["next_cursor"].(string))
		require.NoError(t, err)
		assert.Equal(t, int64(2), cursor.ID)
		assert.True(t, cursor.CreatedAt.Equal(page[1].CreatedAt))
	})

	t.Run("last page has no cursor", func(t *testing.T) {
		jobs := &stubJobs{jobs: page[:1]}
		w := do(jobRouter(jobs, &admin), http.MethodGet, "/jobs", "")

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, defaultPageSize, jobs.gotFilter.PageSize)
		_, has := decode(t, w)["next_cursor"]
		assert.False(t, has)
	})

	t.Run("assignee filter", func(t *testing.T) {
		jobs := &stubJobs{}
		w := do(jobRouter(jobs, &admin), http.MethodGet, "/jobs?assigned_to=10", "")

		require.Equal(t, http.StatusOK, w.Code)
		require.NotNil(t, jobs.gotFilter.AssignedTo)
		assert.Equal(t, int64(10), *jobs.gotFilter.AssignedTo)
		assert.Nil(t, jobs.gotFilter.OrganisationID)
	})

	t.Run("page size is capped", func(t *testing.T) {
		jobs := &stubJobs{}
		do(jobRouter(jobs, &admin), http.MethodGet, "/jobs?page_size=5000", "")
		assert.Equal(t, maxPageSize, jobs.gotFilter.PageSize)
	})

	t.Run("bad cursor", func(t *testing.T) {
		w := do(jobRouter(&stubJobs{}, &admin), http.MethodGet, "/jobs?cursor=bm9waXBl", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestJobCursor_RoundTrip(t *testing.T) {
	in := &storage.JobCursor{CreatedAt: time.Date(2026, 1, 2, 3, 4, 5, 6000, time.UTC), ID: 99}
	out, err := DecodeJobCursor(EncodeJobCursor(in))
	require.NoError(t, err)
	assert.True(t, in.CreatedAt.Equal(out.CreatedAt))
	assert.Equal(t, in.ID, out.ID)

	empty, err := DecodeJobCursor("")
	assert.NoError(t, err)
	assert.Nil(t, empty)

	_, err = DecodeJobCursor("bm9waXBl")
	assert.Error(t, err)
}

type stubChecker struct{ err error }

func (s stubChecker) HealthCheck(context.Context) error { return s.err }

func TestHealthHandler(t *testing.T) {
	for _, tt := range []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{errors.New("down"), http.StatusServiceUnavailable},
	} {
		h := NewHealthHandler(&Dependencies{Logger: testLogger(), Health: stubChecker{tt.err}}, "api-service")
		r := gin.New()
		r.GET("/health", h.Health)
		w := do(r, http.MethodGet, "/health", "")
		assert.Equal(t, tt.want, w.Code)
		assert.Equal(t, "api-service", decode(t, w)["service"])
	}
}
