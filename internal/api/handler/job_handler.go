package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cuongbtq/pickup-be/internal/api/domain"
	"github.com/cuongbtq/pickup-be/internal/api/dto"
	"github.com/cuongbtq/pickup-be/internal/api/model"
	"github.com/cuongbtq/pickup-be/internal/api/service"
	"github.com/cuongbtq/pickup-be/internal/api/storage"
	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// ListAvailable handles GET /jobs/available
func (h *JobHandler) ListAvailable(c *gin.Context) {
	h.listView(c, "ListAvailable", h.jobs.Available)
}

// ListOngoing handles GET /jobs/ongoing
func (h *JobHandler) ListOngoing(c *gin.Context) {
	h.listView(c, "ListOngoing", h.jobs.Ongoing)
}

// ListCompleted handles GET /jobs/completed
func (h *JobHandler) ListCompleted(c *gin.Context) {
	h.listView(c, "ListCompleted", h.jobs.Completed)
}

func (h *JobHandler) listView(c *gin.Context, name string, load func(context.Context, domain.Identity) ([]model.JobView, error)) {
	logCall(h.logger, c, name)

	who, ok := actor(c)
	if !ok {
		return
	}

	views, err := load(c.Request.Context(), who)
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, dto.JobsResponse{
		Jobs: dto.FromJobViews(views, who.IsAdmin()),
	})
}

// GetJob handles GET /jobs/:id
func (h *JobHandler) GetJob(c *gin.Context) {
	logCall(h.logger, c, "GetJob")

	who, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	view, err := h.jobs.Get(c.Request.Context(), who, id)
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJobView(view, who.IsAdmin()))
}

// GetJobEvents handles GET /jobs/:id/events
func (h *JobHandler) GetJobEvents(c *gin.Context) {
	logCall(h.logger, c, "GetJobEvents")

	who, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	evs, err := h.jobs.History(c.Request.Context(), who, id)
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, dto.JobEventsResponse{Events: dto.FromJobEvents(evs)})
}

// ReserveJob handles POST /jobs/:id/reserve
func (h *JobHandler) ReserveJob(c *gin.Context) {
	h.transition(c, "ReserveJob", h.jobs.Reserve)
}

// AdvanceJob handles POST /jobs/:id/advance
func (h *JobHandler) AdvanceJob(c *gin.Context) {
	h.transition(c, "AdvanceJob", h.jobs.Advance)
}

// CancelJob handles POST /jobs/:id/cancel
func (h *JobHandler) CancelJob(c *gin.Context) {
	h.transition(c, "CancelJob", h.jobs.Cancel)
}

func (h *JobHandler) transition(c *gin.Context, name string, apply func(context.Context, domain.Identity, int64) (*model.Job, error)) {
	who, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	logCall(h.logger, c, name,
		slog.Int64("job_id", id),
		slog.Int64("user_id", who.UserID),
	)

	job, err := apply(c.Request.Context(), who, id)
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

func parseDeadline(s string) (*time.Time, error) {
	t, err := time.Parse(domain.DateLayout, s)
	if err != nil {
		return nil, domain.Validation("deadline_date must use the %s format", domain.DateLayout)
	}
	return &t, nil
}

// CreateJob handles POST /jobs
func (h *JobHandler) CreateJob(c *gin.Context) {
	logCall(h.logger, c, "CreateJob")

	who, ok := actor(c)
	if !ok {
		return
	}

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(h.logger, c, "Invalid request body", err)
		return
	}

	in := service.CreateJobInput{
		OrganisationID: req.OrganisationID,
		Name:           req.Name,
		Address:        req.Address,
		Size:           req.Size,
		Weight:         req.Weight,
		Value:          req.Value,
		IntakePriority: domain.Priority(req.IntakePriority),
	}
	if req.DeadlineDate != "" {
		deadline, err := parseDeadline(req.DeadlineDate)
		if err != nil {
			respondError(h.logger, c, err)
			return
		}
		in.DeadlineDate = deadline
	}

	job, err := h.jobs.Create(c.Request.Context(), who, in)
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.FromJob(job))
}

// ListJobs handles GET /jobs with filters and cursor pagination
func (h *JobHandler) ListJobs(c *gin.Context) {
	logCall(h.logger, c, "ListJobs")

	who, ok := actor(c)
	if !ok {
		return
	}

	var req dto.ListJobsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBadRequest(h.logger, c, "Invalid query parameters", err)
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeJobCursor(req.Cursor)
	if err != nil {
		respondBadRequest(h.logger, c, "Invalid cursor", err)
		return
	}

	filter := storage.JobFilter{
		Stage:    domain.Stage(req.Stage),
		FollowUp: req.FollowUp,
		PageSize: req.PageSize,
		Cursor:   cursor,
	}
	if req.OrganisationID > 0 {
		filter.OrganisationID = &req.OrganisationID
	}
	if req.AssignedTo > 0 {
		filter.AssignedTo = &req.AssignedTo
	}

	jobs, err := h.jobs.List(c.Request.Context(), who, filter)
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	// the store fetches one extra row to detect a following page
	var nextCursor string
	if len(jobs) > req.PageSize {
		jobs = jobs[:req.PageSize]
		last := jobs[len(jobs)-1]
		nextCursor = EncodeJobCursor(&storage.JobCursor{
			CreatedAt: last.CreatedAt,
			ID:        last.ID,
		})
	}

	c.JSON(http.StatusOK, dto.ListJobsResponse{
		Jobs:       dto.FromJobs(jobs),
		NextCursor: nextCursor,
	})
}

func patchFromRequest(req *dto.UpdateJobRequest) (service.JobPatch, error) {
	patch := service.JobPatch{
		Fields: storage.JobFields{
			OrganisationID: req.OrganisationID,
			Name:           req.Name,
			Address:        req.Address,
			Size:           req.Size,
			Weight:         req.Weight,
			Value:          req.Value,
			FollowUp:       req.FollowUp,
		},
		AssignedTo: req.AssignedTo,
		Unassign:   req.Unassign,
	}
	if req.IntakePriority != nil {
		p := domain.Priority(*req.IntakePriority)
		patch.Fields.IntakePriority = &p
	}
	if req.DeadlineDate != nil {
		if *req.DeadlineDate == "" {
			patch.Fields.ClearDeadline = true
		} else {
			deadline, err := parseDeadline(*req.DeadlineDate)
			if err != nil {
				return patch, err
			}
			patch.Fields.DeadlineDate = deadline
		}
	}
	if req.ProgressStage != nil {
		stage := domain.Stage(*req.ProgressStage)
		patch.Stage = &stage
	}
	return patch, nil
}

// UpdateJob handles PATCH /jobs/:id
func (h *JobHandler) UpdateJob(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	logCall(h.logger, c, "UpdateJob", slog.Int64("job_id", id))

	var req dto.UpdateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(h.logger, c, "Invalid request body", err)
		return
	}

	patch, err := patchFromRequest(&req)
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	job, err := h.jobs.Update(c.Request.Context(), who, id, patch)
	if err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.JSON(http.StatusOK, dto.FromJob(job))
}

// DeleteJob handles DELETE /jobs/:id
func (h *JobHandler) DeleteJob(c *gin.Context) {
	who, ok := actor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}
	logCall(h.logger, c, "DeleteJob", slog.Int64("job_id", id))

	if err := h.jobs.Delete(c.Request.Context(), who, id); err != nil {
		respondError(h.logger, c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
