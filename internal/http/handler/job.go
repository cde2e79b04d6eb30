package handler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"pulsedash.app/harvester/common/id"
	"pulsedash.app/harvester/internal/export"
	"pulsedash.app/harvester/internal/http/dto"
	"pulsedash.app/harvester/internal/model"
	"pulsedash.app/harvester/internal/pipeline"
	"pulsedash.app/harvester/internal/store"
)

type JobHandler struct {
	jobs         store.JobStore
	runner       *pipeline.Runner
	orchestrator *pipeline.Orchestrator
}

func NewJobHandler(jobs store.JobStore, runner *pipeline.Runner, orchestrator *pipeline.Orchestrator) *JobHandler {
	return &JobHandler{jobs: jobs, runner: runner, orchestrator: orchestrator}
}

// Submit creates a pending job and kicks off its pipeline without waiting
// for it: callers get the id back immediately and poll for status.
func (h *JobHandler) Submit(c *gin.Context) {
	ctx := c.Request.Context()

	var req dto.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		slog.WarnContext(ctx, "invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if req.TargetURL == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "targetUrl is required"})
		return
	}
	if len(req.Fields) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "fields is required"})
		return
	}
	for _, f := range req.Fields {
		if f.Name == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "every field needs a name"})
			return
		}
	}

	policy := model.FailurePolicy(req.OnFailure)
	switch policy {
	case "":
		policy = model.PolicyDegrade
	case model.PolicyDegrade, model.PolicySurface:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("onFailure must be %q or %q", model.PolicyDegrade, model.PolicySurface)})
		return
	}

	job := &model.Job{
		ID:             id.New(),
		TargetURL:      req.TargetURL,
		Strategy:       req.Strategy,
		Fields:         req.Fields,
		RequestedLimit: req.RequestedLimit,
		IsDemoMode:     req.IsDemoMode,
		Intent:         req.Intent,
		OnFailure:      policy,
		Status:         model.StatusPending,
		Results:        []model.ResultRecord{},
		CreatedAt:      time.Now().UTC(),
	}

	if err := h.jobs.Create(ctx, job); err != nil {
		if errors.Is(err, store.ErrDuplicateJob) {
			c.JSON(http.StatusConflict, gin.H{"error": "job id collision, retry submission"})
			return
		}
		slog.ErrorContext(ctx, "job creation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to create job"})
		return
	}

	h.runner.Launch(ctx, job.ID, func(taskCtx context.Context) {
		h.orchestrator.Execute(taskCtx, job.ID)
	})

	slog.InfoContext(ctx, "job submitted",
		"job_id", job.ID,
		"target_url", job.TargetURL,
		"demo_mode", job.IsDemoMode)

	c.JSON(http.StatusAccepted, dto.CreateJobResponse{JobID: job.ID})
}

// GetStatus is a pure read of the store, safe under any number of pollers.
func (h *JobHandler) GetStatus(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// Export streams a completed job's results as CSV. Column selection comes
// from the fields query parameter, defaulting to the job's requested fields
// plus the provenance columns present in the data.
func (h *JobHandler) Export(c *gin.Context) {
	job, err := h.jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, store.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load job"})
		return
	}

	if job.Status != model.StatusCompleted {
		c.JSON(http.StatusConflict, gin.H{"error": "job is not completed"})
		return
	}

	columns := exportColumns(c.Query("fields"), job)

	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", "job-"+job.ID+".csv"))
	if err := export.WriteCSV(c.Writer, columns, job.Results); err != nil {
		slog.ErrorContext(c.Request.Context(), "csv export failed", "error", err, "job_id", job.ID)
	}
}

func exportColumns(fieldsParam string, job *model.Job) []string {
	if fieldsParam != "" {
		var columns []string
		for _, name := range strings.Split(fieldsParam, ",") {
			if name = strings.TrimSpace(name); name != "" {
				columns = append(columns, name)
			}
		}
		return columns
	}

	columns := make([]string, 0, len(job.Fields)+3)
	for _, f := range job.Fields {
		columns = append(columns, f.Name)
	}
	if len(job.Results) > 0 {
		for _, provenance := range []string{"articleUrl", "sourceUrl", "scrapedAt"} {
			if _, ok := job.Results[0][provenance]; ok {
				columns = append(columns, provenance)
			}
		}
	}
	return columns
}
