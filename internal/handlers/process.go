// Package handlers implements the HTTP Surface (§4.6): enqueue, status,
// download, and batch-download. Handlers stay thin — validation and shape
// mapping only — with the domain logic living in ingest/media/jobstore/queue.
package handlers

import (
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"videotemplate-render-service/internal/fingerprint"
	"videotemplate-render-service/internal/ingest"
	"videotemplate-render-service/internal/jobstore"
	"videotemplate-render-service/internal/media"
	"videotemplate-render-service/internal/queue"
	"videotemplate-render-service/internal/utils"
)

// maxIngestConcurrency bounds the fan-out of concurrent downloads within a
// single enqueue request (§4.1/§5).
const maxIngestConcurrency = 4

// ProcessHandler serves the enqueue and status-query endpoints.
type ProcessHandler struct {
	Store                 *jobstore.Store
	Queue                 *queue.Queue
	Ingestor              *ingest.Ingestor
	Prober                *media.Prober
	MaxActiveJobsPerOwner int
}

// RemoteRefDTO is the client-supplied reference to a remote asset.
type RemoteRefDTO struct {
	URL          string  `json:"url" binding:"required"`
	OriginalName string  `json:"originalName" binding:"required"`
	Size         *int64  `json:"size"`
	MimeType     *string `json:"mimeType"`
}

// EnqueueRequest is POST /process's request body.
type EnqueueRequest struct {
	Videos    []RemoteRefDTO                    `json:"videos"`
	Templates map[jobstore.Variant]RemoteRefDTO `json:"templates"`
}

// SnapshotResponse is the shape both the enqueue and status endpoints return;
// the status endpoint is simply a superset in practice (result/error/message
// populated once the job has progressed).
type SnapshotResponse struct {
	JobID                     string                    `json:"jobId"`
	Status                    jobstore.Status           `json:"status"`
	Progress                  int                       `json:"progress"`
	QueuePosition             int                       `json:"queuePosition"`
	EstimatedWaitMs           int64                     `json:"estimatedWaitMs"`
	EstimatedWaitSeconds      float64                   `json:"estimatedWaitSeconds"`
	AverageJobDurationMs      int64                     `json:"averageJobDurationMs"`
	AverageJobDurationSeconds float64                   `json:"averageJobDurationSeconds"`
	OwnerActiveJobs           int                       `json:"ownerActiveJobs"`
	OwnerJobLimit             int                       `json:"ownerJobLimit"`
	Metrics                   jobstore.Metrics          `json:"metrics"`
	Result                    []jobstore.OutputArtifact `json:"result,omitempty"`
	Error                     string                    `json:"error,omitempty"`
	Message                   string                    `json:"message,omitempty"`
	CreatedAt                 time.Time                 `json:"createdAt"`
	UpdatedAt                 time.Time                 `json:"updatedAt"`
}

// Enqueue handles POST /process.
func (h *ProcessHandler) Enqueue(c *gin.Context) {
	owner := fingerprint.Derive(c.Request)
	c.Set("owner_id", owner)

	var req EnqueueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.SendValidationError(c, err)
		return
	}
	if len(req.Videos) == 0 {
		utils.SendValidationError(c, fmt.Errorf("at least one source video is required"))
		return
	}
	if len(req.Templates) == 0 {
		utils.SendValidationError(c, fmt.Errorf("at least one template is required"))
		return
	}

	active := h.Store.ActiveCountForOwner(owner)
	if active >= h.MaxActiveJobsPerOwner {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":           "TooManyActiveJobs",
			"message":         fmt.Sprintf("owner already has %d active jobs", active),
			"ownerActiveJobs": active,
			"ownerJobLimit":   h.MaxActiveJobsPerOwner,
		})
		return
	}

	payload, err := h.ingestPayload(c, req)
	if err != nil {
		utils.SendInternalError(c, err)
		return
	}

	now := time.Now()
	job := &jobstore.Job{
		ID:        uuid.New().String(),
		Owner:     owner,
		Status:    jobstore.StatusPending,
		Progress:  0,
		CreatedAt: now,
		UpdatedAt: now,
		Payload:   payload,
		Metrics:   jobstore.Metrics{TotalVariants: len(payload.Sources) * len(payload.TemplatesPresent())},
	}

	if err := h.Queue.Enqueue(job); err != nil {
		if qErr, ok := err.(*queue.Error); ok && qErr.Kind == queue.KindTooManyActiveJobs {
			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":           string(qErr.Kind),
				"message":         qErr.Error(),
				"ownerActiveJobs": h.Store.ActiveCountForOwner(owner),
				"ownerJobLimit":   h.MaxActiveJobsPerOwner,
			})
			return
		}
		utils.SendInternalError(c, err)
		return
	}

	c.JSON(http.StatusOK, h.snapshot(job, owner))
}

// Status handles GET /process/{jobId}.
func (h *ProcessHandler) Status(c *gin.Context) {
	id := c.Param("jobId")
	job, ok := h.Store.Get(c.Request.Context(), id)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "JobNotFound", "message": "no such job"})
		return
	}
	c.Set("owner_id", job.Owner)

	c.JSON(http.StatusOK, h.snapshot(job, job.Owner))
}

func (h *ProcessHandler) snapshot(job *jobstore.Job, owner string) SnapshotResponse {
	queuePosition, wait := h.Queue.QueuePosition(job.ID, job.Status)
	avg := h.Queue.AverageJobDuration()

	return SnapshotResponse{
		JobID:                     job.ID,
		Status:                    job.Status,
		Progress:                  job.Progress,
		QueuePosition:             queuePosition,
		EstimatedWaitMs:           wait.Milliseconds(),
		EstimatedWaitSeconds:      wait.Seconds(),
		AverageJobDurationMs:      avg.Milliseconds(),
		AverageJobDurationSeconds: avg.Seconds(),
		OwnerActiveJobs:           h.Store.ActiveCountForOwner(owner),
		OwnerJobLimit:             h.MaxActiveJobsPerOwner,
		Metrics:                   job.Metrics,
		Result:                    job.Result,
		Error:                     job.Error,
		Message:                   statusMessage(job),
		CreatedAt:                 job.CreatedAt,
		UpdatedAt:                 job.UpdatedAt,
	}
}

func statusMessage(job *jobstore.Job) string {
	switch job.Status {
	case jobstore.StatusPending:
		return "queued, waiting for a worker"
	case jobstore.StatusProcessing:
		return fmt.Sprintf("rendering variant %d of %d", job.Metrics.CompletedVariants+1, job.Metrics.TotalVariants)
	case jobstore.StatusCompleted:
		return "all variants rendered"
	case jobstore.StatusFailed:
		return job.Error
	default:
		return ""
	}
}

// ingestPayload downloads every source and template in the request
// concurrently (bounded fan-out) and probes each template's metadata.
func (h *ProcessHandler) ingestPayload(c *gin.Context, req EnqueueRequest) (jobstore.Payload, error) {
	ctx := c.Request.Context()
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(maxIngestConcurrency)

	sources := make([]jobstore.SourceVideoRef, len(req.Videos))
	for i, ref := range req.Videos {
		i, ref := i, ref
		group.Go(func() error {
			asset, err := h.Ingestor.Ingest(gctx, ingest.RemoteRef{
				URL: ref.URL, OriginalName: ref.OriginalName, Size: ref.Size, MimeType: ref.MimeType,
			}, fmt.Sprintf("source-%d", i))
			if err != nil {
				return err
			}
			sources[i] = jobstore.SourceVideoRef{ScratchPath: asset.ScratchPath, OriginalName: asset.OriginalName}
			return nil
		})
	}

	templates := make(map[jobstore.Variant]jobstore.TemplateRef, len(req.Templates))
	var templatesMu sync.Mutex
	for variant, ref := range req.Templates {
		variant, ref := variant, ref
		group.Go(func() error {
			asset, err := h.Ingestor.Ingest(gctx, ingest.RemoteRef{
				URL: ref.URL, OriginalName: ref.OriginalName, Size: ref.Size, MimeType: ref.MimeType,
			}, fmt.Sprintf("template-%s", variant))
			if err != nil {
				return err
			}
			meta := h.Prober.ProbeTemplate(gctx, asset.ScratchPath, string(variant))
			templatesMu.Lock()
			templates[variant] = jobstore.TemplateRef{
				ScratchPath:  asset.ScratchPath,
				OriginalName: asset.OriginalName,
				Variant:      variant,
				Metadata:     meta,
			}
			templatesMu.Unlock()
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return jobstore.Payload{}, err
	}

	return jobstore.Payload{Sources: sources, Templates: templates}, nil
}
