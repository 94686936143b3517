package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/thanhldev/extraction-be/internal/api/dto"
	"github.com/thanhldev/extraction-be/internal/api/model"
)

// CreateExtraction handles POST /api/v1/extractions
// Creates a job record, allocates the placeholder block when an insertion
// target is supplied, and dispatches the job to the worker service.
func (h *ExtractionHandler) CreateExtraction(c *gin.Context) {
	var req dto.CreateExtractionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	now := time.Now()
	job := model.ExtractionJob{
		JobID:      uuid.New().String(),
		RecordID:   req.RecordID,
		OwnerID:    req.OwnerID,
		SourceURL:  req.SourceURL,
		AdminScope: req.AdminScope,
		Status:     "pending",
		Progress:   0,
		Message:    "queued for extraction",
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	placeholderID := ""
	if req.Insertion != nil {
		placeholderID = uuid.New().String()
		err := h.storage.AllocatePlaceholder(c.Request.Context(), req.Insertion.SectionID, placeholderID, req.Insertion.InsertionIndex)
		if err != nil {
			if errors.Is(err, model.ErrSectionNotFound) {
				c.JSON(http.StatusNotFound, gin.H{
					"error": "Section not found",
				})
				return
			}
			h.logger.Error("Failed to allocate placeholder",
				slog.String("section_id", req.Insertion.SectionID),
				slog.String("error", err.Error()),
			)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error": "Failed to allocate placeholder",
			})
			return
		}

		job.SectionID = &req.Insertion.SectionID
		job.PlaceholderBlockID = &placeholderID
		job.InsertionIndex = &req.Insertion.InsertionIndex
	}

	if err := h.storage.CreateJob(c.Request.Context(), &job); err != nil {
		h.logger.Error("Failed to create job", slog.String("error", err.Error()))
		h.releasePlaceholder(c, req.Insertion, placeholderID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to create job",
		})
		return
	}

	body, err := json.Marshal(gin.H{"job_id": job.JobID})
	if err != nil {
		h.releasePlaceholder(c, req.Insertion, placeholderID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to encode dispatch message",
		})
		return
	}

	if err := h.publisher.PublishWithRetry(c.Request.Context(), body, "application/json"); err != nil {
		h.logger.Error("Failed to dispatch job",
			slog.String("job_id", job.JobID),
			slog.String("error", err.Error()),
		)
		h.releasePlaceholder(c, req.Insertion, placeholderID)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to dispatch job",
		})
		return
	}

	h.logger.Info("Extraction job created",
		slog.String("job_id", job.JobID),
		slog.String("record_id", job.RecordID),
		slog.Bool("insertion", req.Insertion != nil),
	)

	c.JSON(http.StatusAccepted, dto.CreateExtractionResponse{
		JobID:              job.JobID,
		RecordID:           job.RecordID,
		Status:             job.Status,
		Progress:           job.Progress,
		PlaceholderBlockID: placeholderID,
		CreatedAt:          job.CreatedAt.Format(time.RFC3339),
	})
}

// releasePlaceholder rolls an allocated placeholder back out of the section
// when job creation or dispatch fails after allocation. Without it the
// placeholder would sit in the section with no job ever replacing it.
func (h *ExtractionHandler) releasePlaceholder(c *gin.Context, insertion *dto.InsertionTarget, placeholderID string) {
	if insertion == nil || placeholderID == "" {
		return
	}
	if err := h.storage.ReleasePlaceholder(c.Request.Context(), insertion.SectionID, placeholderID); err != nil {
		h.logger.Error("Failed to release placeholder",
			slog.String("section_id", insertion.SectionID),
			slog.String("placeholder_block_id", placeholderID),
			slog.String("error", err.Error()),
		)
	}
}

// GetExtraction handles GET /api/v1/extractions/:job_id
// Returns the current status of an extraction job. A missing job is 404,
// never a 500.
func (h *ExtractionHandler) GetExtraction(c *gin.Context) {
	jobID := c.Param("job_id")

	if _, err := uuid.Parse(jobID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job_id must be a valid UUID",
		})
		return
	}

	job, err := h.storage.GetJobByID(c.Request.Context(), jobID)
	if err != nil {
		if errors.Is(err, model.ErrJobNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Job not found",
			})
			return
		}
		h.logger.Error("Failed to get job",
			slog.String("job_id", jobID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get job",
		})
		return
	}

	resp := dto.ExtractionStatusResponse{
		JobID:     job.JobID,
		RecordID:  job.RecordID,
		Status:    job.Status,
		Progress:  job.Progress,
		Message:   job.Message,
		CreatedAt: job.CreatedAt.Format(time.RFC3339),
		UpdatedAt: job.UpdatedAt.Format(time.RFC3339),
	}
	if job.ErrorMessage != nil {
		resp.Error = *job.ErrorMessage
	}
	if job.CompletedAt != nil {
		resp.CompletedAt = job.CompletedAt.Format(time.RFC3339)
	}

	c.JSON(http.StatusOK, resp)
}

// GetRecordAttachments handles GET /api/v1/records/:record_id/attachments
// Returns the attachment map materialized for a record. A record with no
// attachments yet yields an empty map.
func (h *ExtractionHandler) GetRecordAttachments(c *gin.Context) {
	recordID := c.Param("record_id")

	attachments, err := h.attachments.GetAttachments(c.Request.Context(), recordID)
	if err != nil {
		h.logger.Error("Failed to get attachments",
			slog.String("record_id", recordID),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get attachments",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"record_id":   recordID,
		"attachments": attachments,
	})
}
