package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/path-ml/path-backend/coordinator"
	"github.com/path-ml/path-backend/models"
	"github.com/path-ml/path-backend/repository"
	"github.com/path-ml/path-backend/storage"
)

// Handler handles HTTP requests
type Handler struct {
	coordinator *coordinator.Coordinator
	artifacts   *storage.ArtifactStore // nil when MinIO is not configured
}

// NewHandler creates a new handler instance
func NewHandler(coord *coordinator.Coordinator, artifacts *storage.ArtifactStore) *Handler {
	return &Handler{
		coordinator: coord,
		artifacts:   artifacts,
	}
}

// CreateJob handles POST /api/v1/jobs
func (h *Handler) CreateJob(c *gin.Context) {
	var req models.CreateJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		// Covers missing required fields and failed numeric coercion
		// (e.g. training_steps sent as a non-numeric string).
		log.Printf("Invalid submission payload: %v", err)
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "validation_error",
			"details": err.Error(),
		})
		return
	}

	job, err := h.coordinator.Submit(c.Request.Context(), &req)
	if err != nil {
		var vErr *coordinator.ValidationError
		var qErr *coordinator.QueueError
		var pErr *coordinator.PersistenceError

		switch {
		case errors.As(err, &vErr):
			c.JSON(http.StatusBadRequest, gin.H{
				"error":   "validation_error",
				"details": vErr.Error(),
			})
		case errors.As(err, &qErr):
			// The record exists but delivery is unconfirmed. The client
			// must not re-submit (that would duplicate the job); the
			// requeue sweep re-publishes the existing record instead.
			log.Printf("Queue publish failed for job %s: %v", qErr.JobID, err)
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   "queue_error",
				"job_id":  qErr.JobID,
				"details": "job recorded but event delivery unconfirmed; do not re-submit",
			})
		case errors.As(err, &pErr):
			log.Printf("Persistence failed for submission: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{
				"error":   "persistence_error",
				"details": "failed to record job; submission had no effect and may be retried",
			})
		default:
			log.Printf("Submission failed: %v", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		}
		return
	}

	c.JSON(http.StatusCreated, repository.ToResponse(job))
}

// ListJobs handles GET /api/v1/jobs
func (h *Handler) ListJobs(c *gin.Context) {
	jobs, err := h.coordinator.ListJobs(c.Request.Context())
	if err != nil {
		log.Printf("Failed to list jobs: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable"})
		return
	}
	c.JSON(http.StatusOK, repository.ToResponses(jobs))
}

// ListJobsByStatus handles GET /api/v1/jobs/status/:status
func (h *Handler) ListJobsByStatus(c *gin.Context) {
	status := c.Param("status")
	jobs, err := h.coordinator.ListJobsByStatus(c.Request.Context(), status)
	if err != nil {
		log.Printf("Failed to list jobs with status %s: %v", status, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable"})
		return
	}
	c.JSON(http.StatusOK, repository.ToResponses(jobs))
}

// GetJob handles GET /api/v1/jobs/:id
func (h *Handler) GetJob(c *gin.Context) {
	id := c.Param("id")
	job, err := h.coordinator.GetJob(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		log.Printf("Failed to get job %s: %v", id, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable"})
		return
	}
	c.JSON(http.StatusOK, repository.ToResponse(job))
}

// DeleteJob handles DELETE /api/v1/jobs/:id
func (h *Handler) DeleteJob(c *gin.Context) {
	id := c.Param("id")
	if err := h.coordinator.DeleteJob(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		log.Printf("Failed to delete job %s: %v", id, err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable"})
		return
	}
	log.Printf("Deleted job %s", id)
	c.JSON(http.StatusOK, gin.H{"message": "Job deleted successfully", "job_id": id})
}

// UploadDataset handles POST /api/v1/upload
// Uploads a training dataset file to the artifact bucket.
func (h *Handler) UploadDataset(c *gin.Context) {
	if h.artifacts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "artifact storage not configured"})
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File is required"})
		return
	}
	defer file.Close()

	objectKey := c.PostForm("objectKey")
	if objectKey == "" {
		objectKey = header.Filename
	}

	info, err := h.artifacts.UploadDataset(c.Request.Context(), objectKey, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		log.Printf("Failed to upload %s: %v", objectKey, err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Failed to upload file to storage",
			"details": err.Error(),
		})
		return
	}

	log.Printf("File uploaded: %s (size: %d bytes, etag: %s)", objectKey, info.Size, info.ETag)
	c.JSON(http.StatusOK, gin.H{
		"message":   "File uploaded successfully",
		"objectKey": objectKey,
		"size":      info.Size,
		"etag":      info.ETag,
	})
}

// ListJobArtifacts handles GET /api/v1/jobs/:id/artifacts
// Lists model artifacts the worker wrote under the job's prefix.
func (h *Handler) ListJobArtifacts(c *gin.Context) {
	if h.artifacts == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "artifact storage not configured"})
		return
	}

	id := c.Param("id")
	if _, err := h.coordinator.GetJob(c.Request.Context(), id); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
			return
		}
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "store_unavailable"})
		return
	}

	objects, err := h.artifacts.ListJobArtifacts(c.Request.Context(), id)
	if err != nil {
		log.Printf("Failed to list artifacts for job %s: %v", id, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list artifacts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"job_id": id, "artifacts": objects})
}
