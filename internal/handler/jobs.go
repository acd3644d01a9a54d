package handler

import (
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clipforge/api/internal/middleware"
	"github.com/clipforge/api/internal/model"
	"github.com/clipforge/api/internal/service"
	"github.com/clipforge/api/pkg/response"
)

type JobHandler struct {
	service        *service.JobService
	validator      *validator.Validate
	maxUploadBytes int64
}

func NewJobHandler(svc *service.JobService, v *validator.Validate, maxUploadBytes int64) *JobHandler {
	return &JobHandler{
		service:        svc,
		validator:      v,
		maxUploadBytes: maxUploadBytes,
	}
}

// Create handles POST /api/jobs
// @Summary      Create clip job
// @Description  Queue a job that turns a YouTube or direct video URL into captioned short clips
// @Tags         Jobs
// @Accept       json
// @Produce      json
// @Param        request body model.CreateJobRequest true "Job request"
// @Success      202 {object} model.CreateJobResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs [post]
func (h *JobHandler) Create(c *fiber.Ctx) error {
	var req model.CreateJobRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	result, err := h.service.Create(c.UserContext(), &req, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return response.Accepted(c, "/api/jobs/"+result.JobID, result)
}

// Upload handles POST /api/jobs/upload
// @Summary      Create clip job from upload
// @Description  Upload a video file and queue a clip job for it
// @Tags         Jobs
// @Accept       multipart/form-data
// @Produce      json
// @Param        file         formData file   true  "Video file (mp4, mov, mkv, webm)"
// @Param        clipDuration formData int    false "Clip length in seconds (5-600)"
// @Param        maxClips     formData int    false "Number of clips (1-20)"
// @Param        aspectRatio  formData string false "9:16, 16:9 or 1:1"
// @Param        addCaptions  formData bool   false "Burn captions into clips"
// @Param        captionStyle formData string false "classic, bold, outline or glow"
// @Success      202 {object} model.CreateJobResponse
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      413 {object} response.ErrorResponse
// @Failure      429 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs/upload [post]
func (h *JobHandler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return response.ValidationError(c, "File is required", nil)
	}

	if h.maxUploadBytes > 0 && file.Size > h.maxUploadBytes {
		return response.PayloadTooLarge(c, "File exceeds the upload limit", map[string]interface{}{
			"maxSize":  h.maxUploadBytes,
			"fileSize": file.Size,
		})
	}

	req, details := formJobRequest(c)
	if details != nil {
		return response.ValidationError(c, "Invalid form field", details)
	}
	if err := h.validator.Struct(req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	f, err := file.Open()
	if err != nil {
		return response.ServiceError(c, "Failed to open file")
	}
	defer f.Close()

	result, err := h.service.CreateUpload(c.UserContext(), file.Filename, file.Size, f, req, middleware.GetUserID(c))
	if err != nil {
		return respondError(c, err)
	}

	return response.Accepted(c, "/api/jobs/"+result.JobID, result)
}

// formJobRequest reads the clip options of a multipart upload. The URL field
// is unused for uploads and gets a placeholder so struct validation passes.
func formJobRequest(c *fiber.Ctx) (*model.CreateJobRequest, map[string]string) {
	req := &model.CreateJobRequest{
		URL:          "upload",
		AspectRatio:  c.FormValue("aspectRatio"),
		CaptionStyle: c.FormValue("captionStyle"),
	}
	details := map[string]string{}

	for field, dst := range map[string]**int{
		"clipDuration": &req.ClipDuration,
		"maxClips":     &req.MaxClips,
	} {
		v := c.FormValue(field)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			details[field] = "int"
			continue
		}
		*dst = &n
	}
	if v := c.FormValue("addCaptions"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			details["addCaptions"] = "bool"
		} else {
			req.AddCaptions = &b
		}
	}

	if len(details) > 0 {
		return nil, details
	}
	return req, nil
}

// Status handles GET /api/jobs/:jobId
// @Summary      Get job status
// @Description  Get the state, step and progress of a clip job
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.JobStatusResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs/{jobId} [get]
func (h *JobHandler) Status(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.Status(c.UserContext(), jobID)
	if err != nil {
		return respondError(c, err)
	}

	return response.OK(c, result)
}

// Result handles GET /api/jobs/:jobId/result
// @Summary      Get job result
// @Description  Get the rendered clips of a completed job
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.JobResultResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      409 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs/{jobId}/result [get]
func (h *JobHandler) Result(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.Result(c.UserContext(), jobID)
	if err != nil {
		return respondError(c, err)
	}

	return response.OK(c, result)
}

// Cancel handles POST /api/jobs/:jobId/cancel
// @Summary      Cancel job
// @Description  Ask a queued or processing job to stop at its next stage boundary
// @Tags         Jobs
// @Produce      json
// @Param        jobId path string true "Job ID"
// @Success      200 {object} model.CancelJobResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Failure      500 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/jobs/{jobId}/cancel [post]
func (h *JobHandler) Cancel(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	if jobID == "" {
		return response.ValidationError(c, "Job ID is required", nil)
	}

	result, err := h.service.Cancel(c.UserContext(), jobID)
	if err != nil {
		return respondError(c, err)
	}

	return response.OK(c, result)
}
