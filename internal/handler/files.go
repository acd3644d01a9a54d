package handler

import (
	"errors"
	"fmt"
	"os"

	"github.com/gofiber/fiber/v2"

	"github.com/clipforge/api/internal/workspace"
	"github.com/clipforge/api/pkg/response"
)

type FileHandler struct {
	workspace *workspace.Manager
}

func NewFileHandler(m *workspace.Manager) *FileHandler {
	return &FileHandler{workspace: m}
}

// Serve handles GET /api/files/:jobId/:filename
// @Summary      Download job artifact
// @Description  Serve a rendered clip, thumbnail, caption file or archive from the job's working directory. Videos are served inline, other files as attachments.
// @Tags         Files
// @Produce      octet-stream
// @Param        jobId    path string true "Job ID"
// @Param        filename path string true "Artifact file name"
// @Success      200 {file} file
// @Failure      400 {object} response.ErrorResponse
// @Failure      401 {object} response.ErrorResponse
// @Failure      404 {object} response.ErrorResponse
// @Security     BearerAuth
// @Router       /api/files/{jobId}/{filename} [get]
func (h *FileHandler) Serve(c *fiber.Ctx) error {
	jobID := c.Params("jobId")
	name := c.Params("filename")

	path, err := h.workspace.File(jobID, name)
	if err != nil {
		if errors.Is(err, workspace.ErrInvalidName) {
			return response.ValidationError(c, "Invalid file name", nil)
		}
		return response.ServiceError(c, err.Error())
	}

	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return response.NotFound(c, "File not found")
	}

	contentType, inline := workspace.ContentType(name)
	disposition := "attachment"
	if inline {
		disposition = "inline"
	}

	if err := c.SendFile(path); err != nil {
		return err
	}
	c.Set(fiber.HeaderContentType, contentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("%s; filename=%q", disposition, name))
	return nil
}
