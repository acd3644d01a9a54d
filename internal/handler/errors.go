package handler

import (
	"errors"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/clipforge/api/internal/apperr"
	"github.com/clipforge/api/internal/service"
	"github.com/clipforge/api/pkg/response"
)

// respondError maps service errors onto the API error envelope.
func respondError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, service.ErrJobNotReady):
		return response.Conflict(c, response.CodeJobNotReady, "Job not completed yet")
	case errors.Is(err, service.ErrJobFailed):
		return response.Conflict(c, response.CodeJobFailed, "Job failed")
	}

	var appErr *apperr.Error
	if !errors.As(err, &appErr) {
		log.Printf("Request %s %s failed: %v", c.Method(), c.Path(), err)
		return response.ServiceError(c, "Internal server error")
	}
	switch appErr.Kind {
	case apperr.KindValidation:
		return response.ValidationError(c, appErr.Message, nil)
	case apperr.KindNotFound:
		return response.NotFound(c, appErr.Message)
	case apperr.KindStorage:
		log.Printf("Request %s %s storage failure: %v", c.Method(), c.Path(), err)
		return response.StorageError(c, "Storage unavailable")
	default:
		log.Printf("Request %s %s failed: %v", c.Method(), c.Path(), err)
		return response.Error(c, fiber.StatusInternalServerError, apperr.Code(appErr.Kind), appErr.Message, nil)
	}
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
