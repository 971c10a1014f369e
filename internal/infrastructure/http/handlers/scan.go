// Package handlers provides HTTP handlers for the REST API
package handlers

import (
	stderrors "errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/fooder/fooder/internal/infrastructure/http/middleware"
	"github.com/fooder/fooder/internal/ports/inbound"
	"github.com/fooder/fooder/pkg/errors"
)

// ScanHandlers handles image scan requests
type ScanHandlers struct {
	scans  inbound.ScanService
	logger *zap.Logger
}

// NewScanHandlers creates a new scan handlers instance
func NewScanHandlers(scans inbound.ScanService, logger *zap.Logger) *ScanHandlers {
	return &ScanHandlers{
		scans:  scans,
		logger: logger.Named("scan-handler"),
	}
}

// DetectRequest is the body of POST /api/detect-and-find-recipes
type DetectRequest struct {
	Image string `json:"image" binding:"required"`
	Limit int    `json:"limit"`
}

// DetectAndFindRecipes handles POST /api/detect-and-find-recipes
func (h *ScanHandlers) DetectAndFindRecipes(c *gin.Context) {
	var req DetectRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		_ = c.Error(bindError(err))
		return
	}

	result, err := h.scans.ScanImage(c.Request.Context(), inbound.ScanRequest{
		Image: req.Image,
		Limit: req.Limit,
	})
	if err != nil {
		_ = c.Error(err)
		return
	}

	h.logger.Info("Scan completed",
		zap.String("request_id", c.GetString(middleware.RequestIDKey)),
		zap.Int("detected", len(result.DetectedItems)),
		zap.Int("recipes", len(result.Recipes)),
		zap.Float64p("processing_time", result.ProcessingTime),
	)
	c.JSON(http.StatusOK, result)
}

func bindError(err error) *errors.AppError {
	var tooLarge *http.MaxBytesError
	if stderrors.As(err, &tooLarge) {
		return errors.NewAppError(errors.CodePayloadTooLarge, "Request body too large", "").
			WithMetadata("max_bytes", tooLarge.Limit)
	}

	var invalid validator.ValidationErrors
	if stderrors.As(err, &invalid) {
		for _, fe := range invalid {
			if fe.Field() == "Image" {
				return errors.NewBadRequestError("No image provided")
			}
		}
		return errors.NewValidationError(invalid.Error())
	}

	return errors.NewBadRequestError("No image provided").WithCause(err)
}
