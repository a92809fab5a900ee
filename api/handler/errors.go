package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/scrapedesk/backend"
	"github.com/use-agent/scrapedesk/models"
	"github.com/use-agent/scrapedesk/projector"
)

// respondError writes err as a failed API response. AppErrors keep their
// code; backend errors surface with the backend's message; anything else is
// an internal error.
func respondError(c *gin.Context, err error) {
	appErr := toAppError(err)
	status := mapErrorToStatus(appErr)
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "code", appErr.Code, "error", err)
	}
	c.JSON(status, models.ErrorResponse{
		Success: false,
		Error:   appErr.ToDetail(),
	})
}

// invalidInput answers 400 for a request that failed binding.
func invalidInput(c *gin.Context, err error) {
	respondError(c, models.NewAppError(models.ErrCodeInvalidInput, err.Error(), err))
}

func toAppError(err error) *models.AppError {
	var be *backend.Error
	if errors.As(err, &be) && !isAppError(err) {
		code := models.ErrCodeBackendError
		if be.StatusCode == http.StatusNotFound {
			code = models.ErrCodeNotFound
		}
		return models.NewAppError(code, be.Message(), err)
	}

	var appErr *models.AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	if errors.Is(err, projector.ErrNoColumns) || errors.Is(err, projector.ErrNothingToExport) {
		return models.NewAppError(models.ErrCodeExportRefused, err.Error(), err)
	}
	return models.NewAppError(models.ErrCodeInternal, err.Error(), err)
}

func isAppError(err error) bool {
	var appErr *models.AppError
	return errors.As(err, &appErr)
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.AppError) int {
	switch e.Code {
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeNotFound:
		return http.StatusNotFound // 404
	case models.ErrCodeNoActiveOperation, models.ErrCodeNoSession:
		return http.StatusConflict // 409
	case models.ErrCodeExportRefused:
		return http.StatusUnprocessableEntity // 422
	case models.ErrCodeRateLimited:
		return http.StatusTooManyRequests // 429
	case models.ErrCodeBackendError, models.ErrCodeBackendUnreachable:
		return http.StatusBadGateway // 502
	default:
		return http.StatusInternalServerError // 500
	}
}
