package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/clearpath/claims/internal/apperror"
)

// Response is the standard JSON envelope
type Response struct {
	Success    bool                 `json:"success"`
	Data       any                  `json:"data,omitempty"`
	Error      string               `json:"error,omitempty"`
	Code       string               `json:"code,omitempty"`
	Violations []apperror.Violation `json:"violations,omitempty"`
}

func respondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, Response{Success: true, Data: data})
}

func respondCreated(c *gin.Context, data any) {
	c.JSON(http.StatusCreated, Response{Success: true, Data: data})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{Success: false, Error: message})
}

// respondError maps the domain error taxonomy onto HTTP statuses. Unclassified
// errors become opaque 500s so internals never leak to clients.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	if appErr, ok := apperror.AsError(err); ok {
		c.JSON(appErr.HTTPStatus, Response{
			Success:    false,
			Error:      appErr.Message,
			Code:       string(appErr.Kind),
			Violations: appErr.Violations,
		})
		return
	}

	logger.Error("Unhandled request error",
		zap.String("path", c.Request.URL.Path),
		zap.Error(err))
	c.JSON(http.StatusInternalServerError, Response{
		Success: false,
		Error:   "internal server error",
	})
}
