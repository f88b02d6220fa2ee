package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fundsync/internal/errors"
	"fundsync/internal/logging"
)

// errorResponse is the wire shape of an API error.
type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ErrorHandler converts errors attached to the context into responses:
// the status comes from AppError.HTTPStatus (invalid input and validation
// errors 400, NotFound 404, timeout 408, rate limit 429); any other error,
// including one that is not an AppError, maps to 500.
func ErrorHandler(logger *logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 {
			return
		}
		err := c.Errors.Last().Err

		appErr := errors.GetAppError(err)
		if appErr == nil {
			appErr = errors.WrapError(err, errors.ErrCodeInternal, "internal server error")
		}

		if appErr.HTTPStatus() >= http.StatusInternalServerError {
			logger.WithError(err).WithField("path", c.Request.URL.Path).Error("request failed")
		}

		c.AbortWithStatusJSON(appErr.HTTPStatus(), errorResponse{
			Code:    string(appErr.Code),
			Message: appErr.Message,
		})
	}
}
