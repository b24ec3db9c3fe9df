package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"salescycle/internal/core/apperror"
	"salescycle/internal/infrastructure/http/v1/dto"
	"salescycle/pkg/logger"
)

// ErrorHandler renders the last handler error as JSON. Internal causes are
// logged and hidden.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		writeError(c, c.Errors.Last().Err)
	}
}

func writeError(c *gin.Context, err error) {
	ctx := c.Request.Context()

	status := http.StatusInternalServerError
	body := dto.ErrorResponse{
		Code:    apperror.CodeInternal,
		Message: "Internal server error",
		Details: map[string]any{"request_id": c.GetString("request_id")},
	}

	if appErr, ok := apperror.AsAppError(err); ok {
		if appErr.Err != nil {
			logger.Error(ctx, "request error", "code", appErr.Code, "cause", appErr.Err)
		}
		if appErr.Code != apperror.CodeInternal {
			status = appErr.HTTPStatus
			body = dto.ErrorResponse{Code: appErr.Code, Message: appErr.Message, Details: appErr.Details}
		}
	} else {
		logger.Error(ctx, "unhandled error", "error", err)
	}

	failIdempotency(c, status, body)
	c.JSON(status, body)
}
