package http

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/garyjia/e-approval/internal/domain/apperror"
)

// Response represents a standard JSON response
type Response struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
	ErrorKind string      `json:"error_kind,omitempty"`
}

// statusFor maps an error kind onto an HTTP status
func statusFor(kind apperror.Kind) int {
	switch kind {
	case apperror.KindValidation:
		return http.StatusBadRequest
	case apperror.KindNotFound:
		return http.StatusNotFound
	case apperror.KindForbidden, apperror.KindNotYourTurn:
		return http.StatusForbidden
	case apperror.KindAlreadyProcessed, apperror.KindDocumentNotActionable:
		return http.StatusConflict
	case apperror.KindNoApprovalLineConfigured, apperror.KindInvalidLineDefinition, apperror.KindEmptyApprovalLine:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

func ok(c *gin.Context, status int, data interface{}) {
	c.JSON(status, Response{Success: true, Data: data})
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, Response{
		Success:   false,
		Error:     message,
		ErrorKind: string(apperror.KindValidation),
	})
}

// fail writes a classified error. Internal causes are logged, never returned.
func (h *Handlers) fail(c *gin.Context, err error) {
	kind := apperror.KindOf(err)
	message := err.Error()

	var appErr *apperror.Error
	if errors.As(err, &appErr) && appErr.Message != "" {
		message = appErr.Message
	}
	if kind == apperror.KindInternal {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.String("request_id", requestID(c)),
			zap.Error(err))
		message = "internal server error"
	}

	c.JSON(statusFor(kind), Response{
		Success:   false,
		Error:     message,
		ErrorKind: string(kind),
	})
}
