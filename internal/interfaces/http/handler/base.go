package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/erp/connector/internal/domain/remote"
	"github.com/erp/connector/internal/domain/syncqueue"
	"github.com/erp/connector/internal/interfaces/http/dto"
	"github.com/erp/connector/internal/interfaces/http/middleware"
)

// RequestIDKey is the gin context key set by the request ID middleware
const RequestIDKey = "request_id"

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString(RequestIDKey); id != "" {
		return id
	}
	return c.GetHeader("X-Request-ID")
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// SuccessWithMeta sends a success response with list metadata
func (h *BaseHandler) SuccessWithMeta(c *gin.Context, data any, limit, offset, count int) {
	c.JSON(http.StatusOK, dto.NewSuccessResponseWithMeta(data, limit, offset, count))
}

// Accepted sends a 202 accepted response
func (h *BaseHandler) Accepted(c *gin.Context, data any) {
	c.JSON(http.StatusAccepted, dto.NewSuccessResponse(data))
}

// NoContent sends a 204 no content response
func (h *BaseHandler) NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Error sends an error response with the given error code
func (h *BaseHandler) Error(c *gin.Context, code, message string) {
	requestID := getRequestID(c)
	c.JSON(dto.GetHTTPStatus(code), dto.NewErrorResponseWithRequestID(code, message, requestID))
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeBadRequest, message)
}

// BindingError sends a 400 response with per-field validation details
func (h *BaseHandler) BindingError(c *gin.Context, err error) {
	requestID := getRequestID(c)
	c.JSON(http.StatusBadRequest, middleware.FormatValidationErrors(err, requestID))
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, dto.ErrCodeInternal, message)
}

// HandleError maps domain and gateway errors to HTTP responses
func (h *BaseHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, syncqueue.ErrQueueNotFound),
		errors.Is(err, syncqueue.ErrLineNotFound),
		errors.Is(err, syncqueue.ErrLogBookNotFound),
		errors.Is(err, syncqueue.ErrInstanceNotFound):
		h.Error(c, dto.ErrCodeNotFound, err.Error())
	case errors.Is(err, syncqueue.ErrQueueProcessing):
		h.Error(c, dto.ErrCodeConflict, err.Error())
	case errors.Is(err, syncqueue.ErrInstanceInactive),
		errors.Is(err, syncqueue.ErrQueueNotDraft),
		errors.Is(err, syncqueue.ErrQueueHasLines):
		h.Error(c, dto.ErrCodeInvalidState, err.Error())
	case errors.Is(err, remote.ErrGatewayAuthFailed):
		h.Error(c, dto.ErrCodeRemoteAuth, err.Error())
	case errors.Is(err, remote.ErrGatewayUnavailable),
		errors.Is(err, remote.ErrGatewayRequestFailed),
		errors.Is(err, remote.ErrGatewayInvalidResponse):
		h.Error(c, dto.ErrCodeRemoteUnavailable, err.Error())
	default:
		h.InternalError(c, "An unexpected error occurred")
	}
}
