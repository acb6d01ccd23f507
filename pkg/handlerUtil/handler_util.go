package handlerUtil

import (
	"context"
	"errors"

	"DetectOverlay/internal/api/detection"
	"DetectOverlay/pkg/detector"
	"DetectOverlay/pkg/log"
	"DetectOverlay/pkg/overlay"
	"DetectOverlay/pkg/response"
	"DetectOverlay/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details string `json:"details,omitempty"`
}

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

type mapped struct {
	status  int
	code    string
	message string
	warn    bool
}

// classify maps an error from the detection stack to an HTTP answer.
func classify(err error) mapped {
	var respErr *response.Error
	var serverErr *detector.ServerError
	var fiberErr *fiber.Error

	switch {
	case errors.As(err, &respErr):
		return mapped{respErr.Code, "", err.Error(), true}
	case errors.As(err, &fiberErr):
		return mapped{fiberErr.Code, "", fiberErr.Message, true}
	case errors.Is(err, detector.ErrNoFileSelected), errors.Is(err, utils.ErrNoFile):
		return mapped{fiber.StatusBadRequest, "NO_FILE_SELECTED", "No file selected", true}
	case errors.Is(err, utils.ErrFileTooLarge):
		return mapped{fiber.StatusRequestEntityTooLarge, "FILE_TOO_LARGE", "File too large", true}
	case errors.Is(err, utils.ErrNotAnImage):
		return mapped{fiber.StatusBadRequest, "INVALID_FILE_TYPE", "Invalid file type. Only images are allowed.", true}
	case errors.Is(err, utils.ErrUnsupportedVideo):
		return mapped{fiber.StatusBadRequest, "UNSUPPORTED_VIDEO", "Unsupported video format.", true}
	case errors.Is(err, detector.ErrTimeout):
		return mapped{fiber.StatusGatewayTimeout, "TIMEOUT", "Detection service timed out", true}
	case errors.As(err, &serverErr):
		return mapped{fiber.StatusBadGateway, "SERVER_ERROR", serverErr.Error(), true}
	case errors.Is(err, detector.ErrNetwork):
		return mapped{fiber.StatusBadGateway, "NETWORK_ERROR", "Detection service unreachable", false}
	case errors.Is(err, detector.ErrInvalidPayload):
		return mapped{fiber.StatusBadGateway, "INVALID_PAYLOAD", "Detection service returned an invalid payload", false}
	case errors.Is(err, detector.ErrSuperseded):
		return mapped{fiber.StatusConflict, "SUPERSEDED", "Superseded by a newer submission", true}
	case errors.Is(err, overlay.ErrTargetNotReady):
		return mapped{fiber.StatusConflict, "TARGET_NOT_READY", "Display has no size yet", true}
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return mapped{fiber.StatusRequestTimeout, "CANCELLED", "Request cancelled", true}
	}

	return mapped{fiber.StatusInternalServerError, "", "An unexpected error occurred", false}
}

// Status returns the HTTP status an error maps to.
func Status(err error) int {
	return classify(err).status
}

func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	m := classify(err)

	if m.warn {
		entry := h.logger.WithFields(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
			"code":       m.status,
			"path":       path,
			"operation":  operation,
		})
		entry.Warn("Operation failed with error response")

		return c.Status(m.status).JSON(ErrorResponse{
			Error: m.message,
			Code:  m.code,
		})
	}

	traceID := log.ErrorWithTraceID(h.logger, log.Fields{
		log.RequestIDKey: requestID,
		"error":          err.Error(),
		"code":           m.status,
		"path":           path,
		"operation":      operation,
	}, "Unexpected error")

	return c.Status(m.status).JSON(ErrorResponse{
		Error:   m.message,
		Code:    m.code,
		Details: "trace_id: " + traceID,
	})
}

// HandleFlowFailure answers a flow run that ended in failure with the flow's
// own user-facing message.
func (h *ErrorHandler) HandleFlowFailure(c *fiber.Ctx, requestID string, outcome detection.Outcome, path string) error {
	m := classify(outcome.Err)

	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      outcome.Err.Error(),
		"code":       m.status,
		"path":       path,
		"flow":       outcome.Flow,
	}).Warn("Flow ended in failure")

	return c.Status(m.status).JSON(detection.FlowFailureResponse{
		State:   outcome.State,
		Message: outcome.Message,
		Error:   m.message,
	})
}

func (h *ErrorHandler) HandleValidationError(c *fiber.Ctx, requestID string, err error, path string) error {
	h.logger.WithFields(log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
	}).Warn("Validation failed")

	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Validation failed: " + err.Error(),
		"code":  "VALIDATION_ERROR",
	})
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
