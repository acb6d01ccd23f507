package detectionHandler

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"DetectOverlay/internal/api/detection"
	contextPkg "DetectOverlay/pkg/context"
	"DetectOverlay/pkg/detector"
	"DetectOverlay/pkg/handlerUtil"
	"DetectOverlay/pkg/log"
	"DetectOverlay/pkg/overlay"
	"DetectOverlay/pkg/utils"
	"github.com/gofiber/fiber/v2"
)

const (
	overlayTimeout     = 15 * time.Second
	defaultVerifyLevel = 0.5
)

func (h *DetectionHandler) DetectImage(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c := contextPkg.FromFiberCtx(h.background, ctx)

	errHandler := handlerUtil.New(h.log)

	h.log.WithFields(log.Fields{
		"request_id": requestID,
		"path":       ctx.Path(),
	}).Debug("Processing image detection request")

	var media detector.Media
	file, err := ctx.FormFile("file")
	if err == nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"file_name":  file.Filename,
			"file_size":  file.Size,
		}).Debug("Processing file upload")

		if err := h.utils.ValidateImageFile(file); err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "validate_image_file")
		}

		data, err := h.utils.ReadFormFile(file)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_file")
		}
		media = detector.Media{Filename: file.Filename, Data: data}
	}

	outcome := h.detectionService.DetectImage(c, media)
	if outcome.Err != nil {
		return errHandler.HandleFlowFailure(ctx, requestID, outcome, ctx.Path())
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.ImageDetectionResponse{
		State:      outcome.State,
		Message:    outcome.Message,
		Detections: len(outcome.Result.Detections),
		Result:     outcome.Result,
	})
}

// RenderOverlay treats width/height as a resize of the viewer and answers with
// the redrawn overlay as PNG.
func (h *DetectionHandler) RenderOverlay(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c, cancel := context.WithTimeout(contextPkg.FromFiberCtx(h.background, ctx), overlayTimeout)
	defer cancel()

	errHandler := handlerUtil.New(h.log)

	var req detection.OverlayRequest
	if err := ctx.QueryParser(&req); err != nil {
		return errHandler.Handle(ctx, requestID, fmt.Errorf("%w: %v", detection.ErrBadRequest, err), ctx.Path(), "parse_overlay_query")
	}
	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	if ctx.Query("width") != "" && ctx.Query("height") != "" {
		h.detectionService.Resize(req.Width, req.Height)
	}

	var (
		body  []byte
		boxes int
	)
	if req.Composite {
		png, err := h.detectionService.CompositeOverlay(c)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "composite_overlay")
		}
		body = png
		boxes = -1
	} else {
		frame, err := h.detectionService.RenderOverlay(c)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "render_overlay")
		}
		png, err := overlay.EncodePNG(frame.Image)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "encode_overlay")
		}
		body = png
		boxes = len(frame.Boxes)
	}

	if boxes >= 0 {
		ctx.Set("X-Detection-Boxes", strconv.Itoa(boxes))
	}
	ctx.Set(fiber.HeaderContentType, "image/png")
	return ctx.Status(fiber.StatusOK).Send(body)
}

func (h *DetectionHandler) GetResult(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	result := h.detectionService.Result()
	if result == nil {
		return errHandler.Handle(ctx, requestID, detection.ErrNoResult, ctx.Path(), "get_result")
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, result)
}

func (h *DetectionHandler) TrackVideo(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c := contextPkg.FromFiberCtx(h.background, ctx)

	errHandler := handlerUtil.New(h.log)

	var media detector.Media
	file, err := ctx.FormFile("file")
	if err == nil {
		h.log.WithFields(log.Fields{
			"request_id": requestID,
			"path":       ctx.Path(),
			"file_name":  file.Filename,
			"file_size":  file.Size,
		}).Debug("Processing video upload")

		// unsupported containers are rejected by the flow itself
		if err := h.utils.ValidateVideoFile(file); errors.Is(err, utils.ErrFileTooLarge) {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "validate_video_file")
		}

		data, err := h.utils.ReadFormFile(file)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_file")
		}
		media = detector.Media{Filename: file.Filename, Data: data}
	}

	outcome := h.detectionService.TrackVideo(c, media)
	if outcome.Err != nil {
		return errHandler.HandleFlowFailure(ctx, requestID, outcome, ctx.Path())
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.VideoTrackResponse{
		State:   outcome.State,
		Message: outcome.Message,
		Source:  outcome.Source,
	})
}

func (h *DetectionHandler) GetPlayback(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	errHandler := handlerUtil.New(h.log)

	blob, err := h.detectionService.Playback(ctx.Params("id"))
	if err != nil {
		return errHandler.Handle(ctx, requestID, err, ctx.Path(), "get_playback")
	}

	ctx.Set(fiber.HeaderContentType, blob.ContentType)
	return ctx.Status(fiber.StatusOK).Send(blob.Data)
}

func (h *DetectionHandler) VerifyCar(ctx *fiber.Ctx) error {
	requestID := h.middleware.GetRequestID(ctx)
	c := contextPkg.FromFiberCtx(h.background, ctx)

	errHandler := handlerUtil.New(h.log)

	req := detection.VerifyRequest{ConfidenceThreshold: defaultVerifyLevel}
	if raw := ctx.FormValue("confidence_threshold"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
		}
		req.ConfidenceThreshold = v
	}
	if err := h.validator.Struct(req); err != nil {
		return errHandler.HandleValidationError(ctx, requestID, err, ctx.Path())
	}

	var media detector.Media
	file, err := ctx.FormFile("file")
	if err == nil {
		if err := h.utils.ValidateImageFile(file); err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "validate_image_file")
		}

		data, err := h.utils.ReadFormFile(file)
		if err != nil {
			return errHandler.Handle(ctx, requestID, err, ctx.Path(), "read_file")
		}
		media = detector.Media{Filename: file.Filename, Data: data}
	}

	outcome := h.detectionService.VerifyCar(c, media, req.ConfidenceThreshold)
	if outcome.Err != nil {
		return errHandler.HandleFlowFailure(ctx, requestID, outcome, ctx.Path())
	}

	return errHandler.HandleSuccess(ctx, fiber.StatusOK, detection.VerifyResponse{
		State:   outcome.State,
		Message: outcome.Message,
		Data:    outcome.Verify,
	})
}
