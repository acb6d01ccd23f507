package detectionService

import (
	"context"
	"errors"
	"fmt"

	"DetectOverlay/internal/api/detection"
	"DetectOverlay/internal/entity"
	"DetectOverlay/pkg/detector"
	"DetectOverlay/pkg/log"
)

var ErrMediaNotLoaded = errors.New("media has no natural dimensions")

const (
	msgSelectImage   = "Please select an image"
	msgProcessing    = "Processing..."
	msgImageTimeout  = "Request timed out. Please try again."
	msgErrorOccurred = "Error occurred."
	msgSuperseded    = "Superseded by a newer submission."
)

// DetectImage submits one image, stores the result in the session and renders
// it once the image has loaded. Any previous overlay is wiped before the
// request goes out.
func (s *detectionService) DetectImage(ctx context.Context, media detector.Media) detection.Outcome {
	out := detection.Outcome{Flow: entity.ImageFlow}

	if len(media.Data) == 0 {
		s.imageFlow.reject(msgSelectImage)
		out.State, out.Message, out.Err = entity.FlowFailure, msgSelectImage, detector.ErrNoFileSelected
		return out
	}

	runCtx, gen := s.imageFlow.begin(ctx, msgProcessing, func() {
		s.session.Clear()
		s.display.Load(media.Data)
	})

	resp, err := s.controller.Submit(runCtx, media, detector.URL(s.endpoint, detector.ImagePath), detector.ImageDeadline)

	var result *entity.DetectionResult
	if err == nil {
		result, err = detector.DecodeDetection(resp)
	}

	settled := s.imageFlow.settle(gen, func() {
		if err != nil {
			msg := imageFailureMessage(err)
			s.imageFlow.transitionLocked(entity.FlowFailure, msg, false)
			s.imageFlow.transitionLocked(entity.FlowIdle, msg, false)
			out.State, out.Message, out.Err = entity.FlowFailure, msg, err
			return
		}

		s.session.SetResult(result)
		msg := fmt.Sprintf("Detected %d cars.", len(result.Detections))
		s.imageFlow.transitionLocked(entity.FlowRendering, msg, false)
		out.Rendered = s.renderWhenLoaded(gen)
		s.imageFlow.transitionLocked(entity.FlowIdle, msg, false)
		out.State, out.Message, out.Result = entity.FlowRendering, msg, result
	})
	if !settled {
		out.State, out.Message, out.Err = entity.FlowFailure, msgSuperseded, detector.ErrSuperseded
		return out
	}

	if out.Err != nil {
		log.WithRequestID(s.log, ctx).WithFields(log.Fields{
			"flow":  entity.ImageFlow,
			"error": out.Err.Error(),
		}).Warn("Image detection failed")
	} else {
		log.WithRequestID(s.log, ctx).WithFields(log.Fields{
			"flow":         entity.ImageFlow,
			"detections":   len(result.Detections),
			"image_width":  result.ImageWidth,
			"image_height": result.ImageHeight,
		}).Info("Image detection successful")
	}

	return out
}

// renderWhenLoaded waits for the display to finish loading the submitted
// image, then draws the session's result. It is tied to the service lifetime
// rather than the request, so a later timeout elsewhere does not stop it.
func (s *detectionService) renderWhenLoaded(gen uint64) <-chan error {
	done := make(chan error, 1)
	loaded := s.display.Loaded()

	go func() {
		defer close(done)

		select {
		case <-loaded:
		case <-s.background.Done():
			done <- s.background.Err()
			return
		}

		if !s.display.Complete() {
			s.log.WithFields(log.Fields{
				"gen":   gen,
				"error": fmt.Sprint(s.display.LoadErr()),
			}).Warn("Image did not load; overlay not drawn")
			done <- ErrMediaNotLoaded
			return
		}

		_, err := s.session.RequestRender(s.background)
		done <- err
	}()

	return done
}

func imageFailureMessage(err error) string {
	var serverErr *detector.ServerError
	switch {
	case errors.Is(err, detector.ErrTimeout):
		return msgImageTimeout
	case errors.As(err, &serverErr):
		return "Error: " + serverErr.Error()
	default:
		return msgErrorOccurred
	}
}
