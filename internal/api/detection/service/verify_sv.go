package detectionService

import (
	"context"
	"strconv"

	"DetectOverlay/internal/api/detection"
	"DetectOverlay/internal/entity"
	"DetectOverlay/pkg/detector"
	"DetectOverlay/pkg/log"
)

const msgVerifying = "Verifying..."

// VerifyCar asks the service whether the image shows a car above threshold.
// It leaves the overlay session alone.
func (s *detectionService) VerifyCar(ctx context.Context, media detector.Media, threshold float64) detection.Outcome {
	out := detection.Outcome{Flow: entity.VerifyFlow}

	if len(media.Data) == 0 {
		s.verifyFlow.reject(msgSelectImage)
		out.State, out.Message, out.Err = entity.FlowFailure, msgSelectImage, detector.ErrNoFileSelected
		return out
	}
	if threshold < 0 || threshold > 1 {
		msg := detection.ErrInvalidThreshold.Error()
		s.verifyFlow.reject(msg)
		out.State, out.Message, out.Err = entity.FlowFailure, msg, detection.ErrInvalidThreshold
		return out
	}

	media.Fields = map[string]string{
		"confidence_threshold": strconv.FormatFloat(threshold, 'f', -1, 64),
	}

	runCtx, gen := s.verifyFlow.begin(ctx, msgVerifying, nil)

	resp, err := s.controller.Submit(runCtx, media, detector.URL(s.endpoint, detector.VerifyPath), detector.VerifyDeadline)

	var result *entity.VerifyResult
	if err == nil {
		result, err = detector.DecodeVerify(resp)
	}

	settled := s.verifyFlow.settle(gen, func() {
		if err != nil {
			msg := imageFailureMessage(err)
			s.verifyFlow.transitionLocked(entity.FlowFailure, msg, false)
			s.verifyFlow.transitionLocked(entity.FlowIdle, msg, false)
			out.State, out.Message, out.Err = entity.FlowFailure, msg, err
			return
		}

		s.verifyFlow.transitionLocked(entity.FlowIdle, result.Message, false)
		out.State, out.Message, out.Verify = entity.FlowIdle, result.Message, result
	})
	if !settled {
		out.State, out.Message, out.Err = entity.FlowFailure, msgSuperseded, detector.ErrSuperseded
		return out
	}

	if out.Err == nil {
		log.WithRequestID(s.log, ctx).WithFields(log.Fields{
			"flow":       entity.VerifyFlow,
			"status":     result.Status,
			"confidence": result.Confidence,
			"threshold":  threshold,
		}).Info("Car verification finished")
	}

	return out
}
