package detectionService

import (
	"context"
	"errors"

	"DetectOverlay/internal/api/detection"
	"DetectOverlay/internal/entity"
	"DetectOverlay/pkg/detector"
	"DetectOverlay/pkg/log"
	"DetectOverlay/pkg/playback"
	"DetectOverlay/pkg/utils"
)

const (
	msgSelectVideo      = "Please select a video"
	msgUnsupportedVideo = "Unsupported video format."
	msgProcessingVideo  = "Processing video..."
	msgVideoTimeout     = "Video processing timed out. Please try with a shorter video."
	msgVideoReady       = "Video ready."
)

// TrackVideo submits a video for tracking and hands the processed payload to
// the player. The payload is opaque: it is never parsed. The previous video is
// taken down as soon as a new submission starts and stays down if it fails.
func (s *detectionService) TrackVideo(ctx context.Context, media detector.Media) detection.Outcome {
	out := detection.Outcome{Flow: entity.VideoFlow}

	if len(media.Data) == 0 {
		s.videoFlow.reject(msgSelectVideo)
		out.State, out.Message, out.Err = entity.FlowFailure, msgSelectVideo, detector.ErrNoFileSelected
		return out
	}
	if !utils.IsVideoFilename(media.Filename) {
		s.videoFlow.reject(msgUnsupportedVideo)
		out.State, out.Message, out.Err = entity.FlowFailure, msgUnsupportedVideo, detection.ErrUnsupportedMedia
		return out
	}

	runCtx, gen := s.videoFlow.begin(ctx, msgProcessingVideo, s.player.Clear)

	resp, err := s.controller.Submit(runCtx, media, detector.URL(s.endpoint, detector.VideoPath), detector.VideoDeadline)

	settled := s.videoFlow.settle(gen, func() {
		if err == nil {
			var id string
			id, _, err = s.store.Create(resp.Body, resp.ContentType)
			if err == nil {
				out.Source = s.player.SetSource(id)
			}
		}

		if err != nil {
			msg := videoFailureMessage(err)
			s.videoFlow.transitionLocked(entity.FlowFailure, msg, false)
			s.videoFlow.transitionLocked(entity.FlowIdle, msg, false)
			out.State, out.Message, out.Err = entity.FlowFailure, msg, err
			return
		}

		s.videoFlow.transitionLocked(entity.FlowPlayable, msgVideoReady, false)
		s.videoFlow.transitionLocked(entity.FlowIdle, msgVideoReady, false)
		out.State, out.Message = entity.FlowPlayable, msgVideoReady
	})
	if !settled {
		out.State, out.Message, out.Err = entity.FlowFailure, msgSuperseded, detector.ErrSuperseded
		return out
	}

	fields := log.Fields{
		"flow":      entity.VideoFlow,
		"file_name": media.Filename,
	}
	if out.Err != nil {
		fields["error"] = out.Err.Error()
		log.WithRequestID(s.log, ctx).WithFields(fields).Warn("Video tracking failed")
	} else {
		fields["source"] = out.Source
		fields["bytes"] = len(resp.Body)
		log.WithRequestID(s.log, ctx).WithFields(fields).Info("Video tracking successful")
	}

	return out
}

func (s *detectionService) Playback(id string) (*playback.Blob, error) {
	blob, err := s.store.Get(id)
	if errors.Is(err, playback.ErrNotFound) {
		return nil, detection.ErrPlaybackNotFound
	}
	return blob, err
}

func videoFailureMessage(err error) string {
	if errors.Is(err, detector.ErrTimeout) {
		return msgVideoTimeout
	}
	return "Error processing video: " + err.Error()
}
