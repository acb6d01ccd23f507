package detectionService

import (
	"context"

	"DetectOverlay/internal/api/detection"
	"DetectOverlay/internal/entity"
	"DetectOverlay/pkg/overlay"
	"DetectOverlay/pkg/session"
)

// Resize records a new viewport size. The session's watcher redraws the
// overlay in response.
func (s *detectionService) Resize(width, height int) {
	s.display.Resize(width, height)
}

// RenderOverlay draws the held result against the current display size.
func (s *detectionService) RenderOverlay(ctx context.Context) (*session.Frame, error) {
	if s.session.Result() == nil {
		return nil, detection.ErrNoResult
	}

	frame, err := s.session.RequestRender(ctx)
	if err != nil {
		return nil, err
	}
	if frame == nil {
		// cleared while waiting for layout
		return nil, detection.ErrNoResult
	}
	return frame, nil
}

// CompositeOverlay renders the overlay and flattens it over the media, both
// stretched to the display size.
func (s *detectionService) CompositeOverlay(ctx context.Context) ([]byte, error) {
	frame, err := s.RenderOverlay(ctx)
	if err != nil {
		return nil, err
	}

	media := s.display.Media()
	if media == nil {
		return nil, detection.ErrMediaNotDecoded
	}

	return overlay.EncodePNG(overlay.Composite(media, frame.Image))
}

func (s *detectionService) Result() *entity.DetectionResult {
	return s.session.Result()
}
