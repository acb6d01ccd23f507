package session

import (
	"context"
	"errors"
	"image"
	"sync"

	"DetectOverlay/internal/entity"
	"DetectOverlay/pkg/overlay"
	"github.com/sirupsen/logrus"
)

// Frame is a completed render pass together with the surface pixels it left.
type Frame struct {
	overlay.Frame
	Image *image.RGBA
}

// Session holds the most recent detection result and redraws it on demand.
// Boxes are kept in source pixels only, so every display change recomputes
// them. SetResult is the single writer of detection state.
type Session struct {
	mu     sync.RWMutex
	result *entity.DetectionResult
	last   overlay.Frame

	renderMu sync.Mutex
	renderer *overlay.Renderer
	canvas   *overlay.Canvas
	target   overlay.RenderTarget
	log      *logrus.Logger

	subMu  sync.Mutex
	subs   map[int]chan Frame
	nextID int
}

func New(log *logrus.Logger, renderer *overlay.Renderer, canvas *overlay.Canvas, target overlay.RenderTarget) *Session {
	return &Session{
		renderer: renderer,
		canvas:   canvas,
		target:   target,
		log:      log,
		subs:     make(map[int]chan Frame),
	}
}

func (s *Session) SetResult(r *entity.DetectionResult) {
	s.mu.Lock()
	s.result = r
	s.mu.Unlock()
}

func (s *Session) Result() *entity.DetectionResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.result
}

// Clear drops the held result and wipes the surface, so no stale box stays
// visible while a new submission is in flight.
func (s *Session) Clear() {
	s.renderMu.Lock()

	s.mu.Lock()
	s.result = nil
	w, h := s.canvas.Size()
	s.last = overlay.Frame{Width: w, Height: h}
	s.mu.Unlock()

	s.canvas.Clear()
	frame := Frame{Frame: overlay.Frame{Width: w, Height: h}, Image: s.canvas.Image()}
	s.renderMu.Unlock()

	s.publish(frame)
}

// LastFrame describes what is currently drawn on the surface.
func (s *Session) LastFrame() overlay.Frame {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.last
}

func (s *Session) Snapshot() *image.RGBA {
	return s.canvas.Image()
}

// RequestRender draws the held result against the target's current size. It is
// a no-op without a result and waits while the target has no size.
func (s *Session) RequestRender(ctx context.Context) (*Frame, error) {
	for {
		res, _, _, err := s.renderer.Await(ctx, s.target, s.Result)
		if err != nil || res == nil {
			return nil, err
		}

		s.renderMu.Lock()
		w, h := s.target.Size()
		if s.Result() != res || w == 0 || h == 0 {
			// result or layout moved while waiting
			s.renderMu.Unlock()
			continue
		}

		drawn := s.renderer.Draw(s.canvas, w, h, res)
		frame := Frame{Frame: drawn, Image: s.canvas.Image()}

		s.mu.Lock()
		s.last = drawn
		s.mu.Unlock()
		s.renderMu.Unlock()

		s.publish(frame)
		return &frame, nil
	}
}

// Watch redraws on every layout change of the target until ctx is done.
func (s *Session) Watch(ctx context.Context) {
	n, ok := s.target.(overlay.LayoutNotifier)
	if !ok {
		return
	}

	for {
		changed := n.Changed()
		select {
		case <-ctx.Done():
			return
		case <-changed:
		}

		if s.Result() == nil {
			continue
		}

		if _, err := s.RequestRender(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.WithFields(logrus.Fields{
				"error": err.Error(),
			}).Warn("Redraw after layout change failed")
		}
	}
}

// Subscribe returns a channel of rendered frames. A slow reader only ever sees
// the latest frame.
func (s *Session) Subscribe() (<-chan Frame, func()) {
	ch := make(chan Frame, 1)

	s.subMu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			delete(s.subs, id)
			close(ch)
			s.subMu.Unlock()
		})
	}
}

func (s *Session) publish(f Frame) {
	s.subMu.Lock()
	defer s.subMu.Unlock()

	for _, ch := range s.subs {
		select {
		case ch <- f:
			continue
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- f:
		default:
		}
	}
}
