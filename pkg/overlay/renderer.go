package overlay

import (
	"context"
	"errors"
	"fmt"
	"image/color"
	"math"
	"time"

	"DetectOverlay/internal/entity"
	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

const (
	strokeWidth      = 3
	labelHeight      = 20
	labelPadding     = 10
	labelInset       = 5
	labelPrefix      = "Car"
	defaultFrameTick = 16 * time.Millisecond
)

var (
	StrokeColor     = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	FillColor       = color.NRGBA{R: 0, G: 255, B: 0, A: 51}
	LabelBackground = color.RGBA{R: 0, G: 255, B: 0, A: 255}
	LabelColor      = color.Black
)

var ErrTargetNotReady = errors.New("render target has no size")

// RenderTarget is the element the overlay must line up with. Its size is read
// on every pass because it depends on layout.
type RenderTarget interface {
	Size() (int, int)
}

// LayoutNotifier is implemented by targets that can signal size changes.
type LayoutNotifier interface {
	Changed() <-chan struct{}
}

// Box is one detection as drawn, in display pixels.
type Box struct {
	Rect       Rect
	Label      Rect
	Text       string
	Confidence float64
}

// Frame describes one completed render pass.
type Frame struct {
	Width  int
	Height int
	Boxes  []Box
}

type Renderer struct {
	clock         clock.Clock
	frameInterval time.Duration
	maxDeferrals  int
	log           *logrus.Logger
}

type RendererOption func(*Renderer)

func WithClock(c clock.Clock) RendererOption {
	return func(r *Renderer) {
		r.clock = c
	}
}

func WithFrameInterval(d time.Duration) RendererOption {
	return func(r *Renderer) {
		if d > 0 {
			r.frameInterval = d
		}
	}
}

// WithMaxDeferrals caps how many times a pass is postponed while the target
// has no size. Zero means no cap.
func WithMaxDeferrals(n int) RendererOption {
	return func(r *Renderer) {
		if n >= 0 {
			r.maxDeferrals = n
		}
	}
}

func WithLogger(l *logrus.Logger) RendererOption {
	return func(r *Renderer) {
		r.log = l
	}
}

func NewRenderer(opts ...RendererOption) *Renderer {
	r := &Renderer{
		clock:         clock.New(),
		frameInterval: defaultFrameTick,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.log == nil {
		r.log = logrus.StandardLogger()
	}
	return r
}

// LabelText formats the caption drawn above a box.
func LabelText(confidence float64) string {
	return fmt.Sprintf("%s %d%%", labelPrefix, int(math.Round(confidence*100)))
}

// Draw resizes the surface to w x h, which wipes it, and draws every detection
// in list order. Results without source dimensions draw nothing.
func (r *Renderer) Draw(s Surface, w, h int, res *entity.DetectionResult) Frame {
	s.Resize(w, h)
	frame := Frame{Width: w, Height: h}

	if res == nil {
		return frame
	}

	m := NewMapper(res.ImageWidth, res.ImageHeight, w, h)
	if !m.Renderable() {
		r.log.WithFields(logrus.Fields{
			"image_width":  res.ImageWidth,
			"image_height": res.ImageHeight,
			"target":       fmt.Sprintf("%dx%d", w, h),
		}).Warn("Skipping overlay for result without usable dimensions")
		return frame
	}

	frame.Boxes = make([]Box, 0, len(res.Detections))
	for _, d := range res.Detections {
		rect := m.Map(d.BBox)
		text := LabelText(d.Confidence)

		s.StrokeRect(rect, StrokeColor, strokeWidth)
		s.FillRect(rect, FillColor)

		label := Rect{
			X: rect.X,
			Y: rect.Y - labelHeight,
			W: s.MeasureText(text) + labelPadding,
			H: labelHeight,
		}
		s.FillRect(label, LabelBackground)
		s.FillText(text, rect.X+labelInset, rect.Y-labelInset, LabelColor)

		frame.Boxes = append(frame.Boxes, Box{
			Rect:       rect,
			Label:      label,
			Text:       text,
			Confidence: d.Confidence,
		})
	}

	return frame
}

// Render draws the result returned by current onto s once target has a size.
// It returns nil without drawing when there is no result.
func (r *Renderer) Render(ctx context.Context, s Surface, target RenderTarget, current func() *entity.DetectionResult) (*Frame, error) {
	res, w, h, err := r.Await(ctx, target, current)
	if err != nil || res == nil {
		return nil, err
	}
	frame := r.Draw(s, w, h, res)
	return &frame, nil
}

// Await blocks until target reports a nonzero size and returns the result to
// draw with that size. While the target has zero width or height the pass is
// postponed to the next frame tick or layout change, whichever comes first.
// current is re-read on every attempt, so a result cleared in the meantime
// ends the wait with a nil result.
func (r *Renderer) Await(ctx context.Context, target RenderTarget, current func() *entity.DetectionResult) (*entity.DetectionResult, int, int, error) {
	for attempt := 0; ; attempt++ {
		res := current()
		if res == nil {
			return nil, 0, 0, nil
		}

		w, h := target.Size()
		if w > 0 && h > 0 {
			return res, w, h, nil
		}

		if r.maxDeferrals > 0 && attempt >= r.maxDeferrals {
			r.log.WithFields(logrus.Fields{
				"attempts": attempt,
			}).Warn("Render target never got a size")
			return nil, 0, 0, ErrTargetNotReady
		}

		if err := r.waitForLayout(ctx, target); err != nil {
			return nil, 0, 0, err
		}
	}
}

func (r *Renderer) waitForLayout(ctx context.Context, target RenderTarget) error {
	var changed <-chan struct{}
	if n, ok := target.(LayoutNotifier); ok {
		changed = n.Changed()
	}

	timer := r.clock.Timer(r.frameInterval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
	case <-changed:
	}
	return nil
}
