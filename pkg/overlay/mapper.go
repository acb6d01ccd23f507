package overlay

import "DetectOverlay/internal/entity"

// Rect is a display-space rectangle.
type Rect struct {
	X, Y, W, H float64
}

// Mapper converts detection-space boxes into display-space rectangles. The two
// axes scale independently, so boxes follow whatever stretch the display applies.
type Mapper struct {
	ScaleX float64
	ScaleY float64
	ok     bool
}

func NewMapper(srcW, srcH, dstW, dstH int) Mapper {
	if srcW <= 0 || srcH <= 0 || dstW <= 0 || dstH <= 0 {
		return Mapper{}
	}
	return Mapper{
		ScaleX: float64(dstW) / float64(srcW),
		ScaleY: float64(dstH) / float64(srcH),
		ok:     true,
	}
}

// Renderable is false when either the source or the target has a zero dimension.
func (m Mapper) Renderable() bool {
	return m.ok
}

func (m Mapper) Map(b entity.BBox) Rect {
	return Rect{
		X: b.X1 * m.ScaleX,
		Y: b.Y1 * m.ScaleY,
		W: (b.X2 - b.X1) * m.ScaleX,
		H: (b.Y2 - b.Y1) * m.ScaleY,
	}
}
