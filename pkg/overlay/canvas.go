package overlay

import (
	"image"
	"image/color"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font/gofont/gobold"
)

const labelFontSize = 16

var labelFont *truetype.Font

func init() {
	var err error
	labelFont, err = truetype.Parse(gobold.TTF)
	if err != nil {
		panic(err)
	}
}

// Surface is the drawing target of the renderer.
type Surface interface {
	// Resize sets the surface dimensions and discards everything drawn so far.
	Resize(w, h int)
	Size() (int, int)
	StrokeRect(r Rect, c color.Color, lineWidth float64)
	FillRect(r Rect, c color.Color)
	MeasureText(s string) float64
	// FillText draws s with its baseline at y.
	FillText(s string, x, y float64, c color.Color)
}

// Canvas is a transparent RGBA Surface backed by gg.
type Canvas struct {
	mu sync.Mutex
	dc *gg.Context
}

func NewCanvas() *Canvas {
	c := &Canvas{}
	c.Resize(0, 0)
	return c
}

func (c *Canvas) Resize(w, h int) {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}

	dc := gg.NewContext(w, h)
	dc.SetFontFace(truetype.NewFace(labelFont, &truetype.Options{Size: labelFontSize}))

	c.mu.Lock()
	c.dc = dc
	c.mu.Unlock()
}

// Clear wipes the surface while keeping its size.
func (c *Canvas) Clear() {
	w, h := c.Size()
	c.Resize(w, h)
}

func (c *Canvas) Size() (int, int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dc.Width(), c.dc.Height()
}

func (c *Canvas) StrokeRect(r Rect, col color.Color, lineWidth float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dc.SetColor(col)
	c.dc.SetLineWidth(lineWidth)
	c.dc.DrawRectangle(r.X, r.Y, r.W, r.H)
	c.dc.Stroke()
}

func (c *Canvas) FillRect(r Rect, col color.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dc.SetColor(col)
	c.dc.DrawRectangle(r.X, r.Y, r.W, r.H)
	c.dc.Fill()
}

func (c *Canvas) MeasureText(s string) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()

	w, _ := c.dc.MeasureString(s)
	return w
}

func (c *Canvas) FillText(s string, x, y float64, col color.Color) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.dc.SetColor(col)
	c.dc.DrawString(s, x, y)
}

// Image returns a copy of the surface pixels.
func (c *Canvas) Image() *image.RGBA {
	c.mu.Lock()
	defer c.mu.Unlock()

	src := c.dc.Image()
	dst := image.NewRGBA(src.Bounds())
	if rgba, ok := src.(*image.RGBA); ok {
		copy(dst.Pix, rgba.Pix)
		return dst
	}
	b := src.Bounds()
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.Set(x, y, src.At(x, y))
		}
	}
	return dst
}
