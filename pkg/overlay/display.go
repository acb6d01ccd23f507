package overlay

import (
	"image"
	"sync"

	"DetectOverlay/pkg/utils"
)

// Display is the media element the overlay sits on. It reports the rendered
// size as its RenderTarget size: zero until media has loaded, then the viewer's
// viewport if one was reported, otherwise the media's natural size.
type Display struct {
	mu       sync.RWMutex
	media    image.Image
	natural  image.Point
	viewport *image.Point
	loadErr  error
	loaded   chan struct{}
	changed  chan struct{}
	gen      uint64
}

func NewDisplay() *Display {
	loaded := make(chan struct{})
	close(loaded)
	return &Display{
		loaded:  loaded,
		changed: make(chan struct{}),
	}
}

// Load replaces the displayed media. Decoding happens in the background;
// Loaded is closed once it finishes. A later Load supersedes an earlier one
// that is still decoding.
func (d *Display) Load(data []byte) {
	loaded := make(chan struct{})

	d.mu.Lock()
	d.gen++
	gen := d.gen
	d.media = nil
	d.natural = image.Point{}
	d.loadErr = nil
	d.loaded = loaded
	d.notifyLocked()
	d.mu.Unlock()

	go func() {
		defer close(loaded)

		img, _, err := utils.DecodeImage(data)

		d.mu.Lock()
		defer d.mu.Unlock()
		if gen != d.gen {
			return
		}
		if err != nil {
			d.loadErr = err
			return
		}
		d.media = img
		d.natural = img.Bounds().Size()
		d.notifyLocked()
	}()
}

func (d *Display) Loaded() <-chan struct{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loaded
}

// Complete reports whether the current load has finished with nonzero natural
// dimensions.
func (d *Display) Complete() bool {
	d.mu.RLock()
	loaded := d.loaded
	ok := d.natural.X > 0 && d.natural.Y > 0
	d.mu.RUnlock()

	select {
	case <-loaded:
		return ok
	default:
		return false
	}
}

func (d *Display) LoadErr() error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.loadErr
}

func (d *Display) NaturalSize() (int, int) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.natural.X, d.natural.Y
}

func (d *Display) Media() image.Image {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.media
}

// Resize records the viewport size reported by the viewer. Zero in either
// dimension means the media is not laid out (hidden).
func (d *Display) Resize(w, h int) {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}

	d.mu.Lock()
	d.viewport = &image.Point{X: w, Y: h}
	d.notifyLocked()
	d.mu.Unlock()
}

func (d *Display) Size() (int, int) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.media == nil {
		return 0, 0
	}
	if d.viewport != nil {
		return d.viewport.X, d.viewport.Y
	}
	return d.natural.X, d.natural.Y
}

// Changed returns a channel closed on the next layout change.
func (d *Display) Changed() <-chan struct{} {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.changed
}

func (d *Display) notifyLocked() {
	close(d.changed)
	d.changed = make(chan struct{})
}
