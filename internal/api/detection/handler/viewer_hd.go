package detectionHandler

import (
	"context"
	"sync"
	"time"

	"DetectOverlay/internal/api/detection"
	"DetectOverlay/internal/entity"
	"DetectOverlay/pkg/overlay"
	"DetectOverlay/pkg/session"
	"github.com/gofiber/websocket/v2"
	jsoniter "github.com/json-iterator/go"
)

const (
	viewerReadTimeout  = 5 * time.Minute
	viewerWriteTimeout = 10 * time.Second
)

var viewerJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// handleViewerWebSocket serves a display. The viewer reports its viewport
// with resize messages; it receives flow events as JSON and every rendered
// overlay as a JSON frame header followed by a binary PNG.
func (h *DetectionHandler) handleViewerWebSocket(c *websocket.Conn) {
	h.log.Info("Viewer WebSocket client connected")
	defer h.log.Info("Viewer WebSocket client disconnected")

	frames, stopFrames := h.detectionService.SubscribeFrames()
	defer stopFrames()
	events, stopEvents := h.detectionService.SubscribeEvents()
	defer stopEvents()

	var writeMu sync.Mutex
	write := func(messageType int, data []byte) error {
		writeMu.Lock()
		defer writeMu.Unlock()

		if err := c.SetWriteDeadline(time.Now().Add(viewerWriteTimeout)); err != nil {
			return err
		}
		return c.WriteMessage(messageType, data)
	}

	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		h.pumpViewer(done, frames, events, write)
	}()
	defer wg.Wait()
	defer close(done)

	for {
		if err := c.SetReadDeadline(time.Now().Add(viewerReadTimeout)); err != nil {
			h.log.Errorf("Error setting read deadline: %v", err)
			return
		}

		messageType, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				h.log.Errorf("Viewer WebSocket error: %v", err)
			} else {
				h.log.Info("Viewer WebSocket connection closed")
			}
			return
		}

		if messageType != websocket.TextMessage {
			h.log.Warnf("Received unexpected message type: %d", messageType)
			continue
		}

		if err := h.handleViewerMessage(message); err != nil {
			h.log.Warnf("Viewer message rejected: %v", err)
			payload, _ := viewerJSON.Marshal(detection.ViewerEvent{Type: "error", Error: err.Error()})
			if err := write(websocket.TextMessage, payload); err != nil {
				h.log.Errorf("Error sending error response: %v", err)
				return
			}
		}
	}
}

func (h *DetectionHandler) handleViewerMessage(message []byte) error {
	var msg detection.ViewerMessage
	if err := viewerJSON.Unmarshal(message, &msg); err != nil {
		return err
	}
	if err := h.validator.Struct(msg); err != nil {
		return err
	}

	switch msg.Type {
	case detection.ViewerResize:
		// the session watcher redraws and the frame reaches us via the pump
		h.detectionService.Resize(msg.Width, msg.Height)
	case detection.ViewerRender:
		ctx, cancel := context.WithTimeout(h.background, overlayTimeout)
		defer cancel()
		if _, err := h.detectionService.RenderOverlay(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (h *DetectionHandler) pumpViewer(done <-chan struct{}, frames <-chan session.Frame, events <-chan entity.FlowEvent, write func(int, []byte) error) {
	for {
		select {
		case <-done:
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			payload, err := viewerJSON.Marshal(detection.ViewerEvent{Type: "status", Event: &ev})
			if err != nil {
				continue
			}
			if err := write(websocket.TextMessage, payload); err != nil {
				h.log.Errorf("Error writing status event: %v", err)
				return
			}
		case frame, ok := <-frames:
			if !ok {
				return
			}
			if err := h.writeFrame(frame, write); err != nil {
				h.log.Errorf("Error writing overlay frame: %v", err)
				return
			}
		}
	}
}

func (h *DetectionHandler) writeFrame(frame session.Frame, write func(int, []byte) error) error {
	header := detection.ViewerEvent{
		Type:  "frame",
		Boxes: viewerBoxes(frame.Boxes),
		Size:  &detection.ViewerFrameSize{Width: frame.Width, Height: frame.Height},
	}
	payload, err := viewerJSON.Marshal(header)
	if err != nil {
		return err
	}
	if err := write(websocket.TextMessage, payload); err != nil {
		return err
	}

	if frame.Width == 0 || frame.Height == 0 || frame.Image == nil {
		return nil
	}
	png, err := overlay.EncodePNG(frame.Image)
	if err != nil {
		return err
	}
	return write(websocket.BinaryMessage, png)
}

func viewerBoxes(boxes []overlay.Box) []detection.ViewerBox {
	out := make([]detection.ViewerBox, 0, len(boxes))
	for _, b := range boxes {
		out = append(out, detection.ViewerBox{
			X:     b.Rect.X,
			Y:     b.Rect.Y,
			W:     b.Rect.W,
			H:     b.Rect.H,
			Label: b.Text,
		})
	}
	return out
}
