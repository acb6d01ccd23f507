package detectionHandler

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"DetectOverlay/internal/api/detection"
	detectionService "DetectOverlay/internal/api/detection/service"
	"DetectOverlay/internal/entity"
	"DetectOverlay/internal/middleware"
	"DetectOverlay/pkg/detector"
	"DetectOverlay/pkg/log"
	"DetectOverlay/pkg/overlay"
	"DetectOverlay/pkg/playback"
	"DetectOverlay/pkg/session"
	"DetectOverlay/pkg/utils"
	websocketPkg "DetectOverlay/pkg/websocket"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"go.viam.com/test"
)

const remoteCarJSON = `{
	"image_width": 800,
	"image_height": 600,
	"detections": [
		{"bbox": {"x1": 100, "y1": 100, "x2": 300, "y2": 300}, "confidence": 0.92}
	]
}`

var testJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// remote stands in for the detection service.
func remote() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(detector.ImagePath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, remoteCarJSON)
	})
	mux.HandleFunc(detector.VideoPath, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte("processed-video"))
	})
	mux.HandleFunc(detector.VerifyPath, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})
	return mux
}

func newTestApp(t *testing.T, remoteHandler http.Handler) *fiber.App {
	t.Helper()

	logger := log.NewTestLogger()
	srv := httptest.NewServer(remoteHandler)
	t.Cleanup(srv.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	renderer := overlay.NewRenderer(overlay.WithLogger(logger), overlay.WithFrameInterval(time.Millisecond), overlay.WithMaxDeferrals(100))
	display := overlay.NewDisplay()
	sess := session.New(logger, renderer, overlay.NewCanvas(), display)
	go sess.Watch(ctx)

	svc := detectionService.NewDetectionService(detectionService.Deps{
		Log:        logger,
		Endpoint:   srv.URL,
		Controller: detector.New(logger),
		Session:    sess,
		Display:    display,
		Store:      playback.NewStore("/api/v1/track/video"),
		Background: ctx,
	})

	mw := middleware.New(logger)
	app := fiber.New(fiber.Config{
		JSONEncoder: jsoniter.Marshal,
		JSONDecoder: jsoniter.Unmarshal,
	})
	app.Use(mw.NewRequestIDMiddleware())
	New(logger, validator.New(), mw, svc, utils.New(), ctx).Start(app.Group("/api/v1"))
	return app
}

func pngFile(t *testing.T, w, h int) []byte {
	t.Helper()
	var buf bytes.Buffer
	test.That(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, w, h))), test.ShouldBeNil)
	return buf.Bytes()
}

func multipartRequest(t *testing.T, target, filename string, data []byte, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		test.That(t, writer.WriteField(k, v), test.ShouldBeNil)
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		test.That(t, err, test.ShouldBeNil)
		_, err = part.Write(data)
		test.That(t, err, test.ShouldBeNil)
	}
	test.That(t, writer.Close(), test.ShouldBeNil)

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func decodeBody(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, testJSON.Unmarshal(data, v), test.ShouldBeNil)
}

func TestDetectImageWithoutFile(t *testing.T) {
	app := newTestApp(t, remote())

	resp, err := app.Test(multipartRequest(t, "/api/v1/detection/image", "", nil, nil), -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, fiber.StatusBadRequest)
	test.That(t, resp.Header.Get(middleware.RequestIDKey), test.ShouldNotBeEmpty)

	var body detection.FlowFailureResponse
	decodeBody(t, resp, &body)
	test.That(t, body.State, test.ShouldEqual, entity.FlowFailure)
	test.That(t, body.Message, test.ShouldEqual, "Please select an image")
}

func TestDetectImageAndRenderOverlay(t *testing.T) {
	app := newTestApp(t, remote())

	resp, err := app.Test(multipartRequest(t, "/api/v1/detection/image", "car.png", pngFile(t, 800, 600), nil), -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, fiber.StatusOK)

	var detected detection.ImageDetectionResponse
	decodeBody(t, resp, &detected)
	test.That(t, detected.Detections, test.ShouldEqual, 1)
	test.That(t, detected.Message, test.ShouldEqual, "Detected 1 cars.")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/detection/result", nil), -1)
	test.That(t, err, test.ShouldBeNil)
	var result entity.DetectionResult
	decodeBody(t, resp, &result)
	test.That(t, result.ImageWidth, test.ShouldEqual, 800)
	test.That(t, result.Detections, test.ShouldHaveLength, 1)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/detection/overlay?width=400&height=300", nil), -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, fiber.StatusOK)
	test.That(t, resp.Header.Get("Content-Type"), test.ShouldEqual, "image/png")
	test.That(t, resp.Header.Get("X-Detection-Boxes"), test.ShouldEqual, "1")

	img, err := png.Decode(resp.Body)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, img.Bounds(), test.ShouldResemble, image.Rect(0, 0, 400, 300))

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/detection/overlay?composite=true", nil), -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, fiber.StatusOK)
	test.That(t, resp.Header.Get("X-Detection-Boxes"), test.ShouldBeEmpty)
}

func TestOverlayWithoutResult(t *testing.T) {
	app := newTestApp(t, remote())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/detection/overlay", nil), -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, fiber.StatusNotFound)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/detection/result", nil), -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, fiber.StatusNotFound)
}

func TestOverlayRejectsBadSize(t *testing.T) {
	app := newTestApp(t, remote())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/detection/overlay?width=-4&height=3", nil), -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, fiber.StatusBadRequest)
}

func TestTrackVideoAndPlayback(t *testing.T) {
	app := newTestApp(t, remote())

	resp, err := app.Test(multipartRequest(t, "/api/v1/track/video", "traffic.mp4", []byte("raw"), nil), -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, fiber.StatusOK)

	var tracked detection.VideoTrackResponse
	decodeBody(t, resp, &tracked)
	test.That(t, tracked.State, test.ShouldEqual, entity.FlowPlayable)
	test.That(t, tracked.Source, test.ShouldStartWith, "/api/v1/track/video/")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, tracked.Source, nil), -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, fiber.StatusOK)
	test.That(t, resp.Header.Get("Content-Type"), test.ShouldEqual, "video/mp4")
	data, err := io.ReadAll(resp.Body)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, string(data), test.ShouldEqual, "processed-video")

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/track/video/unknown", nil), -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, fiber.StatusNotFound)
}

func TestTrackVideoUnsupportedFormat(t *testing.T) {
	app := newTestApp(t, remote())

	resp, err := app.Test(multipartRequest(t, "/api/v1/track/video", "clip.gif", []byte("GIF89a"), nil), -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, fiber.StatusBadRequest)

	var body detection.FlowFailureResponse
	decodeBody(t, resp, &body)
	test.That(t, body.Message, test.ShouldEqual, "Unsupported video format.")
}

func TestVerifyCar(t *testing.T) {
	app := newTestApp(t, remote())

	resp, err := app.Test(multipartRequest(t, "/api/v1/verify/car", "car.png", pngFile(t, 8, 8), map[string]string{
		"confidence_threshold": "abc",
	}), -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, fiber.StatusBadRequest)

	resp, err = app.Test(multipartRequest(t, "/api/v1/verify/car", "car.png", pngFile(t, 8, 8), map[string]string{
		"confidence_threshold": "1.5",
	}), -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, fiber.StatusBadRequest)

	resp, err = app.Test(multipartRequest(t, "/api/v1/verify/car", "car.png", pngFile(t, 8, 8), nil), -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, fiber.StatusBadGateway)

	var body detection.FlowFailureResponse
	decodeBody(t, resp, &body)
	test.That(t, body.Message, test.ShouldEqual, "Error: Server Error: Service Unavailable")
}

func TestViewerRequiresUpgrade(t *testing.T) {
	app := newTestApp(t, remote())

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/detection/ws", nil), -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, fiber.StatusUpgradeRequired)
}

func TestViewerReceivesResizedFrames(t *testing.T) {
	app := newTestApp(t, remote())

	resp, err := app.Test(multipartRequest(t, "/api/v1/detection/image", "car.png", pngFile(t, 800, 600), nil), -1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, fiber.StatusOK)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	test.That(t, err, test.ShouldBeNil)
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() {
		_ = app.Shutdown()
	})

	url := fmt.Sprintf("ws://%s/api/v1/detection/ws", ln.Addr().String())
	viewer, err := websocketPkg.Dial(context.Background(), url, log.NewTestLogger())
	test.That(t, err, test.ShouldBeNil)
	defer viewer.Close()

	test.That(t, viewer.Resize(400, 300), test.ShouldBeNil)

	deadline := time.Now().Add(10 * time.Second)
	var header *detection.ViewerEvent
	for time.Now().Before(deadline) {
		msg, err := viewer.Read()
		test.That(t, err, test.ShouldBeNil)

		if msg.Event != nil {
			if msg.Event.Type == "frame" && msg.Event.Size != nil && msg.Event.Size.Width == 400 {
				header = msg.Event
			}
			continue
		}
		if header == nil {
			continue
		}

		test.That(t, header.Boxes, test.ShouldHaveLength, 1)
		test.That(t, header.Boxes[0].X, test.ShouldEqual, 50.0)
		test.That(t, header.Boxes[0].W, test.ShouldEqual, 100.0)
		test.That(t, header.Boxes[0].Label, test.ShouldEqual, "Car 92%")

		img, err := png.Decode(bytes.NewReader(msg.PNG))
		test.That(t, err, test.ShouldBeNil)
		test.That(t, img.Bounds().Dx(), test.ShouldEqual, 400)
		return
	}
	t.Fatal("viewer never received the resized frame")
}

func TestViewerRejectsBadMessages(t *testing.T) {
	app := newTestApp(t, remote())

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	test.That(t, err, test.ShouldBeNil)
	go func() {
		_ = app.Listener(ln)
	}()
	t.Cleanup(func() {
		_ = app.Shutdown()
	})

	viewer, err := websocketPkg.Dial(context.Background(), fmt.Sprintf("ws://%s/api/v1/detection/ws", ln.Addr().String()), log.NewTestLogger())
	test.That(t, err, test.ShouldBeNil)
	defer viewer.Close()

	// no result is held yet
	test.That(t, viewer.Render(), test.ShouldBeNil)

	msg, err := viewer.Read()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, msg.Event, test.ShouldNotBeNil)
	test.That(t, msg.Event.Type, test.ShouldEqual, "error")
	test.That(t, msg.Event.Error, test.ShouldEqual, "no detection result")
}
