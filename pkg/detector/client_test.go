package detector

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"DetectOverlay/pkg/log"
	"github.com/benbjohnson/clock"
	"go.viam.com/test"
)

func jpegLike() Media {
	return Media{Filename: "car.jpg", Data: []byte{0xff, 0xd8, 0xff, 0xe0, 'J', 'F', 'I', 'F'}}
}

func TestSubmitWithoutFile(t *testing.T) {
	c := New(log.NewTestLogger())
	_, err := c.Submit(context.Background(), Media{Filename: "empty.jpg"}, "http://127.0.0.1:1/detect/image", ImageDeadline)
	test.That(t, errors.Is(err, ErrNoFileSelected), test.ShouldBeTrue)
}

func TestSubmitSendsMultipartFile(t *testing.T) {
	var (
		gotMethod    string
		gotPath      string
		gotName      string
		gotData      []byte
		gotThreshold string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path

		f, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		defer f.Close()
		gotName = header.Filename
		gotData, _ = io.ReadAll(f)
		gotThreshold = r.FormValue("confidence_threshold")

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	media := jpegLike()
	media.Fields = map[string]string{"confidence_threshold": "0.7"}

	resp, err := New(log.NewTestLogger()).Submit(context.Background(), media, URL(srv.URL+"/", VerifyPath), VerifyDeadline)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, resp.StatusCode, test.ShouldEqual, http.StatusOK)
	test.That(t, resp.ContentType, test.ShouldEqual, "application/json")
	test.That(t, string(resp.Body), test.ShouldEqual, `{"ok":true}`)

	test.That(t, gotMethod, test.ShouldEqual, http.MethodPost)
	test.That(t, gotPath, test.ShouldEqual, VerifyPath)
	test.That(t, gotName, test.ShouldEqual, "car.jpg")
	test.That(t, gotData, test.ShouldResemble, media.Data)
	test.That(t, gotThreshold, test.ShouldEqual, "0.7")
}

func TestSubmitServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"detail":"boom"}`))
	}))
	defer srv.Close()

	_, err := New(log.NewTestLogger()).Submit(context.Background(), jpegLike(), srv.URL+ImagePath, ImageDeadline)

	var serverErr *ServerError
	test.That(t, errors.As(err, &serverErr), test.ShouldBeTrue)
	test.That(t, serverErr.StatusCode, test.ShouldEqual, http.StatusInternalServerError)
	test.That(t, serverErr.StatusText, test.ShouldEqual, "Internal Server Error")
	test.That(t, err.Error(), test.ShouldEqual, "Server Error: Internal Server Error")
}

func TestSubmitNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL + ImagePath
	srv.Close()

	_, err := New(log.NewTestLogger()).Submit(context.Background(), jpegLike(), url, ImageDeadline)
	test.That(t, errors.Is(err, ErrNetwork), test.ShouldBeTrue)
	test.That(t, errors.Is(err, ErrTimeout), test.ShouldBeFalse)
}

func TestSubmitTimesOutAtDeadline(t *testing.T) {
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	mock := clock.NewMock()
	c := New(log.NewTestLogger(), WithClock(mock))

	done := make(chan error, 1)
	go func() {
		_, err := c.Submit(context.Background(), jpegLike(), srv.URL+ImagePath, ImageDeadline)
		done <- err
	}()

	select {
	case <-arrived:
	case <-time.After(5 * time.Second):
		t.Fatal("request never reached the server")
	}

	mock.Add(ImageDeadline - time.Millisecond)
	select {
	case err := <-done:
		t.Fatalf("request ended before the deadline: %v", err)
	case <-time.After(50 * time.Millisecond):
	}

	mock.Add(time.Millisecond)
	select {
	case err := <-done:
		test.That(t, errors.Is(err, ErrTimeout), test.ShouldBeTrue)
	case <-time.After(5 * time.Second):
		t.Fatal("deadline did not abort the request")
	}
}

func TestSubmitReportsCallerCause(t *testing.T) {
	arrived := make(chan struct{}, 1)
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		arrived <- struct{}{}
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancelCause(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := New(log.NewTestLogger()).Submit(ctx, jpegLike(), srv.URL+ImagePath, ImageDeadline)
		done <- err
	}()

	<-arrived
	cancel(ErrSuperseded)

	select {
	case err := <-done:
		test.That(t, errors.Is(err, ErrSuperseded), test.ShouldBeTrue)
	case <-time.After(5 * time.Second):
		t.Fatal("cancelled request never returned")
	}
}

func TestURLJoin(t *testing.T) {
	test.That(t, URL("http://host:8000/", ImagePath), test.ShouldEqual, "http://host:8000/detect/image")
	test.That(t, URL("http://host:8000", VideoPath), test.ShouldEqual, "http://host:8000/track/video")
	test.That(t, URL("", VerifyPath), test.ShouldEqual, "/verify/car")
}
