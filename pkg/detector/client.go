package detector

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"strconv"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/sirupsen/logrus"
)

// Deadlines per media type. Video tracking runs for minutes, still images for
// seconds; neither is user-configurable.
const (
	ImageDeadline  = 60 * time.Second
	VideoDeadline  = 300 * time.Second
	VerifyDeadline = 60 * time.Second
)

const (
	ImagePath  = "/detect/image"
	VideoPath  = "/track/video"
	VerifyPath = "/verify/car"

	fileField = "file"
)

type Media struct {
	Filename string
	Data     []byte
	// Fields are sent as extra form values next to the file.
	Fields map[string]string
}

type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

type IController interface {
	Submit(ctx context.Context, media Media, url string, deadline time.Duration) (*Response, error)
}

type controller struct {
	http  *http.Client
	clock clock.Clock
	log   *logrus.Logger
}

type Option func(*controller)

func WithHTTPClient(c *http.Client) Option {
	return func(ctl *controller) {
		ctl.http = c
	}
}

func WithClock(c clock.Clock) Option {
	return func(ctl *controller) {
		ctl.clock = c
	}
}

func New(log *logrus.Logger, opts ...Option) IController {
	c := &controller{
		http:  &http.Client{},
		clock: clock.New(),
		log:   log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// URL joins the service base and an endpoint path.
func URL(endpoint, path string) string {
	return strings.TrimRight(endpoint, "/") + path
}

// Submit posts media as multipart field "file" and returns the raw response.
// The deadline is a hard one: when it elapses the request is aborted and
// ErrTimeout is returned.
func (c *controller) Submit(ctx context.Context, media Media, url string, deadline time.Duration) (*Response, error) {
	if len(media.Data) == 0 {
		return nil, ErrNoFileSelected
	}

	body, contentType, err := encodeMultipart(media)
	if err != nil {
		return nil, fmt.Errorf("encode multipart body: %w", err)
	}

	ctx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)

	timer := c.clock.AfterFunc(deadline, func() {
		cancel(ErrTimeout)
	})
	defer timer.Stop()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", contentType)

	start := c.clock.Now()
	c.log.WithFields(logrus.Fields{
		"url":       url,
		"file_name": media.Filename,
		"file_size": len(media.Data),
		"deadline":  deadline.String(),
	}).Debug("Submitting media")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.classify(ctx, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		serverErr := &ServerError{
			StatusCode: resp.StatusCode,
			StatusText: statusText(resp),
		}
		c.log.WithFields(logrus.Fields{
			"url":    url,
			"status": resp.StatusCode,
		}).Warn("Detection service rejected submission")
		return nil, serverErr
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, c.classify(ctx, url, err)
	}

	c.log.WithFields(logrus.Fields{
		"url":        url,
		"status":     resp.StatusCode,
		"bytes":      len(data),
		"latency_ms": c.clock.Since(start).Milliseconds(),
	}).Debug("Submission finished")

	return &Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
	}, nil
}

func (c *controller) classify(ctx context.Context, url string, err error) error {
	if cause := context.Cause(ctx); cause != nil {
		if errors.Is(cause, ErrTimeout) {
			c.log.WithFields(logrus.Fields{
				"url": url,
			}).Warn("Submission timed out")
		}
		return cause
	}

	c.log.WithFields(logrus.Fields{
		"url":   url,
		"error": err.Error(),
	}).Error("Submission failed in transport")
	return fmt.Errorf("%w: %v", ErrNetwork, err)
}

func statusText(resp *http.Response) string {
	text := strings.TrimSpace(strings.TrimPrefix(resp.Status, strconv.Itoa(resp.StatusCode)))
	if text == "" {
		text = http.StatusText(resp.StatusCode)
	}
	return text
}

func encodeMultipart(media Media) (*bytes.Buffer, string, error) {
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	for k, v := range media.Fields {
		if err := writer.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	filename := media.Filename
	if filename == "" {
		filename = "upload"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="%s"; filename="%s"`, fileField, escapeQuotes(filename)))
	h.Set("Content-Type", http.DetectContentType(media.Data))

	part, err := writer.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(media.Data); err != nil {
		return nil, "", err
	}

	if err := writer.Close(); err != nil {
		return nil, "", err
	}

	return body, writer.FormDataContentType(), nil
}

var quoteEscaper = strings.NewReplacer("\\", "\\\\", `"`, "\\\"")

func escapeQuotes(s string) string {
	return quoteEscaper.Replace(s)
}
