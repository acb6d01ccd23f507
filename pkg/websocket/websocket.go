package websocketPkg

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"DetectOverlay/internal/api/detection"
	"github.com/gorilla/websocket"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

var ErrClosed = errors.New("viewer connection closed")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Message is one message pushed by the overlay server. Text messages carry an
// Event; binary messages carry the PNG of the frame announced just before.
type Message struct {
	Event *detection.ViewerEvent
	PNG   []byte
}

type IViewer interface {
	Resize(width, height int) error
	Render() error
	Read() (*Message, error)
	IsConnected() bool
	Close() error
}

type viewerClient struct {
	conn         *websocket.Conn
	log          *logrus.Logger
	mu           sync.Mutex
	closed       chan struct{}
	closeOnce    sync.Once
	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// Dial connects a viewer to the overlay server's websocket endpoint.
func Dial(ctx context.Context, url string, log *logrus.Logger) (IViewer, error) {
	dialer := *websocket.DefaultDialer
	dialer.HandshakeTimeout = 10 * time.Second

	conn, _, err := dialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", url, err)
	}

	c := &viewerClient{
		conn:         conn,
		log:          log,
		closed:       make(chan struct{}),
		pingInterval: 30 * time.Second,
		readTimeout:  5 * time.Minute,
		writeTimeout: 5 * time.Second,
	}

	conn.SetPingHandler(func(appData string) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		if err := conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(c.writeTimeout)); err != nil {
			log.Warnf("Error sending pong: %v", err)
		}
		return nil
	})

	go c.keepAlive()

	log.WithField("url", url).Info("Viewer connected")
	return c, nil
}

func (c *viewerClient) Resize(width, height int) error {
	return c.send(detection.ViewerMessage{Type: detection.ViewerResize, Width: width, Height: height})
}

func (c *viewerClient) Render() error {
	return c.send(detection.ViewerMessage{Type: detection.ViewerRender})
}

func (c *viewerClient) send(msg detection.ViewerMessage) error {
	if !c.IsConnected() {
		return ErrClosed
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout)); err != nil {
		return err
	}
	if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
		return fmt.Errorf("error sending %s message: %w", msg.Type, err)
	}
	return nil
}

// Read blocks for the next server message. It must not be called concurrently.
func (c *viewerClient) Read() (*Message, error) {
	if err := c.conn.SetReadDeadline(time.Now().Add(c.readTimeout)); err != nil {
		return nil, err
	}

	messageType, data, err := c.conn.ReadMessage()
	if err != nil {
		if !c.IsConnected() {
			return nil, ErrClosed
		}
		return nil, fmt.Errorf("error reading viewer message: %w", err)
	}

	if messageType == websocket.BinaryMessage {
		return &Message{PNG: data}, nil
	}

	var ev detection.ViewerEvent
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("error unmarshaling viewer event: %w", err)
	}
	return &Message{Event: &ev}, nil
}

func (c *viewerClient) IsConnected() bool {
	select {
	case <-c.closed:
		return false
	default:
		return true
	}
}

func (c *viewerClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)

		c.mu.Lock()
		_ = c.conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			time.Now().Add(c.writeTimeout),
		)
		c.mu.Unlock()

		err = c.conn.Close()
	})
	return err
}

func (c *viewerClient) keepAlive() {
	ticker := time.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.closed:
			return
		case <-ticker.C:
		}

		c.mu.Lock()
		err := c.conn.WriteControl(websocket.PingMessage, []byte{}, time.Now().Add(c.writeTimeout))
		c.mu.Unlock()

		if err != nil {
			c.log.Warnf("Ping failed, closing viewer connection: %v", err)
			_ = c.Close()
			return
		}
	}
}
