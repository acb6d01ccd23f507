package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"DetectOverlay/pkg/log"
	websocketPkg "DetectOverlay/pkg/websocket"
	"github.com/joho/godotenv"
)

func main() {
	logger := log.NewLogger()
	if err := godotenv.Load(); err != nil {
		logger.Warnf("No .env file loaded: %v", err)
	}

	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "3000"
	}

	url := flag.String("url", fmt.Sprintf("ws://127.0.0.1:%s/api/v1/detection/ws", port), "overlay websocket endpoint")
	width := flag.Int("width", 0, "viewport width reported to the server")
	height := flag.Int("height", 0, "viewport height reported to the server")
	out := flag.String("out", "./storage/frames", "directory for received overlay frames")
	flag.Parse()

	if err := os.MkdirAll(*out, 0o755); err != nil {
		logger.Fatalf("Error creating output directory: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	viewer, err := websocketPkg.Dial(ctx, *url, logger)
	if err != nil {
		logger.Fatal(err)
	}

	go func() {
		<-ctx.Done()
		_ = viewer.Close()
	}()

	if *width > 0 && *height > 0 {
		if err := viewer.Resize(*width, *height); err != nil {
			logger.Fatal(err)
		}
	}
	if err := viewer.Render(); err != nil {
		logger.Fatal(err)
	}

	frames := 0
	for {
		msg, err := viewer.Read()
		if err != nil {
			if !errors.Is(err, websocketPkg.ErrClosed) {
				logger.Errorf("Viewer stopped: %v", err)
			}
			return
		}

		if msg.Event != nil {
			entry := logger.WithField("type", msg.Event.Type)
			if msg.Event.Event != nil {
				entry = entry.WithField("flow", msg.Event.Event.Flow).WithField("state", msg.Event.Event.State)
				entry.Info(msg.Event.Event.Message)
				continue
			}
			if msg.Event.Size != nil {
				entry = entry.WithField("size", fmt.Sprintf("%dx%d", msg.Event.Size.Width, msg.Event.Size.Height))
			}
			entry.WithField("boxes", len(msg.Event.Boxes)).Info("Overlay frame")
			continue
		}

		frames++
		name := filepath.Join(*out, fmt.Sprintf("frame-%04d.png", frames))
		if err := os.WriteFile(name, msg.PNG, 0o644); err != nil {
			logger.Errorf("Error writing frame: %v", err)
			continue
		}
		logger.WithField("file", name).Debug("Saved overlay frame")
	}
}
