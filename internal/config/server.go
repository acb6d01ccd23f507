package config

import (
	"context"
	"fmt"
	"time"

	detectionHandler "DetectOverlay/internal/api/detection/handler"
	detectionService "DetectOverlay/internal/api/detection/service"
	"DetectOverlay/internal/middleware"
	"DetectOverlay/pkg/detector"
	"DetectOverlay/pkg/overlay"
	"DetectOverlay/pkg/playback"
	"DetectOverlay/pkg/session"
	"DetectOverlay/pkg/utils"
	"github.com/benbjohnson/clock"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type ServerOption func(*Server) error

type Server struct {
	engine     *fiber.App
	log        *logrus.Logger
	env        *Env
	middleware middleware.Middleware
	validator  *validator.Validate
	utils      utils.IUtils
	clock      clock.Clock
	handlers   []handler

	controller detector.IController
	renderer   *overlay.Renderer
	canvas     *overlay.Canvas
	display    *overlay.Display
	session    *session.Session
	store      *playback.Store

	ctx    context.Context
	cancel context.CancelFunc
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	ctx, cancel := context.WithCancel(context.Background())
	server := &Server{
		clock:  clock.New(),
		ctx:    ctx,
		cancel: cancel,
	}

	for _, option := range options {
		if err := option(server); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		cancel()
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		cancel()
		return nil, fmt.Errorf("logger is required")
	}
	if server.env == nil {
		cancel()
		return nil, fmt.Errorf("environment is required")
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithEnv(env *Env) ServerOption {
	return func(s *Server) error {
		s.env = env
		return nil
	}
}

// WithClock swaps the clock driving deadlines and render ticks.
func WithClock(c clock.Clock) ServerOption {
	return func(s *Server) error {
		s.clock = c
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		var opts []middleware.Option
		if s.env != nil {
			opts = append(opts,
				middleware.WithRateLimit(s.env.RateLimitRPS, s.env.RateLimitBurst),
				middleware.WithVideoRateLimit(s.env.VideoRateRPS, s.env.VideoRateBurst),
			)
		}
		s.middleware = middleware.New(s.log, opts...)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		s.utils = utils.New()
		return nil
	}
}

// WithDetectionStack builds the remote controller and the single overlay
// session served by this process.
func WithDetectionStack() ServerOption {
	return func(s *Server) error {
		if s.log == nil || s.env == nil {
			return fmt.Errorf("logger and environment must be initialized before the detection stack")
		}

		s.controller = detector.New(s.log, detector.WithClock(s.clock))
		s.renderer = overlay.NewRenderer(
			overlay.WithClock(s.clock),
			overlay.WithFrameInterval(s.env.FrameInterval),
			overlay.WithMaxDeferrals(s.env.MaxDeferrals),
			overlay.WithLogger(s.log),
		)
		s.canvas = overlay.NewCanvas()
		s.display = overlay.NewDisplay()
		s.session = session.New(s.log, s.renderer, s.canvas, s.display)
		s.store = playback.NewStore("/api/v1/track/video")
		return nil
	}
}

func (s *Server) RegisterHandler() {
	// Detection
	detectionServices := detectionService.NewDetectionService(detectionService.Deps{
		Log:        s.log,
		Endpoint:   s.env.DetectionEndpoint,
		Controller: s.controller,
		Session:    s.session,
		Display:    s.display,
		Store:      s.store,
		Background: s.ctx,
	})
	detectionHandlers := detectionHandler.New(s.log, s.validator, s.middleware, detectionServices, s.utils, s.ctx)

	go s.session.Watch(s.ctx)

	s.setupHealthCheck()
	s.handlers = append(s.handlers, detectionHandlers)
}

func (s *Server) Run() error {
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())
	router := s.engine.Group("/api/v1")

	for _, h := range s.handlers {
		h.Start(router)
	}

	if err := s.engine.Listen(fmt.Sprintf(":%s", s.env.AppPort)); err != nil {
		return err
	}

	return nil
}

// Shutdown stops background renders and drains open connections.
func (s *Server) Shutdown(timeout time.Duration) error {
	s.cancel()
	return s.engine.ShutdownWithTimeout(timeout)
}

func (s *Server) setupHealthCheck() {
	s.engine.Get("/", func(ctx *fiber.Ctx) error {
		return ctx.JSON(fiber.Map{
			"message":  "Server is Healthy!",
			"endpoint": s.env.DetectionEndpoint,
		})
	})
}
