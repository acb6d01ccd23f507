package detectionHandler

import (
	"context"

	detectionService "DetectOverlay/internal/api/detection/service"
	"DetectOverlay/internal/middleware"
	"DetectOverlay/pkg/utils"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"
)

type DetectionHandler struct {
	log              *logrus.Logger
	validator        *validator.Validate
	middleware       middleware.Middleware
	detectionService detectionService.IDetectionService
	utils            utils.IUtils
	// root for service calls; fiber recycles its own request context
	background context.Context
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ds detectionService.IDetectionService,
	utils utils.IUtils,
	background context.Context,
) *DetectionHandler {
	if background == nil {
		background = context.Background()
	}
	return &DetectionHandler{
		detectionService: ds,
		log:              log,
		validator:        validator,
		middleware:       middleware,
		utils:            utils,
		background:       background,
	}
}

func (h *DetectionHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	detection := srv.Group("/detection")
	detection.Post("/image", h.middleware.NewRateLimiter, h.DetectImage)
	detection.Get("/overlay", h.RenderOverlay)
	detection.Get("/result", h.GetResult)
	detection.Use("/ws", wsMiddleware)
	detection.Get("/ws", websocket.New(h.handleViewerWebSocket))

	track := srv.Group("/track")
	track.Post("/video", h.middleware.NewVideoRateLimiter, h.TrackVideo)
	track.Get("/video/:id", h.GetPlayback)

	srv.Post("/verify/car", h.middleware.NewRateLimiter, h.VerifyCar)
}
