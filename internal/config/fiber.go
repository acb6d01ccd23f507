package config

import (
	contextPkg "DetectOverlay/pkg/context"
	"DetectOverlay/pkg/handlerUtil"
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

func NewFiber(logger *logrus.Logger, env *Env) *fiber.App {
	bodyLimit := 512
	if env != nil {
		bodyLimit = env.BodyLimitMB
	}

	errorHandler := handlerUtil.New(logger)

	app := fiber.New(
		fiber.Config{
			AppName:           "Detect Overlay",
			BodyLimit:         bodyLimit * 1024 * 1024,
			DisableKeepalive:  false,
			StrictRouting:     true,
			CaseSensitive:     true,
			EnablePrintRoutes: false,
			JSONEncoder:       jsoniter.Marshal,
			JSONDecoder:       jsoniter.Unmarshal,
			ErrorHandler: func(c *fiber.Ctx, err error) error {
				return errorHandler.Handle(c, requestID(c), err, c.Path(), "fiber")
			},
		})

	return app
}

func requestID(c *fiber.Ctx) string {
	if id, ok := c.Locals(contextPkg.LocalsRequestID).(string); ok && id != "" {
		return id
	}
	return "unknown"
}
