package httpapi

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"go.uber.org/zap"

	"github.com/i474232898/weather-risk-analysis/internal/geo"
	"github.com/i474232898/weather-risk-analysis/internal/weather"
)

// NewApp builds the Fiber app with middleware, error handling and routes.
func NewApp(service *weather.Service, resolver geo.Resolver, log *zap.Logger) *fiber.App {
	if log == nil {
		log = zap.NewNop()
	}

	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           10 * time.Second,
		WriteTimeout:          30 * time.Second,
		ErrorHandler:          ErrorHandler(log),
	})

	// Global middleware
	app.Use(requestid.New())
	app.Use(logger.New(logger.Config{
		Format: "${time} ${locals:requestid} ${status} ${method} ${path} ${latency}\n",
	}))
	app.Use(recover.New())

	RegisterRoutes(app, service, resolver)
	return app
}

// ErrorHandler renders *weather.AppError and *fiber.Error as {error, code, message}.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		code := weather.ErrCodeInternalUnexpected
		message := "internal server error"

		var appErr *weather.AppError
		var fe *fiber.Error
		switch {
		case errors.As(err, &appErr):
			status = appErr.HTTPStatus()
			code = appErr.Code
			message = appErr.Message
		case errors.As(err, &fe):
			status = fe.Code
			code = weather.ErrorCode("http_error")
			message = fe.Message
		}

		if status >= fiber.StatusInternalServerError {
			log.Error("request failed",
				zap.String("path", c.Path()),
				zap.Int("status", status),
				zap.Error(err),
			)
		}

		return c.Status(status).JSON(fiber.Map{
			"error":   true,
			"code":    code,
			"message": message,
		})
	}
}
