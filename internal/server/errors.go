package server

import (
	"errors"
	"log/slog"

	"hrportal-backend/internal/apperr"
	"hrportal-backend/internal/logging"

	"github.com/gofiber/fiber/v2"
)

// ErrorHandler renders every error as {success:false,message}. Field problems
// go to "errors"; the raw cause is only exposed while developing.
func ErrorHandler(logger *slog.Logger, development bool) fiber.ErrorHandler {
	return func(c *fiber.Ctx, err error) error {
		status := fiber.StatusInternalServerError
		message := "Internal server error"
		var details []string

		var ae *apperr.Error
		var fe *fiber.Error
		switch {
		case errors.As(err, &ae):
			status = ae.Kind.Status()
			message = ae.Message
			details = ae.Details
		case errors.As(err, &fe):
			status = fe.Code
			message = fe.Message
		}

		if status >= fiber.StatusInternalServerError {
			logging.FromFiber(c, logger).ErrorContext(c.UserContext(), "request failed",
				"method", c.Method(),
				"path", c.Path(),
				"error", err,
			)
		}

		body := fiber.Map{
			"success": false,
			"message": message,
		}
		if len(details) > 0 {
			body["errors"] = details
		}
		if development {
			body["error"] = err.Error()
		}
		return c.Status(status).JSON(body)
	}
}
