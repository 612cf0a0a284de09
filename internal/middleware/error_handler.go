package middleware

import (
	"errors"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/barter-api/internal/apperrors"
)

// NewErrorHandler превращает ошибки обработчиков в JSON-ответ {"error", "fields"}
func NewErrorHandler(logger *slog.Logger) fiber.ErrorHandler {
	return func(c fiber.Ctx, err error) error {
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			body := fiber.Map{"error": appErr.Error()}
			if len(appErr.Fields) > 0 {
				body["fields"] = appErr.Fields
			}
			return c.Status(appErr.StatusCode()).JSON(body)
		}

		// Проверяем, является ли ошибка из Fiber
		var fiberErr *fiber.Error
		if errors.As(err, &fiberErr) {
			return c.Status(fiberErr.Code).JSON(fiber.Map{"error": fiberErr.Message})
		}

		if code := apperrors.StatusCode(err); code != fiber.StatusInternalServerError {
			return c.Status(code).JSON(fiber.Map{"error": err.Error()})
		}

		logger.Error("ошибка обработки запроса",
			"method", c.Method(),
			"path", c.Path(),
			"error", err,
		)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Внутренняя ошибка сервера",
		})
	}
}
