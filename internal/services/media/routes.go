package media

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/barter-api/internal/middleware"
)

// SetupRoutes настраивает маршруты загрузки изображений
func (s *MediaService) SetupRoutes(api fiber.Router) {
	api.Get("/upload/params", middleware.RequireAuth(), s.GenerateUploadParams)
}
