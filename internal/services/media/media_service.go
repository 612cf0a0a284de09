package media

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/barter-api/internal/db"
	"github.com/rajivgeraev/barter-api/internal/middleware"
)

// MediaService HTTP-обработчики загрузки изображений
type MediaService struct {
	store  Store
	logger *slog.Logger
}

// NewMediaService создает новый экземпляр MediaService
func NewMediaService(store Store, logger *slog.Logger) *MediaService {
	return &MediaService{store: store, logger: logger}
}

// GenerateUploadParams создаёт параметры для загрузки изображений
func (s *MediaService) GenerateUploadParams(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	user := middleware.CurrentUser(c)
	params, err := s.store.UploadParams(ctx, user)
	if err != nil {
		return err
	}

	s.logger.Debug("выданы параметры загрузки", "user_id", user, "provider", params.Provider, "image_key", params.ImageKey)
	return c.JSON(params)
}
