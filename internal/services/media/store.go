// Package media выдаёт параметры прямой загрузки изображений и удаляет
// загруженные файлы у провайдера
package media

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/config"
	"github.com/rajivgeraev/barter-api/internal/models"
)

// Store хранилище изображений объявлений. Клиент загружает файл напрямую,
// сервер только подписывает загрузку и удаляет файл по ключу.
type Store interface {
	UploadParams(ctx context.Context, user uuid.UUID) (models.UploadParams, error)
	Remove(ctx context.Context, key string) error
	// KeyPrefix префикс всех ключей, выдаваемых пользователю
	KeyPrefix(user uuid.UUID) string
}

// NewStore создаёт хранилище выбранного в конфигурации провайдера
func NewStore(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Store, error) {
	switch cfg.MediaBackend {
	case config.MediaCloudinary:
		return NewCloudinaryStore(cfg.CloudinaryConfig, logger)
	case config.MediaS3:
		return NewS3Store(ctx, cfg.S3Config, logger)
	}
	return nil, fmt.Errorf("неизвестный провайдер изображений: %q", cfg.MediaBackend)
}
