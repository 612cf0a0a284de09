package media

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"path"
	"strconv"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/config"
	"github.com/rajivgeraev/barter-api/internal/models"
)

const cloudinaryUploadURL = "https://api.cloudinary.com/v1_1/%s/image/upload"

type destroyer interface {
	Destroy(ctx context.Context, params uploader.DestroyParams) (*uploader.DestroyResult, error)
}

// CloudinaryStore подписывает прямую загрузку в Cloudinary
type CloudinaryStore struct {
	cfg    config.CloudinaryConfig
	upload destroyer
	logger *slog.Logger
	now    func() time.Time
}

// NewCloudinaryStore создаёт клиента Cloudinary
func NewCloudinaryStore(cfg config.CloudinaryConfig, logger *slog.Logger) (*CloudinaryStore, error) {
	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации Cloudinary: %w", err)
	}
	return &CloudinaryStore{
		cfg:    cfg,
		upload: &cld.Upload,
		logger: logger,
		now:    time.Now,
	}, nil
}

// KeyPrefix папка пользователя в Cloudinary
func (s *CloudinaryStore) KeyPrefix(user uuid.UUID) string {
	return path.Join(s.cfg.Folder, user.String()) + "/"
}

// UploadParams создаёт подписанные параметры для загрузки изображения
func (s *CloudinaryStore) UploadParams(_ context.Context, user uuid.UUID) (models.UploadParams, error) {
	folder := path.Join(s.cfg.Folder, user.String())
	publicID := uuid.New().String()
	timestamp := strconv.FormatInt(s.now().Unix(), 10)

	// Подписываются все параметры запроса, кроме file, api_key и самой подписи
	params := url.Values{}
	params.Set("timestamp", timestamp)
	params.Set("folder", folder)
	params.Set("public_id", publicID)
	if s.cfg.UploadPreset != "" {
		params.Set("upload_preset", s.cfg.UploadPreset)
	}

	signature, err := api.SignParameters(params, s.cfg.APISecret)
	if err != nil {
		return models.UploadParams{}, fmt.Errorf("ошибка подписи параметров загрузки: %w", err)
	}

	fields := map[string]string{
		"api_key":    s.cfg.APIKey,
		"cloud_name": s.cfg.CloudName,
		"signature":  signature,
	}
	for k := range params {
		fields[k] = params.Get(k)
	}

	return models.UploadParams{
		Provider:  config.MediaCloudinary,
		UploadURL: fmt.Sprintf(cloudinaryUploadURL, s.cfg.CloudName),
		Method:    "POST",
		ImageKey:  path.Join(folder, publicID),
		Fields:    fields,
	}, nil
}

// Remove удаляет изображение по public_id
func (s *CloudinaryStore) Remove(ctx context.Context, key string) error {
	res, err := s.upload.Destroy(ctx, uploader.DestroyParams{PublicID: key})
	if err != nil {
		return fmt.Errorf("ошибка удаления изображения из Cloudinary: %w", err)
	}
	if res != nil && res.Error.Message != "" {
		return fmt.Errorf("ошибка удаления изображения из Cloudinary: %s", res.Error.Message)
	}
	if res != nil && res.Result != "ok" {
		// "not found" не считаем ошибкой: файла уже нет
		s.logger.Debug("Cloudinary не удалил изображение", "image_key", key, "result", res.Result)
	}
	return nil
}
