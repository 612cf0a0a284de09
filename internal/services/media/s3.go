package media

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	v4 "github.com/aws/aws-sdk-go-v2/aws/signer/v4"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/config"
	"github.com/rajivgeraev/barter-api/internal/models"
)

type objectDeleter interface {
	DeleteObject(ctx context.Context, params *s3.DeleteObjectInput, optFns ...func(*s3.Options)) (*s3.DeleteObjectOutput, error)
}

type putPresigner interface {
	PresignPutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.PresignOptions)) (*v4.PresignedHTTPRequest, error)
}

// S3Store выдаёт presigned PUT в S3-совместимое хранилище (MinIO, AWS)
type S3Store struct {
	client  objectDeleter
	presign putPresigner
	cfg     config.S3Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewS3Store создаёт клиента S3. Если задан endpoint, используется path-style адресация.
func NewS3Store(ctx context.Context, cfg config.S3Config, logger *slog.Logger) (*S3Store, error) {
	opts := []func(*awsconfig.LoadOptions) error{
		awsconfig.WithRegion(cfg.Region),
	}
	if cfg.AccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки конфигурации AWS: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	return &S3Store{
		client:  client,
		presign: s3.NewPresignClient(client),
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
	}, nil
}

// storageKey ключ объекта: ads/<пользователь>/<год>/<месяц>/<uuid>
func (s *S3Store) storageKey(user uuid.UUID) string {
	d := s.now().UTC()
	return fmt.Sprintf("%s%d/%02d/%s", s.KeyPrefix(user), d.Year(), d.Month(), uuid.New())
}

// KeyPrefix каталог пользователя в бакете
func (s *S3Store) KeyPrefix(user uuid.UUID) string {
	return "ads/" + user.String() + "/"
}

// publicURL адрес, по которому объект будет доступен после загрузки
func (s *S3Store) publicURL(key string) string {
	if s.cfg.PublicURL != "" {
		return strings.TrimRight(s.cfg.PublicURL, "/") + "/" + key
	}
	if s.cfg.Endpoint != "" {
		return strings.TrimRight(s.cfg.Endpoint, "/") + "/" + s.cfg.Bucket + "/" + key
	}
	return fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", s.cfg.Bucket, s.cfg.Region, key)
}

// UploadParams создаёт presigned PUT для нового изображения
func (s *S3Store) UploadParams(ctx context.Context, user uuid.UUID) (models.UploadParams, error) {
	key := s.storageKey(user)

	req, err := s.presign.PresignPutObject(ctx, &s3.PutObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	}, s3.WithPresignExpires(s.cfg.PresignExpiry))
	if err != nil {
		return models.UploadParams{}, fmt.Errorf("ошибка подписи загрузки в S3: %w", err)
	}

	return models.UploadParams{
		Provider:  config.MediaS3,
		UploadURL: req.URL,
		Method:    req.Method,
		ImageKey:  key,
		ImageURL:  s.publicURL(key),
	}, nil
}

// Remove удаляет объект. Отсутствие объекта S3 ошибкой не считает.
func (s *S3Store) Remove(ctx context.Context, key string) error {
	_, err := s.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(s.cfg.Bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return fmt.Errorf("ошибка удаления объекта S3: %w", err)
	}
	s.logger.Debug("объект S3 удален", "image_key", key)
	return nil
}
