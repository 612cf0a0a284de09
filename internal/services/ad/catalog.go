// Package ad реализует каталог объявлений и его HTTP-обработчики
package ad

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/apperrors"
	"github.com/rajivgeraev/barter-api/internal/db"
	"github.com/rajivgeraev/barter-api/internal/guard"
	"github.com/rajivgeraev/barter-api/internal/models"
)

// Ограничения полей объявления
const (
	MaxTitleLength       = 60
	MaxCategoryLength    = 20
	MaxDescriptionLength = 5000
)

// ImageRemover удаляет загруженное изображение по ключу провайдера.
// KeyPrefix общий префикс ключей, которые провайдер выдаёт пользователю.
type ImageRemover interface {
	Remove(ctx context.Context, key string) error
	KeyPrefix(user uuid.UUID) string
}

// Catalog управляет объявлениями
type Catalog struct {
	store    db.Store
	images   ImageRemover
	pageSize int
	logger   *slog.Logger
	now      func() time.Time
}

// NewCatalog создаёт каталог. images может быть nil, тогда изображения не удаляются.
func NewCatalog(store db.Store, images ImageRemover, pageSize int, logger *slog.Logger) *Catalog {
	return &Catalog{
		store:    store,
		images:   images,
		pageSize: pageSize,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// PageSize размер страницы выдачи
func (c *Catalog) PageSize() int {
	return c.pageSize
}

// List возвращает страницу объявлений по фильтру. Ошибок фильтра не бывает.
func (c *Catalog) List(ctx context.Context, filter models.AdFilter) (models.Page[models.Ad], error) {
	if filter.Page < 1 {
		filter.Page = 1
	}
	filter.PageSize = c.pageSize
	filter.Search = strings.TrimSpace(filter.Search)
	filter.Category = strings.TrimSpace(filter.Category)

	ads, total, err := c.store.ListAds(ctx, filter)
	if err != nil {
		return models.Page[models.Ad]{}, fmt.Errorf("ошибка получения объявлений: %w", err)
	}
	return models.NewPage(ads, total, filter.Page, filter.PageSize), nil
}

// ListMine объявления пользователя
func (c *Catalog) ListMine(ctx context.Context, user uuid.UUID, page int) (models.Page[models.Ad], error) {
	if err := guard.Authorize(user, guard.AdListOwn, guard.Resource{}); err != nil {
		return models.Page[models.Ad]{}, err
	}
	return c.List(ctx, models.AdFilter{Owner: models.OwnerIs, UserID: user, Page: page})
}

// ListOthers объявления всех, кроме пользователя
func (c *Catalog) ListOthers(ctx context.Context, user uuid.UUID, page int) (models.Page[models.Ad], error) {
	if err := guard.Authorize(user, guard.AdListOwn, guard.Resource{}); err != nil {
		return models.Page[models.Ad]{}, err
	}
	return c.List(ctx, models.AdFilter{Owner: models.OwnerIsNot, UserID: user, Page: page})
}

// Get возвращает объявление по ID
func (c *Catalog) Get(ctx context.Context, id uuid.UUID) (*models.Ad, error) {
	ad, err := c.store.GetAd(ctx, id)
	if err != nil {
		return nil, adLookupError(err)
	}
	return ad, nil
}

// Categories уникальные категории существующих объявлений
func (c *Catalog) Categories(ctx context.Context) ([]string, error) {
	categories, err := c.store.ListCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("ошибка получения категорий: %w", err)
	}
	if categories == nil {
		categories = []string{}
	}
	return categories, nil
}

// Create публикует объявление от имени user
func (c *Catalog) Create(ctx context.Context, user uuid.UUID, in models.AdInput) (*models.Ad, error) {
	if err := guard.Authorize(user, guard.AdCreate, guard.Resource{}); err != nil {
		return nil, err
	}

	now := c.now()
	ad := &models.Ad{
		ID:          uuid.New(),
		UserID:      user,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		ImageURL:    normalizeOptional(in.ImageURL),
		ImageKey:    normalizeOptional(in.ImageKey),
		Category:    strings.TrimSpace(in.Category),
		Condition:   in.Condition,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := validateAd(ad, c.imageKeyRule(ad, user, "")); err != nil {
		return nil, err
	}

	if err := c.store.CreateAd(ctx, ad); err != nil {
		return nil, fmt.Errorf("ошибка сохранения объявления: %w", err)
	}

	c.logger.Info("объявление создано", "ad_id", ad.ID, "user_id", user)
	return ad, nil
}

// Update меняет поля объявления. Менять может только владелец.
func (c *Catalog) Update(ctx context.Context, user, id uuid.UUID, patch models.AdPatch) (*models.Ad, error) {
	if err := guard.Authenticated(user); err != nil {
		return nil, err
	}

	var updated *models.Ad
	var staleImage string

	err := c.store.ExecTx(ctx, func(ctx context.Context) error {
		ad, err := c.store.LockAd(ctx, id)
		if err != nil {
			return adLookupError(err)
		}
		if err := guard.Authorize(user, guard.AdUpdate, guard.ForAd(ad.UserID)); err != nil {
			return err
		}

		oldKey := deref(ad.ImageKey)
		applyPatch(ad, patch)
		if err := validateAd(ad, c.imageKeyRule(ad, user, oldKey)); err != nil {
			return err
		}
		ad.UpdatedAt = c.now()

		if err := c.store.UpdateAd(ctx, ad); err != nil {
			return fmt.Errorf("ошибка обновления объявления: %w", err)
		}

		if oldKey != "" && oldKey != deref(ad.ImageKey) {
			staleImage = oldKey
		}
		updated = ad
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.removeImage(ctx, staleImage)
	return updated, nil
}

// Delete удаляет объявление вместе со всеми предложениями обмена, где оно
// участвует, и записями избранного. Всё удаляется в одной транзакции.
func (c *Catalog) Delete(ctx context.Context, user, id uuid.UUID) error {
	if err := guard.Authenticated(user); err != nil {
		return err
	}

	var imageKey string
	var removedProposals int

	err := c.store.ExecTx(ctx, func(ctx context.Context) error {
		ad, err := c.store.LockAd(ctx, id)
		if err != nil {
			return adLookupError(err)
		}
		if err := guard.Authorize(user, guard.AdDelete, guard.ForAd(ad.UserID)); err != nil {
			return err
		}

		removedProposals, err = c.store.DeleteProposalsByAd(ctx, id)
		if err != nil {
			return fmt.Errorf("ошибка удаления предложений объявления: %w", err)
		}
		if err := c.store.DeleteFavoritesByAd(ctx, id); err != nil {
			return fmt.Errorf("ошибка удаления избранного: %w", err)
		}
		if err := c.store.DeleteAd(ctx, id); err != nil {
			return fmt.Errorf("ошибка удаления объявления: %w", err)
		}

		imageKey = deref(ad.ImageKey)
		return nil
	})
	if err != nil {
		return err
	}

	c.logger.Info("объявление удалено", "ad_id", id, "user_id", user, "proposals_removed", removedProposals)
	c.removeImage(ctx, imageKey)
	return nil
}

// removeImage удаляет изображение после фиксации. Ошибка только логируется.
func (c *Catalog) removeImage(ctx context.Context, key string) {
	if key == "" || c.images == nil {
		return
	}
	if err := c.images.Remove(ctx, key); err != nil {
		c.logger.Warn("не удалось удалить изображение", "image_key", key, "error", err)
	}
}

func applyPatch(ad *models.Ad, patch models.AdPatch) {
	if patch.Title != nil {
		ad.Title = strings.TrimSpace(*patch.Title)
	}
	if patch.Description != nil {
		ad.Description = strings.TrimSpace(*patch.Description)
	}
	if patch.Category != nil {
		ad.Category = strings.TrimSpace(*patch.Category)
	}
	if patch.Condition != nil {
		ad.Condition = *patch.Condition
	}
	if patch.ImageURL != nil {
		ad.ImageURL = normalizeOptional(patch.ImageURL)
		// Новая ссылка без ключа означает внешнее изображение
		ad.ImageKey = normalizeOptional(patch.ImageKey)
	} else if patch.ImageKey != nil {
		ad.ImageKey = normalizeOptional(patch.ImageKey)
	}
}

// imageKeyRule пропускает только ключи, выданные user. keep уже сохранён
// в объявлении и не перепроверяется.
func (c *Catalog) imageKeyRule(ad *models.Ad, user uuid.UUID, keep string) validation.Rule {
	return validation.By(func(any) error {
		key := deref(ad.ImageKey)
		if key == "" || key == keep {
			return nil
		}
		if c.images == nil || !ownsKey(c.images.KeyPrefix(user), key) {
			return errors.New("Изображение загружено другим пользователем")
		}
		return nil
	})
}

func ownsKey(prefix, key string) bool {
	if prefix == "" || len(key) <= len(prefix) || !strings.HasPrefix(key, prefix) {
		return false
	}
	return path.Clean(key) == key
}

func validateAd(ad *models.Ad, imageKey validation.Rule) error {
	err := validation.ValidateStruct(ad,
		validation.Field(&ad.Title,
			validation.Required.Error("Укажите название"),
			validation.RuneLength(1, MaxTitleLength).Error(fmt.Sprintf("Название не длиннее %d символов", MaxTitleLength)),
		),
		validation.Field(&ad.Description,
			validation.Required.Error("Добавьте описание"),
			validation.RuneLength(1, MaxDescriptionLength).Error(fmt.Sprintf("Описание не длиннее %d символов", MaxDescriptionLength)),
		),
		validation.Field(&ad.Category,
			validation.Required.Error("Укажите категорию"),
			validation.RuneLength(1, MaxCategoryLength).Error(fmt.Sprintf("Категория не длиннее %d символов", MaxCategoryLength)),
		),
		validation.Field(&ad.Condition,
			validation.Required.Error("Укажите состояние товара"),
			validation.By(func(any) error {
				if !ad.Condition.Valid() {
					return errors.New("Недопустимое состояние товара")
				}
				return nil
			}),
		),
	)

	// ключ изображения не сериализуется, поэтому имя поля задаём явно
	if keyErr := validation.Validate(ad.ImageKey, imageKey); keyErr != nil {
		fields, ok := err.(validation.Errors)
		if err != nil && !ok {
			return apperrors.FromValidation(err)
		}
		if fields == nil {
			fields = validation.Errors{}
		}
		fields["image_key"] = keyErr
		err = fields
	}
	return apperrors.FromValidation(err)
}

func adLookupError(err error) error {
	if errors.Is(err, db.ErrNotFound) {
		return apperrors.NotFound("Объявление не найдено")
	}
	return fmt.Errorf("ошибка получения объявления: %w", err)
}

func normalizeOptional(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	return &v
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
