// Package favorite реализует избранные объявления пользователя
package favorite

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/apperrors"
	"github.com/rajivgeraev/barter-api/internal/db"
	"github.com/rajivgeraev/barter-api/internal/guard"
	"github.com/rajivgeraev/barter-api/internal/models"
)

// Favorites управляет избранным
type Favorites struct {
	store    db.FavoriteRepository
	pageSize int
	logger   *slog.Logger
	now      func() time.Time
}

// NewFavorites создаёт сервис избранного
func NewFavorites(store db.FavoriteRepository, pageSize int, logger *slog.Logger) *Favorites {
	return &Favorites{
		store:    store,
		pageSize: pageSize,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// List избранное пользователя, новые сверху
func (f *Favorites) List(ctx context.Context, user uuid.UUID, page int) (models.Page[models.Favorite], error) {
	if err := guard.Authorize(user, guard.FavoriteManage, guard.Resource{}); err != nil {
		return models.Page[models.Favorite]{}, err
	}
	if page < 1 {
		page = 1
	}

	items, total, err := f.store.ListFavorites(ctx, user, page, f.pageSize)
	if err != nil {
		return models.Page[models.Favorite]{}, fmt.Errorf("ошибка получения избранного: %w", err)
	}
	return models.NewPage(items, total, page, f.pageSize), nil
}

// Add добавляет объявление в избранное
func (f *Favorites) Add(ctx context.Context, user, adID uuid.UUID) (*models.Favorite, error) {
	if err := guard.Authorize(user, guard.FavoriteManage, guard.Resource{}); err != nil {
		return nil, err
	}
	if adID == uuid.Nil {
		return nil, apperrors.FieldError("ad_id", "ID объявления не указан")
	}

	fav := &models.Favorite{
		ID:        uuid.New(),
		UserID:    user,
		AdID:      adID,
		CreatedAt: f.now(),
	}
	if err := f.store.AddFavorite(ctx, fav); err != nil {
		switch {
		case errors.Is(err, db.ErrDuplicate):
			return nil, apperrors.Conflict("Объявление уже добавлено в избранное")
		case errors.Is(err, db.ErrNotFound):
			return nil, apperrors.NotFound("Объявление не найдено")
		}
		return nil, fmt.Errorf("ошибка добавления в избранное: %w", err)
	}

	f.logger.Debug("объявление добавлено в избранное", "user_id", user, "ad_id", adID)
	return fav, nil
}

// Remove убирает объявление из избранного
func (f *Favorites) Remove(ctx context.Context, user, adID uuid.UUID) error {
	if err := guard.Authorize(user, guard.FavoriteManage, guard.Resource{}); err != nil {
		return err
	}

	removed, err := f.store.RemoveFavorite(ctx, user, adID)
	if err != nil {
		return fmt.Errorf("ошибка удаления из избранного: %w", err)
	}
	if !removed {
		return apperrors.NotFound("Объявление не найдено в избранном")
	}
	return nil
}

// Contains проверяет, находится ли объявление в избранном
func (f *Favorites) Contains(ctx context.Context, user, adID uuid.UUID) (bool, error) {
	if err := guard.Authorize(user, guard.FavoriteManage, guard.Resource{}); err != nil {
		return false, err
	}

	ok, err := f.store.IsFavorite(ctx, user, adID)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки избранного: %w", err)
	}
	return ok, nil
}
