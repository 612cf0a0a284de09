package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/models"
)

// AddFavorite добавляет объявление в избранное пользователя
func (s *PostgresStore) AddFavorite(ctx context.Context, f *models.Favorite) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}

	_, err := executor(ctx, s.pool).Exec(ctx, `
		INSERT INTO favorites (id, user_id, ad_id, created_at)
		VALUES ($1, $2, $3, $4)
	`, f.ID, f.UserID, f.AdID, f.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка добавления в избранное: %w", translateError(err))
	}
	return nil
}

// RemoveFavorite удаляет объявление из избранного. false, если записи не было.
func (s *PostgresStore) RemoveFavorite(ctx context.Context, userID, adID uuid.UUID) (bool, error) {
	tag, err := executor(ctx, s.pool).Exec(ctx, `
		DELETE FROM favorites WHERE user_id = $1 AND ad_id = $2
	`, userID, adID)
	if err != nil {
		return false, fmt.Errorf("ошибка удаления из избранного: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// IsFavorite проверяет, находится ли объявление в избранном
func (s *PostgresStore) IsFavorite(ctx context.Context, userID, adID uuid.UUID) (bool, error) {
	var exists bool
	err := executor(ctx, s.pool).QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM favorites WHERE user_id = $1 AND ad_id = $2)
	`, userID, adID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки избранного: %w", err)
	}
	return exists, nil
}

// ListFavorites возвращает избранные объявления пользователя, новые первыми
func (s *PostgresStore) ListFavorites(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]models.Favorite, int, error) {
	q := executor(ctx, s.pool)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM favorites WHERE user_id = $1`, userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета избранного: %w", err)
	}

	rows, err := q.Query(ctx, `
		SELECT f.id, f.user_id, f.ad_id, f.created_at,
			a.id, a.user_id, a.title, a.description, a.image_url, a.image_key, a.category, a.condition, a.created_at, a.updated_at
		FROM favorites f
		JOIN ads a ON a.id = f.ad_id
		WHERE f.user_id = $1
		ORDER BY f.created_at DESC, f.id
		LIMIT $2 OFFSET $3
	`, userID, pageSize, models.PageOffset(page, pageSize))
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка запроса избранного: %w", err)
	}
	defer rows.Close()

	var favorites []models.Favorite
	for rows.Next() {
		var f models.Favorite
		var ad models.Ad
		err := rows.Scan(
			&f.ID, &f.UserID, &f.AdID, &f.CreatedAt,
			&ad.ID, &ad.UserID, &ad.Title, &ad.Description, &ad.ImageURL, &ad.ImageKey,
			&ad.Category, &ad.Condition, &ad.CreatedAt, &ad.UpdatedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования избранного: %w", err)
		}
		f.Ad = &ad
		favorites = append(favorites, f)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка чтения избранного: %w", err)
	}

	return favorites, total, nil
}

// DeleteFavoritesByAd удаляет объявление из избранного всех пользователей
func (s *PostgresStore) DeleteFavoritesByAd(ctx context.Context, adID uuid.UUID) error {
	_, err := executor(ctx, s.pool).Exec(ctx, `DELETE FROM favorites WHERE ad_id = $1`, adID)
	if err != nil {
		return fmt.Errorf("ошибка удаления избранного объявления: %w", err)
	}
	return nil
}
