package db

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/barter-api/internal/models"
)

const adColumns = `id, user_id, title, description, image_url, image_key, category, condition, created_at, updated_at`

func scanAd(row pgx.Row, ad *models.Ad) error {
	return row.Scan(
		&ad.ID,
		&ad.UserID,
		&ad.Title,
		&ad.Description,
		&ad.ImageURL,
		&ad.ImageKey,
		&ad.Category,
		&ad.Condition,
		&ad.CreatedAt,
		&ad.UpdatedAt,
	)
}

// CreateAd сохраняет новое объявление
func (s *PostgresStore) CreateAd(ctx context.Context, ad *models.Ad) error {
	if ad.ID == uuid.Nil {
		ad.ID = uuid.New()
	}

	_, err := executor(ctx, s.pool).Exec(ctx, `
		INSERT INTO ads (`+adColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`, ad.ID, ad.UserID, ad.Title, ad.Description, ad.ImageURL, ad.ImageKey,
		ad.Category, ad.Condition, ad.CreatedAt, ad.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка вставки объявления: %w", translateError(err))
	}
	return nil
}

// GetAd возвращает объявление по ID
func (s *PostgresStore) GetAd(ctx context.Context, id uuid.UUID) (*models.Ad, error) {
	var ad models.Ad
	row := executor(ctx, s.pool).QueryRow(ctx, `SELECT `+adColumns+` FROM ads WHERE id = $1`, id)
	if err := scanAd(row, &ad); err != nil {
		return nil, translateError(err)
	}
	return &ad, nil
}

// LockAd читает объявление с блокировкой строки
func (s *PostgresStore) LockAd(ctx context.Context, id uuid.UUID) (*models.Ad, error) {
	var ad models.Ad
	row := executor(ctx, s.pool).QueryRow(ctx, `SELECT `+adColumns+` FROM ads WHERE id = $1 FOR UPDATE`, id)
	if err := scanAd(row, &ad); err != nil {
		return nil, translateError(err)
	}
	return &ad, nil
}

// UpdateAd обновляет изменяемые поля объявления. Владелец не меняется.
func (s *PostgresStore) UpdateAd(ctx context.Context, ad *models.Ad) error {
	tag, err := executor(ctx, s.pool).Exec(ctx, `
		UPDATE ads
		SET title = $1, description = $2, image_url = $3, image_key = $4,
			category = $5, condition = $6, updated_at = $7
		WHERE id = $8
	`, ad.Title, ad.Description, ad.ImageURL, ad.ImageKey, ad.Category, ad.Condition, ad.UpdatedAt, ad.ID)
	if err != nil {
		return fmt.Errorf("ошибка обновления объявления: %w", translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteAd удаляет объявление. Зависимые записи удаляются вызывающим заранее.
func (s *PostgresStore) DeleteAd(ctx context.Context, id uuid.UUID) error {
	tag, err := executor(ctx, s.pool).Exec(ctx, `DELETE FROM ads WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления объявления: %w", translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListAds возвращает страницу объявлений по фильтру и общее количество
func (s *PostgresStore) ListAds(ctx context.Context, filter models.AdFilter) ([]models.Ad, int, error) {
	where, args := buildAdWhere(filter)
	q := executor(ctx, s.pool)

	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM ads`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета объявлений: %w", err)
	}

	n := len(args)
	args = append(args, filter.PageSize, filter.Offset())
	rows, err := q.Query(ctx, `SELECT `+adColumns+` FROM ads`+where+
		fmt.Sprintf(` ORDER BY created_at ASC, id ASC LIMIT $%d OFFSET $%d`, n+1, n+2), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка запроса объявлений: %w", err)
	}
	defer rows.Close()

	var ads []models.Ad
	for rows.Next() {
		var ad models.Ad
		if err := scanAd(rows, &ad); err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования объявления: %w", err)
		}
		ads = append(ads, ad)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка чтения объявлений: %w", err)
	}

	return ads, total, nil
}

// ListCategories возвращает уникальные категории в алфавитном порядке
func (s *PostgresStore) ListCategories(ctx context.Context) ([]string, error) {
	rows, err := executor(ctx, s.pool).Query(ctx, `SELECT DISTINCT category FROM ads ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("ошибка запроса категорий: %w", err)
	}
	categories, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения категорий: %w", err)
	}
	return categories, nil
}

// buildAdWhere формирует условие WHERE и аргументы для фильтра объявлений
func buildAdWhere(f models.AdFilter) (string, []any) {
	var conds []string
	var args []any

	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.Search != "" {
		args = append(args, "%"+escapeLike(f.Search)+"%")
		n := len(args)
		conds = append(conds, fmt.Sprintf("(title ILIKE $%d OR description ILIKE $%d)", n, n))
	}
	if f.Category != "" {
		add("LOWER(category) = LOWER($%d)", f.Category)
	}
	if f.Condition != "" {
		add("condition = $%d", string(f.Condition))
	}
	switch f.Owner {
	case models.OwnerIs:
		add("user_id = $%d", f.UserID)
	case models.OwnerIsNot:
		add("user_id <> $%d", f.UserID)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike экранирует спецсимволы шаблона ILIKE
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
