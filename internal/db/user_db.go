package db

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/rajivgeraev/barter-api/internal/models"
)

// TelegramUsernamePrefix префикс имени пользователя, созданного через Telegram
const TelegramUsernamePrefix = "tg_"

// TelegramUsername имя пользователя для аккаунта Telegram
func TelegramUsername(telegramID int64) string {
	return TelegramUsernamePrefix + strconv.FormatInt(telegramID, 10)
}

const userColumns = `id, username, password_hash, first_name, last_name, email, avatar_url, created_at, last_login_at`

// scanUser читает пользователя и преобразует nullable поля
func scanUser(row pgx.Row) (*models.User, error) {
	var user models.User
	var passwordHash, firstName, lastName, email, avatarURL pgtype.Text
	var lastLogin pgtype.Timestamptz

	err := row.Scan(
		&user.ID, &user.Username, &passwordHash, &firstName, &lastName,
		&email, &avatarURL, &user.CreatedAt, &lastLogin,
	)
	if err != nil {
		return nil, translateError(err)
	}

	if passwordHash.Valid {
		user.PasswordHash = passwordHash.String
	}
	if firstName.Valid {
		user.FirstName = firstName.String
	}
	if lastName.Valid {
		user.LastName = lastName.String
	}
	if email.Valid {
		user.Email = email.String
	}
	if avatarURL.Valid {
		user.AvatarURL = avatarURL.String
	}
	if lastLogin.Valid {
		t := lastLogin.Time
		user.LastLoginAt = &t
	}

	return &user, nil
}

// nullText превращает пустую строку в NULL
func nullText(s string) pgtype.Text {
	return pgtype.Text{String: s, Valid: s != ""}
}

// CreateUser сохраняет нового пользователя
func (s *PostgresStore) CreateUser(ctx context.Context, u *models.User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}

	_, err := executor(ctx, s.pool).Exec(ctx, `
		INSERT INTO users (id, username, password_hash, first_name, last_name, email, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
	`, u.ID, u.Username, nullText(u.PasswordHash), nullText(u.FirstName), nullText(u.LastName),
		nullText(u.Email), nullText(u.AvatarURL), u.CreatedAt)
	if err != nil {
		return fmt.Errorf("ошибка при создании пользователя: %w", translateError(err))
	}
	return nil
}

// GetUserByID получает пользователя по ID
func (s *PostgresStore) GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	return scanUser(executor(ctx, s.pool).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, id))
}

// GetUserByUsername получает пользователя по имени без учета регистра
func (s *PostgresStore) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	return scanUser(executor(ctx, s.pool).QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(username) = LOWER($1)`, username))
}

// UpdateUser обновляет профиль пользователя
func (s *PostgresStore) UpdateUser(ctx context.Context, u *models.User) error {
	tag, err := executor(ctx, s.pool).Exec(ctx, `
		UPDATE users
		SET first_name = $1, last_name = $2, email = $3, avatar_url = $4, updated_at = CURRENT_TIMESTAMP
		WHERE id = $5
	`, nullText(u.FirstName), nullText(u.LastName), nullText(u.Email), nullText(u.AvatarURL), u.ID)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении пользователя: %w", translateError(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// TouchLastLogin обновляет время последнего входа
func (s *PostgresStore) TouchLastLogin(ctx context.Context, id uuid.UUID) error {
	_, err := executor(ctx, s.pool).Exec(ctx, `
		UPDATE users SET last_login_at = CURRENT_TIMESTAMP WHERE id = $1
	`, id)
	if err != nil {
		return fmt.Errorf("ошибка при обновлении времени входа пользователя: %w", err)
	}
	return nil
}

// UpsertTelegramUser создает нового пользователя через Telegram или обновляет существующего
func (s *PostgresStore) UpsertTelegramUser(ctx context.Context, tg models.TelegramUser) (*models.User, error) {
	var user *models.User

	err := s.ExecTx(ctx, func(ctx context.Context) error {
		q := executor(ctx, s.pool)

		var userID uuid.UUID
		err := q.QueryRow(ctx, `
			SELECT user_id FROM telegram_users WHERE telegram_id = $1
		`, tg.TelegramID).Scan(&userID)
		if err != nil && !errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("ошибка при проверке существования пользователя Telegram: %w", err)
		}

		if errors.Is(err, pgx.ErrNoRows) {
			// Первый вход: создаем запись в users и telegram_users
			userID = uuid.New()
			err = q.QueryRow(ctx, `
				INSERT INTO users (id, username, first_name, last_name, avatar_url, last_login_at)
				VALUES ($1, $2, $3, $4, $5, CURRENT_TIMESTAMP)
				RETURNING id
			`, userID, TelegramUsername(tg.TelegramID), nullText(tg.FirstName), nullText(tg.LastName),
				nullText(tg.PhotoURL)).Scan(&userID)
			if err != nil {
				return fmt.Errorf("ошибка при создании пользователя: %w", translateError(err))
			}

			_, err = q.Exec(ctx, `
				INSERT INTO telegram_users (user_id, telegram_id, username, first_name, last_name, photo_url, is_premium, language_code)
				VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			`, userID, tg.TelegramID, nullText(tg.Username), nullText(tg.FirstName), nullText(tg.LastName),
				nullText(tg.PhotoURL), tg.IsPremium, nullText(tg.LanguageCode))
			if err != nil {
				return fmt.Errorf("ошибка при создании Telegram пользователя: %w", translateError(err))
			}
		} else {
			_, err = q.Exec(ctx, `
				UPDATE users SET last_login_at = CURRENT_TIMESTAMP WHERE id = $1
			`, userID)
			if err != nil {
				return fmt.Errorf("ошибка при обновлении времени входа пользователя: %w", err)
			}

			_, err = q.Exec(ctx, `
				UPDATE telegram_users
				SET username = $1, first_name = $2, last_name = $3, photo_url = $4,
					is_premium = $5, language_code = $6, updated_at = CURRENT_TIMESTAMP
				WHERE telegram_id = $7
			`, nullText(tg.Username), nullText(tg.FirstName), nullText(tg.LastName), nullText(tg.PhotoURL),
				tg.IsPremium, nullText(tg.LanguageCode), tg.TelegramID)
			if err != nil {
				return fmt.Errorf("ошибка при обновлении Telegram пользователя: %w", err)
			}
		}

		user, err = scanUser(q.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, userID))
		if err != nil {
			return fmt.Errorf("ошибка при получении пользователя: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return user, nil
}
