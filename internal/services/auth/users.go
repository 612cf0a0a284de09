// Package auth реализует регистрацию, вход, выход и профили пользователей
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"github.com/google/uuid"
	initdata "github.com/telegram-mini-apps/init-data-golang"

	"github.com/rajivgeraev/barter-api/internal/apperrors"
	"github.com/rajivgeraev/barter-api/internal/auth"
	"github.com/rajivgeraev/barter-api/internal/cache"
	"github.com/rajivgeraev/barter-api/internal/db"
	"github.com/rajivgeraev/barter-api/internal/guard"
	"github.com/rajivgeraev/barter-api/internal/models"
	"github.com/rajivgeraev/barter-api/internal/utils"
)

// Ограничения полей пользователя
const (
	MinUsernameLength  = 3
	MaxUsernameLength  = 150
	MinPasswordLength  = 8
	MaxPasswordLength  = 72 // больше bcrypt не принимает
	MaxFirstNameLength = 50
	MaxLastNameLength  = 15
)

// initData Telegram действительна сутки
const telegramInitDataTTL = 24 * time.Hour

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_.@+-]+$`)

// Session выданный токен вместе с пользователем
type Session struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      models.User `json:"user"`
}

// Accounts управляет пользователями и их сессиями
type Accounts struct {
	store      db.UserRepository
	jwt        *utils.JWTService
	revoker    cache.Revoker
	botToken   string
	logger     *slog.Logger
	validateTG func(initData, token string, ttl time.Duration) error
	hash       func(password string) (string, error)
}

// NewAccounts создаёт сервис пользователей. Пустой botToken отключает вход через Telegram.
func NewAccounts(store db.UserRepository, jwt *utils.JWTService, revoker cache.Revoker, botToken string, logger *slog.Logger) *Accounts {
	return &Accounts{
		store:      store,
		jwt:        jwt,
		revoker:    revoker,
		botToken:   botToken,
		logger:     logger,
		validateTG: initdata.Validate,
		hash:       auth.HashPassword,
	}
}

// Register создаёт пользователя с паролем и сразу выдаёт сессию
func (a *Accounts) Register(ctx context.Context, in models.RegisterInput) (*Session, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.FirstName = strings.TrimSpace(in.FirstName)
	in.LastName = strings.TrimSpace(in.LastName)
	in.Email = strings.TrimSpace(in.Email)

	if err := validateRegistration(&in); err != nil {
		return nil, err
	}

	hash, err := a.hash(in.Password)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	user := &models.User{
		ID:           uuid.New(),
		Username:     in.Username,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Email:        in.Email,
		PasswordHash: hash,
		CreatedAt:    now,
		LastLoginAt:  &now,
	}
	if err := a.store.CreateUser(ctx, user); err != nil {
		if errors.Is(err, db.ErrDuplicate) {
			return nil, apperrors.FieldError("username", "Пользователь с таким username уже существует")
		}
		return nil, fmt.Errorf("ошибка создания пользователя: %w", err)
	}

	a.logger.Info("пользователь зарегистрирован", "user_id", user.ID, "username", user.Username)
	return a.issue(user)
}

// Login проверяет пароль и выдаёт сессию
func (a *Accounts) Login(ctx context.Context, username, password string) (*Session, error) {
	invalid := apperrors.Unauthenticated("Неверное имя пользователя или пароль")

	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return nil, invalid
	}

	user, err := a.store.GetUserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, invalid
		}
		return nil, fmt.Errorf("ошибка поиска пользователя: %w", err)
	}

	if err := auth.CheckPassword(user.PasswordHash, password); err != nil {
		if errors.Is(err, auth.ErrMismatch) {
			return nil, invalid
		}
		return nil, err
	}

	if err := a.store.TouchLastLogin(ctx, user.ID); err != nil {
		a.logger.Warn("не удалось обновить время входа", "user_id", user.ID, "error", err)
	}
	return a.issue(user)
}

// TelegramLogin проверяет initData Mini App и входит от имени связанного пользователя,
// создавая его при первом входе
func (a *Accounts) TelegramLogin(ctx context.Context, rawInitData string) (*Session, error) {
	if a.botToken == "" {
		return nil, apperrors.NotFound("Вход через Telegram не настроен")
	}
	if strings.TrimSpace(rawInitData) == "" {
		return nil, apperrors.FieldError("init_data", "Передайте init_data")
	}

	if err := a.validateTG(rawInitData, a.botToken, telegramInitDataTTL); err != nil {
		a.logger.Debug("недействительные данные Telegram", "error", err)
		return nil, apperrors.Unauthenticated("Недействительные данные Telegram")
	}

	data, err := initdata.Parse(rawInitData)
	if err != nil {
		return nil, apperrors.FieldError("init_data", "Не удалось разобрать init_data")
	}
	if data.User.ID == 0 {
		return nil, apperrors.FieldError("init_data", "В init_data нет пользователя")
	}

	user, err := a.store.UpsertTelegramUser(ctx, models.TelegramUser{
		TelegramID:   data.User.ID,
		Username:     data.User.Username,
		FirstName:    data.User.FirstName,
		LastName:     data.User.LastName,
		PhotoURL:     data.User.PhotoURL,
		IsPremium:    data.User.IsPremium,
		LanguageCode: data.User.LanguageCode,
	})
	if err != nil {
		return nil, fmt.Errorf("ошибка сохранения пользователя Telegram: %w", err)
	}

	a.logger.Info("вход через Telegram", "user_id", user.ID, "telegram_id", data.User.ID)
	return a.issue(user)
}

// Logout отзывает токен до истечения его срока
func (a *Accounts) Logout(ctx context.Context, claims *utils.Claims) error {
	if claims == nil {
		return apperrors.Unauthenticated("Пользователь не авторизован")
	}
	if claims.ID == "" {
		return apperrors.Validation("Токен нельзя отозвать", nil)
	}

	until := time.Now().Add(time.Minute)
	if claims.ExpiresAt != nil {
		until = claims.ExpiresAt.Time
	}
	if err := a.revoker.Revoke(ctx, claims.ID, until); err != nil {
		return fmt.Errorf("ошибка завершения сессии: %w", err)
	}
	return nil
}

// Get возвращает публичный профиль
func (a *Accounts) Get(ctx context.Context, id uuid.UUID) (*models.PublicUser, error) {
	user, err := a.load(ctx, id)
	if err != nil {
		return nil, err
	}
	public := user.Public()
	return &public, nil
}

// Me возвращает полный профиль текущего пользователя
func (a *Accounts) Me(ctx context.Context, user uuid.UUID) (*models.User, error) {
	if err := guard.Authorize(user, guard.ProfileManage, guard.Resource{}); err != nil {
		return nil, err
	}
	return a.load(ctx, user)
}

// UpdateProfile меняет имя, фамилию, email и аватар текущего пользователя
func (a *Accounts) UpdateProfile(ctx context.Context, user uuid.UUID, patch models.ProfilePatch) (*models.User, error) {
	if err := guard.Authorize(user, guard.ProfileManage, guard.Resource{}); err != nil {
		return nil, err
	}
	u, err := a.load(ctx, user)
	if err != nil {
		return nil, err
	}

	if patch.FirstName != nil {
		u.FirstName = strings.TrimSpace(*patch.FirstName)
	}
	if patch.LastName != nil {
		u.LastName = strings.TrimSpace(*patch.LastName)
	}
	if patch.Email != nil {
		u.Email = strings.TrimSpace(*patch.Email)
	}
	if patch.AvatarURL != nil {
		u.AvatarURL = strings.TrimSpace(*patch.AvatarURL)
	}

	err = validation.ValidateStruct(u,
		validation.Field(&u.FirstName, validation.RuneLength(0, MaxFirstNameLength).Error(fmt.Sprintf("Имя не длиннее %d символов", MaxFirstNameLength))),
		validation.Field(&u.LastName, validation.RuneLength(0, MaxLastNameLength).Error(fmt.Sprintf("Фамилия не длиннее %d символов", MaxLastNameLength))),
		validation.Field(&u.Email, is.EmailFormat.Error("Некорректный email")),
		validation.Field(&u.AvatarURL, is.URL.Error("Некорректная ссылка на аватар")),
	)
	if err := apperrors.FromValidation(err); err != nil {
		return nil, err
	}

	if err := a.store.UpdateUser(ctx, u); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperrors.NotFound("Пользователь не найден")
		}
		return nil, fmt.Errorf("ошибка обновления профиля: %w", err)
	}
	return u, nil
}

func (a *Accounts) load(ctx context.Context, id uuid.UUID) (*models.User, error) {
	user, err := a.store.GetUserByID(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperrors.NotFound("Пользователь не найден")
		}
		return nil, fmt.Errorf("ошибка получения пользователя: %w", err)
	}
	return user, nil
}

func (a *Accounts) issue(user *models.User) (*Session, error) {
	token, claims, err := a.jwt.GenerateToken(user.ID)
	if err != nil {
		return nil, fmt.Errorf("ошибка генерации токена: %w", err)
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time, User: *user}, nil
}

func validateRegistration(in *models.RegisterInput) error {
	err := validation.ValidateStruct(in,
		validation.Field(&in.Username,
			validation.Required.Error("Укажите имя пользователя"),
			validation.RuneLength(MinUsernameLength, MaxUsernameLength).Error(
				fmt.Sprintf("Имя пользователя от %d до %d символов", MinUsernameLength, MaxUsernameLength)),
			validation.Match(usernamePattern).Error("Только буквы, цифры и символы @/./+/-/_"),
			validation.By(func(any) error {
				if strings.HasPrefix(strings.ToLower(in.Username), db.TelegramUsernamePrefix) {
					return errors.New("Имя пользователя занято")
				}
				return nil
			}),
		),
		validation.Field(&in.Password,
			validation.Required.Error("Укажите пароль"),
			validation.Length(MinPasswordLength, MaxPasswordLength).Error(
				fmt.Sprintf("Пароль от %d до %d символов", MinPasswordLength, MaxPasswordLength)),
		),
		validation.Field(&in.FirstName, validation.RuneLength(0, MaxFirstNameLength).Error(fmt.Sprintf("Имя не длиннее %d символов", MaxFirstNameLength))),
		validation.Field(&in.LastName, validation.RuneLength(0, MaxLastNameLength).Error(fmt.Sprintf("Фамилия не длиннее %d символов", MaxLastNameLength))),
		validation.Field(&in.Email, is.EmailFormat.Error("Некорректный email")),
	)
	return apperrors.FromValidation(err)
}
