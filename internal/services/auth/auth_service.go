package auth

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/barter-api/internal/apperrors"
	"github.com/rajivgeraev/barter-api/internal/db"
	"github.com/rajivgeraev/barter-api/internal/middleware"
	"github.com/rajivgeraev/barter-api/internal/models"
	"github.com/rajivgeraev/barter-api/internal/utils"
)

// AuthService – структура для обработки авторизации и профилей
type AuthService struct {
	accounts *Accounts
	limiter  *middleware.RateLimiter
	logger   *slog.Logger
}

// NewAuthService – конструктор AuthService. limiter может быть nil.
func NewAuthService(accounts *Accounts, limiter *middleware.RateLimiter, logger *slog.Logger) *AuthService {
	return &AuthService{accounts: accounts, limiter: limiter, logger: logger}
}

// RegisterHandler регистрирует пользователя по логину и паролю
func (s *AuthService) RegisterHandler(c fiber.Ctx) error {
	var payload models.RegisterInput
	if err := c.Bind().Body(&payload); err != nil {
		return apperrors.Validation("Неверный формат данных", nil)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	session, err := s.accounts.Register(ctx, payload)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(session)
}

// LoginHandler проверяет логин и пароль, создает JWT и возвращает его
func (s *AuthService) LoginHandler(c fiber.Ctx) error {
	var payload struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := c.Bind().Body(&payload); err != nil {
		return apperrors.Validation("Неверный формат данных", nil)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	session, err := s.accounts.Login(ctx, payload.Username, payload.Password)
	if err != nil {
		return err
	}
	return c.JSON(session)
}

// TelegramAuthHandler проверяет initData, создает JWT и возвращает его
func (s *AuthService) TelegramAuthHandler(c fiber.Ctx) error {
	var payload struct {
		InitData string `json:"init_data"`
	}
	if err := c.Bind().Body(&payload); err != nil {
		return apperrors.Validation("Неверный формат данных", nil)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	session, err := s.accounts.TelegramLogin(ctx, payload.InitData)
	if err != nil {
		return err
	}
	return c.JSON(session)
}

// LogoutHandler отзывает текущий токен
func (s *AuthService) LogoutHandler(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.accounts.Logout(ctx, middleware.CurrentClaims(c)); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"success": true})
}

// MeHandler возвращает профиль текущего пользователя
func (s *AuthService) MeHandler(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.accounts.Me(ctx, middleware.CurrentUser(c))
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// UpdateMeHandler меняет профиль текущего пользователя
func (s *AuthService) UpdateMeHandler(c fiber.Ctx) error {
	var patch models.ProfilePatch
	if err := c.Bind().Body(&patch); err != nil {
		return apperrors.Validation("Неверный формат данных", nil)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.accounts.UpdateProfile(ctx, middleware.CurrentUser(c), patch)
	if err != nil {
		return err
	}
	return c.JSON(user)
}

// UserHandler публичный профиль пользователя
func (s *AuthService) UserHandler(c fiber.Ctx) error {
	id, err := utils.UUIDParam(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	user, err := s.accounts.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(user)
}
