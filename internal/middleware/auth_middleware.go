package middleware

import (
	"log/slog"
	"strings"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/apperrors"
	"github.com/rajivgeraev/barter-api/internal/cache"
	"github.com/rajivgeraev/barter-api/internal/db"
	"github.com/rajivgeraev/barter-api/internal/utils"
)

const (
	userIDKey = "userID"
	claimsKey = "claims"
)

// Identity определяет пользователя по заголовку Authorization.
// Без заголовка запрос идет дальше анонимно, с некорректным токеном получает 401.
func Identity(jwtService *utils.JWTService, revoker cache.Revoker, logger *slog.Logger) fiber.Handler {
	return func(c fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			c.Locals(userIDKey, uuid.Nil)
			return c.Next()
		}

		// Проверяем Bearer токен
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			return apperrors.Unauthenticated("Неверный формат заголовка авторизации")
		}

		claims, err := jwtService.ValidateToken(parts[1])
		if err != nil {
			return apperrors.Unauthenticated("Недействительный или просроченный токен")
		}

		ctx, cancel := db.GetContext()
		defer cancel()

		revoked, err := revoker.IsRevoked(ctx, claims.ID)
		if err != nil {
			// Хранилище отзыва недоступно: пропускаем, токен все равно подписан
			logger.Warn("не удалось проверить отзыв токена", "error", err)
		}
		if revoked {
			return apperrors.Unauthenticated("Сессия завершена")
		}

		userID, err := claims.UserID()
		if err != nil {
			return apperrors.Unauthenticated("Недействительный или просроченный токен")
		}

		// Добавляем userID в контекст
		c.Locals(userIDKey, userID)
		c.Locals(claimsKey, claims)

		return c.Next()
	}
}

// RequireAuth отклоняет анонимные запросы
func RequireAuth() fiber.Handler {
	return func(c fiber.Ctx) error {
		if CurrentUser(c) == uuid.Nil {
			return apperrors.Unauthenticated("Требуется авторизация")
		}
		return c.Next()
	}
}

// CurrentUser возвращает ID пользователя запроса или uuid.Nil для анонимного
func CurrentUser(c fiber.Ctx) uuid.UUID {
	userID, _ := c.Locals(userIDKey).(uuid.UUID)
	return userID
}

// CurrentClaims возвращает данные токена запроса или nil
func CurrentClaims(c fiber.Ctx) *utils.Claims {
	claims, _ := c.Locals(claimsKey).(*utils.Claims)
	return claims
}
