package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v3"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rajivgeraev/barter-api/internal/apperrors"
	"github.com/rajivgeraev/barter-api/internal/cache"
	"github.com/rajivgeraev/barter-api/internal/utils"
)

func newTestApp(jwtService *utils.JWTService, revoker cache.Revoker) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(slog.Default())})
	app.Use(Identity(jwtService, revoker, slog.Default()))
	app.Get("/whoami", func(c fiber.Ctx) error {
		return c.JSON(fiber.Map{"user_id": CurrentUser(c).String()})
	})
	app.Get("/private", RequireAuth(), func(c fiber.Ctx) error {
		return c.SendStatus(fiber.StatusNoContent)
	})
	return app
}

func decode(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	return out
}

func TestIdentity(t *testing.T) {
	jwtService := utils.NewJWTService("secret", time.Hour)
	revoker := cache.NewMemoryRevoker()
	app := newTestApp(jwtService, revoker)

	userID := uuid.New()
	token, claims, err := jwtService.GenerateToken(userID)
	require.NoError(t, err)

	t.Run("анонимный запрос", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/whoami", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, uuid.Nil.String(), decode(t, resp)["user_id"])
	})

	t.Run("валидный токен", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, userID.String(), decode(t, resp)["user_id"])
	})

	t.Run("неверный формат", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Token "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("поддельный токен", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer garbage")
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})

	t.Run("подписанный токен без пользователя", func(t *testing.T) {
		for _, subject := range []string{"42", uuid.Nil.String()} {
			signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
				Subject:   subject,
				ID:        uuid.NewString(),
				ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
			}).SignedString([]byte("secret"))
			require.NoError(t, err)

			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			req.Header.Set("Authorization", "Bearer "+signed)
			resp, err := app.Test(req)
			require.NoError(t, err)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode, subject)
		}
	})

	t.Run("требуется авторизация", func(t *testing.T) {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/private", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

		req := httptest.NewRequest(http.MethodGet, "/private", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err = app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	})

	t.Run("отозванный токен", func(t *testing.T) {
		require.NoError(t, revoker.Revoke(context.Background(), claims.ID, claims.ExpiresAt.Time))
		req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		resp, err := app.Test(req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	})
}

func TestErrorHandler(t *testing.T) {
	app := fiber.New(fiber.Config{ErrorHandler: NewErrorHandler(slog.Default())})
	app.Get("/validation", func(c fiber.Ctx) error {
		return apperrors.FieldError("title", "Обязательное поле")
	})
	app.Get("/wrapped", func(c fiber.Ctx) error {
		return errors.Join(errors.New("context"), apperrors.ErrConflict)
	})
	app.Get("/fiber", func(c fiber.Ctx) error {
		return fiber.NewError(fiber.StatusTeapot, "teapot")
	})
	app.Get("/internal", func(c fiber.Ctx) error {
		return errors.New("db exploded")
	})

	tests := []struct {
		path    string
		status  int
		message string
	}{
		{"/validation", http.StatusBadRequest, "Обязательное поле"},
		{"/wrapped", http.StatusConflict, ""},
		{"/fiber", http.StatusTeapot, "teapot"},
		{"/internal", http.StatusInternalServerError, "Внутренняя ошибка сервера"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest(http.MethodGet, tt.path, nil))
			require.NoError(t, err)
			assert.Equal(t, tt.status, resp.StatusCode)
			body := decode(t, resp)
			if tt.message != "" {
				assert.Equal(t, tt.message, body["error"])
			}
			if tt.path == "/validation" {
				assert.Equal(t, map[string]any{"title": "Обязательное поле"}, body["fields"])
			}
		})
	}
}

func TestRateLimiter(t *testing.T) {
	limiter := NewRateLimiter(0.001, 2)
	app := fiber.New()
	app.Use(limiter.Handler())
	app.Get("/", func(c fiber.Ctx) error { return c.SendString("ok") })

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
		require.NoError(t, err)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "1", resp.Header.Get("Retry-After"))
}
