package auth

import (
	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/barter-api/internal/middleware"
)

// SetupRoutes регистрирует маршруты в Fiber
func (s *AuthService) SetupRoutes(api fiber.Router) {
	authGroup := api.Group("/auth")
	if s.limiter != nil {
		authGroup.Use(s.limiter.Handler())
	}

	authGroup.Post("/register", s.RegisterHandler)
	authGroup.Post("/login", s.LoginHandler)
	authGroup.Post("/telegram", s.TelegramAuthHandler)
	authGroup.Post("/logout", middleware.RequireAuth(), s.LogoutHandler)

	users := api.Group("/users")
	users.Get("/me", s.MeHandler)
	users.Put("/me", s.UpdateMeHandler)
	users.Patch("/me", s.UpdateMeHandler)
	users.Get("/:id", s.UserHandler)
}
