package exchange

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршруты для API обменов.
// Все маршруты требуют входа, это проверяет Workflow.
func (s *ExchangeService) SetupRoutes(api fiber.Router) {
	exchanges := api.Group("/exchanges")

	exchanges.Get("/sent", s.GetSent)
	exchanges.Get("/received", s.GetReceived)
	exchanges.Get("/:id", s.GetExchange)

	exchanges.Post("/", s.CreateExchange)
	exchanges.Post("/:id/accept", s.AcceptExchange)
	exchanges.Post("/:id/decline", s.DeclineExchange)

	exchanges.Put("/:id", s.UpdateExchange)
	exchanges.Patch("/:id", s.UpdateExchange)
	exchanges.Delete("/:id", s.DeleteExchange)
}
