package ad

import (
	"github.com/gofiber/fiber/v3"
)

// SetupRoutes настраивает маршруты для API объявлений.
// api уже содержит middleware Identity, права проверяет каталог.
func (s *AdService) SetupRoutes(api fiber.Router) {
	ads := api.Group("/ads")

	// Публичные маршруты
	ads.Get("/", s.GetAds)
	ads.Get("/categories", s.GetCategories)
	ads.Get("/conditions", s.GetConditions)

	// Маршруты текущего пользователя регистрируем раньше /:id
	ads.Get("/my", s.GetMyAds)
	ads.Get("/others", s.GetOthersAds)

	ads.Get("/:id", s.GetAd)
	ads.Post("/", s.CreateAd)
	ads.Put("/:id", s.UpdateAd)
	ads.Patch("/:id", s.UpdateAd)
	ads.Delete("/:id", s.DeleteAd)
}
