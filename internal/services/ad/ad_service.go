package ad

import (
	"encoding/json"
	"log/slog"

	"github.com/gofiber/fiber/v3"

	"github.com/rajivgeraev/barter-api/internal/apperrors"
	"github.com/rajivgeraev/barter-api/internal/db"
	"github.com/rajivgeraev/barter-api/internal/middleware"
	"github.com/rajivgeraev/barter-api/internal/models"
	"github.com/rajivgeraev/barter-api/internal/utils"
)

// AdService HTTP-обработчики каталога объявлений
type AdService struct {
	catalog *Catalog
	logger  *slog.Logger
}

// NewAdService создает новый экземпляр AdService
func NewAdService(catalog *Catalog, logger *slog.Logger) *AdService {
	return &AdService{catalog: catalog, logger: logger}
}

// createRequest тело запроса на создание. Вместо image_url и image_key клиент
// может переслать ответ Cloudinary целиком.
type createRequest struct {
	models.AdInput
	CloudinaryResponse json.RawMessage `json:"cloudinary_response,omitempty"`
}

type updateRequest struct {
	models.AdPatch
	CloudinaryResponse json.RawMessage `json:"cloudinary_response,omitempty"`
}

// imageFromCloudinary извлекает ссылку и ключ из пересланного ответа Cloudinary
func (s *AdService) imageFromCloudinary(raw json.RawMessage) (url, key *string, err error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil, nil
	}
	resp, err := models.ParseCloudinaryResponse(raw)
	if err != nil {
		s.logger.Warn("ошибка парсинга ответа Cloudinary", "error", err)
		return nil, nil, apperrors.FieldError("cloudinary_response", "Некорректный ответ Cloudinary")
	}
	u, k := resp.ImageRef()
	return &u, &k, nil
}

// GetAds возвращает публичный список объявлений с фильтрами
func (s *AdService) GetAds(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	page, err := s.catalog.List(ctx, models.AdFilter{
		Search:    c.Query("search"),
		Category:  c.Query("category"),
		Condition: models.Condition(c.Query("condition")),
		Page:      utils.PageQuery(c),
	})
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// GetMyAds объявления текущего пользователя
func (s *AdService) GetMyAds(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	page, err := s.catalog.ListMine(ctx, middleware.CurrentUser(c), utils.PageQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// GetOthersAds объявления других пользователей, которые можно запросить в обмен
func (s *AdService) GetOthersAds(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	page, err := s.catalog.ListOthers(ctx, middleware.CurrentUser(c), utils.PageQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// GetCategories список категорий для фильтра
func (s *AdService) GetCategories(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	categories, err := s.catalog.Categories(ctx)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"categories": categories})
}

// GetConditions допустимые состояния товара с подписями
func (s *AdService) GetConditions(c fiber.Ctx) error {
	return c.JSON(fiber.Map{"conditions": models.ConditionChoices})
}

// GetAd возвращает объявление по ID
func (s *AdService) GetAd(c fiber.Ctx) error {
	id, err := utils.UUIDParam(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	ad, err := s.catalog.Get(ctx, id)
	if err != nil {
		return err
	}
	return c.JSON(ad)
}

// CreateAd обрабатывает создание нового объявления
func (s *AdService) CreateAd(c fiber.Ctx) error {
	var req createRequest
	if err := c.Bind().Body(&req); err != nil {
		s.logger.Debug("ошибка декодирования тела запроса", "error", err)
		return apperrors.Validation("Неверный формат данных", nil)
	}

	url, key, err := s.imageFromCloudinary(req.CloudinaryResponse)
	if err != nil {
		return err
	}
	if url != nil {
		req.ImageURL, req.ImageKey = url, key
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	ad, err := s.catalog.Create(ctx, middleware.CurrentUser(c), req.AdInput)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(ad)
}

// UpdateAd обрабатывает изменение объявления (PUT и PATCH)
func (s *AdService) UpdateAd(c fiber.Ctx) error {
	id, err := utils.UUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req updateRequest
	if err := c.Bind().Body(&req); err != nil {
		s.logger.Debug("ошибка декодирования тела запроса", "error", err)
		return apperrors.Validation("Неверный формат данных", nil)
	}

	url, key, err := s.imageFromCloudinary(req.CloudinaryResponse)
	if err != nil {
		return err
	}
	if url != nil {
		req.ImageURL, req.ImageKey = url, key
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	ad, err := s.catalog.Update(ctx, middleware.CurrentUser(c), id, req.AdPatch)
	if err != nil {
		return err
	}
	return c.JSON(ad)
}

// DeleteAd удаляет объявление вместе со связанными предложениями
func (s *AdService) DeleteAd(c fiber.Ctx) error {
	id, err := utils.UUIDParam(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.catalog.Delete(ctx, middleware.CurrentUser(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Объявление удалено",
	})
}
