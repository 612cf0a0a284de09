package favorite

import (
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/apperrors"
	"github.com/rajivgeraev/barter-api/internal/db"
	"github.com/rajivgeraev/barter-api/internal/middleware"
	"github.com/rajivgeraev/barter-api/internal/utils"
)

// FavoriteService представляет сервис для работы с избранными объявлениями
type FavoriteService struct {
	favorites *Favorites
	logger    *slog.Logger
}

// NewFavoriteService создает новый экземпляр FavoriteService
func NewFavoriteService(favorites *Favorites, logger *slog.Logger) *FavoriteService {
	return &FavoriteService{favorites: favorites, logger: logger}
}

// GetFavorites возвращает избранные объявления пользователя
func (s *FavoriteService) GetFavorites(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	page, err := s.favorites.List(ctx, middleware.CurrentUser(c), utils.PageQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// AddToFavorites добавляет объявление в избранное
func (s *FavoriteService) AddToFavorites(c fiber.Ctx) error {
	var requestData struct {
		AdID uuid.UUID `json:"ad_id"`
	}
	if err := c.Bind().Body(&requestData); err != nil {
		s.logger.Debug("ошибка декодирования тела запроса", "error", err)
		return apperrors.Validation("Неверный формат данных", nil)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	fav, err := s.favorites.Add(ctx, middleware.CurrentUser(c), requestData.AdID)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"id":      fav.ID,
		"message": "Объявление успешно добавлено в избранное",
	})
}

// RemoveFromFavorites удаляет объявление из избранного
func (s *FavoriteService) RemoveFromFavorites(c fiber.Ctx) error {
	adID, err := utils.UUIDParam(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.favorites.Remove(ctx, middleware.CurrentUser(c), adID); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Объявление удалено из избранного",
	})
}

// CheckFavorite проверяет, находится ли объявление в избранном
func (s *FavoriteService) CheckFavorite(c fiber.Ctx) error {
	adID, err := utils.UUIDParam(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	ok, err := s.favorites.Contains(ctx, middleware.CurrentUser(c), adID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"is_favorite": ok})
}
