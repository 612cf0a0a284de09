package utils

import (
	"strconv"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/apperrors"
)

// UUIDParam читает UUID из параметра пути. Некорректное значение дает ошибку валидации.
func UUIDParam(c fiber.Ctx, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Params(name))
	if err != nil {
		return uuid.Nil, apperrors.FieldError(name, "Неверный формат ID")
	}
	return id, nil
}

// PageQuery номер страницы из ?page=. Некорректное значение означает первую страницу.
func PageQuery(c fiber.Ctx) int {
	page, err := strconv.Atoi(c.Query("page", "1"))
	if err != nil || page < 1 {
		return 1
	}
	return page
}
