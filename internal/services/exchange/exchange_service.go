package exchange

import (
	"context"
	"log/slog"

	"github.com/gofiber/fiber/v3"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/apperrors"
	"github.com/rajivgeraev/barter-api/internal/db"
	"github.com/rajivgeraev/barter-api/internal/middleware"
	"github.com/rajivgeraev/barter-api/internal/models"
	"github.com/rajivgeraev/barter-api/internal/utils"
)

// ExchangeService HTTP-обработчики предложений обмена
type ExchangeService struct {
	workflow *Workflow
	logger   *slog.Logger
}

// NewExchangeService создает новый экземпляр ExchangeService
func NewExchangeService(workflow *Workflow, logger *slog.Logger) *ExchangeService {
	return &ExchangeService{workflow: workflow, logger: logger}
}

// GetSent возвращает предложения, отправленные пользователем
func (s *ExchangeService) GetSent(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	page, err := s.workflow.ListSent(ctx, middleware.CurrentUser(c), utils.PageQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// GetReceived возвращает предложения, полученные пользователем
func (s *ExchangeService) GetReceived(c fiber.Ctx) error {
	ctx, cancel := db.GetContext()
	defer cancel()

	page, err := s.workflow.ListReceived(ctx, middleware.CurrentUser(c), utils.PageQuery(c))
	if err != nil {
		return err
	}
	return c.JSON(page)
}

// GetExchange возвращает предложение участнику обмена
func (s *ExchangeService) GetExchange(c fiber.Ctx) error {
	id, err := utils.UUIDParam(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	p, err := s.workflow.Get(ctx, middleware.CurrentUser(c), id)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// CreateExchange создает новое предложение обмена
func (s *ExchangeService) CreateExchange(c fiber.Ctx) error {
	var req models.ProposalInput
	if err := c.Bind().Body(&req); err != nil {
		s.logger.Debug("ошибка декодирования тела запроса", "error", err)
		return apperrors.Validation("Неверный формат данных", nil)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	p, err := s.workflow.Create(ctx, middleware.CurrentUser(c), req)
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(p)
}

// UpdateExchange меняет объявления или комментарий (PUT и PATCH)
func (s *ExchangeService) UpdateExchange(c fiber.Ctx) error {
	id, err := utils.UUIDParam(c, "id")
	if err != nil {
		return err
	}

	var req models.ProposalPatch
	if err := c.Bind().Body(&req); err != nil {
		s.logger.Debug("ошибка декодирования тела запроса", "error", err)
		return apperrors.Validation("Неверный формат данных", nil)
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	p, err := s.workflow.Update(ctx, middleware.CurrentUser(c), id, req)
	if err != nil {
		return err
	}
	return c.JSON(p)
}

// AcceptExchange принимает предложение
func (s *ExchangeService) AcceptExchange(c fiber.Ctx) error {
	return s.decide(c, s.workflow.Accept, "Предложение обмена принято")
}

// DeclineExchange отклоняет предложение
func (s *ExchangeService) DeclineExchange(c fiber.Ctx) error {
	return s.decide(c, s.workflow.Decline, "Предложение обмена отклонено")
}

type decision func(ctx context.Context, user, id uuid.UUID) (*models.ExchangeProposal, error)

func (s *ExchangeService) decide(c fiber.Ctx, fn decision, message string) error {
	id, err := utils.UUIDParam(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	p, err := fn(ctx, middleware.CurrentUser(c), id)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success":  true,
		"message":  message,
		"exchange": p,
	})
}

// DeleteExchange удаляет предложение
func (s *ExchangeService) DeleteExchange(c fiber.Ctx) error {
	id, err := utils.UUIDParam(c, "id")
	if err != nil {
		return err
	}

	ctx, cancel := db.GetContext()
	defer cancel()

	if err := s.workflow.Delete(ctx, middleware.CurrentUser(c), id); err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"success": true,
		"message": "Предложение обмена удалено",
	})
}
