// Package exchange реализует предложения обмена объявлениями
package exchange

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/apperrors"
	"github.com/rajivgeraev/barter-api/internal/db"
	"github.com/rajivgeraev/barter-api/internal/guard"
	"github.com/rajivgeraev/barter-api/internal/models"
)

// MaxCommentLength максимальная длина комментария к предложению
const MaxCommentLength = 2000

// Workflow управляет жизненным циклом предложений обмена:
// waiting -> accepted | declined, оба конечных статуса окончательны.
type Workflow struct {
	store    db.Store
	pageSize int
	logger   *slog.Logger
	now      func() time.Time
}

// NewWorkflow создаёт сервис предложений
func NewWorkflow(store db.Store, pageSize int, logger *slog.Logger) *Workflow {
	return &Workflow{
		store:    store,
		pageSize: pageSize,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// ListSent предложения, где пользователь владеет отправленным объявлением
func (w *Workflow) ListSent(ctx context.Context, user uuid.UUID, page int) (models.Page[models.ExchangeProposal], error) {
	return w.list(ctx, user, models.SideSender, page)
}

// ListReceived предложения, где пользователь владеет запрошенным объявлением
func (w *Workflow) ListReceived(ctx context.Context, user uuid.UUID, page int) (models.Page[models.ExchangeProposal], error) {
	return w.list(ctx, user, models.SideReceiver, page)
}

func (w *Workflow) list(ctx context.Context, user uuid.UUID, side models.ProposalSide, page int) (models.Page[models.ExchangeProposal], error) {
	if err := guard.Authorize(user, guard.ProposalList, guard.Resource{}); err != nil {
		return models.Page[models.ExchangeProposal]{}, err
	}
	if page < 1 {
		page = 1
	}

	items, total, err := w.store.ListProposals(ctx, side, user, page, w.pageSize)
	if err != nil {
		return models.Page[models.ExchangeProposal]{}, fmt.Errorf("ошибка получения предложений обмена: %w", err)
	}
	return models.NewPage(items, total, page, w.pageSize), nil
}

// Get возвращает предложение участнику обмена
func (w *Workflow) Get(ctx context.Context, user, id uuid.UUID) (*models.ExchangeProposal, error) {
	if err := guard.Authenticated(user); err != nil {
		return nil, err
	}
	p, err := w.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard.Authorize(user, guard.ProposalView, resourceOf(p)); err != nil {
		return nil, err
	}
	return p, nil
}

// Create предлагает обменять своё объявление на чужое
func (w *Workflow) Create(ctx context.Context, user uuid.UUID, in models.ProposalInput) (*models.ExchangeProposal, error) {
	if err := guard.Authenticated(user); err != nil {
		return nil, err
	}

	in.Comment = normalizeComment(in.Comment)
	if err := validateInput(&in); err != nil {
		return nil, err
	}

	now := w.now()
	p := &models.ExchangeProposal{
		ID:           uuid.New(),
		AdSenderID:   in.AdSenderID,
		AdReceiverID: in.AdReceiverID,
		Comment:      in.Comment,
		Status:       models.StatusWaiting,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err := w.store.ExecTx(ctx, func(ctx context.Context) error {
		sender, receiver, err := w.checkPair(ctx, user, p.AdSenderID, p.AdReceiverID, uuid.Nil)
		if err != nil {
			return err
		}

		if err := w.store.CreateProposal(ctx, p); err != nil {
			return proposalWriteError(err)
		}
		p.AdSender, p.AdReceiver = sender, receiver
		return nil
	})
	if err != nil {
		return nil, err
	}

	w.logger.Info("предложение обмена создано", "proposal_id", p.ID, "user_id", user)
	return p, nil
}

// Accept принимает предложение. Может только владелец запрошенного объявления.
func (w *Workflow) Accept(ctx context.Context, user, id uuid.UUID) (*models.ExchangeProposal, error) {
	return w.transition(ctx, user, id, guard.ProposalAccept, models.StatusAccepted)
}

// Decline отклоняет предложение. Может только владелец запрошенного объявления.
func (w *Workflow) Decline(ctx context.Context, user, id uuid.UUID) (*models.ExchangeProposal, error) {
	return w.transition(ctx, user, id, guard.ProposalDecline, models.StatusDeclined)
}

// transition меняет статус через сравнение с waiting, поэтому из двух
// одновременных решений побеждает ровно одно.
func (w *Workflow) transition(ctx context.Context, user, id uuid.UUID, action guard.Action, to models.ProposalStatus) (*models.ExchangeProposal, error) {
	if err := guard.Authenticated(user); err != nil {
		return nil, err
	}
	p, err := w.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := guard.Authorize(user, action, resourceOf(p)); err != nil {
		return nil, err
	}
	if p.Status.Terminal() {
		return nil, alreadyDecided(p.Status)
	}

	ok, err := w.store.SetProposalStatus(ctx, id, models.StatusWaiting, to)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperrors.NotFound("Предложение обмена не найдено")
		}
		return nil, fmt.Errorf("ошибка обновления статуса предложения: %w", err)
	}
	if !ok {
		// Кто-то успел решить раньше
		current, err := w.load(ctx, id)
		if err != nil {
			return nil, err
		}
		return nil, alreadyDecided(current.Status)
	}

	p.Status = to
	p.UpdatedAt = w.now()
	w.logger.Info("статус предложения обмена изменен", "proposal_id", id, "user_id", user, "status", to)
	return p, nil
}

// Update меняет объявления или комментарий ожидающего предложения.
// Статус здесь не меняется.
func (w *Workflow) Update(ctx context.Context, user, id uuid.UUID, patch models.ProposalPatch) (*models.ExchangeProposal, error) {
	if err := guard.Authenticated(user); err != nil {
		return nil, err
	}

	var updated *models.ExchangeProposal
	err := w.store.ExecTx(ctx, func(ctx context.Context) error {
		p, err := w.load(ctx, id)
		if err != nil {
			return err
		}
		if err := guard.Authorize(user, guard.ProposalUpdate, resourceOf(p)); err != nil {
			return err
		}
		if p.Status.Terminal() {
			return apperrors.Conflict("Нельзя изменить предложение, которое уже не находится в ожидании")
		}

		in := models.ProposalInput{AdSenderID: p.AdSenderID, AdReceiverID: p.AdReceiverID, Comment: p.Comment}
		if patch.AdSenderID != nil {
			in.AdSenderID = *patch.AdSenderID
		}
		if patch.AdReceiverID != nil {
			in.AdReceiverID = *patch.AdReceiverID
		}
		if patch.Comment != nil {
			in.Comment = normalizeComment(patch.Comment)
		}
		if err := validateInput(&in); err != nil {
			return err
		}

		sender, receiver, err := w.checkPair(ctx, user, in.AdSenderID, in.AdReceiverID, p.ID)
		if err != nil {
			return err
		}

		p.AdSenderID, p.AdReceiverID, p.Comment = in.AdSenderID, in.AdReceiverID, in.Comment
		p.UpdatedAt = w.now()

		ok, err := w.store.UpdateProposal(ctx, p)
		if err != nil {
			return proposalWriteError(err)
		}
		if !ok {
			return apperrors.Conflict("Нельзя изменить предложение, которое уже не находится в ожидании")
		}

		p.AdSender, p.AdReceiver = sender, receiver
		updated = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// Delete удаляет предложение в любом статусе. Может только отправитель.
func (w *Workflow) Delete(ctx context.Context, user, id uuid.UUID) error {
	if err := guard.Authenticated(user); err != nil {
		return err
	}
	p, err := w.load(ctx, id)
	if err != nil {
		return err
	}
	if err := guard.Authorize(user, guard.ProposalDelete, resourceOf(p)); err != nil {
		return err
	}

	if err := w.store.DeleteProposal(ctx, id); err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return apperrors.NotFound("Предложение обмена не найдено")
		}
		return fmt.Errorf("ошибка удаления предложения: %w", err)
	}

	w.logger.Info("предложение обмена удалено", "proposal_id", id, "user_id", user, "status", p.Status)
	return nil
}

// checkPair загружает объявления пары и проверяет правила создания:
// своё объявление в обмен на чужое и нет другого ожидающего предложения с той же парой.
func (w *Workflow) checkPair(ctx context.Context, user, senderID, receiverID, exclude uuid.UUID) (*models.Ad, *models.Ad, error) {
	sender, err := w.store.GetAd(ctx, senderID)
	if err != nil {
		return nil, nil, adFieldError(err, "ad_sender_id")
	}
	receiver, err := w.store.GetAd(ctx, receiverID)
	if err != nil {
		return nil, nil, adFieldError(err, "ad_receiver_id")
	}

	if err := guard.Authorize(user, guard.ProposalCreate, guard.ForProposal(sender.UserID, receiver.UserID)); err != nil {
		return nil, nil, err
	}

	exists, err := w.store.HasWaitingProposal(ctx, senderID, receiverID, exclude)
	if err != nil {
		return nil, nil, fmt.Errorf("ошибка проверки существующих обменов: %w", err)
	}
	if exists {
		return nil, nil, duplicateProposal()
	}
	return sender, receiver, nil
}

func (w *Workflow) load(ctx context.Context, id uuid.UUID) (*models.ExchangeProposal, error) {
	p, err := w.store.GetProposal(ctx, id)
	if err != nil {
		if errors.Is(err, db.ErrNotFound) {
			return nil, apperrors.NotFound("Предложение обмена не найдено")
		}
		return nil, fmt.Errorf("ошибка получения предложения обмена: %w", err)
	}
	return p, nil
}

func resourceOf(p *models.ExchangeProposal) guard.Resource {
	var senderOwner, receiverOwner uuid.UUID
	if p.AdSender != nil {
		senderOwner = p.AdSender.UserID
	}
	if p.AdReceiver != nil {
		receiverOwner = p.AdReceiver.UserID
	}
	return guard.ForProposal(senderOwner, receiverOwner)
}

func validateInput(in *models.ProposalInput) error {
	err := validation.ValidateStruct(in,
		validation.Field(&in.AdSenderID, validation.By(requiredID("Выберите свой товар для обмена"))),
		validation.Field(&in.AdReceiverID, validation.By(requiredID("Выберите товар, который хотите получить"))),
		validation.Field(&in.Comment,
			validation.RuneLength(0, MaxCommentLength).Error(fmt.Sprintf("Комментарий не длиннее %d символов", MaxCommentLength)),
		),
	)
	return apperrors.FromValidation(err)
}

// requiredID правило для uuid.UUID: Required не считает нулевой массив пустым
func requiredID(msg string) validation.RuleFunc {
	return func(value any) error {
		if id, _ := value.(uuid.UUID); id == uuid.Nil {
			return errors.New(msg)
		}
		return nil
	}
}

func normalizeComment(comment *string) *string {
	if comment == nil {
		return nil
	}
	v := strings.TrimSpace(*comment)
	if v == "" {
		return nil
	}
	return &v
}

func adFieldError(err error, field string) error {
	if errors.Is(err, db.ErrNotFound) {
		return apperrors.FieldError(field, "Объявление не найдено")
	}
	return fmt.Errorf("ошибка проверки объявления: %w", err)
}

func proposalWriteError(err error) error {
	switch {
	case errors.Is(err, db.ErrDuplicate):
		return duplicateProposal()
	case errors.Is(err, db.ErrNotFound):
		return apperrors.Validation("Объявление не найдено", nil)
	}
	return fmt.Errorf("ошибка сохранения предложения обмена: %w", err)
}

func duplicateProposal() error {
	return apperrors.Conflict("Такое предложение обмена уже существует")
}

func alreadyDecided(status models.ProposalStatus) error {
	return apperrors.Conflict(fmt.Sprintf("По предложению уже есть решение: %s", status.Label()))
}
