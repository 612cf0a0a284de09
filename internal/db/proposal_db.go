package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/rajivgeraev/barter-api/internal/models"
)

// Предложение вместе с обоими объявлениями
const proposalSelect = `
	SELECT p.id, p.ad_sender_id, p.ad_receiver_id, p.comment, p.status, p.created_at, p.updated_at,
		s.id, s.user_id, s.title, s.description, s.image_url, s.image_key, s.category, s.condition, s.created_at, s.updated_at,
		r.id, r.user_id, r.title, r.description, r.image_url, r.image_key, r.category, r.condition, r.created_at, r.updated_at
	FROM exchange_proposals p
	JOIN ads s ON s.id = p.ad_sender_id
	JOIN ads r ON r.id = p.ad_receiver_id`

func scanProposal(row pgx.Row) (*models.ExchangeProposal, error) {
	var p models.ExchangeProposal
	var sender, receiver models.Ad

	err := row.Scan(
		&p.ID, &p.AdSenderID, &p.AdReceiverID, &p.Comment, &p.Status, &p.CreatedAt, &p.UpdatedAt,
		&sender.ID, &sender.UserID, &sender.Title, &sender.Description, &sender.ImageURL, &sender.ImageKey,
		&sender.Category, &sender.Condition, &sender.CreatedAt, &sender.UpdatedAt,
		&receiver.ID, &receiver.UserID, &receiver.Title, &receiver.Description, &receiver.ImageURL, &receiver.ImageKey,
		&receiver.Category, &receiver.Condition, &receiver.CreatedAt, &receiver.UpdatedAt,
	)
	if err != nil {
		return nil, translateError(err)
	}

	p.AdSender = &sender
	p.AdReceiver = &receiver
	return &p, nil
}

// CreateProposal сохраняет новое предложение обмена
func (s *PostgresStore) CreateProposal(ctx context.Context, p *models.ExchangeProposal) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	_, err := executor(ctx, s.pool).Exec(ctx, `
		INSERT INTO exchange_proposals (id, ad_sender_id, ad_receiver_id, comment, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, p.ID, p.AdSenderID, p.AdReceiverID, p.Comment, p.Status, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return fmt.Errorf("ошибка создания предложения: %w", translateError(err))
	}
	return nil
}

// GetProposal возвращает предложение с объявлениями обеих сторон
func (s *PostgresStore) GetProposal(ctx context.Context, id uuid.UUID) (*models.ExchangeProposal, error) {
	return scanProposal(executor(ctx, s.pool).QueryRow(ctx, proposalSelect+` WHERE p.id = $1`, id))
}

// UpdateProposal обновляет объявления сторон и комментарий ожидающего предложения
func (s *PostgresStore) UpdateProposal(ctx context.Context, p *models.ExchangeProposal) (bool, error) {
	q := executor(ctx, s.pool)

	tag, err := q.Exec(ctx, `
		UPDATE exchange_proposals
		SET ad_sender_id = $1, ad_receiver_id = $2, comment = $3, updated_at = $4
		WHERE id = $5 AND status = $6
	`, p.AdSenderID, p.AdReceiverID, p.Comment, p.UpdatedAt, p.ID, models.StatusWaiting)
	if err != nil {
		return false, fmt.Errorf("ошибка обновления предложения: %w", translateError(err))
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	return false, s.proposalExists(ctx, q, p.ID)
}

// proposalExists возвращает ErrNotFound, если предложения нет
func (s *PostgresStore) proposalExists(ctx context.Context, q DBTX, id uuid.UUID) error {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM exchange_proposals WHERE id = $1)`, id).Scan(&exists); err != nil {
		return fmt.Errorf("ошибка проверки предложения: %w", err)
	}
	if !exists {
		return ErrNotFound
	}
	return nil
}

// SetProposalStatus атомарно переводит предложение из статуса from в статус to
func (s *PostgresStore) SetProposalStatus(ctx context.Context, id uuid.UUID, from, to models.ProposalStatus) (bool, error) {
	q := executor(ctx, s.pool)

	tag, err := q.Exec(ctx, `
		UPDATE exchange_proposals
		SET status = $1, updated_at = CURRENT_TIMESTAMP
		WHERE id = $2 AND status = $3
	`, to, id, from)
	if err != nil {
		return false, fmt.Errorf("ошибка смены статуса предложения: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}

	// Строка не изменена: либо ее нет, либо статус уже другой
	return false, s.proposalExists(ctx, q, id)
}

// DeleteProposal удаляет предложение
func (s *PostgresStore) DeleteProposal(ctx context.Context, id uuid.UUID) error {
	tag, err := executor(ctx, s.pool).Exec(ctx, `DELETE FROM exchange_proposals WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("ошибка удаления предложения: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteProposalsByAd удаляет все предложения, где объявление участвует с любой стороны
func (s *PostgresStore) DeleteProposalsByAd(ctx context.Context, adID uuid.UUID) (int, error) {
	tag, err := executor(ctx, s.pool).Exec(ctx, `
		DELETE FROM exchange_proposals WHERE ad_sender_id = $1 OR ad_receiver_id = $1
	`, adID)
	if err != nil {
		return 0, fmt.Errorf("ошибка удаления предложений объявления: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// ListProposals возвращает предложения, где пользователь владеет объявлением указанной стороны
func (s *PostgresStore) ListProposals(ctx context.Context, side models.ProposalSide, userID uuid.UUID, page, pageSize int) ([]models.ExchangeProposal, int, error) {
	where := ` WHERE s.user_id = $1`
	if side == models.SideReceiver {
		where = ` WHERE r.user_id = $1`
	}
	q := executor(ctx, s.pool)

	var total int
	err := q.QueryRow(ctx, `
		SELECT COUNT(*) FROM exchange_proposals p
		JOIN ads s ON s.id = p.ad_sender_id
		JOIN ads r ON r.id = p.ad_receiver_id`+where, userID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка подсчета предложений: %w", err)
	}

	// 'waiting' > 'declined' > 'accepted': ожидающие идут первыми
	rows, err := q.Query(ctx, proposalSelect+where+`
		ORDER BY p.status DESC, p.created_at ASC, p.id ASC
		LIMIT $2 OFFSET $3`, userID, pageSize, models.PageOffset(page, pageSize))
	if err != nil {
		return nil, 0, fmt.Errorf("ошибка запроса предложений: %w", err)
	}
	defer rows.Close()

	var proposals []models.ExchangeProposal
	for rows.Next() {
		p, err := scanProposal(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("ошибка сканирования предложения: %w", err)
		}
		proposals = append(proposals, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("ошибка чтения предложений: %w", err)
	}

	return proposals, total, nil
}

// HasWaitingProposal проверяет наличие ожидающего предложения с той же парой объявлений
func (s *PostgresStore) HasWaitingProposal(ctx context.Context, senderAdID, receiverAdID, exclude uuid.UUID) (bool, error) {
	var exists bool
	err := executor(ctx, s.pool).QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM exchange_proposals
			WHERE ad_sender_id = $1 AND ad_receiver_id = $2 AND status = $3 AND id <> $4
		)
	`, senderAdID, receiverAdID, models.StatusWaiting, exclude).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("ошибка проверки дубликата предложения: %w", err)
	}
	return exists, nil
}
