package models

import (
	"time"

	"github.com/google/uuid"
)

// ProposalStatus статус предложения обмена
type ProposalStatus string

const (
	StatusWaiting  ProposalStatus = "waiting"
	StatusAccepted ProposalStatus = "accepted"
	StatusDeclined ProposalStatus = "declined"
)

// Terminal сообщает, что из статуса больше нет переходов
func (s ProposalStatus) Terminal() bool {
	return s == StatusAccepted || s == StatusDeclined
}

// Label подпись статуса для интерфейса
func (s ProposalStatus) Label() string {
	switch s {
	case StatusWaiting:
		return "ожидает"
	case StatusAccepted:
		return "принята"
	case StatusDeclined:
		return "отклонена"
	}
	return string(s)
}

// ExchangeProposal представляет предложение обмена одного объявления на другое.
// Владельцы сторон определяются через объявления.
type ExchangeProposal struct {
	ID           uuid.UUID      `json:"id"`
	AdSenderID   uuid.UUID      `json:"ad_sender_id"`
	AdReceiverID uuid.UUID      `json:"ad_receiver_id"`
	Comment      *string        `json:"comment,omitempty"`
	Status       ProposalStatus `json:"status"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`

	// Дополнительные поля для API
	AdSender   *Ad `json:"ad_sender,omitempty"`
	AdReceiver *Ad `json:"ad_receiver,omitempty"`
}

// ProposalInput поля нового предложения
type ProposalInput struct {
	AdSenderID   uuid.UUID `json:"ad_sender_id"`
	AdReceiverID uuid.UUID `json:"ad_receiver_id"`
	Comment      *string   `json:"comment"`
}

// ProposalPatch изменяемые поля предложения. Статус здесь не меняется.
type ProposalPatch struct {
	AdSenderID   *uuid.UUID `json:"ad_sender_id"`
	AdReceiverID *uuid.UUID `json:"ad_receiver_id"`
	Comment      *string    `json:"comment"`
}

// ProposalSide сторона, по которой отбираются предложения
type ProposalSide int

const (
	SideSender ProposalSide = iota
	SideReceiver
)
