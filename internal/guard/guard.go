// Package guard содержит политику доступа к объявлениям и предложениям обмена.
//
// Authorize ничего не читает из хранилища и не пишет ответ: вызывающий
// сервис сам загружает владельцев и решает, что делать с отказом.
package guard

import (
	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/apperrors"
)

// Action действие, на которое проверяются права
type Action int

const (
	AdCreate Action = iota
	AdListOwn
	AdUpdate
	AdDelete
	ProposalList
	ProposalCreate
	ProposalView
	ProposalAccept
	ProposalDecline
	ProposalUpdate
	ProposalDelete
	FavoriteManage
	ProfileManage
)

// Resource владельцы объектов, к которым относится действие.
// Для объявления заполняется AdOwner, для предложения SenderOwner и ReceiverOwner.
type Resource struct {
	AdOwner       uuid.UUID
	SenderOwner   uuid.UUID
	ReceiverOwner uuid.UUID
}

// ForAd ресурс-объявление
func ForAd(owner uuid.UUID) Resource {
	return Resource{AdOwner: owner}
}

// ForProposal ресурс-предложение с владельцами обоих объявлений
func ForProposal(senderOwner, receiverOwner uuid.UUID) Resource {
	return Resource{SenderOwner: senderOwner, ReceiverOwner: receiverOwner}
}

// Authenticated проверяет только наличие пользователя. Сервисы вызывают его
// до загрузки объекта, чтобы аноним не узнавал о существовании записей.
func Authenticated(user uuid.UUID) error {
	if user == uuid.Nil {
		return apperrors.Unauthenticated("Пользователь не авторизован")
	}
	return nil
}

// Authorize возвращает nil, если user может выполнить action над res.
// uuid.Nil означает анонимного пользователя.
func Authorize(user uuid.UUID, action Action, res Resource) error {
	if err := Authenticated(user); err != nil {
		return err
	}

	switch action {
	case AdUpdate:
		if user != res.AdOwner {
			return apperrors.Forbidden("Вы не автор этого товара")
		}
	case AdDelete:
		if user != res.AdOwner {
			return apperrors.Forbidden("У вас нет прав для удаления этого товара")
		}
	case ProposalCreate:
		if user != res.SenderOwner {
			return apperrors.FieldError("ad_sender_id", "Можно предложить для обмена только свой товар")
		}
		if user == res.ReceiverOwner {
			return apperrors.FieldError("ad_receiver_id", "Нельзя предложить обмен самому себе")
		}
	case ProposalAccept, ProposalDecline:
		if user != res.ReceiverOwner {
			return apperrors.Forbidden("Вы не можете принимать или отклонять это предложение")
		}
	case ProposalUpdate:
		if user != res.SenderOwner {
			return apperrors.Forbidden("Вы не автор этого предложения")
		}
	case ProposalDelete:
		if user != res.SenderOwner {
			return apperrors.Forbidden("У вас нет прав для удаления этого предложения")
		}
	case ProposalView:
		if user != res.SenderOwner && user != res.ReceiverOwner {
			return apperrors.Forbidden("Вы не можете просматривать это предложение")
		}
	}

	// AdCreate, AdListOwn, ProposalList, FavoriteManage, ProfileManage требуют только входа
	return nil
}
