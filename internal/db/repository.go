package db

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/rajivgeraev/barter-api/internal/models"
)

// Ошибки хранилища. Сервисы переводят их в ошибки предметной области.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate record")
)

// TxFn функция, выполняемая внутри транзакции
type TxFn func(ctx context.Context) error

// TxManager выполняет функцию атомарно. Репозитории, вызванные с ctx
// внутри fn, участвуют в той же транзакции.
type TxManager interface {
	ExecTx(ctx context.Context, fn TxFn) error
}

// AdRepository хранилище объявлений
type AdRepository interface {
	CreateAd(ctx context.Context, ad *models.Ad) error
	GetAd(ctx context.Context, id uuid.UUID) (*models.Ad, error)
	// LockAd читает объявление и блокирует его до конца транзакции
	LockAd(ctx context.Context, id uuid.UUID) (*models.Ad, error)
	UpdateAd(ctx context.Context, ad *models.Ad) error
	DeleteAd(ctx context.Context, id uuid.UUID) error
	ListAds(ctx context.Context, filter models.AdFilter) ([]models.Ad, int, error)
	ListCategories(ctx context.Context) ([]string, error)
}

// ProposalRepository хранилище предложений обмена.
// GetProposal и ListProposals заполняют AdSender и AdReceiver.
type ProposalRepository interface {
	CreateProposal(ctx context.Context, p *models.ExchangeProposal) error
	GetProposal(ctx context.Context, id uuid.UUID) (*models.ExchangeProposal, error)
	// UpdateProposal меняет объявления и комментарий, только пока предложение ожидает.
	// Возвращает false, если статус уже другой.
	UpdateProposal(ctx context.Context, p *models.ExchangeProposal) (bool, error)
	// SetProposalStatus меняет статус, только если текущий равен from.
	// Возвращает false, если статус уже другой.
	SetProposalStatus(ctx context.Context, id uuid.UUID, from, to models.ProposalStatus) (bool, error)
	DeleteProposal(ctx context.Context, id uuid.UUID) error
	DeleteProposalsByAd(ctx context.Context, adID uuid.UUID) (int, error)
	ListProposals(ctx context.Context, side models.ProposalSide, userID uuid.UUID, page, pageSize int) ([]models.ExchangeProposal, int, error)
	// HasWaitingProposal ищет ожидающее предложение с той же парой объявлений, кроме exclude
	HasWaitingProposal(ctx context.Context, senderAdID, receiverAdID, exclude uuid.UUID) (bool, error)
}

// UserRepository хранилище пользователей
type UserRepository interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id uuid.UUID) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdateUser(ctx context.Context, u *models.User) error
	TouchLastLogin(ctx context.Context, id uuid.UUID) error
	// UpsertTelegramUser создаёт пользователя при первом входе через Telegram
	// или обновляет данные Telegram у существующего
	UpsertTelegramUser(ctx context.Context, tg models.TelegramUser) (*models.User, error)
}

// FavoriteRepository хранилище избранного
type FavoriteRepository interface {
	AddFavorite(ctx context.Context, f *models.Favorite) error
	RemoveFavorite(ctx context.Context, userID, adID uuid.UUID) (bool, error)
	IsFavorite(ctx context.Context, userID, adID uuid.UUID) (bool, error)
	ListFavorites(ctx context.Context, userID uuid.UUID, page, pageSize int) ([]models.Favorite, int, error)
	DeleteFavoritesByAd(ctx context.Context, adID uuid.UUID) error
}

// Store всё хранилище приложения
type Store interface {
	TxManager
	AdRepository
	ProposalRepository
	UserRepository
	FavoriteRepository
	Ping(ctx context.Context) error
	Close()
}
