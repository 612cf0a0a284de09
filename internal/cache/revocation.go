// Package cache хранит отозванные токены сессий
package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/rajivgeraev/barter-api/internal/config"
)

// Revoker хранит идентификаторы отозванных токенов до истечения их срока
type Revoker interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// ConnectRedis подключается к Redis. Возвращает nil, если адрес не задан
// или сервер недоступен.
func ConnectRedis(cfg config.RedisConfig, logger *slog.Logger) *redis.Client {
	if cfg.Addr == "" {
		logger.Info("REDIS_ADDR не задан, отзыв токенов хранится в памяти процесса")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		logger.Warn("не удалось подключиться к Redis, отзыв токенов хранится в памяти процесса", "error", err)
		client.Close()
		return nil
	}

	logger.Info("подключение к Redis установлено", "addr", cfg.Addr)
	return client
}

// NewRevoker выбирает хранилище отзыва: Redis, если клиент есть, иначе память
func NewRevoker(client *redis.Client) Revoker {
	if client == nil {
		return NewMemoryRevoker()
	}
	return &RedisRevoker{client: client}
}

// RedisRevoker хранит отзыв в Redis с TTL до истечения токена
type RedisRevoker struct {
	client *redis.Client
}

func revokedKey(tokenID string) string {
	return "revoked:" + tokenID
}

func (r *RedisRevoker) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := time.Until(until)
	if ttl <= 0 {
		return nil
	}
	if err := r.client.Set(ctx, revokedKey(tokenID), "1", ttl).Err(); err != nil {
		return fmt.Errorf("ошибка записи отзыва токена: %w", err)
	}
	return nil
}

func (r *RedisRevoker) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := r.client.Exists(ctx, revokedKey(tokenID)).Result()
	if err != nil {
		return false, fmt.Errorf("ошибка проверки отзыва токена: %w", err)
	}
	return n > 0, nil
}

// MemoryRevoker хранит отзыв в памяти процесса. Не переживает перезапуск.
type MemoryRevoker struct {
	mu      sync.Mutex
	revoked map[string]time.Time
	now     func() time.Time
}

// NewMemoryRevoker создаёт пустой список отзыва
func NewMemoryRevoker() *MemoryRevoker {
	return &MemoryRevoker{revoked: make(map[string]time.Time), now: time.Now}
}

func (r *MemoryRevoker) Revoke(_ context.Context, tokenID string, until time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	for id, exp := range r.revoked {
		if !exp.After(now) {
			delete(r.revoked, id)
		}
	}
	if until.After(now) {
		r.revoked[tokenID] = until
	}
	return nil
}

func (r *MemoryRevoker) IsRevoked(_ context.Context, tokenID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	exp, ok := r.revoked[tokenID]
	return ok && exp.After(r.now()), nil
}
