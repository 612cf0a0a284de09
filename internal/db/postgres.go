package db

import (
	"context"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore реализует Store поверх пула pgx
type PostgresStore struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPostgresStore создаёт хранилище на готовом пуле соединений
func NewPostgresStore(pool *pgxpool.Pool, logger *slog.Logger) *PostgresStore {
	return &PostgresStore{pool: pool, logger: logger}
}

// Ping проверяет соединение с базой данных
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close закрывает пул соединений
func (s *PostgresStore) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

var _ Store = (*PostgresStore)(nil)
