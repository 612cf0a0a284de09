package db

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"

	"github.com/rajivgeraev/barter-api/internal/db/migrations"
)

// gooseUp подменяется в тестах
var gooseUp = func(ctx context.Context, db *sql.DB, dir string) error {
	return goose.UpContext(ctx, db, dir)
}

// Migrate применяет встроенные миграции к базе по адресу databaseURL
func Migrate(ctx context.Context, databaseURL string, logger *slog.Logger) error {
	sqlDB, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return fmt.Errorf("ошибка при открытии соединения для миграций: %w", err)
	}
	defer sqlDB.Close()

	goose.SetBaseFS(migrations.Migrations)
	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("ошибка при выборе диалекта миграций: %w", err)
	}

	if err := gooseUp(ctx, sqlDB, "."); err != nil {
		return fmt.Errorf("ошибка при применении миграций: %w", err)
	}

	logger.Info("миграции применены")
	return nil
}
