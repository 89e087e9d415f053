package main

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/TheHadiAhmadi/hesabpay/internal/config"
	"github.com/TheHadiAhmadi/hesabpay/internal/db"
	"github.com/TheHadiAhmadi/hesabpay/internal/logging"
)

func main() {
	logger := logging.New()
	defer logger.Sync()

	cfg, err := config.Load("")
	if err != nil {
		logger.Fatalw("config load failed", "error", err)
	}
	if cfg.Storage.Driver != config.DriverPostgres {
		logger.Infow("nothing to do: only the postgres driver uses migrations", "driver", cfg.Storage.Driver)
		return
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Storage.DSN)
	if err != nil {
		logger.Fatalw("db connect failed", "error", err)
	}
	defer pool.Close()

	if err := ensureSchemaTable(ctx, pool); err != nil {
		logger.Fatalw("ensure schema table failed", "error", err)
	}

	files, err := listSQLFiles("migrations")
	if err != nil {
		logger.Fatalw("list migrations failed", "error", err)
	}

	for _, file := range files {
		applied, err := isApplied(ctx, pool, file)
		if err != nil {
			logger.Fatalw("check migration failed", "file", file, "error", err)
		}
		if applied {
			continue
		}

		if err := applyMigration(ctx, pool, file); err != nil {
			logger.Fatalw("apply migration failed", "file", file, "error", err)
		}
		if err := markApplied(ctx, pool, file); err != nil {
			logger.Fatalw("mark migration failed", "file", file, "error", err)
		}
		logger.Infow("applied migration", "file", file)
	}
}

func ensureSchemaTable(ctx context.Context, pool *db.Pool) error {
	_, err := pool.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (filename TEXT PRIMARY KEY, applied_at TIMESTAMPTZ NOT NULL DEFAULT now())`)
	return err
}

func listSQLFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		if strings.HasSuffix(name, ".sql") {
			files = append(files, filepath.Join(dir, name))
		}
	}
	sort.Strings(files)
	return files, nil
}

func isApplied(ctx context.Context, pool *db.Pool, file string) (bool, error) {
	var exists bool
	row := pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE filename=$1)`, file)
	if err := row.Scan(&exists); err != nil {
		return false, err
	}
	return exists, nil
}

func applyMigration(ctx context.Context, pool *db.Pool, file string) error {
	data, err := os.ReadFile(file)
	if err != nil {
		return err
	}
	if strings.TrimSpace(string(data)) == "" {
		return nil
	}
	_, err = pool.Exec(ctx, string(data))
	return err
}

func markApplied(ctx context.Context, pool *db.Pool, file string) error {
	_, err := pool.Exec(ctx, `INSERT INTO schema_migrations (filename) VALUES ($1)`, file)
	return err
}
