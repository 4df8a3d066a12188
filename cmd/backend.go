package main

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"
	"github.com/kovalyov-valentin/newsletter-board/internal/auth"
	"github.com/kovalyov-valentin/newsletter-board/internal/config"
	"github.com/kovalyov-valentin/newsletter-board/internal/newsletter"
	"github.com/kovalyov-valentin/newsletter-board/internal/session"
	"github.com/kovalyov-valentin/newsletter-board/internal/storage"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

type articleStore interface {
	newsletter.Store
	storage.ChangeNotifier
}

// Хранилища выбранного варианта бэкенда
type backend struct {
	articles articleStore
	flags    session.FlagStore
	admins   auth.AdminStorage
	// Пересылает изменения от других процессов в live-запрос. nil для memory
	watch func(ctx context.Context) error
	// Администраторы переживают перезапуск только в postgres
	durableAdmins bool
	close         func()
}

func openBackend(ctx context.Context, cfg config.Config) (*backend, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := sqlx.ConnectContext(ctx, "postgres", cfg.DatabaseDSN)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}

		articles := storage.NewArticlePostgresStorage(db)

		return &backend{
			articles:      articles,
			flags:         storage.NewFlagPostgresStorage(db),
			admins:        storage.NewAdminPostgresStorage(db),
			watch:         storage.NewPostgresWatcher(cfg.DatabaseDSN, articles).Start,
			durableAdmins: true,
			close:         func() { _ = db.Close() },
		}, nil

	case config.BackendRedis:
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse redis url: %w", err)
		}

		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}

		articles := storage.NewArticleRedisStorage(client)

		return &backend{
			articles: articles,
			flags:    storage.NewFlagRedisStorage(client),
			admins:   storage.NewAdminMemoryStorage(),
			watch:    storage.NewRedisWatcher(client, articles).Start,
			close:    func() { _ = client.Close() },
		}, nil

	case config.BackendMemory:
		return &backend{
			articles: storage.NewArticleMemoryStorage(),
			flags:    storage.NewFlagMemoryStorage(),
			admins:   storage.NewAdminMemoryStorage(),
			close:    func() {},
		}, nil
	}

	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}
