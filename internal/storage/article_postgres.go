package storage

import (
	"context"
	"database/sql"
	"errors"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/kovalyov-valentin/newsletter-board/internal/livequery"
	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/lib/pq"
	"github.com/samber/lo"
)

// Реляционный вариант хранилища статей
type ArticlePostgresStorage struct {
	db  *sqlx.DB
	hub *livequery.Hub[model.Article]
}

func NewArticlePostgresStorage(db *sqlx.DB) *ArticlePostgresStorage {
	s := &ArticlePostgresStorage{db: db}
	s.hub = livequery.New(s.Articles)

	return s
}

// Все статьи, сначала новые
func (s *ArticlePostgresStorage) Articles(ctx context.Context) ([]model.Article, error) {
	var articles []dbArticle
	if err := s.db.SelectContext(
		ctx,
		&articles,
		`SELECT id, title, content, image_url, created_at FROM newsletters ORDER BY created_at DESC`,
	); err != nil {
		return nil, err
	}

	return lo.Map(articles, func(article dbArticle, _ int) model.Article {
		return model.Article(article)
	}), nil
}

// Статья по id
func (s *ArticlePostgresStorage) ArticleByID(ctx context.Context, id string) (*model.Article, error) {
	var article dbArticle
	if err := s.db.GetContext(
		ctx,
		&article,
		`SELECT id, title, content, image_url, created_at FROM newsletters WHERE id = $1`,
		id,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}

	return (*model.Article)(&article), nil
}

// Добавляет статью. Время создания ставит сама база
func (s *ArticlePostgresStorage) Add(ctx context.Context, draft model.Draft) (*model.Article, error) {
	var article dbArticle

	row := s.db.QueryRowxContext(
		ctx,
		`INSERT INTO newsletters (id, title, content, image_url, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING id, title, content, image_url, created_at`,
		uuid.NewString(),
		draft.Title,
		draft.Content,
		draft.ImageURL,
	)

	if err := row.Err(); err != nil {
		return nil, err
	}

	if err := row.StructScan(&article); err != nil {
		return nil, err
	}

	s.Changed(ctx)

	return (*model.Article)(&article), nil
}

// Меняет заголовок статьи
func (s *ArticlePostgresStorage) UpdateTitle(ctx context.Context, id string, title string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE newsletters SET title = $1 WHERE id = $2`, title, id)
	if err != nil {
		return err
	}

	if err := expectAffected(res); err != nil {
		return err
	}

	s.Changed(ctx)

	return nil
}

// Удаляет статью навсегда
func (s *ArticlePostgresStorage) Delete(ctx context.Context, id string) error {
	err := tryInOrder(ctx, deleteStrategies, func(ctx context.Context, strategy deleteStrategy) error {
		res, err := strategy.exec(ctx, s.db, id)
		if err != nil {
			log.Printf("[WARN] delete strategy %q failed for newsletter %s: %v", strategy.name, id, err)
			return err
		}

		return expectAffected(res)
	})
	if err != nil {
		return err
	}

	s.Changed(ctx)

	return nil
}

func (s *ArticlePostgresStorage) Subscribe(ctx context.Context, fn func([]model.Article)) (func(), error) {
	return s.hub.Subscribe(ctx, fn), nil
}

func (s *ArticlePostgresStorage) Changed(ctx context.Context) {
	s.hub.Notify(ctx)
}

// Формы запроса на удаление, которые пробуются по очереди.
// Первая основная, остальные на случай, если драйвер или прокси не принимают ее
type deleteStrategy struct {
	name string
	exec func(ctx context.Context, db *sqlx.DB, id string) (sql.Result, error)
}

var deleteStrategies = []deleteStrategy{
	{
		name: "eq",
		exec: func(ctx context.Context, db *sqlx.DB, id string) (sql.Result, error) {
			return db.ExecContext(ctx, `DELETE FROM newsletters WHERE id = $1`, id)
		},
	},
	{
		name: "any",
		exec: func(ctx context.Context, db *sqlx.DB, id string) (sql.Result, error) {
			return db.ExecContext(ctx, `DELETE FROM newsletters WHERE id = ANY($1)`, pq.Array([]string{id}))
		},
	},
	{
		name: "in",
		exec: func(ctx context.Context, db *sqlx.DB, id string) (sql.Result, error) {
			query, args, err := sqlx.In(`DELETE FROM newsletters WHERE id IN (?)`, []string{id})
			if err != nil {
				return nil, err
			}

			return db.ExecContext(ctx, db.Rebind(query), args...)
		},
	},
}

func expectAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}

	if n == 0 {
		return ErrNotFound
	}

	return nil
}

// Внутренняя модель для работы с БД, чтобы правильно мапить ее на колонки в таблице
type dbArticle struct {
	ID        string    `db:"id"`
	Title     string    `db:"title"`
	Content   string    `db:"content"`
	ImageURL  string    `db:"image_url"`
	CreatedAt time.Time `db:"created_at"`
}
