package storage

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var articleColumns = []string{"id", "title", "content", "image_url", "created_at"}

func newMockDB(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return sqlx.NewDb(db, "postgres"), mock
}

func TestArticlePostgresStorage_Articles(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewArticlePostgresStorage(db)

	newer := time.Date(2024, 5, 2, 0, 0, 0, 0, time.UTC)
	older := newer.Add(-time.Hour)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT id, title, content, image_url, created_at FROM newsletters ORDER BY created_at DESC`)).
		WillReturnRows(sqlmock.NewRows(articleColumns).
			AddRow("b", "T2", "C2", "http://x/2.jpg", newer).
			AddRow("a", "T1", "C1", "http://x/1.jpg", older))

	articles, err := s.Articles(context.Background())

	require.NoError(t, err)
	require.Len(t, articles, 2)
	assert.Equal(t, model.Article{ID: "b", Title: "T2", Content: "C2", ImageURL: "http://x/2.jpg", CreatedAt: newer}, articles[0])
	assert.Equal(t, "a", articles[1].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticlePostgresStorage_ArticleByID(t *testing.T) {
	t.Run("missing row maps to ErrNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewArticlePostgresStorage(db)

		mock.ExpectQuery(regexp.QuoteMeta(`FROM newsletters WHERE id = $1`)).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows(articleColumns))

		_, err := s.ArticleByID(context.Background(), "missing")

		assert.ErrorIs(t, err, ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestArticlePostgresStorage_Add(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewArticlePostgresStorage(db)
	createdAt := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO newsletters`)).
		WithArgs(sqlmock.AnyArg(), "T1", "C1", "http://x/i.jpg").
		WillReturnRows(sqlmock.NewRows(articleColumns).AddRow("generated", "T1", "C1", "http://x/i.jpg", createdAt))

	article, err := s.Add(context.Background(), model.Draft{Title: "T1", Content: "C1", ImageURL: "http://x/i.jpg"})

	require.NoError(t, err)
	assert.Equal(t, "generated", article.ID)
	assert.Equal(t, createdAt, article.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestArticlePostgresStorage_UpdateTitle(t *testing.T) {
	t.Run("updates existing row", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewArticlePostgresStorage(db)

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE newsletters SET title = $1 WHERE id = $2`)).
			WithArgs("new title", "a").
			WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.UpdateTitle(context.Background(), "a", "new title"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("no rows affected is ErrNotFound", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewArticlePostgresStorage(db)

		mock.ExpectExec(regexp.QuoteMeta(`UPDATE newsletters SET title = $1 WHERE id = $2`)).
			WithArgs("new title", "missing").
			WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, s.UpdateTitle(context.Background(), "missing", "new title"), ErrNotFound)
	})
}

func TestArticlePostgresStorage_Delete(t *testing.T) {
	const (
		deleteEq  = `DELETE FROM newsletters WHERE id = $1`
		deleteAny = `DELETE FROM newsletters WHERE id = ANY($1)`
		deleteIn  = `DELETE FROM newsletters WHERE id IN ($1)`
	)

	t.Run("first strategy succeeds", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewArticlePostgresStorage(db)

		mock.ExpectExec(regexp.QuoteMeta(deleteEq)).WithArgs("a").WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Delete(context.Background(), "a"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("falls back to the next query form", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewArticlePostgresStorage(db)

		mock.ExpectExec(regexp.QuoteMeta(deleteEq)).WithArgs("a").WillReturnError(errors.New("syntax not supported"))
		mock.ExpectExec(regexp.QuoteMeta(deleteAny)).WithArgs(sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))

		require.NoError(t, s.Delete(context.Background(), "a"))
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("not found stops the ladder", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewArticlePostgresStorage(db)

		mock.ExpectExec(regexp.QuoteMeta(deleteEq)).WithArgs("missing").WillReturnResult(sqlmock.NewResult(0, 0))

		assert.ErrorIs(t, s.Delete(context.Background(), "missing"), ErrNotFound)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("returns the last error when every form fails", func(t *testing.T) {
		db, mock := newMockDB(t)
		s := NewArticlePostgresStorage(db)

		mock.ExpectExec(regexp.QuoteMeta(deleteEq)).WillReturnError(errors.New("first"))
		mock.ExpectExec(regexp.QuoteMeta(deleteAny)).WillReturnError(errors.New("second"))
		mock.ExpectExec(regexp.QuoteMeta(deleteIn)).WithArgs("a").WillReturnError(errors.New("permission denied"))

		err := s.Delete(context.Background(), "a")

		require.Error(t, err)
		assert.Contains(t, err.Error(), "permission denied")
		assert.NoError(t, mock.ExpectationsWereMet())
	})
}

func TestArticlePostgresStorage_Subscribe(t *testing.T) {
	db, mock := newMockDB(t)
	s := NewArticlePostgresStorage(db)
	createdAt := time.Date(2024, 5, 2, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM newsletters ORDER BY created_at DESC`)).
		WillReturnRows(sqlmock.NewRows(articleColumns).AddRow("a", "T1", "C1", "http://x/1.jpg", createdAt))

	got := make(chan []model.Article, 1)
	unsubscribe, err := s.Subscribe(context.Background(), func(articles []model.Article) {
		got <- articles
	})
	require.NoError(t, err)
	defer unsubscribe()

	select {
	case articles := <-got:
		require.Len(t, articles, 1)
		assert.Equal(t, "a", articles[0].ID)
	case <-time.After(time.Second):
		t.Fatal("initial snapshot was not delivered")
	}
}
