package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kovalyov-valentin/newsletter-board/internal/livequery"
	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/samber/lo"
)

// Документное хранилище в памяти процесса. Используется в режиме разработки и в тестах
type ArticleMemoryStorage struct {
	mu       sync.RWMutex
	articles map[string]model.Article
	clock    *clock
	hub      *livequery.Hub[model.Article]
}

func NewArticleMemoryStorage() *ArticleMemoryStorage {
	s := &ArticleMemoryStorage{
		articles: make(map[string]model.Article),
		clock:    newClock(time.Now, time.Nanosecond),
	}
	s.hub = livequery.New(s.Articles)

	return s
}

// Все статьи, сначала новые
func (s *ArticleMemoryStorage) Articles(_ context.Context) ([]model.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	articles := lo.Values(s.articles)
	model.SortNewestFirst(articles)

	return articles, nil
}

func (s *ArticleMemoryStorage) ArticleByID(_ context.Context, id string) (*model.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	article, ok := s.articles[id]
	if !ok {
		return nil, ErrNotFound
	}

	return &article, nil
}

// Добавляет статью, id и время создания назначает хранилище
func (s *ArticleMemoryStorage) Add(ctx context.Context, draft model.Draft) (*model.Article, error) {
	article := model.Article{
		ID:        uuid.NewString(),
		Title:     draft.Title,
		Content:   draft.Content,
		ImageURL:  draft.ImageURL,
		CreatedAt: s.clock.Now(),
	}

	s.mu.Lock()
	s.articles[article.ID] = article
	s.mu.Unlock()

	s.Changed(ctx)

	return &article, nil
}

func (s *ArticleMemoryStorage) UpdateTitle(ctx context.Context, id string, title string) error {
	s.mu.Lock()
	article, ok := s.articles[id]
	if !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	article.Title = title
	s.articles[id] = article
	s.mu.Unlock()

	s.Changed(ctx)

	return nil
}

func (s *ArticleMemoryStorage) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	if _, ok := s.articles[id]; !ok {
		s.mu.Unlock()
		return ErrNotFound
	}
	delete(s.articles, id)
	s.mu.Unlock()

	s.Changed(ctx)

	return nil
}

func (s *ArticleMemoryStorage) Subscribe(ctx context.Context, fn func([]model.Article)) (func(), error) {
	return s.hub.Subscribe(ctx, fn), nil
}

func (s *ArticleMemoryStorage) Changed(ctx context.Context) {
	s.hub.Notify(ctx)
}
