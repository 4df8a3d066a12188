package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/kovalyov-valentin/newsletter-board/internal/livequery"
	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/redis/go-redis/v9"
)

const (
	// Отсортированное множество id статей, score - время создания в микросекундах
	redisArticlesKey = "newsletters"
	// Канал, в который публикуется id измененной статьи
	RedisChangesChannel = "newsletters:changed"
)

func redisArticleKey(id string) string {
	return "newsletter:" + id
}

// Документный вариант хранилища статей: каждая статья это hash в Redis
type ArticleRedisStorage struct {
	client *redis.Client
	clock  *clock
	hub    *livequery.Hub[model.Article]
}

func NewArticleRedisStorage(client *redis.Client) *ArticleRedisStorage {
	s := &ArticleRedisStorage{
		client: client,
		clock:  newClock(time.Now, time.Microsecond),
	}
	s.hub = livequery.New(s.Articles)

	return s
}

// Все статьи, сначала новые
func (s *ArticleRedisStorage) Articles(ctx context.Context) ([]model.Article, error) {
	ids, err := s.client.ZRevRange(ctx, redisArticlesKey, 0, -1).Result()
	if err != nil {
		return nil, err
	}

	if len(ids) == 0 {
		return []model.Article{}, nil
	}

	pipe := s.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, redisArticleKey(id))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, err
	}

	articles := make([]model.Article, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		// Документ удалили между ZREVRANGE и HGETALL
		if len(fields) == 0 {
			continue
		}

		article, err := decodeRedisArticle(ids[i], fields)
		if err != nil {
			return nil, err
		}

		articles = append(articles, article)
	}

	return articles, nil
}

func (s *ArticleRedisStorage) ArticleByID(ctx context.Context, id string) (*model.Article, error) {
	fields, err := s.client.HGetAll(ctx, redisArticleKey(id)).Result()
	if err != nil {
		return nil, err
	}

	if len(fields) == 0 {
		return nil, ErrNotFound
	}

	article, err := decodeRedisArticle(id, fields)
	if err != nil {
		return nil, err
	}

	return &article, nil
}

func (s *ArticleRedisStorage) Add(ctx context.Context, draft model.Draft) (*model.Article, error) {
	article := model.Article{
		ID:        uuid.NewString(),
		Title:     draft.Title,
		Content:   draft.Content,
		ImageURL:  draft.ImageURL,
		CreatedAt: s.clock.Now(),
	}

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, redisArticleKey(article.ID), map[string]interface{}{
			"title":      article.Title,
			"content":    article.Content,
			"image_url":  article.ImageURL,
			"created_at": article.CreatedAt.Format(time.RFC3339Nano),
		})
		pipe.ZAdd(ctx, redisArticlesKey, redis.Z{
			Score:  float64(article.CreatedAt.UnixMicro()),
			Member: article.ID,
		})
		pipe.Publish(ctx, RedisChangesChannel, article.ID)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.Changed(ctx)

	return &article, nil
}

// Меняет заголовок. Проверка существования и запись не атомарны,
// одновременная правка одной статьи двумя клиентами - last write wins
func (s *ArticleRedisStorage) UpdateTitle(ctx context.Context, id string, title string) error {
	n, err := s.client.Exists(ctx, redisArticleKey(id)).Result()
	if err != nil {
		return err
	}

	if n == 0 {
		return ErrNotFound
	}

	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, redisArticleKey(id), "title", title)
		pipe.Publish(ctx, RedisChangesChannel, id)
		return nil
	})
	if err != nil {
		return err
	}

	s.Changed(ctx)

	return nil
}

func (s *ArticleRedisStorage) Delete(ctx context.Context, id string) error {
	var deleted *redis.IntCmd

	_, err := s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		deleted = pipe.Del(ctx, redisArticleKey(id))
		pipe.ZRem(ctx, redisArticlesKey, id)
		return nil
	})
	if err != nil {
		return err
	}

	if deleted.Val() == 0 {
		return ErrNotFound
	}

	if err := s.client.Publish(ctx, RedisChangesChannel, id).Err(); err != nil {
		return err
	}

	s.Changed(ctx)

	return nil
}

func (s *ArticleRedisStorage) Subscribe(ctx context.Context, fn func([]model.Article)) (func(), error) {
	return s.hub.Subscribe(ctx, fn), nil
}

func (s *ArticleRedisStorage) Changed(ctx context.Context) {
	s.hub.Notify(ctx)
}

func decodeRedisArticle(id string, fields map[string]string) (model.Article, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, fields["created_at"])
	if err != nil {
		return model.Article{}, fmt.Errorf("malformed created_at of newsletter %s: %w", id, err)
	}

	return model.Article{
		ID:        id,
		Title:     fields["title"],
		Content:   fields["content"],
		ImageURL:  fields["image_url"],
		CreatedAt: createdAt,
	}, nil
}
