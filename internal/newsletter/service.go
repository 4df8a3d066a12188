// Package newsletter - слой доступа к данным доски: получение, добавление,
// удаление, скрытие статей и live-подписка поверх любого варианта хранилища.
package newsletter

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"net/url"
	"strings"

	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/kovalyov-valentin/newsletter-board/internal/storage"
	"github.com/microcosm-cc/bluemonday"
)

var (
	ErrEmptyTitle      = errors.New("o título é obrigatório")
	ErrEmptyContent    = errors.New("o conteúdo é obrigatório")
	ErrEmptyImageURL   = errors.New("a URL da imagem é obrigatória")
	ErrInvalidImageURL = errors.New("a URL da imagem deve ser um endereço http(s) válido")
	ErrMissingID       = errors.New("ID não fornecido")
	ErrNotFound        = errors.New("newsletter não encontrada")
)

// Порт хранилища. Реализуется один раз на каждый вариант бэкенда
type Store interface {
	Articles(ctx context.Context) ([]model.Article, error)
	ArticleByID(ctx context.Context, id string) (*model.Article, error)
	Add(ctx context.Context, draft model.Draft) (*model.Article, error)
	UpdateTitle(ctx context.Context, id string, title string) error
	Delete(ctx context.Context, id string) error
	Subscribe(ctx context.Context, fn func([]model.Article)) (func(), error)
}

type Service struct {
	store Store
	// Убираем любую разметку из заголовка и текста
	policy *bluemonday.Policy
}

func NewService(store Store) *Service {
	return &Service{
		store:  store,
		policy: bluemonday.StrictPolicy(),
	}
}

// Все статьи, сначала новые
func (s *Service) FetchAll(ctx context.Context) ([]model.Article, error) {
	articles, err := s.store.Articles(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch newsletters: %w", err)
	}

	if articles == nil {
		articles = []model.Article{}
	}

	return articles, nil
}

// Статья по id
func (s *Service) Get(ctx context.Context, id string) (*model.Article, error) {
	if strings.TrimSpace(id) == "" {
		return nil, ErrMissingID
	}

	article, err := s.store.ArticleByID(ctx, id)
	if err != nil {
		return nil, translate(err)
	}

	return article, nil
}

// Проверяет черновик и добавляет статью. Валидация до любого обращения к хранилищу
func (s *Service) Add(ctx context.Context, draft model.Draft) (*model.Article, error) {
	draft, err := s.Validate(draft)
	if err != nil {
		return nil, err
	}

	article, err := s.store.Add(ctx, draft)
	if err != nil {
		return nil, fmt.Errorf("add newsletter: %w", err)
	}

	log.Printf("[INFO] newsletter %s added", article.ID)

	return article, nil
}

// Нормализует черновик и проверяет обязательные поля
func (s *Service) Validate(draft model.Draft) (model.Draft, error) {
	draft = model.Draft{
		Title:    s.sanitize(draft.Title),
		Content:  s.sanitize(draft.Content),
		ImageURL: strings.TrimSpace(draft.ImageURL),
	}

	switch {
	case draft.Title == "":
		return draft, ErrEmptyTitle
	case draft.Content == "":
		return draft, ErrEmptyContent
	case draft.ImageURL == "":
		return draft, ErrEmptyImageURL
	}

	u, err := url.Parse(draft.ImageURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return draft, ErrInvalidImageURL
	}

	return draft, nil
}

// Убирает теги, но не экранирует текст: в хранилище лежит обычный текст,
// экранирование делает тот, кто его показывает
func (s *Service) sanitize(text string) string {
	return strings.TrimSpace(html.UnescapeString(s.policy.Sanitize(text)))
}

// Удаляет статью навсегда
func (s *Service) Delete(ctx context.Context, id string) error {
	if strings.TrimSpace(id) == "" {
		return ErrMissingID
	}

	if err := s.store.Delete(ctx, id); err != nil {
		return translate(err)
	}

	log.Printf("[INFO] newsletter %s deleted", id)

	return nil
}

// Скрывает статью, дописывая в начало заголовка "[OCULTA] {id} ".
// Чтение и запись не атомарны: два одновременных скрытия - last write wins
func (s *Service) Hide(ctx context.Context, id string) (*model.Article, error) {
	article, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if article.Hidden() {
		return article, nil
	}

	return s.rewriteTitle(ctx, *article, model.HideTitle(id, article.Title))
}

// Возвращает скрытой статье исходный заголовок
func (s *Service) Show(ctx context.Context, id string) (*model.Article, error) {
	article, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	title, ok := model.ShowTitle(id, article.Title)
	if !ok {
		log.Printf("[WARN] newsletter %s title is not in the hidden format: %q", id, article.Title)
	}

	return s.rewriteTitle(ctx, *article, title)
}

// Live-подписка: fn получает весь упорядоченный набор при каждом изменении.
// Возвращенную функцию нужно вызвать ровно один раз при завершении
func (s *Service) Subscribe(ctx context.Context, fn func([]model.Article)) (func(), error) {
	unsubscribe, err := s.store.Subscribe(ctx, fn)
	if err != nil {
		return nil, fmt.Errorf("subscribe to newsletters: %w", err)
	}

	return unsubscribe, nil
}

func (s *Service) rewriteTitle(ctx context.Context, article model.Article, title string) (*model.Article, error) {
	if err := s.store.UpdateTitle(ctx, article.ID, title); err != nil {
		return nil, translate(err)
	}

	article.Title = title

	return &article, nil
}

func translate(err error) error {
	if errors.Is(err, storage.ErrNotFound) {
		return ErrNotFound
	}

	return err
}

// Ошибка проверки черновика, а не хранилища
func IsValidation(err error) bool {
	for _, target := range []error{ErrEmptyTitle, ErrEmptyContent, ErrEmptyImageURL, ErrInvalidImageURL, ErrMissingID} {
		if errors.Is(err, target) {
			return true
		}
	}

	return false
}

// Текст ошибки для пользователя
func Message(err error) string {
	if err == nil {
		return ""
	}

	if msg := err.Error(); msg != "" {
		return msg
	}

	return "erro desconhecido"
}
