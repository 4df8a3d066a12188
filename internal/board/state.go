package board

import (
	"slices"

	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/samber/lo"
)

// Сколько других статей показываем рядом с открытой
const relatedLimit = 5

type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
	NoticeInfo    NoticeKind = "info"
)

// Всплывающее уведомление
type Notice struct {
	Kind    NoticeKind `json:"kind"`
	Message string     `json:"message"`
}

// Форма создания статьи
type CreateForm struct {
	Open       bool   `json:"open"`
	Submitting bool   `json:"submitting"`
	Error      string `json:"error,omitempty"`
}

// Подтверждение удаления
type DeleteDialog struct {
	Target     *model.Article `json:"target,omitempty"`
	Processing bool           `json:"processing"`
	Error      string         `json:"error,omitempty"`
}

func (d DeleteDialog) Open() bool {
	return d.Target != nil
}

type State struct {
	Articles []model.Article `json:"articles"`
	Loading  bool            `json:"loading"`

	// Статья, захваченная в момент выбора. Не обновляется при новых снимках
	Selected *model.Article  `json:"selected,omitempty"`
	Related  []model.Article `json:"related,omitempty"`

	AdminMode bool `json:"admin_mode"`

	// Пользователь попытался сделать то, что требует входа
	LoginRequired bool `json:"login_required"`

	Create CreateForm   `json:"create"`
	Delete DeleteDialog `json:"delete"`
}

// Детальный просмотр или список
func (s State) Detail() bool {
	return s.Selected != nil
}

// Пустая доска после загрузки. Это не ошибка
func (s State) Empty() bool {
	return !s.Loading && len(s.Articles) == 0
}

func (s State) clone() State {
	c := s
	c.Articles = slices.Clone(s.Articles)
	c.Related = slices.Clone(s.Related)
	if s.Selected != nil {
		selected := *s.Selected
		c.Selected = &selected
	}
	if s.Delete.Target != nil {
		target := *s.Delete.Target
		c.Delete.Target = &target
	}

	return c
}

// Каждый снимок целиком заменяет предыдущий набор, без сравнения
func Reduce(_ []model.Article, next []model.Article) []model.Article {
	if next == nil {
		return []model.Article{}
	}

	return slices.Clone(next)
}

// Другие статьи для боковой колонки детального просмотра
func related(articles []model.Article, selected *model.Article) []model.Article {
	if selected == nil {
		return nil
	}

	others := lo.Filter(articles, func(article model.Article, _ int) bool {
		return article.ID != selected.ID
	})
	if len(others) > relatedLimit {
		others = others[:relatedLimit]
	}

	return others
}
