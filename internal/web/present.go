package web

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/kovalyov-valentin/newsletter-board/internal/board"
	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/samber/lo"
)

const (
	excerptLength = 160

	EmptyTitle = "Nenhuma notícia encontrada"
	EmptyHint  = "Clique no botão acima para adicionar sua primeira notícia."
	LoadingMsg = "Carregando notícias..."
)

var monthsPtBR = [...]string{
	"janeiro", "fevereiro", "março", "abril", "maio", "junho",
	"julho", "agosto", "setembro", "outubro", "novembro", "dezembro",
}

// Карточка статьи в списке
type Card struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	ImageURL string `json:"image_url"`
	Excerpt  string `json:"excerpt"`
	Date     string `json:"date"`
	TimeAgo  string `json:"time_ago"`
	Hidden   bool   `json:"hidden"`
}

// Полная статья
type Detail struct {
	Card
	LongDate   string   `json:"long_date"`
	Paragraphs []string `json:"paragraphs"`
}

// Пустое состояние, отличается от ошибки
type EmptyState struct {
	Title string `json:"title"`
	Hint  string `json:"hint"`
}

// То, что видит браузер
type ViewModel struct {
	Loading        bool             `json:"loading"`
	LoadingMessage string           `json:"loading_message,omitempty"`
	Cards          []Card           `json:"cards"`
	Empty          *EmptyState      `json:"empty,omitempty"`
	Detail         *Detail          `json:"detail,omitempty"`
	Related        []Card           `json:"related,omitempty"`
	AdminMode      bool             `json:"admin_mode"`
	LoggedIn       bool             `json:"logged_in"`
	LoginRequired  bool             `json:"login_required"`
	Create         board.CreateForm `json:"create"`
	Delete         *DeleteView      `json:"delete,omitempty"`
}

type DeleteView struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	Processing bool   `json:"processing"`
	Error      string `json:"error,omitempty"`
}

func Render(state board.State, loggedIn bool, now time.Time) ViewModel {
	vm := ViewModel{
		Loading:       state.Loading,
		Cards:         lo.Map(state.Articles, func(a model.Article, _ int) Card { return NewCard(a, now) }),
		AdminMode:     state.AdminMode,
		LoggedIn:      loggedIn,
		LoginRequired: state.LoginRequired,
		Create:        state.Create,
	}

	if state.Loading {
		vm.LoadingMessage = LoadingMsg
	}

	if state.Empty() {
		vm.Empty = &EmptyState{Title: EmptyTitle, Hint: EmptyHint}
	}

	if state.Selected != nil {
		detail := NewDetail(*state.Selected, now)
		vm.Detail = &detail
		vm.Related = lo.Map(state.Related, func(a model.Article, _ int) Card { return NewCard(a, now) })
	}

	if target := state.Delete.Target; target != nil {
		vm.Delete = &DeleteView{
			ID:         target.ID,
			Title:      target.Title,
			Processing: state.Delete.Processing,
			Error:      state.Delete.Error,
		}
	}

	return vm
}

func NewCard(article model.Article, now time.Time) Card {
	return Card{
		ID:       article.ID,
		Title:    article.Title,
		ImageURL: article.ImageURL,
		Excerpt:  Excerpt(article.Content, excerptLength),
		Date:     ShortDate(article.CreatedAt),
		TimeAgo:  TimeAgo(article.CreatedAt, now),
		Hidden:   article.Hidden(),
	}
}

func NewDetail(article model.Article, now time.Time) Detail {
	return Detail{
		Card:       NewCard(article, now),
		LongDate:   LongDate(article.CreatedAt),
		Paragraphs: Paragraphs(article.Content),
	}
}

// Начало текста не длиннее limit символов, обрезанное по границе слова
func Excerpt(content string, limit int) string {
	text := strings.Join(strings.Fields(content), " ")
	if utf8.RuneCountInString(text) <= limit {
		return text
	}

	runes := []rune(text)
	cut := string(runes[:limit])
	if i := strings.LastIndex(cut, " "); i > 0 {
		cut = cut[:i]
	}

	return strings.TrimRight(cut, " ,.;:") + "..."
}

// Абзацы из текста, разделенного переводами строк. Пустые строки пропускаются
func Paragraphs(content string) []string {
	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")

	return lo.FilterMap(lines, func(line string, _ int) (string, bool) {
		line = strings.TrimSpace(line)
		return line, line != ""
	})
}

// "2 de jan. de 2024"
func ShortDate(t time.Time) string {
	return fmt.Sprintf("%d de %s. de %d", t.Day(), monthsPtBR[t.Month()-1][:3], t.Year())
}

// "2 de janeiro de 2024"
func LongDate(t time.Time) string {
	return fmt.Sprintf("%d de %s de %d", t.Day(), monthsPtBR[t.Month()-1], t.Year())
}

// Относительное время в духе "há 3 dias"
func TimeAgo(t time.Time, now time.Time) string {
	d := now.Sub(t)
	if d < 0 {
		d = 0
	}

	plural := func(n int, one string, many string) string {
		if n == 1 {
			return "há 1 " + one
		}
		return fmt.Sprintf("há %d %s", n, many)
	}

	switch {
	case d < time.Minute:
		return "há menos de um minuto"
	case d < time.Hour:
		return plural(int(d/time.Minute), "minuto", "minutos")
	case d < 24*time.Hour:
		return plural(int(d/time.Hour), "hora", "horas")
	case d < 30*24*time.Hour:
		return plural(int(d/(24*time.Hour)), "dia", "dias")
	case d < 365*24*time.Hour:
		return plural(int(d/(30*24*time.Hour)), "mês", "meses")
	default:
		return plural(int(d/(365*24*time.Hour)), "ano", "anos")
	}
}
