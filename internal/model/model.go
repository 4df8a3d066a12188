package model

import (
	"sort"
	"strings"
	"time"
)

// Статья (newsletter) доски. Единственная сущность домена
type Article struct {
	// Непрозрачный id, который назначает бэкенд
	ID string `json:"id"`
	// Заголовок
	Title string `json:"title"`
	// Текст, абзацы разделены переводом строки
	Content string `json:"content"`
	// Ссылка на картинку
	ImageURL string `json:"image_url"`
	// Время создания, назначается бэкендом и больше не меняется
	CreatedAt time.Time `json:"created_at"`
}

// То, что заполняет администратор при создании статьи
type Draft struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	ImageURL string `json:"image_url"`
}

// Администратор доски
type Admin struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

const hiddenMarker = "[OCULTA]"

// Префикс, которым помечается скрытая статья: "[OCULTA] {id} "
func HiddenTitlePrefix(id string) string {
	return hiddenMarker + " " + id + " "
}

// Скрыта ли статья (soft delete)
func (a Article) Hidden() bool {
	return strings.HasPrefix(a.Title, HiddenTitlePrefix(a.ID))
}

// Заголовок скрытой статьи
func HideTitle(id, title string) string {
	return HiddenTitlePrefix(id) + title
}

// Восстанавливает исходный заголовок.
// Если заголовок не в ожидаемом формате, он возвращается как есть
func ShowTitle(id, title string) (string, bool) {
	prefix := HiddenTitlePrefix(id)
	if !strings.HasPrefix(title, prefix) {
		return title, false
	}

	return strings.TrimPrefix(title, prefix), true
}

// Сортировка по времени создания, сначала новые
func SortNewestFirst(articles []Article) {
	sort.SliceStable(articles, func(i, j int) bool {
		return articles[i].CreatedAt.After(articles[j].CreatedAt)
	})
}
