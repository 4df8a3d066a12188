package notifier

import (
	"context"
	"fmt"
	"html"
	"log"
	"regexp"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/go-shiori/go-readability"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/newsletter-board/internal/botkit/markup"
	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/samber/lo"
	"github.com/tomakado/containers/set"
)

// Подпись к фото в телеграме ограничена, поэтому текст без summary обрезаем
const fallbackTextLength = 300

type NewsletterSource interface {
	Subscribe(ctx context.Context, fn func([]model.Article)) (func(), error)
}

type Summarizer interface {
	Summarize(ctx context.Context, text string) (string, error)
}

// Все, что нужно notifier от botAPI
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type Notifier struct {
	// Откуда узнаем о новых статьях
	newsletters NewsletterSource
	// Компонент, который будет генерить summary
	summarizer Summarizer
	bot        Sender
	// Интервал, с которым notifier отправляет следующую статью из очереди
	sendInterval time.Duration
	// id канала куда мы будем постить статьи
	channelID int64
	// Адрес доски, по нему строим ссылку на статью
	boardURL string

	mu sync.Mutex
	// Первый снимок считается уже опубликованным
	baselined bool
	// Проверка "статья уже известна" по последнему снимку и очереди
	known func(id string) bool
	queue []model.Article
}

func New(
	newsletters NewsletterSource,
	summarizer Summarizer,
	bot Sender,
	sendInterval time.Duration,
	channelID int64,
	boardURL string,
) *Notifier {
	return &Notifier{
		newsletters:  newsletters,
		summarizer:   summarizer,
		bot:          bot,
		sendInterval: sendInterval,
		channelID:    channelID,
		boardURL:     strings.TrimRight(boardURL, "/"),
	}
}

func (n *Notifier) Start(ctx context.Context) error {
	unsubscribe, err := n.newsletters.Subscribe(ctx, n.Observe)
	if err != nil {
		return fmt.Errorf("subscribe notifier: %w", err)
	}
	defer unsubscribe()

	ticker := time.NewTicker(n.sendInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if err := n.SendNext(ctx); err != nil {
				log.Printf("[ERROR] failed to send newsletter to telegram: %v", err)
			}
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Принимает полный снимок доски и ставит в очередь статьи, которых раньше не было
func (n *Notifier) Observe(articles []model.Article) {
	ids := lo.Map(articles, func(article model.Article, _ int) string { return article.ID })

	n.mu.Lock()
	defer n.mu.Unlock()

	if !n.baselined {
		n.remember(ids)
		n.baselined = true
		return
	}

	// Снимок идет от новых к старым, а публикуем в порядке создания
	fresh := lo.Filter(articles, func(article model.Article, _ int) bool {
		return !n.known(article.ID) && !article.Hidden()
	})
	n.queue = append(n.queue, lo.Reverse(fresh)...)

	queued := lo.Map(n.queue, func(article model.Article, _ int) string { return article.ID })
	n.remember(append(ids, queued...))
}

// Вызывается под n.mu
func (n *Notifier) remember(ids []string) {
	known := set.New(ids...)
	n.known = known.Contains
}

// Сколько статей ждут отправки
func (n *Notifier) Pending() int {
	n.mu.Lock()
	defer n.mu.Unlock()

	return len(n.queue)
}

// Отправляет одну статью из очереди
func (n *Notifier) SendNext(ctx context.Context) error {
	n.mu.Lock()
	if len(n.queue) == 0 {
		n.mu.Unlock()
		return nil
	}
	article := n.queue[0]
	n.queue = n.queue[1:]
	n.mu.Unlock()

	summary, err := n.extractSummary(ctx, article)
	if err != nil {
		log.Printf("[WARN] failed to summarize newsletter %s: %v", article.ID, err)
		summary = truncate(article.Content, fallbackTextLength)
	}

	return n.sendArticle(article, summary)
}

// Краткое содержание статьи. Текст прогоняем через readability, чтобы
// получить чистый текст без лишних пустых строк
func (n *Notifier) extractSummary(ctx context.Context, article model.Article) (string, error) {
	var text string

	// На коротких статьях readability может не найти основной блок, тогда берем текст как есть
	doc, err := readability.FromReader(strings.NewReader(articleHTML(article)), nil)
	if err != nil {
		log.Printf("[WARN] readability failed for newsletter %s: %v", article.ID, err)
	} else {
		text = cleanText(doc.TextContent)
	}

	if strings.TrimSpace(text) == "" {
		text = article.Content
	}

	summary, err := n.summarizer.Summarize(ctx, text)
	if err != nil {
		return "", err
	}

	if summary == "" {
		return truncate(text, fallbackTextLength), nil
	}

	return summary, nil
}

// Метод отправки статьи: картинка статьи с подписью
func (n *Notifier) sendArticle(article model.Article, summary string) error {
	// Сначала идет жирным заголовок, потом summary, потом ссылка на статью
	const msgFormat = "*%s*\n\n%s\n\n%s"

	caption := fmt.Sprintf(
		msgFormat,
		markup.EscapeForMarkdown(article.Title),
		markup.EscapeForMarkdown(summary),
		markup.EscapeForMarkdown(n.link(article)),
	)

	var msg tgbotapi.Chattable
	if article.ImageURL != "" {
		photo := tgbotapi.NewPhoto(n.channelID, tgbotapi.FileURL(article.ImageURL))
		photo.Caption = caption
		photo.ParseMode = tgbotapi.ModeMarkdownV2
		msg = photo
	} else {
		text := tgbotapi.NewMessage(n.channelID, caption)
		text.ParseMode = tgbotapi.ModeMarkdownV2
		msg = text
	}

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("send newsletter %s: %w", article.ID, err)
	}

	log.Printf("[INFO] newsletter %s posted to telegram", article.ID)

	return nil
}

func (n *Notifier) link(article model.Article) string {
	return n.boardURL + "/api/newsletters/" + article.ID
}

// Readability ждет html, поэтому оборачиваем абзацы в разметку
func articleHTML(article model.Article) string {
	var b strings.Builder

	b.WriteString("<html><head><title>")
	b.WriteString(html.EscapeString(article.Title))
	b.WriteString("</title></head><body><article>")
	for _, paragraph := range strings.Split(article.Content, "\n") {
		if strings.TrimSpace(paragraph) == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(paragraph))
		b.WriteString("</p>")
	}
	b.WriteString("</article></body></html>")

	return b.String()
}

// Библиотека readability оставляет много пустых строк в тексте очищенном от html тегов.
// Эта регулярка соответствует всем последовательностям из 3 и более переводов строки
var redundantNewLines = regexp.MustCompile(`\n{3,}`)

func cleanText(text string) string {
	return redundantNewLines.ReplaceAllString(text, "\n")
}

func truncate(text string, limit int) string {
	text = strings.TrimSpace(text)
	if utf8.RuneCountInString(text) <= limit {
		return text
	}

	return strings.TrimSpace(string([]rune(text)[:limit])) + "..."
}
