package bot

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/kovalyov-valentin/newsletter-board/internal/newsletter"
	"github.com/kovalyov-valentin/newsletter-board/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	sent []tgbotapi.MessageConfig
}

func (a *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	a.sent = append(a.sent, c.(tgbotapi.MessageConfig))
	return tgbotapi.Message{}, nil
}

func (a *fakeAPI) GetChatAdministrators(tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error) {
	return nil, nil
}

func (a *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return nil
}

func (a *fakeAPI) last(t *testing.T) tgbotapi.MessageConfig {
	t.Helper()
	require.NotEmpty(t, a.sent)
	return a.sent[len(a.sent)-1]
}

func command(cmd string, args string) tgbotapi.Update {
	text := "/" + cmd
	if args != "" {
		text += " " + args
	}

	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Text:     text,
			Chat:     &tgbotapi.Chat{ID: 7},
			From:     &tgbotapi.User{ID: 1},
			Entities: []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: len(cmd) + 1}},
		},
	}
}

func newService() *newsletter.Service {
	return newsletter.NewService(storage.NewArticleMemoryStorage())
}

func draft(title string) model.Draft {
	return model.Draft{Title: title, Content: "Texto.", ImageURL: "https://img.example/a.png"}
}

func TestViewCmdStart(t *testing.T) {
	api := &fakeAPI{}

	require.NoError(t, ViewCmdStart()(context.Background(), api, command("start", "")))
	assert.Contains(t, api.last(t).Text, "/newsletters")
}

func TestViewCmdListNewsletters(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	api := &fakeAPI{}
	view := ViewCmdListNewsletters(svc)

	require.NoError(t, view(ctx, api, command("newsletters", "")))
	assert.Equal(t, "Nenhuma notícia encontrada\\.", api.last(t).Text)

	for i := 0; i < 12; i++ {
		_, err := svc.Add(ctx, draft(fmt.Sprintf("Edição %d", i)))
		require.NoError(t, err)
	}
	hidden, err := svc.Add(ctx, draft("Oculta"))
	require.NoError(t, err)
	_, err = svc.Hide(ctx, hidden.ID)
	require.NoError(t, err)

	require.NoError(t, view(ctx, api, command("newsletters", "")))

	msg := api.last(t)
	assert.Equal(t, tgbotapi.ModeMarkdownV2, msg.ParseMode)
	assert.Contains(t, msg.Text, "\\(total 12\\)")
	assert.Contains(t, msg.Text, "*Edição 11*")
	assert.NotContains(t, msg.Text, "*Edição 1*\n")
	assert.NotContains(t, msg.Text, "Oculta")
}

func TestViewCmdAddNewsletter(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	api := &fakeAPI{}
	view := ViewCmdAddNewsletter(svc)

	require.NoError(t, view(ctx, api, command("addnewsletter", "sem json")))
	assert.Equal(t, msgBadArguments, api.last(t).Text)

	require.NoError(t, view(ctx, api, command("addnewsletter", `{"title": "", "content": "x", "image_url": "https://a/b.png"}`)))
	assert.Equal(t, newsletter.ErrEmptyTitle.Error(), api.last(t).Text)

	require.NoError(t, view(ctx, api, command("addnewsletter", `{"title": "Boletim", "content": "x", "image_url": "https://a/b.png"}`)))
	assert.Contains(t, api.last(t).Text, "Newsletter adicionada com ID")

	articles, err := svc.FetchAll(ctx)
	require.NoError(t, err)
	require.Len(t, articles, 1)
	assert.Equal(t, "Boletim", articles[0].Title)
}

type failingAdder struct{}

func (failingAdder) Add(context.Context, model.Draft) (*model.Article, error) {
	return nil, errors.New("connection refused")
}

func TestViewCmdAddNewsletter_BackendFailure(t *testing.T) {
	api := &fakeAPI{}

	err := ViewCmdAddNewsletter(failingAdder{})(context.Background(), api, command("addnewsletter", `{"title": "a"}`))

	assert.ErrorContains(t, err, "connection refused")
	assert.Empty(t, api.sent)
}

func TestViewCmdDeleteNewsletter(t *testing.T) {
	ctx := context.Background()
	svc := newService()
	api := &fakeAPI{}
	view := ViewCmdDeleteNewsletter(svc)

	article, err := svc.Add(ctx, draft("Boletim"))
	require.NoError(t, err)

	require.NoError(t, view(ctx, api, command("deletenewsletter", "")))
	assert.Equal(t, newsletter.ErrMissingID.Error(), api.last(t).Text)

	require.NoError(t, view(ctx, api, command("deletenewsletter", "nope")))
	assert.Equal(t, newsletter.ErrNotFound.Error(), api.last(t).Text)

	require.NoError(t, view(ctx, api, command("deletenewsletter", article.ID)))
	assert.Equal(t, msgDeleted, api.last(t).Text)

	articles, err := svc.FetchAll(ctx)
	require.NoError(t, err)
	assert.Empty(t, articles)
}

func TestFormatArticle(t *testing.T) {
	article := model.Article{
		ID:        "a-1",
		Title:     "Olá!",
		CreatedAt: time.Date(2024, time.March, 2, 10, 5, 0, 0, time.UTC),
	}

	assert.Equal(t, "📰 *Olá\\!*\nID: `a-1`\n02\\.03\\.2024 10:05", formatArticle(article))
}
