package middleware

import (
	"context"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/newsletter-board/internal/botkit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAPI struct {
	admins  []tgbotapi.ChatMember
	sent    []tgbotapi.Chattable
	channel int64
}

func (a *fakeAPI) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	a.sent = append(a.sent, c)
	return tgbotapi.Message{}, nil
}

func (a *fakeAPI) GetChatAdministrators(config tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error) {
	a.channel = config.ChatID
	return a.admins, nil
}

func (a *fakeAPI) GetUpdatesChan(tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return nil
}

func updateFrom(userID int64) tgbotapi.Update {
	return tgbotapi.Update{
		Message: &tgbotapi.Message{
			Chat: &tgbotapi.Chat{ID: 7},
			From: &tgbotapi.User{ID: userID},
		},
	}
}

func TestAdminOnly(t *testing.T) {
	api := &fakeAPI{admins: []tgbotapi.ChatMember{{User: &tgbotapi.User{ID: 1}}}}

	called := 0
	view := AdminOnly(-100, func(context.Context, botkit.API, tgbotapi.Update) error {
		called++
		return nil
	})

	require.NoError(t, view(context.Background(), api, updateFrom(1)))
	assert.Equal(t, 1, called)
	assert.Equal(t, int64(-100), api.channel)
	assert.Empty(t, api.sent)

	require.NoError(t, view(context.Background(), api, updateFrom(2)))
	assert.Equal(t, 1, called)
	require.Len(t, api.sent, 1)
	assert.Equal(t, msgAdminOnly, api.sent[0].(tgbotapi.MessageConfig).Text)
}
