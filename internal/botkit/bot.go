package botkit

import (
	"context"
	"log"
	"runtime/debug"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

const internalErrorMsg = "Erro interno, tente novamente mais tarde."

// Часть клиента телеграма, которой пользуются бот и его view
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetChatAdministrators(config tgbotapi.ChatAdministratorsConfig) ([]tgbotapi.ChatMember, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
}

type Bot struct {
	api API
	// Мапа команда -> view
	cmdViews map[string]ViewFunc
	// Сколько даем одной view на обработку апдейта
	updateTimeout time.Duration
}

// Update здесь это любой эвент, который приходит от телеграма при взаимодействии пользователя с ботом.
// Функция реагирует на определенную команду
type ViewFunc func(ctx context.Context, bot API, update tgbotapi.Update) error

func New(api API) *Bot {
	return &Bot{
		api:           api,
		cmdViews:      make(map[string]ViewFunc),
		updateTimeout: 5 * time.Second,
	}
}

// Регистрация view для команды
func (b *Bot) RegisterCmdView(cmd string, view ViewFunc) {
	b.cmdViews[cmd] = view
}

func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			updateCtx, updateCancel := context.WithTimeout(ctx, b.updateTimeout)
			b.handleUpdate(updateCtx, update)
			updateCancel()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Роутит команду на соответствующую view
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	// В какой-нибудь view может случиться паника, бот при этом должен продолжить работу
	defer func() {
		if p := recover(); p != nil {
			log.Printf("[ERROR] panic recovered: %v\n%s", p, string(debug.Stack()))
		}
	}()

	if update.Message == nil || !update.Message.IsCommand() {
		return
	}

	view, ok := b.cmdViews[update.Message.Command()]
	if !ok {
		return
	}

	if err := view(ctx, b.api, update); err != nil {
		log.Printf("[ERROR] failed to handle update: %v", err)

		if _, err := b.api.Send(
			tgbotapi.NewMessage(update.Message.Chat.ID, internalErrorMsg),
		); err != nil {
			log.Printf("[ERROR] failed to send message: %v", err)
		}
	}
}
