package middleware

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/newsletter-board/internal/botkit"
	"github.com/samber/lo"
)

const msgAdminOnly = "Apenas administradores podem executar este comando."

// Пускает к view только администраторов канала, в который постит бот
func AdminOnly(channelID int64, next botkit.ViewFunc) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		admins, err := bot.GetChatAdministrators(
			tgbotapi.ChatAdministratorsConfig{
				ChatConfig: tgbotapi.ChatConfig{
					ChatID: channelID,
				},
			},
		)
		if err != nil {
			return err
		}

		_, isAdmin := lo.Find(admins, func(admin tgbotapi.ChatMember) bool {
			return admin.User != nil && update.Message.From != nil && admin.User.ID == update.Message.From.ID
		})
		if isAdmin {
			return next(ctx, bot, update)
		}

		if _, err := bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, msgAdminOnly)); err != nil {
			return err
		}

		return nil
	}
}
