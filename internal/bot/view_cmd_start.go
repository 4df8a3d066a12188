package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/newsletter-board/internal/botkit"
)

const startText = "Olá! Eu publico as newsletters do mural no canal.\n\n" +
	"/newsletters - últimas newsletters\n" +
	"/addnewsletter {\"title\": \"...\", \"content\": \"...\", \"image_url\": \"...\"} - adicionar (administradores)\n" +
	"/deletenewsletter <id> - excluir (administradores)"

func ViewCmdStart() botkit.ViewFunc {
	return func(_ context.Context, bot botkit.API, update tgbotapi.Update) error {
		if _, err := bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, startText)); err != nil {
			return err
		}

		return nil
	}
}
