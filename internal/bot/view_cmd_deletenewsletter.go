package bot

import (
	"context"
	"errors"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/newsletter-board/internal/botkit"
	"github.com/kovalyov-valentin/newsletter-board/internal/newsletter"
)

const msgDeleted = "Newsletter excluída com sucesso!"

type NewsletterDeleter interface {
	Delete(ctx context.Context, id string) error
}

func ViewCmdDeleteNewsletter(deleter NewsletterDeleter) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		id := strings.TrimSpace(update.Message.CommandArguments())

		err := deleter.Delete(ctx, id)
		switch {
		case err == nil:
			return replyText(bot, update, msgDeleted)
		case newsletter.IsValidation(err), errors.Is(err, newsletter.ErrNotFound):
			return replyText(bot, update, newsletter.Message(err))
		default:
			return err
		}
	}
}
