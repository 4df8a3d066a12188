package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/newsletter-board/internal/botkit"
	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/kovalyov-valentin/newsletter-board/internal/newsletter"
)

const msgBadArguments = "Argumentos inválidos. Use /addnewsletter {\"title\": \"...\", \"content\": \"...\", \"image_url\": \"...\"}"

type NewsletterAdder interface {
	Add(ctx context.Context, draft model.Draft) (*model.Article, error)
}

// Добавление статьи из телеграма. Аргументы команды - json черновика
func ViewCmdAddNewsletter(adder NewsletterAdder) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		draft, err := botkit.ParseJSON[model.Draft](update.Message.CommandArguments())
		if err != nil {
			return replyText(bot, update, msgBadArguments)
		}

		article, err := adder.Add(ctx, draft)
		if err != nil {
			if newsletter.IsValidation(err) {
				return replyText(bot, update, newsletter.Message(err))
			}
			return err
		}

		reply := tgbotapi.NewMessage(
			update.Message.Chat.ID,
			fmt.Sprintf("Newsletter adicionada com ID: `%s`\\.", article.ID),
		)
		reply.ParseMode = tgbotapi.ModeMarkdownV2

		if _, err := bot.Send(reply); err != nil {
			return err
		}

		return nil
	}
}

func replyText(bot botkit.API, update tgbotapi.Update, text string) error {
	if _, err := bot.Send(tgbotapi.NewMessage(update.Message.Chat.ID, text)); err != nil {
		return err
	}

	return nil
}
