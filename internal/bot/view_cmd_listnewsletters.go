package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/newsletter-board/internal/botkit"
	"github.com/kovalyov-valentin/newsletter-board/internal/botkit/markup"
	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/samber/lo"
)

// Сколько последних статей показываем в списке
const listLimit = 10

type NewsletterLister interface {
	FetchAll(ctx context.Context) ([]model.Article, error)
}

func ViewCmdListNewsletters(lister NewsletterLister) botkit.ViewFunc {
	return func(ctx context.Context, bot botkit.API, update tgbotapi.Update) error {
		articles, err := lister.FetchAll(ctx)
		if err != nil {
			return err
		}

		// Скрытые статьи в боте не показываем
		visible := lo.Filter(articles, func(article model.Article, _ int) bool {
			return !article.Hidden()
		})

		reply := tgbotapi.NewMessage(update.Message.Chat.ID, listText(visible))
		reply.ParseMode = tgbotapi.ModeMarkdownV2

		if _, err := bot.Send(reply); err != nil {
			return err
		}

		return nil
	}
}

func listText(articles []model.Article) string {
	if len(articles) == 0 {
		return markup.EscapeForMarkdown("Nenhuma notícia encontrada.")
	}

	infos := lo.Map(articles[:min(len(articles), listLimit)], func(article model.Article, _ int) string {
		return formatArticle(article)
	})

	return fmt.Sprintf(
		"Newsletters \\(total %d\\):\n\n%s",
		len(articles),
		strings.Join(infos, "\n\n"),
	)
}

func formatArticle(article model.Article) string {
	return fmt.Sprintf(
		"📰 *%s*\nID: `%s`\n%s",
		markup.EscapeForMarkdown(article.Title),
		article.ID,
		markup.EscapeForMarkdown(article.CreatedAt.Format("02.01.2006 15:04")),
	)
}
