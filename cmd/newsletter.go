package main

import (
	"context"
	"fmt"

	"github.com/kovalyov-valentin/newsletter-board/internal/config"
	"github.com/kovalyov-valentin/newsletter-board/internal/model"
	"github.com/kovalyov-valentin/newsletter-board/internal/newsletter"
	"github.com/spf13/cobra"
)

var newsletterCmd = &cobra.Command{
	Use:   "newsletter",
	Short: "Operator actions on newsletters",
}

// Скрытие не удаляет статью: к заголовку дописывается маркер, show его снимает
var newsletterHideCmd = &cobra.Command{
	Use:   "hide <id>",
	Short: "Hide a newsletter by marking its title",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return rewriteNewsletter(cmd, args[0], (*newsletter.Service).Hide)
	},
}

var newsletterShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Restore the original title of a hidden newsletter",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return rewriteNewsletter(cmd, args[0], (*newsletter.Service).Show)
	},
}

func init() {
	rootCmd.AddCommand(newsletterCmd)
	newsletterCmd.AddCommand(newsletterHideCmd, newsletterShowCmd)
}

type rewriteFunc func(s *newsletter.Service, ctx context.Context, id string) (*model.Article, error)

func rewriteNewsletter(cmd *cobra.Command, id string, rewrite rewriteFunc) error {
	ctx := cmd.Context()

	b, err := openBackend(ctx, config.Get())
	if err != nil {
		return err
	}
	defer b.close()

	article, err := rewrite(newsletter.NewService(b.articles), ctx, id)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", article.ID, article.Title)

	return nil
}
