package main

import (
	"context"
	"errors"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/kovalyov-valentin/newsletter-board/internal/auth"
	"github.com/kovalyov-valentin/newsletter-board/internal/bot"
	"github.com/kovalyov-valentin/newsletter-board/internal/bot/middleware"
	"github.com/kovalyov-valentin/newsletter-board/internal/botkit"
	"github.com/kovalyov-valentin/newsletter-board/internal/config"
	"github.com/kovalyov-valentin/newsletter-board/internal/newsletter"
	"github.com/kovalyov-valentin/newsletter-board/internal/notifier"
	"github.com/kovalyov-valentin/newsletter-board/internal/session"
	"github.com/kovalyov-valentin/newsletter-board/internal/summary"
	"github.com/kovalyov-valentin/newsletter-board/internal/web"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the web board, live updates and the telegram channel",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	cfg := config.Get()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.close()

	var (
		newsletters = newsletter.NewService(b.articles)
		authService = auth.New(b.admins, cfg.SessionTTL, cfg.SessionReapInterval)
		server      = web.New(
			newsletters,
			authService,
			session.NewAnnouncer(b.flags),
			web.Options{
				Addr:         cfg.HTTPAddr,
				Heartbeat:    cfg.SSEHeartbeat,
				LoginRate:    rate.Limit(cfg.LoginRate),
				LoginBurst:   cfg.LoginBurst,
				CookieSecure: cfg.CookieSecure,
				SessionTTL:   cfg.SessionTTL,
			},
		)
	)

	if err := bootstrapAdmin(ctx, authService, cfg, b.durableAdmins); err != nil {
		return err
	}

	g, gCtx := errgroup.WithContext(ctx)

	g.Go(func() error { return ignoreCanceled(server.Start(gCtx)) })
	g.Go(func() error { return ignoreCanceled(authService.Start(gCtx)) })

	if b.watch != nil {
		g.Go(func() error { return ignoreCanceled(b.watch(gCtx)) })
	}

	if cfg.TelegramBotToken != "" {
		if err := startTelegram(gCtx, g, cfg, newsletters); err != nil {
			return err
		}
	} else {
		log.Printf("[INFO] telegram token is empty, bot and channel posting disabled")
	}

	if err := g.Wait(); err != nil {
		return err
	}

	log.Printf("[INFO] newsboard stopped")

	return nil
}

// Администратор из конфига для бэкендов, где администраторы живут только в памяти процесса
func bootstrapAdmin(ctx context.Context, authService *auth.Service, cfg config.Config, durable bool) error {
	if cfg.AdminEmail == "" {
		if !durable {
			log.Printf("[WARN] backend %s keeps admins in memory and NB_ADMIN_EMAIL is empty, nobody can log in", cfg.Backend)
		}
		return nil
	}

	_, err := authService.CreateAdmin(ctx, cfg.AdminName, cfg.AdminEmail, cfg.AdminPassword)
	switch {
	case err == nil:
		log.Printf("[INFO] admin %s created from config", cfg.AdminEmail)
		return nil
	case errors.Is(err, auth.ErrAdminExists):
		return nil
	default:
		return err
	}
}

// Бот с командами и публикация новых статей в канал
func startTelegram(ctx context.Context, g *errgroup.Group, cfg config.Config, newsletters *newsletter.Service) error {
	botAPI, err := tgbotapi.NewBotAPI(cfg.TelegramBotToken)
	if err != nil {
		return err
	}

	newsBot := botkit.New(botAPI)
	newsBot.RegisterCmdView("start", bot.ViewCmdStart())
	newsBot.RegisterCmdView("newsletters", bot.ViewCmdListNewsletters(newsletters))
	newsBot.RegisterCmdView(
		"addnewsletter",
		middleware.AdminOnly(cfg.TelegramChannelID, bot.ViewCmdAddNewsletter(newsletters)),
	)
	newsBot.RegisterCmdView(
		"deletenewsletter",
		middleware.AdminOnly(cfg.TelegramChannelID, bot.ViewCmdDeleteNewsletter(newsletters)),
	)

	g.Go(func() error { return ignoreCanceled(newsBot.Run(ctx)) })

	if cfg.TelegramChannelID == 0 {
		log.Printf("[WARN] telegram channel id is empty, channel posting disabled")
		return nil
	}

	channel := notifier.New(
		newsletters,
		summary.NewOpenAISummarizer(cfg.OpenAIKey, cfg.OpenAIPromt),
		botAPI,
		cfg.NotificationInterval,
		cfg.TelegramChannelID,
		cfg.BoardURL,
	)
	g.Go(func() error { return ignoreCanceled(channel.Start(ctx)) })

	return nil
}
