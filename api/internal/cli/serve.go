package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"sanskrit-reader/api/internal/config"
	"sanskrit-reader/api/internal/httpserver"
	"sanskrit-reader/api/internal/llm"
	"sanskrit-reader/api/internal/logger"
	"sanskrit-reader/api/internal/telegram"
	"sanskrit-reader/api/internal/web"
)

var withBot bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the web page and the JSON translation API",
	Long: `Serve the translator page at / and the JSON API:

  POST /api/translate/text   {"text": "...", "llm_name": "gemini"}
  POST /api/translate/image  multipart form, field "image" (+ optional "llm_name")
  GET  /healthz

With --with-bot the Telegram bot runs in the same process.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if withBot {
			err = cfg.ValidateBot()
		} else {
			err = cfg.Validate()
		}
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg, withBot, true)
	},
}

var botCmd = &cobra.Command{
	Use:   "bot",
	Short: "Run the Telegram bot only (webhook when WEBHOOK_URL is set, else long polling)",
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateBot(); err != nil {
			return err
		}
		return run(cmd.Context(), cfg, true, false)
	},
}

func init() {
	serveCmd.Flags().BoolVar(&withBot, "with-bot", false, "also run the Telegram bot")
	rootCmd.AddCommand(serveCmd, botCmd)
}

func run(parent context.Context, cfg *config.Config, bot, api bool) error {
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	g, gctx := errgroup.WithContext(ctx)
	opts := httpserver.Options{Health: a.health()}
	if api {
		opts.Handle = a.handle()
		opts.Page = &web.Page{
			Engines:       a.engines.Names(),
			Default:       defaultName(a.engines),
			MaxImageBytes: cfg.MaxImageBytes,
		}
	}
	if bot {
		route, err := startBot(gctx, g, a)
		if err != nil {
			return err
		}
		if route != nil {
			opts.Routes = append(opts.Routes, *route)
		}
	}

	addr := "0.0.0.0:" + cfg.Port
	g.Go(func() error { return httpserver.Run(gctx, addr, httpserver.NewMux(opts)) })

	err = g.Wait()
	logger.Infof("stopped")
	return err
}

// startBot returns the webhook route in webhook mode; in polling mode it runs the loop in g.
func startBot(ctx context.Context, g *errgroup.Group, a *app) (*httpserver.Route, error) {
	bot, err := tgbotapi.NewBotAPI(a.cfg.TelegramBotToken)
	if err != nil {
		return nil, err
	}
	bot.Debug = false

	def, err := a.engines.GetEngine("")
	if err != nil {
		return nil, err
	}
	r := &telegram.Router{
		Bot:           bot,
		Engines:       a.engines,
		EngManager:    llm.NewManager(def),
		MaxImageBytes: a.cfg.MaxImageBytes,
		ModelTimeout:  a.cfg.ModelTimeout,
		Journal:       a.journal,
	}
	handleUpd := func(upd tgbotapi.Update) { r.HandleUpdate(ctx, upd) }

	if a.cfg.WebhookURL != "" {
		path, err := telegram.SetWebhook(bot, a.cfg.WebhookURL)
		if err != nil {
			return nil, err
		}
		logger.Infof("telegram @%s: webhook on %s", bot.Self.UserName, path)
		return &httpserver.Route{Pattern: path, Handler: telegram.WebhookHandler(bot, handleUpd)}, nil
	}

	if err := telegram.DeleteWebhook(bot); err != nil {
		logger.Warnf("telegram deleteWebhook: %v", err)
	}
	logger.Infof("telegram @%s: long polling", bot.Self.UserName)
	g.Go(func() error {
		telegram.RunPolling(ctx, bot, func(upd tgbotapi.Update) { go handleUpd(upd) })
		return nil
	})
	return nil, nil
}

func defaultName(engs *llm.Engines) string {
	def, err := engs.GetEngine("")
	if err != nil {
		return ""
	}
	return def.Name()
}
