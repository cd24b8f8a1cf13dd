package cmd

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/Glassolution/berry/internal/analysis"
	"github.com/Glassolution/berry/internal/api"
	"github.com/Glassolution/berry/internal/config"
	"github.com/Glassolution/berry/internal/handlers"
	"github.com/Glassolution/berry/internal/images"
	"github.com/Glassolution/berry/internal/nutrition"
	"github.com/Glassolution/berry/internal/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API, the Telegram bot and the notification scheduler",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg)
	},
}

// logNotifier stands in for the bot when no token is configured.
type logNotifier struct{}

func (logNotifier) Notify(_ context.Context, chatID int64, text string) error {
	log.Printf("notify %d: %s", chatID, text)
	return nil
}

func imageSaver(ctx context.Context, cfg *config.Config) nutrition.ImageSaver {
	if cfg.Images.S3Bucket != "" {
		b, err := images.NewBucket(ctx, cfg.Images.S3Region, cfg.Images.S3Bucket, cfg.Images.PublicURL)
		if err == nil {
			return b
		}
		log.Println("s3 unavailable, keeping photos on disk:", err)
	}
	return images.Documents{Dir: cfg.App.DocumentsDir}
}

func serve(ctx context.Context, cfg *config.Config) error {
	loc, _ := cfg.Location()

	backend, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	store := nutrition.NewStore(backend, imageSaver(ctx, cfg), nutrition.WithLocation(loc))
	defer store.Close()
	if err := store.Hydrate(ctx); err != nil {
		// keep serving; data routes answer 503 until restart
		log.Println("❌", err)
	}

	var notifier scheduler.Notifier = logNotifier{}
	if cfg.Telegram.Token != "" {
		bot, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
		if err != nil {
			return err
		}
		log.Printf("authorized on account %s", bot.Self.UserName)
		h := handlers.NewHandler(bot, backend, store, loc.String())
		notifier = h
		go h.Listen(ctx, bot)
	} else {
		log.Println("telegram token not set, bot disabled")
	}

	sched, err := scheduler.Start(ctx, store, backend, notifier, scheduler.WithLocation(loc))
	if err != nil {
		return err
	}
	defer func() {
		if err := sched.Shutdown(); err != nil {
			log.Println("scheduler shutdown:", err)
		}
	}()

	srv := &api.Server{Store: store, Scheduler: sched, WeekStart: cfg.App.WeekStart}
	if cfg.Analysis.APIKey != "" {
		client := analysis.NewClient(cfg.Analysis.APIKey, cfg.Analysis.BaseURL, cfg.Analysis.Model, cfg.Analysis.Timeout)
		srv.Analyze = analysis.NewService(client, cfg.Analysis.MaxImageBytes).Handle
	} else {
		srv.Analyze = analysis.NewService(nil, cfg.Analysis.MaxImageBytes).Handle
	}

	httpSrv := &http.Server{Addr: cfg.HTTP.Addr, Handler: api.NewRouter(srv)}
	errc := make(chan error, 1)
	go func() {
		log.Println("listening on", cfg.HTTP.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errc:
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}
