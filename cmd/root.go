package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/Glassolution/berry/internal/config"
	"github.com/Glassolution/berry/internal/storage"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:          "berry",
	Short:        "Nutrition diary service",
	Long:         `berry keeps a meal and routine diary, serves it over HTTP and Telegram, and sends the daily notification and routine reminders.`,
	SilenceUsage: true,
}

func init() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./berry.yaml)")
	rootCmd.AddCommand(serveCmd, mealsCmd)
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openBackend picks Postgres when a DSN is set, the sqlite file otherwise.
func openBackend(ctx context.Context, cfg *config.Config) (storage.Backend, error) {
	if cfg.Storage.PostgresDSN != "" {
		return storage.NewPostgres(ctx, cfg.Storage.PostgresDSN)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Storage.Path), 0o755); err != nil {
		return nil, err
	}
	return storage.New(cfg.Storage.Path)
}
