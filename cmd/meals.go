package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Glassolution/berry/internal/config"
	"github.com/Glassolution/berry/internal/handlers"
	"github.com/Glassolution/berry/internal/nutrition"
)

var mealsDate string

var mealsCmd = &cobra.Command{
	Use:   "meals",
	Short: "Print the timeline of one day",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		loc, _ := cfg.Location()

		backend, err := openBackend(ctx, cfg)
		if err != nil {
			return err
		}
		defer backend.Close()

		store := nutrition.NewStore(backend, nil, nutrition.WithLocation(loc))
		defer store.Close()
		if err := store.Hydrate(ctx); err != nil {
			return err
		}

		day := store.Now()
		if mealsDate != "" {
			if day, err = time.ParseInLocation(time.DateOnly, mealsDate, loc); err != nil {
				return fmt.Errorf("--date: %w", err)
			}
		}
		d, err := store.Day(ctx, day)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), handlers.FormatDay(d))
		return nil
	},
}

func init() {
	mealsCmd.Flags().StringVar(&mealsDate, "date", "", "day to print, YYYY-MM-DD (default today)")
}
