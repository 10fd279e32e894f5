// -- cmd/run.go --
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"campusdaily/internal/config"
	"campusdaily/internal/history"
	"campusdaily/internal/notify"
	"campusdaily/internal/observability"
	"campusdaily/internal/routine"
)

var watchMode bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Log in and submit every open collection form for each profile.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		log := observability.GetLogger()

		loadProfiles := func() ([]config.Profile, error) {
			return config.LoadProfiles(cfg.Routine.ProfileDir, log)
		}

		var notifier notify.Notifier = notify.Noop{}
		if cfg.Notifier.Enabled {
			telegram, err := notify.NewTelegram(cfg.Notifier.TelegramToken, cfg.Notifier.OperatorChatID, log)
			if err != nil {
				return err
			}
			notifier = telegram
		}

		var recorder routine.Recorder
		if cfg.History.Enabled {
			pool, err := pgxpool.New(ctx, cfg.History.DatabaseURL)
			if err != nil {
				return fmt.Errorf("connecting to history database: %w", err)
			}
			defer pool.Close()

			store, err := history.New(ctx, pool, log)
			if err != nil {
				return err
			}
			if err := store.EnsureSchema(ctx); err != nil {
				return err
			}
			recorder = store
		}

		runner := routine.NewRunner(cfg.Network, cfg.Routine.Concurrency, notifier, recorder, log)

		if watchMode {
			err := runner.Watch(ctx, cfg.Routine, loadProfiles)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		profiles, err := loadProfiles()
		if err != nil {
			return err
		}
		if len(profiles) == 0 {
			log.Warn("No profiles found; nothing to do",
				zap.String("profile_dir", cfg.Routine.ProfileDir))
			return nil
		}
		runner.ProcessAll(ctx, profiles)
		return nil
	},
}

func init() {
	runCmd.Flags().BoolVarP(&watchMode, "watch", "w", false, "stay resident and fire at the scheduled slots")
	rootCmd.AddCommand(runCmd)
}
