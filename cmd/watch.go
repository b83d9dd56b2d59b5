package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/papapumpkin/bootforge/internal/inventory"
	"github.com/papapumpkin/bootforge/internal/metrics"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Keep the inventory loaded and resync it whenever the file changes",
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSession(cmd, true)
		if err != nil {
			return err
		}
		defer s.close()

		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if s.cfg.Settings != "" {
			if err := s.settings.Watch(); err != nil {
				return err
			}
		}

		if s.cfg.MetricsAddr != "" {
			srv := &http.Server{
				Addr:              s.cfg.MetricsAddr,
				Handler:           metrics.Handler(),
				ReadHeaderTimeout: 5 * time.Second,
			}
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					s.log.WithError(err).Error("metrics server stopped")
				}
			}()
			defer func() {
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				_ = srv.Shutdown(shutdownCtx)
			}()
			s.log.WithField("addr", s.cfg.MetricsAddr).Info("serving metrics")
		}

		w, err := inventory.NewWatcher(s.cfg.Inventory)
		if err != nil {
			return err
		}
		if err := w.Start(); err != nil {
			return err
		}
		defer w.Stop()

		s.printer.Info("watching " + w.Path)
		s.inv.Follow(ctx, w.Changes, func(d inventory.Diff) {
			s.printer.SyncResult(inventory.Keys(d.Added), inventory.Keys(d.Changed), inventory.Keys(d.Removed))
		})
		return nil
	},
}

func init() {
	watchCmd.Flags().String("metrics-addr", "", "serve Prometheus metrics on this address")
	_ = viper.BindPFlag("metrics_addr", watchCmd.Flags().Lookup("metrics-addr"))
	rootCmd.AddCommand(watchCmd)
}
