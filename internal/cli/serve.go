package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/tabsession/internal/domain/restore"
	"github.com/GriffinCanCode/tabsession/internal/infrastructure/server"
)

const shutdownGrace = 5 * time.Second

func newServeCommand(opts *rootOptions) *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Restore the profile and serve the debug endpoints",
		Long: `Restore the saved tabs of the profile, then serve /healthz, /metrics and
the /v1 debug endpoints until interrupted. Pending writes are flushed
before exit.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			eng, err := opts.openEngine(false)
			if err != nil {
				return err
			}
			if addr != "" {
				eng.Config().Debug.Addr = addr
			}
			logger := eng.Logger()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			sink := &restore.Collector{}
			selected, err := eng.Restore(ctx, sink)
			if err != nil {
				logger.Warn("Restoration failed", zap.Error(err))
			}
			fields := []zap.Field{zap.Int("tabs", len(sink.Placeholders()))}
			if selected != nil {
				fields = append(fields, zap.String("selected", selected.ID()))
			}
			logger.Info("Restored saved tabs", fields...)

			runErr := server.New(eng).Run(ctx)

			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
			defer cancel()
			if err := eng.Shutdown(shutdownCtx); err != nil && runErr == nil {
				runErr = err
			}
			return runErr
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (overrides TABSESSION_DEBUG_ADDR)")
	return cmd
}
