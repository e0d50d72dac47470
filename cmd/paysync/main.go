// paysyncは保留中の決済をゲートウェイへ問い合わせて反映する運用CLI
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"florist/internal/bootstrap"
	"florist/internal/config"
	"florist/internal/logger"
	"florist/internal/usecase"
)

// コマンドが使う同期処理。実体は *usecase.SyncCoordinator
type syncRunner interface {
	SyncPending(ctx context.Context) (usecase.BatchResult, error)
	SyncOne(ctx context.Context, orderID string) (usecase.ReconcileResult, error)
	SetInterval(d time.Duration) error
	Interval() time.Duration
	Start(ctx context.Context)
	Stop()
}

// 依存関係を組み立てて後始末と一緒に返す
type openFunc func(ctx context.Context, cmd *cobra.Command) (syncRunner, func(), error)

func main() {
	if err := newRootCmd(openApp).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(open openFunc) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "paysync",
		Short:         "Reconcile pending order payments with the gateway",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String("env-file", "", ".env file to load before reading the environment")

	rootCmd.AddCommand(pendingCmd(open))
	rootCmd.AddCommand(orderCmd(open))
	rootCmd.AddCommand(watchCmd(open))
	return rootCmd
}

func pendingCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "pending",
		Short: "Run one bounded sync batch over pending orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, open, func(ctx context.Context, s syncRunner) error {
				res, err := s.SyncPending(ctx)
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
}

func orderCmd(open openFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "order [order-id]",
		Short: "Sync a single order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRunner(cmd, open, func(ctx context.Context, s syncRunner) error {
				res, err := s.SyncOne(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd, res)
			})
		},
	}
}

func watchCmd(open openFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Run the periodic sync loop until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			interval, _ := cmd.Flags().GetDuration("interval")
			return withRunner(cmd, open, func(ctx context.Context, s syncRunner) error {
				if interval > 0 {
					if err := s.SetInterval(interval); err != nil {
						return err
					}
				}
				s.Start(context.WithoutCancel(ctx))
				fmt.Fprintf(cmd.ErrOrStderr(), "watching pending payments every %s\n", s.Interval())
				<-ctx.Done()
				s.Stop()
				return nil
			})
		},
	}
	cmd.Flags().Duration("interval", 0, "Sync interval (10s-300s); defaults to PAYMENT_SYNC_INTERVAL")
	return cmd
}

// シグナルで止まるctxを作ってから依存関係を開く
func withRunner(cmd *cobra.Command, open openFunc, run func(ctx context.Context, s syncRunner) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, closeFn, err := open(ctx, cmd)
	if err != nil {
		return err
	}
	defer closeFn()
	return run(ctx, s)
}

// 本番用: 設定とロガーを読んでbootstrapする
func openApp(ctx context.Context, cmd *cobra.Command) (syncRunner, func(), error) {
	if envFile, _ := cmd.Flags().GetString("env-file"); envFile != "" {
		config.LoadDotenv(envFile)
	} else {
		config.LoadDotenv()
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("config: %w", err)
	}
	zl, err := logger.New(cfg.IsDev(), cfg.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("logger: %w", err)
	}

	app, err := bootstrap.Build(ctx, cfg, zl)
	if err != nil {
		_ = zl.Sync()
		return nil, nil, err
	}
	start := time.Now()
	return app.Sync, func() {
		app.Close()
		zl.Debug("paysync done", zap.String("command", cmd.Name()), zap.Duration("took", time.Since(start)))
		_ = zl.Sync()
	}, nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
