package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/alekspetrov/ideabot/internal/adapters/telegram"
	"github.com/alekspetrov/ideabot/internal/banner"
	"github.com/alekspetrov/ideabot/internal/config"
	"github.com/alekspetrov/ideabot/internal/logging"
)

func newStartCmd() *cobra.Command {
	var (
		mode      string
		noGateway bool
	)

	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start the bot",
		Long: `Start ideabot: receive Telegram updates, capture ideas and serve the gateway.

Polling is the default. With --mode webhook the gateway receives updates on
/webhooks/telegram and telegram.webhook_url must point at it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}

			if mode != "" {
				cfg.Telegram.Mode = mode
			}
			if noGateway && cfg.Telegram.Mode != telegram.ModeWebhook {
				cfg.Gateway.Enabled = false
			}

			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid config: %w", err)
			}
			if err := logging.Init(cfg.Logging); err != nil {
				return fmt.Errorf("failed to initialize logging: %w", err)
			}

			ctx, cancel := context.WithCancel(context.Background())
			defer cancel()

			// Handle Ctrl+C
			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)
			go func() {
				select {
				case <-sigCh:
					fmt.Println("\n🛑 Shutting down...")
					cancel()
				case <-ctx.Done():
				}
			}()

			return runStart(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "", "Update delivery: polling or webhook (overrides config)")
	cmd.Flags().BoolVar(&noGateway, "no-gateway", false, "Do not start the HTTP gateway (ignored in webhook mode)")

	return cmd
}

// runStart runs the bot until ctx is cancelled or the gateway fails.
func runStart(ctx context.Context, cfg *config.Config) error {
	log := logging.WithComponent("start")

	a, err := newApp(cfg, "")
	if err != nil {
		return err
	}
	defer a.close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	errCh := make(chan error, 1)
	if a.gateway != nil {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.gateway.Start(ctx); err != nil {
				errCh <- fmt.Errorf("gateway: %w", err)
			}
		}()
	}
	// Stop order: transport and scheduler first, then the gateway, then the store.
	defer wg.Wait()
	defer cancel()

	switch cfg.Telegram.Mode {
	case telegram.ModeWebhook:
		if err := a.client.SetWebhook(ctx, cfg.Telegram.WebhookURL, cfg.Telegram.WebhookSecret); err != nil {
			return fmt.Errorf("failed to register webhook: %w", err)
		}
		a.transport.StartWebhook(ctx)
	default:
		// A leftover webhook makes getUpdates fail with 409
		if err := a.client.DeleteWebhook(ctx); err != nil {
			log.Warn("failed to delete webhook", slog.Any("error", err))
		}
		if err := a.client.CheckSingleton(ctx); err != nil {
			if errors.Is(err, telegram.ErrConflict) {
				return fmt.Errorf("another ideabot instance is already polling with this bot token")
			}
			return fmt.Errorf("failed to reach Telegram: %w", err)
		}
		a.transport.StartPolling(ctx)
	}
	defer a.transport.Stop()

	if err := a.scheduler.Start(ctx); err != nil {
		log.Warn("digest scheduler not started", slog.Any("error", err))
	}
	defer a.scheduler.Stop()

	fields := []banner.Field{
		{Label: "Mode", Value: modeLabel(cfg.Telegram.Mode)},
		{Label: "Providers", Value: fmt.Sprint(a.chain.Providers())},
		{Label: "Store", Value: storeLabel(cfg)},
	}
	if a.gateway != nil {
		fields = append(fields, banner.Field{Label: "Gateway", Value: "http://" + cfg.Gateway.Addr()})
	}
	if next := a.scheduler.NextRun(); !next.IsZero() {
		fields = append(fields, banner.Field{Label: "Next digest", Value: next.Format("Mon Jan 2 15:04 MST")})
	}
	banner.Startup(os.Stdout, version, fields...)

	log.Info("ideabot started", slog.String("mode", modeLabel(cfg.Telegram.Mode)))

	select {
	case <-ctx.Done():
		log.Info("shutdown requested")
		return nil
	case err := <-errCh:
		return err
	}
}

func modeLabel(mode string) string {
	if mode == "" {
		return telegram.ModePolling
	}
	return mode
}

func storeLabel(cfg *config.Config) string {
	if cfg.Store.Driver == "postgres" {
		return "postgres"
	}
	return "sqlite (" + cfg.Store.Path + ")"
}
