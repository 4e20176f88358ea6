package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rvald/veloguard/internal/config"
	"github.com/rvald/veloguard/internal/gateway"
	"github.com/rvald/veloguard/internal/listener"
	"github.com/rvald/veloguard/internal/logger"
	"github.com/rvald/veloguard/internal/ratelimit"
	"github.com/rvald/veloguard/internal/token"
)

const tickInterval = 15 * time.Second

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Start the verification gateway",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := logger.Setup(cfgStateDir, cfg.LogLevel); err != nil {
			return err
		}
		return runServer(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serverCmd)
}

func runServer(cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// 1. Tokens
	store := token.NewStore(nil)
	reloader := config.NewReloader(configPath(), cfg, store, slog.Default())
	if _, err := reloader.Reload(); err != nil {
		return fmt.Errorf("load tokens: %w", err)
	}
	cfg = reloader.Current()

	// 2. Listener
	limiter := ratelimit.New(cfg.LogRateLimit.Limit, cfg.LogRateLimit.Interval)
	l := listener.New(store, listener.Config{
		Messages:        cfg.Messages,
		Verbose:         cfg.Verbose,
		ExtraProtection: cfg.ExtraProtection,
		Limiter:         limiter,
		Recorder:        gateway.Recorder{},
	})

	// 3. Gateway
	authMode := "none"
	if cfg.Gateway.AuthToken != "" {
		authMode = "token"
	}
	gw, err := gateway.New(gateway.GatewayConfig{
		Server: gateway.ServerConfig{
			Port:         cfg.Gateway.Port,
			Bind:         cfg.Gateway.Bind,
			Auth:         gateway.AuthConfig{Mode: authMode, Token: cfg.Gateway.AuthToken},
			Version:      version,
			TickInterval: tickInterval,
			SessionTTL:   cfg.Gateway.SessionTTL,
			RateLimit:    cfg.Gateway.RateLimit,
			RateBurst:    cfg.Gateway.RateBurst,
			Reload:       reloader.Reload,
		},
		Listener: l,
	})
	if err != nil {
		return fmt.Errorf("gateway init: %w", err)
	}
	gateway.ActiveTokens.Set(float64(store.Len()))

	reloader.OnReload(reloadHook(l, limiter, gw.TokensReloaded))

	printBanner(cfg, authMode, store.Len())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return gw.Run(gctx) })
	g.Go(func() error { return reloader.Run(gctx, cfg.TokenPollInterval) })
	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutting down...")
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := gw.Shutdown(shutdownCtx); err != nil {
			slog.Warn("gateway shutdown", "error", err)
		}
		return nil
	})

	return g.Wait()
}

// reloadHook applies the reloadable listener settings and then reports
// the new token count.
func reloadHook(l *listener.Listener, limiter *ratelimit.Limiter, tokensReloaded func(int)) config.ReloadFunc {
	return func(next config.Config, n int) {
		l.SetMessages(next.Messages)
		l.SetVerbose(next.Verbose)
		l.SetExtraProtection(next.ExtraProtection)
		limiter.SetLimits(next.LogRateLimit.Limit, next.LogRateLimit.Interval)
		tokensReloaded(n)
	}
}

func printBanner(cfg config.Config, authMode string, tokens int) {
	bindAddr := "127.0.0.1"
	if cfg.Gateway.Bind == "lan" {
		bindAddr = "0.0.0.0"
	}

	fmt.Printf("\n")
	fmt.Printf("  veloguard v%s\n", version)
	fmt.Printf("  ws://%s:%d/ws  auth=%s  bind=%s\n", bindAddr, cfg.Gateway.Port, authMode, cfg.Gateway.Bind)
	fmt.Printf("  tokens: %d  extra-protection: %t  verbose: %t\n", tokens, cfg.ExtraProtection, cfg.Verbose)
	fmt.Printf("  config: %s\n", configPath())
	fmt.Printf("  health: http://%s:%d/health\n", bindAddr, cfg.Gateway.Port)
	fmt.Printf("\n")
}
