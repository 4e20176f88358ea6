package config

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/rvald/veloguard/internal/token"
)

// ReloadFunc is called after every successful reload with the new config
// and the number of active tokens.
type ReloadFunc func(cfg Config, tokens int)

// Reloader keeps a token.Store in sync with the config file and the token
// file. It reloads on SIGHUP, on demand, and when either file's
// modification time changes.
type Reloader struct {
	path   string
	store  *token.Store
	logger *slog.Logger

	mu       sync.Mutex
	current  Config
	mtimes   map[string]time.Time
	onReload []ReloadFunc
}

// NewReloader creates a reloader for the config at path, seeded with the
// already-loaded cfg. It does not touch store until the first reload.
func NewReloader(path string, cfg Config, store *token.Store, logger *slog.Logger) *Reloader {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Reloader{
		path:    path,
		store:   store,
		logger:  logger.With("component", "reload"),
		current: cfg,
		mtimes:  make(map[string]time.Time),
	}
	r.mtimes[path] = modTime(path)
	if tf := cfg.TokenFilePath(); tf != "" {
		r.mtimes[tf] = modTime(tf)
	}
	return r
}

// OnReload registers fn to run after each successful reload.
func (r *Reloader) OnReload(fn ReloadFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onReload = append(r.onReload, fn)
}

// Current returns the config from the last successful load.
func (r *Reloader) Current() Config {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current
}

// Reload re-reads the config and token file and swaps the token set. On
// error the previous tokens stay active.
func (r *Reloader) Reload() (int, error) {
	cfg, err := LoadOrDefault(r.path)
	if err != nil {
		return 0, err
	}
	if err := cfg.Validate(); err != nil {
		return 0, err
	}
	tokens, err := cfg.AllTokens()
	if err != nil {
		return 0, err
	}

	r.store.Reload(tokens)
	n := r.store.Len()
	if n == 0 {
		r.logger.Warn("no tokens configured, every forwarded connection will be denied")
	}

	r.mu.Lock()
	r.current = cfg
	r.mtimes = map[string]time.Time{r.path: modTime(r.path)}
	if tf := cfg.TokenFilePath(); tf != "" {
		r.mtimes[tf] = modTime(tf)
	}
	subs := append([]ReloadFunc(nil), r.onReload...)
	r.mu.Unlock()

	r.logger.Info("tokens reloaded", "count", n)
	for _, fn := range subs {
		fn(cfg, n)
	}
	return n, nil
}

// Run reloads on SIGHUP and polls file modification times every interval
// (zero disables polling). Blocks until ctx is cancelled.
func (r *Reloader) Run(ctx context.Context, interval time.Duration) error {
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)

	var tick <-chan time.Time
	if interval > 0 {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-hup:
			r.reloadAndLog("signal")
		case <-tick:
			if r.changed() {
				r.reloadAndLog("file change")
			}
		}
	}
}

func (r *Reloader) reloadAndLog(trigger string) {
	if _, err := r.Reload(); err != nil {
		r.logger.Error("reload failed, keeping previous tokens", "trigger", trigger, "error", err)
	}
}

func (r *Reloader) changed() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for path, prev := range r.mtimes {
		if !modTime(path).Equal(prev) {
			return true
		}
	}
	return false
}

func modTime(path string) time.Time {
	info, err := os.Stat(path)
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}
