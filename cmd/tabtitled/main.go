package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dgnsrekt/tabtitle/internal/api"
	"github.com/dgnsrekt/tabtitle/internal/browser"
	"github.com/dgnsrekt/tabtitle/internal/bus"
	"github.com/dgnsrekt/tabtitle/internal/cdptab"
	"github.com/dgnsrekt/tabtitle/internal/config"
	"github.com/dgnsrekt/tabtitle/internal/controller"
	"github.com/dgnsrekt/tabtitle/internal/feed"
	"github.com/dgnsrekt/tabtitle/internal/netutil"
	"github.com/dgnsrekt/tabtitle/internal/shell"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	if err := setupLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		if _, writeErr := io.WriteString(os.Stderr, "logger setup failed: "+err.Error()+"\n"); writeErr != nil {
			slog.Debug("logger setup stderr write failed", "error", writeErr)
		}
		os.Exit(1)
	}

	slog.Info("tabtitled config loaded",
		"cdp_url", cfg.CDPURL(),
		"bind_addr", cfg.BindAddr,
		"port_auto_fallback", cfg.PortAutoFallback,
		"port_candidates", cfg.PortCandidates,
		"tab_url_filter", cfg.TabURLFilter,
		"rules_file", cfg.RulesFile,
		"legacy_variables", cfg.LegacyVariables,
		"bus_url", cfg.BusURL,
		"log_level", cfg.LogLevel,
		"log_file", cfg.LogFile,
	)

	if err := run(cfg); err != nil {
		slog.Error("tabtitled failed", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rules, err := cfg.ResolveRules()
	if err != nil {
		return err
	}
	legacy, err := shell.ParseLegacyPolicy(cfg.LegacyVariables)
	if err != nil {
		return err
	}

	bindAddr, err := netutil.SelectBindAddr(cfg.BindAddr, cfg.PortCandidates, cfg.PortAutoFallback)
	if err != nil {
		slog.Error("failed to select bind address", "preferred", cfg.BindAddr, "error", err)
		return err
	}

	if cfg.LaunchBrowser {
		launcher := browser.NewLauncher(browser.Config{
			CDPAddress: cfg.CDPAddress,
			CDPPort:    cfg.CDPPort,
			StartURL:   cfg.StartURL,
			ProfileDir: cfg.ProfileDir,
		})
		if err := launcher.Launch(ctx); err != nil {
			return err
		}
		defer launcher.Stop()
	}

	hub := bus.NewHub()
	broker := feed.NewBroker()

	client := cdptab.NewClient(cdptab.Options{
		CDPURL:        cfg.CDPURL(),
		Rules:         rules,
		SyncInterval:  cfg.SyncInterval(),
		EvalTimeout:   cfg.EvalTimeout(),
		PromptTimeout: cfg.PromptTimeout(),
		LegacyPolicy:  legacy,
		JoinBus:       joinFunc(hub, cfg.BusURL),
		Events:        broker,
	}, cdptab.NewRegistry())
	if err := client.Connect(ctx); err != nil {
		slog.Error("failed to connect CDP client", "cdp_url", cfg.CDPURL(), "error", err)
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			slog.Debug("CDP client close failed", "error", err)
		}
	}()

	svc := controller.NewService(client)
	h := api.NewServer(svc, api.Streams{
		Events: feed.SSEHandler(broker),
		Bus:    hub.Handler(),
	})
	srv := &http.Server{Addr: bindAddr, Handler: h, ReadHeaderTimeout: 10 * time.Second}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		slog.Info("tabtitled listening", "addr", bindAddr, "docs", "http://"+bindAddr+"/docs", "tabs", client.GetTabCount())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		return client.Run(gctx)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			slog.Error("tabtitled shutdown failed", "error", err)
		}
		return nil
	})
	return g.Wait()
}

// joinFunc connects each shell to the local hub, or to a remote bus when
// busURL is set.
func joinFunc(hub *bus.Hub, busURL string) cdptab.JoinFunc {
	if busURL == "" {
		return func(context.Context) (cdptab.Endpoint, error) {
			return hub.Join(), nil
		}
	}
	return func(ctx context.Context) (cdptab.Endpoint, error) {
		dialCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		ep, err := bus.Dial(dialCtx, busURL)
		if err != nil {
			return nil, err
		}
		return ep, nil
	}
}

func setupLogger(level, filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return err
	}

	logWriter := &lumberjack.Logger{
		Filename:   filename,
		MaxSize:    25,
		MaxBackups: 10,
		MaxAge:     14,
		Compress:   true,
	}

	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	h := slog.NewTextHandler(io.MultiWriter(os.Stdout, logWriter), &slog.HandlerOptions{Level: slogLevel})
	slog.SetDefault(slog.New(h))
	return nil
}
