// feedtap connects to the live feed and prints decoded events to stdout.
// Usage: go run ./cmd/feedtap --config configs/feedtap.example.yaml
//
// Optional sinks (enabled in config):
//
//	recorder - batch inserts events into Postgres (feed_events table)
//	relay    - republishes events to NATS under <prefix>.<symbol>
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rickgao/livefeed/internal/config"
	"github.com/rickgao/livefeed/internal/connection"
	"github.com/rickgao/livefeed/internal/database"
	"github.com/rickgao/livefeed/internal/logging"
	"github.com/rickgao/livefeed/internal/reconnect"
	"github.com/rickgao/livefeed/internal/recorder"
	"github.com/rickgao/livefeed/internal/relay"
	"github.com/rickgao/livefeed/internal/subscriber"
	"github.com/rickgao/livefeed/internal/version"
)

var errFeedExhausted = errors.New("feed unavailable: reconnect attempts exhausted")

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to config file (defaults are used when empty)")
	verbose := flag.Bool("verbose", false, "print full message JSON")
	healthAddr := flag.String("health", "", "address for the health endpoint, e.g. :8080 (disabled when empty)")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println(version.String())
		return 0
	}

	cfg, err := loadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		return 1
	}

	logger, err := logging.New(cfg.Log, os.Stderr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to configure logging: %v\n", err)
		return 1
	}
	slog.SetDefault(logger)

	logger.Info("starting feedtap",
		"version", version.Get().Version,
		"commit", version.Get().Commit,
		"url", cfg.Feed.URL,
		"max_reconnect_attempts", cfg.Feed.Attempts(),
		"reconnect_delay", cfg.Feed.ReconnectDelay,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	exhausted := make(chan int, 1)
	mgr := connection.NewManager(managerConfig(cfg.Feed),
		connection.WithLogger(logger),
		connection.WithOnStateChange(func(from, to connection.State) {
			logger.Debug("connection state changed", "from", from, "to", to)
		}),
		connection.WithOnExhausted(func(attempts int) {
			select {
			case exhausted <- attempts:
			default:
			}
		}),
	)
	defer mgr.Close()

	if err := subscribe(mgr, "printer", newPrinter(os.Stdout, *verbose)); err != nil {
		logger.Error("failed to subscribe", "error", err)
		return 1
	}

	// Recorder
	var rec *recorder.Recorder
	if cfg.Recorder.Enabled {
		logger.Info("connecting to database",
			"host", cfg.Database.Host,
			"port", cfg.Database.Port,
			"database", cfg.Database.Name,
		)
		pool, err := database.Connect(ctx, cfg.Database)
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			return 1
		}
		defer pool.Close()

		if err := recorder.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to create schema", "error", err)
			return 1
		}

		rec = recorder.New(recorder.FromConfig(cfg.Recorder), pool, logger)
		if err := rec.Start(ctx); err != nil {
			logger.Error("failed to start recorder", "error", err)
			return 1
		}
		defer func() {
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			if err := rec.Stop(shutdownCtx); err != nil {
				logger.Warn("recorder stop incomplete", "error", err)
			}
		}()
		if err := subscribe(mgr, "recorder", rec); err != nil {
			logger.Error("failed to subscribe", "error", err)
			return 1
		}
	}

	// Relay
	var rly *relay.Relay
	if cfg.Relay.Enabled {
		rly, err = relay.Connect(cfg.Relay, logger)
		if err != nil {
			logger.Error("failed to start relay", "error", err)
			return 1
		}
		defer func() {
			if err := rly.Close(); err != nil {
				logger.Warn("relay close failed", "error", err)
			}
		}()
		if err := subscribe(mgr, "relay", rly); err != nil {
			logger.Error("failed to subscribe", "error", err)
			return 1
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Returning nil does not cancel gctx, so stop everything explicitly.
		defer cancel()
		select {
		case sig := <-sigCh:
			logger.Info("received shutdown signal", "signal", sig)
			return nil
		case attempts := <-exhausted:
			fmt.Fprintf(os.Stderr, "feed unavailable after %d reconnect attempts; giving up\n", attempts)
			return errFeedExhausted
		case <-gctx.Done():
			return nil
		}
	})

	if *healthAddr != "" {
		srv := &http.Server{
			Addr:              *healthAddr,
			Handler:           newHealthHandler(mgr, rec, rly),
			ReadHeaderTimeout: 5 * time.Second,
		}
		g.Go(func() error {
			logger.Info("starting health server", "addr", *healthAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	// Stats printer
	g.Go(func() error {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				s := mgr.Stats()
				logger.Info("feed stats",
					"state", s.State,
					"frames", s.Frames,
					"events", s.Events,
					"decode_failures", s.DecodeFailures,
					"opens", s.Opens,
					"closures", s.Closures,
				)
			}
		}
	})

	if err := mgr.Connect(); err != nil {
		logger.Error("failed to connect", "error", err)
		return 1
	}

	err = g.Wait()

	logger.Info("shutting down...")
	mgr.Close()

	if err != nil {
		logger.Error("feedtap stopped", "error", err)
		return 1
	}
	logger.Info("feedtap stopped")
	return 0
}

// subscribe registers a sink, naming it in the error.
func subscribe(mgr *connection.Manager, name string, l subscriber.Listener) error {
	if err := mgr.Subscribe(l); err != nil {
		return fmt.Errorf("subscribe %s: %w", name, err)
	}
	return nil
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return cfg, cfg.Validate()
	}
	return config.LoadAndValidate(path)
}

// managerConfig maps the feed section onto the connection manager.
func managerConfig(f config.FeedConfig) connection.Config {
	mc := connection.DefaultConfig()
	mc.Client.URL = f.URL
	if f.HandshakeTimeout > 0 {
		mc.Client.HandshakeTimeout = f.HandshakeTimeout
	}
	if f.PingInterval > 0 {
		mc.Client.PingInterval = f.PingInterval
	}
	if f.PingTimeout > 0 {
		mc.Client.PingTimeout = f.PingTimeout
	}
	if f.BufferSize > 0 {
		mc.Client.BufferSize = f.BufferSize
	}
	mc.Policy = reconnect.Policy{
		MaxAttempts: f.Attempts(),
		Delay:       f.ReconnectDelay,
	}
	mc.KeepReconnectOnDisconnect = f.KeepReconnectOnDisconnect
	return mc
}
