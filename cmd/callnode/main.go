// Command callnode runs the calling engine against a host application
// reachable over a websocket link. The host relays signaling between users
// and drives calls with command frames; callnode owns the WebRTC sessions.
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/opd-ai/callcore"
	"github.com/opd-ai/callcore/bridge"
	"github.com/opd-ai/callcore/config"
	"github.com/opd-ai/callcore/media"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	configPath := flag.String("config", "", "path to a TOML configuration file")
	envFile := flag.String("env", ".env", "dotenv file loaded before the configuration")
	flag.Parse()

	if err := godotenv.Load(*envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
		logrus.WithError(err).Fatal("Failed to load env file")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to load configuration")
	}
	if err := cfg.ConfigureLogging(); err != nil {
		logrus.WithError(err).Fatal("Failed to configure logging")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logrus.WithError(err).Fatal("callnode stopped")
	}
	logrus.Info("callnode stopped")
}

var errHostClosed = errors.New("host closed the link")

func run(ctx context.Context, cfg *config.Config) error {
	engine, err := media.NewEngine(media.Config{
		ICEServers:       cfg.Media.ICEServers,
		MaxBitrateBps:    cfg.Media.MaxBitrateBps,
		VideoIdleTimeout: cfg.Media.VideoIdleTimeout.Std(),
	})
	if err != nil {
		return err
	}
	defer engine.Close()

	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	adapter, err := bridge.Dial(dialCtx, cfg.Bridge.URL, engine, &http.Client{Timeout: cfg.Bridge.HTTPTimeout.Std()})
	cancel()
	if err != nil {
		return err
	}
	adapter.SetDefaultRelayURL(cfg.Group.RelayURL)

	var reg prometheus.Registerer
	if cfg.Metrics.Enabled {
		reg = prometheus.DefaultRegisterer
	}
	mgr, err := callcore.NewManager(cfg, adapter, reg)
	if err != nil {
		_ = adapter.Close()
		return err
	}
	defer mgr.Close()
	adapter.Bind(mgr)
	engine.Attach(mgr)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return mgr.Run(gctx) })
	g.Go(func() error {
		if err := adapter.Run(gctx); err != nil {
			return err
		}
		if gctx.Err() == nil {
			return errHostClosed
		}
		return nil
	})
	if cfg.Metrics.Enabled {
		srv := &http.Server{Addr: cfg.Metrics.Listen, Handler: metricsMux(), ReadHeaderTimeout: 5 * time.Second}
		g.Go(func() error {
			logrus.WithFields(logrus.Fields{
				"function": "run",
				"listen":   cfg.Metrics.Listen,
			}).Info("Serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func metricsMux() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	return mux
}
