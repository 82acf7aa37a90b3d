// Package main is the entry point for the app events bridge.
// It hosts the vendor app-events plugin behind the script bridge transports.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/zlc_ai/appevents-bridge/internal/bridge"
	"github.com/zlc_ai/appevents-bridge/internal/config"
	"github.com/zlc_ai/appevents-bridge/internal/host"
	"github.com/zlc_ai/appevents-bridge/internal/plugin"
	"github.com/zlc_ai/appevents-bridge/internal/sdk"
	"github.com/zlc_ai/appevents-bridge/internal/transport"
)

var (
	version   = "0.1.0"
	buildTime = "unknown"
)

func main() {
	// Parse flags
	configPath := flag.String("config", "config.yaml", "Path to configuration file")
	showVersion := flag.Bool("version", false, "Show version information")
	flag.Parse()

	if *showVersion {
		fmt.Printf("App Events Bridge v%s (built %s)\n", version, buildTime)
		os.Exit(0)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Observability)
	defer logger.Sync()

	logger.Info("Starting App Events Bridge",
		zap.String("version", version),
		zap.String("config", *configPath))

	if err := run(cfg, logger); err != nil {
		logger.Fatal("Bridge exited with error", zap.Error(err))
	}
	logger.Info("App Events Bridge stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := host.MustNewMetrics(registry)

	surface := host.NewSurface(cfg.WebView.ID, cfg.WebView.Ready)
	rt := host.New(host.Config{
		WorkerCount: cfg.Host.WorkerCount,
		QueueSize:   cfg.Host.QueueSize,
	}, host.Environment{
		Application: host.NewApplication(cfg.Host.PackageName, cfg.Host.ApplicationID),
		Resources:   host.NewMapResources(cfg.Resources),
		WebView:     surface,
		Metrics:     metrics,
	}, logger.Named("host"))

	if cfg.Plugins.FacebookConnect.Enabled {
		if err := registerPlugin(rt, bridge.ServiceName, plugin.Options{
			SDK:    sdk.NewConsoleSDK(logger),
			Logger: logger,
		}); err != nil {
			return err
		}
	}

	if err := rt.Start(ctx); err != nil {
		return fmt.Errorf("failed to start host runtime: %w", err)
	}

	wsServer := transport.NewWebSocketServer(logger.Named("ws"))
	pollingServer := transport.NewPollingServer(logger.Named("poll"))
	for _, t := range []transport.Transport{wsServer, pollingServer} {
		t.SetHandler(rt.Exec)
		if err := t.Start(ctx); err != nil {
			return fmt.Errorf("failed to start transport: %w", err)
		}
	}

	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"healthy","version":"` + version + `"}`))
	})

	mux.Handle(cfg.Transport.WebSocketPath, wsServer.HTTPHandler())
	mux.Handle(cfg.Transport.ExecPath, pollingServer.ExecHandler())
	mux.Handle(cfg.Transport.PollPath, pollingServer.PollHandler())
	mux.Handle("/api/v1/native/lifecycle", lifecycleHandler(rt, logger))
	mux.Handle("/api/v1/native/activity-result", activityResultHandler(rt, logger))
	mux.Handle("/api/v1/native/webview", webViewHandler(surface))
	mux.Handle(cfg.Observability.MetricsPath, promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/api/v1/info", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"name":     "App Events Bridge",
			"version":  version,
			"services": rt.Services(),
			"application": map[string]string{
				"packageName":   cfg.Host.PackageName,
				"applicationId": cfg.Host.ApplicationID,
			},
			"endpoints": map[string]string{
				"websocket":      cfg.Transport.WebSocketPath,
				"exec":           cfg.Transport.ExecPath,
				"poll":           cfg.Transport.PollPath,
				"lifecycle":      "/api/v1/native/lifecycle",
				"activityResult": "/api/v1/native/activity-result",
				"webview":        "/api/v1/native/webview",
				"metrics":        cfg.Observability.MetricsPath,
				"health":         "/health",
			},
			"transports": map[string]interface{}{
				"websocket": map[string]interface{}{
					"connections": wsServer.ConnectionCount(),
				},
				"polling": map[string]interface{}{
					"queueSize": pollingServer.QueueSize(),
				},
			},
		})
	})

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.HTTPPort),
		Handler:      mux,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("HTTP server starting", zap.Int("port", cfg.Server.HTTPPort))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutdown signal received")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()

		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP server shutdown error", zap.Error(err))
		}
		if err := wsServer.Stop(shutdownCtx); err != nil {
			logger.Error("WebSocket bridge shutdown error", zap.Error(err))
		}
		if err := pollingServer.Stop(shutdownCtx); err != nil {
			logger.Error("Polling bridge shutdown error", zap.Error(err))
		}
		if err := rt.Stop(shutdownCtx); err != nil {
			logger.Error("Host runtime shutdown error", zap.Error(err))
		}
		return nil
	})

	return g.Wait()
}

func registerPlugin(rt *host.Runtime, service string, opts plugin.Options) error {
	factory, ok := plugin.Lookup(service)
	if !ok {
		return fmt.Errorf("no plugin registered for service %s", service)
	}
	p, err := factory(opts)
	if err != nil {
		return fmt.Errorf("failed to create plugin %s: %w", service, err)
	}
	return rt.RegisterPlugin(p)
}

func initLogger(cfg config.ObservabilityConfig) *zap.Logger {
	var zapLevel zapcore.Level
	switch cfg.LogLevel {
	case "debug":
		zapLevel = zapcore.DebugLevel
	case "info":
		zapLevel = zapcore.InfoLevel
	case "warn":
		zapLevel = zapcore.WarnLevel
	case "error":
		zapLevel = zapcore.ErrorLevel
	default:
		zapLevel = zapcore.InfoLevel
	}

	encoderConfig := zapcore.EncoderConfig{
		TimeKey:        "ts",
		LevelKey:       "level",
		NameKey:        "logger",
		CallerKey:      "caller",
		FunctionKey:    zapcore.OmitKey,
		MessageKey:     "msg",
		StacktraceKey:  "stacktrace",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeLevel:    zapcore.LowercaseLevelEncoder,
		EncodeTime:     zapcore.ISO8601TimeEncoder,
		EncodeDuration: zapcore.StringDurationEncoder,
		EncodeCaller:   zapcore.ShortCallerEncoder,
	}

	level := zap.NewAtomicLevelAt(zapLevel)
	cores := []zapcore.Core{
		zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.Lock(os.Stdout), level),
	}

	if cfg.LogFile.Path != "" {
		rotator := &lumberjack.Logger{
			Filename:   cfg.LogFile.Path,
			MaxSize:    cfg.LogFile.MaxSizeMB,
			MaxBackups: cfg.LogFile.MaxBackups,
			MaxAge:     cfg.LogFile.MaxAgeDays,
			Compress:   cfg.LogFile.Compress,
		}
		cores = append(cores, zapcore.NewCore(zapcore.NewJSONEncoder(encoderConfig), zapcore.AddSync(rotator), level))
	}

	return zap.New(zapcore.NewTee(cores...),
		zap.AddCaller(),
		zap.ErrorOutput(zapcore.Lock(os.Stderr)))
}
