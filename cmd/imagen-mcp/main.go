// Command imagen-mcp serves Google Imagen image generation as MCP tools over stdio.
//
// Generated images are written to the configured output directory. Logs go to
// stderr; stdout carries only protocol messages.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	imagegen "github.com/mhpenta/imagen-mcp"
	"github.com/mhpenta/imagen-mcp/config"
	"github.com/mhpenta/imagen-mcp/internal/metrics"
	"github.com/mhpenta/imagen-mcp/mcp"
	"github.com/mhpenta/imagen-mcp/provider/imagen"
)

// Set at build time with -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr); err != nil {
		fmt.Fprintf(os.Stderr, "imagen-mcp: %v\n", err)
		os.Exit(1)
	}
}

type flagValues struct {
	configPath  string
	envFile     string
	showVersion bool

	apiKey             string
	model              string
	batch              bool
	noBatch            bool
	maxBatchSize       int
	outputDir          string
	recordBatchHistory bool
	logLevel           string
	logFormat          string
	metricsAddr        string
}

func newFlagSet(stderr io.Writer) (*flag.FlagSet, *flagValues) {
	v := &flagValues{}
	fs := flag.NewFlagSet("imagen-mcp", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&v.configPath, "config", "", "Path to a YAML config file")
	fs.StringVar(&v.envFile, "env-file", ".env", "Path to a .env file (ignored if missing)")
	fs.BoolVar(&v.showVersion, "version", false, "Print version and exit")

	fs.StringVar(&v.apiKey, "api-key", "", "Gemini API key (prefer IMAGEN_API_KEY or GEMINI_API_KEY)")
	fs.StringVar(&v.model, "model", "", "Default Imagen model")
	fs.BoolVar(&v.batch, "batch", true, "Enable batch_generate")
	fs.BoolVar(&v.noBatch, "no-batch", false, "Disable batch_generate")
	fs.IntVar(&v.maxBatchSize, "max-batch-size", 0, "Concurrent requests per batch chunk (1-8)")
	fs.StringVar(&v.outputDir, "output-dir", "", "Directory generated images are written to")
	fs.BoolVar(&v.recordBatchHistory, "record-batch-history", false, "Record batch generations in history")
	fs.StringVar(&v.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	fs.StringVar(&v.logFormat, "log-format", "", "Log format: json or console")
	fs.StringVar(&v.metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address")

	return fs, v
}

// applyFlags overrides cfg with the flags that were set explicitly.
func applyFlags(cfg *config.Config, fs *flag.FlagSet, v *flagValues) {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "api-key":
			cfg.APIKey = v.apiKey
		case "model":
			cfg.DefaultModel = v.model
		case "batch":
			cfg.BatchEnabled = v.batch
		case "max-batch-size":
			cfg.MaxBatchSize = v.maxBatchSize
		case "output-dir":
			cfg.OutputDir = v.outputDir
		case "record-batch-history":
			cfg.RecordBatchHistory = v.recordBatchHistory
		case "log-level":
			cfg.Log.Level = v.logLevel
		case "log-format":
			cfg.Log.Format = v.logFormat
		case "metrics-addr":
			cfg.Metrics.Addr = v.metricsAddr
		}
	})
	if v.noBatch {
		cfg.BatchEnabled = false
	}
}

func loadConfig(args []string, stderr io.Writer) (*config.Config, *flagValues, error) {
	fs, v := newFlagSet(stderr)
	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}
	if v.showVersion {
		return nil, v, nil
	}

	cfg, err := config.NewLoader().
		WithConfigPath(v.configPath).
		WithDotEnv(v.envFile).
		Load()
	if err != nil {
		return nil, nil, err
	}

	applyFlags(cfg, fs, v)
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, v, nil
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	cfg, v, err := loadConfig(args, stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return nil
		}
		return err
	}
	if v.showVersion {
		fmt.Fprintf(stdout, "imagen-mcp %s (%s)\n", Version, GitCommit)
		return nil
	}

	logger, err := initLogger(cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting imagen-mcp",
		zap.String("version", Version),
		zap.String("git_commit", GitCommit),
		zap.String("default_model", cfg.DefaultModel),
		zap.Bool("batch_enabled", cfg.BatchEnabled),
		zap.Int("max_batch_size", cfg.MaxBatchSize),
		zap.String("output_dir", cfg.OutputDir),
	)

	collector := metrics.NewCollector("imagen", logger)
	if cfg.Metrics.Addr != "" {
		shutdown := serveMetrics(cfg.Metrics.Addr, collector, logger)
		defer shutdown()
	}

	client, err := imagen.New(cfg.APIKey,
		imagen.WithBaseURL(cfg.BaseURL),
		imagen.WithAPIVersion(cfg.APIVersion),
		imagen.WithHTTPClient(&http.Client{Timeout: cfg.HTTPTimeout}),
		imagen.WithRateLimiters(imagen.DefaultLimiters(cfg.RequestsPerMinute), cfg.MaxRateLimitWait),
		imagen.WithLogger(logger),
		imagen.WithMetrics(collector),
	)
	if err != nil {
		return err
	}

	managerOpts := []imagegen.ManagerOption{
		imagegen.WithLogger(logger),
		imagegen.WithMetrics(collector),
	}
	prober, err := imagen.NewProber(ctx, imagen.ProberConfig{
		APIKey:     cfg.APIKey,
		BaseURL:    cfg.BaseURL,
		APIVersion: cfg.APIVersion,
	})
	if err != nil {
		logger.Warn("health probe unavailable", zap.Error(err))
	} else {
		managerOpts = append(managerOpts, imagegen.WithProber(prober))
	}

	manager := imagegen.NewManager(client, cfg.Settings(), managerOpts...)

	server := mcp.NewServer(mcp.ServerInfo{Name: "imagen-mcp", Version: Version},
		mcp.WithServerLogger(logger),
		mcp.WithServerMetrics(collector),
	)
	if err := mcp.RegisterTools(server, manager); err != nil {
		return fmt.Errorf("register tools: %w", err)
	}

	return server.Serve(ctx, mcp.NewStdioTransport(stdin, stdout))
}

func serveMetrics(addr string, collector *metrics.Collector, logger *zap.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("metrics server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("metrics server shutdown failed", zap.Error(err))
		}
	}
}

// initLogger builds a zap logger writing to stderr.
func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	encoding := "json"
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoding = "console"
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	return zapConfig.Build(zap.AddCaller())
}
