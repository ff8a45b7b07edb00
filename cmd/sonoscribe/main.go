// Command sonoscribe is the websocket speech-to-text server for Konele
// mobile clients.
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

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/MrWong99/sonoscribe/internal/config"
	"github.com/MrWong99/sonoscribe/internal/health"
	"github.com/MrWong99/sonoscribe/internal/observe"
	"github.com/MrWong99/sonoscribe/internal/server"
	"github.com/MrWong99/sonoscribe/internal/transcript"
	"github.com/MrWong99/sonoscribe/internal/transcript/phonetic"
	"github.com/MrWong99/sonoscribe/pkg/recognizer"
	"github.com/MrWong99/sonoscribe/pkg/recognizer/failover"
	"github.com/MrWong99/sonoscribe/pkg/recognizer/whisper"
)

// version is overridden at build time via -ldflags "-X main.version=...".
var version = "dev"

func main() {
	os.Exit(run())
}

func run() int {
	// ── CLI flags ──────────────────────────────────────────────────────────────
	configPath := flag.String("config", "config.yaml", "path to the YAML configuration file")
	showVersion := flag.Bool("version", false, "print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("sonoscribe", version)
		return 0
	}

	// ── Load configuration ────────────────────────────────────────────────────
	cfg, err := config.Load(*configPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "sonoscribe: config file %q not found, copy configs/example.yaml to get started\n", *configPath)
		} else {
			fmt.Fprintf(os.Stderr, "sonoscribe: %v\n", err)
		}
		return 1
	}

	// ── Logger ────────────────────────────────────────────────────────────────
	logger := newLogger(cfg.Server.LogLevel)
	slog.SetDefault(logger)

	slog.Info("sonoscribe starting",
		"version", version,
		"config", *configPath,
		"listen_addr", listenAddr(cfg),
		"backend", cfg.Engine.Backend,
	)

	// ── Signal context ────────────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Telemetry ─────────────────────────────────────────────────────────────
	otelShutdown, err := observe.InitProvider(ctx, observe.ProviderConfig{
		ServiceName:    "sonoscribe",
		ServiceVersion: version,
	})
	if err != nil {
		slog.Error("failed to initialise telemetry", "err", err)
		return 1
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelShutdown(shutdownCtx); err != nil {
			slog.Warn("telemetry shutdown error", "err", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	// ── Recognition engine ────────────────────────────────────────────────────
	engine, engineClose, err := buildEngine(&cfg.Engine)
	if err != nil {
		slog.Error("failed to build recognition engine", "err", err)
		return 1
	}
	if engineClose != nil {
		defer func() {
			if err := engineClose(); err != nil {
				slog.Warn("engine close error", "err", err)
			}
		}()
	}
	slog.Info("engine ready", "backend", cfg.Engine.Backend, "model", cfg.Engine.Model)

	if cfg.FallbackEngine != nil {
		standby, standbyClose, err := buildEngine(cfg.FallbackEngine)
		if err != nil {
			slog.Error("failed to build fallback engine", "err", err)
			return 1
		}
		if standbyClose != nil {
			defer func() {
				if err := standbyClose(); err != nil {
					slog.Warn("fallback engine close error", "err", err)
				}
			}()
		}
		chain := failover.New()
		chain.Add(string(cfg.Engine.Backend), engine)
		chain.Add(string(cfg.FallbackEngine.Backend), standby)
		engine = chain
		slog.Info("fallback engine ready", "backend", cfg.FallbackEngine.Backend)
	}

	// ── Transcript sanitizer ──────────────────────────────────────────────────
	var sanitizerOpts []transcript.SanitizerOption
	if len(cfg.Vocabulary) > 0 {
		sanitizerOpts = append(sanitizerOpts, transcript.WithVocabulary(phonetic.New(cfg.Vocabulary)))
	}
	sanitizer, err := transcript.NewSanitizer(cfg.Corrections, sanitizerOpts...)
	if err != nil {
		slog.Error("failed to compile correction rules", "err", err)
		return 1
	}

	// ── HTTP routes ───────────────────────────────────────────────────────────
	speechOpts := []server.Option{
		server.WithSanitizer(sanitizer),
		server.WithMetrics(metrics),
	}
	if cfg.Server.MaxAudioBytes != 0 {
		speechOpts = append(speechOpts, server.WithMaxAudioBytes(cfg.Server.MaxAudioBytes))
	}
	speech := server.New(engine, speechOpts...)

	mux := http.NewServeMux()
	mux.Handle(server.SpeechPath, speech.Handler())
	mux.Handle("GET /metrics", promhttp.Handler())
	health.New(engineChecker(cfg)...).Register(mux)

	httpServer := &http.Server{
		Addr:              listenAddr(cfg),
		Handler:           observe.Middleware(metrics)(mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// ── Startup summary ───────────────────────────────────────────────────────
	printStartupSummary(cfg)
	slog.Info("server ready, press Ctrl+C to shut down")

	// ── Serve ─────────────────────────────────────────────────────────────────
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		if tls := cfg.Server.TLS; tls != nil {
			err = httpServer.ListenAndServeTLS(tls.CertFile, tls.KeyFile)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		slog.Info("shutdown signal received, stopping…")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("run error", "err", err)
		return 1
	}
	slog.Info("goodbye")
	return 0
}

// ── Engine wiring ─────────────────────────────────────────────────────────────

// buildEngine constructs the recognition engine selected by eng. The
// returned close function is non-nil only for engines holding native
// resources.
func buildEngine(eng *config.EngineConfig) (recognizer.Recognizer, func() error, error) {
	switch eng.Backend {
	case config.BackendWhisperNative:
		var opts []whisper.NativeOption
		if eng.Language != "" {
			opts = append(opts, whisper.WithNativeLanguage(eng.Language))
		}
		e, err := whisper.NewNative(eng.Model, opts...)
		if err != nil {
			return nil, nil, err
		}
		return e, e.Close, nil

	case config.BackendWhisper:
		var opts []whisper.ServerOption
		if eng.Model != "" {
			opts = append(opts, whisper.WithModel(eng.Model))
		}
		if eng.Language != "" {
			opts = append(opts, whisper.WithLanguage(eng.Language))
		}
		if eng.SampleRate != 0 {
			opts = append(opts, whisper.WithSampleRate(eng.SampleRate))
		}
		e, err := whisper.NewServer(eng.ServerURL, opts...)
		if err != nil {
			return nil, nil, err
		}
		return e, nil, nil

	default:
		return nil, nil, fmt.Errorf("unknown engine backend %q", eng.Backend)
	}
}

// engineChecker builds the readiness checkers for the configured backends.
// The whisper backend probes the remote whisper-server; whisper-native holds
// its model in-process and is ready once construction succeeded.
func engineChecker(cfg *config.Config) []health.Checker {
	client := &http.Client{Timeout: 5 * time.Second}

	probe := func(name, url string) health.Checker {
		return health.Checker{
			Name: name,
			Check: func(ctx context.Context) error {
				req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
				if err != nil {
					return err
				}
				resp, err := client.Do(req)
				if err != nil {
					return err
				}
				resp.Body.Close()
				if resp.StatusCode >= 500 {
					return fmt.Errorf("whisper-server returned %d", resp.StatusCode)
				}
				return nil
			},
		}
	}

	var checkers []health.Checker
	if cfg.Engine.Backend == config.BackendWhisper {
		checkers = append(checkers, probe("whisper-server", cfg.Engine.ServerURL))
	}
	if cfg.FallbackEngine != nil && cfg.FallbackEngine.Backend == config.BackendWhisper {
		checkers = append(checkers, probe("fallback-whisper-server", cfg.FallbackEngine.ServerURL))
	}
	return checkers
}

// ── Startup summary ───────────────────────────────────────────────────────────

func printStartupSummary(cfg *config.Config) {
	fmt.Println("╔═══════════════════════════════════════╗")
	fmt.Println("║      sonoscribe — startup summary     ║")
	fmt.Println("╠═══════════════════════════════════════╣")
	printRow("Backend", string(cfg.Engine.Backend))
	printRow("Model", cfg.Engine.Model)
	if cfg.Engine.Backend == config.BackendWhisper {
		printRow("Server URL", cfg.Engine.ServerURL)
	}
	printRow("Language", cfg.Engine.Language)
	if cfg.FallbackEngine != nil {
		printRow("Fallback", string(cfg.FallbackEngine.Backend))
	} else {
		printRow("Fallback", "(disabled)")
	}
	printRow("Corrections", fmt.Sprintf("%d rules", len(cfg.Corrections)))
	printRow("Vocabulary", fmt.Sprintf("%d terms", len(cfg.Vocabulary)))
	printRow("Listen addr", listenAddr(cfg))
	if cfg.Server.TLS != nil {
		printRow("TLS", "enabled")
	} else {
		printRow("TLS", "(disabled)")
	}
	fmt.Println("╚═══════════════════════════════════════╝")
}

func printRow(label, value string) {
	if value == "" {
		value = "(not configured)"
	}
	if len([]rune(value)) > 19 {
		value = string([]rune(value)[:16]) + "…"
	}
	fmt.Printf("║  %-14s : %-19s ║\n", label, value)
}

func listenAddr(cfg *config.Config) string {
	if cfg.Server.ListenAddr != "" {
		return cfg.Server.ListenAddr
	}
	return config.DefaultListenAddr
}

// ── Logger ─────────────────────────────────────────────────────────────────────

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
