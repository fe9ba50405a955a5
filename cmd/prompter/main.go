package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/pflag"

	"github.com/lexiqai/prompter/internal/config"
	"github.com/lexiqai/prompter/internal/countdown"
	"github.com/lexiqai/prompter/internal/loop"
	"github.com/lexiqai/prompter/internal/observability"
	"github.com/lexiqai/prompter/internal/resilience"
	"github.com/lexiqai/prompter/internal/session"
	"github.com/lexiqai/prompter/internal/settings"
	"github.com/lexiqai/prompter/internal/terminal"
)

type options struct {
	scriptPath   string
	settingsPath string
	logFile      string
	voiceSource  string
	countdown    bool
	voiceFollow  bool
	mirror       bool
	flags        *pflag.FlagSet
}

func parseFlags(cfg *config.Config, args []string) (*options, error) {
	o := &options{}
	fs := pflag.NewFlagSet("prompter", pflag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: prompter [flags] [script.txt]\n\n")
		fs.PrintDefaults()
	}
	fs.StringVarP(&o.scriptPath, "script", "s", "", "script file (default: the last script prompted)")
	fs.StringVar(&o.settingsPath, "settings", cfg.SettingsFile, "settings file")
	fs.StringVar(&o.logFile, "log-file", cfg.LogFile, "log file")
	fs.StringVar(&o.voiceSource, "voice-source", cfg.VoiceSource, "voice source: none, energy, deepgram, remote")
	fs.BoolVar(&o.countdown, "countdown", true, "show the 3-2-1 countdown")
	fs.BoolVar(&o.voiceFollow, "voice-follow", false, "scroll only while you speak")
	fs.BoolVar(&o.mirror, "mirror", false, "mirror the text for a beam-splitter rig")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if o.scriptPath == "" && fs.NArg() > 0 {
		o.scriptPath = fs.Arg(0)
	}
	o.flags = fs
	return o, nil
}

// apply overrides stored settings with flags given on the command line
func (o *options) apply(st settings.Settings) settings.Settings {
	if o.flags.Changed("countdown") {
		st.ShowCountdown = o.countdown
	}
	if o.flags.Changed("voice-follow") {
		st.VoiceFollow = o.voiceFollow
	}
	if o.flags.Changed("mirror") {
		st.MirrorMode = o.mirror
	}
	return st
}

func defaultPath(dir func() (string, error), name string) string {
	base, err := dir()
	if err != nil {
		return name
	}
	return filepath.Join(base, "prompter", name)
}

func openLog(path string) (io.Writer, func(), error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { f.Close() }, nil
}

func main() {
	if err := run(); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return
		}
		fmt.Fprintf(os.Stderr, "prompter: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	opts, err := parseFlags(cfg, os.Args[1:])
	if err != nil {
		return err
	}
	cfg.VoiceSource = opts.voiceSource
	if err := cfg.Validate(); err != nil {
		return err
	}

	// The terminal owns stdout, so logs always go to a file
	logPath := opts.logFile
	if logPath == "" {
		logPath = defaultPath(os.UserCacheDir, "prompter.log")
	}
	logOut, closeLog, err := openLog(logPath)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer closeLog()
	observability.InitLogger(cfg.LogLevel, cfg.LogPretty, logOut)
	base := observability.GetLogger()

	sessionID := observability.NewCorrelationID()
	logger := observability.WithCorrelationID(sessionID)

	// Settings and script
	settingsPath := opts.settingsPath
	if settingsPath == "" {
		settingsPath = defaultPath(os.UserConfigDir, "settings.yaml")
	}
	store, err := settings.Open(settingsPath)
	if err != nil {
		return err
	}
	st := opts.apply(store.Load())

	var script string
	if opts.scriptPath != "" {
		raw, err := os.ReadFile(opts.scriptPath)
		if err != nil {
			return fmt.Errorf("failed to read script: %w", err)
		}
		script = string(raw)
	}

	logger.Info().
		Str("voice_source", cfg.VoiceSource).
		Str("settings", store.Path()).
		Str("log_level", cfg.LogLevel).
		Bool("metrics_enabled", cfg.MetricsEnabled).
		Msg("Prompter starting")

	metrics := observability.NewSessionMetrics(sessionID)

	input, err := openVoice(cfg, metrics, base)
	if err != nil {
		return err
	}
	defer input.Close()

	breaker := resilience.NewCircuitBreaker("voice-source", cfg.CircuitBreakerMaxFailures, cfg.BreakerResetTimeout())
	watchBreaker(breaker)

	var beeper countdown.Beeper
	if cfg.CountdownBeep {
		tone, err := countdown.NewToneBeeper()
		if err != nil {
			logger.Warn().Err(err).Msg("Audio output unavailable, countdown will be silent")
		} else {
			defer tone.Close()
			beeper = tone
		}
	}

	lp := loop.New(cfg.FrameInterval(), base)
	sess, err := session.New(session.Options{
		ID:             sessionID,
		Script:         script,
		Settings:       st,
		Source:         input.source,
		Clock:          lp,
		Frames:         lp,
		Exec:           lp.Exec,
		SilenceDelay:   cfg.SilenceDelay(),
		RestartBackoff: cfg.RestartBackoff(),
		Breaker:        breaker,
		Beeper:         beeper,
		Recorder:       metrics,
		Logger:         base,
	})
	if errors.Is(err, session.ErrEmptyScript) {
		return fmt.Errorf("nothing to prompt: pass a script file")
	}
	if err != nil {
		return err
	}
	sess.OnSettingsChange(func(changed settings.Settings) {
		if err := store.Save(changed); err != nil {
			logger.Warn().Err(err).Msg("Failed to save settings")
		}
	})

	// HTTP: health, readiness, metrics, status and the remote voice endpoint
	var server *http.Server
	if cfg.HTTPAddr != "" {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", observability.HealthCheckHandler())
		mux.HandleFunc("/ready", observability.ReadinessHandler(map[string]observability.HealthCheckFunc{
			"event_loop": func(ctx context.Context) (bool, error) {
				return true, lp.Do(ctx, func() {})
			},
			"voice_source": input.ready,
		}))
		mux.HandleFunc("/status", observability.StatusHandler(func(ctx context.Context) (any, error) {
			var snap session.Snapshot
			err := lp.Do(ctx, func() { snap = sess.Snapshot() })
			return snap, err
		}))
		if cfg.MetricsEnabled {
			mux.Handle("/metrics", promhttp.Handler())
			logger.Info().Msg("Prometheus metrics enabled at /metrics")
		}
		if input.handler != nil {
			mux.Handle("/voice", input.handler)
		}

		// Create HTTP server with timeouts; websocket connections are hijacked
		server = &http.Server{
			Addr:              cfg.HTTPAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
			IdleTimeout:       60 * time.Second,
		}
		go func() {
			logger.Info().Str("addr", cfg.HTTPAddr).Msg("Server listening")
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("Server failed to start")
			}
		}()
	}

	if cfg.GRPCAddr != "" {
		health, err := observability.NewGRPCHealth(cfg.GRPCAddr, base)
		if err != nil {
			return err
		}
		go func() {
			if err := health.Serve(); err != nil {
				logger.Error().Err(err).Msg("gRPC health server stopped")
			}
		}()
		health.SetServing(true)
		defer health.Stop()
		defer health.SetServing(false)
	}

	// Terminal
	screen, err := tcell.NewScreen()
	if err != nil {
		return fmt.Errorf("failed to create screen: %w", err)
	}
	if err := screen.Init(); err != nil {
		return fmt.Errorf("failed to init screen: %w", err)
	}
	defer screen.Fini()

	ui := terminal.New(screen, sess, base)
	lp.OnFrame(ui.Frame)
	lp.OnFrame(func(time.Time) { metrics.RecordFrame() })

	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go func() {
		if err := lp.Run(loopCtx); err != nil {
			logger.Error().Err(err).Msg("Event loop failed")
		}
	}()

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stopSignals()
	go ui.Pump(loopCtx, lp)

	metrics.RecordSessionStart()
	lp.Post(sess.Begin)

	select {
	case <-sess.Exited():
	case <-sigCtx.Done():
		logger.Info().Msg("Interrupted")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var final settings.Settings
	if err := lp.Do(shutdownCtx, func() {
		sess.Exit()
		final = sess.Settings()
	}); err != nil {
		logger.Warn().Err(err).Msg("Session did not exit cleanly")
	}
	stopLoop()
	<-lp.Stopped()
	metrics.RecordSessionEnd()

	if final.FontSize != 0 {
		if err := store.Save(final); err != nil {
			logger.Warn().Err(err).Msg("Failed to save settings")
		}
	}

	if server != nil {
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("Server forced to shutdown")
		}
	}

	logger.Info().Msg("Prompter exited")
	return nil
}
