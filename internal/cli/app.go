// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jeranaias/docchat/internal/api"
	"github.com/jeranaias/docchat/internal/config"
	"github.com/jeranaias/docchat/internal/geo"
	"github.com/jeranaias/docchat/internal/logging"
	"github.com/jeranaias/docchat/internal/markdown"
	"github.com/jeranaias/docchat/internal/session"
	"github.com/jeranaias/docchat/internal/storage"
	"github.com/jeranaias/docchat/internal/stream"
	"github.com/jeranaias/docchat/internal/telemetry"
	"github.com/jeranaias/docchat/internal/widget"
)

// =============================================================================
// APPLICATION WIRING
// =============================================================================

type appOptions struct {
	// logFile sends logs to a file so they cannot corrupt the alt screen.
	logFile bool
}

// app holds everything a command needs, built from config and flags.
type app struct {
	cfg     *config.Config
	cfgPath string
	log     zerolog.Logger

	kv       storage.KV
	ids      *storage.ConversationIDs
	client   *api.Client
	registry *prometheus.Registry
	metrics  *telemetry.Metrics
	locator  *geo.Locator
	prefs    *geo.Preferences
	deps     session.Deps
	ctrl     *widget.Controller

	closers     []func() error
	stopMetrics context.CancelFunc
}

// newApp loads configuration and wires storage, the service client, the
// location collaborator and the widget controller.
func newApp(cmd *cobra.Command, opts appOptions) (*app, error) {
	cfg, path, err := loadConfig()
	if err != nil {
		return nil, err
	}
	applyFlags(cfg)

	mode, err := stream.ParseMode(cfg.Chat.SentinelMode)
	if err != nil {
		return nil, err
	}

	a := &app{cfg: cfg, cfgPath: path}
	if err := a.setupLogging(cmd, opts); err != nil {
		return nil, err
	}

	dir, err := cfg.DataDir()
	if err != nil {
		a.Close()
		return nil, err
	}
	kv, err := storage.Open(storage.Options{Backend: cfg.Storage.Backend, Dir: dir})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("open storage: %w", err)
	}
	a.kv = kv
	a.closers = append(a.closers, kv.Close)
	a.ids = storage.NewConversationIDs(kv, cfg.Chat.KeyPrefix)

	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	a.metrics = telemetry.New(a.registry)

	a.client = api.NewClient(&api.ClientConfig{
		BaseURL:    cfg.API.BaseURL,
		PathPrefix: cfg.API.PathPrefix,
		Timeout:    cfg.APITimeout(),
		RateLimit:  cfg.API.RateLimit,
		Burst:      cfg.API.Burst,
		UserAgent:  "docchat/" + Version,
	},
		api.WithLogger(logging.Component(a.log, "api")),
		api.WithMetrics(a.metrics),
	)

	a.locator = newLocator(cfg, logging.Component(a.log, "geo"))
	a.prefs = geo.NewPreferences(kv, cfg.Chat.KeyPrefix, a.locator)

	a.deps = session.Deps{
		Client: a.client,
		IDs:    a.ids,
		Renderer: markdown.NewHTMLRenderer(markdown.HTMLOptions{
			Sanitize:      cfg.UI.SanitizeHTML,
			HighlightCode: cfg.UI.HighlightCode,
			CodeStyle:     cfg.UI.CodeStyle,
		}),
		Log:       logging.Component(a.log, "session"),
		Metrics:   a.metrics,
		Mode:      mode,
		ErrorText: cfg.Chat.ErrorText,
	}
	if cfg.Location.Enabled {
		a.deps.Location = a.prefs
	}
	a.ctrl = widget.NewController(a.deps)

	if metricsAddr != "" {
		ctx, cancel := context.WithCancel(cmd.Context())
		a.stopMetrics = cancel
		go func() {
			if err := telemetry.Serve(ctx, metricsAddr, a.registry, a.log); err != nil {
				a.log.Error().Err(err).Str("addr", metricsAddr).Msg("metrics server stopped")
			}
		}()
	}

	a.log.Debug().
		Str("config", path).
		Str("storage", cfg.Storage.Backend).
		Str("base_url", cfg.API.BaseURL).
		Str("domain", cfg.Chat.DefaultDomain).
		Msg("docchat started")
	return a, nil
}

// Close releases the session, storage and log file.
func (a *app) Close() error {
	if a.stopMetrics != nil {
		a.stopMetrics()
	}
	if a.ctrl != nil {
		a.ctrl.Close()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// domain is the chat domain for this run: --domain, DOCCHAT_DOMAIN or
// chat.default_domain.
func (a *app) domain() string {
	return a.cfg.Chat.DefaultDomain
}

// loadConfig loads .env, then --config or the default config file.
func loadConfig() (*config.Config, string, error) {
	if err := config.LoadDotEnv(); err != nil {
		return nil, "", err
	}
	if configPath != "" {
		cfg, err := config.LoadFromPath(configPath)
		return cfg, configPath, err
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, "", err
	}
	path, _ := config.PathTOML()
	return cfg, path, nil
}

// applyFlags lets command-line flags win over file and environment.
func applyFlags(cfg *config.Config) {
	if domainFlag != "" {
		cfg.Chat.DefaultDomain = domainFlag
	}
	if storageFlag != "" {
		cfg.Storage.Backend = storageFlag
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
}

func (a *app) setupLogging(cmd *cobra.Command, opts appOptions) error {
	out := cmd.ErrOrStderr()

	path := a.cfg.LogFile()
	if path == "" && opts.logFile {
		dir, err := a.cfg.DataDir()
		if err != nil {
			return err
		}
		path = filepath.Join(dir, "docchat.log")
	}
	if path != "" {
		f, err := logging.OpenFile(path)
		if err != nil {
			return err
		}
		a.closers = append(a.closers, f.Close)
		out = f
	}

	a.log = logging.New(logging.Config{
		Level:   a.cfg.Logging.Level,
		Pretty:  a.cfg.Logging.Pretty || isTerminalWriter(out),
		Output:  out,
		Dynamic: opts.logFile,
	})
	logging.SetGlobal(a.log)
	return nil
}

// newLocator builds the location collaborator from the [location] section.
func newLocator(cfg *config.Config, log zerolog.Logger) *geo.Locator {
	var device geo.DeviceSource
	if cfg.HasDeviceFix() {
		device = &geo.StaticSource{Latitude: cfg.Location.Latitude, Longitude: cfg.Location.Longitude}
	}

	loc := geo.NewLocator(device, log)
	if cfg.Location.ReverseGeocodeURL != "" {
		loc.ReverseGeocodeURL = cfg.Location.ReverseGeocodeURL
	}
	if t := cfg.LocationTimeout(); t > 0 {
		loc.HTTPClient = &http.Client{Timeout: t}
	}
	if len(cfg.Location.IPProviders) > 0 {
		byName := make(map[string]geo.Provider)
		for _, p := range geo.DefaultProviders() {
			byName[p.Name] = p
		}
		providers := make([]geo.Provider, 0, len(cfg.Location.IPProviders))
		for _, name := range cfg.Location.IPProviders {
			if p, ok := byName[strings.ToLower(name)]; ok {
				providers = append(providers, p)
			}
		}
		loc.Providers = providers
	}
	return loc
}

// =============================================================================
// LOCATION CONSENT
// =============================================================================

// promptLocation asks, once per installation, whether the approximate
// location may be sent with questions. Non-interactive runs never ask.
func (a *app) promptLocation(cmd *cobra.Command) {
	if !a.cfg.Location.Enabled || jsonOutput || !IsTTY() {
		return
	}
	ctx := cmd.Context()

	ask, err := a.prefs.Prompt(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to read location preference")
		return
	}
	if !ask {
		return
	}

	if !confirm(cmd, "Share your approximate location to improve answers? [y/N] ") {
		a.prefs.Deny()
		cmd.Println("Location will not be sent. Run `docchat location allow` to change this.")
		return
	}
	loc, err := a.prefs.Allow(ctx)
	if err != nil {
		a.log.Warn().Err(err).Msg("failed to save location")
	}
	if loc.IsZero() {
		cmd.Println("Location could not be determined; questions are sent without it.")
		return
	}
	cmd.Printf("Using location %s\n", loc)
}

// confirm reads a yes/no answer; anything but y or yes is no.
func confirm(cmd *cobra.Command, prompt string) bool {
	cmd.Print(prompt)
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		cmd.Println()
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

// stdinIsTerminal reports whether cmd reads from the process terminal.
func stdinIsTerminal(cmd *cobra.Command) bool {
	return cmd.InOrStdin() == os.Stdin && IsTTY()
}
