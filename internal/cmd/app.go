package cmd

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net/http"
	"sync"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/felixgeelhaar/hopper/internal/config"
	"github.com/felixgeelhaar/hopper/internal/engine"
	"github.com/felixgeelhaar/hopper/internal/errors"
	"github.com/felixgeelhaar/hopper/internal/log"
	"github.com/felixgeelhaar/hopper/internal/metrics"
	"github.com/felixgeelhaar/hopper/internal/oracle"
	"github.com/felixgeelhaar/hopper/internal/plan"
	"github.com/felixgeelhaar/hopper/internal/provider"
	"github.com/felixgeelhaar/hopper/internal/source"
	"github.com/felixgeelhaar/hopper/internal/telemetry"
	"github.com/felixgeelhaar/hopper/internal/tui"
	"github.com/felixgeelhaar/hopper/internal/version"
)

// app wires configuration, observability, the source provider and the
// oracles into an engine for a single command invocation.
type app struct {
	cfg     *config.Config
	logger  *log.Logger
	metrics *metrics.Metrics
	source  source.Provider
	ref     string
	engine  *engine.Engine
	out     io.Writer
	errOut  io.Writer

	// prompt asks for a source token after an authorization failure.
	prompt func() (string, error)

	printMu sync.Mutex
	printed int
	follow  sync.WaitGroup
	closers []func(context.Context) error
}

// loadConfig reads the configuration and applies persistent flag overrides.
func (o *rootOptions) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, err
	}
	if o.logLevel != "" {
		cfg.Logging.Level = o.logLevel
	}
	if o.demo {
		cfg.Source.Provider = "demo"
		cfg.Oracle.Provider = "offline"
	}
	if o.source != "" {
		cfg.Source.Provider = o.source
	}
	if o.oracle != "" {
		cfg.Oracle.Provider = o.oracle
	}
	if o.target != "" {
		cfg.Engine.TargetVersion = o.target
	}
	if o.token != "" {
		cfg.Source.Token = o.token
	}
	if o.metricsAddr != "" {
		cfg.Metrics.Addr = o.metricsAddr
	}
	if o.trace {
		cfg.Tracing.Enabled = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func newApp(cmd *cobra.Command, opts *rootOptions, args []string) (*app, error) {
	cfg, err := opts.loadConfig()
	if err != nil {
		return nil, err
	}
	ctx := cmd.Context()

	lc := cfg.LogSettings()
	lc.Output = log.NewOutput(cmd.ErrOrStderr())
	logger := log.New(lc)
	log.SetDefaultLogger(logger)

	a := &app{
		cfg:    cfg,
		logger: logger,
		out:    cmd.OutOrStdout(),
		errOut: cmd.ErrOrStderr(),
		prompt: func() (string, error) {
			return tui.PromptForToken("GitHub token", "The repository needs credentials or the anonymous rate limit is exhausted.")
		},
	}

	reg, m := metrics.NewRegistry()
	a.metrics = m
	if cfg.Metrics.Addr != "" {
		addr, errCh, err := metrics.Serve(ctx, cfg.Metrics.Addr, reg)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeConfigInvalid, fmt.Sprintf("cannot serve metrics on %s", cfg.Metrics.Addr), err)
		}
		logger.Info("metrics endpoint listening", "url", "http://"+addr+"/metrics")
		go func() {
			for err := range errCh {
				logger.WithError(err).Error("metrics server stopped")
			}
		}()
	}

	tc := telemetry.DefaultConfig()
	tc.Enabled = cfg.Tracing.Enabled
	tc.SampleRate = cfg.Tracing.SampleRate
	tc.ServiceVersion = version.Version
	tc.Output = cmd.ErrOrStderr()
	shutdown, err := telemetry.InitProvider(ctx, tc)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, shutdown)

	if a.source, a.ref, err = a.buildSource(args); err != nil {
		return nil, err
	}
	oracles, err := a.buildOracles()
	if err != nil {
		return nil, err
	}

	a.engine, err = engine.New(a.source, oracles,
		engine.WithConfig(cfg.EngineSettings()),
		engine.WithMetrics(m),
		engine.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	a.startFollowing()
	return a, nil
}

// buildSource selects the source provider and the reference to scan.
func (a *app) buildSource(args []string) (source.Provider, string, error) {
	sc := a.cfg.Source
	ref := sc.Repository
	if len(args) > 0 {
		ref = args[0]
	}

	switch sc.Provider {
	case "demo":
		return source.Demo(), source.DemoRef, nil
	case "git":
		if len(args) == 0 && ref == config.DefaultRepository {
			ref = "."
		}
		return source.NewLocalGit(sc.Filter, a.metrics), ref, nil
	default:
		if _, _, err := source.ParseGitHubRef(ref); err != nil {
			return nil, "", err
		}
		ghOpts := []source.GitHubOption{
			source.WithToken(sc.Token),
			source.WithFilter(sc.Filter),
			source.WithSourceMetrics(a.metrics),
			source.WithSourceLogger(a.logger.With("component", "source")),
			source.WithGitHubHTTPClient(&http.Client{Transport: otelhttp.NewTransport(http.DefaultTransport)}),
		}
		if sc.BaseURL != "" {
			ghOpts = append(ghOpts, source.WithBaseURL(sc.BaseURL))
		}
		return source.NewGitHub(ghOpts...), ref, nil
	}
}

// buildOracles selects the oracle backend.
func (a *app) buildOracles() (oracle.Oracles, error) {
	oc := a.cfg.Oracle
	if oc.Provider == "offline" {
		return oracle.All(oracle.NewOffline(oc.Profile)), nil
	}
	if err := a.cfg.RequireAPIKey(); err != nil {
		return oracle.Oracles{}, err
	}
	client, err := provider.NewGeminiProvider(a.cfg.ProviderSettings(),
		provider.WithMetrics(a.metrics),
		provider.WithLogger(a.logger.With("component", "provider")),
	)
	if err != nil {
		return oracle.Oracles{}, err
	}
	a.closers = append(a.closers, func(context.Context) error { return client.Close() })
	return oracle.All(oracle.NewGemini(client, oc.Profile, oc.Models)), nil
}

// startFollowing prints event log entries as the engine appends them.
func (a *app) startFollowing() {
	entries := a.engine.Subscribe(64)
	a.follow.Add(1)
	go func() {
		defer a.follow.Done()
		for range entries {
			a.flushLogs()
		}
	}()
}

// flushLogs prints every entry not yet printed. The subscription only
// signals new entries; the log itself is the source of truth, so entries a
// slow subscriber missed are still printed once.
func (a *app) flushLogs() {
	a.printMu.Lock()
	defer a.printMu.Unlock()
	entries := a.engine.Events().Entries()
	for _, e := range entries[min(a.printed, len(entries)):] {
		fmt.Fprintln(a.errOut, tui.RenderEntry(e))
	}
	a.printed = len(entries)
}

// scan runs scan and plan. When the source rejects the request for lack of
// credentials and a terminal is attached, it asks for a token and retries once.
func (a *app) scan(ctx context.Context) (*plan.ProjectAnalysis, error) {
	analysis, err := a.engine.Scan(ctx, a.ref, "")
	a.flushLogs()
	if err == nil || a.source.Name() != "github" || !tui.ShouldPrompt() {
		return analysis, err
	}
	if !stderrors.Is(err, errors.ErrUnauthorized) && !stderrors.Is(err, errors.ErrRateLimited) {
		return analysis, err
	}

	a.logger.LogError(err)
	token, promptErr := a.prompt()
	if promptErr != nil {
		return analysis, err
	}
	analysis, err = a.engine.Scan(ctx, a.ref, token)
	a.flushLogs()
	return analysis, err
}

// Close flushes logs and releases providers.
func (a *app) Close() error {
	a.engine.Close()
	a.follow.Wait()
	a.flushLogs()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	return stderrors.Join(errs...)
}
