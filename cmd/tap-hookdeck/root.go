package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	json "github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/tap-hookdeck/internal/pipeline"
	"github.com/ajitpratap0/tap-hookdeck/pkg/compression"
	"github.com/ajitpratap0/tap-hookdeck/pkg/config"
	"github.com/ajitpratap0/tap-hookdeck/pkg/connector/core"
	"github.com/ajitpratap0/tap-hookdeck/pkg/connector/sources/hookdeck"
	"github.com/ajitpratap0/tap-hookdeck/pkg/errors"
	"github.com/ajitpratap0/tap-hookdeck/pkg/logger"
	"github.com/ajitpratap0/tap-hookdeck/pkg/metrics"
	"github.com/ajitpratap0/tap-hookdeck/pkg/observability"
	"github.com/ajitpratap0/tap-hookdeck/pkg/singer"
	"github.com/ajitpratap0/tap-hookdeck/pkg/state"
)

// Output formats accepted by --format.
const (
	formatJSON     = "json"
	formatYAML     = "yaml"
	formatMarkdown = "markdown"
)

type options struct {
	configPaths []string
	statePath   string
	catalogPath string
	discover    bool
	test        bool
	about       bool
	format      string
}

func newRootCommand(stdout io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   hookdeck.Name,
		Short: "Singer tap for Hookdeck",
		Long: `tap-hookdeck extracts connections, destinations, sources, issue triggers,
transformations and requests from the Hookdeck API and writes them to stdout
as Singer SCHEMA, RECORD and STATE messages.

Examples:
  tap-hookdeck --about --format markdown
  tap-hookdeck --config config.json --discover > catalog.json
  tap-hookdeck --config config.json --catalog catalog.json --state state.json`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), opts, stdout)
		},
	}

	flags := root.Flags()
	flags.StringArrayVar(&opts.configPaths, "config", nil, "Configuration file (JSON or YAML). May be repeated; later files win")
	flags.StringVar(&opts.statePath, "state", "", "State file from a previous run")
	flags.StringVar(&opts.catalogPath, "catalog", "", "Catalog file selecting the streams to sync")
	flags.BoolVar(&opts.discover, "discover", false, "Print the catalog and exit")
	flags.BoolVar(&opts.test, "test", false, "Check that the API key is accepted and exit")
	flags.BoolVar(&opts.about, "about", false, "Print tap metadata and exit")
	flags.StringVar(&opts.format, "format", formatJSON, "Output format for --about: json, yaml or markdown")

	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(stdout, "%s v%s\n", hookdeck.Name, hookdeck.Version)
			fmt.Fprintf(stdout, "Go version: %s\n", runtime.Version())
			fmt.Fprintf(stdout, "OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	})

	return root
}

func run(ctx context.Context, opts *options, stdout io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if opts.about {
		return writeAbout(stdout, opts.format)
	}

	cfg, err := config.Load(opts.configPaths...)
	if err != nil {
		return err
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	if err := logger.Init(logger.Config{
		Level:       cfg.Log.Level,
		Encoding:    cfg.Log.Encoding,
		Development: cfg.Log.Development,
	}); err != nil {
		return errors.Wrap(err, errors.ErrorTypeConfig, "failed to initialize logger")
	}
	log := logger.Get()
	defer func() { _ = logger.Sync() }()
	log.Debug("configuration loaded", zap.Any("config", cfg.Redacted()))

	if opts.discover {
		return writeJSON(stdout, singer.NewCatalog(hookdeck.Streams()))
	}

	if cfg.Tracing.Enabled {
		shutdown, err := observability.InitTracing(observability.TracingConfig{
			ServiceName:    hookdeck.Name,
			ServiceVersion: hookdeck.Version,
			SamplingRate:   cfg.Tracing.SampleRate,
		})
		if err != nil {
			return err
		}
		defer func() { _ = shutdown(context.Background()) }()
	}

	collector := metrics.NewCollector()
	defer func() {
		log.Info("run finished", zap.Duration("uptime", time.Since(collector.StartTime())))
	}()
	if cfg.Metrics.Enabled {
		go func() {
			if err := collector.Serve(ctx, cfg.Metrics.ListenAddr, log); err != nil {
				log.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	tap, err := hookdeck.New(cfg, collector, log)
	if err != nil {
		return err
	}
	defer tap.Close()

	if opts.test {
		return tap.Check(ctx)
	}
	return runSync(ctx, cfg, opts, tap, collector, log, stdout)
}

func runSync(ctx context.Context, cfg *config.Config, opts *options, tap *hookdeck.Tap, collector *metrics.Collector, log *zap.Logger, stdout io.Writer) (err error) {
	var store state.Store
	if cfg.State.URI != "" {
		store, err = state.Open(ctx, cfg.State.URI, log)
		if err != nil {
			return err
		}
		defer store.Close()
	}

	st, err := loadState(ctx, opts.statePath, store)
	if err != nil {
		return err
	}

	var catalog *singer.Catalog
	if opts.catalogPath != "" {
		if catalog, err = singer.LoadCatalog(opts.catalogPath); err != nil {
			return err
		}
	}

	start, err := cfg.StartTime()
	if err != nil {
		return err
	}

	sink, closeSink, err := openSink(cfg.Output, stdout)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := closeSink(); cerr != nil && err == nil {
			err = errors.Wrap(cerr, errors.ErrorTypeFile, "failed to close output")
		}
	}()

	runner := pipeline.NewRunner(tap, singer.NewWriter(sink), &pipeline.RunnerConfig{
		Catalog:   catalog,
		State:     st,
		Store:     store,
		StartDate: start,
		OnError:   cfg.Conformance.OnError,
		Metrics:   collector,
	}, log)
	return runner.Sync(ctx)
}

// loadState prefers --state, then the configured store.
func loadState(ctx context.Context, path string, store state.Store) (*singer.State, error) {
	if path != "" {
		f, err := os.Open(path) //nolint:gosec // G304: path comes from --state
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open state file").WithDetail("path", path)
		}
		defer f.Close()
		return singer.ReadState(f)
	}
	if store != nil {
		return store.Load(ctx)
	}
	return singer.NewState(), nil
}

// openSink returns where Singer messages go. Without output.path that is
// stdout; otherwise a file, compressed when output.compression asks for it.
func openSink(out config.OutputConfig, stdout io.Writer) (io.Writer, func() error, error) {
	if out.Path == "" {
		return stdout, func() error { return nil }, nil
	}

	alg, err := compression.ParseAlgorithm(out.Compression)
	if err != nil {
		return nil, nil, err
	}
	path := alg.WithExtension(out.Path)
	f, err := os.Create(path) //nolint:gosec // G304: path comes from configuration
	if err != nil {
		return nil, nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output file").WithDetail("path", path)
	}
	w, err := compression.NewWriter(f, alg, compression.Default)
	if err != nil {
		f.Close()
		return nil, nil, err
	}
	return w, func() error {
		if err := w.Close(); err != nil {
			f.Close()
			return err
		}
		return f.Close()
	}, nil
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode output")
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func writeAbout(w io.Writer, format string) error {
	about := hookdeck.About()
	switch format {
	case formatJSON, "":
		return writeJSON(w, about)
	case formatYAML:
		doc := map[string]interface{}{
			"name":            about.Name,
			"description":     about.Description,
			"version":         about.Version,
			"capabilities":    about.Capabilities,
			"settings_schema": about.Settings.JSONSchema(),
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(doc); err != nil {
			return errors.Wrap(err, errors.ErrorTypeInternal, "failed to encode yaml")
		}
		return enc.Close()
	case formatMarkdown:
		_, err := io.WriteString(w, aboutMarkdown(about))
		return err
	default:
		return errors.Newf(errors.ErrorTypeConfig, "unknown --format %q (want json, yaml or markdown)", format)
	}
}

func aboutMarkdown(about *core.ConnectorMetadata) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# `%s`\n\n%s\n\nVersion: %s\n\n", about.Name, about.Description, about.Version)

	b.WriteString("## Capabilities\n\n")
	for _, c := range about.Capabilities {
		fmt.Fprintf(&b, "* `%s`\n", c)
	}

	b.WriteString("\n## Settings\n\n")
	b.WriteString("| Setting | Required | Type | Description |\n")
	b.WriteString("|:--------|:--------:|:-----|:------------|\n")
	for _, p := range about.Settings.Properties() {
		required := "False"
		if p.Required {
			required = "True"
		}
		fmt.Fprintf(&b, "| %s | %s | %s | %s |\n", p.Name, required, p.Type.Kind(), p.Description)
	}
	b.WriteString("\nA full list of supported settings and capabilities is available by running: `tap-hookdeck --about`\n")
	return b.String()
}
