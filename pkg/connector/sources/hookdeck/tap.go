// Package hookdeck extracts Hookdeck resources as Singer streams.
//
// Six resources are read from the Hookdeck REST API: connections,
// destinations, sources, issue_triggers, transformations and requests.
// Every list endpoint is paged with an opaque cursor. Only requests is
// incremental, filtered server-side on ingested_at.
package hookdeck

import (
	"context"

	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-hookdeck/pkg/clients"
	"github.com/ajitpratap0/tap-hookdeck/pkg/config"
	"github.com/ajitpratap0/tap-hookdeck/pkg/connector/core"
	"github.com/ajitpratap0/tap-hookdeck/pkg/errors"
	"github.com/ajitpratap0/tap-hookdeck/pkg/metrics"
)

// Name is the tap's executable and metadata name.
const Name = "tap-hookdeck"

// Version is overridden at build time with -ldflags "-X ...hookdeck.Version=".
var Version = "0.1.0"

// Tap is the Hookdeck source.
type Tap struct {
	cfg     *config.Config
	client  *Client
	http    *clients.HTTPClient
	streams []*core.StreamDescriptor
	logger  *zap.Logger
}

var _ core.Source = (*Tap)(nil)

// New validates cfg and builds the tap. A nil collector gets a private one.
func New(cfg *config.Config, collector *metrics.Collector, logger *zap.Logger) (*Tap, error) {
	if cfg == nil {
		return nil, errors.New(errors.ErrorTypeConfig, "configuration is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if collector == nil {
		collector = metrics.NewCollector()
	}

	streams := Streams()
	for _, s := range streams {
		if err := s.Validate(); err != nil {
			return nil, err
		}
	}

	httpConfig := clients.DefaultHTTPConfig()
	httpConfig.RequestTimeout = cfg.RequestTimeout
	if cfg.UserAgent != "" {
		httpConfig.UserAgent = cfg.UserAgent
	} else {
		httpConfig.UserAgent = Name + "/" + Version
	}
	httpClient := clients.NewHTTPClient(httpConfig, logger)

	t := &Tap{
		cfg:     cfg,
		client:  NewClient(cfg.BaseURL(), cfg.APIKey, httpClient, collector, logger),
		http:    httpClient,
		streams: streams,
		logger:  logger.With(zap.String("component", "tap")),
	}

	t.logger.Info("tap initialized",
		zap.String("base_url", cfg.BaseURL()),
		zap.String("start_date", cfg.StartDate),
		zap.Int("streams", len(streams)))
	return t, nil
}

// Name returns tap-hookdeck.
func (t *Tap) Name() string { return Name }

// Streams returns the stream descriptors in sync order.
func (t *Tap) Streams() []*core.StreamDescriptor { return t.streams }

// Stream looks a descriptor up by name.
func (t *Tap) Stream(name string) (*core.StreamDescriptor, bool) {
	for _, s := range t.streams {
		if s.Name == name {
			return s, true
		}
	}
	return nil, false
}

// ReadStream pages through one stream.
func (t *Tap) ReadStream(ctx context.Context, d *core.StreamDescriptor, sc *core.SyncContext, emit core.EmitFunc) error {
	return t.client.ReadStream(ctx, d, sc, emit)
}

// Check fetches the first page of connections to confirm the API key works.
func (t *Tap) Check(ctx context.Context) error {
	d, _ := t.Stream(StreamConnections)
	page, err := t.client.FetchPage(ctx, d, &core.SyncContext{}, "")
	if err != nil {
		return err
	}
	t.logger.Info("connection check succeeded", zap.Int("connections", len(page.Models)))
	return nil
}

// Close logs request totals and releases idle HTTP connections.
func (t *Tap) Close() error {
	stats := t.http.GetStats()
	t.logger.Info("http client closed",
		zap.Int64("requests", stats.TotalRequests),
		zap.Int64("failed_requests", stats.FailedRequests),
		zap.Float64("success_rate", stats.SuccessRate))
	return t.http.Close()
}

// About returns the metadata printed by --about.
func About() *core.ConnectorMetadata {
	return &core.ConnectorMetadata{
		Name:        Name,
		Description: "Singer tap for the Hookdeck webhook infrastructure API",
		Version:     Version,
		Capabilities: []string{
			core.CapabilityCatalog,
			core.CapabilityDiscover,
			core.CapabilityState,
			core.CapabilityAbout,
		},
		Settings: ConfigSchema,
	}
}
