// Package pipeline runs a Singer sync: it drives a core.Source stream by
// stream and turns what it reads into SCHEMA, RECORD and STATE messages.
//
// # Flow
//
// Streams run one at a time in the order the source declares them. For each
// selected stream the runner:
//   - writes a SCHEMA message
//   - resolves the stream's SyncContext from state and the start date
//   - reads every page and conforms each record to the stream schema
//   - writes one RECORD per conforming record
//   - tracks the largest replication key value seen
//   - updates the bookmark, writes STATE and persists it to the store
//
// # Conformance
//
// Root-level violations make a record non-conforming. With OnError "fail"
// the sync stops with a conformance error naming the stream, the record id
// and the violations. With "warn" the record is logged and emitted anyway.
// Nested violations never stop a sync; they are logged and counted.
//
// # Basic Usage
//
//	runner := pipeline.NewRunner(tap, singer.NewWriter(os.Stdout), &pipeline.RunnerConfig{
//	    Catalog:   catalog,
//	    State:     st,
//	    StartDate: start,
//	}, logger)
//	err := runner.Sync(ctx)
package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/ajitpratap0/tap-hookdeck/pkg/config"
	"github.com/ajitpratap0/tap-hookdeck/pkg/connector/core"
	"github.com/ajitpratap0/tap-hookdeck/pkg/errors"
	"github.com/ajitpratap0/tap-hookdeck/pkg/logger"
	"github.com/ajitpratap0/tap-hookdeck/pkg/metrics"
	"github.com/ajitpratap0/tap-hookdeck/pkg/observability"
	"github.com/ajitpratap0/tap-hookdeck/pkg/schema"
	"github.com/ajitpratap0/tap-hookdeck/pkg/singer"
	"github.com/ajitpratap0/tap-hookdeck/pkg/state"
)

// RunnerConfig holds everything a sync needs besides the source and the
// message writer. Every field is optional.
type RunnerConfig struct {
	// Catalog selects streams. Nil selects every stream.
	Catalog *singer.Catalog
	// State holds bookmarks from a previous run. Nil starts from scratch.
	State *singer.State
	// Store, when set, receives the state after every stream.
	Store state.Store
	// StartDate bounds incremental streams that have no bookmark yet.
	StartDate *time.Time
	// OnError is config.OnErrorFail (default) or config.OnErrorWarn.
	OnError string
	// Metrics receives record and violation counts. Nil gets a private collector.
	Metrics *metrics.Collector
	// RunID tags every log line of the run. Empty derives one from the start time.
	RunID string
}

// StreamStats summarizes one finished stream.
type StreamStats struct {
	Records  int64
	Errors   int64
	Warnings int64
	Duration time.Duration
}

// Runner syncs a source to a Singer message writer.
type Runner struct {
	source    core.Source
	writer    *singer.Writer
	catalog   *singer.Catalog
	state     *singer.State
	store     state.Store
	startDate *time.Time
	onError   string
	metrics   *metrics.Collector
	runID     string
	logger    *zap.Logger

	stats map[string]*StreamStats
	now   func() time.Time
}

// NewRunner creates a runner. cfg may be nil.
func NewRunner(source core.Source, writer *singer.Writer, cfg *RunnerConfig, logger *zap.Logger) *Runner {
	if cfg == nil {
		cfg = &RunnerConfig{}
	}
	st := cfg.State
	if st == nil {
		st = singer.NewState()
	}
	onError := cfg.OnError
	if onError == "" {
		onError = config.OnErrorFail
	}
	collector := cfg.Metrics
	if collector == nil {
		collector = metrics.NewCollector()
	}

	return &Runner{
		source:    source,
		writer:    writer,
		catalog:   cfg.Catalog,
		state:     st,
		store:     cfg.Store,
		startDate: cfg.StartDate,
		onError:   onError,
		metrics:   collector,
		runID:     cfg.RunID,
		logger:    logger.With(zap.String("component", "sync")),
		stats:     make(map[string]*StreamStats),
		now:       time.Now,
	}
}

// State returns the bookmarks as of the last finished stream.
func (r *Runner) State() *singer.State { return r.state }

// Stats returns per-stream statistics for streams synced so far.
func (r *Runner) Stats() map[string]*StreamStats { return r.stats }

// Sync runs every selected stream in order. It stops at the first error.
// Messages written before the error are flushed.
func (r *Runner) Sync(ctx context.Context) (err error) {
	started := r.now()
	synced := 0
	if r.runID == "" {
		r.runID = started.UTC().Format("20060102T150405Z")
	}
	ctx = logger.ContextWithRunID(ctx, r.runID)
	log := logger.WithContext(ctx, r.logger)

	defer func() {
		if flushErr := r.writer.Flush(); flushErr != nil && err == nil {
			err = errors.Wrap(flushErr, errors.ErrorTypeFile, "failed to flush output")
		}
	}()

	for _, d := range r.source.Streams() {
		if err := ctx.Err(); err != nil {
			return err
		}
		if r.catalog != nil && !r.catalog.IsSelected(d.Name) {
			log.Info("skipping unselected stream", zap.String("stream", d.Name))
			continue
		}
		if err := r.syncStream(ctx, d); err != nil {
			log.Error("stream sync failed", zap.String("stream", d.Name), zap.Error(err))
			return err
		}
		synced++
	}

	log.Info("sync completed",
		zap.Int("streams", synced),
		zap.Duration("duration", r.now().Sub(started)))
	return nil
}

func (r *Runner) syncStream(ctx context.Context, d *core.StreamDescriptor) (err error) {
	ctx = logger.ContextWithStream(ctx, d.Name)
	ctx, span := observability.StartSpan(ctx, "sync_stream", attribute.String("stream", d.Name))
	defer func() { observability.EndSpan(span, err) }()

	log := logger.WithContext(ctx, r.logger)
	timer := metrics.NewTimer()
	stats := &StreamStats{}
	r.stats[d.Name] = stats

	var bookmarkProps []string
	if d.Incremental() {
		bookmarkProps = []string{d.ReplicationKey}
	}
	if err := r.writer.WriteSchema(d.Name, d.Schema, d.PrimaryKeys, bookmarkProps); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write schema message")
	}

	sc := &core.SyncContext{StartDate: r.startDate}
	tracker := &bookmarkTracker{}
	if d.Incremental() {
		sc.Bookmark = r.state.BookmarkValue(d.Name, d.ReplicationKey)
		tracker.observe(sc.Bookmark)
	}
	log.Info("syncing stream",
		zap.Bool("incremental", d.Incremental()),
		zap.String("bookmark", sc.Bookmark))

	emit := func(rec core.Record) error {
		conformed, res := d.Schema.Conform(rec)

		if n := len(res.Warnings); n > 0 {
			stats.Warnings += int64(n)
			r.metrics.RecordViolations(d.Name, metrics.SeverityWarning, n)
			log.Warn("record has nested schema violations",
				zap.Any("record_id", recordID(d, rec)),
				zap.Strings("violations", schema.Strings(res.Warnings)))
		}
		if !res.OK() {
			stats.Errors++
			r.metrics.RecordViolations(d.Name, metrics.SeverityError, len(res.Errors))
			id := recordID(d, rec)
			if r.onError != config.OnErrorWarn {
				return errors.NewConformance(d.Name, id, schema.Strings(res.Errors))
			}
			log.Warn("emitting non-conforming record",
				zap.Any("record_id", id),
				zap.Strings("violations", schema.Strings(res.Errors)))
		}

		if err := r.writer.WriteRecord(d.Name, conformed, r.now()); err != nil {
			return errors.Wrap(err, errors.ErrorTypeFile, "failed to write record message")
		}
		stats.Records++

		if d.Incremental() {
			if v, ok := conformed[d.ReplicationKey].(string); ok {
				tracker.observe(v)
			}
		}
		return nil
	}

	if err := r.source.ReadStream(ctx, d, sc, emit); err != nil {
		return err
	}

	if d.Incremental() && tracker.value != "" {
		r.state.SetBookmark(d.Name, d.ReplicationKey, tracker.value)
	}
	if err := r.writer.WriteState(r.state); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write state message")
	}
	if r.store != nil {
		if err := r.store.Save(ctx, r.state); err != nil {
			return err
		}
	}

	stats.Duration = timer.Stop()
	r.metrics.RecordRecords(d.Name, int(stats.Records))
	r.metrics.RecordStreamDuration(d.Name, stats.Duration)
	span.SetAttributes(attribute.Int64("records", stats.Records))

	log.Info("stream synced",
		zap.Int64("records", stats.Records),
		zap.Int64("non_conforming", stats.Errors),
		zap.Int64("warnings", stats.Warnings),
		zap.String("bookmark", tracker.value),
		zap.Duration("duration", stats.Duration))
	return nil
}

// bookmarkTracker keeps the latest replication key value seen. Values are
// compared as instants but stored as received. Unparseable values are ignored.
type bookmarkTracker struct {
	value string
	at    time.Time
}

func (b *bookmarkTracker) observe(v string) {
	if v == "" {
		return
	}
	t, err := time.Parse(time.RFC3339Nano, v)
	if err != nil {
		return
	}
	if b.value == "" || t.After(b.at) {
		b.value = v
		b.at = t
	}
}

func recordID(d *core.StreamDescriptor, rec core.Record) interface{} {
	if len(d.PrimaryKeys) == 0 || rec == nil {
		return nil
	}
	return rec[d.PrimaryKeys[0]]
}
