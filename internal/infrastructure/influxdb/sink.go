package influxdb

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/gray-logic-persist/internal/infrastructure/config"
	"github.com/nerrad567/gray-logic-persist/internal/persistence"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
)

// pointWriter is the part of api.WriteAPI the sink uses.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Sink records runner telemetry in InfluxDB. It implements
// persistence.Observer so it can be passed as Options.Observer.
//
// Writes never block the caller: points are batched by the client and
// failures arrive asynchronously, where they are counted and logged.
// Points recorded after Close are counted as dropped.
type Sink struct {
	client influxdb2.Client
	writer pointWriter
	logger persistence.Logger
	bucket string

	closed      atomic.Bool
	written     atomic.Uint64
	dropped     atomic.Uint64
	writeErrors atomic.Uint64
}

// SinkStats counts what happened to the points handed to a Sink.
type SinkStats struct {
	Written     uint64 `json:"written"`
	Dropped     uint64 `json:"dropped"`
	WriteErrors uint64 `json:"write_errors"`
}

var _ persistence.Observer = (*Sink)(nil)

// Open connects to InfluxDB, verifies the server with a ping and returns a
// sink writing to cfg.Bucket.
//
// Returns:
//   - *Sink: Ready to record runs
//   - error: ErrDisabled, or ErrConnectionFailed wrapping the ping failure
func Open(cfg config.InfluxDBConfig, logger persistence.Logger) (*Sink, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	client := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	healthy, err := client.Ping(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: ping failed: %w", ErrConnectionFailed, err)
	}
	if !healthy {
		client.Close()
		return nil, fmt.Errorf("%w: server not healthy", ErrConnectionFailed)
	}

	writeAPI := client.WriteAPI(cfg.Org, cfg.Bucket)
	s := newSink(writeAPI, cfg.Bucket, logger)
	s.client = client
	go s.drain(writeAPI.Errors())

	return s, nil
}

func newSink(w pointWriter, bucket string, logger persistence.Logger) *Sink {
	if logger == nil {
		logger = persistence.Discard()
	}
	return &Sink{writer: w, bucket: bucket, logger: logger}
}

// clientOptions applies the configured batching, falling back to defaults
// for non-positive values.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize) // #nosec G115 -- positive
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}
	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds())) // #nosec G115 -- positive
}

// ObserveRun records one finished run as a point in "transactions".
func (s *Sink) ObserveRun(report persistence.RunReport) {
	s.record(transactionPoint(report, time.Now()))
}

// WriteRunnerStats records a snapshot of runner and pool counters together
// with the sink's own counters.
func (s *Sink) WriteRunnerStats(stats persistence.Stats, pool persistence.PoolStats) {
	s.record(statsPoint(stats, pool, s.Stats(), time.Now()))
}

func (s *Sink) record(p *write.Point) {
	if s.closed.Load() || s.writer == nil {
		s.dropped.Add(1)
		return
	}
	s.writer.WritePoint(p)
	s.written.Add(1)
}

// drain consumes asynchronous write failures until the client closes.
func (s *Sink) drain(errs <-chan error) {
	for err := range errs {
		s.writeErrors.Add(1)
		s.logger.Error("influxdb write failed", "bucket", s.bucket, "error", err)
	}
}

// Stats returns the sink counters.
func (s *Sink) Stats() SinkStats {
	return SinkStats{
		Written:     s.written.Load(),
		Dropped:     s.dropped.Load(),
		WriteErrors: s.writeErrors.Load(),
	}
}

// Flush blocks until buffered points are sent. No-op after Close.
func (s *Sink) Flush() {
	if s.closed.Load() || s.writer == nil {
		return
	}
	s.writer.Flush()
}

// HealthCheck pings the server.
func (s *Sink) HealthCheck(ctx context.Context) error {
	if s.closed.Load() || s.client == nil {
		return ErrNotConnected
	}

	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	healthy, err := s.client.Ping(ctx)
	if err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check failed: server not healthy")
	}
	return nil
}

// Close flushes pending points and closes the client. Safe to call twice.
func (s *Sink) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	if s.writer != nil {
		s.writer.Flush()
	}
	if s.client != nil {
		s.client.Close()
	}
	st := s.Stats()
	s.logger.Debug("influxdb sink closed", "written", st.Written, "dropped", st.Dropped, "write_errors", st.WriteErrors)
	return nil
}
