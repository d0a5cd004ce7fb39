package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/taskdesk/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	defaultBatchSize      = 100
	defaultFlushIntervalS = 10
	serviceTag            = "taskdesk"
	millisecondsPerSecond = 1000
)

// Stats counts points handed to the write API and asynchronous write
// failures since Connect.
type Stats struct {
	Points      int64 `json:"points"`
	WriteErrors int64 `json:"write_errors"`
}

// Client records Taskdesk telemetry points in InfluxDB v2.
//
// Writes are non-blocking and batched by the underlying write API; failures
// surface asynchronously through the SetOnError callback. All methods are
// safe for concurrent use and a nil *Client is a valid no-op recorder.
type Client struct {
	client   influxdb2.Client
	writeAPI api.WriteAPI
	now      func() time.Time

	open    atomic.Bool
	points  atomic.Int64
	errored atomic.Int64

	mu      sync.Mutex
	onError func(err error)
}

// clientOptions turns the telemetry section into client options. Every
// point carries service=taskdesk, plus instance when one is configured.
func clientOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	flushSeconds := cfg.FlushInterval
	if flushSeconds <= 0 {
		flushSeconds = defaultFlushIntervalS
	}

	// #nosec G115 -- both values are positive here
	opts := influxdb2.DefaultOptions().
		SetBatchSize(uint(batchSize)).
		SetFlushInterval(uint(flushSeconds)*millisecondsPerSecond).
		AddDefaultTag("service", serviceTag)
	if cfg.Instance != "" {
		opts.AddDefaultTag("instance", cfg.Instance)
	}
	return opts
}

// Connect pings the server and prepares a batched write API for the
// configured org and bucket. It returns ErrDisabled when telemetry is off.
func Connect(cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	ic := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, clientOptions(cfg))

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := ping(ctx, ic); err != nil {
		ic.Close()
		return nil, fmt.Errorf("%w: %w", ErrConnectionFailed, err)
	}

	c := &Client{
		client:   ic,
		writeAPI: ic.WriteAPI(cfg.Org, cfg.Bucket),
		now:      time.Now,
	}
	c.open.Store(true)

	go c.watchWriteErrors(c.writeAPI.Errors())

	return c, nil
}

func ping(ctx context.Context, ic influxdb2.Client) error {
	healthy, err := ic.Ping(ctx)
	if err != nil {
		return fmt.Errorf("ping: %w", err)
	}
	if !healthy {
		return fmt.Errorf("ping: server not healthy")
	}
	return nil
}

// watchWriteErrors drains the write API's error channel until Close.
func (c *Client) watchWriteErrors(errs <-chan error) {
	for err := range errs {
		c.errored.Add(1)

		c.mu.Lock()
		callback := c.onError
		c.mu.Unlock()
		if callback != nil {
			callback(err)
		}
	}
}

// Close flushes buffered points and releases the client. Later writes are
// dropped.
func (c *Client) Close() error {
	if c == nil || !c.open.CompareAndSwap(true, false) {
		return nil
	}
	c.writeAPI.Flush()
	c.client.Close()
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	checkCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := ping(checkCtx, c.client); err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	return nil
}

// IsConnected reports whether the client is open.
func (c *Client) IsConnected() bool {
	return c != nil && c.open.Load()
}

// Stats returns the point and error counters. A nil client reports zeros.
func (c *Client) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	return Stats{
		Points:      c.points.Load(),
		WriteErrors: c.errored.Load(),
	}
}

// SetOnError registers a callback for asynchronous write failures.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onError = callback
}

// Flush blocks until buffered points are written. No-op after Close.
func (c *Client) Flush() {
	if !c.IsConnected() {
		return
	}
	c.writeAPI.Flush()
}
