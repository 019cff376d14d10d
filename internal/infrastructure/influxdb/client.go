package influxdb

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api/write"

	"github.com/nerrad567/upsdash-core/internal/infrastructure/config"
)

const (
	connectTimeout = 10 * time.Second
	pingTimeout    = 5 * time.Second

	fallbackBatchSize     = 100
	fallbackFlushInterval = 10 * time.Second
)

var errUnhealthy = errors.New("server reports unhealthy")

// pointWriter is the part of api.WriteAPI the client needs.
type pointWriter interface {
	WritePoint(point *write.Point)
	Flush()
}

// Client queues one point per UPS poll into the library's batching,
// non-blocking write API.
type Client struct {
	client   influxdb2.Client
	writeAPI pointWriter

	closed   atomic.Bool
	queued   atomic.Uint64
	failures atomic.Uint64

	mu      sync.RWMutex
	onError func(err error)
}

// writeOptions applies the batch settings, falling back to sane values when
// the config leaves them unset.
func writeOptions(cfg config.InfluxDBConfig) *influxdb2.Options {
	batch := uint(fallbackBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize)
	}
	flush := fallbackFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}
	return influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds())) // #nosec G115 -- positive by construction
}

// Connect pings the server and starts the write API. It returns ErrDisabled
// when cfg.Enabled is false.
func Connect(ctx context.Context, cfg config.InfluxDBConfig) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	ic := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg))
	if err := ping(ctx, ic, connectTimeout); err != nil {
		ic.Close()
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}

	wa := ic.WriteAPI(cfg.Org, cfg.Bucket)
	c := &Client{client: ic, writeAPI: wa}
	go c.handleWriteErrors(wa.Errors())
	return c, nil
}

func ping(ctx context.Context, ic influxdb2.Client, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	ok, err := ic.Ping(ctx)
	switch {
	case err != nil:
		return err
	case !ok:
		return errUnhealthy
	}
	return nil
}

// handleWriteErrors drains the write API's error channel until it closes.
func (c *Client) handleWriteErrors(errs <-chan error) {
	for err := range errs {
		c.failures.Add(1)

		c.mu.RLock()
		fn := c.onError
		c.mu.RUnlock()
		if fn != nil {
			fn(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		}
	}
}

// SetOnError registers a callback for asynchronous write failures.
func (c *Client) SetOnError(fn func(err error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// write queues p unless the client is closed.
func (c *Client) write(p *write.Point) {
	if c.closed.Load() || c.writeAPI == nil {
		return
	}
	c.writeAPI.WritePoint(p)
	c.queued.Add(1)
}

// Flush blocks until buffered points are sent. No-op after Close.
func (c *Client) Flush() {
	if c.closed.Load() || c.writeAPI == nil {
		return
	}
	c.writeAPI.Flush()
}

// Close flushes once and releases the HTTP client. Safe to call on a zero
// Client and more than once.
func (c *Client) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	if c.writeAPI != nil {
		c.writeAPI.Flush()
	}
	if c.client != nil {
		c.client.Close()
	}
	return nil
}

// IsConnected reports whether the client is still open.
func (c *Client) IsConnected() bool {
	return !c.closed.Load()
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if c.closed.Load() || c.client == nil {
		return ErrNotConnected
	}
	if err := ping(ctx, c.client, pingTimeout); err != nil {
		return fmt.Errorf("influxdb health check failed: %w", err)
	}
	return nil
}

// Queued is the number of points handed to the write API.
func (c *Client) Queued() uint64 { return c.queued.Load() }

// Failures is the number of asynchronous write errors seen.
func (c *Client) Failures() uint64 { return c.failures.Load() }
