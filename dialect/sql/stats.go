package sql

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/syssam/invql/dialect"
)

// QueryStats counts the reads made through a StatsDriver.
type QueryStats struct {
	Queries  atomic.Int64
	Errors   atomic.Int64
	Slow     atomic.Int64
	Duration atomic.Int64 // nanoseconds
}

// Snapshot returns the current counters.
func (s *QueryStats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Queries:  s.Queries.Load(),
		Errors:   s.Errors.Load(),
		Slow:     s.Slow.Load(),
		Duration: time.Duration(s.Duration.Load()),
	}
}

// Reset sets all counters to zero.
func (s *QueryStats) Reset() {
	s.Queries.Store(0)
	s.Errors.Store(0)
	s.Slow.Store(0)
	s.Duration.Store(0)
}

// StatsSnapshot is a point-in-time copy of QueryStats.
type StatsSnapshot struct {
	Queries  int64
	Errors   int64
	Slow     int64
	Duration time.Duration
}

// Avg returns the average query duration.
func (s StatsSnapshot) Avg() time.Duration {
	if s.Queries == 0 {
		return 0
	}
	return s.Duration / time.Duration(s.Queries)
}

func (s StatsSnapshot) String() string {
	return fmt.Sprintf("queries=%d errors=%d slow=%d avg=%s", s.Queries, s.Errors, s.Slow, s.Avg())
}

// LogValue implements slog.LogValuer.
func (s StatsSnapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("queries", s.Queries),
		slog.Int64("errors", s.Errors),
		slog.Int64("slow", s.Slow),
		slog.Duration("avg", s.Avg()),
	)
}

// SlowQueryHook is called for every query slower than the threshold.
type SlowQueryHook func(ctx context.Context, query string, args []any, duration time.Duration)

// StatsDriver counts the queries of a driver and reports slow ones.
type StatsDriver struct {
	dialect.Driver
	stats     QueryStats
	mu        sync.RWMutex
	threshold time.Duration
	hook      SlowQueryHook
}

// StatsOption configures a StatsDriver.
type StatsOption func(*StatsDriver)

// WithSlowThreshold sets the duration above which a query is slow.
// Defaults to 100ms.
func WithSlowThreshold(d time.Duration) StatsOption {
	return func(s *StatsDriver) {
		s.threshold = d
	}
}

// WithSlowQueryHook sets the function called for slow queries.
func WithSlowQueryHook(hook SlowQueryHook) StatsOption {
	return func(s *StatsDriver) {
		s.hook = hook
	}
}

// WithSlowQueryLog logs slow queries at warn level. A nil logger uses
// slog.Default.
func WithSlowQueryLog(logger *slog.Logger) StatsOption {
	if logger == nil {
		logger = slog.Default()
	}
	return WithSlowQueryHook(func(ctx context.Context, query string, args []any, duration time.Duration) {
		logger.WarnContext(ctx, "invql: slow query", "duration", duration, "sql", query, "args", len(args))
	})
}

// NewStatsDriver wraps drv.
//
//	drv, _ := sql.Open("postgres", dsn)
//	stats := sql.NewStatsDriver(drv,
//	    sql.WithSlowThreshold(200*time.Millisecond),
//	    sql.WithSlowQueryLog(logger),
//	)
//	cat := sql.NewCatalog(stats)
func NewStatsDriver(drv dialect.Driver, opts ...StatsOption) *StatsDriver {
	s := &StatsDriver{
		Driver:    drv,
		threshold: 100 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// QueryStats returns the live counters.
func (d *StatsDriver) QueryStats() *QueryStats {
	return &d.stats
}

// SlowThreshold returns the slow query threshold.
func (d *StatsDriver) SlowThreshold() time.Duration {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.threshold
}

// SetSlowThreshold updates the slow query threshold.
func (d *StatsDriver) SetSlowThreshold(threshold time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.threshold = threshold
}

// Query runs the query and records it.
func (d *StatsDriver) Query(ctx context.Context, query string, args, v any) error {
	start := time.Now()
	err := d.Driver.Query(ctx, query, args, v)
	elapsed := time.Since(start)

	d.stats.Queries.Add(1)
	d.stats.Duration.Add(int64(elapsed))
	if err != nil {
		d.stats.Errors.Add(1)
	}
	d.mu.RLock()
	threshold, hook := d.threshold, d.hook
	d.mu.RUnlock()
	if elapsed > threshold {
		d.stats.Slow.Add(1)
		if hook != nil {
			argv, _ := args.([]any)
			hook(ctx, query, argv, elapsed)
		}
	}
	return err
}

// DebugDriver logs every query at debug level.
type DebugDriver struct {
	dialect.Driver
	logger *slog.Logger
}

// NewDebugDriver wraps drv with debug logging. A nil logger uses slog.Default.
func NewDebugDriver(drv dialect.Driver, logger *slog.Logger) *DebugDriver {
	if logger == nil {
		logger = slog.Default()
	}
	return &DebugDriver{Driver: drv, logger: logger}
}

// Query logs and runs a query.
func (d *DebugDriver) Query(ctx context.Context, query string, args, v any) error {
	d.logger.DebugContext(ctx, "invql: query", "sql", query, "args", args)
	return d.Driver.Query(ctx, query, args, v)
}

var (
	_ dialect.Driver = (*StatsDriver)(nil)
	_ dialect.Driver = (*DebugDriver)(nil)
)
