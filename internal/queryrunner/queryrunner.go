// Package queryrunner drives a single query to completion, streaming rows
// into a ring buffer while honoring cooperative cancellation.
package queryrunner

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/myr-db/myr/internal/ring"
)

// QueryRow is one row of query results, already stringified for display.
type QueryRow struct {
	Values []string
}

// CancellationToken is a cooperative, poll-before-fetch cancel flag. The
// zero value is a live (not cancelled) token.
type CancellationToken struct {
	cancelled atomic.Bool
}

// Cancel marks the token cancelled. Safe to call more than once.
func (c *CancellationToken) Cancel() { c.cancelled.Store(true) }

// IsCancelled reports whether Cancel has been called.
func (c *CancellationToken) IsCancelled() bool { return c.cancelled.Load() }

// RowStream is the backend-provided cursor over a running query's rows.
// Next returns (row, true, nil) while rows remain, (zero, false, nil) at
// normal end of stream, and a non-nil error on a backend failure.
type RowStream interface {
	Next(ctx context.Context) (QueryRow, bool, error)
	Close() error
}

// Backend executes sql against a live connection and returns a streaming
// cursor over the result set.
type Backend interface {
	RunQuery(ctx context.Context, sql string) (RowStream, error)
}

// Summary reports the outcome of one ExecuteStreaming call.
type Summary struct {
	RowsStreamed uint64
	WasCancelled bool
	Elapsed      time.Duration
}

// Runner executes queries against a Backend.
type Runner struct {
	backend Backend
	now     func() time.Time
}

// New builds a Runner over backend.
func New(backend Backend) *Runner {
	return &Runner{backend: backend, now: time.Now}
}

// ExecuteStreaming runs sql, pushing every row into buffer, and checks
// cancellation before each fetch so an in-flight cancel stops promptly
// between rows rather than waiting for the full result set.
func (r *Runner) ExecuteStreaming(ctx context.Context, sql string, buffer *ring.Buffer[QueryRow], cancellation *CancellationToken) (Summary, error) {
	started := r.now()

	stream, err := r.backend.RunQuery(ctx, sql)
	if err != nil {
		return Summary{}, fmt.Errorf("queryrunner: run query: %w", err)
	}
	defer stream.Close()

	var rowsStreamed uint64
	for {
		if cancellation != nil && cancellation.IsCancelled() {
			return Summary{
				RowsStreamed: rowsStreamed,
				WasCancelled: true,
				Elapsed:      r.now().Sub(started),
			}, nil
		}

		row, ok, err := stream.Next(ctx)
		if err != nil {
			return Summary{RowsStreamed: rowsStreamed, Elapsed: r.now().Sub(started)},
				fmt.Errorf("queryrunner: fetch row: %w", err)
		}
		if !ok {
			break
		}

		buffer.Push(row)
		rowsStreamed++
	}

	return Summary{
		RowsStreamed: rowsStreamed,
		WasCancelled: false,
		Elapsed:      r.now().Sub(started),
	}, nil
}
