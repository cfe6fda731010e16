package queryrunner

import (
	"context"
	"errors"
	"testing"

	"github.com/myr-db/myr/internal/ring"
)

type sliceStream struct {
	rows []QueryRow
	pos  int
	fail error
}

func (s *sliceStream) Next(ctx context.Context) (QueryRow, bool, error) {
	if s.fail != nil && s.pos == len(s.rows) {
		return QueryRow{}, false, s.fail
	}
	if s.pos >= len(s.rows) {
		return QueryRow{}, false, nil
	}
	row := s.rows[s.pos]
	s.pos++
	return row, true, nil
}

func (s *sliceStream) Close() error { return nil }

type fakeBackend struct {
	stream *sliceStream
	err    error
}

func (f *fakeBackend) RunQuery(ctx context.Context, sql string) (RowStream, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.stream, nil
}

func rows(n int) []QueryRow {
	out := make([]QueryRow, n)
	for i := range out {
		out[i] = QueryRow{Values: []string{"v"}}
	}
	return out
}

func TestExecuteStreamingPushesAllRows(t *testing.T) {
	backend := &fakeBackend{stream: &sliceStream{rows: rows(5)}}
	runner := New(backend)
	buffer := ring.New[QueryRow](10)

	summary, err := runner.ExecuteStreaming(context.Background(), "SELECT 1", buffer, nil)
	if err != nil {
		t.Fatalf("ExecuteStreaming: %v", err)
	}
	if summary.RowsStreamed != 5 || summary.WasCancelled {
		t.Fatalf("summary = %+v, want 5 rows not cancelled", summary)
	}
	if buffer.Len() != 5 {
		t.Fatalf("buffer.Len() = %d, want 5", buffer.Len())
	}
}

func TestExecuteStreamingStopsWhenCancelled(t *testing.T) {
	backend := &fakeBackend{stream: &sliceStream{rows: rows(100)}}
	runner := New(backend)
	buffer := ring.New[QueryRow](200)

	cancellation := &CancellationToken{}
	cancellation.Cancel()

	summary, err := runner.ExecuteStreaming(context.Background(), "SELECT 1", buffer, cancellation)
	if err != nil {
		t.Fatalf("ExecuteStreaming: %v", err)
	}
	if !summary.WasCancelled {
		t.Fatal("expected WasCancelled = true")
	}
	if summary.RowsStreamed != 0 {
		t.Fatalf("RowsStreamed = %d, want 0 (cancelled before first fetch)", summary.RowsStreamed)
	}
}

func TestExecuteStreamingPropagatesBackendError(t *testing.T) {
	wantErr := errors.New("boom")
	backend := &fakeBackend{err: wantErr}
	runner := New(backend)
	buffer := ring.New[QueryRow](10)

	_, err := runner.ExecuteStreaming(context.Background(), "SELECT 1", buffer, nil)
	if err == nil || !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapping %v", err, wantErr)
	}
}

func TestExecuteStreamingPropagatesFetchError(t *testing.T) {
	wantErr := errors.New("fetch failed")
	backend := &fakeBackend{stream: &sliceStream{rows: rows(2), fail: wantErr}}
	runner := New(backend)
	buffer := ring.New[QueryRow](10)

	summary, err := runner.ExecuteStreaming(context.Background(), "SELECT 1", buffer, nil)
	if err == nil || !errors.Is(err, wantErr) {
		t.Fatalf("err = %v, want wrapping %v", err, wantErr)
	}
	if summary.RowsStreamed != 2 {
		t.Fatalf("RowsStreamed = %d, want 2 (rows before the failing fetch)", summary.RowsStreamed)
	}
}

func TestCancellationTokenIdempotentCancel(t *testing.T) {
	var c CancellationToken
	if c.IsCancelled() {
		t.Fatal("zero value should not be cancelled")
	}
	c.Cancel()
	c.Cancel()
	if !c.IsCancelled() {
		t.Fatal("expected cancelled after Cancel()")
	}
}
