// Command myr-bench drives a query against a MySQL-compatible database and
// reports streaming throughput metrics, asserting minimum performance
// thresholds when requested.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/myr-db/myr/internal/mysqlbackend"
	"github.com/myr-db/myr/internal/profile"
	"github.com/myr-db/myr/internal/queryrunner"
	"github.com/myr-db/myr/internal/ring"
)

func main() {
	var (
		host                = flag.String("host", "127.0.0.1", "Server host")
		port                = flag.Int("port", 3306, "Server port")
		user                = flag.String("user", "root", "Database user")
		database            = flag.String("database", "", "Database to connect to")
		sqlText             = flag.String("sql", "", "SQL statement to benchmark")
		seedRows            = flag.Int("seed-rows", 0, "Rows to seed into a scratch table before running")
		assertFirstRowMS    = flag.Int64("assert-first-row-ms", -1, "Fail if first-row latency exceeds this many milliseconds")
		assertMinRowsPerSec = flag.Float64("assert-min-rows-per-sec", -1, "Fail if streaming throughput falls below this")
	)
	flag.Parse()

	if *sqlText == "" {
		fmt.Fprintln(os.Stderr, "myr-bench: -sql is required")
		os.Exit(1)
	}

	p := profile.NewConnectionProfile("bench", *host, *user)
	p.Port = uint16(*port)
	p.Database = *database

	conn := mysqlbackend.NewConnectionBackend(p)
	ctx, cancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer cancel()
	if err := conn.Connect(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "myr-bench: connect: %v\n", err)
		os.Exit(1)
	}
	defer conn.Close(context.Background())

	dataBackend := mysqlbackend.NewDataBackend(conn.DB())

	if *seedRows > 0 {
		if err := seed(ctx, dataBackend, *seedRows); err != nil {
			fmt.Fprintf(os.Stderr, "myr-bench: seed: %v\n", err)
			os.Exit(1)
		}
	}

	runner := queryrunner.New(dataBackend)
	buffer := ring.New[queryrunner.QueryRow](2000)

	queryCtx, queryCancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer queryCancel()

	summary, err := runner.ExecuteStreaming(queryCtx, *sqlText, buffer, &queryrunner.CancellationToken{})
	if err != nil {
		fmt.Fprintf(os.Stderr, "myr-bench: query: %v\n", err)
		os.Exit(1)
	}

	// ExecuteStreaming only reports a Summary once the stream ends, so there
	// is no mid-stream timestamp for the first row: first-row latency is
	// approximated as the average time per streamed row (the whole elapsed
	// time when at most one row came back).
	firstRowLatency := summary.Elapsed
	if summary.RowsStreamed > 1 {
		firstRowLatency = summary.Elapsed / time.Duration(summary.RowsStreamed)
	}

	rowsPerSec := 0.0
	if summary.Elapsed > 0 {
		rowsPerSec = float64(summary.RowsStreamed) / summary.Elapsed.Seconds()
	}

	fmt.Printf("metric.rows_streamed=%d\n", summary.RowsStreamed)
	fmt.Printf("metric.elapsed_ms=%d\n", summary.Elapsed.Milliseconds())
	fmt.Printf("metric.first_row_ms=%d\n", firstRowLatency.Milliseconds())
	fmt.Printf("metric.rows_per_sec=%.2f\n", rowsPerSec)

	failed := false
	if *assertFirstRowMS >= 0 && firstRowLatency.Milliseconds() > *assertFirstRowMS {
		fmt.Fprintf(os.Stderr, "myr-bench: first-row latency %dms exceeds assertion %dms\n", firstRowLatency.Milliseconds(), *assertFirstRowMS)
		failed = true
	}
	if *assertMinRowsPerSec >= 0 && rowsPerSec < *assertMinRowsPerSec {
		fmt.Fprintf(os.Stderr, "myr-bench: throughput %.2f rows/sec below assertion %.2f\n", rowsPerSec, *assertMinRowsPerSec)
		failed = true
	}
	if failed {
		os.Exit(1)
	}
}

func seed(ctx context.Context, backend *mysqlbackend.DataBackend, rows int) error {
	stream, err := backend.RunQuery(ctx,
		"CREATE TABLE IF NOT EXISTS myr_bench_seed (id INT PRIMARY KEY AUTO_INCREMENT, payload VARCHAR(255))")
	if err != nil {
		return err
	}
	stream.Close()

	for i := 0; i < rows; i++ {
		stream, err := backend.RunQuery(ctx, fmt.Sprintf(
			"INSERT INTO myr_bench_seed (payload) VALUES ('row-%d')", i))
		if err != nil {
			return err
		}
		stream.Close()
	}
	return nil
}
