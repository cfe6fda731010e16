package reducer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/myr-db/myr/internal/actions"
	"github.com/myr-db/myr/internal/pagination"
	"github.com/myr-db/myr/internal/profile"
	"github.com/myr-db/myr/internal/queryrunner"
	"github.com/myr-db/myr/internal/ring"
	"github.com/myr-db/myr/internal/schema"
	"github.com/myr-db/myr/internal/supervisor"
)

type stubConnectionBackend struct{ err error }

func (s *stubConnectionBackend) Connect(ctx context.Context) error { return s.err }
func (s *stubConnectionBackend) Ping(ctx context.Context) error    { return nil }
func (s *stubConnectionBackend) Close(ctx context.Context) error   { return nil }

type stubSchemaBackend struct{}

func (stubSchemaBackend) FetchSchema(ctx context.Context) (*schema.Catalog, error) {
	return &schema.Catalog{}, nil
}

type keysetSchemaBackend struct{}

func (keysetSchemaBackend) FetchSchema(ctx context.Context) (*schema.Catalog, error) {
	return &schema.Catalog{Databases: []schema.DatabaseSchema{
		{
			Name: "app",
			Tables: []schema.TableSchema{
				{
					Name: "users",
					Columns: []schema.ColumnSchema{
						{Name: "id", DataType: "bigint"},
						{Name: "email", DataType: "varchar"},
					},
				},
			},
		},
	}}, nil
}

type stubRowStream struct {
	rows []queryrunner.QueryRow
	i    int
	err  error
}

func (s *stubRowStream) Next(ctx context.Context) (queryrunner.QueryRow, bool, error) {
	if s.err != nil {
		return queryrunner.QueryRow{}, false, s.err
	}
	if s.i >= len(s.rows) {
		return queryrunner.QueryRow{}, false, nil
	}
	row := s.rows[s.i]
	s.i++
	return row, true, nil
}
func (s *stubRowStream) Close() error { return nil }

type stubDataBackend struct {
	stream *stubRowStream
	err    error
}

func (b *stubDataBackend) RunQuery(ctx context.Context, sql string) (queryrunner.RowStream, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.stream, nil
}

func newTestModel(connectErr error, data *stubDataBackend) *Model {
	return newTestModelWithSchema(connectErr, data, stubSchemaBackend{})
}

func newTestModelWithSchema(connectErr error, data *stubDataBackend, schemaBackend schema.Backend) *Model {
	connectFactory := func(p profile.ConnectionProfile) supervisor.ConnectionBackend {
		return &stubConnectionBackend{err: connectErr}
	}
	return New(connectFactory, data, schemaBackend, true)
}

func drainOne(t *testing.T, m *Model) {
	t.Helper()
	select {
	case msg := <-m.results:
		m.Update(msg)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a completion message")
	}
}

func TestQuitRequiresTwoPresses(t *testing.T) {
	m := newTestModel(nil, &stubDataBackend{stream: &stubRowStream{}})
	m.Update(Msg{Kind: Quit})
	if m.ShouldQuit() {
		t.Fatal("first Quit should only arm confirmation")
	}
	m.Update(Msg{Kind: Quit})
	if !m.ShouldQuit() {
		t.Fatal("second consecutive Quit should exit")
	}
}

func TestQuitArmIsClearedByOtherMessages(t *testing.T) {
	m := newTestModel(nil, &stubDataBackend{stream: &stubRowStream{}})
	m.Update(Msg{Kind: Quit})
	m.Update(Msg{Kind: ToggleHelp})
	m.Update(Msg{Kind: Quit})
	if m.ShouldQuit() {
		t.Fatal("an intervening message should have disarmed the exit confirmation")
	}
}

func TestNextPaneCyclesThroughExplorerResultsEditor(t *testing.T) {
	m := newTestModel(nil, &stubDataBackend{stream: &stubRowStream{}})
	if m.Pane() != actions.ConnectionWizard {
		t.Fatal("model should start on the connection wizard")
	}
	m.Update(Msg{Kind: NextPane})
	if m.Pane() != actions.SchemaExplorer {
		t.Fatalf("pane = %v, want SchemaExplorer", m.Pane())
	}
	m.Update(Msg{Kind: NextPane})
	if m.Pane() != actions.Results {
		t.Fatalf("pane = %v, want Results", m.Pane())
	}
	m.Update(Msg{Kind: NextPane})
	if m.Pane() != actions.QueryEditor {
		t.Fatalf("pane = %v, want QueryEditor", m.Pane())
	}
	m.Update(Msg{Kind: NextPane})
	if m.Pane() != actions.SchemaExplorer {
		t.Fatalf("pane = %v, want SchemaExplorer after wraparound", m.Pane())
	}
}

func TestNextPaneArmsPaneFlash(t *testing.T) {
	m := newTestModel(nil, &stubDataBackend{stream: &stubRowStream{}})
	m.Update(Msg{Kind: NextPane})
	if m.paneFlashTicks != PaneFlashTicks {
		t.Fatalf("paneFlashTicks = %d, want %d", m.paneFlashTicks, PaneFlashTicks)
	}
	m.Update(Msg{Kind: Tick})
	if m.paneFlashTicks != PaneFlashTicks-1 {
		t.Fatalf("paneFlashTicks after tick = %d, want %d", m.paneFlashTicks, PaneFlashTicks-1)
	}
}

func TestSuccessfulConnectMovesToSchemaExplorerAndClearsError(t *testing.T) {
	m := newTestModel(nil, &stubDataBackend{stream: &stubRowStream{}})
	m.wizard = WizardForm{ProfileName: "local", Host: "127.0.0.1", Port: 3306, User: "root"}
	m.Update(Msg{Kind: Connect})
	drainOne(t, m)

	if m.ErrorPanel().Visible {
		t.Fatal("successful connect should not show an error")
	}
	if m.Pane() != actions.SchemaExplorer {
		t.Fatalf("pane = %v, want SchemaExplorer after connect", m.Pane())
	}
	if !m.IsConnected() {
		t.Fatal("supervisor should report connected")
	}
}

func TestFailedConnectShowsConnectFailureError(t *testing.T) {
	m := newTestModel(errors.New("access denied"), &stubDataBackend{stream: &stubRowStream{}})
	m.Update(Msg{Kind: Connect})
	drainOne(t, m)

	panel := m.ErrorPanel()
	if !panel.Visible || panel.Kind != ConnectFailure {
		t.Fatalf("ErrorPanel() = %+v, want a visible ConnectFailure", panel)
	}
}

func TestRiskySQLParksPendingConfirmationInsteadOfRunning(t *testing.T) {
	m := newTestModel(nil, &stubDataBackend{stream: &stubRowStream{}})
	m.pane = actions.QueryEditor
	m.queryText = "DELETE FROM users"
	m.Update(Msg{Kind: Submit})

	if m.queryRunning {
		t.Fatal("a risky statement must not run before confirmation")
	}
	panel := m.ErrorPanel()
	if !panel.Visible || panel.Kind != SafeModeViolation {
		t.Fatalf("ErrorPanel() = %+v, want a visible SafeModeViolation", panel)
	}
	if !m.hasPendingConfirm {
		t.Fatal("expected a pending confirmation to be recorded")
	}
}

func TestConfirmingPendingQueryRunsIt(t *testing.T) {
	row := queryrunner.QueryRow{Values: []string{"1"}}
	m := newTestModel(nil, &stubDataBackend{stream: &stubRowStream{rows: []queryrunner.QueryRow{row}}})
	m.pane = actions.QueryEditor
	m.queryText = "DELETE FROM users"
	m.Update(Msg{Kind: Submit})

	m.ConfirmPendingQuery()
	if !m.queryRunning {
		t.Fatal("confirmed statement should be dispatched")
	}
	drainOne(t, m)
	if m.ErrorPanel().Visible {
		t.Fatal("successful confirmed query should clear the error panel")
	}
	if m.Rows().Len() != 1 {
		t.Fatalf("Rows().Len() = %d, want 1", m.Rows().Len())
	}
}

func TestSafeReadQueryRunsWithoutConfirmation(t *testing.T) {
	row := queryrunner.QueryRow{Values: []string{"a"}}
	m := newTestModel(nil, &stubDataBackend{stream: &stubRowStream{rows: []queryrunner.QueryRow{row}}})
	m.pane = actions.QueryEditor
	m.queryText = "SELECT * FROM users"
	m.Update(Msg{Kind: Submit})

	if !m.queryRunning {
		t.Fatal("a safe SELECT should be dispatched immediately")
	}
	drainOne(t, m)
	if m.Rows().Len() != 1 {
		t.Fatalf("Rows().Len() = %d, want 1", m.Rows().Len())
	}
}

func TestTransientQueryFailureRetriesSameSQLOnce(t *testing.T) {
	data := &stubDataBackend{err: errors.New("connection reset by peer")}
	m := newTestModel(nil, data)
	m.pane = actions.QueryEditor
	m.queryText = "SELECT 1"
	m.Update(Msg{Kind: Submit})
	drainOne(t, m)

	if m.connectIntent == IntentAutoReconnect {
		t.Fatal("a transient failure with retries remaining must re-dispatch, not reconnect")
	}
	if m.queryRetryAttempts != 1 {
		t.Fatalf("queryRetryAttempts = %d, want 1", m.queryRetryAttempts)
	}
	if !m.queryRunning {
		t.Fatal("expected the same SQL to be re-dispatched")
	}
	if m.ErrorPanel().Visible {
		t.Fatal("a retry in flight should not show the error panel")
	}
}

func TestConnectionLostQueryFailureTriggersAutoReconnectAfterRetryExhausted(t *testing.T) {
	data := &stubDataBackend{err: errors.New("connection reset by peer")}
	m := newTestModel(nil, data)
	m.pane = actions.QueryEditor
	m.queryText = "SELECT 1"
	m.Update(Msg{Kind: Submit})
	drainOne(t, m)
	drainOne(t, m)

	if m.connectIntent != IntentAutoReconnect {
		t.Fatalf("connectIntent = %v, want IntentAutoReconnect once the retry budget is spent", m.connectIntent)
	}
	drainOne(t, m)
	if m.ErrorPanel().Visible {
		t.Fatal("a successful auto-reconnect should clear any error")
	}
}

func TestReconnectExhaustedShowsError(t *testing.T) {
	m := newTestModel(errors.New("connection refused"), &stubDataBackend{})
	m.reconnectAttempts = supervisor.AutoReconnectLimit
	m.startConnect(IntentAutoReconnect)
	drainOne(t, m)

	panel := m.ErrorPanel()
	if !panel.Visible || panel.Kind != ReconnectExhausted {
		t.Fatalf("ErrorPanel() = %+v, want a visible ReconnectExhausted", panel)
	}
}

func TestResultsSearchIsCaseInsensitiveAndWrapsCyclically(t *testing.T) {
	m := newTestModel(nil, &stubDataBackend{})
	m.rows = ring.New[queryrunner.QueryRow](10)
	m.rows.Push(queryrunner.QueryRow{Values: []string{"Alpha"}})
	m.rows.Push(queryrunner.QueryRow{Values: []string{"beta"}})
	m.rows.Push(queryrunner.QueryRow{Values: []string{"ALPHA-TWO"}})

	m.search.Active = true
	for _, c := range "alpha" {
		m.Update(Msg{Kind: InputChar, Char: c})
	}

	if len(m.search.Matches) != 2 {
		t.Fatalf("Matches = %v, want 2 entries", m.search.Matches)
	}
	if m.search.CurrentMatch != 0 {
		t.Fatalf("CurrentMatch = %d, want 0", m.search.CurrentMatch)
	}
	m.AdvanceSearch()
	if m.search.CurrentMatch != 1 {
		t.Fatalf("CurrentMatch = %d, want 1", m.search.CurrentMatch)
	}
	m.AdvanceSearch()
	if m.search.CurrentMatch != 0 {
		t.Fatalf("CurrentMatch = %d, want 0 after wraparound", m.search.CurrentMatch)
	}
}

func TestCancelQueryWithNothingRunningReusesExitConfirmation(t *testing.T) {
	m := newTestModel(nil, &stubDataBackend{})
	m.Update(Msg{Kind: CancelQuery})
	if m.ShouldQuit() {
		t.Fatal("first idle CancelQuery should only arm confirmation")
	}
	m.Update(Msg{Kind: CancelQuery})
	if !m.ShouldQuit() {
		t.Fatal("second idle CancelQuery should exit, mirroring Quit")
	}
}

func TestCancelQueryWhileRunningCancelsInstead(t *testing.T) {
	m := newTestModel(nil, &stubDataBackend{stream: &stubRowStream{}})
	m.queryRunning = true
	m.cancellation = &queryrunner.CancellationToken{}
	m.Update(Msg{Kind: CancelQuery})
	if !m.cancellation.IsCancelled() {
		t.Fatal("CancelQuery while a query is running should cancel it")
	}
	if m.ShouldQuit() {
		t.Fatal("cancelling a running query should not also arm exit confirmation")
	}
}

func TestStartTablePreviewPlansKeysetPaginationAndRunsFirstPage(t *testing.T) {
	row := queryrunner.QueryRow{Values: []string{"1", "a@example.com"}}
	data := &stubDataBackend{stream: &stubRowStream{rows: []queryrunner.QueryRow{row}}}
	m := newTestModelWithSchema(nil, data, keysetSchemaBackend{})
	m.selection = actions.SchemaSelection{Database: "app", HasDatabase: true, Table: "users", HasTable: true}

	m.startTablePreview("SELECT * FROM `app`.`users` LIMIT 200")
	if m.paginationPlan == nil {
		t.Fatal("expected a pagination plan to be established")
	}
	if m.paginationPlan.Strategy() != pagination.Keyset {
		t.Fatalf("Strategy() = %v, want Keyset", m.paginationPlan.Strategy())
	}
	if !m.queryRunning {
		t.Fatal("expected the first page to be dispatched")
	}

	drainOne(t, m)
	if m.ErrorPanel().Visible {
		t.Fatal("a successful first page should not show the error panel")
	}
	if m.rows.Len() != 1 {
		t.Fatalf("Rows().Len() = %d, want 1", m.rows.Len())
	}
	keyColumn, ok := m.paginationPlan.KeyColumn()
	if !ok || keyColumn != "id" {
		t.Fatalf("KeyColumn() = (%q, %v), want (\"id\", true)", keyColumn, ok)
	}
	if m.paginationPlan.CanPageNext() {
		t.Fatal("a short first page (1 of 200 rows) should report CanPageNext = false")
	}
}

func TestStartTablePreviewFallsBackWhenColumnsUnknown(t *testing.T) {
	row := queryrunner.QueryRow{Values: []string{"x"}}
	data := &stubDataBackend{stream: &stubRowStream{rows: []queryrunner.QueryRow{row}}}
	m := newTestModel(nil, data)
	m.selection = actions.SchemaSelection{Database: "app", HasDatabase: true, Table: "users", HasTable: true}

	m.startTablePreview("SELECT * FROM `app`.`users` LIMIT 200")
	if m.paginationPlan != nil {
		t.Fatal("expected no pagination plan when the schema cache has no columns for the table")
	}
	if !m.queryRunning {
		t.Fatal("expected the fallback preview SQL to still be dispatched")
	}
}

func TestPaginateNextAdvancesKeysetCursorAfterCompletion(t *testing.T) {
	firstRow := queryrunner.QueryRow{Values: []string{"1", "a@example.com"}}
	data := &stubDataBackend{stream: &stubRowStream{rows: []queryrunner.QueryRow{firstRow}}}
	m := newTestModelWithSchema(nil, data, keysetSchemaBackend{})
	m.selection = actions.SchemaSelection{Database: "app", HasDatabase: true, Table: "users", HasTable: true}

	m.startTablePreview("SELECT * FROM `app`.`users` LIMIT 200")
	drainOne(t, m)

	nextRow := queryrunner.QueryRow{Values: []string{"2", "b@example.com"}}
	data.stream = &stubRowStream{rows: []queryrunner.QueryRow{nextRow}}
	m.paginate(pagination.Next)
	if !m.queryRunning {
		t.Fatal("expected a Next page query to be dispatched")
	}
	drainOne(t, m)

	if m.rows.Len() != 1 {
		t.Fatalf("Rows().Len() = %d, want 1 after the Next page replaces the buffer", m.rows.Len())
	}
	row, ok := m.rows.Get(0)
	if !ok || row.Values[0] != "2" {
		t.Fatalf("expected the buffer to hold the Next page's row, got %+v (ok=%v)", row, ok)
	}
	if !m.paginationPlan.CanPagePrevious() {
		t.Fatal("expected the Next completion to advance the page index")
	}
	sql, ok := m.paginationPlan.BuildSQL(pagination.Next)
	if !ok || !strings.Contains(sql, "WHERE `id` > 2 ") {
		t.Fatalf("BuildSQL(Next) = (%q, %v), want a window after key 2", sql, ok)
	}
}
