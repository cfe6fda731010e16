// Package reducer implements the single event-loop state machine that owns
// every mutable piece of a session: active pane, wizard form, schema cache
// handle, query editor text, the safe-mode guard, the row ring buffer,
// pagination state, and the in-flight connect/query operations. All input
// --- key events, tick events, and background task completions --- arrives
// as a Msg and is applied synchronously by Update; apart from the exported
// ConfirmPendingQuery and AdvanceSearch helpers, nothing outside Update
// mutates a Model.
package reducer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/myr-db/myr/internal/actions"
	"github.com/myr-db/myr/internal/pagination"
	"github.com/myr-db/myr/internal/profile"
	"github.com/myr-db/myr/internal/queryrunner"
	"github.com/myr-db/myr/internal/ring"
	"github.com/myr-db/myr/internal/safemode"
	"github.com/myr-db/myr/internal/schema"
	"github.com/myr-db/myr/internal/sqlgen"
	"github.com/myr-db/myr/internal/supervisor"
)

// paginationIntent tags the query currently in flight (if any) as having
// been dispatched by the pagination planner, so applyQueryCompletion knows
// whether to feed the result back into State.Advance and with which
// transition.
type paginationIntent struct {
	transition pagination.Transition
	active     bool
}

// Fixed resource and timing budget. Mirrors the limits a session is
// specified to run under.
const (
	TickRate           = 120 * time.Millisecond
	ConnectTimeout     = 8 * time.Second
	QueryTimeout       = 20 * time.Second
	RingBufferCapacity = 2000
	PreviewPageSize    = 200
	FooterActionSlots  = 7
	QueryRetryLimit    = 1
	PaneFlashTicks     = 8
)

// MsgKind discriminates the closed alphabet of events the reducer accepts.
type MsgKind int

const (
	Quit MsgKind = iota
	GoConnectionWizard
	ToggleHelp
	NextPane
	TogglePalette
	TogglePerfOverlay
	ToggleSafeMode
	Submit
	Connect
	CancelQuery
	Navigate
	InvokeActionSlot
	InputChar
	Backspace
	ClearInput
	Tick
	connectCompleted
	queryCompleted
)

// Direction discriminates Navigate's four arrow/vi-key directions.
type Direction int

const (
	Up Direction = iota
	Down
	Left
	Right
)

// Msg is the sum type the reducer's Update consumes. Only the field(s)
// relevant to Kind are populated.
type Msg struct {
	Kind      MsgKind
	Direction Direction
	Slot      int
	Char      rune

	connectToken uint64
	connectErr   error
	queryToken   uint64
	querySummary queryrunner.Summary
	queryErr     error
}

// ConnectIntent distinguishes a user-initiated connect from one fired by
// the auto-reconnect policy, since the latter must never re-arm itself.
type ConnectIntent int

const (
	IntentManual ConnectIntent = iota
	IntentAutoReconnect
)

// ErrorKind restricts which situations are allowed to populate the error
// panel; anything else is reported on the status line instead.
type ErrorKind int

const (
	ConnectFailure ErrorKind = iota
	QueryFailure
	SafeModeViolation
	ReconnectExhausted
)

// ErrorPanel is the modal error surface. Only showError/clearError mutate
// it, so its message set stays restricted to the four ErrorKinds above.
type ErrorPanel struct {
	Visible bool
	Kind    ErrorKind
	Message string
}

// ResultsSearch is the case-insensitive, cyclic substring search over the
// currently buffered rows.
type ResultsSearch struct {
	Active       bool
	Query        string
	Matches      []int
	CurrentMatch int
}

// WizardForm holds the connection wizard's editable fields before they are
// turned into a profile.ConnectionProfile and handed to Connect.
type WizardForm struct {
	ProfileName string
	Host        string
	Port        uint16
	User        string
	Database    string
	FocusField  int
}

// PerfCounters is the footer's lightweight performance overlay state.
type PerfCounters struct {
	Ticks            uint64
	QueriesRun       uint64
	LastQueryElapsed time.Duration
}

// Model is the entire coordination core's state. The zero value is not
// usable; build one with New.
type Model struct {
	pane           actions.AppView
	paneFlashTicks int
	helpVisible    bool
	paletteVisible bool
	perfVisible    bool

	exitConfirmArmed bool

	safeMode    *safemode.Guard
	schemaCache *schema.Cache
	supervisor  *supervisor.Manager
	actionsEng  *actions.Engine

	connectBackend func(profile.ConnectionProfile) supervisor.ConnectionBackend
	dataBackend    queryrunner.Backend

	wizard    WizardForm
	selection actions.SchemaSelection

	queryText         string
	rows              *ring.Buffer[queryrunner.QueryRow]
	pendingRows       *ring.Buffer[queryrunner.QueryRow]
	rowCursor         int
	paginationPlan    *pagination.State
	paginationColumns []schema.ColumnSchema
	pendingPagination paginationIntent

	errorPanel ErrorPanel
	statusLine string
	search     ResultsSearch
	perf       PerfCounters

	queryRunning       bool
	cancellation       *queryrunner.CancellationToken
	queryRetryAttempts int
	reconnectAttempts  int
	connectIntent      ConnectIntent
	pendingToken       safemode.Token
	pendingSQL         string
	hasPendingConfirm  bool

	connectGeneration uint64
	queryGeneration   uint64
	results           chan Msg

	shouldQuit bool
}

// New builds a Model ready to receive Msgs. connectBackend turns a
// submitted wizard profile into a supervisor.ConnectionBackend (normally
// mysqlbackend.NewConnectionBackend); dataBackend runs queries and
// schemaBackend feeds the schema cache once connected.
func New(connectBackend func(profile.ConnectionProfile) supervisor.ConnectionBackend, dataBackend queryrunner.Backend, schemaBackend schema.Backend, safeModeEnabled bool) *Model {
	return &Model{
		pane:        actions.ConnectionWizard,
		safeMode:    safemode.New(safeModeEnabled),
		schemaCache: schema.New(schemaBackend, 30*time.Second),
		actionsEng:  actions.New(),

		connectBackend: connectBackend,
		dataBackend:    dataBackend,

		wizard: WizardForm{Port: 3306},
		rows:   ring.New[queryrunner.QueryRow](RingBufferCapacity),

		results: make(chan Msg, 8),
	}
}

// Pane reports the currently active view.
func (m *Model) Pane() actions.AppView { return m.pane }

// ShouldQuit reports whether the reducer has decided the session should
// exit.
func (m *Model) ShouldQuit() bool { return m.shouldQuit }

// ErrorPanel reports the current modal error surface.
func (m *Model) ErrorPanel() ErrorPanel { return m.errorPanel }

// StatusLine reports the current footer status text.
func (m *Model) StatusLine() string { return m.statusLine }

// QueryText reports the query editor's current contents.
func (m *Model) QueryText() string { return m.queryText }

// Rows exposes the buffered result rows.
func (m *Model) Rows() *ring.Buffer[queryrunner.QueryRow] { return m.rows }

// Search reports the current results-search state.
func (m *Model) Search() ResultsSearch { return m.search }

// IsSafeModeEnabled reports the safe-mode guard's enablement.
func (m *Model) IsSafeModeEnabled() bool { return m.safeMode.IsEnabled() }

// IsConnected reports whether the connection supervisor currently has a
// live connection.
func (m *Model) IsConnected() bool {
	if m.supervisor == nil {
		return false
	}
	return m.supervisor.Status().IsConnected
}

// QueryRunning reports whether a query is currently in flight.
func (m *Model) QueryRunning() bool { return m.queryRunning }

// PaneFlashActive reports whether the pane the session just switched to
// should still render its flash highlight.
func (m *Model) PaneFlashActive() bool { return m.paneFlashTicks > 0 }

func (m *Model) context() actions.Context {
	return actions.Context{
		View:              m.pane,
		Selection:         m.selection,
		QueryText:         m.queryText,
		HasQueryText:      m.queryText != "",
		QueryRunning:      m.queryRunning,
		HasResults:        !m.rows.IsEmpty(),
		PaginationEnabled: m.paginationPlan != nil,
		CanPageNext:       m.paginationPlan != nil && m.paginationPlan.CanPageNext(),
		CanPagePrevious:   m.paginationPlan != nil && m.paginationPlan.CanPagePrevious(),
	}
}

// showError populates the error panel with one of the restricted kinds.
func (m *Model) showError(kind ErrorKind, message string) {
	m.errorPanel = ErrorPanel{Visible: true, Kind: kind, Message: message}
}

func (m *Model) clearError() {
	m.errorPanel = ErrorPanel{}
}

var transientFailureSubstrings = []string{
	"timed out",
	"timeout",
	"temporary",
	"connection reset",
	"connection refused",
	"connection closed",
	"broken pipe",
	"server has gone away",
	"lost connection",
	"pool was disconnect",
	"i/o error",
	"io error",
}

var connectionLostSubstrings = []string{
	"pool was disconnect",
	"server has gone away",
	"lost connection",
	"connection reset",
	"connection refused",
	"connection closed",
	"broken pipe",
	"not connected",
}

// classifyQueryFailure reports set membership independently: several
// phrases (e.g. "connection reset", "pool was disconnect") appear in both
// the transient and connection-lost sets, since the same wire symptom can
// mean either "try again" or "the session is dead" depending on whether
// it keeps recurring. applyQueryCompletion resolves the overlap by trying
// the transient retry first and only falling through to connection-lost
// handling once that retry budget is spent.
func classifyQueryFailure(err error) (transient bool, connectionLost bool) {
	if err == nil {
		return false, false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range transientFailureSubstrings {
		if strings.Contains(msg, s) {
			transient = true
			break
		}
	}
	for _, s := range connectionLostSubstrings {
		if strings.Contains(msg, s) {
			connectionLost = true
			break
		}
	}
	return transient, connectionLost
}

// Update applies msg to the model. Besides the exported ConfirmPendingQuery
// and AdvanceSearch helpers, it is the only way to mutate a Model.
func (m *Model) Update(msg Msg) {
	switch msg.Kind {
	case Quit, CancelQuery, Tick, connectCompleted, queryCompleted:
	default:
		m.exitConfirmArmed = false
	}

	switch msg.Kind {
	case Quit:
		m.updateQuit()
	case GoConnectionWizard:
		m.pane = actions.ConnectionWizard
		m.clearError()
	case ToggleHelp:
		m.helpVisible = !m.helpVisible
	case NextPane:
		m.advancePane()
	case TogglePalette:
		m.paletteVisible = !m.paletteVisible
	case TogglePerfOverlay:
		m.perfVisible = !m.perfVisible
	case ToggleSafeMode:
		m.safeMode.SetEnabled(!m.safeMode.IsEnabled())
	case Submit:
		m.updateSubmit()
	case Connect:
		m.startConnect(IntentManual)
	case CancelQuery:
		m.updateCancelQuery()
	case Navigate:
		m.updateNavigate(msg.Direction)
	case InvokeActionSlot:
		m.updateInvokeActionSlot(msg.Slot)
	case InputChar:
		m.updateInputChar(msg.Char)
	case Backspace:
		m.updateBackspace()
	case ClearInput:
		m.updateClearInput()
	case Tick:
		m.updateTick()
	case connectCompleted:
		m.applyConnectCompletion(msg)
	case queryCompleted:
		m.applyQueryCompletion(msg)
	}
}

// updateQuit implements the exit-confirmation state transition: the first
// Quit arms confirmation and sets the status line; a second Quit while
// armed actually exits. Any other operator message clears the arm (see
// Update); Tick and background completions leave it armed.
func (m *Model) updateQuit() {
	if m.exitConfirmArmed {
		m.shouldQuit = true
		return
	}
	m.exitConfirmArmed = true
	m.statusLine = "press quit again to exit"
}

func (m *Model) advancePane() {
	switch m.pane {
	case actions.ConnectionWizard:
		m.pane = actions.SchemaExplorer
	case actions.SchemaExplorer:
		m.pane = actions.Results
	case actions.Results:
		m.pane = actions.QueryEditor
	case actions.QueryEditor:
		m.pane = actions.SchemaExplorer
	default:
		m.pane = actions.SchemaExplorer
	}
	m.paneFlashTicks = PaneFlashTicks
	m.exitConfirmArmed = false
}

func (m *Model) updateSubmit() {
	m.exitConfirmArmed = false
	switch m.pane {
	case actions.ConnectionWizard:
		m.startConnect(IntentManual)
	case actions.QueryEditor:
		if m.hasPendingConfirm && strings.TrimSpace(m.queryText) == m.pendingSQL {
			m.ConfirmPendingQuery()
			return
		}
		m.startQuery(m.queryText)
	}
}

// updateCancelQuery resolves the "cancel with nothing running" case by
// reusing the exit-confirmation path: a CancelQuery while idle behaves like
// Quit, since there is nothing else for the keystroke to mean.
func (m *Model) updateCancelQuery() {
	if m.queryRunning && m.cancellation != nil {
		m.cancellation.Cancel()
		return
	}
	m.updateQuit()
}

func (m *Model) updateNavigate(dir Direction) {
	m.exitConfirmArmed = false
	switch m.pane {
	case actions.Results:
		switch dir {
		case Up:
			if m.rowCursor > 0 {
				m.rowCursor--
			}
		case Down:
			if m.rowCursor+1 < m.rows.Len() {
				m.rowCursor++
			}
		}
	case actions.SchemaExplorer:
		// Left leaves the column lane and Right enters it once a table
		// is selected; Up/Down are ignored here. Lane contents are
		// populated by the caller via schema cache lookups, so this
		// only tracks which lane has focus.
		switch dir {
		case Left:
			m.selection.HasColumn = false
		case Right:
			if m.selection.HasTable {
				m.selection.HasColumn = true
			}
		}
	}
}

func (m *Model) updateInvokeActionSlot(slot int) {
	if slot < 0 || slot >= FooterActionSlots {
		return
	}
	ranked := m.actionsEng.RankTopN(m.context(), FooterActionSlots)
	if slot >= len(ranked) {
		return
	}
	id := ranked[slot].ID
	invocation, err := m.actionsEng.Invoke(id, m.context())
	if err != nil {
		m.statusLine = err.Error()
		return
	}
	m.applyInvocation(id, invocation)
}

func (m *Model) applyInvocation(id actions.ActionID, inv actions.Invocation) {
	switch inv.Kind {
	case actions.RunSQL:
		if id == actions.PreviewTable {
			m.startTablePreview(inv.SQL)
			return
		}
		m.startQuery(inv.SQL)
	case actions.PaginateNext:
		m.paginate(pagination.Next)
	case actions.PaginatePrevious:
		m.paginate(pagination.Previous)
	case actions.ReplaceQueryEditorText:
		m.queryText = inv.ReplacementQueryText
		m.pane = actions.QueryEditor
	case actions.CancelQuery:
		m.updateCancelQuery()
	case actions.ExportResults:
		m.statusLine = fmt.Sprintf("export requested: format=%d", inv.ExportFormat)
	case actions.CopyToClipboard:
		m.statusLine = fmt.Sprintf("copy requested: target=%d", inv.CopyTarget)
	case actions.OpenView:
		m.pane = inv.OpenTarget
	case actions.SearchBufferedResults:
		m.search.Active = true
	}
}

func (m *Model) paginate(transition pagination.Transition) {
	if m.paginationPlan == nil {
		return
	}
	sql, ok := m.paginationPlan.BuildSQL(transition)
	if !ok {
		return
	}
	m.pendingPagination = paginationIntent{transition: transition, active: true}
	m.startQuery(sql)
}

// startTablePreview establishes (or re-establishes) the pagination plan for
// the selected table and runs its first page, per §4.7's page-zero setup.
// When the table's columns cannot be determined (schema not cached yet, or
// a transient lookup failure), it falls back to the plain preview SQL the
// actions engine already produced, without touching pagination state.
func (m *Model) startTablePreview(fallbackSQL string) {
	target, err := sqlgen.NewTarget(m.selection.Database, m.selection.HasDatabase, m.selection.Table)
	if err != nil {
		m.startQuery(fallbackSQL)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
	defer cancel()
	columns, err := m.schemaCache.ListColumns(ctx, m.selection.Database, m.selection.Table)
	if err != nil || len(columns) == 0 {
		m.startQuery(fallbackSQL)
		return
	}

	plan := pagination.Plan(target, columns, PreviewPageSize)
	sql, ok := plan.BuildSQL(pagination.Reset)
	if !ok {
		m.startQuery(fallbackSQL)
		return
	}

	m.paginationPlan = plan
	m.paginationColumns = columns
	m.pendingPagination = paginationIntent{transition: pagination.Reset, active: true}
	m.startQuery(sql)
}

// paginationKeyBounds reads the key column's value from the first and last
// buffered rows of the most recently completed page, for Keyset's Advance
// bookkeeping. Returns empty strings when the plan is Offset-strategy or
// the key column can't be located in the row shape it was planned against.
func (m *Model) paginationKeyBounds() (first, last string) {
	keyColumn, isKeyset := m.paginationPlan.KeyColumn()
	if !isKeyset || m.rows.IsEmpty() {
		return "", ""
	}

	index := -1
	for i, col := range m.paginationColumns {
		if strings.EqualFold(col.Name, keyColumn) {
			index = i
			break
		}
	}
	if index < 0 {
		return "", ""
	}

	firstRow, ok := m.rows.Get(0)
	if !ok || index >= len(firstRow.Values) {
		return "", ""
	}
	lastRow, ok := m.rows.Get(m.rows.Len() - 1)
	if !ok || index >= len(lastRow.Values) {
		return "", ""
	}

	return firstRow.Values[index], lastRow.Values[index]
}

func (m *Model) updateInputChar(c rune) {
	m.exitConfirmArmed = false
	if m.search.Active {
		m.search.Query += string(c)
		m.recomputeSearchMatches()
		return
	}
	switch m.pane {
	case actions.QueryEditor:
		m.queryText += string(c)
	case actions.ConnectionWizard:
		m.wizard.Host += string(c)
	}
}

func (m *Model) updateBackspace() {
	if m.search.Active {
		m.search.Query = trimLastRune(m.search.Query)
		m.recomputeSearchMatches()
		return
	}
	switch m.pane {
	case actions.QueryEditor:
		m.queryText = trimLastRune(m.queryText)
	case actions.ConnectionWizard:
		m.wizard.Host = trimLastRune(m.wizard.Host)
	}
}

func (m *Model) updateClearInput() {
	if m.search.Active {
		m.search.Query = ""
		m.recomputeSearchMatches()
		return
	}
	switch m.pane {
	case actions.QueryEditor:
		m.queryText = ""
	case actions.ConnectionWizard:
		m.wizard.Host = ""
	}
}

func trimLastRune(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	return string(r[:len(r)-1])
}

// recomputeSearchMatches rebuilds the cyclic match index over the buffered
// rows' string columns for the current search query, case-insensitively.
func (m *Model) recomputeSearchMatches() {
	m.search.Matches = m.search.Matches[:0]
	if m.search.Query == "" {
		m.search.CurrentMatch = 0
		return
	}
	needle := strings.ToLower(m.search.Query)
	rows := m.rows.VisibleRows(0, m.rows.Len())
	for i, row := range rows {
		for _, v := range row.Values {
			if strings.Contains(strings.ToLower(v), needle) {
				m.search.Matches = append(m.search.Matches, i)
				break
			}
		}
	}
	if m.search.CurrentMatch >= len(m.search.Matches) {
		m.search.CurrentMatch = 0
	}
}

// AdvanceSearch moves to the next match, wrapping cyclically.
func (m *Model) AdvanceSearch() {
	if len(m.search.Matches) == 0 {
		return
	}
	m.search.CurrentMatch = (m.search.CurrentMatch + 1) % len(m.search.Matches)
}

func (m *Model) updateTick() {
	m.perf.Ticks++
	if m.paneFlashTicks > 0 {
		m.paneFlashTicks--
	}
	m.drainCompletions()
}

func (m *Model) drainCompletions() {
	for {
		select {
		case msg := <-m.results:
			m.Update(msg)
		default:
			return
		}
	}
}

// startConnect spawns the background connect task and attaches it to a
// supervisor, correlating its eventual completion by generation number so
// a stale completion from an earlier attempt is discarded (mirroring a
// request/response tag scheme for matching an asynchronous reply back to
// its caller).
func (m *Model) startConnect(intent ConnectIntent) {
	m.connectIntent = intent
	m.connectGeneration++
	generation := m.connectGeneration

	p := profile.ConnectionProfile{
		Name:     m.wizard.ProfileName,
		Host:     m.wizard.Host,
		Port:     m.wizard.Port,
		User:     m.wizard.User,
		Database: m.wizard.Database,
		TLSMode:  profile.TLSPrefer,
	}
	backend := m.connectBackend(p)
	m.supervisor = supervisor.New(p.Name, backend)
	m.statusLine = "connecting..."

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), ConnectTimeout)
		defer cancel()
		err := m.supervisor.Connect(ctx)
		m.results <- Msg{Kind: connectCompleted, connectToken: generation, connectErr: err}
	}()
}

func (m *Model) applyConnectCompletion(msg Msg) {
	if msg.connectToken != m.connectGeneration {
		return
	}
	if msg.connectErr != nil {
		if m.connectIntent == IntentAutoReconnect && m.reconnectAttempts >= supervisor.AutoReconnectLimit {
			m.showError(ReconnectExhausted, "auto-reconnect limit reached: "+msg.connectErr.Error())
			return
		}
		m.showError(ConnectFailure, msg.connectErr.Error())
		return
	}
	m.clearError()
	m.pane = actions.SchemaExplorer
	m.statusLine = "connected"
	m.schemaCache.Invalidate()

	if m.connectIntent == IntentAutoReconnect && m.pendingSQL != "" {
		m.reconnectAttempts = 0
		m.dispatchQuery(m.pendingSQL)
		return
	}
	m.reconnectAttempts = 0
}

// startQuery runs sql through the safe-mode guard before ever touching the
// backend; an unconfirmed risky statement is parked as a pending
// confirmation instead of being dispatched. A second Submit of the same
// text from the query editor confirms and runs it (see updateSubmit).
func (m *Model) startQuery(sql string) {
	sql = strings.TrimSpace(sql)
	if sql == "" {
		return
	}

	decision := m.safeMode.Evaluate(sql)
	if decision.RequiresConfirmation {
		m.pendingToken = decision.Token
		m.pendingSQL = sql
		m.hasPendingConfirm = true
		m.showError(SafeModeViolation, "confirmation required: "+sql)
		return
	}

	m.dispatchQuery(sql)
}

// ConfirmPendingQuery confirms and runs the statement safe-mode most
// recently parked, if any.
func (m *Model) ConfirmPendingQuery() {
	if !m.hasPendingConfirm {
		return
	}
	token, sql := m.pendingToken, m.pendingSQL
	m.hasPendingConfirm = false
	if err := m.safeMode.Confirm(token, sql); err != nil {
		m.showError(SafeModeViolation, err.Error())
		return
	}
	m.clearError()
	m.dispatchQuery(sql)
}

func (m *Model) dispatchQuery(sql string) {
	m.queryGeneration++
	generation := m.queryGeneration
	m.queryRunning = true
	m.cancellation = &queryrunner.CancellationToken{}
	runner := queryrunner.New(m.dataBackend)
	buffer := ring.New[queryrunner.QueryRow](RingBufferCapacity)
	cancellation := m.cancellation

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), QueryTimeout)
		defer cancel()
		summary, err := runner.ExecuteStreaming(ctx, sql, buffer, cancellation)
		m.results <- Msg{Kind: queryCompleted, queryToken: generation, querySummary: summary, queryErr: err}
	}()

	m.pendingRows = buffer
	m.pendingSQL = sql
}

func (m *Model) applyQueryCompletion(msg Msg) {
	if msg.queryToken != m.queryGeneration {
		return
	}
	m.queryRunning = false

	if msg.queryErr != nil {
		// §4.9: try the transient retry budget first; only once it's spent
		// does an overlapping connection-lost phrase fall through to
		// auto-reconnect. A statement never skips straight to reconnecting
		// while it still has a retry available.
		transient, connectionLost := classifyQueryFailure(msg.queryErr)
		if transient && m.queryRetryAttempts < QueryRetryLimit {
			m.queryRetryAttempts++
			m.dispatchQuery(m.pendingSQL)
			return
		}
		if connectionLost {
			m.reconnectAttempts++
			if m.reconnectAttempts <= supervisor.AutoReconnectLimit {
				m.startConnect(IntentAutoReconnect)
				return
			}
			m.showError(ReconnectExhausted, msg.queryErr.Error())
			return
		}
		m.queryRetryAttempts = 0
		m.showError(QueryFailure, msg.queryErr.Error())
		return
	}

	m.queryRetryAttempts = 0
	m.reconnectAttempts = 0
	m.clearError()
	m.perf.QueriesRun++
	m.perf.LastQueryElapsed = msg.querySummary.Elapsed
	if m.pendingRows != nil {
		m.rows = m.pendingRows
		m.pendingRows = nil
	}
	m.rowCursor = 0

	intent := m.pendingPagination
	m.pendingPagination = paginationIntent{}
	if intent.active && m.paginationPlan != nil {
		firstKey, lastKey := m.paginationKeyBounds()
		m.paginationPlan.Advance(intent.transition, m.rows.Len(), firstKey, lastKey)
	}

	if m.paginationPlan != nil {
		m.statusLine = fmt.Sprintf("%d rows", m.rows.Len())
	}
}
