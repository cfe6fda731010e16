// Package actions implements the closed registry of commands the palette
// and keymap can invoke, with context-sensitive enablement and scoring.
package actions

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/myr-db/myr/internal/sqlgen"
)

// ActionID names one of the 16 closed actions.
type ActionID int

const (
	PreviewTable ActionID = iota
	PreviousPage
	NextPage
	DescribeTable
	ShowIndexes
	ShowCreateTable
	CountEstimate
	RunCurrentQuery
	ApplyLimit200
	CancelRunningQuery
	ExportCsv
	ExportJSON
	CopyCell
	CopyRow
	SearchResults
	FocusQueryEditor
)

const (
	previewLimit    = 200
	maxRecencyBoost = 25
)

// AppView names the panes Navigate/FocusQueryEditor/InvokeActionSlot move
// between.
type AppView int

const (
	ConnectionWizard AppView = iota
	SchemaExplorer
	Results
	QueryEditor
	CommandPalette
)

// SchemaSelection is the currently highlighted database/table/column, each
// possibly unset.
type SchemaSelection struct {
	Database    string
	HasDatabase bool
	Table       string
	HasTable    bool
	Column      string
	HasColumn   bool
}

// Context is the full set of facts the enablement and scoring predicates
// read.
type Context struct {
	View               AppView
	Selection          SchemaSelection
	QueryText          string
	HasQueryText       bool
	QueryRunning       bool
	HasResults         bool
	PaginationEnabled  bool
	CanPageNext        bool
	CanPagePrevious    bool
}

// Definition is one registry entry's static metadata.
type Definition struct {
	ID          ActionID
	Title       string
	Description string
}

var registry = [16]Definition{
	{PreviewTable, "Preview table", "Run SELECT * with a safe preview LIMIT"},
	{PreviousPage, "Previous page", "Load previous result page (keyset/offset)"},
	{NextPage, "Next page", "Load next result page (keyset/offset)"},
	{DescribeTable, "Describe table", "Inspect table columns and metadata"},
	{ShowIndexes, "Show indexes", "Inspect table indexes"},
	{ShowCreateTable, "Show create table", "Inspect CREATE TABLE DDL"},
	{CountEstimate, "Estimate row count", "Read row estimate from information_schema"},
	{RunCurrentQuery, "Run query", "Execute the current editor query"},
	{ApplyLimit200, "Apply LIMIT 200", "Suggest a preview limit for broad SELECTs"},
	{CancelRunningQuery, "Cancel query", "Cancel active query execution"},
	{ExportCsv, "Export CSV", "Export current results to CSV"},
	{ExportJSON, "Export JSON", "Export current results to JSON"},
	{CopyCell, "Copy cell", "Copy selected cell value"},
	{CopyRow, "Copy row", "Copy selected row values"},
	{SearchResults, "Search results", "Search within buffered results"},
	{FocusQueryEditor, "Go to query editor", "Switch to query editor view"},
}

// All returns the full action registry, in definition order.
func All() []Definition { return registry[:] }

// Find looks up one action's static definition.
func Find(id ActionID) (Definition, bool) {
	for _, d := range registry {
		if d.ID == id {
			return d, true
		}
	}
	return Definition{}, false
}

// RankedAction is one Enabled action with its computed score.
type RankedAction struct {
	ID    ActionID
	Title string
	Score int
}

// ExportFormat discriminates the two export invocations.
type ExportFormat int

const (
	Csv ExportFormat = iota
	Json
)

// CopyTarget discriminates the two clipboard invocations.
type CopyTarget int

const (
	Cell CopyTarget = iota
	Row
)

// Invocation is the sum type returned by Invoke.
type Invocation struct {
	Kind                   InvocationKind
	SQL                    string
	ReplacementQueryText   string
	ExportFormat           ExportFormat
	CopyTarget             CopyTarget
	OpenTarget             AppView
}

// InvocationKind discriminates Invocation's sum-type variant.
type InvocationKind int

const (
	RunSQL InvocationKind = iota
	PaginatePrevious
	PaginateNext
	ReplaceQueryEditorText
	CancelQuery
	ExportResults
	CopyToClipboard
	OpenView
	SearchBufferedResults
)

// Errors returned by Invoke.
var (
	ErrActionDisabled           = errors.New("actions: action is disabled in the current context")
	ErrMissingTableSelection    = errors.New("actions: selected table is required")
	ErrMissingDatabaseSelection = errors.New("actions: selected database is required")
	ErrMissingQueryText         = errors.New("actions: query text is required")
	ErrNoLimitSuggestion        = errors.New("actions: no LIMIT suggestion is available for this query")
)

// Engine tracks per-action recency for scoring and exposes ranking and
// invocation.
type Engine struct {
	recencyTick uint64
	recency     map[ActionID]uint64
}

// New builds an empty Engine.
func New() *Engine {
	return &Engine{recency: make(map[ActionID]uint64)}
}

// Enabled returns the subset of the registry whose enablement predicate is
// satisfied by context.
func Enabled(context Context) []Definition {
	var out []Definition
	for _, d := range registry {
		if actionEnabled(d.ID, context) {
			out = append(out, d)
		}
	}
	return out
}

// RankTopN returns the enabled actions scored and sorted descending by
// score, ties broken by title ascending, truncated to n.
func (e *Engine) RankTopN(context Context, n int) []RankedAction {
	var ranked []RankedAction
	for _, d := range registry {
		if !actionEnabled(d.ID, context) {
			continue
		}
		ranked = append(ranked, RankedAction{
			ID:    d.ID,
			Title: d.Title,
			Score: actionBaseScore(d.ID, context) + e.recencyBoost(d.ID),
		})
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Title < ranked[j].Title
	})

	if n >= 0 && len(ranked) > n {
		ranked = ranked[:n]
	}
	return ranked
}

// Invoke runs action_id against context, recording its use for recency
// scoring on success.
func (e *Engine) Invoke(id ActionID, context Context) (Invocation, error) {
	if !actionEnabled(id, context) {
		return Invocation{}, fmt.Errorf("%w: %v", ErrActionDisabled, id)
	}

	var invocation Invocation

	switch id {
	case PreviewTable:
		target, tErr := contextSelectedTarget(context)
		if tErr != nil {
			return Invocation{}, tErr
		}
		invocation = Invocation{Kind: RunSQL, SQL: sqlgen.PreviewSelect(target, previewLimit)}
	case PreviousPage:
		invocation = Invocation{Kind: PaginatePrevious}
	case NextPage:
		invocation = Invocation{Kind: PaginateNext}
	case DescribeTable:
		target, tErr := contextSelectedTarget(context)
		if tErr != nil {
			return Invocation{}, tErr
		}
		invocation = Invocation{Kind: RunSQL, SQL: sqlgen.DescribeTable(target)}
	case ShowIndexes:
		target, tErr := contextSelectedTarget(context)
		if tErr != nil {
			return Invocation{}, tErr
		}
		invocation = Invocation{Kind: RunSQL, SQL: sqlgen.ShowIndex(target)}
	case ShowCreateTable:
		target, tErr := contextSelectedTarget(context)
		if tErr != nil {
			return Invocation{}, tErr
		}
		invocation = Invocation{Kind: RunSQL, SQL: sqlgen.ShowCreateTable(target)}
	case CountEstimate:
		target, tErr := contextSelectedTarget(context)
		if tErr != nil {
			return Invocation{}, tErr
		}
		sql, cErr := sqlgen.CountEstimate(target)
		if cErr != nil {
			return Invocation{}, fmt.Errorf("actions: generate SQL: %w", cErr)
		}
		invocation = Invocation{Kind: RunSQL, SQL: sql}
	case RunCurrentQuery:
		if !context.HasQueryText {
			return Invocation{}, ErrMissingQueryText
		}
		query := strings.TrimSpace(context.QueryText)
		if query == "" {
			return Invocation{}, ErrMissingQueryText
		}
		invocation = Invocation{Kind: RunSQL, SQL: query}
	case ApplyLimit200:
		if !context.HasQueryText {
			return Invocation{}, ErrMissingQueryText
		}
		suggested, ok := SuggestPreviewLimit(context.QueryText, previewLimit)
		if !ok {
			return Invocation{}, ErrNoLimitSuggestion
		}
		invocation = Invocation{Kind: ReplaceQueryEditorText, ReplacementQueryText: suggested}
	case CancelRunningQuery:
		invocation = Invocation{Kind: CancelQuery}
	case ExportCsv:
		invocation = Invocation{Kind: ExportResults, ExportFormat: Csv}
	case ExportJSON:
		invocation = Invocation{Kind: ExportResults, ExportFormat: Json}
	case CopyCell:
		invocation = Invocation{Kind: CopyToClipboard, CopyTarget: Cell}
	case CopyRow:
		invocation = Invocation{Kind: CopyToClipboard, CopyTarget: Row}
	case SearchResults:
		invocation = Invocation{Kind: SearchBufferedResults}
	case FocusQueryEditor:
		invocation = Invocation{Kind: OpenView, OpenTarget: QueryEditor}
	default:
		return Invocation{}, fmt.Errorf("actions: unknown action id %v", id)
	}

	e.recordUse(id)
	return invocation, nil
}

func (e *Engine) recordUse(id ActionID) {
	e.recencyTick++
	e.recency[id] = e.recencyTick
}

func (e *Engine) recencyBoost(id ActionID) int {
	lastUsed, ok := e.recency[id]
	if !ok {
		return 0
	}
	age := e.recencyTick - lastUsed
	boost := maxRecencyBoost - int(age)
	if boost < 0 {
		return 0
	}
	return boost
}

func contextSelectedTarget(context Context) (sqlgen.Target, error) {
	if !context.Selection.HasTable {
		return sqlgen.Target{}, ErrMissingTableSelection
	}
	if !context.Selection.HasDatabase {
		return sqlgen.Target{}, ErrMissingDatabaseSelection
	}
	target, err := sqlgen.NewTarget(context.Selection.Database, true, context.Selection.Table)
	if err != nil {
		return sqlgen.Target{}, fmt.Errorf("actions: %w", err)
	}
	return target, nil
}

func actionEnabled(id ActionID, context Context) bool {
	switch id {
	case PreviewTable, DescribeTable, ShowIndexes, ShowCreateTable:
		return context.View == SchemaExplorer &&
			context.Selection.HasTable &&
			context.Selection.HasDatabase &&
			!context.QueryRunning
	case PreviousPage:
		return context.PaginationEnabled && context.CanPagePrevious && !context.QueryRunning
	case NextPage:
		return context.PaginationEnabled && context.CanPageNext && !context.QueryRunning
	case CountEstimate:
		return context.Selection.HasTable && context.Selection.HasDatabase && !context.QueryRunning
	case RunCurrentQuery:
		return !context.QueryRunning && context.HasQueryText && strings.TrimSpace(context.QueryText) != ""
	case ApplyLimit200:
		if context.QueryRunning || !context.HasQueryText {
			return false
		}
		_, ok := SuggestPreviewLimit(context.QueryText, previewLimit)
		return ok
	case CancelRunningQuery:
		return context.QueryRunning
	case ExportCsv, ExportJSON, CopyRow, SearchResults:
		return context.HasResults
	case CopyCell:
		return context.HasResults && context.Selection.HasColumn
	case FocusQueryEditor:
		return context.View != QueryEditor
	default:
		return false
	}
}

func actionBaseScore(id ActionID, context Context) int {
	switch id {
	case CancelRunningQuery:
		if context.QueryRunning {
			return 1000
		}
	case ApplyLimit200:
		if context.HasQueryText {
			if _, ok := SuggestPreviewLimit(context.QueryText, previewLimit); ok {
				return 950
			}
		}
	case PreviewTable:
		if context.View == SchemaExplorer && context.Selection.HasTable {
			return 900
		}
	case NextPage:
		if context.PaginationEnabled && context.CanPageNext && context.View == Results {
			return 860
		}
	case RunCurrentQuery:
		if context.HasQueryText && strings.TrimSpace(context.QueryText) != "" {
			return 850
		}
	case PreviousPage:
		if context.PaginationEnabled && context.CanPagePrevious && context.View == Results {
			return 840
		}
	case DescribeTable:
		if context.View == SchemaExplorer && context.Selection.HasTable {
			return 820
		}
	case ShowIndexes:
		if context.View == SchemaExplorer && context.Selection.HasTable {
			return 790
		}
	case ShowCreateTable:
		if context.View == SchemaExplorer && context.Selection.HasTable {
			return 760
		}
	case CountEstimate:
		if context.Selection.HasTable && context.Selection.HasDatabase {
			return 700
		}
	case ExportCsv, ExportJSON:
		if context.HasResults {
			return 640
		}
	case CopyCell, CopyRow:
		if context.HasResults {
			return 600
		}
	case SearchResults:
		if context.HasResults {
			return 580
		}
	case FocusQueryEditor:
		if context.View != QueryEditor {
			return 500
		}
	}
	return 0
}

// SuggestPreviewLimit trims queryText, strips one trailing ';', and
// returns the text with " LIMIT <limit>" appended, or false if the text is
// empty, does not start with SELECT, or already contains a LIMIT token.
func SuggestPreviewLimit(queryText string, limit int) (string, bool) {
	trimmed := strings.TrimSpace(queryText)
	if trimmed == "" {
		return "", false
	}

	withoutSemicolon := strings.TrimSpace(strings.TrimSuffix(trimmed, ";"))
	if withoutSemicolon == "" {
		return "", false
	}

	if !startsWithSelect(withoutSemicolon) {
		return "", false
	}
	if containsLimitKeyword(withoutSemicolon) {
		return "", false
	}

	return fmt.Sprintf("%s LIMIT %d", withoutSemicolon, limit), true
}

func startsWithSelect(query string) bool {
	fields := strings.Fields(query)
	if len(fields) == 0 {
		return false
	}
	return strings.EqualFold(fields[0], "SELECT")
}

func containsLimitKeyword(query string) bool {
	tokens := strings.FieldsFunc(query, func(r rune) bool {
		isAlnum := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9')
		return !isAlnum && r != '_'
	})
	for _, token := range tokens {
		if strings.EqualFold(token, "LIMIT") {
			return true
		}
	}
	return false
}
