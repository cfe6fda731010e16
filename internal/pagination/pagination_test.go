package pagination

import (
	"strings"
	"testing"

	"github.com/myr-db/myr/internal/schema"
	"github.com/myr-db/myr/internal/sqlgen"
)

func mustTarget(t *testing.T) sqlgen.Target {
	t.Helper()
	target, err := sqlgen.NewTarget("shop", true, "orders")
	if err != nil {
		t.Fatalf("NewTarget: %v", err)
	}
	return target
}

func TestPlanPrefersIDColumn(t *testing.T) {
	target := mustTarget(t)
	cols := []schema.ColumnSchema{{Name: "customer_id"}, {Name: "id"}}
	state := Plan(target, cols, 50)
	if state.Strategy() != Keyset {
		t.Fatal("expected Keyset strategy when an id column is present")
	}
}

func TestPlanFallsBackToOffsetWithoutIDLikeColumn(t *testing.T) {
	target := mustTarget(t)
	cols := []schema.ColumnSchema{{Name: "amount"}, {Name: "description"}}
	state := Plan(target, cols, 50)
	if state.Strategy() != Offset {
		t.Fatal("expected Offset strategy without an id-like column")
	}
}

func TestKeysetResetBuildsFirstPageSQL(t *testing.T) {
	target := mustTarget(t)
	state := Plan(target, []schema.ColumnSchema{{Name: "id"}}, 20)

	sql, ok := state.BuildSQL(Reset)
	if !ok || !strings.Contains(sql, "ORDER BY") {
		t.Fatalf("BuildSQL(Reset) = (%q, %v)", sql, ok)
	}
}

func TestKeysetNextRequiresLastKey(t *testing.T) {
	target := mustTarget(t)
	state := Plan(target, []schema.ColumnSchema{{Name: "id"}}, 20)

	if _, ok := state.BuildSQL(Next); ok {
		t.Fatal("Next should be unsatisfiable before any page has been seen")
	}

	state.Advance(Reset, 20, "1", "20")
	sql, ok := state.BuildSQL(Next)
	if !ok || !strings.Contains(sql, "20") {
		t.Fatalf("BuildSQL(Next) = (%q, %v)", sql, ok)
	}
}

func TestKeysetPreviousRequiresFirstKey(t *testing.T) {
	target := mustTarget(t)
	state := Plan(target, []schema.ColumnSchema{{Name: "id"}}, 20)

	if _, ok := state.BuildSQL(Previous); ok {
		t.Fatal("Previous should be unsatisfiable before any page has been seen")
	}

	state.Advance(Reset, 20, "1", "20")
	sql, ok := state.BuildSQL(Previous)
	if !ok || !strings.Contains(sql, "1") {
		t.Fatalf("BuildSQL(Previous) = (%q, %v)", sql, ok)
	}
}

func TestOffsetTransitionsAdvancePageIndex(t *testing.T) {
	target := mustTarget(t)
	state := Plan(target, []schema.ColumnSchema{{Name: "amount"}}, 10)

	state.Advance(Reset, 10, "", "")
	if state.PageIndex() != 0 {
		t.Fatalf("PageIndex after Reset = %d, want 0", state.PageIndex())
	}

	state.Advance(Next, 10, "", "")
	if state.PageIndex() != 1 {
		t.Fatalf("PageIndex after Next = %d, want 1", state.PageIndex())
	}

	state.Advance(Previous, 10, "", "")
	if state.PageIndex() != 0 {
		t.Fatalf("PageIndex after Previous = %d, want 0", state.PageIndex())
	}

	// Previous saturates at 0, it never goes negative.
	state.Advance(Previous, 10, "", "")
	if state.PageIndex() != 0 {
		t.Fatalf("PageIndex after Previous at floor = %d, want 0", state.PageIndex())
	}
}

func TestNextDoesNotAdvanceOnEmptyResult(t *testing.T) {
	target := mustTarget(t)
	state := Plan(target, []schema.ColumnSchema{{Name: "amount"}}, 10)
	state.Advance(Reset, 10, "", "")

	state.Advance(Next, 0, "", "")
	if state.PageIndex() != 0 {
		t.Fatalf("PageIndex after empty Next = %d, want 0 (unchanged)", state.PageIndex())
	}
}

func TestCanPageNextAndPrevious(t *testing.T) {
	target := mustTarget(t)
	state := Plan(target, []schema.ColumnSchema{{Name: "amount"}}, 10)

	state.Advance(Reset, 10, "", "")
	if !state.CanPageNext() {
		t.Fatal("expected CanPageNext = true when last page was full")
	}
	if state.CanPagePrevious() {
		t.Fatal("expected CanPagePrevious = false at page 0")
	}

	state.Advance(Next, 3, "", "")
	if state.CanPageNext() {
		t.Fatal("expected CanPageNext = false after a short page")
	}
	if !state.CanPagePrevious() {
		t.Fatal("expected CanPagePrevious = true once past page 0")
	}
}

func TestKeysetAdvanceClearsKeysOnEmptyResult(t *testing.T) {
	target := mustTarget(t)
	state := Plan(target, []schema.ColumnSchema{{Name: "id"}}, 10)
	state.Advance(Reset, 10, "1", "10")
	state.Advance(Next, 0, "", "")

	if _, ok := state.BuildSQL(Next); ok {
		t.Fatal("Next should become unsatisfiable once a page returns empty")
	}
}
