// Package pagination plans the keyset or offset paging strategy for a
// selected table and tracks the state that strategy needs across pages.
package pagination

import (
	"github.com/myr-db/myr/internal/schema"
	"github.com/myr-db/myr/internal/sqlgen"
)

// Transition is one of the three page movements a caller can request.
type Transition int

const (
	Reset Transition = iota
	Next
	Previous
)

// Strategy discriminates keyset from offset paging.
type Strategy int

const (
	Keyset Strategy = iota
	Offset
)

// State tracks the paging cursor for one result set. The zero value is not
// meaningful; build with NewKeyset or NewOffset.
type State struct {
	strategy Strategy
	target   sqlgen.Target
	pageSize int

	keyColumn string
	firstKey  string
	lastKey   string
	hasFirst  bool
	hasLast   bool

	pageIndex int

	lastPageRowCount int
}

// Plan selects a paging strategy for target given its columns, per the
// key-column precedence: a column equal-ignoring-case to "id", else the
// first column whose lowercased name ends in "_id", else Offset fallback.
func Plan(target sqlgen.Target, columns []schema.ColumnSchema, pageSize int) *State {
	if key, ok := schema.KeyColumnFor(columns); ok {
		return &State{strategy: Keyset, target: target, pageSize: pageSize, keyColumn: key}
	}
	return &State{strategy: Offset, target: target, pageSize: pageSize}
}

// Strategy reports which paging strategy this state uses.
func (s *State) Strategy() Strategy { return s.strategy }

// PageIndex reports the current zero-based page index. Both strategies
// track it (CanPagePrevious reads it); Offset also uses it for OFFSET.
func (s *State) PageIndex() int { return s.pageIndex }

// CanPageNext reports whether a Next transition is currently expected to
// return more rows, per the last page's observed row count.
func (s *State) CanPageNext() bool { return s.lastPageRowCount >= s.pageSize }

// CanPagePrevious reports whether a Previous transition is available.
func (s *State) CanPagePrevious() bool { return s.pageIndex > 0 }

// KeyColumn reports the column Advance expects first/last key values for,
// and whether this state uses the Keyset strategy at all.
func (s *State) KeyColumn() (string, bool) {
	if s.strategy != Keyset {
		return "", false
	}
	return s.keyColumn, true
}

// BuildSQL renders the SQL statement for transition given the state's
// current cursor, and reports whether the transition is satisfiable (e.g.
// Keyset.Next requires a last key to already be known).
func (s *State) BuildSQL(transition Transition) (string, bool) {
	switch s.strategy {
	case Keyset:
		return s.buildKeysetSQL(transition)
	default:
		return s.buildOffsetSQL(transition), true
	}
}

func (s *State) buildKeysetSQL(transition Transition) (string, bool) {
	switch transition {
	case Reset:
		return sqlgen.KeysetFirstPage(s.target, s.keyColumn, s.pageSize), true
	case Next:
		if !s.hasLast {
			return "", false
		}
		return sqlgen.KeysetPage(s.target, s.keyColumn, s.lastKey, sqlgen.Next, s.pageSize), true
	case Previous:
		if !s.hasFirst {
			return "", false
		}
		return sqlgen.KeysetPage(s.target, s.keyColumn, s.firstKey, sqlgen.Previous, s.pageSize), true
	default:
		return "", false
	}
}

func (s *State) buildOffsetSQL(transition Transition) string {
	switch transition {
	case Reset:
		return sqlgen.OffsetPage(s.target, s.pageSize, 0)
	case Next:
		return sqlgen.OffsetPage(s.target, s.pageSize, (s.pageIndex+1)*s.pageSize)
	case Previous:
		prev := s.pageIndex - 1
		if prev < 0 {
			prev = 0
		}
		return sqlgen.OffsetPage(s.target, s.pageSize, prev*s.pageSize)
	default:
		return sqlgen.OffsetPage(s.target, s.pageSize, s.pageIndex*s.pageSize)
	}
}

// Advance applies the post-execute bookkeeping for transition given the
// keys of the first and last row returned (firstKey/lastKey are ignored
// for the Offset strategy). page_index advances on Next only when rows
// came back non-empty, and on Previous only when already above zero;
// Reset always re-zeroes the index.
func (s *State) Advance(transition Transition, rowCount int, firstKey, lastKey string) {
	s.lastPageRowCount = rowCount

	switch transition {
	case Reset:
		s.pageIndex = 0
	case Next:
		if rowCount > 0 {
			s.pageIndex++
		}
	case Previous:
		if s.pageIndex > 0 {
			s.pageIndex--
		}
	}

	if s.strategy != Keyset {
		return
	}

	if rowCount > 0 {
		s.firstKey, s.hasFirst = firstKey, true
		s.lastKey, s.hasLast = lastKey, true
	} else {
		s.hasFirst, s.hasLast = false, false
	}
}
