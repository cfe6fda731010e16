// Package sqlgen builds the SQL strings the coordination core needs,
// quoting identifiers and literals the way a MySQL-compatible server
// expects.
package sqlgen

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Errors returned by generator functions. Validation runs on trimmed
// strings.
var (
	ErrEmptyDatabaseName        = errors.New("sqlgen: database name cannot be empty")
	ErrEmptyTableName           = errors.New("sqlgen: table name cannot be empty")
	ErrEmptyColumnName          = errors.New("sqlgen: column name cannot be empty")
	ErrMissingDatabaseForEstimate = errors.New("sqlgen: count estimate requires an explicit database name")
)

// Target addresses an optional database and a required table.
type Target struct {
	Database string // empty means "no database qualifier"
	HasDB    bool
	Table    string
}

// NewTarget validates and builds a Target. Pass hasDB=false to build an
// unqualified target.
func NewTarget(database string, hasDB bool, table string) (Target, error) {
	if strings.TrimSpace(table) == "" {
		return Target{}, ErrEmptyTableName
	}
	if hasDB && strings.TrimSpace(database) == "" {
		return Target{}, ErrEmptyDatabaseName
	}
	return Target{Database: database, HasDB: hasDB, Table: table}, nil
}

// QuoteIdentifier wraps s in backticks, doubling embedded backticks.
func QuoteIdentifier(s string) string {
	return "`" + strings.ReplaceAll(s, "`", "``") + "`"
}

func quoteSQLString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// QuoteLiteral renders v for direct SQL embedding: numeric-looking values
// pass through trimmed and unquoted, everything else is single-quoted with
// embedded quotes doubled.
func QuoteLiteral(v string) string {
	trimmed := strings.TrimSpace(v)
	if trimmed == "" {
		return quoteSQLString(v)
	}
	if _, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
		return trimmed
	}
	if _, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return trimmed
	}
	return quoteSQLString(v)
}

func qualified(t Target) string {
	if t.HasDB {
		return QuoteIdentifier(t.Database) + "." + QuoteIdentifier(t.Table)
	}
	return QuoteIdentifier(t.Table)
}

// PreviewSelect builds `SELECT * FROM <qualified> LIMIT <limit>`.
func PreviewSelect(t Target, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d", qualified(t), limit)
}

// DescribeTable builds `DESCRIBE <qualified>`.
func DescribeTable(t Target) string {
	return fmt.Sprintf("DESCRIBE %s", qualified(t))
}

// ShowCreateTable builds `SHOW CREATE TABLE <qualified>`.
func ShowCreateTable(t Target) string {
	return fmt.Sprintf("SHOW CREATE TABLE %s", qualified(t))
}

// ShowIndex builds `SHOW INDEX FROM <qualified>`.
func ShowIndex(t Target) string {
	return fmt.Sprintf("SHOW INDEX FROM %s", qualified(t))
}

// SelectColumnPreview builds a single-column preview query.
func SelectColumnPreview(t Target, column string, limit int) (string, error) {
	if strings.TrimSpace(column) == "" {
		return "", ErrEmptyColumnName
	}
	return fmt.Sprintf("SELECT %s FROM %s LIMIT %d", QuoteIdentifier(column), qualified(t), limit), nil
}

// CountEstimate builds an information_schema row-count estimate query.
// Fails with ErrMissingDatabaseForEstimate when t has no database.
func CountEstimate(t Target) (string, error) {
	if !t.HasDB {
		return "", ErrMissingDatabaseForEstimate
	}
	return fmt.Sprintf(
		"SELECT TABLE_ROWS AS estimated_rows FROM information_schema.TABLES "+
			"WHERE TABLE_SCHEMA = %s AND TABLE_NAME = %s",
		quoteSQLString(t.Database), quoteSQLString(t.Table),
	), nil
}

// KeysetFirstPage builds the first keyset page, ordered ascending by key.
func KeysetFirstPage(t Target, key string, limit int) string {
	return fmt.Sprintf("SELECT * FROM %s ORDER BY %s ASC LIMIT %d", qualified(t), QuoteIdentifier(key), limit)
}

// PageDirection selects which keyset window KeysetPage builds.
type PageDirection int

const (
	Next PageDirection = iota
	Previous
)

// KeysetPage builds the next or previous keyset window SQL. Previous wraps
// a descending inner window and re-sorts it ascending so rendering order
// stays consistent with Next. The boundary value is rendered with
// QuoteLiteral.
func KeysetPage(t Target, key, boundary string, direction PageDirection, limit int) string {
	q := qualified(t)
	qk := QuoteIdentifier(key)
	boundary = QuoteLiteral(boundary)
	switch direction {
	case Next:
		return fmt.Sprintf("SELECT * FROM %s WHERE %s > %s ORDER BY %s ASC LIMIT %d", q, qk, boundary, qk, limit)
	default:
		return fmt.Sprintf(
			"SELECT * FROM (SELECT * FROM %s WHERE %s < %s ORDER BY %s DESC LIMIT %d) AS page ORDER BY %s ASC",
			q, qk, boundary, qk, limit, qk,
		)
	}
}

// OffsetPage builds `SELECT * FROM <qualified> LIMIT <limit> OFFSET
// <offset>`.
func OffsetPage(t Target, limit, offset int) string {
	return fmt.Sprintf("SELECT * FROM %s LIMIT %d OFFSET %d", qualified(t), limit, offset)
}
