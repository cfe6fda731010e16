// Package schema holds a TTL-scoped, immutable-by-replacement snapshot of
// a server's databases, tables, columns, and foreign-key relationships.
package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// ColumnSchema describes one column of a table.
type ColumnSchema struct {
	Name         string
	DataType     string
	Nullable     bool
	DefaultValue string
	HasDefault   bool
}

// ForeignKeySchema describes one outbound foreign-key constraint, field
// names matching information_schema.KEY_COLUMN_USAGE projections.
type ForeignKeySchema struct {
	ConstraintName     string
	ColumnName         string
	ReferencedDatabase string
	ReferencedTable    string
	ReferencedColumn   string
}

// TableSchema describes one table's columns and outbound foreign keys.
type TableSchema struct {
	Name        string
	Columns     []ColumnSchema
	ForeignKeys []ForeignKeySchema
}

// DatabaseSchema describes one database's tables, in server-reported order.
type DatabaseSchema struct {
	Name   string
	Tables []TableSchema
}

// Catalog is the full ordered schema snapshot of a server.
type Catalog struct {
	Databases []DatabaseSchema
}

// Database looks up a database by exact name.
func (c *Catalog) Database(name string) (*DatabaseSchema, bool) {
	for i := range c.Databases {
		if c.Databases[i].Name == name {
			return &c.Databases[i], true
		}
	}
	return nil, false
}

func (d *DatabaseSchema) table(name string) (*TableSchema, bool) {
	for i := range d.Tables {
		if d.Tables[i].Name == name {
			return &d.Tables[i], true
		}
	}
	return nil, false
}

// Backend fetches a full catalog snapshot from a concrete driver.
type Backend interface {
	FetchSchema(ctx context.Context) (*Catalog, error)
}

// RelationDirection discriminates outbound vs inbound foreign-key edges.
type RelationDirection int

const (
	Outbound RelationDirection = iota
	Inbound
)

// RelatedTable is one element of ListRelatedTables' result.
type RelatedTable struct {
	RelatedDatabase string
	RelatedTable    string
	RelatedColumn   string
	ConstraintName  string
	Direction       RelationDirection
}

type cachedSchema struct {
	fetchedAt time.Time
	catalog   *Catalog
}

// Cache is a single-entry, TTL-scoped schema cache.
type Cache struct {
	mu      sync.Mutex
	backend Backend
	ttl     time.Duration
	cache   *cachedSchema
	now     func() time.Time
}

// New builds a Cache with the given TTL. ttl of zero always refetches.
func New(backend Backend, ttl time.Duration) *Cache {
	return &Cache{backend: backend, ttl: ttl, now: time.Now}
}

// TTL returns the configured time-to-live.
func (c *Cache) TTL() time.Duration { return c.ttl }

// Invalidate clears the cached entry unconditionally.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cache = nil
}

// Schema returns the cached catalog when valid, otherwise fetches and
// replaces the entry.
func (c *Cache) Schema(ctx context.Context) (*Catalog, error) {
	c.mu.Lock()
	if c.cache != nil && c.now().Sub(c.cache.fetchedAt) <= c.ttl {
		catalog := c.cache.catalog
		c.mu.Unlock()
		return catalog, nil
	}
	c.mu.Unlock()
	return c.Refresh(ctx)
}

// Refresh forces a fetch and replaces the cached entry.
func (c *Cache) Refresh(ctx context.Context) (*Catalog, error) {
	catalog, err := c.backend.FetchSchema(ctx)
	if err != nil {
		return nil, fmt.Errorf("schema: backend failed: %w", err)
	}

	c.mu.Lock()
	c.cache = &cachedSchema{fetchedAt: c.now(), catalog: catalog}
	c.mu.Unlock()

	return catalog, nil
}

// ListDatabases projects database names from the cached catalog.
func (c *Cache) ListDatabases(ctx context.Context) ([]string, error) {
	catalog, err := c.Schema(ctx)
	if err != nil {
		return nil, err
	}
	names := make([]string, len(catalog.Databases))
	for i, db := range catalog.Databases {
		names[i] = db.Name
	}
	return names, nil
}

// ListTables projects table names for database, or an empty slice if the
// database is missing.
func (c *Cache) ListTables(ctx context.Context, database string) ([]string, error) {
	catalog, err := c.Schema(ctx)
	if err != nil {
		return nil, err
	}
	db, ok := catalog.Database(database)
	if !ok {
		return nil, nil
	}
	names := make([]string, len(db.Tables))
	for i, t := range db.Tables {
		names[i] = t.Name
	}
	return names, nil
}

// ListColumns projects column schemas for database.table, or an empty slice
// if either is missing.
func (c *Cache) ListColumns(ctx context.Context, database, table string) ([]ColumnSchema, error) {
	catalog, err := c.Schema(ctx)
	if err != nil {
		return nil, err
	}
	db, ok := catalog.Database(database)
	if !ok {
		return nil, nil
	}
	tbl, ok := db.table(table)
	if !ok {
		return nil, nil
	}
	out := make([]ColumnSchema, len(tbl.Columns))
	copy(out, tbl.Columns)
	return out, nil
}

// ListRelatedTables enumerates outbound foreign keys from (database, table)
// and inbound foreign keys from every other table in database that
// references (database, table), sorted by (related_database, related_table,
// related_column, constraint_name, direction) with Outbound before Inbound
// on ties.
func (c *Cache) ListRelatedTables(ctx context.Context, database, table string) ([]RelatedTable, error) {
	catalog, err := c.Schema(ctx)
	if err != nil {
		return nil, err
	}
	db, ok := catalog.Database(database)
	if !ok {
		return nil, nil
	}

	var related []RelatedTable

	if tbl, ok := db.table(table); ok {
		for _, fk := range tbl.ForeignKeys {
			related = append(related, RelatedTable{
				RelatedDatabase: fk.ReferencedDatabase,
				RelatedTable:    fk.ReferencedTable,
				RelatedColumn:   fk.ReferencedColumn,
				ConstraintName:  fk.ConstraintName,
				Direction:       Outbound,
			})
		}
	}

	for _, other := range db.Tables {
		if other.Name == table {
			continue
		}
		for _, fk := range other.ForeignKeys {
			if fk.ReferencedDatabase == database && fk.ReferencedTable == table {
				related = append(related, RelatedTable{
					RelatedDatabase: database,
					RelatedTable:    other.Name,
					RelatedColumn:   fk.ColumnName,
					ConstraintName:  fk.ConstraintName,
					Direction:       Inbound,
				})
			}
		}
	}

	sort.SliceStable(related, func(i, j int) bool {
		a, b := related[i], related[j]
		if a.RelatedDatabase != b.RelatedDatabase {
			return a.RelatedDatabase < b.RelatedDatabase
		}
		if a.RelatedTable != b.RelatedTable {
			return a.RelatedTable < b.RelatedTable
		}
		if a.RelatedColumn != b.RelatedColumn {
			return a.RelatedColumn < b.RelatedColumn
		}
		if a.ConstraintName != b.ConstraintName {
			return a.ConstraintName < b.ConstraintName
		}
		return a.Direction < b.Direction
	})

	return related, nil
}

// KeyColumnFor implements the pagination planner's key-column selection
// rule: a column named "id" (case-insensitive), else the first column whose
// lowercased name ends in "_id", else false.
func KeyColumnFor(columns []ColumnSchema) (string, bool) {
	for _, col := range columns {
		if strings.EqualFold(col.Name, "id") {
			return col.Name, true
		}
	}
	for _, col := range columns {
		if strings.HasSuffix(strings.ToLower(col.Name), "_id") {
			return col.Name, true
		}
	}
	return "", false
}
