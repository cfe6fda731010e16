// Package mysqlbackend adapts a profile.ConnectionProfile into the
// concrete connection, schema, and query backends the coordination core
// drives, talking to a MySQL-compatible server over
// github.com/go-sql-driver/mysql.
package mysqlbackend

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"database/sql"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/99designs/keyring"
	mysqldriver "github.com/go-sql-driver/mysql"

	"github.com/myr-db/myr/internal/profile"
	"github.com/myr-db/myr/internal/queryrunner"
	"github.com/myr-db/myr/internal/schema"
)

// tlsConfigCounter disambiguates TLS config names registered with the
// mysql driver's global registry, since RegisterTLSConfig requires a
// process-unique name per *tls.Config.
var (
	tlsConfigMu      sync.Mutex
	tlsConfigCounter int
)

func dsnFromProfile(p profile.ConnectionProfile) (string, error) {
	cfg := mysqldriver.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = fmt.Sprintf("%s:%d", p.Host, p.Port)
	cfg.User = p.User
	cfg.DBName = p.Database
	cfg.ParseTime = true

	if password := resolvePassword(p); password != "" {
		cfg.Passwd = password
	}

	tlsName, err := registerTLSConfig(p)
	if err != nil {
		return "", err
	}
	if tlsName != "" {
		cfg.TLSConfig = tlsName
	}

	return cfg.FormatDSN(), nil
}

// registerTLSConfig builds and registers a *tls.Config for profile when
// its TLSMode requests one, returning the name to set on mysql.Config.TLSConfig
// ("" when TLS should not be requested at all).
func registerTLSConfig(p profile.ConnectionProfile) (string, error) {
	if !profileRequestsTLS(p) {
		return "", nil
	}

	tlsConfig := &tls.Config{
		InsecureSkipVerify: p.TLSAcceptInvalidCerts || p.TLSSkipDomainValidation,
	}

	if path := strings.TrimSpace(p.TLSCACertPath); path != "" {
		pem, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("mysqlbackend: read CA cert %s: %w", path, err)
		}
		pool := x509.NewCertPool()
		if !p.TLSDisableBuiltInRoots {
			if systemPool, err := x509.SystemCertPool(); err == nil {
				pool = systemPool
			}
		}
		if !pool.AppendCertsFromPEM(pem) {
			return "", fmt.Errorf("mysqlbackend: no certificates parsed from %s", path)
		}
		tlsConfig.RootCAs = pool
	}

	if certPath, keyPath := strings.TrimSpace(p.TLSClientCertPath), strings.TrimSpace(p.TLSClientKeyPath); certPath != "" && keyPath != "" {
		cert, err := tls.LoadX509KeyPair(certPath, keyPath)
		if err != nil {
			return "", fmt.Errorf("mysqlbackend: load client identity: %w", err)
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	if override := strings.TrimSpace(p.TLSHostnameOverride); override != "" {
		tlsConfig.ServerName = override
	}

	tlsConfigMu.Lock()
	tlsConfigCounter++
	name := fmt.Sprintf("myr-%d", tlsConfigCounter)
	tlsConfigMu.Unlock()

	if err := mysqldriver.RegisterTLSConfig(name, tlsConfig); err != nil {
		return "", fmt.Errorf("mysqlbackend: register TLS config: %w", err)
	}
	return name, nil
}

func profileRequestsTLS(p profile.ConnectionProfile) bool {
	switch p.TLSMode {
	case profile.TLSDisabled:
		return false
	case profile.TLSRequire, profile.TLSVerifyIdentity:
		return true
	default: // TLSPrefer
		return hasCustomTLSSettings(p)
	}
}

func hasCustomTLSSettings(p profile.ConnectionProfile) bool {
	return strings.TrimSpace(p.TLSCACertPath) != "" ||
		strings.TrimSpace(p.TLSClientCertPath) != "" ||
		strings.TrimSpace(p.TLSClientKeyPath) != "" ||
		strings.TrimSpace(p.TLSHostnameOverride) != "" ||
		p.TLSDisableBuiltInRoots ||
		p.TLSSkipDomainValidation ||
		p.TLSAcceptInvalidCerts
}

// resolvePassword follows the profile's PasswordSource: env var directly,
// or keyring with an env-var backfill (store once read from the
// environment so future connects don't need MYR_DB_PASSWORD set).
func resolvePassword(p profile.ConnectionProfile) string {
	envPassword := os.Getenv("MYR_DB_PASSWORD")

	switch p.PasswordSource {
	case profile.PasswordKeyring:
		if password, ok := loadKeyringPassword(p); ok {
			return password
		}
		if envPassword != "" {
			storeKeyringPassword(p, envPassword)
			return envPassword
		}
		return ""
	default: // PasswordEnvVar
		return envPassword
	}
}

func keyringForProfile(p profile.ConnectionProfile) (keyring.Keyring, string, error) {
	service := strings.TrimSpace(p.KeyringService)
	if service == "" {
		service = "myr"
	}
	account := strings.TrimSpace(p.KeyringAccount)
	if account == "" {
		account = p.Name
	}
	ring, err := keyring.Open(keyring.Config{ServiceName: service})
	if err != nil {
		return nil, "", err
	}
	return ring, account, nil
}

func loadKeyringPassword(p profile.ConnectionProfile) (string, bool) {
	ring, account, err := keyringForProfile(p)
	if err != nil {
		return "", false
	}
	item, err := ring.Get(account)
	if err != nil || len(item.Data) == 0 {
		return "", false
	}
	return string(item.Data), true
}

func storeKeyringPassword(p profile.ConnectionProfile, password string) {
	if password == "" {
		return
	}
	ring, account, err := keyringForProfile(p)
	if err != nil {
		return
	}
	_ = ring.Set(keyring.Item{Key: account, Data: []byte(password)})
}

// ConnectionBackend adapts *sql.DB to supervisor.ConnectionBackend.
type ConnectionBackend struct {
	profile profile.ConnectionProfile
	db      *sql.DB
}

// NewConnectionBackend builds a ConnectionBackend for p. No network I/O
// happens until Connect.
func NewConnectionBackend(p profile.ConnectionProfile) *ConnectionBackend {
	return &ConnectionBackend{profile: p}
}

// Connect opens the pool and verifies connectivity with a ping.
func (b *ConnectionBackend) Connect(ctx context.Context) error {
	dsn, err := dsnFromProfile(b.profile)
	if err != nil {
		return err
	}

	db, err := sql.Open("mysql", dsn)
	if err != nil {
		return fmt.Errorf("mysqlbackend: open: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("mysqlbackend: connect: %w", err)
	}

	b.db = db
	return nil
}

// Ping verifies the existing connection is alive.
func (b *ConnectionBackend) Ping(ctx context.Context) error {
	if b.db == nil {
		return fmt.Errorf("mysqlbackend: ping: not connected")
	}
	return b.db.PingContext(ctx)
}

// Close tears the pool down.
func (b *ConnectionBackend) Close(ctx context.Context) error {
	if b.db == nil {
		return nil
	}
	err := b.db.Close()
	b.db = nil
	return err
}

// DB exposes the underlying pool for DataBackend construction once
// connected.
func (b *ConnectionBackend) DB() *sql.DB { return b.db }

// DataBackend adapts *sql.DB to schema.Backend and queryrunner.Backend.
type DataBackend struct {
	db *sql.DB
}

// NewDataBackend wraps an already-connected pool.
func NewDataBackend(db *sql.DB) *DataBackend {
	return &DataBackend{db: db}
}

// FetchSchema walks SHOW DATABASES / information_schema.TABLES /
// information_schema.COLUMNS / information_schema.KEY_COLUMN_USAGE to
// build a full catalog snapshot.
func (b *DataBackend) FetchSchema(ctx context.Context) (*schema.Catalog, error) {
	databases, err := queryStrings(ctx, b.db, "SHOW DATABASES")
	if err != nil {
		return nil, fmt.Errorf("mysqlbackend: list databases: %w", err)
	}

	catalog := &schema.Catalog{Databases: make([]schema.DatabaseSchema, 0, len(databases))}

	for _, database := range databases {
		tables, err := queryStringsArgs(ctx, b.db,
			`SELECT TABLE_NAME FROM information_schema.TABLES
			 WHERE TABLE_SCHEMA = ? ORDER BY TABLE_NAME`, database)
		if err != nil {
			return nil, fmt.Errorf("mysqlbackend: list tables for %s: %w", database, err)
		}

		dbSchema := schema.DatabaseSchema{Name: database, Tables: make([]schema.TableSchema, 0, len(tables))}

		for _, table := range tables {
			columns, err := fetchColumns(ctx, b.db, database, table)
			if err != nil {
				return nil, err
			}
			foreignKeys, err := fetchForeignKeys(ctx, b.db, database, table)
			if err != nil {
				return nil, err
			}
			dbSchema.Tables = append(dbSchema.Tables, schema.TableSchema{
				Name:        table,
				Columns:     columns,
				ForeignKeys: foreignKeys,
			})
		}

		catalog.Databases = append(catalog.Databases, dbSchema)
	}

	return catalog, nil
}

func fetchColumns(ctx context.Context, db *sql.DB, database, table string) ([]schema.ColumnSchema, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT COLUMN_NAME, COLUMN_TYPE, IS_NULLABLE, COLUMN_DEFAULT
		 FROM information_schema.COLUMNS
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		 ORDER BY ORDINAL_POSITION`, database, table)
	if err != nil {
		return nil, fmt.Errorf("mysqlbackend: list columns for %s.%s: %w", database, table, err)
	}
	defer rows.Close()

	var columns []schema.ColumnSchema
	for rows.Next() {
		var name, dataType, nullable string
		var defaultValue sql.NullString
		if err := rows.Scan(&name, &dataType, &nullable, &defaultValue); err != nil {
			return nil, fmt.Errorf("mysqlbackend: scan column row: %w", err)
		}
		columns = append(columns, schema.ColumnSchema{
			Name:         name,
			DataType:     dataType,
			Nullable:     strings.EqualFold(nullable, "YES"),
			DefaultValue: defaultValue.String,
			HasDefault:   defaultValue.Valid,
		})
	}
	return columns, rows.Err()
}

func fetchForeignKeys(ctx context.Context, db *sql.DB, database, table string) ([]schema.ForeignKeySchema, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT CONSTRAINT_NAME, COLUMN_NAME, REFERENCED_TABLE_SCHEMA,
		        REFERENCED_TABLE_NAME, REFERENCED_COLUMN_NAME
		 FROM information_schema.KEY_COLUMN_USAGE
		 WHERE TABLE_SCHEMA = ? AND TABLE_NAME = ?
		   AND REFERENCED_TABLE_NAME IS NOT NULL
		 ORDER BY CONSTRAINT_NAME, ORDINAL_POSITION`, database, table)
	if err != nil {
		return nil, fmt.Errorf("mysqlbackend: list foreign keys for %s.%s: %w", database, table, err)
	}
	defer rows.Close()

	var foreignKeys []schema.ForeignKeySchema
	for rows.Next() {
		var fk schema.ForeignKeySchema
		if err := rows.Scan(&fk.ConstraintName, &fk.ColumnName, &fk.ReferencedDatabase, &fk.ReferencedTable, &fk.ReferencedColumn); err != nil {
			return nil, fmt.Errorf("mysqlbackend: scan foreign key row: %w", err)
		}
		foreignKeys = append(foreignKeys, fk)
	}
	return foreignKeys, rows.Err()
}

func queryStrings(ctx context.Context, db *sql.DB, query string) ([]string, error) {
	return queryStringsArgs(ctx, db, query)
}

func queryStringsArgs(ctx context.Context, db *sql.DB, query string, args ...any) ([]string, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var value string
		if err := rows.Scan(&value); err != nil {
			return nil, err
		}
		out = append(out, value)
	}
	return out, rows.Err()
}

// sqlRowStream adapts *sql.Rows to queryrunner.RowStream, converting every
// column to its display string and honoring cancellation by simply
// stopping iteration (the caller is expected to also cancel ctx).
type sqlRowStream struct {
	rows      *sql.Rows
	columns   int
	cancelled bool
}

func (s *sqlRowStream) Next(ctx context.Context) (queryrunner.QueryRow, bool, error) {
	if s.cancelled {
		return queryrunner.QueryRow{}, false, nil
	}
	if !s.rows.Next() {
		return queryrunner.QueryRow{}, false, s.rows.Err()
	}

	raw := make([]any, s.columns)
	ptrs := make([]any, s.columns)
	for i := range raw {
		ptrs[i] = &raw[i]
	}
	if err := s.rows.Scan(ptrs...); err != nil {
		return queryrunner.QueryRow{}, false, fmt.Errorf("mysqlbackend: scan row: %w", err)
	}

	values := make([]string, s.columns)
	for i, v := range raw {
		values[i] = sqlValueToString(v)
	}
	return queryrunner.QueryRow{Values: values}, true, nil
}

func (s *sqlRowStream) Close() error {
	s.cancelled = true
	return s.rows.Close()
}

func sqlValueToString(v any) string {
	switch value := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(value)
	case string:
		return value
	case int64:
		return strconv.FormatInt(value, 10)
	case float64:
		return strconv.FormatFloat(value, 'g', -1, 64)
	case bool:
		return strconv.FormatBool(value)
	case time.Time:
		return value.Format("2006-01-02 15:04:05.000000")
	default:
		return fmt.Sprintf("%v", value)
	}
}

// RunQuery starts sql and returns a streaming cursor over its result set.
func (b *DataBackend) RunQuery(ctx context.Context, query string) (queryrunner.RowStream, error) {
	rows, err := b.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("mysqlbackend: run query: %w", err)
	}
	columns, err := rows.Columns()
	if err != nil {
		rows.Close()
		return nil, fmt.Errorf("mysqlbackend: read columns: %w", err)
	}
	return &sqlRowStream{rows: rows, columns: len(columns)}, nil
}
