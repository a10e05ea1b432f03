// Package db is a small document store on top of database/sql. Documents are
// JSON objects grouped in named collections and addressed by an opaque
// generated id. SQLite and PostgreSQL are supported.
package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"phatsurf/internal/db/migrations"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pressly/goose/v3"
)

var (
	ErrNotFound          = errors.New("document not found")
	ErrDuplicateKey      = errors.New("duplicate key")
	ErrInvalidFilter     = errors.New("invalid filter")
	ErrUnsupportedDriver = errors.New("unsupported database driver")
)

// DuplicateKeyError reports the unique index an insert violated.
type DuplicateKeyError struct {
	Index string
	Err   error
}

func (e *DuplicateKeyError) Error() string {
	if e.Index == "" {
		return "duplicate key"
	}
	return fmt.Sprintf("duplicate key on index %s", e.Index)
}

func (e *DuplicateKeyError) Is(target error) bool { return target == ErrDuplicateKey }

func (e *DuplicateKeyError) Unwrap() error { return e.Err }

type dialect struct {
	name  string
	goose goose.Dialect
	// field renders the SQL expression extracting a top-level JSON field.
	field func(name string) string
	// bind renders the n-th (1-based) query placeholder.
	bind func(n int) string
}

var dialects = map[string]dialect{
	"sqlite3": {
		name:  "sqlite3",
		goose: goose.DialectSQLite3,
		field: func(name string) string { return "json_extract(body, '$." + name + "')" },
		bind:  func(int) string { return "?" },
	},
	"postgres": {
		name:  "postgres",
		goose: goose.DialectPostgres,
		field: func(name string) string { return "body->>'" + name + "'" },
		bind:  func(n int) string { return "$" + strconv.Itoa(n) },
	},
}

type DB struct {
	*sql.DB
	dialect dialect
}

// Migrator brings the schema of an opened database up to date.
type Migrator interface {
	Up(ctx context.Context, db *sql.DB, driver string) error
}

// Option configures Init.
type Option func(*options)

type options struct {
	migrator Migrator
}

// WithMigrator replaces the embedded goose migrations.
func WithMigrator(m Migrator) Option {
	return func(o *options) { o.migrator = m }
}

// Init opens the database, checks connectivity and applies migrations.
func Init(driver, dsn string, opts ...Option) (*DB, error) {
	o := options{migrator: GooseMigrator{}}
	for _, opt := range opts {
		opt(&o)
	}

	if _, ok := dialects[driver]; !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}

	sqlDB, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, err
	}

	if driver == "sqlite3" {
		// one connection keeps :memory: databases alive and serializes writers
		sqlDB.SetMaxOpenConns(1)
	}

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, err
	}

	if err := o.migrator.Up(context.Background(), sqlDB, driver); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}

	return New(sqlDB, driver)
}

// New wraps an already opened connection without running migrations.
func New(sqlDB *sql.DB, driver string) (*DB, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
	return &DB{DB: sqlDB, dialect: d}, nil
}

// GooseMigrator applies the embedded migrations of the driver's dialect
// through a goose provider.
type GooseMigrator struct{}

func (GooseMigrator) Up(ctx context.Context, sqlDB *sql.DB, driver string) error {
	d, ok := dialects[driver]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnsupportedDriver, driver)
	}
	fsys, err := fs.Sub(migrations.FS, d.name)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(d.goose, sqlDB, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	_, err = provider.Up(ctx)
	return err
}

// Collection returns a handle on the named collection. Collections need no
// explicit creation.
func (db *DB) Collection(name string) *Collection {
	return &Collection{db: db, name: name}
}

// translateError maps driver specific unique violations to DuplicateKeyError.
func translateError(err error) error {
	if err == nil {
		return nil
	}

	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) && liteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
		return &DuplicateKeyError{Index: sqliteIndexName(liteErr.Error()), Err: err}
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		return &DuplicateKeyError{Index: pqErr.Constraint, Err: err}
	}

	return err
}

// sqliteIndexName extracts the index from messages such as
// "UNIQUE constraint failed: index 'documents_users_email_key'".
func sqliteIndexName(msg string) string {
	const marker = "index '"
	i := strings.Index(msg, marker)
	if i < 0 {
		return ""
	}
	rest := msg[i+len(marker):]
	if j := strings.IndexByte(rest, '\''); j >= 0 {
		return rest[:j]
	}
	return rest
}
