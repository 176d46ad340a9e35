package database

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"bibliotech/internal/config"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // goqu postgres dialect
	_ "github.com/doug-martin/goqu/v9/dialect/sqlite3"  // goqu sqlite3 dialect
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // postgres driver
	"github.com/rs/zerolog"
)

// DB is the relational store. SQL is built with goqu for the configured
// dialect and executed through sqlx.
type DB struct {
	*sqlx.DB
	driver  string
	dialect goqu.DialectWrapper
	pool    *pgxpool.Pool
	logger  *zerolog.Logger
}

// NewDB opens a SQLite database at path (":memory:" for tests) and creates
// the schema.
func NewDB(path string, logger *zerolog.Logger) (*DB, error) {
	return Open(context.Background(), config.DatabaseConfig{Driver: config.DriverSQLite, Path: path}, logger)
}

// Open connects with the configured driver and creates the schema.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *zerolog.Logger) (*DB, error) {
	if logger == nil {
		nop := zerolog.Nop()
		logger = &nop
	}

	db := &DB{driver: cfg.Driver, logger: logger}
	var err error

	switch cfg.Driver {
	case config.DriverSQLite, "":
		db.driver = config.DriverSQLite
		db.DB, err = openSQLite(cfg.Path)
	case config.DriverPostgres:
		db.DB, err = openPostgres(cfg.Postgres)
	case config.DriverPgx:
		db.DB, db.pool, err = openPgx(ctx, cfg.Postgres)
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}

	if db.isSQLite() {
		db.dialect = goqu.Dialect("sqlite3")
	} else {
		db.dialect = goqu.Dialect("postgres")
	}

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	logger.Info().Str("driver", db.driver).Msg("Database initialized")
	return db, nil
}

func openSQLite(path string) (*sqlx.DB, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := path
	if !strings.Contains(dsn, "?") {
		dsn += "?_foreign_keys=on&_busy_timeout=5000"
	}
	sqlDB, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// One connection: keeps ":memory:" databases alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	return sqlDB, nil
}

func openPostgres(cfg config.PostgresConfig) (*sqlx.DB, error) {
	sqlDB, err := sqlx.Open("postgres", cfg.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.MaxConnections)
	sqlDB.SetMaxIdleConns(max(cfg.MinConnections, 2))
	sqlDB.SetConnMaxLifetime(cfg.MaxConnLifetime)
	return sqlDB, nil
}

func openPgx(ctx context.Context, cfg config.PostgresConfig) (*sqlx.DB, *pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.ConnString())
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse postgres config: %w", err)
	}
	if cfg.MaxConnections > 0 {
		poolCfg.MaxConns = int32(cfg.MaxConnections)
	}
	if cfg.MinConnections > 0 {
		poolCfg.MinConns = int32(cfg.MinConnections)
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}
	return sqlx.NewDb(stdlib.OpenDBFromPool(pool), "pgx"), pool, nil
}

// Close releases the connection pool.
func (db *DB) Close() error {
	err := db.DB.Close()
	if db.pool != nil {
		db.pool.Close()
	}
	return err
}

func (db *DB) Driver() string {
	return db.driver
}

func (db *DB) isSQLite() bool {
	return db.driver == config.DriverSQLite
}

// inTx runs fn inside a transaction, committing when it returns nil.
func (db *DB) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// storeNow is the store clock. Postgres keeps microseconds and lib/pq sends
// nanoseconds, so values are truncated before they are written.
func storeNow() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

func (db *DB) from(table any) *goqu.SelectDataset {
	return db.dialect.From(table).Prepared(true)
}

func (db *DB) insert(table string) *goqu.InsertDataset {
	return db.dialect.Insert(table).Prepared(true)
}

func (db *DB) update(table string) *goqu.UpdateDataset {
	return db.dialect.Update(table).Prepared(true)
}

type sqlBuilder interface {
	ToSQL() (string, []interface{}, error)
}

func (db *DB) get(ctx context.Context, q sqlx.QueryerContext, dest any, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return sqlx.GetContext(ctx, q, dest, query, args...)
}

func (db *DB) selectAll(ctx context.Context, q sqlx.QueryerContext, dest any, b sqlBuilder) error {
	query, args, err := b.ToSQL()
	if err != nil {
		return fmt.Errorf("build query: %w", err)
	}
	return sqlx.SelectContext(ctx, q, dest, query, args...)
}

// exec runs a statement and returns the number of affected rows.
func (db *DB) exec(ctx context.Context, q sqlx.ExecerContext, b sqlBuilder) (int64, error) {
	query, args, err := b.ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	result, err := q.ExecContext(ctx, query, args...)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected()
}

// insertID runs an insert and returns the generated id. goqu's sqlite3
// dialect has no RETURNING support, so SQLite goes through LastInsertId.
func (db *DB) insertID(ctx context.Context, q sqlx.ExtContext, ds *goqu.InsertDataset) (int64, error) {
	if db.isSQLite() {
		query, args, err := ds.ToSQL()
		if err != nil {
			return 0, fmt.Errorf("build query: %w", err)
		}
		result, err := q.ExecContext(ctx, query, args...)
		if err != nil {
			return 0, err
		}
		return result.LastInsertId()
	}

	query, args, err := ds.Returning(colID).ToSQL()
	if err != nil {
		return 0, fmt.Errorf("build query: %w", err)
	}
	var id int64
	if err := q.QueryRowxContext(ctx, query, args...).Scan(&id); err != nil {
		return 0, err
	}
	return id, nil
}

func (db *DB) count(ctx context.Context, q sqlx.QueryerContext, ds *goqu.SelectDataset) (int64, error) {
	var n int64
	if err := db.get(ctx, q, &n, ds.Select(goqu.COUNT(goqu.Star()))); err != nil {
		return 0, err
	}
	return n, nil
}
