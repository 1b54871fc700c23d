package database

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"           // PostgreSQL driver
	_ "github.com/mattn/go-sqlite3" // SQLite3 driver
	"github.com/pressly/goose/v3"
	sqldblogger "github.com/simukti/sqldb-logger"

	"media-lite/internal/logging"
	"media-lite/internal/metrics"
)

// Default timeout for database operations
const defaultTimeout = 5 * time.Second

//go:embed migrations/*.sql
var migrations embed.FS

// Config selects the driver and data source.
type Config struct {
	// Driver is "sqlite3" or "postgres".
	Driver string
	// URL is a file path for sqlite3 or a DSN for postgres.
	URL string
}

// Database owns the catalog connection pool.
type Database struct {
	raw    *sql.DB
	db     *sqlx.DB
	driver string
}

// Open connects, applies pending migrations and returns a ready catalog.
// For sqlite3 the parent directory of cfg.URL must already exist.
func Open(ctx context.Context, cfg Config) (*Database, error) {
	dsn := cfg.URL
	switch cfg.Driver {
	case "sqlite3":
		logging.Info("Database path: %s", cfg.URL)
		if err := diagnoseDatabasePermissions(cfg.URL); err != nil {
			logging.Warn("Database permission diagnostics: %v", err)
		}
		dsn = sqliteDSN(cfg.URL)
	case "postgres":
		logging.Info("Database: postgres")
	default:
		return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
	}

	conn, err := sql.Open(cfg.Driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	drv := conn.Driver()
	_ = conn.Close()

	raw := sqldblogger.OpenDriver(dsn, drv, sqlLogger{},
		sqldblogger.WithMinimumLevel(sqldblogger.LevelDebug),
		sqldblogger.WithSQLQueryAsMessage(true),
	)

	pingCtx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	if err := raw.PingContext(pingCtx); err != nil {
		if closeErr := raw.Close(); closeErr != nil {
			logging.Error("failed to close database after ping failure: %v", closeErr)
		}
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	raw.SetMaxOpenConns(10)
	raw.SetMaxIdleConns(5)
	raw.SetConnMaxLifetime(time.Hour)

	d := &Database{
		raw:    raw,
		db:     sqlx.NewDb(raw, cfg.Driver),
		driver: cfg.Driver,
	}

	if err := d.migrate(); err != nil {
		if closeErr := raw.Close(); closeErr != nil {
			logging.Error("failed to close database after migration failure: %v", closeErr)
		}
		return nil, err
	}

	logging.Info("Database initialized successfully (%s)", cfg.Driver)
	return d, nil
}

// sqliteDSN adds the pragmas the catalog relies on. busy_timeout keeps the
// upload path and the converter from failing with "database is locked".
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"
}

// migrateMu guards goose's package-level settings.
var migrateMu sync.Mutex

func (d *Database) migrate() error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetBaseFS(migrations)
	goose.SetLogger(gooseLogger{})
	if err := goose.SetDialect(d.driver); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	if err := goose.Up(d.raw, "migrations"); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (d *Database) Close() error {
	return d.db.Close()
}

// Driver returns the configured driver name.
func (d *Database) Driver() string {
	return d.driver
}

// Ping checks the connection, for health endpoints.
func (d *Database) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()
	return d.db.PingContext(ctx)
}

// UpdateDBMetrics updates database connection metrics
func (d *Database) UpdateDBMetrics() {
	metrics.DBConnectionsOpen.Set(float64(d.db.Stats().OpenConnections))
}

// wrapTx runs f in a transaction, committing when f returns nil.
func (d *Database) wrapTx(ctx context.Context, f func(tx *sqlx.Tx) error) error {
	tx, err := d.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if err := f(tx); err != nil {
		return err
	}
	return tx.Commit()
}

// observeQuery starts timing an operation; call the result with its error.
func observeQuery(operation string) func(error) {
	start := time.Now()
	return func(err error) {
		recordQuery(operation, start, err)
	}
}

// recordQuery records database query metrics
func recordQuery(operation string, start time.Time, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	metrics.DBQueryTotal.WithLabelValues(operation, status).Inc()
	metrics.DBQueryDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

// sqlLogger forwards sqldb-logger events to the application log.
type sqlLogger struct{}

func (sqlLogger) Log(_ context.Context, level sqldblogger.Level, msg string, data map[string]interface{}) {
	switch level {
	case sqldblogger.LevelError:
		logging.Warn("sql: %s %v", msg, data["error"])
	default:
		if logging.IsDebugEnabled() {
			logging.Debug("sql: %s [%vms] args=%v", msg, data["duration"], data["args"])
		}
	}
}

// gooseLogger routes migration output through the application log.
type gooseLogger struct{}

func (gooseLogger) Fatal(v ...interface{})                 { logging.Fatal("%s", fmt.Sprint(v...)) }
func (gooseLogger) Fatalf(format string, v ...interface{}) { logging.Fatal(strings.TrimSpace(format), v...) }
func (gooseLogger) Print(v ...interface{})                 { logging.Info("%s", fmt.Sprint(v...)) }
func (gooseLogger) Println(v ...interface{})               { logging.Info("%s", strings.TrimSpace(fmt.Sprintln(v...))) }
func (gooseLogger) Printf(format string, v ...interface{}) { logging.Info(strings.TrimSpace(format), v...) }

// diagnoseDatabasePermissions checks database directory and file permissions
func diagnoseDatabasePermissions(dbPath string) error {
	dir := filepath.Dir(dbPath)

	dirInfo, err := os.Stat(dir)
	if err != nil {
		return fmt.Errorf("cannot stat database directory: %w", err)
	}
	logging.Debug("Database directory: %s (mode: %v)", dir, dirInfo.Mode())

	testFile := filepath.Join(dir, ".perm-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o600); err != nil {
		return fmt.Errorf("database directory not writable: %w", err)
	}
	_ = os.Remove(testFile)

	for _, path := range []string{dbPath, dbPath + "-wal", dbPath + "-shm"} {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		logging.Debug("Database file exists: %s (mode: %v, size: %d bytes)", path, info.Mode(), info.Size())
		if info.Mode().Perm()&0o200 == 0 {
			logging.Warn("Database file %s is read-only! Mode: %v", path, info.Mode())
		}
	}
	return nil
}
