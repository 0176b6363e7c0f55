package db

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/router-for-me/StationPortal/internal/config"
	log "github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const (
	pingTimeout     = 5 * time.Second
	connMaxLifetime = 30 * time.Minute
	// sqlite allows one writer at a time.
	sqliteMaxConns = 4
)

// sqlitePragmas run on every new connection unless the DSN sets the same pragma.
var sqlitePragmas = []string{
	"busy_timeout(5000)",
	"journal_mode(WAL)",
	"synchronous(NORMAL)",
	"foreign_keys(1)",
}

// gormLogWriter forwards gorm log lines to logrus.
type gormLogWriter struct{}

// Printf implements logger.Writer.
func (gormLogWriter) Printf(format string, args ...any) {
	log.WithField("component", "gorm").Warnf(format, args...)
}

func gormConfig() *gorm.Config {
	return &gorm.Config{Logger: logger.New(gormLogWriter{}, logger.Config{
		SlowThreshold:             500 * time.Millisecond,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
	})}
}

// Open opens the portal database described by cfg. Postgres DSNs go through
// pgx; anything else is treated as a sqlite file.
func Open(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := strings.TrimSpace(cfg.DSN)
	if dsn == "" {
		return nil, config.ErrMissingDSN
	}
	loc, errLoc := stationLocation(cfg.TimeZone)
	if errLoc != nil {
		return nil, errLoc
	}

	dialect, errDialect := dialectOf(dsn)
	if errDialect != nil {
		return nil, errDialect
	}
	var (
		conn    *gorm.DB
		errOpen error
	)
	if dialect == DialectPostgres {
		conn, errOpen = openPostgres(dsn, loc, cfg.MaxOpenConns)
	} else {
		conn, errOpen = openSQLite(dsn)
	}
	if errOpen != nil {
		return nil, errOpen
	}
	log.WithFields(log.Fields{"dialect": dialect, "time_zone": loc.String()}).Info("db: connection opened")
	return conn, nil
}

// Close closes the underlying sql.DB of a gorm connection.
func Close(conn *gorm.DB) error {
	if conn == nil {
		return nil
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the connection within the ping timeout.
func Ping(ctx context.Context, conn *gorm.DB) error {
	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return sqlDB.PingContext(pingCtx)
}

// stationLocation resolves the zone sales dates are recorded in. Empty means the process zone.
func stationLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("db: time zone %q: %w", name, err)
	}
	return loc, nil
}

func dialectOf(dsn string) (string, error) {
	lower := strings.ToLower(dsn)
	if strings.HasPrefix(lower, "postgres://") || strings.HasPrefix(lower, "postgresql://") {
		return DialectPostgres, nil
	}
	for _, key := range []string{"host=", "dbname=", "sslmode="} {
		if strings.Contains(lower, key) {
			return DialectPostgres, nil
		}
	}
	if strings.HasPrefix(lower, "file:") || strings.HasPrefix(lower, "sqlite://") || !strings.Contains(lower, "://") {
		return DialectSQLite, nil
	}
	return "", fmt.Errorf("db: unsupported dsn scheme in %q", dsn)
}

// openPostgres scans timestamps in loc so date_completed keeps its calendar day.
func openPostgres(dsn string, loc *time.Location, maxConns int) (*gorm.DB, error) {
	pgCfg, errParse := pgx.ParseConfig(dsn)
	if errParse != nil {
		return nil, fmt.Errorf("db: parse dsn: %w", errParse)
	}
	pgCfg.RuntimeParams["timezone"] = loc.String()
	sqlDB := stdlib.OpenDB(*pgCfg, stdlib.OptionAfterConnect(func(_ context.Context, c *pgx.Conn) error {
		c.TypeMap().RegisterType(&pgtype.Type{Name: "timestamp", OID: pgtype.TimestampOID, Codec: &pgtype.TimestampCodec{ScanLocation: loc}})
		c.TypeMap().RegisterType(&pgtype.Type{Name: "timestamptz", OID: pgtype.TimestamptzOID, Codec: &pgtype.TimestamptzCodec{ScanLocation: loc}})
		return nil
	}))
	if maxConns <= 0 {
		maxConns = config.DefaultMaxOpenConns
	}
	sqlDB.SetMaxOpenConns(maxConns)
	sqlDB.SetMaxIdleConns(maxConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)

	conn, errOpen := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), gormConfig())
	if errOpen != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db: open postgres: %w", errOpen)
	}
	if errPing := Ping(context.Background(), conn); errPing != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("db: ping: %w", errPing)
	}
	return conn, nil
}

func openSQLite(dsn string) (*gorm.DB, error) {
	fileDSN, path := sqliteDSN(dsn)
	if path != "" {
		if dir := filepath.Dir(path); dir != "." {
			if errMkdir := os.MkdirAll(dir, 0o755); errMkdir != nil {
				return nil, fmt.Errorf("db: create sqlite dir: %w", errMkdir)
			}
		}
	}

	conn, errOpen := gorm.Open(sqlite.Open(fileDSN), gormConfig())
	if errOpen != nil {
		return nil, fmt.Errorf("db: open sqlite: %w", errOpen)
	}
	sqlDB, errSQL := conn.DB()
	if errSQL != nil {
		return nil, fmt.Errorf("db: open sqlite: %w", errSQL)
	}
	sqlDB.SetMaxOpenConns(sqliteMaxConns)
	sqlDB.SetConnMaxLifetime(connMaxLifetime)
	return conn, nil
}

// sqliteDSN rewrites sqlite:// and bare paths into a file: DSN carrying the
// default pragmas, and returns the on-disk path ("" for in-memory databases).
func sqliteDSN(dsn string) (string, string) {
	raw := dsn
	if i := strings.Index(raw, "://"); i >= 0 {
		raw = raw[i+len("://"):]
	}
	raw = strings.TrimPrefix(raw, "file:")

	path, rawQuery, _ := strings.Cut(raw, "?")
	query, errQuery := url.ParseQuery(rawQuery)
	if errQuery != nil {
		query = url.Values{}
	}
	for _, pragma := range sqlitePragmas {
		name, _, _ := strings.Cut(pragma, "(")
		if !hasPragma(query["_pragma"], name) {
			query.Add("_pragma", pragma)
		}
	}
	out := "file:" + path + "?" + query.Encode()
	if path == "" || path == ":memory:" || query.Get("mode") == "memory" {
		return out, ""
	}
	return out, path
}

func hasPragma(values []string, name string) bool {
	for _, v := range values {
		if strings.HasPrefix(strings.ToLower(strings.TrimSpace(v)), name) {
			return true
		}
	}
	return false
}
