package identity

import (
	"database/sql"
	"strings"

	"github.com/goliatone/go-errors"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/driver/sqliteshim"
)

// Engine names a supported database engine.
type Engine string

const (
	EngineSQLite   Engine = "sqlite"
	EnginePostgres Engine = "postgres"
)

// DetectEngine infers the engine from a connection string. Postgres URLs
// use the postgres:// or postgresql:// scheme. SQLite accepts file:,
// sqlite: and :memory: DSNs as well as paths ending in .db or .sqlite.
func DetectEngine(dsn string) (Engine, string, bool) {
	d := strings.TrimSpace(dsn)
	lower := strings.ToLower(d)

	switch {
	case strings.HasPrefix(lower, "postgres://"), strings.HasPrefix(lower, "postgresql://"):
		return EnginePostgres, d, true
	case strings.HasPrefix(lower, "sqlite://"):
		return EngineSQLite, d[len("sqlite://"):], true
	case strings.HasPrefix(lower, "sqlite:"):
		return EngineSQLite, d[len("sqlite:"):], true
	case strings.HasPrefix(lower, "file:"), strings.HasPrefix(lower, ":memory:"):
		return EngineSQLite, d, true
	case strings.HasSuffix(lower, ".db"), strings.HasSuffix(lower, ".sqlite"):
		return EngineSQLite, d, true
	}
	return "", d, false
}

// Open opens the identity database for a connection string.
func Open(dsn string) (*bun.DB, error) {
	engine, conn, ok := DetectEngine(dsn)
	if !ok {
		// the dsn may carry credentials, only report its shape
		return nil, ErrUnsupportedDSN.Clone().WithMetadata(map[string]any{
			"hint": "expected postgres://, postgresql://, sqlite:, file: or :memory:",
		})
	}

	switch engine {
	case EnginePostgres:
		sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(conn)))
		return bun.NewDB(sqldb, pgdialect.New()), nil
	default:
		sqldb, err := sql.Open(sqliteshim.ShimName, conn)
		if err != nil {
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to open sqlite database")
		}
		if isMemory(conn) {
			// each connection to :memory: is a distinct database
			sqldb.SetMaxOpenConns(1)
		}
		db := bun.NewDB(sqldb, sqlitedialect.New())
		if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
			_ = db.Close()
			return nil, errors.Wrap(err, errors.CategoryInternal, "failed to enable sqlite foreign keys")
		}
		return db, nil
	}
}

func isMemory(dsn string) bool {
	return strings.Contains(dsn, ":memory:") || strings.Contains(dsn, "mode=memory")
}
