package database

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // registers "pgx"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq" // registers "postgres"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
	"github.com/pressly/goose/v3"

	"github.com/trezcool/trackle/core"
	"github.com/trezcool/trackle/fs"
)

const (
	EnginePostgres = "postgres"
	EnginePgx      = "pgx"
	EngineSQLite   = "sqlite3"
)

func postgresURL(dbName string, admin bool, conf *core.Config) string {
	user := url.UserPassword(conf.Database.User, conf.Database.Password)
	if admin && conf.Database.AdminUser != "" {
		user = url.UserPassword(conf.Database.AdminUser, conf.Database.AdminPassword)
	}

	sslMode := "require"
	if conf.Database.DisableTLS {
		sslMode = "disable"
	}
	q := make(url.Values)
	q.Set("sslmode", sslMode)
	q.Set("timezone", "utc")

	u := url.URL{
		Scheme:   "postgres",
		User:     user,
		Host:     conf.Database.Address(),
		Path:     dbName,
		RawQuery: q.Encode(),
	}
	return u.String()
}

// SQLiteDSN returns the DSN of the sqlite database `name`, with foreign keys enforced.
// An in-memory database is shared by the connections of the pool when `memory` is true.
func SQLiteDSN(name string, memory bool) string {
	if memory {
		return fmt.Sprintf("file:%s?mode=memory&cache=shared&_foreign_keys=on", name)
	}
	return fmt.Sprintf("file:%s?_foreign_keys=on&_busy_timeout=5000", name)
}

func open(dbName string, admin bool, conf *core.Config) (*sqlx.DB, error) {
	switch conf.Database.Engine {
	case EngineSQLite:
		return OpenSQLite(SQLiteDSN(dbName, false))
	case EnginePostgres, EnginePgx:
		return sqlx.Open(conf.Database.Engine, postgresURL(dbName, admin, conf))
	default:
		return nil, errors.Errorf("unsupported database engine %q", conf.Database.Engine)
	}
}

// Open opens the configured database and waits for it to be ready.
func Open(conf *core.Config) (*sqlx.DB, error) {
	db, err := open(conf.Database.Name, false, conf)
	if err != nil {
		return nil, errors.Wrap(err, "opening database")
	}
	if err = ping(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// OpenSQLite opens a sqlite database. sqlite does not handle concurrent writers: the pool is limited to a
// single connection, so a transaction must not be mixed with queries outside of it.
func OpenSQLite(dsn string) (*sqlx.DB, error) {
	db, err := sqlx.Open(EngineSQLite, dsn)
	if err != nil {
		return nil, errors.Wrap(err, "opening sqlite database")
	}
	db.SetMaxOpenConns(1)
	return db, nil
}

// ping waits for the database to be ready. Waits 100ms longer between each attempt.
func ping(db *sqlx.DB) error {
	var err error
	maxAttempts := 30
	for attempts := 1; attempts <= maxAttempts; attempts++ {
		err = db.Ping()
		if err == nil {
			break
		}
		time.Sleep(time.Duration(attempts) * 100 * time.Millisecond)
	}

	if err != nil {
		return errors.Wrap(err, "DB ping timeout")
	}
	return nil
}

func exists(db *sqlx.DB, query, name string) (bool, error) {
	var found bool
	err := db.Get(&found, query, name)
	if err == sql.ErrNoRows {
		return false, nil
	}
	return found, err
}

func createAppUser(db *sqlx.DB, conf *core.Config) error {
	if conf.Database.User == "" {
		return nil
	}

	found, err := exists(db, "SELECT true FROM pg_roles WHERE rolname = $1", conf.Database.User)
	if err != nil {
		return errors.Wrap(err, "checking app user")
	}
	if !found {
		q := fmt.Sprintf("CREATE USER %s CREATEDB ENCRYPTED PASSWORD %s",
			pq.QuoteIdentifier(conf.Database.User), pq.QuoteLiteral(conf.Database.Password))
		if _, err = db.Exec(q); err != nil {
			return errors.Wrap(err, "creating app user")
		}
	}
	return nil
}

func createDB(db *sqlx.DB, conf *core.Config) error {
	found, err := exists(db, "SELECT true FROM pg_database WHERE datname = $1", conf.Database.Name)
	if err != nil {
		return errors.Wrap(err, "checking DB")
	}
	if !found {
		if _, err = db.Exec("CREATE DATABASE " + pq.QuoteIdentifier(conf.Database.Name)); err != nil {
			return errors.Wrap(err, "creating database")
		}
	}
	return nil
}

// CreateIfNotExist creates the postgres app user & database. sqlite databases are created on open.
func CreateIfNotExist(conf *core.Config) error {
	if !conf.Database.IsPostgres() {
		return nil
	}

	// connect as admin
	db, err := open("postgres", true, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = db.Close() }()

	if err = ping(db); err != nil {
		return errors.Wrap(err, "pinging database")
	}
	if err = createAppUser(db, conf); err != nil {
		return errors.Wrap(err, "creating app user")
	}

	// create DB as app user
	appDB, err := open("postgres", false, conf)
	if err != nil {
		return errors.Wrap(err, "opening database")
	}
	defer func() { _ = appDB.Close() }()
	return createDB(appDB, conf)
}

func dialect(driverName string) string {
	if driverName == EngineSQLite {
		return "sqlite3"
	}
	return "postgres"
}

// MigrationsDir points goose to the embedded migrations and returns the directory of the database dialect.
func MigrationsDir(db *sqlx.DB) (string, error) {
	d := dialect(db.DriverName())
	goose.SetBaseFS(appfs.FS)
	if err := goose.SetDialect(d); err != nil {
		return "", errors.Wrap(err, "setting migrations dialect")
	}
	return "migrations/" + d, nil
}

// Migrate applies the embedded migrations of the database dialect.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	dir, err := MigrationsDir(db)
	if err != nil {
		return err
	}
	if err = goose.UpContext(ctx, db.DB, dir); err != nil {
		return errors.Wrap(err, "migrating database")
	}
	return nil
}

// Placeholder returns the bind variables format of the driver.
func Placeholder(driverName string) sq.PlaceholderFormat {
	if driverName == EngineSQLite {
		return sq.Question
	}
	return sq.Dollar
}

// IsUniqueViolation reports whether `err` is a unique constraint violation, whatever the driver.
func IsUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique || liteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}
