package sqlxrepos

import (
	"context"
	"database/sql"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/trackle/storage/database"
)

// base runs squirrel queries against the database or, once bound, a single transaction.
type base struct {
	db   *sqlx.DB
	tx   *sqlx.Tx
	exec sqlx.ExtContext
	sb   sq.StatementBuilderType
}

func newBase(db *sqlx.DB) base {
	return base{
		db:   db,
		exec: db,
		sb:   sq.StatementBuilder.PlaceholderFormat(database.Placeholder(db.DriverName())),
	}
}

func (b base) withTx(tx *sqlx.Tx) base {
	b.tx = tx
	b.exec = tx
	return b
}

// runInTx runs fn within a transaction, unless already bound to one.
func (b base) runInTx(ctx context.Context, fn func(b base) error) error {
	if b.tx != nil {
		return fn(b)
	}
	tx, err := b.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(b.withTx(tx)); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}

func (b base) get(ctx context.Context, dest interface{}, q sq.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.GetContext(ctx, b.exec, dest, query, args...)
}

func (b base) sel(ctx context.Context, dest interface{}, q sq.Sqlizer) error {
	query, args, err := q.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	return sqlx.SelectContext(ctx, b.exec, dest, query, args...)
}

func (b base) run(ctx context.Context, q sq.Sqlizer) (sql.Result, error) {
	query, args, err := q.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	return b.exec.ExecContext(ctx, query, args...)
}

// insert runs the insert and returns the ID of the new row.
func (b base) insert(ctx context.Context, q sq.InsertBuilder) (int64, error) {
	var id int64
	err := b.get(ctx, &id, q.Suffix("RETURNING id"))
	return id, err
}

// affected returns `notFound` when the statement did not affect any row.
func affected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting affected rows")
	}
	if n == 0 {
		return notFound
	}
	return nil
}

// trapNoRowsErr maps "no rows" errors to `notFound`.
func trapNoRowsErr(err error, notFound error, msg string) error {
	if errors.Cause(err) == sql.ErrNoRows {
		return notFound
	}
	return errors.Wrap(err, msg)
}
