package sqlxrepos

import (
	"context"
	"database/sql"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/trackle/core/user"
	"github.com/trezcool/trackle/storage/database"
)

var userColumns = []string{
	"id", "name", "username", "email", "role", "is_active", "password_hash", "created_at", "updated_at", "last_login",
}

type userRow struct {
	ID           int64        `db:"id"`
	Name         string       `db:"name"`
	Username     string       `db:"username"`
	Email        string       `db:"email"`
	Role         string       `db:"role"`
	IsActive     bool         `db:"is_active"`
	PasswordHash []byte       `db:"password_hash"`
	CreatedAt    time.Time    `db:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at"`
	LastLogin    sql.NullTime `db:"last_login"`
}

func (row userRow) user() user.User {
	return user.User{
		ID:           row.ID,
		Name:         row.Name,
		Username:     row.Username,
		Email:        row.Email,
		Role:         user.Role(row.Role),
		IsActive:     row.IsActive,
		PasswordHash: row.PasswordHash,
		CreatedAt:    row.CreatedAt.UTC(),
		UpdatedAt:    row.UpdatedAt.UTC(),
		LastLogin:    row.LastLogin.Time.UTC(),
	}
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t.UTC(), Valid: !t.IsZero()}
}

type userRepository struct {
	base
}

var _ user.Repository = (*userRepository)(nil) // interface compliance check

func NewUserRepository(db *sqlx.DB) *userRepository {
	return &userRepository{base: newBase(db)}
}

func (repo userRepository) CheckUsernameUniqueness(ctx context.Context, username, email string, excludedUsers ...user.User) error {
	cond := sq.Or{sq.Eq{"username": username}}
	if email != "" {
		cond = append(cond, sq.Eq{"email": email})
	}
	q := repo.sb.Select("username").From("users").Where(cond).Limit(1)
	if len(excludedUsers) > 0 {
		ids := make([]int64, 0, len(excludedUsers))
		for _, u := range excludedUsers {
			ids = append(ids, u.ID)
		}
		q = q.Where(sq.NotEq{"id": ids})
	}

	var found string
	if err := repo.get(ctx, &found, q); err != nil {
		if err == sql.ErrNoRows {
			return nil
		}
		return errors.Wrap(err, "checking user uniqueness")
	}
	if found == username {
		return user.ErrUsernameExists
	}
	return user.ErrEmailExists
}

func (repo userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	err := repo.runInTx(ctx, func(b base) error {
		id, err := b.insert(ctx, b.sb.Insert("users").
			Columns(userColumns[1:]...).
			Values(usr.Name, usr.Username, usr.Email, string(usr.Role), usr.IsActive, usr.PasswordHash,
				usr.CreatedAt.UTC(), usr.UpdatedAt.UTC(), nullTime(usr.LastLogin)))
		if err != nil {
			if database.IsUniqueViolation(err) {
				return user.ErrUsernameExists
			}
			return errors.Wrap(err, "inserting user")
		}
		usr.ID = id

		if usr.IsStudent() {
			if _, err = b.run(ctx, b.sb.Insert("students").Columns("user_id").Values(id)); err != nil {
				return errors.Wrap(err, "inserting student")
			}
		}
		return nil
	})
	if err != nil {
		return user.User{}, err
	}
	return usr, nil
}

func (repo userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	q := repo.sb.Select(userColumns...).From("users").Limit(1)
	switch {
	case filter.ID != 0:
		q = q.Where(sq.Eq{"id": filter.ID})
	case filter.Username != "":
		q = q.Where(sq.Eq{"username": filter.Username})
	case filter.Email != "":
		q = q.Where(sq.Eq{"email": filter.Email})
	case filter.UsernameOrEmail != "":
		q = q.Where(sq.Or{
			sq.Eq{"LOWER(username)": filter.UsernameOrEmail},
			sq.And{sq.NotEq{"email": ""}, sq.Eq{"LOWER(email)": filter.UsernameOrEmail}},
		})
	default:
		return user.User{}, user.ErrNotFound
	}

	var row userRow
	if err := repo.get(ctx, &row, q); err != nil {
		return user.User{}, trapNoRowsErr(err, user.ErrNotFound, "finding user")
	}
	return row.user(), nil
}

func (repo userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	res, err := repo.run(ctx, repo.sb.Update("users").
		SetMap(map[string]interface{}{
			"name":          usr.Name,
			"username":      usr.Username,
			"email":         usr.Email,
			"is_active":     usr.IsActive,
			"password_hash": usr.PasswordHash,
			"updated_at":    usr.UpdatedAt.UTC(),
			"last_login":    nullTime(usr.LastLogin),
		}).
		Where(sq.Eq{"id": usr.ID}))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return user.User{}, user.ErrUsernameExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	if err = affected(res, user.ErrNotFound); err != nil {
		return user.User{}, err
	}
	return repo.GetUser(ctx, user.GetFilter{ID: usr.ID})
}
