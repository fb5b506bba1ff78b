package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

const usersTable = "users"

type userRepository struct {
	db *sqlx.DB
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *sqlx.DB) user.Repository {
	return &userRepository{db: db}
}

func (repo *userRepository) CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...user.User) error {
	// SELECT COUNT(*) FROM users WHERE email = $1 AND id NOT IN ($2,$3)
	qb := psql.Select("COUNT(*)").From(usersTable).Where(sq.Eq{"email": email})
	if len(excludedUsers) > 0 {
		ids := make([]string, 0, len(excludedUsers))
		for _, usr := range excludedUsers {
			ids = append(ids, usr.ID)
		}
		qb = qb.Where(sq.NotEq{"id": ids})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}

	var count int
	if err = repo.db.GetContext(ctx, &count, query, args...); err != nil {
		return errors.Wrap(err, "counting users")
	}
	if count > 0 {
		return user.ErrEmailExists
	}
	return nil
}

func userColumns(usr user.User) map[string]interface{} {
	return map[string]interface{}{
		"name":          usr.Name,
		"email":         usr.Email,
		"is_active":     usr.IsActive,
		"password_hash": usr.PasswordHash,
		"updated_at":    usr.UpdatedAt,
		"last_login":    usr.LastLogin,
	}
}

func (repo *userRepository) CreateUser(ctx context.Context, usr user.User) (user.User, error) {
	cols := userColumns(usr)
	cols["id"] = usr.ID
	cols["created_at"] = usr.CreatedAt

	query, args, err := psql.Insert(usersTable).SetMap(cols).Suffix("RETURNING *").ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	var created user.User
	if err = repo.db.QueryRowxContext(ctx, query, args...).StructScan(&created); err != nil {
		if isUniqueViolation(err) {
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "inserting user")
	}
	return created, nil
}

func (repo *userRepository) GetUser(ctx context.Context, filter user.GetFilter) (user.User, error) {
	qb := psql.Select("*").From(usersTable)
	switch {
	case filter.ID != "":
		qb = qb.Where(sq.Eq{"id": filter.ID})
	case filter.Email != "":
		qb = qb.Where(sq.Eq{"email": filter.Email})
	default:
		return user.User{}, user.ErrNotFound
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}

	var usr user.User
	if err = repo.db.GetContext(ctx, &usr, query, args...); err != nil {
		if isNoRows(err) {
			return user.User{}, user.ErrNotFound
		}
		return user.User{}, errors.Wrap(err, "selecting user")
	}
	return usr, nil
}

func (repo *userRepository) QueryUsers(ctx context.Context, filter *user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	qb := psql.Select("*").From(usersTable)
	if filter.Search != "" {
		pattern := "%" + filter.Search + "%"
		qb = qb.Where(sq.Or{sq.ILike{"name": pattern}, sq.ILike{"email": pattern}})
	}
	if filter.IDs != nil {
		qb = qb.Where(sq.Eq{"id": filter.IDs})
	}
	if filter.IsActive != nil {
		qb = qb.Where(sq.Eq{"is_active": *filter.IsActive})
	}
	if !filter.CreatedFrom.IsZero() {
		qb = qb.Where(sq.GtOrEq{"created_at": filter.CreatedFrom})
	}
	if !filter.CreatedTo.IsZero() {
		qb = qb.Where(sq.LtOrEq{"created_at": filter.CreatedTo})
	}
	qb = qb.OrderBy(orderBy(ordering, core.DBOrdering{Field: "created_at"})...)

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	users := make([]user.User, 0)
	if err = repo.db.SelectContext(ctx, &users, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting users")
	}
	return users, nil
}

func (repo *userRepository) UpdateUser(ctx context.Context, usr user.User) (user.User, error) {
	query, args, err := psql.Update(usersTable).
		SetMap(userColumns(usr)).
		Where(sq.Eq{"id": usr.ID}).
		Suffix("RETURNING *").
		ToSql()
	if err != nil {
		return user.User{}, errors.Wrap(err, "building query")
	}
	var updated user.User
	if err = repo.db.QueryRowxContext(ctx, query, args...).StructScan(&updated); err != nil {
		switch {
		case isNoRows(err):
			return user.User{}, user.ErrNotFound
		case isUniqueViolation(err):
			return user.User{}, user.ErrEmailExists
		}
		return user.User{}, errors.Wrap(err, "updating user")
	}
	return updated, nil
}

// orderBy returns the "ORDER BY" terms, defaults when ordering is empty, with "id" as tie-breaker.
func orderBy(ordering []core.DBOrdering, defaults ...core.DBOrdering) []string {
	if len(ordering) == 0 {
		ordering = defaults
	}
	terms := make([]string, 0, len(ordering)+1)
	for _, ord := range ordering {
		terms = append(terms, ord.String())
	}
	return append(terms, "id ASC")
}
