package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/role"
)

const (
	grantsTable   = "role_grants"
	requestsTable = "role_requests"
)

type roleRepository struct {
	db *sqlx.DB
}

var _ role.Repository = (*roleRepository)(nil)

func NewRoleRepository(db *sqlx.DB) role.Repository {
	return &roleRepository{db: db}
}

func (repo *roleRepository) GetGrant(ctx context.Context, accountID string) (role.Grant, error) {
	query, args, err := psql.Select("*").From(grantsTable).Where(sq.Eq{"account_id": accountID}).ToSql()
	if err != nil {
		return role.Grant{}, errors.Wrap(err, "building query")
	}
	var grant role.Grant
	if err = repo.db.GetContext(ctx, &grant, query, args...); err != nil {
		if isNoRows(err) {
			return role.Grant{}, role.ErrNoGrant
		}
		return role.Grant{}, errors.Wrap(err, "selecting grant")
	}
	return grant, nil
}

func (repo *roleRepository) QueryGrants(ctx context.Context, roles ...role.Role) ([]role.Grant, error) {
	qb := psql.Select("*").From(grantsTable).OrderBy("account_id ASC")
	if len(roles) > 0 {
		qb = qb.Where(sq.Eq{"role": roles})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	grants := make([]role.Grant, 0)
	if err = repo.db.SelectContext(ctx, &grants, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting grants")
	}
	return grants, nil
}

// upsertGrant keeps the original granted_at of an account's Grant.
func upsertGrant(ctx context.Context, db sqlx.ExtContext, grant role.Grant) (role.Grant, error) {
	query, args, err := psql.Insert(grantsTable).
		SetMap(map[string]interface{}{
			"account_id": grant.AccountID,
			"role":       grant.Role,
			"granted_by": grant.GrantedBy,
			"granted_at": grant.GrantedAt,
			"updated_at": grant.UpdatedAt,
		}).
		Suffix(`ON CONFLICT (account_id) DO UPDATE
			SET role = EXCLUDED.role, granted_by = EXCLUDED.granted_by, updated_at = EXCLUDED.updated_at
			RETURNING *`).
		ToSql()
	if err != nil {
		return role.Grant{}, errors.Wrap(err, "building query")
	}
	var saved role.Grant
	if err = db.QueryRowxContext(ctx, query, args...).StructScan(&saved); err != nil {
		return role.Grant{}, errors.Wrap(err, "upserting grant")
	}
	return saved, nil
}

func (repo *roleRepository) UpsertGrant(ctx context.Context, grant role.Grant) (role.Grant, error) {
	return upsertGrant(ctx, repo.db, grant)
}

func (repo *roleRepository) CreateRequest(ctx context.Context, req role.Request, grant *role.Grant) (created role.Request, err error) {
	err = withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		query, args, err := psql.Insert(requestsTable).
			SetMap(map[string]interface{}{
				"id":           req.ID,
				"requester_id": req.RequesterID,
				"role":         req.Role,
				"status":       req.Status,
				"created_at":   req.CreatedAt,
			}).
			Suffix("RETURNING *").
			ToSql()
		if err != nil {
			return errors.Wrap(err, "building query")
		}
		// role_requests_pending_uniq enforces a single pending request per (requester, role)
		if err = tx.QueryRowxContext(ctx, query, args...).StructScan(&created); err != nil {
			if isUniqueViolation(err) {
				return role.ErrDuplicateRequest
			}
			return errors.Wrap(err, "inserting request")
		}
		if grant != nil {
			_, err = upsertGrant(ctx, tx, *grant)
		}
		return err
	})
	return created, err
}

func (repo *roleRepository) GetRequest(ctx context.Context, id string) (role.Request, error) {
	query, args, err := psql.Select("*").From(requestsTable).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return role.Request{}, errors.Wrap(err, "building query")
	}
	var req role.Request
	if err = repo.db.GetContext(ctx, &req, query, args...); err != nil {
		if isNoRows(err) {
			return role.Request{}, role.ErrNotFound
		}
		return role.Request{}, errors.Wrap(err, "selecting request")
	}
	return req, nil
}

func (repo *roleRepository) QueryRequests(ctx context.Context, filter role.RequestFilter) ([]role.Request, error) {
	qb := psql.Select("*").From(requestsTable).OrderBy("created_at DESC", "id DESC")
	if filter.RequesterID != "" {
		qb = qb.Where(sq.Eq{"requester_id": filter.RequesterID})
	}
	if len(filter.Statuses) > 0 {
		qb = qb.Where(sq.Eq{"status": filter.Statuses})
	}
	if len(filter.Roles) > 0 {
		qb = qb.Where(sq.Eq{"role": filter.Roles})
	}
	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	reqs := make([]role.Request, 0)
	if err = repo.db.SelectContext(ctx, &reqs, query, args...); err != nil {
		return nil, errors.Wrap(err, "selecting requests")
	}
	return reqs, nil
}

// ResolveRequest only updates a pending request: of two concurrent resolutions, the second one matches no row.
func (repo *roleRepository) ResolveRequest(ctx context.Context, res role.Resolution) (resolved role.Request, err error) {
	err = withTx(ctx, repo.db, func(tx *sqlx.Tx) error {
		query, args, err := psql.Update(requestsTable).
			Set("status", res.Status).
			Set("reviewer_id", res.ReviewerID).
			Set("reviewed_at", res.ReviewedAt).
			Where(sq.Eq{"id": res.RequestID, "status": role.StatusPending}).
			Suffix("RETURNING *").
			ToSql()
		if err != nil {
			return errors.Wrap(err, "building query")
		}
		if err = tx.QueryRowxContext(ctx, query, args...).StructScan(&resolved); err != nil {
			if !isNoRows(err) {
				return errors.Wrap(err, "updating request")
			}
			var exists bool
			if err = tx.GetContext(ctx, &exists, "SELECT EXISTS(SELECT 1 FROM role_requests WHERE id = $1)", res.RequestID); err != nil {
				return errors.Wrap(err, "checking request")
			}
			if exists {
				return role.ErrStaleRequest
			}
			return role.ErrNotFound
		}
		if res.Grant != nil {
			_, err = upsertGrant(ctx, tx, *res.Grant)
		}
		return err
	})
	return resolved, err
}

// withTx commits when fn succeeds, and rolls back otherwise.
func withTx(ctx context.Context, db *sqlx.DB, fn func(tx *sqlx.Tx) error) error {
	tx, err := db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning transaction")
	}
	if err = fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return errors.Wrap(tx.Commit(), "committing transaction")
}
