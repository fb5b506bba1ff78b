package sqlxrepos

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/trezcool/shule/core/content"
)

type contentRepository[T any, PT content.Entity[T]] struct {
	db    *sqlx.DB
	table string
}

// NewContentRepository returns the repository of the Collection T belongs to.
func NewContentRepository[T any, PT content.Entity[T]](db *sqlx.DB) content.Repository[T] {
	var item T
	return &contentRepository[T, PT]{db: db, table: PT(&item).Collection().Schema().Table}
}

func (repo *contentRepository[T, PT]) Create(ctx context.Context, item T) (T, error) {
	var created T
	query, args, err := psql.Insert(repo.table).
		SetMap(content.Row[T, PT](&item)).
		Suffix("RETURNING *").
		ToSql()
	if err != nil {
		return created, errors.Wrap(err, "building query")
	}
	if err = repo.db.QueryRowxContext(ctx, query, args...).StructScan(&created); err != nil {
		return created, errors.Wrapf(err, "inserting into %s", repo.table)
	}
	return created, nil
}

func (repo *contentRepository[T, PT]) Get(ctx context.Context, id string) (T, error) {
	var item T
	query, args, err := psql.Select("*").From(repo.table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return item, errors.Wrap(err, "building query")
	}
	if err = repo.db.GetContext(ctx, &item, query, args...); err != nil {
		if isNoRows(err) {
			return item, content.ErrNotFound
		}
		return item, errors.Wrapf(err, "selecting from %s", repo.table)
	}
	return item, nil
}

// List trusts q: its columns come from the Collection's Schema.
func (repo *contentRepository[T, PT]) List(ctx context.Context, q content.Query) ([]T, error) {
	qb := psql.Select("*").From(repo.table)
	if q.Search != "" && len(q.SearchIn) > 0 {
		pattern := "%" + q.Search + "%"
		or := make(sq.Or, 0, len(q.SearchIn))
		for _, col := range q.SearchIn {
			or = append(or, sq.ILike{col: pattern})
		}
		qb = qb.Where(or)
	}
	if len(q.Where) > 0 {
		qb = qb.Where(sq.Eq(q.Where))
	}
	if q.TimeField != "" {
		if !q.From.IsZero() {
			qb = qb.Where(sq.GtOrEq{q.TimeField: q.From})
		}
		if !q.To.IsZero() {
			qb = qb.Where(sq.LtOrEq{q.TimeField: q.To})
		}
	}
	qb = qb.OrderBy(orderBy(q.Ordering)...)
	if q.Limit > 0 {
		qb = qb.Limit(uint64(q.Limit))
	}
	if q.Offset > 0 {
		qb = qb.Offset(uint64(q.Offset))
	}

	query, args, err := qb.ToSql()
	if err != nil {
		return nil, errors.Wrap(err, "building query")
	}
	items := make([]T, 0)
	if err = repo.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, errors.Wrapf(err, "selecting from %s", repo.table)
	}
	return items, nil
}

func (repo *contentRepository[T, PT]) Update(ctx context.Context, item T) (T, error) {
	var updated T
	meta := PT(&item).GetMeta()
	cols := PT(&item).Columns()
	cols["updated_at"] = meta.UpdatedAt

	query, args, err := psql.Update(repo.table).
		SetMap(cols).
		Where(sq.Eq{"id": meta.ID}).
		Suffix("RETURNING *").
		ToSql()
	if err != nil {
		return updated, errors.Wrap(err, "building query")
	}
	if err = repo.db.QueryRowxContext(ctx, query, args...).StructScan(&updated); err != nil {
		if isNoRows(err) {
			return updated, content.ErrNotFound
		}
		return updated, errors.Wrapf(err, "updating %s", repo.table)
	}
	return updated, nil
}

func (repo *contentRepository[T, PT]) Delete(ctx context.Context, id string) error {
	query, args, err := psql.Delete(repo.table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return errors.Wrap(err, "building query")
	}
	res, err := repo.db.ExecContext(ctx, query, args...)
	if err != nil {
		return errors.Wrapf(err, "deleting from %s", repo.table)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return errors.Wrap(err, "counting deleted rows")
	}
	if n == 0 {
		return content.ErrNotFound
	}
	return nil
}
