package inmemdb

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/content"
)

type contentRepository[T any, PT content.Entity[T]] struct {
	db *contentTable
}

// NewContentRepository returns the repository of the Collection T belongs to.
func NewContentRepository[T any, PT content.Entity[T]](db *DB) content.Repository[T] {
	var item T
	return &contentRepository[T, PT]{db: db.contentTable(PT(&item).Collection())}
}

func (repo *contentRepository[T, PT]) Create(_ context.Context, item T) (T, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	repo.db.rows[PT(&item).GetMeta().ID] = item
	return item, nil
}

func (repo *contentRepository[T, PT]) Get(_ context.Context, id string) (T, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if row, ok := repo.db.rows[id]; ok {
		return row.(T), nil
	}
	var zero T
	return zero, content.ErrNotFound
}

func (repo *contentRepository[T, PT]) List(_ context.Context, q content.Query) ([]T, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	type entry struct {
		item T
		row  map[string]interface{}
	}
	entries := make([]entry, 0, len(repo.db.rows))
	search := strings.ToLower(q.Search)
	for _, r := range repo.db.rows {
		item := r.(T)
		row := content.Row[T, PT](&item)
		if search != "" && !matchesSearch(row, q.SearchIn, search) {
			continue
		}
		if !matchesWhere(row, q.Where) {
			continue
		}
		if q.TimeField != "" && !inRange(row[q.TimeField], q.From, q.To) {
			continue
		}
		entries = append(entries, entry{item: item, row: row})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		for _, ord := range q.Ordering {
			if c := compareValues(entries[i].row[ord.Field], entries[j].row[ord.Field]); c != 0 {
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
		}
		return entries[i].row["id"].(string) < entries[j].row["id"].(string)
	})

	items := make([]T, 0, len(entries))
	for i, e := range entries {
		if i < q.Offset {
			continue
		}
		if q.Limit > 0 && len(items) == q.Limit {
			break
		}
		items = append(items, e.item)
	}
	return items, nil
}

func (repo *contentRepository[T, PT]) Update(_ context.Context, item T) (T, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	meta := PT(&item).GetMeta()
	r, ok := repo.db.rows[meta.ID]
	if !ok {
		var zero T
		return zero, content.ErrNotFound
	}
	orig := r.(T)
	origMeta := PT(&orig).GetMeta()
	meta.AuthorID = origMeta.AuthorID
	meta.CreatedAt = origMeta.CreatedAt

	repo.db.rows[meta.ID] = item
	return item, nil
}

func (repo *contentRepository[T, PT]) Delete(_ context.Context, id string) error {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if _, ok := repo.db.rows[id]; !ok {
		return content.ErrNotFound
	}
	delete(repo.db.rows, id)
	return nil
}

func matchesSearch(row map[string]interface{}, cols []string, search string) bool {
	for _, col := range cols {
		if s, ok := row[col].(string); ok && strings.Contains(strings.ToLower(s), search) {
			return true
		}
	}
	return false
}

func matchesWhere(row map[string]interface{}, where map[string]interface{}) bool {
	for col, want := range where {
		got, ok := row[col]
		if !ok || fmt.Sprint(got) != fmt.Sprint(want) {
			return false
		}
	}
	return true
}

func inRange(val interface{}, from, to time.Time) bool {
	var t time.Time
	switch v := val.(type) {
	case time.Time:
		t = v
	case null.Time:
		if !v.Valid {
			return from.IsZero() && to.IsZero()
		}
		t = v.Time
	default:
		return true
	}
	if !from.IsZero() && t.Before(from) {
		return false
	}
	if !to.IsZero() && t.After(to) {
		return false
	}
	return true
}
