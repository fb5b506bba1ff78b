package inmemdb

import (
	"context"
	"sort"

	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core/role"
)

type roleRepository struct {
	db *roleTables
}

var _ role.Repository = (*roleRepository)(nil)

func NewRoleRepository(db *DB) role.Repository {
	return &roleRepository{db: db.role}
}

func (repo *roleRepository) GetGrant(_ context.Context, accountID string) (role.Grant, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if grant, ok := repo.db.grants[accountID]; ok {
		return *grant, nil
	}
	return role.Grant{}, role.ErrNoGrant
}

func (repo *roleRepository) QueryGrants(_ context.Context, roles ...role.Role) ([]role.Grant, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	grants := make([]role.Grant, 0)
	for _, g := range repo.db.grants {
		if len(roles) == 0 || containsRole(roles, g.Role) {
			grants = append(grants, *g)
		}
	}
	sort.Slice(grants, func(i, j int) bool { return grants[i].AccountID < grants[j].AccountID })
	return grants, nil
}

// upsertGrant must be called with the write lock held.
func (repo *roleRepository) upsertGrant(grant role.Grant) role.Grant {
	if existing, ok := repo.db.grants[grant.AccountID]; ok {
		existing.Role = grant.Role
		existing.GrantedBy = grant.GrantedBy
		existing.UpdatedAt = grant.UpdatedAt
		return *existing
	}
	repo.db.grants[grant.AccountID] = &grant
	return grant
}

func (repo *roleRepository) UpsertGrant(_ context.Context, grant role.Grant) (role.Grant, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	return repo.upsertGrant(grant), nil
}

func (repo *roleRepository) CreateRequest(_ context.Context, req role.Request, grant *role.Grant) (role.Request, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	for _, r := range repo.db.requests {
		if r.RequesterID == req.RequesterID && r.Role == req.Role && r.IsPending() {
			return role.Request{}, role.ErrDuplicateRequest
		}
	}
	repo.db.requests[req.ID] = &req
	if grant != nil {
		repo.upsertGrant(*grant)
	}
	return req, nil
}

func (repo *roleRepository) GetRequest(_ context.Context, id string) (role.Request, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if req, ok := repo.db.requests[id]; ok {
		return *req, nil
	}
	return role.Request{}, role.ErrNotFound
}

func (repo *roleRepository) QueryRequests(_ context.Context, filter role.RequestFilter) ([]role.Request, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	reqs := make([]role.Request, 0)
	for _, r := range repo.db.requests {
		if filter.RequesterID != "" && r.RequesterID != filter.RequesterID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, r.Status) {
			continue
		}
		if len(filter.Roles) > 0 && !containsRole(filter.Roles, r.Role) {
			continue
		}
		reqs = append(reqs, *r)
	}
	// newest first
	sort.Slice(reqs, func(i, j int) bool {
		if !reqs[i].CreatedAt.Equal(reqs[j].CreatedAt) {
			return reqs[i].CreatedAt.After(reqs[j].CreatedAt)
		}
		return reqs[i].ID > reqs[j].ID
	})
	return reqs, nil
}

func (repo *roleRepository) ResolveRequest(_ context.Context, res role.Resolution) (role.Request, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	req, ok := repo.db.requests[res.RequestID]
	if !ok {
		return role.Request{}, role.ErrNotFound
	}
	if !req.IsPending() {
		return role.Request{}, role.ErrStaleRequest
	}
	req.Status = res.Status
	req.ReviewerID = null.StringFrom(res.ReviewerID)
	req.ReviewedAt = null.TimeFrom(res.ReviewedAt)
	if res.Grant != nil {
		repo.upsertGrant(*res.Grant)
	}
	return *req, nil
}

func containsRole(roles []role.Role, r role.Role) bool {
	for _, rr := range roles {
		if rr == r {
			return true
		}
	}
	return false
}

func containsStatus(statuses []role.Status, s role.Status) bool {
	for _, ss := range statuses {
		if ss == s {
			return true
		}
	}
	return false
}
