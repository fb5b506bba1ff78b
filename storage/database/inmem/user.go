package inmemdb

import (
	"context"
	"sort"
	"strings"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

type userRepository struct {
	db *userTable
}

var _ user.Repository = (*userRepository)(nil)

func NewUserRepository(db *DB) user.Repository {
	return &userRepository{db: db.user}
}

func (repo *userRepository) query() []user.User {
	users := make([]user.User, 0, len(repo.db.table))
	for _, u := range repo.db.table {
		users = append(users, *u)
	}
	return users
}

func (repo *userRepository) emailTaken(email string, excludedUsers ...user.User) bool {
	for _, usr := range repo.db.table {
		if usr.Email == email && !isExcluded(usr.ID, excludedUsers) {
			return true
		}
	}
	return false
}

func (repo *userRepository) CheckEmailUniqueness(_ context.Context, email string, excludedUsers ...user.User) error {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	if repo.emailTaken(email, excludedUsers...) {
		return user.ErrEmailExists
	}
	return nil
}

func (repo *userRepository) CreateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	if repo.emailTaken(usr.Email) {
		return user.User{}, user.ErrEmailExists
	}
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func (repo *userRepository) GetUser(_ context.Context, filter user.GetFilter) (user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	switch {
	case filter.ID != "":
		if usr, ok := repo.db.table[filter.ID]; ok {
			return *usr, nil
		}
	case filter.Email != "":
		for _, usr := range repo.db.table {
			if usr.Email == filter.Email {
				return *usr, nil
			}
		}
	}
	return user.User{}, user.ErrNotFound
}

func (repo *userRepository) QueryUsers(_ context.Context, filter *user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error) {
	repo.db.mutex.RLock()
	defer repo.db.mutex.RUnlock()

	users := make([]user.User, 0)
	search := strings.ToLower(filter.Search)
	for _, usr := range repo.query() {
		if search != "" &&
			!strings.Contains(strings.ToLower(usr.Name), search) &&
			!strings.Contains(strings.ToLower(usr.Email), search) {
			continue
		}
		if filter.IDs != nil && !containsString(filter.IDs, usr.ID) {
			continue
		}
		if filter.IsActive != nil && usr.IsActive != *filter.IsActive {
			continue
		}
		if !filter.CreatedFrom.IsZero() && usr.CreatedAt.Before(filter.CreatedFrom) {
			continue
		}
		if !filter.CreatedTo.IsZero() && usr.CreatedAt.After(filter.CreatedTo) {
			continue
		}
		users = append(users, usr)
	}

	if len(ordering) == 0 {
		ordering = []core.DBOrdering{{Field: "created_at", Ascending: false}}
	}
	sort.SliceStable(users, func(i, j int) bool {
		for _, ord := range ordering {
			if c := compareUsers(users[i], users[j], ord.Field); c != 0 {
				if ord.Ascending {
					return c < 0
				}
				return c > 0
			}
		}
		return users[i].ID < users[j].ID
	})
	return users, nil
}

func (repo *userRepository) UpdateUser(_ context.Context, usr user.User) (user.User, error) {
	repo.db.mutex.Lock()
	defer repo.db.mutex.Unlock()

	origUsr, ok := repo.db.table[usr.ID]
	if !ok {
		return user.User{}, user.ErrNotFound
	}
	if repo.emailTaken(usr.Email, usr) {
		return user.User{}, user.ErrEmailExists
	}
	usr.CreatedAt = origUsr.CreatedAt
	repo.db.table[usr.ID] = &usr
	return usr, nil
}

func compareUsers(u1, u2 user.User, field string) int {
	switch field {
	case "name":
		return compareValues(strings.ToLower(u1.Name), strings.ToLower(u2.Name))
	case "email":
		return compareValues(u1.Email, u2.Email)
	case "is_active":
		return compareValues(u1.IsActive, u2.IsActive)
	case "created_at":
		return compareValues(u1.CreatedAt, u2.CreatedAt)
	case "updated_at":
		return compareValues(u1.UpdatedAt, u2.UpdatedAt)
	case "last_login":
		return compareValues(u1.LastLogin, u2.LastLogin)
	}
	return 0
}

func isExcluded(id string, excludedUsers []user.User) bool {
	for _, usr := range excludedUsers {
		if usr.ID == id {
			return true
		}
	}
	return false
}

func containsString(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
