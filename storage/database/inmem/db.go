// Package inmemdb provides goroutine-safe in-memory repositories, used in tests and for local demos.
package inmemdb

import (
	"sync"

	"github.com/trezcool/shule/core/content"
	"github.com/trezcool/shule/core/role"
	"github.com/trezcool/shule/core/user"
)

// DB holds the tables shared by the repositories.
type DB struct {
	user *userTable
	role *roleTables

	contentMu sync.Mutex
	content   map[content.Collection]*contentTable
}

type userTable struct {
	mutex sync.RWMutex
	table map[string]*user.User
}

type roleTables struct {
	mutex    sync.RWMutex
	grants   map[string]*role.Grant   // keyed by account ID
	requests map[string]*role.Request // keyed by request ID
}

type contentTable struct {
	mutex sync.RWMutex
	rows  map[string]interface{} // keyed by item ID
}

func NewDB() *DB {
	return &DB{
		user: &userTable{table: make(map[string]*user.User)},
		role: &roleTables{
			grants:   make(map[string]*role.Grant),
			requests: make(map[string]*role.Request),
		},
		content: make(map[content.Collection]*contentTable),
	}
}

func (db *DB) contentTable(c content.Collection) *contentTable {
	db.contentMu.Lock()
	defer db.contentMu.Unlock()

	tbl, ok := db.content[c]
	if !ok {
		tbl = &contentTable{rows: make(map[string]interface{})}
		db.content[c] = tbl
	}
	return tbl
}
