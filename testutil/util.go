// Package testutil holds the fixtures shared by the test suites.
package testutil

import (
	"context"
	"fmt"
	"net/mail"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/role"
	"github.com/trezcool/shule/core/user"
)

const (
	OwnerEmail = "owner@test.cd"
	Password   = "Pa$$w0rd!"
)

// NewConfig returns the configuration the test suites run with.
func NewConfig() *core.Config {
	conf := new(core.Config)
	conf.AppName = "Shule"
	conf.Env = "TEST"
	conf.TestMode = true
	conf.SecretKey = "secret"
	conf.OwnerEmail = OwnerEmail
	conf.DefaultFromEmail = mail.Address{Name: "Shule", Address: "noreply@test.cd"}
	conf.FrontendBaseURL = "http://localhost:3000"
	conf.Server.Host = "localhost"
	conf.Server.JWTExpirationDelta = 10 * time.Minute
	conf.Server.JWTRefreshExpirationDelta = 4 * time.Hour
	conf.Server.ShutdownTimeout = time.Second
	conf.Server.DisableReqLogs = true
	conf.Media.Root = "media"
	conf.Media.BaseURL = "/media"
	conf.Media.MaxUploadSize = 1 << 20
	return conf
}

func CreateUser(
	t *testing.T,
	repo user.Repository,
	name, email, pwd string,
	isActive bool,
	createdAt ...time.Time,
) user.User {
	tstamp := core.Now()
	if len(createdAt) > 0 {
		tstamp = createdAt[0].UTC().Truncate(time.Microsecond)
	}
	usr := user.User{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		IsActive:  isActive,
		CreatedAt: tstamp,
		UpdatedAt: tstamp,
	}
	if pwd != "" {
		if err := usr.SetPassword(pwd); err != nil {
			t.Fatalf("CreateUser() failed: %v", err)
		}
	}
	usr, err := repo.CreateUser(context.Background(), usr)
	if err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}
	return usr
}

// GrantRole gives usr the role r, out of the request flow.
func GrantRole(t *testing.T, repo role.Repository, usr user.User, r role.Role) role.Grant {
	now := core.Now()
	grant, err := repo.UpsertGrant(context.Background(), role.Grant{AccountID: usr.ID, Role: r, GrantedAt: now, UpdatedAt: now})
	if err != nil {
		t.Fatalf("GrantRole() failed: %v", err)
	}
	return grant
}

// Logger keeps the logged messages in memory.
type Logger struct {
	mu     sync.Mutex
	Errors []string
	Warns  []string
}

var _ core.Logger = (*Logger)(nil)

func (l *Logger) Debug(string, ...interface{}) {}
func (l *Logger) Info(string, ...interface{})  {}

func (l *Logger) Warn(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Warns = append(l.Warns, msg)
}

func (l *Logger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.Errors = append(l.Errors, msg)
}

func (l *Logger) Fatal(msg string, args ...interface{}) {
	panic(fmt.Sprintf("%s: %v", msg, args))
}

func (l *Logger) ErrorCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Errors)
}

// Notification is a role workflow event caught by Notifier.
type Notification struct {
	Request    role.Request
	Requester  user.User
	Recipients []string
}

// Notifier records the role workflow events instead of sending them.
// Err, when set, is returned by every call.
type Notifier struct {
	mu        sync.Mutex
	Err       error
	Submitted []Notification
	Reviewed  []Notification
}

var _ role.Notifier = (*Notifier)(nil)

func (n *Notifier) RequestSubmitted(_ context.Context, req role.Request, requester user.User, recipients []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Submitted = append(n.Submitted, Notification{Request: req, Requester: requester, Recipients: recipients})
	return n.Err
}

func (n *Notifier) RequestReviewed(_ context.Context, req role.Request, requester user.User) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.Reviewed = append(n.Reviewed, Notification{Request: req, Requester: requester})
	return n.Err
}

func (n *Notifier) SubmittedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Submitted)
}

func (n *Notifier) ReviewedCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.Reviewed)
}
