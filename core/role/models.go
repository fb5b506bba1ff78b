package role

import (
	"time"

	"github.com/volatiletech/null/v8"
)

// Role is the single active role of an account.
type Role string

// Roles
const (
	None    Role = ""
	Visitor Role = "visitor"
	Student Role = "student"
	Teacher Role = "teacher"
	Admin   Role = "admin"
)

var (
	// AllRoles is the closed set of grantable roles.
	AllRoles = []Role{Visitor, Student, Teacher, Admin}
	// ChoosableRoles are offered to an account holding no role yet.
	ChoosableRoles = []Role{Visitor, Student, Teacher}
	// RequestableRoles need a reviewer's approval.
	RequestableRoles = []Role{Student, Teacher, Admin}

	rolePriorities = map[Role]int{
		Admin:   30,
		Teacher: 20,
		Student: 10,
		Visitor: 1,
	}
)

func (r Role) IsValid() bool {
	_, ok := rolePriorities[r]
	return ok
}

func (r Role) in(roles []Role) bool {
	for _, rr := range roles {
		if r == rr {
			return true
		}
	}
	return false
}

// Priority ranks roles: admin > teacher > student > visitor > none.
func (r Role) Priority() int {
	return rolePriorities[r]
}

// Status of a Request. Pending is the only non-terminal status.
type Status string

const (
	StatusPending  Status = "pending"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

// Grant associates an account to exactly one Role.
// There is at most one Grant per account: writing a second one updates the first.
type Grant struct {
	AccountID string      `json:"account_id" db:"account_id"`
	Role      Role        `json:"role" db:"role"`
	GrantedBy null.String `json:"granted_by" db:"granted_by"` // NULL when self-granted (visitor) or granted from the CLI
	GrantedAt time.Time   `json:"granted_at" db:"granted_at"`
	UpdatedAt time.Time   `json:"updated_at" db:"updated_at"`
}

// Request is an ask for a Role that needs a reviewer's approval.
// It is resolved exactly once and never deleted.
type Request struct {
	ID          string      `json:"id" db:"id"`
	RequesterID string      `json:"requester_id" db:"requester_id"`
	Role        Role        `json:"role" db:"role"`
	Status      Status      `json:"status" db:"status"`
	CreatedAt   time.Time   `json:"created_at" db:"created_at"`
	ReviewerID  null.String `json:"reviewer_id" db:"reviewer_id"`
	ReviewedAt  null.Time   `json:"reviewed_at" db:"reviewed_at"`
}

func (req Request) IsPending() bool {
	return req.Status == StatusPending
}

// RequestFilter applies AND operation on its non-empty fields.
type RequestFilter struct {
	RequesterID string
	Statuses    []Status
	Roles       []Role
}

// Resolution moves a pending Request to a terminal status.
// When Grant is set, it is upserted in the same transaction.
type Resolution struct {
	RequestID  string
	Status     Status
	ReviewerID string
	ReviewedAt time.Time
	Grant      *Grant
}

// State of an account in the role workflow.
type State string

const (
	StateNoRole           State = "NO_ROLE"
	StatePendingChoice    State = "PENDING_VISITOR_CHOICE"
	StateVisitorActive    State = "VISITOR_ACTIVE"
	StateRequestSubmitted State = "REQUEST_SUBMITTED"
	StateApproved         State = "APPROVED"
	StateRejected         State = "REJECTED"
	StateRoleActive       State = "ROLE_ACTIVE" // granted outside of the request flow, e.g. by an admin
)

// AccountStatus is what the client needs to route an account.
type AccountStatus struct {
	State       State     `json:"state"`
	Role        Role      `json:"role"`
	Destination string    `json:"destination"`
	Choices     []Role    `json:"choices,omitempty"`
	Requests    []Request `json:"requests"`
}

// Submission is the outcome of a role choice or request.
type Submission struct {
	State       State    `json:"state"`
	Grant       *Grant   `json:"grant,omitempty"`
	Request     *Request `json:"request,omitempty"`
	Recipients  []string `json:"-"`
	Destination string   `json:"destination"`
}
