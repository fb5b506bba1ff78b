package role

import (
	"strings"

	"github.com/trezcool/shule/core/user"
)

// Dashboards
const (
	AdminDashboard   = "/dashboard/admin"
	TeacherDashboard = "/dashboard/teacher"
	StudentDashboard = "/dashboard/student"
	VisitorDashboard = "/dashboard/visitor"
	LandingPage      = "/"
)

// Destination returns where an account holding r lands after signing in.
// It is total: no role, or a value it does not know, lands on the landing page.
func Destination(r Role) string {
	switch r {
	case Admin:
		return AdminDashboard
	case Teacher:
		return TeacherDashboard
	case Student:
		return StudentDashboard
	case Visitor:
		return VisitorDashboard
	default:
		return LandingPage
	}
}

// Policy evaluates the authorization predicates.
// The owner is a single account identified by email, out of band of the role values.
// A suspended account fails every predicate.
type Policy struct {
	ownerEmail string
}

func NewPolicy(ownerEmail string) Policy {
	return Policy{ownerEmail: strings.ToLower(strings.TrimSpace(ownerEmail))}
}

func (p Policy) OwnerEmail() string {
	return p.ownerEmail
}

func (p Policy) IsOwner(acc user.User) bool {
	return p.ownerEmail != "" && !acc.IsSuspended() && strings.EqualFold(acc.Email, p.ownerEmail)
}

// IsAdmin reports whether acc, currently holding the role current, is an admin.
func (p Policy) IsAdmin(acc user.User, current Role) bool {
	return !acc.IsSuspended() && current == Admin
}

// CanManage reports whether acc runs the site: admins and the owner.
func (p Policy) CanManage(acc user.User, current Role) bool {
	return p.IsOwner(acc) || p.IsAdmin(acc, current)
}

// CanActOn reports whether actor may change target's account. Only the owner touches the owner's account,
// suspended or not.
func (p Policy) CanActOn(actor, target user.User) bool {
	ownerTarget := p.ownerEmail != "" && strings.EqualFold(target.Email, p.ownerEmail)
	return !ownerTarget || p.IsOwner(actor)
}

// CanReview reports whether reviewer, currently holding the role current, may approve or reject a request
// for the role requested:
//   - admin: the owner only
//   - teacher: admins and the owner
//   - student: teachers, admins and the owner
func (p Policy) CanReview(reviewer user.User, current, requested Role) bool {
	if reviewer.IsSuspended() {
		return false
	}
	owner := p.IsOwner(reviewer)
	switch requested {
	case Admin:
		return owner
	case Teacher:
		return owner || current == Admin
	case Student:
		return owner || current == Admin || current == Teacher
	default:
		return false
	}
}

// IsReviewer reports whether acc may review at least one kind of request.
func (p Policy) IsReviewer(acc user.User, current Role) bool {
	return p.CanReview(acc, current, Student)
}

// ReviewableRoles returns the requested roles reviewer may review.
func (p Policy) ReviewableRoles(reviewer user.User, current Role) []Role {
	var roles []Role
	for _, r := range RequestableRoles {
		if p.CanReview(reviewer, current, r) {
			roles = append(roles, r)
		}
	}
	return roles
}
