package role

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trezcool/shule/core/user"
)

const ownerEmail = "owner@test.cd"

func TestDestination(t *testing.T) {
	tests := []struct {
		role Role
		want string
	}{
		{role: Admin, want: "/dashboard/admin"},
		{role: Teacher, want: "/dashboard/teacher"},
		{role: Student, want: "/dashboard/student"},
		{role: Visitor, want: "/dashboard/visitor"},
		{role: None, want: "/"},
		{role: Role("principal"), want: "/"},
		{role: Role("ADMIN"), want: "/"},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%q", tt.role), func(t *testing.T) {
			assert.Equal(t, tt.want, Destination(tt.role))
		})
	}
}

func TestPolicy_CanReview(t *testing.T) {
	policy := NewPolicy(" Owner@Test.cd ")

	// minimum rank needed to review a request for the role, besides the owner; 0 means nobody
	minRank := map[Role]int{
		Student: Teacher.Priority(),
		Teacher: Admin.Priority(),
		Admin:   0,
		Visitor: 0,
		None:    0,
	}
	currents := []Role{None, Visitor, Student, Teacher, Admin}
	requested := []Role{None, Visitor, Student, Teacher, Admin}

	for _, owner := range []bool{false, true} {
		for _, suspended := range []bool{false, true} {
			acc := user.User{ID: "1", Email: "someone@test.cd", IsActive: !suspended}
			if owner {
				acc.Email = strings.ToUpper(ownerEmail)
			}
			for _, current := range currents {
				for _, req := range requested {
					name := fmt.Sprintf("owner=%v/suspended=%v/current=%q/requested=%q", owner, suspended, current, req)
					t.Run(name, func(t *testing.T) {
						want := false
						if !suspended && req.in(RequestableRoles) {
							min := minRank[req]
							want = owner || (min > 0 && current.Priority() >= min)
						}
						assert.Equal(t, want, policy.CanReview(acc, current, req))

						assert.Equal(t, !suspended && current == Admin, policy.IsAdmin(acc, current))
						assert.Equal(t, !suspended && (owner || current == Admin), policy.CanManage(acc, current))
						assert.Equal(t, policy.CanReview(acc, current, Student), policy.IsReviewer(acc, current))
					})
				}
			}
		}
	}
}

func TestPolicy_noOwner(t *testing.T) {
	policy := NewPolicy("")
	acc := user.User{ID: "1", Email: "", IsActive: true}

	assert.False(t, policy.IsOwner(acc))
	assert.False(t, policy.CanReview(acc, None, Admin))
	assert.Empty(t, policy.ReviewableRoles(acc, Visitor))
}

func TestPolicy_CanActOn(t *testing.T) {
	policy := NewPolicy(ownerEmail)
	owner := user.User{ID: "1", Email: ownerEmail, IsActive: true}
	admin := user.User{ID: "2", Email: "admin@test.cd", IsActive: true}
	other := user.User{ID: "3", Email: "other@test.cd", IsActive: true}
	suspendedOwner := user.User{ID: "1", Email: strings.ToUpper(ownerEmail)}

	tests := []struct {
		name          string
		actor, target user.User
		want          bool
	}{
		{name: "admin on someone", actor: admin, target: other, want: true},
		{name: "owner on someone", actor: owner, target: admin, want: true},
		{name: "owner on themselves", actor: owner, target: owner, want: true},
		{name: "admin on the owner", actor: admin, target: owner},
		{name: "admin on the suspended owner", actor: admin, target: suspendedOwner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.CanActOn(tt.actor, tt.target))
		})
	}

	assert.True(t, NewPolicy("").CanActOn(admin, owner))
}

func TestPolicy_ReviewableRoles(t *testing.T) {
	policy := NewPolicy(ownerEmail)
	owner := user.User{ID: "1", Email: ownerEmail, IsActive: true}
	acc := user.User{ID: "2", Email: "acc@test.cd", IsActive: true}
	suspendedOwner := user.User{ID: "3", Email: ownerEmail}

	tests := []struct {
		name    string
		acc     user.User
		current Role
		want    []Role
	}{
		{name: "owner", acc: owner, current: None, want: []Role{Student, Teacher, Admin}},
		{name: "admin", acc: acc, current: Admin, want: []Role{Student, Teacher}},
		{name: "teacher", acc: acc, current: Teacher, want: []Role{Student}},
		{name: "student", acc: acc, current: Student},
		{name: "visitor", acc: acc, current: Visitor},
		{name: "suspended owner", acc: suspendedOwner, current: Admin},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, policy.ReviewableRoles(tt.acc, tt.current))
		})
	}
}

func TestComputeRecipients(t *testing.T) {
	teachers := []Candidate{
		{Email: "Zed@test.cd", Role: Teacher},
		{Email: "amy@test.cd", Role: Teacher},
		{Email: "gone@test.cd", Role: Teacher, Suspended: true},
	}
	others := []Candidate{
		{Email: "stu@test.cd", Role: Student},
		{Email: "vis@test.cd", Role: Visitor},
	}

	for nAdmins := 0; nAdmins <= 5; nAdmins++ {
		admins := make([]Candidate, 0, nAdmins+1)
		wantAdmins := make([]string, 0, nAdmins)
		// added in reverse order, expected sorted
		for i := nAdmins; i > 0; i-- {
			admins = append(admins, Candidate{Email: fmt.Sprintf("Admin%d@test.cd", i), Role: Admin})
		}
		for i := 1; i <= nAdmins; i++ {
			wantAdmins = append(wantAdmins, fmt.Sprintf("admin%d@test.cd", i))
		}
		admins = append(admins, Candidate{Email: "banned@test.cd", Role: Admin, Suspended: true})

		var candidates []Candidate
		candidates = append(candidates, others...)
		candidates = append(candidates, teachers...)
		candidates = append(candidates, admins...)

		t.Run(fmt.Sprintf("%d admins", nAdmins), func(t *testing.T) {
			assert.Equal(t, []string{ownerEmail}, ComputeRecipients(Admin, ownerEmail, candidates))

			want := append([]string{ownerEmail}, wantAdmins...)
			assert.Equal(t, want, ComputeRecipients(Teacher, ownerEmail, candidates))

			want = append(want, "amy@test.cd", "zed@test.cd")
			assert.Equal(t, want, ComputeRecipients(Student, ownerEmail, candidates))

			assert.Empty(t, ComputeRecipients(Visitor, ownerEmail, candidates))
			assert.Empty(t, ComputeRecipients(None, ownerEmail, candidates))
		})
	}
}

func TestComputeRecipients_dedup(t *testing.T) {
	candidates := []Candidate{
		{Email: "OWNER@test.cd", Role: Admin},
		{Email: "both@test.cd", Role: Admin},
		{Email: "Both@Test.cd", Role: Teacher},
		{Email: "  ", Role: Teacher},
	}

	got := ComputeRecipients(Student, ownerEmail, candidates)
	assert.Equal(t, []string{ownerEmail, "both@test.cd"}, got)

	// no owner to notify
	got = ComputeRecipients(Admin, "", candidates)
	assert.Empty(t, got)
	got = ComputeRecipients(Teacher, "", candidates)
	assert.Equal(t, []string{"both@test.cd", "owner@test.cd"}, got)
}
