package role

import (
	"context"
	"net/mail"
	"sort"
	"strings"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// Candidate is an account that may be notified about a new Request.
type Candidate struct {
	Email     string
	Role      Role
	Suspended bool
}

// reviewerRoles returns the roles, besides the owner, whose holders review requests for requested.
func reviewerRoles(requested Role) []Role {
	switch requested {
	case Teacher:
		return []Role{Admin}
	case Student:
		return []Role{Teacher, Admin}
	default:
		return nil
	}
}

// ComputeRecipients returns the deduplicated addresses to notify about a Request for the role requested:
//   - admin: the owner
//   - teacher: every admin and the owner
//   - student: every teacher, every admin and the owner
//
// Addresses are lowercased. The owner comes first, then admins before teachers, each by email.
// Suspended candidates are left out. An empty ownerEmail means the owner is not notified.
func ComputeRecipients(requested Role, ownerEmail string, candidates []Candidate) []string {
	if !requested.in(RequestableRoles) {
		return nil
	}
	roles := reviewerRoles(requested)

	seen := make(map[string]bool, len(candidates)+1)
	recipients := make([]string, 0, len(candidates)+1)
	add := func(email string) {
		email = core.CleanString(email, true /* lower */)
		if email == "" || seen[email] {
			return
		}
		seen[email] = true
		recipients = append(recipients, email)
	}

	add(ownerEmail)

	eligible := make([]Candidate, 0, len(candidates))
	for _, c := range candidates {
		if !c.Suspended && c.Role.in(roles) {
			eligible = append(eligible, c)
		}
	}
	sort.SliceStable(eligible, func(i, j int) bool {
		if pi, pj := eligible[i].Role.Priority(), eligible[j].Role.Priority(); pi != pj {
			return pi > pj
		}
		return strings.ToLower(eligible[i].Email) < strings.ToLower(eligible[j].Email)
	})
	for _, c := range eligible {
		add(c.Email)
	}
	return recipients
}

// Notifier tells people about the role workflow's events.
type Notifier interface {
	RequestSubmitted(ctx context.Context, req Request, requester user.User, recipients []string) error
	RequestReviewed(ctx context.Context, req Request, requester user.User) error
}

// MailNotifier sends the notifications by email.
type MailNotifier struct {
	mailSvc core.EmailService
}

var _ Notifier = (*MailNotifier)(nil)

func NewMailNotifier(mailSvc core.EmailService) *MailNotifier {
	return &MailNotifier{mailSvc: mailSvc}
}

type submittedData struct {
	RequesterName  string
	RequesterEmail string
	Role           Role
	ReviewPath     string
}

type reviewedData struct {
	RequesterName string
	Role          Role
	Status        Status
	Destination   string
}

// RequestSubmitted sends one message per recipient so reviewers do not see each other's addresses.
func (n *MailNotifier) RequestSubmitted(_ context.Context, req Request, requester user.User, recipients []string) error {
	data := submittedData{
		RequesterName:  requester.Name,
		RequesterEmail: requester.Email,
		Role:           req.Role,
		ReviewPath:     AdminDashboard + "/role-requests",
	}
	if req.Role == Student {
		data.ReviewPath = TeacherDashboard + "/role-requests"
	}

	messages := make([]*core.EmailMessage, 0, len(recipients))
	for _, rcpt := range recipients {
		messages = append(messages, &core.EmailMessage{
			To:           []mail.Address{{Address: rcpt}},
			Subject:      "New " + string(req.Role) + " role request",
			TemplateName: "role_request_submitted",
			TemplateData: data,
		})
	}
	n.mailSvc.SendMessages(messages...)
	return nil
}

func (n *MailNotifier) RequestReviewed(_ context.Context, req Request, requester user.User) error {
	dest := LandingPage
	if req.Status == StatusApproved {
		dest = Destination(req.Role)
	}
	n.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: requester.Name, Address: requester.Email}},
		Subject:      "Your " + string(req.Role) + " role request was " + string(req.Status),
		TemplateName: "role_request_reviewed",
		TemplateData: reviewedData{
			RequesterName: requester.Name,
			Role:          req.Role,
			Status:        req.Status,
			Destination:   dest,
		},
	})
	return nil
}
