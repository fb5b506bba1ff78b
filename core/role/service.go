package role

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

var (
	// errors
	ErrNoGrant           = errors.New("account holds no role")
	ErrNotFound          = errors.New("role request not found")
	ErrStaleRequest      = errors.New("this request has already been reviewed")
	ErrDuplicateRequest  = errors.New("a request for this role is already pending")
	ErrForbidden         = errors.New("permission denied")
	ErrRoleAlreadyChosen = errors.New("a role has already been chosen for this account")
	ErrAlreadyGranted    = errors.New("this account already holds this role or a higher one")
)

type (
	Repository interface {
		// GetGrant returns ErrNoGrant when the account holds no role.
		GetGrant(ctx context.Context, accountID string) (Grant, error)
		QueryGrants(ctx context.Context, roles ...Role) ([]Grant, error)
		// UpsertGrant inserts the account's Grant or updates it, keyed by account ID.
		UpsertGrant(ctx context.Context, grant Grant) (Grant, error)
		// CreateRequest inserts a pending Request and, when grant is set, upserts grant in the same transaction.
		// It returns ErrDuplicateRequest when the requester already has a pending Request for the same role.
		CreateRequest(ctx context.Context, req Request, grant *Grant) (Request, error)
		// GetRequest returns ErrNotFound when no Request has this ID.
		GetRequest(ctx context.Context, id string) (Request, error)
		// QueryRequests returns the matching requests, newest first.
		QueryRequests(ctx context.Context, filter RequestFilter) ([]Request, error)
		// ResolveRequest applies res if, and only if, the Request is still pending: the first writer wins.
		// It returns ErrStaleRequest when the Request was already resolved, ErrNotFound when it does not exist.
		ResolveRequest(ctx context.Context, res Resolution) (Request, error)
	}

	// Accounts is the part of the Identity Store the workflow reads.
	Accounts interface {
		GetByID(ctx context.Context, id string) (user.User, error)
		GetByEmail(ctx context.Context, email string) (user.User, error)
		Query(ctx context.Context, filter *user.QueryFilter, ordering ...core.DBOrdering) ([]user.User, error)
	}

	// Service runs the role workflow. It owns no state: every call takes the acting account explicitly.
	Service struct {
		repo     Repository
		accounts Accounts
		notifier Notifier
		policy   Policy
		logger   core.Logger
	}
)

func NewService(repo Repository, accounts Accounts, notifier Notifier, logger core.Logger, conf *core.Config) *Service {
	return &Service{
		repo:     repo,
		accounts: accounts,
		notifier: notifier,
		policy:   NewPolicy(conf.OwnerEmail),
		logger:   logger,
	}
}

func (svc *Service) Policy() Policy {
	return svc.policy
}

// CurrentRole returns the role acc holds, None if it holds none.
func (svc *Service) CurrentRole(ctx context.Context, acc user.User) (Role, error) {
	grant, err := svc.repo.GetGrant(ctx, acc.ID)
	if err != nil {
		if errors.Cause(err) == ErrNoGrant {
			return None, nil
		}
		return None, errors.Wrap(err, "getting grant")
	}
	return grant.Role, nil
}

func (svc *Service) IsAdmin(ctx context.Context, acc user.User) (bool, error) {
	current, err := svc.CurrentRole(ctx, acc)
	if err != nil {
		return false, err
	}
	return svc.policy.IsAdmin(acc, current), nil
}

// CanManage reports whether acc is an admin or the owner.
func (svc *Service) CanManage(ctx context.Context, acc user.User) (bool, error) {
	current, err := svc.CurrentRole(ctx, acc)
	if err != nil {
		return false, err
	}
	return svc.policy.CanManage(acc, current), nil
}

func (svc *Service) CanReview(ctx context.Context, acc user.User, requested Role) (bool, error) {
	current, err := svc.CurrentRole(ctx, acc)
	if err != nil {
		return false, err
	}
	return svc.policy.CanReview(acc, current, requested), nil
}

func (svc *Service) IsReviewer(ctx context.Context, acc user.User) (bool, error) {
	return svc.CanReview(ctx, acc, Student)
}

// CurrentState tells where acc stands in the workflow and where it should be redirected.
// An account holding a role never goes back to NO_ROLE.
func (svc *Service) CurrentState(ctx context.Context, acc user.User) (AccountStatus, error) {
	if acc.IsSuspended() {
		return AccountStatus{}, user.ErrAccountSuspended
	}
	current, err := svc.CurrentRole(ctx, acc)
	if err != nil {
		return AccountStatus{}, err
	}
	reqs, err := svc.repo.QueryRequests(ctx, RequestFilter{RequesterID: acc.ID})
	if err != nil {
		return AccountStatus{}, errors.Wrap(err, "querying requests")
	}

	status := AccountStatus{
		Role:        current,
		Destination: Destination(current),
		Requests:    reqs,
	}
	if current == None {
		status.State = StateNoRole
		status.Choices = ChoosableRoles
		return status, nil
	}
	status.State = stateOf(current, reqs)
	return status, nil
}

// stateOf derives the state of an account holding current. reqs are newest first.
func stateOf(current Role, reqs []Request) State {
	for _, req := range reqs {
		if req.IsPending() {
			return StateRequestSubmitted
		}
	}
	if len(reqs) > 0 {
		switch latest := reqs[0]; latest.Status {
		case StatusApproved:
			if latest.Role == current {
				return StateApproved
			}
		case StatusRejected:
			return StateRejected
		}
	}
	if current == Visitor {
		return StateVisitorActive
	}
	return StateRoleActive
}

func invalidRole(msg string) error {
	return core.NewValidationError(errors.New(msg), core.FieldError{Field: "role", Error: msg})
}

// ChooseRole answers the role prompt of an account holding no role yet.
//   - visitor is granted right away.
//   - student and teacher submit a Request for review, and grant visitor meanwhile.
//
// An account already holding a role gets ErrRoleAlreadyChosen and goes through RequestRole instead.
func (svc *Service) ChooseRole(ctx context.Context, acc user.User, r Role) (Submission, error) {
	if acc.IsSuspended() {
		return Submission{}, user.ErrAccountSuspended
	}
	if r == None {
		return Submission{}, invalidRole("please choose a role")
	}
	if !r.in(ChoosableRoles) {
		return Submission{}, invalidRole(fmt.Sprintf("%q is not a role you can choose", r))
	}

	current, err := svc.CurrentRole(ctx, acc)
	if err != nil {
		return Submission{}, err
	}

	if current != None {
		return Submission{}, ErrRoleAlreadyChosen
	}
	if r != Visitor {
		return svc.submit(ctx, acc, current, r)
	}
	now := core.Now()
	grant, err := svc.repo.UpsertGrant(ctx, Grant{AccountID: acc.ID, Role: Visitor, GrantedAt: now, UpdatedAt: now})
	if err != nil {
		return Submission{}, errors.Wrap(err, "granting visitor role")
	}
	return Submission{
		State:       StateVisitorActive,
		Grant:       &grant,
		Destination: Destination(Visitor),
	}, nil
}

// RequestRole submits a Request for a role needing review, admin included.
// Only roles above the one acc holds may be requested.
func (svc *Service) RequestRole(ctx context.Context, acc user.User, r Role) (Submission, error) {
	if acc.IsSuspended() {
		return Submission{}, user.ErrAccountSuspended
	}
	if r == None {
		return Submission{}, invalidRole("please choose a role")
	}
	if !r.in(RequestableRoles) {
		return Submission{}, invalidRole(fmt.Sprintf("%q is not a role you can request", r))
	}

	current, err := svc.CurrentRole(ctx, acc)
	if err != nil {
		return Submission{}, err
	}
	return svc.submit(ctx, acc, current, r)
}

func (svc *Service) submit(ctx context.Context, acc user.User, current, r Role) (Submission, error) {
	if current.Priority() >= r.Priority() {
		return Submission{}, ErrAlreadyGranted
	}

	now := core.Now()
	req := Request{
		ID:          uuid.NewString(),
		RequesterID: acc.ID,
		Role:        r,
		Status:      StatusPending,
		CreatedAt:   now,
	}

	// an account without a role gets visitor access while its request is pending
	var grant *Grant
	if current == None {
		grant = &Grant{AccountID: acc.ID, Role: Visitor, GrantedAt: now, UpdatedAt: now}
		current = Visitor
	}

	req, err := svc.repo.CreateRequest(ctx, req, grant)
	if err != nil {
		if errors.Cause(err) == ErrDuplicateRequest {
			return Submission{}, ErrDuplicateRequest
		}
		return Submission{}, errors.Wrap(err, "creating request")
	}

	return Submission{
		State:       StateRequestSubmitted,
		Grant:       grant,
		Request:     &req,
		Recipients:  svc.notifySubmitted(ctx, req, acc),
		Destination: Destination(current),
	}, nil
}

// notifySubmitted never fails: the Request is already saved.
func (svc *Service) notifySubmitted(ctx context.Context, req Request, requester user.User) []string {
	recipients, err := svc.Recipients(ctx, req.Role)
	if err != nil {
		svc.logger.Error("resolving role request recipients", errors.Wrap(err, "resolving recipients"), requester)
		return nil
	}
	if len(recipients) == 0 {
		svc.logger.Warn(fmt.Sprintf("no reviewer to notify about role request %s (%s)", req.ID, req.Role), requester)
		return recipients
	}
	svc.logger.Info(fmt.Sprintf("notifying %d reviewer(s) about role request %s (%s)", len(recipients), req.ID, req.Role))
	if err := svc.notifier.RequestSubmitted(ctx, req, requester, recipients); err != nil {
		svc.logger.Error("notifying role request reviewers", errors.Wrap(err, "notifying reviewers"), requester)
	}
	return recipients
}

// Recipients resolves who to notify about a Request for the role requested.
func (svc *Service) Recipients(ctx context.Context, requested Role) ([]string, error) {
	ownerEmail := svc.policy.OwnerEmail()
	if ownerEmail != "" {
		owner, err := svc.accounts.GetByEmail(ctx, ownerEmail)
		switch {
		case err == nil:
			if owner.IsSuspended() {
				ownerEmail = ""
			}
		case errors.Cause(err) != user.ErrNotFound:
			return nil, errors.Wrap(err, "finding owner")
		}
	}

	var candidates []Candidate
	if roles := reviewerRoles(requested); len(roles) > 0 {
		grants, err := svc.repo.QueryGrants(ctx, roles...)
		if err != nil {
			return nil, errors.Wrap(err, "querying reviewer grants")
		}
		if len(grants) > 0 {
			rolesByID := make(map[string]Role, len(grants))
			ids := make([]string, 0, len(grants))
			for _, g := range grants {
				rolesByID[g.AccountID] = g.Role
				ids = append(ids, g.AccountID)
			}
			accs, err := svc.accounts.Query(ctx, &user.QueryFilter{IDs: ids})
			if err != nil {
				return nil, errors.Wrap(err, "querying reviewers")
			}
			candidates = make([]Candidate, 0, len(accs))
			for _, acc := range accs {
				candidates = append(candidates, Candidate{
					Email:     acc.Email,
					Role:      rolesByID[acc.ID],
					Suspended: acc.IsSuspended(),
				})
			}
		}
	}
	return ComputeRecipients(requested, ownerEmail, candidates), nil
}

// Approve resolves a pending Request as approved and grants the requested role.
func (svc *Service) Approve(ctx context.Context, reviewer user.User, requestID string) (Request, error) {
	return svc.review(ctx, reviewer, requestID, StatusApproved)
}

// Reject resolves a pending Request as rejected. The requester's Grant is left unchanged.
func (svc *Service) Reject(ctx context.Context, reviewer user.User, requestID string) (Request, error) {
	return svc.review(ctx, reviewer, requestID, StatusRejected)
}

func (svc *Service) review(ctx context.Context, reviewer user.User, requestID string, status Status) (Request, error) {
	if reviewer.IsSuspended() {
		return Request{}, user.ErrAccountSuspended
	}
	if _, err := uuid.Parse(requestID); err != nil {
		return Request{}, ErrNotFound
	}
	req, err := svc.repo.GetRequest(ctx, requestID)
	if err != nil {
		return Request{}, err
	}

	current, err := svc.CurrentRole(ctx, reviewer)
	if err != nil {
		return Request{}, err
	}
	if req.RequesterID == reviewer.ID || !svc.policy.CanReview(reviewer, current, req.Role) {
		return Request{}, ErrForbidden
	}
	if !req.IsPending() {
		return Request{}, ErrStaleRequest
	}

	now := core.Now()
	res := Resolution{
		RequestID:  req.ID,
		Status:     status,
		ReviewerID: reviewer.ID,
		ReviewedAt: now,
	}
	if status == StatusApproved {
		held, err := svc.CurrentRole(ctx, user.User{ID: req.RequesterID})
		if err != nil {
			return Request{}, err
		}
		// an approval never demotes: the requester may have been promoted since asking
		if held.Priority() < req.Role.Priority() {
			res.Grant = &Grant{
				AccountID: req.RequesterID,
				Role:      req.Role,
				GrantedBy: null.StringFrom(reviewer.ID),
				GrantedAt: now,
				UpdatedAt: now,
			}
		}
	}
	req, err = svc.repo.ResolveRequest(ctx, res)
	if err != nil {
		if cause := errors.Cause(err); cause == ErrStaleRequest || cause == ErrNotFound {
			return Request{}, cause
		}
		return Request{}, errors.Wrap(err, "resolving request")
	}

	svc.notifyReviewed(ctx, req)
	return req, nil
}

func (svc *Service) notifyReviewed(ctx context.Context, req Request) {
	requester, err := svc.accounts.GetByID(ctx, req.RequesterID)
	if err != nil {
		svc.logger.Error("finding role requester", errors.Wrap(err, "finding requester"))
		return
	}
	if err = svc.notifier.RequestReviewed(ctx, req, requester); err != nil {
		svc.logger.Error("notifying role requester", errors.Wrap(err, "notifying requester"), requester)
	}
}

// ListPending returns the pending requests reviewer may review, newest first.
func (svc *Service) ListPending(ctx context.Context, reviewer user.User) ([]Request, error) {
	if reviewer.IsSuspended() {
		return nil, user.ErrAccountSuspended
	}
	current, err := svc.CurrentRole(ctx, reviewer)
	if err != nil {
		return nil, err
	}
	roles := svc.policy.ReviewableRoles(reviewer, current)
	if len(roles) == 0 {
		return nil, ErrForbidden
	}
	reqs, err := svc.repo.QueryRequests(ctx, RequestFilter{Statuses: []Status{StatusPending}, Roles: roles})
	return reqs, errors.Wrap(err, "querying pending requests")
}

// ListMine returns the requests acc submitted, newest first.
func (svc *Service) ListMine(ctx context.Context, acc user.User) ([]Request, error) {
	reqs, err := svc.repo.QueryRequests(ctx, RequestFilter{RequesterID: acc.ID})
	return reqs, errors.Wrap(err, "querying requests")
}

// ChangeRole sets the role of another account. Only admins may do it, and only the owner may
// grant or withdraw the admin role.
func (svc *Service) ChangeRole(ctx context.Context, actor user.User, accountID string, r Role) (Grant, error) {
	if actor.IsSuspended() {
		return Grant{}, user.ErrAccountSuspended
	}
	if !r.IsValid() {
		return Grant{}, invalidRole(fmt.Sprintf("%q is not a valid role", r))
	}
	current, err := svc.CurrentRole(ctx, actor)
	if err != nil {
		return Grant{}, err
	}
	owner := svc.policy.IsOwner(actor)
	if !svc.policy.CanManage(actor, current) || actor.ID == accountID {
		return Grant{}, ErrForbidden
	}

	target, err := svc.accounts.GetByID(ctx, accountID)
	if err != nil {
		return Grant{}, err
	}
	targetRole, err := svc.CurrentRole(ctx, target)
	if err != nil {
		return Grant{}, err
	}
	if (r == Admin || targetRole == Admin) && !owner || !svc.policy.CanActOn(actor, target) {
		return Grant{}, ErrForbidden
	}

	now := core.Now()
	grant, err := svc.repo.UpsertGrant(ctx, Grant{
		AccountID: target.ID,
		Role:      r,
		GrantedBy: null.StringFrom(actor.ID),
		GrantedAt: now,
		UpdatedAt: now,
	})
	return grant, errors.Wrap(err, "changing role")
}

// Grant sets the role of an account, bypassing every check. Meant for the admin CLI.
func (svc *Service) Grant(ctx context.Context, accountID string, r Role) (Grant, error) {
	if !r.IsValid() {
		return Grant{}, invalidRole(fmt.Sprintf("%q is not a valid role", r))
	}
	now := core.Now()
	grant, err := svc.repo.UpsertGrant(ctx, Grant{AccountID: accountID, Role: r, GrantedAt: now, UpdatedAt: now})
	return grant, errors.Wrap(err, "granting role")
}
