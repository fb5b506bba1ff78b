package user

import (
	"context"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
)

var (
	// errors
	ErrNotFound           = errors.New("user not found")
	ErrEmailExists        = errors.New("a user with this email already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountSuspended   = errors.New("account suspended")
)

type (
	Repository interface {
		// CheckEmailUniqueness returns ErrEmailExists if another User (not in excludedUsers) has this email.
		CheckEmailUniqueness(ctx context.Context, email string, excludedUsers ...User) error
		// CreateUser returns ErrEmailExists when the email is taken.
		CreateUser(ctx context.Context, usr User) (User, error)
		GetUser(ctx context.Context, filter GetFilter) (User, error)
		// QueryUsers applies AND operation on available QueryFilter fields.
		// QueryFilter.Search does a case-insensitive match on one of User.Name or User.Email.
		QueryUsers(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error)
		// UpdateUser saves every field of usr but ID and CreatedAt.
		UpdateUser(ctx context.Context, usr User) (User, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) checkUniqueness(ctx context.Context, email string, exclUsers ...User) error {
	if err := svc.repo.CheckEmailUniqueness(ctx, email, exclUsers...); err != nil {
		return asFieldError(err)
	}
	return nil
}

func asFieldError(err error) error {
	if errors.Cause(err) == ErrEmailExists {
		return core.NewValidationError(ErrEmailExists, core.FieldError{Field: "email", Error: ErrEmailExists.Error()})
	}
	return err
}

// Create signs a new active User up. nu must have been validated.
func (svc *Service) Create(ctx context.Context, nu NewUser) (User, error) {
	now := core.Now()
	usr := User{
		ID:        uuid.NewString(),
		Name:      nu.Name,
		Email:     core.CleanString(nu.Email, true /* lower */),
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := usr.SetPassword(nu.Password); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr, err := svc.repo.CreateUser(ctx, usr)
	if err != nil {
		return User{}, asFieldError(err)
	}
	return usr, nil
}

// Authenticate checks the credentials and stamps the User's last login.
func (svc *Service) Authenticate(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return User{}, ErrInvalidCredentials
		}
		return User{}, errors.Wrap(err, "finding user by email")
	}
	if err = usr.CheckPassword(pwd); err != nil {
		return User{}, ErrInvalidCredentials
	}
	if usr.IsSuspended() {
		return User{}, ErrAccountSuspended
	}

	usr.LastLogin = null.TimeFrom(core.Now())
	usr, err = svc.repo.UpdateUser(ctx, usr)
	return usr, errors.Wrap(err, "setting last login")
}

func (svc *Service) GetByID(ctx context.Context, id string) (User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{ID: id})
}

func (svc *Service) GetByEmail(ctx context.Context, email string) (User, error) {
	email = core.CleanString(email, true /* lower */)
	if email == "" {
		return User{}, ErrNotFound
	}
	return svc.repo.GetUser(ctx, GetFilter{Email: email})
}

func (svc *Service) Query(ctx context.Context, filter *QueryFilter, ordering ...core.DBOrdering) ([]User, error) {
	if filter == nil {
		filter = new(QueryFilter)
	}
	filter.Clean()
	return svc.repo.QueryUsers(ctx, filter, core.CleanOrderings(ordering, OrderingFields...)...)
}

// Update applies uu to usr. uu must have been validated.
func (svc *Service) Update(ctx context.Context, usr User, uu UpdateUser) (User, error) {
	usr.Name = uu.Name
	usr.Email = uu.Email
	if uu.IsActive != nil {
		usr.IsActive = *uu.IsActive
	}
	if uu.Password != "" {
		if err := usr.SetPassword(uu.Password); err != nil {
			return User{}, errors.Wrap(err, "setting password")
		}
	}
	usr.UpdatedAt = core.Now()

	usr, err := svc.repo.UpdateUser(ctx, usr)
	if err != nil {
		return User{}, asFieldError(err)
	}
	return usr, nil
}

// SetActive suspends (active == false) or restores an account.
func (svc *Service) SetActive(ctx context.Context, id string, active bool) (User, error) {
	usr, err := svc.GetByID(ctx, id)
	if err != nil {
		return User{}, err
	}
	if usr.IsActive == active {
		return usr, nil
	}
	usr.IsActive = active
	usr.UpdatedAt = core.Now()
	return svc.repo.UpdateUser(ctx, usr)
}

// SetPassword resets the password of the User with the given email, bypassing the password policy.
func (svc *Service) SetPassword(ctx context.Context, email, pwd string) (User, error) {
	usr, err := svc.GetByEmail(ctx, email)
	if err != nil {
		return User{}, err
	}
	if err = usr.SetPassword(pwd); err != nil {
		return User{}, errors.Wrap(err, "setting password")
	}
	usr.UpdatedAt = core.Now()
	return svc.repo.UpdateUser(ctx, usr)
}
