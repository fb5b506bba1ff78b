package content

import (
	"context"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

const (
	DefaultLimit = 50
	MaxLimit     = 200
)

var (
	// errors
	ErrNotFound  = errors.New("item not found")
	ErrForbidden = errors.New("permission denied")
)

// Access is the level an account needs to do something.
type Access int

const (
	Anyone Access = iota
	Reviewers
	Admins
)

// Rules are the Access levels needed to read, to create and to update or delete items.
type Rules struct {
	Read   Access
	Create Access
	Write  Access
}

var (
	// AdminRules: anyone reads, admins write.
	AdminRules = Rules{Read: Anyone, Create: Admins, Write: Admins}
	// FeedbackRules: anyone sends feedback, reviewers handle it.
	FeedbackRules = Rules{Read: Reviewers, Create: Anyone, Write: Reviewers}
)

type (
	Repository[T any] interface {
		Create(ctx context.Context, item T) (T, error)
		// Get returns ErrNotFound when no item has this ID.
		Get(ctx context.Context, id string) (T, error)
		List(ctx context.Context, q Query) ([]T, error)
		// Update saves every field of item but ID, AuthorID and CreatedAt. It returns ErrNotFound when item does not exist.
		Update(ctx context.Context, item T) (T, error)
		// Delete returns ErrNotFound when no item has this ID.
		Delete(ctx context.Context, id string) error
	}

	// Authorizer tells what an account may do. role.Service implements it.
	Authorizer interface {
		// CanManage is true for admins and the owner.
		CanManage(ctx context.Context, acc user.User) (bool, error)
		IsReviewer(ctx context.Context, acc user.User) (bool, error)
	}

	// Service manages the items of one Collection.
	// actor is nil for anonymous calls.
	Service[T any, PT Entity[T]] struct {
		repo     Repository[T]
		validate *validator.Validate
		authz    Authorizer
		broker   *Broker
		rules    Rules

		// prepare runs after Clean and before validation. orig is nil on create.
		prepare func(item *T, orig *T)
	}
)

func NewService[T any, PT Entity[T]](
	repo Repository[T],
	validate *validator.Validate,
	authz Authorizer,
	broker *Broker,
	rules Rules,
) *Service[T, PT] {
	return &Service[T, PT]{
		repo:     repo,
		validate: validate,
		authz:    authz,
		broker:   broker,
		rules:    rules,
	}
}

func (svc *Service[T, PT]) Collection() Collection {
	var item T
	return PT(&item).Collection()
}

func (svc *Service[T, PT]) Rules() Rules {
	return svc.rules
}

// Allowed returns nil if actor has the access level needed.
func (svc *Service[T, PT]) Allowed(ctx context.Context, actor *user.User, access Access) error {
	if access == Anyone {
		return nil
	}
	if actor == nil {
		return ErrForbidden
	}
	if actor.IsSuspended() {
		return user.ErrAccountSuspended
	}

	var (
		ok  bool
		err error
	)
	switch access {
	case Reviewers:
		ok, err = svc.authz.IsReviewer(ctx, *actor)
	case Admins:
		ok, err = svc.authz.CanManage(ctx, *actor)
	}
	if err != nil {
		return errors.Wrap(err, "checking access")
	}
	if !ok {
		return ErrForbidden
	}
	return nil
}

func (svc *Service[T, PT]) notify(action Action, id string) {
	if svc.broker != nil {
		svc.broker.Publish(Change{Collection: svc.Collection(), Action: action, ID: id, At: core.Now()})
	}
}

// BuildQuery cleans filter against the Collection's Schema.
func (svc *Service[T, PT]) BuildQuery(filter Filter) (Query, error) {
	schema := svc.Collection().Schema()
	q := Query{
		Search:    core.CleanString(filter.Search),
		SearchIn:  schema.Search,
		Where:     make(map[string]interface{}),
		TimeField: schema.TimeField,
		From:      filter.From,
		To:        filter.To,
		Ordering:  core.CleanOrderings(filter.Ordering, schema.Orderings...),
		Limit:     filter.Limit,
		Offset:    filter.Offset,
	}

	var fldErrs []core.FieldError
	for col, raw := range filter.Fields {
		kind, ok := schema.Filters[col]
		if !ok {
			continue
		}
		raw = core.CleanString(raw)
		switch kind {
		case Bool:
			b, err := strconv.ParseBool(raw)
			if err != nil {
				fldErrs = append(fldErrs, core.FieldError{Field: col, Error: col + " must be true or false"})
				continue
			}
			q.Where[col] = b
		case Int:
			i, err := strconv.Atoi(raw)
			if err != nil {
				fldErrs = append(fldErrs, core.FieldError{Field: col, Error: col + " must be a number"})
				continue
			}
			q.Where[col] = i
		default:
			q.Where[col] = raw
		}
	}
	if len(fldErrs) > 0 {
		return Query{}, core.NewValidationError(nil, fldErrs...)
	}

	if len(q.Ordering) == 0 {
		q.Ordering = schema.Default
	}
	if q.Limit <= 0 {
		q.Limit = DefaultLimit
	} else if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Offset < 0 {
		q.Offset = 0
	}
	return q, nil
}

func (svc *Service[T, PT]) List(ctx context.Context, actor *user.User, filter Filter) ([]T, error) {
	if err := svc.Allowed(ctx, actor, svc.rules.Read); err != nil {
		return nil, err
	}
	q, err := svc.BuildQuery(filter)
	if err != nil {
		return nil, err
	}
	items, err := svc.repo.List(ctx, q)
	return items, errors.Wrapf(err, "listing %s", svc.Collection())
}

func (svc *Service[T, PT]) get(ctx context.Context, id string) (T, error) {
	var zero T
	if _, err := uuid.Parse(id); err != nil {
		return zero, ErrNotFound
	}
	return svc.repo.Get(ctx, id)
}

func (svc *Service[T, PT]) Get(ctx context.Context, actor *user.User, id string) (T, error) {
	var zero T
	if err := svc.Allowed(ctx, actor, svc.rules.Read); err != nil {
		return zero, err
	}
	return svc.get(ctx, id)
}

// Create validates & saves a new item authored by actor.
func (svc *Service[T, PT]) Create(ctx context.Context, actor *user.User, item T) (T, error) {
	var zero T
	if err := svc.Allowed(ctx, actor, svc.rules.Create); err != nil {
		return zero, err
	}

	PT(&item).Clean()
	if svc.prepare != nil {
		svc.prepare(&item, nil)
	}
	if err := svc.validate.Struct(item); err != nil {
		return zero, err
	}

	now := core.Now()
	meta := PT(&item).GetMeta()
	meta.ID = uuid.NewString()
	meta.AuthorID = null.String{}
	if actor != nil {
		meta.AuthorID = null.StringFrom(actor.ID)
	}
	meta.CreatedAt = now
	meta.UpdatedAt = now

	item, err := svc.repo.Create(ctx, item)
	if err != nil {
		return zero, errors.Wrapf(err, "creating %s", svc.Collection())
	}
	svc.notify(Created, PT(&item).GetMeta().ID)
	return item, nil
}

// Update replaces the fields of the item id with item's.
func (svc *Service[T, PT]) Update(ctx context.Context, actor *user.User, id string, item T) (T, error) {
	var zero T
	if err := svc.Allowed(ctx, actor, svc.rules.Write); err != nil {
		return zero, err
	}
	orig, err := svc.get(ctx, id)
	if err != nil {
		return zero, err
	}

	PT(&item).Clean()
	if svc.prepare != nil {
		svc.prepare(&item, &orig)
	}
	if err = svc.validate.Struct(item); err != nil {
		return zero, err
	}
	return svc.save(ctx, orig, item)
}

// save keeps orig's Meta and stamps its update time.
func (svc *Service[T, PT]) save(ctx context.Context, orig, item T) (T, error) {
	var zero T
	meta := PT(&item).GetMeta()
	*meta = *PT(&orig).GetMeta()
	meta.UpdatedAt = core.Now()

	item, err := svc.repo.Update(ctx, item)
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return zero, ErrNotFound
		}
		return zero, errors.Wrapf(err, "updating %s", svc.Collection())
	}
	svc.notify(Updated, PT(&item).GetMeta().ID)
	return item, nil
}

func (svc *Service[T, PT]) Delete(ctx context.Context, actor *user.User, id string) error {
	_, err := svc.delete(ctx, actor, id)
	return err
}

func (svc *Service[T, PT]) delete(ctx context.Context, actor *user.User, id string) (T, error) {
	var zero T
	if err := svc.Allowed(ctx, actor, svc.rules.Write); err != nil {
		return zero, err
	}
	item, err := svc.get(ctx, id)
	if err != nil {
		return zero, err
	}
	if err = svc.repo.Delete(ctx, id); err != nil {
		if errors.Cause(err) == ErrNotFound {
			return zero, ErrNotFound
		}
		return zero, errors.Wrapf(err, "deleting %s", svc.Collection())
	}
	svc.notify(Deleted, id)
	return item, nil
}
