package content

import (
	"context"
	"net/mail"

	"github.com/go-playground/validator/v10"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// FeedbackService handles the contact form's messages.
type FeedbackService struct {
	*Service[FeedbackEntry, *FeedbackEntry]
	mailSvc core.EmailService
	logger  core.Logger
}

func NewFeedbackService(
	repo Repository[FeedbackEntry],
	validate *validator.Validate,
	authz Authorizer,
	broker *Broker,
	mailSvc core.EmailService,
	logger core.Logger,
) *FeedbackService {
	svc := NewService[FeedbackEntry, *FeedbackEntry](repo, validate, authz, broker, FeedbackRules)
	svc.prepare = func(item, orig *FeedbackEntry) {
		// the reply is only set through Reply
		if orig == nil {
			item.Reply, item.RepliedBy, item.RepliedAt = null.String{}, null.String{}, null.Time{}
			return
		}
		item.Reply, item.RepliedBy, item.RepliedAt = orig.Reply, orig.RepliedBy, orig.RepliedAt
	}
	return &FeedbackService{Service: svc, mailSvc: mailSvc, logger: logger}
}

type replyData struct {
	Name    string
	Subject string
	Reply   string
}

// Reply answers the feedback id by email and keeps the reply.
func (svc *FeedbackService) Reply(ctx context.Context, actor *user.User, id, reply string) (FeedbackEntry, error) {
	if err := svc.Allowed(ctx, actor, svc.rules.Write); err != nil {
		return FeedbackEntry{}, err
	}
	if reply = core.CleanString(reply); reply == "" {
		return FeedbackEntry{}, core.NewValidationError(nil, core.FieldError{Field: "reply", Error: "this field is required"})
	}
	orig, err := svc.get(ctx, id)
	if err != nil {
		return FeedbackEntry{}, err
	}

	item := orig
	item.Reply = null.StringFrom(reply)
	item.RepliedBy = null.StringFrom(actor.ID)
	item.RepliedAt = null.TimeFrom(core.Now())
	if item, err = svc.save(ctx, orig, item); err != nil {
		return FeedbackEntry{}, err
	}

	subject := item.Subject
	if subject == "" {
		subject = "your message"
	}
	svc.mailSvc.SendMessages(&core.EmailMessage{
		To:           []mail.Address{{Name: item.Name, Address: item.Email}},
		Subject:      "Re: " + subject,
		TemplateName: "feedback_reply",
		TemplateData: replyData{Name: item.Name, Subject: subject, Reply: reply},
	})
	svc.logger.Info("replied to feedback " + item.ID)
	return item, nil
}
