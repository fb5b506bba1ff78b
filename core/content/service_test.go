package content_test

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/content"
	"github.com/trezcool/shule/core/role"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	mediasvc "github.com/trezcool/shule/services/media"
	"github.com/trezcool/shule/storage/database/inmem"
	"github.com/trezcool/shule/testutil"
)

type fixture struct {
	db       *inmemdb.DB
	validate *validator.Validate
	authz    *role.Service
	broker   *content.Broker
	mailSvc  *emailsvc.ConsoleServiceMock
	logger   *testutil.Logger
	conf     *core.Config

	admin, teacher, student user.User
}

func setup(t *testing.T) *fixture {
	conf := testutil.NewConfig()
	logger := new(testutil.Logger)
	core.ParseEmailTemplates(conf, logger)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	content.InitValidators(validate, translator)

	db := inmemdb.NewDB()
	usrRepo := inmemdb.NewUserRepository(db)
	roleRepo := inmemdb.NewRoleRepository(db)

	f := &fixture{
		db:       db,
		validate: validate,
		authz:    role.NewService(roleRepo, user.NewService(usrRepo), new(testutil.Notifier), logger, conf),
		broker:   content.NewBroker(),
		mailSvc:  emailsvc.NewConsoleServiceMock(conf, logger),
		logger:   logger,
		conf:     conf,
	}
	f.admin = testutil.CreateUser(t, usrRepo, "Admin", "admin@test.cd", "", true)
	testutil.GrantRole(t, roleRepo, f.admin, role.Admin)
	f.teacher = testutil.CreateUser(t, usrRepo, "Teacher", "teacher@test.cd", "", true)
	testutil.GrantRole(t, roleRepo, f.teacher, role.Teacher)
	f.student = testutil.CreateUser(t, usrRepo, "Student", "student@test.cd", "", true)
	testutil.GrantRole(t, roleRepo, f.student, role.Student)
	return f
}

func (f *fixture) notices() *content.Service[content.Notice, *content.Notice] {
	repo := inmemdb.NewContentRepository[content.Notice, *content.Notice](f.db)
	return content.NewService[content.Notice, *content.Notice](repo, f.validate, f.authz, f.broker, content.AdminRules)
}

func isValidationErr(err error) bool {
	var verrs validator.ValidationErrors
	var verr *core.ValidationError
	return errors.As(err, &verrs) || errors.As(err, &verr)
}

func TestService_access(t *testing.T) {
	f := setup(t)
	svc := f.notices()
	ctx := context.Background()
	suspended := f.admin
	suspended.IsActive = false
	owner := testutil.CreateUser(t, inmemdb.NewUserRepository(f.db), "Owner", testutil.OwnerEmail, "", true)

	tests := []struct {
		name    string
		actor   *user.User
		wantErr error
	}{
		{name: "anonymous", actor: nil, wantErr: content.ErrForbidden},
		{name: "student", actor: &f.student, wantErr: content.ErrForbidden},
		{name: "teacher", actor: &f.teacher, wantErr: content.ErrForbidden},
		{name: "suspended admin", actor: &suspended, wantErr: user.ErrAccountSuspended},
		{name: "admin", actor: &f.admin},
		{name: "owner without a role", actor: &owner},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, tt.actor, content.Notice{Title: "Hello", Body: "World"})
			assert.Equal(t, tt.wantErr, err)

			// everybody reads
			_, err = svc.List(ctx, tt.actor, content.Filter{})
			assert.NoError(t, err)
		})
	}
}

func TestService_CRUD(t *testing.T) {
	f := setup(t)
	svc := f.notices()
	ctx := context.Background()

	created, err := svc.Create(ctx, &f.admin, content.Notice{Title: "  Exams  ", Body: "Next week", Pinned: true})
	require.NoError(t, err)
	assert.NotEmpty(t, created.ID)
	assert.Equal(t, "Exams", created.Title)
	assert.Equal(t, "all", created.Audience)
	assert.Equal(t, f.admin.ID, created.AuthorID.String)
	assert.False(t, created.CreatedAt.IsZero())

	got, err := svc.Get(ctx, nil, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	time.Sleep(time.Millisecond)
	updated, err := svc.Update(ctx, &f.admin, created.ID, content.Notice{Title: "Exams", Body: "Postponed", Audience: "students"})
	require.NoError(t, err)
	assert.Equal(t, created.ID, updated.ID)
	assert.Equal(t, created.AuthorID, updated.AuthorID)
	assert.Equal(t, created.CreatedAt, updated.CreatedAt)
	assert.True(t, updated.UpdatedAt.After(created.UpdatedAt))
	assert.Equal(t, "Postponed", updated.Body)
	assert.False(t, updated.Pinned)

	_, err = svc.Update(ctx, &f.admin, created.ID, content.Notice{Title: "Exams", Body: "x", Audience: "parents"})
	assert.True(t, isValidationErr(err), "got %v", err)

	require.NoError(t, svc.Delete(ctx, &f.admin, created.ID))
	_, err = svc.Get(ctx, nil, created.ID)
	assert.Equal(t, content.ErrNotFound, err)
	assert.Equal(t, content.ErrNotFound, svc.Delete(ctx, &f.admin, created.ID))

	_, err = svc.Get(ctx, nil, "not-a-uuid")
	assert.Equal(t, content.ErrNotFound, err)
}

func TestService_List(t *testing.T) {
	f := setup(t)
	svc := f.notices()
	ctx := context.Background()

	for _, n := range []content.Notice{
		{Title: "Sports day", Body: "Friday", Audience: "students"},
		{Title: "Staff meeting", Body: "Monday", Audience: "teachers", Pinned: true},
		{Title: "Open day", Body: "Saturday"},
	} {
		_, err := svc.Create(ctx, &f.admin, n)
		require.NoError(t, err)
		time.Sleep(time.Millisecond)
	}

	titles := func(items []content.Notice) []string {
		var res []string
		for _, it := range items {
			res = append(res, it.Title)
		}
		return res
	}

	tests := []struct {
		name    string
		filter  content.Filter
		want    []string
		wantErr bool
	}{
		{name: "default ordering", want: []string{"Staff meeting", "Open day", "Sports day"}},
		{name: "search", filter: content.Filter{Search: "SATUR"}, want: []string{"Open day"}},
		{name: "field", filter: content.Filter{Fields: map[string]string{"audience": "students"}}, want: []string{"Sports day"}},
		{name: "bool field", filter: content.Filter{Fields: map[string]string{"pinned": "true"}}, want: []string{"Staff meeting"}},
		{name: "bad bool field", filter: content.Filter{Fields: map[string]string{"pinned": "maybe"}}, wantErr: true},
		{name: "unknown field ignored", filter: content.Filter{Fields: map[string]string{"body": "Friday"}}, want: []string{"Staff meeting", "Open day", "Sports day"}},
		{
			name:   "ordering",
			filter: content.Filter{Ordering: core.ParseOrderings("title")},
			want:   []string{"Open day", "Sports day", "Staff meeting"},
		},
		{
			name:   "disallowed ordering falls back to default",
			filter: content.Filter{Ordering: core.ParseOrderings("body")},
			want:   []string{"Staff meeting", "Open day", "Sports day"},
		},
		{
			name:   "limit & offset",
			filter: content.Filter{Ordering: core.ParseOrderings("title"), Limit: 1, Offset: 1},
			want:   []string{"Sports day"},
		},
		{name: "time range", filter: content.Filter{From: core.Now().Add(time.Hour)}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, err := svc.List(ctx, nil, tt.filter)
			if tt.wantErr {
				assert.True(t, isValidationErr(err), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, titles(items))
		})
	}
}

func TestService_BuildQuery(t *testing.T) {
	f := setup(t)
	repo := inmemdb.NewContentRepository[content.TimetableEntry, *content.TimetableEntry](f.db)
	svc := content.NewService[content.TimetableEntry, *content.TimetableEntry](repo, f.validate, f.authz, f.broker, content.AdminRules)

	q, err := svc.BuildQuery(content.Filter{
		Search: "  math ",
		Fields: map[string]string{"weekday": "2", "class_name": "S1"},
		Limit:  1000,
		Offset: -4,
	})
	require.NoError(t, err)
	assert.Equal(t, "math", q.Search)
	assert.Equal(t, map[string]interface{}{"weekday": 2, "class_name": "S1"}, q.Where)
	assert.Equal(t, content.MaxLimit, q.Limit)
	assert.Equal(t, 0, q.Offset)
	assert.Equal(t, content.Timetables.Schema().Default, q.Ordering)

	_, err = svc.BuildQuery(content.Filter{Fields: map[string]string{"weekday": "monday"}})
	assert.True(t, isValidationErr(err))

	q, err = svc.BuildQuery(content.Filter{})
	require.NoError(t, err)
	assert.Equal(t, content.DefaultLimit, q.Limit)
}

func TestValidators(t *testing.T) {
	f := setup(t)
	ctx := context.Background()

	evtRepo := inmemdb.NewContentRepository[content.Event, *content.Event](f.db)
	events := content.NewService[content.Event, *content.Event](evtRepo, f.validate, f.authz, f.broker, content.AdminRules)
	start := core.Now().Add(24 * time.Hour)

	_, err := events.Create(ctx, &f.admin, content.Event{Title: "Trip", StartsAt: start, EndsAt: nullTime(start.Add(-time.Hour))})
	assert.True(t, isValidationErr(err), "got %v", err)
	_, err = events.Create(ctx, &f.admin, content.Event{Title: "Trip", StartsAt: start, EndsAt: nullTime(start.Add(time.Hour))})
	assert.NoError(t, err)

	ttRepo := inmemdb.NewContentRepository[content.TimetableEntry, *content.TimetableEntry](f.db)
	timetables := content.NewService[content.TimetableEntry, *content.TimetableEntry](ttRepo, f.validate, f.authz, f.broker, content.AdminRules)

	tests := []struct {
		name      string
		start     string
		end       string
		wantValid bool
	}{
		{name: "valid", start: "08:00", end: "09:30", wantValid: true},
		{name: "ends before start", start: "10:00", end: "09:00"},
		{name: "same time", start: "10:00", end: "10:00"},
		{name: "bad clock", start: "8h", end: "09:00"},
		{name: "out of range", start: "23:00", end: "24:00"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := timetables.Create(ctx, &f.admin, content.TimetableEntry{
				ClassName: "S1", Subject: "Maths", Weekday: 1, StartTime: tt.start, EndTime: tt.end,
			})
			if tt.wantValid {
				assert.NoError(t, err)
			} else {
				assert.True(t, isValidationErr(err), "got %v", err)
			}
		})
	}
}

func TestFeedbackService(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	repo := inmemdb.NewContentRepository[content.FeedbackEntry, *content.FeedbackEntry](f.db)
	svc := content.NewFeedbackService(repo, f.validate, f.authz, f.broker, f.mailSvc, f.logger)

	// anyone may send feedback, without setting the reply
	fb, err := svc.Create(ctx, nil, content.FeedbackEntry{
		Name:    "Parent",
		Email:   "Parent@Mail.cd",
		Message: "When does school start?",
		Reply:   nullString("forged"),
	})
	require.NoError(t, err)
	assert.Equal(t, "parent@mail.cd", fb.Email)
	assert.False(t, fb.Reply.Valid)
	assert.False(t, fb.AuthorID.Valid)

	_, err = svc.List(ctx, nil, content.Filter{})
	assert.Equal(t, content.ErrForbidden, err)
	_, err = svc.List(ctx, &f.student, content.Filter{})
	assert.Equal(t, content.ErrForbidden, err)
	items, err := svc.List(ctx, &f.teacher, content.Filter{})
	require.NoError(t, err)
	assert.Len(t, items, 1)

	_, err = svc.Reply(ctx, &f.student, fb.ID, "Monday")
	assert.Equal(t, content.ErrForbidden, err)
	_, err = svc.Reply(ctx, &f.teacher, fb.ID, "   ")
	assert.True(t, isValidationErr(err))
	assert.Empty(t, f.mailSvc.Sent())

	replied, err := svc.Reply(ctx, &f.teacher, fb.ID, "On Monday")
	require.NoError(t, err)
	assert.Equal(t, "On Monday", replied.Reply.String)
	assert.Equal(t, f.teacher.ID, replied.RepliedBy.String)
	assert.True(t, replied.RepliedAt.Valid)

	sent := f.mailSvc.Sent()
	if assert.Len(t, sent, 1) {
		assert.Equal(t, "parent@mail.cd", sent[0].To[0].Address)
		assert.Equal(t, "Re: your message", sent[0].Subject)
		assert.Contains(t, sent[0].TextContent, "On Monday")
	}

	// a generic update keeps the reply
	updated, err := svc.Update(ctx, &f.teacher, fb.ID, content.FeedbackEntry{Name: "Parent", Email: "parent@mail.cd", Message: "edited"})
	require.NoError(t, err)
	assert.Equal(t, replied.Reply, updated.Reply)
	assert.Equal(t, replied.RepliedBy, updated.RepliedBy)
}

var pngHeader = []byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR")

func TestGalleryService(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	fs := afero.NewMemMapFs()
	media, err := mediasvc.NewStorage(fs, f.conf)
	require.NoError(t, err)

	repo := inmemdb.NewContentRepository[content.GalleryImage, *content.GalleryImage](f.db)
	svc := content.NewGalleryService(repo, f.validate, f.authz, f.broker, media, f.logger)

	_, err = svc.Upload(ctx, &f.teacher, content.GalleryImage{Title: "Prize giving"}, "pic.png", bytes.NewReader(pngHeader))
	assert.Equal(t, content.ErrForbidden, err)

	_, err = svc.Upload(ctx, &f.admin, content.GalleryImage{Title: "Notes"}, "notes.txt", bytes.NewReader([]byte("plain text")))
	assert.True(t, isValidationErr(err), "got %v", err)

	// an invalid image is not kept
	_, err = svc.Upload(ctx, &f.admin, content.GalleryImage{Title: ""}, "pic.png", bytes.NewReader(pngHeader))
	assert.True(t, isValidationErr(err), "got %v", err)
	files, _ := afero.ReadDir(fs, "media/gallery")
	assert.Empty(t, files)

	img, err := svc.Upload(ctx, &f.admin, content.GalleryImage{Title: "Prize giving", Album: "2026"}, "pic.png", bytes.NewReader(pngHeader))
	require.NoError(t, err)
	assert.Regexp(t, `^/media/gallery/[0-9a-f-]+\.png$`, img.ImageURL)
	files, _ = afero.ReadDir(fs, "media/gallery")
	assert.Len(t, files, 1)

	require.NoError(t, svc.Delete(ctx, &f.admin, img.ID))
	files, _ = afero.ReadDir(fs, "media/gallery")
	assert.Empty(t, files)
	assert.Zero(t, f.logger.ErrorCount())
}

func nullTime(t time.Time) null.Time { return null.TimeFrom(t) }

func nullString(s string) null.String { return null.StringFrom(s) }
