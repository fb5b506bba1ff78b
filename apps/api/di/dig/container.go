package dig_container

import (
	"context"
	"fmt"
	"log"

	"github.com/go-playground/validator/v10"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"github.com/spf13/afero"
	"go.uber.org/dig"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/content"
	"github.com/trezcool/shule/core/role"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	logsvc "github.com/trezcool/shule/services/logger"
	mediasvc "github.com/trezcool/shule/services/media"
	"github.com/trezcool/shule/storage/database"
	sqlxrepos "github.com/trezcool/shule/storage/database/sqlx"
)

type DBLoggerParam struct {
	dig.In
	Logger core.Logger `name:"dbLogger"`
}

func newLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewZap(conf, "api"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDBLogger(conf *core.Config) core.Logger {
	logger := logsvc.NewRollbarLogger(logsvc.NewZap(conf, "db"), conf)
	logger.Enable(!conf.Debug)
	return logger
}

func newDB(conf *core.Config, loggerParam DBLoggerParam) *sqlx.DB {
	setUp := func() (*sqlx.DB, error) {
		ctx := context.Background()
		if err := database.CreateIfNotExist(ctx, conf); err != nil {
			return nil, err
		}

		db, err := database.Open(ctx, conf)
		if err != nil {
			return nil, err
		}

		if err = database.Migrate(ctx, db); err != nil {
			return nil, err
		}
		return db, nil
	}

	db, err := setUp()
	if err != nil {
		loggerParam.Logger.Fatal(fmt.Sprintf("setting up database: %v", err), err)
	}
	return db
}

func newEmailService(conf *core.Config, logger core.Logger) core.EmailService {
	if conf.Debug {
		return emailsvc.NewConsoleService(conf, logger)
	}
	return emailsvc.NewSendgridService(conf, logger)
}

func newRoleService(
	repo role.Repository,
	usrSvc *user.Service,
	notifier role.Notifier,
	logger core.Logger,
	conf *core.Config,
) *role.Service {
	return role.NewService(repo, usrSvc, notifier, logger, conf)
}

func newMediaStorage(conf *core.Config) (*mediasvc.Storage, error) {
	return mediasvc.NewStorage(afero.NewOsFs(), conf)
}

// content services

func newNoticeService(db *sqlx.DB, validate *validator.Validate, roleSvc *role.Service, broker *content.Broker) *content.Service[content.Notice, *content.Notice] {
	return content.NewService[content.Notice, *content.Notice](
		sqlxrepos.NewContentRepository[content.Notice, *content.Notice](db), validate, roleSvc, broker, content.AdminRules,
	)
}

func newEventService(db *sqlx.DB, validate *validator.Validate, roleSvc *role.Service, broker *content.Broker) *content.Service[content.Event, *content.Event] {
	return content.NewService[content.Event, *content.Event](
		sqlxrepos.NewContentRepository[content.Event, *content.Event](db), validate, roleSvc, broker, content.AdminRules,
	)
}

func newTimetableService(db *sqlx.DB, validate *validator.Validate, roleSvc *role.Service, broker *content.Broker) *content.Service[content.TimetableEntry, *content.TimetableEntry] {
	return content.NewService[content.TimetableEntry, *content.TimetableEntry](
		sqlxrepos.NewContentRepository[content.TimetableEntry, *content.TimetableEntry](db), validate, roleSvc, broker, content.AdminRules,
	)
}

func newGalleryService(
	db *sqlx.DB,
	validate *validator.Validate,
	roleSvc *role.Service,
	broker *content.Broker,
	media *mediasvc.Storage,
	logger core.Logger,
) *content.GalleryService {
	return content.NewGalleryService(
		sqlxrepos.NewContentRepository[content.GalleryImage, *content.GalleryImage](db), validate, roleSvc, broker, media, logger,
	)
}

func newFeedbackService(
	db *sqlx.DB,
	validate *validator.Validate,
	roleSvc *role.Service,
	broker *content.Broker,
	mailSvc core.EmailService,
	logger core.Logger,
) *content.FeedbackService {
	return content.NewFeedbackService(
		sqlxrepos.NewContentRepository[content.FeedbackEntry, *content.FeedbackEntry](db), validate, roleSvc, broker, mailSvc, logger,
	)
}

// NewBase returns a dig.Container holding what every app needs: config, loggers & core services.
// The *sqlx.DB is left to the app, which decides how the database is set up.
func NewBase(opts ...dig.Option) *dig.Container {
	c := dig.New(opts...)

	must(c.Provide(core.NewConfig))
	must(c.Provide(newLogger))
	must(c.Provide(newDBLogger, dig.Name("dbLogger")))
	must(c.Provide(newEmailService))
	must(c.Provide(sqlxrepos.NewUserRepository))
	must(c.Provide(sqlxrepos.NewRoleRepository))
	must(c.Provide(validator.New))
	must(c.Provide(core.NewTranslator))
	must(c.Provide(user.NewService))
	must(c.Provide(role.NewMailNotifier, dig.As(new(role.Notifier))))
	must(c.Provide(newRoleService))

	return c
}

// New returns a new dependency injection dig.Container for the API.
func New(opts ...dig.Option) *dig.Container {
	c := NewBase(opts...)

	must(c.Provide(newDB))
	must(c.Provide(content.NewBroker))
	must(c.Provide(newMediaStorage))
	must(c.Provide(newNoticeService))
	must(c.Provide(newEventService))
	must(c.Provide(newTimetableService))
	must(c.Provide(newGalleryService))
	must(c.Provide(newFeedbackService))
	must(c.Provide(echoapi.NewServer))

	return c
}

// must exits program if err happened
func must(err error) {
	if err != nil {
		log.Fatal(errors.Wrap(err, "failed to provide dependency").Error())
	}
}
