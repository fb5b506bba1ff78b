package logsvc

import (
	"context"
	"fmt"

	"github.com/rollbar/rollbar-go"
	"github.com/rollbar/rollbar-go/errors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/user"
)

// RollbarLogger reports to rollbar and writes structured logs through zap.
type RollbarLogger struct {
	zl *zap.Logger
}

var _ core.Logger = (*RollbarLogger)(nil)

// NewZap builds the zap.Logger for env: JSON in PROD, colored console output elsewhere.
func NewZap(conf *core.Config, name string) *zap.Logger {
	var config zap.Config
	if conf.IsProd() {
		config = zap.NewProductionConfig()
	} else {
		config = zap.NewDevelopmentConfig()
		config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	}
	config.OutputPaths = []string{"stdout"}

	zl, err := config.Build(zap.AddCallerSkip(1))
	if err != nil {
		panic("failed to create logger: " + err.Error())
	}
	return zl.Named(name).With(zap.String("build", conf.Build), zap.String("env", conf.Env))
}

func NewRollbarLogger(zl *zap.Logger, conf *core.Config) *RollbarLogger {
	rollbar.SetToken(conf.RollbarToken)
	rollbar.SetEnvironment(conf.Env)
	rollbar.SetServerHost(conf.Server.Host)
	rollbar.SetCodeVersion(conf.Build)
	rollbar.SetStackTracer(errors.StackTracer)
	return &RollbarLogger{zl: zl}
}

func (l *RollbarLogger) Enable(enabled bool) {
	rollbar.SetEnabled(enabled)
}

func (l *RollbarLogger) Sync() error {
	rollbar.Wait()
	return l.zl.Sync()
}

// expected fmt: msg | error, map[string]interface{}, user.User
// The User goes to rollbar as the item's person, through a context: the client's global person is shared by every request.
func (l *RollbarLogger) prepare(msg string, args []interface{}) ([]interface{}, []zap.Field) {
	var usrSet bool
	rbArgs := make([]interface{}, 0, len(args)+1)
	rbArgs = append(rbArgs, msg)
	fields := make([]zap.Field, 0, len(args))
	for _, arg := range args {
		switch a := arg.(type) {
		case user.User:
			// set logged in User
			if !usrSet { // only set one User
				person := &rollbar.Person{Id: a.ID, Username: a.Name, Email: a.Email}
				rbArgs = append(rbArgs, rollbar.NewPersonContext(context.Background(), person))
				fields = append(fields, zap.String("user_id", a.ID), zap.String("user_email", a.Email))
				usrSet = true
			}
		case error:
			rbArgs = append(rbArgs, a)
			fields = append(fields, zap.String("error", fmt.Sprintf("%+v", a)))
		case map[string]interface{}:
			rbArgs = append(rbArgs, a)
			for k, v := range a {
				fields = append(fields, zap.Any(k, v))
			}
		default:
			rbArgs = append(rbArgs, a)
			fields = append(fields, zap.Any("extra", a))
		}
	}
	return rbArgs, fields
}

func (l *RollbarLogger) Debug(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Debug(rbArgs...)
	l.zl.Debug(msg, fields...)
}

func (l *RollbarLogger) Info(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Info(rbArgs...)
	l.zl.Info(msg, fields...)
}

func (l *RollbarLogger) Warn(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Warning(rbArgs...)
	l.zl.Warn(msg, fields...)
}

func (l *RollbarLogger) Error(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Error(rbArgs...)
	l.zl.Error(msg, fields...)
}

func (l *RollbarLogger) Fatal(msg string, args ...interface{}) {
	rbArgs, fields := l.prepare(msg, args)
	rollbar.Critical(rbArgs...)
	rollbar.Wait()
	l.zl.Fatal(msg, fields...)
}
