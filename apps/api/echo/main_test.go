package echoapi_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core"
	"github.com/trezcool/shule/core/content"
	"github.com/trezcool/shule/core/role"
	"github.com/trezcool/shule/core/user"
	emailsvc "github.com/trezcool/shule/services/email"
	mediasvc "github.com/trezcool/shule/services/media"
	"github.com/trezcool/shule/storage/database/inmem"
	"github.com/trezcool/shule/testutil"
)

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type env struct {
	app      *echoapi.Server
	conf     *core.Config
	usrRepo  user.Repository
	roleRepo role.Repository
	mailSvc  *emailsvc.ConsoleServiceMock
	broker   *content.Broker
	logger   *testutil.Logger
	fs       afero.Fs
}

// setup returns a Server over a fresh in-memory store.
func setup(t *testing.T) *env {
	conf := testutil.NewConfig()
	logger := new(testutil.Logger)

	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	user.InitValidators(validate, translator)
	content.InitValidators(validate, translator)
	core.ParseEmailTemplates(conf, logger)
	user.LoadCommonPasswords(logger)

	db := inmemdb.NewDB()
	e := &env{
		conf:     conf,
		usrRepo:  inmemdb.NewUserRepository(db),
		roleRepo: inmemdb.NewRoleRepository(db),
		mailSvc:  emailsvc.NewConsoleServiceMock(conf, logger),
		logger:   logger,
		fs:       afero.NewMemMapFs(),
	}

	usrSvc := user.NewService(e.usrRepo)
	roleSvc := role.NewService(e.roleRepo, usrSvc, role.NewMailNotifier(e.mailSvc), logger, conf)
	broker := content.NewBroker()
	e.broker = broker
	media, err := mediasvc.NewStorage(e.fs, conf)
	if err != nil {
		t.Fatalf("NewStorage() failed: %v", err)
	}

	e.app = echoapi.NewServer(echoapi.ServerDeps{
		Conf:       conf,
		Logger:     logger,
		Validate:   validate,
		Translator: translator,
		UserSvc:    usrSvc,
		RoleSvc:    roleSvc,
		Broker:     broker,
		Notices: content.NewService[content.Notice, *content.Notice](
			inmemdb.NewContentRepository[content.Notice, *content.Notice](db), validate, roleSvc, broker, content.AdminRules,
		),
		Events: content.NewService[content.Event, *content.Event](
			inmemdb.NewContentRepository[content.Event, *content.Event](db), validate, roleSvc, broker, content.AdminRules,
		),
		Timetables: content.NewService[content.TimetableEntry, *content.TimetableEntry](
			inmemdb.NewContentRepository[content.TimetableEntry, *content.TimetableEntry](db), validate, roleSvc, broker, content.AdminRules,
		),
		Gallery: content.NewGalleryService(
			inmemdb.NewContentRepository[content.GalleryImage, *content.GalleryImage](db), validate, roleSvc, broker, media, logger,
		),
		Feedback: content.NewFeedbackService(
			inmemdb.NewContentRepository[content.FeedbackEntry, *content.FeedbackEntry](db), validate, roleSvc, broker, e.mailSvc, logger,
		),
		Media: media,
	})
	return e
}

// newUser creates an active User holding r (none if empty).
func (e *env) newUser(t *testing.T, name, email string, r role.Role) user.User {
	usr := testutil.CreateUser(t, e.usrRepo, name, email, testutil.Password, true)
	if r != role.None {
		testutil.GrantRole(t, e.roleRepo, usr, r)
	}
	return usr
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	wantCode int
	wantData []byte
	extra    interface{}
}

func newAuthRequest(method, path, token string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	var body bytes.Buffer
	if len(data) > 0 {
		body.Write(data[0])
	}
	req := httptest.NewRequest(method, path, &body)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	return req, rec
}

func newRequest(method, path string, data ...[]byte) (*http.Request, *httptest.ResponseRecorder) {
	return newAuthRequest(method, path, "", data...)
}

func (e *env) getToken(t *testing.T, usr user.User) string {
	token, err := echoapi.GenerateToken(e.conf, echoapi.NewClaims(e.conf, usr))
	if err != nil {
		t.Fatalf("getToken() failed: %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj() failed: %v", err)
	}
	return data
}

func marchallList(t *testing.T, objs ...interface{}) []byte {
	if objs == nil {
		objs = []interface{}{}
	}
	data, err := json.Marshal(objs)
	if err != nil {
		t.Fatalf("marchallList() failed: %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	if rec.Code != tt.wantCode {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

// decode unmarshals the response body into v.
func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	if !assert.NoError(t, json.Unmarshal(rec.Body.Bytes(), v), rec.Body.String()) {
		t.FailNow()
	}
}

func (e *env) run(t *testing.T, tests []httpTest) {
	for _, tt := range tests {
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
