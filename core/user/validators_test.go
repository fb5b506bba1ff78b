package user

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/shule/core"
)

type nopLogger struct{}

func (nopLogger) Debug(string, ...interface{}) {}
func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Warn(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
func (nopLogger) Fatal(string, ...interface{}) {}

func TestPasswordValidation(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)
	LoadCommonPasswords(nopLogger{})
	require.NotEmpty(t, commonPasswords)

	tests := []struct {
		name     string
		usrName  string
		email    string
		pwd      string
		confirm  string
		wantFld  string
		wantText string
	}{
		{name: "valid", usrName: "Awe Some", email: "awe@test.cd", pwd: "Xk9#pLm2qR"},
		{name: "required", usrName: "Awe Some", email: "awe@test.cd", wantFld: "password", wantText: "this field is required"},
		{name: "too short", usrName: "Awe Some", email: "awe@test.cd", pwd: "Ab1!", wantFld: "password", wantText: pwdMinLenText},
		{name: "whitespace", usrName: "Awe Some", email: "awe@test.cd", pwd: "Abc d1!xyz", wantFld: "password", wantText: pwdNoSpaceText},
		{name: "all numeric", usrName: "Awe Some", email: "awe@test.cd", pwd: "1234567890", wantFld: "password", wantText: pwdNotAllNumText},
		{name: "no special", usrName: "Awe Some", email: "awe@test.cd", pwd: "Abcdefgh1", wantFld: "password", wantText: pwdComplexityText},
		{name: "no upper", usrName: "Awe Some", email: "awe@test.cd", pwd: "abcdefgh1!", wantFld: "password", wantText: pwdComplexityText},
		{name: "similar to email", usrName: "Jo", email: "awesome@test.cd", pwd: "Awesome1!", wantFld: "password", wantText: pwdAttrSimText},
		{name: "common", usrName: "Awe Some", email: "awe@test.cd", pwd: "P@ssw0rd1", wantFld: "password", wantText: pwdNoCommonText},
		{
			name: "confirm mismatch", usrName: "Awe Some", email: "awe@test.cd", pwd: "Xk9#pLm2qR", confirm: "Xk9#pLm2qr",
			wantFld: "password_confirm", wantText: "password_confirm must be equal to Password",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			confirm := tt.confirm
			if confirm == "" {
				confirm = tt.pwd
			}
			nu := NewUser{Name: tt.usrName, Email: tt.email, Password: tt.pwd, PasswordConfirm: confirm}
			err := validate.Struct(nu)
			if tt.wantFld == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			vErrs, ok := err.(validator.ValidationErrors)
			require.True(t, ok)

			found := false
			for _, fe := range vErrs {
				if fe.Field() == tt.wantFld {
					found = true
					assert.Equal(t, tt.wantText, fe.Translate(translator))
				}
			}
			assert.True(t, found, "no error on %s: %v", tt.wantFld, vErrs)
		})
	}
}

func TestPasswordValidation_update(t *testing.T) {
	validate := validator.New()
	translator := core.NewTranslator()
	core.InitValidators(validate, translator)
	InitValidators(validate, translator)

	// no password change
	assert.NoError(t, validate.Struct(UpdateUser{Name: "Awe", Email: "awe@test.cd"}))

	err := validate.Struct(UpdateUser{Name: "Awe", Email: "awe@test.cd", Password: "abc", PasswordConfirm: "abc"})
	require.Error(t, err)
	vErrs, ok := err.(validator.ValidationErrors)
	require.True(t, ok)
	assert.Equal(t, "password", vErrs[0].Field())
	assert.Equal(t, pwdMinLenText, vErrs[0].Translate(translator))
}
