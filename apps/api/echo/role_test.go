package echoapi_test

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/trezcool/shule/apps/api/echo"
	"github.com/trezcool/shule/core/role"
	"github.com/trezcool/shule/testutil"
)

func recipientsOf(e *env) []string {
	var rcpts []string
	for _, msg := range e.mailSvc.Sent() {
		for _, to := range msg.To {
			rcpts = append(rcpts, to.Address)
		}
	}
	return rcpts
}

func Test_roleApi_studentFlow(t *testing.T) {
	e := setup(t)
	e.newUser(t, "Owner", testutil.OwnerEmail, role.None)
	admin := e.newUser(t, "Admin", "admin@test.cd", role.Admin)
	teacher := e.newUser(t, "Teacher", "teacher@test.cd", role.Teacher)
	kid := e.newUser(t, "Kid", "kid@test.cd", role.None)
	other := e.newUser(t, "Other", "other@test.cd", role.Student)
	kidToken := e.getToken(t, kid)

	var sub role.Submission
	t.Run("choose student", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/roles/choose", kidToken, marchallObj(t, echoapi.RoleRequest{Role: role.Student}))
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

		decode(t, rec, &sub)
		assert.Equal(t, role.StateRequestSubmitted, sub.State)
		require.NotNil(t, sub.Request)
		assert.Equal(t, role.StatusPending, sub.Request.Status)
		require.NotNil(t, sub.Grant)
		assert.Equal(t, role.Visitor, sub.Grant.Role)
		assert.Equal(t, role.VisitorDashboard, sub.Destination)

		// owner first, then admins, then teachers
		assert.Equal(t, []string{testutil.OwnerEmail, admin.Email, teacher.Email}, recipientsOf(e))
	})
	require.NotNil(t, sub.Request)
	reqPath := "/v1/role-requests/" + sub.Request.ID

	tests := []httpTest{
		{
			name: "pending", method: http.MethodGet, path: "/v1/roles/me", token: kidToken,
			extra: role.StateRequestSubmitted,
		},
		{
			name: "duplicate", method: http.MethodPost, path: "/v1/roles/request", token: kidToken,
			body: marchallObj(t, echoapi.RoleRequest{Role: role.Student}), wantCode: http.StatusConflict,
			wantData: marchallObj(t, httpErr{Error: role.ErrDuplicateRequest.Error()}),
		},
		{
			name: "students do not review", method: http.MethodGet, path: "/v1/role-requests", token: e.getToken(t, other),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "not by themselves", method: http.MethodPost, path: reqPath + "/approve", token: kidToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "unknown request", method: http.MethodPost, path: "/v1/role-requests/lol/approve", token: e.getToken(t, teacher),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "role request not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantCode == 0 {
				tt.wantCode = http.StatusOK
			}
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if want, ok := tt.extra.(role.State); ok {
				var status role.AccountStatus
				decode(t, rec, &status)
				assert.Equal(t, want, status.State)
			}
		})
	}

	t.Run("listed for the teacher", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/role-requests", e.getToken(t, teacher))
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var reqs []role.Request
		decode(t, rec, &reqs)
		require.Len(t, reqs, 1)
		assert.Equal(t, sub.Request.ID, reqs[0].ID)
	})

	t.Run("approved", func(t *testing.T) {
		e.mailSvc.Reset()
		req, rec := newAuthRequest(http.MethodPost, reqPath+"/approve", e.getToken(t, teacher))
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var got role.Request
		decode(t, rec, &got)
		assert.Equal(t, role.StatusApproved, got.Status)
		assert.Equal(t, teacher.ID, got.ReviewerID.String)
		assert.Equal(t, []string{kid.Email}, recipientsOf(e))
	})

	t.Run("reviewed once", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, reqPath+"/reject", e.getToken(t, admin))
		e.app.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusConflict, rec.Code)
		ok, err := jsonBytesEqual(rec.Body.Bytes(), marchallObj(t, httpErr{Error: role.ErrStaleRequest.Error()}))
		assert.NoError(t, err)
		assert.True(t, ok, rec.Body.String())
	})

	t.Run("redirected to the student dashboard", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/roles/me", kidToken)
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var status role.AccountStatus
		decode(t, rec, &status)
		assert.Equal(t, role.StateApproved, status.State)
		assert.Equal(t, role.Student, status.Role)
		assert.Equal(t, role.StudentDashboard, status.Destination)
	})

	t.Run("mine", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/role-requests/mine", kidToken)
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var reqs []role.Request
		decode(t, rec, &reqs)
		require.Len(t, reqs, 1)
		assert.Equal(t, role.StatusApproved, reqs[0].Status)
	})
}

func Test_roleApi_choose(t *testing.T) {
	e := setup(t)
	visitor := e.newUser(t, "Visitor", "visitor@test.cd", role.None)
	student := e.newUser(t, "Hero", "hero@test.cd", role.Student)

	tests := []httpTest{
		{name: "auth required", path: "/v1/roles/choose", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "role required", path: "/v1/roles/choose", token: e.getToken(t, visitor), body: marchallObj(t, echoapi.RoleRequest{}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"role": "please choose a role"}),
		},
		{
			name: "admin is not a choice", path: "/v1/roles/choose", token: e.getToken(t, visitor), body: marchallObj(t, echoapi.RoleRequest{Role: role.Admin}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"role": `"admin" is not a role you can choose`}),
		},
		{
			name: "visitor granted", path: "/v1/roles/choose", token: e.getToken(t, visitor), body: marchallObj(t, echoapi.RoleRequest{Role: role.Visitor}),
		},
		{
			name: "visitor chosen once", path: "/v1/roles/choose", token: e.getToken(t, visitor), body: marchallObj(t, echoapi.RoleRequest{Role: role.Visitor}),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: role.ErrRoleAlreadyChosen.Error()}),
		},
		{
			name: "role holders do not choose", path: "/v1/roles/choose", token: e.getToken(t, student), body: marchallObj(t, echoapi.RoleRequest{Role: role.Teacher}),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: role.ErrRoleAlreadyChosen.Error()}),
		},
		{
			name: "already granted", path: "/v1/roles/request", token: e.getToken(t, student), body: marchallObj(t, echoapi.RoleRequest{Role: role.Student}),
			wantCode: http.StatusConflict, wantData: marchallObj(t, httpErr{Error: role.ErrAlreadyGranted.Error()}),
		},
	}
	for i := range tests {
		tests[i].method = http.MethodPost
	}
	e.run(t, tests)

	t.Run("visitor lands on their dashboard", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/roles/me", e.getToken(t, visitor))
		e.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var status role.AccountStatus
		decode(t, rec, &status)
		assert.Equal(t, role.StateVisitorActive, status.State)
		assert.Equal(t, role.VisitorDashboard, status.Destination)
	})
}

func Test_roleApi_adminRequest(t *testing.T) {
	e := setup(t)
	owner := e.newUser(t, "Owner", testutil.OwnerEmail, role.None)
	admin := e.newUser(t, "Admin", "admin@test.cd", role.Admin)
	teacher := e.newUser(t, "Teacher", "teacher@test.cd", role.Teacher)

	req, rec := newAuthRequest(http.MethodPost, "/v1/roles/request", e.getToken(t, teacher), marchallObj(t, echoapi.RoleRequest{Role: role.Admin}))
	e.app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var sub role.Submission
	decode(t, rec, &sub)
	require.NotNil(t, sub.Request)
	assert.Nil(t, sub.Grant)
	assert.Equal(t, role.TeacherDashboard, sub.Destination)
	assert.Equal(t, []string{testutil.OwnerEmail}, recipientsOf(e))

	reqPath := "/v1/role-requests/" + sub.Request.ID
	tests := []httpTest{
		{name: "admins do not list admin requests", method: http.MethodGet, path: "/v1/role-requests", token: e.getToken(t, admin), wantData: marchallList(t)},
		{
			name: "admins do not review admin requests", method: http.MethodPost, path: reqPath + "/approve", token: e.getToken(t, admin),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "owner rejects", method: http.MethodPost, path: reqPath + "/reject", token: e.getToken(t, owner)},
		{name: "rejected", method: http.MethodGet, path: "/v1/roles/me", token: e.getToken(t, teacher), extra: role.StateRejected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.wantCode == 0 {
				tt.wantCode = http.StatusOK
			}
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			e.app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if want, ok := tt.extra.(role.State); ok {
				var status role.AccountStatus
				decode(t, rec, &status)
				assert.Equal(t, want, status.State)
				assert.Equal(t, role.Teacher, status.Role)
				assert.Equal(t, role.TeacherDashboard, status.Destination)
			}
		})
	}
}
