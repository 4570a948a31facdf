package tests

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/maktab-uz/maktab/apps/api/echo"
	"github.com/maktab-uz/maktab/core/user"
	"github.com/maktab-uz/maktab/tests"
)

func Test_profileApi_register(t *testing.T) {
	resetState()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "+998900000001", "", user.NewRoles(user.RoleAdmin), true)
	student := testutil.CreateProfile(t, usrRepo, user.KindStudent, "Hero", "+998900000002", "")
	adminToken := getToken(t, admin)

	body := func(phone, name, pwd, desc string, roles ...user.Role) []byte {
		return marchallObj(t, user.NewProfile{
			User:        user.NewUser{Phone: phone, FullName: name, Password: pwd, PasswordConfirm: pwd, Roles: roles},
			Description: desc,
		})
	}

	tests := []httpTest{
		{name: "auth required", path: "/v1/students", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/students", token: getToken(t, student.User),
			body:     body("+998900000010", "Bob", "Samarqand#77", ""),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "required fields", path: "/v1/teachers", token: adminToken, body: []byte(`{"user": {}}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"phone": reqMsg, "password": reqMsg, "password_confirm": reqMsg}),
		},
		{
			name: "duplicate phone", path: "/v1/students", token: adminToken, body: body(student.User.Phone, "Bob", "Samarqand#77", ""),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"phone": user.ErrPhoneExists.Error()}),
		},
		{
			name: "student", path: "/v1/students", token: adminToken,
			body: body("+998900000010", "Bob", "Samarqand#77", " Class 7B "), wantCode: http.StatusCreated,
			extra: user.NewRoles(user.RoleStudent),
		},
		{
			name: "teacher keeps requested roles", path: "/v1/teachers", token: adminToken,
			body: body("+998900000011", "Alice", "Samarqand#77", "Physics", user.RoleStaff), wantCode: http.StatusCreated,
			extra: user.NewRoles(user.RoleStaff, user.RoleTeacher),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			if tt.wantCode != http.StatusCreated {
				checkCodeAndData(t, tt, rec)
				return
			}

			require.Equal(t, tt.wantCode, rec.Code)
			var prof user.Profile
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prof))
			assert.NotEmpty(t, prof.ID)
			assert.NotEmpty(t, prof.User.ID)
			assert.Equal(t, tt.extra, prof.User.Roles)
			assert.True(t, prof.User.IsActive)
			assert.True(t, prof.Description.Valid)

			usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: prof.User.ID})
			require.NoError(t, err)
			assert.NoError(t, usr.CheckPassword("Samarqand#77"))
		})
	}

	t.Run("description is trimmed", func(t *testing.T) {
		usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{Phone: "+998900000010"})
		require.NoError(t, err)
		prof, err := usrRepo.GetProfile(context.Background(), user.ProfileFilter{Kind: user.KindStudent, UserID: usr.ID})
		require.NoError(t, err)
		assert.Equal(t, "Class 7B", prof.Description.String)
	})
}

func Test_profileApi_query(t *testing.T) {
	resetState()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "+998900000001", "", user.NewRoles(user.RoleAdmin), true)
	student1 := testutil.CreateProfile(t, usrRepo, user.KindStudent, "Hero", "+998900000002", "")
	student2 := testutil.CreateProfile(t, usrRepo, user.KindStudent, "Villain", "+998900000003", "")
	teacher := testutil.CreateProfile(t, usrRepo, user.KindTeacher, "Master", "+998900000004", "Maths")

	ids := func(rec []byte) []string {
		var profs []user.Profile
		require.NoError(t, json.Unmarshal(rec, &profs))
		out := make([]string, 0, len(profs))
		for _, p := range profs {
			out = append(out, p.ID)
		}
		return out
	}

	t.Run("students", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/students", getToken(t, admin))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		page, results := pageResults(t, rec)
		assert.Equal(t, 2, page.Count)
		assert.ElementsMatch(t, []string{student1.ID, student2.ID}, ids(results))
	})

	t.Run("teachers", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/teachers", getToken(t, admin))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)
		page, results := pageResults(t, rec)
		assert.Equal(t, 1, page.Count)
		assert.Equal(t, []string{teacher.ID}, ids(results))
	})

	t.Run("teachers cannot list teachers", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodGet, "/v1/teachers", getToken(t, teacher.User))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
	})
}

func Test_profileApi_retrieve(t *testing.T) {
	resetState()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "+998900000001", "", user.NewRoles(user.RoleAdmin), true)
	staff := testutil.CreateUser(t, usrRepo, "Staff", "+998900000002", "", user.NewRoles(user.RoleStaff), true)
	owner := testutil.CreateProfile(t, usrRepo, user.KindStudent, "Hero", "+998900000003", "7B")
	other := testutil.CreateProfile(t, usrRepo, user.KindStudent, "Villain", "+998900000004", "")
	teacher := testutil.CreateProfile(t, usrRepo, user.KindTeacher, "Master", "+998900000005", "")

	tests := []httpTest{
		{name: "auth required", path: "/v1/students/" + owner.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "unknown profile", path: "/v1/students/lol", token: getToken(t, admin), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "wrong kind", path: "/v1/teachers/" + owner.ID, token: getToken(t, admin), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "owner", path: "/v1/students/" + owner.ID, token: getToken(t, owner.User), wantCode: http.StatusOK, wantData: marchallObj(t, owner)},
		{name: "another student", path: "/v1/students/" + owner.ID, token: getToken(t, other.User), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "teacher", path: "/v1/students/" + owner.ID, token: getToken(t, teacher.User), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "staff", path: "/v1/students/" + owner.ID, token: getToken(t, staff), wantCode: http.StatusOK, wantData: marchallObj(t, owner)},
		{name: "student: unknown profile", path: "/v1/students/" + uuid.New().String(), token: getToken(t, other.User), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "student: malformed id", path: "/v1/students/lol", token: getToken(t, other.User), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "student: wrong kind", path: "/v1/teachers/" + owner.ID, token: getToken(t, owner.User), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "admin", path: "/v1/teachers/" + teacher.ID, token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallObj(t, teacher)},
		// own profile
		{name: "me: student", path: "/v1/students/me", token: getToken(t, owner.User), wantCode: http.StatusOK, wantData: marchallObj(t, owner)},
		{name: "me: teacher", path: "/v1/teachers/me", token: getToken(t, teacher.User), wantCode: http.StatusOK, wantData: marchallObj(t, teacher)},
		{name: "me: teacher is not a student", path: "/v1/students/me", token: getToken(t, teacher.User), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "me: student is not a teacher", path: "/v1/teachers/me", token: getToken(t, owner.User), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "me: staff without profile", path: "/v1/students/me", token: getToken(t, staff), wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_profileApi_update(t *testing.T) {
	resetState()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "+998900000001", "", user.NewRoles(user.RoleAdmin), true)
	owner := testutil.CreateProfile(t, usrRepo, user.KindStudent, "Hero", "+998900000002", "7B")

	desc := func(d string) []byte { return marchallObj(t, user.UpdateProfile{Description: &d}) }

	t.Run("owner cannot update", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/students/"+owner.ID, getToken(t, owner.User), desc("8A"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)
	})

	t.Run("unknown profile", func(t *testing.T) {
		path := "/v1/students/" + uuid.New().String()
		req, rec := newAuthRequest(http.MethodPut, path, getToken(t, owner.User), desc("8A"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)}, rec)

		req, rec = newAuthRequest(http.MethodPut, path, getToken(t, admin), desc("8A"))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}, rec)
	})

	t.Run("admin", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/students/"+owner.ID, getToken(t, admin), desc(" 8A "))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var prof user.Profile
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &prof))
		assert.Equal(t, owner.ID, prof.ID)
		assert.Equal(t, "8A", prof.Description.String)
		assert.Equal(t, owner.User.ID, prof.User.ID)
	})

	t.Run("blank description clears it", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPut, "/v1/students/"+owner.ID, getToken(t, admin), desc(""))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		prof, err := usrRepo.GetProfile(context.Background(), user.ProfileFilter{Kind: user.KindStudent, ID: owner.ID})
		require.NoError(t, err)
		assert.False(t, prof.Description.Valid)
	})

	t.Run("deleting the user deletes the profile", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodDelete, "/v1/users/"+owner.User.ID, getToken(t, admin))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusNoContent, rec.Code)

		req, rec = newAuthRequest(http.MethodGet, "/v1/students/"+owner.ID, getToken(t, admin))
		app.ServeHTTP(rec, req)
		checkCodeAndData(t, httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)}, rec)
	})
}

func Test_profileApi_queryByIDs(t *testing.T) {
	resetState()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "+998900000001", "", user.NewRoles(user.RoleAdmin), true)
	student1 := testutil.CreateProfile(t, usrRepo, user.KindStudent, "Hero", "+998900000002", "")
	student2 := testutil.CreateProfile(t, usrRepo, user.KindStudent, "Villain", "+998900000003", "")
	teacher := testutil.CreateProfile(t, usrRepo, user.KindTeacher, "Master", "+998900000004", "Maths")
	adminToken := getToken(t, admin)

	body := func(ids ...string) []byte { return marchallObj(t, echoapi.IDsRequest{IDs: ids}) }
	errEmpty := marchallObj(t, httpErr{Error: "ids must be a non-empty list"})

	tests := []httpTest{
		{name: "auth required", path: "/v1/students/by-ids", body: body(student1.ID), wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin required", path: "/v1/students/by-ids", token: getToken(t, student1.User), body: body(student1.ID),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "missing ids", path: "/v1/students/by-ids", token: adminToken, body: []byte(`{}`), wantCode: http.StatusBadRequest, wantData: errEmpty},
		{name: "empty ids", path: "/v1/teachers/by-ids", token: adminToken, body: body(), wantCode: http.StatusBadRequest, wantData: errEmpty},
		{
			name: "teachers", path: "/v1/teachers/by-ids", token: adminToken, body: body(teacher.ID, student1.ID, "lol"),
			wantCode: http.StatusOK, wantData: marchallObj(t, map[string][]user.Profile{"teachers": {teacher}}),
		},
		{
			name: "unknown ids only", path: "/v1/students/by-ids", token: adminToken, body: body(uuid.New().String()),
			wantCode: http.StatusOK, wantData: []byte(`{"students": []}`),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("students", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/students/by-ids", adminToken, body(student1.ID, teacher.ID, student2.ID, student1.ID))
		app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp struct {
			Students []user.Profile `json:"students"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Len(t, resp.Students, 2)
		assert.ElementsMatch(t, []string{student1.ID, student2.ID}, []string{resp.Students[0].ID, resp.Students[1].ID})
		for _, prof := range resp.Students {
			assert.NotEmpty(t, prof.User.FullName)
		}
	})
}
