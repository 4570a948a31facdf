package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/maktab-uz/maktab/core/user"
	"github.com/maktab-uz/maktab/tests"
)

// gated endpoints answer 401 to anonymous callers, 403 to authenticated callers lacking the role,
// and let staff through every gate.
func Test_gates(t *testing.T) {
	resetState()

	staff := testutil.CreateUser(t, usrRepo, "Staff", "+998900000001", "", user.NewRoles(user.RoleStaff), true)
	nobody := testutil.CreateUser(t, usrRepo, "Nobody", "+998900000002", "", nil, true)
	student := testutil.CreateProfile(t, usrRepo, user.KindStudent, "Hero", "+998900000003", "")
	teacher := testutil.CreateProfile(t, usrRepo, user.KindTeacher, "Master", "+998900000004", "")
	par := testutil.CreateParent(t, parRepo, "Mother", "+998900000005", time.Now(), student.ID)

	endpoints := []struct {
		method string
		path   string
		// roles admitted besides admin & staff
		admits []*user.User
	}{
		{method: http.MethodGet, path: "/v1/auth/me", admits: []*user.User{&nobody, &student.User, &teacher.User}},
		{method: http.MethodGet, path: "/v1/users"},
		{method: http.MethodGet, path: "/v1/users/roles"},
		{method: http.MethodGet, path: "/v1/users/" + nobody.ID},
		{method: http.MethodGet, path: "/v1/students"},
		{method: http.MethodGet, path: "/v1/teachers"},
		{method: http.MethodGet, path: "/v1/students/" + student.ID, admits: []*user.User{&student.User}},
		{method: http.MethodGet, path: "/v1/teachers/" + teacher.ID, admits: []*user.User{&teacher.User}},
		{method: http.MethodGet, path: "/v1/parents"},
		{method: http.MethodGet, path: "/v1/parents/" + par.ID},
	}

	callers := []struct {
		name string
		usr  *user.User
	}{
		{"nobody", &nobody},
		{"student", &student.User},
		{"teacher", &teacher.User},
	}

	for _, e := range endpoints {
		t.Run(e.method+" "+e.path, func(t *testing.T) {
			t.Run("anonymous", func(t *testing.T) {
				req, rec := newRequest(e.method, e.path)
				app.ServeHTTP(rec, req)
				checkCodeAndData(t, httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)}, rec)
			})

			t.Run("staff", func(t *testing.T) {
				req, rec := newAuthRequest(e.method, e.path, getToken(t, staff))
				app.ServeHTTP(rec, req)
				checkCodeAndData(t, httpTest{wantCode: http.StatusOK}, rec)
			})

			for _, c := range callers {
				wantCode := http.StatusForbidden
				for _, u := range e.admits {
					if u == c.usr {
						wantCode = http.StatusOK
					}
				}
				t.Run(c.name, func(t *testing.T) {
					req, rec := newAuthRequest(e.method, e.path, getToken(t, *c.usr))
					app.ServeHTTP(rec, req)
					checkCodeAndData(t, httpTest{wantCode: wantCode}, rec)
				})
			}
		})
	}

	// role-scoped own profiles
	own := []struct {
		path     string
		usr      user.User
		wantCode int
	}{
		{"/v1/students/me", student.User, http.StatusOK},
		{"/v1/students/me", teacher.User, http.StatusForbidden},
		{"/v1/students/me", nobody, http.StatusForbidden},
		{"/v1/teachers/me", teacher.User, http.StatusOK},
		{"/v1/teachers/me", student.User, http.StatusForbidden},
		{"/v1/teachers/me", nobody, http.StatusForbidden},
	}
	for _, o := range own {
		t.Run(o.path+" as "+o.usr.FullName, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, o.path, getToken(t, o.usr))
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, httpTest{wantCode: o.wantCode}, rec)
		})
	}
}
