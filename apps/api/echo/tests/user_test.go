package tests

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maktab-uz/maktab/core/user"
	"github.com/maktab-uz/maktab/tests"
)

func Test_userApi_query(t *testing.T) {
	resetState()

	path := func(search, ordering string, isActive *bool, roles ...user.Role) string {
		v := make(url.Values)
		if search != "" {
			v.Add("search", search)
		}
		if ordering != "" {
			v.Add("ordering", ordering)
		}
		if isActive != nil {
			v.Add("is_active", strconv.FormatBool(*isActive))
		}
		for _, r := range roles {
			v.Add("role", string(r))
		}
		return "/v1/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }

	now := time.Now()
	usr1 := testutil.CreateUser(t, usrRepo, "User", "+998900000001", "", nil, true, now.Add(1*time.Hour))
	usr2 := testutil.CreateUser(t, usrRepo, "King", "+998900000002", "", nil, true, now)
	student := testutil.CreateUser(t, usrRepo, "Hero", "+998900000003", "", user.NewRoles(user.RoleStudent), true, now.Add(-1*time.Hour))
	admin := testutil.CreateUser(t, usrRepo, "Admin", "+998900000004", "", user.NewRoles(user.RoleAdmin), true, now.Add(2*time.Hour))
	staff := testutil.CreateUser(t, usrRepo, "Staff", "+998900000005", "", user.NewRoles(user.RoleStaff), true, now.Add(-2*time.Hour))
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "+998900000006", "", user.NewRoles(user.RoleTeacher), true, now.Add(3*time.Hour))
	naughty := testutil.CreateUser(t, usrRepo, "N Dog", "+998900000007", "", user.NewRoles(user.RoleStudent), false, now.Add(-3*time.Hour))

	adminToken := getToken(t, admin)
	empty := marchallList(t)

	tests := []httpTest{
		{name: "auth required", path: "/v1/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "admin required", path: "/v1/users", token: getToken(t, student), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "staff allowed", path: "/v1/users", token: getToken(t, staff), wantData: marchallList(t, teacher, admin, usr1, usr2, student, staff, naughty)},
		{name: "get all", path: "/v1/users", token: adminToken, wantData: marchallList(t, teacher, admin, usr1, usr2, student, staff, naughty)},
		// filtering
		{name: "search (unknown)", path: path("lol", "", nil), token: adminToken, wantData: empty},
		{name: "search=ER", path: path("ER", "", nil), token: adminToken, wantData: marchallList(t, teacher, usr1, student)},
		{name: "search by phone", path: path("0000002", "", nil), token: adminToken, wantData: marchallList(t, usr2)},
		{name: "role (unknown)", path: path("", "", nil, "lol"), token: adminToken, wantData: empty},
		{name: "role=student", path: path("", "", nil, user.RoleStudent), token: adminToken, wantData: marchallList(t, student, naughty)},
		{
			name: "role=teacher,admin", path: path("", "", nil, user.RoleTeacher, user.RoleAdmin),
			token: adminToken, wantData: marchallList(t, teacher, admin),
		},
		{name: "is_active=false", path: path("", "", bPtr(false)), token: adminToken, wantData: marchallList(t, naughty)},
		// ordering
		{
			name: "order by created_at", path: path("", "created_at", nil), token: adminToken,
			wantData: marchallList(t, naughty, staff, student, usr2, usr1, admin, teacher),
		},
		{
			name: "order by full_name", path: path("", "full_name", nil), token: adminToken,
			wantData: marchallList(t, admin, student, usr2, naughty, staff, teacher, usr1),
		},
		{
			name: "unknown ordering field is ignored", path: path("", "password_hash", nil), token: adminToken,
			wantData: marchallList(t, teacher, admin, usr1, usr2, student, staff, naughty),
		},
		// filtering & ordering
		{
			name: "filtering & ordering", path: path("", "-full_name", nil, user.RoleStudent, user.RoleTeacher), token: adminToken,
			wantData: marchallList(t, teacher, naughty, student),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		if tt.wantCode == 0 {
			tt.wantCode = http.StatusOK
		}

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			if tt.wantCode != http.StatusOK {
				checkCodeAndData(t, tt, rec)
				return
			}
			require.Equal(t, tt.wantCode, rec.Code)
			_, results := pageResults(t, rec)
			ok, err := jsonBytesEqual(results, tt.wantData)
			require.NoError(t, err)
			assert.True(t, ok, "results = %s; want %s", results, tt.wantData)
		})
	}
}

func Test_userApi_pagination(t *testing.T) {
	resetState()

	now := time.Now()
	admin := testutil.CreateUser(t, usrRepo, "Admin", "+998900000100", "", user.NewRoles(user.RoleAdmin), true, now)
	for i := 1; i <= 4; i++ {
		testutil.CreateUser(t, usrRepo, "User "+strconv.Itoa(i), "+99890000010"+strconv.Itoa(i), "", nil, true, now.Add(-time.Duration(i)*time.Minute))
	}
	token := getToken(t, admin)

	req, rec := newAuthRequest(http.MethodGet, "/v1/users?page=2&page_size=2", token)
	app.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	page, _ := pageResults(t, rec)
	assert.Equal(t, 5, page.Count)
	require.NotNil(t, page.Next)
	require.NotNil(t, page.Previous)
	assert.Contains(t, *page.Next, "page=3")
	assert.Contains(t, *page.Previous, "page=1")

	req, rec = newAuthRequest(http.MethodGet, "/v1/users?page=3&page_size=2", token)
	app.ServeHTTP(rec, req)
	page, _ = pageResults(t, rec)
	assert.Nil(t, page.Next)
	assert.NotNil(t, page.Previous)
}

func Test_userApi_create(t *testing.T) {
	resetState()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "+998900000001", "", user.NewRoles(user.RoleAdmin), true)
	teacher := testutil.CreateUser(t, usrRepo, "Teacher", "+998900000002", "", user.NewRoles(user.RoleTeacher), true)
	adminToken := getToken(t, admin)

	body := func(phone, name, pwd string, roles ...user.Role) []byte {
		return marchallObj(t, user.NewUser{Phone: phone, FullName: name, Password: pwd, PasswordConfirm: pwd, Roles: roles})
	}

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "admin required", token: getToken(t, teacher), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{
			name: "required fields", token: adminToken, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"phone": reqMsg, "password": reqMsg, "password_confirm": reqMsg}),
		},
		{
			name: "invalid roles", token: adminToken, body: body("+998900000010", "Bob", "Samarqand#77", "principal"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"roles": "invalid roles"}),
		},
		{
			name: "duplicate phone", token: adminToken, body: body(teacher.Phone, "Bob", "Samarqand#77"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"phone": user.ErrPhoneExists.Error()}),
		},
		{
			name: "password similar to the full name", token: adminToken, body: body("+998900000010", "Samarqand", "Samarqand1"),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"password": "password cannot be similar to the phone number or the full name"}),
		},
		{name: "created", token: adminToken, body: body("+998 90 000 00 10", " Bob ", "Samarqand#77", user.RoleTeacher, user.RoleStudent), wantCode: http.StatusCreated},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/v1/users"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				require.Equal(t, tt.wantCode, rec.Code)
				usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{Phone: "+998900000010"})
				require.NoError(t, err)
				assert.Equal(t, "Bob", usr.FullName)
				assert.True(t, usr.IsActive)
				assert.Equal(t, user.NewRoles(user.RoleStudent, user.RoleTeacher), usr.Roles)
				assert.NoError(t, usr.CheckPassword("Samarqand#77"))
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_detail(t *testing.T) {
	resetState()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "+998900000001", "", user.NewRoles(user.RoleAdmin), true)
	student := testutil.CreateUser(t, usrRepo, "Hero", "+998900000002", "", user.NewRoles(user.RoleStudent), true)
	victim := testutil.CreateUser(t, usrRepo, "Victim", "+998900000003", "", nil, true)
	adminToken := getToken(t, admin)

	updated := student
	updated.FullName = "Super Hero"
	updated.Roles = user.NewRoles(user.RoleStudent, user.RoleTeacher)

	tests := []httpTest{
		{name: "auth required", method: http.MethodGet, path: "/v1/users/" + student.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "admin required", method: http.MethodGet, path: "/v1/users/" + student.ID, token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "not found", method: http.MethodGet, path: "/v1/users/lol", token: adminToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{name: "retrieve", method: http.MethodGet, path: "/v1/users/" + student.ID, token: adminToken, wantCode: http.StatusOK, wantData: marchallObj(t, student)},
		{
			name: "update: duplicate phone", method: http.MethodPut, path: "/v1/users/" + student.ID, token: adminToken,
			body:     marchallObj(t, user.UpdateUser{Phone: victim.Phone}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"phone": user.ErrPhoneExists.Error()}),
		},
		{
			name: "update: cannot deactivate self", method: http.MethodPut, path: "/v1/users/" + admin.ID, token: adminToken,
			body: marchallObj(t, map[string]bool{"is_active": false}), wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{
			name: "update", method: http.MethodPut, path: "/v1/users/" + student.ID, token: adminToken,
			body:     marchallObj(t, user.UpdateUser{FullName: "Super Hero", Roles: user.Roles{user.RoleTeacher, user.RoleStudent}}),
			wantCode: http.StatusOK,
		},
		{name: "delete: cannot delete self", method: http.MethodDelete, path: "/v1/users/" + admin.ID, token: adminToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden)},
		{name: "delete", method: http.MethodDelete, path: "/v1/users/" + victim.ID, token: adminToken, wantCode: http.StatusNoContent},
		{name: "deleted", method: http.MethodGet, path: "/v1/users/" + victim.ID, token: adminToken, wantCode: http.StatusNotFound, wantData: marchallObj(t, errNotFound)},
		{
			name: "delete multiple: cannot delete self", method: http.MethodDelete, path: "/v1/users?id=" + student.ID + "&id=" + admin.ID,
			token: adminToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, errForbidden),
		},
		{name: "delete multiple", method: http.MethodDelete, path: "/v1/users?id=" + student.ID, token: adminToken, wantCode: http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.name == "update" {
				require.Equal(t, tt.wantCode, rec.Code)
				usr, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
				require.NoError(t, err)
				assert.Equal(t, updated.FullName, usr.FullName)
				assert.Equal(t, updated.Roles, usr.Roles)
				assert.Equal(t, student.Phone, usr.Phone)
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	_, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
	assert.Equal(t, user.ErrNotFound, err)
}

func Test_userApi_roles(t *testing.T) {
	resetState()

	admin := testutil.CreateUser(t, usrRepo, "Admin", "+998900000001", "", user.NewRoles(user.RoleAdmin), true)

	req, rec := newAuthRequest(http.MethodGet, "/v1/users/roles", getToken(t, admin))
	app.ServeHTTP(rec, req)
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, user.RoleChoices)}, rec)
}
