package echoapi

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/mahudhurio/core"
	"github.com/trezcool/mahudhurio/core/user"
	testutil "github.com/trezcool/mahudhurio/tests"
)

func TestMain(m *testing.M) {
	// production-shaped error responses
	core.Conf.Debug = false
	core.Conf.TestMode = true
	os.Exit(m.Run())
}

func Test_userApi_register(t *testing.T) {
	e := setup(t)

	t.Run("field validation", func(t *testing.T) {
		tests := []httpTest{
			{
				name: "empty payload", body: []byte(`{}`), wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{
					"name":     "this field is required",
					"email":    "this field is required",
					"password": "this field is required",
					"role":     "this field is required",
				}),
			},
			{
				name: "student fields required", wantCode: http.StatusBadRequest,
				body: marchallObj(t, user.NewUser{Name: "S", Email: "s@test.cd", Password: "Str0ng&Secret", Role: user.RoleStudent}),
				wantData: marchallObj(t, map[string]string{
					"roll_number": "this field is required for students",
					"year":        "this field is required for students",
					"semester":    "this field is required for students",
				}),
			},
		}
		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req, rec := newRequest(http.MethodPost, "/v1/users/register", tt.body)
				e.server.ServeHTTP(rec, req)
				checkCodeAndData(t, tt, rec)
			})
		}
	})

	t.Run("weak password", func(t *testing.T) {
		body := marchallObj(t, user.NewUser{Name: "T", Email: "t@test.cd", Password: "1234", Role: user.RoleTeacher})
		req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
		e.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("code = %d; want %d", rec.Code, http.StatusBadRequest)
		}
	})

	t.Run("teacher created", func(t *testing.T) {
		body := marchallObj(t, user.NewUser{Name: "Teacher", Email: "Teacher@Test.CD", Password: "Str0ng&Secret", Role: user.RoleTeacher})
		req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
		e.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusCreated {
			t.Fatalf("code = %d; want %d: %s", rec.Code, http.StatusCreated, rec.Body.String())
		}
		var usr user.User
		if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if usr.Email != "teacher@test.cd" { // stored lowercased
			t.Errorf("email = %s; want teacher@test.cd", usr.Email)
		}
		if !usr.IsActive || usr.ID == "" {
			t.Errorf("user = %+v; want active with an ID", usr)
		}
	})

	t.Run("duplicate email", func(t *testing.T) {
		body := marchallObj(t, user.NewUser{Name: "Copycat", Email: "teacher@test.cd", Password: "Str0ng&Secret", Role: user.RoleTeacher})
		req, rec := newRequest(http.MethodPost, "/v1/users/register", body)
		e.server.ServeHTTP(rec, req)
		tt := httpTest{
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": user.ErrEmailExists.Error()}),
		}
		checkCodeAndData(t, tt, rec)
	})
}

func Test_userApi_login(t *testing.T) {
	e := setup(t)

	usr := testutil.CreateTeacher(t, e.userRepo, "Teacher", "teacher@test.cd")

	now := time.Now().UTC()
	inactive := user.User{
		ID: uuid.New().String(), Name: "Gone", Email: "gone@test.cd", Role: user.RoleTeacher,
		CreatedAt: now, UpdatedAt: now,
	}
	_ = inactive.SetPassword("Str0ng&Secret")
	if _, err := e.userRepo.CreateUser(context.Background(), inactive); err != nil {
		t.Fatalf("CreateUser() failed: %v", err)
	}

	login := func(email, pwd string) []byte {
		return marchallObj(t, LoginRequest{Email: email, Password: pwd})
	}
	authFailed := marchallObj(t, httpErr{Error: "authentication failed"})

	tests := []httpTest{
		{
			name: "empty payload", body: []byte(`{}`), wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"email": "this field is required", "password": "this field is required"}),
		},
		{name: "unknown email", body: login("lol@test.cd", "Str0ng&Secret"), wantCode: http.StatusBadRequest, wantData: authFailed},
		{name: "wrong password", body: login(usr.Email, "nope nope"), wantCode: http.StatusBadRequest, wantData: authFailed},
		{
			name: "deactivated account", body: login(inactive.Email, "Str0ng&Secret"), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(http.MethodPost, "/v1/users/login", tt.body)
			e.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}

	t.Run("success", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/login", login("Teacher@Test.CD", "Str0ng&Secret"))
		e.server.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("code = %d; want %d: %s", rec.Code, http.StatusOK, rec.Body.String())
		}
		var resp LoginResponse
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("unmarshalling response: %v", err)
		}
		if resp.Token == "" {
			t.Error("token is empty")
		}
	})
}

func Test_userApi_me(t *testing.T) {
	e := setup(t)

	usr := testutil.CreateStudent(t, e.userRepo, "Student", "student@test.cd", "bca042", 2, 3)

	tests := []httpTest{
		{name: "auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "me", token: getToken(t, usr), wantData: marchallObj(t, usr)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(http.MethodGet, "/v1/users/me", tt.token)
			e.server.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
