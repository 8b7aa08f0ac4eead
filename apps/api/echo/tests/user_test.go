package tests

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/mail"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"

	echoapi "github.com/mwinyimoha/darasa/apps/api/echo"
	"github.com/mwinyimoha/darasa/core"
	"github.com/mwinyimoha/darasa/core/user"
	emailsvc "github.com/mwinyimoha/darasa/services/email"
	testutil "github.com/mwinyimoha/darasa/tests"
)

func Test_userApi_login(t *testing.T) {
	testutil.ResetDB(t)

	student := testutil.CreateUser(t, usrRepo, "hero", "hero@test.tz", "LolC@t123", user.RoleUser, true)
	testutil.CreateUser(t, usrRepo, "ndog", "ndog@test.tz", "LolC@t123", user.RoleUser, false) // 😂

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, echoapi.LoginRequest{Username: reqMsg, Password: reqMsg}),
		},
		{
			name: "unknown user", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "who", Password: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "wrong password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "hero", Password: "nope"}),
			wantData: marchallObj(t, httpErr{Error: "authentication failed"}),
		},
		{
			name: "deactivated account", wantCode: http.StatusForbidden,
			body:     marchallObj(t, echoapi.LoginRequest{Username: "ndog", Password: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "login with username", wantCode: http.StatusOK,
			body: marchallObj(t, echoapi.LoginRequest{Username: "hero", Password: "LolC@t123"}),
		},
		{
			name: "login with email", wantCode: http.StatusOK,
			body: marchallObj(t, echoapi.LoginRequest{Username: "hero@test.tz", Password: "LolC@t123"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/login"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			// cannot guess the token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Errorf("json.Unmarshal() failed! err %v", err)
				}
				if respData.AccessToken == "" {
					t.Error("failed! empty token")
				}
				if respData.TokenType != "bearer" {
					t.Errorf("failed! token_type = %v; want bearer", respData.TokenType)
				}

				refreshed, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
				if err != nil {
					t.Fatalf("GetUser() failed, %v", err)
				}
				if !refreshed.LastLogin.Valid {
					t.Error("failed! lastLogin not set")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_register(t *testing.T) {
	testutil.ResetDB(t)

	testutil.CreateUser(t, usrRepo, "imara", "imara@test.tz", "LolC@t123", user.RoleUser, true)

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"username": reqMsg,
				"password": "password must contain at least 8 characters",
			}),
		},
		{
			name: "invalid username", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.NewUser{Username: "99badstart", Password: "LolC@t123"}),
			wantData: marchallObj(t, map[string]string{"username": "username must start with a letter and may only contain letters, digits and underscores (3 to 32 characters)"}),
		},
		{
			name: "password too similar to username", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.NewUser{Username: "wanyama", Password: "Wanyama1!"}),
			wantData: marchallObj(t, map[string]string{"password": "password cannot be similar to user attributes"}),
		},
		{
			name: "password too common", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.NewUser{Username: "wanyama", Password: "P@$$w0rd"}),
			wantData: marchallObj(t, map[string]string{"password": "password is too common"}),
		},
		{
			name: "password confirm mismatch", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.NewUser{Username: "wanyama", Password: "LolC@t123", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, map[string]string{"password_confirm": "password_confirm must be equal to Password"}),
		},
		{
			name: "duplicate username", wantCode: http.StatusConflict,
			body:     marchallObj(t, user.NewUser{Username: "IMARA", Email: "other@test.tz", Password: "LolC@t123"}),
			wantData: marchallObj(t, map[string]string{"username": "a user with this username already exists"}),
		},
		{
			name: "duplicate email", wantCode: http.StatusConflict,
			body:     marchallObj(t, user.NewUser{Username: "wanyama", Email: "imara@test.tz", Password: "LolC@t123"}),
			wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
		{
			name: "registered", wantCode: http.StatusCreated,
			// elevated role requests are ignored
			body: marchallObj(t, user.NewUser{Username: "wanyama", Email: "wanyama@test.tz", Password: "LolC@t123", Role: user.RoleAdmin}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/register"

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.SentMessages = nil // reset

			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var usr user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
					t.Errorf("json.Unmarshal() failed! err %v", err)
				}
				if usr.ID == "" {
					t.Error("failed! empty user ID")
				}
				if usr.Role != user.RoleUser {
					t.Errorf("failed! role = %v; want %v", usr.Role, user.RoleUser)
				}
				if !usr.IsActive {
					t.Error("failed! new user not active")
				}
				if loc := rec.Header().Get("Location"); loc != "/api/users/"+usr.ID {
					t.Errorf("failed! Location = %v", loc)
				}
				if len(emailsvc.SentMessages) != 1 {
					t.Fatalf("failed! len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
				}
				if subj := emailsvc.SentMessages[0].Subject; subj != "Welcome aboard!" {
					t.Errorf("failed! Subject = %v", subj)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userCreate(t *testing.T) {
	testutil.ResetDB(t)

	student := testutil.CreateUser(t, usrRepo, "hero", "hero@test.tz", "", user.RoleUser, true)
	admin := testutil.CreateUser(t, usrRepo, "admin", "admin@test.tz", "", user.RoleAdmin, true)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", token: getToken(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "invalid role", token: getToken(t, admin), wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.NewUser{Username: "mwalimu", Password: "LolC@t123", Role: "boss"}),
			wantData: marchallObj(t, map[string]string{"role": "invalid role"}),
		},
		{
			name: "admin created", token: getToken(t, admin), wantCode: http.StatusCreated,
			body: marchallObj(t, user.NewUser{Username: "mwalimu", Password: "LolC@t123", Role: user.RoleAdmin}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/users"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusCreated {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var usr user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
					t.Errorf("json.Unmarshal() failed! err %v", err)
				}
				if usr.Role != user.RoleAdmin {
					t.Errorf("failed! role = %v; want %v", usr.Role, user.RoleAdmin)
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userQuery(t *testing.T) {
	testutil.ResetDB(t)

	path := func(search, ordering string, createdFrom, createdTo time.Time, isActive *bool, role string, pg ...int) string {
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
		if !createdFrom.IsZero() {
			v.Add("created_from", createdFrom.Format(time.RFC3339))
		}
		if !createdTo.IsZero() {
			v.Add("created_to", createdTo.Format(time.RFC3339))
		}
		if role != "" {
			v.Add("role", role)
		}
		if len(pg) > 0 {
			v.Add("page", strconv.Itoa(pg[0]))
			v.Add("per_page", strconv.Itoa(pg[1]))
		}
		return "/api/users?" + v.Encode()
	}
	bPtr := func(b bool) *bool { return &b }
	page := func(items []user.User, total, pageNum, perPage int) []byte {
		return marchallObj(t, echoapi.Paginated{
			Items:      items,
			Total:      total,
			Page:       pageNum,
			PerPage:    perPage,
			TotalPages: (total + perPage - 1) / perPage,
		})
	}

	now := time.Now().UTC()
	t1 := now.Add(1 * time.Hour)
	t2 := now.Add(2 * time.Hour)
	t3 := now.Add(3 * time.Hour)
	t4 := now.Add(4 * time.Hour)
	t5 := now.Add(5 * time.Hour)

	usr1 := testutil.CreateUser(t, usrRepo, "muse", "muse@test.tz", "", user.RoleUser, true, t1)
	usr2 := testutil.CreateUser(t, usrRepo, "user02", "king@test.tz", "", user.RoleUser, true)
	student := testutil.CreateUser(t, usrRepo, "hero", "user3@test.tz", "", user.RoleUser, true)
	// the query params carry second precision; pin the boundary user to a whole second
	admin := testutil.CreateUser(t, usrRepo, "admin", "admin@test.tz", "", user.RoleAdmin, true, t2.Truncate(time.Second))
	operator := testutil.CreateUser(t, usrRepo, "operator", "operator@test.tz", "", user.RoleAdmin, true)
	tutor := testutil.CreateUser(t, usrRepo, "tutor", "tutor@test.tz", "", user.RoleUser, true, t3)
	naughty := testutil.CreateUser(t, usrRepo, "ndog", "ndog@test.tz", "", user.RoleUser, false) // 😂

	adminToken := getToken(t, admin)
	empty := page([]user.User{}, 0, 1, 20)

	tests := []httpTest{
		{name: "Auth required", path: "/api/users", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", path: "/api/users", token: getToken(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "Get all", path: "/api/users", token: adminToken,
			wantData: page([]user.User{usr2, student, operator, naughty, usr1, admin, tutor}, 7, 1, 20),
		},
		// filtering
		{name: "search (unknown)", path: path("lol", "", time.Time{}, time.Time{}, nil, ""), token: adminToken, wantData: empty},
		{
			name: "search=USE", path: path("USE", "", time.Time{}, time.Time{}, nil, ""),
			token: adminToken, wantData: page([]user.User{usr2, student, usr1}, 3, 1, 20),
		},
		{name: "role (unknown)", path: path("", "", time.Time{}, time.Time{}, nil, "lol"), token: adminToken, wantData: empty},
		{
			name: "role=admin", path: path("", "", time.Time{}, time.Time{}, nil, user.RoleAdmin),
			token: adminToken, wantData: page([]user.User{operator, admin}, 2, 1, 20),
		},
		{
			name: "role=user", path: path("", "", time.Time{}, time.Time{}, nil, user.RoleUser),
			token: adminToken, wantData: page([]user.User{usr2, student, naughty, usr1, tutor}, 5, 1, 20),
		},
		{
			name: "is_active=true", path: path("", "", time.Time{}, time.Time{}, bPtr(true), ""),
			token: adminToken, wantData: page([]user.User{usr2, student, operator, usr1, admin, tutor}, 6, 1, 20),
		},
		{
			name: "is_active=false", path: path("", "", time.Time{}, time.Time{}, bPtr(false), ""),
			token: adminToken, wantData: page([]user.User{naughty}, 1, 1, 20),
		},
		{
			name: "created_from", path: path("", "", t1, time.Time{}, nil, ""),
			token: adminToken, wantData: page([]user.User{usr1, admin, tutor}, 3, 1, 20),
		},
		{
			name: "created_to", path: path("", "", time.Time{}, t2, nil, ""),
			token: adminToken, wantData: page([]user.User{usr2, student, operator, naughty, usr1, admin}, 6, 1, 20),
		},
		{name: "created_from - created_to (empty)", path: path("", "", t4, t5, nil, ""), token: adminToken, wantData: empty},
		{
			name: "created_from - created_to (found)", path: path("", "", t1, t2, nil, ""),
			token: adminToken, wantData: page([]user.User{usr1, admin}, 2, 1, 20),
		},
		{name: "all combo (empty)", path: path("USE", "", t1, t5, bPtr(true), user.RoleAdmin), token: adminToken, wantData: empty},
		{
			name: "all combo (found)", path: path("tut", "", t1, t5, bPtr(true), user.RoleUser),
			token: adminToken, wantData: page([]user.User{tutor}, 1, 1, 20),
		},
		// ordering
		{
			name: "order by username", path: path("", "username", time.Time{}, time.Time{}, nil, ""), token: adminToken,
			wantData: page([]user.User{admin, student, usr1, naughty, operator, tutor, usr2}, 7, 1, 20),
		},
		{
			name: "order by -created_at", path: path("", "-created_at", time.Time{}, time.Time{}, nil, ""), token: adminToken,
			wantData: page([]user.User{tutor, admin, usr1, naughty, operator, student, usr2}, 7, 1, 20),
		},
		{
			name: "order by role,-username", path: path("", "role,-username", time.Time{}, time.Time{}, nil, ""), token: adminToken,
			wantData: page([]user.User{operator, admin, usr2, tutor, naughty, usr1, student}, 7, 1, 20),
		},
		// filtering & ordering
		{
			name: "filtering & ordering", path: path("", "username", time.Time{}, time.Time{}, nil, user.RoleUser), token: adminToken,
			wantData: page([]user.User{student, usr1, naughty, tutor, usr2}, 5, 1, 20),
		},
		// pagination
		{
			name: "first page", path: path("", "", time.Time{}, time.Time{}, nil, "", 1, 3), token: adminToken,
			wantData: page([]user.User{usr2, student, operator}, 7, 1, 3),
		},
		{
			name: "last page", path: path("", "", time.Time{}, time.Time{}, nil, "", 3, 3), token: adminToken,
			wantData: page([]user.User{tutor}, 7, 3, 3),
		},
		{
			name: "page beyond bounds", path: path("", "", time.Time{}, time.Time{}, nil, "", 5, 3), token: adminToken,
			wantData: page([]user.User{}, 7, 5, 3),
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
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userRefreshToken(t *testing.T) {
	testutil.ResetDB(t)

	naughty := testutil.CreateUser(t, usrRepo, "ndog", "ndog@test.tz", "", user.RoleUser, false) // 😂
	student := testutil.CreateUser(t, usrRepo, "hero", "hero@test.tz", "", user.RoleUser, true)

	now := time.Now()
	unrefreshableClaims := &echoapi.Claims{
		StandardClaims: jwt.StandardClaims{
			Issuer:    core.Conf.AppName,
			Subject:   student.ID,
			Audience:  "Wanafunzi",
			ExpiresAt: now.Add(core.Conf.Server.JWTExpirationDelta).Unix(),
			IssuedAt:  now.Unix(),
		},
		OrigIssuedAt: now.Add(-2 * core.Conf.Server.JWTRefreshExpirationDelta).Unix(), // older than threshold
		Username:     student.Username,
		Email:        student.Email,
		Role:         student.Role,
		IsAdmin:      student.IsAdmin(),
	}
	unrefreshableToken, err := echoapi.GenerateToken(unrefreshableClaims)
	if err != nil {
		t.Fatalf("GenerateToken(): %v", err)
	}

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{name: "Inactive user not allowed", token: getToken(t, naughty), wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"})},
		{name: "Refresh period expired", token: unrefreshableToken, wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"})},
		{name: "Token refreshed", token: getToken(t, student), wantCode: http.StatusOK},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/token-refresh"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			// cannot guess new token.. just check that it's not empty
			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v", rec.Code, tt.wantCode)
				}
				var respData echoapi.LoginResponse
				if err := json.Unmarshal(rec.Body.Bytes(), &respData); err != nil {
					t.Errorf("json.Unmarshal() failed! err %v", err)
				}
				if respData.AccessToken == "" {
					t.Error("failed! empty token")
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userLogout(t *testing.T) {
	testutil.ResetDB(t)

	student := testutil.CreateUser(t, usrRepo, "hero", "hero@test.tz", "", user.RoleUser, true)
	token := getToken(t, student)

	req, rec := newAuthRequest(http.MethodPost, "/api/logout", token)
	app.ServeHTTP(rec, req)
	tt := httpTest{wantCode: http.StatusOK, wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Logged out."})}
	checkCodeAndData(t, tt, rec)

	// the token is revoked; it no longer opens any door
	req, rec = newAuthRequest(http.MethodGet, "/api/users/me/settings", token)
	app.ServeHTTP(rec, req)
	tt = httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"})}
	checkCodeAndData(t, tt, rec)

	// a fresh token works fine
	req, rec = newAuthRequest(http.MethodGet, "/api/users/me/settings", getToken(t, student))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusOK)
	}
}

func Test_userApi_userResetPassword(t *testing.T) {
	testutil.ResetDB(t)

	student := testutil.CreateUser(t, usrRepo, "hero", "hero@test.tz", "", user.RoleUser, true)
	successData := marchallObj(t, echoapi.SuccessResponse{Success: "If the email address supplied is associated with an active account on this system, " +
		"an email will arrive in your inbox shortly with instructions to reset your password."})

	pathRegex, err := regexp.Compile("/password-reset/.+/.+")
	if err != nil {
		t.Fatalf("regexp.Compile(): %v", err)
	}

	type extraTest struct {
		emailSent bool
		to        mail.Address
	}
	tests := []httpTest{
		{name: "required fields", wantCode: http.StatusBadRequest, wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "this field is required"})},
		{
			name: "invalid email", wantCode: http.StatusBadRequest, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol"}),
			wantData: marchallObj(t, echoapi.PasswordResetRequest{Email: "email must be a valid email address"}),
		},
		{
			name: "unknown email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: "lol@test.com"}),
			wantData: successData, extra: extraTest{emailSent: false},
		},
		{
			name: "known email", wantCode: http.StatusOK, body: marchallObj(t, echoapi.PasswordResetRequest{Email: student.Email}),
			wantData: successData, extra: extraTest{emailSent: true, to: mail.Address{Name: student.Username, Address: student.Email}},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/password-reset"

		t.Run(tt.name, func(t *testing.T) {
			emailsvc.SentMessages = nil // reset

			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if extra, ok := tt.extra.(extraTest); ok {
				if extra.emailSent {
					if len(emailsvc.SentMessages) != 1 {
						t.Fatalf("failed! len(SentMessages) = %d; want 1", len(emailsvc.SentMessages))
					}
					msg := emailsvc.SentMessages[0]
					if msg.To[0] != extra.to {
						t.Errorf("failed! To = %v; want %v", msg.To[0], extra.to)
					}
					if !strings.Contains(msg.TextContent, extra.to.Name) {
						t.Errorf("failed! text content does not contain recipient's name \"%s\"", extra.to.Name)
					}
					if !strings.Contains(msg.HTMLContent, extra.to.Name) {
						t.Errorf("failed! HTML content does not contain recipient's name \"%s\"", extra.to.Name)
					}
					if !pathRegex.MatchString(msg.TextContent) {
						t.Errorf("failed! text content does not match pathRegex %v", pathRegex)
					}
					if !pathRegex.MatchString(msg.HTMLContent) {
						t.Errorf("failed! HTML content does not match pathRegex %v", pathRegex)
					}
				} else {
					if len(emailsvc.SentMessages) > 0 {
						t.Errorf("failed! len(SentMessages) = %d; want 0", len(emailsvc.SentMessages))
					}
				}
			}
		})
	}
}

func Test_userApi_userConfirmPasswordReset(t *testing.T) {
	testutil.ResetDB(t)

	student := testutil.CreateUser(t, usrRepo, "hero", "hero@test.tz", "lol", user.RoleUser, true)
	validUID := user.EncodeUID(student)
	validToken := user.MakeToken(student)

	// generate an expired token
	dayLate := core.Conf.PasswordResetTimeoutDelta + (24 * time.Hour)
	user.NowFunc = func() time.Time { return time.Now().Add(-dayLate) }
	expiredToken := user.MakeToken(student)
	user.NowFunc = time.Now // reset

	// a UID that decodes to an ID no user owns
	ghost := testutil.CreateUser(t, usrRepo, "ghost", "ghost@test.tz", "", user.RoleUser, true)
	ghostUID := user.EncodeUID(ghost)
	if _, err := usrRepo.DeleteUsersByID(context.Background(), ghost.ID); err != nil {
		t.Fatalf("DeleteUsersByID(): %v", err)
	}

	reqMsg := "this field is required"
	tests := []httpTest{
		{
			name: "required fields", wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, user.ResetUserPassword{Token: reqMsg, UID: reqMsg, Password: "password must contain at least 8 characters"}),
		},
		{
			name: "invalid pwd: min len", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "lol", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must contain at least 8 characters"}),
		},
		{
			name: "invalid pwd: no whitespace", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "l o loll", PasswordConfirm: "l o loll"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must not contain whitespace"}),
		},
		{
			name: "invalid pwd: not all numeric", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "12345678", PasswordConfirm: "12345678"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password cannot be entirely numeric"}),
		},
		{
			name: "invalid pwd: complexity", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "lol12345", PasswordConfirm: "lol12345"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"}),
		},
		{
			name: "invalid pwd: too common", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "P@$$w0rd", PasswordConfirm: "P@$$w0rd"}),
			wantData: marchallObj(t, user.ResetUserPassword{Password: "password is too common"}),
		},
		{
			name: "PasswordConfirm must = Password", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "lol", Password: "LolC@t123", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, user.ResetUserPassword{PasswordConfirm: "password_confirm must be equal to Password"}),
		},
		{
			name: "invalid uid", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: "?!?", Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, user.ResetUserPassword{UID: "invalid token"}),
		},
		{
			name: "user not found", wantCode: http.StatusNotFound,
			body:     marchallObj(t, user.ResetUserPassword{Token: "lol", UID: ghostUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "invalid token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: "HE4TS-sigsig-sig", UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, user.ResetUserPassword{Token: "invalid token"}),
		},
		{
			name: "expired token", wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ResetUserPassword{Token: expiredToken, UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, user.ResetUserPassword{Token: "token expired"}),
		},
		{
			name: "valid token", wantCode: http.StatusOK,
			body:     marchallObj(t, user.ResetUserPassword{Token: validToken, UID: validUID, Password: "LolC@t123", PasswordConfirm: "LolC@t123"}),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been reset with the new password."}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPost
		tt.path = "/api/password-reset-confirm"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newRequest(tt.method, tt.path, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				refreshedStudent, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
				if err != nil {
					t.Fatalf("GetUser() failed, %v", err)
				}
				if bytes.Equal(refreshedStudent.PasswordHash, student.PasswordHash) {
					t.Fatalf("failed to update new password")
				}
			}
		})
	}
}

func Test_userApi_changePassword(t *testing.T) {
	testutil.ResetDB(t)

	student := testutil.CreateUser(t, usrRepo, "hero", "hero@test.tz", "LolC@t123", user.RoleUser, true)
	token := getToken(t, student)

	reqMsg := "this field is required"
	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "required fields", token: token, wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{
				"current_password": reqMsg,
				"new_password":     reqMsg,
				"password":         "password must contain at least 8 characters",
			}),
		},
		{
			name: "weak new password", token: token, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ChangePassword{CurrentPassword: "LolC@t123", NewPassword: "lol12345", PasswordConfirm: "lol12345"}),
			wantData: marchallObj(t, map[string]string{"password": "password must contain at least 1 uppercase character, 1 lowercase character, 1 digit and 1 special character"}),
		},
		{
			name: "PasswordConfirm must = NewPassword", token: token, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ChangePassword{CurrentPassword: "LolC@t123", NewPassword: "NewC@t123", PasswordConfirm: "lol"}),
			wantData: marchallObj(t, map[string]string{"new_password_confirm": "new_password_confirm must be equal to NewPassword"}),
		},
		{
			name: "wrong current password", token: token, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.ChangePassword{CurrentPassword: "nope", NewPassword: "NewC@t123", PasswordConfirm: "NewC@t123"}),
			wantData: marchallObj(t, map[string]string{"current_password": "wrong password"}),
		},
		{
			name: "password changed", token: token, wantCode: http.StatusOK,
			body:     marchallObj(t, user.ChangePassword{CurrentPassword: "LolC@t123", NewPassword: "NewC@t123", PasswordConfirm: "NewC@t123"}),
			wantData: marchallObj(t, echoapi.SuccessResponse{Success: "Password has been changed."}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPut
		tt.path = "/api/users/me/password"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusOK {
				refreshedStudent, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
				if err != nil {
					t.Fatalf("GetUser() failed, %v", err)
				}
				if bytes.Equal(refreshedStudent.PasswordHash, student.PasswordHash) {
					t.Fatalf("failed to update new password")
				}
			}
		})
	}
}

func Test_userApi_userSettings(t *testing.T) {
	testutil.ResetDB(t)

	student := testutil.CreateUser(t, usrRepo, "hero", "hero@test.tz", "", user.RoleUser, true)
	token := getToken(t, student)

	fPtr := func(b bool) *bool { return &b }
	sPtr := func(s string) *string { return &s }

	tests := []httpTest{
		{name: "Auth required", method: http.MethodGet, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "defaults", method: http.MethodGet, token: token,
			wantCode: http.StatusOK, wantData: marchallObj(t, user.DefaultSettings()),
		},
		{
			name: "invalid timezone", method: http.MethodPut, token: token, wantCode: http.StatusBadRequest,
			body:     marchallObj(t, user.UpdateSettings{Timezone: sPtr("Mars/Olympus")}),
			wantData: marchallObj(t, map[string]string{"timezone": "invalid timezone"}),
		},
		{
			name: "updated", method: http.MethodPut, token: token, wantCode: http.StatusOK,
			body: marchallObj(t, user.UpdateSettings{Timezone: sPtr("UTC"), EmailNotifs: fPtr(false), PushNotifs: fPtr(false)}),
			wantData: marchallObj(t, user.Settings{
				Timezone:      "UTC",
				Notifications: user.NotificationSettings{Email: false, Push: false},
			}),
		},
		{
			name: "updates stick", method: http.MethodGet, token: token, wantCode: http.StatusOK,
			wantData: marchallObj(t, user.Settings{
				Timezone:      "UTC",
				Notifications: user.NotificationSettings{Email: false, Push: false},
			}),
		},
	}
	for _, tt := range tests {
		tt.path = "/api/users/me/settings"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userRetrieve(t *testing.T) {
	testutil.ResetDB(t)

	student := testutil.CreateUser(t, usrRepo, "hero", "hero@test.tz", "", user.RoleUser, true)
	admin := testutil.CreateUser(t, usrRepo, "admin", "admin@test.tz", "", user.RoleAdmin, true)

	tests := []httpTest{
		{name: "Auth required", path: "/api/users/" + student.ID, wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "own account", path: "/api/users/" + student.ID, token: getToken(t, student),
			wantCode: http.StatusOK, wantData: marchallObj(t, student),
		},
		{
			name: "someone else's account is hidden", path: "/api/users/" + admin.ID, token: getToken(t, student),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "admin can see anyone", path: "/api/users/" + student.ID, token: getToken(t, admin),
			wantCode: http.StatusOK, wantData: marchallObj(t, student),
		},
		{
			name: "unknown user", path: "/api/users/b912a9d0-26f5-4080-8d7d-5bbd0d1e9d8d", token: getToken(t, admin),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_userApi_userUpdate(t *testing.T) {
	testutil.ResetDB(t)

	student := testutil.CreateUser(t, usrRepo, "hero", "hero@test.tz", "LolC@t123", user.RoleUser, true)
	other := testutil.CreateUser(t, usrRepo, "other", "other@test.tz", "", user.RoleUser, true)
	admin := testutil.CreateUser(t, usrRepo, "admin", "admin@test.tz", "", user.RoleAdmin, true)

	bPtr := func(b bool) *bool { return &b }

	type wantUser struct {
		role     string
		isActive *bool
		username string
	}
	tests := []httpTest{
		{
			name: "Auth required", path: "/api/users/" + student.ID,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "someone else's account is hidden", path: "/api/users/" + other.ID, token: getToken(t, student),
			body:     marchallObj(t, user.UpdateUser{Password: "NewC@t123", PasswordConfirm: "NewC@t123"}),
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "only admin changes usernames", path: "/api/users/" + student.ID, token: getToken(t, student),
			body:     marchallObj(t, user.UpdateUser{Username: "shujaa"}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "only admin changes activation", path: "/api/users/" + student.ID, token: getToken(t, student),
			body:     marchallObj(t, user.UpdateUser{IsActive: bPtr(false)}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "own password change", path: "/api/users/" + student.ID, token: getToken(t, student),
			body:     marchallObj(t, user.UpdateUser{Password: "NewC@t123", PasswordConfirm: "NewC@t123"}),
			wantCode: http.StatusOK,
		},
		{
			name: "own role change denied", path: "/api/users/" + admin.ID, token: getToken(t, admin),
			body:     marchallObj(t, user.UpdateUser{Role: user.RoleUser}),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"role": "cannot change own role"}),
		},
		{
			name: "own role restated is a no-op", path: "/api/users/" + admin.ID, token: getToken(t, admin),
			body:     marchallObj(t, user.UpdateUser{Role: user.RoleAdmin}),
			wantCode: http.StatusOK, extra: wantUser{role: user.RoleAdmin},
		},
		{
			name: "duplicate email", path: "/api/users/" + student.ID, token: getToken(t, admin),
			body:     marchallObj(t, user.UpdateUser{Email: other.Email}),
			wantCode: http.StatusConflict, wantData: marchallObj(t, map[string]string{"email": "a user with this email already exists"}),
		},
		{
			name: "admin promotes", path: "/api/users/" + student.ID, token: getToken(t, admin),
			body:     marchallObj(t, user.UpdateUser{Role: user.RoleAdmin}),
			wantCode: http.StatusOK, extra: wantUser{role: user.RoleAdmin},
		},
		{
			name: "admin renames", path: "/api/users/" + student.ID, token: getToken(t, admin),
			body:     marchallObj(t, user.UpdateUser{Username: "SHUJAA"}),
			wantCode: http.StatusOK, extra: wantUser{username: "shujaa"},
		},
		{
			name: "admin deactivates", path: "/api/users/" + student.ID, token: getToken(t, admin),
			body:     marchallObj(t, user.UpdateUser{IsActive: bPtr(false)}),
			wantCode: http.StatusOK, extra: wantUser{isActive: bPtr(false)},
		},
	}
	for _, tt := range tests {
		tt.method = http.MethodPut

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusOK {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v; body %v", rec.Code, tt.wantCode, rec.Body.String())
				}
				var usr user.User
				if err := json.Unmarshal(rec.Body.Bytes(), &usr); err != nil {
					t.Errorf("json.Unmarshal() failed! err %v", err)
				}
				if want, ok := tt.extra.(wantUser); ok {
					if want.role != "" && usr.Role != want.role {
						t.Errorf("failed! role = %v; want %v", usr.Role, want.role)
					}
					if want.username != "" && usr.Username != want.username {
						t.Errorf("failed! username = %v; want %v", usr.Username, want.username)
					}
					if want.isActive != nil && usr.IsActive != *want.isActive {
						t.Errorf("failed! is_active = %v; want %v", usr.IsActive, *want.isActive)
					}
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	// password updated through the generic endpoint must hold
	refreshedStudent, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: student.ID})
	if err != nil {
		t.Fatalf("GetUser() failed, %v", err)
	}
	if bytes.Equal(refreshedStudent.PasswordHash, student.PasswordHash) {
		t.Fatalf("failed to update new password")
	}
}

func Test_userApi_userDestroy(t *testing.T) {
	testutil.ResetDB(t)

	student := testutil.CreateUser(t, usrRepo, "hero", "hero@test.tz", "LolC@t123", user.RoleUser, true)
	admin := testutil.CreateUser(t, usrRepo, "admin", "admin@test.tz", "", user.RoleAdmin, true)
	adminToken := getToken(t, admin)

	// track a live web session for the victim
	webLogin(t, student.Username, "LolC@t123")

	tests := []httpTest{
		{
			name: "Auth required", method: http.MethodDelete, path: "/api/users/" + student.ID,
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Admin required", method: http.MethodDelete, path: "/api/users/" + student.ID, token: getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "self-deletion denied", method: http.MethodDelete, path: "/api/users/" + admin.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "self-deletion denied (bulk)", method: http.MethodDelete, path: "/api/users?id=" + admin.ID + "&id=" + student.ID, token: adminToken,
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			name: "deleted", method: http.MethodDelete, path: "/api/users/" + student.ID, token: adminToken,
			wantCode: http.StatusNoContent,
		},
		{
			name: "stays deleted", method: http.MethodGet, path: "/api/users/" + student.ID, token: adminToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)

			if tt.wantCode == http.StatusNoContent {
				if rec.Code != tt.wantCode {
					t.Errorf("failed! code = %v; wantCode %v; body %v", rec.Code, tt.wantCode, rec.Body.String())
				}
				return
			}
			checkCodeAndData(t, tt, rec)
		})
	}

	// the victim's web sessions die with the account
	for _, sess := range tracker.All() {
		if sess.Username == student.Username {
			t.Errorf("failed! session %v still tracked for deleted user", sess.ID)
		}
	}
}

func Test_userApi_userDestroyMultiple(t *testing.T) {
	testutil.ResetDB(t)

	usr1 := testutil.CreateUser(t, usrRepo, "moja", "moja@test.tz", "", user.RoleUser, true)
	usr2 := testutil.CreateUser(t, usrRepo, "mbili", "mbili@test.tz", "", user.RoleUser, true)
	keeper := testutil.CreateUser(t, usrRepo, "tatu", "tatu@test.tz", "", user.RoleUser, true)
	admin := testutil.CreateUser(t, usrRepo, "admin", "admin@test.tz", "", user.RoleAdmin, true)
	adminToken := getToken(t, admin)

	req, rec := newAuthRequest(http.MethodDelete, "/api/users?id="+usr1.ID+"&id="+usr2.ID, adminToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("failed! code = %v; wantCode %v; body %v", rec.Code, http.StatusNoContent, rec.Body.String())
	}

	left, err := usrRepo.CountUsers(context.Background())
	if err != nil {
		t.Fatalf("CountUsers() failed, %v", err)
	}
	if left != 2 {
		t.Errorf("failed! %d users left; want 2", left)
	}
	if _, err := usrRepo.GetUser(context.Background(), user.GetFilter{ID: keeper.ID}); err != nil {
		t.Errorf("GetUser() failed for survivor, %v", err)
	}

	// no ids is a no-op
	req, rec = newAuthRequest(http.MethodDelete, "/api/users", adminToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Errorf("failed! code = %v; wantCode %v", rec.Code, http.StatusNoContent)
	}
}

func Test_userApi_userRoles(t *testing.T) {
	testutil.ResetDB(t)

	student := testutil.CreateUser(t, usrRepo, "hero", "hero@test.tz", "", user.RoleUser, true)
	admin := testutil.CreateUser(t, usrRepo, "admin", "admin@test.tz", "", user.RoleAdmin, true)

	tests := []httpTest{
		{name: "Auth required", wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken)},
		{
			name: "Admin required", token: getToken(t, student), wantCode: http.StatusForbidden,
			wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{name: "all roles", token: getToken(t, admin), wantCode: http.StatusOK, wantData: marchallObj(t, user.Roles)},
	}
	for _, tt := range tests {
		tt.method = http.MethodGet
		tt.path = "/api/users/roles"

		t.Run(tt.name, func(t *testing.T) {
			req, rec := newAuthRequest(tt.method, tt.path, tt.token, tt.body)
			app.ServeHTTP(rec, req)
			checkCodeAndData(t, tt, rec)
		})
	}
}
