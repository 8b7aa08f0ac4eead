package tests

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	echoapi "github.com/mwinyimoha/darasa/apps/api/echo"
	"github.com/mwinyimoha/darasa/core"
	"github.com/mwinyimoha/darasa/core/content"
	"github.com/mwinyimoha/darasa/core/user"
	testutil "github.com/mwinyimoha/darasa/tests"
)

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func Test_web_home(t *testing.T) {
	testutil.ResetDB(t)

	pub := testutil.CreateSubject(t, subjRepo, "Biology", "Science", "Beginner", content.StatusPublished)
	testutil.CreateSubject(t, subjRepo, "Swahili Poetry", "Humanities", "Advanced", content.StatusDraft)

	req, rec := newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)

	tt := httpTest{
		wantCode: http.StatusOK,
		wantData: marchallObj(t, echoapi.Paginated{Items: []content.Subject{pub}, Total: 1, Page: 1, PerPage: 20, TotalPages: 1}),
	}
	checkCodeAndData(t, tt, rec)

	// an anonymous visit mints a session cookie and a CSRF token
	if findCookie(responseCookies(rec), core.Conf.SessionCookieName) == nil {
		t.Errorf("failed! no %v cookie issued", core.Conf.SessionCookieName)
	}
	if rec.Header().Get("X-CSRF-Token") == "" {
		t.Error("failed! no CSRF token exposed")
	}
}

func Test_web_registerAndLogin(t *testing.T) {
	testutil.ResetDB(t)

	register := func(body []byte) *httptest.ResponseRecorder {
		t.Helper()
		req, rec := newRequest(http.MethodPost, "/register", body)
		app.ServeHTTP(rec, req)
		return rec
	}

	rec := register(marchallObj(t, map[string]string{"username": "stud1", "password": "Passw0rd!"}))
	if rec.Code != http.StatusFound {
		t.Fatalf("failed! code = %v; wantCode %v; body %v", rec.Code, http.StatusFound, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/login" {
		t.Errorf("failed! Location = %v; want /login", loc)
	}

	rec = register(marchallObj(t, map[string]string{"username": "stud1", "password": "Passw0rd!"}))
	tt := httpTest{wantCode: http.StatusConflict, wantData: marchallObj(t, map[string]string{"username": "a user with this username already exists"})}
	checkCodeAndData(t, tt, rec)

	rec = register(marchallObj(t, map[string]string{"username": "stud2", "password": "abc"}))
	tt = httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, map[string]string{"password": "password must contain at least 8 characters"})}
	checkCodeAndData(t, tt, rec)

	req, rec := newRequest(http.MethodPost, "/login", marchallObj(t, map[string]string{"username": "stud1", "password": "nope"}))
	app.ServeHTTP(rec, req)
	tt = httpTest{wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "authentication failed"})}
	checkCodeAndData(t, tt, rec)

	req, rec = newRequest(http.MethodPost, "/login", marchallObj(t, map[string]string{"username": "stud1", "password": "Passw0rd!"}))
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
	}
	var resp echoapi.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if resp.AccessToken == "" || resp.TokenType != "bearer" {
		t.Errorf("failed! token = %+v", resp)
	}
	if findCookie(responseCookies(rec), core.Conf.SessionCookieName) == nil {
		t.Errorf("failed! no %v cookie issued", core.Conf.SessionCookieName)
	}

	// the token issued by the website works on the API
	req, rec = newAuthRequest(http.MethodGet, "/api/users/me/settings", resp.AccessToken)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("failed! code = %v; body %v", rec.Code, rec.Body.String())
	}

	// and the session is tracked under the user's name
	var tracked bool
	for _, sess := range tracker.All() {
		if sess.Username == "stud1" {
			tracked = true
			break
		}
	}
	if !tracked {
		t.Error("failed! login session not tracked")
	}
}

func Test_web_csrf(t *testing.T) {
	testutil.ResetDB(t)

	testutil.CreateUser(t, usrRepo, "jasiri", "jasiri@test.tz", "Passw0rd!", user.RoleUser, true)

	form := url.Values{"username": {"jasiri"}, "password": {"Passw0rd!"}}

	// a form submission with no session cannot carry a valid token
	req, rec := newFormRequest(http.MethodPost, "/login", form, "")
	app.ServeHTTP(rec, req)
	tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "invalid CSRF token"})}
	checkCodeAndData(t, tt, rec)

	// visit the site first to obtain a session and its CSRF token
	req, rec = newRequest(http.MethodGet, "/")
	app.ServeHTTP(rec, req)
	cookies := responseCookies(rec)
	csrf := rec.Header().Get("X-CSRF-Token")
	if csrf == "" {
		t.Fatal("failed! no CSRF token exposed")
	}

	req, rec = newFormRequest(http.MethodPost, "/login", form, "deadbeef", cookies...)
	app.ServeHTTP(rec, req)
	tt = httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "invalid CSRF token"})}
	checkCodeAndData(t, tt, rec)

	req, rec = newFormRequest(http.MethodPost, "/login", form, csrf, cookies...)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
	}
	var resp echoapi.LoginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if resp.AccessToken == "" {
		t.Error("failed! no access token")
	}
}

func Test_web_logout(t *testing.T) {
	testutil.ResetDB(t)

	testutil.CreateUser(t, usrRepo, "askari", "askari@test.tz", "Passw0rd!", user.RoleUser, true)
	cookies, _ := webLogin(t, "askari", "Passw0rd!")

	req, rec := newWebRequest(http.MethodGet, "/logout", nil, cookies...)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusFound {
		t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
	}
	if loc := rec.Header().Get("Location"); loc != "/" {
		t.Errorf("failed! Location = %v; want /", loc)
	}
	if c := findCookie(responseCookies(rec), core.Conf.SessionCookieName); c == nil || c.MaxAge >= 0 {
		t.Error("failed! session cookie not discarded")
	}

	for _, sess := range tracker.All() {
		if sess.Username == "askari" {
			t.Errorf("failed! session %v still tracked after logout", sess.ID)
		}
	}

	// the pre-logout cookie no longer carries the user
	req, rec = newWebRequest(http.MethodGet, "/admin/stats", nil, cookies...)
	app.ServeHTTP(rec, req)
	tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"})}
	checkCodeAndData(t, tt, rec)
}
