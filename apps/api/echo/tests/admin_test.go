package tests

import (
	"encoding/json"
	"net/http"
	"testing"

	echoapi "github.com/mwinyimoha/darasa/apps/api/echo"
	"github.com/mwinyimoha/darasa/core/content"
	"github.com/mwinyimoha/darasa/core/session"
	"github.com/mwinyimoha/darasa/core/user"
	testutil "github.com/mwinyimoha/darasa/tests"
)

func Test_adminWeb_guards(t *testing.T) {
	testutil.ResetDB(t)

	testutil.CreateUser(t, usrRepo, "hodari", "hodari@test.tz", "Passw0rd!", user.RoleUser, true)
	cookies, _ := webLogin(t, "hodari", "Passw0rd!")

	paths := []string{"/admin/stats", "/admin/sessions"}
	for _, path := range paths {
		t.Run("anonymous "+path, func(t *testing.T) {
			req, rec := newWebRequest(http.MethodGet, path, nil)
			app.ServeHTTP(rec, req)
			tt := httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"})}
			checkCodeAndData(t, tt, rec)
		})
		t.Run("non-admin "+path, func(t *testing.T) {
			req, rec := newWebRequest(http.MethodGet, path, nil, cookies...)
			app.ServeHTTP(rec, req)
			tt := httpTest{wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"})}
			checkCodeAndData(t, tt, rec)
		})
	}
}

func Test_adminWeb_stats(t *testing.T) {
	testutil.ResetDB(t)

	testutil.CreateUser(t, usrRepo, "hodari", "hodari@test.tz", "Passw0rd!", user.RoleUser, true)
	testutil.CreateUser(t, usrRepo, "imara", "imara@test.tz", "Passw0rd!", user.RoleUser, true)
	testutil.CreateUser(t, usrRepo, "bosi", "bosi@test.tz", "Passw0rd!", user.RoleAdmin, true)

	testutil.CreateSubject(t, subjRepo, "Biology", "Science", "Beginner", content.StatusPublished)
	testutil.CreateSubject(t, subjRepo, "Swahili Poetry", "Humanities", "Advanced", content.StatusDraft)

	webLogin(t, "hodari", "Passw0rd!")
	cookies, _ := webLogin(t, "bosi", "Passw0rd!")

	req, rec := newWebRequest(http.MethodGet, "/admin/stats", nil, cookies...)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
	}

	var stats echoapi.StatsResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &stats); err != nil {
		t.Fatalf("json.Unmarshal() failed! err %v", err)
	}
	if stats.TotalUsers != 3 {
		t.Errorf("failed! total_users = %v; want 3", stats.TotalUsers)
	}
	if stats.TotalSubjects != 2 {
		t.Errorf("failed! total_subjects = %v; want 2", stats.TotalSubjects)
	}
	// the tracker is shared across tests; at least both logins are live
	if stats.ActiveSessions < 2 {
		t.Errorf("failed! active_sessions = %v; want at least 2", stats.ActiveSessions)
	}
	// most recent first; imara never logged in and must not appear
	if len(stats.RecentLogins) != 2 {
		t.Fatalf("failed! recent_logins = %+v; want 2 entries", stats.RecentLogins)
	}
	if stats.RecentLogins[0].Username != "bosi" || stats.RecentLogins[1].Username != "hodari" {
		t.Errorf("failed! recent_logins = %v, %v", stats.RecentLogins[0].Username, stats.RecentLogins[1].Username)
	}
	if stats.RecentLogins[0].LastLogin.Before(stats.RecentLogins[1].LastLogin) {
		t.Error("failed! recent logins not sorted by recency")
	}
}

func Test_adminWeb_sessions(t *testing.T) {
	testutil.ResetDB(t)

	testutil.CreateUser(t, usrRepo, "mateka", "mateka@test.tz", "Passw0rd!", user.RoleUser, true)
	testutil.CreateUser(t, usrRepo, "bosi", "bosi@test.tz", "Passw0rd!", user.RoleAdmin, true)

	victimCookies, _ := webLogin(t, "mateka", "Passw0rd!")
	adminCookies, _ := webLogin(t, "bosi", "Passw0rd!")

	list := func() []session.Session {
		t.Helper()
		req, rec := newWebRequest(http.MethodGet, "/admin/sessions", nil, adminCookies...)
		app.ServeHTTP(rec, req)
		if rec.Code != http.StatusOK {
			t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
		}
		var sessions []session.Session
		if err := json.Unmarshal(rec.Body.Bytes(), &sessions); err != nil {
			t.Fatalf("json.Unmarshal() failed! err %v", err)
		}
		return sessions
	}

	var victim *session.Session
	for _, sess := range list() {
		if sess.Username == "mateka" {
			s := sess
			victim = &s
			break
		}
	}
	if victim == nil {
		t.Fatal("failed! victim session not listed")
	}
	if !victim.UserID.Valid || victim.IPAddress == "" || victim.LastActivity.IsZero() {
		t.Errorf("failed! incomplete session entry: %+v", victim)
	}

	req, rec := newWebRequest(http.MethodDelete, "/admin/sessions/"+victim.ID, nil, adminCookies...)
	app.ServeHTTP(rec, req)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("failed! code = %v; body %v", rec.Code, rec.Body.String())
	}

	// terminating twice finds nothing
	req, rec = newWebRequest(http.MethodDelete, "/admin/sessions/"+victim.ID, nil, adminCookies...)
	app.ServeHTTP(rec, req)
	tt := httpTest{wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"})}
	checkCodeAndData(t, tt, rec)

	for _, sess := range list() {
		if sess.Username == "mateka" {
			t.Errorf("failed! session %v still listed", sess.ID)
		}
	}

	// the victim's cookie re-enters as an anonymous session
	req, rec = newWebRequest(http.MethodGet, "/admin/stats", nil, victimCookies...)
	app.ServeHTTP(rec, req)
	tt = httpTest{wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"})}
	checkCodeAndData(t, tt, rec)
}
