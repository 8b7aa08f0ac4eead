package echoapi

import (
	"crypto/hmac"
	"encoding/hex"

	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwinyimoha/darasa/core"
)

// Cookie session value keys.
const (
	sessionIDKey       = "sid"
	sessionUserIDKey   = "uid"
	sessionUsernameKey = "uname"
	sessionCSRFKey     = "csrf"
)

const (
	csrfFormField = "csrf_token"
	csrfHeader    = "X-CSRF-Token"
)

var sessionStore = newSessionStore()

func newSessionStore() *sessions.CookieStore {
	store := sessions.NewCookieStore([]byte(core.Conf.SecretKey))
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   30 * 86400,
		HttpOnly: true,
	}
	return store
}

// getSession returns the request's cookie session, minting a session id and
// a CSRF token on first sight. An undecodable cookie yields a fresh session.
func getSession(ctx echo.Context) *sessions.Session {
	sess, _ := sessionStore.Get(ctx.Request(), core.Conf.SessionCookieName)
	if _, ok := sess.Values[sessionIDKey].(string); !ok {
		sess.Values[sessionIDKey] = uuid.New().String()
	}
	if _, ok := sess.Values[sessionCSRFKey].(string); !ok {
		sess.Values[sessionCSRFKey] = hex.EncodeToString(securecookie.GenerateRandomKey(32))
	}
	return sess
}

func saveSession(ctx echo.Context, sess *sessions.Session) error {
	return errors.Wrap(sess.Save(ctx.Request(), ctx.Response()), "saving session")
}

func sessionID(sess *sessions.Session) string {
	id, _ := sess.Values[sessionIDKey].(string)
	return id
}

func sessionUserID(sess *sessions.Session) string {
	uid, _ := sess.Values[sessionUserIDKey].(string)
	return uid
}

func sessionUsername(sess *sessions.Session) string {
	uname, _ := sess.Values[sessionUsernameKey].(string)
	return uname
}

func sessionCSRFToken(sess *sessions.Session) string {
	token, _ := sess.Values[sessionCSRFKey].(string)
	return token
}

// bindSessionUser attaches the authenticated user to the cookie session.
func bindSessionUser(sess *sessions.Session, userID, username string) {
	sess.Values[sessionUserIDKey] = userID
	sess.Values[sessionUsernameKey] = username
}

// unbindSessionUser logs the cookie session out without discarding it.
func unbindSessionUser(sess *sessions.Session) {
	delete(sess.Values, sessionUserIDKey)
	delete(sess.Values, sessionUsernameKey)
}

// checkCSRF verifies that a mutating form request carries the session's CSRF
// token, either as a form field or a header.
func checkCSRF(ctx echo.Context, sess *sessions.Session) error {
	want := sessionCSRFToken(sess)
	got := ctx.FormValue(csrfFormField)
	if got == "" {
		got = ctx.Request().Header.Get(csrfHeader)
	}
	if want == "" || !hmac.Equal([]byte(want), []byte(got)) {
		return errCSRFInvalid
	}
	return nil
}
