package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwinyimoha/darasa/core/content"
	"github.com/mwinyimoha/darasa/core/session"
	"github.com/mwinyimoha/darasa/core/user"
)

type webApi struct {
	usrSvc     user.Service
	contentSvc content.Service
	tracker    *session.Tracker
}

// registerWebRoutes mounts the cookie-session website endpoints. Every
// request through here is recorded by the session tracker; form submissions
// are CSRF-checked.
func registerWebRoutes(app *echo.Echo, authLimit echo.MiddlewareFunc, deps *ServerDeps) {
	h := webApi{usrSvc: deps.UserSvc, contentSvc: deps.ContentSvc, tracker: deps.Tracker}

	web := app.Group("", sessionTrackingMiddleware(deps.Tracker), webCSRFMiddleware())
	web.GET("/", h.home)
	web.GET("/logout", h.logout)
	web.POST("/register", h.register, authLimit)
	web.POST("/login", h.login, authLimit)
}

// home lists published subjects.
func (h *webApi) home(ctx echo.Context) error {
	pg := new(Pagination)
	pg.Bind(ctx)

	filter := &content.QueryFilter{Status: content.StatusPublished}
	subjects, err := h.contentSvc.QuerySubjects(ctx.Request().Context(), filter)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []content.Subject{}
	}

	lo, hi := pg.bounds(len(subjects))
	return ctx.JSON(http.StatusOK, newPaginated(*pg, subjects[lo:hi], len(subjects)))
}

func (h *webApi) register(ctx echo.Context) error {
	var form webRegisterRequest
	if err := ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to webRegisterRequest")
	}

	data := user.NewUser{
		Username: form.Username,
		Email:    form.Email,
		Password: form.Password,
		Role:     user.RoleUser,
	}
	if err := data.Validate(ctx.Request().Context(), h.usrSvc); err != nil {
		return err
	}
	if _, err := h.usrSvc.Create(ctx.Request().Context(), data); err != nil {
		return errors.Wrap(err, "creating user")
	}

	return ctx.Redirect(http.StatusFound, "/login")
}

func (h *webApi) login(ctx echo.Context) error {
	var form webLoginRequest
	if err := ctx.Bind(&form); err != nil {
		return errors.Wrap(err, "binding to webLoginRequest")
	}
	if form.Username == "" || form.Password == "" {
		return errAuthenticationFailed
	}

	claims, err := authenticate(ctx.Request().Context(), form.Username, form.Password, h.usrSvc)
	if err != nil {
		return errors.Wrap(err, "authenticating")
	}
	token, err := GenerateToken(claims)
	if err != nil {
		return errors.Wrap(err, "generating token")
	}

	sess := getSession(ctx)
	bindSessionUser(sess, claims.Subject, claims.Username)
	if err := saveSession(ctx, sess); err != nil {
		return err
	}
	h.tracker.Bind(sessionID(sess), claims.Subject, claims.Username)

	return ctx.JSON(http.StatusOK, LoginResponse{AccessToken: token, TokenType: "bearer"})
}

// logout terminates the tracked session and discards the cookie.
func (h *webApi) logout(ctx echo.Context) error {
	sess := getSession(ctx)
	h.tracker.Terminate(sessionID(sess))

	sess.Options.MaxAge = -1
	if err := saveSession(ctx, sess); err != nil {
		return err
	}
	return ctx.Redirect(http.StatusFound, "/")
}

type (
	webRegisterRequest struct {
		Username string `json:"username" form:"username"`
		Email    string `json:"email" form:"email"`
		Password string `json:"password" form:"password"`
	}

	webLoginRequest struct {
		Username string `json:"username" form:"username"`
		Password string `json:"password" form:"password"`
	}
)
