package echoapi

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwinyimoha/darasa/core"
	"github.com/mwinyimoha/darasa/core/content"
	"github.com/mwinyimoha/darasa/core/session"
	"github.com/mwinyimoha/darasa/core/user"
)

const recentLoginCount = 5

type adminApi struct {
	usrSvc     user.Service
	contentSvc content.Service
	tracker    *session.Tracker
}

// registerAdminWeb mounts the admin dashboard behind the cookie session.
func registerAdminWeb(app *echo.Echo, deps *ServerDeps) {
	h := adminApi{usrSvc: deps.UserSvc, contentSvc: deps.ContentSvc, tracker: deps.Tracker}

	g := app.Group("/admin",
		sessionTrackingMiddleware(deps.Tracker),
		webCSRFMiddleware(),
		webAdminMiddleware(deps.UserSvc),
	)
	g.GET("/stats", h.stats)
	g.GET("/sessions", h.sessions)
	g.DELETE("/sessions/:id", h.terminateSession)
}

func (h *adminApi) stats(ctx echo.Context) error {
	rctx := ctx.Request().Context()

	totalUsers, err := h.usrSvc.Count(rctx)
	if err != nil {
		return errors.Wrap(err, "counting users")
	}
	totalSubjects, err := h.contentSvc.CountSubjects(rctx)
	if err != nil {
		return errors.Wrap(err, "counting subjects")
	}

	users, err := h.usrSvc.Query(rctx, nil, core.DBOrdering{Field: "last_login", Ascending: false})
	if err != nil {
		return errors.Wrap(err, "querying users")
	}
	recent := make([]RecentLogin, 0, recentLoginCount)
	for _, usr := range users {
		if !usr.LastLogin.Valid {
			break // users who never logged in sort last
		}
		recent = append(recent, RecentLogin{Username: usr.Username, LastLogin: usr.LastLogin.Time})
		if len(recent) == recentLoginCount {
			break
		}
	}

	return ctx.JSON(http.StatusOK, StatsResponse{
		TotalUsers:     totalUsers,
		TotalSubjects:  totalSubjects,
		ActiveSessions: h.tracker.Count(),
		RecentLogins:   recent,
	})
}

func (h *adminApi) sessions(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, h.tracker.All())
}

func (h *adminApi) terminateSession(ctx echo.Context) error {
	if !h.tracker.Terminate(ctx.Param("id")) {
		return errHttpNotFound
	}
	return ctx.NoContent(http.StatusNoContent)
}

type (
	StatsResponse struct {
		TotalUsers     int           `json:"total_users"`
		TotalSubjects  int           `json:"total_subjects"`
		ActiveSessions int           `json:"active_sessions"`
		RecentLogins   []RecentLogin `json:"recent_logins"`
	}

	RecentLogin struct {
		Username  string    `json:"username"`
		LastLogin time.Time `json:"last_login"`
	}
)
