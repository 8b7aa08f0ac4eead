package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/mwinyimoha/darasa/core/content"
)

type contentApi struct {
	svc content.Service
}

func registerContentAPI(g *echo.Group, deps *ServerDeps) {
	api := contentApi{svc: deps.ContentSvc}

	sg := g.Group("/subjects")
	sg.GET("", api.query)
	sg.POST("", api.create, adminMiddleware())
	sg.GET("/:id", api.retrieve)
	sg.PUT("/:id", api.update, adminMiddleware())
	sg.DELETE("/:id", api.destroy, adminMiddleware())

	sg.POST("/:id/sections", api.createSection, adminMiddleware())
	sg.PUT("/:id/sections/:sid", api.updateSection, adminMiddleware())
	sg.DELETE("/:id/sections/:sid", api.destroySection, adminMiddleware())

	sg.POST("/:id/sections/:sid/topics", api.createTopic, adminMiddleware())
	sg.PUT("/:id/sections/:sid/topics/:tid", api.updateTopic, adminMiddleware())
	sg.DELETE("/:id/sections/:sid/topics/:tid", api.destroyTopic, adminMiddleware())

	sg.POST("/:id/sections/:sid/topics/:tid/blocks", api.createBlock, adminMiddleware())
	sg.PUT("/:id/sections/:sid/topics/:tid/blocks/:bid", api.updateBlock, adminMiddleware())
	sg.DELETE("/:id/sections/:sid/topics/:tid/blocks/:bid", api.destroyBlock, adminMiddleware())

	sg.POST("/:id/enroll", api.enroll)
	sg.DELETE("/:id/enroll", api.unenroll)
	sg.PUT("/:id/progress", api.setProgress)

	g.GET("/me/enrollments", api.myEnrollments)
}

// Subject handlers

func (api *contentApi) query(ctx echo.Context) error {
	filter := new(content.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return errors.Wrap(err, "binding to QueryFilter")
	}
	filter.Clean()

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	// regular users only ever see published subjects
	if !claims.IsAdmin {
		filter.Status = content.StatusPublished
	}

	ordering := new(Ordering)
	ordering.Bind(ctx)
	pg := new(Pagination)
	pg.Bind(ctx)

	subjects, err := api.svc.QuerySubjects(ctx.Request().Context(), filter, ordering.Orderings...)
	if err != nil {
		return errors.Wrap(err, "querying subjects")
	}
	if subjects == nil {
		subjects = []content.Subject{}
	}

	lo, hi := pg.bounds(len(subjects))
	return ctx.JSON(http.StatusOK, newPaginated(*pg, subjects[lo:hi], len(subjects)))
}

func (api *contentApi) create(ctx echo.Context) error {
	var data content.NewSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSubject")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sub, err := api.svc.CreateSubject(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "creating subject")
	}
	return ctx.JSON(http.StatusCreated, sub)
}

func (api *contentApi) retrieve(ctx echo.Context) error {
	sub, err := api.svc.GetSubject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return errors.Wrap(err, "finding subject")
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	// drafts do not exist as far as regular users are concerned
	if !claims.IsAdmin && !sub.IsPublished() {
		return errHttpNotFound
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *contentApi) update(ctx echo.Context) error {
	var data content.UpdateSubject
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSubject")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sub, err := api.svc.UpdateSubject(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "updating subject")
	}
	return ctx.JSON(http.StatusOK, sub)
}

func (api *contentApi) destroy(ctx echo.Context) error {
	if err := api.svc.DeleteSubject(ctx.Request().Context(), ctx.Param("id")); err != nil {
		return errors.Wrap(err, "deleting subject")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Section handlers

func (api *contentApi) createSection(ctx echo.Context) error {
	var data content.NewSection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewSection")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sec, err := api.svc.AddSection(ctx.Request().Context(), ctx.Param("id"), data)
	if err != nil {
		return errors.Wrap(err, "adding section")
	}
	return ctx.JSON(http.StatusCreated, sec)
}

func (api *contentApi) updateSection(ctx echo.Context) error {
	var data content.UpdateSection
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateSection")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	sec, err := api.svc.UpdateSection(ctx.Request().Context(), ctx.Param("id"), ctx.Param("sid"), data)
	if err != nil {
		return errors.Wrap(err, "updating section")
	}
	return ctx.JSON(http.StatusOK, sec)
}

func (api *contentApi) destroySection(ctx echo.Context) error {
	if err := api.svc.RemoveSection(ctx.Request().Context(), ctx.Param("id"), ctx.Param("sid")); err != nil {
		return errors.Wrap(err, "removing section")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Topic handlers

func (api *contentApi) createTopic(ctx echo.Context) error {
	var data content.NewTopic
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewTopic")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	top, err := api.svc.AddTopic(ctx.Request().Context(), ctx.Param("id"), ctx.Param("sid"), data)
	if err != nil {
		return errors.Wrap(err, "adding topic")
	}
	return ctx.JSON(http.StatusCreated, top)
}

func (api *contentApi) updateTopic(ctx echo.Context) error {
	var data content.UpdateTopic
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateTopic")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	top, err := api.svc.UpdateTopic(ctx.Request().Context(), ctx.Param("id"), ctx.Param("sid"), ctx.Param("tid"), data)
	if err != nil {
		return errors.Wrap(err, "updating topic")
	}
	return ctx.JSON(http.StatusOK, top)
}

func (api *contentApi) destroyTopic(ctx echo.Context) error {
	if err := api.svc.RemoveTopic(ctx.Request().Context(), ctx.Param("id"), ctx.Param("sid"), ctx.Param("tid")); err != nil {
		return errors.Wrap(err, "removing topic")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Block handlers

func (api *contentApi) createBlock(ctx echo.Context) error {
	var data content.NewContentBlock
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewContentBlock")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	blk, err := api.svc.AddBlock(ctx.Request().Context(), ctx.Param("id"), ctx.Param("sid"), ctx.Param("tid"), data)
	if err != nil {
		return errors.Wrap(err, "adding content block")
	}
	return ctx.JSON(http.StatusCreated, blk)
}

func (api *contentApi) updateBlock(ctx echo.Context) error {
	var data content.UpdateContentBlock
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateContentBlock")
	}

	rctx := ctx.Request().Context()
	orig, err := api.svc.GetBlock(rctx, ctx.Param("id"), ctx.Param("sid"), ctx.Param("tid"), ctx.Param("bid"))
	if err != nil {
		return errors.Wrap(err, "finding content block")
	}
	if err := data.Validate(orig); err != nil {
		return err
	}

	blk, err := api.svc.UpdateBlock(rctx, ctx.Param("id"), ctx.Param("sid"), ctx.Param("tid"), ctx.Param("bid"), data)
	if err != nil {
		return errors.Wrap(err, "updating content block")
	}
	return ctx.JSON(http.StatusOK, blk)
}

func (api *contentApi) destroyBlock(ctx echo.Context) error {
	if err := api.svc.RemoveBlock(ctx.Request().Context(), ctx.Param("id"), ctx.Param("sid"), ctx.Param("tid"), ctx.Param("bid")); err != nil {
		return errors.Wrap(err, "removing content block")
	}
	return ctx.NoContent(http.StatusNoContent)
}

// Enrollment handlers

func (api *contentApi) enroll(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	enr, err := api.svc.Enroll(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "enrolling")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *contentApi) unenroll(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	if err := api.svc.Unenroll(ctx.Request().Context(), ctx.Param("id"), claims.Subject); err != nil {
		return errors.Wrap(err, "unenrolling")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *contentApi) setProgress(ctx echo.Context) error {
	var data content.SetProgress
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to SetProgress")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	enr, err := api.svc.SetProgress(ctx.Request().Context(), ctx.Param("id"), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "setting progress")
	}
	return ctx.JSON(http.StatusOK, enr)
}

func (api *contentApi) myEnrollments(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	enrollments, err := api.svc.UserEnrollments(ctx.Request().Context(), claims.Subject)
	if err != nil {
		return errors.Wrap(err, "querying enrollments")
	}
	if enrollments == nil {
		enrollments = []content.UserEnrollment{}
	}

	var avg float64
	for _, enr := range enrollments {
		avg += enr.Enrollment.Progress
	}
	if len(enrollments) > 0 {
		avg /= float64(len(enrollments))
	}

	return ctx.JSON(http.StatusOK, EnrollmentsResponse{
		Items:           enrollments,
		Count:           len(enrollments),
		AverageProgress: avg,
	})
}

// EnrollmentsResponse lists a user's enrollments with their overall average
// progress across subjects.
type EnrollmentsResponse struct {
	Items           []content.UserEnrollment `json:"items"`
	Count           int                      `json:"count"`
	AverageProgress float64                  `json:"average_progress"`
}
