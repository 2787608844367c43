package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/masjidku/backend/core/announcement"
)

type announcementApi struct {
	svc announcement.Service
}

func registerAnnouncementAPI(g *echo.Group, jwt echo.MiddlewareFunc, gd *routeGuard, svc announcement.Service) {
	api := announcementApi{svc: svc}

	ag := g.Group("/announcements", jwt)

	mg := ag.Group("", gd.protect(anyMember()))
	mg.GET("", api.query)

	adm := ag.Group("", gd.protect(adminOnly()))
	adm.POST("", api.publish)
	adm.GET("/all", api.queryAll)
	adm.PUT("/:id/active", api.setActive)
	adm.DELETE("/:id", api.destroy)
}

func (api *announcementApi) publish(ctx echo.Context) error {
	var data announcement.NewAnnouncement
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewAnnouncement")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	a, err := api.svc.Publish(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "publishing announcement")
	}
	return ctx.JSON(http.StatusCreated, a)
}

func (api *announcementApi) query(ctx echo.Context) error {
	announcements, err := api.svc.QueryActive(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	if announcements == nil {
		announcements = []announcement.Announcement{}
	}
	return ctx.JSON(http.StatusOK, announcements)
}

func (api *announcementApi) queryAll(ctx echo.Context) error {
	announcements, err := api.svc.QueryAll(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "querying announcements")
	}
	if announcements == nil {
		announcements = []announcement.Announcement{}
	}
	return ctx.JSON(http.StatusOK, announcements)
}

func (api *announcementApi) setActive(ctx echo.Context) error {
	var data struct {
		IsActive *bool `json:"is_active" validate:"required"`
	}
	if err := ctx.Bind(&data); err != nil || data.IsActive == nil {
		return errors.Wrap(err, "binding is_active")
	}

	a, err := api.svc.SetActive(ctx.Request().Context(), ctx.Param("id"), *data.IsActive)
	if err != nil {
		if errors.Cause(err) == announcement.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "setting announcement active")
	}
	return ctx.JSON(http.StatusOK, a)
}

func (api *announcementApi) destroy(ctx echo.Context) error {
	if err := api.svc.Delete(ctx.Request().Context(), ctx.Param("id")); err != nil {
		if errors.Cause(err) == announcement.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "deleting announcement")
	}
	return ctx.NoContent(http.StatusNoContent)
}
