package echoapi

import (
	"net/http"
	"sort"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/masjidku/backend/core/member"
)

type memberApi struct {
	svc member.Service
}

func registerMemberAPI(g *echo.Group, jwt echo.MiddlewareFunc, gd *routeGuard, svc member.Service) {
	api := memberApi{svc: svc}

	mg := g.Group("/members")

	// un-authed endpoints
	mg.POST("/register", api.register)

	// authed endpoints
	ag := mg.Group("", jwt)

	// self endpoints; any role behind the approval gate
	sg := ag.Group("/me", gd.protect(anyMember()))
	sg.GET("", api.me)
	sg.GET("/profile", api.retrieveProfile)
	sg.PUT("/profile", api.updateProfile)

	// admin endpoints
	adm := ag.Group("", gd.protect(adminOnly()))
	adm.GET("", api.query)
	adm.DELETE("", api.destroyMultiple)
	adm.GET("/roles", api.queryRoles)
	adm.POST("/:id/approve", api.approve)
	adm.POST("/:id/reject", api.reject)
	adm.PUT("/:id/role", api.assignRole)
}

// Handlers

func (api *memberApi) register(ctx echo.Context) error {
	var data member.NewMember
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewMember")
	}
	if err := data.Validate(api.svc); err != nil {
		return err
	}

	m, err := api.svc.Register(ctx.Request().Context(), data)
	if err != nil {
		return errors.Wrap(err, "registering member")
	}
	return ctx.JSON(http.StatusCreated, m)
}

func (api *memberApi) me(ctx echo.Context) error {
	m, err := getContextMember(ctx, api.svc)
	if err != nil {
		return errors.Wrap(err, "getting context member")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *memberApi) retrieveProfile(ctx echo.Context) error {
	identity := getContextIdentity(ctx)
	if identity.Profile != nil {
		return ctx.JSON(http.StatusOK, identity.Profile)
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	p, err := api.svc.GetProfile(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == member.ErrProfileNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *memberApi) updateProfile(ctx echo.Context) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	orig, err := api.svc.GetProfile(ctx.Request().Context(), claims.Subject)
	if err != nil {
		if errors.Cause(err) == member.ErrProfileNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "finding profile")
	}

	var data member.UpdateProfile
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to UpdateProfile")
	}
	if err := data.Validate(orig); err != nil {
		return err
	}

	p, err := api.svc.UpdateProfile(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "updating profile")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *memberApi) query(ctx echo.Context) error {
	filter := new(member.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []member.Member{})
	}
	filter.Clean()

	members, err := api.svc.Filter(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying members")
	}
	if members == nil {
		members = []member.Member{}
	}
	return ctx.JSON(http.StatusOK, members)
}

func (api *memberApi) approve(ctx echo.Context) error {
	p, err := api.svc.Approve(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == member.ErrProfileNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "approving member")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *memberApi) reject(ctx echo.Context) error {
	p, err := api.svc.Reject(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		if errors.Cause(err) == member.ErrProfileNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "rejecting member")
	}
	return ctx.JSON(http.StatusOK, p)
}

func (api *memberApi) assignRole(ctx echo.Context) error {
	var data member.AssignRole
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to AssignRole")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	m, err := api.svc.AssignRole(ctx.Request().Context(), ctx.Param("id"), data.Role)
	if err != nil {
		if errors.Cause(err) == member.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "assigning role")
	}
	return ctx.JSON(http.StatusOK, m)
}

func (api *memberApi) destroyMultiple(ctx echo.Context) error {
	var query DestroyMultipleRequest
	if err := ctx.Bind(&query); err != nil {
		return errors.Wrap(err, "binding to DestroyMultipleRequest")
	}
	if query.IDs == nil {
		return ctx.NoContent(http.StatusNoContent)
	}

	// ctxMember cannot delete themselves
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	sort.Strings(query.IDs)
	if i := sort.SearchStrings(query.IDs, claims.Subject); i < len(query.IDs) {
		if match := query.IDs[i]; claims.Subject == match {
			return errHttpForbidden
		}
	}

	if err := api.svc.Delete(ctx.Request().Context(), query.IDs...); err != nil {
		return errors.Wrap(err, "deleting members")
	}
	return ctx.NoContent(http.StatusNoContent)
}

func (api *memberApi) queryRoles(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, member.AllRoles)
}

type DestroyMultipleRequest struct {
	IDs []string `query:"id"`
}
