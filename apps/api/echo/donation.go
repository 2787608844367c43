package echoapi

import (
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/masjidku/backend/core/donation"
	"github.com/masjidku/backend/core/member"
)

type donationApi struct {
	svc donation.Service
}

func registerDonationAPI(g *echo.Group, jwt echo.MiddlewareFunc, gd *routeGuard, svc donation.Service) {
	api := donationApi{svc: svc}

	dg := g.Group("/donations", jwt)

	// any approved member may submit and list
	mg := dg.Group("", gd.protect(anyMember()))
	mg.POST("", api.submit)
	mg.GET("", api.query)

	// verification is a treasurer operation
	fg := dg.Group("", gd.protect(financeOnly()))
	fg.GET("/totals", api.totals)
	fg.POST("/:id/verify", api.verify)
	fg.POST("/:id/reject", api.reject)
}

func (api *donationApi) submit(ctx echo.Context) error {
	var data donation.NewDonation
	if err := ctx.Bind(&data); err != nil {
		return errors.Wrap(err, "binding to NewDonation")
	}
	if err := data.Validate(); err != nil {
		return err
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	d, err := api.svc.Submit(ctx.Request().Context(), claims.Subject, data)
	if err != nil {
		return errors.Wrap(err, "submitting donation")
	}
	return ctx.JSON(http.StatusCreated, d)
}

// query lists the caller's own donations; admin and bendahara see all and may
// narrow with the filter.
func (api *donationApi) query(ctx echo.Context) error {
	filter := new(donation.QueryFilter)
	if err := ctx.Bind(filter); err != nil {
		return ctx.JSON(http.StatusOK, []donation.Donation{})
	}

	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}
	identity := getContextIdentity(ctx)
	if identity.Role == nil || *identity.Role == member.RoleJamaah {
		filter.MemberID = claims.Subject
	}

	donations, err := api.svc.Filter(ctx.Request().Context(), *filter)
	if err != nil {
		return errors.Wrap(err, "querying donations")
	}
	if donations == nil {
		donations = []donation.Donation{}
	}
	return ctx.JSON(http.StatusOK, donations)
}

func (api *donationApi) verify(ctx echo.Context) error {
	return api.setStatus(ctx, donation.StatusVerified)
}

func (api *donationApi) reject(ctx echo.Context) error {
	return api.setStatus(ctx, donation.StatusRejected)
}

func (api *donationApi) setStatus(ctx echo.Context, status donation.Status) error {
	claims, err := getContextClaims(ctx)
	if err != nil {
		return errors.Wrap(err, "getting context claims")
	}

	var d donation.Donation
	switch status {
	case donation.StatusVerified:
		d, err = api.svc.Verify(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	default:
		d, err = api.svc.Reject(ctx.Request().Context(), ctx.Param("id"), claims.Subject)
	}
	if err != nil {
		if errors.Cause(err) == donation.ErrNotFound {
			return errHttpNotFound
		}
		return errors.Wrap(err, "setting donation status")
	}
	return ctx.JSON(http.StatusOK, d)
}

func (api *donationApi) totals(ctx echo.Context) error {
	totals, err := api.svc.Totals(ctx.Request().Context())
	if err != nil {
		return errors.Wrap(err, "summing donations")
	}
	return ctx.JSON(http.StatusOK, totals)
}
