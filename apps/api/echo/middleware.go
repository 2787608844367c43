package echoapi

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/masjidku/backend/core"
	"github.com/masjidku/backend/core/auth"
	"github.com/masjidku/backend/core/authstate"
	"github.com/masjidku/backend/core/guard"
	"github.com/masjidku/backend/core/member"
)

const identityContextKey = "identity"

// routeGuard evaluates a declared route policy against the caller's resolved
// authorization state on every request. Nothing is cached between requests:
// a role or approval change made elsewhere takes effect on the next one.
type routeGuard struct {
	conf     *core.Config
	resolver *member.Resolver
}

func newGuard(conf *core.Config, resolver *member.Resolver) *routeGuard {
	return &routeGuard{conf: conf, resolver: resolver}
}

func (g *routeGuard) protect(policy guard.Policy) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}

			rctx, cancel := context.WithTimeout(ctx.Request().Context(), g.conf.Server.ResolveTimeout)
			defer cancel()
			identity := g.resolver.Resolve(rctx, claims.Subject)

			st := authstate.State{
				Principal: &auth.Principal{ID: claims.Subject, Email: claims.Email},
				Role:      identity.Role,
				Profile:   identity.Profile,
			}
			if identity.Role != nil {
				st.Phase = authstate.Authorized
			} else {
				st.Phase = authstate.Unauthorized
			}

			switch d := guard.Evaluate(st, policy); d.Action {
			case guard.Allow:
				ctx.Set(identityContextKey, identity)
				return next(ctx)
			case guard.RedirectLogin, guard.SignOutRedirectLogin:
				// nothing server-side to clear on forced sign-out; the client
				// discards its token on landing at the sign-in page
				return ctx.Redirect(http.StatusSeeOther, d.Target)
			case guard.RedirectHome:
				return ctx.Redirect(http.StatusSeeOther, d.Target)
			}
			return errHttpForbidden
		}
	}
}

func getContextIdentity(ctx echo.Context) member.Identity {
	identity, _ := ctx.Get(identityContextKey).(member.Identity)
	return identity
}

// common policies

func adminOnly() guard.Policy {
	return guard.Policy{AllowedRoles: []member.Role{member.RoleAdmin}}
}

func financeOnly() guard.Policy {
	return guard.Policy{AllowedRoles: []member.Role{member.RoleAdmin, member.RoleBendahara}}
}

func anyMember() guard.Policy {
	return guard.Policy{AllowedRoles: member.AllRoles, RequireApproval: true}
}
