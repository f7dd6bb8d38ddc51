package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	apperrors "driveo/pkg/errors"
	httputil "driveo/pkg/http"
	"driveo/pkg/model"
	"driveo/pkg/token"

	"github.com/julienschmidt/httprouter"
)

const claimsKey contextKey = "claims"

type TokenParser interface {
	Parse(raw, typ string) (*token.Claims, error)
}

// Principal is the authenticated caller attached to the request context.
type Principal struct {
	UserID string
	Email  string
	Role   string
}

func (p Principal) HasRole(roles ...string) bool {
	return slices.Contains(roles, p.Role)
}

func (p Principal) Actor() model.Actor {
	return model.Actor{UserID: p.UserID, Role: p.Role}
}

// ActorFromContext returns the caller, or the anonymous actor on public routes.
func ActorFromContext(ctx context.Context) model.Actor {
	p, _ := PrincipalFromContext(ctx)
	return p.Actor()
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, claimsKey, p)
}

func PrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(claimsKey).(Principal)
	return p, ok
}

// Authenticator guards httprouter routes with bearer access tokens.
type Authenticator struct {
	tokens TokenParser
}

func NewAuthenticator(tokens TokenParser) *Authenticator {
	return &Authenticator{tokens: tokens}
}

// Require rejects requests without a valid access token. With roles given, the
// caller's role must be one of them.
func (a *Authenticator) Require(next httprouter.Handle, roles ...string) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		principal, err := a.authenticate(r)
		if err != nil {
			_ = httputil.WriteError(w, err)
			return
		}
		if len(roles) > 0 && !principal.HasRole(roles...) {
			_ = httputil.WriteError(w, apperrors.Forbidden("You do not have permission to perform this action"))
			return
		}
		next(w, r.WithContext(WithPrincipal(r.Context(), principal)), ps)
	}
}

// Optional attaches the principal when a valid token is present and never rejects.
func (a *Authenticator) Optional(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		if principal, err := a.authenticate(r); err == nil {
			r = r.WithContext(WithPrincipal(r.Context(), principal))
		}
		next(w, r, ps)
	}
}

func (a *Authenticator) authenticate(r *http.Request) (Principal, error) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return Principal{}, apperrors.Unauthorized("Missing authorization header")
	}
	scheme, raw, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") || strings.TrimSpace(raw) == "" {
		return Principal{}, apperrors.Unauthorized("Invalid authorization format")
	}

	claims, err := a.tokens.Parse(strings.TrimSpace(raw), token.TypeAccess)
	if err != nil {
		return Principal{}, apperrors.Unauthorized("Invalid or expired token")
	}
	return Principal{UserID: claims.UserID(), Email: claims.Email, Role: claims.Role}, nil
}
