package middleware

import (
	"errors"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/glory2yahpub/marketplace/internal/api/handler/v1/response"
	"github.com/glory2yahpub/marketplace/internal/domain"
	"github.com/glory2yahpub/marketplace/internal/pkg/jwthelper"
)

const (
	identityKey = "identity"
	roleKey     = "role"
)

var (
	errMissingToken      = errors.New("missing bearer token")
	errUserAgentMismatch = errors.New("token was issued to another client")
	errAdminOnly         = errors.New("admin role required")
)

type Authenticator struct {
	key []byte
}

func NewAuthenticator(signingKey string) *Authenticator {
	return &Authenticator{
		key: []byte(signingKey),
	}
}

// VerifyJWT accepts a bearer token from the Authorization header, or from the
// token query parameter for websocket upgrades where browsers cannot set headers.
func (a *Authenticator) VerifyJWT() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		raw := bearerToken(ctx)
		if raw == "" {
			response.RenderErr(ctx, response.ErrUnauthenticated(errMissingToken))
			return
		}

		claims, err := jwthelper.ParseToken(a.key, raw)
		if err != nil {
			response.RenderErr(ctx, response.ErrUnauthenticated(err))
			return
		}
		if claims.UserAgent != ctx.Request.UserAgent() {
			response.RenderErr(ctx, response.ErrUnauthenticated(errUserAgentMismatch))
			return
		}

		ctx.Set(identityKey, claims.Identity)
		ctx.Set(roleKey, claims.Role)
		ctx.Next()
	}
}

// RequireAdmin must run after VerifyJWT.
func RequireAdmin() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if !IsAdmin(ctx) {
			response.RenderErr(ctx, response.ErrPermissionDenied(errAdminOnly))
			return
		}
		ctx.Next()
	}
}

func Identity(ctx *gin.Context) string {
	return ctx.GetString(identityKey)
}

func IsAdmin(ctx *gin.Context) bool {
	return ctx.GetString(roleKey) == string(domain.RoleAdmin)
}

func bearerToken(ctx *gin.Context) string {
	header := ctx.GetHeader("Authorization")
	if token, ok := strings.CutPrefix(header, "Bearer "); ok {
		return strings.TrimSpace(token)
	}

	return ctx.Query("token")
}
