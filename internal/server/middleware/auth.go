package middleware

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/JeanneIrsaeva/library-tracker/pkg/identity"
	"github.com/gin-gonic/gin"
)

// ClaimsKey is the gin context key the verified claims are stored under.
const ClaimsKey = "claims"

type TokenVerifier interface {
	Verify(token string) (*identity.Claims, error)
}

type AuthMiddleware struct {
	logger   *slog.Logger
	verifier TokenVerifier
}

func NewAuthMiddleware(logger *slog.Logger, verifier TokenVerifier) *AuthMiddleware {
	return &AuthMiddleware{
		logger:   logger.With(slog.String("component", "auth_middleware")),
		verifier: verifier,
	}
}

// RequireAuth rejects requests without a valid "Authorization: Bearer"
// access token and records the claims in the request metadata.
func (a *AuthMiddleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqMeta, ok := ReqMetadataFrom(r.Context())
		if !ok {
			reqMeta = &RequestMetadata{}
		}

		header := r.Header.Get("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			unauthorized(w, "Not authenticated")
			return
		}

		claims, err := a.verifier.Verify(strings.TrimSpace(token))
		if err != nil {
			a.logger.Warn("Invalid bearer token presented", slog.String("ip", reqMeta.IP), slog.Any("error", err))
			unauthorized(w, "Invalid token")
			return
		}

		reqMeta.Claims = claims
		ctx := r.Context()
		if !ok {
			ctx = withMetadata(ctx, reqMeta)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func unauthorized(w http.ResponseWriter, detail string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", "Bearer")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"detail": detail})
}

// GinRequireAuth adapts the net/http AuthMiddleware to Gin.
func GinRequireAuth(auth *AuthMiddleware) gin.HandlerFunc {
	return func(c *gin.Context) {
		// Bridge handler to allow net/http middleware execution
		next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.Request = r
			if reqMeta, ok := ReqMetadataFrom(r.Context()); ok {
				c.Set(ClaimsKey, reqMeta.Claims)
			}
			c.Next()
		})

		auth.RequireAuth(next).ServeHTTP(c.Writer, c.Request)

		// If auth middleware already handled the response, stop Gin chain
		if c.Writer.Written() {
			c.Abort()
		}
	}
}

// ClaimsFrom returns the claims GinRequireAuth stored on the context.
func ClaimsFrom(c *gin.Context) (*identity.Claims, bool) {
	v, ok := c.Get(ClaimsKey)
	if !ok {
		return nil, false
	}
	claims, ok := v.(*identity.Claims)
	return claims, ok && claims != nil
}
