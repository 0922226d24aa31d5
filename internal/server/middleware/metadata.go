package middleware

import (
	"context"
	"net"
	"net/http"

	"github.com/JeanneIrsaeva/library-tracker/pkg/identity"
	"github.com/gin-gonic/gin"
)

type contextKey string

const reqMetaKey = contextKey("r-metadata")

type RequestMetadata struct {
	IP     string
	Claims *identity.Claims // set by the auth middleware
}

func ReqMetadataFrom(ctx context.Context) (*RequestMetadata, bool) {
	reqMeta, ok := ctx.Value(reqMetaKey).(*RequestMetadata)
	return reqMeta, ok
}

// creates and injects the RequestMetadata struct into the request.
// **This should be the first middleware in the chain.**
func RequestMetadataMiddleware() Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			reqMeta := &RequestMetadata{}

			ip, _, err := net.SplitHostPort(r.RemoteAddr)
			if err != nil {
				ip = r.RemoteAddr // Fallback
			}
			reqMeta.IP = ip
			ctx := withMetadata(r.Context(), reqMeta)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func withMetadata(ctx context.Context, reqMeta *RequestMetadata) context.Context {
	return context.WithValue(ctx, reqMetaKey, reqMeta)
}

// GinRequestMetadata injects RequestMetadata for gin routes.
func GinRequestMetadata() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqMeta := &RequestMetadata{IP: c.ClientIP()}
		c.Request = c.Request.WithContext(withMetadata(c.Request.Context(), reqMeta))
		c.Next()
	}
}
