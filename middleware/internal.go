package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/cppla/jobpoints/utils"
)

// InternalTokenHeader carries the shared secret of service-to-service calls.
const InternalTokenHeader = "X-Internal-Token"

// InternalOnly admits requests presenting the configured internal token.
// An empty token disables the internal endpoints entirely.
func InternalOnly(token string) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if token == "" {
			utils.Abort(ctx, http.StatusForbidden, 40320, "internal endpoints disabled")
			return
		}
		got := ctx.GetHeader(InternalTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			utils.Abort(ctx, http.StatusUnauthorized, 40120, "invalid internal token")
			return
		}
		ctx.Next()
	}
}
