package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/audiodrop/musicbox/utils"
)

// BodyLimit caps request bodies at max bytes. Requests announcing a larger body are refused
// up front; others fail on read once the cap is crossed.
func BodyLimit(max int64) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if max <= 0 || ctx.Request.Body == nil {
			ctx.Next()
			return
		}
		if ctx.Request.ContentLength > max {
			utils.AbortError(ctx, http.StatusRequestEntityTooLarge, 41300, "request body too large")
			return
		}
		ctx.Request.Body = http.MaxBytesReader(ctx.Writer, ctx.Request.Body, max)
		ctx.Next()
	}
}
