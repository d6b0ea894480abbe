package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/audiodrop/musicbox/middleware"
)

// Index renders the landing page.
func Index(ctx *gin.Context) {
	ctx.HTML(http.StatusOK, "index.html", gin.H{
		"Authenticated": middleware.CurrentIdentity(ctx).IsAuthenticated(),
	})
}
