package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/middleware"
)

const anonymousUser = "anonymous"

// requesterID identifies the caller for job ownership and logs. Routes run
// without JWT when auth is disabled, so a missing claim is not an error.
func requesterID(c *gin.Context) string {
	claims, ok := middleware.CurrentUser(c)
	if !ok || claims == nil || claims.UserID == "" {
		return anonymousUser
	}
	return claims.UserID
}
