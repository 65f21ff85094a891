package server

import (
	"time"

	"github.com/gin-gonic/gin"
	dashboarddomain "github.com/smallbiznis/subsight/internal/dashboard/domain"
)

// parseAsOf reads the optional as_of query parameter. Missing means today.
func parseAsOf(c *gin.Context) (time.Time, error) {
	return dashboarddomain.ParseAsOf(c.Query("as_of"))
}
