package jobs

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func StatusHandler(r *Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"jobs": r.Status()})
	}
}

// RunJobHandler triggers one job by name. Unknown names are a 404 so typos
// surface immediately.
func RunJobHandler(r *Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		result := r.RunJob(c.Request.Context(), c.Param("name"))
		if !result.Success && result.Error == "unknown job" {
			c.JSON(http.StatusNotFound, result)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
