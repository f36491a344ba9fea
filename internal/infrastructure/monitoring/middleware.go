package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
)

// UnmatchedRoute labels requests that matched no route, keeping label
// cardinality bounded.
const UnmatchedRoute = "unmatched"

// Middleware creates a Gin middleware for metrics collection
func Middleware(reg *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		defer func() {
			status := c.Writer.Status()
			r := recover()
			if r != nil {
				status = http.StatusInternalServerError
			}

			route := c.FullPath()
			if route == "" {
				route = UnmatchedRoute
			}
			elapsed := float64(time.Since(start)) / float64(time.Millisecond)
			reg.ObserveRequest(route, StatusClass(status), elapsed)

			if r != nil {
				panic(r)
			}
		}()

		// Process request
		c.Next()
	}
}

// Handler serves the metrics snapshot
func (r *Registry) Handler() gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := r.Snapshot()
		if err != nil {
			c.String(http.StatusInternalServerError, err.Error())
			return
		}
		c.Data(http.StatusOK, ContentType, []byte(body))
	}
}

// StatusClass buckets an HTTP status code, e.g. 404 becomes "4xx".
func StatusClass(code int) string {
	if code < 100 || code > 599 {
		return "unknown"
	}
	return strconv.Itoa(code/100) + "xx"
}
