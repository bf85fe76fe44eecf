package middleware

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// CORSConfig defines which local tools may call the debug surface.
type CORSConfig struct {
	AllowOrigins []string
	MaxAge       time.Duration
}

// DefaultCORSConfig allows loopback dashboards only.
func DefaultCORSConfig() CORSConfig {
	return CORSConfig{
		AllowOrigins: []string{"http://localhost", "http://127.0.0.1"},
		MaxAge:       time.Hour,
	}
}

// CORS creates a CORS middleware for the debug endpoints. Requests from a
// loopback origin on any port are accepted when the port-less origin is listed.
func CORS(cfg CORSConfig) gin.HandlerFunc {
	allowed := make(map[string]struct{}, len(cfg.AllowOrigins))
	for _, o := range cfg.AllowOrigins {
		allowed[o] = struct{}{}
	}

	return cors.New(cors.Config{
		AllowOriginFunc: func(origin string) bool {
			_, ok := allowed[stripPort(origin)]
			return ok
		},
		AllowMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowHeaders: []string{"Content-Type", "Accept", "Origin"},
		MaxAge:       cfg.MaxAge,
	})
}

// stripPort removes a trailing :port from an origin
func stripPort(origin string) string {
	for i := len(origin) - 1; i >= 0; i-- {
		switch c := origin[i]; {
		case c == ':':
			if i+1 < len(origin) {
				return origin[:i]
			}
			return origin
		case c < '0' || c > '9':
			return origin
		}
	}
	return origin
}
