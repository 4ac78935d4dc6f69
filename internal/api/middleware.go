package api

import (
	"net/http"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/celerix-dev/celerix-checkin/pkg/schema"
)

// Context keys set by Auth.
const (
	ContextClaimsKey = "claims"
	ContextTokenKey  = "token"
)

// Auth requires a valid bearer token and stores its claims in the context.
func Auth(sessions Sessions) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearer(c)
		if !ok {
			fail(c, errMissingToken)
			return
		}
		claims, err := sessions.Authenticate(token)
		if err != nil {
			fail(c, err)
			return
		}
		c.Set(ContextClaimsKey, claims)
		c.Set(ContextTokenKey, token)
		c.Next()
	}
}

// RequireRole rejects authenticated requests whose role is not role. It must run
// after Auth.
func RequireRole(role schema.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := claimsFrom(c)
		if claims == nil || claims.Role != role {
			fail(c, errForbidden)
			return
		}
		c.Next()
	}
}

func bearer(c *gin.Context) (string, bool) {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", false
	}
	token := strings.TrimSpace(parts[1])
	return token, token != ""
}

func claimsFrom(c *gin.Context) *schema.TokenClaims {
	v, ok := c.Get(ContextClaimsKey)
	if !ok {
		return nil
	}
	claims, _ := v.(*schema.TokenClaims)
	return claims
}

type visitor struct {
	limiter *rate.Limiter
	seen    time.Time
}

// RateLimit applies a per client IP token bucket of perMinute requests.
func RateLimit(perMinute int) gin.HandlerFunc {
	if perMinute < 1 {
		perMinute = 1
	}
	limit := rate.Every(time.Minute / time.Duration(perMinute))
	burst := perMinute/2 + 1

	var (
		mu       sync.Mutex
		visitors = map[string]*visitor{}
	)

	return func(c *gin.Context) {
		now := time.Now()
		ip := c.ClientIP()

		mu.Lock()
		for k, v := range visitors {
			if now.Sub(v.seen) > 5*time.Minute {
				delete(visitors, k)
			}
		}
		v, ok := visitors[ip]
		if !ok {
			v = &visitor{limiter: rate.NewLimiter(limit, burst)}
			visitors[ip] = v
		}
		v.seen = now
		allowed := v.limiter.AllowN(now, 1)
		mu.Unlock()

		if !allowed {
			fail(c, errRateLimited)
			return
		}
		c.Next()
	}
}

// Logger logs every request with zap.
func Logger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		c.Next()

		fields := []zap.Field{
			zap.Int("status", c.Writer.Status()),
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("ip", c.ClientIP()),
			zap.Duration("latency", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			log.Error(c.Errors.String(), fields...)
			return
		}
		log.Info("request", fields...)
	}
}

// Recovery turns panics into 500 responses and logs them.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.Error("panic recovered",
					zap.Any("error", err),
					zap.String("path", c.Request.URL.Path),
					zap.ByteString("stack", debug.Stack()),
				)
				c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			}
		}()
		c.Next()
	}
}
