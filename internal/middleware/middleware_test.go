package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spin-earn-backend/internal/config"
	"spin-earn-backend/internal/services"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newJWT() *services.JWTService {
	return services.NewJWTService(&config.Config{JWTSecret: "secret", JWTExpiry: time.Hour})
}

func protectedRouter(jwt *services.JWTService) *gin.Engine {
	r := gin.New()
	r.Use(AuthMiddleware(jwt))
	r.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"user_id": UserID(c), "admin": IsAdmin(c)})
	})
	r.GET("/admin", AdminOnly(), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func do(r http.Handler, method, target, auth string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, nil)
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestAuthMiddleware(t *testing.T) {
	jwt := newJWT()
	r := protectedRouter(jwt)
	token, _, err := jwt.GenerateToken("u1", false)
	require.NoError(t, err)

	rec := do(r, http.MethodGet, "/me", "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"user_id":"u1","admin":false}`, rec.Body.String())

	rec = do(r, http.MethodGet, "/me?token="+token, "")
	assert.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "").Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "Token "+token).Code)
	assert.Equal(t, http.StatusUnauthorized, do(r, http.MethodGet, "/me", "Bearer garbage").Code)
}

func TestAdminOnly(t *testing.T) {
	jwt := newJWT()
	r := protectedRouter(jwt)

	user, _, err := jwt.GenerateToken("u1", false)
	require.NoError(t, err)
	admin, _, err := jwt.GenerateToken("a1", true)
	require.NoError(t, err)

	assert.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/admin", "Bearer "+user).Code)
	assert.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/admin", "Bearer "+admin).Code)
}

func TestRateLimitMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	store := services.NewRedisServiceFromClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))

	r := gin.New()
	r.Use(func(c *gin.Context) {
		if uid := c.Query("uid"); uid != "" {
			c.Set(ContextUserID, uid)
		}
	})
	r.POST("/spins", RateLimitMiddleware(store, ActionLimit{Action: "spin", Limit: 2, Window: time.Minute}),
		func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/spins?uid=u1", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/spins?uid=u1", "").Code)
	rec := do(r, http.MethodPost, "/spins?uid=u1", "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Contains(t, rec.Body.String(), `"retry_after":60`)

	// Limits are per user.
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/spins?uid=u2", "").Code)

	mr.FastForward(time.Minute + time.Second)
	assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/spins?uid=u1", "").Code)

	// Anonymous requests are not counted.
	for i := 0; i < 5; i++ {
		assert.Equal(t, http.StatusOK, do(r, http.MethodPost, "/spins", "").Code)
	}
}

func TestIPRateLimiter(t *testing.T) {
	limiter := NewIPRateLimiter(0.001, 2)
	r := gin.New()
	r.Use(limiter.Handler())
	r.GET("/auth", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/auth", "").Code)
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/auth", "").Code)
	assert.Equal(t, http.StatusTooManyRequests, do(r, http.MethodGet, "/auth", "").Code)

	assert.Zero(t, limiter.Cleanup(time.Hour))
	assert.Equal(t, 1, limiter.Cleanup(0))
	assert.Equal(t, http.StatusOK, do(r, http.MethodGet, "/auth", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	r := gin.New()
	r.Use(CORS())
	r.GET("/x", func(c *gin.Context) { c.Status(http.StatusOK) })

	rec := do(r, http.MethodOptions, "/x", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestRequestLogger(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.DebugLevel)

	r := gin.New()
	r.Use(RequestLogger(logrus.NewEntry(logger)))
	r.GET("/ok", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })

	do(r, http.MethodGet, "/ok", "")
	require.NotNil(t, hook.LastEntry())
	assert.Equal(t, logrus.DebugLevel, hook.LastEntry().Level)

	do(r, http.MethodGet, "/boom", "")
	assert.Equal(t, logrus.ErrorLevel, hook.LastEntry().Level)
	assert.Equal(t, 500, hook.LastEntry().Data["status"])
	assert.Equal(t, "/boom", hook.LastEntry().Data["path"])
}
