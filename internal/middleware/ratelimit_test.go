package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"softwarnews/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func setupRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, rdb
}

func TestCheckRateLimit(t *testing.T) {
	mr, rdb := setupRedis(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		ok, err := CheckRateLimit(ctx, rdb, "vote", "user:1", 3, time.Minute)
		require.NoError(t, err)
		assert.True(t, ok, "request %d", i)
	}
	ok, err := CheckRateLimit(ctx, rdb, "vote", "user:1", 3, time.Minute)
	require.NoError(t, err)
	assert.False(t, ok)

	// 其他用户不受影响
	ok, err = CheckRateLimit(ctx, rdb, "vote", "user:2", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)

	assert.True(t, mr.TTL("rl:vote:user:1") > 0)
	mr.FastForward(time.Minute + time.Second)
	ok, err = CheckRateLimit(ctx, rdb, "vote", "user:1", 3, time.Minute)
	require.NoError(t, err)
	assert.True(t, ok)
}

func newLimitedRouter(rdb *redis.Client, limit int, user *models.User) *gin.Engine {
	r := gin.New()
	r.Use(func(c *gin.Context) {
		if user != nil {
			c.Set(CheckUserKey, user)
		}
		c.Next()
	})
	r.POST("/vote", RateLimit(rdb, "vote", limit, time.Minute), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return r
}

func TestRateLimit_Middleware(t *testing.T) {
	mr, rdb := setupRedis(t)
	r := newLimitedRouter(rdb, 2, &models.User{ID: 9})

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/vote", nil))
		codes = append(codes, w.Code)
	}
	assert.Equal(t, []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}, codes)
	assert.True(t, mr.Exists("rl:vote:user:9"))
}

func TestRateLimit_DisabledAndFailOpen(t *testing.T) {
	r := newLimitedRouter(nil, 1, nil)
	for i := 0; i < 3; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/vote", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}

	mr, rdb := setupRedis(t)
	mr.Close()
	r = newLimitedRouter(rdb, 1, nil)
	for i := 0; i < 2; i++ {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/vote", nil))
		assert.Equal(t, http.StatusOK, w.Code)
	}
}
