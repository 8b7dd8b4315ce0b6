package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pharmadesk/internal/core/idempotency"
	"pharmadesk/internal/infrastructure/http/v1/middleware"
	"pharmadesk/internal/infrastructure/storage/memory"
	"pharmadesk/pkg/logger"
)

func init() {
	gin.SetMode(gin.TestMode)
	logger.SetDefault(logger.NewNop())
}

func newIdempotentRouter(store idempotency.Store, handler gin.HandlerFunc) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Recovery())
	r.POST("/sales", middleware.Idempotency(store), handler)
	return r
}

func post(r http.Handler, key string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/sales", strings.NewReader(`{"qty":1}`))
	req.Header.Set(idempotency.HeaderKey, key)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestIdempotency_PanicReleasesKey(t *testing.T) {
	store := memory.New().Idempotency()
	calls := 0
	r := newIdempotentRouter(store, func(c *gin.Context) {
		calls++
		if calls == 1 {
			panic("handler blew up")
		}
		c.JSON(http.StatusCreated, gin.H{"ok": true})
	})

	w := post(r, "sale-1")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	w = post(r, "sale-1")
	require.Equal(t, http.StatusCreated, w.Code, "the key is free for a retry")
	assert.Equal(t, 2, calls)
}

func TestIdempotency_ReplaysSuccess(t *testing.T) {
	store := memory.New().Idempotency()
	calls := 0
	r := newIdempotentRouter(store, func(c *gin.Context) {
		calls++
		c.JSON(http.StatusCreated, gin.H{"n": calls})
	})

	first := post(r, "sale-2")
	require.Equal(t, http.StatusCreated, first.Code)

	second := post(r, "sale-2")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, first.Body.String(), second.Body.String())
	assert.Equal(t, 1, calls)
}
