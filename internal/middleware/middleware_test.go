package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coursecap-api/internal/models"
	appErrors "github.com/noah-isme/coursecap-api/pkg/errors"
)

type stubValidator struct {
	claims *models.JWTClaims
}

func (s stubValidator) ValidateToken(token string) (*models.JWTClaims, error) {
	if token != "good" {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")
	}
	return s.claims, nil
}

type recordingObserver struct {
	path   string
	status int
}

func (r *recordingObserver) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	r.path = path
	r.status = status
}

func newRouter(mw ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(mw...)
	return r
}

func TestJWTRejectsMissingAndMalformedHeaders(t *testing.T) {
	r := newRouter(JWT(stubValidator{claims: &models.JWTClaims{UID: "7"}}))
	r.GET("/p", func(c *gin.Context) { c.Status(http.StatusOK) })

	for _, header := range []string{"", "Token good", "Bearer ", "Bearer bad"} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/p", nil)
		if header != "" {
			req.Header.Set("Authorization", header)
		}
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code, header)
	}
}

func TestJWTStoresClaims(t *testing.T) {
	r := newRouter(JWT(stubValidator{claims: &models.JWTClaims{UID: "7", Role: models.RoleInstructor}}))
	var uid string
	r.GET("/p", func(c *gin.Context) {
		v, _ := c.Get(ContextUserKey)
		uid = v.(*models.JWTClaims).UID
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer good")
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "7", uid)
}

func TestOptionalJWTPassesThrough(t *testing.T) {
	r := newRouter(OptionalJWT(stubValidator{}))
	r.GET("/p", func(c *gin.Context) {
		_, exists := c.Get(ContextUserKey)
		assert.False(t, exists)
		c.Status(http.StatusNoContent)
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/p", nil)
	req.Header.Set("Authorization", "Bearer bad")
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestRBAC(t *testing.T) {
	withClaims := func(claims *models.JWTClaims) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set(ContextUserKey, claims)
			c.Next()
		}
	}
	ok := func(c *gin.Context) { c.Status(http.StatusOK) }

	cases := []struct {
		name   string
		claims *models.JWTClaims
		route  string
		mw     gin.HandlerFunc
		want   int
	}{
		{"admin allowed", &models.JWTClaims{UID: "1", Role: models.RoleAdmin}, "/emails/sent/9", AdminOnly(), http.StatusOK},
		{"instructor refused", &models.JWTClaims{UID: "9", Role: models.RoleInstructor}, "/emails/sent/9", AdminOnly(), http.StatusForbidden},
		{"self allowed", &models.JWTClaims{UID: "9", Role: models.RoleInstructor}, "/emails/sent/9", RBAC(string(models.RoleAdmin), "SELF"), http.StatusOK},
		{"other refused", &models.JWTClaims{UID: "8", Role: models.RoleInstructor}, "/emails/sent/9", RBAC(string(models.RoleAdmin), "SELF"), http.StatusForbidden},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := newRouter(withClaims(tc.claims))
			r.GET("/emails/sent/:uid", tc.mw, ok)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tc.route, nil))
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRBACWithoutClaims(t *testing.T) {
	r := newRouter()
	r.GET("/p", AdminOnly(), func(c *gin.Context) { c.Status(http.StatusOK) })
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/p", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetricsUsesRouteTemplate(t *testing.T) {
	observer := &recordingObserver{}
	r := newRouter(Metrics(observer))
	r.GET("/course/approvals/:termId/:sectionId", func(c *gin.Context) { c.Status(http.StatusAccepted) })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/course/approvals/2202/101", nil))
	assert.Equal(t, "/course/approvals/:termId/:sectionId", observer.path)
	assert.Equal(t, http.StatusAccepted, observer.status)

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/nope", nil))
	assert.Equal(t, "unmatched", observer.path)
	assert.Equal(t, http.StatusNotFound, observer.status)
}

func TestResponseMeta(t *testing.T) {
	r := newRouter(WithResponseMeta())
	var meta map[string]interface{}
	r.GET("/p", func(c *gin.Context) {
		SetMeta(c, "filter", "All")
		meta = ExtractMeta(c)
		c.Status(http.StatusOK)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/p", nil))
	assert.Equal(t, "All", meta["filter"])
	assert.Contains(t, meta, "processing_time_ms")
}
