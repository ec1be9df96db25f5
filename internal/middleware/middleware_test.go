package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/phonebook-api/internal/models"
	appErrors "github.com/noah-isme/phonebook-api/pkg/errors"
)

type validatorStub struct {
	claims *models.JWTClaims
	err    error
	got    string
}

func (s *validatorStub) ValidateToken(token string) (*models.JWTClaims, error) {
	s.got = token
	return s.claims, s.err
}

type observerStub struct {
	method string
	path   string
	status int
	calls  int
}

func (s *observerStub) ObserveHTTPRequest(method, path string, status int, _ time.Duration) {
	s.method, s.path, s.status = method, path, status
	s.calls++
}

func newRouter(handlers ...gin.HandlerFunc) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	chain := append(handlers, func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	r.GET("/people/:id", chain...)
	return r
}

func perform(r http.Handler, header string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/people/p-1", nil)
	if header != "" {
		req.Header.Set("Authorization", header)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestJWTStoresClaims(t *testing.T) {
	tokens := &validatorStub{claims: &models.JWTClaims{UserID: "u-1", Role: models.RoleAdmin, FullName: "Admin"}}
	var seen *models.JWTClaims
	r := newRouter(JWT(tokens), func(c *gin.Context) {
		value, _ := c.Get(ContextUserKey)
		seen, _ = value.(*models.JWTClaims)
	})

	w := perform(r, "Bearer abc.def")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "abc.def", tokens.got)
	require.NotNil(t, seen)
	assert.Equal(t, "Admin", seen.Actor())
}

func TestJWTRejects(t *testing.T) {
	cases := map[string]struct {
		header string
		tokens *validatorStub
	}{
		"missing header": {header: "", tokens: &validatorStub{}},
		"wrong scheme":   {header: "Basic Zm9vOmJhcg==", tokens: &validatorStub{}},
		"invalid token":  {header: "Bearer bad", tokens: &validatorStub{err: appErrors.Clone(appErrors.ErrUnauthorized, "invalid token")}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			r := newRouter(JWT(tc.tokens))
			w := perform(r, tc.header)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
			assert.Contains(t, w.Body.String(), appErrors.ErrUnauthorized.Code)
		})
	}
}

func TestRequireRoles(t *testing.T) {
	withClaims := func(role models.UserRole) gin.HandlerFunc {
		return func(c *gin.Context) {
			c.Set(ContextUserKey, &models.JWTClaims{UserID: "u-1", Role: role, Email: "u@buditel.bg"})
		}
	}

	w := perform(newRouter(withClaims(models.RoleAdmin), RequireRoles(models.RoleAdmin, models.RoleSuperAdmin)), "")
	assert.Equal(t, http.StatusOK, w.Code)

	w = perform(newRouter(withClaims(models.RoleUser), RequireRoles(models.RoleAdmin)), "")
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = perform(newRouter(RequireRoles(models.RoleAdmin)), "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestMetricsReportsRouteTemplate(t *testing.T) {
	observer := &observerStub{}
	r := newRouter()
	r.Use(Metrics(observer))
	r.GET("/roles", func(c *gin.Context) { c.Status(http.StatusTeapot) })

	req := httptest.NewRequest(http.MethodGet, "/roles", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, 1, observer.calls)
	assert.Equal(t, "/roles", observer.path)
	assert.Equal(t, http.StatusTeapot, observer.status)

	req = httptest.NewRequest(http.MethodGet, "/nowhere", nil)
	r.ServeHTTP(httptest.NewRecorder(), req)
	assert.Equal(t, "unmatched", observer.path)
	assert.Equal(t, http.StatusNotFound, observer.status)
}

func TestMetricsWithoutObserver(t *testing.T) {
	r := newRouter(Metrics(nil))
	w := perform(r, "")
	assert.Equal(t, http.StatusOK, w.Code)
}
