package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/medcampus/sims-api/internal/models"
)

func rbacRouter(claims *models.JWTClaims, allowed ...string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/users/:id", func(c *gin.Context) {
		if claims != nil {
			c.Set(ContextUserKey, claims)
		}
		c.Next()
	}, RBAC(allowed...), func(c *gin.Context) {
		c.Status(http.StatusNoContent)
	})
	return router
}

func TestRBACAllowsRoleOverlap(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Roles: []models.Role{models.RoleFaculty}}
	router := rbacRouter(claims, string(models.RoleAdmin), string(models.RoleFaculty))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/users/other", nil))
	assert.Equal(t, http.StatusNoContent, recorder.Code)
}

func TestRBACDeniesDisjointRoles(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Roles: []models.Role{models.RoleStudent}}
	router := rbacRouter(claims, string(models.RoleAdmin))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/users/other", nil))
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestRBACOfficeAssistantAllowedWhenListed(t *testing.T) {
	claims := &models.JWTClaims{UserID: "oa-1", Roles: []models.Role{models.RoleOfficeAssistant}}
	router := rbacRouter(claims,
		string(models.RoleAdmin), string(models.RoleCoordinator),
		string(models.RoleFaculty), string(models.RoleOfficeAssistant))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/users/other", nil))
	assert.Equal(t, http.StatusNoContent, recorder.Code)
}

func TestRBACSelfMarkerMatchesOwnID(t *testing.T) {
	claims := &models.JWTClaims{UserID: "user-1", Roles: []models.Role{models.RoleStudent}}
	router := rbacRouter(claims, string(models.RoleAdmin), AllowSelf)

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/users/user-1", nil))
	assert.Equal(t, http.StatusNoContent, recorder.Code)

	recorder = httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/users/user-2", nil))
	assert.Equal(t, http.StatusForbidden, recorder.Code)
}

func TestRBACRequiresAuthenticatedContext(t *testing.T) {
	router := rbacRouter(nil, string(models.RoleAdmin))

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest(http.MethodGet, "/users/user-1", nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
}
