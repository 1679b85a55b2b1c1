package tmssync

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/symphonia/tms_backend/cache"
	"github.com/symphonia/tms_backend/middlewares"
	"github.com/symphonia/tms_backend/models"
	"github.com/symphonia/tms_backend/utils"
)

func cacheStatsRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	orch := NewOrchestrator(cache.NewService(logrus.New()), logrus.New())
	r := gin.New()
	r.Use(middlewares.AuthMiddleware())
	r.GET("/api/tms/cache/stats", CacheStatsHandler(orch))
	return r
}

func getCacheStats(t *testing.T, token string, query string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, "/api/tms/cache/stats"+query, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	cacheStatsRouter().ServeHTTP(w, req)
	return w
}

func TestCacheStatsWithJwt(t *testing.T) {
	token, err := utils.JwtGenerate(1, "org-1", models.UserRoleMember)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	if w := getCacheStats(t, token, ""); w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", w.Code, w.Body.String())
	}
}

func TestCacheStatsRejectsInvalidJwt(t *testing.T) {
	if w := getCacheStats(t, "not-a-jwt", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestCacheStatsRejectsAnonymous(t *testing.T) {
	if w := getCacheStats(t, "", ""); w.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", w.Code)
	}
}

func TestCacheStatsOrganizationOverride(t *testing.T) {
	admin, err := utils.JwtGenerate(1, "org-1", models.UserRoleAdmin)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}
	member, err := utils.JwtGenerate(2, "org-1", models.UserRoleMember)
	if err != nil {
		t.Fatalf("JwtGenerate: %v", err)
	}

	if w := getCacheStats(t, admin, "?organization_id=org-2"); w.Code != http.StatusOK {
		t.Errorf("admin override: status = %d, want 200", w.Code)
	}
	if w := getCacheStats(t, member, "?organization_id=org-2"); w.Code != http.StatusUnauthorized {
		t.Errorf("member cross-org override: status = %d, want 401", w.Code)
	}
	if w := getCacheStats(t, member, "?organization_id=org-1"); w.Code != http.StatusOK {
		t.Errorf("member own-org override: status = %d, want 200", w.Code)
	}
}
