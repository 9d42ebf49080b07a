package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"callcenter/internal/auth"

	"github.com/gin-gonic/gin"
)

func withRole(agentID, role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := auth.WithIdentity(c.Request.Context(), agentID, role)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func serve(r *gin.Engine, path string) int {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	r.ServeHTTP(w, req)
	return w.Code
}

func TestRequireAnyRole_AdminBypasses(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", withRole("a", RoleAdmin), RequireAnyRole(RoleSupervisor), func(c *gin.Context) {
		c.Status(200)
	})
	if code := serve(r, "/x"); code != 200 {
		t.Fatalf("expected 200, got %d", code)
	}
}

func TestRequireAnyRole_AgentDenied(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", withRole("a", RoleAgent), RequireAnyRole(RoleSupervisor), func(c *gin.Context) {
		c.Status(200)
	})
	if code := serve(r, "/x"); code != 403 {
		t.Fatalf("expected 403, got %d", code)
	}
}

func TestRequireAnyRole_RoleRequired(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.GET("/x", RequireAnyRole(RoleAgent), func(c *gin.Context) {
		c.Status(200)
	})
	if code := serve(r, "/x"); code != 401 {
		t.Fatalf("expected 401, got %d", code)
	}
}

func TestRequireSelfOrRole(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	ok := func(c *gin.Context) { c.Status(200) }
	r.GET("/self/agents/:id", withRole("a1", RoleAgent), RequireSelfOrRole("id", RoleSupervisor), ok)
	r.GET("/super/agents/:id", withRole("s1", RoleSupervisor), RequireSelfOrRole("id", RoleSupervisor), ok)

	if code := serve(r, "/self/agents/a1"); code != 200 {
		t.Fatalf("own resource: expected 200, got %d", code)
	}
	if code := serve(r, "/self/agents/a2"); code != 403 {
		t.Fatalf("other agent: expected 403, got %d", code)
	}
	if code := serve(r, "/super/agents/a2"); code != 200 {
		t.Fatalf("supervisor: expected 200, got %d", code)
	}
}

func TestValid(t *testing.T) {
	for _, r := range []string{RoleAgent, RoleSupervisor, RoleAdmin} {
		if !Valid(r) {
			t.Fatalf("%s should be valid", r)
		}
	}
	if Valid("owner") {
		t.Fatalf("owner should be invalid")
	}
}
