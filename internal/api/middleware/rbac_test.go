package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"plantops.io/mis/internal/domain"
)

func TestAuthorize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		role    domain.Role
		allowed []domain.Role
		want    bool
	}{
		{"admin on admin list", domain.RoleAdmin, []domain.Role{domain.RoleAdmin}, true},
		{"engineer on engineer or admin", domain.RoleEngineer, []domain.Role{domain.RoleEngineer, domain.RoleAdmin}, true},
		{"manager not on admin list", domain.RoleManager, []domain.Role{domain.RoleAdmin}, false},
		{"empty role denied", "", []domain.Role{domain.RoleAdmin}, false},
		{"empty allow-list denies", domain.RoleAdmin, nil, false},
	}

	for _, tc := range tests {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := Authorize(tc.role, tc.allowed...); got != tc.want {
				t.Fatalf("Authorize(%q, %v) = %v, want %v", tc.role, tc.allowed, got, tc.want)
			}
		})
	}
}

func TestRequirePermission(t *testing.T) {
	t.Parallel()

	gin.SetMode(gin.TestMode)

	run := func(role domain.Role, required domain.Permission) (int, bool) {
		w := httptest.NewRecorder()
		c, _ := gin.CreateTestContext(w)
		c.Request = httptest.NewRequest(http.MethodGet, "/", nil)
		if role != "" {
			setPrincipal(c, &Principal{UserID: "u-1", Role: role}, nil)
		}

		RequirePermission(required)(c)
		return w.Code, !c.IsAborted()
	}

	t.Run("admin holds every permission", func(t *testing.T) {
		t.Parallel()
		status, called := run(domain.RoleAdmin, domain.PermManageRoles)
		if status != http.StatusOK || !called {
			t.Fatalf("status = %d called = %v, want 200 and called", status, called)
		}
	})

	t.Run("engineer may issue spares", func(t *testing.T) {
		t.Parallel()
		status, called := run(domain.RoleEngineer, domain.PermIssueSpares)
		if status != http.StatusOK || !called {
			t.Fatalf("status = %d called = %v, want 200 and called", status, called)
		}
	})

	t.Run("operator may not issue spares", func(t *testing.T) {
		t.Parallel()
		status, called := run(domain.RoleOperator, domain.PermIssueSpares)
		if status != http.StatusForbidden {
			t.Fatalf("status = %d, want %d", status, http.StatusForbidden)
		}
		if called {
			t.Fatal("middleware should abort when permission missing")
		}
	})

	t.Run("anonymous is unauthorized", func(t *testing.T) {
		t.Parallel()
		status, called := run("", domain.PermViewKPI)
		if status != http.StatusUnauthorized || called {
			t.Fatalf("status = %d called = %v, want 401 and aborted", status, called)
		}
	})
}

func TestHasPermission_NoContext(t *testing.T) {
	t.Parallel()

	c, _ := gin.CreateTestContext(httptest.NewRecorder())
	if HasPermission(c, domain.PermViewKPI) {
		t.Fatal("HasPermission without principal = true, want false")
	}
}
