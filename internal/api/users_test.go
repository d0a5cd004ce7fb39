package api

import (
	"net/http"
	"testing"

	"github.com/nerrad567/taskdesk/internal/audit"
	"github.com/nerrad567/taskdesk/internal/auth"
)

func TestAdminRoutes_ForbiddenForUsers(t *testing.T) {
	env := testServer(t)
	token, user := env.register(t, "alice@example.com", "Alice")

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/v1/users"},
		{http.MethodGet, "/api/v1/users/" + user.ID},
		{http.MethodPut, "/api/v1/users/" + user.ID},
		{http.MethodDelete, "/api/v1/users/" + user.ID},
		{http.MethodGet, "/api/v1/audit"},
		{http.MethodGet, "/api/v1/metrics"},
	} {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			w := env.do(t, tc.method, tc.path, token, nil)
			assertError(t, w, http.StatusForbidden, ErrCodeForbidden)
		})
	}
}

func TestAdminRoutes_UnauthenticatedFirst(t *testing.T) {
	env := testServer(t)

	w := env.do(t, http.MethodGet, "/api/v1/users", "", nil)
	assertError(t, w, http.StatusUnauthorized, ErrCodeUnauthorized)
}

func TestListUsers(t *testing.T) {
	env := testServer(t)
	adminToken, _ := env.registerAdmin(t, "admin@example.com", "Admin")
	env.register(t, "alice@example.com", "Alice")

	w := env.do(t, http.MethodGet, "/api/v1/users", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	body := decode[struct {
		Users []auth.User `json:"users"`
		Count int         `json:"count"`
	}](t, w)
	if body.Count != 2 || len(body.Users) != 2 {
		t.Errorf("count = %d, users = %d, want 2", body.Count, len(body.Users))
	}
}

func TestGetUser(t *testing.T) {
	env := testServer(t)
	adminToken, _ := env.registerAdmin(t, "admin@example.com", "Admin")
	_, alice := env.register(t, "alice@example.com", "Alice")

	w := env.do(t, http.MethodGet, "/api/v1/users/"+alice.ID, adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if got := decode[auth.User](t, w); got.Email != "alice@example.com" {
		t.Errorf("email = %q", got.Email)
	}

	w = env.do(t, http.MethodGet, "/api/v1/users/usr-missing", adminToken, nil)
	assertError(t, w, http.StatusNotFound, ErrCodeNotFound)
}

func TestUpdateUserRole(t *testing.T) {
	env := testServer(t)
	adminToken, _ := env.registerAdmin(t, "admin@example.com", "Admin")
	aliceToken, alice := env.register(t, "alice@example.com", "Alice")

	w := env.do(t, http.MethodPut, "/api/v1/users/"+alice.ID, adminToken, map[string]string{
		"role":  "admin",
		"email": "changed@example.com",
		"name":  "Changed",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d (body = %s)", w.Code, http.StatusOK, w.Body.String())
	}
	updated := decode[auth.User](t, w)
	if updated.Role != auth.RoleAdmin {
		t.Errorf("role = %q, want admin", updated.Role)
	}
	if updated.Email != "alice@example.com" || updated.Name != "Alice" {
		t.Errorf("non-role fields changed: %+v", updated)
	}

	// Alice's existing token now passes the role gate.
	if w := env.do(t, http.MethodGet, "/api/v1/users", aliceToken, nil); w.Code != http.StatusOK {
		t.Errorf("alice after promotion: status = %d, want 200", w.Code)
	}

	// And demotion takes it away again.
	w = env.do(t, http.MethodPut, "/api/v1/users/"+alice.ID, adminToken, map[string]string{"role": "user"})
	if w.Code != http.StatusOK {
		t.Fatalf("demote: status = %d", w.Code)
	}
	if w := env.do(t, http.MethodGet, "/api/v1/users", aliceToken, nil); w.Code != http.StatusForbidden {
		t.Errorf("alice after demotion: status = %d, want 403", w.Code)
	}
}

func TestUpdateUserRole_Invalid(t *testing.T) {
	env := testServer(t)
	adminToken, admin := env.registerAdmin(t, "admin@example.com", "Admin")
	_, alice := env.register(t, "alice@example.com", "Alice")

	tests := []struct {
		name string
		id   string
		body any
		want int
		code string
	}{
		{"unknown role", alice.ID, map[string]string{"role": "superuser"}, http.StatusBadRequest, ErrCodeValidation},
		{"missing role", alice.ID, map[string]string{"name": "x"}, http.StatusBadRequest, ErrCodeValidation},
		{"own role", admin.ID, map[string]string{"role": "user"}, http.StatusBadRequest, ErrCodeBadRequest},
		{"missing user", "usr-missing", map[string]string{"role": "admin"}, http.StatusNotFound, ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := env.do(t, http.MethodPut, "/api/v1/users/"+tt.id, adminToken, tt.body)
			assertError(t, w, tt.want, tt.code)
		})
	}
}

func TestDeleteUser(t *testing.T) {
	env := testServer(t)
	adminToken, admin := env.registerAdmin(t, "admin@example.com", "Admin")
	_, alice := env.register(t, "alice@example.com", "Alice")

	w := env.do(t, http.MethodDelete, "/api/v1/users/"+admin.ID, adminToken, nil)
	e := assertError(t, w, http.StatusBadRequest, ErrCodeBadRequest)
	if e.Message != auth.ErrSelfDeletion.Error() {
		t.Errorf("message = %q, want %q", e.Message, auth.ErrSelfDeletion.Error())
	}

	w = env.do(t, http.MethodDelete, "/api/v1/users/"+alice.ID, adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	if body := decode[map[string]string](t, w); body["message"] != "user deleted" {
		t.Errorf("message = %q", body["message"])
	}

	w = env.do(t, http.MethodDelete, "/api/v1/users/"+alice.ID, adminToken, nil)
	assertError(t, w, http.StatusNotFound, ErrCodeNotFound)
}

func TestAuditLog(t *testing.T) {
	env := testServer(t)
	adminToken, admin := env.registerAdmin(t, "admin@example.com", "Admin")
	aliceToken, alice := env.register(t, "alice@example.com", "Alice")

	tk := env.createTask(t, aliceToken, map[string]any{"title": "Audited"})
	env.do(t, http.MethodPut, "/api/v1/tasks/"+tk.ID, adminToken, map[string]any{"assignee_id": alice.ID})
	env.do(t, http.MethodPut, "/api/v1/users/"+alice.ID, adminToken, map[string]string{"role": "admin"})
	env.do(t, http.MethodPost, "/api/v1/auth/login", "", map[string]string{
		"email": "alice@example.com", "password": "wrong-password",
	})
	env.flushAudit()

	w := env.do(t, http.MethodGet, "/api/v1/audit?action="+audit.ActionRoleChange, adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	result := decode[audit.ListResult](t, w)
	if result.Total != 1 || len(result.Logs) != 1 {
		t.Fatalf("role_change entries = %d, want 1", result.Total)
	}
	entry := result.Logs[0]
	if entry.EntityID != alice.ID || entry.UserID != admin.ID {
		t.Errorf("entry = %+v, want entity %s by %s", entry, alice.ID, admin.ID)
	}
	if entry.Details["to"] != "admin" {
		t.Errorf("details = %v, want to=admin", entry.Details)
	}

	for _, action := range []string{
		audit.ActionRegister,
		audit.ActionLogin,
		audit.ActionLoginFailed,
		audit.ActionTaskCreate,
		audit.ActionTaskUpdate,
		audit.ActionTaskReassign,
	} {
		w := env.do(t, http.MethodGet, "/api/v1/audit?action="+action, adminToken, nil)
		if got := decode[audit.ListResult](t, w); got.Total == 0 {
			t.Errorf("no audit entries for %s", action)
		}
	}

	w = env.do(t, http.MethodGet, "/api/v1/audit?entity_type=task&entity_id="+tk.ID+"&limit=1", adminToken, nil)
	page := decode[audit.ListResult](t, w)
	if page.Total != 3 || len(page.Logs) != 1 || page.Limit != 1 {
		t.Errorf("task page: total=%d logs=%d limit=%d, want 3/1/1", page.Total, len(page.Logs), page.Limit)
	}
}

func TestAuditLog_InvalidQuery(t *testing.T) {
	env := testServer(t)
	adminToken, _ := env.registerAdmin(t, "admin@example.com", "Admin")

	for _, q := range []string{"limit=abc", "limit=-1", "offset=x"} {
		w := env.do(t, http.MethodGet, "/api/v1/audit?"+q, adminToken, nil)
		assertError(t, w, http.StatusBadRequest, ErrCodeValidation)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := testServer(t)
	adminToken, _ := env.registerAdmin(t, "admin@example.com", "Admin")
	env.register(t, "alice@example.com", "Alice")

	w := env.do(t, http.MethodGet, "/api/v1/metrics", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	m := decode[SystemMetrics](t, w)
	if m.Version != "test" {
		t.Errorf("version = %q, want test", m.Version)
	}
	if m.Users != 2 {
		t.Errorf("users = %d, want 2", m.Users)
	}
	if m.Runtime.Goroutines == 0 {
		t.Error("goroutines should be non-zero")
	}
	if m.EventBus.Enabled || m.Telemetry.Enabled {
		t.Errorf("integrations reported enabled without clients: %+v %+v", m.EventBus, m.Telemetry)
	}
}
