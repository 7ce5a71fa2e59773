package app

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"portfolio/api/internal/store"
)

func doJSON(t *testing.T, server *HTTPServer, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Buffer
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewBuffer(encoded)
	} else {
		reader = bytes.NewBuffer(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)
	return rr
}

func decodeJSON(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &payload); err != nil {
		t.Fatalf("parse response %q: %v", rr.Body.String(), err)
	}
	return payload
}

func loginToken(t *testing.T, svc *Service) string {
	t.Helper()
	session, err := svc.issueSession(context.Background(), store.Admin{ID: "adm_1", Email: "admin@example.com"})
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}
	return session.Token
}

func TestHealthEndpoint(t *testing.T) {
	svc := newTestService(newMemStore())
	server := NewHTTPServer(svc, "*")

	rr := doJSON(t, server, http.MethodGet, "/api/health", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if payload := decodeJSON(t, rr); payload["ok"] != true {
		t.Errorf("expected ok=true, got %v", payload["ok"])
	}
}

func TestReadyEndpoint(t *testing.T) {
	svc := newTestService(newMemStore())
	server := NewHTTPServer(svc, "*")

	rr := doJSON(t, server, http.MethodGet, "/api/ready", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUnknownRouteIs404(t *testing.T) {
	svc := newTestService(newMemStore())
	server := NewHTTPServer(svc, "*")

	rr := doJSON(t, server, http.MethodGet, "/api/nope", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if payload := decodeJSON(t, rr); payload["code"] != "NOT_FOUND" {
		t.Errorf("expected NOT_FOUND, got %v", payload["code"])
	}
}

func TestAdminRoutesRequireSession(t *testing.T) {
	svc := newTestService(newMemStore())
	server := NewHTTPServer(svc, "*")

	rr := doJSON(t, server, http.MethodPost, "/api/skills", "", map[string]any{"name": "Go", "category": "Programming Languages"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	rr = doJSON(t, server, http.MethodPost, "/api/skills", "not-a-token", map[string]any{"name": "Go", "category": "Programming Languages"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for garbage token, got %d", rr.Code)
	}
}

func TestSkillCRUDOverHTTP(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)
	server := NewHTTPServer(svc, "*")
	token := loginToken(t, svc)

	rr := doJSON(t, server, http.MethodPost, "/api/skills", token, map[string]any{
		"name":     "Go",
		"category": "Programming Languages",
		"logoUrl":  "https://cdn.example.com/go.png",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("create: expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	created := decodeJSON(t, rr)
	id, _ := created["id"].(string)
	if id == "" {
		t.Fatal("expected a skill id")
	}
	if created["order"] != float64(1) {
		t.Errorf("expected order 1, got %v", created["order"])
	}

	rr = doJSON(t, server, http.MethodGet, "/api/skills", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: expected 200, got %d", rr.Code)
	}
	listed := decodeJSON(t, rr)
	skills, _ := listed["skills"].([]any)
	if len(skills) != 1 {
		t.Fatalf("expected 1 skill, got %d", len(skills))
	}

	rr = doJSON(t, server, http.MethodPut, "/api/skills/"+id, token, map[string]any{"name": "Golang"})
	if rr.Code != http.StatusOK {
		t.Fatalf("update: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if updated := decodeJSON(t, rr); updated["name"] != "Golang" {
		t.Errorf("expected renamed skill, got %v", updated["name"])
	}

	rr = doJSON(t, server, http.MethodDelete, "/api/skills/"+id, token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rr.Code)
	}
	if len(st.skills) != 0 {
		t.Errorf("expected skill removed, %d remain", len(st.skills))
	}
}

func TestCreateSkillConflictOverHTTP(t *testing.T) {
	svc := newTestService(newMemStore())
	server := NewHTTPServer(svc, "*")
	token := loginToken(t, svc)

	body := map[string]any{"name": "Go", "category": "Programming Languages"}
	if rr := doJSON(t, server, http.MethodPost, "/api/skills", token, body); rr.Code != http.StatusCreated {
		t.Fatalf("first create: expected 201, got %d", rr.Code)
	}
	rr := doJSON(t, server, http.MethodPost, "/api/skills", token, body)
	if rr.Code != http.StatusConflict {
		t.Fatalf("expected 409, got %d: %s", rr.Code, rr.Body.String())
	}
	if payload := decodeJSON(t, rr); payload["code"] != "CONFLICT" {
		t.Errorf("expected CONFLICT, got %v", payload["code"])
	}
}

func TestDeleteCategoryReportsMigrationCount(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)
	server := NewHTTPServer(svc, "*")
	token := loginToken(t, svc)

	seedCategory(st, "cat_other", "Other", 1)
	seedCategory(st, "cat_web", "Web", 2)
	st.projects["prj_a"] = store.Project{ID: "prj_a", Name: "A", CategoryID: "cat_web", DisplayOrder: 1, Enabled: true}
	st.projects["prj_b"] = store.Project{ID: "prj_b", Name: "B", CategoryID: "cat_web", DisplayOrder: 2, Enabled: true}

	rr := doJSON(t, server, http.MethodDelete, "/api/project-categories/cat_web", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if payload := decodeJSON(t, rr); payload["migratedProjects"] != float64(2) {
		t.Errorf("expected migratedProjects=2, got %v", payload["migratedProjects"])
	}
}

func TestLoginEndpoint(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)
	svc.passwords = &fakePasswords{
		signInFn: func(_ context.Context, email, password string) (store.Admin, error) {
			if password == "correct" {
				return store.Admin{ID: "adm_1", Email: email}, nil
			}
			return store.Admin{}, context.DeadlineExceeded
		},
	}
	server := NewHTTPServer(svc, "*")

	rr := doJSON(t, server, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "admin@example.com",
		"password": "wrong",
	})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	rr = doJSON(t, server, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "admin@example.com",
		"password": "correct",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decodeJSON(t, rr)
	token, _ := payload["token"].(string)
	if token == "" || payload["refreshToken"] == "" {
		t.Fatal("expected token pair in login response")
	}

	// The issued token opens admin routes.
	rr = doJSON(t, server, http.MethodPost, "/api/skills", token, map[string]any{
		"name":     "Go",
		"category": "Programming Languages",
	})
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201 with fresh token, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestCORSAndRequestIDHeaders(t *testing.T) {
	svc := newTestService(newMemStore())
	server := NewHTTPServer(svc, "https://portfolio.example.com")

	req := httptest.NewRequest(http.MethodOptions, "/api/skills", nil)
	rr := httptest.NewRecorder()
	server.Handler().ServeHTTP(rr, req)

	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 for preflight, got %d", rr.Code)
	}
	if origin := rr.Header().Get("Access-Control-Allow-Origin"); origin != "https://portfolio.example.com" {
		t.Errorf("unexpected CORS origin %q", origin)
	}
	if rr.Header().Get("X-Request-ID") == "" {
		t.Error("expected a generated request id")
	}
}

func TestProfileDataRoundtripOverHTTP(t *testing.T) {
	st := newMemStore()
	svc := newTestService(st)
	server := NewHTTPServer(svc, "*")
	token := loginToken(t, svc)

	rr := doJSON(t, server, http.MethodPut, "/api/profile/data", token, map[string]any{
		"data": map[string]any{"headline": "Backend engineer"},
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("put: expected 200, got %d: %s", rr.Code, rr.Body.String())
	}

	rr = doJSON(t, server, http.MethodGet, "/api/profile/data", "", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("get: expected 200, got %d", rr.Code)
	}
	payload := decodeJSON(t, rr)
	data, _ := payload["data"].(map[string]any)
	if data["headline"] != "Backend engineer" {
		t.Errorf("expected stored headline, got %v", payload["data"])
	}

	rr = doJSON(t, server, http.MethodDelete, "/api/profile/data", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("delete: expected 200, got %d", rr.Code)
	}
	if len(st.profile.Data) != 0 {
		t.Errorf("expected data cleared, got %s", st.profile.Data)
	}
}
