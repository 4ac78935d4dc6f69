package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/xuri/excelize/v2"

	"github.com/celerix-dev/celerix-checkin/internal/attendance"
	"github.com/celerix-dev/celerix-checkin/internal/engine"
	"github.com/celerix-dev/celerix-checkin/internal/session"
	"github.com/celerix-dev/celerix-checkin/pkg/schema"
)

const officeCode = "OFFICE-42"

type testEnv struct {
	router  *gin.Engine
	records *attendance.Store
	now     time.Time
}

func setupTestRouter(t *testing.T, ratePerMinute int) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	env := &testEnv{now: time.Date(2024, time.June, 12, 8, 30, 0, 0, time.UTC)}
	clock := func() time.Time { return env.now }

	mem := engine.NewMemStore(nil, nil)
	env.records = attendance.NewStore(mem, attendance.Options{
		Verifier:      attendance.StaticCode(officeCode),
		Location:      time.UTC,
		Now:           clock,
		SeedDemoUsers: true,
	})
	tokens := session.NewTokens("test-secret", time.Hour, mem, clock)
	h := &Handler{
		Records:  env.records,
		Sessions: session.NewStore(mem, env.records, tokens, nil),
		AppName:  "Check-in",
	}
	env.router = NewRouter(h, RouterOptions{ScanRatePerMinute: ratePerMinute})
	return env
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		json.NewEncoder(&buf).Encode(body)
	}
	req, _ := http.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func (e *testEnv) login(t *testing.T, role schema.Role) string {
	t.Helper()
	w := e.do("POST", "/api/auth/demo", "", map[string]string{"role": string(role)})
	if w.Code != http.StatusOK {
		t.Fatalf("Demo login failed: %d %s", w.Code, w.Body.String())
	}
	var sess schema.AuthSession
	json.Unmarshal(w.Body.Bytes(), &sess)
	return sess.Token
}

func errorOf(w *httptest.ResponseRecorder) string {
	var body map[string]string
	json.Unmarshal(w.Body.Bytes(), &body)
	return body["error"]
}

func TestHealth(t *testing.T) {
	env := setupTestRouter(t, 30)
	w := env.do("GET", "/api/health", "", nil)
	if w.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", w.Code)
	}
}

func TestLogin(t *testing.T) {
	env := setupTestRouter(t, 30)

	w := env.do("POST", "/api/auth/login", "", map[string]string{"email": "ADMIN@demo.local", "password": "x"})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected status 200, got %d", w.Code)
	}
	var sess schema.AuthSession
	json.Unmarshal(w.Body.Bytes(), &sess)
	if sess.User.ID != "user-admin" || sess.Token == "" {
		t.Errorf("Unexpected session %+v", sess)
	}

	tests := []struct {
		body map[string]string
		code int
	}{
		{map[string]string{"email": "missing@x.local", "password": "x"}, http.StatusUnauthorized},
		{map[string]string{"email": "admin@demo.local"}, http.StatusBadRequest},
	}
	for _, tc := range tests {
		if w := env.do("POST", "/api/auth/login", "", tc.body); w.Code != tc.code {
			t.Errorf("Login(%v): expected %d, got %d", tc.body, tc.code, w.Code)
		}
	}

	w = env.do("GET", "/api/auth/session", sess.Token, nil)
	var current *schema.AuthSession
	json.Unmarshal(w.Body.Bytes(), &current)
	if current == nil || current.User.ID != "user-admin" {
		t.Errorf("Expected current session, got %s", w.Body.String())
	}

	w = env.do("GET", "/api/auth/session", "", nil)
	if w.Body.String() != "null" {
		t.Errorf("Expected null session, got %s", w.Body.String())
	}
}

func TestDemoLogin_Unavailable(t *testing.T) {
	env := setupTestRouter(t, 30)
	env.records.ToggleUser("user-admin")

	if w := env.do("POST", "/api/auth/demo", "", map[string]string{"role": "admin"}); w.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", w.Code)
	}
	if w := env.do("POST", "/api/auth/demo", "", map[string]string{"role": "root"}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}
}

func TestScanFlow(t *testing.T) {
	env := setupTestRouter(t, 30)
	token := env.login(t, schema.RoleEmployee)

	if w := env.do("POST", "/api/attendance/scan", "", map[string]string{"code": officeCode}); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected 401 without token, got %d", w.Code)
	}

	if w := env.do("POST", "/api/attendance/scan", token, map[string]string{"code": "WRONG"}); w.Code != http.StatusUnprocessableEntity {
		t.Errorf("Expected 422, got %d", w.Code)
	}
	if w := env.do("POST", "/api/attendance/scan", token, map[string]string{"code": ""}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}

	w := env.do("POST", "/api/attendance/scan", token, map[string]string{"code": officeCode})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d %s", w.Code, w.Body.String())
	}
	var day schema.AttendanceDay
	json.Unmarshal(w.Body.Bytes(), &day)
	if day.InTime == nil || day.Status != schema.StatusIncomplete {
		t.Errorf("Unexpected day %+v", day)
	}

	env.now = env.now.Add(9 * time.Hour)
	env.do("POST", "/api/attendance/scan", token, map[string]string{"code": officeCode})
	w = env.do("POST", "/api/attendance/scan", token, map[string]string{"code": officeCode})
	if w.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", w.Code)
	}
	if msg := errorOf(w); msg != "already completed for today" {
		t.Errorf("Unexpected error message %q", msg)
	}

	w = env.do("GET", "/api/attendance/day?date=2024-06-12", token, nil)
	json.Unmarshal(w.Body.Bytes(), &day)
	if day.Status != schema.StatusOK {
		t.Errorf("Expected OK, got %s", day.Status)
	}

	if w := env.do("GET", "/api/attendance/day?date=12-06-2024", token, nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad date, got %d", w.Code)
	}

	var week []schema.AttendanceDay
	w = env.do("GET", "/api/attendance/week", token, nil)
	json.Unmarshal(w.Body.Bytes(), &week)
	if len(week) != 7 || week[0].Date != "2024-06-10" {
		t.Errorf("Unexpected week %+v", week)
	}

	var month []schema.AttendanceDay
	w = env.do("GET", "/api/attendance/history?month=2024-02", token, nil)
	json.Unmarshal(w.Body.Bytes(), &month)
	if len(month) != 29 {
		t.Errorf("Expected 29 days, got %d", len(month))
	}
	if w := env.do("GET", "/api/attendance/history?month=2024-13", token, nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for bad month, got %d", w.Code)
	}
}

func TestScanForOtherUser(t *testing.T) {
	env := setupTestRouter(t, 30)
	employee := env.login(t, schema.RoleEmployee)
	admin := env.login(t, schema.RoleAdmin)

	body := map[string]string{"userId": "user-admin", "code": officeCode}
	if w := env.do("POST", "/api/attendance/scan", employee, body); w.Code != http.StatusForbidden {
		t.Errorf("Expected 403, got %d", w.Code)
	}

	body["userId"] = "user-employee"
	if w := env.do("POST", "/api/attendance/scan", admin, body); w.Code != http.StatusOK {
		t.Errorf("Expected admin scan for employee to succeed, got %d", w.Code)
	}
}

func TestAdmin(t *testing.T) {
	env := setupTestRouter(t, 30)
	employee := env.login(t, schema.RoleEmployee)
	admin := env.login(t, schema.RoleAdmin)

	if w := env.do("GET", "/api/admin/users", employee, nil); w.Code != http.StatusForbidden {
		t.Errorf("Expected 403 for employee, got %d", w.Code)
	}

	w := env.do("POST", "/api/admin/users", admin, map[string]any{
		"fullName": "Ada Lovelace",
		"email":    "ada@example.com",
		"active":   true,
		"password": "s3cret",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d %s", w.Code, w.Body.String())
	}
	var created schema.User
	json.Unmarshal(w.Body.Bytes(), &created)
	if created.ID == "" || created.FullName != "Ada Lovelace" || created.Role != schema.RoleEmployee {
		t.Errorf("Unexpected user %+v", created)
	}
	if created.PasswordHash != "" {
		t.Error("Response must not contain the password hash")
	}

	if w := env.do("POST", "/api/auth/login", "", map[string]string{"email": "ada@example.com", "password": "wrong"}); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected wrong password rejected, got %d", w.Code)
	}

	// Updating without a password keeps the stored one.
	created.FullName = "Ada King"
	env.do("POST", "/api/admin/users", admin, created)
	if w := env.do("POST", "/api/auth/login", "", map[string]string{"email": "ada@example.com", "password": "s3cret"}); w.Code != http.StatusOK {
		t.Errorf("Expected password to survive update, got %d", w.Code)
	}

	var users []schema.User
	w = env.do("GET", "/api/admin/users?q=king", admin, nil)
	json.Unmarshal(w.Body.Bytes(), &users)
	if len(users) != 1 || users[0].FullName != "Ada King" {
		t.Errorf("Unexpected users %+v", users)
	}

	if w := env.do("POST", "/api/admin/users", admin, map[string]any{"fullName": "No Mail"}); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400, got %d", w.Code)
	}

	w = env.do("POST", "/api/admin/users/"+created.ID+"/toggle", admin, nil)
	var toggled schema.User
	json.Unmarshal(w.Body.Bytes(), &toggled)
	if toggled.Active {
		t.Error("Expected user deactivated")
	}
	w = env.do("POST", "/api/admin/users/user-nobody/toggle", admin, nil)
	if w.Code != http.StatusOK || w.Body.String() != "null" {
		t.Errorf("Expected null for unknown user, got %d %s", w.Code, w.Body.String())
	}

	var rows []schema.AdminRow
	w = env.do("GET", "/api/admin/attendance?date=2024-06-11&status=absent", admin, nil)
	json.Unmarshal(w.Body.Bytes(), &rows)
	if len(rows) != 2 {
		t.Errorf("Expected 2 absent rows, got %+v", rows)
	}
	if w := env.do("GET", "/api/admin/attendance?status=early", admin, nil); w.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for unknown status, got %d", w.Code)
	}

	var sum schema.Summary
	w = env.do("GET", "/api/admin/attendance/summary?date=2024-06-11", admin, nil)
	json.Unmarshal(w.Body.Bytes(), &sum)
	if sum.Total != 2 || sum.Absent != 2 {
		t.Errorf("Unexpected summary %+v", sum)
	}

	w = env.do("GET", "/api/admin/attendance/export?date=2024-06-11", admin, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	f, err := excelize.OpenReader(w.Body)
	if err != nil {
		t.Fatalf("Export is not a workbook: %v", err)
	}
	f.Close()
}

func TestLogoutRevokesToken(t *testing.T) {
	env := setupTestRouter(t, 30)
	token := env.login(t, schema.RoleEmployee)

	if w := env.do("POST", "/api/auth/logout", token, nil); w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if w := env.do("GET", "/api/attendance/week", token, nil); w.Code != http.StatusUnauthorized {
		t.Errorf("Expected revoked token rejected, got %d", w.Code)
	}
}

func TestRateLimit(t *testing.T) {
	env := setupTestRouter(t, 1)
	token := env.login(t, schema.RoleEmployee)

	w := env.do("POST", "/api/attendance/scan", token, map[string]string{"code": officeCode})
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("Expected 429 after burst, got %d", w.Code)
	}
}

func TestUpsertUser_KeepsPlainText(t *testing.T) {
	env := setupTestRouter(t, 30)
	admin := env.login(t, schema.RoleAdmin)

	want := schema.User{
		ID:       "user-obrien",
		FullName: "Sean O'Brien & Co",
		Email:    "o'brien&co@example.com",
		Role:     schema.RoleEmployee,
		Active:   true,
	}

	// Saving twice must not change the text.
	for i := 0; i < 2; i++ {
		w := env.do("POST", "/api/admin/users", admin, want)
		if w.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d %s", w.Code, w.Body.String())
		}
		var saved schema.User
		json.Unmarshal(w.Body.Bytes(), &saved)
		if saved != want {
			t.Errorf("Save %d: expected %+v, got %+v", i+1, want, saved)
		}
	}

	var users []schema.User
	w := env.do("GET", "/api/admin/users?q=brien", admin, nil)
	json.Unmarshal(w.Body.Bytes(), &users)
	if len(users) != 1 || users[0] != want {
		t.Errorf("Expected listed user %+v, got %+v", want, users)
	}

	for _, name := range []string{"<b>Ada</b>", "Ada<script>alert(1)</script>", "Ada <!-- x -->"} {
		w := env.do("POST", "/api/admin/users", admin, map[string]any{"fullName": name, "email": "ada@example.com"})
		if w.Code != http.StatusBadRequest || errorOf(w) != errMarkup.Error() {
			t.Errorf("%q: expected 400 %q, got %d %q", name, errMarkup, w.Code, errorOf(w))
		}
	}
}
