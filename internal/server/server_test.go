package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"
	"time"

	"hrportal-backend/internal/auth"
	"hrportal-backend/internal/config"
	"hrportal-backend/internal/models"
	"hrportal-backend/internal/ratelimit"
	"hrportal-backend/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const primaryEmail = "admin@x.com"

type env struct {
	app   *fiber.App
	users *testutil.UserStore
	audit *testutil.AuditLog
	mock  sqlmock.Sqlmock
	mr    *miniredis.Miniredis
}

func newEnv(t *testing.T, mutate ...func(*config.Config)) *env {
	t.Helper()

	cfg := &config.Config{
		AppEnv:            "test",
		CORSOrigins:       "http://localhost:5173",
		JWTSecret:         "0123456789abcdef0123456789abcdef",
		JWTTTL:            time.Hour,
		BcryptCost:        bcrypt.MinCost,
		PrimaryAdminEmail: primaryEmail,
	}
	for _, m := range mutate {
		m(cfg)
	}

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	db, mock := testutil.NewMockDB(t)
	e := &env{
		users: testutil.NewUserStore(),
		audit: &testutil.AuditLog{},
		mock:  mock,
		mr:    mr,
	}
	e.app = NewApp(Deps{
		Config:  cfg,
		DB:      db,
		Users:   e.users,
		Limiter: ratelimit.New(client, "test"),
		Audit:   e.audit,
	})
	return e
}

func (e *env) seed(t *testing.T, email, password string, role models.UserRole) *models.User {
	t.Helper()
	hash, err := auth.NewHasher(bcrypt.MinCost).Hash(password)
	require.NoError(t, err)
	u := &models.User{Email: email, PasswordHash: hash, Role: role, Active: true}
	require.NoError(t, e.users.Create(context.Background(), u))
	return u
}

func (e *env) call(t *testing.T, method, path, token, body string) (*http.Response, map[string]any) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp, out
}

func (e *env) login(t *testing.T, email, password string) string {
	t.Helper()
	resp, body := e.call(t, http.MethodPost, "/auth/login", "", `{"email":"`+email+`","password":"`+password+`"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	return body["token"].(string)
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	resp, body := e.call(t, http.MethodGet, "/", "", "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "HR Portal Backend Running", body["message"])
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
}

func TestUnknownRoute(t *testing.T) {
	e := newEnv(t)
	resp, body := e.call(t, http.MethodGet, "/nope", "", "")
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
	assert.Equal(t, false, body["success"])
	_, hasRaw := body["error"]
	assert.False(t, hasRaw)
}

func TestAuthorizationMatrix(t *testing.T) {
	e := newEnv(t)
	e.seed(t, primaryEmail, "admin-password", models.RoleAdmin)
	e.seed(t, "second@x.com", "admin-password", models.RoleAdmin)
	e.seed(t, "hr@x.com", "hr-password", models.RoleHR)

	primary := e.login(t, primaryEmail, "admin-password")
	secondAdmin := e.login(t, "second@x.com", "admin-password")
	hr := e.login(t, "hr@x.com", "hr-password")

	cases := []struct {
		name   string
		method string
		path   string
		token  string
		body   string
		want   int
	}{
		{"me without token", http.MethodGet, "/auth/me", "", "", fiber.StatusUnauthorized},
		{"me with garbage token", http.MethodGet, "/auth/me", "garbage", "", fiber.StatusUnauthorized},
		{"me as hr", http.MethodGet, "/auth/me", hr, "", fiber.StatusOK},
		{"users as hr", http.MethodGet, "/users", hr, "", fiber.StatusForbidden},
		{"users as second admin", http.MethodGet, "/users", secondAdmin, "", fiber.StatusForbidden},
		{"users as primary", http.MethodGet, "/users", primary, "", fiber.StatusOK},
		{"register as second admin", http.MethodPost, "/auth/register", secondAdmin, `{"email":"n@x.com","password":"password1"}`, fiber.StatusForbidden},
		{"register without token", http.MethodPost, "/auth/register", "", `{"email":"n@x.com","password":"password1"}`, fiber.StatusUnauthorized},
		{"register as primary", http.MethodPost, "/auth/register", primary, `{"email":"n@x.com","password":"password1"}`, fiber.StatusCreated},
		{"change password as second admin", http.MethodPost, "/auth/change-password", secondAdmin, `{"currentPassword":"admin-password","newPassword":"password2"}`, fiber.StatusForbidden},
		{"audit events as hr", http.MethodGet, "/audit-events", hr, "", fiber.StatusForbidden},
		{"clients without token", http.MethodGet, "/clients", "", "", fiber.StatusUnauthorized},
		{"create client as hr", http.MethodPost, "/clients", hr, `{"name":"Acme"}`, fiber.StatusForbidden},
		{"create team as hr", http.MethodPost, "/teams", hr, `{"name":"Core"}`, fiber.StatusForbidden},
		{"toggle employee as hr", http.MethodPatch, "/employees/1/toggle-status", hr, "", fiber.StatusForbidden},
		{"add note as hr", http.MethodPost, "/employees/1/notes", hr, `{"content":"x"}`, fiber.StatusForbidden},
		{"recovery configured is public", http.MethodGet, "/auth/recovery-configured", "", "", fiber.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := e.call(t, tc.method, tc.path, tc.token, tc.body)
			assert.Equal(t, tc.want, resp.StatusCode, body)
			if tc.want >= 400 {
				assert.Equal(t, false, body["success"])
			}
		})
	}
	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestAuditEvents_PrimaryAdmin(t *testing.T) {
	e := newEnv(t)
	e.seed(t, primaryEmail, "admin-password", models.RoleAdmin)
	token := e.login(t, primaryEmail, "admin-password")

	e.mock.ExpectQuery(`SELECT \* FROM "audit_events" WHERE action = \$1 ORDER BY created_at DESC LIMIT \$2`).
		WithArgs("auth.login", 100).
		WillReturnRows(sqlmock.NewRows([]string{"id", "action"}).AddRow(1, "auth.login"))

	resp, body := e.call(t, http.MethodGet, "/audit-events?action=auth.login", token, "")
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Len(t, body["data"], 1)
	require.NoError(t, e.mock.ExpectationsWereMet())
}

func TestDeactivationEndsSession(t *testing.T) {
	e := newEnv(t)
	e.seed(t, primaryEmail, "admin-password", models.RoleAdmin)
	hrUser := e.seed(t, "hr@x.com", "hr-password", models.RoleHR)

	primary := e.login(t, primaryEmail, "admin-password")
	hr := e.login(t, "hr@x.com", "hr-password")

	resp, _ := e.call(t, http.MethodGet, "/auth/me", hr, "")
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, body := e.call(t, http.MethodPatch, "/users/"+itoa(hrUser.ID)+"/status", primary, `{"active":false}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)

	resp, body = e.call(t, http.MethodGet, "/auth/me", hr, "")
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	assert.Equal(t, "Your account has been deactivated. Please contact the administrator.", body["message"])

	resp, _ = e.call(t, http.MethodPost, "/auth/login", "", `{"email":"hr@x.com","password":"hr-password"}`)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestRecoveryFlow(t *testing.T) {
	e := newEnv(t)
	e.seed(t, primaryEmail, "admin-password", models.RoleAdmin)
	primary := e.login(t, primaryEmail, "admin-password")

	_, body := e.call(t, http.MethodGet, "/auth/recovery-configured", "", "")
	assert.Equal(t, false, body["configured"])

	resp, body := e.call(t, http.MethodPost, "/auth/reset-admin-password", "", `{"answer":"blue","newPassword":"new-password"}`)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid recovery credentials", body["message"])

	resp, body = e.call(t, http.MethodPost, "/auth/set-recovery-answer", primary, `{"answer":"blue"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)

	_, body = e.call(t, http.MethodGet, "/auth/recovery-configured", "", "")
	assert.Equal(t, true, body["configured"])

	resp, body = e.call(t, http.MethodPost, "/auth/reset-admin-password", "", `{"answer":"red","newPassword":"new-password"}`)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, "Invalid recovery credentials", body["message"])

	resp, body = e.call(t, http.MethodPost, "/auth/reset-admin-password", "", `{"answer":"blue","newPassword":"new-password"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)

	resp, _ = e.call(t, http.MethodPost, "/auth/login", "", `{"email":"`+primaryEmail+`","password":"admin-password"}`)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
	e.login(t, primaryEmail, "new-password")

	assert.Contains(t, e.audit.Actions(), models.AuditActionPasswordReset)
}

func TestResetRateLimit(t *testing.T) {
	e := newEnv(t)
	e.seed(t, primaryEmail, "admin-password", models.RoleAdmin)

	for i := 0; i < ratelimit.ResetPasswordRule.Max; i++ {
		resp, _ := e.call(t, http.MethodPost, "/auth/reset-admin-password", "", `{"answer":"nope","newPassword":"new-password"}`)
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode, "attempt %d", i+1)
	}

	resp, body := e.call(t, http.MethodPost, "/auth/reset-admin-password", "", `{"answer":"nope","newPassword":"new-password"}`)
	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, ratelimit.ResetPasswordRule.Message, body["message"])
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderRetryAfter))
	assert.Equal(t, "0", resp.Header.Get("RateLimit-Remaining"))

	// a new window restores the budget
	e.mr.FastForward(ratelimit.ResetPasswordRule.Window)
	resp, _ = e.call(t, http.MethodPost, "/auth/reset-admin-password", "", `{"answer":"nope","newPassword":"new-password"}`)
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
}

func TestRateLimiterUnavailable(t *testing.T) {
	e := newEnv(t)
	e.mr.Close()

	resp, body := e.call(t, http.MethodPost, "/auth/login", "", `{"email":"a@x.com","password":"password1"}`)
	assert.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
	assert.Equal(t, "Rate limiter unavailable. Please try again later.", body["message"])
}

func TestOpenRegistration(t *testing.T) {
	e := newEnv(t, func(c *config.Config) { c.AllowOpenRegistration = true })

	resp, body := e.call(t, http.MethodPost, "/auth/register", "", `{"email":"new@x.com","password":"password1"}`)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, body)
	assert.Equal(t, "hr", body["role"])

	resp, _ = e.call(t, http.MethodPost, "/auth/register", "", `{"email":"boss@x.com","password":"password1","role":"admin"}`)
	assert.Equal(t, fiber.StatusForbidden, resp.StatusCode)
}

func TestErrorHandler_Development(t *testing.T) {
	e := newEnv(t, func(c *config.Config) { c.AppEnv = "development" })

	resp, body := e.call(t, http.MethodPost, "/auth/login", "", `{"email":`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "Invalid request body", body["message"])
	assert.Contains(t, body["error"], "Invalid request body")
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func TestLongSecretsAreValidationErrors(t *testing.T) {
	e := newEnv(t)
	e.seed(t, primaryEmail, "admin-password", models.RoleAdmin)
	primary := e.login(t, primaryEmail, "admin-password")
	long := strings.Repeat("a", 80)

	resp, body := e.call(t, http.MethodPost, "/auth/set-recovery-answer", primary, `{"answer":"`+long+`"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, body)
	assert.Equal(t, "Recovery answer must be at most 72 bytes", body["message"])

	resp, body = e.call(t, http.MethodPost, "/auth/set-recovery-answer", primary, `{"answer":"blue"}`)
	require.Equal(t, fiber.StatusOK, resp.StatusCode, body)

	cases := []struct {
		name  string
		path  string
		token string
		body  string
	}{
		{"register", "/auth/register", primary, `{"email":"long@x.com","password":"` + long + `"}`},
		{"reset with correct answer", "/auth/reset-admin-password", "", `{"answer":"blue","newPassword":"` + long + `"}`},
		{"change password", "/auth/change-password", primary, `{"currentPassword":"admin-password","newPassword":"` + long + `"}`},
		{"update recovery answer", "/auth/update-recovery-answer", primary, `{"oldAnswer":"blue","newAnswer":"` + long + `"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := e.call(t, http.MethodPost, tc.path, tc.token, tc.body)
			assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, body)
		})
	}

	// a multibyte answer shorter than three characters is still too short
	resp, _ = e.call(t, http.MethodPost, "/auth/set-recovery-answer", primary, `{"answer":"日"}`)
	assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)

	e.login(t, primaryEmail, "admin-password")
}

func TestRecoveryAnswerLimitCountsOnlyPrimaryAdmin(t *testing.T) {
	e := newEnv(t)
	e.seed(t, primaryEmail, "admin-password", models.RoleAdmin)
	e.seed(t, "hr@x.com", "hr-password", models.RoleHR)
	primary := e.login(t, primaryEmail, "admin-password")
	hr := e.login(t, "hr@x.com", "hr-password")

	for i := 0; i <= ratelimit.RecoveryAnswerRule.Max; i++ {
		resp, _ := e.call(t, http.MethodPost, "/auth/set-recovery-answer", "", `{"answer":"blue"}`)
		require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		resp, _ = e.call(t, http.MethodPost, "/auth/set-recovery-answer", hr, `{"answer":"blue"}`)
		require.Equal(t, fiber.StatusForbidden, resp.StatusCode)
	}

	resp, body := e.call(t, http.MethodPost, "/auth/set-recovery-answer", primary, `{"answer":"blue"}`)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode, body)
	assert.Equal(t, strconv.Itoa(ratelimit.RecoveryAnswerRule.Max-1), resp.Header.Get("RateLimit-Remaining"))
}
