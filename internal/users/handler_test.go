package users

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"testing"

	"hrportal-backend/internal/apperr"
	"hrportal-backend/internal/auth"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(f *fixture) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(apperr.KindOf(err).Status()).JSON(fiber.Map{"success": false, "message": err.Error()})
		},
	})
	// stands in for auth.JWTMiddleware
	app.Use(func(c *fiber.Ctx) error {
		auth.SetIdentity(c, f.actor)
		return c.Next()
	})
	app.Get("/users", ListUsersHandler(f.svc))
	app.Get("/users/:id", GetUserHandler(f.svc))
	app.Patch("/users/:id/status", UpdateUserStatusHandler(f.svc))
	app.Patch("/users/:id/role", UpdateUserRoleHandler(f.svc))
	app.Delete("/users/:id", DeleteUserHandler(f.svc))
	return app
}

func do(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func itoa(id uint) string {
	return strconv.FormatUint(uint64(id), 10)
}

func TestHandlers_ListAndGet(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)

	status, body := do(t, app, http.MethodGet, "/users", "")
	assert.Equal(t, fiber.StatusOK, status)
	data := body["data"].([]any)
	require.Len(t, data, 2)
	first := data[0].(map[string]any)
	assert.Equal(t, "hr@x.com", first["email"])
	_, leaked := first["passwordHash"]
	assert.False(t, leaked)

	status, _ = do(t, app, http.MethodGet, "/users/abc", "")
	assert.Equal(t, fiber.StatusBadRequest, status)
	status, _ = do(t, app, http.MethodGet, "/users/999", "")
	assert.Equal(t, fiber.StatusNotFound, status)
}

func TestHandlers_UpdateStatus(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)
	path := "/users/" + itoa(f.hr.ID) + "/status"

	for _, bad := range []string{`{}`, `{"active":null}`, `{"active":"false"}`, `{"active":0}`} {
		status, _ := do(t, app, http.MethodPatch, path, bad)
		assert.Equal(t, fiber.StatusBadRequest, status, bad)
	}

	status, body := do(t, app, http.MethodPatch, path, `{"active":false}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "User deactivated successfully", body["message"])
	assert.Equal(t, false, body["data"].(map[string]any)["active"])

	status, body = do(t, app, http.MethodPatch, "/users/"+itoa(f.primary.ID)+"/status", `{"active":false}`)
	assert.Equal(t, fiber.StatusForbidden, status)
	assert.Equal(t, "Cannot deactivate the main admin account", body["message"])
}

func TestHandlers_UpdateRoleAndDelete(t *testing.T) {
	f := newFixture(t)
	app := newTestApp(f)

	status, _ := do(t, app, http.MethodPatch, "/users/"+itoa(f.hr.ID)+"/role", `{"role":"root"}`)
	assert.Equal(t, fiber.StatusBadRequest, status)

	status, body := do(t, app, http.MethodPatch, "/users/"+itoa(f.hr.ID)+"/role", `{"role":"admin"}`)
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, "admin", body["data"].(map[string]any)["role"])

	status, _ = do(t, app, http.MethodDelete, "/users/"+itoa(f.primary.ID), "")
	assert.Equal(t, fiber.StatusForbidden, status)

	status, body = do(t, app, http.MethodDelete, "/users/"+itoa(f.hr.ID), "")
	assert.Equal(t, fiber.StatusOK, status)
	assert.Equal(t, true, body["success"])
}
