package testutil

import (
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"hrportal-backend/internal/apperr"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewMockDB returns a gorm handle backed by sqlmock, configured like the
// production connection.
func NewMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		TranslateError: true,
		Logger:         logger.Discard,
	})
	require.NoError(t, err)
	return db, mock
}

// NewApp returns a fiber app that renders errors as {success:false,message}
// and runs mw in front of every route.
func NewApp(mw ...fiber.Handler) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			status, body := apperr.KindOf(err).Status(), fiber.Map{"success": false, "message": err.Error()}
			var fe *fiber.Error
			var ae *apperr.Error
			switch {
			case errors.As(err, &ae):
				body["message"] = ae.Message
				if len(ae.Details) > 0 {
					body["errors"] = ae.Details
				}
			case errors.As(err, &fe):
				status, body["message"] = fe.Code, fe.Message
			}
			return c.Status(status).JSON(body)
		},
	})
	for _, h := range mw {
		app.Use(h)
	}
	return app
}

// DoJSON sends body as JSON and decodes the response object.
func DoJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()

	var r io.Reader
	if body != "" {
		r = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, r)
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}
