package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/requestid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTrip(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil))

	ctx := ContextWithLogger(context.Background(), logger)
	assert.Same(t, logger, FromContext(ctx))
	assert.Nil(t, FromContext(context.Background()))
}

func TestMiddlewareLogsFinalStatus(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, false, slog.LevelInfo)

	app := fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			return c.Status(fiber.StatusTeapot).SendString(err.Error())
		},
	})
	app.Use(requestid.New())
	app.Use(Middleware(logger))
	app.Get("/fail", func(c *fiber.Ctx) error {
		FromFiber(c, nil).Info("inside handler")
		return errors.New("nope")
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/fail", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTeapot, resp.StatusCode)

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)

	var handlerRecord, requestRecord map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &handlerRecord))
	require.NoError(t, json.Unmarshal(lines[1], &requestRecord))

	assert.Equal(t, "inside handler", handlerRecord["msg"])
	assert.NotEmpty(t, handlerRecord["request_id"])
	assert.Equal(t, handlerRecord["request_id"], requestRecord["request_id"])
	assert.Equal(t, float64(fiber.StatusTeapot), requestRecord["status"])
	assert.Equal(t, "/fail", requestRecord["path"])
}
