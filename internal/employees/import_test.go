package employees

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"hrportal-backend/internal/apperr"
	"hrportal-backend/internal/models"
	"hrportal-backend/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func workbook(t *testing.T, rows ...[]any) *bytes.Buffer {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()
	sheet := f.GetSheetName(0)
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow(sheet, cell, &row))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	return buf
}

func upload(t *testing.T, app *fiber.App, filename string, content []byte) (int, map[string]any) {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/employees/import", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	return resp.StatusCode, out
}

func TestReadSheet(t *testing.T) {
	buf := workbook(t,
		[]any{"Employee Code", "First Name", "last_name", "Official Email", "Experience Years", "Notes"},
		[]any{"E1", "Ada", "Lovelace", "ada@x.com", "5", "ignored"},
		[]any{"", "", "", ""},
		[]any{"E2", " Alan ", "Turing", "alan@x.com", "many"},
	)

	rows, err := readSheet(buf)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 2, rows[0].line)
	assert.Equal(t, "E1", *rows[0].req.EmployeeCode)
	assert.Equal(t, "ada@x.com", *rows[0].req.CompanyEmail)
	assert.Equal(t, 5, *rows[0].req.ExperienceYears)
	assert.Empty(t, rows[0].errs)

	assert.Equal(t, 4, rows[1].line)
	assert.Equal(t, "Alan", *rows[1].req.FirstName)
	assert.Nil(t, rows[1].req.ExperienceYears)
	assert.Equal(t, []string{"Experience must be a whole number"}, rows[1].errs)
}

func TestReadSheet_Rejects(t *testing.T) {
	t.Run("missing name columns", func(t *testing.T) {
		_, err := readSheet(workbook(t, []any{"Email"}, []any{"a@x.com"}))
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
	t.Run("header only", func(t *testing.T) {
		_, err := readSheet(workbook(t, []any{"First Name", "Last Name"}))
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
	t.Run("not a workbook", func(t *testing.T) {
		_, err := readSheet(bytes.NewReader([]byte("first,last\n")))
		assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	})
}

func TestImportEmployees(t *testing.T) {
	db, mock := testutil.NewMockDB(t)
	w := &testutil.AuditLog{}
	app := newTestApp(db, w)
	app.Post("/employees/import", ImportEmployeesHandler(db, w))

	status, _ := upload(t, app, "staff.csv", []byte("x"))
	assert.Equal(t, fiber.StatusBadRequest, status)

	mock.ExpectQuery(`SELECT count\(\*\) FROM "employees" WHERE email = \$1`).
		WithArgs("ada@x.com").
		WillReturnRows(countRows(0))
	mock.ExpectBegin()
	mock.ExpectQuery(`INSERT INTO "employees"`).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(7))
	mock.ExpectCommit()

	buf := workbook(t,
		[]any{"First Name", "Last Name", "Personal Email"},
		[]any{"Ada", "Lovelace", "ada@x.com"},
		[]any{"Alan", "", "alan@x.com"},
		[]any{"Grace", "Hopper", "ada@x.com"},
	)
	status, body := upload(t, app, "staff.xlsx", buf.Bytes())
	require.Equal(t, fiber.StatusOK, status, body)
	assert.EqualValues(t, 1, body["imported"])

	failed := body["failed"].([]any)
	require.Len(t, failed, 2)
	assert.EqualValues(t, 3, failed[0].(map[string]any)["row"])
	assert.Equal(t, []any{"Last name is required"}, failed[0].(map[string]any)["errors"])
	assert.EqualValues(t, 4, failed[1].(map[string]any)["row"])
	assert.Equal(t, []any{"Email repeats row 2"}, failed[1].(map[string]any)["errors"])

	assert.Equal(t, []models.AuditAction{models.AuditActionCreate}, w.Actions())
	require.NoError(t, mock.ExpectationsWereMet())
}
