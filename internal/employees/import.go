package employees

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"hrportal-backend/internal/apperr"
	"hrportal-backend/internal/audit"
	"hrportal-backend/internal/httpx"
	"hrportal-backend/internal/logging"
	"hrportal-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"github.com/xuri/excelize/v2"
	"gorm.io/gorm"
)

const maxImportRows = 1000

// importColumns maps normalized header cells to the field they fill.
var importColumns = map[string]string{
	"employeecode":     "employeeCode",
	"code":             "employeeCode",
	"firstname":        "firstName",
	"lastname":         "lastName",
	"personalemail":    "personalEmail",
	"companyemail":     "companyEmail",
	"officialemail":    "companyEmail",
	"phone":            "phone",
	"dob":              "dob",
	"dateofbirth":      "dob",
	"doj":              "doj",
	"dateofjoining":    "doj",
	"experienceyears":  "experienceYears",
	"experiencemonths": "experienceMonths",
	"team":             "team",
	"title":            "title",
	"gender":           "gender",
}

type ImportFailure struct {
	Row    int      `json:"row"`
	Errors []string `json:"errors"`
}

type importRow struct {
	line int
	req  CreateEmployeeRequest
	errs []string
}

// readSheet parses the first sheet of an xlsx workbook. The first row must be
// a header naming the columns; unknown columns are ignored.
func readSheet(r io.Reader) ([]importRow, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "Could not read Excel file", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apperr.Validation("Excel file has no sheets")
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperr.Wrap(apperr.KindValidation, "Could not read sheet", err)
	}
	if len(rows) < 2 {
		return nil, apperr.Validation("Excel file has no employee rows")
	}
	if len(rows)-1 > maxImportRows {
		return nil, apperr.Validation(fmt.Sprintf("At most %d employees can be imported at once", maxImportRows))
	}

	header := make(map[int]string, len(rows[0]))
	for i, cell := range rows[0] {
		if field, ok := importColumns[normalizeHeader(cell)]; ok {
			header[i] = field
		}
	}
	if !hasColumn(header, "firstName") || !hasColumn(header, "lastName") {
		return nil, apperr.Validation("Header row must contain First Name and Last Name columns")
	}

	out := make([]importRow, 0, len(rows)-1)
	for i, row := range rows[1:] {
		if blankRow(row) {
			continue
		}
		// spreadsheet rows are 1-based and the header is row 1
		ir := importRow{line: i + 2}
		for col, cell := range row {
			field, ok := header[col]
			if !ok {
				continue
			}
			cell = strings.TrimSpace(cell)
			if cell == "" {
				continue
			}
			ir.set(field, cell)
		}
		out = append(out, ir)
	}
	return out, nil
}

func (ir *importRow) set(field, v string) {
	s := &v
	switch field {
	case "employeeCode":
		ir.req.EmployeeCode = s
	case "firstName":
		ir.req.FirstName = s
	case "lastName":
		ir.req.LastName = s
	case "personalEmail":
		ir.req.PersonalEmail = s
	case "companyEmail":
		ir.req.CompanyEmail = s
	case "phone":
		ir.req.Phone = s
	case "dob":
		ir.req.Dob = s
	case "doj":
		ir.req.Doj = s
	case "team":
		ir.req.Team = s
	case "title":
		ir.req.Title = s
	case "gender":
		ir.req.Gender = s
	case "experienceYears", "experienceMonths":
		n, err := strconv.Atoi(v)
		if err != nil {
			ir.errs = append(ir.errs, "Experience must be a whole number")
			return
		}
		if field == "experienceYears" {
			ir.req.ExperienceYears = &n
		} else {
			ir.req.ExperienceMonths = &n
		}
	}
}

func normalizeHeader(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	return strings.NewReplacer(" ", "", "_", "", "-", "", ".", "").Replace(s)
}

func hasColumn(header map[int]string, field string) bool {
	for _, f := range header {
		if f == field {
			return true
		}
	}
	return false
}

func blankRow(row []string) bool {
	for _, cell := range row {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// POST /employees/import (multipart, field "file")
// Rows that fail validation or collide with an existing code or email are
// reported back; the rest are created.
func ImportEmployeesHandler(db *gorm.DB, w audit.Writer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		fileHeader, err := c.FormFile("file")
		if err != nil {
			return apperr.Wrap(apperr.KindValidation, "File upload failed", err)
		}
		if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".xlsx") {
			return apperr.Validation("Only .xlsx files can be imported")
		}

		file, err := fileHeader.Open()
		if err != nil {
			return apperr.Internal("Could not open uploaded file", err)
		}
		defer file.Close()

		rows, err := readSheet(file)
		if err != nil {
			return err
		}

		ctx := c.UserContext()
		failures := make([]ImportFailure, 0)
		seenCodes := map[string]int{}
		seenEmails := map[string]int{}
		imported := 0

		for _, row := range rows {
			req := row.req
			errs := append(row.errs, validate(fields{
				FirstName:        req.FirstName,
				LastName:         req.LastName,
				PersonalEmail:    req.PersonalEmail,
				CompanyEmail:     req.CompanyEmail,
				Phone:            req.Phone,
				DateOfBirth:      req.Dob,
				DateOfJoining:    req.Doj,
				ExperienceYears:  req.ExperienceYears,
				ExperienceMonths: req.ExperienceMonths,
				Gender:           req.Gender,
			}, true)...)
			if len(errs) > 0 {
				failures = append(failures, ImportFailure{Row: row.line, Errors: errs})
				continue
			}

			code := httpx.TrimToNil(req.EmployeeCode)
			mainEmail := primaryEmail(httpx.TrimToNil(req.CompanyEmail), httpx.TrimToNil(req.PersonalEmail))
			if code != nil {
				if prev, dup := seenCodes[*code]; dup {
					failures = append(failures, ImportFailure{Row: row.line, Errors: []string{fmt.Sprintf("Employee code repeats row %d", prev)}})
					continue
				}
			}
			if prev, dup := seenEmails[mainEmail]; dup {
				failures = append(failures, ImportFailure{Row: row.line, Errors: []string{fmt.Sprintf("Email repeats row %d", prev)}})
				continue
			}

			if _, err := insertEmployee(ctx, db, req); err != nil {
				var ae *apperr.Error
				if errors.As(err, &ae) && ae.Kind != apperr.KindInternal {
					failures = append(failures, ImportFailure{Row: row.line, Errors: []string{ae.Message}})
					continue
				}
				logging.FromFiber(c, nil).ErrorContext(ctx, "employee import row failed", "row", row.line, "error", err)
				failures = append(failures, ImportFailure{Row: row.line, Errors: []string{"Failed to create employee"}})
				continue
			}

			if code != nil {
				seenCodes[*code] = row.line
			}
			seenEmails[mainEmail] = row.line
			imported++
		}

		if imported > 0 {
			httpx.Record(c, w, models.AuditActionCreate, "employee", 0,
				"employees imported from %s: %d created, %d rejected", fileHeader.Filename, imported, len(failures))
		}

		return c.JSON(fiber.Map{
			"success":  true,
			"message":  fmt.Sprintf("%d employee(s) imported. %d row(s) rejected.", imported, len(failures)),
			"imported": imported,
			"failed":   failures,
		})
	}
}
