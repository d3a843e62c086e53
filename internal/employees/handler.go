package employees

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"hrportal-backend/internal/apperr"
	"hrportal-backend/internal/audit"
	"hrportal-backend/internal/database"
	"hrportal-backend/internal/httpx"
	"hrportal-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

// -------------------------
// Request/Response Types
// -------------------------

type CreateEmployeeRequest struct {
	EmployeeCode     *string `json:"employeeCode"`
	Team             *string `json:"team"`
	TeamID           *uint   `json:"teamId"`
	ClientID         *uint   `json:"clientId"`
	FirstName        *string `json:"firstName"`
	LastName         *string `json:"lastName"`
	Dob              *string `json:"dob"`
	Doj              *string `json:"doj"`
	PersonalEmail    *string `json:"personalEmail"`
	CompanyEmail     *string `json:"companyEmail"`
	Phone            *string `json:"phone"`
	ExperienceYears  *int    `json:"experienceYears"`
	ExperienceMonths *int    `json:"experienceMonths"`
	Title            *string `json:"title"`
	Gender           *string `json:"gender"`
	Active           *bool   `json:"active"`
}

// UpdateEmployeeRequest touches only fields present in the body. null clears
// a nullable column; firstName, lastName and active cannot be null.
type UpdateEmployeeRequest struct {
	EmployeeCode     httpx.Optional[string] `json:"employeeCode"`
	Team             httpx.Optional[string] `json:"team"`
	TeamID           httpx.Optional[uint]   `json:"teamId"`
	ClientID         httpx.Optional[uint]   `json:"clientId"`
	FirstName        httpx.Optional[string] `json:"firstName"`
	LastName         httpx.Optional[string] `json:"lastName"`
	Dob              httpx.Optional[string] `json:"dob"`
	Doj              httpx.Optional[string] `json:"doj"`
	PersonalEmail    httpx.Optional[string] `json:"personalEmail"`
	CompanyEmail     httpx.Optional[string] `json:"companyEmail"`
	Phone            httpx.Optional[string] `json:"phone"`
	ExperienceYears  httpx.Optional[int]    `json:"experienceYears"`
	ExperienceMonths httpx.Optional[int]    `json:"experienceMonths"`
	Title            httpx.Optional[string] `json:"title"`
	Gender           httpx.Optional[string] `json:"gender"`
	Active           httpx.Optional[bool]   `json:"active"`
}

type EmployeeResponse struct {
	models.Employee
	NoteCount int64 `json:"noteCount"`
}

type EmployeeDetail struct {
	models.Employee
	Notes []NoteResponse `json:"notes"`
}

type GroupCount struct {
	ID    uint  `json:"id"`
	Count int64 `json:"count"`
}

type Stats struct {
	Total    int64        `json:"total"`
	Active   int64        `json:"active"`
	Inactive int64        `json:"inactive"`
	ByTeam   []GroupCount `json:"byTeam"`
	ByClient []GroupCount `json:"byClient"`
}

var sortColumns = map[string]string{
	"createdAt":     "created_at",
	"firstName":     "first_name",
	"lastName":      "last_name",
	"dateOfJoining": "date_of_joining",
	"employeeCode":  "employee_code",
}

// -------------------------
// Employee CRUD
// -------------------------

// GET /employees?search=&teamId=&clientId=&title=&gender=&minExp=&maxExp=&status=&sortBy=&sortOrder=&page=&pageSize=
func ListEmployeesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		page := httpx.ParsePage(c, 10, 100)

		filter := func(tx *gorm.DB) *gorm.DB {
			if search := strings.TrimSpace(c.Query("search")); search != "" {
				like := "%" + search + "%"
				tx = tx.Where(
					"employee_code ILIKE ? OR first_name ILIKE ? OR last_name ILIKE ? OR email ILIKE ? OR personal_email ILIKE ? OR company_email ILIKE ? OR title ILIKE ?",
					like, like, like, like, like, like, like,
				)
			}
			if id, ok := queryUint(c, "teamId"); ok {
				tx = tx.Where("team_id = ?", id)
			}
			if id, ok := queryUint(c, "clientId"); ok {
				tx = tx.Where("client_id = ?", id)
			}
			if title := strings.TrimSpace(c.Query("title")); title != "" {
				tx = tx.Where("title ILIKE ?", "%"+title+"%")
			}
			if gender := strings.TrimSpace(c.Query("gender")); gender != "" {
				tx = tx.Where("gender = ?", gender)
			}
			if n, ok := queryInt(c, "minExp"); ok {
				tx = tx.Where("experience_years_at_joining >= ?", n)
			}
			if n, ok := queryInt(c, "maxExp"); ok {
				tx = tx.Where("experience_years_at_joining <= ?", n)
			}
			switch c.Query("status") {
			case "active":
				tx = tx.Where("active = ?", true)
			case "inactive":
				tx = tx.Where("active = ?", false)
			}
			return tx
		}

		var total int64
		if err := filter(db.WithContext(ctx).Model(&models.Employee{})).Count(&total).Error; err != nil {
			return apperr.Internal("Failed to fetch employees", err)
		}

		column, ok := sortColumns[c.Query("sortBy")]
		if !ok {
			column = "created_at"
		}
		order := column + " " + httpx.SortOrder(c.Query("sortOrder"), "DESC")

		var list []models.Employee
		err := filter(db.WithContext(ctx).Model(&models.Employee{})).
			Preload("Team").
			Preload("Client").
			Order(order).
			Offset(page.Offset()).
			Limit(page.PageSize).
			Find(&list).Error
		if err != nil {
			return apperr.Internal("Failed to fetch employees", err)
		}

		ids := make([]uint, 0, len(list))
		for _, e := range list {
			ids = append(ids, e.ID)
		}
		notes, err := database.CountBy(ctx, db, &models.Note{}, "employee_id", ids)
		if err != nil {
			return apperr.Internal("Failed to fetch employees", err)
		}

		resp := make([]EmployeeResponse, 0, len(list))
		for _, e := range list {
			resp = append(resp, EmployeeResponse{Employee: e, NoteCount: notes[e.ID]})
		}
		return c.JSON(fiber.Map{
			"success":    true,
			"data":       resp,
			"pagination": httpx.NewPagination(page, total),
		})
	}
}

// GET /employees/stats
func EmployeeStatsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stats, err := loadStats(c.UserContext(), db)
		if err != nil {
			return apperr.Internal("Failed to fetch employee statistics", err)
		}
		return c.JSON(fiber.Map{"success": true, "data": stats})
	}
}

// GET /employees/:id
func GetEmployeeHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "employee")
		if err != nil {
			return err
		}

		var employee models.Employee
		err = db.WithContext(c.UserContext()).
			Preload("Team").
			Preload("Client").
			Preload("Notes", func(tx *gorm.DB) *gorm.DB { return tx.Order("created_at DESC") }).
			Preload("Notes.Author").
			First(&employee, id).Error
		if err != nil {
			return notFoundOr(err, "Internal server error")
		}

		notes := make([]NoteResponse, 0, len(employee.Notes))
		for _, n := range employee.Notes {
			notes = append(notes, toNoteResponse(n, true))
		}
		employee.Notes = nil

		return c.JSON(fiber.Map{"success": true, "data": EmployeeDetail{Employee: employee, Notes: notes}})
	}
}

// POST /employees
func CreateEmployeeHandler(db *gorm.DB, w audit.Writer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateEmployeeRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		errs := validate(fields{
			FirstName:        body.FirstName,
			LastName:         body.LastName,
			PersonalEmail:    body.PersonalEmail,
			CompanyEmail:     body.CompanyEmail,
			Phone:            body.Phone,
			DateOfBirth:      body.Dob,
			DateOfJoining:    body.Doj,
			ExperienceYears:  body.ExperienceYears,
			ExperienceMonths: body.ExperienceMonths,
			Gender:           body.Gender,
		}, true)
		if len(errs) > 0 {
			return apperr.ValidationDetails("Validation failed", errs)
		}

		ctx := c.UserContext()
		employee, err := insertEmployee(ctx, db, body)
		if err != nil {
			return err
		}

		httpx.Record(c, w, models.AuditActionCreate, "employee", employee.ID,
			"employee created: %s %s", employee.FirstName, employee.LastName)

		created, err := loadWithRefs(ctx, db, employee.ID)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": "Employee created successfully",
			"data":    created,
		})
	}
}

// insertEmployee creates an employee from a payload that already passed
// validate. Collisions and unknown references come back as apperr values.
func insertEmployee(ctx context.Context, db *gorm.DB, req CreateEmployeeRequest) (*models.Employee, error) {
	code := httpx.TrimToNil(req.EmployeeCode)
	personal := httpx.TrimToNil(req.PersonalEmail)
	company := httpx.TrimToNil(req.CompanyEmail)
	mainEmail := primaryEmail(company, personal)

	if code != nil {
		if taken, err := exists(ctx, db, "employee_code = ?", *code); err != nil {
			return nil, apperr.Internal("Failed to create employee", err)
		} else if taken {
			return nil, apperr.Conflict("Employee code already exists")
		}
	}
	if taken, err := exists(ctx, db, "email = ?", mainEmail); err != nil {
		return nil, apperr.Internal("Failed to create employee", err)
	} else if taken {
		return nil, apperr.Conflict("Email already exists")
	}
	teamID, err := checkRef(ctx, db, &models.Team{}, req.TeamID, "Team not found")
	if err != nil {
		return nil, err
	}
	clientID, err := checkRef(ctx, db, &models.Client{}, req.ClientID, "Client not found")
	if err != nil {
		return nil, err
	}

	teamName := httpx.TrimToNil(req.Team)
	title := httpx.TrimToNil(req.Title)
	if title == nil {
		title = teamName
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}

	employee := models.Employee{
		EmployeeCode:              code,
		FirstName:                 strings.TrimSpace(*req.FirstName),
		LastName:                  strings.TrimSpace(*req.LastName),
		Email:                     mainEmail,
		PersonalEmail:             personal,
		CompanyEmail:              company,
		Phone:                     httpx.TrimToNil(req.Phone),
		DateOfBirth:               parseDate(req.Dob),
		DateOfJoining:             parseDate(req.Doj),
		ExperienceYearsAtJoining:  req.ExperienceYears,
		ExperienceMonthsAtJoining: req.ExperienceMonths,
		TeamName:                  teamName,
		Title:                     title,
		Gender:                    gender(req.Gender),
		Active:                    active,
		TeamID:                    teamID,
		ClientID:                  clientID,
	}
	// Active has a column default; Select("*") keeps an explicit false.
	if err := db.WithContext(ctx).Select("*").Omit("ID").Create(&employee).Error; err != nil {
		if errors.Is(database.Translate(err), database.ErrDuplicate) {
			return nil, apperr.Conflict("Duplicate entry: Email or employee code already exists")
		}
		return nil, apperr.Internal("Failed to create employee", err)
	}
	return &employee, nil
}

// PUT /employees/:id
func UpdateEmployeeHandler(db *gorm.DB, w audit.Writer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "employee")
		if err != nil {
			return err
		}
		var body UpdateEmployeeRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		errs := validate(fields{
			FirstName:        presentString(body.FirstName),
			LastName:         presentString(body.LastName),
			PersonalEmail:    body.PersonalEmail.Ptr(),
			CompanyEmail:     body.CompanyEmail.Ptr(),
			Phone:            body.Phone.Ptr(),
			DateOfBirth:      body.Dob.Ptr(),
			DateOfJoining:    body.Doj.Ptr(),
			ExperienceYears:  body.ExperienceYears.Ptr(),
			ExperienceMonths: body.ExperienceMonths.Ptr(),
			Gender:           body.Gender.Ptr(),
		}, false)
		if body.Active.Set && body.Active.Null {
			errs = append(errs, "Active status must be a boolean")
		}
		if len(errs) > 0 {
			return apperr.ValidationDetails("Validation failed", errs)
		}

		ctx := c.UserContext()
		var current models.Employee
		if err := db.WithContext(ctx).First(&current, id).Error; err != nil {
			return notFoundOr(err, "Failed to update employee")
		}

		updates := map[string]any{}

		if body.EmployeeCode.Set {
			code := httpx.TrimToNil(body.EmployeeCode.Ptr())
			if code != nil && (current.EmployeeCode == nil || *code != *current.EmployeeCode) {
				if taken, err := exists(ctx, db, "employee_code = ? AND id <> ?", *code, id); err != nil {
					return apperr.Internal("Failed to update employee", err)
				} else if taken {
					return apperr.Conflict("Employee code already exists")
				}
			}
			updates["employee_code"] = code
		}
		if body.FirstName.Set {
			updates["first_name"] = strings.TrimSpace(body.FirstName.Value)
		}
		if body.LastName.Set {
			updates["last_name"] = strings.TrimSpace(body.LastName.Value)
		}
		if body.Phone.Set {
			updates["phone"] = httpx.TrimToNil(body.Phone.Ptr())
		}
		if body.Dob.Set {
			updates["date_of_birth"] = parseDate(body.Dob.Ptr())
		}
		if body.Doj.Set {
			updates["date_of_joining"] = parseDate(body.Doj.Ptr())
		}
		if body.Title.Set {
			updates["title"] = httpx.TrimToNil(body.Title.Ptr())
		}
		if body.Gender.Set {
			updates["gender"] = gender(body.Gender.Ptr())
		}
		if body.Team.Set {
			updates["team_name"] = httpx.TrimToNil(body.Team.Ptr())
		}
		if body.Active.Set {
			updates["active"] = body.Active.Value
		}
		if body.ExperienceYears.Set {
			updates["experience_years_at_joining"] = body.ExperienceYears.Ptr()
		}
		if body.ExperienceMonths.Set {
			updates["experience_months_at_joining"] = body.ExperienceMonths.Ptr()
		}

		if body.PersonalEmail.Set || body.CompanyEmail.Set {
			personal, company := current.PersonalEmail, current.CompanyEmail
			if body.PersonalEmail.Set {
				personal = httpx.TrimToNil(body.PersonalEmail.Ptr())
				updates["personal_email"] = personal
			}
			if body.CompanyEmail.Set {
				company = httpx.TrimToNil(body.CompanyEmail.Ptr())
				updates["company_email"] = company
			}

			mainEmail := primaryEmail(company, personal)
			if mainEmail == "" {
				return apperr.ValidationDetails("Validation failed",
					[]string{"At least one email (personal or company) is required"})
			}
			if mainEmail != current.Email {
				if taken, err := exists(ctx, db, "email = ? AND id <> ?", mainEmail, id); err != nil {
					return apperr.Internal("Failed to update employee", err)
				} else if taken {
					return apperr.Conflict("Email already exists")
				}
				updates["email"] = mainEmail
			}
		}

		if body.TeamID.Set {
			teamID, err := checkRef(ctx, db, &models.Team{}, body.TeamID.Ptr(), "Team not found")
			if err != nil {
				return err
			}
			updates["team_id"] = teamID
		}
		if body.ClientID.Set {
			clientID, err := checkRef(ctx, db, &models.Client{}, body.ClientID.Ptr(), "Client not found")
			if err != nil {
				return err
			}
			updates["client_id"] = clientID
		}

		if len(updates) > 0 {
			if err := db.WithContext(ctx).Model(&current).Updates(updates).Error; err != nil {
				if errors.Is(database.Translate(err), database.ErrDuplicate) {
					return apperr.Conflict("Duplicate entry: Email or employee code already exists")
				}
				return apperr.Internal("Failed to update employee", err)
			}
			httpx.Record(c, w, models.AuditActionUpdate, "employee", id,
				"employee updated: %s %s", current.FirstName, current.LastName)
		}

		updated, err := loadWithRefs(ctx, db, id)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Employee updated successfully",
			"data":    updated,
		})
	}
}

// DELETE /employees/:id?hard=true
// Without hard=true the employee is only deactivated.
func DeleteEmployeeHandler(db *gorm.DB, w audit.Writer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "employee")
		if err != nil {
			return err
		}

		ctx := c.UserContext()
		var employee models.Employee
		if err := db.WithContext(ctx).First(&employee, id).Error; err != nil {
			return notFoundOr(err, "Failed to delete employee")
		}

		if c.QueryBool("hard") {
			const inUse = "Cannot delete employee with existing notes. Please delete notes first or use soft delete."

			var notes int64
			if err := db.WithContext(ctx).Model(&models.Note{}).Where("employee_id = ?", id).Count(&notes).Error; err != nil {
				return apperr.Internal("Failed to delete employee", err)
			}
			if notes > 0 {
				return apperr.Conflict(inUse)
			}
			if err := db.WithContext(ctx).Delete(&employee).Error; err != nil {
				if errors.Is(database.Translate(err), database.ErrInUse) {
					return apperr.Conflict(inUse)
				}
				return apperr.Internal("Failed to delete employee", err)
			}

			httpx.Record(c, w, models.AuditActionDelete, "employee", id,
				"employee deleted: %s %s", employee.FirstName, employee.LastName)
			return c.JSON(fiber.Map{"success": true, "message": "Employee permanently deleted"})
		}

		if err := db.WithContext(ctx).Model(&employee).Update("active", false).Error; err != nil {
			return apperr.Internal("Failed to delete employee", err)
		}
		employee.Active = false

		httpx.Record(c, w, models.AuditActionUpdate, "employee", id,
			"employee deactivated: %s %s", employee.FirstName, employee.LastName)
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Employee deactivated successfully",
			"data":    employee,
		})
	}
}

// PATCH /employees/:id/toggle-status
func ToggleEmployeeStatusHandler(db *gorm.DB, w audit.Writer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "employee")
		if err != nil {
			return err
		}

		ctx := c.UserContext()
		var employee models.Employee
		if err := db.WithContext(ctx).First(&employee, id).Error; err != nil {
			return notFoundOr(err, "Failed to toggle employee status")
		}

		// conditional on the value just read so two toggles cannot collapse into one
		res := db.WithContext(ctx).Model(&models.Employee{}).
			Where("id = ? AND active = ?", id, employee.Active).
			Update("active", !employee.Active)
		if res.Error != nil {
			return apperr.Internal("Failed to toggle employee status", res.Error)
		}
		if res.RowsAffected == 0 {
			return apperr.Conflict("Employee status was changed by another request, please retry")
		}
		employee.Active = !employee.Active

		state := "deactivated"
		if employee.Active {
			state = "activated"
		}
		httpx.Record(c, w, models.AuditActionUpdate, "employee", id,
			"employee %s: %s %s", state, employee.FirstName, employee.LastName)

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Employee " + state + " successfully",
			"data": fiber.Map{
				"id":        employee.ID,
				"active":    employee.Active,
				"firstName": employee.FirstName,
				"lastName":  employee.LastName,
			},
		})
	}
}

// -------------------------
// Helpers
// -------------------------

func loadStats(ctx context.Context, db *gorm.DB) (*Stats, error) {
	var stats Stats
	g, ctx := errgroup.WithContext(ctx)

	count := func(dst *int64, where ...any) func() error {
		return func() error {
			q := db.WithContext(ctx).Model(&models.Employee{})
			if len(where) > 0 {
				q = q.Where(where[0], where[1:]...)
			}
			return q.Count(dst).Error
		}
	}
	group := func(dst *[]GroupCount, column string) func() error {
		return func() error {
			return db.WithContext(ctx).Model(&models.Employee{}).
				Select(column + " AS id, COUNT(*) AS count").
				Where(column + " IS NOT NULL").
				Group(column).
				Order(column).
				Scan(dst).Error
		}
	}

	g.Go(count(&stats.Total))
	g.Go(count(&stats.Active, "active = ?", true))
	g.Go(count(&stats.Inactive, "active = ?", false))
	g.Go(group(&stats.ByTeam, "team_id"))
	g.Go(group(&stats.ByClient, "client_id"))

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if stats.ByTeam == nil {
		stats.ByTeam = []GroupCount{}
	}
	if stats.ByClient == nil {
		stats.ByClient = []GroupCount{}
	}
	return &stats, nil
}

func loadWithRefs(ctx context.Context, db *gorm.DB, id uint) (*models.Employee, error) {
	var employee models.Employee
	if err := db.WithContext(ctx).Preload("Team").Preload("Client").First(&employee, id).Error; err != nil {
		return nil, notFoundOr(err, "Failed to fetch employee")
	}
	return &employee, nil
}

func exists(ctx context.Context, db *gorm.DB, query string, args ...any) (bool, error) {
	var n int64
	if err := db.WithContext(ctx).Model(&models.Employee{}).Where(query, args...).Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

// checkRef verifies that a referenced team or client exists. nil and zero
// both mean no reference.
func checkRef(ctx context.Context, db *gorm.DB, model any, id *uint, notFound string) (*uint, error) {
	if id == nil || *id == 0 {
		return nil, nil
	}
	var n int64
	if err := db.WithContext(ctx).Model(model).Where("id = ?", *id).Count(&n).Error; err != nil {
		return nil, apperr.Internal("Failed to verify reference", err)
	}
	if n == 0 {
		return nil, apperr.NotFound(notFound)
	}
	return id, nil
}

// primaryEmail is the company email, falling back to the personal one.
func primaryEmail(company, personal *string) string {
	if company != nil {
		return *company
	}
	if personal != nil {
		return *personal
	}
	return ""
}

func presentString(o httpx.Optional[string]) *string {
	if !o.Set {
		return nil
	}
	v := o.Value
	return &v
}

// parseDate assumes the value already passed validate.
func parseDate(s *string) *time.Time {
	v := httpx.TrimToNil(s)
	if v == nil {
		return nil
	}
	t, err := httpx.ParseDate(*v)
	if err != nil {
		return nil
	}
	return &t
}

func gender(s *string) *models.Gender {
	v := httpx.TrimToNil(s)
	if v == nil {
		return nil
	}
	g := models.Gender(*v)
	return &g
}

func queryUint(c *fiber.Ctx, key string) (uint64, bool) {
	n, err := strconv.ParseUint(c.Query(key), 10, 64)
	return n, err == nil
}

func queryInt(c *fiber.Ctx, key string) (int, bool) {
	n, err := strconv.Atoi(c.Query(key))
	return n, err == nil
}

func notFoundOr(err error, msg string) error {
	if errors.Is(database.Translate(err), database.ErrNotFound) {
		return apperr.NotFound("Employee not found")
	}
	return apperr.Internal(msg, err)
}
