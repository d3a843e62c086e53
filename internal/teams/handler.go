package teams

import (
	"context"
	"errors"
	"strconv"
	"strings"

	"hrportal-backend/internal/apperr"
	"hrportal-backend/internal/audit"
	"hrportal-backend/internal/database"
	"hrportal-backend/internal/httpx"
	"hrportal-backend/internal/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// -------------------------
// Request/Response Types
// -------------------------

type CreateTeamRequest struct {
	Name         string  `json:"name"`
	ManagerName  *string `json:"managerName"`
	ManagerEmail *string `json:"managerEmail"`
	ClientID     *uint   `json:"clientId"`
	EmployeeIDs  []uint  `json:"employeeIds"`
}

// UpdateTeamRequest touches only fields present in the body. A present
// employeeIds replaces the whole membership; clientId null detaches the
// client.
type UpdateTeamRequest struct {
	Name         httpx.Optional[string] `json:"name"`
	ManagerName  httpx.Optional[string] `json:"managerName"`
	ManagerEmail httpx.Optional[string] `json:"managerEmail"`
	ClientID     httpx.Optional[uint]   `json:"clientId"`
	EmployeeIDs  httpx.Optional[[]uint] `json:"employeeIds"`
}

type TeamResponse struct {
	models.Team
	EmployeeCount int64 `json:"employeeCount"`
}

type TeamRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

var sortColumns = map[string]string{
	"name":        "name",
	"managerName": "manager_name",
	"createdAt":   "created_at",
}

// -------------------------
// Team CRUD
// -------------------------

// GET /teams?clientId=&search=&includeEmployees=&page=&pageSize=&sortBy=&sortOrder=
func ListTeamsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ctx := c.UserContext()
		page := httpx.ParsePage(c, 20, 200)

		filter := func(tx *gorm.DB) *gorm.DB {
			if raw := strings.TrimSpace(c.Query("clientId")); raw != "" {
				if clientID, err := strconv.ParseUint(raw, 10, 64); err == nil {
					tx = tx.Where("teams.client_id = ?", clientID)
				} else {
					tx = tx.Where("teams.client_id IN (?)",
						db.Model(&models.Client{}).Select("id").Where("name ILIKE ?", "%"+raw+"%"))
				}
			}
			if search := strings.TrimSpace(c.Query("search")); search != "" {
				like := "%" + search + "%"
				tx = tx.Where(
					"teams.name ILIKE ? OR teams.manager_name ILIKE ? OR teams.manager_email ILIKE ? OR teams.client_id IN (?)",
					like, like, like,
					db.Model(&models.Client{}).Select("id").Where("name ILIKE ?", like),
				)
			}
			return tx
		}

		var total int64
		if err := filter(db.WithContext(ctx).Model(&models.Team{})).Count(&total).Error; err != nil {
			return apperr.Internal("Failed to fetch teams", err)
		}

		column, ok := sortColumns[c.Query("sortBy")]
		if !ok {
			column = "name"
		}
		order := "teams." + column + " " + httpx.SortOrder(c.Query("sortOrder"), "ASC")

		dbq := filter(db.WithContext(ctx).Model(&models.Team{})).Preload("Client")
		if c.QueryBool("includeEmployees") {
			dbq = dbq.Preload("Employees", "active = ?", true)
		}

		var list []models.Team
		if err := dbq.Order(order).Offset(page.Offset()).Limit(page.PageSize).Find(&list).Error; err != nil {
			return apperr.Internal("Failed to fetch teams", err)
		}

		resp, err := withCounts(ctx, db, list)
		if err != nil {
			return apperr.Internal("Failed to fetch teams", err)
		}
		return c.JSON(fiber.Map{
			"success":    true,
			"data":       resp,
			"pagination": httpx.NewPagination(page, total),
		})
	}
}

// GET /teams/:id
func GetTeamHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "team")
		if err != nil {
			return err
		}

		team, err := loadTeam(c.UserContext(), db, id, true)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": team})
	}
}

// POST /teams
func CreateTeamHandler(db *gorm.DB, w audit.Writer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateTeamRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		name := strings.TrimSpace(body.Name)
		if name == "" {
			return apperr.Validation("Team name is required")
		}
		if v := httpx.TrimToNil(body.ManagerEmail); v != nil && !httpx.IsValidEmail(*v) {
			return apperr.Validation("Invalid manager email format")
		}

		ctx := c.UserContext()
		if taken, err := nameTaken(ctx, db, name, 0); err != nil {
			return apperr.Internal("Failed to create team", err)
		} else if taken {
			return apperr.Conflict("Team name already exists")
		}
		if body.ClientID != nil && *body.ClientID != 0 {
			if err := clientExists(ctx, db, *body.ClientID); err != nil {
				return err
			}
		} else {
			body.ClientID = nil
		}

		team := models.Team{
			Name:         name,
			ManagerName:  httpx.TrimToNil(body.ManagerName),
			ManagerEmail: httpx.TrimToNil(body.ManagerEmail),
			ClientID:     body.ClientID,
		}
		err := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Create(&team).Error; err != nil {
				return err
			}
			if len(body.EmployeeIDs) > 0 {
				return tx.Model(&models.Employee{}).
					Where("id IN ?", body.EmployeeIDs).
					Update("team_id", team.ID).Error
			}
			return nil
		})
		if err != nil {
			if errors.Is(database.Translate(err), database.ErrDuplicate) {
				return apperr.Conflict("Team name already exists")
			}
			return apperr.Internal("Failed to create team", err)
		}

		httpx.Record(c, w, models.AuditActionCreate, "team", team.ID, "team created: %s", team.Name)

		created, err := loadTeam(ctx, db, team.ID, false)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": "Team created successfully",
			"data":    created,
		})
	}
}

// PUT /teams/:id
func UpdateTeamHandler(db *gorm.DB, w audit.Writer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "team")
		if err != nil {
			return err
		}
		var body UpdateTeamRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		ctx := c.UserContext()
		var team models.Team
		if err := db.WithContext(ctx).First(&team, id).Error; err != nil {
			return notFoundOr(err, "Failed to update team")
		}

		if v := httpx.TrimToNil(body.ManagerEmail.Ptr()); v != nil && !httpx.IsValidEmail(*v) {
			return apperr.Validation("Invalid manager email format")
		}

		updates := map[string]any{}
		if body.Name.Set {
			name := strings.TrimSpace(body.Name.Value)
			if body.Name.Null || name == "" {
				return apperr.Validation("Team name cannot be empty")
			}
			if name != team.Name {
				if taken, err := nameTaken(ctx, db, name, team.ID); err != nil {
					return apperr.Internal("Failed to update team", err)
				} else if taken {
					return apperr.Conflict("Team name already exists")
				}
			}
			updates["name"] = name
		}
		if body.ManagerName.Set {
			updates["manager_name"] = httpx.TrimToNil(body.ManagerName.Ptr())
		}
		if body.ManagerEmail.Set {
			updates["manager_email"] = httpx.TrimToNil(body.ManagerEmail.Ptr())
		}
		if body.ClientID.Set {
			if body.ClientID.Null || body.ClientID.Value == 0 {
				updates["client_id"] = nil
			} else {
				if err := clientExists(ctx, db, body.ClientID.Value); err != nil {
					return err
				}
				updates["client_id"] = body.ClientID.Value
			}
		}

		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if len(updates) > 0 {
				if err := tx.Model(&team).Updates(updates).Error; err != nil {
					return err
				}
			}
			if body.EmployeeIDs.Set {
				if err := tx.Model(&models.Employee{}).Where("team_id = ?", id).Update("team_id", nil).Error; err != nil {
					return err
				}
				if ids := body.EmployeeIDs.Value; len(ids) > 0 {
					return tx.Model(&models.Employee{}).Where("id IN ?", ids).Update("team_id", id).Error
				}
			}
			return nil
		})
		if err != nil {
			if errors.Is(database.Translate(err), database.ErrDuplicate) {
				return apperr.Conflict("Team name already exists")
			}
			return apperr.Internal("Failed to update team", err)
		}

		httpx.Record(c, w, models.AuditActionUpdate, "team", team.ID, "team updated: %s", team.Name)

		updated, err := loadTeam(ctx, db, id, false)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Team updated successfully",
			"data":    updated,
		})
	}
}

// DELETE /teams/:id
// Members are detached, not deleted.
func DeleteTeamHandler(db *gorm.DB, w audit.Writer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "team")
		if err != nil {
			return err
		}

		ctx := c.UserContext()
		var team models.Team
		if err := db.WithContext(ctx).First(&team, id).Error; err != nil {
			return notFoundOr(err, "Failed to delete team")
		}

		err = db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := tx.Model(&models.Employee{}).Where("team_id = ?", id).Update("team_id", nil).Error; err != nil {
				return err
			}
			return tx.Delete(&team).Error
		})
		if err != nil {
			return apperr.Internal("Failed to delete team", err)
		}

		httpx.Record(c, w, models.AuditActionDelete, "team", team.ID, "team deleted: %s", team.Name)
		return c.JSON(fiber.Map{"success": true, "message": "Team deleted successfully"})
	}
}

// GET /teams/:id/employees
func ListTeamEmployeesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "team")
		if err != nil {
			return err
		}
		ctx := c.UserContext()

		var team models.Team
		if err := db.WithContext(ctx).Select("id", "name").First(&team, id).Error; err != nil {
			return notFoundOr(err, "Failed to fetch team employees")
		}

		var employees []models.Employee
		if err := db.WithContext(ctx).Where("team_id = ?", id).Order("first_name ASC").Find(&employees).Error; err != nil {
			return apperr.Internal("Failed to fetch team employees", err)
		}
		return c.JSON(fiber.Map{
			"success": true,
			"data":    employees,
			"team":    TeamRef{ID: team.ID, Name: team.Name},
		})
	}
}

// -------------------------
// Helpers
// -------------------------

// loadTeam returns the team with its client and members. activeOnly limits
// the members to active employees.
func loadTeam(ctx context.Context, db *gorm.DB, id uint, activeOnly bool) (*TeamResponse, error) {
	var team models.Team
	err := db.WithContext(ctx).
		Preload("Client").
		Preload("Employees", func(tx *gorm.DB) *gorm.DB {
			if activeOnly {
				tx = tx.Where("active = ?", true)
			}
			return tx.Order("first_name ASC")
		}).
		First(&team, id).Error
	if err != nil {
		return nil, notFoundOr(err, "Failed to fetch team")
	}

	resp, err := withCounts(ctx, db, []models.Team{team})
	if err != nil {
		return nil, apperr.Internal("Failed to fetch team", err)
	}
	return &resp[0], nil
}

func withCounts(ctx context.Context, db *gorm.DB, list []models.Team) ([]TeamResponse, error) {
	ids := make([]uint, 0, len(list))
	for _, t := range list {
		ids = append(ids, t.ID)
	}
	counts, err := database.CountBy(ctx, db, &models.Employee{}, "team_id", ids)
	if err != nil {
		return nil, err
	}

	resp := make([]TeamResponse, 0, len(list))
	for _, t := range list {
		resp = append(resp, TeamResponse{Team: t, EmployeeCount: counts[t.ID]})
	}
	return resp, nil
}

func nameTaken(ctx context.Context, db *gorm.DB, name string, exceptID uint) (bool, error) {
	var n int64
	q := db.WithContext(ctx).Model(&models.Team{}).Where("name = ?", name)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func clientExists(ctx context.Context, db *gorm.DB, id uint) error {
	var n int64
	if err := db.WithContext(ctx).Model(&models.Client{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return apperr.Internal("Failed to verify client", err)
	}
	if n == 0 {
		return apperr.NotFound("Client not found")
	}
	return nil
}

func notFoundOr(err error, msg string) error {
	if errors.Is(database.Translate(err), database.ErrNotFound) {
		return apperr.NotFound("Team not found")
	}
	return apperr.Internal(msg, err)
}
