package clients

import (
	"context"
	"errors"
	"fmt"
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

type CreateClientRequest struct {
	Name             string  `json:"name"`
	PocInternalName  *string `json:"pocInternalName"`
	PocInternalEmail *string `json:"pocInternalEmail"`
	PocExternalName  *string `json:"pocExternalName"`
	PocExternalEmail *string `json:"pocExternalEmail"`
	Address          *string `json:"address"`
}

// UpdateClientRequest only touches fields present in the body; null or an
// empty string clears an optional column.
type UpdateClientRequest struct {
	Name             httpx.Optional[string] `json:"name"`
	PocInternalName  httpx.Optional[string] `json:"pocInternalName"`
	PocInternalEmail httpx.Optional[string] `json:"pocInternalEmail"`
	PocExternalName  httpx.Optional[string] `json:"pocExternalName"`
	PocExternalEmail httpx.Optional[string] `json:"pocExternalEmail"`
	Address          httpx.Optional[string] `json:"address"`
}

type Counts struct {
	Teams     int64 `json:"teams"`
	Employees int64 `json:"employees"`
}

type ClientResponse struct {
	models.Client
	Counts Counts `json:"counts"`
}

type ClientRef struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
}

// -------------------------
// Client CRUD
// -------------------------

// GET /clients?search=acme&includeTeams=true&includeEmployees=true
func ListClientsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		dbq := db.WithContext(c.UserContext()).Model(&models.Client{})

		if search := strings.TrimSpace(c.Query("search")); search != "" {
			like := "%" + search + "%"
			dbq = dbq.Where(
				"name ILIKE ? OR poc_internal_name ILIKE ? OR poc_external_name ILIKE ? OR address ILIKE ?",
				like, like, like, like,
			)
		}
		if c.QueryBool("includeTeams") {
			dbq = dbq.Preload("Teams", func(tx *gorm.DB) *gorm.DB { return tx.Order("name ASC") })
		}
		if c.QueryBool("includeEmployees") {
			dbq = dbq.Preload("Employees", "active = ?", true)
		}

		var list []models.Client
		if err := dbq.Order("name ASC").Find(&list).Error; err != nil {
			return apperr.Internal("Failed to fetch clients", err)
		}

		counts, err := countsFor(c.UserContext(), db, clientIDs(list)...)
		if err != nil {
			return apperr.Internal("Failed to fetch clients", err)
		}

		resp := make([]ClientResponse, 0, len(list))
		for _, cl := range list {
			resp = append(resp, ClientResponse{Client: cl, Counts: counts[cl.ID]})
		}
		return c.JSON(fiber.Map{"success": true, "data": resp})
	}
}

// GET /clients/:id
func GetClientHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "client")
		if err != nil {
			return err
		}

		var client models.Client
		err = db.WithContext(c.UserContext()).
			Preload("Teams", func(tx *gorm.DB) *gorm.DB { return tx.Order("name ASC") }).
			Preload("Employees", func(tx *gorm.DB) *gorm.DB {
				return tx.Where("active = ?", true).Order("first_name ASC")
			}).
			Preload("Employees.Team").
			First(&client, id).Error
		if err != nil {
			return notFoundOr(err, "Failed to fetch client")
		}

		counts, err := countsFor(c.UserContext(), db, client.ID)
		if err != nil {
			return apperr.Internal("Failed to fetch client", err)
		}
		return c.JSON(fiber.Map{"success": true, "data": ClientResponse{Client: client, Counts: counts[client.ID]}})
	}
}

// POST /clients
func CreateClientHandler(db *gorm.DB, w audit.Writer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateClientRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		name := strings.TrimSpace(body.Name)
		if name == "" {
			return apperr.Validation("Client name is required")
		}
		if err := validatePocEmails(body.PocInternalEmail, body.PocExternalEmail); err != nil {
			return err
		}

		ctx := c.UserContext()
		if taken, err := nameTaken(ctx, db, name, 0); err != nil {
			return apperr.Internal("Failed to create client", err)
		} else if taken {
			return apperr.Conflict("Client name already exists")
		}

		client := models.Client{
			Name:             name,
			PocInternalName:  httpx.TrimToNil(body.PocInternalName),
			PocInternalEmail: httpx.TrimToNil(body.PocInternalEmail),
			PocExternalName:  httpx.TrimToNil(body.PocExternalName),
			PocExternalEmail: httpx.TrimToNil(body.PocExternalEmail),
			Address:          httpx.TrimToNil(body.Address),
		}
		if err := db.WithContext(ctx).Create(&client).Error; err != nil {
			if errors.Is(database.Translate(err), database.ErrDuplicate) {
				return apperr.Conflict("Client name already exists")
			}
			return apperr.Internal("Failed to create client", err)
		}

		httpx.Record(c, w, models.AuditActionCreate, "client", client.ID, "client created: %s", client.Name)

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"success": true,
			"message": "Client created successfully",
			"data":    ClientResponse{Client: client},
		})
	}
}

// PUT /clients/:id
func UpdateClientHandler(db *gorm.DB, w audit.Writer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "client")
		if err != nil {
			return err
		}
		var body UpdateClientRequest
		if err := httpx.ParseBody(c, &body); err != nil {
			return err
		}

		ctx := c.UserContext()
		var client models.Client
		if err := db.WithContext(ctx).First(&client, id).Error; err != nil {
			return notFoundOr(err, "Failed to update client")
		}

		if err := validatePocEmails(body.PocInternalEmail.Ptr(), body.PocExternalEmail.Ptr()); err != nil {
			return err
		}

		updates := map[string]any{}
		if body.Name.Set {
			name := strings.TrimSpace(body.Name.Value)
			if body.Name.Null || name == "" {
				return apperr.Validation("Client name cannot be empty")
			}
			if name != client.Name {
				if taken, err := nameTaken(ctx, db, name, client.ID); err != nil {
					return apperr.Internal("Failed to update client", err)
				} else if taken {
					return apperr.Conflict("Client name already exists")
				}
			}
			updates["name"] = name
		}
		setOptional(updates, "poc_internal_name", body.PocInternalName)
		setOptional(updates, "poc_internal_email", body.PocInternalEmail)
		setOptional(updates, "poc_external_name", body.PocExternalName)
		setOptional(updates, "poc_external_email", body.PocExternalEmail)
		setOptional(updates, "address", body.Address)

		if len(updates) > 0 {
			if err := db.WithContext(ctx).Model(&client).Updates(updates).Error; err != nil {
				if errors.Is(database.Translate(err), database.ErrDuplicate) {
					return apperr.Conflict("Client name already exists")
				}
				return apperr.Internal("Failed to update client", err)
			}
			httpx.Record(c, w, models.AuditActionUpdate, "client", client.ID, "client updated: %s", client.Name)
		}

		if err := db.WithContext(ctx).First(&client, id).Error; err != nil {
			return notFoundOr(err, "Failed to update client")
		}
		counts, err := countsFor(ctx, db, client.ID)
		if err != nil {
			return apperr.Internal("Failed to update client", err)
		}

		return c.JSON(fiber.Map{
			"success": true,
			"message": "Client updated successfully",
			"data":    ClientResponse{Client: client, Counts: counts[client.ID]},
		})
	}
}

// DELETE /clients/:id
func DeleteClientHandler(db *gorm.DB, w audit.Writer) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "client")
		if err != nil {
			return err
		}

		ctx := c.UserContext()
		var client models.Client
		if err := db.WithContext(ctx).First(&client, id).Error; err != nil {
			return notFoundOr(err, "Failed to delete client")
		}

		counts, err := countsFor(ctx, db, client.ID)
		if err != nil {
			return apperr.Internal("Failed to delete client", err)
		}
		n := counts[client.ID]
		if n.Teams > 0 || n.Employees > 0 {
			return apperr.Conflict(fmt.Sprintf(
				"Cannot delete client. It has %d team(s) and %d employee(s) associated.", n.Teams, n.Employees))
		}

		if err := db.WithContext(ctx).Delete(&client).Error; err != nil {
			if errors.Is(database.Translate(err), database.ErrInUse) {
				return apperr.Conflict("Cannot delete client while teams or employees reference it")
			}
			return apperr.Internal("Failed to delete client", err)
		}

		httpx.Record(c, w, models.AuditActionDelete, "client", client.ID, "client deleted: %s", client.Name)
		return c.JSON(fiber.Map{"success": true, "message": "Client deleted successfully"})
	}
}

// -------------------------
// Nested listings
// -------------------------

type TeamWithCount struct {
	models.Team
	EmployeeCount int64 `json:"employeeCount"`
}

// GET /clients/:id/teams
func ListClientTeamsHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "client")
		if err != nil {
			return err
		}
		ctx := c.UserContext()

		ref, err := findRef(ctx, db, id)
		if err != nil {
			return err
		}

		var teams []models.Team
		if err := db.WithContext(ctx).Where("client_id = ?", id).Order("name ASC").Find(&teams).Error; err != nil {
			return apperr.Internal("Failed to fetch client teams", err)
		}

		ids := make([]uint, 0, len(teams))
		for _, t := range teams {
			ids = append(ids, t.ID)
		}
		perTeam, err := database.CountBy(ctx, db, &models.Employee{}, "team_id", ids)
		if err != nil {
			return apperr.Internal("Failed to fetch client teams", err)
		}

		resp := make([]TeamWithCount, 0, len(teams))
		for _, t := range teams {
			resp = append(resp, TeamWithCount{Team: t, EmployeeCount: perTeam[t.ID]})
		}
		return c.JSON(fiber.Map{"success": true, "data": resp, "client": ref})
	}
}

// GET /clients/:id/employees
func ListClientEmployeesHandler(db *gorm.DB) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParseID(c, "client")
		if err != nil {
			return err
		}
		ctx := c.UserContext()

		ref, err := findRef(ctx, db, id)
		if err != nil {
			return err
		}

		var employees []models.Employee
		if err := db.WithContext(ctx).Preload("Team").
			Where("client_id = ?", id).
			Order("first_name ASC").
			Find(&employees).Error; err != nil {
			return apperr.Internal("Failed to fetch client employees", err)
		}
		return c.JSON(fiber.Map{"success": true, "data": employees, "client": ref})
	}
}

// -------------------------
// Helpers
// -------------------------

func validatePocEmails(internal, external *string) error {
	if v := httpx.TrimToNil(internal); v != nil && !httpx.IsValidEmail(*v) {
		return apperr.Validation("Invalid internal POC email format")
	}
	if v := httpx.TrimToNil(external); v != nil && !httpx.IsValidEmail(*v) {
		return apperr.Validation("Invalid external POC email format")
	}
	return nil
}

func setOptional(updates map[string]any, column string, field httpx.Optional[string]) {
	if field.Set {
		updates[column] = httpx.TrimToNil(field.Ptr())
	}
}

func nameTaken(ctx context.Context, db *gorm.DB, name string, exceptID uint) (bool, error) {
	var n int64
	q := db.WithContext(ctx).Model(&models.Client{}).Where("name = ?", name)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Count(&n).Error; err != nil {
		return false, err
	}
	return n > 0, nil
}

func findRef(ctx context.Context, db *gorm.DB, id uint) (ClientRef, error) {
	var client models.Client
	if err := db.WithContext(ctx).Select("id", "name").First(&client, id).Error; err != nil {
		return ClientRef{}, notFoundOr(err, "Failed to fetch client")
	}
	return ClientRef{ID: client.ID, Name: client.Name}, nil
}

func notFoundOr(err error, msg string) error {
	if errors.Is(database.Translate(err), database.ErrNotFound) {
		return apperr.NotFound("Client not found")
	}
	return apperr.Internal(msg, err)
}

func clientIDs(list []models.Client) []uint {
	ids := make([]uint, 0, len(list))
	for _, cl := range list {
		ids = append(ids, cl.ID)
	}
	return ids
}

func countsFor(ctx context.Context, db *gorm.DB, ids ...uint) (map[uint]Counts, error) {
	out := make(map[uint]Counts, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	teams, err := database.CountBy(ctx, db, &models.Team{}, "client_id", ids)
	if err != nil {
		return nil, err
	}
	employees, err := database.CountBy(ctx, db, &models.Employee{}, "client_id", ids)
	if err != nil {
		return nil, err
	}
	for _, id := range ids {
		out[id] = Counts{Teams: teams[id], Employees: employees[id]}
	}
	return out, nil
}
