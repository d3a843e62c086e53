package users

import (
	"encoding/json"
	"strconv"
	"time"

	"hrportal-backend/internal/apperr"
	"hrportal-backend/internal/auth"
	"hrportal-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type UserResponse struct {
	ID        uint            `json:"id"`
	Email     string          `json:"email"`
	Role      models.UserRole `json:"role"`
	Active    bool            `json:"active"`
	CreatedAt time.Time       `json:"createdAt"`
	UpdatedAt time.Time       `json:"updatedAt"`
}

// UpdateStatusRequest keeps the raw value so that a missing or non boolean
// "active" can be told apart from false.
type UpdateStatusRequest struct {
	Active json.RawMessage `json:"active"`
}

type UpdateRoleRequest struct {
	Role models.UserRole `json:"role"`
}

func toResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:        u.ID,
		Email:     u.Email,
		Role:      u.Role,
		Active:    u.Active,
		CreatedAt: u.CreatedAt,
		UpdatedAt: u.UpdatedAt,
	}
}

func parseID(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, apperr.Validation("Invalid user ID")
	}
	return uint(id), nil
}

func actor(c *fiber.Ctx) (auth.Identity, error) {
	identity, ok := auth.CurrentIdentity(c)
	if !ok {
		return auth.Identity{}, apperr.New(apperr.KindUnauthenticated, "No token provided")
	}
	return identity, nil
}

func ListUsersHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		list, err := svc.List(c.UserContext())
		if err != nil {
			return err
		}

		res := make([]UserResponse, 0, len(list))
		for i := range list {
			res = append(res, toResponse(&list[i]))
		}
		return c.JSON(fiber.Map{"success": true, "data": res})
	}
}

func GetUserHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		user, err := svc.Get(c.UserContext(), id)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "data": toResponse(user)})
	}
}

func UpdateUserStatusHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		identity, err := actor(c)
		if err != nil {
			return err
		}

		var body UpdateStatusRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Wrap(apperr.KindValidation, "Invalid request body", err)
		}
		var active bool
		if len(body.Active) == 0 || string(body.Active) == "null" || json.Unmarshal(body.Active, &active) != nil {
			return apperr.Validation("Active status must be a boolean")
		}

		user, err := svc.SetActive(c.UserContext(), identity, id, active)
		if err != nil {
			return err
		}

		message := "User deactivated successfully"
		if active {
			message = "User activated successfully"
		}
		return c.JSON(fiber.Map{"success": true, "message": message, "data": toResponse(user)})
	}
}

func UpdateUserRoleHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		identity, err := actor(c)
		if err != nil {
			return err
		}

		var body UpdateRoleRequest
		if err := c.BodyParser(&body); err != nil {
			return apperr.Wrap(apperr.KindValidation, "Invalid request body", err)
		}

		user, err := svc.SetRole(c.UserContext(), identity, id, body.Role)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "User role updated successfully", "data": toResponse(user)})
	}
}

func DeleteUserHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := parseID(c)
		if err != nil {
			return err
		}
		identity, err := actor(c)
		if err != nil {
			return err
		}

		if err := svc.Delete(c.UserContext(), identity, id); err != nil {
			return err
		}
		return c.JSON(fiber.Map{"success": true, "message": "User deleted successfully"})
	}
}
