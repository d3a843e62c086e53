package auth

import (
	"hrportal-backend/internal/apperr"
	"hrportal-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

type RegisterRequest struct {
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Role     models.UserRole `json:"role"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SetRecoveryAnswerRequest struct {
	Answer string `json:"answer"`
}

type UpdateRecoveryAnswerRequest struct {
	OldAnswer string `json:"oldAnswer"`
	NewAnswer string `json:"newAnswer"`
}

type ResetAdminPasswordRequest struct {
	Answer      string `json:"answer"`
	NewPassword string `json:"newPassword"`
}

type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

type UserSummary struct {
	ID     uint            `json:"id"`
	Email  string          `json:"email"`
	Role   models.UserRole `json:"role"`
	Active bool            `json:"active"`
}

func summarize(u *models.User) UserSummary {
	return UserSummary{ID: u.ID, Email: u.Email, Role: u.Role, Active: u.Active}
}

func parseBody(c *fiber.Ctx, out any) error {
	if err := c.BodyParser(out); err != nil {
		return apperr.Wrap(apperr.KindValidation, "Invalid request body", err)
	}
	return nil
}

func requireIdentity(c *fiber.Ctx) (Identity, error) {
	identity, ok := CurrentIdentity(c)
	if !ok {
		return Identity{}, apperr.New(apperr.KindUnauthenticated, "No token provided")
	}
	return identity, nil
}

func RegisterHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterRequest
		if err := parseBody(c, &body); err != nil {
			return err
		}

		var actor *Identity
		if identity, ok := CurrentIdentity(c); ok {
			actor = &identity
		}

		user, err := svc.Register(c.UserContext(), actor, RegisterInput{
			Email:    body.Email,
			Password: body.Password,
			Role:     body.Role,
		})
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(summarize(user))
	}
}

func LoginHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := parseBody(c, &body); err != nil {
			return err
		}

		res, err := svc.Login(c.UserContext(), body.Email, body.Password)
		if err != nil {
			return err
		}

		return c.JSON(fiber.Map{
			"token":     res.Token,
			"expiresAt": res.Claims.ExpiresAt.Time,
			"user":      summarize(res.User),
		})
	}
}

func MeHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := requireIdentity(c)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"id":           identity.UserID,
			"email":        identity.Email,
			"role":         identity.Role,
			"active":       identity.Active,
			"primaryAdmin": svc.IsPrimaryAdmin(identity.Email),
		})
	}
}

func RecoveryConfiguredHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		configured, err := svc.RecoveryConfigured(c.UserContext())
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"configured": configured})
	}
}

func SetRecoveryAnswerHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := requireIdentity(c)
		if err != nil {
			return err
		}
		var body SetRecoveryAnswerRequest
		if err := parseBody(c, &body); err != nil {
			return err
		}

		if err := svc.SetRecoveryAnswer(c.UserContext(), identity, body.Answer); err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Recovery answer saved successfully",
		})
	}
}

func UpdateRecoveryAnswerHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := requireIdentity(c)
		if err != nil {
			return err
		}
		var body UpdateRecoveryAnswerRequest
		if err := parseBody(c, &body); err != nil {
			return err
		}

		if err := svc.UpdateRecoveryAnswer(c.UserContext(), identity, body.OldAnswer, body.NewAnswer); err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Recovery answer updated successfully",
		})
	}
}

func ResetAdminPasswordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body ResetAdminPasswordRequest
		if err := parseBody(c, &body); err != nil {
			return err
		}

		if err := svc.ResetAdminPassword(c.UserContext(), body.Answer, body.NewPassword); err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Password reset successfully. You can now log in with your new password.",
		})
	}
}

func ChangePasswordHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := requireIdentity(c)
		if err != nil {
			return err
		}
		var body ChangePasswordRequest
		if err := parseBody(c, &body); err != nil {
			return err
		}

		if err := svc.ChangePassword(c.UserContext(), identity, body.CurrentPassword, body.NewPassword); err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Password changed successfully",
		})
	}
}
