package auth

import (
	"context"
	"errors"
	"strings"

	"hrportal-backend/internal/apperr"
	"hrportal-backend/internal/database"
	"hrportal-backend/internal/models"

	"github.com/gofiber/fiber/v2"
)

const ctxIdentityKey = "identity"

// Identity is the authenticated caller. Email, role and the active flag come
// from the store at request time, not from the token.
type Identity struct {
	UserID uint
	Email  string
	Role   models.UserRole
	Active bool
}

type UserFinder interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
}

// SetIdentity stores the authenticated caller on the request.
func SetIdentity(c *fiber.Ctx, identity Identity) {
	c.Locals(ctxIdentityKey, identity)
}

func CurrentIdentity(c *fiber.Ctx) (Identity, bool) {
	id, ok := c.Locals(ctxIdentityKey).(Identity)
	return id, ok
}

// JWTMiddleware resolves the bearer token to a live, active user.
func JWTMiddleware(users UserFinder, tokens *TokenManager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, err := authenticate(c, users, tokens)
		if err != nil {
			return err
		}
		SetIdentity(c, identity)
		return c.Next()
	}
}

// OptionalJWTMiddleware authenticates only when an Authorization header is
// sent; a header that fails verification is still rejected.
func OptionalJWTMiddleware(users UserFinder, tokens *TokenManager) fiber.Handler {
	strict := JWTMiddleware(users, tokens)
	return func(c *fiber.Ctx) error {
		if c.Get(fiber.HeaderAuthorization) == "" {
			return c.Next()
		}
		return strict(c)
	}
}

func authenticate(c *fiber.Ctx, users UserFinder, tokens *TokenManager) (Identity, error) {
	authHeader := c.Get(fiber.HeaderAuthorization)
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") || strings.TrimSpace(parts[1]) == "" {
		return Identity{}, apperr.New(apperr.KindUnauthenticated, "No token provided")
	}

	claims, err := tokens.ParseToken(strings.TrimSpace(parts[1]))
	if err != nil {
		return Identity{}, err
	}

	user, err := users.FindByID(c.UserContext(), claims.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return Identity{}, apperr.New(apperr.KindUnauthenticated, "User not found")
		}
		return Identity{}, apperr.Internal("Authentication failed", err)
	}

	if !user.Active {
		return Identity{}, apperr.New(apperr.KindAccountDeactivated,
			"Your account has been deactivated. Please contact the administrator.")
	}

	return Identity{
		UserID: user.ID,
		Email:  user.Email,
		Role:   user.Role,
		Active: true,
	}, nil
}

// RequirePrimaryAdmin admits only the account configured as primary admin.
func RequirePrimaryAdmin(primaryAdminEmail string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := CurrentIdentity(c)
		if !ok || identity.Email != primaryAdminEmail {
			return apperr.Forbidden("Access denied. Primary admin privileges required.")
		}
		return c.Next()
	}
}

// RequireRole admits identities holding one of the given roles.
func RequireRole(allowedRoles ...models.UserRole) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identity, ok := CurrentIdentity(c)
		if !ok {
			return apperr.Forbidden("Access denied. Admin privileges required.")
		}
		for _, r := range allowedRoles {
			if r == identity.Role {
				return c.Next()
			}
		}
		return apperr.Forbidden("Access denied. Admin privileges required.")
	}
}
