package users

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"hrportal-backend/internal/apperr"
	"hrportal-backend/internal/audit"
	"hrportal-backend/internal/auth"
	"hrportal-backend/internal/database"
	"hrportal-backend/internal/logging"
	"hrportal-backend/internal/models"
)

type Store interface {
	FindByID(ctx context.Context, id uint) (*models.User, error)
	List(ctx context.Context) ([]models.User, error)
	UpdateActive(ctx context.Context, id uint, active bool) error
	UpdateRole(ctx context.Context, id uint, role models.UserRole) error
	CountNotesByAuthor(ctx context.Context, id uint) (int64, error)
	Delete(ctx context.Context, id uint) error
}

// Service administers user accounts. The primary admin account is protected
// from deactivation, role changes and deletion regardless of who asks.
type Service struct {
	store             Store
	audit             auth.AuditWriter
	primaryAdminEmail string
	logger            *slog.Logger
}

func NewService(store Store, auditWriter auth.AuditWriter, primaryAdminEmail string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{store: store, audit: auditWriter, primaryAdminEmail: primaryAdminEmail, logger: logger}
}

func (s *Service) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = s.logger
	}
	return logger.With(append([]any{"service", "users", "operation", operation}, attrs...)...)
}

func (s *Service) List(ctx context.Context) ([]models.User, error) {
	list, err := s.store.List(ctx)
	if err != nil {
		return nil, apperr.Internal("Failed to fetch users", err)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, id uint) (*models.User, error) {
	user, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.NotFound("User not found")
		}
		return nil, apperr.Internal("Internal server error", err)
	}
	return user, nil
}

func (s *Service) SetActive(ctx context.Context, actor auth.Identity, id uint, active bool) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Email == s.primaryAdminEmail && !active {
		return nil, apperr.Forbidden("Cannot deactivate the main admin account")
	}

	if err := s.store.UpdateActive(ctx, id, active); err != nil {
		return nil, apperr.Internal("Failed to update user status", err)
	}
	user.Active = active

	state := "deactivated"
	if active {
		state = "activated"
	}
	s.record(ctx, actor, models.AuditActionUserStatusChanged, id, "user "+state)
	s.loggerWith(ctx, "SetActive", "user_id", id, "active", active, "actor_id", actor.UserID).InfoContext(ctx, "user status changed")
	return user, nil
}

func (s *Service) SetRole(ctx context.Context, actor auth.Identity, id uint, role models.UserRole) (*models.User, error) {
	if !role.Valid() {
		return nil, apperr.Validation("Invalid role. Must be 'hr' or 'admin'")
	}

	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if user.Email == s.primaryAdminEmail {
		return nil, apperr.Forbidden("Cannot change role of primary admin account")
	}

	if err := s.store.UpdateRole(ctx, id, role); err != nil {
		return nil, apperr.Internal("Failed to update user role", err)
	}
	user.Role = role

	s.record(ctx, actor, models.AuditActionUserRoleChanged, id, "role set to "+string(role))
	s.loggerWith(ctx, "SetRole", "user_id", id, "role", role, "actor_id", actor.UserID).InfoContext(ctx, "user role changed")
	return user, nil
}

func (s *Service) Delete(ctx context.Context, actor auth.Identity, id uint) error {
	user, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if user.Email == s.primaryAdminEmail {
		return apperr.Forbidden("Cannot delete the main admin account")
	}

	notes, err := s.store.CountNotesByAuthor(ctx, id)
	if err != nil {
		return apperr.Internal("Failed to delete user", err)
	}
	if notes > 0 {
		return apperr.Conflict(fmt.Sprintf("Cannot delete user with %d note(s). Please reassign or delete notes first.", notes))
	}

	if err := s.store.Delete(ctx, id); err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal("Failed to delete user", err)
	}

	s.record(ctx, actor, models.AuditActionUserDeleted, id, "user "+user.Email+" deleted")
	s.loggerWith(ctx, "Delete", "user_id", id, "actor_id", actor.UserID).InfoContext(ctx, "user deleted")
	return nil
}

func (s *Service) record(ctx context.Context, actor auth.Identity, action models.AuditAction, targetID uint, description string) {
	_ = s.audit.WriteLog(ctx, audit.LogOptions{
		ActorID:     &actor.UserID,
		ActorEmail:  actor.Email,
		Action:      action,
		TargetType:  "user",
		TargetID:    targetID,
		Description: description,
	})
}
