package auth

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"unicode/utf8"

	"hrportal-backend/internal/apperr"
	"hrportal-backend/internal/audit"
	"hrportal-backend/internal/database"
	"hrportal-backend/internal/logging"
	"hrportal-backend/internal/models"
)

const (
	MinPasswordLength       = 8
	MinRecoveryAnswerLength = 3
	// bcrypt only accepts inputs up to this many bytes
	MaxSecretBytes = 72

	msgInvalidCredentials         = "Invalid credentials"
	msgInvalidRecoveryCredentials = "Invalid recovery credentials"
)

type UserStore interface {
	UserFinder
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	SetRecoveryAnswerHash(ctx context.Context, id uint, hash string) error
	SwapRecoveryAnswerHash(ctx context.Context, id uint, prevHash, newHash string) error
	SwapPasswordHash(ctx context.Context, id uint, prevHash, newHash string) error
	ResetPasswordHash(ctx context.Context, id uint, recoveryHash, newHash string) error
	UpdateActive(ctx context.Context, id uint, active bool) error
	UpdateRole(ctx context.Context, id uint, role models.UserRole) error
}

type AuditWriter = audit.Writer

// Service implements registration, login and the primary admin recovery flow.
type Service struct {
	users             UserStore
	hasher            *Hasher
	tokens            *TokenManager
	audit             AuditWriter
	primaryAdminEmail string
	logger            *slog.Logger
}

func NewService(users UserStore, hasher *Hasher, tokens *TokenManager, auditWriter AuditWriter, primaryAdminEmail string, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		users:             users,
		hasher:            hasher,
		tokens:            tokens,
		audit:             auditWriter,
		primaryAdminEmail: primaryAdminEmail,
		logger:            logger,
	}
}

func (s *Service) IsPrimaryAdmin(email string) bool {
	return email == s.primaryAdminEmail
}

func (s *Service) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	logger := logging.FromContext(ctx)
	if logger == nil {
		logger = s.logger
	}
	return logger.With(append([]any{"service", "auth", "operation", operation}, attrs...)...)
}

type RegisterInput struct {
	Email    string
	Password string
	Role     models.UserRole
}

// Register creates a user. Callers other than the primary admin may only
// create hr accounts.
func (s *Service) Register(ctx context.Context, actor *Identity, in RegisterInput) (*models.User, error) {
	email := strings.TrimSpace(in.Email)
	if email == "" || in.Password == "" {
		return nil, apperr.Validation("Email and password are required")
	}
	if err := checkPassword(in.Password); err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = models.RoleHR
	}
	if !role.Valid() {
		return nil, apperr.Validation("Invalid role. Must be 'hr' or 'admin'")
	}
	if role != models.RoleHR && (actor == nil || !s.IsPrimaryAdmin(actor.Email)) {
		return nil, apperr.Forbidden("Only the primary admin can create admin accounts")
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, apperr.Conflict("User already exists")
	} else if !errors.Is(err, database.ErrNotFound) {
		return nil, apperr.Internal("Internal server error", err)
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, apperr.Internal("Internal server error", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, database.ErrDuplicate) {
			return nil, apperr.Conflict("User already exists")
		}
		return nil, apperr.Internal("Internal server error", err)
	}

	opts := audit.LogOptions{
		Action:      models.AuditActionRegister,
		TargetType:  "user",
		TargetID:    user.ID,
		Description: "user registered with role " + string(user.Role),
	}
	if actor != nil {
		opts.ActorID, opts.ActorEmail = &actor.UserID, actor.Email
	}
	_ = s.audit.WriteLog(ctx, opts)

	s.loggerWith(ctx, "Register", "user_id", user.ID, "role", user.Role).InfoContext(ctx, "user registered")
	return user, nil
}

type LoginResult struct {
	Token  string
	Claims *JWTCustomClaims
	User   *models.User
}

func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	email = strings.TrimSpace(email)
	logger := s.loggerWith(ctx, "Login", "email", email)

	if email == "" || password == "" {
		return nil, apperr.Validation("Email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.hasher.VerifyDummy(password)
			logger.WarnContext(ctx, "login failed", "reason", "unknown email")
			return nil, apperr.InvalidCredential(msgInvalidCredentials)
		}
		return nil, apperr.Internal("Internal server error", err)
	}

	if !s.hasher.Verify(user.PasswordHash, password) {
		logger.WarnContext(ctx, "login failed", "reason", "wrong password", "user_id", user.ID)
		_ = s.audit.WriteLog(ctx, audit.LogOptions{
			Action:      models.AuditActionLoginFailed,
			TargetType:  "user",
			TargetID:    user.ID,
			Description: "wrong password",
		})
		return nil, apperr.InvalidCredential(msgInvalidCredentials)
	}

	if !user.Active {
		logger.WarnContext(ctx, "login refused", "reason", "account deactivated", "user_id", user.ID)
		return nil, apperr.New(apperr.KindAccountDeactivated,
			"Your account has been deactivated. Please contact the administrator.")
	}

	token, claims, err := s.tokens.GenerateToken(user)
	if err != nil {
		return nil, apperr.Internal("Internal server error", err)
	}

	logger.InfoContext(ctx, "login succeeded", "user_id", user.ID, "token_id", claims.ID)
	return &LoginResult{Token: token, Claims: claims, User: user}, nil
}

// ----------------------------------------
// RECOVERY FLOW
// ----------------------------------------

func (s *Service) RecoveryConfigured(ctx context.Context) (bool, error) {
	admin, err := s.users.FindByEmail(ctx, s.primaryAdminEmail)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return false, nil
		}
		return false, apperr.Internal("Internal server error", err)
	}
	return admin.RecoveryConfigured(), nil
}

// SetRecoveryAnswer stores the answer hash, replacing any previous one
// without asking for it.
func (s *Service) SetRecoveryAnswer(ctx context.Context, actor Identity, answer string) error {
	answer = strings.TrimSpace(answer)
	if err := checkRecoveryAnswer(answer); err != nil {
		return err
	}

	admin, err := s.primaryAdmin(ctx)
	if err != nil {
		return err
	}

	hash, err := s.hasher.Hash(answer)
	if err != nil {
		return apperr.Internal("Internal server error", err)
	}
	if err := s.users.SetRecoveryAnswerHash(ctx, admin.ID, hash); err != nil {
		return apperr.Internal("Internal server error", err)
	}

	_ = s.audit.WriteLog(ctx, audit.LogOptions{
		ActorID:     &actor.UserID,
		ActorEmail:  actor.Email,
		Action:      models.AuditActionRecoveryAnswerSet,
		TargetType:  "user",
		TargetID:    admin.ID,
		Description: "recovery answer configured",
	})
	s.loggerWith(ctx, "SetRecoveryAnswer", "user_id", admin.ID).InfoContext(ctx, "recovery answer configured")
	return nil
}

func (s *Service) UpdateRecoveryAnswer(ctx context.Context, actor Identity, oldAnswer, newAnswer string) error {
	oldAnswer = strings.TrimSpace(oldAnswer)
	newAnswer = strings.TrimSpace(newAnswer)
	if oldAnswer == "" || newAnswer == "" {
		return apperr.Validation("Old and new recovery answers are required")
	}
	if err := checkRecoveryAnswer(newAnswer); err != nil {
		return err
	}

	logger := s.loggerWith(ctx, "UpdateRecoveryAnswer")

	admin, err := s.primaryAdmin(ctx)
	if err != nil {
		return err
	}
	if !admin.RecoveryConfigured() {
		return apperr.New(apperr.KindNotConfigured, "Recovery answer is not configured. Set it first.")
	}

	prevHash := *admin.RecoveryAnswerHash
	if !s.hasher.Verify(prevHash, oldAnswer) {
		logger.WarnContext(ctx, "recovery answer update refused", "reason", "old answer mismatch", "user_id", admin.ID)
		return apperr.InvalidCredential(msgInvalidRecoveryCredentials)
	}

	newHash, err := s.hasher.Hash(newAnswer)
	if err != nil {
		return apperr.Internal("Internal server error", err)
	}
	if err := s.users.SwapRecoveryAnswerHash(ctx, admin.ID, prevHash, newHash); err != nil {
		return swapError(err)
	}

	_ = s.audit.WriteLog(ctx, audit.LogOptions{
		ActorID:     &actor.UserID,
		ActorEmail:  actor.Email,
		Action:      models.AuditActionRecoveryAnswerUpdated,
		TargetType:  "user",
		TargetID:    admin.ID,
		Description: "recovery answer updated",
	})
	logger.InfoContext(ctx, "recovery answer updated", "user_id", admin.ID)
	return nil
}

// ResetAdminPassword is reachable without credentials. A missing admin, a
// missing recovery answer and a wrong answer all return the same error after
// the same amount of hashing work; the actual cause is only logged.
func (s *Service) ResetAdminPassword(ctx context.Context, answer, newPassword string) error {
	answer = strings.TrimSpace(answer)
	if answer == "" || newPassword == "" {
		return apperr.Validation("Recovery answer and new password are required")
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	logger := s.loggerWith(ctx, "ResetAdminPassword")
	reject := func(reason string, targetID uint) error {
		logger.WarnContext(ctx, "admin password reset refused", "reason", reason)
		_ = s.audit.WriteLog(ctx, audit.LogOptions{
			Action:      models.AuditActionPasswordResetFailed,
			TargetType:  "user",
			TargetID:    targetID,
			Description: reason,
		})
		return apperr.InvalidCredential(msgInvalidRecoveryCredentials)
	}

	admin, err := s.users.FindByEmail(ctx, s.primaryAdminEmail)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			s.hasher.VerifyDummy(answer)
			return reject("admin account not found", 0)
		}
		return apperr.Internal("Internal server error", err)
	}
	if !admin.RecoveryConfigured() {
		s.hasher.VerifyDummy(answer)
		return reject("recovery answer not configured", admin.ID)
	}

	recoveryHash := *admin.RecoveryAnswerHash
	if !s.hasher.Verify(recoveryHash, answer) {
		return reject("wrong recovery answer", admin.ID)
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperr.Internal("Internal server error", err)
	}
	if err := s.users.ResetPasswordHash(ctx, admin.ID, recoveryHash, newHash); err != nil {
		if errors.Is(err, database.ErrStale) {
			return reject("recovery answer changed during reset", admin.ID)
		}
		return apperr.Internal("Internal server error", err)
	}

	_ = s.audit.WriteLog(ctx, audit.LogOptions{
		Action:      models.AuditActionPasswordReset,
		TargetType:  "user",
		TargetID:    admin.ID,
		Description: "password reset with recovery answer",
	})
	logger.InfoContext(ctx, "admin password reset", "user_id", admin.ID)
	return nil
}

func (s *Service) ChangePassword(ctx context.Context, actor Identity, currentPassword, newPassword string) error {
	if currentPassword == "" || newPassword == "" {
		return apperr.Validation("Current and new password are required")
	}
	if err := checkPassword(newPassword); err != nil {
		return err
	}

	logger := s.loggerWith(ctx, "ChangePassword", "user_id", actor.UserID)

	user, err := s.users.FindByID(ctx, actor.UserID)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return apperr.NotFound("User not found")
		}
		return apperr.Internal("Internal server error", err)
	}

	if !s.hasher.Verify(user.PasswordHash, currentPassword) {
		logger.WarnContext(ctx, "password change refused", "reason", "current password mismatch")
		return apperr.InvalidCredential("Current password is incorrect")
	}

	newHash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return apperr.Internal("Internal server error", err)
	}
	if err := s.users.SwapPasswordHash(ctx, user.ID, user.PasswordHash, newHash); err != nil {
		return swapError(err)
	}

	_ = s.audit.WriteLog(ctx, audit.LogOptions{
		ActorID:     &actor.UserID,
		ActorEmail:  actor.Email,
		Action:      models.AuditActionPasswordChanged,
		TargetType:  "user",
		TargetID:    user.ID,
		Description: "password changed",
	})
	logger.InfoContext(ctx, "password changed")
	return nil
}

// EnsurePrimaryAdmin creates the primary admin account, or restores its
// active flag and admin role when it already exists. The password of an
// existing account is only replaced when resetPassword is set.
func (s *Service) EnsurePrimaryAdmin(ctx context.Context, password string, resetPassword bool) (*models.User, bool, error) {
	admin, err := s.users.FindByEmail(ctx, s.primaryAdminEmail)
	if err != nil && !errors.Is(err, database.ErrNotFound) {
		return nil, false, err
	}

	if admin == nil {
		if err := checkPassword(password); err != nil {
			return nil, false, err
		}
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return nil, false, err
		}
		admin = &models.User{
			Email:        s.primaryAdminEmail,
			PasswordHash: hash,
			Role:         models.RoleAdmin,
			Active:       true,
		}
		if err := s.users.Create(ctx, admin); err != nil {
			return nil, false, err
		}
		return admin, true, nil
	}

	if !admin.Active {
		if err := s.users.UpdateActive(ctx, admin.ID, true); err != nil {
			return nil, false, err
		}
		admin.Active = true
	}
	if admin.Role != models.RoleAdmin {
		if err := s.users.UpdateRole(ctx, admin.ID, models.RoleAdmin); err != nil {
			return nil, false, err
		}
		admin.Role = models.RoleAdmin
	}

	if resetPassword {
		if err := checkPassword(password); err != nil {
			return nil, false, err
		}
		hash, err := s.hasher.Hash(password)
		if err != nil {
			return nil, false, err
		}
		if err := s.users.SwapPasswordHash(ctx, admin.ID, admin.PasswordHash, hash); err != nil {
			return nil, false, err
		}
		admin.PasswordHash = hash
	}
	return admin, false, nil
}

func (s *Service) primaryAdmin(ctx context.Context) (*models.User, error) {
	admin, err := s.users.FindByEmail(ctx, s.primaryAdminEmail)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperr.NotFound("Admin account not found")
		}
		return nil, apperr.Internal("Internal server error", err)
	}
	return admin, nil
}

func swapError(err error) error {
	if errors.Is(err, database.ErrStale) {
		return apperr.Conflict("Credential was changed by another request, please retry")
	}
	return apperr.Internal("Internal server error", err)
}

// Minimums count characters; the maximum counts bytes.
func checkPassword(password string) error {
	if utf8.RuneCountInString(password) < MinPasswordLength {
		return apperr.Validation("Password must be at least 8 characters")
	}
	if len(password) > MaxSecretBytes {
		return apperr.Validation("Password must be at most 72 bytes")
	}
	return nil
}

func checkRecoveryAnswer(answer string) error {
	if utf8.RuneCountInString(answer) < MinRecoveryAnswerLength {
		return apperr.Validation("Recovery answer must be at least 3 characters")
	}
	if len(answer) > MaxSecretBytes {
		return apperr.Validation("Recovery answer must be at most 72 bytes")
	}
	return nil
}
