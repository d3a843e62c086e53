package database

import (
	"context"
	"fmt"

	"hrportal-backend/internal/models"

	"gorm.io/gorm"
)

// UserStore is the credential store: users by id and by email, plus the
// single-row conditional updates the recovery flow relies on.
type UserStore struct {
	db *gorm.DB
}

func NewUserStore(db *gorm.DB) *UserStore {
	return &UserStore{db: db}
}

func (s *UserStore) FindByID(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, Translate(err)
	}
	return &user, nil
}

func (s *UserStore) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		return nil, Translate(err)
	}
	return &user, nil
}

func (s *UserStore) List(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := s.db.WithContext(ctx).Order("created_at DESC").Find(&users).Error; err != nil {
		return nil, Translate(err)
	}
	return users, nil
}

func (s *UserStore) Create(ctx context.Context, user *models.User) error {
	return Translate(s.db.WithContext(ctx).Create(user).Error)
}

func (s *UserStore) UpdateActive(ctx context.Context, id uint, active bool) error {
	return s.updateColumn(ctx, id, "active", active)
}

func (s *UserStore) UpdateRole(ctx context.Context, id uint, role models.UserRole) error {
	return s.updateColumn(ctx, id, "role", role)
}

func (s *UserStore) SetRecoveryAnswerHash(ctx context.Context, id uint, hash string) error {
	return s.updateColumn(ctx, id, "recovery_answer_hash", hash)
}

// SwapRecoveryAnswerHash replaces the recovery hash only if it still equals
// prevHash.
func (s *UserStore) SwapRecoveryAnswerHash(ctx context.Context, id uint, prevHash, newHash string) error {
	return s.swap(ctx, id, "recovery_answer_hash", prevHash, "recovery_answer_hash", newHash)
}

// SwapPasswordHash replaces the password hash only if it still equals prevHash.
func (s *UserStore) SwapPasswordHash(ctx context.Context, id uint, prevHash, newHash string) error {
	return s.swap(ctx, id, "password_hash", prevHash, "password_hash", newHash)
}

// ResetPasswordHash replaces the password hash only if the recovery hash the
// caller verified against is still the stored one.
func (s *UserStore) ResetPasswordHash(ctx context.Context, id uint, recoveryHash, newHash string) error {
	return s.swap(ctx, id, "recovery_answer_hash", recoveryHash, "password_hash", newHash)
}

func (s *UserStore) CountNotesByAuthor(ctx context.Context, id uint) (int64, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&models.Note{}).Where("author_id = ?", id).Count(&count).Error; err != nil {
		return 0, Translate(err)
	}
	return count, nil
}

func (s *UserStore) Delete(ctx context.Context, id uint) error {
	res := s.db.WithContext(ctx).Delete(&models.User{}, id)
	if res.Error != nil {
		return Translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) updateColumn(ctx context.Context, id uint, column string, value any) error {
	res := s.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Update(column, value)
	if res.Error != nil {
		return Translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *UserStore) swap(ctx context.Context, id uint, guardColumn, guardValue, column, value string) error {
	res := s.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Where(fmt.Sprintf("%s = ?", guardColumn), guardValue).
		Update(column, value)
	if res.Error != nil {
		return Translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrStale
	}
	return nil
}
