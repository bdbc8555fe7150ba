package services

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"

	"softwarnews/internal/models"
	"softwarnews/internal/utils"

	"gorm.io/gorm"
)

const minPasswordLength = 6

// IdentityService registers users and checks credentials.
type IdentityService struct {
	db *gorm.DB
}

func NewIdentityService(db *gorm.DB) *IdentityService {
	return &IdentityService{db: db}
}

// Register creates a user. The first user ever registered becomes admin.
func (s *IdentityService) Register(ctx context.Context, email, name, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	name = strings.TrimSpace(name)

	if _, err := mail.ParseAddress(email); err != nil {
		return nil, models.NewValidationError("invalid email address")
	}
	if name == "" {
		// 默认取邮箱前缀
		name = strings.SplitN(email, "@", 2)[0]
	}
	if len(password) < minPasswordLength {
		return nil, models.NewValidationError("password must be at least 6 characters")
	}

	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, models.NewInternalError(err)
	}

	user := models.User{
		Email:    email,
		Name:     name,
		Password: hash,
		Role:     models.RoleUser,
	}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.User{}).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			user.Role = models.RoleAdmin
		}
		return tx.Create(&user).Error
	})
	if err != nil {
		return nil, classifyDBError(err, duplicateAsConstraint("email already registered"))
	}

	slog.InfoContext(ctx, "user registered", "user_id", user.ID, "role", user.Role)
	return &user, nil
}

// Authenticate returns the user matching email and password.
func (s *IdentityService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var user models.User
	if err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, models.NewUnauthorizedError("invalid email or password")
		}
		return nil, classifyDBError(err, duplicateAsConflict)
	}
	if !utils.CheckPasswordHash(password, user.Password) {
		return nil, models.NewUnauthorizedError("invalid email or password")
	}
	return &user, nil
}

// GetUser loads a user by id.
func (s *IdentityService) GetUser(ctx context.Context, id uint) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, id).Error; err != nil {
		return nil, classifyDBError(err, duplicateAsConflict)
	}
	return &user, nil
}
