package repository

import (
	"strings"

	"gorm.io/gorm"

	"github.com/ManuelReschke/PlanFox/app/models"
)

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository returns the gorm backed user store
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (r *userRepository) Create(user *models.User) error {
	user.Email = normalizeEmail(user.Email)
	return r.db.Create(user).Error
}

func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

func (r *userRepository) GetByID(id uint) (*models.User, error) {
	user := &models.User{}
	if err := r.db.First(user, id).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// GetByEmail matches the address case-insensitively, the way sign-in stores it
func (r *userRepository) GetByEmail(email string) (*models.User, error) {
	user := &models.User{}
	if err := r.db.Where("email = ?", normalizeEmail(email)).First(user).Error; err != nil {
		return nil, err
	}
	return user, nil
}

// GetByAPIKeyHash finds the owner of a key hash. Revoked keys and soft
// deleted settings never match.
func (r *userRepository) GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error) {
	hash = strings.TrimSpace(hash)
	if hash == "" {
		return nil, nil, gorm.ErrRecordNotFound
	}
	settings := &models.UserSettings{}
	err := r.db.
		Where("api_key_hash = ?", hash).
		Where("api_key_revoked_at IS NULL").
		Take(settings).Error
	if err != nil {
		return nil, nil, err
	}
	user, err := r.GetByID(settings.UserID)
	if err != nil {
		return nil, nil, err
	}
	return user, settings, nil
}

// GetSettings returns the settings of a user, inserting defaults on first use
func (r *userRepository) GetSettings(userID uint) (*models.UserSettings, error) {
	return models.LoadUserSettings(r.db, userID)
}

func (r *userRepository) SaveSettings(settings *models.UserSettings) error {
	return r.db.Save(settings).Error
}
