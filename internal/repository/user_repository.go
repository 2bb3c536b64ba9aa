package repository

import (
	"strings"

	"hospital-app-server/internal/models"

	"gorm.io/gorm"
)

// UserListFilter narrows the admin user listing.
type UserListFilter struct {
	Role            models.Role // empty = all
	IsActive        *bool
	IsEmailVerified *bool
	Search          string
	Page            int
	Limit           int
	SortBy          string // column name, already whitelisted by the caller
	SortOrder       string
}

// UserRepository is the persistence boundary for accounts.
type UserRepository interface {
	Create(user *models.User) error
	FindByID(id string) (*models.User, error)
	FindByUsername(username string) (*models.User, error)
	FindByEmail(email string) (*models.User, error)
	FindByVerificationToken(token string) (*models.User, error)
	FindByResetToken(token string) (*models.User, error)
	Update(user *models.User) error
	Delete(id string) error
	LicenseNumberTaken(license, excludeUserID string) (bool, error)
	List(filter UserListFilter) ([]models.User, int64, error)
}

type userRepository struct {
	db *gorm.DB
}

// NewUserRepository creates a gorm-backed UserRepository.
func NewUserRepository(db *gorm.DB) UserRepository {
	return &userRepository{db: db}
}

func (r *userRepository) Create(user *models.User) error {
	return r.db.Create(user).Error
}

func (r *userRepository) FindByID(id string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByUsername(username string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "username = ?", username).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByEmail(email string) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByVerificationToken(token string) (*models.User, error) {
	var user models.User
	err := r.db.
		Where("email_verification_token = ?", token).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) FindByResetToken(token string) (*models.User, error) {
	var user models.User
	err := r.db.
		Where("reset_token = ?", token).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (r *userRepository) Update(user *models.User) error {
	return r.db.Save(user).Error
}

func (r *userRepository) Delete(id string) error {
	return r.db.Delete(&models.User{}, "id = ?", id).Error
}

// LicenseNumberTaken checks doctor license uniqueness, ignoring the caller's
// own record.
func (r *userRepository) LicenseNumberTaken(license, excludeUserID string) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).
		Where("license_number = ? AND id != ?", license, excludeUserID).
		Count(&count).Error
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

var userSortColumns = map[string]string{
	"createdAt": "created_at",
	"updatedAt": "updated_at",
	"username":  "username",
	"email":     "email",
	"role":      "role",
}

func (r *userRepository) List(filter UserListFilter) ([]models.User, int64, error) {
	q := r.db.Model(&models.User{})

	if filter.Role != "" {
		q = q.Where("role = ?", filter.Role)
	}
	if filter.IsActive != nil {
		q = q.Where("is_active = ?", *filter.IsActive)
	}
	if filter.IsEmailVerified != nil {
		q = q.Where("is_email_verified = ?", *filter.IsEmailVerified)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("username LIKE ? OR email LIKE ? OR first_name LIKE ? OR last_name LIKE ?",
			like, like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column, ok := userSortColumns[filter.SortBy]
	if !ok {
		column = "created_at"
	}
	order := "desc"
	if strings.EqualFold(filter.SortOrder, "asc") {
		order = "asc"
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	limit := filter.Limit
	if limit < 1 {
		limit = 10
	}

	var users []models.User
	err := q.Order(column + " " + order).
		Offset((page - 1) * limit).
		Limit(limit).
		Find(&users).Error
	if err != nil {
		return nil, 0, err
	}
	return users, total, nil
}
