package handlers

import (
	"errors"
	"fmt"
	"log"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hospital-app-server/internal/middleware"
	"hospital-app-server/internal/models"
	"hospital-app-server/internal/repository"
	"hospital-app-server/internal/scheduling"
	"hospital-app-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// UserHandler handles profile, medical record and account management.
type UserHandler struct {
	Users        repository.UserRepository
	Appointments repository.AppointmentRepository
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(users repository.UserRepository, appointments repository.AppointmentRepository) *UserHandler {
	return &UserHandler{Users: users, Appointments: appointments}
}

// targetUserID resolves the acted-on user: the :userId path param when
// present (admin routes), otherwise the caller.
func targetUserID(c *gin.Context, principal middleware.Principal) string {
	if id := c.Param("userId"); id != "" {
		return id
	}
	return principal.UserID
}

// GetProfile returns the caller's profile, or any profile for an admin.
func (h *UserHandler) GetProfile(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)
	userID := targetUserID(c, principal)

	if userID != principal.UserID && principal.Role != models.RoleAdmin {
		utils.Forbidden(c, "You can only view your own profile")
		return
	}

	user, err := h.Users.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User not found")
		} else {
			utils.ServerError(c, err)
		}
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile retrieved successfully",
		"user":    user.Profile(),
	})
}

// UpdateProfileRequest is a partial profile update. Only the fields relevant
// to the target user's role are applied; the rest are ignored.
type UpdateProfileRequest struct {
	// Common fields
	FirstName      *string         `json:"firstName"`
	LastName       *string         `json:"lastName"`
	PhoneNumber    *string         `json:"phoneNumber"`
	Address        *models.Address `json:"address"`
	DateOfBirth    *string         `json:"dateOfBirth"`
	Gender         *string         `json:"gender"`
	ProfilePicture *string         `json:"profilePicture"`

	// Patient fields
	EmergencyContact *models.EmergencyContact     `json:"emergencyContact"`
	BloodGroup       *string                      `json:"bloodGroup"`
	Allergies        *[]string                    `json:"allergies"`
	InsuranceInfo    *models.InsuranceInfo        `json:"insuranceInfo"`
	MedicalHistory   *[]models.MedicalHistoryEntry `json:"medicalHistory"`

	// Doctor fields
	Specialization    *string                    `json:"specialization"`
	LicenseNumber     *string                    `json:"licenseNumber"`
	Department        *string                    `json:"department"`
	Qualifications    *[]models.Qualification    `json:"qualifications"`
	YearsOfExperience *int                       `json:"yearsOfExperience"`
	ConsultationFee   *float64                   `json:"consultationFee"`
	Availability      *models.WeeklyAvailability `json:"availability"`
	Bio               *string                    `json:"bio"`

	// Admin fields
	Position *string `json:"position"`

	// Password change
	CurrentPassword *string `json:"currentPassword"`
	NewPassword     *string `json:"newPassword"`
}

// UpdateProfile applies a role-scoped partial update to the caller's
// profile, or to any profile for an admin.
func (h *UserHandler) UpdateProfile(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)
	userID := targetUserID(c, principal)

	if userID != principal.UserID && principal.Role != models.RoleAdmin {
		utils.Forbidden(c, "You can only update your own profile")
		return
	}

	var req UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	user, err := h.Users.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User not found")
		} else {
			utils.ServerError(c, err)
		}
		return
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.PhoneNumber != nil {
		user.PhoneNumber = *req.PhoneNumber
	}
	if req.Address != nil {
		user.Address = req.Address
	}
	if req.DateOfBirth != nil {
		dob, err := time.ParseInLocation(scheduling.DateLayout, *req.DateOfBirth, time.Local)
		if err != nil {
			utils.BadRequest(c, "Invalid date of birth format")
			return
		}
		user.DateOfBirth = &dob
	}
	// Unknown enum values are dropped, not rejected.
	if req.Gender != nil && models.IsValidGender(*req.Gender) {
		user.Gender = *req.Gender
	}
	if req.ProfilePicture != nil {
		user.ProfilePicture = *req.ProfilePicture
	}

	switch user.Role {
	case models.RolePatient:
		if req.EmergencyContact != nil {
			user.EmergencyContact = req.EmergencyContact
		}
		if req.BloodGroup != nil && models.IsValidBloodGroup(*req.BloodGroup) {
			user.BloodGroup = *req.BloodGroup
		}
		if req.Allergies != nil {
			user.Allergies = *req.Allergies
		}
		if req.InsuranceInfo != nil {
			user.InsuranceInfo = req.InsuranceInfo
		}
		if req.MedicalHistory != nil {
			user.MedicalHistory = *req.MedicalHistory
		}
	case models.RoleDoctor:
		if req.Specialization != nil {
			user.Specialization = *req.Specialization
		}
		if req.LicenseNumber != nil {
			taken, err := h.Users.LicenseNumberTaken(*req.LicenseNumber, user.ID)
			if err != nil {
				utils.ServerError(c, err)
				return
			}
			if taken {
				utils.BadRequest(c, "License number already exists")
				return
			}
			user.LicenseNumber = req.LicenseNumber
		}
		if req.Department != nil {
			user.Department = *req.Department
		}
		if req.Qualifications != nil {
			user.Qualifications = *req.Qualifications
		}
		if req.YearsOfExperience != nil {
			user.YearsOfExperience = *req.YearsOfExperience
		}
		if req.ConsultationFee != nil {
			user.ConsultationFee = *req.ConsultationFee
		}
		if req.Availability != nil {
			user.Availability = req.Availability
		}
		if req.Bio != nil {
			if len(*req.Bio) > 500 {
				utils.BadRequest(c, "Bio must be 500 characters or less")
				return
			}
			user.Bio = *req.Bio
		}
	case models.RoleAdmin:
		if req.Position != nil {
			user.Position = *req.Position
		}
	}

	if req.NewPassword != nil {
		if req.CurrentPassword == nil {
			utils.BadRequest(c, "Current password is required to change password")
			return
		}
		if !user.CheckPassword(*req.CurrentPassword) {
			utils.Unauthorized(c, "Current password is incorrect")
			return
		}
		if len(*req.NewPassword) < 6 {
			utils.BadRequest(c, "New password must be at least 6 characters long")
			return
		}
		if err := user.SetPassword(*req.NewPassword); err != nil {
			utils.ServerError(c, err)
			return
		}
	}

	if err := h.Users.Update(user); err != nil {
		utils.ServerError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Profile updated successfully",
		"user":    user.Profile(),
	})
}

// UpdateMedicalRecordRequest updates the medical section of a patient record.
type UpdateMedicalRecordRequest struct {
	EmergencyContact *models.EmergencyContact      `json:"emergencyContact"`
	BloodGroup       *string                       `json:"bloodGroup"`
	Allergies        *[]string                     `json:"allergies"`
	InsuranceInfo    *models.InsuranceInfo         `json:"insuranceInfo"`
	MedicalHistory   *[]models.MedicalHistoryEntry `json:"medicalHistory"`
}

// UpdateMedicalRecord lets a patient maintain their own medical details.
// Unlike the profile update, an invalid blood group is rejected here.
func (h *UserHandler) UpdateMedicalRecord(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	user, err := h.Users.FindByID(principal.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User not found")
		} else {
			utils.ServerError(c, err)
		}
		return
	}
	if user.Role != models.RolePatient {
		utils.Forbidden(c, "Only patients can update medical records")
		return
	}

	var req UpdateMedicalRecordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	if req.EmergencyContact != nil {
		user.EmergencyContact = req.EmergencyContact
	}
	if req.BloodGroup != nil {
		if !models.IsValidBloodGroup(*req.BloodGroup) {
			utils.BadRequest(c, fmt.Sprintf("Invalid blood group. Valid options: %s",
				strings.Join(models.ValidBloodGroups, ", ")))
			return
		}
		user.BloodGroup = *req.BloodGroup
	}
	if req.Allergies != nil {
		user.Allergies = *req.Allergies
	}
	if req.InsuranceInfo != nil {
		user.InsuranceInfo = req.InsuranceInfo
	}
	if req.MedicalHistory != nil {
		user.MedicalHistory = *req.MedicalHistory
	}

	if err := h.Users.Update(user); err != nil {
		utils.ServerError(c, err)
		return
	}

	log.Printf("Medical record updated for patient: %s", user.Username)

	c.JSON(http.StatusOK, gin.H{
		"message": "Medical record updated successfully",
		"medicalRecord": gin.H{
			"emergencyContact": user.EmergencyContact,
			"bloodGroup":       user.BloodGroup,
			"allergies":        user.Allergies,
			"insuranceInfo":    user.InsuranceInfo,
			"medicalHistory":   user.MedicalHistory,
			"updatedAt":        user.UpdatedAt,
		},
	})
}

// DeleteAccount removes an account after cancelling every pending or
// confirmed appointment the user is party to, as patient or as doctor.
func (h *UserHandler) DeleteAccount(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)
	userID := targetUserID(c, principal)

	if userID != principal.UserID && principal.Role != models.RoleAdmin {
		utils.Forbidden(c, "You can only delete your own account")
		return
	}

	user, err := h.Users.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "User not found")
		} else {
			utils.ServerError(c, err)
		}
		return
	}

	cancelled, err := h.Appointments.CancelActiveForUser(userID)
	if err != nil {
		utils.ServerError(c, err)
		return
	}
	if cancelled > 0 {
		log.Printf("Cancelled %d appointment(s) for user %s", cancelled, user.Username)
	}

	if err := h.Users.Delete(userID); err != nil {
		utils.ServerError(c, err)
		return
	}

	log.Printf("Account deleted: %s (%s)", user.Username, user.Role)

	c.JSON(http.StatusOK, gin.H{
		"message": "Account deleted successfully",
		"deletedUser": gin.H{
			"id":       user.ID,
			"username": user.Username,
			"email":    user.Email,
			"role":     user.Role,
		},
		"cancelledAppointments": cancelled,
	})
}

// GetUsers lists accounts with filtering, search and pagination. Admin only
// (enforced by the route).
func (h *UserHandler) GetUsers(c *gin.Context) {
	filter := repository.UserListFilter{
		Search:    strings.TrimSpace(c.Query("search")),
		Page:      1,
		Limit:     10,
		SortBy:    c.DefaultQuery("sortBy", "createdAt"),
		SortOrder: c.DefaultQuery("sortOrder", "desc"),
	}

	if role := models.Role(c.Query("role")); role == models.RolePatient ||
		role == models.RoleDoctor || role == models.RoleAdmin {
		filter.Role = role
	}
	if v := c.Query("isActive"); v != "" {
		b := v == "true"
		filter.IsActive = &b
	}
	if v := c.Query("isEmailVerified"); v != "" {
		b := v == "true"
		filter.IsEmailVerified = &b
	}
	if n, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil && n > 0 {
		filter.Page = n
	}
	if n, err := strconv.Atoi(c.DefaultQuery("limit", "10")); err == nil && n > 0 {
		filter.Limit = n
	}

	users, total, err := h.Users.List(filter)
	if err != nil {
		utils.ServerError(c, err)
		return
	}

	shaped := make([]models.ProfileResponse, len(users))
	for i := range users {
		shaped[i] = users[i].Profile()
	}

	totalPages := int(math.Ceil(float64(total) / float64(filter.Limit)))

	c.JSON(http.StatusOK, gin.H{
		"message": "Users retrieved successfully",
		"users":   shaped,
		"pagination": gin.H{
			"currentPage":  filter.Page,
			"totalPages":   totalPages,
			"totalUsers":   total,
			"usersPerPage": filter.Limit,
			"hasNextPage":  filter.Page < totalPages,
			"hasPrevPage":  filter.Page > 1,
		},
		"filters": gin.H{
			"role":            emptyAsNil(string(filter.Role)),
			"isActive":        filter.IsActive,
			"isEmailVerified": filter.IsEmailVerified,
			"search":          emptyAsNil(filter.Search),
		},
	})
}
