package models

import (
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Role enum
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleDoctor  Role = "doctor"
	RolePatient Role = "patient"
)

// ValidGenders are the accepted values for the gender field. Anything else
// supplied on a profile update is silently dropped.
var ValidGenders = []string{"male", "female", "other", "prefer not to say"}

// ValidBloodGroups are the accepted blood group values.
var ValidBloodGroups = []string{"A+", "A-", "B+", "B-", "AB+", "AB-", "O+", "O-"}

// IsValidGender reports whether g is one of the accepted gender values.
func IsValidGender(g string) bool {
	for _, v := range ValidGenders {
		if g == v {
			return true
		}
	}
	return false
}

// IsValidBloodGroup reports whether bg is one of the accepted blood groups.
func IsValidBloodGroup(bg string) bool {
	for _, v := range ValidBloodGroups {
		if bg == v {
			return true
		}
	}
	return false
}

// Address is a structured postal address stored as a JSON column.
type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

// EmergencyContact holds a patient's emergency contact details.
type EmergencyContact struct {
	Name         string `json:"name,omitempty"`
	Relationship string `json:"relationship,omitempty"`
	PhoneNumber  string `json:"phoneNumber,omitempty"`
	Email        string `json:"email,omitempty"`
}

// InsuranceInfo holds a patient's insurance policy details.
type InsuranceInfo struct {
	Provider     string     `json:"provider,omitempty"`
	PolicyNumber string     `json:"policyNumber,omitempty"`
	GroupNumber  string     `json:"groupNumber,omitempty"`
	ExpiryDate   *time.Time `json:"expiryDate,omitempty"`
}

// MedicalHistoryEntry is a single diagnosed condition on a patient record.
type MedicalHistoryEntry struct {
	Condition     string     `json:"condition"`
	DiagnosisDate *time.Time `json:"diagnosisDate,omitempty"`
	Notes         string     `json:"notes,omitempty"`
}

// Qualification is a single degree held by a doctor.
type Qualification struct {
	Degree      string `json:"degree"`
	Institution string `json:"institution,omitempty"`
	Year        int    `json:"year,omitempty"`
}

// DayAvailability describes a doctor's working window on one weekday.
type DayAvailability struct {
	Available bool   `json:"available"`
	StartTime string `json:"startTime,omitempty"`
	EndTime   string `json:"endTime,omitempty"`
}

// WeeklyAvailability is a doctor's recurring weekly schedule.
type WeeklyAvailability struct {
	Monday    DayAvailability `json:"monday"`
	Tuesday   DayAvailability `json:"tuesday"`
	Wednesday DayAvailability `json:"wednesday"`
	Thursday  DayAvailability `json:"thursday"`
	Friday    DayAvailability `json:"friday"`
	Saturday  DayAvailability `json:"saturday"`
	Sunday    DayAvailability `json:"sunday"`
}

// User represents an account in the system. Patient, doctor and admin
// specific fields live on the same row; response shaping decides which of
// them are exposed.
type User struct {
	BaseModel
	Username string `gorm:"uniqueIndex;size:100;not null" json:"username"`
	Email    string `gorm:"uniqueIndex;size:255;not null" json:"email"`
	Password string `gorm:"size:255;not null" json:"-"` // Never send password in JSON
	Role     Role   `gorm:"size:20;default:'patient'" json:"role"`

	// Common profile fields
	FirstName      string     `gorm:"size:100" json:"firstName,omitempty"`
	LastName       string     `gorm:"size:100" json:"lastName,omitempty"`
	PhoneNumber    string     `gorm:"size:30" json:"phoneNumber,omitempty"`
	Address        *Address   `gorm:"serializer:json" json:"address,omitempty"`
	DateOfBirth    *time.Time `json:"dateOfBirth,omitempty"`
	Gender         string     `gorm:"size:20" json:"gender,omitempty"`
	ProfilePicture string     `gorm:"size:255" json:"profilePicture,omitempty"`

	// Patient-specific fields
	EmergencyContact *EmergencyContact     `gorm:"serializer:json" json:"-"`
	BloodGroup       string                `gorm:"size:5" json:"-"`
	MedicalHistory   []MedicalHistoryEntry `gorm:"serializer:json" json:"-"`
	Allergies        []string              `gorm:"serializer:json" json:"-"`
	InsuranceInfo    *InsuranceInfo        `gorm:"serializer:json" json:"-"`

	// Doctor-specific fields
	Specialization    string              `gorm:"size:100" json:"-"`
	LicenseNumber     *string             `gorm:"uniqueIndex;size:100" json:"-"` // unique among non-null values
	Department        string              `gorm:"size:100" json:"-"`
	Qualifications    []Qualification     `gorm:"serializer:json" json:"-"`
	YearsOfExperience int                 `gorm:"default:0" json:"-"`
	ConsultationFee   float64             `gorm:"default:0" json:"-"`
	Availability      *WeeklyAvailability `gorm:"serializer:json" json:"-"`
	Bio               string              `gorm:"size:500" json:"-"`

	// Admin-specific fields
	Position string `gorm:"size:100" json:"-"`

	// Email verification and password reset
	IsEmailVerified              bool       `gorm:"default:false" json:"isEmailVerified"`
	EmailVerificationToken       *string    `gorm:"size:255" json:"-"`
	EmailVerificationTokenExpiry *time.Time `json:"-"`
	ResetToken                   *string    `gorm:"size:255" json:"-"`
	ResetTokenExpiry             *time.Time `json:"-"`

	// Account status
	IsActive bool `gorm:"default:true" json:"isActive"`

	// Relations (not always preloaded)
	DoctorAppointments  []Appointment `gorm:"foreignKey:DoctorID" json:"-"`
	PatientAppointments []Appointment `gorm:"foreignKey:PatientID" json:"-"`
}

// SetPassword hashes a password and sets it on the user
func (u *User) SetPassword(password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	u.Password = string(hashedPassword)
	return nil
}

// CheckPassword compares a password with the user's hashed password
func (u *User) CheckPassword(password string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password))
	return err == nil
}

// FullName joins first and last name, falling back to the username when both
// are empty. Matches the display-name rule used in notifications.
func (u *User) FullName() string {
	name := u.FirstName
	if u.LastName != "" {
		if name != "" {
			name += " "
		}
		name += u.LastName
	}
	if name == "" {
		return u.Username
	}
	return name
}

// PatientDetails is the patient-only section of a profile response.
type PatientDetails struct {
	EmergencyContact *EmergencyContact     `json:"emergencyContact,omitempty"`
	BloodGroup       string                `json:"bloodGroup,omitempty"`
	Allergies        []string              `json:"allergies,omitempty"`
	InsuranceInfo    *InsuranceInfo        `json:"insuranceInfo,omitempty"`
	MedicalHistory   []MedicalHistoryEntry `json:"medicalHistory,omitempty"`
}

// DoctorDetails is the doctor-only section of a profile response.
type DoctorDetails struct {
	Specialization    string              `json:"specialization,omitempty"`
	LicenseNumber     *string             `json:"licenseNumber,omitempty"`
	Department        string              `json:"department,omitempty"`
	Qualifications    []Qualification     `json:"qualifications,omitempty"`
	YearsOfExperience int                 `json:"yearsOfExperience"`
	ConsultationFee   float64             `json:"consultationFee"`
	Availability      *WeeklyAvailability `json:"availability,omitempty"`
	Bio               string              `json:"bio,omitempty"`
}

// AdminDetails is the admin-only section of a profile response.
type AdminDetails struct {
	Position string `json:"position,omitempty"`
}

// ProfileResponse is the shaped profile sent to clients. Exactly one of the
// role sections is populated, selected by Role.
type ProfileResponse struct {
	ID             string          `json:"id"`
	Username       string          `json:"username"`
	Email          string          `json:"email"`
	Role           Role            `json:"role"`
	FirstName      string          `json:"firstName,omitempty"`
	LastName       string          `json:"lastName,omitempty"`
	PhoneNumber    string          `json:"phoneNumber,omitempty"`
	Address        *Address        `json:"address,omitempty"`
	DateOfBirth    *time.Time      `json:"dateOfBirth,omitempty"`
	Gender         string          `json:"gender,omitempty"`
	ProfilePicture string          `json:"profilePicture,omitempty"`
	IsEmailVerified bool           `json:"isEmailVerified"`
	IsActive       bool            `json:"isActive"`
	Patient        *PatientDetails `json:"patientProfile,omitempty"`
	Doctor         *DoctorDetails  `json:"doctorProfile,omitempty"`
	Admin          *AdminDetails   `json:"adminProfile,omitempty"`
	CreatedAt      time.Time       `json:"createdAt"`
	UpdatedAt      time.Time       `json:"updatedAt"`
}

// Profile shapes the user into a role-specific response, excluding
// credentials and tokens.
func (u *User) Profile() ProfileResponse {
	resp := ProfileResponse{
		ID:              u.ID,
		Username:        u.Username,
		Email:           u.Email,
		Role:            u.Role,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		PhoneNumber:     u.PhoneNumber,
		Address:         u.Address,
		DateOfBirth:     u.DateOfBirth,
		Gender:          u.Gender,
		ProfilePicture:  u.ProfilePicture,
		IsEmailVerified: u.IsEmailVerified,
		IsActive:        u.IsActive,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}

	switch u.Role {
	case RolePatient:
		resp.Patient = &PatientDetails{
			EmergencyContact: u.EmergencyContact,
			BloodGroup:       u.BloodGroup,
			Allergies:        u.Allergies,
			InsuranceInfo:    u.InsuranceInfo,
			MedicalHistory:   u.MedicalHistory,
		}
	case RoleDoctor:
		resp.Doctor = &DoctorDetails{
			Specialization:    u.Specialization,
			LicenseNumber:     u.LicenseNumber,
			Department:        u.Department,
			Qualifications:    u.Qualifications,
			YearsOfExperience: u.YearsOfExperience,
			ConsultationFee:   u.ConsultationFee,
			Availability:      u.Availability,
			Bio:               u.Bio,
		}
	case RoleAdmin:
		resp.Admin = &AdminDetails{Position: u.Position}
	}

	return resp
}

// UserSummary is the compact user representation embedded in appointment
// responses and listings.
type UserSummary struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Email          string `json:"email"`
	Name           string `json:"name"`
	PhoneNumber    string `json:"phoneNumber,omitempty"`
	Specialization string `json:"specialization,omitempty"`
	Department     string `json:"department,omitempty"`
}

// Summary shapes the user into a UserSummary. Doctor fields are only carried
// for doctor accounts.
func (u *User) Summary() UserSummary {
	s := UserSummary{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Name:        u.FullName(),
		PhoneNumber: u.PhoneNumber,
	}
	if u.Role == RoleDoctor {
		s.Specialization = u.Specialization
		s.Department = u.Department
	}
	return s
}
