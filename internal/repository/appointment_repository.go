package repository

import (
	"time"

	"hospital-app-server/internal/models"
	"hospital-app-server/internal/scheduling"

	"gorm.io/gorm"
)

// AppointmentRepository is the persistence boundary for bookings.
type AppointmentRepository interface {
	Create(a *models.Appointment) error
	// FindByID loads an appointment with its patient and doctor populated.
	FindByID(id string) (*models.Appointment, error)
	Update(a *models.Appointment) error
	// SlotTaken reports whether a pending or confirmed appointment already
	// occupies (doctor, date, time). excludeID skips the appointment being
	// moved; pass "" when booking.
	SlotTaken(doctorID string, date time.Time, timeOfDay, excludeID string) (bool, error)
	// ListForPatient returns the patient's appointments ordered by date then
	// time, with the doctor populated.
	ListForPatient(patientID string) ([]models.Appointment, error)
	// ListForDoctor applies the listing filters and returns one page plus the
	// total match count.
	ListForDoctor(doctorID string, p scheduling.ListParams) ([]models.Appointment, int64, error)
	// CancelActiveForUser moves every pending or confirmed appointment where
	// the user is patient or doctor to cancelled, returning how many changed.
	CancelActiveForUser(userID string) (int64, error)
}

type appointmentRepository struct {
	db *gorm.DB
}

// NewAppointmentRepository creates a gorm-backed AppointmentRepository.
func NewAppointmentRepository(db *gorm.DB) AppointmentRepository {
	return &appointmentRepository{db: db}
}

func (r *appointmentRepository) Create(a *models.Appointment) error {
	return r.db.Create(a).Error
}

func (r *appointmentRepository) FindByID(id string) (*models.Appointment, error) {
	var a models.Appointment
	err := r.db.Preload("Patient").Preload("Doctor").
		First(&a, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *appointmentRepository) Update(a *models.Appointment) error {
	return r.db.Save(a).Error
}

func (r *appointmentRepository) SlotTaken(doctorID string, date time.Time, timeOfDay, excludeID string) (bool, error) {
	q := r.db.Model(&models.Appointment{}).
		Where("doctor_id = ? AND appointment_date = ? AND appointment_time = ?",
			doctorID, date.Format(scheduling.DateLayout), timeOfDay).
		Where("status IN ?", []models.AppointmentStatus{models.StatusPending, models.StatusConfirmed})
	if excludeID != "" {
		q = q.Where("id != ?", excludeID)
	}

	var count int64
	if err := q.Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

func (r *appointmentRepository) ListForPatient(patientID string) ([]models.Appointment, error) {
	var appointments []models.Appointment
	err := r.db.Preload("Doctor").
		Where("patient_id = ?", patientID).
		Order("appointment_date asc, appointment_time asc").
		Find(&appointments).Error
	if err != nil {
		return nil, err
	}
	return appointments, nil
}

var appointmentSortColumns = map[string]string{
	"appointmentDate": "appointment_date",
	"appointmentTime": "appointment_time",
	"status":          "status",
	"createdAt":       "created_at",
	"updatedAt":       "updated_at",
}

func (r *appointmentRepository) ListForDoctor(doctorID string, p scheduling.ListParams) ([]models.Appointment, int64, error) {
	q := r.db.Model(&models.Appointment{}).
		Where("appointments.doctor_id = ?", doctorID)

	if p.Status != "" {
		q = q.Where("appointments.status = ?", p.Status)
	}
	if p.FromDate != nil {
		q = q.Where("appointments.appointment_date >= ?", p.FromDate.Format(scheduling.DateLayout))
	}
	if p.ToDate != nil {
		q = q.Where("appointments.appointment_date <= ?", p.ToDate.Format(scheduling.DateLayout))
	}
	if p.Search != "" {
		like := "%" + p.Search + "%"
		q = q.Joins("JOIN users ON users.id = appointments.patient_id").
			Where("users.username LIKE ? OR users.email LIKE ? OR users.first_name LIKE ? OR users.last_name LIKE ?",
				like, like, like, like)
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	column := appointmentSortColumns[p.SortBy]
	if column == "" {
		column = "appointment_date"
	}
	order := column + " " + p.SortOrder
	// Tie-break same-day rows by time when sorting on the date column.
	if column == "appointment_date" {
		order += ", appointment_time " + p.SortOrder
	}

	var appointments []models.Appointment
	err := q.Preload("Patient").
		Order(order).
		Offset((p.Page - 1) * p.Limit).
		Limit(p.Limit).
		Find(&appointments).Error
	if err != nil {
		return nil, 0, err
	}
	return appointments, total, nil
}

func (r *appointmentRepository) CancelActiveForUser(userID string) (int64, error) {
	res := r.db.Model(&models.Appointment{}).
		Where("(patient_id = ? OR doctor_id = ?)", userID, userID).
		Where("status IN ?", []models.AppointmentStatus{models.StatusPending, models.StatusConfirmed}).
		Update("status", models.StatusCancelled)
	return res.RowsAffected, res.Error
}
