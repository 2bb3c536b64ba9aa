package models

import (
	"time"
)

// AppointmentStatus represents the status of an appointment
type AppointmentStatus string

const (
	StatusPending   AppointmentStatus = "pending"
	StatusConfirmed AppointmentStatus = "confirmed"
	StatusCancelled AppointmentStatus = "cancelled"
	StatusCompleted AppointmentStatus = "completed"
)

// ValidStatuses lists every accepted appointment status value.
var ValidStatuses = []AppointmentStatus{
	StatusPending, StatusConfirmed, StatusCancelled, StatusCompleted,
}

// IsValidStatus reports whether s is one of the accepted status values.
func IsValidStatus(s AppointmentStatus) bool {
	for _, v := range ValidStatuses {
		if s == v {
			return true
		}
	}
	return false
}

// Appointment represents a booking of a doctor's time slot by a patient.
// The slot is identified by (doctor, date, time); the time of day is kept as
// an "HH:MM" string separate from the calendar date.
type Appointment struct {
	BaseModel
	PatientID       string            `gorm:"size:36;index;not null" json:"patientId"`
	DoctorID        string            `gorm:"size:36;index;not null" json:"doctorId"`
	AppointmentDate time.Time         `gorm:"type:date;not null" json:"appointmentDate"`
	AppointmentTime string            `gorm:"size:5;not null" json:"appointmentTime"`
	Reason          string            `gorm:"size:255" json:"reason"`
	Notes           string            `gorm:"type:text" json:"notes"`
	Status          AppointmentStatus `gorm:"size:20;default:'pending'" json:"status"`

	// Relations
	Patient User `gorm:"foreignKey:PatientID" json:"-"`
	Doctor  User `gorm:"foreignKey:DoctorID" json:"-"`
}
