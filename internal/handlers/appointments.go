package handlers

import (
	"errors"
	"log"
	"math"
	"net/http"
	"time"

	"hospital-app-server/internal/mailer"
	"hospital-app-server/internal/middleware"
	"hospital-app-server/internal/models"
	"hospital-app-server/internal/repository"
	"hospital-app-server/internal/scheduling"
	"hospital-app-server/internal/utils"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// AppointmentHandler handles appointment related requests.
type AppointmentHandler struct {
	Users        repository.UserRepository
	Appointments repository.AppointmentRepository
	Mail         mailer.Notifier
}

// NewAppointmentHandler creates a new AppointmentHandler.
func NewAppointmentHandler(users repository.UserRepository, appointments repository.AppointmentRepository, mail mailer.Notifier) *AppointmentHandler {
	return &AppointmentHandler{Users: users, Appointments: appointments, Mail: mail}
}

// AppointmentResponse is the populated appointment representation.
type AppointmentResponse struct {
	ID              string                   `json:"id"`
	Patient         models.UserSummary       `json:"patient"`
	Doctor          models.UserSummary       `json:"doctor"`
	AppointmentDate string                   `json:"appointmentDate"`
	AppointmentTime string                   `json:"appointmentTime"`
	Reason          string                   `json:"reason"`
	Notes           string                   `json:"notes"`
	Status          models.AppointmentStatus `json:"status"`
	CreatedAt       time.Time                `json:"createdAt"`
	UpdatedAt       time.Time                `json:"updatedAt"`
}

func shapeAppointment(a *models.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:              a.ID,
		Patient:         a.Patient.Summary(),
		Doctor:          a.Doctor.Summary(),
		AppointmentDate: a.AppointmentDate.Format(scheduling.DateLayout),
		AppointmentTime: a.AppointmentTime,
		Reason:          a.Reason,
		Notes:           a.Notes,
		Status:          a.Status,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
}

// failRule translates a scheduling rule violation into an HTTP response.
func failRule(c *gin.Context, err error) {
	switch {
	case errors.Is(err, scheduling.ErrNotParticipant),
		errors.Is(err, scheduling.ErrDoctorOnlyTransition):
		utils.Forbidden(c, err.Error())
	default:
		utils.BadRequest(c, err.Error())
	}
}

// BookAppointmentRequest represents the request body for booking.
type BookAppointmentRequest struct {
	DoctorID        string `json:"doctorId" binding:"required"`
	AppointmentDate string `json:"appointmentDate" binding:"required"`
	AppointmentTime string `json:"appointmentTime" binding:"required"`
	Reason          string `json:"reason"`
	Notes           string `json:"notes"`
}

// BookAppointment creates a pending appointment for the authenticated
// patient, after checking the doctor exists and the slot is free and in the
// future.
func (h *AppointmentHandler) BookAppointment(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	var req BookAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	date, err := scheduling.ParseDate(req.AppointmentDate)
	if err != nil {
		failRule(c, err)
		return
	}
	timeOfDay, err := scheduling.ParseTimeOfDay(req.AppointmentTime)
	if err != nil {
		failRule(c, err)
		return
	}

	doctor, err := h.Users.FindByID(req.DoctorID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Doctor not found")
		} else {
			utils.ServerError(c, err)
		}
		return
	}
	if doctor.Role != models.RoleDoctor {
		utils.BadRequest(c, "The selected user is not a doctor")
		return
	}

	patient, err := h.Users.FindByID(principal.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Patient not found")
		} else {
			utils.ServerError(c, err)
		}
		return
	}
	if patient.Role != models.RolePatient {
		utils.Forbidden(c, "Only patients can book appointments")
		return
	}

	if err := scheduling.EnsureFuture(date, timeOfDay, time.Now()); err != nil {
		failRule(c, err)
		return
	}

	// Conflict check and insert are two store round-trips with no lock; two
	// concurrent bookings can both pass the check. Known race, kept as-is.
	taken, err := h.Appointments.SlotTaken(doctor.ID, date, timeOfDay, "")
	if err != nil {
		utils.ServerError(c, err)
		return
	}
	if taken {
		failRule(c, scheduling.ErrSlotTaken)
		return
	}

	appointment := models.Appointment{
		PatientID:       patient.ID,
		DoctorID:        doctor.ID,
		AppointmentDate: date,
		AppointmentTime: timeOfDay,
		Reason:          req.Reason,
		Notes:           req.Notes,
		Status:          models.StatusPending,
	}
	if err := h.Appointments.Create(&appointment); err != nil {
		utils.ServerError(c, err)
		return
	}
	appointment.Patient = *patient
	appointment.Doctor = *doctor

	if patient.Email != "" {
		err := h.Mail.SendAppointmentConfirmation(patient.Email, mailer.AppointmentEmail{
			PatientName:     patient.FullName(),
			DoctorName:      doctor.FullName(),
			AppointmentDate: req.AppointmentDate,
			AppointmentTime: timeOfDay,
			Reason:          req.Reason,
		})
		if err != nil {
			log.Printf("Failed to send appointment confirmation email: %v", err)
		}
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":     "Appointment booked successfully",
		"appointment": shapeAppointment(&appointment),
	})
}

// GetMyAppointments lists the authenticated patient's appointments sorted by
// date then time, with doctor details populated.
func (h *AppointmentHandler) GetMyAppointments(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	appointments, err := h.Appointments.ListForPatient(principal.UserID)
	if err != nil {
		utils.ServerError(c, err)
		return
	}

	shaped := make([]AppointmentResponse, len(appointments))
	for i := range appointments {
		shaped[i] = shapeAppointment(&appointments[i])
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      "Appointments retrieved successfully",
		"appointments": shaped,
	})
}

// GetDoctorAppointments lists the authenticated doctor's appointments with
// filtering, search, sorting and pagination.
func (h *AppointmentHandler) GetDoctorAppointments(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	doctor, err := h.Users.FindByID(principal.UserID)
	if err != nil || doctor.Role != models.RoleDoctor {
		utils.Forbidden(c, "Only doctors can view their appointments")
		return
	}

	params := scheduling.NormalizeListParams(
		c.Query("status"),
		c.Query("fromDate"),
		c.Query("toDate"),
		c.Query("search"),
		c.DefaultQuery("page", "1"),
		c.DefaultQuery("limit", "10"),
		c.DefaultQuery("sortBy", "appointmentDate"),
		c.DefaultQuery("sortOrder", "asc"),
	)

	appointments, total, err := h.Appointments.ListForDoctor(doctor.ID, params)
	if err != nil {
		utils.ServerError(c, err)
		return
	}

	shaped := make([]AppointmentResponse, len(appointments))
	for i := range appointments {
		appointments[i].Doctor = *doctor
		shaped[i] = shapeAppointment(&appointments[i])
	}

	totalPages := int(math.Ceil(float64(total) / float64(params.Limit)))

	c.JSON(http.StatusOK, gin.H{
		"message":      "Appointments retrieved successfully",
		"appointments": shaped,
		"pagination": gin.H{
			"currentPage":         params.Page,
			"totalPages":          totalPages,
			"totalAppointments":   total,
			"appointmentsPerPage": params.Limit,
			"hasNextPage":         params.Page < totalPages,
			"hasPrevPage":         params.Page > 1,
		},
		"filters": gin.H{
			"status":    emptyAsNil(string(params.Status)),
			"fromDate":  emptyAsNil(c.Query("fromDate")),
			"toDate":    emptyAsNil(c.Query("toDate")),
			"search":    emptyAsNil(params.Search),
			"sortBy":    params.SortBy,
			"sortOrder": params.SortOrder,
		},
	})
}

func emptyAsNil(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// UpdateStatusRequest represents the request body for a status-only update.
type UpdateStatusRequest struct {
	Status models.AppointmentStatus `json:"status" binding:"required"`
}

// UpdateAppointmentStatus changes only the status, enforcing ownership,
// doctor-only transitions and terminal-state locking.
func (h *AppointmentHandler) UpdateAppointmentStatus(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	var req UpdateStatusRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appointment, err := h.Appointments.FindByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.ServerError(c, err)
		}
		return
	}

	if err := scheduling.AuthorizeChange(appointment, principal.UserID, principal.Role, true); err != nil {
		utils.Forbidden(c, "You can only update your own appointments")
		return
	}
	if err := scheduling.ValidateTransition(appointment.Status, req.Status, principal.Role); err != nil {
		failRule(c, err)
		return
	}

	oldStatus := appointment.Status
	appointment.Status = req.Status
	if err := h.Appointments.Update(appointment); err != nil {
		utils.ServerError(c, err)
		return
	}

	if req.Status == models.StatusConfirmed && oldStatus != models.StatusConfirmed &&
		appointment.Patient.Email != "" {
		err := h.Mail.SendAppointmentConfirmation(appointment.Patient.Email, mailer.AppointmentEmail{
			PatientName:     appointment.Patient.FullName(),
			DoctorName:      appointment.Doctor.FullName(),
			AppointmentDate: appointment.AppointmentDate.Format(scheduling.DateLayout),
			AppointmentTime: appointment.AppointmentTime,
			Reason:          appointment.Reason,
		})
		if err != nil {
			log.Printf("Failed to send confirmation email: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Appointment status updated successfully",
		"appointment": gin.H{
			"id":             appointment.ID,
			"status":         appointment.Status,
			"previousStatus": oldStatus,
		},
	})
}

// UpdateAppointmentRequest represents a partial update of any subset of
// fields.
type UpdateAppointmentRequest struct {
	AppointmentDate *string                   `json:"appointmentDate"`
	AppointmentTime *string                   `json:"appointmentTime"`
	Reason          *string                   `json:"reason"`
	Notes           *string                   `json:"notes"`
	Status          *models.AppointmentStatus `json:"status"`
}

// UpdateAppointment applies a general field update, re-running the slot
// checks when the date or time changes and resetting a confirmed booking to
// pending on reschedule.
func (h *AppointmentHandler) UpdateAppointment(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	var req UpdateAppointmentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.BadRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	appointment, err := h.Appointments.FindByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.ServerError(c, err)
		}
		return
	}

	if err := scheduling.AuthorizeChange(appointment, principal.UserID, principal.Role, true); err != nil {
		utils.Forbidden(c, "You can only update your own appointments")
		return
	}
	if err := scheduling.EnsureMutable(appointment.Status); err != nil {
		failRule(c, err)
		return
	}

	if req.Status != nil {
		if err := scheduling.ValidateTransition(appointment.Status, *req.Status, principal.Role); err != nil {
			failRule(c, err)
			return
		}
	}

	oldDate := appointment.AppointmentDate.Format(scheduling.DateLayout)
	oldTime := appointment.AppointmentTime
	oldStatus := appointment.Status
	dateTimeChanged := false

	if req.AppointmentDate != nil {
		date, err := scheduling.ParseDate(*req.AppointmentDate)
		if err != nil {
			failRule(c, err)
			return
		}
		appointment.AppointmentDate = date
		dateTimeChanged = true
	}
	if req.AppointmentTime != nil {
		timeOfDay, err := scheduling.ParseTimeOfDay(*req.AppointmentTime)
		if err != nil {
			failRule(c, err)
			return
		}
		appointment.AppointmentTime = timeOfDay
		dateTimeChanged = true
	}

	if dateTimeChanged {
		if err := scheduling.EnsureFuture(appointment.AppointmentDate, appointment.AppointmentTime, time.Now()); err != nil {
			failRule(c, err)
			return
		}
		taken, err := h.Appointments.SlotTaken(appointment.DoctorID,
			appointment.AppointmentDate, appointment.AppointmentTime, appointment.ID)
		if err != nil {
			utils.ServerError(c, err)
			return
		}
		if taken {
			failRule(c, scheduling.ErrSlotTaken)
			return
		}
	}

	if req.Reason != nil {
		appointment.Reason = *req.Reason
	}
	if req.Notes != nil {
		appointment.Notes = *req.Notes
	}
	if req.Status != nil {
		appointment.Status = *req.Status
	}

	// A moved slot needs the doctor's re-confirmation.
	if dateTimeChanged {
		appointment.Status = scheduling.ResetOnReschedule(appointment.Status)
	}

	if err := h.Appointments.Update(appointment); err != nil {
		utils.ServerError(c, err)
		return
	}

	if dateTimeChanged {
		h.notifyReschedule(appointment, principal, oldDate, oldTime)
	}
	if req.Status != nil && *req.Status == models.StatusConfirmed &&
		oldStatus != models.StatusConfirmed && appointment.Status == models.StatusConfirmed &&
		appointment.Patient.Email != "" {
		err := h.Mail.SendAppointmentConfirmation(appointment.Patient.Email, mailer.AppointmentEmail{
			PatientName:     appointment.Patient.FullName(),
			DoctorName:      appointment.Doctor.FullName(),
			AppointmentDate: appointment.AppointmentDate.Format(scheduling.DateLayout),
			AppointmentTime: appointment.AppointmentTime,
			Reason:          appointment.Reason,
		})
		if err != nil {
			log.Printf("Failed to send confirmation email: %v", err)
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"message":     "Appointment updated successfully",
		"appointment": shapeAppointment(appointment),
	})
}

// CancelAppointmentRequest carries the appointment id when it is not in the
// URL.
type CancelAppointmentRequest struct {
	AppointmentID string `json:"appointmentId"`
}

// CancelAppointment cancels an appointment. Only the assigned patient or
// doctor may cancel; admins get no override here.
func (h *AppointmentHandler) CancelAppointment(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	appointmentID := c.Param("id")
	if appointmentID == "" {
		var req CancelAppointmentRequest
		if err := c.ShouldBindJSON(&req); err == nil {
			appointmentID = req.AppointmentID
		}
	}
	if appointmentID == "" {
		utils.BadRequest(c, "Appointment ID is required. Provide it in the URL or in the request body.")
		return
	}

	appointment, err := h.Appointments.FindByID(appointmentID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.ServerError(c, err)
		}
		return
	}

	if err := scheduling.AuthorizeChange(appointment, principal.UserID, principal.Role, false); err != nil {
		utils.Forbidden(c, "You can only cancel your own appointments")
		return
	}
	if appointment.Status == models.StatusCancelled {
		utils.BadRequest(c, "Appointment is already cancelled")
		return
	}
	if appointment.Status == models.StatusCompleted {
		utils.BadRequest(c, "Cannot cancel a completed appointment")
		return
	}

	cancelledBy := appointment.Doctor.FullName()
	if principal.UserID == appointment.PatientID {
		cancelledBy = appointment.Patient.FullName()
	}

	appointment.Status = models.StatusCancelled
	if err := h.Appointments.Update(appointment); err != nil {
		utils.ServerError(c, err)
		return
	}

	date := appointment.AppointmentDate.Format(scheduling.DateLayout)
	if appointment.Patient.Email != "" {
		err := h.Mail.SendAppointmentCancellation(appointment.Patient.Email, mailer.CancellationEmail{
			PatientName:     appointment.Patient.FullName(),
			DoctorName:      appointment.Doctor.FullName(),
			AppointmentDate: date,
			AppointmentTime: appointment.AppointmentTime,
			CancelledBy:     cancelledBy,
		})
		if err != nil {
			log.Printf("Failed to send cancellation email: %v", err)
		}
	}
	if principal.UserID == appointment.PatientID && appointment.Doctor.Email != "" {
		err := h.Mail.SendAppointmentCancellation(appointment.Doctor.Email, mailer.CancellationEmail{
			PatientName:     appointment.Doctor.FullName(),
			DoctorName:      appointment.Patient.FullName(),
			AppointmentDate: date,
			AppointmentTime: appointment.AppointmentTime,
			CancelledBy:     cancelledBy,
		})
		if err != nil {
			log.Printf("Failed to send cancellation email to doctor: %v", err)
		}
	}

	log.Printf("Appointment %s cancelled by %s: %s", appointment.ID, principal.Role, principal.Username)

	c.JSON(http.StatusOK, gin.H{
		"message": "Appointment cancelled successfully",
		"appointment": gin.H{
			"id":          appointment.ID,
			"status":      appointment.Status,
			"cancelledBy": cancelledBy,
		},
	})
}

// RescheduleAppointmentRequest represents the request body for rescheduling.
type RescheduleAppointmentRequest struct {
	AppointmentDate string `json:"appointmentDate" binding:"required"`
	AppointmentTime string `json:"appointmentTime" binding:"required"`
	Reason          string `json:"reason"`
}

// RescheduleAppointment moves an appointment to a new slot. Only the
// assigned patient or doctor may reschedule; a confirmed booking drops back
// to pending.
func (h *AppointmentHandler) RescheduleAppointment(c *gin.Context) {
	principal, _ := middleware.GetPrincipal(c)

	var req RescheduleAppointmentRequest
	if !utils.BindAndValidate(c, &req) {
		return
	}

	appointment, err := h.Appointments.FindByID(c.Param("id"))
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			utils.NotFound(c, "Appointment not found")
		} else {
			utils.ServerError(c, err)
		}
		return
	}

	if err := scheduling.AuthorizeChange(appointment, principal.UserID, principal.Role, false); err != nil {
		utils.Forbidden(c, "You can only reschedule your own appointments")
		return
	}
	if err := scheduling.EnsureMutable(appointment.Status); err != nil {
		failRule(c, err)
		return
	}

	date, err := scheduling.ParseDate(req.AppointmentDate)
	if err != nil {
		failRule(c, err)
		return
	}
	timeOfDay, err := scheduling.ParseTimeOfDay(req.AppointmentTime)
	if err != nil {
		failRule(c, err)
		return
	}
	if err := scheduling.EnsureFuture(date, timeOfDay, time.Now()); err != nil {
		failRule(c, err)
		return
	}

	taken, err := h.Appointments.SlotTaken(appointment.DoctorID, date, timeOfDay, appointment.ID)
	if err != nil {
		utils.ServerError(c, err)
		return
	}
	if taken {
		failRule(c, scheduling.ErrSlotTaken)
		return
	}

	oldDate := appointment.AppointmentDate.Format(scheduling.DateLayout)
	oldTime := appointment.AppointmentTime

	appointment.AppointmentDate = date
	appointment.AppointmentTime = timeOfDay
	if req.Reason != "" {
		appointment.Reason = req.Reason
	}
	appointment.Status = scheduling.ResetOnReschedule(appointment.Status)

	if err := h.Appointments.Update(appointment); err != nil {
		utils.ServerError(c, err)
		return
	}

	rescheduledBy := h.notifyReschedule(appointment, principal, oldDate, oldTime)

	log.Printf("Appointment %s rescheduled by %s: %s", appointment.ID, principal.Role, principal.Username)

	response := shapeAppointment(appointment)
	c.JSON(http.StatusOK, gin.H{
		"message":       "Appointment rescheduled successfully",
		"appointment":   response,
		"rescheduledBy": rescheduledBy,
	})
}

// notifyReschedule emails the patient about a slot change and, when the
// patient initiated it, the doctor too. Returns the initiator's display
// name.
func (h *AppointmentHandler) notifyReschedule(a *models.Appointment, principal middleware.Principal, oldDate, oldTime string) string {
	rescheduledBy := a.Doctor.FullName()
	if principal.UserID == a.PatientID {
		rescheduledBy = a.Patient.FullName()
	}

	newDate := a.AppointmentDate.Format(scheduling.DateLayout)

	if a.Patient.Email != "" {
		err := h.Mail.SendAppointmentRescheduled(a.Patient.Email, mailer.RescheduleEmail{
			PatientName:   a.Patient.FullName(),
			DoctorName:    a.Doctor.FullName(),
			OldDate:       oldDate,
			OldTime:       oldTime,
			NewDate:       newDate,
			NewTime:       a.AppointmentTime,
			RescheduledBy: rescheduledBy,
		})
		if err != nil {
			log.Printf("Failed to send rescheduled email: %v", err)
		}
	}
	if principal.UserID == a.PatientID && a.Doctor.Email != "" {
		err := h.Mail.SendAppointmentRescheduled(a.Doctor.Email, mailer.RescheduleEmail{
			PatientName:   a.Doctor.FullName(),
			DoctorName:    a.Patient.FullName(),
			OldDate:       oldDate,
			OldTime:       oldTime,
			NewDate:       newDate,
			NewTime:       a.AppointmentTime,
			RescheduledBy: rescheduledBy,
		})
		if err != nil {
			log.Printf("Failed to send rescheduled email to doctor: %v", err)
		}
	}

	return rescheduledBy
}
