package handlers

import (
	"net/http"
	"testing"
	"time"

	"hospital-app-server/internal/models"
	"hospital-app-server/internal/scheduling"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"gorm.io/gorm"
)

func newAppointmentHandler() (*AppointmentHandler, *MockUserRepository, *MockAppointmentRepository, *MockNotifier) {
	users := new(MockUserRepository)
	appointments := new(MockAppointmentRepository)
	mail := new(MockNotifier)
	return NewAppointmentHandler(users, appointments, mail), users, appointments, mail
}

func futureDate() string {
	return time.Now().AddDate(0, 0, 7).Format(scheduling.DateLayout)
}

func TestBookAppointment(t *testing.T) {
	patient := testPatient()
	doctor := testDoctor()

	t.Run("books a pending appointment and notifies the patient", func(t *testing.T) {
		h, users, appointments, mail := newAppointmentHandler()
		users.On("FindByID", doctor.ID).Return(doctor, nil)
		users.On("FindByID", patient.ID).Return(patient, nil)
		appointments.On("SlotTaken", doctor.ID, mock.AnythingOfType("time.Time"), "10:00", "").Return(false, nil)
		appointments.On("Create", mock.AnythingOfType("*models.Appointment")).Return(nil)
		mail.On("SendAppointmentConfirmation", patient.Email, mock.Anything).Return(nil)

		c, w := newTestContext(http.MethodPost, "/api/appointments/book", gin.H{
			"doctorId":        doctor.ID,
			"appointmentDate": futureDate(),
			"appointmentTime": "10:00",
			"reason":          "Checkup",
		})
		signIn(c, patient)
		h.BookAppointment(c)

		assert.Equal(t, http.StatusCreated, w.Code)
		body := decodeBody(w)
		assert.Equal(t, "Appointment booked successfully", body["message"])
		appointment := body["appointment"].(map[string]interface{})
		assert.Equal(t, string(models.StatusPending), appointment["status"])
		mail.AssertNumberOfCalls(t, "SendAppointmentConfirmation", 1)
	})

	t.Run("rejects a taken slot", func(t *testing.T) {
		h, users, appointments, mail := newAppointmentHandler()
		users.On("FindByID", doctor.ID).Return(doctor, nil)
		users.On("FindByID", patient.ID).Return(patient, nil)
		appointments.On("SlotTaken", doctor.ID, mock.AnythingOfType("time.Time"), "10:00", "").Return(true, nil)

		c, w := newTestContext(http.MethodPost, "/api/appointments/book", gin.H{
			"doctorId":        doctor.ID,
			"appointmentDate": futureDate(),
			"appointmentTime": "10:00",
		})
		signIn(c, patient)
		h.BookAppointment(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		appointments.AssertNotCalled(t, "Create", mock.Anything)
		mail.AssertNotCalled(t, "SendAppointmentConfirmation", mock.Anything, mock.Anything)
	})

	t.Run("rejects a slot in the past", func(t *testing.T) {
		h, users, appointments, _ := newAppointmentHandler()
		users.On("FindByID", doctor.ID).Return(doctor, nil)
		users.On("FindByID", patient.ID).Return(patient, nil)

		c, w := newTestContext(http.MethodPost, "/api/appointments/book", gin.H{
			"doctorId":        doctor.ID,
			"appointmentDate": time.Now().AddDate(0, 0, -1).Format(scheduling.DateLayout),
			"appointmentTime": "10:00",
		})
		signIn(c, patient)
		h.BookAppointment(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		appointments.AssertNotCalled(t, "SlotTaken", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects an unknown doctor", func(t *testing.T) {
		h, users, _, _ := newAppointmentHandler()
		users.On("FindByID", "nobody").Return(nil, gorm.ErrRecordNotFound)

		c, w := newTestContext(http.MethodPost, "/api/appointments/book", gin.H{
			"doctorId":        "nobody",
			"appointmentDate": futureDate(),
			"appointmentTime": "10:00",
		})
		signIn(c, patient)
		h.BookAppointment(c)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Equal(t, "Doctor not found", decodeBody(w)["message"])
	})

	t.Run("rejects booking a non-doctor", func(t *testing.T) {
		h, users, _, _ := newAppointmentHandler()
		users.On("FindByID", patient.ID).Return(patient, nil)

		c, w := newTestContext(http.MethodPost, "/api/appointments/book", gin.H{
			"doctorId":        patient.ID,
			"appointmentDate": futureDate(),
			"appointmentTime": "10:00",
		})
		signIn(c, patient)
		h.BookAppointment(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "The selected user is not a doctor", decodeBody(w)["message"])
	})

	t.Run("only patients may book", func(t *testing.T) {
		h, users, _, _ := newAppointmentHandler()
		users.On("FindByID", doctor.ID).Return(doctor, nil)

		c, w := newTestContext(http.MethodPost, "/api/appointments/book", gin.H{
			"doctorId":        doctor.ID,
			"appointmentDate": futureDate(),
			"appointmentTime": "10:00",
		})
		signIn(c, doctor)
		h.BookAppointment(c)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestGetMyAppointments(t *testing.T) {
	patient := testPatient()

	h, _, appointments, _ := newAppointmentHandler()
	appointments.On("ListForPatient", patient.ID).
		Return([]models.Appointment{*testAppointment(models.StatusPending), *testAppointment(models.StatusConfirmed)}, nil)

	c, w := newTestContext(http.MethodGet, "/api/appointments/my-appointments", nil)
	signIn(c, patient)
	h.GetMyAppointments(c)

	assert.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(w)
	assert.Len(t, body["appointments"], 2)
}

func TestGetDoctorAppointments(t *testing.T) {
	doctor := testDoctor()

	t.Run("returns a filtered page with pagination metadata", func(t *testing.T) {
		h, users, appointments, _ := newAppointmentHandler()
		users.On("FindByID", doctor.ID).Return(doctor, nil)
		appointments.On("ListForDoctor", doctor.ID, mock.MatchedBy(func(p scheduling.ListParams) bool {
			return p.Status == models.StatusPending && p.Page == 2 && p.Limit == 5
		})).Return([]models.Appointment{*testAppointment(models.StatusPending)}, int64(11), nil)

		c, w := newTestContext(http.MethodGet,
			"/api/appointments/doctor-appointments?status=pending&page=2&limit=5", nil)
		signIn(c, doctor)
		h.GetDoctorAppointments(c)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(w)
		pagination := body["pagination"].(map[string]interface{})
		assert.Equal(t, float64(2), pagination["currentPage"])
		assert.Equal(t, float64(3), pagination["totalPages"])
		assert.Equal(t, float64(11), pagination["totalAppointments"])
		assert.Equal(t, true, pagination["hasNextPage"])
		assert.Equal(t, true, pagination["hasPrevPage"])
	})

	t.Run("rejects non-doctors", func(t *testing.T) {
		patient := testPatient()
		h, users, _, _ := newAppointmentHandler()
		users.On("FindByID", patient.ID).Return(patient, nil)

		c, w := newTestContext(http.MethodGet, "/api/appointments/doctor-appointments", nil)
		signIn(c, patient)
		h.GetDoctorAppointments(c)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})
}

func TestUpdateAppointmentStatus(t *testing.T) {
	doctor := testDoctor()
	patient := testPatient()
	admin := testAdmin()

	t.Run("doctor confirms a pending appointment", func(t *testing.T) {
		h, _, appointments, mail := newAppointmentHandler()
		appt := testAppointment(models.StatusPending)
		appointments.On("FindByID", "appt-1").Return(appt, nil)
		appointments.On("Update", appt).Return(nil)
		mail.On("SendAppointmentConfirmation", appt.Patient.Email, mock.Anything).Return(nil)

		c, w := newTestContext(http.MethodPatch, "/api/appointments/appt-1/status", gin.H{"status": "confirmed"})
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, doctor)
		h.UpdateAppointmentStatus(c)

		assert.Equal(t, http.StatusOK, w.Code)
		body := decodeBody(w)
		result := body["appointment"].(map[string]interface{})
		assert.Equal(t, "confirmed", result["status"])
		assert.Equal(t, "pending", result["previousStatus"])
		mail.AssertNumberOfCalls(t, "SendAppointmentConfirmation", 1)
	})

	t.Run("patient cannot confirm", func(t *testing.T) {
		h, _, appointments, _ := newAppointmentHandler()
		appointments.On("FindByID", "appt-1").Return(testAppointment(models.StatusPending), nil)

		c, w := newTestContext(http.MethodPatch, "/api/appointments/appt-1/status", gin.H{"status": "confirmed"})
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, patient)
		h.UpdateAppointmentStatus(c)

		assert.Equal(t, http.StatusForbidden, w.Code)
		appointments.AssertNotCalled(t, "Update", mock.Anything)
	})

	t.Run("admin override is allowed for status updates", func(t *testing.T) {
		h, _, appointments, mail := newAppointmentHandler()
		appt := testAppointment(models.StatusPending)
		appointments.On("FindByID", "appt-1").Return(appt, nil)
		appointments.On("Update", appt).Return(nil)
		mail.On("SendAppointmentConfirmation", appt.Patient.Email, mock.Anything).Return(nil)

		c, w := newTestContext(http.MethodPatch, "/api/appointments/appt-1/status", gin.H{"status": "confirmed"})
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, admin)
		h.UpdateAppointmentStatus(c)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("strangers are rejected", func(t *testing.T) {
		h, _, appointments, _ := newAppointmentHandler()
		appointments.On("FindByID", "appt-1").Return(testAppointment(models.StatusPending), nil)

		stranger := testPatient()
		stranger.ID = "patient-2"
		c, w := newTestContext(http.MethodPatch, "/api/appointments/appt-1/status", gin.H{"status": "cancelled"})
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, stranger)
		h.UpdateAppointmentStatus(c)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "You can only update your own appointments", decodeBody(w)["message"])
	})

	t.Run("a cancelled appointment stays cancelled", func(t *testing.T) {
		h, _, appointments, _ := newAppointmentHandler()
		appointments.On("FindByID", "appt-1").Return(testAppointment(models.StatusCancelled), nil)

		c, w := newTestContext(http.MethodPatch, "/api/appointments/appt-1/status", gin.H{"status": "confirmed"})
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, doctor)
		h.UpdateAppointmentStatus(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		appointments.AssertNotCalled(t, "Update", mock.Anything)
	})

	t.Run("re-stating the terminal status is a no-op", func(t *testing.T) {
		h, _, appointments, _ := newAppointmentHandler()
		appt := testAppointment(models.StatusCompleted)
		appointments.On("FindByID", "appt-1").Return(appt, nil)
		appointments.On("Update", appt).Return(nil)

		c, w := newTestContext(http.MethodPatch, "/api/appointments/appt-1/status", gin.H{"status": "completed"})
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, doctor)
		h.UpdateAppointmentStatus(c)

		assert.Equal(t, http.StatusOK, w.Code)
	})
}

func TestCancelAppointment(t *testing.T) {
	patient := testPatient()
	doctor := testDoctor()
	admin := testAdmin()

	t.Run("patient cancels and both parties are notified", func(t *testing.T) {
		h, _, appointments, mail := newAppointmentHandler()
		appt := testAppointment(models.StatusConfirmed)
		appointments.On("FindByID", "appt-1").Return(appt, nil)
		appointments.On("Update", appt).Return(nil)
		mail.On("SendAppointmentCancellation", appt.Patient.Email, mock.Anything).Return(nil)
		mail.On("SendAppointmentCancellation", appt.Doctor.Email, mock.Anything).Return(nil)

		c, w := newTestContext(http.MethodPost, "/api/appointments/appt-1/cancel", nil)
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, patient)
		h.CancelAppointment(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.StatusCancelled, appt.Status)
		body := decodeBody(w)
		result := body["appointment"].(map[string]interface{})
		assert.Equal(t, "Jane Doe", result["cancelledBy"])
		mail.AssertNumberOfCalls(t, "SendAppointmentCancellation", 2)
	})

	t.Run("doctor cancels and only the patient is notified", func(t *testing.T) {
		h, _, appointments, mail := newAppointmentHandler()
		appt := testAppointment(models.StatusPending)
		appointments.On("FindByID", "appt-1").Return(appt, nil)
		appointments.On("Update", appt).Return(nil)
		mail.On("SendAppointmentCancellation", appt.Patient.Email, mock.Anything).Return(nil)

		c, w := newTestContext(http.MethodPost, "/api/appointments/appt-1/cancel", nil)
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, doctor)
		h.CancelAppointment(c)

		assert.Equal(t, http.StatusOK, w.Code)
		mail.AssertNumberOfCalls(t, "SendAppointmentCancellation", 1)
	})

	t.Run("accepts the appointment id in the body", func(t *testing.T) {
		h, _, appointments, mail := newAppointmentHandler()
		appt := testAppointment(models.StatusPending)
		appointments.On("FindByID", "appt-1").Return(appt, nil)
		appointments.On("Update", appt).Return(nil)
		mail.On("SendAppointmentCancellation", mock.Anything, mock.Anything).Return(nil)

		c, w := newTestContext(http.MethodPost, "/api/appointments/cancel", gin.H{"appointmentId": "appt-1"})
		signIn(c, patient)
		h.CancelAppointment(c)

		assert.Equal(t, http.StatusOK, w.Code)
	})

	t.Run("requires an appointment id", func(t *testing.T) {
		h, _, _, _ := newAppointmentHandler()

		c, w := newTestContext(http.MethodPost, "/api/appointments/cancel", gin.H{})
		signIn(c, patient)
		h.CancelAppointment(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("admins get no cancel override", func(t *testing.T) {
		h, _, appointments, _ := newAppointmentHandler()
		appointments.On("FindByID", "appt-1").Return(testAppointment(models.StatusPending), nil)

		c, w := newTestContext(http.MethodPost, "/api/appointments/appt-1/cancel", nil)
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, admin)
		h.CancelAppointment(c)

		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "You can only cancel your own appointments", decodeBody(w)["message"])
	})

	t.Run("rejects cancelling twice", func(t *testing.T) {
		h, _, appointments, _ := newAppointmentHandler()
		appointments.On("FindByID", "appt-1").Return(testAppointment(models.StatusCancelled), nil)

		c, w := newTestContext(http.MethodPost, "/api/appointments/appt-1/cancel", nil)
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, patient)
		h.CancelAppointment(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Appointment is already cancelled", decodeBody(w)["message"])
	})

	t.Run("rejects cancelling a completed appointment", func(t *testing.T) {
		h, _, appointments, _ := newAppointmentHandler()
		appointments.On("FindByID", "appt-1").Return(testAppointment(models.StatusCompleted), nil)

		c, w := newTestContext(http.MethodPost, "/api/appointments/appt-1/cancel", nil)
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, patient)
		h.CancelAppointment(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "Cannot cancel a completed appointment", decodeBody(w)["message"])
	})
}

func TestRescheduleAppointment(t *testing.T) {
	patient := testPatient()
	doctor := testDoctor()
	admin := testAdmin()

	newSlot := gin.H{
		"appointmentDate": time.Now().AddDate(0, 0, 14).Format(scheduling.DateLayout),
		"appointmentTime": "14:30",
	}

	t.Run("confirmed appointment drops back to pending", func(t *testing.T) {
		h, _, appointments, mail := newAppointmentHandler()
		appt := testAppointment(models.StatusConfirmed)
		appointments.On("FindByID", "appt-1").Return(appt, nil)
		appointments.On("SlotTaken", appt.DoctorID, mock.AnythingOfType("time.Time"), "14:30", appt.ID).Return(false, nil)
		appointments.On("Update", appt).Return(nil)
		mail.On("SendAppointmentRescheduled", appt.Patient.Email, mock.Anything).Return(nil)
		mail.On("SendAppointmentRescheduled", appt.Doctor.Email, mock.Anything).Return(nil)

		c, w := newTestContext(http.MethodPut, "/api/appointments/appt-1/reschedule", newSlot)
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, patient)
		h.RescheduleAppointment(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.StatusPending, appt.Status)
		assert.Equal(t, "14:30", appt.AppointmentTime)
		// Patient initiated, so the doctor hears about it too.
		mail.AssertNumberOfCalls(t, "SendAppointmentRescheduled", 2)
	})

	t.Run("doctor reschedule notifies only the patient", func(t *testing.T) {
		h, _, appointments, mail := newAppointmentHandler()
		appt := testAppointment(models.StatusPending)
		appointments.On("FindByID", "appt-1").Return(appt, nil)
		appointments.On("SlotTaken", appt.DoctorID, mock.AnythingOfType("time.Time"), "14:30", appt.ID).Return(false, nil)
		appointments.On("Update", appt).Return(nil)
		mail.On("SendAppointmentRescheduled", appt.Patient.Email, mock.Anything).Return(nil)

		c, w := newTestContext(http.MethodPut, "/api/appointments/appt-1/reschedule", newSlot)
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, doctor)
		h.RescheduleAppointment(c)

		assert.Equal(t, http.StatusOK, w.Code)
		mail.AssertNumberOfCalls(t, "SendAppointmentRescheduled", 1)
	})

	t.Run("admins get no reschedule override", func(t *testing.T) {
		h, _, appointments, _ := newAppointmentHandler()
		appointments.On("FindByID", "appt-1").Return(testAppointment(models.StatusPending), nil)

		c, w := newTestContext(http.MethodPut, "/api/appointments/appt-1/reschedule", newSlot)
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, admin)
		h.RescheduleAppointment(c)

		assert.Equal(t, http.StatusForbidden, w.Code)
	})

	t.Run("rejects moving to a taken slot", func(t *testing.T) {
		h, _, appointments, _ := newAppointmentHandler()
		appt := testAppointment(models.StatusPending)
		appointments.On("FindByID", "appt-1").Return(appt, nil)
		appointments.On("SlotTaken", appt.DoctorID, mock.AnythingOfType("time.Time"), "14:30", appt.ID).Return(true, nil)

		c, w := newTestContext(http.MethodPut, "/api/appointments/appt-1/reschedule", newSlot)
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, patient)
		h.RescheduleAppointment(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		appointments.AssertNotCalled(t, "Update", mock.Anything)
	})

	t.Run("rejects rescheduling a completed appointment", func(t *testing.T) {
		h, _, appointments, _ := newAppointmentHandler()
		appointments.On("FindByID", "appt-1").Return(testAppointment(models.StatusCompleted), nil)

		c, w := newTestContext(http.MethodPut, "/api/appointments/appt-1/reschedule", newSlot)
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, patient)
		h.RescheduleAppointment(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestUpdateAppointment(t *testing.T) {
	patient := testPatient()
	doctor := testDoctor()

	t.Run("moving the slot resets a confirmed appointment to pending", func(t *testing.T) {
		h, _, appointments, mail := newAppointmentHandler()
		appt := testAppointment(models.StatusConfirmed)
		appointments.On("FindByID", "appt-1").Return(appt, nil)
		appointments.On("SlotTaken", appt.DoctorID, mock.AnythingOfType("time.Time"), "16:00", appt.ID).Return(false, nil)
		appointments.On("Update", appt).Return(nil)
		mail.On("SendAppointmentRescheduled", mock.Anything, mock.Anything).Return(nil)

		c, w := newTestContext(http.MethodPut, "/api/appointments/appt-1", gin.H{
			"appointmentDate": time.Now().AddDate(0, 0, 21).Format(scheduling.DateLayout),
			"appointmentTime": "16:00",
		})
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, patient)
		h.UpdateAppointment(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.StatusPending, appt.Status)
	})

	t.Run("notes-only update keeps the status", func(t *testing.T) {
		h, _, appointments, mail := newAppointmentHandler()
		appt := testAppointment(models.StatusConfirmed)
		appointments.On("FindByID", "appt-1").Return(appt, nil)
		appointments.On("Update", appt).Return(nil)

		c, w := newTestContext(http.MethodPut, "/api/appointments/appt-1", gin.H{"notes": "bring previous results"})
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, doctor)
		h.UpdateAppointment(c)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, models.StatusConfirmed, appt.Status)
		assert.Equal(t, "bring previous results", appt.Notes)
		mail.AssertNotCalled(t, "SendAppointmentRescheduled", mock.Anything, mock.Anything)
	})

	t.Run("terminal appointments cannot be edited", func(t *testing.T) {
		h, _, appointments, _ := newAppointmentHandler()
		appointments.On("FindByID", "appt-1").Return(testAppointment(models.StatusCancelled), nil)

		c, w := newTestContext(http.MethodPut, "/api/appointments/appt-1", gin.H{"notes": "too late"})
		c.Params = gin.Params{{Key: "id", Value: "appt-1"}}
		signIn(c, patient)
		h.UpdateAppointment(c)

		assert.Equal(t, http.StatusBadRequest, w.Code)
		appointments.AssertNotCalled(t, "Update", mock.Anything)
	})
}
