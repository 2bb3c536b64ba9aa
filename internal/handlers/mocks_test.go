package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"time"

	"hospital-app-server/internal/mailer"
	"hospital-app-server/internal/middleware"
	"hospital-app-server/internal/models"
	"hospital-app-server/internal/repository"
	"hospital-app-server/internal/scheduling"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(user *models.User) error {
	return m.Called(user).Error(0)
}

func (m *MockUserRepository) FindByID(id string) (*models.User, error) {
	args := m.Called(id)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) FindByUsername(username string) (*models.User, error) {
	args := m.Called(username)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) FindByEmail(email string) (*models.User, error) {
	args := m.Called(email)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) FindByVerificationToken(token string) (*models.User, error) {
	args := m.Called(token)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) FindByResetToken(token string) (*models.User, error) {
	args := m.Called(token)
	if u := args.Get(0); u != nil {
		return u.(*models.User), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockUserRepository) Update(user *models.User) error {
	return m.Called(user).Error(0)
}

func (m *MockUserRepository) Delete(id string) error {
	return m.Called(id).Error(0)
}

func (m *MockUserRepository) LicenseNumberTaken(license, excludeUserID string) (bool, error) {
	args := m.Called(license, excludeUserID)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) List(filter repository.UserListFilter) ([]models.User, int64, error) {
	args := m.Called(filter)
	var users []models.User
	if v := args.Get(0); v != nil {
		users = v.([]models.User)
	}
	return users, args.Get(1).(int64), args.Error(2)
}

// MockAppointmentRepository is a mock implementation of
// repository.AppointmentRepository.
type MockAppointmentRepository struct {
	mock.Mock
}

func (m *MockAppointmentRepository) Create(a *models.Appointment) error {
	return m.Called(a).Error(0)
}

func (m *MockAppointmentRepository) FindByID(id string) (*models.Appointment, error) {
	args := m.Called(id)
	if a := args.Get(0); a != nil {
		return a.(*models.Appointment), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockAppointmentRepository) Update(a *models.Appointment) error {
	return m.Called(a).Error(0)
}

func (m *MockAppointmentRepository) SlotTaken(doctorID string, date time.Time, timeOfDay, excludeID string) (bool, error) {
	args := m.Called(doctorID, date, timeOfDay, excludeID)
	return args.Bool(0), args.Error(1)
}

func (m *MockAppointmentRepository) ListForPatient(patientID string) ([]models.Appointment, error) {
	args := m.Called(patientID)
	var appointments []models.Appointment
	if v := args.Get(0); v != nil {
		appointments = v.([]models.Appointment)
	}
	return appointments, args.Error(1)
}

func (m *MockAppointmentRepository) ListForDoctor(doctorID string, p scheduling.ListParams) ([]models.Appointment, int64, error) {
	args := m.Called(doctorID, p)
	var appointments []models.Appointment
	if v := args.Get(0); v != nil {
		appointments = v.([]models.Appointment)
	}
	return appointments, args.Get(1).(int64), args.Error(2)
}

func (m *MockAppointmentRepository) CancelActiveForUser(userID string) (int64, error) {
	args := m.Called(userID)
	return args.Get(0).(int64), args.Error(1)
}

// MockNotifier is a mock implementation of mailer.Notifier.
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) SendVerificationEmail(to, username, token string) error {
	return m.Called(to, username, token).Error(0)
}

func (m *MockNotifier) SendPasswordResetEmail(to, token string) error {
	return m.Called(to, token).Error(0)
}

func (m *MockNotifier) SendAppointmentConfirmation(to string, d mailer.AppointmentEmail) error {
	return m.Called(to, d).Error(0)
}

func (m *MockNotifier) SendAppointmentCancellation(to string, d mailer.CancellationEmail) error {
	return m.Called(to, d).Error(0)
}

func (m *MockNotifier) SendAppointmentRescheduled(to string, d mailer.RescheduleEmail) error {
	return m.Called(to, d).Error(0)
}

// newTestContext builds a gin context with an optional JSON body.
func newTestContext(method, target string, body interface{}) (*gin.Context, *httptest.ResponseRecorder) {
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)

	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	c.Request = httptest.NewRequest(method, target, &buf)
	c.Request.Header.Set("Content-Type", "application/json")
	return c, w
}

// signIn injects the authenticated principal the way AuthMiddleware does.
func signIn(c *gin.Context, user *models.User) {
	c.Set("principal", middleware.Principal{
		UserID:   user.ID,
		Username: user.Username,
		Role:     user.Role,
	})
}

func decodeBody(w *httptest.ResponseRecorder) map[string]interface{} {
	var body map[string]interface{}
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	return body
}

func testPatient() *models.User {
	u := &models.User{
		BaseModel: models.BaseModel{ID: "patient-1"},
		Username:  "jdoe",
		Email:     "jdoe@example.com",
		Role:      models.RolePatient,
		FirstName: "Jane",
		LastName:  "Doe",
	}
	_ = u.SetPassword("patient-pass")
	return u
}

func testDoctor() *models.User {
	u := &models.User{
		BaseModel:      models.BaseModel{ID: "doctor-1"},
		Username:       "drsmith",
		Email:          "drsmith@example.com",
		Role:           models.RoleDoctor,
		FirstName:      "Adam",
		LastName:       "Smith",
		Specialization: "Cardiology",
	}
	_ = u.SetPassword("doctor-pass")
	return u
}

func testAdmin() *models.User {
	u := &models.User{
		BaseModel: models.BaseModel{ID: "admin-1"},
		Username:  "admin",
		Email:     "admin@example.com",
		Role:      models.RoleAdmin,
	}
	_ = u.SetPassword("admin-pass")
	return u
}

// testAppointment builds a future appointment between testPatient and
// testDoctor.
func testAppointment(status models.AppointmentStatus) *models.Appointment {
	patient := testPatient()
	doctor := testDoctor()
	return &models.Appointment{
		BaseModel:       models.BaseModel{ID: "appt-1"},
		PatientID:       patient.ID,
		DoctorID:        doctor.ID,
		AppointmentDate: time.Now().AddDate(0, 0, 7),
		AppointmentTime: "10:00",
		Reason:          "Checkup",
		Status:          status,
		Patient:         *patient,
		Doctor:          *doctor,
	}
}
