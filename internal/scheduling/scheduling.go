// Package scheduling holds the appointment lifecycle rules: slot parsing and
// future checks, status-transition and authorization rules, and the filter
// parameters accepted by the doctor listing. Handlers translate the typed
// errors into HTTP responses.
package scheduling

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"hospital-app-server/internal/models"
)

const (
	// DateLayout is the wire format for appointment dates.
	DateLayout = "2006-01-02"
	// TimeLayout is the wire format for appointment times of day.
	TimeLayout = "15:04"
)

var (
	// ErrPastSlot is returned when a requested slot is not strictly in the future.
	ErrPastSlot = errors.New("appointment date and time must be in the future")
	// ErrSlotTaken is returned when the (doctor, date, time) slot already has a
	// pending or confirmed appointment.
	ErrSlotTaken = errors.New("this time slot is already booked, please choose another time")
	// ErrInvalidDate is returned for an unparseable appointment date.
	ErrInvalidDate = errors.New("invalid appointment date format")
	// ErrInvalidTime is returned for an unparseable appointment time.
	ErrInvalidTime = errors.New("invalid appointment time")
	// ErrInvalidStatus is returned for a status outside the accepted set.
	ErrInvalidStatus = errors.New("valid status is required (pending, confirmed, cancelled, completed)")
	// ErrNotParticipant is returned when the caller is neither the assigned
	// patient nor the assigned doctor (nor an admin, where admin is allowed).
	ErrNotParticipant = errors.New("you can only act on your own appointments")
	// ErrDoctorOnlyTransition is returned when a non-doctor, non-admin caller
	// tries to confirm or complete an appointment.
	ErrDoctorOnlyTransition = errors.New("only doctors can confirm or complete appointments")
	// ErrCancelledLocked is returned for any mutation of a cancelled appointment.
	ErrCancelledLocked = errors.New("cannot update a cancelled appointment")
	// ErrCompletedLocked is returned for any mutation of a completed appointment.
	ErrCompletedLocked = errors.New("cannot update a completed appointment")
)

// ParseDate parses a wire-format appointment date.
func ParseDate(s string) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, s, time.Local)
	if err != nil {
		return time.Time{}, ErrInvalidDate
	}
	return d, nil
}

// ParseTimeOfDay validates and normalizes an "HH:MM" time of day.
func ParseTimeOfDay(s string) (string, error) {
	s = strings.TrimSpace(s)
	t, err := time.Parse(TimeLayout, s)
	if err != nil {
		return "", ErrInvalidTime
	}
	return t.Format(TimeLayout), nil
}

// SlotTime combines a calendar date and an "HH:MM" time of day into a single
// instant in the server's location.
func SlotTime(date time.Time, timeOfDay string) (time.Time, error) {
	t, err := time.Parse(TimeLayout, timeOfDay)
	if err != nil {
		return time.Time{}, ErrInvalidTime
	}
	return time.Date(date.Year(), date.Month(), date.Day(),
		t.Hour(), t.Minute(), 0, 0, time.Local), nil
}

// EnsureFuture verifies the slot is strictly after now.
func EnsureFuture(date time.Time, timeOfDay string, now time.Time) error {
	slot, err := SlotTime(date, timeOfDay)
	if err != nil {
		return err
	}
	if !slot.After(now) {
		return ErrPastSlot
	}
	return nil
}

// AuthorizeChange checks that the caller may touch the appointment at all.
// Status and field updates grant admins override authority; cancel and
// reschedule do not (allowAdmin=false), matching the observed asymmetry.
func AuthorizeChange(a *models.Appointment, userID string, role models.Role, allowAdmin bool) error {
	if userID == a.PatientID || userID == a.DoctorID {
		return nil
	}
	if allowAdmin && role == models.RoleAdmin {
		return nil
	}
	return ErrNotParticipant
}

// EnsureMutable rejects any change to an appointment already in a terminal
// state.
func EnsureMutable(current models.AppointmentStatus) error {
	switch current {
	case models.StatusCancelled:
		return ErrCancelledLocked
	case models.StatusCompleted:
		return ErrCompletedLocked
	}
	return nil
}

// ValidateTransition applies the status-transition rules for a direct status
// change. Re-stating the current terminal status is the one permitted no-op.
func ValidateTransition(current, next models.AppointmentStatus, role models.Role) error {
	if !models.IsValidStatus(next) {
		return ErrInvalidStatus
	}
	if (next == models.StatusConfirmed || next == models.StatusCompleted) &&
		role != models.RoleDoctor && role != models.RoleAdmin {
		return ErrDoctorOnlyTransition
	}
	if current == models.StatusCancelled && next != models.StatusCancelled {
		return ErrCancelledLocked
	}
	if current == models.StatusCompleted && next != models.StatusCompleted {
		return ErrCompletedLocked
	}
	return nil
}

// ResetOnReschedule yields the status an appointment holds after its slot
// changes: a confirmed booking drops back to pending for re-confirmation.
func ResetOnReschedule(current models.AppointmentStatus) models.AppointmentStatus {
	if current == models.StatusConfirmed {
		return models.StatusPending
	}
	return current
}

// ListParams are the normalized filter, sort and pagination parameters for
// the doctor appointment listing.
type ListParams struct {
	Status    models.AppointmentStatus // empty = all
	FromDate  *time.Time
	ToDate    *time.Time // end-of-day ceiling already applied
	Search    string
	Page      int
	Limit     int
	SortBy    string // API field name from sortFields
	SortOrder string // "asc" or "desc"
}

var sortFields = map[string]bool{
	"appointmentDate": true,
	"appointmentTime": true,
	"status":          true,
	"createdAt":       true,
	"updatedAt":       true,
}

// NormalizeListParams validates raw query values into ListParams. Unknown
// status and sort values fall back to defaults rather than erroring, and the
// toDate bound is pushed to the end of its day so the range is inclusive.
func NormalizeListParams(status, fromDate, toDate, search, page, limit, sortBy, sortOrder string) ListParams {
	p := ListParams{
		Search:    strings.TrimSpace(search),
		Page:      1,
		Limit:     10,
		SortBy:    "appointmentDate",
		SortOrder: "asc",
	}

	if models.IsValidStatus(models.AppointmentStatus(status)) {
		p.Status = models.AppointmentStatus(status)
	}

	if fromDate != "" {
		if d, err := ParseDate(fromDate); err == nil {
			p.FromDate = &d
		}
	}
	if toDate != "" {
		if d, err := ParseDate(toDate); err == nil {
			end := time.Date(d.Year(), d.Month(), d.Day(), 23, 59, 59, int(999*time.Millisecond), d.Location())
			p.ToDate = &end
		}
	}

	if n, err := parsePositive(page); err == nil {
		p.Page = n
	}
	if n, err := parsePositive(limit); err == nil {
		p.Limit = n
	}

	if sortFields[sortBy] {
		p.SortBy = sortBy
	}
	if sortOrder == "desc" {
		p.SortOrder = "desc"
	}

	return p
}

func parsePositive(s string) (int, error) {
	var n int
	if _, err := fmt.Sscanf(s, "%d", &n); err != nil {
		return 0, err
	}
	if n < 1 {
		return 0, fmt.Errorf("not positive: %d", n)
	}
	return n, nil
}
