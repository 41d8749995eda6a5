package handler

import (
	"time"

	"vetclinic-booking/internal/clinic"
	"vetclinic-booking/internal/model"
	"vetclinic-booking/internal/notify"
	"vetclinic-booking/internal/slots"
	"vetclinic-booking/internal/triage"
)

type Empty struct{}

type RegisterRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AuthResponse struct {
	Token     string     `json:"token"`
	ExpiresAt time.Time  `json:"expiresAt"`
	User      model.User `json:"user"`
}

type UserResponse struct {
	User model.User `json:"user"`
}

type SettingsResponse struct {
	Settings model.SiteSettings `json:"settings"`
}

type DepartmentsResponse struct {
	Departments []model.Department `json:"departments"`
}

type DoctorsResponse struct {
	Doctors []model.Doctor `json:"doctors"`
}

type DoctorResponse struct {
	Doctor model.Doctor `json:"doctor"`
}

type CalendarResponse struct {
	Days []slots.DateOption `json:"days"`
}

type AvailabilityRequest struct {
	Date string `json:"date"`
}

// AvailabilityResponse leaves out slots that have already passed.
type AvailabilityResponse struct {
	Date  string       `json:"date"`
	Full  bool         `json:"full"`
	Slots []slots.Slot `json:"slots"`
}

type BookRequest struct {
	Date         string `json:"date"`
	Time         string `json:"time"`
	PatientName  string `json:"patientName,omitempty"`
	PatientPhone string `json:"patientPhone,omitempty"`
	Symptoms     string `json:"symptoms,omitempty"`
}

type AppointmentResponse struct {
	Appointment model.Appointment `json:"appointment"`
}

type ListRequest struct {
	Date   string       `json:"date,omitempty"`
	Doctor string       `json:"doctor,omitempty"`
	Status model.Status `json:"status,omitempty"`
	Sort   string       `json:"sort,omitempty"` // asc | desc
}

type AppointmentsResponse struct {
	Appointments []model.Appointment `json:"appointments"`
}

type IDRequest struct {
	ID string `json:"id"`
}

type CancelRequest struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

type ReminderRequest struct {
	ID string `json:"id"`
	On bool   `json:"on"`
	// answer to the permission prompt, when the client showed one
	Permission notify.Permission `json:"permission,omitempty"`
}

type ReminderResponse struct {
	Appointment model.Appointment `json:"appointment"`
	Permission  notify.Permission `json:"permission"`
}

type NotificationsResponse struct {
	Notifications []model.Notification `json:"notifications"`
	Permission    notify.Permission    `json:"permission"`
}

type TriageRequest struct {
	Symptoms string `json:"symptoms"`
}

type TriageResponse struct {
	Recommendation triage.Recommendation `json:"recommendation"`
}

type UpdateAppointmentRequest struct {
	ID     string                  `json:"id"`
	Update model.AppointmentUpdate `json:"update"`
}

type UpdateDoctorRequest struct {
	ID     string             `json:"id"`
	Update model.DoctorUpdate `json:"update"`
}

type UpdateSettingsRequest struct {
	Update model.SettingsUpdate `json:"update"`
}

type DashboardResponse struct {
	Stats clinic.Stats `json:"stats"`
}

type UsersRequest struct {
	Search string `json:"search,omitempty"`
}

type UsersResponse struct {
	Users []model.User `json:"users"`
}

type UpdateUserRequest struct {
	ID     string           `json:"id"`
	Update model.UserUpdate `json:"update"`
}

type MedicalRecordRequest struct {
	UserID    string `json:"userId"`
	Diagnosis string `json:"diagnosis"`
	Treatment string `json:"treatment,omitempty"`
	Notes     string `json:"notes,omitempty"`
}

type MedicalRecordResponse struct {
	Record model.MedicalRecord `json:"record"`
}
