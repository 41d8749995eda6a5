package model

import "time"

type Status string

const (
	StatusBooked    Status = "booked"
	StatusCancelled Status = "cancelled"
	StatusCompleted Status = "completed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusBooked, StatusCancelled, StatusCompleted:
		return true
	}
	return false
}

type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

type Appointment struct {
	ID                 string    `json:"id" bson:"id"`
	UserID             string    `json:"userId,omitempty" bson:"userId,omitempty"`
	DepartmentID       string    `json:"departmentId" bson:"departmentId"`
	DepartmentName     string    `json:"departmentName" bson:"departmentName"`
	DoctorID           string    `json:"doctorId" bson:"doctorId"`
	DoctorName         string    `json:"doctorName" bson:"doctorName"`
	Date               string    `json:"date" bson:"date"`
	Time               string    `json:"time" bson:"time"`
	PatientName        string    `json:"patientName" bson:"patientName"`
	PatientPhone       string    `json:"patientPhone" bson:"patientPhone"`
	Symptoms           string    `json:"symptoms,omitempty" bson:"symptoms,omitempty"`
	Status             Status    `json:"status,omitempty" bson:"status,omitempty"`
	ReminderSet        bool      `json:"reminderSet,omitempty" bson:"reminderSet,omitempty"`
	CancellationReason string    `json:"cancellationReason,omitempty" bson:"cancellationReason,omitempty"`
	CreatedAt          time.Time `json:"createdAt,omitzero" bson:"createdAt,omitempty"`
}

// EffectiveStatus treats a missing status as booked.
func (a Appointment) EffectiveStatus() Status {
	if a.Status == "" {
		return StatusBooked
	}
	return a.Status
}

func (a Appointment) Active() bool {
	return a.EffectiveStatus() != StatusCancelled
}

type Department struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Icon        string `json:"icon,omitempty"`
}

type Doctor struct {
	ID             string   `json:"id"`
	DepartmentID   string   `json:"departmentId"`
	Name           string   `json:"name"`
	Specialty      string   `json:"specialty"`
	Image          string   `json:"image,omitempty"`
	AvailableSlots []string `json:"availableSlots,omitempty"`
}

type MedicalRecord struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Diagnosis string `json:"diagnosis"`
	Treatment string `json:"treatment"`
	Notes     string `json:"notes,omitempty"`
}

type User struct {
	ID             string          `json:"id"`
	Name           string          `json:"name"`
	Email          string          `json:"email"`
	Phone          string          `json:"phone"`
	PasswordHash   string          `json:"passwordHash"`
	Role           Role            `json:"role"`
	MedicalHistory []MedicalRecord `json:"medicalHistory,omitempty"`
	CreatedAt      time.Time       `json:"createdAt,omitzero"`
}

// Public strips the password hash before a user leaves the process.
func (u User) Public() User {
	u.PasswordHash = ""
	return u
}

type SiteSettings struct {
	AppName         string `json:"appName" bson:"appName"`
	WelcomeTitle    string `json:"welcomeTitle" bson:"welcomeTitle"`
	WelcomeSubtitle string `json:"welcomeSubtitle" bson:"welcomeSubtitle"`
	Description     string `json:"description" bson:"description"`
}

// UserData is the per-user blob kept in the remote store.
type UserData struct {
	Appointments []Appointment `json:"appointments" bson:"appointments"`
	Settings     *SiteSettings `json:"settings,omitempty" bson:"settings,omitempty"`
}

type UserDataRow struct {
	UserID    string
	Data      UserData
	UpdatedAt time.Time
}

type Session struct {
	ID        string    `json:"id"`
	UserID    string    `json:"userId"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

func (s *Session) IsAdmin() bool {
	return s != nil && s.Role == RoleAdmin
}

type Notification struct {
	ID            string    `json:"id"`
	UserID        string    `json:"userId"`
	AppointmentID string    `json:"appointmentId,omitempty"`
	Kind          string    `json:"kind"`
	Title         string    `json:"title"`
	Body          string    `json:"body"`
	CreatedAt     time.Time `json:"createdAt"`
}
