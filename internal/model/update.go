package model

// Update commands name exactly the fields an operation may change.
// A nil field is left as is.

type AppointmentUpdate struct {
	Status             *Status `json:"status,omitempty"`
	Date               *string `json:"date,omitempty"`
	Time               *string `json:"time,omitempty"`
	PatientName        *string `json:"patientName,omitempty"`
	PatientPhone       *string `json:"patientPhone,omitempty"`
	Symptoms           *string `json:"symptoms,omitempty"`
	ReminderSet        *bool   `json:"reminderSet,omitempty"`
	CancellationReason *string `json:"cancellationReason,omitempty"`
}

func (u AppointmentUpdate) Apply(a *Appointment) {
	if u.Status != nil {
		a.Status = *u.Status
	}
	if u.Date != nil {
		a.Date = *u.Date
	}
	if u.Time != nil {
		a.Time = *u.Time
	}
	if u.PatientName != nil {
		a.PatientName = *u.PatientName
	}
	if u.PatientPhone != nil {
		a.PatientPhone = *u.PatientPhone
	}
	if u.Symptoms != nil {
		a.Symptoms = *u.Symptoms
	}
	if u.ReminderSet != nil {
		a.ReminderSet = *u.ReminderSet
	}
	if u.CancellationReason != nil {
		a.CancellationReason = *u.CancellationReason
	}
}

// Moves reports whether the update changes the appointment's slot.
func (u AppointmentUpdate) Moves(a Appointment) bool {
	return (u.Date != nil && *u.Date != a.Date) || (u.Time != nil && *u.Time != a.Time)
}

type DoctorUpdate struct {
	Name           *string   `json:"name,omitempty"`
	Specialty      *string   `json:"specialty,omitempty"`
	Image          *string   `json:"image,omitempty"`
	AvailableSlots *[]string `json:"availableSlots,omitempty"`
}

func (u DoctorUpdate) Apply(d *Doctor) {
	if u.Name != nil {
		d.Name = *u.Name
	}
	if u.Specialty != nil {
		d.Specialty = *u.Specialty
	}
	if u.Image != nil {
		d.Image = *u.Image
	}
	if u.AvailableSlots != nil {
		d.AvailableSlots = append([]string(nil), (*u.AvailableSlots)...)
	}
}

type UserUpdate struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
	Phone *string `json:"phone,omitempty"`
	Role  *Role   `json:"role,omitempty"`
}

func (u UserUpdate) Apply(usr *User) {
	if u.Name != nil {
		usr.Name = *u.Name
	}
	if u.Email != nil {
		usr.Email = *u.Email
	}
	if u.Phone != nil {
		usr.Phone = *u.Phone
	}
	if u.Role != nil {
		usr.Role = *u.Role
	}
}

type SettingsUpdate struct {
	AppName         *string `json:"appName,omitempty"`
	WelcomeTitle    *string `json:"welcomeTitle,omitempty"`
	WelcomeSubtitle *string `json:"welcomeSubtitle,omitempty"`
	Description     *string `json:"description,omitempty"`
}

func (u SettingsUpdate) Apply(s *SiteSettings) {
	if u.AppName != nil {
		s.AppName = *u.AppName
	}
	if u.WelcomeTitle != nil {
		s.WelcomeTitle = *u.WelcomeTitle
	}
	if u.WelcomeSubtitle != nil {
		s.WelcomeSubtitle = *u.WelcomeSubtitle
	}
	if u.Description != nil {
		s.Description = *u.Description
	}
}
