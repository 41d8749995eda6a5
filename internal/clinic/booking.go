package clinic

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"vetclinic-booking/internal/events"
	"vetclinic-booking/internal/model"
	"vetclinic-booking/internal/slots"
)

type BookingInput struct {
	Date         string
	Time         string
	PatientName  string
	PatientPhone string
	Symptoms     string
}

// Calendar lists the bookable days with their full flags.
func (a *App) Calendar(ctx context.Context) ([]slots.DateOption, error) {
	var out []slots.DateOption
	err := a.do(ctx, func(s *state) error {
		out = slots.Window(a.now(), a.opts.WindowDays, s.appointments, a.opts.DailyCap)
		return nil
	})
	return out, err
}

// Availability classifies the provider's slots on date.
func (a *App) Availability(ctx context.Context, date string) (slots.Day, error) {
	if !validDate(date) {
		return slots.Day{}, ErrBadDate
	}
	var day slots.Day
	err := a.do(ctx, func(s *state) error {
		day = slots.Compute(date, a.now(), a.catalog(s), s.appointments, a.opts.DailyCap)
		return nil
	})
	return day, err
}

// catalog is the provider's own slot list when set, else the clinic-wide one.
func (a *App) catalog(s *state) []string {
	if i, ok := findDoctor(s.doctors, a.opts.DoctorID); ok && len(s.doctors[i].AvailableSlots) > 0 {
		return slots.Ordered(a.opts.TimeSlots, s.doctors[i].AvailableSlots)
	}
	return a.opts.TimeSlots
}

// Book inserts an appointment if the slot is still free. sess is nil for guests.
func (a *App) Book(ctx context.Context, sess *model.Session, in BookingInput) (model.Appointment, error) {
	if !validDate(in.Date) {
		return model.Appointment{}, ErrBadDate
	}
	in.PatientName = strings.TrimSpace(in.PatientName)
	in.Symptoms = strings.TrimSpace(in.Symptoms)
	if sess == nil {
		if in.PatientName == "" {
			return model.Appointment{}, ErrNameRequired
		}
		if !validPhone(in.PatientPhone) {
			return model.Appointment{}, ErrInvalidPhone
		}
	}

	var apt model.Appointment
	err := a.do(ctx, func(s *state) error {
		now := a.now()
		if !slots.InWindow(in.Date, now, a.opts.WindowDays) {
			return ErrDateOutOfRange
		}
		day := slots.Compute(in.Date, now, a.catalog(s), s.appointments, a.opts.DailyCap)
		if day.Full {
			return ErrDayFull
		}
		st, ok := day.State(in.Time)
		if !ok {
			return ErrUnknownSlot
		}
		switch st {
		case slots.Elapsed:
			return ErrSlotElapsed
		case slots.Taken:
			return ErrSlotTaken
		}

		di, ok := findDoctor(s.doctors, a.opts.DoctorID)
		if !ok {
			return ErrNoProvider
		}
		doc := s.doctors[di]
		apt = model.Appointment{
			ID:           uuid.New().String(),
			DepartmentID: doc.DepartmentID,
			DoctorID:     doc.ID,
			DoctorName:   doc.Name,
			Date:         in.Date,
			Time:         in.Time,
			PatientName:  in.PatientName,
			PatientPhone: in.PatientPhone,
			Symptoms:     in.Symptoms,
			Status:       model.StatusBooked,
			CreatedAt:    now,
		}
		if dep, ok := model.DepartmentByID(doc.DepartmentID); ok {
			apt.DepartmentName = dep.Name
		}
		if sess != nil {
			ui, ok := findUser(s.users, sess.UserID)
			if !ok {
				return ErrNoSession
			}
			u := s.users[ui]
			apt.UserID = u.ID
			apt.PatientName = u.Name
			apt.PatientPhone = u.Phone
		}
		s.appointments = append([]model.Appointment{apt}, s.appointments...)
		a.saveShared(s, sess)
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}
	a.publish(ctx, events.Booked, apt, apt.UserID)
	return apt, nil
}
