package clinic

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"vetclinic-booking/internal/events"
	"vetclinic-booking/internal/model"
	"vetclinic-booking/internal/notify"
	"vetclinic-booking/internal/slots"
)

const defaultCancelReason = "doctor schedule change"

type Filter struct {
	Date   string
	Doctor string
	Status model.Status
	Desc   bool
}

func (f Filter) match(ap model.Appointment) bool {
	if f.Date != "" && ap.Date != f.Date {
		return false
	}
	if f.Doctor != "" && !containsFold(ap.DoctorName, f.Doctor) {
		return false
	}
	if f.Status != "" && ap.EffectiveStatus() != f.Status {
		return false
	}
	return true
}

func (f Filter) apply(appts []model.Appointment) []model.Appointment {
	out := make([]model.Appointment, 0, len(appts))
	for _, ap := range appts {
		if f.match(ap) {
			out = append(out, ap)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		ki, kj := out[i].Date+" "+out[i].Time, out[j].Date+" "+out[j].Time
		if f.Desc {
			return ki > kj
		}
		return ki < kj
	})
	return out
}

func (f Filter) validate() error {
	if f.Status != "" && !f.Status.Valid() {
		return ErrBadStatus
	}
	if f.Date != "" && !validDate(f.Date) {
		return ErrBadDate
	}
	return nil
}

// MyAppointments lists the caller's own appointments.
func (a *App) MyAppointments(ctx context.Context, sess *model.Session, f Filter) ([]model.Appointment, error) {
	if sess == nil {
		return nil, ErrNoSession
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	var out []model.Appointment
	err := a.do(ctx, func(s *state) error {
		var mine []model.Appointment
		for _, ap := range s.appointments {
			if ap.UserID == sess.UserID {
				mine = append(mine, ap)
			}
		}
		out = f.apply(mine)
		return nil
	})
	return out, err
}

// Appointments lists every appointment.
func (a *App) Appointments(ctx context.Context, sess *model.Session, f Filter) ([]model.Appointment, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	if err := f.validate(); err != nil {
		return nil, err
	}
	var out []model.Appointment
	err := a.do(ctx, func(s *state) error {
		out = f.apply(s.appointments)
		return nil
	})
	return out, err
}

// update applies upd to one appointment. allow decides whether sess may touch it.
func (a *App) update(ctx context.Context, sess *model.Session, id string, upd model.AppointmentUpdate, allow func(model.Appointment) error) (model.Appointment, error) {
	if upd.Status != nil && !upd.Status.Valid() {
		return model.Appointment{}, ErrBadStatus
	}
	if upd.Date != nil && !validDate(*upd.Date) {
		return model.Appointment{}, ErrBadDate
	}
	if upd.PatientPhone != nil && !validPhone(*upd.PatientPhone) {
		return model.Appointment{}, ErrInvalidPhone
	}

	var before, after model.Appointment
	err := a.do(ctx, func(s *state) error {
		i, ok := findAppointment(s.appointments, id)
		if !ok {
			return ErrNotFound
		}
		before = s.appointments[i]
		if err := allow(before); err != nil {
			return err
		}
		after = before
		upd.Apply(&after)

		moves := upd.Moves(before)
		if moves && !slots.Contains(a.catalog(s), after.Time) {
			return ErrUnknownSlot
		}
		revives := before.EffectiveStatus() == model.StatusCancelled && after.EffectiveStatus() != model.StatusCancelled
		if after.EffectiveStatus() != model.StatusCancelled && (moves || revives) {
			others := append(s.appointments[:i:i], s.appointments[i+1:]...)
			if slots.IsTaken(after.Date, after.Time, others) {
				return ErrSlotTaken
			}
			if (revives || after.Date != before.Date) && slots.DayFull(after.Date, others, a.opts.DailyCap) {
				return ErrDayFull
			}
		}

		s.appointments[i] = after
		a.saveShared(s, sess)
		if sess.IsAdmin() && after.UserID != sess.UserID {
			patched := after
			a.queueRow(patched.UserID, func(ctx context.Context) {
				a.mirror.PatchOwner(ctx, patched)
			})
		}
		return nil
	})
	if err != nil {
		return model.Appointment{}, err
	}

	a.publish(ctx, changeKind(before, after), after, sess.UserID)
	return after, nil
}

func changeKind(before, after model.Appointment) events.Kind {
	if before.EffectiveStatus() != after.EffectiveStatus() {
		switch after.EffectiveStatus() {
		case model.StatusCancelled:
			return events.Cancelled
		case model.StatusCompleted:
			return events.Completed
		}
	}
	return events.Updated
}

func ownerOrAdmin(sess *model.Session) func(model.Appointment) error {
	return func(ap model.Appointment) error {
		if sess.IsAdmin() || ap.UserID == sess.UserID {
			return nil
		}
		return ErrNotFound
	}
}

func adminOnly(sess *model.Session) func(model.Appointment) error {
	return func(model.Appointment) error { return requireAdmin(sess) }
}

// CancelAppointment marks a booked appointment cancelled. Only the status and
// reason change.
func (a *App) CancelAppointment(ctx context.Context, sess *model.Session, id, reason string) (model.Appointment, error) {
	if sess == nil {
		return model.Appointment{}, ErrNoSession
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = defaultCancelReason
	}
	st := model.StatusCancelled
	allow := ownerOrAdmin(sess)
	return a.update(ctx, sess, id, model.AppointmentUpdate{Status: &st, CancellationReason: &reason},
		func(ap model.Appointment) error {
			if err := allow(ap); err != nil {
				return err
			}
			if ap.EffectiveStatus() != model.StatusBooked {
				return ErrNotCancellable
			}
			return nil
		})
}

func (a *App) CompleteAppointment(ctx context.Context, sess *model.Session, id string) (model.Appointment, error) {
	if err := requireAdmin(sess); err != nil {
		return model.Appointment{}, err
	}
	st := model.StatusCompleted
	return a.update(ctx, sess, id, model.AppointmentUpdate{Status: &st}, adminOnly(sess))
}

// UpdateAppointment applies an admin edit. Moving onto an occupied slot is refused.
func (a *App) UpdateAppointment(ctx context.Context, sess *model.Session, id string, upd model.AppointmentUpdate) (model.Appointment, error) {
	if err := requireAdmin(sess); err != nil {
		return model.Appointment{}, err
	}
	return a.update(ctx, sess, id, upd, adminOnly(sess))
}

// ToggleReminder sets or clears the owner's reminder flag. Turning it on needs
// notification permission; decision is the answer to the prompt, if one is shown.
func (a *App) ToggleReminder(ctx context.Context, sess *model.Session, id string, on bool, decision notify.Permission) (model.Appointment, error) {
	if sess == nil {
		return model.Appointment{}, ErrNoSession
	}
	switch decision {
	case "", notify.Default, notify.Granted, notify.Denied:
	default:
		return model.Appointment{}, ErrPermissionDecision
	}
	owner := func(ap model.Appointment) error {
		if ap.UserID != sess.UserID {
			return ErrNotFound
		}
		return nil
	}

	if on {
		err := a.do(ctx, func(s *state) error {
			i, ok := findAppointment(s.appointments, id)
			if !ok {
				return ErrNotFound
			}
			return owner(s.appointments[i])
		})
		if err != nil {
			return model.Appointment{}, err
		}
		if a.notify.Request(ctx, sess.UserID, decision) != notify.Granted {
			return model.Appointment{}, notify.ErrPermissionDenied
		}
	}

	apt, err := a.update(ctx, sess, id, model.AppointmentUpdate{ReminderSet: &on}, owner)
	if err != nil {
		return model.Appointment{}, err
	}
	if on {
		a.notify.Show(ctx, model.Notification{
			UserID:        sess.UserID,
			AppointmentID: apt.ID,
			Kind:          notify.KindReminderSet,
			Title:         "Reminder set",
			Body:          fmt.Sprintf("We will remind you the day before your visit on %s at %s.", apt.Date, apt.Time),
		})
	}
	return apt, nil
}

// DeleteAppointment purges an appointment locally and from its owner's row.
func (a *App) DeleteAppointment(ctx context.Context, sess *model.Session, id string) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	var apt model.Appointment
	err := a.do(ctx, func(s *state) error {
		i, ok := findAppointment(s.appointments, id)
		if !ok {
			return ErrNotFound
		}
		apt = s.appointments[i]
		s.appointments = append(s.appointments[:i:i], s.appointments[i+1:]...)
		s.purged[id] = true
		a.saveShared(s, sess)
		if apt.UserID != sess.UserID {
			gone := apt
			a.queueRow(gone.UserID, func(ctx context.Context) {
				a.mirror.DropFromOwner(ctx, gone)
			})
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.publish(ctx, events.Deleted, apt, sess.UserID)
	return nil
}

type Stats struct {
	TodayAppointments int `json:"todayAppointments"`
	TotalAppointments int `json:"totalAppointments"`
	TotalUsers        int `json:"totalUsers"`
}

func (a *App) Dashboard(ctx context.Context, sess *model.Session) (Stats, error) {
	if err := requireAdmin(sess); err != nil {
		return Stats{}, err
	}
	var st Stats
	err := a.do(ctx, func(s *state) error {
		today := a.now().Format(slots.DateLayout)
		st = Stats{
			TodayAppointments: slots.CountActive(today, s.appointments),
			TotalAppointments: len(s.appointments),
			TotalUsers:        len(s.users),
		}
		return nil
	})
	return st, err
}

// Notifications returns the caller's inbox, newest first.
func (a *App) Notifications(ctx context.Context, sess *model.Session) ([]model.Notification, error) {
	if sess == nil {
		return nil, ErrNoSession
	}
	return a.notify.Inbox(sess.UserID), nil
}

// Permission reports the caller's notification permission.
func (a *App) Permission(sess *model.Session) notify.Permission {
	if sess == nil {
		return notify.Default
	}
	return a.notify.Permission(sess.UserID)
}
