package clinic

import (
	"context"
	"strings"

	"github.com/google/uuid"

	"vetclinic-booking/internal/localcache"
	"vetclinic-booking/internal/model"
	"vetclinic-booking/internal/slots"
)

func (a *App) Departments() []model.Department {
	return append([]model.Department(nil), model.Departments...)
}

func (a *App) Doctors(ctx context.Context) ([]model.Doctor, error) {
	var out []model.Doctor
	err := a.do(ctx, func(s *state) error {
		out = append([]model.Doctor(nil), s.doctors...)
		return nil
	})
	return out, err
}

// UpdateDoctor edits a doctor. Slot lists are kept in catalog order.
func (a *App) UpdateDoctor(ctx context.Context, sess *model.Session, id string, upd model.DoctorUpdate) (model.Doctor, error) {
	if err := requireAdmin(sess); err != nil {
		return model.Doctor{}, err
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return model.Doctor{}, ErrNameRequired
	}
	if upd.AvailableSlots != nil {
		for _, t := range *upd.AvailableSlots {
			if !slots.Contains(a.opts.TimeSlots, t) {
				return model.Doctor{}, ErrUnknownSlot
			}
		}
		ordered := slots.Ordered(a.opts.TimeSlots, *upd.AvailableSlots)
		upd.AvailableSlots = &ordered
	}
	var doc model.Doctor
	err := a.do(ctx, func(s *state) error {
		i, ok := findDoctor(s.doctors, id)
		if !ok {
			return ErrNotFound
		}
		upd.Apply(&s.doctors[i])
		doc = s.doctors[i]
		a.store(ctx, localcache.KeyDoctors, s.doctors)
		return nil
	})
	return doc, err
}

func (a *App) Settings(ctx context.Context) (model.SiteSettings, error) {
	var out model.SiteSettings
	err := a.do(ctx, func(s *state) error {
		out = s.settings
		return nil
	})
	return out, err
}

func (a *App) UpdateSettings(ctx context.Context, sess *model.Session, upd model.SettingsUpdate) (model.SiteSettings, error) {
	if err := requireAdmin(sess); err != nil {
		return model.SiteSettings{}, err
	}
	var out model.SiteSettings
	err := a.do(ctx, func(s *state) error {
		upd.Apply(&s.settings)
		out = s.settings
		a.saveShared(s, sess)
		return nil
	})
	if err != nil {
		return model.SiteSettings{}, err
	}
	return out, nil
}

// Users lists members whose name, email or phone contains search.
func (a *App) Users(ctx context.Context, sess *model.Session, search string) ([]model.User, error) {
	if err := requireAdmin(sess); err != nil {
		return nil, err
	}
	search = strings.TrimSpace(search)
	var out []model.User
	err := a.do(ctx, func(s *state) error {
		for _, u := range s.users {
			if search == "" || containsFold(u.Name, search) || containsFold(u.Email, search) || strings.Contains(u.Phone, search) {
				out = append(out, u.Public())
			}
		}
		return nil
	})
	return out, err
}

func adminCount(users []model.User) int {
	n := 0
	for _, u := range users {
		if u.Role == model.RoleAdmin {
			n++
		}
	}
	return n
}

func (a *App) UpdateUser(ctx context.Context, sess *model.Session, id string, upd model.UserUpdate) (model.User, error) {
	if err := requireAdmin(sess); err != nil {
		return model.User{}, err
	}
	if upd.Name != nil && strings.TrimSpace(*upd.Name) == "" {
		return model.User{}, ErrNameRequired
	}
	if upd.Email != nil {
		e := strings.TrimSpace(*upd.Email)
		if !validEmail(e) {
			return model.User{}, ErrInvalidEmail
		}
		upd.Email = &e
	}
	if upd.Phone != nil && !validPhone(*upd.Phone) {
		return model.User{}, ErrInvalidPhone
	}
	if upd.Role != nil && *upd.Role != model.RoleUser && *upd.Role != model.RoleAdmin {
		return model.User{}, ErrBadRole
	}

	var out model.User
	err := a.do(ctx, func(s *state) error {
		i, ok := findUser(s.users, id)
		if !ok {
			return ErrNotFound
		}
		if upd.Email != nil && emailInUse(s.users, *upd.Email, id) {
			return ErrEmailTaken
		}
		u := s.users[i]
		if upd.Role != nil && u.Role == model.RoleAdmin && *upd.Role != model.RoleAdmin && adminCount(s.users) == 1 {
			return ErrLastAdmin
		}
		upd.Apply(&u)
		s.users[i] = u
		a.store(ctx, localcache.KeyUsers, s.users)

		if upd.Role != nil {
			changed := false
			for sid, ss := range s.sessions {
				if ss.UserID == id && ss.Role != u.Role {
					ss.Role = u.Role
					s.sessions[sid] = ss
					changed = true
				}
			}
			if changed {
				a.store(ctx, localcache.KeySessions, s.sessions)
			}
		}
		out = u.Public()
		return nil
	})
	return out, err
}

// DeleteUser removes a member, logs out their sessions and drops their remote row.
// Their appointments stay in the collection.
func (a *App) DeleteUser(ctx context.Context, sess *model.Session, id string) error {
	if err := requireAdmin(sess); err != nil {
		return err
	}
	err := a.do(ctx, func(s *state) error {
		i, ok := findUser(s.users, id)
		if !ok {
			return ErrNotFound
		}
		if s.users[i].Role == model.RoleAdmin && adminCount(s.users) == 1 {
			return ErrLastAdmin
		}
		s.users = append(s.users[:i:i], s.users[i+1:]...)
		a.store(ctx, localcache.KeyUsers, s.users)
		for sid, ss := range s.sessions {
			if ss.UserID == id {
				a.dropSession(ctx, s, sid)
			}
		}
		a.queueRow(id, func(ctx context.Context) {
			a.mirror.Forget(ctx, id)
		})
		return nil
	})
	if err != nil {
		return err
	}
	a.notify.Forget(ctx, id)
	return nil
}

type RecordInput struct {
	Diagnosis string
	Treatment string
	Notes     string
}

// AddMedicalRecord prepends a record dated today to a member's history.
func (a *App) AddMedicalRecord(ctx context.Context, sess *model.Session, userID string, in RecordInput) (model.MedicalRecord, error) {
	if err := requireAdmin(sess); err != nil {
		return model.MedicalRecord{}, err
	}
	if strings.TrimSpace(in.Diagnosis) == "" {
		return model.MedicalRecord{}, ErrDiagnosisRequired
	}
	var rec model.MedicalRecord
	err := a.do(ctx, func(s *state) error {
		i, ok := findUser(s.users, userID)
		if !ok {
			return ErrNotFound
		}
		rec = model.MedicalRecord{
			ID:        uuid.New().String(),
			Date:      a.now().Format(slots.DateLayout),
			Diagnosis: strings.TrimSpace(in.Diagnosis),
			Treatment: strings.TrimSpace(in.Treatment),
			Notes:     strings.TrimSpace(in.Notes),
		}
		s.users[i].MedicalHistory = append([]model.MedicalRecord{rec}, s.users[i].MedicalHistory...)
		a.store(ctx, localcache.KeyUsers, s.users)
		return nil
	})
	return rec, err
}
