// Package mirror decides what is pulled from and pushed to the remote store
// for a session, and how remote rows are folded into the local collection.
package mirror

import (
	"context"
	"log"
	"time"

	"vetclinic-booking/internal/model"
)

// Remote is the per-user blob store. Load returns nil, nil for a missing row.
// Subscribe blocks until ctx is done; an empty userID follows every row.
type Remote interface {
	Load(ctx context.Context, userID string) (*model.UserData, error)
	Save(ctx context.Context, userID string, data model.UserData) error
	LoadAll(ctx context.Context) ([]model.UserDataRow, error)
	Delete(ctx context.Context, userID string) error
	Subscribe(ctx context.Context, userID string, fn func(model.UserDataRow)) error
}

type Mirror struct {
	remote Remote
	retry  time.Duration
}

// New returns a mirror; a nil remote disables every remote call.
func New(r Remote) *Mirror {
	return &Mirror{remote: r, retry: 3 * time.Second}
}

func (m *Mirror) Enabled() bool { return m != nil && m.remote != nil }

type Pulled struct {
	Admin        bool
	UserID       string
	Appointments []model.Appointment
	Settings     *model.SiteSettings
}

// Pull reads what sess may see. It reports false when the remote is disabled,
// failed, or has no row for a regular user.
func (m *Mirror) Pull(ctx context.Context, sess model.Session) (*Pulled, bool) {
	if !m.Enabled() {
		return nil, false
	}
	if sess.IsAdmin() {
		rows, err := m.remote.LoadAll(ctx)
		if err != nil {
			log.Printf("remote scan: %v", err)
			return nil, false
		}
		p := &Pulled{Admin: true, UserID: sess.UserID, Appointments: Flatten(rows)}
		for _, r := range rows {
			if r.UserID == sess.UserID && r.Data.Settings != nil {
				s := *r.Data.Settings
				p.Settings = &s
			}
		}
		return p, true
	}

	data, err := m.remote.Load(ctx, sess.UserID)
	if err != nil {
		log.Printf("remote load %s: %v", sess.UserID, err)
		return nil, false
	}
	if data == nil {
		return nil, false
	}
	return &Pulled{UserID: sess.UserID, Appointments: data.Appointments, Settings: data.Settings}, true
}

// Apply folds a pull into the local collection.
func (p *Pulled) Apply(local []model.Appointment) []model.Appointment {
	if p.Admin {
		return MergeAdmin(local, p.Appointments)
	}
	return MergeUser(local, p.UserID, p.Appointments)
}

// Flatten joins every row's appointments, keeping one entry per id. A later
// row in scan order replaces an earlier one in place.
func Flatten(rows []model.UserDataRow) []model.Appointment {
	pos := make(map[string]int)
	var out []model.Appointment
	for _, r := range rows {
		for _, a := range r.Data.Appointments {
			if i, ok := pos[a.ID]; ok {
				out[i] = a
				continue
			}
			pos[a.ID] = len(out)
			out = append(out, a)
		}
	}
	return out
}

// MergeUser replaces userID's appointments with the remote copy and keeps the rest.
func MergeUser(local []model.Appointment, userID string, remote []model.Appointment) []model.Appointment {
	seen := make(map[string]bool, len(remote))
	out := make([]model.Appointment, 0, len(local)+len(remote))
	for _, a := range remote {
		if seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, a)
	}
	for _, a := range local {
		if a.UserID == userID || seen[a.ID] {
			continue
		}
		out = append(out, a)
	}
	return out
}

// MergeAdmin takes the flattened remote set and keeps local appointments the
// remote has never seen.
func MergeAdmin(local, flattened []model.Appointment) []model.Appointment {
	seen := make(map[string]bool, len(flattened))
	out := make([]model.Appointment, 0, len(local)+len(flattened))
	for _, a := range flattened {
		seen[a.ID] = true
		out = append(out, a)
	}
	for _, a := range local {
		if !seen[a.ID] {
			out = append(out, a)
		}
	}
	return out
}

// View is the slice of the collection that belongs to sess. Admins see everything.
func View(sess model.Session, all []model.Appointment) []model.Appointment {
	out := make([]model.Appointment, 0, len(all))
	for _, a := range all {
		if sess.IsAdmin() || a.UserID == sess.UserID {
			out = append(out, a)
		}
	}
	return out
}

// Push upserts data under userID. Failures are logged and dropped.
func (m *Mirror) Push(ctx context.Context, userID string, data model.UserData) {
	if !m.Enabled() || userID == "" {
		return
	}
	if err := m.remote.Save(ctx, userID, data); err != nil {
		log.Printf("remote save %s: %v", userID, err)
	}
}

// PatchOwner rewrites one appointment inside its owner's row.
func (m *Mirror) PatchOwner(ctx context.Context, apt model.Appointment) {
	if !m.Enabled() || apt.UserID == "" {
		return
	}
	data, err := m.remote.Load(ctx, apt.UserID)
	if err != nil {
		log.Printf("remote patch load %s: %v", apt.UserID, err)
		return
	}
	if data == nil {
		data = &model.UserData{}
	}
	found := false
	for i := range data.Appointments {
		if data.Appointments[i].ID == apt.ID {
			data.Appointments[i] = apt
			found = true
			break
		}
	}
	if !found {
		data.Appointments = append([]model.Appointment{apt}, data.Appointments...)
	}
	if err := m.remote.Save(ctx, apt.UserID, *data); err != nil {
		log.Printf("remote patch save %s: %v", apt.UserID, err)
	}
}

// DropFromOwner removes one appointment from its owner's row so a later scan
// does not bring it back.
func (m *Mirror) DropFromOwner(ctx context.Context, apt model.Appointment) {
	if !m.Enabled() || apt.UserID == "" {
		return
	}
	data, err := m.remote.Load(ctx, apt.UserID)
	if err != nil {
		log.Printf("remote drop load %s: %v", apt.UserID, err)
		return
	}
	if data == nil {
		return
	}
	kept := data.Appointments[:0]
	for _, a := range data.Appointments {
		if a.ID != apt.ID {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(data.Appointments) {
		return
	}
	data.Appointments = kept
	if err := m.remote.Save(ctx, apt.UserID, *data); err != nil {
		log.Printf("remote drop save %s: %v", apt.UserID, err)
	}
}

func (m *Mirror) Forget(ctx context.Context, userID string) {
	if !m.Enabled() {
		return
	}
	if err := m.remote.Delete(ctx, userID); err != nil {
		log.Printf("remote delete %s: %v", userID, err)
	}
}

// Watch delivers row changes relevant to sess until ctx is done. Admins get
// every row; users only their own.
func (m *Mirror) Watch(ctx context.Context, sess model.Session, fn func(model.UserDataRow)) {
	if !m.Enabled() {
		return
	}
	filter := sess.UserID
	if sess.IsAdmin() {
		filter = ""
	}
	for ctx.Err() == nil {
		err := m.remote.Subscribe(ctx, filter, fn)
		if ctx.Err() != nil {
			return
		}
		if err != nil {
			log.Printf("remote subscribe %s: %v", sess.UserID, err)
		}
		select {
		case <-time.After(m.retry):
		case <-ctx.Done():
		}
	}
}
