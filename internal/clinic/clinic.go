// Package clinic owns the booking state. A single goroutine holds users,
// appointments, doctors, settings and sessions; every operation is sent to it
// as a closure, so a check and the write that depends on it never interleave
// with another request.
package clinic

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"vetclinic-booking/internal/auth"
	"vetclinic-booking/internal/events"
	"vetclinic-booking/internal/localcache"
	"vetclinic-booking/internal/mirror"
	"vetclinic-booking/internal/model"
	"vetclinic-booking/internal/notify"
	"vetclinic-booking/internal/slots"
)

type Options struct {
	DoctorID     string
	DailyCap     int
	WindowDays   int
	TimeSlots    []string
	Location     *time.Location
	AdminEmail   string
	AdminPass    string
	SeedTestUser bool
	Now          func() time.Time
}

type state struct {
	users        []model.User
	appointments []model.Appointment
	doctors      []model.Doctor
	settings     model.SiteSettings
	sessions     map[string]model.Session
	watchers     map[string]context.CancelFunc
	// ids purged by an admin; remote copies of them are ignored
	purged       map[string]bool
}

type App struct {
	opts   Options
	cache  localcache.Cache
	mirror *mirror.Mirror
	notify *notify.Center
	events events.Publisher
	push   *pusher

	st   state
	ops  chan func(*state)
	quit chan struct{}
	done chan struct{}

	bg       context.Context
	bgCancel context.CancelFunc
	wg       sync.WaitGroup
	once     sync.Once
}

func New(opts Options, cache localcache.Cache, m *mirror.Mirror, n *notify.Center, ev events.Publisher) *App {
	if opts.DailyCap <= 0 {
		opts.DailyCap = slots.DefaultDailyCap
	}
	if opts.WindowDays <= 0 {
		opts.WindowDays = slots.DefaultWindowDays
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if m == nil {
		m = mirror.New(nil)
	}
	if n == nil {
		n = notify.NewCenter(cache)
	}
	if ev == nil {
		ev = events.Nop{}
	}
	bg, cancel := context.WithCancel(context.Background())
	a := &App{
		opts:     opts,
		cache:    cache,
		mirror:   m,
		notify:   n,
		events:   ev,
		ops:      make(chan func(*state)),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		bg:       bg,
		bgCancel: cancel,
		st: state{
			sessions: make(map[string]model.Session),
			watchers: make(map[string]context.CancelFunc),
			purged:   make(map[string]bool),
		},
	}
	a.push = newPusher(bg, a.resync)
	return a
}

func (a *App) now() time.Time { return a.opts.Now().In(a.opts.Location) }

// Start hydrates from the local cache, seeds defaults, starts the state loop
// and resumes persisted sessions.
func (a *App) Start(ctx context.Context) error {
	if err := a.hydrate(ctx); err != nil {
		return err
	}
	if err := a.seed(ctx); err != nil {
		return err
	}
	if _, ok := findDoctor(a.st.doctors, a.opts.DoctorID); !ok {
		return fmt.Errorf("%w: %s", ErrNoProvider, a.opts.DoctorID)
	}
	if err := a.notify.Load(ctx); err != nil {
		log.Printf("notify load: %v", err)
	}

	var resume []model.Session
	for id, s := range a.st.sessions {
		if _, ok := findUser(a.st.users, s.UserID); !ok {
			delete(a.st.sessions, id)
			continue
		}
		resume = append(resume, s)
	}

	go a.run()

	for _, s := range resume {
		a.attach(ctx, s)
	}
	log.Printf("clinic started: %d users, %d appointments, %d sessions",
		len(a.st.users), len(a.st.appointments), len(resume))
	return nil
}

// Close stops watchers and the state loop.
func (a *App) Close() {
	a.once.Do(func() {
		a.bgCancel()
		close(a.quit)
		<-a.done
		a.wg.Wait()
		a.push.wait()
	})
}

func (a *App) run() {
	defer close(a.done)
	for {
		select {
		case op := <-a.ops:
			op(&a.st)
		case <-a.quit:
			return
		}
	}
}

// do runs fn on the state goroutine and waits for it.
func (a *App) do(ctx context.Context, fn func(*state) error) error {
	errc := make(chan error, 1)
	op := func(s *state) { errc <- fn(s) }
	select {
	case a.ops <- op:
	case <-ctx.Done():
		return ctx.Err()
	case <-a.quit:
		return ErrClosed
	}
	return <-errc
}

func (a *App) hydrate(ctx context.Context) error {
	if a.cache == nil {
		return nil
	}
	loads := []struct {
		key string
		v   any
	}{
		{localcache.KeyUsers, &a.st.users},
		{localcache.KeyAppointments, &a.st.appointments},
		{localcache.KeyDoctors, &a.st.doctors},
		{localcache.KeySettings, &a.st.settings},
		{localcache.KeySessions, &a.st.sessions},
	}
	for _, l := range loads {
		if _, err := a.cache.Load(ctx, l.key, l.v); err != nil {
			return fmt.Errorf("hydrate %s: %w", l.key, err)
		}
	}
	if a.st.sessions == nil {
		a.st.sessions = make(map[string]model.Session)
	}
	return nil
}

func (a *App) seed(ctx context.Context) error {
	now := a.now()
	seeds := []struct {
		user model.User
		pass string
		on   bool
	}{
		{model.User{ID: "admin-001", Name: "Clinic Admin", Email: a.opts.AdminEmail, Phone: "0000000000", Role: model.RoleAdmin}, a.opts.AdminPass, a.opts.AdminEmail != ""},
		{model.User{ID: "test-001", Name: "Test User", Email: "test@clinic.com", Phone: "0912345678", Role: model.RoleUser}, "test", a.opts.SeedTestUser},
	}
	usersChanged := false
	for _, sd := range seeds {
		if !sd.on || emailInUse(a.st.users, sd.user.Email, "") {
			continue
		}
		if _, ok := findUser(a.st.users, sd.user.ID); ok {
			continue
		}
		hash, err := auth.HashPassword(sd.pass)
		if err != nil {
			return err
		}
		u := sd.user
		u.PasswordHash = hash
		u.CreatedAt = now
		a.st.users = append(a.st.users, u)
		usersChanged = true
	}
	if usersChanged {
		a.store(ctx, localcache.KeyUsers, a.st.users)
	}
	if len(a.st.doctors) == 0 {
		a.st.doctors = append([]model.Doctor(nil), model.DefaultDoctors...)
		a.store(ctx, localcache.KeyDoctors, a.st.doctors)
	}
	if a.st.settings == (model.SiteSettings{}) {
		a.st.settings = model.DefaultSettings
		a.store(ctx, localcache.KeySettings, a.st.settings)
	}
	return nil
}

// store writes a whole value to the local cache. Failures are logged.
func (a *App) store(ctx context.Context, key string, v any) {
	if a.cache == nil {
		return
	}
	if err := a.cache.Store(ctx, key, v); err != nil {
		log.Printf("local save %s: %v", key, err)
	}
}

// saveShared writes appointments and settings locally and queues the
// session's view for upsert under the session's own user id.
func (a *App) saveShared(s *state, sess *model.Session) {
	a.store(context.Background(), localcache.KeyAppointments, s.appointments)
	a.store(context.Background(), localcache.KeySettings, s.settings)
	if sess == nil || !a.mirror.Enabled() {
		return
	}
	settings := s.settings
	data := model.UserData{Appointments: mirror.View(*sess, s.appointments), Settings: &settings}
	uid := sess.UserID
	a.push.snapshot(uid, func(ctx context.Context) {
		a.mirror.Push(ctx, uid, data)
	})
}

// queueRow queues a change to userID's remote row behind that user's own writes.
func (a *App) queueRow(userID string, run func(context.Context)) {
	if userID == "" || !a.mirror.Enabled() {
		return
	}
	a.push.patch(userID, run)
}

// resync pulls every watched session again once remote changes were held back
// while local writes were in flight.
func (a *App) resync() {
	var watched []model.Session
	err := a.do(a.bg, func(s *state) error {
		for sid := range s.watchers {
			if sess, ok := s.sessions[sid]; ok {
				watched = append(watched, sess)
			}
		}
		return nil
	})
	if err != nil {
		return
	}
	for _, sess := range watched {
		a.refresh(a.bg, sess)
	}
}

func (a *App) publish(ctx context.Context, kind events.Kind, apt model.Appointment, actor string) {
	ev := events.Event{Kind: kind, Appointment: apt, ActorID: actor, At: a.now()}
	if err := a.events.Publish(ctx, ev); err != nil {
		log.Printf("publish %s %s: %v", kind, apt.ID, err)
	}
}

// Snapshot copies the appointment collection.
func (a *App) Snapshot(ctx context.Context) ([]model.Appointment, error) {
	var out []model.Appointment
	err := a.do(ctx, func(s *state) error {
		out = append([]model.Appointment(nil), s.appointments...)
		return nil
	})
	return out, err
}

func (s *state) dropPurged(appts []model.Appointment) []model.Appointment {
	if len(s.purged) == 0 {
		return appts
	}
	out := appts[:0]
	for _, ap := range appts {
		if !s.purged[ap.ID] {
			out = append(out, ap)
		}
	}
	return out
}

func findUser(users []model.User, id string) (int, bool) {
	for i, u := range users {
		if u.ID == id {
			return i, true
		}
	}
	return -1, false
}

func emailInUse(users []model.User, email, exceptID string) bool {
	for _, u := range users {
		if u.ID != exceptID && sameEmail(u.Email, email) {
			return true
		}
	}
	return false
}

func findDoctor(doctors []model.Doctor, id string) (int, bool) {
	for i, d := range doctors {
		if d.ID == id {
			return i, true
		}
	}
	return -1, false
}

func findAppointment(appts []model.Appointment, id string) (int, bool) {
	for i, ap := range appts {
		if ap.ID == id {
			return i, true
		}
	}
	return -1, false
}

func requireAdmin(sess *model.Session) error {
	if sess == nil {
		return ErrNoSession
	}
	if !sess.IsAdmin() {
		return ErrForbidden
	}
	return nil
}
