package clinic

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetclinic-booking/internal/events"
	"vetclinic-booking/internal/localcache"
	"vetclinic-booking/internal/mirror"
	"vetclinic-booking/internal/model"
	"vetclinic-booking/internal/notify"
	"vetclinic-booking/internal/store/memstore"
)

var (
	cst      = time.FixedZone("CST", 8*60*60)
	fixedNow = time.Date(2026, 3, 2, 10, 15, 0, 0, cst)
	catalog  = []string{
		"09:00", "09:30", "10:00", "10:30", "11:00", "11:30",
		"14:00", "14:30", "15:00", "15:30", "16:00", "16:30", "17:00", "17:30",
	}
)

const (
	today    = "2026-03-02"
	tomorrow = "2026-03-03"
)

func newApp(t *testing.T, dir string, remote mirror.Remote) (*App, *events.Recorder) {
	t.Helper()
	cache, err := localcache.NewFileCache(dir)
	require.NoError(t, err)
	m := mirror.New(remote)
	rec := &events.Recorder{}
	app := New(Options{
		DoctorID:     "doc-001",
		TimeSlots:    catalog,
		Location:     cst,
		AdminEmail:   "admin@clinic.com",
		AdminPass:    "admin",
		SeedTestUser: true,
		Now:          func() time.Time { return fixedNow },
	}, cache, m, nil, rec)
	require.NoError(t, app.Start(context.Background()))
	t.Cleanup(app.Close)
	return app, rec
}

func login(t *testing.T, app *App, email, pass string) *model.Session {
	t.Helper()
	sess, _, err := app.Login(context.Background(), email, pass)
	require.NoError(t, err)
	return &sess
}

func guest(date, tm string) BookingInput {
	return BookingInput{Date: date, Time: tm, PatientName: "Mochi", PatientPhone: "0912345678"}
}

func TestStartNeedsProvider(t *testing.T) {
	cache, err := localcache.NewFileCache(t.TempDir())
	require.NoError(t, err)
	app := New(Options{DoctorID: "doc-404", TimeSlots: catalog}, cache, nil, nil, nil)
	err = app.Start(context.Background())
	assert.ErrorIs(t, err, ErrNoProvider)
}

func TestBookDailyCap(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t, t.TempDir(), nil)

	for i := 0; i < 10; i++ {
		_, err := app.Book(ctx, nil, guest(tomorrow, catalog[i]))
		require.NoError(t, err, "booking %d", i)
	}
	_, err := app.Book(ctx, nil, guest(tomorrow, catalog[10]))
	assert.ErrorIs(t, err, ErrDayFull)

	cal, err := app.Calendar(ctx)
	require.NoError(t, err)
	require.Len(t, cal, 14)
	assert.Equal(t, today, cal[0].Date)
	assert.True(t, cal[0].Today)
	assert.False(t, cal[0].Full)
	assert.Equal(t, tomorrow, cal[1].Date)
	assert.True(t, cal[1].Full)

	day, err := app.Availability(ctx, tomorrow)
	require.NoError(t, err)
	assert.True(t, day.Full)
	assert.Equal(t, 10, day.Active)
}

func TestBookRejections(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t, t.TempDir(), nil)
	_, err := app.Book(ctx, nil, guest(tomorrow, "14:00"))
	require.NoError(t, err)

	tests := []struct {
		name string
		in   BookingInput
		want error
	}{
		{"bad date", guest("03/03/2026", "14:00"), ErrBadDate},
		{"before window", guest("2026-03-01", "14:00"), ErrDateOutOfRange},
		{"after window", guest("2026-03-16", "14:00"), ErrDateOutOfRange},
		{"unknown slot", guest(tomorrow, "12:00"), ErrUnknownSlot},
		{"elapsed", guest(today, "10:00"), ErrSlotElapsed},
		{"taken", guest(tomorrow, "14:00"), ErrSlotTaken},
		{"guest phone", BookingInput{Date: tomorrow, Time: "15:00", PatientName: "Mochi", PatientPhone: "12345"}, ErrInvalidPhone},
		{"guest name", BookingInput{Date: tomorrow, Time: "15:00", PatientPhone: "0912345678"}, ErrNameRequired},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := app.Book(ctx, nil, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	all, err := app.Snapshot(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestBookAsUserUsesProfile(t *testing.T) {
	ctx := context.Background()
	app, rec := newApp(t, t.TempDir(), nil)
	sess := login(t, app, "test@clinic.com", "test")

	apt, err := app.Book(ctx, sess, BookingInput{Date: tomorrow, Time: "14:30", PatientName: "ignored", Symptoms: "  sneezing "})
	require.NoError(t, err)
	assert.Equal(t, "test-001", apt.UserID)
	assert.Equal(t, "Test User", apt.PatientName)
	assert.Equal(t, "0912345678", apt.PatientPhone)
	assert.Equal(t, "doc-001", apt.DoctorID)
	assert.Equal(t, "General Practice", apt.DepartmentName)
	assert.Equal(t, "sneezing", apt.Symptoms)
	assert.Equal(t, model.StatusBooked, apt.Status)
	assert.False(t, apt.ReminderSet)
	assert.Equal(t, []events.Kind{events.Booked}, rec.Kinds())

	// newest first in the collection
	second, err := app.Book(ctx, nil, guest(tomorrow, "15:00"))
	require.NoError(t, err)
	all, err := app.Snapshot(ctx)
	require.NoError(t, err)
	assert.Equal(t, second.ID, all[0].ID)
}

func TestRegister(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t, t.TempDir(), nil)
	admin := login(t, app, "admin@clinic.com", "admin")

	in := RegisterInput{Name: "Ada", Email: "ada@example.com", Phone: "0911222333", Password: "pw", ConfirmPassword: "pw"}
	sess, u, err := app.Register(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, model.RoleUser, sess.Role)
	assert.Empty(t, u.PasswordHash)

	before, err := app.Users(ctx, admin, "")
	require.NoError(t, err)

	dup := in
	dup.Email = "ADA@example.com"
	_, _, err = app.Register(ctx, dup)
	assert.ErrorIs(t, err, ErrEmailTaken)

	after, err := app.Users(ctx, admin, "")
	require.NoError(t, err)
	assert.Equal(t, before, after)

	bad := []struct {
		mutate func(*RegisterInput)
		want   error
	}{
		{func(r *RegisterInput) { r.Email = "nope" }, ErrInvalidEmail},
		{func(r *RegisterInput) { r.Phone = "0812345678" }, ErrInvalidPhone},
		{func(r *RegisterInput) { r.ConfirmPassword = "other" }, ErrPasswordMismatch},
		{func(r *RegisterInput) { r.Name = " " }, ErrNameRequired},
	}
	for _, b := range bad {
		r := in
		r.Email = "new@example.com"
		b.mutate(&r)
		_, _, err := app.Register(ctx, r)
		assert.ErrorIs(t, err, b.want)
		assert.ErrorIs(t, err, ErrInvalid)
	}
}

func TestLoginLogout(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t, t.TempDir(), nil)

	_, _, err := app.Login(ctx, "test@clinic.com", "wrong")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	_, _, err = app.Login(ctx, "ghost@clinic.com", "test")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	sess := login(t, app, " TEST@clinic.com ", "test")
	got, err := app.Session(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "test-001", got.UserID)

	require.NoError(t, app.Logout(ctx, sess.ID))
	_, err = app.Session(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrNoSession)
	assert.ErrorIs(t, app.Logout(ctx, sess.ID), ErrNoSession)
}

func TestCancelChangesOnlyStatusAndReason(t *testing.T) {
	ctx := context.Background()
	app, rec := newApp(t, t.TempDir(), nil)
	sess := login(t, app, "test@clinic.com", "test")
	apt, err := app.Book(ctx, sess, BookingInput{Date: tomorrow, Time: "16:00", Symptoms: "cough"})
	require.NoError(t, err)

	other, _, err := app.Register(ctx, RegisterInput{Name: "Bo", Email: "bo@example.com", Phone: "0922333444", Password: "x", ConfirmPassword: "x"})
	require.NoError(t, err)
	_, err = app.CancelAppointment(ctx, &other, apt.ID, "")
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := app.CancelAppointment(ctx, sess, apt.ID, "")
	require.NoError(t, err)
	want := apt
	want.Status = model.StatusCancelled
	want.CancellationReason = "doctor schedule change"
	assert.Equal(t, want, got)

	_, err = app.CancelAppointment(ctx, sess, apt.ID, "again")
	assert.ErrorIs(t, err, ErrNotCancellable)

	// the slot is free again
	_, err = app.Book(ctx, nil, guest(tomorrow, "16:00"))
	assert.NoError(t, err)
	assert.Equal(t, []events.Kind{events.Booked, events.Cancelled, events.Booked}, rec.Kinds())
}

func TestMyAppointmentsFilterAndSort(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t, t.TempDir(), nil)
	sess := login(t, app, "test@clinic.com", "test")

	for _, b := range []BookingInput{
		{Date: "2026-03-04", Time: "09:00"},
		{Date: tomorrow, Time: "15:00"},
		{Date: tomorrow, Time: "09:30"},
	} {
		_, err := app.Book(ctx, sess, b)
		require.NoError(t, err)
	}
	_, err := app.Book(ctx, nil, guest(tomorrow, "11:00"))
	require.NoError(t, err)

	mine, err := app.MyAppointments(ctx, sess, Filter{})
	require.NoError(t, err)
	require.Len(t, mine, 3)
	assert.Equal(t, []string{"09:30", "15:00", "09:00"}, []string{mine[0].Time, mine[1].Time, mine[2].Time})

	mine, err = app.MyAppointments(ctx, sess, Filter{Date: tomorrow, Desc: true})
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, "15:00", mine[0].Time)

	_, err = app.CancelAppointment(ctx, sess, mine[0].ID, "busy")
	require.NoError(t, err)
	booked, err := app.MyAppointments(ctx, sess, Filter{Status: model.StatusBooked, Doctor: "dr. LIN"})
	require.NoError(t, err)
	assert.Len(t, booked, 2)

	_, err = app.MyAppointments(ctx, sess, Filter{Status: "lost"})
	assert.ErrorIs(t, err, ErrBadStatus)
}

func TestAdminGuards(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t, t.TempDir(), nil)
	user := login(t, app, "test@clinic.com", "test")

	_, err := app.Appointments(ctx, user, Filter{})
	assert.ErrorIs(t, err, ErrForbidden)
	_, err = app.Dashboard(ctx, nil)
	assert.ErrorIs(t, err, ErrNoSession)
	_, err = app.UpdateSettings(ctx, user, model.SettingsUpdate{})
	assert.ErrorIs(t, err, ErrForbidden)
	assert.ErrorIs(t, app.DeleteUser(ctx, user, "admin-001"), ErrForbidden)
}

func TestUpdateAppointment(t *testing.T) {
	ctx := context.Background()
	app, rec := newApp(t, t.TempDir(), nil)
	admin := login(t, app, "admin@clinic.com", "admin")
	a1, err := app.Book(ctx, nil, guest(tomorrow, "14:00"))
	require.NoError(t, err)
	_, err = app.Book(ctx, nil, guest(tomorrow, "14:30"))
	require.NoError(t, err)

	moveTo := func(tm string) model.AppointmentUpdate { return model.AppointmentUpdate{Time: &tm} }
	_, err = app.UpdateAppointment(ctx, admin, a1.ID, moveTo("14:30"))
	assert.ErrorIs(t, err, ErrSlotTaken)
	_, err = app.UpdateAppointment(ctx, admin, a1.ID, moveTo("13:00"))
	assert.ErrorIs(t, err, ErrUnknownSlot)
	bad := model.Status("lost")
	_, err = app.UpdateAppointment(ctx, admin, a1.ID, model.AppointmentUpdate{Status: &bad})
	assert.ErrorIs(t, err, ErrBadStatus)
	_, err = app.UpdateAppointment(ctx, admin, "missing", moveTo("15:00"))
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := app.UpdateAppointment(ctx, admin, a1.ID, moveTo("15:00"))
	require.NoError(t, err)
	assert.Equal(t, "15:00", got.Time)

	got, err = app.CompleteAppointment(ctx, admin, a1.ID)
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, got.Status)

	require.NoError(t, app.DeleteAppointment(ctx, admin, a1.ID))
	assert.ErrorIs(t, app.DeleteAppointment(ctx, admin, a1.ID), ErrNotFound)

	stats, err := app.Dashboard(ctx, admin)
	require.NoError(t, err)
	assert.Equal(t, Stats{TodayAppointments: 0, TotalAppointments: 1, TotalUsers: 2}, stats)

	assert.Equal(t, []events.Kind{
		events.Booked, events.Booked, events.Updated, events.Completed, events.Deleted,
	}, rec.Kinds())
}

func TestReminderToggle(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t, t.TempDir(), nil)
	sess := login(t, app, "test@clinic.com", "test")
	apt, err := app.Book(ctx, sess, BookingInput{Date: tomorrow, Time: "14:00"})
	require.NoError(t, err)

	t.Run("denied is remembered", func(t *testing.T) {
		_, err := app.ToggleReminder(ctx, sess, apt.ID, true, notify.Denied)
		assert.ErrorIs(t, err, notify.ErrPermissionDenied)
		_, err = app.ToggleReminder(ctx, sess, apt.ID, true, notify.Granted)
		assert.ErrorIs(t, err, notify.ErrPermissionDenied)
		assert.Equal(t, 1, app.notify.Requests("test-001"))

		mine, err := app.MyAppointments(ctx, sess, Filter{})
		require.NoError(t, err)
		assert.False(t, mine[0].ReminderSet)
	})

	other, _, err := app.Register(ctx, RegisterInput{Name: "Bo", Email: "bo@example.com", Phone: "0922333444", Password: "x", ConfirmPassword: "x"})
	require.NoError(t, err)
	mine, err := app.Book(ctx, &other, BookingInput{Date: tomorrow, Time: "15:00"})
	require.NoError(t, err)

	t.Run("not the owner", func(t *testing.T) {
		_, err := app.ToggleReminder(ctx, &other, apt.ID, true, notify.Granted)
		assert.ErrorIs(t, err, ErrNotFound)
		assert.Equal(t, 0, app.notify.Requests(other.UserID))
	})

	t.Run("dismissed prompt", func(t *testing.T) {
		_, err := app.ToggleReminder(ctx, &other, mine.ID, true, notify.Default)
		assert.ErrorIs(t, err, notify.ErrPermissionDenied)
		assert.Equal(t, notify.Default, app.Permission(&other))
	})

	t.Run("granted then off", func(t *testing.T) {
		got, err := app.ToggleReminder(ctx, &other, mine.ID, true, notify.Granted)
		require.NoError(t, err)
		assert.True(t, got.ReminderSet)
		inbox, err := app.Notifications(ctx, &other)
		require.NoError(t, err)
		require.Len(t, inbox, 1)
		assert.Equal(t, notify.KindReminderSet, inbox[0].Kind)

		// already granted: no new prompt
		_, err = app.ToggleReminder(ctx, &other, mine.ID, true, "")
		require.NoError(t, err)
		assert.Equal(t, 2, app.notify.Requests(other.UserID))

		got, err = app.ToggleReminder(ctx, &other, mine.ID, false, "")
		require.NoError(t, err)
		assert.False(t, got.ReminderSet)
		inbox, _ = app.Notifications(ctx, &other)
		assert.Len(t, inbox, 2)
	})

	_, err = app.ToggleReminder(ctx, sess, apt.ID, true, "maybe")
	assert.ErrorIs(t, err, ErrPermissionDecision)
}

func TestAdminMembers(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t, t.TempDir(), nil)
	admin := login(t, app, "admin@clinic.com", "admin")
	user := login(t, app, "test@clinic.com", "test")

	found, err := app.Users(ctx, admin, "0912")
	require.NoError(t, err)
	require.Len(t, found, 1)
	assert.Equal(t, "test-001", found[0].ID)

	taken := "ADMIN@clinic.com"
	_, err = app.UpdateUser(ctx, admin, "test-001", model.UserUpdate{Email: &taken})
	assert.ErrorIs(t, err, ErrEmailTaken)

	demote := model.RoleUser
	_, err = app.UpdateUser(ctx, admin, "admin-001", model.UserUpdate{Role: &demote})
	assert.ErrorIs(t, err, ErrLastAdmin)
	assert.ErrorIs(t, app.DeleteUser(ctx, admin, "admin-001"), ErrLastAdmin)

	promote := model.RoleAdmin
	u, err := app.UpdateUser(ctx, admin, "test-001", model.UserUpdate{Role: &promote})
	require.NoError(t, err)
	assert.Equal(t, model.RoleAdmin, u.Role)
	s, err := app.Session(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, s.IsAdmin())

	rec, err := app.AddMedicalRecord(ctx, admin, "test-001", RecordInput{Diagnosis: " otitis ", Treatment: "drops"})
	require.NoError(t, err)
	assert.Equal(t, today, rec.Date)
	assert.Equal(t, "otitis", rec.Diagnosis)
	_, err = app.AddMedicalRecord(ctx, admin, "test-001", RecordInput{})
	assert.ErrorIs(t, err, ErrDiagnosisRequired)
	p, err := app.Profile(ctx, s)
	require.NoError(t, err)
	require.Len(t, p.MedicalHistory, 1)

	require.NoError(t, app.DeleteUser(ctx, admin, "test-001"))
	_, err = app.Session(ctx, user.ID)
	assert.ErrorIs(t, err, ErrNoSession)
}

func TestDoctorsAndSettings(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t, t.TempDir(), nil)
	admin := login(t, app, "admin@clinic.com", "admin")

	picked := []string{"15:00", "09:00", "14:00"}
	doc, err := app.UpdateDoctor(ctx, admin, "doc-001", model.DoctorUpdate{AvailableSlots: &picked})
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "14:00", "15:00"}, doc.AvailableSlots)

	day, err := app.Availability(ctx, tomorrow)
	require.NoError(t, err)
	assert.Len(t, day.Slots, 3)
	_, err = app.Book(ctx, nil, guest(tomorrow, "16:00"))
	assert.ErrorIs(t, err, ErrUnknownSlot)

	odd := []string{"12:15"}
	_, err = app.UpdateDoctor(ctx, admin, "doc-001", model.DoctorUpdate{AvailableSlots: &odd})
	assert.ErrorIs(t, err, ErrUnknownSlot)

	title := "Welcome"
	st, err := app.UpdateSettings(ctx, admin, model.SettingsUpdate{WelcomeTitle: &title})
	require.NoError(t, err)
	assert.Equal(t, "Welcome", st.WelcomeTitle)
	assert.Equal(t, model.DefaultSettings.AppName, st.AppName)
}

func TestRestartRestoresState(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	app, _ := newApp(t, dir, nil)
	sess := login(t, app, "test@clinic.com", "test")
	apt, err := app.Book(ctx, sess, BookingInput{Date: tomorrow, Time: "14:00"})
	require.NoError(t, err)
	app.Close()

	again, _ := newApp(t, dir, nil)
	got, err := again.Session(ctx, sess.ID)
	require.NoError(t, err)
	mine, err := again.MyAppointments(ctx, &got, Filter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, apt.ID, mine[0].ID)
}

func TestAdminChangeReachesOwnerRow(t *testing.T) {
	ctx := context.Background()
	remote := memstore.New()

	userApp, _ := newApp(t, t.TempDir(), remote)
	sess := login(t, userApp, "test@clinic.com", "test")
	apt, err := userApp.Book(ctx, sess, BookingInput{Date: tomorrow, Time: "14:00"})
	require.NoError(t, err)
	userApp.push.wait()

	row, err := remote.Load(ctx, "test-001")
	require.NoError(t, err)
	require.NotNil(t, row)
	require.Len(t, row.Appointments, 1)

	// another device
	adminApp, _ := newApp(t, t.TempDir(), remote)
	admin := login(t, adminApp, "admin@clinic.com", "admin")
	all, err := adminApp.Appointments(ctx, admin, Filter{})
	require.NoError(t, err)
	require.Len(t, all, 1)

	_, err = adminApp.CompleteAppointment(ctx, admin, apt.ID)
	require.NoError(t, err)
	adminApp.push.wait()

	row, err = remote.Load(ctx, "test-001")
	require.NoError(t, err)
	assert.Equal(t, model.StatusCompleted, row.Appointments[0].Status)

	require.NoError(t, userApp.Logout(ctx, sess.ID))
	sess = login(t, userApp, "test@clinic.com", "test")
	mine, err := userApp.MyAppointments(ctx, sess, Filter{})
	require.NoError(t, err)
	require.Len(t, mine, 1)
	assert.Equal(t, model.StatusCompleted, mine[0].Status)
}

func TestAdminDeleteDropsOwnerRow(t *testing.T) {
	ctx := context.Background()
	remote := memstore.New()
	app, _ := newApp(t, t.TempDir(), remote)
	sess := login(t, app, "test@clinic.com", "test")
	apt, err := app.Book(ctx, sess, BookingInput{Date: tomorrow, Time: "14:00"})
	require.NoError(t, err)

	admin := login(t, app, "admin@clinic.com", "admin")
	require.NoError(t, app.DeleteAppointment(ctx, admin, apt.ID))
	app.push.wait()

	row, err := remote.Load(ctx, "test-001")
	require.NoError(t, err)
	assert.Empty(t, row.Appointments)
	left, err := app.Appointments(ctx, admin, Filter{})
	require.NoError(t, err)
	assert.Empty(t, left)

	// a fresh scan does not bring it back
	other, _ := newApp(t, t.TempDir(), remote)
	admin2 := login(t, other, "admin@clinic.com", "admin")
	all, err := other.Appointments(ctx, admin2, Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestRemoteDownStillBooks(t *testing.T) {
	ctx := context.Background()
	remote := memstore.New()
	remote.SetDown(true)
	app, _ := newApp(t, t.TempDir(), remote)
	sess := login(t, app, "test@clinic.com", "test")

	for i := 0; i < 3; i++ {
		_, err := app.Book(ctx, sess, BookingInput{Date: tomorrow, Time: catalog[6+i]})
		require.NoError(t, err, fmt.Sprint(i))
	}
	mine, err := app.MyAppointments(ctx, sess, Filter{})
	require.NoError(t, err)
	assert.Len(t, mine, 3)
}

func TestRevivedAppointmentKeepsSlotRules(t *testing.T) {
	ctx := context.Background()
	app, _ := newApp(t, t.TempDir(), nil)
	admin := login(t, app, "admin@clinic.com", "admin")
	booked := model.StatusBooked

	first, err := app.Book(ctx, nil, guest(tomorrow, "14:00"))
	require.NoError(t, err)
	_, err = app.CancelAppointment(ctx, admin, first.ID, "")
	require.NoError(t, err)
	_, err = app.Book(ctx, nil, guest(tomorrow, "14:00"))
	require.NoError(t, err)

	_, err = app.UpdateAppointment(ctx, admin, first.ID, model.AppointmentUpdate{Status: &booked})
	assert.ErrorIs(t, err, ErrSlotTaken)

	free := "15:00"
	got, err := app.UpdateAppointment(ctx, admin, first.ID, model.AppointmentUpdate{Status: &booked, Time: &free})
	require.NoError(t, err)
	assert.Equal(t, model.StatusBooked, got.Status)

	all, err := app.Appointments(ctx, admin, Filter{Date: tomorrow})
	require.NoError(t, err)
	active := map[string]int{}
	for _, ap := range all {
		if ap.EffectiveStatus() != model.StatusCancelled {
			active[ap.Time]++
		}
	}
	assert.Equal(t, map[string]int{"14:00": 1, "15:00": 1}, active)

	// a full day cannot take a revived booking either
	const later = "2026-03-04"
	parked, err := app.Book(ctx, nil, guest(later, catalog[0]))
	require.NoError(t, err)
	_, err = app.CancelAppointment(ctx, admin, parked.ID, "")
	require.NoError(t, err)
	for i := 1; i <= 10; i++ {
		_, err := app.Book(ctx, nil, guest(later, catalog[i]))
		require.NoError(t, err, "booking %d", i)
	}
	_, err = app.UpdateAppointment(ctx, admin, parked.ID, model.AppointmentUpdate{Status: &booked})
	assert.ErrorIs(t, err, ErrDayFull)

	// nor can a booking moved in from another day
	_, err = app.UpdateAppointment(ctx, admin, got.ID, model.AppointmentUpdate{Date: ptr(later), Time: ptr(catalog[12])})
	assert.ErrorIs(t, err, ErrDayFull)
}

func ptr[T any](v T) *T { return &v }

// holdFirstSave parks the first Save until release is closed.
type holdFirstSave struct {
	*memstore.Store
	once    sync.Once
	held    chan struct{}
	release chan struct{}
}

func (h *holdFirstSave) Save(ctx context.Context, userID string, data model.UserData) error {
	first := false
	h.once.Do(func() { first = true })
	if first {
		close(h.held)
		<-h.release
	}
	return h.Store.Save(ctx, userID, data)
}

func appointmentIDs(appts []model.Appointment) []string {
	out := make([]string, 0, len(appts))
	for _, ap := range appts {
		out = append(out, ap.ID)
	}
	return out
}

func TestSlowPushDoesNotDropNewerBooking(t *testing.T) {
	ctx := context.Background()
	remote := &holdFirstSave{Store: memstore.New(), held: make(chan struct{}), release: make(chan struct{})}
	app, _ := newApp(t, t.TempDir(), remote)
	var releaseOnce sync.Once
	release := func() { releaseOnce.Do(func() { close(remote.release) }) }
	t.Cleanup(release)

	sess := login(t, app, "test@clinic.com", "test")
	require.Eventually(t, func() bool { return remote.Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	first, err := app.Book(ctx, sess, BookingInput{Date: tomorrow, Time: "14:00"})
	require.NoError(t, err)
	<-remote.held
	second, err := app.Book(ctx, sess, BookingInput{Date: tomorrow, Time: "15:00"})
	require.NoError(t, err)
	release()
	app.push.wait()

	want := []string{first.ID, second.ID}
	mine, err := app.MyAppointments(ctx, sess, Filter{})
	require.NoError(t, err)
	assert.ElementsMatch(t, want, appointmentIDs(mine))

	row, err := remote.Load(ctx, "test-001")
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.ElementsMatch(t, want, appointmentIDs(row.Appointments))
}

func TestWatchersFollowOtherDevices(t *testing.T) {
	ctx := context.Background()
	remote := memstore.New()
	adminApp, _ := newApp(t, t.TempDir(), remote)
	userApp, _ := newApp(t, t.TempDir(), remote)
	admin := login(t, adminApp, "admin@clinic.com", "admin")
	user := login(t, userApp, "test@clinic.com", "test")
	require.Eventually(t, func() bool { return remote.Subscribers() == 2 }, 2*time.Second, 5*time.Millisecond)

	// the admin device rescans when the user writes
	apt, err := userApp.Book(ctx, user, BookingInput{Date: tomorrow, Time: "14:00"})
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		all, err := adminApp.Appointments(ctx, admin, Filter{})
		return err == nil && len(all) == 1 && all[0].ID == apt.ID
	}, 2*time.Second, 5*time.Millisecond)

	// the user device picks up the admin's patch to its row without logging in again
	_, err = adminApp.CancelAppointment(ctx, admin, apt.ID, "")
	require.NoError(t, err)
	require.Eventually(t, func() bool {
		mine, err := userApp.MyAppointments(ctx, user, Filter{})
		return err == nil && len(mine) == 1 && mine[0].Status == model.StatusCancelled
	}, 2*time.Second, 5*time.Millisecond)

	require.NoError(t, adminApp.DeleteAppointment(ctx, admin, apt.ID))
	require.Eventually(t, func() bool {
		mine, err := userApp.MyAppointments(ctx, user, Filter{})
		return err == nil && len(mine) == 0
	}, 2*time.Second, 5*time.Millisecond)
	adminApp.push.wait()
	userApp.push.wait()

	// a late write carrying the purged appointment does not bring it back
	require.NoError(t, remote.Save(ctx, "test-001", model.UserData{Appointments: []model.Appointment{apt}}))
	adminApp.push.wait()
	all, err := adminApp.Appointments(ctx, admin, Filter{})
	require.NoError(t, err)
	assert.Empty(t, all)
}
