package notify

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/robfig/cron/v3"

	"vetclinic-booking/internal/model"
)

type AppointmentSource interface {
	Snapshot(ctx context.Context) ([]model.Appointment, error)
}

// Sweeper sends day-before reminders for flagged appointments on a cron schedule.
type Sweeper struct {
	center *Center
	src    AppointmentSource
	loc    *time.Location
	now    func() time.Time
	cron   *cron.Cron
}

func NewSweeper(center *Center, src AppointmentSource, loc *time.Location) *Sweeper {
	if loc == nil {
		loc = time.Local
	}
	return &Sweeper{center: center, src: src, loc: loc, now: time.Now}
}

func (s *Sweeper) Start(spec string) error {
	s.cron = cron.New(cron.WithLocation(s.loc))
	if _, err := s.cron.AddFunc(spec, func() {
		log.Println("running day-before reminder sweep")
		n, err := s.Run(context.Background())
		if err != nil {
			log.Printf("reminder sweep: %v", err)
			return
		}
		log.Printf("reminder sweep sent %d", n)
	}); err != nil {
		return fmt.Errorf("reminder schedule %q: %w", spec, err)
	}
	s.cron.Start()
	return nil
}

func (s *Sweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
}

// Run notifies owners of tomorrow's booked appointments that have a reminder
// set. An appointment is reminded at most once.
func (s *Sweeper) Run(ctx context.Context) (int, error) {
	appts, err := s.src.Snapshot(ctx)
	if err != nil {
		return 0, err
	}
	tomorrow := s.now().In(s.loc).AddDate(0, 0, 1).Format("2006-01-02")
	sent := 0
	for _, a := range appts {
		if a.Date != tomorrow || a.UserID == "" || !a.ReminderSet || a.EffectiveStatus() != model.StatusBooked {
			continue
		}
		if s.center.Permission(a.UserID) != Granted {
			continue
		}
		if s.center.has(a.UserID, KindDayBefore, a.ID) {
			continue
		}
		s.center.Show(ctx, model.Notification{
			UserID:        a.UserID,
			AppointmentID: a.ID,
			Kind:          KindDayBefore,
			Title:         "Appointment tomorrow",
			Body:          fmt.Sprintf("%s with %s on %s at %s", a.PatientName, a.DoctorName, a.Date, a.Time),
		})
		sent++
	}
	return sent, nil
}
