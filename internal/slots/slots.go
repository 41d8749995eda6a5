// Package slots computes which daily time slots can still be booked.
package slots

import (
	"fmt"
	"time"

	"vetclinic-booking/internal/model"
)

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"

	DefaultDailyCap   = 10
	DefaultWindowDays = 14
)

type State string

const (
	Selectable State = "selectable"
	Taken      State = "taken"
	Elapsed    State = "elapsed"
)

type Slot struct {
	Time  string `json:"time"`
	State State  `json:"state"`
}

type Day struct {
	Date   string `json:"date"`
	Full   bool   `json:"full"`
	Active int    `json:"active"`
	Slots  []Slot `json:"slots"`
}

// Visible drops elapsed slots.
func (d Day) Visible() []Slot {
	out := make([]Slot, 0, len(d.Slots))
	for _, s := range d.Slots {
		if s.State != Elapsed {
			out = append(out, s)
		}
	}
	return out
}

func (d Day) Selectable() []string {
	var out []string
	for _, s := range d.Slots {
		if s.State == Selectable {
			out = append(out, s.Time)
		}
	}
	return out
}

func (d Day) State(t string) (State, bool) {
	for _, s := range d.Slots {
		if s.Time == t {
			return s.State, true
		}
	}
	return "", false
}

// Compute classifies every catalog slot for date as seen at now.
// The day-full flag is counted separately from per-slot states.
func Compute(date string, now time.Time, catalog []string, appts []model.Appointment, dailyCap int) Day {
	if dailyCap <= 0 {
		dailyCap = DefaultDailyCap
	}
	active := CountActive(date, appts)
	day := Day{
		Date:   date,
		Active: active,
		Full:   active >= dailyCap,
		Slots:  make([]Slot, 0, len(catalog)),
	}

	today := date == now.Format(DateLayout)
	nowMin := now.Hour()*60 + now.Minute()

	for _, t := range catalog {
		st := Selectable
		switch {
		case today && !after(t, nowMin):
			st = Elapsed
		case IsTaken(date, t, appts):
			st = Taken
		}
		day.Slots = append(day.Slots, Slot{Time: t, State: st})
	}
	return day
}

// after reports whether slot label t falls strictly after the minute of day m.
func after(t string, m int) bool {
	v, ok := minuteOfDay(t)
	if !ok {
		return false
	}
	return v > m
}

func minuteOfDay(t string) (int, bool) {
	p, err := time.Parse(TimeLayout, t)
	if err != nil {
		return 0, false
	}
	return p.Hour()*60 + p.Minute(), true
}

func IsTaken(date, t string, appts []model.Appointment) bool {
	for _, a := range appts {
		if a.Date == date && a.Time == t && a.Active() {
			return true
		}
	}
	return false
}

func CountActive(date string, appts []model.Appointment) int {
	n := 0
	for _, a := range appts {
		if a.Date == date && a.Active() {
			n++
		}
	}
	return n
}

func DayFull(date string, appts []model.Appointment, dailyCap int) bool {
	if dailyCap <= 0 {
		dailyCap = DefaultDailyCap
	}
	return CountActive(date, appts) >= dailyCap
}

type DateOption struct {
	Date    string `json:"date"`
	Weekday string `json:"weekday"`
	Today   bool   `json:"today"`
	Full    bool   `json:"full"`
}

// Window lists the bookable calendar days starting today.
func Window(now time.Time, days int, appts []model.Appointment, dailyCap int) []DateOption {
	if days <= 0 {
		days = DefaultWindowDays
	}
	out := make([]DateOption, 0, days)
	for i := 0; i < days; i++ {
		d := now.AddDate(0, 0, i)
		ds := d.Format(DateLayout)
		out = append(out, DateOption{
			Date:    ds,
			Weekday: d.Weekday().String(),
			Today:   i == 0,
			Full:    DayFull(ds, appts, dailyCap),
		})
	}
	return out
}

// InWindow reports whether date is one of the next days calendar days.
func InWindow(date string, now time.Time, days int) bool {
	if days <= 0 {
		days = DefaultWindowDays
	}
	d, err := time.ParseInLocation(DateLayout, date, now.Location())
	if err != nil {
		return false
	}
	start := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	end := start.AddDate(0, 0, days)
	return !d.Before(start) && d.Before(end)
}

func Contains(catalog []string, t string) bool {
	for _, s := range catalog {
		if s == t {
			return true
		}
	}
	return false
}

// Ordered returns the members of picked in catalog order, dropping unknown labels.
func Ordered(catalog, picked []string) []string {
	set := make(map[string]bool, len(picked))
	for _, p := range picked {
		set[p] = true
	}
	var out []string
	for _, s := range catalog {
		if set[s] {
			out = append(out, s)
		}
	}
	return out
}

// Generate builds a catalog of labels from start up to but excluding end.
func Generate(start, end string, step time.Duration) ([]string, error) {
	s, err := time.Parse(TimeLayout, start)
	if err != nil {
		return nil, fmt.Errorf("bad start %q: %w", start, err)
	}
	e, err := time.Parse(TimeLayout, end)
	if err != nil {
		return nil, fmt.Errorf("bad end %q: %w", end, err)
	}
	if step <= 0 {
		return nil, fmt.Errorf("step must be positive")
	}
	var out []string
	for t := s; t.Before(e); t = t.Add(step) {
		out = append(out, t.Format(TimeLayout))
	}
	return out, nil
}
