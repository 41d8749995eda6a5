package slots

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vetclinic-booking/internal/model"
)

var catalog = []string{"09:00", "09:30", "10:00", "10:30", "11:00", "14:00", "14:30"}

func at(s string) time.Time {
	t, err := time.ParseInLocation("2006-01-02 15:04", s, time.Local)
	if err != nil {
		panic(err)
	}
	return t
}

func apt(date, tm string, st model.Status) model.Appointment {
	return model.Appointment{ID: date + tm, Date: date, Time: tm, Status: st}
}

func TestComputeFutureDay(t *testing.T) {
	now := at("2026-03-01 12:00")
	appts := []model.Appointment{
		apt("2026-03-02", "09:30", model.StatusBooked),
		apt("2026-03-02", "10:00", model.StatusCancelled),
		apt("2026-03-02", "14:00", ""),
		apt("2026-03-03", "09:00", model.StatusBooked),
	}

	day := Compute("2026-03-02", now, catalog, appts, 10)

	assert.False(t, day.Full)
	assert.Equal(t, 2, day.Active)
	require.Len(t, day.Slots, len(catalog))

	want := map[string]State{
		"09:00": Selectable,
		"09:30": Taken,
		"10:00": Selectable, // cancelled frees the slot
		"14:00": Taken,      // missing status counts as booked
	}
	for tm, st := range want {
		got, ok := day.State(tm)
		require.True(t, ok, tm)
		assert.Equal(t, st, got, tm)
	}
	assert.Equal(t, []string{"09:00", "10:00", "10:30", "11:00", "14:30"}, day.Selectable())
}

func TestComputeTodayHidesElapsed(t *testing.T) {
	tests := []struct {
		now     string
		visible []string
	}{
		{"2026-03-01 08:00", catalog},
		{"2026-03-01 09:00", []string{"09:30", "10:00", "10:30", "11:00", "14:00", "14:30"}},
		{"2026-03-01 09:01", []string{"09:30", "10:00", "10:30", "11:00", "14:00", "14:30"}},
		{"2026-03-01 10:29", []string{"10:30", "11:00", "14:00", "14:30"}},
		{"2026-03-01 13:00", []string{"14:00", "14:30"}},
		{"2026-03-01 23:59", nil},
	}

	for _, tt := range tests {
		t.Run(tt.now, func(t *testing.T) {
			now := at(tt.now)
			day := Compute("2026-03-01", now, catalog, nil, 10)

			var got []string
			for _, s := range day.Visible() {
				got = append(got, s.Time)
				m, _ := minuteOfDay(s.Time)
				assert.Greater(t, m, now.Hour()*60+now.Minute(), "slot %s is not after now", s.Time)
			}
			assert.Equal(t, tt.visible, got)
		})
	}
}

func TestComputeElapsedWinsOverTaken(t *testing.T) {
	now := at("2026-03-01 10:15")
	appts := []model.Appointment{apt("2026-03-01", "09:30", model.StatusBooked)}

	day := Compute("2026-03-01", now, catalog, appts, 10)
	st, _ := day.State("09:30")
	assert.Equal(t, Elapsed, st)
}

func TestDayFullIndependentOfSlots(t *testing.T) {
	date := "2026-03-05"
	var appts []model.Appointment
	// ten bookings at times outside the catalog still fill the day
	for i := 0; i < 10; i++ {
		appts = append(appts, apt(date, fmt.Sprintf("18:%02d", i), model.StatusBooked))
	}

	day := Compute(date, at("2026-03-01 08:00"), catalog, appts, 10)
	assert.True(t, day.Full)
	assert.Len(t, day.Selectable(), len(catalog))

	// cancelled bookings do not count toward the cap
	appts[0].Status = model.StatusCancelled
	day = Compute(date, at("2026-03-01 08:00"), catalog, appts, 10)
	assert.False(t, day.Full)
	assert.Equal(t, 9, day.Active)
}

func TestWindow(t *testing.T) {
	now := at("2026-03-30 15:00")
	var appts []model.Appointment
	for i := 0; i < 10; i++ {
		appts = append(appts, apt("2026-04-01", fmt.Sprintf("0%d:00", i), model.StatusBooked))
	}

	win := Window(now, 14, appts, 10)
	require.Len(t, win, 14)
	assert.Equal(t, "2026-03-30", win[0].Date)
	assert.True(t, win[0].Today)
	assert.Equal(t, "2026-04-12", win[13].Date)
	assert.True(t, win[2].Full)
	assert.False(t, win[1].Full)
}

func TestInWindow(t *testing.T) {
	now := at("2026-03-30 15:00")
	assert.True(t, InWindow("2026-03-30", now, 14))
	assert.True(t, InWindow("2026-04-12", now, 14))
	assert.False(t, InWindow("2026-04-13", now, 14))
	assert.False(t, InWindow("2026-03-29", now, 14))
	assert.False(t, InWindow("30/03/2026", now, 14))
}

func TestGenerate(t *testing.T) {
	got, err := Generate("09:00", "11:00", 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, []string{"09:00", "09:30", "10:00", "10:30"}, got)

	_, err = Generate("9am", "11:00", 30*time.Minute)
	assert.Error(t, err)
	_, err = Generate("09:00", "11:00", 0)
	assert.Error(t, err)
}

func TestOrdered(t *testing.T) {
	got := Ordered(catalog, []string{"14:30", "09:00", "23:00", "10:00"})
	assert.Equal(t, []string{"09:00", "10:00", "14:30"}, got)
}
