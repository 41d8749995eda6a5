package handler

import (
	"context"
	"strings"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"vetclinic-booking/internal/clinic"
	"vetclinic-booking/internal/middleware"
)

func (h *Handler) Calendar(ctx context.Context, _ *Empty) (*CalendarResponse, error) {
	days, err := h.app.Calendar(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &CalendarResponse{Days: days}, nil
}

func (h *Handler) Availability(ctx context.Context, req *AvailabilityRequest) (*AvailabilityResponse, error) {
	day, err := h.app.Availability(ctx, req.Date)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AvailabilityResponse{Date: day.Date, Full: day.Full, Slots: day.Visible()}, nil
}

// Book works for guests too; a signed-in caller books under their profile.
func (h *Handler) Book(ctx context.Context, req *BookRequest) (*AppointmentResponse, error) {
	apt, err := h.app.Book(ctx, middleware.SessionFrom(ctx), clinic.BookingInput{
		Date:         req.Date,
		Time:         req.Time,
		PatientName:  req.PatientName,
		PatientPhone: req.PatientPhone,
		Symptoms:     req.Symptoms,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &AppointmentResponse{Appointment: apt}, nil
}

func filter(req *ListRequest) (clinic.Filter, error) {
	f := clinic.Filter{Date: req.Date, Doctor: req.Doctor, Status: req.Status}
	switch strings.ToLower(req.Sort) {
	case "", "asc":
	case "desc":
		f.Desc = true
	default:
		return f, status.Error(codes.InvalidArgument, "sort must be asc or desc")
	}
	return f, nil
}

func (h *Handler) MyAppointments(ctx context.Context, req *ListRequest) (*AppointmentsResponse, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	f, err := filter(req)
	if err != nil {
		return nil, err
	}
	list, err := h.app.MyAppointments(ctx, sess, f)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AppointmentsResponse{Appointments: list}, nil
}

func (h *Handler) CancelAppointment(ctx context.Context, req *CancelRequest) (*AppointmentResponse, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	apt, err := h.app.CancelAppointment(ctx, sess, req.ID, req.Reason)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AppointmentResponse{Appointment: apt}, nil
}

func (h *Handler) ToggleReminder(ctx context.Context, req *ReminderRequest) (*ReminderResponse, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	apt, err := h.app.ToggleReminder(ctx, sess, req.ID, req.On, req.Permission)
	if err != nil {
		return nil, toStatus(err)
	}
	return &ReminderResponse{Appointment: apt, Permission: h.app.Permission(sess)}, nil
}

func (h *Handler) Notifications(ctx context.Context, _ *Empty) (*NotificationsResponse, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	list, err := h.app.Notifications(ctx, sess)
	if err != nil {
		return nil, toStatus(err)
	}
	return &NotificationsResponse{Notifications: list, Permission: h.app.Permission(sess)}, nil
}
