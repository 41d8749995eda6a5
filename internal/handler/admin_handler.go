package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"vetclinic-booking/internal/clinic"
)

func (h *Handler) ListAppointments(ctx context.Context, req *ListRequest) (*AppointmentsResponse, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	f, err := filter(req)
	if err != nil {
		return nil, err
	}
	list, err := h.app.Appointments(ctx, sess, f)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AppointmentsResponse{Appointments: list}, nil
}

func (h *Handler) UpdateAppointment(ctx context.Context, req *UpdateAppointmentRequest) (*AppointmentResponse, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	if req.ID == "" {
		return nil, status.Error(codes.InvalidArgument, "id required")
	}
	apt, err := h.app.UpdateAppointment(ctx, sess, req.ID, req.Update)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AppointmentResponse{Appointment: apt}, nil
}

func (h *Handler) CompleteAppointment(ctx context.Context, req *IDRequest) (*AppointmentResponse, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	apt, err := h.app.CompleteAppointment(ctx, sess, req.ID)
	if err != nil {
		return nil, toStatus(err)
	}
	return &AppointmentResponse{Appointment: apt}, nil
}

func (h *Handler) DeleteAppointment(ctx context.Context, req *IDRequest) (*Empty, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.app.DeleteAppointment(ctx, sess, req.ID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (h *Handler) Dashboard(ctx context.Context, _ *Empty) (*DashboardResponse, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	st, err := h.app.Dashboard(ctx, sess)
	if err != nil {
		return nil, toStatus(err)
	}
	return &DashboardResponse{Stats: st}, nil
}

func (h *Handler) UpdateDoctor(ctx context.Context, req *UpdateDoctorRequest) (*DoctorResponse, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	doc, err := h.app.UpdateDoctor(ctx, sess, req.ID, req.Update)
	if err != nil {
		return nil, toStatus(err)
	}
	return &DoctorResponse{Doctor: doc}, nil
}

func (h *Handler) UpdateSettings(ctx context.Context, req *UpdateSettingsRequest) (*SettingsResponse, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	st, err := h.app.UpdateSettings(ctx, sess, req.Update)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SettingsResponse{Settings: st}, nil
}

func (h *Handler) ListUsers(ctx context.Context, req *UsersRequest) (*UsersResponse, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	users, err := h.app.Users(ctx, sess, req.Search)
	if err != nil {
		return nil, toStatus(err)
	}
	return &UsersResponse{Users: users}, nil
}

func (h *Handler) UpdateUser(ctx context.Context, req *UpdateUserRequest) (*UserResponse, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	u, err := h.app.UpdateUser(ctx, sess, req.ID, req.Update)
	if err != nil {
		return nil, toStatus(err)
	}
	return &UserResponse{User: u}, nil
}

func (h *Handler) DeleteUser(ctx context.Context, req *IDRequest) (*Empty, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	if err := h.app.DeleteUser(ctx, sess, req.ID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (h *Handler) AddMedicalRecord(ctx context.Context, req *MedicalRecordRequest) (*MedicalRecordResponse, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	rec, err := h.app.AddMedicalRecord(ctx, sess, req.UserID, clinic.RecordInput{
		Diagnosis: req.Diagnosis,
		Treatment: req.Treatment,
		Notes:     req.Notes,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return &MedicalRecordResponse{Record: rec}, nil
}
