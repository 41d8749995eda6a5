package handler

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"vetclinic-booking/internal/clinic"
	"vetclinic-booking/internal/middleware"
)

func (h *Handler) Register(ctx context.Context, req *RegisterRequest) (*AuthResponse, error) {
	sess, u, err := h.app.Register(ctx, clinic.RegisterInput{
		Name:            req.Name,
		Email:           req.Email,
		Phone:           req.Phone,
		Password:        req.Password,
		ConfirmPassword: req.ConfirmPassword,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return h.issue(sess, u)
}

func (h *Handler) Login(ctx context.Context, req *LoginRequest) (*AuthResponse, error) {
	if req.Email == "" || req.Password == "" {
		return nil, status.Error(codes.InvalidArgument, "email and password required")
	}
	sess, u, err := h.app.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, toStatus(err)
	}
	return h.issue(sess, u)
}

func (h *Handler) Logout(ctx context.Context, _ *Empty) (*Empty, error) {
	sess := middleware.SessionFrom(ctx)
	if sess == nil {
		return &Empty{}, nil
	}
	if err := h.app.Logout(ctx, sess.ID); err != nil {
		return nil, toStatus(err)
	}
	return &Empty{}, nil
}

func (h *Handler) Me(ctx context.Context, _ *Empty) (*UserResponse, error) {
	sess, err := session(ctx)
	if err != nil {
		return nil, err
	}
	u, err := h.app.Profile(ctx, *sess)
	if err != nil {
		return nil, toStatus(err)
	}
	return &UserResponse{User: u}, nil
}

func (h *Handler) GetSettings(ctx context.Context, _ *Empty) (*SettingsResponse, error) {
	st, err := h.app.Settings(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &SettingsResponse{Settings: st}, nil
}

func (h *Handler) Departments(ctx context.Context, _ *Empty) (*DepartmentsResponse, error) {
	return &DepartmentsResponse{Departments: h.app.Departments()}, nil
}

func (h *Handler) Doctors(ctx context.Context, _ *Empty) (*DoctorsResponse, error) {
	docs, err := h.app.Doctors(ctx)
	if err != nil {
		return nil, toStatus(err)
	}
	return &DoctorsResponse{Doctors: docs}, nil
}

func (h *Handler) Triage(ctx context.Context, req *TriageRequest) (*TriageResponse, error) {
	rec, err := h.triage.Analyze(ctx, req.Symptoms)
	if err != nil {
		return nil, toStatus(err)
	}
	return &TriageResponse{Recommendation: rec}, nil
}
