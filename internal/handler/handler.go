package handler

import (
	"context"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"vetclinic-booking/internal/auth"
	"vetclinic-booking/internal/clinic"
	"vetclinic-booking/internal/middleware"
	"vetclinic-booking/internal/model"
	"vetclinic-booking/internal/triage"
)

type Handler struct {
	app    *clinic.App
	triage *triage.Analyzer
	secret string
	ttl    time.Duration
}

func New(app *clinic.App, tr *triage.Analyzer, secret string, ttl time.Duration) *Handler {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &Handler{app: app, triage: tr, secret: secret, ttl: ttl}
}

// session returns the caller's session; the interceptor has already
// rejected unauthenticated calls to members-only methods.
func session(ctx context.Context) (*model.Session, error) {
	s := middleware.SessionFrom(ctx)
	if s == nil {
		return nil, status.Error(codes.Unauthenticated, "login required")
	}
	return s, nil
}

func (h *Handler) issue(sess model.Session, u model.User) (*AuthResponse, error) {
	tok, err := auth.MakeToken(sess, h.secret, h.ttl)
	if err != nil {
		return nil, status.Error(codes.Internal, "internal error")
	}
	return &AuthResponse{Token: tok, ExpiresAt: time.Now().Add(h.ttl), User: u}, nil
}

var (
	_ ClinicServer = (*Handler)(nil)
	_ AdminServer  = (*Handler)(nil)
)
