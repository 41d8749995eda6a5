package middleware

import (
	"context"
	"strings"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"vetclinic-booking/internal/auth"
	"vetclinic-booking/internal/model"
)

type ctxKey string

const sessionKey ctxKey = "session"

const (
	clinicPrefix = "/clinic.v1.ClinicService/"
	adminPrefix  = "/clinic.v1.AdminService/"
)

// skip auth for these
var open = map[string]bool{
	clinicPrefix + "Register":     true,
	clinicPrefix + "Login":        true,
	clinicPrefix + "GetSettings":  true,
	clinicPrefix + "Departments":  true,
	clinicPrefix + "Doctors":      true,
	clinicPrefix + "Calendar":     true,
	clinicPrefix + "Availability": true,
	clinicPrefix + "Triage":       true,
}

// guests may call these; a token is still honoured when sent
var optional = map[string]bool{
	clinicPrefix + "Book": true,
}

// Sessions resolves a session id to the live session.
type Sessions interface {
	Session(ctx context.Context, sid string) (model.Session, error)
}

func WithSession(ctx context.Context, s model.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFrom returns the caller's session, or nil for guests.
func SessionFrom(ctx context.Context) *model.Session {
	s, ok := ctx.Value(sessionKey).(model.Session)
	if !ok {
		return nil
	}
	return &s
}

func Auth(secret string, sessions Sessions) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, next grpc.UnaryHandler) (any, error) {
		m := info.FullMethod
		// health and reflection
		if !strings.HasPrefix(m, clinicPrefix) && !strings.HasPrefix(m, adminPrefix) {
			return next(ctx, req)
		}
		if open[m] {
			return next(ctx, req)
		}

		raw := bearer(ctx)
		if raw == "" {
			if optional[m] {
				return next(ctx, req)
			}
			return nil, status.Error(codes.Unauthenticated, "no token")
		}

		claims, err := auth.ParseToken(raw, secret)
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, "bad token")
		}
		sess, err := sessions.Session(ctx, claims.SessionID)
		if err != nil || sess.UserID != claims.UserID {
			return nil, status.Error(codes.Unauthenticated, "session expired")
		}
		if strings.HasPrefix(m, adminPrefix) && !sess.IsAdmin() {
			return nil, status.Error(codes.PermissionDenied, "admin only")
		}

		return next(WithSession(ctx, sess), req)
	}
}

// bearer pulls the token from Authorization: Bearer <jwt>
func bearer(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ""
	}
	v := vals[0]
	if len(v) < 7 || !strings.EqualFold(v[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(v[7:])
}
