package handler

import (
	"context"
	"errors"
	"log"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"vetclinic-booking/internal/clinic"
	"vetclinic-booking/internal/notify"
	"vetclinic-booking/internal/triage"
)

var codeOf = []struct {
	err  error
	code codes.Code
}{
	{clinic.ErrInvalid, codes.InvalidArgument},
	{triage.ErrEmptySymptoms, codes.InvalidArgument},
	{clinic.ErrInvalidCredentials, codes.Unauthenticated},
	{clinic.ErrNoSession, codes.Unauthenticated},
	{clinic.ErrForbidden, codes.PermissionDenied},
	{clinic.ErrNotFound, codes.NotFound},
	{clinic.ErrEmailTaken, codes.AlreadyExists},
	{clinic.ErrSlotTaken, codes.AlreadyExists},
	{clinic.ErrDateOutOfRange, codes.OutOfRange},
	{clinic.ErrDayFull, codes.FailedPrecondition},
	{clinic.ErrSlotElapsed, codes.FailedPrecondition},
	{clinic.ErrNotCancellable, codes.FailedPrecondition},
	{clinic.ErrLastAdmin, codes.FailedPrecondition},
	{notify.ErrPermissionDenied, codes.FailedPrecondition},
	{triage.ErrUnavailable, codes.Unavailable},
	{triage.ErrNoRecommendation, codes.Unavailable},
	{clinic.ErrClosed, codes.Unavailable},
	{context.Canceled, codes.Canceled},
	{context.DeadlineExceeded, codes.DeadlineExceeded},
}

// toStatus maps domain errors onto gRPC codes. Anything unexpected is logged
// and reported as internal.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	for _, c := range codeOf {
		if errors.Is(err, c.err) {
			return status.Error(c.code, err.Error())
		}
	}
	log.Printf("internal error: %v", err)
	return status.Error(codes.Internal, "internal error")
}
