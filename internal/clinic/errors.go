package clinic

import "errors"

var (
	ErrClosed     = errors.New("clinic closed")
	ErrNoProvider = errors.New("configured doctor not found")

	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrNoSession          = errors.New("session not found")
	ErrForbidden          = errors.New("admin only")
	ErrNotFound           = errors.New("not found")
	ErrLastAdmin          = errors.New("cannot remove the last admin")

	ErrDateOutOfRange = errors.New("date outside booking window")
	ErrDayFull        = errors.New("day is fully booked")
	ErrSlotTaken      = errors.New("time slot already taken")
	ErrSlotElapsed    = errors.New("time slot has passed")
	ErrNotCancellable = errors.New("only booked appointments can be cancelled")
)

// ErrInvalid matches every input validation error.
var ErrInvalid = errors.New("invalid input")

type invalidError struct{ msg string }

func (e *invalidError) Error() string        { return e.msg }
func (e *invalidError) Is(target error) bool { return target == ErrInvalid }

func invalid(msg string) error { return &invalidError{msg: msg} }

var (
	ErrInvalidEmail       = invalid("invalid email format")
	ErrInvalidPhone       = invalid("invalid phone number (09xxxxxxxx)")
	ErrPasswordMismatch   = invalid("passwords do not match")
	ErrPasswordRequired   = invalid("password required")
	ErrNameRequired       = invalid("name required")
	ErrBadDate            = invalid("date must be YYYY-MM-DD")
	ErrUnknownSlot        = invalid("unknown time slot")
	ErrBadStatus          = invalid("unknown status")
	ErrBadRole            = invalid("unknown role")
	ErrDiagnosisRequired  = invalid("diagnosis required")
	ErrPermissionDecision = invalid("permission must be granted, denied or default")
)
