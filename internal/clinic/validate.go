package clinic

import (
	"regexp"
	"strings"
	"time"

	"vetclinic-booking/internal/slots"
)

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^09\d{8}$`)
)

func validEmail(s string) bool { return emailRe.MatchString(s) }
func validPhone(s string) bool { return phoneRe.MatchString(s) }

func validDate(s string) bool {
	_, err := time.Parse(slots.DateLayout, s)
	return err == nil
}

func sameEmail(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}

func containsFold(s, sub string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(sub))
}
