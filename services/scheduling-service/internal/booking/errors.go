package booking

import (
	"errors"
	"fmt"
	"time"

	"github.com/serviceops-hq/dispatch/services/scheduling-service/internal/timeslot"
)

// ErrInvalidRange is re-exported so callers can treat the whole booking error
// taxonomy as one surface.
var ErrInvalidRange = timeslot.ErrInvalidRange

var (
	ErrNotFound      = errors.New("appointment not found")
	ErrValidation    = errors.New("invalid booking request")
	ErrInvalidState  = errors.New("invalid schedule state")
	ErrInvalidStatus = errors.New("invalid dispatch status")
	ErrNoEmailOnFile = errors.New("customer has no email on file")
	ErrTooEarly      = errors.New("too early to lock window")
	ErrInvalidToken  = errors.New("invalid confirmation token")
	ErrTokenExpired  = errors.New("confirmation token expired")
)

// SlotConflictError reports an overlap with an existing appointment. Only the
// conflicting bounds are exposed; callers never see another customer's record.
type SlotConflictError struct {
	Start time.Time
	End   time.Time
}

func (e *SlotConflictError) Error() string {
	if e.Start.IsZero() {
		return "time slot already booked"
	}
	return fmt.Sprintf("time slot already booked (%s - %s)",
		e.Start.Format(time.RFC3339), e.End.Format(time.RFC3339))
}

// AsSlotConflict unwraps err into a SlotConflictError if it is one.
func AsSlotConflict(err error) (*SlotConflictError, bool) {
	var sc *SlotConflictError
	if errors.As(err, &sc) {
		return sc, true
	}
	return nil, false
}
