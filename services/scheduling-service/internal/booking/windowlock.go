package booking

import "time"

// WindowLockTime computes the natural lock deadline for a slot: 20:00 local
// time three days before the slot starts. Past that instant a committed window
// is treated as fixed for dispatch planning.
func WindowLockTime(slotStart time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = time.Local
	}
	d := slotStart.In(loc).AddDate(0, 0, -3)
	return time.Date(d.Year(), d.Month(), d.Day(), 20, 0, 0, 0, loc)
}
