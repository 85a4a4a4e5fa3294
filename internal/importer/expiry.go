package importer

import (
	"time"

	"devsync/internal"
)

// Expire dates are wall-clock values stored as UTC, so "now" is compared the
// same way.
func wallClock(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second(), 0, time.UTC)
}

// ApplyDeviceExpiry disables every device whose expire date has passed. All
// other devices keep the state found in the export.
func ApplyDeviceExpiry(records []internal.DeviceRecord, now time.Time) []internal.DeviceRecord {
	out := make([]internal.DeviceRecord, len(records))
	for i, r := range records {
		r.State = expiredState(r.ExpireDate, now, r.State)
		out[i] = r
	}
	return out
}

func ApplyContentExpiry(records []internal.ContentRecord, now time.Time) []internal.ContentRecord {
	out := make([]internal.ContentRecord, len(records))
	for i, r := range records {
		r.State = expiredState(r.ExpireDate, now, r.State)
		out[i] = r
	}
	return out
}

func expiredState(expire, now time.Time, state internal.RecordState) internal.RecordState {
	if expire.Before(now) {
		return internal.StateDisabled
	}
	return state
}
