// Package rental validates proposed booking intervals against a car's
// existing rentals before they are submitted to the remote API, which remains
// the authority on the no-overlap invariant.
package rental

import (
	"errors"
	"time"

	"github.com/mwierzba/autonajem/internal/model"
	"github.com/mwierzba/autonajem/internal/search"
)

// ErrRange is reported when the candidate interval ends before it starts.
var ErrRange = errors.New("Data końcowa musi być późniejsza lub równa początkowej")

// instantLayouts lists the timestamp forms the API emits. Bare forms are
// assumed UTC.
var instantLayouts = []string{
	"2006-01-02T15:04:05.000Z",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// ParseInstant converts an ISO-ish timestamp string into a time. It tolerates
// both "...Z"-suffixed and bare YYYY-MM-DDTHH:MM forms.
func ParseInstant(value string) (time.Time, bool) {
	for _, layout := range instantLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ValidateRange checks that the candidate interval is ordered. Both bounds
// must parse; unparseable bounds are ordered by definition (the overlap check
// skips them anyway).
func ValidateRange(startISO, endISO string) error {
	start, okStart := ParseInstant(startISO)
	end, okEnd := ParseInstant(endISO)
	if !okStart || !okEnd {
		return nil
	}
	if start.After(end) {
		return ErrRange
	}
	return nil
}

// HasOverlap reports whether the candidate [start, end) interval shares any
// instant with an existing rental of the same car, under half-open semantics:
// a rental ending exactly when another starts does not overlap. The rental
// with excludeID is skipped so an edited rental is never compared against
// itself. A malformed timestamp on either side makes that comparison count as
// no overlap rather than failing.
func HasOverlap(startISO, endISO string, existing []model.Rental, excludeID int64) bool {
	start, okStart := ParseInstant(startISO)
	end, okEnd := ParseInstant(endISO)
	if !okStart || !okEnd {
		return false
	}

	for _, r := range existing {
		if excludeID != 0 && r.ID == excludeID {
			continue
		}
		otherStart, ok := ParseInstant(boundISO(r.StartISO, r.StartDate, r.StartTime, search.BoundStart))
		if !ok {
			continue
		}
		otherEnd, ok := ParseInstant(boundISO(r.EndISO, r.EndDate, r.EndTime, search.BoundEnd))
		if !ok {
			continue
		}
		// [s1,e1) and [s2,e2) overlap iff s1 < e2 and s2 < e1.
		if start.Before(otherEnd) && otherStart.Before(end) {
			return true
		}
	}
	return false
}

// boundISO prefers the rental's precomputed instant, falling back to
// combining its date and time fields.
func boundISO(iso, date, timeOfDay string, kind search.Bound) string {
	if iso != "" {
		return iso
	}
	return search.CombineDateTime(date, timeOfDay, kind)
}

// ClampEndTime auto-advances the end time to the start time for same-day
// bookings where the picked end time is earlier. This is a form assist only;
// stored data is never rewritten.
func ClampEndTime(startDate, startTime, endDate, endTime string) string {
	if startDate == "" || endDate == "" || startDate != endDate {
		return endTime
	}
	if startTime == "" {
		return endTime
	}
	if endTime == "" || endTime < startTime {
		return startTime
	}
	return endTime
}
