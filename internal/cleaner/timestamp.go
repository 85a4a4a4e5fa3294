package cleaner

import (
	"slices"
	"strconv"
	"strings"
	"time"
)

const maxYear = 9999

// LatestTimestamp returns the lexicographically greatest timestamp-shaped
// substring of text. For candidates of the same shape that is also the
// chronologically latest one.
func LatestTimestamp(text string) (string, bool) {
	matches := TimestampPattern.FindAllString(text, -1)
	if len(matches) == 0 {
		return "", false
	}
	return slices.Max(matches), true
}

// RepairTimestamp rebuilds a moment from a TimestampPattern match. The date
// part must be a real calendar date; the time part is added as a duration, so
// out-of-range clock values roll over: `2024-01-01 23:59:66` becomes
// `2024-01-02 00:00:06`. Fractions take part in the arithmetic and are then
// dropped. The offset is accepted but not applied.
func RepairTimestamp(candidate string) (time.Time, bool) {
	m := TimestampPartsPattern.FindStringSubmatch(candidate)
	if m == nil {
		return time.Time{}, false
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])
	hour, _ := strconv.Atoi(m[4])
	minute, _ := strconv.Atoi(m[5])
	second, _ := strconv.Atoi(m[6])
	micro := microseconds(m[7])

	if year < 1 || year > maxYear || month < 1 || month > 12 {
		return time.Time{}, false
	}
	if day < 1 || day > daysIn(time.Month(month), year) {
		return time.Time{}, false
	}

	base := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	corrected := base.Add(time.Duration(hour)*time.Hour +
		time.Duration(minute)*time.Minute +
		time.Duration(second)*time.Second +
		time.Duration(micro)*time.Microsecond)

	if corrected.Year() > maxYear {
		return time.Time{}, false
	}
	return corrected.Truncate(time.Second), true
}

// ParseLineTimestamp finds the latest timestamp in a raw line and repairs it.
// The returned candidate is empty when the line held none.
func ParseLineTimestamp(line string) (time.Time, string, error) {
	candidate, ok := LatestTimestamp(line)
	if !ok {
		return time.Time{}, "", ErrUnparseableTimestamp
	}
	ts, ok := RepairTimestamp(candidate)
	if !ok {
		return time.Time{}, candidate, ErrUnparseableTimestamp
	}
	return ts, candidate, nil
}

// microseconds right-pads or cuts a fraction to six digits.
func microseconds(fraction string) int {
	if fraction == "" {
		return 0
	}
	if len(fraction) > 6 {
		fraction = fraction[:6]
	} else {
		fraction += strings.Repeat("0", 6-len(fraction))
	}
	n, _ := strconv.Atoi(fraction)
	return n
}

func daysIn(month time.Month, year int) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
