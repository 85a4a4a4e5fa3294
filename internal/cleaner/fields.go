package cleaner

import (
	"fmt"
	"strconv"
	"strings"

	"devsync/internal"
	"devsync/internal/util"
)

// ParseID keeps only the digits of the first field. The id must not already
// be in seen; the caller adds it once the whole row is accepted.
func ParseID(field string, seen map[int64]struct{}) (int64, error) {
	digits := util.DigitsOnly(field)
	if digits == "" {
		return 0, ErrMissingID
	}
	id, err := strconv.ParseInt(digits, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q out of range", ErrMissingID, digits)
	}
	if _, dup := seen[id]; dup {
		return 0, fmt.Errorf("%w: %d", ErrDuplicateID, id)
	}
	return id, nil
}

// ExtractStatus returns the first explicit "enabled" or "deleted" field.
// "disabled" is never inferred here.
func ExtractStatus(fields []string) internal.RecordState {
	for _, field := range fields {
		switch internal.RecordState(strings.ToLower(strings.TrimSpace(field))) {
		case internal.StateEnabled:
			return internal.StateEnabled
		case internal.StateDeleted:
			return internal.StateDeleted
		}
	}
	return internal.StateEnabled
}

// FindDeviceCode scans left to right for the first code-shaped field. A code
// already accepted in this batch rejects the row rather than continuing the
// scan.
func FindDeviceCode(fields []string, seen map[string]struct{}) (string, int, error) {
	for idx, field := range fields {
		code := strings.TrimSpace(field)
		if !DeviceCodePattern.MatchString(code) {
			continue
		}
		if _, dup := seen[code]; dup {
			return "", -1, fmt.Errorf("%w: code %q", ErrDuplicateKey, code)
		}
		return code, idx, nil
	}
	return "", -1, fmt.Errorf("%w: no device code", ErrMissingKey)
}

// FindContentDeviceID scans right to left from the third-to-last field down to
// field 1, skipping the trailing state and date columns. The first all-digit
// field is the referenced device's external id.
func FindContentDeviceID(fields []string) (int64, int, error) {
	for idx := len(fields) - 3; idx > 0; idx-- {
		cleaned := strings.TrimSpace(fields[idx])
		if !util.IsDigits(cleaned) {
			continue
		}
		id, err := strconv.ParseInt(cleaned, 10, 64)
		if err != nil {
			continue
		}
		return id, idx, nil
	}
	return 0, -1, fmt.Errorf("%w: no numeric device id", ErrMissingKey)
}

// ExtractNameAndDescription treats field 1 as the name and everything between
// it and the key field as free-text description.
func ExtractNameAndDescription(fields []string, keyIndex int, fallbackName string) (string, string) {
	name := fallbackName
	if len(fields) > 1 {
		name = util.Unquote(fields[1])
	}

	if keyIndex <= 2 || keyIndex > len(fields) {
		return name, ""
	}
	parts := make([]string, 0, keyIndex-2)
	for _, part := range fields[2:keyIndex] {
		parts = append(parts, util.Unquote(part))
	}
	return name, strings.Join(parts, " ")
}

// TruncateField caps value at max characters. Oversized values are reported
// through sink and never reject the row.
func TruncateField(value string, max int, label string, line int, family string, sink Sink) string {
	cut, truncated := util.TruncateRunes(value, max)
	if truncated && sink != nil {
		sink.Emit(Event{
			Kind:   EventTruncated,
			Family: family,
			Line:   line,
			Reason: fmt.Sprintf("%s longer than %d characters", label, max),
			Field:  label,
			Value:  value,
		})
	}
	return cut
}
