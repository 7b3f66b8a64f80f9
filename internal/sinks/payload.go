package sinks

import (
	"fmt"
	"time"

	"github.com/crmbridge/target-salesforce/internal/shared"
)

// dateLayouts are the input formats accepted for unified date fields.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// ParseDate parses a unified date string against the accepted layouts.
func ParseDate(value string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, value); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%w: unparseable date %q", shared.ErrInvalidRecord, value)
}

// FormatDate renders a date-only Salesforce value.
func FormatDate(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatDateTime renders a Salesforce datetime with a colon in the zone
// offset, the form the REST API accepts.
func FormatDateTime(t time.Time) string {
	return t.Format("2006-01-02T15:04:05-07:00")
}

// Clean drops empty values from a mapping and normalizes time values.
// Nested maps are cleaned recursively.
func Clean(mapping map[string]any) map[string]any {
	out := make(map[string]any, len(mapping))
	for k, v := range mapping {
		switch value := v.(type) {
		case nil:
			continue
		case string:
			if value == "" {
				continue
			}
			out[k] = value
		case time.Time:
			out[k] = FormatDateTime(value)
		case map[string]any:
			out[k] = Clean(value)
		default:
			out[k] = v
		}
	}
	return out
}

// setIfPresent assigns mapping[key] only for non-empty values, keeping
// payloads free of no-op keys.
func setIfPresent(mapping map[string]any, key string, value any) {
	switch v := value.(type) {
	case nil:
		return
	case string:
		if v == "" {
			return
		}
	case *bool:
		if v == nil {
			return
		}
		mapping[key] = *v
		return
	case *int:
		if v == nil {
			return
		}
		mapping[key] = *v
		return
	case *float64:
		if v == nil {
			return
		}
		mapping[key] = *v
		return
	}
	mapping[key] = value
}

// firstNonEmpty returns the first non-empty string argument.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
