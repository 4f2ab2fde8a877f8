package models

import "time"

// TimeLayout is the fixed-width UTC layout used for stored timestamps so that
// lexical order in the row store matches chronological order.
const TimeLayout = "2006-01-02T15:04:05.000000Z"

// FormatTime renders t in TimeLayout.
func FormatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}
