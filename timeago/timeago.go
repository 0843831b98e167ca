// Package timeago formats comment timestamps relative to now.
package timeago

import (
	"fmt"
	"time"

	"github.com/aquilax/threadboard/comment"
)

const (
	DefaultDateLayout = "1/2/2006"

	LessThanAnHour = "Less than an hour ago"
	InvalidDate    = "Invalid date"
	UnknownTime    = "Unknown time"
)

type Formatter struct {
	Now        func() time.Time
	DateLayout string
}

var std = Formatter{}

// Format formats ts relative to the current time.
func Format(ts comment.Timestamp) string {
	return std.Format(ts)
}

func (f Formatter) now() time.Time {
	if f.Now != nil {
		return f.Now()
	}
	return time.Now()
}

func (f Formatter) Format(ts comment.Timestamp) string {
	if ts.Missing() {
		return UnknownTime
	}
	if !ts.Valid {
		return InvalidDate
	}
	return f.FormatTime(ts.Time)
}

func (f Formatter) FormatTime(t time.Time) string {
	if t.IsZero() {
		return UnknownTime
	}
	hours := floorDiv(f.now().Sub(t), time.Hour)
	days := hours / 24
	switch {
	case hours < 1:
		return LessThanAnHour
	case hours < 24:
		return plural(hours, "hour")
	case days < 7:
		return plural(days, "day")
	}
	layout := f.DateLayout
	if layout == "" {
		layout = DefaultDateLayout
	}
	return t.Local().Format(layout)
}

func floorDiv(d, unit time.Duration) int64 {
	q := int64(d / unit)
	if d%unit < 0 {
		q--
	}
	return q
}

func plural(n int64, unit string) string {
	if n == 1 {
		return fmt.Sprintf("1 %s ago", unit)
	}
	return fmt.Sprintf("%d %ss ago", n, unit)
}
