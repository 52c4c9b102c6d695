package analytics

import (
	"fmt"
	"time"

	"github.com/flora/backend/internal/domain/shared"
)

// Period selects the window of a sales report
type Period string

const (
	PeriodDay   Period = "day"
	PeriodWeek  Period = "week"
	PeriodMonth Period = "month"
	PeriodYear  Period = "year"
)

// DefaultPeriod is used when no period is requested
const DefaultPeriod = PeriodWeek

// ParsePeriod validates a period query value
func ParsePeriod(raw string) (Period, error) {
	switch Period(raw) {
	case "":
		return DefaultPeriod, nil
	case PeriodDay, PeriodWeek, PeriodMonth, PeriodYear:
		return Period(raw), nil
	}
	return "", shared.NewDomainError("INVALID_PERIOD", fmt.Sprintf("Unknown period %q, expected day, week, month or year", raw))
}

// Bucket is the granularity of a report series
type Bucket string

const (
	BucketHour  Bucket = "hour"
	BucketDay   Bucket = "day"
	BucketMonth Bucket = "month"
)

// Window is a half-open time range [From, To)
type Window struct {
	From   time.Time `json:"from"`
	To     time.Time `json:"to"`
	Bucket Bucket    `json:"bucket"`
}

// Window returns the reporting range ending at now, in now's location
func (p Period) Window(now time.Time) Window {
	today := startOfDay(now)
	switch p {
	case PeriodDay:
		return Window{From: today, To: now, Bucket: BucketHour}
	case PeriodMonth:
		return Window{From: today.AddDate(0, 0, -29), To: now, Bucket: BucketDay}
	case PeriodYear:
		firstOfMonth := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())
		return Window{From: firstOfMonth.AddDate(0, -11, 0), To: now, Bucket: BucketMonth}
	default:
		return Window{From: today.AddDate(0, 0, -6), To: now, Bucket: BucketDay}
	}
}

// Contains reports whether t falls inside the window
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Buckets lists the start of every bucket in the window
func (w Window) Buckets() []time.Time {
	var out []time.Time
	for t := w.From; t.Before(w.To); t = w.next(t) {
		out = append(out, t)
	}
	return out
}

// Truncate maps t to the start of its bucket
func (w Window) Truncate(t time.Time) time.Time {
	t = t.In(w.From.Location())
	switch w.Bucket {
	case BucketHour:
		return time.Date(t.Year(), t.Month(), t.Day(), t.Hour(), 0, 0, 0, t.Location())
	case BucketMonth:
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	default:
		return startOfDay(t)
	}
}

// Label formats a bucket start for display
func (w Window) Label(t time.Time) string {
	switch w.Bucket {
	case BucketHour:
		return t.Format("15:04")
	case BucketMonth:
		return t.Format("2006-01")
	default:
		return t.Format("2006-01-02")
	}
}

func (w Window) next(t time.Time) time.Time {
	switch w.Bucket {
	case BucketHour:
		return t.Add(time.Hour)
	case BucketMonth:
		return t.AddDate(0, 1, 0)
	default:
		return t.AddDate(0, 0, 1)
	}
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// Today returns the window of the current day
func Today(now time.Time) Window {
	return Window{From: startOfDay(now), To: now, Bucket: BucketHour}
}
