package reservation

import "time"

// Day truncates t to the start of its UTC calendar day.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// Interval is a half-open range of days [Start, End).
type Interval struct {
	Start time.Time
	End   time.Time
}

func NewInterval(start time.Time, days int) (Interval, error) {
	start = Day(start)
	iv := Interval{Start: start, End: start.AddDate(0, 0, days)}
	return iv, iv.Validate()
}

func (i Interval) Validate() error {
	if !i.Start.Before(i.End) {
		return ErrInvalidInterval
	}
	return nil
}

func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// Days lists every day covered by the interval.
func (i Interval) Days() []time.Time {
	var out []time.Time
	for d := i.Start; d.Before(i.End); d = d.AddDate(0, 0, 1) {
		out = append(out, d)
	}
	return out
}
