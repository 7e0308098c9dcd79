package upstream

import (
	"fmt"
	"time"
)

// Window is the acquisition time interval, inclusive on both ends to
// match the portal's from/to search convention. All instants are UTC.
type Window struct {
	Start time.Time
	End   time.Time
}

// LastHours returns a window covering the given lookback from now.
func LastHours(hours int) Window {
	now := time.Now().UTC()
	return Window{Start: now.Add(-time.Duration(hours) * time.Hour), End: now}
}

// Between returns an explicit window.
func Between(start, end time.Time) Window {
	return Window{Start: start.UTC(), End: end.UTC()}
}

// Validate rejects inverted windows.
func (w Window) Validate() error {
	if w.End.Before(w.Start) {
		return fmt.Errorf("window end %s before start %s", w.End.Format(time.RFC3339), w.Start.Format(time.RFC3339))
	}
	return nil
}

// Portal form encoding: separate date and HHMM time fields, UTC.
const (
	dateLayout = "2006-01-02"
	timeLayout = "1504"
)

// FormDates returns the four portal form values (from date, from time,
// to date, to time).
func (w Window) FormDates() (string, string, string, string) {
	return w.Start.Format(dateLayout), w.Start.Format(timeLayout),
		w.End.Format(dateLayout), w.End.Format(timeLayout)
}

func (w Window) String() string {
	return fmt.Sprintf("%s..%s", w.Start.Format("2006-01-02 15:04"), w.End.Format("2006-01-02 15:04"))
}
