package calendar

import (
	"time"

	"github.com/ManuelReschke/PlanFox/internal/pkg/planner"
)

// EventTime is either a concrete instant or an all-day date (YYYY-MM-DD).
type EventTime struct {
	DateTime *time.Time `json:"dateTime,omitempty"`
	Date     string     `json:"date,omitempty"`
}

func At(t time.Time) EventTime {
	return EventTime{DateTime: &t}
}

func OnDate(date string) EventTime {
	return EventTime{Date: date}
}

func (t EventTime) IsAllDay() bool {
	return t.DateTime == nil && t.Date != ""
}

func (t EventTime) IsZero() bool {
	return t.DateTime == nil && t.Date == ""
}

// String is the canonical form used for fingerprints: UTC RFC 3339 or the bare date.
func (t EventTime) String() string {
	if t.DateTime != nil {
		return t.DateTime.UTC().Format(time.RFC3339)
	}
	return t.Date
}

// Resolve returns the instant of t; all-day dates resolve to midnight in loc.
func (t EventTime) Resolve(loc *time.Location) (time.Time, bool) {
	if t.DateTime != nil {
		return *t.DateTime, true
	}
	if t.Date == "" {
		return time.Time{}, false
	}
	d, err := planner.ParseDate(t.Date, loc)
	if err != nil {
		return time.Time{}, false
	}
	return d, true
}

// RawEvent is what a provider returns for one occurrence.
type RawEvent struct {
	ID          string
	Title       string
	Description string
	Location    string
	Start       EventTime
	End         EventTime
}

// CalendarEvent is a RawEvent decorated with its account and dedup status.
// ID is "<accountId>:<remote id>".
type CalendarEvent struct {
	ID            string    `json:"id"`
	AccountID     uint      `json:"accountId"`
	CalendarName  string    `json:"calendarName"`
	CalendarColor string    `json:"calendarColor"`
	ProviderEmail string    `json:"providerEmail,omitempty"`
	Title         string    `json:"title"`
	Description   string    `json:"description,omitempty"`
	Location      string    `json:"location,omitempty"`
	Start         EventTime `json:"start"`
	End           EventTime `json:"end"`
	AllDay        bool      `json:"allDay"`
	IsDuplicate   bool      `json:"isDuplicate"`
	Fingerprint   string    `json:"fingerprint"`
}

// FilterDuplicates drops every event marked as a duplicate.
func FilterDuplicates(events []CalendarEvent) []CalendarEvent {
	out := make([]CalendarEvent, 0, len(events))
	for _, e := range events {
		if !e.IsDuplicate {
			out = append(out, e)
		}
	}
	return out
}

// BusyIntervals converts timed events into busy intervals. All-day events and
// duplicates do not add busy time.
func BusyIntervals(events []CalendarEvent) []planner.Interval {
	out := make([]planner.Interval, 0, len(events))
	for _, e := range events {
		if e.AllDay || e.IsDuplicate || e.Start.DateTime == nil || e.End.DateTime == nil {
			continue
		}
		out = append(out, planner.Interval{Start: *e.Start.DateTime, End: *e.End.DateTime})
	}
	return out
}
