package calendar

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"
	"github.com/gofiber/fiber/v2/log"
	"github.com/teambition/rrule-go"

	"github.com/ManuelReschke/PlanFox/app/models"
)

const (
	icsFetchTimeout    = 15 * time.Second
	icsMaxBodyBytes    = 10 << 20
	icsMaxOccurrences  = 500
	icsRecurrenceIDKey = "RECURRENCE-ID"
)

// ICSProvider reads subscribed iCalendar feeds. The feed URL is stored in the
// account's CalendarID; no credentials are involved.
type ICSProvider struct {
	httpClient *http.Client
}

func NewICSProvider(httpClient *http.Client) *ICSProvider {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: icsFetchTimeout}
	}
	return &ICSProvider{httpClient: httpClient}
}

// ListEvents implements Provider.
func (p *ICSProvider) ListEvents(ctx context.Context, account *models.CalendarAccount, timeMin, timeMax time.Time) ([]RawEvent, error) {
	body, err := p.fetch(ctx, account.CalendarID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderError, err)
	}
	events, err := ParseFeed(body, timeMin, timeMax)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderError, err)
	}
	return events, nil
}

// Validate fetches and parses the feed once so broken URLs are rejected on subscribe.
func (p *ICSProvider) Validate(ctx context.Context, feedURL string) error {
	body, err := p.fetch(ctx, feedURL)
	if err != nil {
		return err
	}
	_, err = ical.ParseCalendar(bytes.NewReader(body))
	return err
}

// NormalizeFeedURL rewrites webcal:// to https:// and rejects other schemes.
func NormalizeFeedURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	lower := strings.ToLower(raw)
	switch {
	case strings.HasPrefix(lower, "webcal://"):
		return "https://" + raw[len("webcal://"):], nil
	case strings.HasPrefix(lower, "https://"), strings.HasPrefix(lower, "http://"):
		return raw, nil
	default:
		return "", errors.New("feed URL must use http, https or webcal")
	}
}

func (p *ICSProvider) fetch(ctx context.Context, feedURL string) ([]byte, error) {
	feedURL, err := NormalizeFeedURL(feedURL)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "text/calendar")

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed returned status %d", resp.StatusCode)
	}
	return io.ReadAll(io.LimitReader(resp.Body, icsMaxBodyBytes))
}

type icsEvent struct {
	uid         string
	title       string
	description string
	location    string
	start       time.Time
	end         time.Time
	allDay      bool
	rrule       string
	exDates     []time.Time
	recurrence  *time.Time
}

// ParseFeed parses an iCalendar payload and returns the occurrences that
// overlap [timeMin, timeMax]. Recurring events are expanded and RECURRENCE-ID
// overrides replace the instance they point at.
func ParseFeed(body []byte, timeMin, timeMax time.Time) ([]RawEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("empty ICS body")
	}
	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	loc := timeMin.Location()

	var bases, overrides []icsEvent
	for _, ve := range cal.Events() {
		ev, err := parseVEvent(ve, loc)
		if err != nil {
			log.Debugf("[ICS] Skipping event: %v", err)
			continue
		}
		if ev.recurrence != nil {
			overrides = append(overrides, ev)
		} else {
			bases = append(bases, ev)
		}
	}

	overridden := make(map[string]bool, len(overrides))
	for _, o := range overrides {
		overridden[overrideKey(o.uid, *o.recurrence)] = true
	}

	events := []RawEvent{}
	for _, ev := range bases {
		if ev.rrule == "" {
			if overlaps(ev.start, ev.end, timeMin, timeMax) {
				events = append(events, ev.raw(ev.uid, ev.start, ev.end))
			}
			continue
		}
		for _, occ := range expandRecurring(ev, timeMin, timeMax) {
			if overridden[overrideKey(ev.uid, occ)] {
				continue
			}
			end := occ.Add(ev.end.Sub(ev.start))
			if overlaps(occ, end, timeMin, timeMax) {
				events = append(events, ev.raw(instanceID(ev.uid, occ), occ, end))
			}
		}
	}
	for _, o := range overrides {
		if overlaps(o.start, o.end, timeMin, timeMax) {
			events = append(events, o.raw(instanceID(o.uid, *o.recurrence), o.start, o.end))
		}
	}

	return events, nil
}

func parseVEvent(ve *ical.VEvent, loc *time.Location) (icsEvent, error) {
	var ev icsEvent

	uid := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uid == nil || uid.Value == "" {
		return ev, errors.New("missing UID")
	}
	ev.uid = uid.Value
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		ev.title = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		ev.description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		ev.location = p.Value
	}

	dtStart := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStart == nil {
		return ev, fmt.Errorf("event %s has no DTSTART", ev.uid)
	}
	ev.allDay = isDateValue(dtStart)

	if ev.allDay {
		start, err := time.ParseInLocation("20060102", strings.TrimSpace(dtStart.Value), loc)
		if err != nil {
			return ev, err
		}
		ev.start = start
		ev.end = start.AddDate(0, 0, 1)
		if dtEnd := ve.GetProperty(ical.ComponentPropertyDtEnd); dtEnd != nil {
			if end, err := time.ParseInLocation("20060102", strings.TrimSpace(dtEnd.Value), loc); err == nil && end.After(start) {
				ev.end = end
			}
		}
	} else {
		start, err := ve.GetStartAt()
		if err != nil {
			return ev, err
		}
		ev.start = start
		ev.end = start
		if end, err := ve.GetEndAt(); err == nil && end.After(start) {
			ev.end = end
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		ev.rrule = p.Value
	}
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		exLoc := paramLocation(p, ev.start.Location())
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, exLoc); err == nil {
				ev.exDates = append(ev.exDates, t)
			}
		}
	}
	if p := ve.GetProperty(icsRecurrenceIDKey); p != nil {
		if t, err := parseICSTime(p.Value, paramLocation(p, ev.start.Location())); err == nil {
			ev.recurrence = &t
		}
	}

	return ev, nil
}

func (ev icsEvent) raw(id string, start, end time.Time) RawEvent {
	out := RawEvent{
		ID:          id,
		Title:       ev.title,
		Description: ev.description,
		Location:    ev.location,
	}
	if ev.allDay {
		out.Start = OnDate(start.Format("2006-01-02"))
		out.End = OnDate(end.Format("2006-01-02"))
	} else {
		out.Start = At(start)
		out.End = At(end)
	}
	return out
}

func expandRecurring(ev icsEvent, timeMin, timeMax time.Time) []time.Time {
	r, err := rrule.StrToRRule(ev.rrule)
	if err != nil {
		log.Debugf("[ICS] Invalid RRULE %q on %s: %v", ev.rrule, ev.uid, err)
		return nil
	}
	r.DTStart(ev.start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range ev.exDates {
		set.ExDate(ex.In(ev.start.Location()))
	}

	// occurrences starting before the window may still run into it
	from := timeMin.Add(-ev.end.Sub(ev.start)).In(ev.start.Location())
	occ := set.Between(from, timeMax.In(ev.start.Location()), true)
	if len(occ) > icsMaxOccurrences {
		occ = occ[:icsMaxOccurrences]
	}
	return occ
}

func isDateValue(p *ical.IANAProperty) bool {
	if vs, ok := p.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		return true
	}
	return !strings.Contains(p.Value, "T")
}

func paramLocation(p *ical.IANAProperty, def *time.Location) *time.Location {
	if tz, ok := p.ICalParameters["TZID"]; ok && len(tz) > 0 {
		if loc, err := time.LoadLocation(tz[0]); err == nil {
			return loc
		}
	}
	return def
}

func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

func overlaps(start, end, timeMin, timeMax time.Time) bool {
	if !end.After(start) {
		return !start.Before(timeMin) && !start.After(timeMax)
	}
	return start.Before(timeMax) && end.After(timeMin)
}

func overrideKey(uid string, t time.Time) string {
	return uid + "|" + t.UTC().Format(time.RFC3339)
}

func instanceID(uid string, t time.Time) string {
	return uid + "_" + t.UTC().Format("20060102T150405Z")
}
