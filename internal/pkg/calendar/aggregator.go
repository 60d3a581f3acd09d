package calendar

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"golang.org/x/sync/errgroup"

	"github.com/ManuelReschke/PlanFox/app/models"
)

const (
	defaultAccountTimeout   = 8 * time.Second
	defaultFetchConcurrency = 4
)

// AccountLister returns a user's enabled accounts in a stable order.
type AccountLister interface {
	ListEnabledByUser(userID uint) ([]models.CalendarAccount, error)
}

// EventSource fetches one account's raw events for a date. *Client implements it.
type EventSource interface {
	ListEvents(ctx context.Context, account *models.CalendarAccount, date string, loc *time.Location) ([]RawEvent, error)
}

// FetchRecorder is told about every account fetch and its outcome.
type FetchRecorder interface {
	RecordFetch(accountID uint, err error)
}

// Aggregator merges the events of all enabled accounts of a user into one
// timeline. A failing account is logged and skipped; it never fails the whole call.
type Aggregator struct {
	accounts    AccountLister
	source      EventSource
	recorder    FetchRecorder
	timeout     time.Duration
	concurrency int
}

type AggregatorOption func(*Aggregator)

// WithConcurrency sets how many accounts are fetched in parallel; 1 is sequential.
func WithConcurrency(n int) AggregatorOption {
	return func(a *Aggregator) {
		if n > 0 {
			a.concurrency = n
		}
	}
}

// WithAccountTimeout caps each account fetch.
func WithAccountTimeout(d time.Duration) AggregatorOption {
	return func(a *Aggregator) {
		if d > 0 {
			a.timeout = d
		}
	}
}

func WithFetchRecorder(r FetchRecorder) AggregatorOption {
	return func(a *Aggregator) { a.recorder = r }
}

func NewAggregator(accounts AccountLister, source EventSource, opts ...AggregatorOption) *Aggregator {
	a := &Aggregator{
		accounts:    accounts,
		source:      source,
		timeout:     defaultAccountTimeout,
		concurrency: defaultFetchConcurrency,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// ListAllEvents returns every event of the user's enabled accounts on date,
// sorted by start. The first occurrence of a fingerprint (in account order)
// is the original; later ones are marked IsDuplicate. The result is never nil.
func (a *Aggregator) ListAllEvents(ctx context.Context, userID uint, date string, loc *time.Location) []CalendarEvent {
	if loc == nil {
		loc = time.UTC
	}

	accounts, err := a.accounts.ListEnabledByUser(userID)
	if err != nil {
		log.Errorf("[Aggregator] Failed to list accounts for user %d: %v", userID, err)
		return []CalendarEvent{}
	}
	if len(accounts) == 0 {
		return []CalendarEvent{}
	}

	results := make([][]RawEvent, len(accounts))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.concurrency)
	for i := range accounts {
		g.Go(func() error {
			account := accounts[i]
			actx, cancel := context.WithTimeout(gctx, a.timeout)
			defer cancel()

			events, err := a.source.ListEvents(actx, &account, date, loc)
			if a.recorder != nil {
				a.recorder.RecordFetch(account.ID, err)
			}
			if err != nil {
				log.Warnf("[Aggregator] Skipping account %d (%s) for user %d: %v", account.ID, account.CalendarName, userID, err)
				return nil
			}
			results[i] = events
			return nil
		})
	}
	_ = g.Wait()

	// dedup runs single-threaded in account order so the original is stable
	seen := make(map[string]struct{})
	merged := []CalendarEvent{}
	for i, account := range accounts {
		for _, raw := range results[i] {
			fp := EventFingerprint(raw)
			_, dup := seen[fp]
			seen[fp] = struct{}{}
			merged = append(merged, decorate(raw, &account, fp, dup))
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return effectiveStart(merged[i], loc).Before(effectiveStart(merged[j], loc))
	})
	return merged
}

func decorate(raw RawEvent, account *models.CalendarAccount, fp string, dup bool) CalendarEvent {
	return CalendarEvent{
		ID:            fmt.Sprintf("%d:%s", account.ID, raw.ID),
		AccountID:     account.ID,
		CalendarName:  account.CalendarName,
		CalendarColor: account.Color,
		ProviderEmail: account.ProviderEmail,
		Title:         raw.Title,
		Description:   raw.Description,
		Location:      raw.Location,
		Start:         raw.Start,
		End:           raw.End,
		AllDay:        raw.Start.IsAllDay(),
		IsDuplicate:   dup,
		Fingerprint:   fp,
	}
}

// effectiveStart orders events without a start first.
func effectiveStart(e CalendarEvent, loc *time.Location) time.Time {
	t, ok := e.Start.Resolve(loc)
	if !ok {
		return time.Time{}
	}
	return t
}
