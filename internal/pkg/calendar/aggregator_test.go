package calendar

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ManuelReschke/PlanFox/app/models"
)

type staticAccounts struct {
	accounts []models.CalendarAccount
	err      error
}

func (s staticAccounts) ListEnabledByUser(userID uint) ([]models.CalendarAccount, error) {
	return s.accounts, s.err
}

type fakeSource struct {
	mu       sync.Mutex
	events   map[uint][]RawEvent
	errs     map[uint]error
	delay    map[uint]time.Duration
	inFlight int32
	maxSeen  int32
}

func (f *fakeSource) ListEvents(ctx context.Context, account *models.CalendarAccount, date string, loc *time.Location) ([]RawEvent, error) {
	n := atomic.AddInt32(&f.inFlight, 1)
	defer atomic.AddInt32(&f.inFlight, -1)
	for {
		max := atomic.LoadInt32(&f.maxSeen)
		if n <= max || atomic.CompareAndSwapInt32(&f.maxSeen, max, n) {
			break
		}
	}

	if d := f.delay[account.ID]; d > 0 {
		select {
		case <-time.After(d):
		case <-ctx.Done():
			return nil, &AccountError{AccountID: account.ID, Kind: ErrProviderError, Err: ctx.Err()}
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.errs[account.ID]; err != nil {
		return nil, err
	}
	return f.events[account.ID], nil
}

type recorder struct {
	mu       sync.Mutex
	fetches  map[uint]int
	failures map[uint]int
}

func (r *recorder) RecordFetch(accountID uint, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.fetches == nil {
		r.fetches = map[uint]int{}
		r.failures = map[uint]int{}
	}
	r.fetches[accountID]++
	if err != nil {
		r.failures[accountID]++
	}
}

func timed(id, title string, start, end time.Time) RawEvent {
	return RawEvent{ID: id, Title: title, Start: At(start), End: At(end)}
}

func clock(hour, min int) time.Time {
	return time.Date(2025, 3, 10, hour, min, 0, 0, time.UTC)
}

func twoAccounts() []models.CalendarAccount {
	return []models.CalendarAccount{
		{ID: 1, CalendarName: "Work", Color: "#4285F4", Enabled: true},
		{ID: 2, CalendarName: "Private", Color: "#0B8043", Enabled: true},
	}
}

func TestListAllEventsMarksDuplicates(t *testing.T) {
	source := &fakeSource{events: map[uint][]RawEvent{
		1: {timed("a1", "Standup", clock(9, 0), clock(9, 15))},
		2: {
			timed("b1", "standup ", clock(9, 0), clock(9, 15)),
			timed("b2", "Lunch", clock(12, 0), clock(13, 0)),
		},
	}}
	agg := NewAggregator(staticAccounts{accounts: twoAccounts()}, source)

	events := agg.ListAllEvents(context.Background(), 7, "2025-03-10", time.UTC)
	require.Len(t, events, 3)

	assert.Equal(t, "1:a1", events[0].ID)
	assert.False(t, events[0].IsDuplicate)
	assert.Equal(t, "Work", events[0].CalendarName)
	assert.Equal(t, "2:b1", events[1].ID)
	assert.True(t, events[1].IsDuplicate)
	assert.Equal(t, events[0].Fingerprint, events[1].Fingerprint)
	assert.Equal(t, "2:b2", events[2].ID)

	filtered := FilterDuplicates(events)
	require.Len(t, filtered, 2)
	assert.Equal(t, "1:a1", filtered[0].ID)
}

func TestListAllEventsOriginalFollowsAccountOrder(t *testing.T) {
	source := &fakeSource{
		events: map[uint][]RawEvent{
			1: {timed("a1", "Review", clock(10, 0), clock(11, 0))},
			2: {timed("b1", "Review", clock(10, 0), clock(11, 0))},
		},
		// the first account answers last
		delay: map[uint]time.Duration{1: 30 * time.Millisecond},
	}
	agg := NewAggregator(staticAccounts{accounts: twoAccounts()}, source, WithConcurrency(2))

	for i := 0; i < 3; i++ {
		events := agg.ListAllEvents(context.Background(), 7, "2025-03-10", time.UTC)
		require.Len(t, events, 2)
		assert.Equal(t, uint(1), events[0].AccountID)
		assert.False(t, events[0].IsDuplicate)
		assert.True(t, events[1].IsDuplicate)
	}
}

func TestListAllEventsToleratesFailingAccount(t *testing.T) {
	source := &fakeSource{
		events: map[uint][]RawEvent{2: {timed("b1", "Gym", clock(18, 0), clock(19, 0))}},
		errs:   map[uint]error{1: &AccountError{AccountID: 1, Kind: ErrAuthExpired}},
	}
	rec := &recorder{}
	agg := NewAggregator(staticAccounts{accounts: twoAccounts()}, source, WithFetchRecorder(rec))

	events := agg.ListAllEvents(context.Background(), 7, "2025-03-10", time.UTC)
	require.Len(t, events, 1)
	assert.Equal(t, "2:b1", events[0].ID)

	assert.Equal(t, 1, rec.fetches[1])
	assert.Equal(t, 1, rec.failures[1])
	assert.Equal(t, 0, rec.failures[2])
}

func TestListAllEventsTimesOutSlowAccount(t *testing.T) {
	source := &fakeSource{
		events: map[uint][]RawEvent{
			1: {timed("a1", "Slow", clock(9, 0), clock(10, 0))},
			2: {timed("b1", "Fast", clock(11, 0), clock(12, 0))},
		},
		delay: map[uint]time.Duration{1: time.Second},
	}
	agg := NewAggregator(staticAccounts{accounts: twoAccounts()}, source, WithAccountTimeout(20*time.Millisecond))

	events := agg.ListAllEvents(context.Background(), 7, "2025-03-10", time.UTC)
	require.Len(t, events, 1)
	assert.Equal(t, "2:b1", events[0].ID)
}

func TestListAllEventsSequentialMode(t *testing.T) {
	accounts := []models.CalendarAccount{{ID: 1}, {ID: 2}, {ID: 3}}
	source := &fakeSource{delay: map[uint]time.Duration{1: 5 * time.Millisecond, 2: 5 * time.Millisecond, 3: 5 * time.Millisecond}}
	agg := NewAggregator(staticAccounts{accounts: accounts}, source, WithConcurrency(1))

	events := agg.ListAllEvents(context.Background(), 7, "2025-03-10", time.UTC)
	assert.NotNil(t, events)
	assert.Empty(t, events)
	assert.Equal(t, int32(1), atomic.LoadInt32(&source.maxSeen))
}

func TestListAllEventsSortsAllDayFirst(t *testing.T) {
	source := &fakeSource{events: map[uint][]RawEvent{
		1: {
			timed("late", "Dinner", clock(19, 0), clock(20, 0)),
			{ID: "holiday", Title: "Holiday", Start: OnDate("2025-03-10"), End: OnDate("2025-03-11")},
			timed("early", "Run", clock(6, 0), clock(7, 0)),
		},
	}}
	agg := NewAggregator(staticAccounts{accounts: twoAccounts()[:1]}, source)

	events := agg.ListAllEvents(context.Background(), 7, "2025-03-10", time.UTC)
	require.Len(t, events, 3)
	assert.Equal(t, "1:holiday", events[0].ID)
	assert.True(t, events[0].AllDay)
	assert.Equal(t, "1:early", events[1].ID)
	assert.Equal(t, "1:late", events[2].ID)

	busy := BusyIntervals(events)
	require.Len(t, busy, 2)
	assert.Equal(t, clock(6, 0), busy[0].Start)
}

func TestListAllEventsAccountListFailure(t *testing.T) {
	agg := NewAggregator(staticAccounts{err: errors.New("db down")}, &fakeSource{})

	events := agg.ListAllEvents(context.Background(), 7, "2025-03-10", time.UTC)
	assert.NotNil(t, events)
	assert.Empty(t, events)
}

func TestFingerprint(t *testing.T) {
	a := Fingerprint("Team  Sync", "2025-03-10T09:00:00Z", "2025-03-10T09:30:00Z")
	b := Fingerprint(" team sync", "2025-03-10T09:00:00Z", "2025-03-10T09:30:00Z")
	c := Fingerprint("Team Sync", "2025-03-10T09:00:00Z", "2025-03-10T10:00:00Z")

	assert.Len(t, a, 16)
	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)

	// same instant reported in two offsets
	berlin := time.FixedZone("CET", 3600)
	e1 := timed("x", "Sync", clock(9, 0), clock(9, 30))
	e2 := timed("y", "Sync", clock(9, 0).In(berlin), clock(9, 30).In(berlin))
	assert.Equal(t, EventFingerprint(e1), EventFingerprint(e2))
}
