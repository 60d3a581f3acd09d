package calendar

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/ManuelReschke/PlanFox/app/models"
	"github.com/ManuelReschke/PlanFox/internal/pkg/planner"
)

const (
	// tokenLeeway refreshes tokens slightly before they expire.
	tokenLeeway = 30 * time.Second

	refreshLockTTL      = 30 * time.Second
	refreshWaitAttempts = 10
	refreshWaitStep     = 200 * time.Millisecond
)

// Provider lists raw events of one account between timeMin and timeMax.
type Provider interface {
	ListEvents(ctx context.Context, account *models.CalendarAccount, timeMin, timeMax time.Time) ([]RawEvent, error)
}

// TokenRefresher exchanges a refresh token for a new access token.
type TokenRefresher interface {
	RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error)
}

// CredentialStore persists refreshed credentials.
type CredentialStore interface {
	GetAccount(id uint) (*models.CalendarAccount, error)
	UpdateAccountCredential(id uint, accessToken string, expiresAt *time.Time) error
}

// DistributedLock coordinates refreshes between processes (see cache.Locker).
type DistributedLock interface {
	Acquire(ctx context.Context, key string, token string, ttl time.Duration) (bool, error)
	Release(ctx context.Context, key string, token string) error
}

// Client fetches one account's events for a date and keeps its credentials
// fresh. Concurrent refreshes of the same account collapse into one.
type Client struct {
	providers map[string]Provider
	refresher TokenRefresher
	store     CredentialStore
	dist      DistributedLock
	locks     keyedMutex
	now       func() time.Time
}

type ClientOption func(*Client)

// WithDistributedLock makes refreshes exclusive across processes too.
func WithDistributedLock(l DistributedLock) ClientOption {
	return func(c *Client) { c.dist = l }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) ClientOption {
	return func(c *Client) { c.now = now }
}

func NewClient(store CredentialStore, refresher TokenRefresher, opts ...ClientOption) *Client {
	c := &Client{
		providers: make(map[string]Provider),
		refresher: refresher,
		store:     store,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// RegisterProvider binds a provider to a models.CalendarProvider* name.
func (c *Client) RegisterProvider(name string, p Provider) {
	c.providers[name] = p
}

// ListEvents returns the raw events of account on date (YYYY-MM-DD in loc).
// Failures are *AccountError of kind ErrAuthExpired or ErrProviderError.
func (c *Client) ListEvents(ctx context.Context, account *models.CalendarAccount, date string, loc *time.Location) ([]RawEvent, error) {
	timeMin, timeMax, err := planner.DayBounds(date, loc)
	if err != nil {
		return nil, err
	}
	// inclusive end of day
	timeMax = timeMax.Add(-time.Second)

	name := account.Provider
	if name == "" {
		name = models.CalendarProviderGoogle
	}
	p, ok := c.providers[name]
	if !ok {
		return nil, &AccountError{AccountID: account.ID, Kind: ErrProviderError, Err: fmt.Errorf("unknown provider %q", name)}
	}

	if account.NeedsCredentials() {
		account, err = c.EnsureCredential(ctx, account)
		if err != nil {
			return nil, err
		}
	}

	events, err := p.ListEvents(ctx, account, timeMin, timeMax)
	if err != nil {
		return nil, classify(account.ID, err)
	}
	return events, nil
}

// EnsureCredential returns account with a usable access token, refreshing it
// when it is missing or about to expire. A failed refresh falls back to the
// stored token while one exists.
func (c *Client) EnsureCredential(ctx context.Context, account *models.CalendarAccount) (*models.CalendarAccount, error) {
	if !account.TokenExpired(c.now(), tokenLeeway) {
		return account, nil
	}
	if account.RefreshToken == "" || c.refresher == nil {
		return nil, &AccountError{AccountID: account.ID, Kind: ErrAuthExpired, Err: errors.New("no refresh token stored")}
	}

	refreshed, err := c.refresh(ctx, account, tokenLeeway)
	if err != nil {
		if account.AccessToken == "" || errors.Is(err, ErrAuthExpired) {
			return nil, classify(account.ID, err)
		}
		log.Warnf("[CalendarClient] Refresh for account %d failed, using stored token: %v", account.ID, err)
		return account, nil
	}
	return refreshed, nil
}

// RefreshAhead renews the credential when it expires within ahead. Used by the
// background sweep, so unlike EnsureCredential it never falls back to the stored token.
func (c *Client) RefreshAhead(ctx context.Context, account *models.CalendarAccount, ahead time.Duration) (*models.CalendarAccount, error) {
	if ahead < tokenLeeway {
		ahead = tokenLeeway
	}
	if !account.TokenExpired(c.now(), ahead) {
		return account, nil
	}
	if account.RefreshToken == "" || c.refresher == nil {
		return nil, &AccountError{AccountID: account.ID, Kind: ErrAuthExpired, Err: errors.New("no refresh token stored")}
	}
	refreshed, err := c.refresh(ctx, account, ahead)
	if err != nil {
		return nil, classify(account.ID, err)
	}
	return refreshed, nil
}

func (c *Client) refresh(ctx context.Context, account *models.CalendarAccount, leeway time.Duration) (*models.CalendarAccount, error) {
	unlock := c.locks.lock(account.ID)
	defer unlock()

	if c.dist != nil {
		key := fmt.Sprintf("calendar:refresh:%d", account.ID)
		token := uuid.NewString()
		for attempt := 0; ; attempt++ {
			ok, err := c.dist.Acquire(ctx, key, token, refreshLockTTL)
			if err != nil {
				log.Warnf("[CalendarClient] Refresh lock unavailable for account %d: %v", account.ID, err)
				break
			}
			if ok {
				defer c.dist.Release(context.Background(), key, token)
				break
			}
			if stored, fresh := c.reload(account, leeway); fresh {
				return stored, nil
			}
			if attempt >= refreshWaitAttempts {
				break
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(refreshWaitStep):
			}
		}
	}

	// another caller may have refreshed while we waited for the lock
	current := account
	stored, fresh := c.reload(account, leeway)
	if fresh {
		return stored, nil
	}
	if stored != nil {
		current = stored
	}
	if current.RefreshToken == "" {
		return nil, fmt.Errorf("%w: no refresh token stored", ErrAuthExpired)
	}

	tok, err := c.refresher.RefreshToken(ctx, current.RefreshToken)
	if err != nil {
		return nil, err
	}

	var expiresAt *time.Time
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		expiresAt = &exp
	}
	if err := c.store.UpdateAccountCredential(current.ID, tok.AccessToken, expiresAt); err != nil {
		log.Errorf("[CalendarClient] Failed to persist refreshed token for account %d: %v", current.ID, err)
	}

	updated := *current
	updated.AccessToken = tok.AccessToken
	updated.ExpiresAt = expiresAt
	log.Infof("[CalendarClient] Refreshed credentials for account %d", current.ID)
	return &updated, nil
}

// reload reads the stored account and reports whether its token is already
// fresh. stored is nil when the account could not be read.
func (c *Client) reload(account *models.CalendarAccount, leeway time.Duration) (stored *models.CalendarAccount, fresh bool) {
	stored, err := c.store.GetAccount(account.ID)
	if err != nil || stored == nil {
		return nil, false
	}
	return stored, !stored.TokenExpired(c.now(), leeway)
}

// keyedMutex hands out one mutex per account id.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[uint]*sync.Mutex
}

func (k *keyedMutex) lock(id uint) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[uint]*sync.Mutex)
	}
	m, ok := k.locks[id]
	if !ok {
		m = &sync.Mutex{}
		k.locks[id] = m
	}
	k.mu.Unlock()

	m.Lock()
	return m.Unlock
}
