package jobqueue

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/ManuelReschke/PlanFox/app/models"
	"github.com/ManuelReschke/PlanFox/internal/pkg/calendar"
)

// AccountStore is the part of the calendar account repository the jobs use
type AccountStore interface {
	GetAccount(id uint) (*models.CalendarAccount, error)
	ListEnabledByUser(userID uint) ([]models.CalendarAccount, error)
	ListExpiring(before time.Time) ([]models.CalendarAccount, error)
	FindSynced(accountID, taskID uint, date string) (*models.SyncedEvent, error)
	SaveSynced(event *models.SyncedEvent) error
}

// PlanReader loads a stored daily plan, nil when the date has none
type PlanReader interface {
	GetPlan(userID uint, date string) (*models.DailyPlan, error)
}

// CredentialKeeper renews OAuth credentials through the per-account refresh lock
type CredentialKeeper interface {
	EnsureCredential(ctx context.Context, account *models.CalendarAccount) (*models.CalendarAccount, error)
	RefreshAhead(ctx context.Context, account *models.CalendarAccount, ahead time.Duration) (*models.CalendarAccount, error)
}

// EventWriter creates and moves events in a remote calendar
type EventWriter interface {
	InsertEvent(ctx context.Context, account *models.CalendarAccount, taskID uint, title, description string, start, end time.Time) (string, error)
	UpdateEvent(ctx context.Context, account *models.CalendarAccount, remoteID string, taskID uint, title, description string, start, end time.Time) error
}

// Processors holds what the job handlers need. Events stays nil when Google
// Calendar is not configured; plan push jobs are dropped then.
type Processors struct {
	Accounts     AccountStore
	Plans        PlanReader
	Credentials  CredentialKeeper
	Events       EventWriter
	RefreshAhead time.Duration
}

var errNotConfigured = errors.New("job processors not configured")

// processCalendarRefreshJob renews one account's credential ahead of expiry
func (q *Queue) processCalendarRefreshJob(ctx context.Context, job *Job) error {
	p := q.processors
	if p == nil || p.Accounts == nil || p.Credentials == nil {
		return errNotConfigured
	}
	payload, err := CalendarRefreshJobPayloadFromMap(job.Payload)
	if err != nil {
		return permanent(fmt.Errorf("invalid calendar refresh payload: %w", err))
	}

	account, err := p.Accounts.GetAccount(payload.AccountID)
	if err != nil {
		return fmt.Errorf("load account %d: %w", payload.AccountID, err)
	}
	if !account.Enabled || !account.NeedsCredentials() {
		log.Debugf("[JobQueue] Account %d needs no refresh", account.ID)
		return nil
	}

	if _, err := p.Credentials.RefreshAhead(ctx, account, p.RefreshAhead); err != nil {
		if errors.Is(err, calendar.ErrAuthExpired) {
			// retrying cannot help until the user reconnects
			log.Warnf("[JobQueue] Account %d needs to be reconnected: %v", account.ID, err)
			return nil
		}
		return err
	}
	return nil
}

// processPlanPushJob writes the time-boxed entries of a daily plan to the
// user's first enabled Google account. Entries pushed before with the same
// title and slot are skipped; changed ones update their existing event.
func (q *Queue) processPlanPushJob(ctx context.Context, job *Job) error {
	p := q.processors
	if p == nil || p.Accounts == nil || p.Plans == nil || p.Credentials == nil {
		return errNotConfigured
	}
	if p.Events == nil {
		log.Warnf("[JobQueue] Plan push %s dropped: Google Calendar is not configured", job.ID)
		return nil
	}
	payload, err := PlanPushJobPayloadFromMap(job.Payload)
	if err != nil {
		return permanent(fmt.Errorf("invalid plan push payload: %w", err))
	}

	plan, err := p.Plans.GetPlan(payload.UserID, payload.Date)
	if err != nil {
		return fmt.Errorf("load plan: %w", err)
	}
	if plan == nil {
		log.Infof("[JobQueue] No plan for user %d on %s, nothing to push", payload.UserID, payload.Date)
		return nil
	}

	account, err := firstGoogleAccount(p.Accounts, payload.UserID)
	if err != nil {
		return err
	}
	if account == nil {
		log.Infof("[JobQueue] User %d has no enabled Google account, skipping plan push", payload.UserID)
		return nil
	}
	account, err = p.Credentials.EnsureCredential(ctx, account)
	if err != nil {
		if errors.Is(err, calendar.ErrAuthExpired) {
			log.Warnf("[JobQueue] Plan push for user %d: account needs to be reconnected: %v", payload.UserID, err)
			return nil
		}
		return err
	}

	pushed, updated, skipped := 0, 0, 0
	for _, entry := range plan.Entries {
		if !entry.HasTimeSlot() || entry.Task == nil {
			continue
		}
		start, end := entry.TimeSlotStart.UTC(), entry.TimeSlotEnd.UTC()
		fp := calendar.Fingerprint(entry.Task.Title, start.Format(time.RFC3339), end.Format(time.RFC3339))

		existing, err := p.Accounts.FindSynced(account.ID, entry.TaskID, payload.Date)
		if err != nil {
			return fmt.Errorf("lookup synced event: %w", err)
		}
		if existing != nil && existing.Fingerprint == fp {
			skipped++
			continue
		}

		remoteID := ""
		if existing != nil && existing.RemoteEventID != "" {
			err := p.Events.UpdateEvent(ctx, account, existing.RemoteEventID, entry.TaskID, entry.Task.Title, entry.Task.Description, start, end)
			switch {
			case err == nil:
				remoteID = existing.RemoteEventID
			case errors.Is(err, calendar.ErrEventNotFound):
				log.Infof("[JobQueue] Event %s of task %d is gone remotely, pushing it again", existing.RemoteEventID, entry.TaskID)
			default:
				return fmt.Errorf("update task %d: %w", entry.TaskID, err)
			}
		}
		if remoteID == "" {
			remoteID, err = p.Events.InsertEvent(ctx, account, entry.TaskID, entry.Task.Title, entry.Task.Description, start, end)
			if err != nil {
				return fmt.Errorf("push task %d: %w", entry.TaskID, err)
			}
			pushed++
		} else {
			updated++
		}
		if err := p.Accounts.SaveSynced(&models.SyncedEvent{
			UserID:        payload.UserID,
			AccountID:     account.ID,
			TaskID:        entry.TaskID,
			PlanDate:      payload.Date,
			RemoteEventID: remoteID,
			Fingerprint:   fp,
		}); err != nil {
			return fmt.Errorf("record synced event: %w", err)
		}
	}

	log.Infof("[JobQueue] Pushed %d plan entries for user %d on %s (%d moved, %d unchanged)", pushed, payload.UserID, payload.Date, updated, skipped)
	return nil
}

func firstGoogleAccount(accounts AccountStore, userID uint) (*models.CalendarAccount, error) {
	list, err := accounts.ListEnabledByUser(userID)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	for i := range list {
		if strings.EqualFold(list[i].Provider, models.CalendarProviderGoogle) || list[i].Provider == "" {
			return &list[i], nil
		}
	}
	return nil, nil
}

// EnqueueExpiringRefreshes queues a calendar_refresh job for every Google
// account whose token expires within ahead of now. An account already queued
// within the same window is skipped.
func (q *Queue) EnqueueExpiringRefreshes(now time.Time, ahead time.Duration) (int, error) {
	if q.processors == nil || q.processors.Accounts == nil {
		return 0, errNotConfigured
	}
	accounts, err := q.processors.Accounts.ListExpiring(now.Add(ahead))
	if err != nil {
		return 0, err
	}
	window := ahead
	if window < time.Minute {
		window = time.Minute
	}
	queued := 0
	for _, account := range accounts {
		job, err := q.EnqueueUnique(JobTypeCalendarRefresh, strconv.FormatUint(uint64(account.ID), 10),
			CalendarRefreshJobPayload{AccountID: account.ID}.ToMap(), window)
		if err != nil {
			return queued, err
		}
		if job != nil {
			queued++
		}
	}
	return queued, nil
}
