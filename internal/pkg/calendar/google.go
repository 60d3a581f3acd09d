package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/ManuelReschke/PlanFox/app/models"
)

const primaryCalendar = "primary"

// GoogleProvider talks to the Google Calendar API on behalf of connected accounts.
type GoogleProvider struct {
	oauth   *oauth2.Config
	options []option.ClientOption
}

// NewGoogleOAuthConfig builds the OAuth client used for connecting calendars.
func NewGoogleOAuthConfig(clientID, clientSecret, redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Endpoint:     google.Endpoint,
		Scopes:       []string{gcal.CalendarScope},
	}
}

// NewGoogleProvider creates the provider. Extra client options are appended to
// every API service (custom endpoints, HTTP clients).
func NewGoogleProvider(cfg *oauth2.Config, opts ...option.ClientOption) *GoogleProvider {
	return &GoogleProvider{oauth: cfg, options: opts}
}

// AuthCodeURL returns the consent URL. Offline access with forced consent makes
// Google hand out a refresh token on every connect.
func (p *GoogleProvider) AuthCodeURL(state string) string {
	return p.oauth.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange trades an authorization code for tokens.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	tok, err := p.oauth.Exchange(ctx, code)
	if err != nil {
		return nil, wrapGoogleError(err)
	}
	return tok, nil
}

// RefreshToken implements TokenRefresher.
func (p *GoogleProvider) RefreshToken(ctx context.Context, refreshToken string) (*oauth2.Token, error) {
	tok, err := p.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, wrapGoogleError(err)
	}
	return tok, nil
}

// PrimaryCalendar resolves the account email and name of the primary calendar.
func (p *GoogleProvider) PrimaryCalendar(ctx context.Context, accessToken string) (email, name string, err error) {
	svc, err := p.service(ctx, accessToken)
	if err != nil {
		return "", "", err
	}
	cal, err := svc.Calendars.Get(primaryCalendar).Context(ctx).Do()
	if err != nil {
		return "", "", wrapGoogleError(err)
	}
	return cal.Id, cal.Summary, nil
}

// ListEvents implements Provider. Recurring events are expanded by the API.
func (p *GoogleProvider) ListEvents(ctx context.Context, account *models.CalendarAccount, timeMin, timeMax time.Time) ([]RawEvent, error) {
	svc, err := p.service(ctx, account.AccessToken)
	if err != nil {
		return nil, err
	}

	events := []RawEvent{}
	call := svc.Events.List(calendarID(account)).
		TimeMin(timeMin.Format(time.RFC3339)).
		TimeMax(timeMax.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime")
	err = call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			if item.Status == "cancelled" {
				continue
			}
			events = append(events, fromGoogleEvent(item))
		}
		return nil
	})
	if err != nil {
		return nil, wrapGoogleError(err)
	}
	return events, nil
}

// InsertEvent creates a timed event and returns its remote id. taskID is kept
// in the private extended properties.
func (p *GoogleProvider) InsertEvent(ctx context.Context, account *models.CalendarAccount, taskID uint, title, description string, start, end time.Time) (string, error) {
	svc, err := p.service(ctx, account.AccessToken)
	if err != nil {
		return "", err
	}
	created, err := svc.Events.Insert(calendarID(account), planEvent(taskID, title, description, start, end)).Context(ctx).Do()
	if err != nil {
		return "", wrapGoogleError(err)
	}
	return created.Id, nil
}

// UpdateEvent moves or renames an event written by InsertEvent. A remote
// event the user deleted in the meantime yields ErrEventNotFound.
func (p *GoogleProvider) UpdateEvent(ctx context.Context, account *models.CalendarAccount, remoteID string, taskID uint, title, description string, start, end time.Time) error {
	svc, err := p.service(ctx, account.AccessToken)
	if err != nil {
		return err
	}
	_, err = svc.Events.Patch(calendarID(account), remoteID, planEvent(taskID, title, description, start, end)).Context(ctx).Do()
	if err == nil {
		return nil
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && (apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone) {
		return fmt.Errorf("%w: %v", ErrEventNotFound, err)
	}
	return wrapGoogleError(err)
}

func planEvent(taskID uint, title, description string, start, end time.Time) *gcal.Event {
	return &gcal.Event{
		Summary:     title,
		Description: description,
		Start:       &gcal.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:         &gcal.EventDateTime{DateTime: end.Format(time.RFC3339)},
		Reminders:   &gcal.EventReminders{UseDefault: true},
		ExtendedProperties: &gcal.EventExtendedProperties{
			Private: map[string]string{"planfoxTaskId": strconv.FormatUint(uint64(taskID), 10)},
		},
	}
}

func (p *GoogleProvider) service(ctx context.Context, accessToken string) (*gcal.Service, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
	opts := append([]option.ClientOption{option.WithTokenSource(ts)}, p.options...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderError, err)
	}
	return svc, nil
}

func calendarID(account *models.CalendarAccount) string {
	if account.CalendarID == "" {
		return primaryCalendar
	}
	return account.CalendarID
}

func fromGoogleEvent(item *gcal.Event) RawEvent {
	return RawEvent{
		ID:          item.Id,
		Title:       item.Summary,
		Description: item.Description,
		Location:    item.Location,
		Start:       fromGoogleTime(item.Start),
		End:         fromGoogleTime(item.End),
	}
}

func fromGoogleTime(t *gcal.EventDateTime) EventTime {
	if t == nil {
		return EventTime{}
	}
	if t.DateTime != "" {
		if parsed, err := time.Parse(time.RFC3339, t.DateTime); err == nil {
			return At(parsed)
		}
	}
	return OnDate(t.Date)
}

// wrapGoogleError maps 401 responses and rejected refresh tokens to
// ErrAuthExpired; everything else is ErrProviderError.
func wrapGoogleError(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusUnauthorized {
		return fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		if retrieveErr.ErrorCode == "invalid_grant" || (retrieveErr.Response != nil && retrieveErr.Response.StatusCode == http.StatusUnauthorized) {
			return fmt.Errorf("%w: %v", ErrAuthExpired, err)
		}
	}
	return fmt.Errorf("%w: %v", ErrProviderError, err)
}
