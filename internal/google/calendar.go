package google

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"courtbook/internal/config"
	"courtbook/internal/models"
	"courtbook/internal/timeslot"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

// ErrNotLinked is returned for owners that never granted calendar access.
var ErrNotLinked = errors.New("owner has no linked calendar")

const reservationProperty = "courtbook_reservation_id"

// CalendarClient writes reservations into the owner's Google Calendar using
// the refresh token captured when the owner linked the calendar.
type CalendarClient struct {
	oauth      *oauth2.Config
	calendarID string
	timeZone   string
	loc        *time.Location
	newService func(ctx context.Context, owner *models.Owner) (*calendar.Service, error)
}

func NewCalendarClient(cfg config.GoogleConfig, loc *time.Location) *CalendarClient {
	if loc == nil {
		loc = time.UTC
	}
	c := &CalendarClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     googleoauth.Endpoint,
			Scopes:       []string{calendar.CalendarEventsScope},
		},
		calendarID: cfg.CalendarID,
		timeZone:   cfg.TimeZone,
		loc:        loc,
	}
	if c.calendarID == "" {
		c.calendarID = "primary"
	}
	if c.timeZone == "" {
		c.timeZone = loc.String()
	}
	c.newService = c.ownerService
	return c
}

func (c *CalendarClient) ownerService(ctx context.Context, owner *models.Owner) (*calendar.Service, error) {
	if owner == nil || owner.CalendarRefreshToken == "" {
		return nil, ErrNotLinked
	}
	ts := c.oauth.TokenSource(ctx, &oauth2.Token{RefreshToken: owner.CalendarRefreshToken})
	srv, err := calendar.NewService(ctx, option.WithTokenSource(ts))
	if err != nil {
		return nil, fmt.Errorf("unable to create Calendar service: %w", err)
	}
	return srv, nil
}

// UpsertEvent creates or updates the event mirroring res and returns its id.
func (c *CalendarClient) UpsertEvent(ctx context.Context, res *models.Reservation, owner *models.Owner) (string, error) {
	srv, err := c.newService(ctx, owner)
	if err != nil {
		return "", err
	}

	event := c.eventFor(res)
	if res.CalendarEventID != "" {
		updated, err := srv.Events.Update(c.calendarID, res.CalendarEventID, event).Context(ctx).Do()
		if err == nil {
			return updated.Id, nil
		}
		if !isGone(err) {
			return "", fmt.Errorf("failed to update calendar event %s: %w", res.CalendarEventID, err)
		}
	}

	created, err := srv.Events.Insert(c.calendarID, event).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to insert calendar event: %w", err)
	}
	return created.Id, nil
}

// DeleteEvent removes an event. Events already deleted count as success.
func (c *CalendarClient) DeleteEvent(ctx context.Context, eventID string, owner *models.Owner) error {
	if eventID == "" {
		return nil
	}
	srv, err := c.newService(ctx, owner)
	if err != nil {
		return err
	}
	if err := srv.Events.Delete(c.calendarID, eventID).Context(ctx).Do(); err != nil && !isGone(err) {
		return fmt.Errorf("failed to delete calendar event %s: %w", eventID, err)
	}
	return nil
}

func (c *CalendarClient) eventFor(res *models.Reservation) *calendar.Event {
	start := timeslot.At(res.Date, res.StartTime, c.loc)
	end := timeslot.At(res.Date, res.EndTime, c.loc)
	return &calendar.Event{
		Summary:     "Court booking",
		Description: fmt.Sprintf("Reservation %s (%d min, %s)", res.ID, res.DurationMinutes, res.Status),
		Start:       &calendar.EventDateTime{DateTime: start.Format(time.RFC3339), TimeZone: c.timeZone},
		End:         &calendar.EventDateTime{DateTime: end.Format(time.RFC3339), TimeZone: c.timeZone},
		ExtendedProperties: &calendar.EventExtendedProperties{
			Private: map[string]string{reservationProperty: res.ID},
		},
	}
}

func isGone(err error) bool {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone
	}
	return false
}
