package providergw

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/emersion/go-ical"
	"github.com/emersion/go-webdav"
	"github.com/emersion/go-webdav/caldav"
)

// CalConnectionConfig is the per-connectionId credential set a
// CalendarAdapter needs to reach one user's CalDAV calendar.
type CalConnectionConfig struct {
	BaseURL      string
	Username     string
	Password     string
	CalendarPath string
}

// CalConnectionResolver looks up CalDAV credentials for a connectionId.
type CalConnectionResolver interface {
	ResolveCalConnection(connectionID string) (CalConnectionConfig, error)
}

// CalendarAdapter backs fetch_calendar_events/create_calendar_event-style
// tools over CalDAV (grounded on the retrieval pack's
// nugget-thane-ai-agent manifest, which wires emersion/go-webdav).
type CalendarAdapter struct {
	resolver CalConnectionResolver

	mu      sync.Mutex
	clients map[string]*caldav.Client
}

// NewCalendarAdapter builds a CalendarAdapter over the given resolver.
func NewCalendarAdapter(resolver CalConnectionResolver) *CalendarAdapter {
	return &CalendarAdapter{resolver: resolver, clients: make(map[string]*caldav.Client)}
}

func (a *CalendarAdapter) client(connectionID string) (*caldav.Client, CalConnectionConfig, error) {
	cfg, err := a.resolver.ResolveCalConnection(connectionID)
	if err != nil {
		return nil, cfg, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if c, ok := a.clients[connectionID]; ok {
		return c, cfg, nil
	}

	httpClient := webdav.HTTPClientWithBasicAuth(&http.Client{}, cfg.Username, cfg.Password)
	c, err := caldav.NewClient(httpClient, cfg.BaseURL)
	if err != nil {
		return nil, cfg, fmt.Errorf("caldav client: %w", err)
	}
	a.clients[connectionID] = c
	return c, cfg, nil
}

// Warm issues a PROPFIND-backed calendar-home lookup as the lightweight
// identity call.
func (a *CalendarAdapter) Warm(ctx context.Context, connectionID string) error {
	c, cfg, err := a.client(connectionID)
	if err != nil {
		return err
	}
	_, err = c.FindCalendarHomeSet(ctx, cfg.Username)
	return err
}

// FetchFromCache lists events in the configured calendar whose DTSTART
// falls within the requested window; model is expected to be
// "calendar_event".
func (a *CalendarAdapter) FetchFromCache(ctx context.Context, connectionID, model string, query FetchQuery) ([]FetchedEntity, error) {
	c, cfg, err := a.client(connectionID)
	if err != nil {
		return nil, err
	}

	start := time.Now().Add(-30 * 24 * time.Hour)
	if query.ModifiedAfter != nil {
		start = time.Unix(*query.ModifiedAfter, 0)
	}
	end := time.Now().Add(365 * 24 * time.Hour)

	calQuery := &caldav.CalendarQuery{
		CompRequest: caldav.CalendarCompRequest{
			Name:  "VCALENDAR",
			Comps: []caldav.CalendarCompRequest{{Name: "VEVENT"}},
		},
		CompFilter: caldav.CompFilter{
			Name: "VCALENDAR",
			Comps: []caldav.CompFilter{{
				Name:  "VEVENT",
				Start: start,
				End:   end,
			}},
		},
	}

	objects, err := c.QueryCalendar(ctx, cfg.CalendarPath, calQuery)
	if err != nil {
		return nil, fmt.Errorf("caldav query: %w", err)
	}

	if query.Limit > 0 && len(objects) > query.Limit {
		objects = objects[:query.Limit]
	}

	out := make([]FetchedEntity, 0, len(objects))
	for _, obj := range objects {
		out = append(out, entityFromCalendarObject(obj))
	}
	return out, nil
}

func entityFromCalendarObject(obj caldav.CalendarObject) FetchedEntity {
	summary, uid, location := "", obj.Path, ""
	var startUnix int64
	if obj.Data != nil {
		for _, comp := range obj.Data.Children {
			if comp.Name != ical.CompEvent {
				continue
			}
			if p := comp.Props.Get(ical.PropSummary); p != nil {
				summary = p.Value
			}
			if p := comp.Props.Get(ical.PropUID); p != nil {
				uid = p.Value
			}
			if p := comp.Props.Get(ical.PropLocation); p != nil {
				location = p.Value
			}
			if p := comp.Props.Get(ical.PropDateTimeStart); p != nil {
				if t, err := p.DateTime(time.UTC); err == nil {
					startUnix = t.Unix()
				}
			}
		}
	}
	return FetchedEntity{
		ID:   uid,
		Type: "calendar_event",
		Body: map[string]any{
			"summary":  summary,
			"location": location,
			"start":    startUnix,
			"path":     obj.Path,
		},
		UpdatedAt: startUnix,
	}
}

// TriggerAction supports "create_calendar_event":
// {summary, start (unix seconds), durationMinutes, location}.
func (a *CalendarAdapter) TriggerAction(ctx context.Context, connectionID, actionName string, payload map[string]any) (map[string]any, error) {
	if actionName != "create_calendar_event" {
		return nil, fmt.Errorf("calendar adapter: unsupported action %q", actionName)
	}
	c, cfg, err := a.client(connectionID)
	if err != nil {
		return nil, err
	}

	summary, _ := payload["summary"].(string)
	location, _ := payload["location"].(string)
	startUnix, _ := payload["start"].(float64)
	durationMin, _ := payload["durationMinutes"].(float64)
	if durationMin <= 0 {
		durationMin = 30
	}
	start := time.Unix(int64(startUnix), 0).UTC()
	end := start.Add(time.Duration(durationMin) * time.Minute)

	event := ical.NewEvent()
	uid := strconv.FormatInt(time.Now().UnixNano(), 36)
	event.Props.SetText(ical.PropUID, uid)
	event.Props.SetText(ical.PropSummary, summary)
	if location != "" {
		event.Props.SetText(ical.PropLocation, location)
	}
	event.Props.SetDateTime(ical.PropDateTimeStart, start)
	event.Props.SetDateTime(ical.PropDateTimeEnd, end)

	cal := ical.NewCalendar()
	cal.Children = append(cal.Children, event.Component)

	path := cfg.CalendarPath + uid + ".ics"
	if _, err := c.PutCalendarObject(ctx, path, cal); err != nil {
		return nil, err
	}
	return map[string]any{"uid": uid, "path": path, "status": "created"}, nil
}

// TriggerSync re-issues FindCalendarHomeSet to refresh cached CalDAV state.
func (a *CalendarAdapter) TriggerSync(ctx context.Context, connectionID, syncName string) error {
	c, cfg, err := a.client(connectionID)
	if err != nil {
		return err
	}
	_, err = c.FindCalendarHomeSet(ctx, cfg.Username)
	return err
}
