package app

import (
	"context"

	"weekly/internal/caldav"
	"weekly/internal/google"
	"weekly/internal/hubspot"
	"weekly/internal/notify"
	"weekly/internal/tools"
)

// NewRegistry registers every adapter against env. The calendar adapter reads
// from CalDAV instead of Google when CALDAV_URL is configured.
func NewRegistry(env *tools.Env) *tools.Registry {
	calendarTool := google.NewCalendarTool(env)
	if settings, ok := caldav.SettingsFrom(env.Source); ok {
		env.Logger.Debug("Using CalDAV calendar backend", "endpoint", settings.Endpoint, "calendar", settings.Calendar)
		calendarTool.Connect = func(ctx context.Context) (google.EventSource, error) {
			client, err := caldav.NewClient(ctx, env.Logger, settings, env.Normalizer.Loc, env.Timeout)
			if err != nil {
				return nil, err
			}
			return client, nil
		}
	}
	return tools.NewRegistry(
		calendarTool,
		google.NewMailTool(env),
		hubspot.NewTool(env),
		google.NewDocumentTool(env),
		notify.NewTool(env),
	)
}
