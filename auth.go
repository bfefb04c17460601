package famcal

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"golang.org/x/oauth2/google"
	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/tasks/v1"
)

// NewServiceAccountClient builds the single authenticated HTTP client
// the process uses for both the calendar and task stores. The family
// calendars are shared with the service account, so no per-user token
// flow is needed. The client is returned rather than held in a package
// singleton so stores receive it as a dependency.
func NewServiceAccountClient(ctx context.Context, credentialsFile string) (*http.Client, error) {
	data, err := os.ReadFile(credentialsFile)
	if err != nil {
		return nil, fmt.Errorf("read service account key: %w", err)
	}
	cfg, err := google.JWTConfigFromJSON(data, calendar.CalendarScope, tasks.TasksScope)
	if err != nil {
		return nil, fmt.Errorf("parse service account key: %w", err)
	}
	return cfg.Client(ctx), nil
}
