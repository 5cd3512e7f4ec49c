package cli

import (
	"net/http"
	"time"

	internalApp "github.com/felixgeelhaar/slotwise/internal/app"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/services"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/infrastructure/caldav"
	"github.com/felixgeelhaar/slotwise/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/slotwise/pkg/observability"
)

// Defaults supplies the configured engine options.
type Defaults interface {
	SlotFinderConfig() services.SlotFinderConfig
	ScheduleOptions(now time.Time) services.ScheduleOptions
	DetectorConfig() services.ConflictDetectorConfig
	SolutionOptions(now time.Time) services.SolutionOptions
}

// App holds the CLI application dependencies.
type App struct {
	// Command Handlers
	AddEntityHandler        *commands.AddEntityHandler
	RemoveEntityHandler     *commands.RemoveEntityHandler
	SuggestPlacementHandler *commands.SuggestPlacementHandler
	ApplySolutionHandler    *commands.ApplySolutionHandler
	UndoSolutionHandler     *commands.UndoSolutionHandler
	ImportCalendarHandler   *commands.ImportCalendarHandler

	// Query Handlers
	ListEntitiesHandler       *queries.ListEntitiesHandler
	FindAvailableSlotsHandler *queries.FindAvailableSlotsHandler
	DetectConflictsHandler    *queries.DetectConflictsHandler
	ProposeSolutionsHandler   *queries.ProposeSolutionsHandler
	ListRollbackTokensHandler *queries.ListRollbackTokensHandler

	Defaults Defaults
	Location *time.Location
	Health   *observability.HealthRegistry
	// Outbox is nil for the memory store.
	Outbox  *outbox.Processor
	CalDAV  *caldav.Source
	Metrics http.Handler
	// MetricsAddr serves /metrics on its own listener when set.
	MetricsAddr string

	// Now is the scheduling clock. Defaults to time.Now.
	Now func() time.Time
}

// NewApp creates a CLI application from a wired container.
func NewApp(c *internalApp.Container) *App {
	return &App{
		AddEntityHandler:          c.AddEntityHandler,
		RemoveEntityHandler:       c.RemoveEntityHandler,
		SuggestPlacementHandler:   c.SuggestPlacementHandler,
		ApplySolutionHandler:      c.ApplySolutionHandler,
		UndoSolutionHandler:       c.UndoSolutionHandler,
		ImportCalendarHandler:     c.ImportCalendarHandler,
		ListEntitiesHandler:       c.ListEntitiesHandler,
		FindAvailableSlotsHandler: c.FindAvailableSlotsHandler,
		DetectConflictsHandler:    c.DetectConflictsHandler,
		ProposeSolutionsHandler:   c.ProposeSolutionsHandler,
		ListRollbackTokensHandler: c.ListRollbackTokensHandler,
		Defaults:                  c,
		Location:                  c.Config.Location(),
		Health:                    c.Health,
		Outbox:                    c.Outbox,
		CalDAV:                    c.CalDAV,
		Metrics:                   c.Metrics.Handler(),
		MetricsAddr:               c.Config.MetricsAddr,
	}
}

// Clock returns the current scheduling time in UTC.
func (a *App) Clock() time.Time {
	if a.Now != nil {
		return a.Now().UTC()
	}
	return time.Now().UTC()
}

// Loc returns the display and input time zone.
func (a *App) Loc() *time.Location {
	if a.Location == nil {
		return time.UTC
	}
	return a.Location
}

// app is the global CLI application instance
var app *App

// SetApp sets the global CLI application instance.
func SetApp(a *App) {
	app = a
}

// GetApp returns the global CLI application instance.
func GetApp() *App {
	return app
}
