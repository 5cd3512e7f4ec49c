package api

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/services"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
)

// maxBodyBytes bounds JSON and ICS request bodies.
const maxBodyBytes = 4 << 20

// Defaults supplies the configured engine options per request.
type Defaults interface {
	SlotFinderConfig() services.SlotFinderConfig
	ScheduleOptions(now time.Time) services.ScheduleOptions
	DetectorConfig() services.ConflictDetectorConfig
	SolutionOptions(now time.Time) services.SolutionOptions
}

// SchedulingHandler handles scheduling API requests.
type SchedulingHandler struct {
	addEntity      *commands.AddEntityHandler
	removeEntity   *commands.RemoveEntityHandler
	importCalendar *commands.ImportCalendarHandler
	suggest        *commands.SuggestPlacementHandler
	apply          *commands.ApplySolutionHandler
	undo           *commands.UndoSolutionHandler
	listEntities   *queries.ListEntitiesHandler
	findSlots      *queries.FindAvailableSlotsHandler
	detect         *queries.DetectConflictsHandler
	propose        *queries.ProposeSolutionsHandler
	listTokens     *queries.ListRollbackTokensHandler
	defaults       Defaults
	now            func() time.Time
	logger         *slog.Logger
}

// SchedulingHandlerConfig holds dependencies for the scheduling handler.
type SchedulingHandlerConfig struct {
	AddEntity      *commands.AddEntityHandler
	RemoveEntity   *commands.RemoveEntityHandler
	ImportCalendar *commands.ImportCalendarHandler
	Suggest        *commands.SuggestPlacementHandler
	Apply          *commands.ApplySolutionHandler
	Undo           *commands.UndoSolutionHandler
	ListEntities   *queries.ListEntitiesHandler
	FindSlots      *queries.FindAvailableSlotsHandler
	Detect         *queries.DetectConflictsHandler
	Propose        *queries.ProposeSolutionsHandler
	ListTokens     *queries.ListRollbackTokensHandler
	Defaults       Defaults
	// Now anchors suggestions and remediation. Defaults to time.Now.
	Now    func() time.Time
	Logger *slog.Logger
}

// NewSchedulingHandler creates a new scheduling handler.
func NewSchedulingHandler(cfg SchedulingHandlerConfig) *SchedulingHandler {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	return &SchedulingHandler{
		addEntity:      cfg.AddEntity,
		removeEntity:   cfg.RemoveEntity,
		importCalendar: cfg.ImportCalendar,
		suggest:        cfg.Suggest,
		apply:          cfg.Apply,
		undo:           cfg.Undo,
		listEntities:   cfg.ListEntities,
		findSlots:      cfg.FindSlots,
		detect:         cfg.Detect,
		propose:        cfg.Propose,
		listTokens:     cfg.ListTokens,
		defaults:       cfg.Defaults,
		now:            cfg.Now,
		logger:         cfg.Logger,
	}
}

// entityRequest is the body of POST /api/v1/entities.
type entityRequest struct {
	ID           string          `json:"id"`
	Title        string          `json:"title"`
	Start        time.Time       `json:"start"`
	End          time.Time       `json:"end"`
	Category     domain.Category `json:"category"`
	Priority     int             `json:"priority"`
	ResourceRefs []string        `json:"resource_refs"`
	Attendees    []string        `json:"attendees"`
	Tags         []string        `json:"tags"`
}

// applyRequest is the body of POST /api/v1/solutions/apply.
type applyRequest struct {
	Solution domain.OptimizationSolution `json:"solution"`
	DryRun   bool                        `json:"dry_run"`
}

// ListEntities handles GET /api/v1/entities
func (h *SchedulingHandler) ListEntities(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(w, r, false)
	if !ok {
		return
	}

	entities, err := h.listEntities.Handle(r.Context(), queries.ListEntitiesQuery{From: from, To: to})
	if err != nil {
		if errors.Is(err, domain.ErrInvalidTimeRange) {
			writeAPIError(w, ErrBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to list entities", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list entities")
		return
	}
	if entities == nil {
		entities = []domain.ScheduledEntity{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"entities": entities, "total": len(entities)})
}

// AddEntity handles POST /api/v1/entities
func (h *SchedulingHandler) AddEntity(w http.ResponseWriter, r *http.Request) {
	var req entityRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.addEntity.Handle(r.Context(), commands.AddEntityCommand{
		ID:        req.ID,
		Title:     req.Title,
		Start:     req.Start,
		End:       req.End,
		Category:  req.Category,
		Priority:  req.Priority,
		Resources: req.ResourceRefs,
		Attendees: req.Attendees,
		Tags:      req.Tags,
	})
	if err != nil {
		if errors.Is(err, commands.ErrInvalidEntity) {
			writeAPIError(w, ErrBadRequest, err.Error())
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to add entity", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to add entity")
		return
	}

	writeJSON(w, http.StatusCreated, result.Entity)
}

// RemoveEntity handles DELETE /api/v1/entities/{entityID}
func (h *SchedulingHandler) RemoveEntity(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("entityID")

	err := h.removeEntity.Handle(r.Context(), commands.RemoveEntityCommand{ID: id})
	if err != nil {
		if errors.Is(err, domain.ErrEntityNotFound) {
			writeAPIError(w, ErrNotFound, "Entity not found: "+id)
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to remove entity", "entity_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to remove entity")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ImportCalendar handles POST /api/v1/calendar/import with an ICS body.
func (h *SchedulingHandler) ImportCalendar(w http.ResponseWriter, r *http.Request) {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)

	result, err := h.importCalendar.Handle(r.Context(), commands.ImportCalendarCommand{
		Source: body,
		DryRun: parseBoolParam(r, "dry_run", false),
	})
	if err != nil {
		h.logger.WarnContext(r.Context(), "calendar import failed", "error", err)
		writeAPIError(w, ErrBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// FindSlots handles GET /api/v1/slots
func (h *SchedulingHandler) FindSlots(w http.ResponseWriter, r *http.Request) {
	from, to, ok := parseRange(w, r, true)
	if !ok {
		return
	}
	minutes := parseIntParam(r, "duration", 30)
	if minutes <= 0 {
		writeAPIError(w, ErrBadRequest, "Query parameter 'duration' must be a positive number of minutes")
		return
	}

	cfg := h.defaults.SlotFinderConfig()
	if parseBoolParam(r, "weekends", cfg.IncludeWeekends) {
		cfg.IncludeWeekends = true
	}

	slots, err := h.findSlots.Handle(r.Context(), queries.FindAvailableSlotsQuery{
		Start:    from,
		End:      to,
		Duration: time.Duration(minutes) * time.Minute,
		Config:   cfg,
		Limit:    parseIntParam(r, "limit", 0),
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to find slots", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to find slots")
		return
	}
	if slots == nil {
		slots = []queries.TimeSlotDTO{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"slots": slots, "total": len(slots)})
}

// Suggest handles POST /api/v1/suggestions
func (h *SchedulingHandler) Suggest(w http.ResponseWriter, r *http.Request) {
	var req domain.SchedulingRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.suggest.Handle(r.Context(), commands.SuggestPlacementCommand{
		Request: req,
		Options: h.defaults.ScheduleOptions(h.now()),
		Book:    parseBoolParam(r, "book", false),
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to suggest placement", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to suggest placement")
		return
	}

	status := http.StatusOK
	switch {
	case len(result.ValidationErrors) > 0:
		status = http.StatusBadRequest
	case result.Booked != nil:
		status = http.StatusCreated
	}
	writeJSON(w, status, result)
}

// DetectConflicts handles GET /api/v1/conflicts
func (h *SchedulingHandler) DetectConflicts(w http.ResponseWriter, r *http.Request) {
	window, ok := parseOptionalWindow(w, r)
	if !ok {
		return
	}

	result, err := h.detect.Handle(r.Context(), queries.DetectConflictsQuery{
		Range:  window,
		Config: h.defaults.DetectorConfig(),
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to detect conflicts", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to detect conflicts")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ProposeSolutions handles GET /api/v1/solutions
func (h *SchedulingHandler) ProposeSolutions(w http.ResponseWriter, r *http.Request) {
	window, ok := parseOptionalWindow(w, r)
	if !ok {
		return
	}

	result, err := h.propose.Handle(r.Context(), queries.ProposeSolutionsQuery{
		Range:    window,
		Detector: h.defaults.DetectorConfig(),
		Options:  h.defaults.SolutionOptions(h.now()),
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to propose solutions", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to propose solutions")
		return
	}

	writeJSON(w, http.StatusOK, result)
}

// ApplySolution handles POST /api/v1/solutions/apply
func (h *SchedulingHandler) ApplySolution(w http.ResponseWriter, r *http.Request) {
	var req applyRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	result, err := h.apply.Handle(r.Context(), commands.ApplySolutionCommand{
		Solution: req.Solution,
		DryRun:   req.DryRun,
		Location: h.defaults.SlotFinderConfig().Location,
	})
	if err != nil && result == nil {
		h.logger.ErrorContext(r.Context(), "failed to apply solution", "solution_id", req.Solution.ID, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to apply solution")
		return
	}
	if err != nil {
		// Applied, but the rollback token was not stored.
		h.logger.ErrorContext(r.Context(), "solution applied without rollback token", "solution_id", req.Solution.ID, "error", err)
		writeJSON(w, http.StatusInternalServerError, result)
		return
	}

	status := http.StatusOK
	if !result.Success {
		status = ErrConflict.Status
	}
	writeJSON(w, status, result)
}

// ListTokens handles GET /api/v1/tokens
func (h *SchedulingHandler) ListTokens(w http.ResponseWriter, r *http.Request) {
	tokens, err := h.listTokens.Handle(r.Context(), queries.ListRollbackTokensQuery{
		Limit: parseIntParam(r, "limit", queries.DefaultTokenListLimit),
	})
	if err != nil {
		h.logger.ErrorContext(r.Context(), "failed to list tokens", "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to list rollback tokens")
		return
	}
	if tokens == nil {
		tokens = []queries.RollbackTokenDTO{}
	}

	writeJSON(w, http.StatusOK, map[string]any{"tokens": tokens, "total": len(tokens)})
}

// UndoSolution handles POST /api/v1/tokens/{tokenID}/undo
func (h *SchedulingHandler) UndoSolution(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("tokenID")

	result, err := h.undo.Handle(r.Context(), commands.UndoSolutionCommand{TokenID: id})
	if err != nil {
		if errors.Is(err, domain.ErrTokenNotFound) {
			writeAPIError(w, ErrNotFound, "Rollback token not found: "+id)
			return
		}
		h.logger.ErrorContext(r.Context(), "failed to undo solution", "token_id", id, "error", err)
		writeError(w, http.StatusInternalServerError, "Failed to undo solution")
		return
	}

	status := http.StatusOK
	if result.Partial {
		status = ErrConflict.Status
	}
	writeJSON(w, status, result)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, io.EOF) {
			writeAPIError(w, ErrBadRequest, "Request body is required")
			return false
		}
		writeAPIError(w, ErrBadRequest, "Invalid JSON body: "+err.Error())
		return false
	}
	return true
}

// parseRange reads the from/to query parameters as RFC 3339 instants.
// With required set, both must be present.
func parseRange(w http.ResponseWriter, r *http.Request, required bool) (time.Time, time.Time, bool) {
	var from, to time.Time
	for _, p := range []struct {
		key string
		dst *time.Time
	}{{"from", &from}, {"to", &to}} {
		raw := r.URL.Query().Get(p.key)
		if raw == "" {
			if required {
				writeAPIError(w, ErrBadRequest, "Query parameter '"+p.key+"' is required")
				return from, to, false
			}
			continue
		}
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			writeAPIError(w, ErrBadRequest, "Query parameter '"+p.key+"' must be RFC 3339")
			return from, to, false
		}
		*p.dst = t
	}
	return from, to, true
}

func parseOptionalWindow(w http.ResponseWriter, r *http.Request) (*domain.TimeInterval, bool) {
	from, to, ok := parseRange(w, r, false)
	if !ok {
		return nil, false
	}
	if from.IsZero() || to.IsZero() {
		return nil, true
	}
	window, err := domain.NewTimeInterval(from, to)
	if err != nil {
		writeAPIError(w, ErrBadRequest, err.Error())
		return nil, false
	}
	return &window, true
}

func parseIntParam(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return i
}

func parseBoolParam(r *http.Request, key string, defaultVal bool) bool {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return defaultVal
	}
	return b
}
