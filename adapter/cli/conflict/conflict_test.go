package conflict

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/slotwise/adapter/cli"
	internalApp "github.com/felixgeelhaar/slotwise/internal/app"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/commands"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/application/queries"
	"github.com/felixgeelhaar/slotwise/internal/scheduling/domain"
	"github.com/felixgeelhaar/slotwise/pkg/config"
)

// testNow is Monday 2026-03-02 08:00 UTC.
var testNow = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)

func at(hour, minute int) time.Time {
	return time.Date(2026, 3, 2, hour, minute, 0, 0, time.UTC)
}

// setupRoomClash wires an in-memory app holding A and B double-booked in room-1.
func setupRoomClash(t *testing.T) *cli.App {
	t.Helper()

	cfg := &config.Config{
		AppEnv:                    "test",
		Store:                     "memory",
		Timezone:                  "UTC",
		WorkStart:                 "09:00",
		WorkEnd:                   "17:00",
		HorizonDays:               7,
		SlotStep:                  15 * time.Minute,
		MaxSuggestions:            5,
		MaxAlternatives:           5,
		MaxDurationMinutes:        480,
		AttendeeOverlapIsConflict: true,
	}
	container, err := internalApp.NewContainer(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(container.Close)

	app := cli.NewApp(container)
	app.Now = func() time.Time { return testNow }
	cli.SetApp(app)
	cli.SetJSONOutput(false)
	t.Cleanup(func() { cli.SetApp(nil) })

	for _, e := range []commands.AddEntityCommand{
		{ID: "A", Title: "Design review", Start: at(10, 0), End: at(11, 0), Category: domain.CategoryMeeting, Priority: 2, Resources: []string{"room-1"}},
		{ID: "B", Title: "Hiring sync", Start: at(10, 30), End: at(11, 30), Category: domain.CategoryMeeting, Priority: 4, Resources: []string{"room-1"}},
	} {
		_, err := app.AddEntityHandler.Handle(context.Background(), e)
		require.NoError(t, err)
	}

	rangeFrom, rangeTo = "", ""
	resolvePick, resolveDryRun = 1, false
	tokensLimit = queries.DefaultTokenListLimit
	return app
}

func run(t *testing.T, cmd *cobra.Command, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetContext(context.Background())
	err := cmd.RunE(cmd, args)
	return out.String(), err
}

func TestListCmd(t *testing.T) {
	setupRoomClash(t)

	out, err := run(t, listCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "1 violations (1 hard) across 2 entities")
	assert.Contains(t, out, "[critical/hard] double_booking")
	assert.Contains(t, out, "room-1")
}

func TestListCmd_Window(t *testing.T) {
	setupRoomClash(t)

	rangeFrom, rangeTo = "2026-03-03", "2026-03-04"
	out, err := run(t, listCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "No conflicts across 0 entities.")

	rangeFrom, rangeTo = "2026-03-04", "2026-03-03"
	_, err = run(t, listCmd)
	assert.Error(t, err)
}

func TestSolutionsCmd(t *testing.T) {
	setupRoomClash(t)

	out, err := run(t, solutionsCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "remediations for 1 violations")
	assert.Contains(t, out, "move B: Mon 10:30-11:30 -> Mon 11:00-12:00")
	assert.Contains(t, out, "slotwise conflicts resolve --pick N")
}

func TestResolveAndUndo(t *testing.T) {
	app := setupRoomClash(t)
	ctx := context.Background()

	resolveDryRun = true
	out, err := run(t, resolveCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Dry run: 1 operations would apply cleanly.")

	tokens, err := app.ListRollbackTokensHandler.Handle(ctx, queries.ListRollbackTokensQuery{})
	require.NoError(t, err)
	assert.Empty(t, tokens)

	resolveDryRun = false
	out, err = run(t, resolveCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "Applied 1 operations.")
	assert.Contains(t, out, "Undo with: slotwise conflicts undo ")

	out, err = run(t, listCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "No conflicts across 2 entities.")

	tokens, err = app.ListRollbackTokensHandler.Handle(ctx, queries.ListRollbackTokensQuery{})
	require.NoError(t, err)
	require.Len(t, tokens, 1)

	out, err = run(t, tokensCmd)
	require.NoError(t, err)
	assert.Contains(t, out, tokens[0].ID)
	assert.Contains(t, out, "active")

	out, err = run(t, undoCmd, tokens[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Restored 1 entities.")

	out, err = run(t, undoCmd, tokens[0].ID)
	require.NoError(t, err)
	assert.Contains(t, out, "Already undone.")

	out, err = run(t, listCmd)
	require.NoError(t, err)
	assert.Contains(t, out, "1 violations (1 hard)")
}

func TestResolveCmd_PickOutOfRange(t *testing.T) {
	setupRoomClash(t)

	resolvePick = 99
	_, err := run(t, resolveCmd)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--pick must be between 1 and")
}

func TestUndoCmd_UnknownToken(t *testing.T) {
	setupRoomClash(t)

	_, err := run(t, undoCmd, "missing")
	assert.ErrorIs(t, err, domain.ErrTokenNotFound)
}
