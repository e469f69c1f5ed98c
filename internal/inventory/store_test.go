package inventory_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"appmonitor/internal/inventory"
)

func TestInsertRejectsDuplicates(t *testing.T) {
	st := inventory.NewMemoryStore()
	ctx := context.Background()

	app := inventory.Application{CompanyID: "co-1", EntraAppID: "a1", Name: "Slack"}
	require.NoError(t, st.Insert(ctx, &app))
	require.NotEmpty(t, app.ID)

	dup := inventory.Application{CompanyID: "co-1", EntraAppID: "a1", Name: "Slack again"}
	require.ErrorIs(t, st.Insert(ctx, &dup), inventory.ErrConflict)

	// same app id under another company is fine
	other := inventory.Application{CompanyID: "co-2", EntraAppID: "a1", Name: "Slack"}
	require.NoError(t, st.Insert(ctx, &other))
}

func TestUpdateRemoteFields(t *testing.T) {
	st := inventory.NewMemoryStore()
	ctx := context.Background()

	app := inventory.Application{CompanyID: "co-1", EntraAppID: "a1", Name: "Slack", IsActive: true}
	require.NoError(t, st.Insert(ctx, &app))

	require.NoError(t, st.UpdateRemoteFields(ctx, "co-1", "a1", "Slack Enterprise", "web", false))
	got, err := st.GetByEntraID(ctx, "co-1", "a1")
	require.NoError(t, err)
	require.Equal(t, "Slack Enterprise", got.Name)
	require.False(t, got.IsActive)

	require.ErrorIs(t, st.UpdateRemoteFields(ctx, "co-1", "missing", "x", "web", true), inventory.ErrNotFound)
}

func TestTouchActivityIsMonotonic(t *testing.T) {
	st := inventory.NewMemoryStore()
	ctx := context.Background()

	app := inventory.Application{CompanyID: "co-1", EntraAppID: "a1", Name: "Slack"}
	require.NoError(t, st.Insert(ctx, &app))

	later := time.Date(2026, 8, 20, 12, 0, 0, 0, time.UTC)
	earlier := later.Add(-time.Hour)

	require.NoError(t, st.TouchActivity(ctx, "co-1", "a1", later))
	require.NoError(t, st.TouchActivity(ctx, "co-1", "a1", earlier))

	got, err := st.GetByEntraID(ctx, "co-1", "a1")
	require.NoError(t, err)
	require.NotNil(t, got.LastActivity)
	require.Equal(t, later, *got.LastActivity, "an older sign-in never rewinds last activity")
}

func TestListByCompanySortsByName(t *testing.T) {
	st := inventory.NewMemoryStore()
	ctx := context.Background()
	for _, name := range []string{"Zoom", "Slack", "Asana"} {
		app := inventory.Application{CompanyID: "co-1", EntraAppID: name, Name: name}
		require.NoError(t, st.Insert(ctx, &app))
	}
	apps, err := st.ListByCompany(ctx, "co-1")
	require.NoError(t, err)
	require.Len(t, apps, 3)
	require.Equal(t, "Asana", apps[0].Name)
	require.Equal(t, "Zoom", apps[2].Name)
}
