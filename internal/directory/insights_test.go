package directory_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"appmonitor/internal/directory"
)

func raw(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestSummarizeSignIns(t *testing.T) {
	signIns := []json.RawMessage{
		raw(t, map[string]any{"appId": "a1", "appDisplayName": "Slack", "createdDateTime": "2026-08-10T09:00:00Z"}),
		raw(t, map[string]any{"appId": "a1", "appDisplayName": "Slack", "createdDateTime": "2026-08-12T16:30:00Z"}),
		raw(t, map[string]any{"appId": "a2", "appDisplayName": "Zoom", "createdDateTime": "2026-08-11T08:00:00Z"}),
		json.RawMessage(`{not json`),
		raw(t, map[string]any{"appDisplayName": "no app id, skipped"}),
	}

	out := directory.SummarizeSignIns(signIns)
	require.Len(t, out, 2)

	require.Equal(t, "a1", out[0].AppID)
	require.Equal(t, "Slack", out[0].DisplayName)
	require.Equal(t, 2, out[0].SignIns)
	require.Equal(t, time.Date(2026, 8, 12, 16, 30, 0, 0, time.UTC), out[0].LastSeen)

	require.Equal(t, "a2", out[1].AppID)
	require.Equal(t, 1, out[1].SignIns)
}

func TestSummarizeSignInsTieBreaksOnAppID(t *testing.T) {
	signIns := []json.RawMessage{
		raw(t, map[string]any{"appId": "b"}),
		raw(t, map[string]any{"appId": "a"}),
	}
	out := directory.SummarizeSignIns(signIns)
	require.Len(t, out, 2)
	require.Equal(t, "a", out[0].AppID)
	require.Equal(t, "b", out[1].AppID)
}

func TestSummarizeSignInsEmpty(t *testing.T) {
	require.Empty(t, directory.SummarizeSignIns(nil))
}
