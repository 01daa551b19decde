//go:build e2e

package browser

import (
	"context"
	"os"
	"testing"
	"time"

	devenv "causelist-backend/dev/env"
	"causelist-backend/lib/portal"
	"causelist-backend/lib/telemetry"
	"causelist-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

// TestLivePortal drives services.ecourts.gov.in with the default selectors.
func TestLivePortal(t *testing.T) {
	config, err := devenv.GetStateConfig[devenv.LivePortalConfig]("live_portal.json5")
	if os.IsNotExist(err) {
		t.Skip("write dev/.state/live_portal.json5 to run against the live portal")
	}
	require.NoError(t, err)

	cleanup := telemetry.SetupForTesting(t, "test:browser")
	defer cleanup()

	date := timezone.Today()
	if config.Date != "" {
		date, err = timezone.ParseDate(config.Date)
		require.NoError(t, err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	pool, err := NewPool(ctx, Options{RemoteUrl: config.RemoteUrl, Headless: true, MaxSessions: 1})
	require.NoError(t, err)
	defer pool.Close(context.Background())

	nav, err := portal.NewNavigator(portal.NavigatorOptions{Sessions: pool})
	require.NoError(t, err)

	result, err := nav.FetchCauseList(ctx, portal.LookupRequest{
		State:    config.State,
		District: config.District,
		Complex:  config.Complex,
		Date:     date,
	})
	require.NoError(t, err, portal.UserMessage(err))
	require.NotNil(t, result.Judges)
	for _, judge := range result.Judges {
		require.NotEmpty(t, judge.JudgeText)
	}
	t.Logf("%d judges listed for %s on %s", len(result.Judges), result.Complex, result.Date)
}
