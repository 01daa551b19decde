package main

import (
	"context"
	"errors"
	"os/exec"
	"testing"

	"causelist-backend/lib/portal"

	"github.com/stretchr/testify/require"
)

func TestLookupFailureKeepsCause(t *testing.T) {
	startErr := errors.New("start browser: " + exec.ErrNotFound.Error())
	err := lookupFailure(context.Background(), startErr)
	require.ErrorIs(t, err, startErr)
	require.Contains(t, err.Error(), "check date range or try again")
	require.Contains(t, err.Error(), "start browser")

	navErr := &portal.NavigationError{Step: "select_state", Err: context.DeadlineExceeded}
	err = lookupFailure(context.Background(), navErr)
	var target *portal.NavigationError
	require.ErrorAs(t, err, &target)
	require.Equal(t, "select_state", target.Step)
	require.Contains(t, err.Error(), "navigation failed at select_state")
}
