package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScriptMap(t *testing.T) {
	require.Contains(t, scriptMap, "dev:apply_db_schema")
	require.Contains(t, scriptMap, "dev:sqlc")
}
