package browser

import (
	"testing"

	"causelist-backend/lib/portal"

	"github.com/stretchr/testify/require"
)

func TestJsCall(t *testing.T) {
	require.Equal(t,
		`((sel, value) => {})("select[id*='state']", "8")`,
		jsCall(`(sel, value) => {}`, "select[id*='state']", "8"),
	)
	require.Equal(t,
		`(f)([{"value":"1","label":"New Delhi \"NDL\""}])`,
		jsCall("f", []portal.Option{{Value: "1", Label: `New Delhi "NDL"`}}),
	)
	require.Equal(t, `(f)(["#a","#b"])`, jsCall("f", []string{"#a", "#b"}))
}
