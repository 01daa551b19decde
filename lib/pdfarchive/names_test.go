package pdfarchive

import (
	"regexp"
	"strings"
	"testing"
	"time"

	"causelist-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

var safeName = regexp.MustCompile(`^[\p{L}\p{N}._-]+\.pdf$`)

func TestFileNameIsFilesystemSafe(t *testing.T) {
	date := timezone.Date{Year: 2025, Month: time.October, Day: 20}

	cases := []struct {
		complex string
		judge   string
		prefix  string
	}{
		{
			complex: "Tis Hazari",
			judge:   "Hon'ble Judge A. K. Singh",
			prefix:  "2025-10-20_Tis_Hazari_Honble_Judge_A._K._Singh_",
		},
		{
			complex: "Patiala House",
			judge:   `Court No. 4: Sh. R/K "Verma" <ASJ>`,
			prefix:  "2025-10-20_Patiala_House_Court_No._4_Sh._RK_Verma_ASJ_",
		},
		{
			complex: "Saket Courts",
			judge:   "  MS.   priya\tSHARMA\n(MM-02)  ",
			prefix:  "2025-10-20_Saket_Courts_MS._priya_SHARMA_MM-02_",
		},
		{
			complex: "../../etc",
			judge:   "???",
			prefix:  "2025-10-20_etc_untitled_",
		},
	}

	for _, test := range cases {
		name := FileName(date, test.complex, test.judge)
		require.True(t, safeName.MatchString(name), name)
		require.True(t, strings.HasPrefix(name, test.prefix), name)
		require.NotContains(t, name, "/")
		require.NotContains(t, name, "..")
	}
}

func TestFileNameDeterministic(t *testing.T) {
	date := timezone.Date{Year: 2025, Month: time.October, Day: 20}
	require.Equal(t,
		FileName(date, "Tis Hazari", "Hon'ble Judge A. K. Singh"),
		FileName(date, "Tis Hazari", "Hon'ble Judge A. K. Singh"),
	)
}

func TestFileNamesDoNotCollide(t *testing.T) {
	date := timezone.Date{Year: 2025, Month: time.October, Day: 20}
	judges := []string{
		"Hon'ble Judge A. K. Singh",
		"Honble Judge A. K. Singh",
		"HON'BLE JUDGE A. K. SINGH",
		"Hon'ble Judge A. K. Singh",
	}

	names := FileNames(date, "Tis Hazari", judges)
	seen := map[string]bool{}
	for _, n := range names {
		require.False(t, seen[n], "duplicate name %s", n)
		seen[n] = true
		require.True(t, safeName.MatchString(n), n)
	}
	require.True(t, strings.HasSuffix(names[3], "-2.pdf"), names[3])
}

func TestFileNameTruncatesLongLabels(t *testing.T) {
	date := timezone.Date{Year: 2025, Month: time.October, Day: 20}
	name := FileName(date, "Tis Hazari", strings.Repeat("Additional Sessions Judge ", 20))
	require.Less(t, len(name), 200)
}
