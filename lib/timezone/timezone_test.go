package timezone

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestDateOfUsesIST(t *testing.T) {
	cases := []struct {
		now      time.Time
		expected Date
	}{
		{
			// 20:00 UTC is 01:30 the next day in IST
			now:      time.Date(2025, time.October, 19, 20, 0, 0, 0, time.UTC),
			expected: Date{Year: 2025, Month: time.October, Day: 20},
		},
		{
			now:      time.Date(2025, time.October, 19, 18, 29, 0, 0, time.UTC),
			expected: Date{Year: 2025, Month: time.October, Day: 19},
		},
		{
			now:      time.Date(2024, time.December, 31, 23, 0, 0, 0, time.UTC),
			expected: Date{Year: 2025, Month: time.January, Day: 1},
		},
	}

	for _, test := range cases {
		require.Equal(t, test.expected, DateOf(test.now))
	}
}

func TestDateFormats(t *testing.T) {
	d, err := ParseDate("2025-10-20")
	require.NoError(t, err)
	require.Equal(t, "2025-10-20", d.String())
	require.Equal(t, "20-10-2025", d.PortalString())
	require.Equal(t, Date{Year: 2025, Month: time.October, Day: 21}, d.AddDays(1))
	require.Equal(t, Date{Year: 2025, Month: time.November, Day: 1}, d.AddDays(12))

	_, err = ParseDate("20/10/2025")
	require.Error(t, err)
}

func TestDateJSON(t *testing.T) {
	d := Date{Year: 2025, Month: time.March, Day: 3}
	out, err := json.Marshal(d)
	require.NoError(t, err)
	require.Equal(t, `"2025-03-03"`, string(out))

	var back Date
	require.NoError(t, json.Unmarshal(out, &back))
	require.Equal(t, d, back)

	out, err = json.Marshal(Date{})
	require.NoError(t, err)
	require.Equal(t, "null", string(out))
}
