package textutil

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeName(t *testing.T) {
	cases := []struct {
		in       string
		expected string
	}{
		{in: "Tis Hazari", expected: "tishazari"},
		{in: "  TIS  HAZARI\n", expected: "tishazari"},
		{in: "Tis-Hazari", expected: "tishazari"},
		{in: "Hon'ble Judge A. K. Singh", expected: "honblejudgeaksingh"},
		{in: "", expected: ""},
	}
	for _, test := range cases {
		require.Equal(t, test.expected, NormalizeName(test.in))
	}
}

func TestCollapseSpace(t *testing.T) {
	require.Equal(t, "Court No. 12 Sh. Rakesh Kumar", CollapseSpace("\n  Court No. 12 \t\n Sh.  Rakesh Kumar  "))
	require.Equal(t, "", CollapseSpace(" \n\t "))
}

func TestBestMatch(t *testing.T) {
	options := []string{"Patiala House", "Tis Hazari Courts", "Rouse Avenue", "TIS HAZARI"}

	m := BestMatch("Tis Hazari", options, 0.88)
	require.Equal(t, 3, m.Index, "exact normalized match must win over a closer prefix match")
	require.Equal(t, float64(1), m.Similarity)

	m = BestMatch("Rouse Avenu", options, 0.88)
	require.Equal(t, 2, m.Index)

	m = BestMatch("Saket", options, 0.88)
	require.Equal(t, -1, m.Index)

	m = BestMatch("", options, 0.88)
	require.Equal(t, -1, m.Index)
}
