package portal

import (
	"context"
	"net/url"
	"testing"

	"causelist-backend/lib/telemetry"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func ptr(s string) *string {
	return &s
}

func TestExtractRows(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:portal")
	defer cleanup()

	base, err := url.Parse("https://services.ecourts.gov.in/ecourtindia_v6/?p=cause_list/")
	require.NoError(t, err)

	table := []struct {
		name     string
		fixture  string
		entries  []JudgeEntry
		failures int
		noData   bool
	}{
		{
			name:    "table rows",
			fixture: "tis_hazari.html",
			entries: []JudgeEntry{
				{
					JudgeText: "Court No. 301 : Sh. Rakesh Kumar, ADJ-01 (Central)",
					PdfLink:   ptr("https://services.ecourts.gov.in/ecourtindia_v6/causelists/tis_hazari/301.pdf"),
				},
				{JudgeText: "Court No. 305 : Ms. Anjali Sharma MM-02 (West)"},
				{
					JudgeText: "Court No. 412 : Sh. Vikram Singh, CJM",
					PdfLink:   ptr("https://services.ecourts.gov.in/ecourtindia_v6/causelists/tis_hazari/412.PDF?session=1"),
				},
			},
		},
		{
			name:    "malformed row is omitted",
			fixture: "malformed_row.html",
			entries: []JudgeEntry{
				{
					JudgeText: "Court No. 1 : Sh. Amit Verma",
					PdfLink:   ptr("https://services.ecourts.gov.in/lists/1.pdf"),
				},
				{JudgeText: "Court No. 3 : Sh. Rohit Jain"},
			},
			failures: 1,
		},
		{
			name:    "div rows",
			fixture: "div_rows.html",
			entries: []JudgeEntry{
				{
					JudgeText: "Sh. Suresh Chand, District Judge",
					PdfLink:   ptr("https://services.ecourts.gov.in/files/dj.pdf"),
				},
				{
					JudgeText: "Court No. 7 : Ms. Pooja Rao",
					PdfLink:   ptr("https://services.ecourts.gov.in/ecourtindia_v6/higher/court_7.pdf"),
				},
			},
		},
		{
			name:    "no data notice",
			fixture: "no_data.html",
			noData:  true,
		},
	}

	for _, test := range table {
		t.Run(test.name, func(t *testing.T) {
			extraction := ExtractRows(context.Background(), fixture(test.fixture), base, testSelectors)
			if diff := cmp.Diff(test.entries, extraction.Entries); diff != "" {
				t.Fatalf("entries (-want +got):\n%s", diff)
			}
			require.Len(t, extraction.Failures, test.failures)
			require.Equal(t, test.noData, extraction.NoData)
		})
	}
}

func TestExtractRowsReportsFailingRow(t *testing.T) {
	extraction := ExtractRows(context.Background(), fixture("malformed_row.html"), nil, testSelectors)
	require.Len(t, extraction.Failures, 1)
	// the header row counts, the second judge row is the third row
	require.Equal(t, 3, extraction.Failures[0].Row)
	require.Contains(t, extraction.Failures[0].Reason, "malformed link")
}

func TestExtractRowsLabelWithoutJudge(t *testing.T) {
	document := `<table id="res_cause_list">
		<tr><td>1</td><td><a href="/a.pdf">View</a></td></tr>
		<tr><td>2</td><td>Court No. 9 : Sh. Dev Anand</td></tr>
	</table>`
	extraction := ExtractRows(context.Background(), document, nil, testSelectors)
	require.Len(t, extraction.Entries, 1)
	require.Equal(t, "Court No. 9 : Sh. Dev Anand", extraction.Entries[0].JudgeText)
	require.Nil(t, extraction.Entries[0].PdfLink)
	require.Len(t, extraction.Failures, 1)
	require.Equal(t, 1, extraction.Failures[0].Row)
}

func TestExtractRowsKeepsFailuresBesideNotice(t *testing.T) {
	document := `<table id="res_cause_list">
		<tr><td>1</td><td><a href="/a.pdf">View</a></td></tr>
		<tr><td>2</td><td><a href="/lists/%zz.pdf">PDF not available</a></td></tr>
	</table>`
	extraction := ExtractRows(context.Background(), document, nil, testSelectors)
	require.Empty(t, extraction.Entries)
	require.Len(t, extraction.Failures, 2)
	require.False(t, extraction.NoData)
}

func TestExtractRowsNoticeRow(t *testing.T) {
	document := `<table id="res_cause_list">
		<tr><th>Sr No</th><th>Judge</th></tr>
		<tr><td colspan="2">No Cause List Available</td></tr>
	</table>`
	extraction := ExtractRows(context.Background(), document, nil, testSelectors)
	require.Empty(t, extraction.Entries)
	require.Empty(t, extraction.Failures)
	require.True(t, extraction.NoData)
}

func TestExtractRowsJudgeWithoutPdfIsNotANotice(t *testing.T) {
	document := `<div id="res_cause_list">
		<div class="causeListRow">Sh. Mohan Lal, MM-03 PDF not available</div>
	</div>`
	extraction := ExtractRows(context.Background(), document, nil, testSelectors)
	require.Len(t, extraction.Entries, 1)
	require.Equal(t, "Sh. Mohan Lal, MM-03 PDF not available", extraction.Entries[0].JudgeText)
	require.False(t, extraction.NoData)
}
