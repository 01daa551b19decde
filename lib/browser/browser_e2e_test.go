//go:build e2e

package browser

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"causelist-backend/lib/pdfarchive"
	"causelist-backend/lib/portal"
	"causelist-backend/lib/telemetry"
	"causelist-backend/lib/timezone"

	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testSelectors = portal.Selectors{
	State:    "#sess_state_code",
	District: "#sess_dist_code",
	Complex:  "#court_complex_code",
	Date:     "#causelist_date",
	Submit:   "#submit_btn",
	Results:  "#res_cause_list",
	Row:      "tr",
	NoData:   "#nodata",
}

var testDate = timezone.Date{Year: 2025, Month: time.October, Day: 20}

func servePortal(t testing.TB) *httptest.Server {
	page, err := os.ReadFile(filepath.Join("testdata", "portal.html"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/ecourtindia_v6/", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "PHPSESSID", Value: "e2e", Path: "/"})
		w.Header().Set("content-type", "text/html")
		w.Write(page)
	})
	mux.HandleFunc("/ecourtindia_v6/causelists/", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("PHPSESSID")
		if err != nil || cookie.Value != "e2e" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("content-type", "application/pdf")
		fmt.Fprintf(w, "%%PDF-1.4 %s", r.URL.Path)
	})
	return httptest.NewServer(mux)
}

func TestNavigatorWithLocalBrowser(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:browser")
	defer cleanup()

	server := servePortal(t)
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := NewPool(ctx, Options{Headless: true, MaxSessions: 2})
	require.NoError(t, err)
	defer pool.Close(context.Background())

	archive, err := pdfarchive.NewArchiver(pdfarchive.Options{Dir: filepath.Join(t.TempDir(), "pdfs")})
	require.NoError(t, err)

	nav, err := portal.NewNavigator(portal.NavigatorOptions{
		Sessions:  pool,
		Archive:   archive,
		EntryUrl:  server.URL + "/ecourtindia_v6/?p=cause_list/",
		Selectors: testSelectors,
	})
	require.NoError(t, err)

	result, err := nav.FetchCauseList(ctx, portal.LookupRequest{
		State:       "Delhi",
		District:    "New Delhi",
		Complex:     "Tis Hazari",
		Date:        testDate,
		DownloadPdf: true,
	})
	require.NoError(t, err)
	require.Len(t, result.Judges, 3)
	require.Empty(t, result.DownloadErrors())
	require.NotNil(t, result.Judges[0].DownloadedPdf)
	require.Nil(t, result.Judges[1].PdfLink)
	require.NotNil(t, result.Judges[2].DownloadedPdf)

	// a second lookup on a fresh session starts from an untouched form
	result, err = nav.FetchCauseList(ctx, portal.LookupRequest{
		State:    "Maharashtra",
		District: "Mumbai",
		Complex:  "Fort",
		Date:     testDate,
	})
	require.NoError(t, err)
	require.Empty(t, result.Judges)
}

func TestNavigatorWithRemoteBrowser(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:browser")
	defer cleanup()

	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	chrome, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		Started: true,
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "chromedp/headless-shell:latest",
			ExposedPorts: []string{"9222/tcp"},
			WaitingFor:   wait.ForListeningPort("9222/tcp"),
		},
	})
	require.NoError(t, err)
	defer chrome.Terminate(context.Background())

	host, err := chrome.Host(ctx)
	require.NoError(t, err)
	port, err := chrome.MappedPort(ctx, "9222/tcp")
	require.NoError(t, err)

	pool, err := NewPool(ctx, Options{RemoteUrl: fmt.Sprintf("ws://%s:%s", host, port.Port())})
	require.NoError(t, err)
	defer pool.Close(context.Background())

	// the container cannot reach the test server, the page travels inline
	page, err := os.ReadFile(filepath.Join("testdata", "portal.html"))
	require.NoError(t, err)
	entry := "data:text/html;base64," + base64.StdEncoding.EncodeToString(page)

	nav, err := portal.NewNavigator(portal.NavigatorOptions{
		Sessions:  pool,
		EntryUrl:  entry,
		Selectors: testSelectors,
	})
	require.NoError(t, err)

	result, err := nav.FetchCauseList(ctx, portal.LookupRequest{
		State:    "Delhi",
		District: "New Delhi",
		Complex:  "Tis Hazari Courts",
		Date:     testDate,
	})
	require.NoError(t, err)
	require.Len(t, result.Judges, 3)
	require.Equal(t, "Court No. 305 : Ms. Anjali Sharma", result.Judges[1].JudgeText)
}

func TestSessionCloseReleasesSlot(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	pool, err := NewPool(ctx, Options{Headless: true, MaxSessions: 1})
	require.NoError(t, err)
	defer pool.Close(context.Background())

	first, err := pool.Acquire(ctx)
	require.NoError(t, err)

	waitCtx, waitCancel := context.WithTimeout(ctx, 200*time.Millisecond)
	_, err = pool.Acquire(waitCtx)
	waitCancel()
	require.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, first.Close(ctx))
	require.NoError(t, first.Close(ctx))

	second, err := pool.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, second.Close(ctx))
}
