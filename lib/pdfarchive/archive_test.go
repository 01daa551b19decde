package pdfarchive

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"causelist-backend/lib/telemetry"
	"causelist-backend/lib/timezone"

	"github.com/stretchr/testify/require"
)

var testDate = timezone.Date{Year: 2025, Month: time.October, Day: 20}

func newTestArchiver(t testing.TB, maxConcurrent int) *Archiver {
	archiver, err := NewArchiver(Options{
		Dir:           filepath.Join(t.TempDir(), "pdfs"),
		MaxConcurrent: maxConcurrent,
		Timeout:       5 * time.Second,
	})
	if err != nil {
		t.Fatal(err)
	}
	return archiver
}

func TestDownloadContinuesPastFailures(t *testing.T) {
	cleanup := telemetry.SetupForTesting(t, "test:pdfarchive")
	defer cleanup()

	mux := http.NewServeMux()
	mux.HandleFunc("/ok.pdf", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("PHPSESSID")
		if err != nil || cookie.Value != "abc" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.Header().Set("content-type", "application/pdf")
		w.Write([]byte("%PDF-1.4 fake"))
	})
	mux.HandleFunc("/missing.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/expired.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("content-type", "text/html")
		w.Write([]byte("<html>session expired</html>"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	archiver := newTestArchiver(t, 2)
	results := archiver.Download(context.Background(), Batch{
		Date:    testDate,
		Complex: "Tis Hazari",
		Cookies: []*http.Cookie{{Name: "PHPSESSID", Value: "abc"}},
		Items: []Item{
			{JudgeText: "Judge One", Url: server.URL + "/missing.pdf"},
			{JudgeText: "Judge Two", Url: server.URL + "/ok.pdf"},
			{JudgeText: "Judge Three", Url: server.URL + "/expired.pdf"},
		},
	})
	require.Len(t, results, 3)

	var downloadErr *DownloadError
	require.True(t, errors.As(results[0].Err, &downloadErr))
	require.Equal(t, http.StatusNotFound, downloadErr.Status)
	require.Empty(t, results[0].Path)

	require.NoError(t, results[1].Err)
	require.Equal(t, filepath.Join(archiver.Dir(), FileName(testDate, "Tis Hazari", "Judge Two")), results[1].Path)
	contents, err := os.ReadFile(results[1].Path)
	require.NoError(t, err)
	require.Equal(t, "%PDF-1.4 fake", string(contents))

	require.Error(t, results[2].Err)

	entries, err := os.ReadDir(archiver.Dir())
	require.NoError(t, err)
	require.Len(t, entries, 1, "failed downloads must not leave files behind")
}

func TestDownloadRespectsConcurrencyCap(t *testing.T) {
	var inflight, peak int64
	var peakLock sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt64(&inflight, 1)
		defer atomic.AddInt64(&inflight, -1)
		peakLock.Lock()
		if n > peak {
			peak = n
		}
		peakLock.Unlock()
		time.Sleep(30 * time.Millisecond)
		w.Write([]byte("%PDF-1.7"))
	}))
	defer server.Close()

	archiver := newTestArchiver(t, 2)

	// two batches at once share the archiver wide cap
	wg := sync.WaitGroup{}
	for b := 0; b < 2; b++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			var items []Item
			for i := 0; i < 4; i++ {
				items = append(items, Item{
					JudgeText: string(rune('A'+b)) + string(rune('a'+i)),
					Url:       server.URL + "/list.pdf",
				})
			}
			results := archiver.Download(context.Background(), Batch{Date: testDate, Complex: "Saket", Items: items})
			for _, r := range results {
				if r.Err != nil {
					t.Error(r.Err)
				}
			}
		}()
	}
	wg.Wait()

	require.LessOrEqual(t, peak, int64(2))
	require.Greater(t, peak, int64(0))
}

func TestDownloadCancelled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	archiver := newTestArchiver(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	results := archiver.Download(ctx, Batch{
		Date:    testDate,
		Complex: "Saket",
		Items: []Item{
			{JudgeText: "A", Url: server.URL + "/a.pdf"},
			{JudgeText: "B", Url: server.URL + "/b.pdf"},
		},
	})
	for _, r := range results {
		require.Error(t, r.Err)
	}
}

func TestWriteAtomicConcurrentWriters(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "2025-10-20_tis_hazari_sh_rakesh_kumar.pdf")

	bodies := make([][]byte, 8)
	for i := range bodies {
		bodies[i] = []byte("%PDF-1.4 " + strings.Repeat(string(rune('a'+i)), 64*1024))
	}

	var wg sync.WaitGroup
	for _, body := range bodies {
		wg.Add(1)
		go func() {
			defer wg.Done()
			require.NoError(t, writeAtomic(path, body))
		}()
	}
	wg.Wait()

	written, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, bodies, written)

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0644), info.Mode().Perm())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}
