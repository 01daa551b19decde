package pdfarchive

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"causelist-backend/lib/restyutil"
	"causelist-backend/lib/telemetry"
	"causelist-backend/lib/timezone"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

var tracer = telemetry.Tracer("causelist.lib.pdfarchive")
var meter = telemetry.Meter("causelist.lib.pdfarchive")
var downloadCounter, _ = meter.Int64Counter("pdfarchive.downloads")

var pdfMagic = []byte("%PDF")

type DownloadError struct {
	Url    string
	Status int
	Err    error
}

func (e *DownloadError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("download %s: status %d: %v", e.Url, e.Status, e.Err)
	}
	return fmt.Sprintf("download %s: %v", e.Url, e.Err)
}

func (e *DownloadError) Unwrap() error {
	return e.Err
}

type Options struct {
	// Dir is where PDFs are written, it is created on demand.
	Dir string
	// MaxConcurrent caps in-flight downloads across every batch of this
	// archiver, defaults to 3.
	MaxConcurrent int
	// Timeout per download, defaults to 60s.
	Timeout   time.Duration
	UserAgent string
	// Record receives a dump of every exchange while debug logging is on,
	// it may be nil.
	Record restyutil.Output
}

type Archiver struct {
	dir   string
	http  *resty.Client
	slots *semaphore.Weighted
}

func NewArchiver(opts Options) (*Archiver, error) {
	if opts.Dir == "" {
		return nil, fmt.Errorf("an archive directory was not specified")
	}
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = 3
	}
	if opts.Timeout <= 0 {
		opts.Timeout = time.Minute
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"
	}

	client := resty.New()
	client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	client.SetHeader("user-agent", opts.UserAgent)
	client.SetHeader("accept", "application/pdf,*/*")
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	client.SetTimeout(opts.Timeout)

	telemetry.InstrumentResty(client, "causelist.lib.pdfarchive/http")
	restyutil.Record(client, opts.Record)

	return &Archiver{
		dir:   opts.Dir,
		http:  client,
		slots: semaphore.NewWeighted(int64(opts.MaxConcurrent)),
	}, nil
}

func (a *Archiver) Dir() string {
	return a.dir
}

type Item struct {
	JudgeText string
	Url       string
}

type Batch struct {
	Date    timezone.Date
	Complex string
	// Referer and Cookies carry the browser session over, the portal only
	// serves PDFs to the session that rendered the list.
	Referer string
	Cookies []*http.Cookie
	Items   []Item
}

// Result is index aligned with Batch.Items.
type Result struct {
	Path string
	Err  error
}

// Download fetches every item concurrently, bounded by the archiver wide
// limit. A failed item never stops the others.
func (a *Archiver) Download(ctx context.Context, batch Batch) []Result {
	ctx, span := tracer.Start(ctx, "archiver:Download")
	defer span.End()
	span.SetAttributes(attribute.Int("items", len(batch.Items)))

	results := make([]Result, len(batch.Items))
	if len(batch.Items) == 0 {
		return results
	}

	err := os.MkdirAll(a.dir, 0777)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to create archive directory")
		for i, item := range batch.Items {
			results[i] = Result{Err: &DownloadError{Url: item.Url, Err: err}}
		}
		return results
	}

	judges := make([]string, len(batch.Items))
	for i, item := range batch.Items {
		judges[i] = item.JudgeText
	}
	names := FileNames(batch.Date, batch.Complex, judges)

	group := errgroup.Group{}
	for i, item := range batch.Items {
		path := filepath.Join(a.dir, names[i])
		group.Go(func() error {
			err := a.slots.Acquire(ctx, 1)
			if err != nil {
				results[i] = Result{Err: &DownloadError{Url: item.Url, Err: err}}
				return nil
			}
			defer a.slots.Release(1)

			err = a.fetch(ctx, batch, item.Url, path)
			if err != nil {
				slog.WarnContext(ctx, "pdf download failed", "url", item.Url, "judge", item.JudgeText, "err", err)
				downloadCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
				results[i] = Result{Err: err}
				return nil
			}
			downloadCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "ok")))
			results[i] = Result{Path: path}
			return nil
		})
	}
	group.Wait()

	return results
}

func (a *Archiver) fetch(ctx context.Context, batch Batch, link, path string) error {
	ctx, span := tracer.Start(ctx, "archiver:fetch")
	defer span.End()
	span.SetAttributes(attribute.String("url", link), attribute.String("path", path))

	req := a.http.R().
		SetContext(ctx).
		SetCookies(batch.Cookies)
	if batch.Referer != "" {
		req.SetHeader("referer", batch.Referer)
	}
	res, err := req.Get(link)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to fetch")
		return &DownloadError{Url: link, Err: err}
	}
	if res.IsError() {
		span.SetStatus(codes.Error, "unexpected status")
		return &DownloadError{Url: link, Status: res.StatusCode(), Err: fmt.Errorf("unexpected status %s", res.Status())}
	}

	body := res.Body()
	// the portal answers expired sessions with a 200 html page
	if !bytes.HasPrefix(bytes.TrimLeft(body, " \r\n\t"), pdfMagic) {
		span.SetStatus(codes.Error, "response is not a pdf")
		return &DownloadError{Url: link, Status: res.StatusCode(), Err: fmt.Errorf("response is not a pdf (content-type %q)", res.Header().Get("content-type"))}
	}

	err = writeAtomic(path, body)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to write pdf")
		return &DownloadError{Url: link, Err: err}
	}

	slog.DebugContext(ctx, "saved pdf", "url", link, "path", path, "bytes", len(body))
	return nil
}

// writeAtomic writes body next to path under a unique name and renames it into
// place, concurrent writers of the same path never see each other's partial
// files.
func writeAtomic(path string, body []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".pdf-*.part")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	_, err = tmp.Write(body)
	if err != nil {
		tmp.Close()
		return err
	}
	err = tmp.Close()
	if err != nil {
		return err
	}
	err = os.Chmod(tmp.Name(), 0644)
	if err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
