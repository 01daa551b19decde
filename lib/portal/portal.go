package portal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"causelist-backend/lib/pdfarchive"
	"causelist-backend/lib/textutil"
	"causelist-backend/lib/timezone"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const DefaultEntryUrl = "https://services.ecourts.gov.in/ecourtindia_v6/?p=cause_list/"

type LookupRequest struct {
	State       string        `json:"state"`
	District    string        `json:"district"`
	Complex     string        `json:"complex"`
	Date        timezone.Date `json:"date"`
	DownloadPdf bool          `json:"download_pdf"`
}

func (r LookupRequest) Validate() error {
	var missing []string
	if strings.TrimSpace(r.State) == "" {
		missing = append(missing, "state")
	}
	if strings.TrimSpace(r.District) == "" {
		missing = append(missing, "district")
	}
	if strings.TrimSpace(r.Complex) == "" {
		missing = append(missing, "complex")
	}
	if r.Date.IsZero() {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return fmt.Errorf("lookup request is missing %s", strings.Join(missing, ", "))
	}
	return nil
}

type JudgeEntry struct {
	JudgeText     string  `json:"judge_text"`
	PdfLink       *string `json:"pdf_link"`
	DownloadedPdf *string `json:"downloaded_pdf"`
	// DownloadError is set when the link existed but the PDF could not be archived.
	DownloadError error `json:"-"`
}

type CauseListResult struct {
	State    string        `json:"state"`
	District string        `json:"district"`
	Complex  string        `json:"complex"`
	Date     timezone.Date `json:"date"`
	// Judges are in the order the portal rendered them.
	Judges []JudgeEntry `json:"judges"`

	// Omitted counts rows that were present but could not be parsed.
	Omitted          int                `json:"-"`
	ExtractionErrors []*ExtractionError `json:"-"`
}

func (r CauseListResult) DownloadErrors() []error {
	var errs []error
	for _, j := range r.Judges {
		if j.DownloadError != nil {
			errs = append(errs, j.DownloadError)
		}
	}
	return errs
}

// Downloader archives the PDFs of one lookup.
type Downloader interface {
	Download(ctx context.Context, batch pdfarchive.Batch) []pdfarchive.Result
}

type NavigatorOptions struct {
	Sessions SessionProvider
	// Archive may be nil if no request will ask for PDFs.
	Archive   Downloader
	EntryUrl  string
	Selectors Selectors
	// StepTimeout bounds every form interaction.
	StepTimeout time.Duration
	// RenderTimeout bounds page loads and the wait for results.
	RenderTimeout time.Duration
	// CloseGrace bounds releasing the session, including after cancellation.
	CloseGrace time.Duration
	// MatchThreshold is the minimum Jaro-Winkler similarity for a dropdown
	// label that is not an exact match.
	MatchThreshold float64
}

type Navigator struct {
	opts NavigatorOptions
}

func NewNavigator(opts NavigatorOptions) (*Navigator, error) {
	if opts.Sessions == nil {
		return nil, fmt.Errorf("a session provider was not specified")
	}
	if opts.EntryUrl == "" {
		opts.EntryUrl = DefaultEntryUrl
	}
	opts.Selectors = opts.Selectors.withDefaults()
	if opts.StepTimeout <= 0 {
		opts.StepTimeout = 15 * time.Second
	}
	if opts.RenderTimeout <= 0 {
		opts.RenderTimeout = 45 * time.Second
	}
	if opts.CloseGrace <= 0 {
		opts.CloseGrace = 5 * time.Second
	}
	if opts.MatchThreshold <= 0 {
		opts.MatchThreshold = 0.88
	}
	return &Navigator{opts: opts}, nil
}

// lookup is the state of one FetchCauseList call.
type lookup struct {
	nav     *Navigator
	req     LookupRequest
	machine *machine
	session Session
}

// FetchCauseList runs the cause-list protocol for one request on a session of
// its own. A date without published data is an empty result, not an error.
func (n *Navigator) FetchCauseList(ctx context.Context, req LookupRequest) (result CauseListResult, err error) {
	ctx, span := tracer.Start(ctx, "navigator:FetchCauseList")
	defer span.End()
	span.SetAttributes(
		attribute.String("state", req.State),
		attribute.String("district", req.District),
		attribute.String("complex", req.Complex),
		attribute.String("date", req.Date.String()),
		attribute.Bool("download_pdf", req.DownloadPdf),
	)

	result = CauseListResult{
		State:    req.State,
		District: req.District,
		Complex:  req.Complex,
		Date:     req.Date,
		Judges:   []JudgeEntry{},
	}

	outcome := "ok"
	defer func() {
		switch {
		case errors.Is(err, ErrCancelled):
			outcome = "cancelled"
		case err != nil:
			var navErr *NavigationError
			if errors.As(err, &navErr) {
				outcome = "navigation_error"
			} else {
				outcome = "invalid"
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "lookup failed")
		}
		lookupCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
	}()

	err = req.Validate()
	if err != nil {
		return result, err
	}

	l := &lookup{nav: n, req: req, machine: newMachine()}
	defer l.release(ctx)

	err = l.run(ctx, &result)
	if err != nil {
		return result, err
	}
	if len(result.Judges) == 0 {
		outcome = "no_data"
	}
	return result, nil
}

func (l *lookup) run(ctx context.Context, result *CauseListResult) error {
	opts := l.nav.opts
	sel := opts.Selectors

	err := l.step(ctx, "acquire_session", opts.RenderTimeout, func(ctx context.Context) error {
		session, err := opts.Sessions.Acquire(ctx)
		if err != nil {
			return err
		}
		l.session = session
		return nil
	})
	if err != nil {
		return err
	}

	err = l.step(ctx, "open", opts.RenderTimeout, func(ctx context.Context) error {
		return l.session.Navigate(ctx, opts.EntryUrl)
	})
	if err != nil {
		return err
	}

	var districts []Option
	err = l.step(ctx, "select_state", opts.StepTimeout, func(ctx context.Context) error {
		var err error
		districts, err = l.selectAndWait(ctx, sel.State, l.req.State, "state", sel.District)
		if err != nil {
			return err
		}
		return l.machine.advance(StateChosen)
	})
	if err != nil {
		return err
	}

	var complexes []Option
	err = l.step(ctx, "select_district", opts.StepTimeout, func(ctx context.Context) error {
		option, err := l.choose(ctx, districts, l.req.District, "district")
		if err != nil {
			return err
		}
		before, err := l.session.Options(ctx, sel.Complex)
		if err != nil {
			return err
		}
		err = l.session.Select(ctx, sel.District, option.Value)
		if err != nil {
			return err
		}
		complexes, err = l.session.WaitOptionsChange(ctx, sel.Complex, before)
		if err != nil {
			return fmt.Errorf("court complex list did not reload: %w", err)
		}
		return l.machine.advance(DistrictChosen)
	})
	if err != nil {
		return err
	}

	err = l.step(ctx, "select_complex", opts.StepTimeout, func(ctx context.Context) error {
		option, err := l.choose(ctx, complexes, l.req.Complex, "court complex")
		if err != nil {
			return err
		}
		err = l.session.Select(ctx, sel.Complex, option.Value)
		if err != nil {
			return err
		}
		return l.machine.advance(ComplexChosen)
	})
	if err != nil {
		return err
	}

	err = l.step(ctx, "set_date", opts.StepTimeout, func(ctx context.Context) error {
		want := l.req.Date.PortalString()
		got, err := l.session.FillDate(ctx, sel.Date, want)
		if err != nil {
			return err
		}
		if strings.TrimSpace(got) != want {
			return fmt.Errorf("date control holds %q after entering %q, the date was rejected", got, want)
		}
		return nil
	})
	if err != nil {
		return err
	}

	err = l.step(ctx, "submit", opts.StepTimeout, func(ctx context.Context) error {
		err := l.session.Click(ctx, sel.Submit)
		if err != nil {
			return err
		}
		return l.machine.advance(Submitted)
	})
	if err != nil {
		return err
	}

	noData := false
	err = l.step(ctx, "render", opts.RenderTimeout, func(ctx context.Context) error {
		idx, err := l.session.WaitAny(ctx, sel.Results, sel.NoData)
		if err != nil {
			return fmt.Errorf("the page did not render results or a no data notice: %w", err)
		}
		noData = idx == 1
		return nil
	})
	if err != nil {
		return err
	}

	if noData {
		slog.InfoContext(ctx, "portal reported no cause list for date", "complex", l.req.Complex, "date", l.req.Date.String())
		return l.machine.advance(Rendered)
	}

	var pageUrl string
	var extraction Extraction
	err = l.step(ctx, "extract", opts.StepTimeout, func(ctx context.Context) error {
		document, err := l.session.OuterHTML(ctx, sel.Results)
		if err != nil {
			return err
		}
		pageUrl, err = l.session.Location(ctx)
		if err != nil {
			return err
		}
		base, err := url.Parse(pageUrl)
		if err != nil {
			return fmt.Errorf("page location %q: %w", pageUrl, err)
		}
		extraction = ExtractRows(ctx, document, base, sel)
		return l.machine.advance(Rendered)
	})
	if err != nil {
		return err
	}

	result.Judges = append(result.Judges, extraction.Entries...)
	result.ExtractionErrors = extraction.Failures
	result.Omitted = len(extraction.Failures)
	if result.Omitted > 0 {
		omittedRowCounter.Add(ctx, int64(result.Omitted))
		slog.WarnContext(ctx, "omitted unparseable result rows", "omitted", result.Omitted, "extracted", len(result.Judges), "err", errors.Join(asErrors(extraction.Failures)...))
	}

	if !l.req.DownloadPdf {
		return nil
	}
	return l.download(ctx, pageUrl, result)
}

func asErrors(failures []*ExtractionError) []error {
	out := make([]error, len(failures))
	for i, f := range failures {
		out[i] = f
	}
	return out
}

func (l *lookup) download(ctx context.Context, pageUrl string, result *CauseListResult) error {
	var indexes []int
	var items []pdfarchive.Item
	for i, j := range result.Judges {
		if j.PdfLink == nil {
			continue
		}
		indexes = append(indexes, i)
		items = append(items, pdfarchive.Item{JudgeText: j.JudgeText, Url: *j.PdfLink})
	}
	if len(items) == 0 {
		return nil
	}
	if l.nav.opts.Archive == nil {
		err := errors.New("pdf download requested but no archive is configured")
		for _, i := range indexes {
			result.Judges[i].DownloadError = err
		}
		return nil
	}

	var cookies []*http.Cookie
	err := l.step(ctx, "export_session", l.nav.opts.StepTimeout, func(ctx context.Context) error {
		var err error
		cookies, err = l.session.Cookies(ctx)
		return err
	})
	if err != nil {
		return err
	}

	results := l.nav.opts.Archive.Download(ctx, pdfarchive.Batch{
		Date:    l.req.Date,
		Complex: l.req.Complex,
		Referer: pageUrl,
		Cookies: cookies,
		Items:   items,
	})
	if ctx.Err() != nil {
		return cancelledError{step: "download", err: ctx.Err()}
	}

	for k, i := range indexes {
		if k >= len(results) {
			break
		}
		if results[k].Err != nil {
			result.Judges[i].DownloadError = results[k].Err
			continue
		}
		path := results[k].Path
		result.Judges[i].DownloadedPdf = &path
	}
	return nil
}

// selectAndWait selects want in the select at selector and waits for the
// dependent select to reload, returning its fresh options. The snapshot is
// taken before selecting, otherwise a fast reload could be mistaken for the
// stale list.
func (l *lookup) selectAndWait(ctx context.Context, selector, want, level, dependent string) ([]Option, error) {
	before, err := l.session.Options(ctx, dependent)
	if err != nil {
		return nil, err
	}
	options, err := l.session.Options(ctx, selector)
	if err != nil {
		return nil, err
	}
	option, err := l.choose(ctx, options, want, level)
	if err != nil {
		return nil, err
	}
	err = l.session.Select(ctx, selector, option.Value)
	if err != nil {
		return nil, err
	}
	after, err := l.session.WaitOptionsChange(ctx, dependent, before)
	if err != nil {
		return nil, fmt.Errorf("dependent list did not reload after choosing %s %q: %w", level, option.Label, err)
	}
	return after, nil
}

func (l *lookup) choose(ctx context.Context, options []Option, want, level string) (Option, error) {
	candidates := realOptions(options)
	labels := make([]string, len(candidates))
	for i, o := range candidates {
		labels[i] = o.Label
	}

	match := textutil.BestMatch(want, labels, l.nav.opts.MatchThreshold)
	if match.Index < 0 {
		shown := labels
		if len(shown) > 10 {
			shown = append(shown[:10:10], "...")
		}
		return Option{}, fmt.Errorf("no %s option matches %q (have: %s)", level, want, strings.Join(shown, ", "))
	}

	chosen := candidates[match.Index]
	if match.Similarity < 1 {
		slog.InfoContext(ctx, "fuzzy matched dropdown label", "level", level, "wanted", want, "chosen", chosen.Label, "similarity", match.Similarity)
	}
	return chosen, nil
}

// step runs fn under a bounded context. Failures become a NavigationError
// naming the step, unless the caller cancelled.
func (l *lookup) step(ctx context.Context, name string, timeout time.Duration, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "step:"+name)
	defer span.End()

	if err := ctx.Err(); err != nil {
		l.machine.fail()
		return cancelledError{step: name, err: err}
	}

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := fn(stepCtx)
	if err == nil {
		span.SetAttributes(attribute.String("stage", l.machine.Stage().String()))
		return nil
	}

	l.machine.fail()
	span.RecordError(err)
	if ctx.Err() != nil {
		span.SetStatus(codes.Error, "cancelled")
		return cancelledError{step: name, err: ctx.Err()}
	}
	span.SetStatus(codes.Error, "step failed")
	slog.WarnContext(ctx, "navigation step failed", "step", name, "err", err)
	return &NavigationError{Step: name, Err: err}
}

// release always runs, and with a context that outlives cancellation so a
// cancelled lookup still gets its browser context torn down.
func (l *lookup) release(ctx context.Context) {
	if l.session == nil {
		return
	}
	closeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), l.nav.opts.CloseGrace)
	defer cancel()

	err := l.session.Close(closeCtx)
	if err != nil {
		slog.WarnContext(ctx, "failed to close browser session", "err", err)
	}
	l.session = nil
}
