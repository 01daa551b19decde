package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"causelist-backend/lib/portal"
	"causelist-backend/lib/telemetry"

	"github.com/chromedp/chromedp"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/semaphore"
)

var tracer = telemetry.Tracer("causelist.lib.browser")

var ErrPoolClosed = errors.New("browser pool is closed")

type Options struct {
	// RemoteUrl is a DevTools endpoint (ws:// or http://host:9222) of an
	// already running browser. A local browser is launched when empty.
	RemoteUrl string
	Headless  bool
	ExecPath  string
	// MaxSessions caps concurrently open sessions, defaults to 2.
	MaxSessions int
	UserAgent   string
}

// Pool owns one browser and hands out isolated sessions on it.
type Pool struct {
	opts Options

	allocCancel   context.CancelFunc
	browser       context.Context
	browserCancel context.CancelFunc
	slots         *semaphore.Weighted

	mu     sync.Mutex
	closed bool
	open   map[*Session]struct{}
}

func NewPool(ctx context.Context, opts Options) (*Pool, error) {
	ctx, span := tracer.Start(ctx, "pool:NewPool")
	defer span.End()

	if opts.MaxSessions <= 0 {
		opts.MaxSessions = 2
	}

	var allocCtx context.Context
	var allocCancel context.CancelFunc
	if opts.RemoteUrl != "" {
		span.SetAttributes(attribute.String("remote_url", opts.RemoteUrl))
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), opts.RemoteUrl)
	} else {
		flags := append(chromedp.DefaultExecAllocatorOptions[:],
			chromedp.Flag("headless", opts.Headless),
			chromedp.Flag("disable-gpu", true),
			chromedp.Flag("no-sandbox", true),
		)
		if opts.ExecPath != "" {
			flags = append(flags, chromedp.ExecPath(opts.ExecPath))
		}
		if opts.UserAgent != "" {
			flags = append(flags, chromedp.UserAgent(opts.UserAgent))
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), flags...)
	}

	browserCtx, browserCancel := chromedp.NewContext(
		allocCtx,
		chromedp.WithErrorf(func(format string, args ...any) {
			slog.Debug("chromedp", "msg", fmt.Sprintf(format, args...))
		}),
	)

	// the first Run starts the browser, its lifetime is browserCtx's
	started := make(chan error, 1)
	go func() {
		started <- chromedp.Run(browserCtx)
	}()
	select {
	case err := <-started:
		if err != nil {
			browserCancel()
			allocCancel()
			span.RecordError(err)
			span.SetStatus(codes.Error, "failed to start browser")
			return nil, fmt.Errorf("start browser: %w", err)
		}
	case <-ctx.Done():
		browserCancel()
		allocCancel()
		return nil, ctx.Err()
	}

	return &Pool{
		opts:          opts,
		allocCancel:   allocCancel,
		browser:       browserCtx,
		browserCancel: browserCancel,
		slots:         semaphore.NewWeighted(int64(opts.MaxSessions)),
		open:          map[*Session]struct{}{},
	}, nil
}

// Acquire blocks until a session slot is free. Every session gets a fresh
// browser context, so cookies and selections never carry over.
func (p *Pool) Acquire(ctx context.Context) (portal.Session, error) {
	ctx, span := tracer.Start(ctx, "pool:Acquire")
	defer span.End()

	err := p.slots.Acquire(ctx, 1)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.slots.Release(1)
		return nil, ErrPoolClosed
	}
	p.mu.Unlock()

	tab, tabCancel := chromedp.NewContext(p.browser, chromedp.WithNewBrowserContext())
	s := &Session{pool: p, tab: tab, tabCancel: tabCancel}

	// the first Run creates the target and its event loop lives as long as
	// the context of that Run, so it must be the tab itself. ctx can only
	// abort it by disposing of the tab.
	stop := context.AfterFunc(ctx, tabCancel)
	err = chromedp.Run(tab, chromedp.ActionFunc(func(ctx context.Context) error {
		return applyUserAgent(ctx, p.opts.UserAgent)
	}))
	if !stop() && err == nil {
		err = ctx.Err()
	}
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		tabCancel()
		p.slots.Release(1)
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to open session")
		return nil, fmt.Errorf("create target: %w", err)
	}

	p.mu.Lock()
	p.open[s] = struct{}{}
	p.mu.Unlock()
	return s, nil
}

func (p *Pool) release(s *Session) {
	p.mu.Lock()
	delete(p.open, s)
	p.mu.Unlock()
	p.slots.Release(1)
}

// Close closes every open session and the browser.
func (p *Pool) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	sessions := make([]*Session, 0, len(p.open))
	for s := range p.open {
		sessions = append(sessions, s)
	}
	p.mu.Unlock()

	var errs []error
	for _, s := range sessions {
		errs = append(errs, s.Close(ctx))
	}

	done := make(chan error, 1)
	go func() {
		done <- chromedp.Cancel(p.browser)
	}()
	select {
	case err := <-done:
		errs = append(errs, err)
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("browser did not exit in time: %w", ctx.Err()))
	case <-time.After(10 * time.Second):
		errs = append(errs, errors.New("browser did not exit in time"))
	}
	p.browserCancel()
	p.allocCancel()
	return errors.Join(errs...)
}
