package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"causelist-backend/lib/portal"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
)

// Session is one browser context with a single tab. It implements
// portal.Session.
type Session struct {
	pool      *Pool
	tab       context.Context
	tabCancel context.CancelFunc
	once      sync.Once
}

var _ portal.Session = (*Session)(nil)

// run executes actions on the tab, aborting when ctx is done. The tab itself
// outlives ctx, only Close disposes of it.
func (s *Session) run(ctx context.Context, what string, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithCancel(s.tab)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("%s: %w", what, ctxErr)
		}
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

func pollOptions(ctx context.Context) []chromedp.PollOption {
	opts := []chromedp.PollOption{chromedp.WithPollingMutation()}
	if deadline, ok := ctx.Deadline(); ok {
		opts = append(opts, chromedp.WithPollingTimeout(time.Until(deadline)))
	}
	return opts
}

// jsCall renders a call of the function literal fn with JSON encoded args.
func jsCall(fn string, args ...any) string {
	encoded := make([]string, len(args))
	for i, a := range args {
		b, err := json.Marshal(a)
		if err != nil {
			// only strings and string slices are passed
			panic(err)
		}
		encoded[i] = string(b)
	}
	return fmt.Sprintf("(%s)(%s)", fn, strings.Join(encoded, ", "))
}

const readOptionsJs = `(sel) => {
	const el = document.querySelector(sel);
	if (!el || !el.options) return null;
	return Array.from(el.options).map(o => ({value: o.value, label: (o.textContent || "").trim()}));
}`

// returns every option once the non placeholder ones differ from previous,
// false while they are the same
const changedOptionsJs = `(sel, previous) => {
	const el = document.querySelector(sel);
	if (!el || !el.options) return false;
	const all = Array.from(el.options).map(o => ({value: o.value, label: (o.textContent || "").trim()}));
	const real = (list) => list.filter(o => {
		const v = o.value.trim();
		return v !== "" && v !== "0" && !o.label.toLowerCase().startsWith("select");
	});
	const now = real(all);
	const before = real(previous);
	const same = now.length === before.length &&
		now.every((o, i) => o.value === before[i].value && o.label === before[i].label);
	return same ? false : all;
}`

const selectValueJs = `(sel, value) => {
	const el = document.querySelector(sel);
	if (!el) return false;
	el.value = value;
	el.dispatchEvent(new Event("input", {bubbles: true}));
	el.dispatchEvent(new Event("change", {bubbles: true}));
	return el.value === value;
}`

const setValueJs = `(sel, value) => {
	const el = document.querySelector(sel);
	if (!el) return "";
	el.removeAttribute("readonly");
	el.value = value;
	el.dispatchEvent(new Event("input", {bubbles: true}));
	el.dispatchEvent(new Event("change", {bubbles: true}));
	el.dispatchEvent(new Event("blur"));
	return el.value;
}`

// index + 1 of the first selector with a visible non empty match, 0 if none
const firstVisibleJs = `(sels) => {
	for (let i = 0; i < sels.length; i++) {
		for (const el of document.querySelectorAll(sels[i])) {
			if (el.getClientRects().length > 0 && (el.textContent || "").trim() !== "") return i + 1;
		}
	}
	return 0;
}`

func (s *Session) Navigate(ctx context.Context, url string) error {
	return s.run(ctx, "navigate", chromedp.Navigate(url), chromedp.WaitReady("body", chromedp.ByQuery))
}

func (s *Session) Options(ctx context.Context, selector string) ([]portal.Option, error) {
	var options []portal.Option
	err := s.run(ctx, "read options",
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.Evaluate(jsCall(readOptionsJs, selector), &options),
	)
	if err != nil {
		return nil, err
	}
	if options == nil {
		return nil, fmt.Errorf("%s is not a select", selector)
	}
	return options, nil
}

func (s *Session) WaitOptionsChange(ctx context.Context, selector string, previous []portal.Option) ([]portal.Option, error) {
	if previous == nil {
		previous = []portal.Option{}
	}
	var options []portal.Option
	err := s.run(ctx, "wait for options",
		chromedp.Poll(jsCall(changedOptionsJs, selector, previous), &options, pollOptions(ctx)...),
	)
	if err != nil {
		return nil, err
	}
	return options, nil
}

func (s *Session) Select(ctx context.Context, selector, value string) error {
	var ok bool
	err := s.run(ctx, "select",
		chromedp.WaitReady(selector, chromedp.ByQuery),
		chromedp.Evaluate(jsCall(selectValueJs, selector, value), &ok),
	)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%s rejected value %q", selector, value)
	}
	return nil
}

// FillDate types the date like a user. Pickers that ignore keystrokes are set
// through the DOM instead.
func (s *Session) FillDate(ctx context.Context, selector, value string) (string, error) {
	var got string
	err := s.run(ctx, "type date",
		chromedp.WaitVisible(selector, chromedp.ByQuery),
		chromedp.Clear(selector, chromedp.ByQuery),
		chromedp.SendKeys(selector, value, chromedp.ByQuery),
		chromedp.Blur(selector, chromedp.ByQuery),
		chromedp.Value(selector, &got, chromedp.ByQuery),
	)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(got) == value {
		return got, nil
	}

	err = s.run(ctx, "set date", chromedp.Evaluate(jsCall(setValueJs, selector, value), &got))
	if err != nil {
		return "", err
	}
	return got, nil
}

func (s *Session) Click(ctx context.Context, selector string) error {
	return s.run(ctx, "click", chromedp.Click(selector, chromedp.ByQuery))
}

func (s *Session) WaitAny(ctx context.Context, selectors ...string) (int, error) {
	var found int
	err := s.run(ctx, "wait for any",
		chromedp.Poll(jsCall(firstVisibleJs, selectors), &found, pollOptions(ctx)...),
	)
	if err != nil {
		return -1, err
	}
	return found - 1, nil
}

func (s *Session) OuterHTML(ctx context.Context, selector string) (string, error) {
	var html string
	err := s.run(ctx, "read html", chromedp.OuterHTML(selector, &html, chromedp.ByQuery))
	return html, err
}

func (s *Session) Location(ctx context.Context) (string, error) {
	var location string
	err := s.run(ctx, "read location", chromedp.Location(&location))
	return location, err
}

func (s *Session) Cookies(ctx context.Context) ([]*http.Cookie, error) {
	var out []*http.Cookie
	err := s.run(ctx, "export cookies", chromedp.ActionFunc(func(ctx context.Context) error {
		cookies, err := network.GetCookies().Do(ctx)
		if err != nil {
			return err
		}
		for _, c := range cookies {
			cookie := &http.Cookie{
				Name:     c.Name,
				Value:    c.Value,
				Domain:   c.Domain,
				Path:     c.Path,
				Secure:   c.Secure,
				HttpOnly: c.HTTPOnly,
			}
			if !c.Session && c.Expires > 0 {
				cookie.Expires = time.Unix(int64(c.Expires), 0)
			}
			out = append(out, cookie)
		}
		return nil
	}))
	return out, err
}

// Close disposes of the tab and its browser context. It is safe to call more
// than once.
func (s *Session) Close(ctx context.Context) error {
	var err error
	s.once.Do(func() {
		done := make(chan error, 1)
		go func() {
			done <- chromedp.Cancel(s.tab)
		}()
		select {
		case err = <-done:
		case <-ctx.Done():
			err = fmt.Errorf("session did not close in time: %w", ctx.Err())
		}
		s.tabCancel()
		s.pool.release(s)
	})
	return err
}

func applyUserAgent(ctx context.Context, userAgent string) error {
	if userAgent == "" {
		return nil
	}
	return emulation.SetUserAgentOverride(userAgent).Do(ctx)
}
