package portal

import (
	"context"
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"causelist-backend/lib/htmlutil"
	"causelist-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
)

type Extraction struct {
	Entries  []JudgeEntry
	Failures []*ExtractionError
	// NoData is set when the container itself says nothing is published.
	NoData bool
}

// rowBag is everything a row offers before deciding what it means. The portal
// renders rows as <tr>, <div> or a mix of both depending on the court, so
// nothing here assumes a column layout.
type rowBag struct {
	index     int
	attrs     map[string]string
	cells     []string
	headers   int
	anchors   []htmlutil.Anchor
	anchorErr error
	text      string
}

var (
	serialRegex  = regexp.MustCompile(`^\(?\d+[.)]?$`)
	noDataRegex  = regexp.MustCompile(`(?i)no\s+(record|cause\s*list|data)|not\s+(available|found|published)`)
	// a notice row opens with the message, judge rows may end with "pdf not available"
	noticeRegex  = regexp.MustCompile(`(?i)^\W*(no\s+(record|cause\s*list|data)|(cause\s*list\s+)?not\s+(available|found|published))`)
	genericLinks = []string{"view", "pdf", "download", "clickhere", "civil", "criminal", "open"}
)

func isGenericLinkText(text string) bool {
	normalized := textutil.NormalizeName(text)
	if normalized == "" {
		return true
	}
	for _, g := range genericLinks {
		if normalized == g {
			return true
		}
	}
	return false
}

func newRowBag(ctx context.Context, index int, s *goquery.Selection, base *url.URL) rowBag {
	bag := rowBag{
		index: index,
		attrs: map[string]string{},
	}
	if len(s.Nodes) > 0 {
		bag.text = htmlutil.CleanText(s.Nodes[0])
		for _, a := range s.Nodes[0].Attr {
			bag.attrs[a.Key] = a.Val
		}
	}
	s.Find("td").Each(func(_ int, td *goquery.Selection) {
		bag.cells = append(bag.cells, htmlutil.CleanText(td.Nodes[0]))
	})
	bag.headers = s.Find("th").Length()
	bag.anchors, bag.anchorErr = htmlutil.GetAnchors(ctx, s.Find("a"), base)
	return bag
}

func (b rowBag) isEmpty() bool {
	return b.text == "" && len(b.anchors) == 0 && b.anchorErr == nil
}

func (b rowBag) isHeader() bool {
	return b.headers > 0 && len(b.cells) == 0
}

// isNotice reports a row that only carries a "no cause list" message.
func (b rowBag) isNotice() bool {
	if len(b.anchors) > 0 || b.anchorErr != nil {
		return false
	}
	filled := 0
	for _, c := range b.cells {
		if c != "" {
			filled++
		}
	}
	return filled <= 1 && noticeRegex.MatchString(b.text)
}

func (b rowBag) label() string {
	if judge := textutil.CollapseSpace(b.attrs["data-judge"]); judge != "" {
		return judge
	}
	for _, c := range b.cells {
		if c == "" || serialRegex.MatchString(c) {
			continue
		}
		if isLinkCell(c, b.anchors) {
			continue
		}
		return c
	}
	for _, a := range b.anchors {
		if !isGenericLinkText(a.Name) {
			return a.Name
		}
	}
	if len(b.cells) == 0 && !serialRegex.MatchString(b.text) && !isGenericLinkText(b.text) {
		return b.text
	}
	return ""
}

// a cell that contains nothing but a "View"/"PDF" link is not a label.
func isLinkCell(cell string, anchors []htmlutil.Anchor) bool {
	for _, a := range anchors {
		if a.Name == cell && isGenericLinkText(a.Name) {
			return true
		}
	}
	return isGenericLinkText(cell)
}

func (b rowBag) pdfLink() string {
	for _, a := range b.anchors {
		link, err := url.Parse(a.Href)
		if err != nil {
			continue
		}
		if strings.HasSuffix(strings.ToLower(link.Path), ".pdf") {
			return a.Href
		}
	}
	return ""
}

func (b rowBag) entry() (JudgeEntry, *ExtractionError) {
	if b.anchorErr != nil {
		return JudgeEntry{}, &ExtractionError{
			Row:    b.index,
			Reason: fmt.Sprintf("malformed link: %v", b.anchorErr),
		}
	}
	label := b.label()
	if label == "" {
		return JudgeEntry{}, &ExtractionError{
			Row:    b.index,
			Reason: fmt.Sprintf("no judge label in %q", b.text),
		}
	}
	entry := JudgeEntry{JudgeText: label}
	if link := b.pdfLink(); link != "" {
		entry.PdfLink = &link
	}
	return entry, nil
}

// ExtractRows parses the rendered results container. It never fails as a
// whole, rows it cannot make sense of are reported in Failures.
func ExtractRows(ctx context.Context, document string, base *url.URL, sel Selectors) Extraction {
	ctx, span := tracer.Start(ctx, "ExtractRows")
	defer span.End()

	sel = sel.withDefaults()
	out := Extraction{}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(document))
	if err != nil {
		// x/net/html recovers from almost anything, this is an io failure
		out.Failures = append(out.Failures, &ExtractionError{Row: 0, Reason: err.Error()})
		return out
	}

	rows := doc.Find(sel.Row).FilterFunction(func(_ int, s *goquery.Selection) bool {
		// wrappers that contain other rows would duplicate their children
		return s.Find(sel.Row).Length() == 0
	})

	index := 0
	notice := false
	rows.Each(func(_ int, s *goquery.Selection) {
		index++
		bag := newRowBag(ctx, index, s, base)
		if bag.isEmpty() || bag.isHeader() {
			return
		}
		if bag.isNotice() {
			notice = true
			return
		}
		entry, failure := bag.entry()
		if failure != nil {
			out.Failures = append(out.Failures, failure)
			return
		}
		out.Entries = append(out.Entries, entry)
	})

	if !notice {
		// text around the rows, failed rows must not count as a notice
		rows.Remove()
		notice = noDataRegex.MatchString(doc.Text())
	}
	out.NoData = len(out.Entries) == 0 && notice

	span.SetAttributes(
		attribute.Int("entries", len(out.Entries)),
		attribute.Int("failures", len(out.Failures)),
		attribute.Bool("no_data", out.NoData),
	)
	return out
}
