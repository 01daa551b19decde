package htmlutil

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/url"

	"causelist-backend/lib/telemetry"
	"causelist-backend/lib/textutil"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/net/html"
)

var tracer = telemetry.Tracer("causelist.lib.htmlutil")

func GetText(node *html.Node) string {
	var buffer bytes.Buffer
	getTextRecursive(node, &buffer)
	return buffer.String()
}

func getTextRecursive(node *html.Node, buffer *bytes.Buffer) {
	if node == nil {
		return
	}
	if node.Type == html.TextNode {
		buffer.WriteString(node.Data)
		return
	}
	// <br> and block cells separate words that would otherwise be glued together
	if node.Type == html.ElementNode && node.Data == "br" {
		buffer.WriteByte(' ')
	}
	child := node.FirstChild
	for child != nil {
		getTextRecursive(child, buffer)
		child = child.NextSibling
	}
}

// CleanText is GetText with whitespace collapsed.
func CleanText(node *html.Node) string {
	return textutil.CollapseSpace(GetText(node))
}

type Anchor struct {
	Name string
	Href string
}

// GetAnchors returns the anchors in sel with resolved hrefs. Anchors without
// an href are skipped, anchors whose href cannot be parsed are reported in
// the returned error and skipped.
func GetAnchors(ctx context.Context, sel *goquery.Selection, base *url.URL) ([]Anchor, error) {
	ctx, span := tracer.Start(ctx, "GetAnchors")
	defer span.End()

	anchors := []Anchor{}
	var errs []error
	for _, n := range sel.Nodes {
		href := ""
		for _, a := range n.Attr {
			if a.Key == "href" {
				href = a.Val
				break
			}
		}
		if href == "" || href == "#" {
			continue
		}

		link, err := url.Parse(href)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "got error while parsing url")
			errs = append(errs, fmt.Errorf("parse href %q: %w", href, err))
			continue
		}
		if base != nil {
			link = base.ResolveReference(link)
		}

		name := CleanText(n)
		linkStr := link.String()
		anchors = append(anchors, Anchor{
			Name: name,
			Href: linkStr,
		})
		span.AddEvent("anchor", trace.WithAttributes(
			attribute.String("name", name),
			attribute.String("url", linkStr),
		))
	}

	return anchors, errors.Join(errs...)
}
