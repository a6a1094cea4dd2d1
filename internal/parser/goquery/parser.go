// Package goqueryparser adapts goquery documents to the crawler's Document
// and Element interfaces.
package goqueryparser

import (
	"bytes"
	"fmt"
	"iter"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/imagefinder/internal/crawler"
)

// Parser builds goquery documents from fetched bodies.
type Parser struct{}

var _ crawler.Parser = (*Parser)(nil)

// New returns a Parser.
func New() *Parser {
	return &Parser{}
}

// Parse reads body as HTML. Relative references resolve against the page's
// <base href> when present and against baseURL otherwise.
func (p *Parser) Parse(baseURL string, body []byte) (crawler.Document, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	if href, ok := doc.Find("base[href]").First().Attr("href"); ok {
		if ref, refErr := url.Parse(strings.TrimSpace(href)); refErr == nil {
			base = base.ResolveReference(ref)
		}
	}
	return &Document{doc: doc, base: base}, nil
}

// Document wraps a goquery document and its resolved base URL.
type Document struct {
	doc  *goquery.Document
	base *url.URL
}

// Base returns the URL relative references resolve against.
func (d *Document) Base() string {
	return d.base.String()
}

// Select yields the elements matching selector in document order.
func (d *Document) Select(selector string) iter.Seq[crawler.Element] {
	return func(yield func(crawler.Element) bool) {
		sel := d.doc.Find(selector)
		for i := range sel.Length() {
			if !yield(&Element{sel: sel.Eq(i), base: d.base}) {
				return
			}
		}
	}
}

// Element is a single matched node.
type Element struct {
	sel  *goquery.Selection
	base *url.URL
}

// Attr returns the trimmed attribute value or "".
func (e *Element) Attr(name string) string {
	return strings.TrimSpace(e.sel.AttrOr(name, ""))
}

// AbsAttr resolves the attribute against the document base.
func (e *Element) AbsAttr(name string) string {
	raw := e.Attr(name)
	if raw == "" {
		return ""
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return e.base.ResolveReference(ref).String()
}

// HasAncestor reports whether any ancestor of the element matches selector.
func (e *Element) HasAncestor(selector string) bool {
	return e.sel.ParentsFiltered(selector).Length() > 0
}
