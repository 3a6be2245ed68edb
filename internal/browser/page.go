package browser

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is a rendered HTML document queried with CSS selectors
type Page struct {
	url string
	doc *goquery.Document
}

// NewPage parses html rendered from pageURL
func NewPage(pageURL, html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Page{url: pageURL, doc: doc}, nil
}

// URL returns the final URL of the page
func (p *Page) URL() string {
	return p.url
}

// Text returns the collapsed text of the first element matching selector
func (p *Page) Text(selector string) (string, bool) {
	sel := p.doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	text := collapseSpace(sel.Text())
	return text, text != ""
}

// Attr returns an attribute of the first element matching selector
func (p *Page) Attr(selector, attr string) (string, bool) {
	v, ok := p.doc.Find(selector).First().Attr(attr)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}

// All returns the text (attr == "") or attribute of every element matching selector
func (p *Page) All(selector, attr string) []string {
	var out []string
	p.doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
		var v string
		if attr == "" {
			v = collapseSpace(s.Text())
		} else {
			v, _ = s.Attr(attr)
			v = strings.TrimSpace(v)
		}
		if v != "" {
			out = append(out, v)
		}
	})
	return out
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
