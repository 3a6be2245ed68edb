package platform

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"regexp"
	"strings"

	"github.com/rs/zerolog"

	"social-scraper/internal/link"
	"social-scraper/pkg/models"
)

// Selector is one way of locating a field on a page. Attr selects an
// attribute instead of the element text; Pattern keeps its first submatch.
type Selector struct {
	CSS     string
	Attr    string
	Pattern *regexp.Regexp
}

// Text selects the text of the first element matching css
func Text(css string) Selector {
	return Selector{CSS: css}
}

// Attr selects an attribute of the first element matching css
func Attr(css, attr string) Selector {
	return Selector{CSS: css, Attr: attr}
}

// Meta selects the content of a <meta property|name=...> tag
func Meta(name string) Selector {
	return Selector{CSS: fmt.Sprintf(`meta[property=%q], meta[name=%q], meta[itemprop=%q]`, name, name, name), Attr: "content"}
}

// Match narrows a selector to the first submatch of pattern
func (s Selector) Match(pattern string) Selector {
	s.Pattern = regexp.MustCompile(pattern)
	return s
}

// Field is one named value of a schema. Selectors are tried in order and
// the first non-empty cleaned value wins. List fields collect every match
// of the first selector that yields any.
type Field struct {
	Name      string
	Selectors []Selector
	Clean     func(string) string
	List      bool
}

// Schema is the field set extracted for one link kind
type Schema struct {
	Kind   models.Kind
	Fields []Field
}

// Names returns the field names in declaration order
func (s Schema) Names() []string {
	names := make([]string, len(s.Fields))
	for i, f := range s.Fields {
		names[i] = f.Name
	}
	return names
}

// Definition describes how one platform is scraped
type Definition struct {
	Platform models.Platform
	Profile  Schema
	Post     Schema

	// ItemsField is the list field of the profile schema holding post URLs
	ItemsField string
}

// Scraper runs a Definition against rendered pages. It implements
// models.Extractor.
type Scraper struct {
	def    Definition
	logger zerolog.Logger
}

// NewScraper creates a scraper for def
func NewScraper(def Definition, logger *zerolog.Logger) *Scraper {
	l := zerolog.New(os.Stdout).With().Timestamp().Logger()
	if logger != nil {
		l = *logger
	}
	return &Scraper{
		def:    def,
		logger: l.With().Str("platform", string(def.Platform)).Logger(),
	}
}

// Platform returns the platform this scraper serves
func (s *Scraper) Platform() models.Platform {
	return s.def.Platform
}

// Supports reports whether a schema exists for kind
func (s *Scraper) Supports(kind models.Kind) bool {
	return s.schema(kind) != nil
}

// Fields returns the native field names produced for kind
func (s *Scraper) Fields(kind models.Kind) []string {
	schema := s.schema(kind)
	if schema == nil {
		return nil
	}
	return schema.Names()
}

func (s *Scraper) schema(kind models.Kind) *Schema {
	var schema *Schema
	switch kind {
	case models.KindProfile:
		schema = &s.def.Profile
	case models.KindPost:
		schema = &s.def.Post
	default:
		return nil
	}
	if len(schema.Fields) == 0 {
		return nil
	}
	return schema
}

// Extract loads the linked page and applies the schema for its kind.
// Profiles fan out to at most maxItems listed posts; a post that cannot be
// loaded or yields nothing is recorded as skipped.
func (s *Scraper) Extract(ctx context.Context, r models.Renderer, l *models.Link, maxItems int) (*models.Extraction, error) {
	if l.Platform != s.def.Platform {
		return nil, fmt.Errorf("%w: %s extractor cannot handle %s links", models.ErrNoExtractorRegistered, s.def.Platform, l.Platform)
	}
	schema := s.schema(l.Kind)
	if schema == nil {
		return nil, fmt.Errorf("%w: %s/%s", models.ErrNoExtractorRegistered, l.Platform, l.Kind)
	}

	page, err := r.Load(ctx, l.Normalized)
	if err != nil {
		return nil, err
	}

	primary := s.Apply(*schema, page)
	if primary.Empty() {
		return nil, fmt.Errorf("%w: nothing extracted from %s", models.ErrEmptyExtraction, l.Normalized)
	}

	extraction := &models.Extraction{Primary: primary}
	if l.Kind != models.KindProfile || maxItems <= 0 || s.def.ItemsField == "" {
		return extraction, nil
	}

	items := s.itemURLs(primary, page.URL(), maxItems)
	for i, itemURL := range items {
		if err := ctx.Err(); err != nil {
			for _, rest := range items[i:] {
				extraction.Skipped = append(extraction.Skipped, models.SkippedItem{URL: rest, Reason: err.Error()})
			}
			break
		}

		item, err := s.extractItem(ctx, r, itemURL)
		if err != nil {
			s.logger.Warn().Err(err).Str("url", itemURL).Msg("Skipping item")
			extraction.Skipped = append(extraction.Skipped, models.SkippedItem{URL: itemURL, Reason: err.Error()})
			continue
		}
		extraction.Items = append(extraction.Items, item)
	}

	return extraction, nil
}

func (s *Scraper) extractItem(ctx context.Context, r models.Renderer, itemURL string) (*models.RawExtraction, error) {
	page, err := r.Load(ctx, itemURL)
	if err != nil {
		return nil, err
	}
	item := s.Apply(s.def.Post, page)
	if item.Empty() {
		return nil, fmt.Errorf("%w: nothing extracted from %s", models.ErrEmptyExtraction, itemURL)
	}
	// Keep the URL the item was listed under rather than a redirect target
	item.URL = itemURL
	return item, nil
}

// itemURLs resolves listed hrefs against the profile page and keeps the
// distinct ones that parse as posts of this platform, up to limit
func (s *Scraper) itemURLs(primary *models.RawExtraction, base string, limit int) []string {
	baseURL, err := url.Parse(base)
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var out []string
	for _, href := range primary.Lists[s.def.ItemsField] {
		if len(out) >= limit {
			break
		}
		ref, err := url.Parse(strings.TrimSpace(href))
		if err != nil {
			continue
		}
		item, err := link.Parse(baseURL.ResolveReference(ref).String(), s.def.Platform)
		if err != nil || item.Kind != models.KindPost || seen[item.Normalized] {
			continue
		}
		seen[item.Normalized] = true
		out = append(out, item.Normalized)
	}
	return out
}

// Apply extracts every schema field from page. Fields that are not found
// are listed in Missing and logged as FieldMissingError.
func (s *Scraper) Apply(schema Schema, page models.Page) *models.RawExtraction {
	raw := models.NewRawExtraction(s.def.Platform, schema.Kind, page.URL())

	for _, field := range schema.Fields {
		if field.List {
			if values := extractList(field, page); len(values) > 0 {
				raw.Lists[field.Name] = values
				continue
			}
		} else if value, ok := extractValue(field, page); ok {
			raw.Fields[field.Name] = value
			continue
		}

		raw.Missing = append(raw.Missing, field.Name)
		s.logger.Debug().
			Err(&models.FieldMissingError{Field: field.Name}).
			Str("url", page.URL()).
			Str("kind", string(schema.Kind)).
			Msg("Field not found")
	}

	return raw
}

func extractValue(field Field, page models.Page) (string, bool) {
	for _, sel := range field.Selectors {
		// Patterns look past the first match, e.g. a row of counter buttons
		if sel.Pattern != nil {
			for _, v := range page.All(sel.CSS, sel.Attr) {
				if v = clean(field, sel, v); v != "" {
					return v, true
				}
			}
			continue
		}

		var v string
		var ok bool
		if sel.Attr == "" {
			v, ok = page.Text(sel.CSS)
		} else {
			v, ok = page.Attr(sel.CSS, sel.Attr)
		}
		if !ok {
			continue
		}
		if v = clean(field, sel, v); v != "" {
			return v, true
		}
	}
	return "", false
}

func extractList(field Field, page models.Page) []string {
	for _, sel := range field.Selectors {
		var values []string
		for _, v := range page.All(sel.CSS, sel.Attr) {
			if v = clean(field, sel, v); v != "" {
				values = append(values, v)
			}
		}
		if len(values) > 0 {
			return values
		}
	}
	return nil
}

func clean(field Field, sel Selector, v string) string {
	if sel.Pattern != nil {
		m := sel.Pattern.FindStringSubmatch(v)
		if len(m) < 2 {
			return ""
		}
		v = m[1]
	}
	if field.Clean != nil {
		v = field.Clean(v)
	}
	return strings.TrimSpace(v)
}
