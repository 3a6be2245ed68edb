package models

import "context"

// Page is a rendered page that can be queried with CSS selectors
type Page interface {
	// URL returns the final URL after redirects
	URL() string

	// Text returns the trimmed text of the first element matching selector
	Text(selector string) (string, bool)

	// Attr returns an attribute of the first element matching selector
	Attr(selector, attr string) (string, bool)

	// All returns the text (attr == "") or attribute of every match
	All(selector, attr string) []string
}

// Renderer loads pages. A renderer is owned by exactly one pipeline run
// and must be closed when the run ends.
type Renderer interface {
	// Load renders a page. Failures, including timeouts, wrap ErrPageUnavailable.
	Load(ctx context.Context, url string) (Page, error)

	// Close releases the underlying browser or client
	Close() error
}

// Extractor extracts a platform's native field set from rendered pages
type Extractor interface {
	// Platform returns the platform this extractor serves
	Platform() Platform

	// Supports reports whether the extractor has a schema for kind
	Supports(kind Kind) bool

	// Extract runs the strategy for link. Profile links fan out to at most
	// maxItems listed posts.
	Extract(ctx context.Context, r Renderer, link *Link, maxItems int) (*Extraction, error)

	// Fields returns the native field names produced for kind
	Fields(kind Kind) []string
}

// Storage defines the interface for persisting extracted tables
type Storage interface {
	// SaveRun saves a pipeline run and its records, deduplicated by URL
	SaveRun(run *ScrapeRun, table *Table) error

	// GetRun retrieves a run
	GetRun(id string) (*ScrapeRun, error)

	// ListRuns lists recent runs
	ListRuns(limit int) ([]*ScrapeRun, error)

	// ListRecords lists stored records with filters
	ListRecords(filter RecordFilter) ([]*StoredRecord, error)

	// CountRecords counts stored records
	CountRecords() (int64, error)

	// Close closes the storage connection
	Close() error
}
