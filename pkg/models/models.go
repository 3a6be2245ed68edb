package models

import (
	"net/url"
	"sort"
	"strings"
	"time"
)

// Platform represents the supported platforms
type Platform string

const (
	PlatformYouTube   Platform = "YouTube"
	PlatformInstagram Platform = "Instagram"
	PlatformTikTok    Platform = "TikTok"
	PlatformFacebook  Platform = "Facebook"
	PlatformUnknown   Platform = "Unknown"
)

// Platforms returns the closed set of supported platforms in display order
func Platforms() []Platform {
	return []Platform{PlatformYouTube, PlatformInstagram, PlatformTikTok, PlatformFacebook}
}

// ParsePlatform resolves a user supplied platform hint. Empty input and
// "auto" yield PlatformUnknown with ok set to true.
func ParsePlatform(s string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto", "any":
		return PlatformUnknown, true
	case "youtube", "yt":
		return PlatformYouTube, true
	case "instagram", "ig", "insta":
		return PlatformInstagram, true
	case "tiktok", "tt":
		return PlatformTikTok, true
	case "facebook", "fb":
		return PlatformFacebook, true
	default:
		return PlatformUnknown, false
	}
}

// Kind represents what a link points at
type Kind string

const (
	KindProfile Kind = "profile"
	KindPost    Kind = "post"
	KindInvalid Kind = "invalid"
)

// Kinds returns the valid link kinds
func Kinds() []Kind {
	return []Kind{KindProfile, KindPost}
}

// Link is a user submitted URL plus its classification.
// Links are built by the link package and never modified afterwards.
type Link struct {
	Raw        string   `json:"raw"`
	Normalized string   `json:"normalized"`
	Platform   Platform `json:"platform"`
	Kind       Kind     `json:"kind"`

	parsed *url.URL
}

// NewLink creates a classified link
func NewLink(raw string, u *url.URL, platform Platform, kind Kind) *Link {
	cp := *u
	return &Link{
		Raw:        raw,
		Normalized: u.String(),
		Platform:   platform,
		Kind:       kind,
		parsed:     &cp,
	}
}

// URL returns a copy of the parsed normalized URL
func (l *Link) URL() *url.URL {
	if l.parsed == nil {
		u, err := url.Parse(l.Normalized)
		if err != nil {
			return &url.URL{}
		}
		return u
	}
	cp := *l.parsed
	return &cp
}

// RawExtraction is the platform native output of one extractor for one page
type RawExtraction struct {
	Platform Platform            `json:"platform"`
	Kind     Kind                `json:"kind"`
	URL      string              `json:"url"`
	Fields   map[string]string   `json:"fields"`
	Lists    map[string][]string `json:"lists,omitempty"`
	Missing  []string            `json:"missing,omitempty"`
}

// NewRawExtraction creates an empty extraction for a page
func NewRawExtraction(platform Platform, kind Kind, pageURL string) *RawExtraction {
	return &RawExtraction{
		Platform: platform,
		Kind:     kind,
		URL:      pageURL,
		Fields:   make(map[string]string),
		Lists:    make(map[string][]string),
	}
}

// Field returns a field value and whether it was extracted
func (r *RawExtraction) Field(name string) (string, bool) {
	v, ok := r.Fields[name]
	return v, ok && v != ""
}

// Empty reports whether nothing at all was extracted
func (r *RawExtraction) Empty() bool {
	for _, v := range r.Fields {
		if v != "" {
			return false
		}
	}
	for _, l := range r.Lists {
		if len(l) > 0 {
			return false
		}
	}
	return true
}

// SkippedItem is a fanned-out page that could not be extracted
type SkippedItem struct {
	URL    string `json:"url"`
	Reason string `json:"reason"`
}

// Extraction is the result of running one extraction strategy for a link
type Extraction struct {
	Primary *RawExtraction   `json:"primary"`
	Items   []*RawExtraction `json:"items,omitempty"`
	Skipped []SkippedItem    `json:"skipped,omitempty"`
}

// Common record columns, in export order
const (
	ColPlatform    = "platform"
	ColKind        = "kind"
	ColSourceURL   = "source_url"
	ColURL         = "url"
	ColHandle      = "handle"
	ColAuthor      = "author"
	ColTitle       = "title"
	ColFollowers   = "followers"
	ColFollowing   = "following"
	ColPosts       = "posts"
	ColViews       = "views"
	ColLikes       = "likes"
	ColComments    = "comments"
	ColPublished   = "published"
	ColExtractedAt = "extracted_at"
)

// DefaultColumns returns the common record schema
func DefaultColumns() []string {
	return []string{
		ColPlatform,
		ColKind,
		ColSourceURL,
		ColURL,
		ColHandle,
		ColAuthor,
		ColTitle,
		ColFollowers,
		ColFollowing,
		ColPosts,
		ColViews,
		ColLikes,
		ColComments,
		ColPublished,
		ColExtractedAt,
	}
}

// Record is one normalized row
type Record struct {
	Link   *Link             `json:"link"`
	Values map[string]string `json:"values"`
	Extra  map[string]string `json:"extra,omitempty"`
}

// Get returns the value for a column
func (r *Record) Get(column string) string {
	return r.Values[column]
}

// Row renders the record in column order
func (r *Record) Row(columns []string) []string {
	row := make([]string, len(columns))
	for i, c := range columns {
		row[i] = r.Values[c]
	}
	return row
}

// ExtraKeys returns the extra field names sorted
func (r *Record) ExtraKeys() []string {
	keys := make([]string, 0, len(r.Extra))
	for k := range r.Extra {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Table is an ordered batch of records sharing one column set
type Table struct {
	Columns []string      `json:"columns"`
	Records []*Record     `json:"records"`
	Skipped []SkippedItem `json:"skipped,omitempty"`
}

// NewTable creates an empty table with the given columns
func NewTable(columns []string) *Table {
	cols := make([]string, len(columns))
	copy(cols, columns)
	return &Table{Columns: cols}
}

// Append adds a record. The record must carry exactly the table columns.
func (t *Table) Append(rec *Record) error {
	if len(rec.Values) != len(t.Columns) {
		return &SchemaMismatchError{Want: len(t.Columns), Got: len(rec.Values)}
	}
	for _, c := range t.Columns {
		if _, ok := rec.Values[c]; !ok {
			return &SchemaMismatchError{Want: len(t.Columns), Got: len(rec.Values), Column: c}
		}
	}
	t.Records = append(t.Records, rec)
	return nil
}

// Merge appends all records of other, which must share the column set
func (t *Table) Merge(other *Table) error {
	for _, rec := range other.Records {
		if err := t.Append(rec); err != nil {
			return err
		}
	}
	t.Skipped = append(t.Skipped, other.Skipped...)
	return nil
}

// Rows renders every record in column order
func (t *Table) Rows() [][]string {
	rows := make([][]string, 0, len(t.Records))
	for _, rec := range t.Records {
		rows = append(rows, rec.Row(t.Columns))
	}
	return rows
}

// Len returns the number of records
func (t *Table) Len() int {
	return len(t.Records)
}

// ScrapeRun is one persisted pipeline invocation
type ScrapeRun struct {
	ID          string    `json:"id" gorm:"primaryKey"`
	RawURL      string    `json:"raw_url"`
	URL         string    `json:"url" gorm:"index"`
	Platform    Platform  `json:"platform" gorm:"index"`
	Kind        Kind      `json:"kind"`
	Strategy    string    `json:"strategy"`
	RecordCount int       `json:"record_count"`
	Skipped     int       `json:"skipped"`
	DurationMS  int64     `json:"duration_ms"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
}

// StoredRecord is a persisted record, unique per (source_url, url)
type StoredRecord struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	RunID     string    `json:"run_id" gorm:"index"`
	Platform  Platform  `json:"platform" gorm:"index"`
	Kind      Kind      `json:"kind" gorm:"index"`
	SourceURL string    `json:"source_url" gorm:"uniqueIndex:idx_source_item"`
	URL       string    `json:"url" gorm:"uniqueIndex:idx_source_item"`
	Values    string    `json:"values" gorm:"column:record_values;type:text"`
	Extra     string    `json:"extra" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time `json:"updated_at" gorm:"autoUpdateTime"`
}

// RecordFilter defines filters for listing stored records
type RecordFilter struct {
	Platform  *Platform
	Kind      *Kind
	SourceURL string
	Limit     int
	Offset    int
}

// Config represents the application configuration
type Config struct {
	Server struct {
		Host         string `mapstructure:"host" yaml:"host"`
		Port         int    `mapstructure:"port" yaml:"port"`
		ReadTimeout  int    `mapstructure:"read_timeout" yaml:"read_timeout"`
		WriteTimeout int    `mapstructure:"write_timeout" yaml:"write_timeout"`
	} `mapstructure:"server" yaml:"server"`

	Renderer struct {
		Engine            string  `mapstructure:"engine" yaml:"engine"`
		Timeout           int     `mapstructure:"timeout" yaml:"timeout"`
		SettleDelayMS     int     `mapstructure:"settle_delay_ms" yaml:"settle_delay_ms"`
		Retries           int     `mapstructure:"retries" yaml:"retries"`
		RetryDelay        int     `mapstructure:"retry_delay" yaml:"retry_delay"`
		RequestsPerSecond float64 `mapstructure:"requests_per_second" yaml:"requests_per_second"`
		UserAgent         string  `mapstructure:"user_agent" yaml:"user_agent"`
		Headless          bool    `mapstructure:"headless" yaml:"headless"`
		ExecPath          string  `mapstructure:"exec_path" yaml:"exec_path"`
		Scroll            bool    `mapstructure:"scroll" yaml:"scroll"`
	} `mapstructure:"renderer" yaml:"renderer"`

	Scrape struct {
		MaxItems    int    `mapstructure:"max_items" yaml:"max_items"`
		Placeholder string `mapstructure:"placeholder" yaml:"placeholder"`
	} `mapstructure:"scrape" yaml:"scrape"`

	Export struct {
		Format    string `mapstructure:"format" yaml:"format"`
		Dir       string `mapstructure:"dir" yaml:"dir"`
		WithExtra bool   `mapstructure:"with_extra" yaml:"with_extra"`
	} `mapstructure:"export" yaml:"export"`

	Database struct {
		Type    string `mapstructure:"type" yaml:"type"`
		Path    string `mapstructure:"path" yaml:"path"`
		Enabled bool   `mapstructure:"enabled" yaml:"enabled"`
	} `mapstructure:"database" yaml:"database"`

	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
		Output string `mapstructure:"output" yaml:"output"`
	} `mapstructure:"log" yaml:"log"`

	Proxy struct {
		Enabled  bool   `mapstructure:"enabled" yaml:"enabled"`
		Type     string `mapstructure:"type" yaml:"type"`
		Host     string `mapstructure:"host" yaml:"host"`
		Port     int    `mapstructure:"port" yaml:"port"`
		Username string `mapstructure:"username" yaml:"username"`
		Password string `mapstructure:"password" yaml:"password"`
	} `mapstructure:"proxy" yaml:"proxy"`

	Auth struct {
		Enabled       bool   `mapstructure:"enabled" yaml:"enabled"`
		JWTSecret     string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
		TokenExpiry   int    `mapstructure:"token_expiry" yaml:"token_expiry"`
		AdminPassword string `mapstructure:"admin_password" yaml:"admin_password"`
	} `mapstructure:"auth" yaml:"auth"`

	RateLimit struct {
		Enabled           bool     `mapstructure:"enabled" yaml:"enabled"`
		RequestsPerSecond int      `mapstructure:"requests_per_second" yaml:"requests_per_second"`
		Burst             int      `mapstructure:"burst" yaml:"burst"`
		MaxConcurrent     int      `mapstructure:"max_concurrent" yaml:"max_concurrent"`
		WhitelistedIPs    []string `mapstructure:"whitelisted_ips" yaml:"whitelisted_ips"`
	} `mapstructure:"rate_limit" yaml:"rate_limit"`
}
