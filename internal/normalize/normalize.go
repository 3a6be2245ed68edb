package normalize

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"social-scraper/pkg/models"
)

// DefaultPlaceholder marks cells the platform does not provide
const DefaultPlaceholder = "N/A"

// Normalizer reshapes platform native extractions into common records
type Normalizer struct {
	placeholder string
	columns     []string
	now         func() time.Time
}

// New creates a normalizer. An empty placeholder uses DefaultPlaceholder.
func New(placeholder string) *Normalizer {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	return &Normalizer{
		placeholder: placeholder,
		columns:     models.DefaultColumns(),
		now:         time.Now,
	}
}

// Columns returns the column set of every record this normalizer builds
func (n *Normalizer) Columns() []string {
	cols := make([]string, len(n.columns))
	copy(cols, n.columns)
	return cols
}

// Placeholder returns the marker used for missing cells
func (n *Normalizer) Placeholder() string {
	return n.placeholder
}

// Normalize builds the records for one extraction. A post yields one
// record. A profile yields one record per extracted item, each carrying the
// profile columns, or a single profile record when there are no items.
func (n *Normalizer) Normalize(l *models.Link, ex *models.Extraction) []*models.Record {
	if ex == nil || ex.Primary == nil {
		return nil
	}
	extractedAt := n.now().UTC().Format(time.RFC3339)

	primary := n.record(l, ex.Primary, l.Normalized, extractedAt)
	if l.Kind != models.KindProfile || len(ex.Items) == 0 {
		return []*models.Record{primary}
	}

	records := make([]*models.Record, 0, len(ex.Items))
	for _, item := range ex.Items {
		rec := n.record(l, item, item.URL, extractedAt)
		for _, col := range profileColumns {
			if rec.Values[col] == n.placeholder {
				rec.Values[col] = primary.Values[col]
			}
		}
		if rec.Values[models.ColAuthor] == n.placeholder {
			rec.Values[models.ColAuthor] = primary.Values[models.ColAuthor]
		}
		for k, v := range primary.Extra {
			rec.Extra["profile_"+k] = v
		}
		records = append(records, rec)
	}
	return records
}

func (n *Normalizer) record(l *models.Link, raw *models.RawExtraction, pageURL, extractedAt string) *models.Record {
	values := make(map[string]string, len(n.columns))
	for _, col := range n.columns {
		values[col] = n.placeholder
	}
	values[models.ColPlatform] = string(raw.Platform)
	values[models.ColKind] = string(raw.Kind)
	values[models.ColSourceURL] = l.Normalized
	values[models.ColURL] = pageURL
	values[models.ColExtractedAt] = extractedAt

	table := aliases[aliasKey{raw.Platform, raw.Kind}]
	extra := make(map[string]string)

	for name, value := range raw.Fields {
		if value == "" {
			continue
		}
		col, ok := table[name]
		if !ok {
			extra[name] = value
			continue
		}
		if metricColumns[col] {
			if count, ok := ParseCount(value); ok {
				value = strconv.FormatInt(count, 10)
			}
		}
		values[col] = value
	}
	if len(raw.Missing) > 0 {
		extra["missing_fields"] = strings.Join(raw.Missing, ",")
	}

	return &models.Record{
		Link:   l,
		Values: values,
		Extra:  extra,
	}
}

// BuildTable normalizes an extraction into a table and carries over the
// skipped items
func (n *Normalizer) BuildTable(l *models.Link, ex *models.Extraction) (*models.Table, error) {
	table, err := BuildTable(n.columns, n.Normalize(l, ex)...)
	if err != nil {
		return nil, err
	}
	if ex != nil {
		table.Skipped = append(table.Skipped, ex.Skipped...)
	}
	return table, nil
}

// BuildTable concatenates records into one table. Every record must carry
// exactly the given columns.
func BuildTable(columns []string, records ...*models.Record) (*models.Table, error) {
	table := models.NewTable(columns)
	for i, rec := range records {
		if err := table.Append(rec); err != nil {
			return nil, fmt.Errorf("record %d: %w", i, err)
		}
	}
	return table, nil
}
