package storage

import (
	"path/filepath"
	"testing"
	"time"

	"social-scraper/pkg/models"
)

func newTestStorage(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "data", "test.db"))
	if err != nil {
		t.Fatalf("Expected storage to open, got %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func record(platform models.Platform, kind models.Kind, source, url, title string) *models.Record {
	values := make(map[string]string)
	for _, col := range models.DefaultColumns() {
		values[col] = "N/A"
	}
	values[models.ColPlatform] = string(platform)
	values[models.ColKind] = string(kind)
	values[models.ColSourceURL] = source
	values[models.ColURL] = url
	values[models.ColTitle] = title
	return &models.Record{Values: values, Extra: map[string]string{"note": title}}
}

func table(t *testing.T, records ...*models.Record) *models.Table {
	t.Helper()
	tbl := models.NewTable(models.DefaultColumns())
	for _, r := range records {
		if err := tbl.Append(r); err != nil {
			t.Fatalf("Expected record to fit table, got %v", err)
		}
	}
	return tbl
}

func TestSaveRunAndList(t *testing.T) {
	s := newTestStorage(t)

	run := &models.ScrapeRun{ID: "run-1", URL: "https://instagram.com/natgeo", Platform: models.PlatformInstagram, Kind: models.KindProfile, RecordCount: 2}
	tbl := table(t,
		record(models.PlatformInstagram, models.KindPost, "https://instagram.com/natgeo", "https://instagram.com/p/a", "first"),
		record(models.PlatformInstagram, models.KindPost, "https://instagram.com/natgeo", "https://instagram.com/p/b", "second"),
	)
	if err := s.SaveRun(run, tbl); err != nil {
		t.Fatalf("Expected no error saving run, got %v", err)
	}

	got, err := s.GetRun("run-1")
	if err != nil || got == nil {
		t.Fatalf("Expected run to be stored, got %v, %v", got, err)
	}
	if got.Platform != models.PlatformInstagram || got.RecordCount != 2 {
		t.Errorf("Unexpected run %+v", got)
	}

	count, err := s.CountRecords()
	if err != nil {
		t.Fatalf("Expected no error counting, got %v", err)
	}
	if count != 2 {
		t.Errorf("Expected 2 records, got %d", count)
	}

	missing, err := s.GetRun("nope")
	if err != nil || missing != nil {
		t.Errorf("Expected nil run without error, got %v, %v", missing, err)
	}
}

func TestSaveRunDeduplicates(t *testing.T) {
	s := newTestStorage(t)
	source := "https://youtube.com/watch?v=abc"

	first := table(t, record(models.PlatformYouTube, models.KindPost, source, source, "old title"))
	if err := s.SaveRun(&models.ScrapeRun{ID: "r1"}, first); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	second := table(t,
		record(models.PlatformYouTube, models.KindPost, source, source, "stale"),
		record(models.PlatformYouTube, models.KindPost, source, source, "new title"),
	)
	if err := s.SaveRun(&models.ScrapeRun{ID: "r2"}, second); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	records, err := s.ListRecords(models.RecordFilter{})
	if err != nil {
		t.Fatalf("Expected no error listing, got %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("Expected 1 deduplicated record, got %d", len(records))
	}
	if records[0].RunID != "r2" {
		t.Errorf("Expected record to belong to the latest run, got %s", records[0].RunID)
	}

	tbl, err := ToTable(models.DefaultColumns(), "N/A", records)
	if err != nil {
		t.Fatalf("Expected no error rebuilding table, got %v", err)
	}
	if got := tbl.Records[0].Get(models.ColTitle); got != "new title" {
		t.Errorf("Expected newest values, got %q", got)
	}
}

func TestListRecordsFilters(t *testing.T) {
	s := newTestStorage(t)

	tbl := table(t,
		record(models.PlatformTikTok, models.KindPost, "https://tiktok.com/@a/video/1", "https://tiktok.com/@a/video/1", "t"),
		record(models.PlatformFacebook, models.KindProfile, "https://facebook.com/nasa", "https://facebook.com/nasa", "f"),
		record(models.PlatformFacebook, models.KindPost, "https://facebook.com/nasa/posts/1", "https://facebook.com/nasa/posts/1", "p"),
	)
	if err := s.SaveRun(&models.ScrapeRun{ID: "mixed"}, tbl); err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	facebook := models.PlatformFacebook
	post := models.KindPost
	tests := []struct {
		name     string
		filter   models.RecordFilter
		expected int
	}{
		{"all", models.RecordFilter{}, 3},
		{"platform", models.RecordFilter{Platform: &facebook}, 2},
		{"platform and kind", models.RecordFilter{Platform: &facebook, Kind: &post}, 1},
		{"source", models.RecordFilter{SourceURL: "https://facebook.com/nasa"}, 1},
		{"limit", models.RecordFilter{Limit: 2}, 2},
		{"offset", models.RecordFilter{Limit: 10, Offset: 2}, 1},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			records, err := s.ListRecords(test.filter)
			if err != nil {
				t.Fatalf("Expected no error, got %v", err)
			}
			if len(records) != test.expected {
				t.Errorf("Expected %d records, got %d", test.expected, len(records))
			}
		})
	}
}

func TestStatsAndRuns(t *testing.T) {
	s := newTestStorage(t)

	for _, id := range []string{"a", "b"} {
		run := &models.ScrapeRun{ID: id, Platform: models.PlatformYouTube}
		tbl := table(t, record(models.PlatformYouTube, models.KindPost, "https://youtube.com/watch?v="+id, "https://youtube.com/watch?v="+id, id))
		if err := s.SaveRun(run, tbl); err != nil {
			t.Fatalf("Expected no error, got %v", err)
		}
	}

	runs, err := s.ListRuns(1)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if len(runs) != 1 {
		t.Errorf("Expected limit to apply, got %d runs", len(runs))
	}

	stats, err := s.GetStats()
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if stats.TotalRuns != 2 || stats.TotalRecords != 2 || stats.ByPlatform[models.PlatformYouTube] != 2 {
		t.Errorf("Unexpected stats %+v", stats)
	}
	if stats.LastRunAt == nil {
		t.Error("Expected last run time")
	}

	removed, err := s.CleanupOldRuns(time.Hour)
	if err != nil {
		t.Fatalf("Expected no error cleaning up, got %v", err)
	}
	if removed != 0 {
		t.Errorf("Expected recent runs to be kept, removed %d", removed)
	}
	if count, _ := s.CountRecords(); count != 2 {
		t.Errorf("Expected 2 records after keeping recent runs, got %d", count)
	}

	removed, err = s.CleanupOldRuns(-time.Hour)
	if err != nil {
		t.Fatalf("Expected no error cleaning up, got %v", err)
	}
	if removed != 2 {
		t.Errorf("Expected 2 runs removed, got %d", removed)
	}
	if count, _ := s.CountRecords(); count != 0 {
		t.Errorf("Expected cleanup to remove every record, got %d", count)
	}
}

func TestSaveRunRequiresID(t *testing.T) {
	s := newTestStorage(t)
	if err := s.SaveRun(&models.ScrapeRun{}, nil); err == nil {
		t.Error("Expected error for a run without ID")
	}
}

func TestToTableFillsMissingColumns(t *testing.T) {
	stored := []*models.StoredRecord{{ID: 1, Values: `{"platform":"TikTok"}`}}
	tbl, err := ToTable(models.DefaultColumns(), "N/A", stored)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}
	if tbl.Records[0].Get(models.ColPlatform) != "TikTok" || tbl.Records[0].Get(models.ColTitle) != "N/A" {
		t.Errorf("Unexpected record %v", tbl.Records[0].Values)
	}

	if _, err := ToTable(models.DefaultColumns(), "N/A", []*models.StoredRecord{{ID: 2, Values: "not json"}}); err == nil {
		t.Error("Expected error for corrupt values")
	}
}
