package tui

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"social-scraper/internal/export"
	"social-scraper/internal/link"
	"social-scraper/internal/pipeline"
	"social-scraper/pkg/models"
)

const videoURL = "https://youtube.com/watch?v=abc123"

type fakeRunner struct {
	result *pipeline.Result
	err    error
	hint   models.Platform
	max    int
}

func (f *fakeRunner) Run(ctx context.Context, raw string, hint models.Platform, maxItems int) (*pipeline.Result, error) {
	f.hint = hint
	f.max = maxItems
	return f.result, f.err
}

func sampleResult(t *testing.T) *pipeline.Result {
	t.Helper()
	l, err := link.Parse(videoURL, models.PlatformUnknown)
	if err != nil {
		t.Fatal(err)
	}

	rec := &models.Record{Link: l, Values: make(map[string]string)}
	for _, c := range models.DefaultColumns() {
		rec.Values[c] = "N/A"
	}
	rec.Values[models.ColPlatform] = "YouTube"
	rec.Values[models.ColKind] = "post"
	rec.Values[models.ColTitle] = "Never Gonna Give You Up"

	table := models.NewTable(models.DefaultColumns())
	if err := table.Append(rec); err != nil {
		t.Fatal(err)
	}
	return &pipeline.Result{RunID: "run_1", Link: l, Strategy: "YouTube/post", Table: table, Duration: time.Second}
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	default:
		return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
	}
}

func send(m Model, msgs ...tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, msg := range msgs {
		var next tea.Model
		next, cmd = m.Update(msg)
		m = next.(Model)
	}
	return m, cmd
}

func TestNavigation(t *testing.T) {
	m := InitialModel(Options{})

	tests := []struct {
		key      string
		expected State
	}{
		{"1", ScrapeScreen},
		{"esc", MainMenu},
		{"2", Results},
		{"esc", MainMenu},
		{"3", History},
		{"esc", MainMenu},
		{"4", Help},
	}

	for _, test := range tests {
		m, _ = send(m, key(test.key))
		if m.state != test.expected {
			t.Errorf("After %q: expected state %d, got %d", test.key, test.expected, m.state)
		}
	}
}

func TestPlatformSelector(t *testing.T) {
	m := InitialModel(Options{})
	m, _ = send(m, key("1"))

	if m.Platform() != models.PlatformUnknown {
		t.Errorf("Expected auto detection by default, got %s", m.Platform())
	}

	m, _ = send(m, key("tab"))
	if m.Platform() != models.PlatformYouTube {
		t.Errorf("Expected YouTube, got %s", m.Platform())
	}

	m, _ = send(m, key("shift+tab"), key("shift+tab"))
	if m.Platform() != models.PlatformFacebook {
		t.Errorf("Expected wrap around to Facebook, got %s", m.Platform())
	}
}

func TestTypingIntoInput(t *testing.T) {
	m := InitialModel(Options{})
	m, _ = send(m, key("1"), key("q"), key("x"))

	if m.urlInput.Value() != "qx" {
		t.Errorf("Expected keys to reach the input, got %q", m.urlInput.Value())
	}
	if m.state != ScrapeScreen {
		t.Errorf("Expected to stay on the scrape screen, got %d", m.state)
	}
}

func TestScrapeAndExport(t *testing.T) {
	dir := t.TempDir()
	runner := &fakeRunner{result: sampleResult(t)}
	m := InitialModel(Options{Runner: runner, MaxItems: 7, ExportDir: dir})

	m, _ = send(m, key("1"))
	m, cmd := send(m, key("enter"))
	if cmd != nil || m.running {
		t.Error("Expected empty input to be ignored")
	}

	m.urlInput.SetValue(videoURL)
	m, _ = send(m, key("tab"))
	m, cmd = send(m, key("enter"))
	if cmd == nil || !m.running {
		t.Fatal("Expected a scrape to start")
	}

	msg := m.scrapeCmd(videoURL, m.Platform())()
	if runner.hint != models.PlatformYouTube || runner.max != 7 {
		t.Errorf("Expected hint YouTube and max 7, got %s %d", runner.hint, runner.max)
	}

	m, _ = send(m, msg)
	if m.running || m.state != Results {
		t.Fatalf("Expected results screen, got state %d running %v", m.state, m.running)
	}
	if rows := m.table.Rows(); len(rows) != 1 || rows[0][3] != "Never Gonna Give You Up" {
		t.Errorf("Unexpected rows %v", rows)
	}
	if len(m.history) != 1 || m.history[0].Status != "ok" || m.history[0].Records != 1 {
		t.Errorf("Unexpected history %+v", m.history)
	}

	m, cmd = send(m, key("c"))
	if cmd == nil {
		t.Fatal("Expected an export command")
	}
	done := cmd().(exportDoneMsg)
	if done.err != nil {
		t.Fatalf("Expected no error, got %v", done.err)
	}
	if !strings.HasSuffix(done.path, ".csv") || !strings.HasPrefix(done.path, dir) {
		t.Errorf("Unexpected export path %s", done.path)
	}
	if _, err := os.Stat(done.path); err != nil {
		t.Errorf("Expected export file, got %v", err)
	}

	m, _ = send(m, done)
	if !strings.Contains(m.status, "Exported to") {
		t.Errorf("Expected export status, got %q", m.status)
	}
}

func TestScrapeError(t *testing.T) {
	m := InitialModel(Options{Runner: &fakeRunner{}})
	m, _ = send(m, key("1"))

	err := fmt.Errorf("%w: example.com", models.ErrUnsupportedPlatform)
	m, _ = send(m, scrapeDoneMsg{url: "https://example.com", err: err})

	if m.state != ScrapeScreen {
		t.Errorf("Expected to stay on the scrape screen, got %d", m.state)
	}
	if !strings.Contains(m.View(), models.KindUnsupportedPlatform) {
		t.Error("Expected the error kind to be rendered")
	}
	if len(m.history) != 1 || m.history[0].Status != models.KindUnsupportedPlatform {
		t.Errorf("Unexpected history %+v", m.history)
	}
}

func TestExportWithoutResult(t *testing.T) {
	m := InitialModel(Options{Export: export.ExportConfig{Format: export.FormatJSON}})
	m, _ = send(m, key("2"))

	m, cmd := send(m, key("e"))
	if cmd != nil {
		t.Error("Expected no export without a result")
	}
	if m.status != "Nothing to export yet" {
		t.Errorf("Unexpected status %q", m.status)
	}
}
