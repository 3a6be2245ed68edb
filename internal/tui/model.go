package tui

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"social-scraper/internal/export"
	"social-scraper/internal/link"
	"social-scraper/internal/pipeline"
	"social-scraper/pkg/models"
)

// Runner scrapes one link
type Runner interface {
	Run(ctx context.Context, raw string, hint models.Platform, maxItems int) (*pipeline.Result, error)
}

// Options wires the TUI to the scraper
type Options struct {
	Runner    Runner
	MaxItems  int
	ExportDir string
	Export    export.ExportConfig
}

// Model represents the main application state
type Model struct {
	state       State
	opts        Options
	urlInput    textinput.Model
	table       table.Model
	spinner     spinner.Model
	platforms   []models.Platform
	platformIdx int
	running     bool
	result      *pipeline.Result
	history     []HistoryEntry
	status      string
	err         error
	ctx         context.Context
	cancel      context.CancelFunc
	width       int
	height      int
	styles      Styles
}

// State represents different screens/states of the TUI
type State int

const (
	MainMenu State = iota
	ScrapeScreen
	Results
	History
	Help
)

// HistoryEntry is one run of this session
type HistoryEntry struct {
	RunID    string
	URL      string
	Platform string
	Records  int
	Status   string
	Duration time.Duration
}

// scrapeDoneMsg carries the outcome of a run
type scrapeDoneMsg struct {
	url    string
	result *pipeline.Result
	err    error
}

// exportDoneMsg carries the outcome of an export
type exportDoneMsg struct {
	path string
	err  error
}

// Styles holds all the styling for the TUI
type Styles struct {
	title        lipgloss.Style
	subtitle     lipgloss.Style
	menuItem     lipgloss.Style
	selectedItem lipgloss.Style
	input        lipgloss.Style
	errorText    lipgloss.Style
	statusBar    lipgloss.Style
	table        lipgloss.Style
}

// resultColumns are the columns shown on screen; exports carry all of them
var resultColumns = []struct {
	name  string
	title string
	width int
}{
	{models.ColPlatform, "Platform", 10},
	{models.ColKind, "Kind", 8},
	{models.ColHandle, "Handle", 16},
	{models.ColTitle, "Title", 30},
	{models.ColFollowers, "Followers", 10},
	{models.ColViews, "Views", 10},
	{models.ColLikes, "Likes", 10},
	{models.ColURL, "URL", 40},
}

// InitialModel creates the initial model for the TUI
func InitialModel(opts Options) Model {
	ti := textinput.New()
	ti.Placeholder = "Enter a profile or post URL..."
	ti.Focus()
	ti.CharLimit = 500
	ti.Width = 60

	columns := make([]table.Column, len(resultColumns))
	for i, c := range resultColumns {
		columns[i] = table.Column{Title: c.title, Width: c.width}
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows([]table.Row{}),
		table.WithFocused(true),
		table.WithHeight(12),
	)

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("#7D56F4"))

	if opts.ExportDir == "" {
		opts.ExportDir = "."
	}
	if opts.Export.Format == "" {
		opts.Export.Format = export.FormatCSV
	}

	styles := Styles{
		title: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7D56F4")).
			PaddingTop(1).
			PaddingBottom(1),
		subtitle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			PaddingBottom(1),
		menuItem: lipgloss.NewStyle().
			PaddingLeft(2).
			PaddingRight(2).
			Margin(0, 1),
		selectedItem: lipgloss.NewStyle().
			PaddingLeft(1).
			PaddingRight(1).
			Background(lipgloss.Color("#7D56F4")).
			Foreground(lipgloss.Color("#FFFFFF")),
		input: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1),
		errorText: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#E0245E")),
		statusBar: lipgloss.NewStyle().
			Foreground(lipgloss.Color("#626262")).
			Padding(0, 1),
		table: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")),
	}

	ctx, cancel := context.WithCancel(context.Background())

	return Model{
		state:     MainMenu,
		opts:      opts,
		urlInput:  ti,
		table:     t,
		spinner:   sp,
		platforms: append([]models.Platform{models.PlatformUnknown}, models.Platforms()...),
		ctx:       ctx,
		cancel:    cancel,
		styles:    styles,
	}
}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Platform returns the selected platform hint
func (m Model) Platform() models.Platform {
	return m.platforms[m.platformIdx]
}

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case scrapeDoneMsg:
		m.running = false
		m.recordHistory(msg)
		if msg.err != nil {
			m.err = msg.err
			m.status = ""
			return m, nil
		}
		m.err = nil
		m.result = msg.result
		m.updateTable()
		m.status = fmt.Sprintf("%d records from %s in %s", msg.result.Table.Len(), msg.result.Link.Normalized, msg.result.Duration.Round(time.Millisecond))
		m.state = Results
		return m, nil

	case exportDoneMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.err = nil
		m.status = "Exported to " + msg.path
		return m, nil

	case spinner.TickMsg:
		if !m.running {
			return m, nil
		}
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if next, cmd, handled := m.handleKey(msg); handled {
			return next, cmd
		}
	}

	switch m.state {
	case ScrapeScreen:
		m.urlInput, cmd = m.urlInput.Update(msg)
	case Results:
		m.table, cmd = m.table.Update(msg)
	}

	return m, cmd
}

// handleKey processes navigation keys; unhandled keys go to the focused
// component
func (m Model) handleKey(msg tea.KeyMsg) (Model, tea.Cmd, bool) {
	key := msg.String()

	if key == "ctrl+c" {
		m.cancel()
		return m, tea.Quit, true
	}
	if key == "esc" && m.state != MainMenu {
		m.state = MainMenu
		return m, nil, true
	}

	switch m.state {
	case MainMenu:
		switch key {
		case "q":
			m.cancel()
			return m, tea.Quit, true
		case "1":
			m.state = ScrapeScreen
			return m, textinput.Blink, true
		case "2":
			m.state = Results
			return m, nil, true
		case "3":
			m.state = History
			return m, nil, true
		case "4":
			m.state = Help
			return m, nil, true
		}

	case ScrapeScreen:
		switch key {
		case "tab":
			m.platformIdx = (m.platformIdx + 1) % len(m.platforms)
			return m, nil, true
		case "shift+tab":
			m.platformIdx = (m.platformIdx + len(m.platforms) - 1) % len(m.platforms)
			return m, nil, true
		case "enter":
			raw := strings.TrimSpace(m.urlInput.Value())
			if raw == "" || m.running || m.opts.Runner == nil {
				return m, nil, true
			}
			m.running = true
			m.err = nil
			m.status = "Scraping " + raw
			return m, tea.Batch(m.spinner.Tick, m.scrapeCmd(raw, m.Platform())), true
		}

	case Results:
		var format export.ExportFormat
		switch key {
		case "e":
			format = m.opts.Export.Format
		case "c":
			format = export.FormatCSV
		case "x":
			format = export.FormatXLSX
		case "j":
			format = export.FormatJSON
		case "q":
			m.cancel()
			return m, tea.Quit, true
		default:
			return m, nil, false
		}
		if m.result == nil {
			m.status = "Nothing to export yet"
			return m, nil, true
		}
		return m, m.exportCmd(format), true

	case History, Help:
		if key == "q" {
			m.cancel()
			return m, tea.Quit, true
		}
	}

	return m, nil, false
}

func (m Model) scrapeCmd(raw string, hint models.Platform) tea.Cmd {
	runner, ctx, maxItems := m.opts.Runner, m.ctx, m.opts.MaxItems
	return func() tea.Msg {
		result, err := runner.Run(ctx, raw, hint, maxItems)
		return scrapeDoneMsg{url: raw, result: result, err: err}
	}
}

func (m Model) exportCmd(format export.ExportFormat) tea.Cmd {
	cfg := m.opts.Export
	cfg.Format = format
	table := m.result.Table
	path := filepath.Join(m.opts.ExportDir, export.DefaultFilename(m.result.Link.Platform, format, time.Now()))

	return func() tea.Msg {
		err := export.NewDataExporter(cfg).ExportToFile(path, table)
		return exportDoneMsg{path: path, err: err}
	}
}

func (m *Model) recordHistory(msg scrapeDoneMsg) {
	entry := HistoryEntry{URL: msg.url, Status: "ok"}
	if msg.err != nil {
		entry.Status = models.ErrorKind(msg.err)
		if p, err := link.ClassifyString(msg.url); err == nil {
			entry.Platform = string(p)
		}
	} else {
		entry.RunID = msg.result.RunID
		entry.Platform = string(msg.result.Link.Platform)
		entry.Records = msg.result.Table.Len()
		entry.Duration = msg.result.Duration
	}
	m.history = append(m.history, entry)
}

// View renders the UI
func (m Model) View() string {
	switch m.state {
	case ScrapeScreen:
		return m.renderScrapeScreen()
	case Results:
		return m.renderResults()
	case History:
		return m.renderHistory()
	case Help:
		return m.renderHelp()
	default:
		return m.renderMainMenu()
	}
}

func (m Model) place(content string) string {
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m Model) renderMainMenu() string {
	title := m.styles.title.Render("Social Scraper")
	subtitle := m.styles.subtitle.Render("Profiles and posts from YouTube, Instagram, TikTok and Facebook")

	menu := []string{
		"1. Scrape a link",
		"2. Results",
		"3. History",
		"4. Help",
		"",
		"q. Quit",
	}

	var menuItems []string
	for _, item := range menu {
		if item == "" {
			menuItems = append(menuItems, "")
		} else {
			menuItems = append(menuItems, m.styles.menuItem.Render(item))
		}
	}

	return m.place(lipgloss.JoinVertical(lipgloss.Left,
		title,
		subtitle,
		"",
		strings.Join(menuItems, "\n"),
	))
}

func (m Model) renderPlatforms() string {
	var items []string
	for i, p := range m.platforms {
		name := string(p)
		if p == models.PlatformUnknown {
			name = "Auto"
		}
		if i == m.platformIdx {
			items = append(items, m.styles.selectedItem.Render(name))
		} else {
			items = append(items, " "+name+" ")
		}
	}
	return strings.Join(items, " ")
}

func (m Model) renderScrapeScreen() string {
	title := m.styles.title.Render("Scrape a link")

	var examples []string
	for _, ex := range link.Examples() {
		examples = append(examples, fmt.Sprintf("• %s %s: %s", ex.Platform, ex.Kind, ex.URL))
	}

	status := m.status
	if m.running {
		status = m.spinner.View() + " " + m.status
	}

	return m.place(lipgloss.JoinVertical(lipgloss.Left,
		title,
		"Platform: "+m.renderPlatforms(),
		"",
		m.styles.input.Render(m.urlInput.View()),
		m.renderError(),
		m.styles.statusBar.Render(status),
		"",
		strings.Join(examples, "\n"),
		"",
		"Enter to scrape • Tab to change platform • ESC to go back",
	))
}

func (m Model) renderResults() string {
	title := m.styles.title.Render("Results")

	body := "No results yet. Scrape a link first."
	if m.result != nil {
		body = m.styles.table.Render(m.table.View())
		if n := len(m.result.Table.Skipped); n > 0 {
			body += fmt.Sprintf("\n%d items skipped", n)
		}
	}

	return m.place(lipgloss.JoinVertical(lipgloss.Left,
		title,
		body,
		m.renderError(),
		m.styles.statusBar.Render(m.status),
		"",
		fmt.Sprintf("↑/↓ to navigate • e export (%s) • c csv • x xlsx • j json • ESC to go back", m.opts.Export.Format),
	))
}

func (m Model) renderHistory() string {
	title := m.styles.title.Render("History")

	lines := []string{"No runs yet."}
	if len(m.history) > 0 {
		lines = lines[:0]
		for i := len(m.history) - 1; i >= 0; i-- {
			h := m.history[i]
			lines = append(lines, fmt.Sprintf("%-10s %-22s %4d records  %s", h.Platform, h.Status, h.Records, h.URL))
		}
	}

	return m.place(lipgloss.JoinVertical(lipgloss.Left,
		title,
		strings.Join(lines, "\n"),
		"",
		"ESC to go back",
	))
}

func (m Model) renderHelp() string {
	title := m.styles.title.Render("Help")

	helpText := []string{
		"Navigation:",
		"• Use number keys to select menu items",
		"• ESC to go back to main menu",
		"• q or Ctrl+C to quit",
		"",
		"Scraping:",
		"• Paste a profile or post URL and press Enter",
		"• Tab selects the platform; Auto detects it from the URL",
		fmt.Sprintf("• Profiles load up to %d recent posts", m.opts.MaxItems),
		"",
		"Export:",
		fmt.Sprintf("• Files are written to %s", m.opts.ExportDir),
	}

	return m.place(lipgloss.JoinVertical(lipgloss.Left,
		title,
		strings.Join(helpText, "\n"),
		"",
		"ESC to go back",
	))
}

func (m Model) renderError() string {
	if m.err == nil {
		return ""
	}
	return m.styles.errorText.Render(fmt.Sprintf("%s: %v", models.ErrorKind(m.err), m.err))
}

func (m *Model) updateTable() {
	var rows []table.Row
	for _, rec := range m.result.Table.Records {
		row := make(table.Row, len(resultColumns))
		for i, c := range resultColumns {
			row[i] = rec.Get(c.name)
		}
		rows = append(rows, row)
	}
	m.table.SetRows(rows)
}
