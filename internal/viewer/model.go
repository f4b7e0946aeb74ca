// Package viewer provides the Bubble Tea race viewer.
package viewer

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/cursor"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/ultrasplit/internal/config"
	"github.com/verte-zerg/ultrasplit/internal/debounce"
	"github.com/verte-zerg/ultrasplit/internal/filter"
	"github.com/verte-zerg/ultrasplit/internal/model"
	"github.com/verte-zerg/ultrasplit/internal/report"
	"github.com/verte-zerg/ultrasplit/internal/session"
)

const (
	tabRows = iota
	tabSplits
	tabHistogram
	tabDiagnostics
)

const (
	inputSearch = iota
	inputCategory
	inputSex
	inputCountry
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	titleStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	restStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// Options configure the viewer.
type Options struct {
	Location       *time.Location
	FilterDebounce time.Duration
	ResizeDebounce time.Duration
	// Clock drives both debouncers. Nil means the real clock.
	Clock debounce.Clock
}

// filtersMsg carries filters typed into the form once typing has settled.
type filtersMsg struct {
	seq     uint64
	filters model.Filters
}

// resizeMsg carries the terminal size once resizing has settled.
type resizeMsg struct {
	width  int
	height int
}

// Model implements the Bubble Tea race viewer.
type Model struct {
	session *session.Session
	loc     *time.Location
	send    func(tea.Msg)

	filterDebounce *debounce.Debouncer
	resizeDebounce *debounce.Debouncer
	filterSeq      uint64

	rows []model.RankedRow

	tabs      []string
	activeTab int
	viewports []viewport.Model
	rowsTable table.Model

	width  int
	height int

	checkpointIndex int

	filterMode   bool
	filterInputs []textinput.Model
	filterIndex  int
	savedFilters model.Filters
	errMsg       string
}

// NewModel constructs a viewer over a session.
func NewModel(s *session.Session, opts Options) *Model {
	if opts.Location == nil {
		opts.Location = report.RaceTime
	}
	if opts.FilterDebounce <= 0 {
		opts.FilterDebounce = config.DefaultFilterDebounce
	}
	if opts.ResizeDebounce <= 0 {
		opts.ResizeDebounce = config.DefaultResizeDebounce
	}
	clock := opts.Clock
	if clock == nil {
		clock = debounce.RealClock()
	}
	m := &Model{
		session:        s,
		loc:            opts.Location,
		filterDebounce: debounce.NewWithClock(opts.FilterDebounce, clock),
		resizeDebounce: debounce.NewWithClock(opts.ResizeDebounce, clock),
		tabs:           []string{"Rankings", "Splits", "Histogram", "Diagnostics"},
	}
	if focus := s.Focus(); focus != nil {
		for i, cp := range s.Race().Checkpoints {
			if cp.Rank == *focus {
				m.checkpointIndex = i
			}
		}
	}
	m.initInputs()
	m.initViewports()
	m.rowsTable = table.New(table.WithFocused(true), table.WithHeight(1))
	m.rowsTable.SetStyles(rowsTableStyles())
	m.refreshRows()
	return m
}

// SetSender routes debounced events back into the program. Without a sender
// filter and resize events are applied immediately.
func (m *Model) SetSender(send func(tea.Msg)) {
	m.send = send
}

// SetDebounce changes the debounce delays, e.g. after a config reload.
func (m *Model) SetDebounce(filterDelay, resizeDelay time.Duration) {
	if filterDelay > 0 {
		m.filterDebounce.SetDelay(filterDelay)
	}
	if resizeDelay > 0 {
		m.resizeDebounce.SetDelay(resizeDelay)
	}
}

// Run starts the viewer in the alternate screen and blocks until it exits.
func Run(ctx context.Context, m *Model) error {
	program := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	m.SetSender(program.Send)
	defer m.stopTimers()
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run viewer: %w", err)
	}
	return nil
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil
	case resizeMsg:
		m.applySize(msg.width, msg.height)
		return m, nil
	case filtersMsg:
		if m.filterMode && msg.seq == m.filterSeq {
			m.applyFilters(msg.filters)
		}
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			m.stopTimers()
			return m, tea.Quit
		}
		if m.filterMode {
			return m.updateFilter(msg)
		}
		switch msg.String() {
		case "q":
			m.stopTimers()
			return m, tea.Quit
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "/":
			return m.startFilter()
		case "[":
			m.moveCheckpoint(-1)
			return m, nil
		case "]":
			m.moveCheckpoint(1)
			return m, nil
		case "enter", "f":
			m.toggleFocus()
			return m, nil
		case "r":
			m.session.ResetFilters()
			m.refreshRows()
			return m, nil
		case "g", "home":
			if m.activeTab == tabRows {
				m.rowsTable.GotoTop()
				m.renderTabContents()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabRows {
				m.rowsTable.GotoBottom()
				m.renderTabContents()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		default:
			if m.activeTab == tabRows {
				var cmd tea.Cmd
				m.rowsTable, cmd = m.rowsTable.Update(msg)
				m.renderTabContents()
				return m, cmd
			}
			vp := m.viewports[m.activeTab]
			var cmd tea.Cmd
			vp, cmd = vp.Update(msg)
			m.viewports[m.activeTab] = vp
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(bodyHeight), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) stopTimers() {
	m.filterDebounce.Cancel()
	m.resizeDebounce.Cancel()
}

func (m *Model) resize(width, height int) {
	if m.send == nil || m.width == 0 || m.height == 0 {
		m.applySize(width, height)
		return
	}
	send := m.send
	m.resizeDebounce.Trigger(func() {
		send(resizeMsg{width: width, height: height})
	})
}

func (m *Model) applySize(width, height int) {
	m.width = width
	m.height = height
	m.updateLayout()
	m.renderTabContents()
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) initInputs() {
	m.filterInputs = []textinput.Model{
		newFilterInput("Search: "),
		newFilterInput("Category: "),
		newFilterInput("Sex: "),
		newFilterInput("Country: "),
	}
	m.filterInputs[inputSearch].Placeholder = "name or bib, comma separated"
	m.setInputsFromFilters(m.session.Filters())
}

func newFilterInput(prompt string) textinput.Model {
	input := textinput.New()
	input.Prompt = prompt
	input.CharLimit = 0
	input.Cursor.SetMode(cursor.CursorBlink)
	return input
}

func (m *Model) setInputsFromFilters(f model.Filters) {
	m.filterInputs[inputSearch].SetValue(f.Search)
	m.filterInputs[inputCategory].SetValue(f.Category)
	m.filterInputs[inputSex].SetValue(f.Sex)
	m.filterInputs[inputCountry].SetValue(f.Country)
}

func (m *Model) inputFilters() model.Filters {
	return model.Filters{
		Search:   m.filterInputs[inputSearch].Value(),
		Category: strings.TrimSpace(m.filterInputs[inputCategory].Value()),
		Sex:      strings.TrimSpace(m.filterInputs[inputSex].Value()),
		Country:  strings.ToLower(strings.TrimSpace(m.filterInputs[inputCountry].Value())),
	}
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if !m.filterMode && m.errMsg != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, bodyHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = bodyHeight
	}
	m.rowsTable.SetWidth(m.width)
	m.rowsTable.SetHeight(bodyHeight)
	for i := range m.filterInputs {
		promptWidth := lipgloss.Width(m.filterInputs[i].Prompt)
		m.filterInputs[i].Width = maxInt(10, m.width-promptWidth-2)
	}
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	if m.activeTab == tabRows {
		m.rowsTable.Focus()
	} else {
		m.rowsTable.Blur()
	}
}

func (m *Model) moveCheckpoint(delta int) {
	count := len(m.session.Race().Checkpoints)
	if count == 0 {
		return
	}
	m.checkpointIndex = (m.checkpointIndex + delta + count) % count
}

// toggleFocus focuses the ranking on the selected checkpoint, or clears the
// focus when that checkpoint is already focused.
func (m *Model) toggleFocus() {
	cps := m.session.Race().Checkpoints
	if len(cps) == 0 {
		m.errMsg = "race has no checkpoints to focus on"
		return
	}
	m.errMsg = ""
	m.session.ToggleFocus(cps[m.checkpointIndex].Rank)
	m.refreshRows()
}

func (m *Model) applyFilters(f model.Filters) {
	m.session.SetFilters(f)
	m.refreshRows()
}

// refreshRows pulls the session view into the table and re-renders the tabs.
func (m *Model) refreshRows() {
	rep := report.BuildReport(m.session, false)
	m.rows = rep.Rows
	headers, cells := report.RowCells(rep, m.loc)

	columns := make([]table.Column, len(headers))
	for i, h := range headers {
		width := lipgloss.Width(h)
		for _, row := range cells {
			width = maxInt(width, lipgloss.Width(row[i]))
		}
		columns[i] = table.Column{Title: h, Width: width}
	}
	rows := make([]table.Row, len(cells))
	for i, row := range cells {
		rows[i] = table.Row(row)
	}

	selected := m.rowsTable.Cursor()
	m.rowsTable.SetRows(nil)
	m.rowsTable.SetColumns(columns)
	m.rowsTable.SetRows(rows)
	if len(rows) > 0 {
		m.rowsTable.SetCursor(minInt(maxInt(selected, 0), len(rows)-1))
	}
	m.renderTabContents()
}

func (m *Model) selectedRow() (model.RankedRow, bool) {
	idx := m.rowsTable.Cursor()
	if idx < 0 || idx >= len(m.rows) {
		return model.RankedRow{}, false
	}
	return m.rows[idx], true
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 {
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	r := m.session.Race()
	m.viewports[tabSplits].SetContent(m.renderSplits())
	m.viewports[tabHistogram].SetContent(renderHistogram(r.Histogram, width))
	m.viewports[tabDiagnostics].SetContent(renderDiagnostics(r))
}

func (m *Model) renderSplits() string {
	row, ok := m.selectedRow()
	if !ok {
		return "No participants match the current filters."
	}
	cps := m.session.Race().Checkpoints
	lines := []string{titleStyle.Render(report.ParticipantLabel(row))}
	p := row.Timeline.Participant
	lines = append(lines, headerStyle.Render(fmt.Sprintf("%s  %s  %s", p.Category, p.Sex, filter.CountryName(p.Country))), "")
	if len(row.Splits) == 0 {
		lines = append(lines, "No checkpoint readings.")
		return strings.Join(lines, "\n")
	}
	for i, line := range report.SplitTable(row, cps, m.loc) {
		if i > 0 && report.IsRestSection(report.CheckpointName(cps, row.Splits[i-1].Checkpoint)) {
			line = restStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func renderHistogram(buckets []model.HistogramBucket, width int) string {
	finishers := 0
	for _, b := range buckets {
		finishers += b.Count
	}
	var buf bytes.Buffer
	title := fmt.Sprintf("Finish times (hours), %d finishers", finishers)
	if err := report.PlotHistogram(&buf, title, buckets, width, true); err != nil {
		return fmt.Sprintf("Failed to render histogram: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func renderDiagnostics(r *session.Race) string {
	if len(r.Diagnostics) == 0 {
		return "No data problems found."
	}
	counts := r.DiagnosticCounts()
	lines := []string{headerStyle.Render(fmt.Sprintf("%d data problems resolved with fallbacks", len(r.Diagnostics)))}
	for _, kind := range sortedKinds(counts) {
		lines = append(lines, fmt.Sprintf("  %-18s %d", kind, counts[kind]))
	}
	lines = append(lines, "")
	for _, d := range r.Diagnostics {
		bib := d.Bib
		if bib == "" {
			bib = "-"
		}
		lines = append(lines, fmt.Sprintf("%-18s %-8s %s", d.Kind, bib, d.Message))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	summary := padLines(m.renderSummary(), m.width)
	return tabs + "\n" + summary
}

func (m *Model) renderSummary() string {
	summary := report.Summary(report.BuildReport(m.session, false))
	if cps := m.session.Race().Checkpoints; len(cps) > 0 {
		label := report.CheckpointName(cps, cps[m.checkpointIndex].Rank)
		summary += "  [" + label + "]"
	}
	return headerStyle.Render(truncateLine(summary, m.width))
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Scroll: up/down  Checkpoint: [/]  Focus: enter  Filter: /  Reset: r  Quit: q"
	return headerStyle.Render(truncateLine(help, m.width))
}

func (m *Model) renderFilterHelp() string {
	return headerStyle.Render("tab/shift+tab: next field  enter: apply  esc: cancel")
}

func (m *Model) renderFooter() string {
	if m.filterMode {
		return m.renderFilterHelp()
	}
	if m.errMsg != "" {
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	}
	return m.renderHelp()
}

func (m *Model) renderFilterForm() string {
	facets := m.session.Race().Facets
	lines := []string{"Filters (applied as you type)"}
	for _, input := range m.filterInputs {
		lines = append(lines, input.View())
	}
	lines = append(lines, "")
	if len(facets.Categories) > 0 {
		lines = append(lines, headerStyle.Render("Categories: "+strings.Join(facets.Categories, ", ")))
	}
	if len(facets.Sexes) > 0 {
		lines = append(lines, headerStyle.Render("Sexes: "+strings.Join(facets.Sexes, ", ")))
	}
	if len(facets.Countries) > 0 {
		codes := make([]string, 0, len(facets.Countries))
		for _, c := range facets.Countries {
			codes = append(codes, fmt.Sprintf("%s (%s)", c.Code, c.Name))
		}
		lines = append(lines, headerStyle.Render("Countries: "+strings.Join(codes, ", ")))
	}
	return strings.Join(lines, "\n")
}

func (m *Model) renderBody(height int) string {
	if m.filterMode {
		form := m.renderFilterForm()
		formHeight := lipgloss.Height(form) + 1
		if height > formHeight+2 {
			preview := tableMutedStyle.Render(m.rowsTable.View())
			return fitLines(form+"\n\n"+preview, m.width, height)
		}
		return fitLines(form, m.width, height)
	}
	if m.activeTab == tabRows {
		if len(m.rows) == 0 {
			return fitLines("No participants match the current filters.", m.width, height)
		}
		return fitLines(m.rowsTable.View(), m.width, height)
	}
	return fitLines(m.viewports[m.activeTab].View(), m.width, height)
}

func (m *Model) startFilter() (tea.Model, tea.Cmd) {
	m.filterMode = true
	m.savedFilters = m.session.Filters()
	m.setInputsFromFilters(m.savedFilters)
	return m, m.setFilterIndex(0)
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		m.endFilter()
		m.applyFilters(m.savedFilters)
		return m, nil
	case tea.KeyEnter:
		m.endFilter()
		m.applyFilters(m.inputFilters())
		return m, nil
	case tea.KeyTab:
		return m, m.setFilterIndex(m.filterIndex + 1)
	case tea.KeyShiftTab:
		return m, m.setFilterIndex(m.filterIndex - 1)
	}
	before := m.filterInputs[m.filterIndex].Value()
	var cmd tea.Cmd
	m.filterInputs[m.filterIndex], cmd = m.filterInputs[m.filterIndex].Update(msg)
	if m.filterInputs[m.filterIndex].Value() != before {
		m.scheduleFilters(m.inputFilters())
	}
	return m, cmd
}

func (m *Model) endFilter() {
	m.filterMode = false
	m.filterDebounce.Cancel()
	m.filterSeq++
	for i := range m.filterInputs {
		m.filterInputs[i].Blur()
	}
}

// scheduleFilters applies f once typing pauses for the filter debounce delay.
func (m *Model) scheduleFilters(f model.Filters) {
	m.filterSeq++
	if m.send == nil {
		m.applyFilters(f)
		return
	}
	send := m.send
	msg := filtersMsg{seq: m.filterSeq, filters: f}
	m.filterDebounce.Trigger(func() {
		send(msg)
	})
}

func (m *Model) setFilterIndex(idx int) tea.Cmd {
	count := len(m.filterInputs)
	if count == 0 {
		return nil
	}
	if idx < 0 {
		idx = count - 1
	}
	if idx >= count {
		idx = 0
	}
	m.filterIndex = idx
	var cmd tea.Cmd
	for i := range m.filterInputs {
		if i == m.filterIndex {
			cmd = m.filterInputs[i].Focus()
		} else {
			m.filterInputs[i].Blur()
		}
	}
	return cmd
}

func rowsTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}
