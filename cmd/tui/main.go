package main

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"

	"github.com/JamesSweetJones/AntibodyChainChecker/internal/report"
)

// Colors for modern design
var (
	primaryColor   = lipgloss.Color("#7C3AED") // Purple
	secondaryColor = lipgloss.Color("#10B981") // Green
	accentColor    = lipgloss.Color("#F59E0B") // Amber
	dangerColor    = lipgloss.Color("#EF4444") // Red
	surfaceColor   = lipgloss.Color("#1F2937") // Dark gray
	textColor      = lipgloss.Color("#F3F4F6") // Light gray
	mutedColor     = lipgloss.Color("#9CA3AF") // Muted gray
	borderColor    = lipgloss.Color("#374151") // Border gray
)

// Styles
var (
	containerStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(borderColor)

	titleStyle = lipgloss.NewStyle().
			Foreground(primaryColor).
			Bold(true)

	statusBarStyle = lipgloss.NewStyle().
			Foreground(textColor).
			Background(surfaceColor).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().Foreground(mutedColor)

	normalStyle    = lipgloss.NewStyle().Foreground(secondaryColor).Bold(true)
	irregularStyle = lipgloss.NewStyle().Foreground(dangerColor).Bold(true)
	loopStyle      = lipgloss.NewStyle().Foreground(accentColor).Bold(true)
)

type listItem struct {
	pair report.Pair
}

func (i listItem) FilterValue() string {
	return i.pair.Key + " " + i.pair.Verdict()
}

func (i listItem) Title() string {
	if i.pair.Key != "" {
		return i.pair.Key
	}
	return i.pair.HeavyID
}

func (i listItem) Description() string {
	return fmt.Sprintf("%s    CDRH3: %d    ins: %+d", verdictStyle(i.pair.Accepted).Render(i.pair.Verdict()),
		len(i.pair.Loop), i.pair.InsertionLength)
}

func verdictStyle(ok bool) lipgloss.Style {
	if ok {
		return normalStyle
	}
	return irregularStyle
}

type mode int

const (
	modeSummary mode = iota
	modeHeavy
	modeLight
	modeCount
)

func (m mode) String() string {
	switch m {
	case modeSummary:
		return "Summary"
	case modeHeavy:
		return "Heavy chain"
	case modeLight:
		return "Light chain"
	default:
		return "Unknown"
	}
}

type model struct {
	list          list.Model
	report        *report.Report
	currentMode   mode
	showHelp      bool
	width         int
	height        int
	selectedIndex int
}

func newModel(rep *report.Report) model {
	items := make([]list.Item, len(rep.Pairs))
	for i, p := range rep.Pairs {
		items[i] = listItem{pair: p}
	}

	l := list.New(items, list.NewDefaultDelegate(), 0, 0)
	l.Title = "Antibody pairs"
	l.SetShowStatusBar(false)
	l.SetShowPagination(true)
	l.SetFilteringEnabled(true)

	return model{
		list:        l,
		report:      rep,
		currentMode: modeSummary,
	}
}

func (m model) cycleMode() model {
	m.currentMode = (m.currentMode + 1) % modeCount
	return m
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		// left panel takes 1/3 of the width
		m.list.SetWidth(msg.Width / 3)
		m.list.SetHeight(msg.Height - 4)
		return m, nil

	case tea.KeyMsg:
		// keys typed into the filter prompt belong to the list
		if m.list.FilterState() == list.Filtering {
			break
		}
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case "h":
			m.showHelp = !m.showHelp
			return m, nil
		case "tab":
			return m.cycleMode(), nil
		case "1":
			m.currentMode = modeSummary
			return m, nil
		case "2":
			m.currentMode = modeHeavy
			return m, nil
		case "3":
			m.currentMode = modeLight
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	m.selectedIndex = m.list.Index()
	return m, cmd
}

func (m model) View() string {
	if m.width == 0 {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelpModal()
	}
	main := lipgloss.JoinHorizontal(lipgloss.Top, m.renderLeftPanel(), m.renderRightPanel())
	return lipgloss.JoinVertical(lipgloss.Left, main, m.renderStatusBar())
}

func (m model) renderLeftPanel() string {
	return containerStyle.
		Width(m.width/3 - 2).
		Height(m.height - 4).
		Render(m.list.View())
}

func (m model) renderRightPanel() string {
	rightWidth := (m.width * 2) / 3
	panel := containerStyle.Width(rightWidth - 2).Height(m.height - 4)

	selected := m.list.SelectedItem()
	if selected == nil {
		return panel.Render("No pair selected")
	}
	return panel.Render(strings.Join(m.buildRightLines(selected.(listItem).pair), "\n"))
}

// buildRightLines renders the detail panel for p in the current mode,
// wrapping sequences to the panel width.
func (m model) buildRightLines(p report.Pair) []string {
	width := m.width*2/3 - 6
	if width < 20 {
		width = 20
	}
	lines := []string{
		titleStyle.Render(p.Key),
		labelStyle.Render("Verdict: ") + verdictStyle(p.Accepted).Render(p.Verdict()),
		"",
	}
	switch m.currentMode {
	case modeSummary:
		lines = append(lines,
			labelStyle.Render("Heavy: ")+verdictStyle(p.HeavyNormal).Render(p.HeavyRule),
			labelStyle.Render("Light: ")+verdictStyle(p.LightNormal).Render(fmt.Sprintf("%d cysteines", p.LightCysteines)),
			labelStyle.Render(fmt.Sprintf("Cys distance  heavy %d  light %d", p.HeavyCysDistance, p.LightCysDistance)),
			labelStyle.Render(fmt.Sprintf("Insertion length %d", p.InsertionLength)),
			"",
			labelStyle.Render("CDRH3:"),
		)
		if p.LoopFlanked != "" {
			lines = append(lines, wrapSequence(p.LoopFlanked, width, loopStyle)...)
		} else {
			lines = append(lines, labelStyle.Render("no loop found"))
		}
	case modeHeavy:
		lines = append(lines, labelStyle.Render(p.HeavyID), "")
		lines = append(lines, wrapSequence(p.HeavySequence, width, lipgloss.NewStyle().Foreground(textColor))...)
	case modeLight:
		lines = append(lines, labelStyle.Render(p.LightID), "")
		lines = append(lines, wrapSequence(p.LightSequence, width, lipgloss.NewStyle().Foreground(textColor))...)
	}
	return lines
}

func wrapSequence(seq string, width int, style lipgloss.Style) []string {
	if seq == "" {
		return []string{labelStyle.Render("empty sequence")}
	}
	var out []string
	for len(seq) > width {
		out = append(out, style.Render(seq[:width]))
		seq = seq[width:]
	}
	return append(out, style.Render(seq))
}

func (m model) renderStatusBar() string {
	leftInfo := fmt.Sprintf("%d/%d pairs  normal %d  irregular %d",
		m.selectedIndex+1, len(m.report.Pairs), m.report.Normal, m.report.Irregular)
	centerInfo := fmt.Sprintf("Mode: %s", m.currentMode)
	rightInfo := "Press 'h' for help • 'q' to quit"

	spacing := m.width - len(leftInfo) - len(centerInfo) - len(rightInfo) - 6
	var statusContent string
	if spacing > 0 {
		leftSpacing := spacing / 2
		statusContent = leftInfo + strings.Repeat(" ", leftSpacing) + centerInfo +
			strings.Repeat(" ", spacing-leftSpacing) + rightInfo
	} else {
		// Fallback for narrow terminals
		statusContent = fmt.Sprintf("%s | %s", leftInfo, centerInfo)
	}
	return statusBarStyle.Width(m.width).Render(statusContent)
}

func (m model) renderHelpModal() string {
	helpContent := `Antibody pair browser - Help

Navigation:
  ↑/↓, j/k     Navigate list
  /            Filter pairs

View Modes:
  1            Summary and CDRH3 loop
  2            Heavy chain sequence
  3            Light chain sequence
  tab          Next mode

General:
  h            Toggle this help
  q, Ctrl+C    Quit application

Input: ` + m.report.Input + `
Total pairs: ` + fmt.Sprintf("%d", len(m.report.Pairs)) + `
`
	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(primaryColor).
		Padding(1, 2).
		Background(surfaceColor).
		Foreground(textColor).
		Width(60).
		Render(helpContent)

	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
}

func main() {
	reportPath := flag.String("report", "report.json", "JSON report written by abscreen screen --report")
	flag.Parse()

	logger := log.New(os.Stderr)
	rep, err := report.Read(*reportPath)
	if err != nil {
		logger.Fatal("failed to load report", "path", *reportPath, "err", err)
	}

	p := tea.NewProgram(newModel(rep), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		logger.Fatal("tui exited with error", "err", err)
	}
}
