package cli

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/matzehuels/pkgintel/pkg/model"
)

var listDimStyle = lipgloss.NewStyle().Foreground(colorDim)

// =============================================================================
// PackagePicker - Interactive search result selection
// =============================================================================

// PackagePicker is the bubbletea model for choosing one search result.
type PackagePicker struct {
	Results  []model.SearchResult
	Cursor   int
	Selected string
	Height   int
	Offset   int

	now func() time.Time
}

// NewPackagePicker creates a picker over results.
func NewPackagePicker(results []model.SearchResult) PackagePicker {
	return PackagePicker{Results: results, Height: 15, now: time.Now}
}

func (m PackagePicker) Init() tea.Cmd {
	return nil
}

func (m PackagePicker) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
				if m.Cursor < m.Offset {
					m.Offset = m.Cursor
				}
			}
		case "down", "j":
			if m.Cursor < len(m.Results)-1 {
				m.Cursor++
				if m.Cursor >= m.Offset+m.Height {
					m.Offset = m.Cursor - m.Height + 1
				}
			}
		case "enter":
			if len(m.Results) > 0 {
				m.Selected = m.Results[m.Cursor].Name
			}
			return m, tea.Quit
		}
	case tea.WindowSizeMsg:
		m.Height = max(msg.Height-6, 5)
	}
	return m, nil
}

func (m PackagePicker) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render("Select Package"))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ details  q quit"))
	b.WriteString("\n\n")

	end := min(m.Offset+m.Height, len(m.Results))

	rows := [][]string{}
	for i := m.Offset; i < end; i++ {
		r := m.Results[i]
		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		updated := "—"
		if r.Date != nil {
			updated = formatRelativeTime(m.now(), *r.Date)
		}
		rows = append(rows, []string{
			cursor, r.Name, r.Version,
			fmt.Sprintf("%.2f", r.Score.Final), updated,
			truncate(r.Description, 50),
		})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)

	t := table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("", "Package", "Version", "Score", "Updated", "Description").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			base := lipgloss.NewStyle()
			if col >= 3 {
				base = base.Foreground(colorDim)
			}
			if m.Offset+row == m.Cursor {
				if col < 3 {
					return base.Foreground(colorGreen).Bold(true)
				}
				return base.Foreground(colorGray).Bold(true)
			}
			return base
		})

	b.WriteString(t.Render())
	b.WriteString("\n\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]", m.Cursor+1, len(m.Results))))

	return b.String()
}

// pickPackage runs the picker and returns the chosen name, or "" when the
// user quit without choosing.
func pickPackage(results []model.SearchResult) (string, error) {
	if len(results) == 0 {
		return "", nil
	}
	final, err := tea.NewProgram(NewPackagePicker(results)).Run()
	if err != nil {
		return "", err
	}
	return final.(PackagePicker).Selected, nil
}

// =============================================================================
// Helpers
// =============================================================================

func formatRelativeTime(now, t time.Time) string {
	diff := now.Sub(t)

	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
