package viewer

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/valter-silva-au/critical-claude/pkg/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)

	activePanelStyle = lipgloss.NewStyle().
				BorderStyle(lipgloss.RoundedBorder()).
				BorderForeground(lipgloss.Color("62")).
				Padding(0, 1)

	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("212"))
	labelStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("62"))
	dimStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
)

func statusStyle(s models.Status) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(s.Color()))
}

// chrome is the number of lines taken by header, borders and footer.
const chrome = 7

func (m Model) View() string {
	var b strings.Builder

	header := titleStyle.Render(" Critical Claude ")
	header += dimStyle.Render(fmt.Sprintf("  %s · %d tasks · filter: %s", m.mode, len(m.tasks), m.filterLabel()))
	b.WriteString(header)
	b.WriteString("\n")

	switch m.mode {
	case modeBrowsing:
		b.WriteString(activePanelStyle.Width(m.width - 2).Render(m.renderList(m.width - 6)))
	case modeDetails:
		left := activePanelStyle.Width(m.listWidth()).Render(m.renderList(m.listWidth() - 4))
		right := panelStyle.Width(m.detailWidth()).Render(m.renderDetails())
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	case modeEditing:
		left := panelStyle.Width(m.listWidth()).Render(m.renderList(m.listWidth() - 4))
		right := activePanelStyle.Width(m.detailWidth()).Render(m.renderEditor())
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, left, right))
	}
	b.WriteString("\n")

	switch {
	case m.saving:
		b.WriteString(dimStyle.Render("saving…"))
	case m.err != nil:
		b.WriteString(errorStyle.Render("❌ " + m.err.Error()))
	case m.notice != "":
		b.WriteString(noticeStyle.Render(m.notice))
	}
	b.WriteString("\n")

	if m.mode == modeEditing {
		b.WriteString(m.help.View(editHelp{m.keys}))
	} else {
		b.WriteString(m.help.View(browseHelp{m.keys}))
	}
	return b.String()
}

func (m Model) listWidth() int {
	return max(30, m.width*45/100)
}

func (m Model) detailWidth() int {
	return max(30, m.width-m.listWidth()-4)
}

func (m Model) renderList(width int) string {
	if len(m.tasks) == 0 {
		return dimStyle.Render("No tasks match this filter. Press f to change it.")
	}

	start, end := visibleRange(m.selected, len(m.tasks), m.height-chrome)
	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		t := m.tasks[i]
		row := fmt.Sprintf("%s %s %-10s %s", t.Status.Icon(), t.Priority.Icon(), t.ID, t.Title)
		if t.Draft {
			row += " (draft)"
		}
		row = truncate(row, width-2)
		if i == m.selected {
			lines = append(lines, selectedStyle.Render("› "+row))
		} else {
			lines = append(lines, "  "+statusStyle(t.Status).Render(row))
		}
	}
	return strings.Join(lines, "\n")
}

// visibleRange returns the window of rows to draw so that selected stays on
// screen.
func visibleRange(selected, total, rows int) (int, int) {
	if rows < 1 {
		rows = 1
	}
	if total <= rows {
		return 0, total
	}
	start := selected - rows/2
	if start < 0 {
		start = 0
	}
	if start+rows > total {
		start = total - rows
	}
	return start, start + rows
}

func (m Model) renderDetails() string {
	t, ok := m.selectedTask()
	if !ok {
		return dimStyle.Render("Nothing selected.")
	}

	var b strings.Builder
	b.WriteString(labelStyle.Render(t.ID) + "  " + t.Title + "\n\n")
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Status:  "), statusStyle(t.Status).Render(t.Status.Icon()+" "+string(t.Status)))
	fmt.Fprintf(&b, "%s %s %s\n", labelStyle.Render("Priority:"), t.Priority.Icon(), t.Priority)
	if len(t.Labels) > 0 {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Labels:  "), strings.Join(t.Labels, ", "))
	}
	if t.Assignee != "" {
		fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Assignee:"), t.Assignee)
	}
	if t.EstimatedHours != nil {
		fmt.Fprintf(&b, "%s %gh\n", labelStyle.Render("Estimate:"), *t.EstimatedHours)
	}
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Created: "), t.CreatedAt.Local().Format("2006-01-02 15:04"))
	fmt.Fprintf(&b, "%s %s\n", labelStyle.Render("Updated: "), t.UpdatedAt.Local().Format("2006-01-02 15:04"))
	if t.Description != "" {
		b.WriteString("\n" + lipgloss.NewStyle().Width(m.detailWidth()-4).Render(t.Description))
	}
	return b.String()
}

func (m Model) renderEditor() string {
	var b strings.Builder
	b.WriteString(labelStyle.Render("Editing "+m.draft.ID) + "\n\n")
	for f := field(0); f < fieldCount; f++ {
		name := fmt.Sprintf("%-12s", fieldNames[f])
		if f == m.field {
			b.WriteString(selectedStyle.Render(name) + "\n" + m.input.View() + "\n")
			continue
		}
		b.WriteString(labelStyle.Render(name) + "\n  " + truncate(m.fieldValue(m.draft, f), m.detailWidth()-6) + "\n")
	}
	switch m.field {
	case fieldPriority:
		b.WriteString("\n" + dimStyle.Render("critical, high, medium, low"))
	case fieldStatus:
		b.WriteString("\n" + dimStyle.Render("todo, in_progress, done, blocked, archived"))
	}
	return b.String()
}

func truncate(s string, width int) string {
	if width < 2 {
		return s
	}
	r := []rune(s)
	if len(r) <= width {
		return s
	}
	return string(r[:width-1]) + "…"
}
