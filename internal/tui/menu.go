package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/core/pkg/zstyle"
)

// menuEntry is one row of the main menu. An entry without a target view
// quits.
type menuEntry struct {
	label    string
	shortcut string
	view     viewID
	quits    bool
}

var menuEntries = []menuEntry{
	{label: "Generate identity", shortcut: "g", view: viewGenerate},
	{label: "Browse saved identities", shortcut: "b", view: viewList},
	{label: "Quit", quits: true},
}

// menuModel is the main menu view.
type menuModel struct {
	cursor        int
	version       string
	identityCount int
}

// navigateMsg tells the root model to switch views.
type navigateMsg struct {
	view viewID
}

func newMenuModel(version string) menuModel {
	return menuModel{version: version}
}

func (m menuModel) Init() tea.Cmd {
	return nil
}

func (m menuModel) Update(msg tea.Msg) (menuModel, tea.Cmd) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return m, nil
	}

	for _, e := range menuEntries {
		if e.shortcut != "" && km.String() == e.shortcut {
			return m, e.cmd()
		}
	}

	switch {
	case key.Matches(km, zstyle.KeyQuit):
		return m, tea.Quit
	case key.Matches(km, zstyle.KeyUp):
		m.cursor = max(m.cursor-1, 0)
	case key.Matches(km, zstyle.KeyDown):
		m.cursor = min(m.cursor+1, len(menuEntries)-1)
	case key.Matches(km, zstyle.KeyEnter):
		return m, menuEntries[m.cursor].cmd()
	}
	return m, nil
}

func (e menuEntry) cmd() tea.Cmd {
	if e.quits {
		return tea.Quit
	}
	view := e.view
	return func() tea.Msg { return navigateMsg{view: view} }
}

// label renders an entry, with the saved count next to browse.
func (m menuModel) label(e menuEntry) string {
	s := e.label
	if e.view == viewList && m.identityCount > 0 {
		s += zstyle.MutedText.Render(fmt.Sprintf(" (%d)", m.identityCount))
	}
	return s
}

func (m menuModel) View() string {
	var b strings.Builder
	fmt.Fprintf(&b, "\n  %s %s\n\n", zstyle.Title.Render("civicid"), zstyle.MutedText.Render(m.version))

	hints := []string{"j/k navigate", "enter select"}
	for i, e := range menuEntries {
		if i == m.cursor {
			b.WriteString(zstyle.Highlight.Render("  > "+m.label(e)) + "\n")
		} else {
			b.WriteString("    " + m.label(e) + "\n")
		}
		if e.shortcut != "" {
			hints = append(hints, e.shortcut+" "+strings.Fields(strings.ToLower(e.label))[0])
		}
	}
	hints = append(hints, "q quit")

	b.WriteString("\n  " + zstyle.MutedText.Render(strings.Join(hints, "  ")) + "\n\n")
	return b.String()
}
