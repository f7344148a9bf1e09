package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/zarlcorp/civicid/internal/ledger"
	"github.com/zarlcorp/core/pkg/zstyle"
)

// listModel displays saved identities in a scrollable list.
type listModel struct {
	records []ledger.Record
	cursor  int
	flash   string
}

// forgetRecordMsg requests removal of a record from the ledger.
type forgetRecordMsg struct {
	address string
}

// viewRecordMsg requests the detail view of a record.
type viewRecordMsg struct {
	record ledger.Record
}

func newListModel(rs []ledger.Record) listModel {
	return listModel{records: rs}
}

func (m listModel) Init() tea.Cmd {
	return nil
}

func (m listModel) Update(msg tea.Msg) (listModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case flashMsg:
		m.flash = ""
		return m, nil
	}

	return m, nil
}

func (m listModel) handleKey(msg tea.KeyMsg) (listModel, tea.Cmd) {
	if key.Matches(msg, zstyle.KeyQuit) {
		return m, tea.Quit
	}

	if key.Matches(msg, zstyle.KeyBack) {
		return m, func() tea.Msg { return navigateMsg{view: viewMenu} }
	}

	if len(m.records) == 0 {
		return m, nil
	}

	if key.Matches(msg, zstyle.KeyUp) {
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	}

	if key.Matches(msg, zstyle.KeyDown) {
		if m.cursor < len(m.records)-1 {
			m.cursor++
		}
		return m, nil
	}

	r := m.records[m.cursor]

	if key.Matches(msg, zstyle.KeyEnter) {
		return m, func() tea.Msg { return viewRecordMsg{record: r} }
	}

	if msg.String() == "d" {
		return m, func() tea.Msg { return forgetRecordMsg{address: r.Address} }
	}

	return m, nil
}

func (m listModel) View() string {
	accentStyle := lipgloss.NewStyle().Foreground(accent).Bold(true)

	s := "\n"

	if len(m.records) == 0 {
		s += "  " + zstyle.MutedText.Render("no saved identities") + "\n\n"
		if m.flash != "" {
			s += "  " + zstyle.StatusWarn.Render(m.flash) + "\n"
		} else {
			s += "\n"
		}
		return s
	}

	for i, r := range m.records {
		line := fmt.Sprintf("%-42s %s", r.Address, zstyle.MutedText.Render(r.CreatedAt.Format(time.DateOnly)))

		if i == m.cursor {
			s += "  " + accentStyle.Render("▸") + " " + line + "\n"
		} else {
			s += "    " + line + "\n"
		}
	}

	s += "\n"

	// always reserve a line for flash to prevent layout shift
	if m.flash != "" {
		s += "  " + zstyle.StatusOK.Render(m.flash) + "\n"
	} else {
		s += "\n"
	}

	return s
}
