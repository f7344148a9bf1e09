package tui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/zarlcorp/civicid/internal/address"
	"github.com/zarlcorp/civicid/internal/ledger"
	"github.com/zarlcorp/core/pkg/zstyle"
)

// detailModel displays all fields of a saved identity.
type detailModel struct {
	record ledger.Record
	fields []recordField
	cursor int
	flash  string
}

func newDetailModel(r ledger.Record) detailModel {
	return detailModel{
		record: r,
		fields: recordFields(r),
	}
}

func (m detailModel) Init() tea.Cmd {
	return nil
}

func (m detailModel) Update(msg tea.Msg) (detailModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case flashMsg:
		m.flash = ""
		return m, nil
	}

	return m, nil
}

func (m detailModel) handleKey(msg tea.KeyMsg) (detailModel, tea.Cmd) {
	if key.Matches(msg, zstyle.KeyQuit) {
		return m, tea.Quit
	}

	if key.Matches(msg, zstyle.KeyBack) {
		return m, func() tea.Msg { return navigateMsg{view: viewList} }
	}

	if key.Matches(msg, zstyle.KeyUp) {
		if m.cursor > 0 {
			m.cursor--
		}
		return m, nil
	}

	if key.Matches(msg, zstyle.KeyDown) {
		if m.cursor < len(m.fields)-1 {
			m.cursor++
		}
		return m, nil
	}

	if key.Matches(msg, zstyle.KeyEnter) {
		return m.copy(m.fields[m.cursor].value, "copied!")
	}

	switch msg.String() {
	case "c":
		return m.copy(fieldsText(m.fields), "copied all!")
	case "d":
		addr := m.record.Address
		return m, func() tea.Msg { return forgetRecordMsg{address: addr} }
	}

	return m, nil
}

func (m detailModel) copy(text, ok string) (detailModel, tea.Cmd) {
	if err := copyToClipboard(text); err != nil {
		m.flash = "copy: " + err.Error()
		return m, clearFlashAfter()
	}
	m.flash = ok
	return m, clearFlashAfter()
}

func (m detailModel) View() string {
	accentStyle := lipgloss.NewStyle().Foreground(accent).Bold(true)

	s := "\n"
	if a, err := address.Parse(m.record.Address); err == nil {
		s += "  " + zstyle.Subtitle.Render("Civic Identity "+a.Short()) + "\n\n"
		s += renderPreview(a) + "\n"
	}

	for i, f := range m.fields {
		label := zstyle.MutedText.Render(fmt.Sprintf("%-10s", f.label))
		if i == m.cursor {
			s += "  " + accentStyle.Render("▸") + " " + label + " " + f.value + "\n"
		} else {
			s += "    " + label + " " + f.value + "\n"
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
