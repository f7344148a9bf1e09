package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/civicid/internal/address"
	"github.com/zarlcorp/civicid/internal/batch"
	"github.com/zarlcorp/civicid/internal/ledger"
	"github.com/zarlcorp/civicid/internal/metadata"
	"github.com/zarlcorp/core/pkg/zstyle"
)

// recordField is a labeled value for display and copying.
type recordField struct {
	label string
	value string
}

func recordFields(r ledger.Record) []recordField {
	return []recordField{
		{"address", r.Address},
		{"did", r.DID},
		{"token uri", r.TokenURI},
		{"metadata", r.Metadata},
		{"image", r.Image},
		{"created", r.CreatedAt.Format(time.RFC3339)},
	}
}

func fieldsText(fields []recordField) string {
	var b strings.Builder
	for _, f := range fields {
		fmt.Fprintf(&b, "%s: %s\n", f.label, f.value)
	}
	return b.String()
}

// generateModel asks for an address, runs the pipeline and shows the
// result with actions.
type generateModel struct {
	urls    metadata.URLs
	input   textinput.Model
	pending bool
	errMsg  string

	record ledger.Record
	fields []recordField
	cursor int
	flash  string
}

// generateRequestMsg asks the root model to run the pipeline.
type generateRequestMsg struct {
	input string
}

// generatedMsg carries the pipeline outcome back.
type generatedMsg struct {
	outcome batch.Outcome
	at      time.Time
}

// saveRecordMsg requests saving the generated identity in the ledger.
type saveRecordMsg struct {
	record ledger.Record
}

// recordSavedMsg confirms the record was saved.
type recordSavedMsg struct{}

// flashMsg clears the flash after a timeout.
type flashMsg struct{}

func newGenerateModel(urls metadata.URLs) generateModel {
	ti := textinput.New()
	ti.Placeholder = "0x..."
	ti.CharLimit = 66
	ti.Width = 44
	ti.Focus()

	return generateModel{urls: urls, input: ti}
}

func (m generateModel) Init() tea.Cmd {
	return textinput.Blink
}

// editing reports whether the address prompt is showing.
func (m generateModel) editing() bool {
	return m.fields == nil
}

func (m generateModel) Update(msg tea.Msg) (generateModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if m.editing() {
			return m.handleInputKey(msg)
		}
		return m.handleKey(msg)

	case generatedMsg:
		return m.handleGenerated(msg), nil

	case recordSavedMsg:
		m.flash = "saved"
		return m, nil

	case flashMsg:
		m.flash = ""
		return m, nil
	}

	if m.editing() {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m generateModel) handleInputKey(msg tea.KeyMsg) (generateModel, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		return m, tea.Quit
	case tea.KeyEsc:
		return m, func() tea.Msg { return navigateMsg{view: viewMenu} }
	case tea.KeyEnter:
		val := strings.TrimSpace(m.input.Value())
		if val == "" || m.pending {
			return m, nil
		}
		m.pending = true
		m.errMsg = ""
		return m, func() tea.Msg { return generateRequestMsg{input: val} }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m generateModel) handleGenerated(msg generatedMsg) generateModel {
	m.pending = false

	o := msg.outcome
	if !o.OK() {
		m.errMsg = o.Reason() + ": " + o.Err.Error()
		return m
	}

	m.record = ledger.NewRecord(o.Address, o.Paths, m.urls.TokenURI(o.Address), msg.at)
	m.fields = recordFields(m.record)
	m.cursor = 0
	m.input.Blur()
	return m
}

func (m generateModel) handleKey(msg tea.KeyMsg) (generateModel, tea.Cmd) {
	if key.Matches(msg, zstyle.KeyQuit) {
		return m, tea.Quit
	}

	if key.Matches(msg, zstyle.KeyBack) {
		return m, func() tea.Msg { return navigateMsg{view: viewMenu} }
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
	case "s":
		r := m.record
		return m, func() tea.Msg { return saveRecordMsg{record: r} }
	case "c":
		return m.copy(fieldsText(m.fields), "copied all!")
	case "n":
		return m, func() tea.Msg { return navigateMsg{view: viewGenerate} }
	}

	return m, nil
}

func (m generateModel) copy(text, ok string) (generateModel, tea.Cmd) {
	if err := copyToClipboard(text); err != nil {
		m.flash = "copy: " + err.Error()
		return m, clearFlashAfter()
	}
	m.flash = ok
	return m, clearFlashAfter()
}

func clearFlashAfter() tea.Cmd {
	return tea.Tick(time.Second, func(time.Time) tea.Msg {
		return flashMsg{}
	})
}

func (m generateModel) View() string {
	if m.editing() {
		return m.inputView()
	}

	s := "\n"
	if a, err := address.Parse(m.record.Address); err == nil {
		s += renderPreview(a) + "\n"
	}

	for i, f := range m.fields {
		label := zstyle.MutedText.Render(fmt.Sprintf("%-10s", f.label))
		if i == m.cursor {
			s += zstyle.ActiveBorder.Render(fmt.Sprintf("  > %s %s", label, f.value)) + "\n"
		} else {
			s += fmt.Sprintf("    %s %s\n", label, f.value)
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

func (m generateModel) inputView() string {
	s := "\n  " + zstyle.Subtitle.Render("ethereum address") + "\n"
	s += "  " + m.input.View() + "\n\n"

	switch {
	case m.pending:
		s += "  " + zstyle.MutedText.Render("generating...") + "\n"
	case m.errMsg != "":
		s += "  " + zstyle.StatusErr.Render(m.errMsg) + "\n"
	case m.flash != "":
		s += "  " + zstyle.StatusWarn.Render(m.flash) + "\n"
	default:
		s += "\n"
	}
	return s
}
