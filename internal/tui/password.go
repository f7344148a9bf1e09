package tui

import (
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/zarlcorp/core/pkg/zstyle"
)

// unlockStage is the step of the ledger unlock flow.
type unlockStage int

const (
	stageUnlock unlockStage = iota // existing ledger
	stageCreate                    // first password for a new ledger
	stageConfirm                   // repeat of the new password
)

var stagePrompts = map[unlockStage]string{
	stageUnlock:  "master password:",
	stageCreate:  "create master password:",
	stageConfirm: "confirm password:",
}

// passwordModel unlocks the identity ledger in dataDir, or creates it.
type passwordModel struct {
	input   textinput.Model
	dataDir string
	stage   unlockStage
	pending string // the new password awaiting confirmation
	errMsg  string
}

// passwordSubmitMsg carries the accepted password to the root model.
type passwordSubmitMsg struct {
	password string
}

// passwordErrMsg reports a ledger that could not be opened.
type passwordErrMsg struct {
	err error
}

func newPasswordModel(dataDir string, firstRun bool) passwordModel {
	ti := textinput.New()
	ti.EchoMode = textinput.EchoPassword
	ti.EchoCharacter = '*'
	ti.CharLimit = 128
	ti.Width = 40
	ti.Focus()

	m := passwordModel{input: ti, dataDir: dataDir}
	if firstRun {
		m.stage = stageCreate
	}
	return m
}

func (m passwordModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m passwordModel) Update(msg tea.Msg) (passwordModel, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		// every printable key belongs to the input, so only ctrl+c quits
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if key.Matches(msg, zstyle.KeyEnter) {
			return m.submit()
		}

	case passwordErrMsg:
		m = m.restart(msg.err.Error())
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// restart clears the input and returns to the first prompt of the flow.
func (m passwordModel) restart(errMsg string) passwordModel {
	if m.stage == stageConfirm {
		m.stage = stageCreate
	}
	m.pending = ""
	m.errMsg = errMsg
	m.input.SetValue("")
	return m
}

func (m passwordModel) submit() (passwordModel, tea.Cmd) {
	val := m.input.Value()
	if val == "" {
		return m, nil
	}

	switch m.stage {
	case stageCreate:
		m.pending = val
		m.stage = stageConfirm
		m.errMsg = ""
		m.input.SetValue("")
		return m, nil

	case stageConfirm:
		if val != m.pending {
			return m.restart("passwords do not match"), nil
		}
	}

	m.errMsg = ""
	return m, func() tea.Msg { return passwordSubmitMsg{password: val} }
}

func (m passwordModel) View() string {
	indent := lipgloss.NewStyle().MarginLeft(2)

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(indent.Render(zstyle.StyledLogo(lipgloss.NewStyle().Foreground(accent))))
	b.WriteString("\n")
	b.WriteString(indent.Render(zstyle.MutedText.Render("civicid")))
	b.WriteString("\n\n")

	if m.stage != stageUnlock && m.dataDir != "" {
		b.WriteString("  " + zstyle.MutedText.Render("new ledger in "+m.dataDir) + "\n")
	}
	b.WriteString("  " + stagePrompts[m.stage] + "\n")
	b.WriteString("  " + m.input.View() + "\n")

	if m.errMsg != "" {
		b.WriteString("\n  " + zstyle.StatusErr.Render(m.errMsg))
	}
	b.WriteString("\n")
	return b.String()
}
