// Package tui implements the root Bubble Tea model for civicid.
package tui

import (
	"context"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/civicid/internal/address"
	"github.com/zarlcorp/civicid/internal/batch"
	"github.com/zarlcorp/civicid/internal/ledger"
	"github.com/zarlcorp/civicid/internal/metadata"
	"github.com/zarlcorp/core/pkg/zfilesystem"
	"github.com/zarlcorp/core/pkg/zstyle"
)

type viewID int

const (
	viewPassword viewID = iota
	viewMenu
	viewGenerate
	viewList
	viewDetail
)

// accent is the highlight colour shared by every view.
var accent = zstyle.ZburnAccent

// Generator runs the identity pipeline for one address.
type Generator interface {
	Process(ctx context.Context, raw string) batch.Outcome
}

// Model is the root TUI model.
type Model struct {
	version  string
	dataDir  string
	gen      Generator
	urls     metadata.URLs
	ledger   *ledger.Ledger
	firstRun bool
	now      func() time.Time

	active   viewID
	password passwordModel
	menu     menuModel
	generate generateModel
	list     listModel
	detail   detailModel

	// terminal dimensions
	width  int
	height int
}

// New creates the root TUI model. The ledger in dataDir is opened once the
// password is entered.
func New(version, dataDir string, gen Generator, urls metadata.URLs, firstRun bool) Model {
	return Model{
		version:  version,
		dataDir:  dataDir,
		gen:      gen,
		urls:     urls,
		firstRun: firstRun,
		now:      time.Now,
		active:   viewPassword,
		password: newPasswordModel(dataDir, firstRun),
		menu:     newMenuModel(version),
	}
}

func (m Model) Init() tea.Cmd {
	return m.password.Init()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case passwordSubmitMsg:
		return m.openLedger(msg.password)

	case navigateMsg:
		return m.navigate(msg.view)

	case generateRequestMsg:
		return m, m.generateCmd(msg.input)

	case saveRecordMsg:
		return m.handleSave(msg.record)

	case forgetRecordMsg:
		return m.handleForget(msg.address)

	case viewRecordMsg:
		m.detail = newDetailModel(msg.record)
		m.active = viewDetail
		return m, nil
	}

	return m.updateActive(msg)
}

func (m Model) View() string {
	// password and menu include the logo, render directly
	switch m.active {
	case viewPassword:
		return m.password.View()
	case viewMenu:
		return m.menu.View()
	}

	var content string
	switch m.active {
	case viewGenerate:
		content = m.generate.View()
	case viewList:
		content = m.list.View()
	case viewDetail:
		content = m.detail.View()
	}

	header := zstyle.RenderHeader("civicid", viewTitle(m.active), accent)
	sep := zstyle.RenderSeparator(m.width)
	footer := zstyle.RenderFooter(m.helpFor(m.active))

	return "\n" + header + "\n" + sep + "\n" + content + "\n" + footer + "\n"
}

// viewTitle returns the display title for each view.
func viewTitle(id viewID) string {
	switch id {
	case viewGenerate:
		return "Generate Identity"
	case viewList:
		return "Saved Identities"
	case viewDetail:
		return "Identity Details"
	}
	return ""
}

// helpFor returns keybinding pairs for each view's footer.
func (m Model) helpFor(id viewID) []zstyle.HelpPair {
	switch id {
	case viewGenerate:
		if m.generate.editing() {
			return []zstyle.HelpPair{
				{Key: "enter", Desc: "generate"},
				{Key: "esc", Desc: "back"},
				{Key: "ctrl+c", Desc: "quit"},
			}
		}
		return []zstyle.HelpPair{
			{Key: "s", Desc: "save"},
			{Key: "c", Desc: "copy all"},
			{Key: "enter", Desc: "copy field"},
			{Key: "n", Desc: "new"},
			{Key: "esc", Desc: "back"},
			{Key: "q", Desc: "quit"},
		}
	case viewList:
		return []zstyle.HelpPair{
			{Key: "j/k", Desc: "navigate"},
			{Key: "enter", Desc: "view"},
			{Key: "d", Desc: "forget"},
			{Key: "esc", Desc: "back"},
			{Key: "q", Desc: "quit"},
		}
	case viewDetail:
		return []zstyle.HelpPair{
			{Key: "enter", Desc: "copy field"},
			{Key: "c", Desc: "copy all"},
			{Key: "d", Desc: "forget"},
			{Key: "esc", Desc: "back"},
			{Key: "q", Desc: "quit"},
		}
	}
	return nil
}

func (m Model) updateActive(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.active {
	case viewPassword:
		m.password, cmd = m.password.Update(msg)
	case viewMenu:
		m.menu, cmd = m.menu.Update(msg)
	case viewGenerate:
		m.generate, cmd = m.generate.Update(msg)
	case viewList:
		m.list, cmd = m.list.Update(msg)
	case viewDetail:
		m.detail, cmd = m.detail.Update(msg)
	}

	return m, cmd
}

func (m Model) openLedger(password string) (tea.Model, tea.Cmd) {
	if err := os.MkdirAll(m.dataDir, 0o700); err != nil {
		m.password, _ = m.password.Update(passwordErrMsg{
			err: fmt.Errorf("create data dir: %w", err),
		})
		return m, nil
	}

	l, err := ledger.Open(zfilesystem.NewOSFileSystem(m.dataDir), []byte(password))
	if err != nil {
		m.password, _ = m.password.Update(passwordErrMsg{err: err})
		return m, nil
	}

	m.ledger = l
	return m.navigate(viewMenu)
}

func (m Model) navigate(view viewID) (tea.Model, tea.Cmd) {
	switch view {
	case viewMenu:
		mm := newMenuModel(m.version)
		if m.ledger != nil {
			if rs, err := m.ledger.List(); err == nil {
				mm.identityCount = len(rs)
			}
		}
		m.menu = mm
		m.active = viewMenu
		return m, nil

	case viewGenerate:
		m.generate = newGenerateModel(m.urls)
		m.active = viewGenerate
		return m, m.generate.Init()

	case viewList:
		return m.loadList()
	}

	return m, nil
}

// generateCmd runs the pipeline off the update loop.
func (m Model) generateCmd(input string) tea.Cmd {
	gen := m.gen
	now := m.now
	return func() tea.Msg {
		o := gen.Process(context.Background(), input)
		return generatedMsg{outcome: o, at: now()}
	}
}

func (m Model) loadList() (tea.Model, tea.Cmd) {
	rs, err := m.ledger.List()
	if err != nil {
		// show empty list with error flash
		m.list = newListModel(nil)
		m.list.flash = "load: " + err.Error()
		m.active = viewList
		return m, clearFlashAfter()
	}

	m.list = newListModel(rs)
	m.active = viewList
	return m, nil
}

func (m Model) handleSave(r ledger.Record) (tea.Model, tea.Cmd) {
	if err := m.ledger.Put(r); err != nil {
		m.generate.flash = "save: " + err.Error()
		return m, clearFlashAfter()
	}

	m.generate, _ = m.generate.Update(recordSavedMsg{})
	return m, clearFlashAfter()
}

func (m Model) handleForget(addr string) (tea.Model, tea.Cmd) {
	a, err := address.Parse(addr)
	if err == nil {
		err = m.ledger.Delete(a)
	}
	if err != nil {
		if m.active == viewDetail {
			m.detail.flash = "forget: " + err.Error()
			return m, clearFlashAfter()
		}
		m.list.flash = "forget: " + err.Error()
		return m, clearFlashAfter()
	}

	// back to the refreshed list, from detail as well
	return m.loadList()
}

// Close cleans up resources. Call after the program exits.
func (m Model) Close() {
	if m.ledger != nil {
		m.ledger.Close()
	}
}
