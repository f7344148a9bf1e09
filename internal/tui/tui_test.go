package tui

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/zarlcorp/civicid/internal/address"
	"github.com/zarlcorp/civicid/internal/artifact"
	"github.com/zarlcorp/civicid/internal/batch"
	"github.com/zarlcorp/civicid/internal/ledger"
	"github.com/zarlcorp/civicid/internal/metadata"
)

// helpers

func keyMsg(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func specialKey(t tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: t}
}

func enterKey() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyEnter}
}

func escKey() tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyEsc}
}

const testAddr = "0x8626f6940E2eb28930eFb4CeF49B2d1F2C9C1199"

var testURLs = metadata.URLs{Base: "https://ids.example.org"}

func testRecord() ledger.Record {
	a := address.MustParse(testAddr)
	return ledger.NewRecord(a, artifact.Paths{
		Image:    "images/" + artifact.ImageName(a),
		Metadata: "metadata/" + artifact.MetadataName(a),
	}, testURLs.TokenURI(a), time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
}

// stubGenerator succeeds for valid addresses without touching disk.
type stubGenerator struct{}

func (stubGenerator) Process(_ context.Context, raw string) batch.Outcome {
	o := batch.Outcome{Input: raw}
	a, err := address.Parse(raw)
	if err != nil {
		o.Err = err
		return o
	}
	o.Address = a
	o.Paths = artifact.Paths{
		Image:    "images/" + artifact.ImageName(a),
		Metadata: "metadata/" + artifact.MetadataName(a),
	}
	return o
}

// stubClipboard captures copied text for the duration of a test.
func stubClipboard(t *testing.T, err error) *string {
	t.Helper()
	var got string
	orig := copyToClipboard
	copyToClipboard = func(s string) error {
		got = s
		return err
	}
	t.Cleanup(func() { copyToClipboard = orig })
	return &got
}

// run executes cmd and returns its message, or nil when the command waits
// on a timer such as cursor blink or flash expiry.
func run(cmd tea.Cmd) tea.Msg {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()

	select {
	case msg := <-ch:
		return msg
	case <-time.After(100 * time.Millisecond):
		return nil
	}
}

func msgOf(t *testing.T, cmd tea.Cmd) tea.Msg {
	t.Helper()
	if cmd == nil {
		t.Fatal("expected a command")
	}
	return run(cmd)
}

func isQuit(cmd tea.Cmd) bool {
	if cmd == nil {
		return false
	}
	_, ok := run(cmd).(tea.QuitMsg)
	return ok
}

// password view tests

func TestPasswordViewShowsPrompt(t *testing.T) {
	m := newPasswordModel("", false)
	view := m.View()

	if !strings.Contains(view, "master password") {
		t.Error("view should show master password prompt")
	}
	if strings.Contains(view, "create") {
		t.Error("non-first-run view should not contain 'create'")
	}
	if !strings.Contains(view, "civicid") {
		t.Error("view should show title")
	}
}

func TestPasswordFirstRunConfirms(t *testing.T) {
	m := newPasswordModel("", true)
	if !strings.Contains(m.View(), "create master password") {
		t.Error("first-run view should show 'create master password'")
	}

	m.input.SetValue("secret")
	m, cmd := m.Update(enterKey())
	if cmd != nil {
		t.Error("first entry should not submit")
	}
	if m.stage != stageConfirm || !strings.Contains(m.View(), "confirm password") {
		t.Fatal("should be confirming")
	}

	m.input.SetValue("secret")
	_, cmd = m.Update(enterKey())
	msg, ok := msgOf(t, cmd).(passwordSubmitMsg)
	if !ok || msg.password != "secret" {
		t.Errorf("submit = %+v", msg)
	}
}

func TestPasswordMismatch(t *testing.T) {
	m := newPasswordModel("", true)

	m.input.SetValue("one")
	m, _ = m.Update(enterKey())
	m.input.SetValue("two")
	m, cmd := m.Update(enterKey())

	if cmd != nil {
		t.Error("mismatch should not submit")
	}
	if m.stage != stageCreate {
		t.Error("mismatch should restart")
	}
	if !strings.Contains(m.View(), "passwords do not match") {
		t.Error("view should show mismatch error")
	}
}

func TestPasswordFirstRunShowsLedgerDir(t *testing.T) {
	m := newPasswordModel("/data/civicid", true)
	if !strings.Contains(m.View(), "new ledger in /data/civicid") {
		t.Error("first-run view should name the ledger location")
	}

	m = newPasswordModel("/data/civicid", false)
	if strings.Contains(m.View(), "new ledger") {
		t.Error("unlock view should not mention a new ledger")
	}
}

func TestPasswordErrorDuringConfirmRestartsCreation(t *testing.T) {
	m := newPasswordModel("", true)
	m.input.SetValue("secret")
	m, _ = m.Update(enterKey())

	m, _ = m.Update(passwordErrMsg{err: errors.New("create data dir: denied")})
	if m.stage != stageCreate || m.pending != "" {
		t.Errorf("stage = %d, pending = %q", m.stage, m.pending)
	}
}

func TestPasswordEmptyIgnored(t *testing.T) {
	m := newPasswordModel("", false)
	if _, cmd := m.Update(enterKey()); cmd != nil {
		t.Error("empty password should be ignored")
	}
}

func TestPasswordQKeyReachesInput(t *testing.T) {
	m := newPasswordModel("", false)

	m, cmd := m.Update(keyMsg('q'))
	if isQuit(cmd) {
		t.Fatal("pressing 'q' should not quit the password view")
	}
	if m.input.Value() != "q" {
		t.Errorf("input = %q, want q", m.input.Value())
	}
}

func TestPasswordCtrlCQuits(t *testing.T) {
	m := newPasswordModel("", false)
	if _, cmd := m.Update(specialKey(tea.KeyCtrlC)); !isQuit(cmd) {
		t.Error("ctrl+c should quit")
	}
}

func TestPasswordErrorResets(t *testing.T) {
	m := newPasswordModel("", false)
	m.input.SetValue("wrong")

	m, _ = m.Update(passwordErrMsg{err: errors.New("wrong password")})

	if m.input.Value() != "" {
		t.Error("input should be cleared")
	}
	if !strings.Contains(m.View(), "wrong password") {
		t.Error("view should show error")
	}
}

// menu tests

func TestMenuNavigation(t *testing.T) {
	tests := []struct {
		name string
		keys []tea.KeyMsg
		want viewID
	}{
		{"generate", nil, viewGenerate},
		{"browse", []tea.KeyMsg{keyMsg('j')}, viewList},
		{"clamped at top", []tea.KeyMsg{keyMsg('k'), keyMsg('k')}, viewGenerate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := newMenuModel("dev")
			for _, k := range tt.keys {
				m, _ = m.Update(k)
			}
			_, cmd := m.Update(enterKey())
			nav, ok := msgOf(t, cmd).(navigateMsg)
			if !ok || nav.view != tt.want {
				t.Errorf("navigate = %+v, want %d", nav, tt.want)
			}
		})
	}
}

func TestMenuQuit(t *testing.T) {
	m := newMenuModel("dev")
	m, _ = m.Update(keyMsg('j'))
	m, _ = m.Update(keyMsg('j'))
	m, _ = m.Update(keyMsg('j'))
	if _, cmd := m.Update(enterKey()); !isQuit(cmd) {
		t.Error("selecting quit should quit")
	}
	if _, cmd := newMenuModel("dev").Update(keyMsg('q')); !isQuit(cmd) {
		t.Error("q should quit")
	}
}

func TestMenuShortcuts(t *testing.T) {
	tests := []struct {
		key  rune
		want viewID
	}{
		{'g', viewGenerate},
		{'b', viewList},
	}

	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			_, cmd := newMenuModel("dev").Update(keyMsg(tt.key))
			nav, ok := msgOf(t, cmd).(navigateMsg)
			if !ok || nav.view != tt.want {
				t.Errorf("navigate = %+v, want %d", nav, tt.want)
			}
		})
	}

	if view := newMenuModel("dev").View(); !strings.Contains(view, "g generate") || !strings.Contains(view, "b browse") {
		t.Errorf("view should list shortcuts:\n%s", view)
	}
}

func TestMenuShowsCount(t *testing.T) {
	m := newMenuModel("v1.2.3")
	m.identityCount = 4

	view := m.View()
	if !strings.Contains(view, "v1.2.3") {
		t.Error("view should show version")
	}
	if !strings.Contains(view, "(4)") {
		t.Error("view should show saved count")
	}
}

// generate view tests

func typeInto(m generateModel, s string) generateModel {
	for _, r := range s {
		m, _ = m.Update(keyMsg(r))
	}
	return m
}

func TestGenerateInputSubmits(t *testing.T) {
	m := newGenerateModel(testURLs)
	if !m.editing() {
		t.Fatal("new model should be editing")
	}

	m = typeInto(m, testAddr)
	m, cmd := m.Update(enterKey())

	req, ok := msgOf(t, cmd).(generateRequestMsg)
	if !ok || req.input != testAddr {
		t.Fatalf("request = %+v", req)
	}
	if !m.pending || !strings.Contains(m.View(), "generating") {
		t.Error("should show pending state")
	}

	// a second enter while pending does nothing
	if _, cmd := m.Update(enterKey()); cmd != nil {
		t.Error("enter while pending should be ignored")
	}
}

func TestGenerateInputKeysDoNotQuit(t *testing.T) {
	m := newGenerateModel(testURLs)

	m, cmd := m.Update(keyMsg('q'))
	if isQuit(cmd) {
		t.Fatal("q should be typed, not quit")
	}
	if m.input.Value() != "q" {
		t.Errorf("input = %q", m.input.Value())
	}

	if _, cmd := m.Update(escKey()); cmd == nil {
		t.Error("esc should navigate back")
	} else if nav, ok := cmd().(navigateMsg); !ok || nav.view != viewMenu {
		t.Errorf("esc = %+v", nav)
	}
}

func TestGenerateFailureShowsReason(t *testing.T) {
	m := newGenerateModel(testURLs)
	m.pending = true

	o := stubGenerator{}.Process(context.Background(), "0xnope")
	m, _ = m.Update(generatedMsg{outcome: o, at: time.Now()})

	if !m.editing() {
		t.Fatal("failure should keep the prompt")
	}
	if m.pending {
		t.Error("pending should clear")
	}
	if !strings.Contains(m.View(), "invalid_address") {
		t.Errorf("view should show reason:\n%s", m.View())
	}
}

func generatedModel(t *testing.T) generateModel {
	t.Helper()
	m := newGenerateModel(testURLs)
	o := stubGenerator{}.Process(context.Background(), strings.ToLower(testAddr))
	m, _ = m.Update(generatedMsg{outcome: o, at: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)})
	if m.editing() {
		t.Fatal("should show result")
	}
	return m
}

func TestGenerateResultFields(t *testing.T) {
	m := generatedModel(t)

	if m.record.Address != testAddr {
		t.Errorf("address = %s", m.record.Address)
	}
	if m.record.TokenURI != testURLs.TokenURI(address.MustParse(testAddr)) {
		t.Errorf("token uri = %s", m.record.TokenURI)
	}

	view := m.View()
	for _, want := range []string{testAddr, "did:ethr:" + testAddr, "token uri"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestGenerateResultActions(t *testing.T) {
	m := generatedModel(t)

	_, cmd := m.Update(keyMsg('s'))
	save, ok := msgOf(t, cmd).(saveRecordMsg)
	if !ok || save.record.Address != testAddr {
		t.Errorf("save = %+v", save)
	}

	_, cmd = m.Update(keyMsg('n'))
	if nav, ok := msgOf(t, cmd).(navigateMsg); !ok || nav.view != viewGenerate {
		t.Errorf("new = %+v", nav)
	}

	if _, cmd := m.Update(keyMsg('q')); !isQuit(cmd) {
		t.Error("q should quit from the result")
	}
}

func TestGenerateCopy(t *testing.T) {
	copied := stubClipboard(t, nil)
	m := generatedModel(t)

	m, _ = m.Update(keyMsg('j'))
	m, _ = m.Update(enterKey())
	if *copied != "did:ethr:"+testAddr {
		t.Errorf("copied = %q", *copied)
	}
	if m.flash != "copied!" {
		t.Errorf("flash = %q", m.flash)
	}

	m, _ = m.Update(keyMsg('c'))
	if !strings.Contains(*copied, "address: "+testAddr) || !strings.Contains(*copied, "token uri: ") {
		t.Errorf("copied all = %q", *copied)
	}

	m, _ = m.Update(flashMsg{})
	if m.flash != "" {
		t.Error("flash should clear")
	}
}

func TestGenerateCopyError(t *testing.T) {
	stubClipboard(t, errors.New("no clipboard"))
	m := generatedModel(t)

	m, _ = m.Update(enterKey())
	if !strings.HasPrefix(m.flash, "copy: ") {
		t.Errorf("flash = %q", m.flash)
	}
}

// list and detail tests

func TestListEmpty(t *testing.T) {
	m := newListModel(nil)
	if !strings.Contains(m.View(), "no saved identities") {
		t.Error("empty list should say so")
	}
	if _, cmd := m.Update(enterKey()); cmd != nil {
		t.Error("enter on empty list should do nothing")
	}
}

func TestListActions(t *testing.T) {
	r := testRecord()
	m := newListModel([]ledger.Record{r})

	if !strings.Contains(m.View(), r.Address) {
		t.Error("view should list the address")
	}

	_, cmd := m.Update(enterKey())
	if v, ok := msgOf(t, cmd).(viewRecordMsg); !ok || v.record.Address != r.Address {
		t.Errorf("view = %+v", v)
	}

	_, cmd = m.Update(keyMsg('d'))
	if f, ok := msgOf(t, cmd).(forgetRecordMsg); !ok || f.address != r.Address {
		t.Errorf("forget = %+v", f)
	}

	_, cmd = m.Update(escKey())
	if nav, ok := msgOf(t, cmd).(navigateMsg); !ok || nav.view != viewMenu {
		t.Errorf("back = %+v", nav)
	}
}

func TestDetailActions(t *testing.T) {
	copied := stubClipboard(t, nil)
	r := testRecord()
	m := newDetailModel(r)

	view := m.View()
	if !strings.Contains(view, "0x8626...1199") {
		t.Error("view should show short address")
	}

	m, _ = m.Update(enterKey())
	if *copied != r.Address {
		t.Errorf("copied = %q", *copied)
	}

	_, cmd := m.Update(keyMsg('d'))
	if f, ok := msgOf(t, cmd).(forgetRecordMsg); !ok || f.address != r.Address {
		t.Errorf("forget = %+v", f)
	}

	_, cmd = m.Update(escKey())
	if nav, ok := msgOf(t, cmd).(navigateMsg); !ok || nav.view != viewList {
		t.Errorf("back = %+v", nav)
	}
}

func TestRenderPreview(t *testing.T) {
	a := address.MustParse(testAddr)

	first := renderPreview(a)
	if first != renderPreview(address.MustParse(strings.ToLower(testAddr))) {
		t.Error("preview should not depend on input case")
	}
	if lines := strings.Count(first, "\n"); lines != 8 {
		t.Errorf("preview lines = %d, want 8", lines)
	}
}
