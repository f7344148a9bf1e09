package tui

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"strings"
)

// copyToClipboard copies text to the system clipboard. Tests replace it.
var copyToClipboard = systemCopy

func systemCopy(text string) error {
	cmd, err := clipboardCommand()
	if err != nil {
		return err
	}

	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("clipboard: %w", err)
	}
	return nil
}

func clipboardCommand() (*exec.Cmd, error) {
	switch runtime.GOOS {
	case "darwin":
		return exec.Command("pbcopy"), nil
	case "linux":
		if os.Getenv("WAYLAND_DISPLAY") != "" {
			if _, err := exec.LookPath("wl-copy"); err == nil {
				return exec.Command("wl-copy"), nil
			}
		}
		if _, err := exec.LookPath("xclip"); err == nil {
			return exec.Command("xclip", "-selection", "clipboard"), nil
		}
		if _, err := exec.LookPath("xsel"); err == nil {
			return exec.Command("xsel", "--clipboard", "--input"), nil
		}
		return nil, fmt.Errorf("no clipboard tool: install wl-clipboard, xclip or xsel")
	}
	return nil, fmt.Errorf("clipboard not supported on %s", runtime.GOOS)
}
