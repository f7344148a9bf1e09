package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/lipgloss"
	"github.com/zarlcorp/civicid/internal/batch"
	"github.com/zarlcorp/civicid/internal/metadata"
	"github.com/zarlcorp/core/pkg/zstyle"
	"golang.org/x/term"
)

type outcomeJSON struct {
	Input    string `json:"input"`
	Address  string `json:"address,omitempty"`
	DID      string `json:"did,omitempty"`
	Image    string `json:"image,omitempty"`
	Metadata string `json:"metadata,omitempty"`
	TokenURI string `json:"token_uri,omitempty"`
	Reason   string `json:"reason,omitempty"`
	Error    string `json:"error,omitempty"`
}

func outcomesJSON(r batch.Result, urls metadata.URLs) []outcomeJSON {
	out := make([]outcomeJSON, 0, len(r.Outcomes))
	for _, o := range r.Outcomes {
		j := outcomeJSON{Input: o.Input}
		if o.OK() {
			j.Address = o.Address.Hex()
			j.DID = o.Address.DID()
			j.Image = o.Paths.Image
			j.Metadata = o.Paths.Metadata
			j.TokenURI = urls.TokenURI(o.Address)
		} else {
			j.Reason = o.Reason()
			j.Error = o.Err.Error()
		}
		out = append(out, j)
	}
	return out
}

// printResult writes one line per address, then a count. Styling is only
// applied when w is a terminal.
func printResult(w io.Writer, r batch.Result) {
	styled := isTerminal(w)
	render := func(s lipgloss.Style, text string) string {
		if !styled {
			return text
		}
		return s.Render(text)
	}

	for _, o := range r.Outcomes {
		if o.OK() {
			fmt.Fprintf(w, "  %s %s\n", render(zstyle.StatusOK, "ok"), o.Address.Hex())
			fmt.Fprintf(w, "       metadata  %s\n", o.Paths.Metadata)
			fmt.Fprintf(w, "       image     %s\n", o.Paths.Image)
			continue
		}
		fmt.Fprintf(w, "  %s %s\n", render(zstyle.StatusErr, "failed"), o.Input)
		fmt.Fprintf(w, "       %s  %v\n", render(zstyle.StatusWarn, o.Reason()), o.Err)
	}

	ok := len(r.Succeeded())
	summary := fmt.Sprintf("generated %d identities", ok)
	if r.HasErrors() {
		summary = fmt.Sprintf("generated %d/%d identities (with errors)", ok, len(r.Outcomes))
	}
	fmt.Fprintln(w, render(zstyle.MutedText, summary))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
