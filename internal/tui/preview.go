package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/zarlcorp/civicid/internal/address"
	"github.com/zarlcorp/civicid/internal/identicon"
)

var shapeGlyphs = map[identicon.Shape]string{
	identicon.Square:   "■",
	identicon.Circle:   "●",
	identicon.Triangle: "▲",
	identicon.Diamond:  "◆",
}

// renderPreview draws the identicon grid of a with one glyph per cell.
func renderPreview(a address.Address) string {
	p := identicon.NewPattern(identicon.Sum(a))
	styles := map[identicon.Tone]lipgloss.Style{
		identicon.Primary:   toneStyle(p, identicon.Primary),
		identicon.Secondary: toneStyle(p, identicon.Secondary),
	}

	var b strings.Builder
	for i := range identicon.GridSize {
		b.WriteString("    ")
		for j := range identicon.GridSize {
			c := p.Cells[i][j]
			if !c.Filled {
				b.WriteString("· ")
				continue
			}
			b.WriteString(styles[c.Tone].Render(shapeGlyphs[c.Shape]) + " ")
		}
		b.WriteString("\n")
	}
	return b.String()
}

func toneStyle(p identicon.Pattern, t identicon.Tone) lipgloss.Style {
	c := p.Color(t)
	hex := fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex))
}
