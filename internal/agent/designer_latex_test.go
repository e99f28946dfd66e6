package agent

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestEscapeLatex(t *testing.T) {
	require.Equal(t, `100\% \& rising\_fast`, escapeLatex(`100% & rising_fast`))
	require.Equal(t, `\$5 \{x\}`, escapeLatex(`$5 {x}`))
}

func TestNormalizeFont(t *testing.T) {
	cases := map[string]string{
		"":             "lmodern",
		"Times New Roman": "newtx",
		"newtx":        "newtx",
		"Palatino":     "palatino",
		"Linux Libertine": "libertine",
		"Comic Sans":   "lmodern",
	}
	for in, want := range cases {
		require.Equal(t, want, normalizeFont(in), "input %q", in)
	}
}

func TestBuildLatexDocument_TextSection(t *testing.T) {
	sections := []renderedSection{{Heading: "Notes", Content: "All good & fine."}}
	tex, err := buildLatexDocument("Report", "lmodern", false, "black", "0.8pt", "18pt", sections, t.TempDir())
	require.NoError(t, err)
	require.Contains(t, tex, `\section*{Notes}`)
	require.Contains(t, tex, `All good \& fine.`)
	require.Contains(t, tex, `\usepackage{lmodern}`)
}

func TestBuildLatexDocument_ImageSectionWritesAsset(t *testing.T) {
	dir := t.TempDir()
	sections := []renderedSection{{Heading: "Chart", ImageEmbed: true, ImageBytes: []byte("fake-png"), Caption: "p95"}}
	tex, err := buildLatexDocument("Report", "newtx", false, "black", "0.8pt", "18pt", sections, dir)
	require.NoError(t, err)
	require.Contains(t, tex, `\includegraphics`)
	require.Contains(t, tex, "artifact_0.png")
	require.Contains(t, tex, `\caption{p95}`)
}

func TestBuildLatexDocument_PageBorder(t *testing.T) {
	tex, err := buildLatexDocument("Report", "lmodern", true, "red", "1pt", "10pt", nil, t.TempDir())
	require.NoError(t, err)
	require.True(t, strings.Contains(tex, "AddToShipoutPictureBG"))
	require.Contains(t, tex, "color=red")
}
