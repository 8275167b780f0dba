package tui

import (
	"fmt"
	"io"
	"strings"

	"github.com/muesli/termenv"
)

// PrintBanner outputs the saevis banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.EnvColorProfile()
	// Using a subtle gradient-like color scheme (Teal/Indigo)
	lines := []struct {
		text, color string
	}{
		{"  ___  __ _  ___  __   __(_) ___", "#2dd4bf"},
		{" / __|/ _` |/ _ \\ \\ \\ / /| |/ __|", "#38bdf8"},
		{" \\__ \\ (_| |  __/  \\ V / | |\\__ \\", "#818cf8"},
		{" |___/\\__,_|\\___|   \\_/  |_||___/", "#a78bfa"},
	}

	fmt.Fprintln(w)
	for _, l := range lines {
		fmt.Fprintln(w, termenv.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, termenv.String("  v"+strings.TrimSpace(version)).Faint())
	fmt.Fprintln(w)
}
