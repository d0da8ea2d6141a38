package tui

import (
	"fmt"
	"io"

	"github.com/muesli/termenv"
)

var bannerLines = []struct {
	text  string
	color string
}{
	{`                 _`, "#818cf8"},
	{`   __ _ _ __ ___| |__   ___  _ __`, "#a78bfa"},
	{`  / _' | '__/ _ \ '_ \ / _ \| '__|`, "#c084fc"},
	{` | (_| | | |  __/ |_) | (_) | |`, "#e879f9"},
	{`  \__,_|_|  \___|_.__/ \___/|_|`, "#f472b6"},
}

// PrintBanner writes the arbor banner and version to w.
func PrintBanner(w io.Writer, version string) {
	p := termenv.ColorProfile()
	fmt.Fprintln(w)
	for _, l := range bannerLines {
		fmt.Fprintln(w, p.String(l.text).Foreground(p.Color(l.color)))
	}
	fmt.Fprintln(w, p.String("  "+version).Faint())
	fmt.Fprintln(w)
}
