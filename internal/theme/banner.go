package theme

import (
	"fmt"
	"io"
)

// Banner returns the CLI banner.
func Banner(version string) string {
	const cyan = "\033[36m"
	const magenta = "\033[35m"
	const yellow = "\033[33m"
	const reset = "\033[0m"

	art := "" +
		"  👉  " + magenta + "POKEWATCH" + reset + " " + version + "\n" +
		cyan + "   ▄▄▄▄  ▄▄▄▄  ▄  ▄ ▄▄▄▄   ▄   ▄ ▄▄▄▄ ▄▄▄▄▄ ▄▄▄▄ ▄  ▄\n" + reset +
		cyan + "   █▄▄█ █    █ █▄▀  █▄▄    █ ▄ █ █▄▄█   █   █    █▄▄█\n" + reset +
		cyan + "   █    ▀▄▄▄▄▀ █  ▀▄ █▄▄▄   ▀▄▀▄▀ █  █   █   ▀▄▄▄ █  █\n" + reset +
		yellow + "   ────────────────────────────────────────────────\n" + reset +
		"   post counts, daily reports and nudges for X, via Poke\n"
	return art
}

// PrintBanner writes the banner to w.
func PrintBanner(w io.Writer, version string) { fmt.Fprint(w, Banner(version)) }
