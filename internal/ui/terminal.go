// Package ui holds small terminal-detection helpers for the CLI.
package ui

import (
	"os"

	"golang.org/x/term"
)

// StdoutIsTerminal reports whether stdout is attached to an interactive
// terminal. Piped output defaults to JSON so it stays machine-readable.
func StdoutIsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}
