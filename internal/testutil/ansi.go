package testutil

import "regexp"

var ansiSeq = regexp.MustCompile(`\x1b\[[\d;]*[A-Za-z]`)

// StripANSI removes terminal styling sequences so rendered TUI output can
// be matched as plain text.
func StripANSI(s string) string {
	return ansiSeq.ReplaceAllString(s, "")
}
