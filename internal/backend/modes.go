package backend

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Game modes that have a server-side scoreboard.
const (
	ModeMarathon     = "marathon"
	ModeGravity      = "gravity"
	ModeRetro89      = "retro89"
	ModePractice     = "practice"
	ModeSprint40     = "sprint40"
	ModeModernFreeze = "modernfreeze"
)

var knownModes = map[string]string{}

func init() {
	for _, m := range []string{ModeMarathon, ModeGravity, ModeRetro89, ModePractice, ModeSprint40, ModeModernFreeze} {
		knownModes[modeKey(m)] = m
	}
}

func modeKey(mode string) string {
	// A Caser is stateful, so each call gets its own.
	return cases.Fold().String(norm.NFC.String(strings.TrimSpace(mode)))
}

// CanonicalMode returns the canonical spelling of a known game mode.
// ok is false for modes without a scoreboard.
func CanonicalMode(mode string) (canonical string, ok bool) {
	canonical, ok = knownModes[modeKey(mode)]
	return canonical, ok
}

// HasScoreboard reports whether mode is a known game mode.
func HasScoreboard(mode string) bool {
	_, ok := CanonicalMode(mode)
	return ok
}
