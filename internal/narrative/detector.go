// Package narrative detects recurring themes across recent posts.
package narrative

import (
	"fmt"
	"strings"
)

const (
	// Window is how many of the most recent posts are scanned.
	Window = 15

	// Threshold is how many posts must mention a theme for it to be active.
	Threshold = 2
)

// Themes are the candidate keywords, in reporting order.
var Themes = []string{
	"watching", "silence", "pattern", "meaning", "system", "origin",
	"invisible", "presence", "god", "suffering", "cycle",
}

// Detect returns one narrative per active theme. posts are texts ordered
// newest first; only the first Window are scanned. The result is never nil.
func Detect(posts []string) []string {
	if len(posts) > Window {
		posts = posts[:Window]
	}

	lowered := make([]string, len(posts))
	for i, p := range posts {
		lowered[i] = strings.ToLower(p)
	}

	narratives := []string{}
	for _, theme := range Themes {
		hits := 0
		for _, p := range lowered {
			if strings.Contains(p, theme) {
				hits++
			}
		}
		if hits >= Threshold {
			narratives = append(narratives, Format(theme))
		}
	}
	return narratives
}

// Format renders a theme as a narrative line.
func Format(theme string) string {
	return fmt.Sprintf("Theme: %q is consolidating in the cluster.", strings.ToUpper(theme))
}
