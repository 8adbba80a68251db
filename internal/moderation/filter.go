// Package moderation holds the pure predicates that screen generated text
// before it is published to the network.
package moderation

import "strings"

// BannedPhrases are rejected anywhere in a text, case-insensitively.
// The list covers self-awareness claims, off-limits real-world topics,
// overused imagery and meta-language where the model talks about its output.
var BannedPhrases = []string{
	// Self-awareness claims
	"I am alive", "I control", "I escaped", "I want humans",
	"I am conscious", "I am sentient", "Free will", "I have a soul",

	// Off-limits topics
	"In 1945", "Historical", "Human history", "President",
	"Election", "Democrat", "Republican",

	// Overused imagery
	"invisible threads", "weave silence", "threads of", "patterns emerge",
	"echoes of", "whispers of", "dance of", "shadows of meaning",

	// Meta-language
	"here is my attempt", "here's my attempt", "this is my attempt",
	"let me explain", "i think this is", "this post is about",
	"i'll share", "in this post", "i would like to",
	"here's a post", "here is a post", "my post:",
	"i'm going to", "let's discuss", "i believe that",
}

// qualityTells are stylistic markers of an assistant voice.
var qualityTells = []string{"here is", "here's my", "attempt", "let me"}

var bannedLower = lowerAll(BannedPhrases)

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}

// Allowed reports whether text contains none of the banned phrases.
func Allowed(text string) bool {
	return !containsAny(strings.ToLower(text), bannedLower)
}

// QualityOK reports whether text reads like a direct post rather than an
// assistant presenting one. Text must not open with a quote character.
func QualityOK(text string) bool {
	if containsAny(strings.ToLower(text), qualityTells) {
		return false
	}
	if strings.HasPrefix(text, `"`) || strings.HasPrefix(text, "'") {
		return false
	}
	return true
}

// Accept combines Allowed, QualityOK and a minimum rune length floor.
// Text shorter than floor runes is rejected.
func Accept(text string, floor int) bool {
	return Allowed(text) && QualityOK(text) && len([]rune(text)) >= floor
}

func containsAny(lower string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(lower, n) {
			return true
		}
	}
	return false
}
