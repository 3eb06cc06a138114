// Package moderation classifies inbound comments with a deterministic rule
// stage and an optional AI refinement stage backed by a bounded result cache.
package moderation

import (
	"regexp"
	"strings"
)

// Result is the outcome of moderating a single comment. Immutable once produced.
type Result struct {
	Allow     bool   `json:"allow"`
	Highlight bool   `json:"highlight"`
	Reason    string `json:"reason"`
}

// Rule stage reasons. The blocked reasons double as diagnostics on
// comment:blocked events.
const (
	ReasonBlockedPattern = "blocked pattern"
	ReasonSpamPattern    = "spam pattern"
	ReasonTooShort       = "too short"
	ReasonPassedRules    = "passed rules"
	ReasonAIParseFailed  = "ai parse failed"
)

// blockedPhrases are spam keyword fragments matched case-insensitively.
var blockedPhrases = []string{
	"buy followers",
	"click here",
	"free money",
	"free gift card",
	"check out my channel",
	"sub 4 sub",
	"follow 4 follow",
	"onlyfans.com",
	"crypto giveaway",
}

var (
	// Three or more links in one message is treated as link flooding.
	linkPattern = regexp.MustCompile(`https?://\S+`)

	// Structural spam: symbol-only content and "first!" style drive-bys.
	// Long single-character runs are caught by hasLongRun since RE2 has no
	// backreferences.
	symbolOnlyPattern = regexp.MustCompile(`^[^\p{L}\p{N}]+$`)
	firstSpamPattern  = regexp.MustCompile(`(?i)^first[\s!1.]*$`)
)

// hasLongRun reports whether s contains 10 or more consecutive identical
// runes ("aaaaaaaaaa", "!!!!!!!!!!").
func hasLongRun(s string) bool {
	var prev rune
	run := 0
	for _, r := range s {
		if r == prev {
			run++
			if run >= 10 {
				return true
			}
		} else {
			prev = r
			run = 1
		}
	}
	return false
}

// evaluateRules runs the deterministic stage. It is synchronous, allocation
// light, and executed for every inbound comment before any AI refinement.
func evaluateRules(message string) Result {
	trimmed := strings.TrimSpace(message)
	lower := strings.ToLower(trimmed)

	for _, phrase := range blockedPhrases {
		if strings.Contains(lower, phrase) {
			return Result{Allow: false, Reason: ReasonBlockedPattern}
		}
	}
	if len(linkPattern.FindAllStringIndex(trimmed, 3)) >= 3 {
		return Result{Allow: false, Reason: ReasonBlockedPattern}
	}

	if trimmed != "" && (hasLongRun(trimmed) ||
		symbolOnlyPattern.MatchString(trimmed) ||
		firstSpamPattern.MatchString(trimmed)) {
		return Result{Allow: false, Reason: ReasonSpamPattern}
	}

	if len(trimmed) < 2 {
		return Result{Allow: false, Reason: ReasonTooShort}
	}

	return Result{
		Allow:     true,
		Highlight: strings.Contains(trimmed, "?") && len(trimmed) > 15,
		Reason:    ReasonPassedRules,
	}
}
