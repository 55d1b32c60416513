package resolver

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/devicelab-dev/replay-runner/pkg/testcase"
)

var (
	quotedRe   = regexp.MustCompile(`"([^"]+)"|'([^']+)'`)
	bodyDivRe  = regexp.MustCompile(`/body/div\[(\d+)\]`)
	rowIndexRe = regexp.MustCompile(`\b(tr|li)\[(\d+)\]`)
)

// QuotedDescriptionText returns the first quoted phrase in a recorded
// description that reads like visible text rather than a selector.
// Descriptions quoting a class name alongside the label pick the label;
// a label that itself starts with a style token is missed.
func QuotedDescriptionText(desc string, styleTokens []string) (string, bool) {
	for _, m := range quotedRe.FindAllStringSubmatch(desc, -1) {
		text := m[1]
		if text == "" {
			text = m[2]
		}
		text = strings.TrimSpace(text)
		if text == "" || LooksLikeSelectorFragment(text, styleTokens) {
			continue
		}
		return text, true
	}
	return "", false
}

// LooksLikeSelectorFragment reports whether s looks like part of a
// selector: a class or id reference, attribute or combinator syntax, or a
// generated style class. Visible text containing "=" or ">" is rejected too.
func LooksLikeSelectorFragment(s string, styleTokens []string) bool {
	if strings.HasPrefix(s, ".") || strings.HasPrefix(s, "#") {
		return true
	}
	if strings.ContainsAny(s, "[=>") {
		return true
	}
	for _, tok := range styleTokens {
		if tok != "" && strings.HasPrefix(s, tok) {
			return true
		}
	}
	return false
}

// LooksLikeModal reports whether the locator probably targets content in a
// dialog: an xpath through a second-or-later top-level body div (where
// portals mount), or any value mentioning modal or dialog. Apps that mount
// regular content in later body divs settle needlessly.
func LooksLikeModal(loc *testcase.ElementLocator) bool {
	if loc == nil {
		return false
	}
	lower := strings.ToLower(loc.Value)
	if strings.Contains(lower, "modal") || strings.Contains(lower, "dialog") {
		return true
	}
	if loc.Type != testcase.LocatorXPath {
		return false
	}
	for _, m := range bodyDivRe.FindAllStringSubmatch(loc.Value, -1) {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 2 {
			return true
		}
	}
	return false
}

// RowIndex extracts the 1-based index of the last table row or list item
// segment in an xpath (tr[3], li[2]). Only tr and li count; indexed divs
// in grid layouts are not recognised.
func RowIndex(xpath string) (int, bool) {
	matches := rowIndexRe.FindAllStringSubmatch(xpath, -1)
	if len(matches) == 0 {
		return 0, false
	}
	n, err := strconv.Atoi(matches[len(matches)-1][2])
	if err != nil || n < 1 {
		return 0, false
	}
	return n, true
}

// normalizeText collapses whitespace runs the way xpath normalize-space does.
func normalizeText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
