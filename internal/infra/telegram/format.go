package telegram

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxMessageLength stays below the Bot API limit of 4096.
	DefaultMaxMessageLength = 4000

	truncationNotice = "\n\n... (mensagem truncada)"
	truncationMargin = 100
)

var (
	htmlEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	boldPattern = regexp.MustCompile(`\*\*([^*\n]+)\*\*`)
)

// FormatHTML prepares model output for parse_mode=HTML: special characters
// are escaped and **bold** spans become <b> tags. Text whose formatted form
// exceeds maxLen runes is cut to maxLen-100 runes plus a truncation notice, never
// splitting an entity or tag.
func FormatHTML(text string, maxLen int) string {
	if maxLen <= 0 {
		maxLen = DefaultMaxMessageLength
	}
	formatted := render(text)
	if utf8.RuneCountInString(formatted) <= maxLen {
		return formatted
	}

	budget := maxLen - truncationMargin
	if budget < 0 {
		budget = 0
	}
	runes := []rune(strings.TrimSpace(text))
	lo, hi := 0, len(runes)
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if utf8.RuneCountInString(render(string(runes[:mid]))) <= budget {
			lo = mid
		} else {
			hi = mid - 1
		}
	}
	return render(string(runes[:lo])) + truncationNotice
}

func render(text string) string {
	escaped := htmlEscaper.Replace(strings.TrimSpace(text))
	return boldPattern.ReplaceAllString(escaped, "<b>$1</b>")
}
