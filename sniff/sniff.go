package sniff

import "strings"

// indicators is the vocabulary used to decide whether a blob of text is
// plausibly a rendered email. Matching is case-insensitive.
var indicators = []string{
	"From:", "To:", "Sent:", "Date:", "Subject:",
	"mailto:", "@", "Reply-To:", "Cc:", "Bcc:",
}

// minIndicators is the number of distinct indicators required before a blob
// is treated as an email rendering.
const minIndicators = 3

// LooksLikeEmail reports whether the text contains enough email indicators
// to be treated as a message rendering. It gates the HTML extraction path so
// arbitrary HTML pages are not misread as messages.
func LooksLikeEmail(text string) bool {
	lower := strings.ToLower(text)
	matches := 0
	for _, indicator := range indicators {
		if strings.Contains(lower, strings.ToLower(indicator)) {
			matches++
			if matches >= minIndicators {
				return true
			}
		}
	}
	return false
}
