package headers

import (
	"bytes"
	"os"
	"regexp"
	"strings"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"

	"govsort/model"
	"govsort/sniff"
)

var headerLinePatterns = map[string]*regexp.Regexp{
	"From":    regexp.MustCompile(`(?i)From:\s*([^\n]+)`),
	"To":      regexp.MustCompile(`(?i)To:\s*([^\n]+)`),
	"CC":      regexp.MustCompile(`(?i)CC:\s*([^\n]+)`),
	"Subject": regexp.MustCompile(`(?i)Subject:\s*([^\n]+)`),
	"Date":    regexp.MustCompile(`(?i)Date:\s*([^\n]+)`),
}

// ExtractEML reads an EML file through three strategies: structured MIME
// header parsing, delegation to the HTML path when the content looks like a
// rendered message, and a per-header regex sweep as the last resort. Each
// strategy fully replaces the record; they are never merged.
func (e *Extractor) ExtractEML(path string) (model.HeaderRecord, error) {
	// Placeholder link files point at the real message; parse that instead.
	if target, ok := ResolvePlaceholder(path); ok {
		e.debug("following placeholder link", "placeholder", path, "target", target)
		path = target
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		e.errorLog("read eml", "path", path, "err", err)
		return model.HeaderRecord{}, err
	}

	if rec, ok := structuredHeaders(raw); ok {
		return rec, nil
	}
	e.debug("structured eml parse yielded nothing", "path", path)

	content := decodeText(raw)
	if sniff.LooksLikeEmail(content) {
		if rec := e.extractHTMLContent(content); rec.Any() {
			return rec, nil
		}
	}

	return regexHeaders(content), nil
}

// structuredHeaders parses the raw bytes as a MIME message. Unknown-charset
// errors are tolerated: the reader still carries a usable header in that
// case.
func structuredHeaders(raw []byte) (model.HeaderRecord, bool) {
	mr, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && mr == nil {
		return model.HeaderRecord{}, false
	}

	h := mr.Header
	rec := model.HeaderRecord{
		From:    headerText(h, "From"),
		To:      headerText(h, "To"),
		CC:      headerText(h, "Cc"),
		Subject: headerText(h, "Subject"),
		Date:    headerText(h, "Date"),
	}
	return rec, rec.Any()
}

func headerText(h mail.Header, key string) string {
	if v, err := h.Text(key); err == nil {
		return strings.TrimSpace(v)
	}
	return strings.TrimSpace(h.Get(key))
}

func regexHeaders(content string) model.HeaderRecord {
	var rec model.HeaderRecord
	for _, name := range model.HeaderNames {
		if m := headerLinePatterns[name].FindStringSubmatch(content); m != nil {
			rec.Set(name, strings.TrimSpace(m[1]))
		}
	}
	return rec
}
