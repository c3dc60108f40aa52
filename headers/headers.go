// Package headers turns inconsistently formatted email exports into
// normalized header records. Two entry points exist, one per source format,
// each backed by an ordered list of strategies; the first strategy yielding
// a usable record wins and later ones are not consulted.
package headers

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"govsort/model"
)

// Extractor produces header records from candidate files.
type Extractor struct {
	logger *slog.Logger
}

func NewExtractor(logger *slog.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract dispatches on the file format. Unknown formats yield an empty
// record; the caller's classification step then skips the file.
func (e *Extractor) Extract(path string) (model.HeaderRecord, error) {
	name := filepath.Base(path)
	switch {
	case strings.EqualFold(filepath.Ext(name), ".html"):
		return e.ExtractHTML(path)
	case strings.EqualFold(filepath.Ext(name), ".eml"), name == ".eml":
		return e.ExtractEML(path)
	}
	return model.HeaderRecord{}, nil
}

// IsPlaceholder reports whether path names a link file: a file literally
// called ".eml" inside an Attachments-* directory.
func IsPlaceholder(path string) bool {
	return filepath.Base(path) == ".eml" && strings.Contains(path, "Attachments-")
}

// ResolvePlaceholder reads the link target out of a placeholder file. It
// returns the target only when the placeholder has content and the target
// exists on disk.
func ResolvePlaceholder(path string) (string, bool) {
	if !IsPlaceholder(path) {
		return "", false
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", false
	}
	target := strings.TrimSpace(decodeText(raw))
	if target == "" {
		return "", false
	}
	if _, err := os.Stat(target); err != nil {
		return "", false
	}
	return target, true
}

// legacyEncodings is the fallback list tried when a file is not valid
// UTF-8, in order.
var legacyEncodings = []encoding.Encoding{
	charmap.Windows1252,
	charmap.ISO8859_1,
	charmap.Windows1254,
}

// decodeText decodes file bytes as UTF-8 first, then through the legacy
// encoding list, finally leniently with invalid bytes dropped. It never
// fails.
func decodeText(raw []byte) string {
	if utf8.Valid(raw) {
		return string(raw)
	}
	for _, enc := range legacyEncodings {
		out, err := enc.NewDecoder().Bytes(raw)
		if err != nil || !utf8.Valid(out) {
			continue
		}
		if bytes.ContainsRune(out, utf8.RuneError) {
			// The decoder substituted for an unmapped byte; try the next
			// encoding instead of keeping mangled text.
			continue
		}
		return string(out)
	}
	return strings.ToValidUTF8(string(raw), "")
}

func (e *Extractor) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Extractor) errorLog(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Error(msg, args...)
	}
}
