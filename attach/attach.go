// Package attach discovers and materializes the attachments belonging to a
// message copy: files linked from HTML exports, files linked through .eml
// placeholders, and parts embedded in MIME messages, recursing into nested
// email containers.
package attach

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/emersion/go-message/charset"
	"github.com/emersion/go-message/mail"
	"golang.org/x/net/html"

	"govsort/headers"
	"govsort/model"
)

// DefaultMaxDepth bounds nested-EML recursion. A self-referential
// attachment chain would otherwise recurse without limit.
const DefaultMaxDepth = 8

var skippedSchemes = []string{"mailto:", "http:", "https:", "tel:", "#", "data:"}

// inlineImageExts are treated as decorative page content rather than
// attachments when linked from HTML or carried inline in MIME.
var inlineImageExts = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true,
	".bmp": true, ".svg": true, ".webp": true,
}

var unsafeFilenameChars = regexp.MustCompile(`[<>:"/\\|?*\x00-\x1f]`)

type Options struct {
	MaxDepth int
}

type Extractor struct {
	maxDepth int
	logger   *slog.Logger
}

func NewExtractor(opts Options, logger *slog.Logger) *Extractor {
	depth := opts.MaxDepth
	if depth <= 0 {
		depth = DefaultMaxDepth
	}
	return &Extractor{maxDepth: depth, logger: logger}
}

// Extract runs every sub-path that applies to the source file and returns
// the records for all attachments it materialized under destDir. Failures
// on individual links or parts are logged and skipped; they never abort the
// extraction of siblings.
func (e *Extractor) Extract(emailFile, destDir string) []model.AttachmentRecord {
	var records []model.AttachmentRecord

	name := filepath.Base(emailFile)
	if strings.EqualFold(filepath.Ext(name), ".html") {
		records = append(records, e.htmlLinked(emailFile, destDir)...)
	}
	if strings.EqualFold(filepath.Ext(name), ".eml") || name == ".eml" {
		records = append(records, e.placeholderLinked(emailFile, destDir)...)
		records = append(records, e.embedded(emailFile, destDir, 0)...)
	}

	return records
}

// htmlLinked copies files referenced by anchor elements in an HTML export.
func (e *Extractor) htmlLinked(emailFile, destDir string) []model.AttachmentRecord {
	raw, err := os.ReadFile(emailFile)
	if err != nil {
		e.errorLog("read html export for attachments", "path", emailFile, "err", err)
		return nil
	}

	doc, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		e.errorLog("parse html export", "path", emailFile, "err", err)
		return nil
	}

	srcDir := filepath.Dir(emailFile)
	var records []model.AttachmentRecord

	for _, href := range anchorHrefs(doc) {
		if skipHref(href) {
			continue
		}

		srcFile := resolveHref(srcDir, href)
		if !within(srcDir, srcFile) {
			e.warn("skipping unsafe attachment path", "href", href, "resolved", srcFile)
			continue
		}

		info, err := os.Stat(srcFile)
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		dstFile := filepath.Join(destDir, filepath.Base(srcFile))
		if err := CopyWithModTime(srcFile, dstFile, info.ModTime()); err != nil {
			e.errorLog("copy linked attachment", "src", srcFile, "dst", dstFile, "err", err)
			continue
		}

		records = append(records, model.AttachmentRecord{
			SourceFile:      emailFile,
			DestinationFile: dstFile,
			Kind:            model.KindHTMLLinked,
		})
		e.debug("copied linked attachment", "src", srcFile, "dst", dstFile)
	}

	return records
}

// placeholderLinked bulk-copies every regular file from the directory a
// placeholder link points into.
func (e *Extractor) placeholderLinked(emailFile, destDir string) []model.AttachmentRecord {
	target, ok := headers.ResolvePlaceholder(emailFile)
	if !ok {
		return nil
	}

	srcDir := filepath.Dir(target)
	entries, err := os.ReadDir(srcDir)
	if err != nil {
		e.errorLog("read linked attachment directory", "dir", srcDir, "err", err)
		return nil
	}

	var records []model.AttachmentRecord
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}

		src := filepath.Join(srcDir, entry.Name())
		dst := filepath.Join(destDir, entry.Name())
		if err := CopyWithModTime(src, dst, info.ModTime()); err != nil {
			e.errorLog("copy linked attachment", "src", src, "dst", dst, "err", err)
			continue
		}

		records = append(records, model.AttachmentRecord{
			SourceFile:      emailFile,
			DestinationFile: dst,
			Kind:            model.KindEMLLinked,
		})
	}

	return records
}

// embedded walks a MIME message and writes out every attachment part,
// recursing into parts that are themselves email files.
func (e *Extractor) embedded(emailFile, destDir string, depth int) []model.AttachmentRecord {
	if depth >= e.maxDepth {
		e.warn("nested eml recursion limit reached", "path", emailFile, "depth", depth)
		return nil
	}

	f, err := os.Open(emailFile)
	if err != nil {
		e.errorLog("open eml for attachments", "path", emailFile, "err", err)
		return nil
	}
	defer f.Close()

	mr, err := mail.CreateReader(f)
	if err != nil && mr == nil {
		e.debug("not a parseable mime message", "path", emailFile, "err", err)
		return nil
	}

	kind := model.KindEMLEmbedded
	if depth > 0 {
		kind = model.KindEMLEmbeddedRecursive
	}

	var records []model.AttachmentRecord
	for {
		part, err := mr.NextPart()
		if err != nil {
			if !errors.Is(err, io.EOF) {
				e.errorLog("read mime part", "path", emailFile, "err", err)
			}
			break
		}

		filename, inline := partFilename(part)
		if filename == "" {
			continue
		}
		if inline && inlineImageExts[strings.ToLower(filepath.Ext(filename))] {
			continue
		}

		dstFile, err := e.writePart(destDir, filename, part.Body)
		if err != nil {
			e.errorLog("save embedded attachment", "path", emailFile, "name", filename, "err", err)
			continue
		}

		records = append(records, model.AttachmentRecord{
			SourceFile:      emailFile,
			DestinationFile: dstFile,
			Kind:            kind,
		})

		if strings.EqualFold(filepath.Ext(dstFile), ".eml") {
			records = append(records, e.embedded(dstFile, destDir, depth+1)...)
		}
	}

	return records
}

// writePart stores one decoded part under destDir, resolving filename
// collisions with a numeric suffix. The create is exclusive, so numbering
// stays correct even with concurrent writers in the same directory.
func (e *Extractor) writePart(destDir, filename string, body io.Reader) (string, error) {
	safe := SanitizeFilename(filename)
	ext := filepath.Ext(safe)
	base := strings.TrimSuffix(safe, ext)

	for i := 0; ; i++ {
		name := safe
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		dst := filepath.Join(destDir, name)

		f, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, os.ErrExist) {
			continue
		}
		if err != nil {
			return "", err
		}

		if _, err := io.Copy(f, body); err != nil {
			f.Close()
			os.Remove(dst)
			return "", err
		}
		if err := f.Close(); err != nil {
			return "", err
		}
		return dst, nil
	}
}

func partFilename(p *mail.Part) (name string, inline bool) {
	switch h := p.Header.(type) {
	case *mail.AttachmentHeader:
		name, _ := h.Filename()
		return name, false
	case *mail.InlineHeader:
		name, _ := (&mail.AttachmentHeader{Header: h.Header}).Filename()
		return name, true
	}
	return "", false
}

func anchorHrefs(doc *html.Node) []string {
	var hrefs []string
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode && n.Data == "a" {
			for _, a := range n.Attr {
				if a.Key == "href" && a.Val != "" {
					hrefs = append(hrefs, a.Val)
				}
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return hrefs
}

func skipHref(href string) bool {
	lower := strings.ToLower(href)
	for _, scheme := range skippedSchemes {
		if strings.HasPrefix(lower, scheme) {
			return true
		}
	}
	return inlineImageExts[filepath.Ext(lower)]
}

// resolveHref maps an anchor target to a path under the export's own
// directory. Absolute targets keep only their base name.
func resolveHref(srcDir, href string) string {
	if filepath.IsAbs(href) {
		return filepath.Join(srcDir, filepath.Base(href))
	}
	return filepath.Clean(filepath.Join(srcDir, href))
}

// within reports whether path stays inside dir; links that escape the
// export directory are rejected.
func within(dir, path string) bool {
	rel, err := filepath.Rel(dir, path)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// SanitizeFilename replaces characters that are illegal in a path segment.
func SanitizeFilename(name string) string {
	return unsafeFilenameChars.ReplaceAllString(name, "_")
}

// CopyWithModTime copies src to dst byte-for-byte and stamps dst with the
// given modification time.
func CopyWithModTime(src, dst string, modTime time.Time) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("copy %s: %w", dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", dst, err)
	}

	if err := os.Chtimes(dst, modTime, modTime); err != nil {
		return fmt.Errorf("set times %s: %w", dst, err)
	}
	return nil
}

func (e *Extractor) debug(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Debug(msg, args...)
	}
}

func (e *Extractor) warn(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Warn(msg, args...)
	}
}

func (e *Extractor) errorLog(msg string, args ...any) {
	if e.logger != nil {
		e.logger.Error(msg, args...)
	}
}
