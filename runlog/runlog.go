// Package runlog keeps the run-scoped attachment log: an append-only record
// of every attachment materialized during a run, persisted as JSONL and
// renderable as a browsable HTML table.
package runlog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"html/template"
	"os"
	"path/filepath"
	"sync"

	"govsort/model"
)

// Log receives attachment records as they are created. Records are never
// mutated after being appended.
type Log interface {
	Append(rec model.AttachmentRecord) error
	Records() []model.AttachmentRecord
}

// MemoryLog keeps records in memory only. Used by dry runs and tests.
type MemoryLog struct {
	mu      sync.Mutex
	records []model.AttachmentRecord
}

func NewMemoryLog() *MemoryLog {
	return &MemoryLog{}
}

func (m *MemoryLog) Append(rec model.AttachmentRecord) error {
	m.mu.Lock()
	m.records = append(m.records, rec)
	m.mu.Unlock()
	return nil
}

func (m *MemoryLog) Records() []model.AttachmentRecord {
	m.mu.Lock()
	out := make([]model.AttachmentRecord, len(m.records))
	copy(out, m.records)
	m.mu.Unlock()
	return out
}

// FileLog appends records to a JSONL file as they arrive and can render the
// run's records as an HTML table.
type FileLog struct {
	*MemoryLog
	jsonlPath string
	htmlPath  string
	file      *os.File
	writer    *bufio.Writer
	writeMu   sync.Mutex
}

// NewFileLog opens (or creates) the attachment log files inside dir.
func NewFileLog(dir string) (*FileLog, error) {
	file, err := os.OpenFile(filepath.Join(dir, "attachments.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open attachment log: %w", err)
	}

	return &FileLog{
		MemoryLog: NewMemoryLog(),
		jsonlPath: filepath.Join(dir, "attachments.jsonl"),
		htmlPath:  filepath.Join(dir, "attachments.html"),
		file:      file,
		writer:    bufio.NewWriterSize(file, 64*1024),
	}, nil
}

func (f *FileLog) Append(rec model.AttachmentRecord) error {
	if err := f.MemoryLog.Append(rec); err != nil {
		return err
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode attachment record: %w", err)
	}

	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	if _, err := f.writer.Write(data); err != nil {
		return fmt.Errorf("write attachment record: %w", err)
	}
	if err := f.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

// Close flushes the JSONL stream, writes the HTML rendering and closes the
// underlying file.
func (f *FileLog) Close() error {
	f.writeMu.Lock()
	defer f.writeMu.Unlock()

	var firstErr error
	if err := f.writer.Flush(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("flush attachment log: %w", err)
	}
	if err := f.file.Sync(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("sync attachment log: %w", err)
	}
	if err := f.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("close attachment log: %w", err)
	}

	if err := f.writeHTML(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

var indexTemplate = template.Must(template.New("attachments").Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>Attachment log</title>
<style>
body { font-family: sans-serif; margin: 2em; }
table { border-collapse: collapse; }
td, th { border: 1px solid #999; padding: 4px 8px; text-align: left; }
th { background: #eee; }
</style>
</head>
<body>
<h1>Attachments ({{len .}})</h1>
<table>
<tr><th>Source email</th><th>Attachment</th><th>Kind</th></tr>
{{range .}}<tr>
<td><a href="file://{{.SourceFile}}">{{.SourceFile}}</a></td>
<td><a href="file://{{.DestinationFile}}">{{.DestinationFile}}</a></td>
<td>{{.Kind}}</td>
</tr>
{{end}}</table>
</body>
</html>
`))

func (f *FileLog) writeHTML() error {
	out, err := os.Create(f.htmlPath)
	if err != nil {
		return fmt.Errorf("create attachment index: %w", err)
	}
	if err := indexTemplate.Execute(out, f.Records()); err != nil {
		out.Close()
		return fmt.Errorf("render attachment index: %w", err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close attachment index: %w", err)
	}
	return nil
}
