package organize

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"govsort/config"
	"govsort/model"
	"govsort/runlog"
	"govsort/runner"
	"govsort/stats"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func crlf(s string) string {
	return strings.ReplaceAll(s, "\n", "\r\n")
}

const fanOutEML = `From: Alice Smith <alice@agency.gov.uk>
To: bob@other.gov.uk
Subject: Budget Review
Date: Mon, 10 Feb 2024 15:30:00 +0000
Content-Type: text/plain

Please find the figures attached.
`

func writeEmail(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(crlf(content)), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

// runWorker pushes the given files through a worker and returns the run
// summary and the attachment log.
func runWorker(t *testing.T, cfg config.Config, paths ...string) (stats.Summary, runlog.Log) {
	t.Helper()
	log := runlog.NewMemoryLog()
	r := runner.New(cfg, log, discardLogger())
	reporter := stats.NewReporter(r, discardLogger())
	if _, err := NewWorker(r, discardLogger()); err != nil {
		t.Fatal(err)
	}
	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			t.Fatal(err)
		}
		r.CandidateWriter() <- model.Envelope{Candidate: model.Candidate{
			Path: path,
			Name: filepath.Base(path),
			Size: info.Size(),
		}}
	}
	r.CloseCandidates()
	if err := r.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return reporter.Summary(), log
}

func listCopies(t *testing.T, root string) []string {
	t.Helper()
	var found []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			rel, _ := filepath.Rel(root, path)
			found = append(found, filepath.ToSlash(rel))
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return found
}

func TestFanOutCopies(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeEmail(t, in, "budget.eml", fanOutEML)

	summary, _ := runWorker(t, config.Config{InputDir: in, OutputDir: out}, filepath.Join(in, "budget.eml"))

	if summary.Copies != 2 {
		t.Errorf("copies = %d, want 2", summary.Copies)
	}
	copies := listCopies(t, out)
	want := map[string]bool{
		"agency.gov.uk/2024/Budget Review/20240210_budget.eml": false,
		"other.gov.uk/2024/Budget Review/20240210_budget.eml":  false,
	}
	for _, c := range copies {
		if _, ok := want[c]; !ok {
			t.Errorf("unexpected copy %s", c)
			continue
		}
		want[c] = true
	}
	for path, seen := range want {
		if !seen {
			t.Errorf("missing copy %s", path)
		}
	}
}

func TestFanOutDedup(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeEmail(t, in, "self.eml", `From: alice@agency.gov.uk
CC: bob@agency.gov.uk
Subject: Internal Note
Date: Mon, 10 Feb 2024 15:30:00 +0000

Same domain both ways.
`)

	summary, _ := runWorker(t, config.Config{InputDir: in, OutputDir: out}, filepath.Join(in, "self.eml"))

	if summary.Copies != 1 {
		t.Fatalf("copies = %d, want 1 (sender and CC share a domain)", summary.Copies)
	}
}

func TestSkipsWithoutGovDomains(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	writeEmail(t, in, "private.eml", `From: a@example.com
To: b@example.org
Subject: Lunch
Date: Mon, 10 Feb 2024 15:30:00 +0000

No public bodies involved.
`)

	summary, _ := runWorker(t, config.Config{InputDir: in, OutputDir: out}, filepath.Join(in, "private.eml"))

	if summary.Copies != 0 {
		t.Errorf("copies = %d, want 0", summary.Copies)
	}
	if summary.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", summary.Skipped)
	}
	if got := listCopies(t, out); len(got) != 0 {
		t.Errorf("output not empty: %v", got)
	}
}

func TestCopyPreservesContentAndDate(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	src := writeEmail(t, in, "budget.eml", fanOutEML)

	runWorker(t, config.Config{InputDir: in, OutputDir: out}, src)

	dst := filepath.Join(out, "agency.gov.uk", "2024", "Budget Review", "20240210_budget.eml")
	got, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	want, _ := os.ReadFile(src)
	if string(got) != string(want) {
		t.Error("copy content differs from source")
	}

	info, err := os.Stat(dst)
	if err != nil {
		t.Fatal(err)
	}
	wantTime := time.Date(2024, 2, 10, 15, 30, 0, 0, time.UTC)
	if !info.ModTime().Equal(wantTime) {
		t.Errorf("mod time = %v, want %v", info.ModTime().UTC(), wantTime)
	}
}

func TestDryRunWritesNothing(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	src := writeEmail(t, in, "budget.eml", fanOutEML)

	summary, _ := runWorker(t, config.Config{InputDir: in, OutputDir: out, DryRun: true}, src)

	if summary.DryRunCopies != 2 {
		t.Errorf("dry run copies = %d, want 2", summary.DryRunCopies)
	}
	if summary.Copies != 0 {
		t.Errorf("copies = %d, want 0", summary.Copies)
	}
	if got := listCopies(t, out); len(got) != 0 {
		t.Errorf("output not empty: %v", got)
	}
}

func TestSkipsEmptyPlaceholder(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	dir := filepath.Join(in, "Attachments-1")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, ".eml")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	summary, _ := runWorker(t, config.Config{InputDir: in, OutputDir: out}, path)

	if summary.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", summary.Skipped)
	}
	if summary.Errors != 0 {
		t.Errorf("errors = %d, want %d", summary.Errors, 0)
	}
}

func TestEmbeddedAttachmentsLogged(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	src := writeEmail(t, in, "report.eml", `From: alice@agency.gov.uk
To: bob@other.gov.uk
Subject: Evidence
Date: Mon, 10 Feb 2024 15:30:00 +0000
MIME-Version: 1.0
Content-Type: multipart/mixed; boundary="b1"

--b1
Content-Type: text/plain

See attached.
--b1
Content-Type: application/pdf
Content-Disposition: attachment; filename="evidence.pdf"
Content-Transfer-Encoding: base64

JVBERi0xLjQ=
--b1--
`)

	summary, log := runWorker(t, config.Config{InputDir: in, OutputDir: out}, src)

	// Two copies, each with its own extraction pass.
	if summary.Attachments != 2 {
		t.Errorf("attachments = %d, want 2", summary.Attachments)
	}
	records := log.Records()
	if len(records) != 2 {
		t.Fatalf("logged records = %d, want 2", len(records))
	}
	for _, rec := range records {
		if rec.Kind != model.KindEMLEmbedded {
			t.Errorf("kind = %q, want %q", rec.Kind, model.KindEMLEmbedded)
		}
		if filepath.Base(rec.DestinationFile) != "evidence.pdf" {
			t.Errorf("destination = %q, want evidence.pdf", rec.DestinationFile)
		}
	}
}

func TestFilteredOut(t *testing.T) {
	in := t.TempDir()
	out := t.TempDir()
	src := writeEmail(t, in, "budget.eml", fanOutEML)

	cfg := config.Config{InputDir: in, OutputDir: out, ExcludeHeader: []string{"Budget"}}
	summary, _ := runWorker(t, cfg, src)

	if summary.Copies != 0 {
		t.Errorf("copies = %d, want 0", summary.Copies)
	}
	if summary.Skipped != 1 {
		t.Errorf("skipped = %d, want 1", summary.Skipped)
	}
}

func TestSubjectDir(t *testing.T) {
	long := strings.Repeat("a", 150)
	tests := []struct {
		in   string
		want string
	}{
		{"Budget Review", "Budget Review"},
		{"", "No Subject"},
		{"   ", "No Subject"},
		{`Re: costs / "final"?`, "Re_ costs _ _final__"},
		{long, long[:100]},
	}
	for _, tt := range tests {
		if got := SubjectDir(tt.in); got != tt.want {
			t.Errorf("SubjectDir(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestDestinationDomains(t *testing.T) {
	ds := model.DomainSet{
		FromDomain: "agency.gov.uk",
		GovDomains: map[string]struct{}{
			"agency.gov.uk": {},
			"zebra.gov.uk":  {},
			"alpha.gov.uk":  {},
		},
	}
	got := destinationDomains(ds)
	want := []string{"agency.gov.uk", "alpha.gov.uk", "zebra.gov.uk"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("domain %d = %q, want %q", i, got[i], want[i])
		}
	}
}
