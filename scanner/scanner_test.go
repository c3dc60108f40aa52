package scanner

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"govsort/model"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func collect(t *testing.T, root string) []model.Envelope {
	t.Helper()
	s, err := New(Options{Root: root}, nil)
	if err != nil {
		t.Fatal(err)
	}
	out := make(chan model.Envelope, 64)
	if err := s.Stream(context.Background(), out); err != nil {
		t.Fatalf("Stream: %v", err)
	}
	close(out)
	var got []model.Envelope
	for env := range out {
		got = append(got, env)
	}
	return got
}

func TestIsCandidate(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{"message.html", true},
		{"Message.HTML", true},
		{"index.html", false},
		{"INDEX.HTML", false},
		{"forwarded.eml", true},
		{".eml", true},
		{"attachment.pdf", false},
		{"notes.txt", false},
	}
	for _, tt := range tests {
		if got := IsCandidate(tt.name); got != tt.want {
			t.Errorf("IsCandidate(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestStreamFindsCandidates(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "inbox", "message.html"), "<html></html>")
	writeFile(t, filepath.Join(root, "inbox", "index.html"), "<html></html>")
	writeFile(t, filepath.Join(root, "inbox", "Attachments-1", ".eml"), "placeholder")
	writeFile(t, filepath.Join(root, "sent", "reply.eml"), "From: a@b.gov.uk\r\n\r\nhi")
	writeFile(t, filepath.Join(root, "sent", "picture.png"), "not an email")

	got := collect(t, root)
	var names []string
	for _, env := range got {
		if env.Err != nil {
			t.Fatalf("unexpected error envelope: %v", env.Err)
		}
		names = append(names, env.Candidate.Name)
	}
	sort.Strings(names)
	want := []string{".eml", "message.html", "reply.eml"}
	if len(names) != len(want) {
		t.Fatalf("got %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("candidate %d = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestStreamReportsSize(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "empty.eml"), "")
	writeFile(t, filepath.Join(root, "full.eml"), "From: x\r\n\r\nbody")

	for _, env := range collect(t, root) {
		switch env.Candidate.Name {
		case "empty.eml":
			if env.Candidate.Size != 0 {
				t.Errorf("empty.eml size = %d, want 0", env.Candidate.Size)
			}
		case "full.eml":
			if env.Candidate.Size == 0 {
				t.Error("full.eml size = 0, want > 0")
			}
		}
	}
}

func TestStreamMissingRoot(t *testing.T) {
	s, err := New(Options{Root: filepath.Join(t.TempDir(), "nope")}, nil)
	if err != nil {
		t.Fatal(err)
	}
	out := make(chan model.Envelope, 1)
	if err := s.Stream(context.Background(), out); err == nil {
		t.Fatal("expected error for missing root")
	}
}

func TestStreamCancelled(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.eml"), "x")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, err := New(Options{Root: root}, nil)
	if err != nil {
		t.Fatal(err)
	}
	out := make(chan model.Envelope)
	if err := s.Stream(ctx, out); err != context.Canceled {
		t.Fatalf("Stream = %v, want context.Canceled", err)
	}
}

func TestNewRejectsEmptyRoot(t *testing.T) {
	if _, err := New(Options{Root: "  "}, nil); err == nil {
		t.Fatal("expected error for empty root")
	}
}

func TestCount(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.html"), "x")
	writeFile(t, filepath.Join(root, "index.html"), "x")
	writeFile(t, filepath.Join(root, "sub", "b.eml"), "x")

	n, err := Count(root)
	if err != nil {
		t.Fatal(err)
	}
	if n != 2 {
		t.Errorf("Count = %d, want 2", n)
	}
}
