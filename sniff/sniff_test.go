package sniff

import "testing"

func TestLooksLikeEmail(t *testing.T) {
	tests := []struct {
		name string
		text string
		want bool
	}{
		{
			name: "full header block",
			text: "From: a@example.com\nTo: b@example.com\nSubject: hi\nDate: today",
			want: true,
		},
		{
			name: "html rendering",
			text: `<div>From:</div> <a href="mailto:x@y.gov.uk">x@y.gov.uk</a> <div>Sent:</div>`,
			want: true,
		},
		{
			name: "exactly three indicators",
			text: "From: someone Subject: thing Cc: other",
			want: true,
		},
		{
			name: "two indicators is not enough",
			text: "From: someone, Subject: thing",
			// "From:", "Subject:" plus no "@" or others
			want: false,
		},
		{
			name: "case insensitive",
			text: "FROM: a SUBJECT: b DATE: c",
			want: true,
		},
		{
			name: "arbitrary html page",
			text: "<html><body><h1>Quarterly report</h1><p>Numbers went up.</p></body></html>",
			want: false,
		},
		{
			name: "empty",
			text: "",
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := LooksLikeEmail(tt.text); got != tt.want {
				t.Errorf("LooksLikeEmail() = %v, want %v", got, tt.want)
			}
		})
	}
}
