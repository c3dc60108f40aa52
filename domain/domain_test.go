package domain

import (
	"testing"

	"govsort/model"
)

func TestAddressDomain(t *testing.T) {
	tests := []struct {
		name string
		addr string
		want string
	}{
		{"bare address", "alice@example.com", "example.com"},
		{"display name", `"Alice Smith" <alice@Example.COM>`, "example.com"},
		{"upper case domain", "bob@AGENCY.GOV.UK", "agency.gov.uk"},
		{"no at sign", "not an address", "unknown"},
		{"empty", "", "unknown"},
		{"angle brackets without display name", "<carol@dept.gov.uk>", "dept.gov.uk"},
		{"surrounding whitespace", "  dan@other.gov.uk  ", "other.gov.uk"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := AddressDomain(tt.addr); got != tt.want {
				t.Errorf("AddressDomain(%q) = %q, want %q", tt.addr, got, tt.want)
			}
		})
	}
}

func TestClassify(t *testing.T) {
	c := NewClassifier("")

	headers := model.HeaderRecord{
		From: "Officer <officer@agency.gov.uk>",
		To:   "citizen@example.com, clerk@other.gov.uk",
		CC:   "officer@agency.gov.uk, , press@media.co.uk",
	}

	got := c.Classify(headers)

	if got.FromDomain != "agency.gov.uk" {
		t.Errorf("FromDomain = %q", got.FromDomain)
	}
	if len(got.ToDomains) != 2 || got.ToDomains[0] != "example.com" || got.ToDomains[1] != "other.gov.uk" {
		t.Errorf("ToDomains = %v", got.ToDomains)
	}
	if len(got.CCDomains) != 2 {
		t.Errorf("CCDomains = %v, blanks must be discarded", got.CCDomains)
	}

	wantGov := []string{"agency.gov.uk", "other.gov.uk"}
	if len(got.GovDomains) != len(wantGov) {
		t.Fatalf("GovDomains = %v, want %v", got.GovDomains, wantGov)
	}
	for _, d := range wantGov {
		if _, ok := got.GovDomains[d]; !ok {
			t.Errorf("GovDomains missing %q", d)
		}
	}
}

func TestClassifyNoGovDomains(t *testing.T) {
	c := NewClassifier("")

	got := c.Classify(model.HeaderRecord{
		From: "a@example.com",
		To:   "b@example.org",
	})

	if len(got.GovDomains) != 0 {
		t.Errorf("GovDomains = %v, want empty", got.GovDomains)
	}
}

func TestClassifyUnparseableFrom(t *testing.T) {
	c := NewClassifier("")

	got := c.Classify(model.HeaderRecord{From: "System Administrator"})
	if got.FromDomain != Unknown {
		t.Errorf("FromDomain = %q, want %q", got.FromDomain, Unknown)
	}
}

func TestClassifyCustomSuffix(t *testing.T) {
	c := NewClassifier(".gov")

	got := c.Classify(model.HeaderRecord{From: "a@agency.gov", To: "b@dept.gov.uk"})
	if _, ok := got.GovDomains["agency.gov"]; !ok {
		t.Errorf("expected agency.gov in %v", got.GovDomains)
	}
	// Literal suffix match, not a public-suffix rule.
	if _, ok := got.GovDomains["dept.gov.uk"]; ok {
		t.Errorf("dept.gov.uk should not match suffix .gov")
	}
}
