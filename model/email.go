package model

import "time"

// HeaderRecord holds the five headers the organizer cares about. Values are
// empty strings when unknown, never absent.
type HeaderRecord struct {
	From    string
	To      string
	CC      string
	Subject string
	Date    string
}

// HeaderNames lists the record fields in extraction order.
var HeaderNames = []string{"From", "To", "CC", "Subject", "Date"}

// Get returns the value for one of the five header names.
func (h HeaderRecord) Get(name string) string {
	switch name {
	case "From":
		return h.From
	case "To":
		return h.To
	case "CC":
		return h.CC
	case "Subject":
		return h.Subject
	case "Date":
		return h.Date
	}
	return ""
}

// Set stores a value for one of the five header names.
func (h *HeaderRecord) Set(name, value string) {
	switch name {
	case "From":
		h.From = value
	case "To":
		h.To = value
	case "CC":
		h.CC = value
	case "Subject":
		h.Subject = value
	case "Date":
		h.Date = value
	}
}

// Any reports whether at least one header has a value.
func (h HeaderRecord) Any() bool {
	return h.From != "" || h.To != "" || h.CC != "" || h.Subject != "" || h.Date != ""
}

// DomainSet is the classification result for one message.
type DomainSet struct {
	FromDomain string
	ToDomains  []string
	CCDomains  []string
	GovDomains map[string]struct{}
}

// ResolvedDate is the outcome of the date fallback chain. Timestamp is never
// the zero value; the chain bottoms out at the wall clock.
type ResolvedDate struct {
	Timestamp time.Time
	Compact   string // YYYYMMDD, sortable
	Year      string
}

// ExtractionKind tags how an attachment was discovered.
type ExtractionKind string

const (
	KindHTMLLinked           ExtractionKind = "html-linked"
	KindEMLLinked            ExtractionKind = "eml-linked"
	KindEMLEmbedded          ExtractionKind = "eml-embedded"
	KindEMLEmbeddedRecursive ExtractionKind = "eml-embedded-recursive"
)

// AttachmentRecord describes one materialized attachment. Records are
// appended to the run log and never mutated afterwards.
type AttachmentRecord struct {
	SourceFile      string         `json:"source_file"`
	DestinationFile string         `json:"destination_file"`
	Kind            ExtractionKind `json:"extraction_kind"`
}

// Candidate is one file discovered under the scan root.
type Candidate struct {
	Path string
	Name string
	Size int64
}

// Envelope wraps a candidate alongside an optional error encountered while
// scanning.
type Envelope struct {
	Candidate Candidate
	Err       error
}
