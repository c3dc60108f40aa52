package domain

import (
	"net/mail"
	"strings"

	"govsort/model"
)

// DefaultGovSuffix is the public-sector domain suffix a message must touch
// to qualify for reorganization.
const DefaultGovSuffix = ".gov.uk"

// Unknown is reported when an address has no parseable domain.
const Unknown = "unknown"

// Classifier derives domains from header values and flags the ones ending
// in the configured government suffix.
type Classifier struct {
	suffix string
}

// NewClassifier returns a classifier for the given suffix. An empty suffix
// selects DefaultGovSuffix.
func NewClassifier(suffix string) *Classifier {
	if suffix == "" {
		suffix = DefaultGovSuffix
	}
	return &Classifier{suffix: strings.ToLower(suffix)}
}

// Classify extracts the sender and recipient domains from a header record.
// A message whose GovDomains set is empty is not eligible for
// reorganization.
func (c *Classifier) Classify(headers model.HeaderRecord) model.DomainSet {
	fromDomain := AddressDomain(headers.From)
	toDomains := splitDomains(headers.To)
	ccDomains := splitDomains(headers.CC)

	gov := make(map[string]struct{})
	all := append([]string{fromDomain}, append(toDomains, ccDomains...)...)
	for _, d := range all {
		if d != "" && strings.HasSuffix(d, c.suffix) {
			gov[d] = struct{}{}
		}
	}

	return model.DomainSet{
		FromDomain: fromDomain,
		ToDomains:  toDomains,
		CCDomains:  ccDomains,
		GovDomains: gov,
	}
}

// AddressDomain extracts the lower-cased domain from a possibly
// display-name-qualified address string, or Unknown when there is none.
func AddressDomain(addr string) string {
	addr = strings.TrimSpace(addr)
	bare := addr
	if parsed, err := mail.ParseAddress(addr); err == nil {
		bare = parsed.Address
	}
	if at := strings.LastIndex(bare, "@"); at >= 0 {
		// A trailing ">" survives when the display-name form did not parse.
		d := strings.Trim(bare[at+1:], " \t>\"")
		if d != "" {
			return strings.ToLower(d)
		}
	}
	return Unknown
}

func splitDomains(list string) []string {
	var domains []string
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		domains = append(domains, AddressDomain(part))
	}
	return domains
}
