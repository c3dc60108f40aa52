package headers

import (
	"os"
	"regexp"
	"strings"

	"golang.org/x/net/html"

	"govsort/model"
	"govsort/sniff"
)

// candidateTags are the element kinds export tools wrap header labels in,
// searched in priority order.
var candidateTags = []string{"span", "div", "td", "th", "p"}

// markupDatePatterns recover a date from raw markup when the tree search
// left the Date header empty. Tried in order, first match wins.
var markupDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`Date:\s*</div>([^<]+)`),
	regexp.MustCompile(`Date:\s*(\d{1,2}/\d{1,2}/\d{4},?\s*\d{1,2}:\d{2})`),
	regexp.MustCompile(`Date:\s*(\d{4}-\d{2}-\d{2}\s*\d{1,2}:\d{2})`),
	regexp.MustCompile(`Sent:\s*(\d{1,2}/\d{1,2}/\d{4})`),
	regexp.MustCompile(`Sent:\s*(\d{4}-\d{2}-\d{2})`),
}

// ExtractHTML reads an HTML export and pulls the header record out of its
// markup. Files that do not look like email renderings yield an all-empty
// record.
func (e *Extractor) ExtractHTML(path string) (model.HeaderRecord, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		e.errorLog("read html export", "path", path, "err", err)
		return model.HeaderRecord{}, err
	}
	return e.extractHTMLContent(decodeText(raw)), nil
}

func (e *Extractor) extractHTMLContent(content string) model.HeaderRecord {
	var rec model.HeaderRecord
	if !sniff.LooksLikeEmail(content) {
		return rec
	}

	doc, err := html.Parse(strings.NewReader(content))
	if err == nil {
		for _, name := range model.HeaderNames {
			if el := findHeaderElement(doc, name); el != nil {
				rec.Set(name, headerValue(el))
			}
		}
	}

	if rec.Date == "" {
		for _, re := range markupDatePatterns {
			if m := re.FindStringSubmatch(content); m != nil {
				rec.Date = strings.TrimSpace(m[1])
				break
			}
		}
	}

	return rec
}

// findHeaderElement locates the first element plausibly labelling the given
// header. For each candidate tag kind it tries, in order: direct text equal
// to "Name:", direct text containing the name, then a class attribute
// containing the name.
func findHeaderElement(doc *html.Node, name string) *html.Node {
	label := name + ":"
	lower := strings.ToLower(name)

	for _, tag := range candidateTags {
		preds := []func(*html.Node) bool{
			func(n *html.Node) bool {
				return strings.TrimSpace(directText(n)) == label
			},
			func(n *html.Node) bool {
				return strings.Contains(strings.ToLower(directText(n)), lower)
			},
			func(n *html.Node) bool {
				return strings.Contains(strings.ToLower(classAttr(n)), lower)
			},
		}
		for _, pred := range preds {
			if el := findFirst(doc, tag, pred); el != nil {
				return el
			}
		}
	}
	return nil
}

// headerValue reads the value belonging to a matched label element: the
// following plain-text sibling, else the parent's following plain-text
// sibling, else whatever follows the first colon in the element's own text.
func headerValue(el *html.Node) string {
	if s := el.NextSibling; s != nil && s.Type == html.TextNode {
		if v := strings.TrimSpace(s.Data); v != "" {
			return v
		}
	}
	if p := el.Parent; p != nil && p.NextSibling != nil && p.NextSibling.Type == html.TextNode {
		if v := strings.TrimSpace(p.NextSibling.Data); v != "" {
			return v
		}
	}
	text := nodeText(el)
	if i := strings.Index(text, ":"); i >= 0 {
		return strings.TrimSpace(text[i+1:])
	}
	return ""
}

func findFirst(n *html.Node, tag string, pred func(*html.Node) bool) *html.Node {
	if n.Type == html.ElementNode && n.Data == tag && pred(n) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findFirst(c, tag, pred); found != nil {
			return found
		}
	}
	return nil
}

// directText concatenates the element's immediate text children only.
func directText(n *html.Node) string {
	var sb strings.Builder
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.TextNode {
			sb.WriteString(c.Data)
		}
	}
	return sb.String()
}

// nodeText concatenates all descendant text.
func nodeText(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func classAttr(n *html.Node) string {
	for _, a := range n.Attr {
		if a.Key == "class" {
			return a.Val
		}
	}
	return ""
}
