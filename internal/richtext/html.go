package richtext

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

var htmlTagPattern = regexp.MustCompile(`</?[a-zA-Z][a-zA-Z0-9]*(\s[^>]*)?/?>`)

var htmlBlockTags = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "ul": true, "ol": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"table": true, "tr": true, "td": true, "th": true,
	"pre": true, "blockquote": true, "hr": true,
}

// LooksLikeHTML reports whether s contains at least one markup tag
func LooksLikeHTML(s string) bool {
	return strings.Contains(s, "<") && htmlTagPattern.MatchString(s)
}

// HTMLText flattens an HTML fragment the same way ADF is flattened: text
// nodes in document order, one newline between block elements, runs of
// whitespace collapsed. Unparseable input is returned unchanged.
func HTMLText(fragment string) string {
	doc, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}

	f := &flattener{}

	var traverse func(*html.Node)
	traverse = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.Data == "script" || n.Data == "style") {
			return
		}

		block := n.Type == html.ElementNode && htmlBlockTags[n.Data]
		if block {
			f.newline()
		}

		if n.Type == html.TextNode {
			if text := collapseSpace(n.Data); text != "" {
				if f.b.Len() > 0 && f.last != '\n' && f.last != ' ' && startsWithSpace(n.Data) {
					f.write(" ")
				}
				f.write(text)
				if endsWithSpace(n.Data) {
					f.write(" ")
				}
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			traverse(c)
		}

		if block {
			f.trimTrailingSpace()
			f.newline()
		}
	}

	traverse(doc)
	f.trimTrailingSpace()
	return f.String()
}

func (f *flattener) trimTrailingSpace() {
	if f.last != ' ' {
		return
	}
	s := strings.TrimRight(f.b.String(), " ")
	f.b.Reset()
	f.b.WriteString(s)
	f.last = 0
	if len(s) > 0 {
		f.last = s[len(s)-1]
	}
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func startsWithSpace(s string) bool {
	return s != "" && strings.TrimLeft(s, " \t\r\n") != s
}

func endsWithSpace(s string) bool {
	return s != "" && strings.TrimRight(s, " \t\r\n") != s
}
