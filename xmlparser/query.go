package xmlparser

import (
	"fmt"
	"strings"

	"github.com/antchfx/xmlquery"
)

// Parse reads doc into a document node whose single element child is the
// root element.
func Parse(doc string) (*xmlquery.Node, error) {
	top, err := xmlquery.Parse(strings.NewReader(doc))
	if err != nil {
		return nil, err
	}
	roots := 0
	for c := top.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == xmlquery.ElementNode {
			roots++
		}
	}
	if roots != 1 {
		return nil, fmt.Errorf("document has %d root elements", roots)
	}
	return top, nil
}

// value returns the trimmed text of the first node matching expr, or "".
func value(n *xmlquery.Node, expr string) string {
	if n == nil {
		return ""
	}
	if found := xmlquery.FindOne(n, expr); found != nil {
		return strings.TrimSpace(found.InnerText())
	}
	return ""
}

// cleanValue returns the text of the first descendant named name that has
// no fox-error child. Legacy forms mark rejected input with such a child.
func cleanValue(n *xmlquery.Node, name string) string {
	return value(n, ".//"+name+"[not(fox-error)]")
}
