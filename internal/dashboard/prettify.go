package dashboard

import (
	"encoding/xml"
	"errors"
	"io"
	"strings"

	"github.com/beevik/etree"
)

const byteOrderMark = "\ufeff"

// PrettifyXML re-indents an XML document with two spaces. Anything that is not
// a single well-formed document comes back unchanged.
func PrettifyXML(text string) string {
	body := strings.TrimPrefix(text, byteOrderMark)
	if !wellFormed(body) {
		return text
	}

	doc := etree.NewDocument()
	doc.ReadSettings.CharsetReader = passthroughCharset
	if err := doc.ReadFromString(body); err != nil {
		return text
	}

	doc.Indent(2)
	out, err := doc.WriteToString()
	if err != nil {
		return text
	}
	return strings.TrimRight(out, "\n")
}

// wellFormed runs the strict decoder over text; etree alone accepts
// mismatched end tags, several roots and repeated attributes.
func wellFormed(text string) bool {
	if strings.TrimSpace(text) == "" {
		return false
	}

	dec := xml.NewDecoder(strings.NewReader(text))
	dec.CharsetReader = passthroughCharset

	depth, roots := 0, 0
	for {
		tok, err := dec.Token()
		if errors.Is(err, io.EOF) {
			return roots == 1 && depth == 0
		}
		if err != nil {
			return false
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if depth == 0 {
				roots++
			}
			depth++

			// etree keeps only the last of repeated attributes
			seen := make(map[xml.Name]bool, len(t.Attr))
			for _, attr := range t.Attr {
				if seen[attr.Name] {
					return false
				}
				seen[attr.Name] = true
			}
		case xml.EndElement:
			depth--
		case xml.CharData:
			if depth == 0 && strings.TrimSpace(string(t)) != "" {
				return false
			}
		}
	}
}

// The payload was already decoded to text by the database, so any declared
// encoding is ignored.
func passthroughCharset(_ string, r io.Reader) (io.Reader, error) {
	return r, nil
}
