package mime

import (
	"log"
	"strings"

	"github.com/jaytaylor/html2text"
	"github.com/microcosm-cc/bluemonday"
)

// policy is the allow-list applied to every HTML body, inbound and outbound.
// Message HTML is rendered to end users, so sanitization is a hard
// requirement: basic text, structure, link, and image elements only.
var policy = buildPolicy()

func buildPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements(
		"p", "br", "strong", "em", "u", "b", "i",
		"h1", "h2", "h3",
		"ul", "ol", "li",
		"a", "img", "div", "span", "blockquote",
	)
	p.AllowAttrs("href", "title").OnElements("a")
	p.AllowAttrs("src", "alt", "title").OnElements("img")
	p.AllowAttrs("style").Globally()
	p.AllowStandardURLs()
	return p
}

// SanitizeHTML strips everything outside the allow-list from the given HTML
// fragment. Script and style elements are removed along with their content.
func SanitizeHTML(html string) string {
	if html == "" {
		return ""
	}
	return policy.Sanitize(html)
}

// HTMLToText derives a plain-text rendition from an HTML body, used whenever
// a message carries no explicit text/plain part so callers always have a
// non-empty-when-possible text fallback.
func HTMLToText(html string) string {
	if html == "" {
		return ""
	}

	text, err := html2text.FromString(html, html2text.Options{TextOnly: true})
	if err != nil {
		log.Printf("mime: html2text failed, falling back to tag stripping: %v", err)
		return stripTags(html)
	}

	return strings.TrimSpace(text)
}

// stripTags is the crude fallback text derivation: drop tags, collapse
// whitespace.
func stripTags(html string) string {
	var b strings.Builder
	inTag := false
	for _, r := range html {
		switch {
		case r == '<':
			inTag = true
		case r == '>':
			inTag = false
			b.WriteRune(' ')
		case !inTag:
			b.WriteRune(r)
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}
