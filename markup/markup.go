// Package markup reads and writes the element markup chat messages are
// carried in, e.g.
//
//	<quote id="42"/><at id="10001"/>手办化 <img src="https://example.com/a.png"/>
//
// Elements are lowercase XML-ish tags; text between them is HTML-escaped.
package markup

import (
	"html"
	"strings"

	nethtml "golang.org/x/net/html"
)

// walk calls fn for every start or self-closing tag and every text run in
// content, in document order.
func walk(content string, onTag func(name string, attrs map[string]string), onText func(string)) {
	z := nethtml.NewTokenizer(strings.NewReader(content))
	for {
		switch z.Next() {
		case nethtml.ErrorToken:
			return
		case nethtml.TextToken:
			if onText != nil {
				onText(string(z.Text()))
			}
		case nethtml.StartTagToken, nethtml.SelfClosingTagToken:
			if onTag == nil {
				continue
			}
			name, hasAttr := z.TagName()
			attrs := make(map[string]string)
			for hasAttr {
				var key, val []byte
				key, val, hasAttr = z.TagAttr()
				attrs[string(key)] = string(val)
			}
			onTag(string(name), attrs)
		}
	}
}

// ExtractImages returns the src of every <img> and the url of every
// <mface> (sticker) element, in document order.
func ExtractImages(content string) []string {
	var images []string
	walk(content, func(name string, attrs map[string]string) {
		switch name {
		case "img":
			if src := attrs["src"]; src != "" {
				images = append(images, src)
			}
		case "mface":
			if url := attrs["url"]; url != "" {
				images = append(images, url)
			}
		}
	}, nil)
	return images
}

// ExtractMentions returns the id of every <at> element, in order, without
// duplicates. <at type="all"/> has no id and is skipped.
func ExtractMentions(content string) []string {
	var ids []string
	seen := make(map[string]bool)
	walk(content, func(name string, attrs map[string]string) {
		if name != "at" {
			return
		}
		id := attrs["id"]
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		ids = append(ids, id)
	}, nil)
	return ids
}

// QuoteID returns the id of the first <quote> element, or "".
func QuoteID(content string) string {
	var id string
	walk(content, func(name string, attrs map[string]string) {
		if name == "quote" && id == "" {
			id = attrs["id"]
		}
	}, nil)
	return id
}

// PlainText strips every element and returns the unescaped, trimmed text.
func PlainText(content string) string {
	var b strings.Builder
	walk(content, nil, func(text string) {
		b.WriteString(text)
	})
	return strings.TrimSpace(b.String())
}

// Text escapes s for inclusion in markup.
func Text(s string) string {
	return html.EscapeString(s)
}

// Image renders an image element.
func Image(src string) string {
	return `<img src="` + html.EscapeString(src) + `"/>`
}

// At renders a mention element.
func At(id string) string {
	return `<at id="` + html.EscapeString(id) + `"/>`
}

// Quote renders a reply-to element.
func Quote(id string) string {
	return `<quote id="` + html.EscapeString(id) + `"/>`
}

// AtAll renders a mention of everyone in the channel.
func AtAll() string {
	return `<at type="all"/>`
}

// Sticker renders a sticker element.
func Sticker(url string) string {
	return `<mface url="` + html.EscapeString(url) + `"/>`
}

// Element is one node of a parsed message. Text nodes have Type "text"
// and carry their unescaped text; other nodes carry their attributes.
type Element struct {
	Type  string
	Text  string
	Attrs map[string]string
}

// Parse splits content into its elements in document order. Closing tags
// are dropped, so the result is flat.
//
// Example:
//
//	Parse(`<quote id="7"/>hi <img src="u"/>`)
//	// [{quote map[id:7]} {text "hi "} {img map[src:u]}]
func Parse(content string) []Element {
	var out []Element
	walk(content, func(name string, attrs map[string]string) {
		out = append(out, Element{Type: name, Attrs: attrs})
	}, func(text string) {
		if text == "" {
			return
		}
		if n := len(out); n > 0 && out[n-1].Type == "text" {
			out[n-1].Text += text
			return
		}
		out = append(out, Element{Type: "text", Text: text})
	})
	return out
}
