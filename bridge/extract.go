package bridge

import "regexp"

// markdownImage matches ![alt](http...) and captures the URL.
var markdownImage = regexp.MustCompile(`!\[.*?\]\((https?://[^)]+)\)`)

// ExtractImageURL returns the first markdown image URL in content.
//
// Example:
//
//	ExtractImageURL("Done!\n![image](https://cdn.example.com/a.png)")
//	// "https://cdn.example.com/a.png", true
func ExtractImageURL(content string) (string, bool) {
	m := markdownImage.FindStringSubmatch(content)
	if m == nil {
		return "", false
	}
	return m[1], true
}
