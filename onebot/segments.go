package onebot

import (
	"encoding/json"
	"regexp"
	"strconv"
	"strings"

	"github.com/HydroGest/lmarena/markup"
)

// Segment is one OneBot v11 message segment.
type Segment struct {
	Type string                 `json:"type"`
	Data map[string]interface{} `json:"data"`
}

func textSegment(text string) Segment {
	return Segment{Type: "text", Data: map[string]interface{}{"text": text}}
}

// str reads a data field as a string. Implementations disagree on whether
// ids are strings or numbers.
func (s Segment) str(key string) string {
	switch v := s.Data[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		if v == float64(int64(v)) {
			return strconv.FormatInt(int64(v), 10)
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case json.Number:
		return v.String()
	default:
		return ""
	}
}

// ParseMessage decodes the "message" field of an event, which is either a
// segment array or a CQ-code string.
func ParseMessage(raw json.RawMessage) ([]Segment, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var cq string
	if err := json.Unmarshal(raw, &cq); err == nil {
		return ParseCQ(cq), nil
	}
	var segs []Segment
	if err := json.Unmarshal(raw, &segs); err != nil {
		return nil, err
	}
	return segs, nil
}

var cqPattern = regexp.MustCompile(`\[CQ:([a-zA-Z0-9_]+)((?:,[^\]]*)?)\]`)

var cqUnescaper = strings.NewReplacer("&#44;", ",", "&#91;", "[", "&#93;", "]", "&amp;", "&")

// ParseCQ decodes a CQ-code string such as "[CQ:at,qq=1] hi" into segments.
func ParseCQ(s string) []Segment {
	var segs []Segment
	last := 0
	for _, m := range cqPattern.FindAllStringSubmatchIndex(s, -1) {
		if m[0] > last {
			segs = append(segs, textSegment(cqUnescaper.Replace(s[last:m[0]])))
		}
		seg := Segment{Type: s[m[2]:m[3]], Data: map[string]interface{}{}}
		for _, kv := range strings.Split(strings.TrimPrefix(s[m[4]:m[5]], ","), ",") {
			k, v, ok := strings.Cut(kv, "=")
			if ok {
				seg.Data[k] = cqUnescaper.Replace(v)
			}
		}
		segs = append(segs, seg)
		last = m[1]
	}
	if last < len(s) {
		segs = append(segs, textSegment(cqUnescaper.Replace(s[last:])))
	}
	return segs
}

// ToMarkup renders segments as message markup. Segment types the bot has
// no use for (faces, records, files) are dropped.
func ToMarkup(segs []Segment) string {
	var b strings.Builder
	for _, seg := range segs {
		switch seg.Type {
		case "text":
			text, _ := seg.Data["text"].(string)
			b.WriteString(markup.Text(text))
		case "at":
			if qq := seg.str("qq"); qq == "all" {
				b.WriteString(markup.AtAll())
			} else if qq != "" {
				b.WriteString(markup.At(qq))
			}
		case "image":
			if src := imageSource(seg); src != "" {
				b.WriteString(markup.Image(src))
			}
		case "mface":
			if url := seg.str("url"); url != "" {
				b.WriteString(markup.Sticker(url))
			}
		case "reply":
			if id := seg.str("id"); id != "" {
				b.WriteString(markup.Quote(id))
			}
		}
	}
	return b.String()
}

// imageSource prefers the download url; some implementations only fill
// "file" with a url or base64:// payload.
func imageSource(seg Segment) string {
	if url := seg.str("url"); url != "" {
		return url
	}
	file := seg.str("file")
	if strings.HasPrefix(file, "http://") || strings.HasPrefix(file, "https://") || strings.HasPrefix(file, "base64://") {
		return file
	}
	return ""
}

// FromMarkup converts outgoing markup into segments. data: URLs become
// base64:// files, which every OneBot implementation accepts.
func FromMarkup(content string) []Segment {
	var segs []Segment
	for _, el := range markup.Parse(content) {
		switch el.Type {
		case "text":
			segs = append(segs, textSegment(el.Text))
		case "at":
			qq := el.Attrs["id"]
			if el.Attrs["type"] == "all" {
				qq = "all"
			}
			if qq != "" {
				segs = append(segs, Segment{Type: "at", Data: map[string]interface{}{"qq": qq}})
			}
		case "img", "mface":
			src := el.Attrs["src"]
			if src == "" {
				src = el.Attrs["url"]
			}
			if src != "" {
				segs = append(segs, Segment{Type: "image", Data: map[string]interface{}{"file": fileParam(src)}})
			}
		case "quote":
			if id := el.Attrs["id"]; id != "" {
				segs = append(segs, Segment{Type: "reply", Data: map[string]interface{}{"id": id}})
			}
		}
	}
	return segs
}

func fileParam(src string) string {
	if !strings.HasPrefix(src, "data:") {
		return src
	}
	if _, payload, ok := strings.Cut(src, ";base64,"); ok {
		return "base64://" + payload
	}
	return src
}
