package handlers

import (
	"errors"
	"net/url"
	"strings"

	"github.com/HydroGest/lmarena/imagegen"
	"github.com/HydroGest/lmarena/markup"
)

// Source validation errors.
var (
	ErrEmptySource       = errors.New("empty image source")
	ErrUnsupportedSource = errors.New("unsupported image source")
)

// ValidateSource accepts http(s) URLs and inline data:/base64:// payloads.
func ValidateSource(src string) error {
	src = strings.TrimSpace(src)
	if src == "" {
		return ErrEmptySource
	}
	if imagegen.IsInlineSource(src) {
		return nil
	}
	u, err := url.Parse(src)
	if err != nil {
		return ErrUnsupportedSource
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ErrUnsupportedSource
	}
	return nil
}

// FilterSources keeps the sources that pass ValidateSource, in order, and
// returns the rejected ones separately for logging.
func FilterSources(sources []string) (valid, rejected []string) {
	for _, src := range sources {
		if ValidateSource(src) != nil {
			rejected = append(rejected, src)
			continue
		}
		valid = append(valid, strings.TrimSpace(src))
	}
	return valid, rejected
}

// CollectImages returns the images of each markup document in turn, e.g.
// the triggering message followed by the quoted one.
func CollectImages(contents ...string) []string {
	var images []string
	for _, c := range contents {
		if c == "" {
			continue
		}
		images = append(images, markup.ExtractImages(c)...)
	}
	return images
}

// MentionedUsers returns the ids @-mentioned in content, excluding selfID.
func MentionedUsers(content, selfID string) []string {
	var ids []string
	for _, id := range markup.ExtractMentions(content) {
		if id != selfID {
			ids = append(ids, id)
		}
	}
	return ids
}
